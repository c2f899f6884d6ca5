package handler

import (
	"net/http"

	"mpesa-payment-gateway/internal/service"
	"mpesa-payment-gateway/pkg/logger"
)

// StatusHandler handles status and transaction query requests
type StatusHandler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(svc *service.Service, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		service: svc,
		logger:  log,
	}
}

// GetPaymentStatus handles GET /payment-status?paymentId=... or ?checkoutRequestId=...
func (h *StatusHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("paymentId")
	if id == "" {
		id = r.URL.Query().Get("checkoutRequestId")
	}

	doc, err := h.service.Status(r.Context(), id)
	if err != nil {
		if service.KindOf(err) != service.KindNotFound {
			h.logger.Error("Failed to fetch payment status", "error", err, "id", id)
		}
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "", doc)
}

// QueryTransaction handles GET /query-transaction?paymentId=... or ?checkoutRequestId=...
func (h *StatusHandler) QueryTransaction(w http.ResponseWriter, r *http.Request) {
	paymentID := r.URL.Query().Get("paymentId")
	checkoutRequestID := r.URL.Query().Get("checkoutRequestId")

	doc, err := h.service.QueryTransaction(r.Context(), paymentID, checkoutRequestID)
	if err != nil {
		if service.KindOf(err) != service.KindNotFound {
			h.logger.Error("Failed to query transaction", "error", err, "payment_id", paymentID)
		}
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "", doc)
}

// GetTokenInfo handles GET /token. Admin surface: reports provenance and
// expiry, never the credential itself.
func (h *StatusHandler) GetTokenInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.TokenInfo(r.Context())
	if err != nil {
		h.logger.Error("Failed to acquire access token", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "", info)
}
