package handler

import (
	"encoding/json"
	"net/http"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/service"
	"mpesa-payment-gateway/pkg/logger"
)

// CallbackHandler handles the provider's asynchronous callbacks
type CallbackHandler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(svc *service.Service, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{
		service: svc,
		logger:  log,
	}
}

// ReceiveCallback handles POST /mpesa/callback
func (h *CallbackHandler) ReceiveCallback(w http.ResponseWriter, r *http.Request) {
	envelope, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.service.HandleCallback(r.Context(), envelope); err != nil {
		h.logger.Error("Failed to process payment callback", "error", err)
		sendServiceError(w, err)
		return
	}

	// The provider only needs an acknowledgment
	w.WriteHeader(http.StatusOK)
}

// ReceiveConfirmation handles POST /payments/confirmation
func (h *CallbackHandler) ReceiveConfirmation(w http.ResponseWriter, r *http.Request) {
	envelope, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.service.HandleConfirmation(r.Context(), envelope); err != nil {
		h.logger.Error("Failed to process payment confirmation", "error", err)
		sendServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *CallbackHandler) decode(w http.ResponseWriter, r *http.Request) (*model.CallbackEnvelope, bool) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "ERR_METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	var envelope model.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.logger.Warn("Malformed callback payload", "error", err, "remote_addr", r.RemoteAddr)
		sendErrorResponse(w, "ERR_MALFORMED_CALLBACK", "Malformed callback payload", http.StatusBadRequest)
		return nil, false
	}
	return &envelope, true
}
