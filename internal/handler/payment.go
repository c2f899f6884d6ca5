package handler

import (
	"encoding/json"
	"net/http"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/service"
	"mpesa-payment-gateway/pkg/logger"
)

// PaymentHandler handles payment initiation requests
type PaymentHandler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(svc *service.Service, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: svc,
		logger:  log,
	}
}

// InitiatePayment handles POST /initiate-payment
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "ERR_METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "ERR_VALIDATION", "Invalid request body", http.StatusBadRequest)
		return
	}

	h.logger.WithPaymentID(req.PaymentID).Info("Received payment initiation request",
		"user_id", req.UserID,
		"invoice_id", req.InvoiceID,
	)

	data, err := h.service.Initiate(r.Context(), &req)
	if err != nil {
		h.logger.WithPaymentID(req.PaymentID).Error("Failed to initiate payment", "error", err)
		sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "Payment initiated successfully", data)
}
