package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Payment status values. A callback result moves a payment to "pending"
// until a confirmation callback or a provider status query settles it.
const (
	StatusInitiated = "initiated"
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// PendingPayment is the hot-state view of a payment between initiation
// and the provider callback.
type PendingPayment struct {
	UserID            string    `json:"userId"`
	InvoiceID         string    `json:"invoiceId"`
	PaymentID         string    `json:"paymentId"`
	PhoneNumber       string    `json:"phoneNumber"`
	Amount            float64   `json:"amount"`
	Status            string    `json:"status"`
	CheckoutRequestID string    `json:"checkoutRequestId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// InitiateRequest is the payment initiation request body. Amount is left
// untyped because callers send it as either a JSON number or a string.
type InitiateRequest struct {
	UserID              string `json:"userId"`
	InvoiceID           string `json:"invoiceId"`
	PaymentID           string `json:"paymentId"`
	PhoneNumber         string `json:"phoneNumber"`
	CustomerPhoneNumber string `json:"customerPhoneNumber"`
	Amount              any    `json:"amount"`
}

// Phone returns the phone number, accepting customerPhoneNumber as an alias
func (r *InitiateRequest) Phone() string {
	if r.PhoneNumber != "" {
		return r.PhoneNumber
	}
	return r.CustomerPhoneNumber
}

// InitiateData is the success payload returned to the caller
type InitiateData struct {
	PaymentID         string `json:"paymentId"`
	CheckoutRequestID string `json:"checkoutRequestId"`
}

// APIResponse is the JSON envelope for all endpoint responses
type APIResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError carries a machine-stable error code and human-readable message
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Number coerces a loosely typed JSON value to a float64. Provider payloads
// and clients interchange numbers, json.Number and numeric strings.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
