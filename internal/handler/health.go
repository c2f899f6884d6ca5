package handler

import (
	"net/http"
	"time"

	"mpesa-payment-gateway/internal/pending"
	"mpesa-payment-gateway/pkg/logger"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	pending   *pending.Store
	logger    *logger.Logger
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(pendingStore *pending.Store, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		pending:   pendingStore,
		logger:    log,
		startedAt: time.Now(),
	}
}

// CheckHealth handles GET /health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, "", map[string]any{
		"status":           "ok",
		"uptime_seconds":   int(time.Since(h.startedAt).Seconds()),
		"pending_payments": h.pending.Count(),
	})
}
