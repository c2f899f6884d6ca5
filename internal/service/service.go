// Package service implements the payment flows: initiation, callback
// reconciliation, confirmation and status queries.
package service

import (
	"context"
	"time"

	"mpesa-payment-gateway/internal/abuse"
	"mpesa-payment-gateway/internal/analytics"
	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/mpesa"
	"mpesa-payment-gateway/internal/pending"
	"mpesa-payment-gateway/internal/store"
	"mpesa-payment-gateway/internal/token"
	"mpesa-payment-gateway/pkg/logger"
)

// Durable collections. The internal record and the client projection are
// always written together so they cannot diverge.
const (
	collTransactions = "paymentTransactions"
	collPayments     = "payments"
	collStatus       = "paymentStatus"
)

// Provider is the remote payment issuer the flows call
type Provider interface {
	PushPayment(ctx context.Context, accessToken string, push mpesa.PushRequest) (*mpesa.PushResponse, error)
	QueryTransactionStatus(ctx context.Context, accessToken, transactionID, originatorConversationID string) (*mpesa.StatusResponse, error)
}

// TokenSource supplies a valid access credential
type TokenSource interface {
	ValidToken(ctx context.Context) (token.Token, error)
}

// Service wires the payment flows to their collaborators
type Service struct {
	docs      store.Store
	pending   *pending.Store
	tokens    TokenSource
	provider  Provider
	statuses  *StatusStore
	analytics *analytics.Analytics
	limiter   *abuse.Limiter
	log       *logger.Logger
	now       func() time.Time
}

// New creates the payment service
func New(
	docs store.Store,
	pendingStore *pending.Store,
	tokens TokenSource,
	provider Provider,
	statuses *StatusStore,
	events *analytics.Analytics,
	limiter *abuse.Limiter,
	log *logger.Logger,
) *Service {
	return &Service{
		docs:      docs,
		pending:   pendingStore,
		tokens:    tokens,
		provider:  provider,
		statuses:  statuses,
		analytics: events,
		limiter:   limiter,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the service clock for tests
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// clientProjection builds the client-safe view of a payment. Empty fields
// are dropped so merges never blank out earlier values.
func clientProjection(fields store.Document) store.Document {
	allowed := []string{
		"paymentId", "userId", "status", "completedAt", "mpesaReceiptNumber",
		"amount", "phoneNumber", "resultCode", "resultDesc", "checkoutRequestId",
		"updatedAt",
	}
	out := make(store.Document, len(allowed))
	for _, key := range allowed {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		out[key] = v
	}
	return out
}

// enqueueEvent emits a lifecycle event. Fire and forget.
func (s *Service) enqueueEvent(event, paymentID, userID string, amount float64, details any) {
	s.analytics.Enqueue(analytics.Event{
		Event:     event,
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
		Details:   details,
	})
}

// pendingView converts a hot-store entry into a status response document
func pendingView(p model.PendingPayment) store.Document {
	doc := store.Document{
		"status":      model.StatusPending,
		"paymentId":   p.PaymentID,
		"userId":      p.UserID,
		"invoiceId":   p.InvoiceID,
		"phoneNumber": p.PhoneNumber,
		"amount":      p.Amount,
		"createdAt":   p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.CheckoutRequestID != "" {
		doc["checkoutRequestId"] = p.CheckoutRequestID
	}
	return doc
}
