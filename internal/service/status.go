package service

import (
	"context"
	"errors"
	"time"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/store"
)

// Status answers "what is the status of this payment". The id may be the
// caller's payment identifier or the provider correlation key. A live
// hot-store entry is authoritative and bypasses durable reads entirely.
func (s *Service) Status(ctx context.Context, id string) (store.Document, error) {
	if id == "" {
		return nil, &Error{Kind: KindValidation, Message: "missing paymentId or checkoutRequestId"}
	}

	if p, ok := s.pending.Get(id); ok {
		s.log.WithPaymentID(p.PaymentID).Debug("Payment is still pending (in-memory)")
		s.enqueueEvent("PaymentStatusCheckedPending", p.PaymentID, p.UserID, p.Amount, nil)
		return pendingView(p), nil
	}

	doc, err := s.statuses.Get(ctx, id)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, &Error{Kind: KindInternal, Message: "failed to read payment status", Err: err}
	}

	// The id may be a correlation key rather than a document id
	results, qerr := s.docs.Query(ctx, collStatus, "checkoutRequestId", id, 1)
	if qerr != nil {
		return nil, &Error{Kind: KindInternal, Message: "failed to read payment status", Err: qerr}
	}
	if len(results) == 0 {
		return nil, &Error{Kind: KindNotFound, Message: "payment status not found"}
	}

	s.statuses.Put(id, results[0].Data)
	return results[0].Data, nil
}

// QueryTransaction returns the client-safe view of a settled payment
func (s *Service) QueryTransaction(ctx context.Context, paymentID, checkoutRequestID string) (store.Document, error) {
	if paymentID == "" && checkoutRequestID == "" {
		return nil, &Error{Kind: KindValidation, Message: "missing paymentId or checkoutRequestId"}
	}

	if paymentID != "" {
		doc, err := s.docs.Get(ctx, collPayments, paymentID)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Kind: KindInternal, Message: "failed to read transaction", Err: err}
		}
	}

	if checkoutRequestID != "" {
		results, err := s.docs.Query(ctx, collPayments, "checkoutRequestId", checkoutRequestID, 1)
		if err != nil {
			return nil, &Error{Kind: KindInternal, Message: "failed to read transaction", Err: err}
		}
		if len(results) > 0 {
			return results[0].Data, nil
		}
	}

	return nil, &Error{Kind: KindNotFound, Message: "transaction not found"}
}

// TokenInfo reports the current credential's provenance and expiry for
// the admin surface. The bearer value itself is never exposed.
func (s *Service) TokenInfo(ctx context.Context) (store.Document, error) {
	tok, err := s.tokens.ValidToken(ctx)
	if err != nil {
		return nil, &Error{Kind: KindTokenAcquisition, Message: "failed to acquire provider credential", Err: err}
	}
	return store.Document{
		"source":    tok.Source,
		"expiresAt": tok.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// awaitingConfirmation reports whether a durable transaction still awaits
// provider confirmation and is old enough to chase
func (s *Service) awaitingConfirmation(doc store.Document, cutoffISO string) bool {
	if status, _ := doc["status"].(string); status != model.StatusPending {
		return false
	}
	if confirmed, _ := doc["confirmationReceived"].(bool); confirmed {
		return false
	}
	createdAt, _ := doc["createdAt"].(string)
	return createdAt != "" && createdAt < cutoffISO
}
