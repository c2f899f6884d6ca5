package service

import (
	"context"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/store"
)

// HandleCallback reconciles the provider's asynchronous push-payment
// result with the payment that originated it. Result code 0 moves the
// payment to "pending"; finality comes from a separate confirmation.
func (s *Service) HandleCallback(ctx context.Context, envelope *model.CallbackEnvelope) error {
	cb, err := validCallback(envelope)
	if err != nil {
		return err
	}

	checkoutID := cb.CheckoutRequestID
	amount := cb.CallbackMetadata.Amount()
	log := s.log.WithCheckoutID(checkoutID)

	// Hot store first. A match retires the entry permanently, so a replayed
	// callback falls through to the durable path.
	var paymentID, userID string
	if p, ok := s.pending.Get(checkoutID); ok {
		paymentID = p.PaymentID
		userID = p.UserID
		s.pending.Remove(checkoutID)
		s.pending.Remove(p.PaymentID)
		log.WithUserID(userID).Info("Matched callback to pending payment")
	} else {
		log.Warn("No matching pending payment in memory for callback")
		results, qerr := s.docs.Query(ctx, collStatus, "checkoutRequestId", checkoutID, 1)
		if qerr != nil {
			return &Error{Kind: KindInternal, Message: "failed to look up transaction", Err: qerr}
		}
		if len(results) == 0 {
			log.Error("No payment status found for callback")
			return &Error{Kind: KindNotFound, Message: "transaction not found"}
		}
		paymentID = results[0].ID
		if uid, ok := results[0].Data["userId"].(string); ok {
			userID = uid
		}
	}

	status := model.StatusFailed
	if cb.ResultCode == 0 {
		status = model.StatusPending
	}

	statusUpdate := store.Document{
		"status":            status,
		"resultCode":        cb.ResultCode,
		"resultDesc":        cb.ResultDesc,
		"amount":            amount,
		"userId":            userID,
		"paymentId":         paymentID,
		"checkoutRequestId": checkoutID,
		"updatedAt":         s.timestamp(),
		"apiResponse":       store.Document{"stkCallback": cb},
	}

	// One reconciliation unit: status record, internal record, client
	// projection. Not atomic across stores, reported in order.
	if err := s.statuses.Set(ctx, paymentID, statusUpdate); err != nil {
		return &Error{Kind: KindInternal, Message: "failed to update payment status", Err: err}
	}
	if err := s.docs.Set(ctx, collTransactions, paymentID, statusUpdate, true); err != nil {
		return &Error{Kind: KindInternal, Message: "failed to update transaction record", Err: err}
	}
	clientDoc := clientProjection(statusUpdate)
	if err := s.docs.Set(ctx, collPayments, paymentID, clientDoc, true); err != nil {
		return &Error{Kind: KindInternal, Message: "failed to update client record", Err: err}
	}

	// Analytics are best-effort; the provider is acknowledged regardless
	if cb.ResultCode == 0 {
		s.enqueueEvent("PaymentSuccess", paymentID, userID, amount, cb)
		if err := s.analytics.LogRevenue(ctx, userID, paymentID, amount); err != nil {
			log.Warn("Failed to log revenue", "error", err)
		}
	} else {
		s.enqueueEvent("PaymentFailure", paymentID, userID, amount, cb)
		if err := s.analytics.LogFailure(ctx, userID, cb.ResultDesc, cb); err != nil {
			log.Warn("Failed to log payment failure", "error", err)
		}
	}

	log.WithPaymentID(paymentID).Info("Processed payment callback",
		"result_code", cb.ResultCode,
		"status", status,
	)
	return nil
}

// HandleConfirmation settles a payment from the provider's confirmation
// callback. Unlike HandleCallback, result code 0 is terminal here:
// the payment becomes "completed" with a completion time.
func (s *Service) HandleConfirmation(ctx context.Context, envelope *model.CallbackEnvelope) error {
	cb, err := validCallback(envelope)
	if err != nil {
		return err
	}

	checkoutID := cb.CheckoutRequestID
	amount := cb.CallbackMetadata.Amount()
	receipt := cb.CallbackMetadata.String("MpesaReceiptNumber")
	phone := cb.CallbackMetadata.String("PhoneNumber")
	log := s.log.WithCheckoutID(checkoutID)

	results, qerr := s.docs.Query(ctx, collStatus, "checkoutRequestId", checkoutID, 1)
	if qerr != nil {
		return &Error{Kind: KindInternal, Message: "failed to look up transaction", Err: qerr}
	}
	if len(results) == 0 {
		log.Error("No payment status found for confirmation")
		return &Error{Kind: KindNotFound, Message: "transaction not found"}
	}
	paymentID := results[0].ID
	userID, _ := results[0].Data["userId"].(string)

	status := model.StatusFailed
	if cb.ResultCode == 0 {
		status = model.StatusCompleted
	}
	update := store.Document{
		"status":               status,
		"resultCode":           cb.ResultCode,
		"resultDesc":           cb.ResultDesc,
		"amount":               amount,
		"userId":               userID,
		"paymentId":            paymentID,
		"checkoutRequestId":    checkoutID,
		"mpesaReceiptNumber":   receipt,
		"phoneNumber":          phone,
		"confirmationReceived": true,
		"updatedAt":            s.timestamp(),
		"mpesaCallback":        cb,
	}
	if cb.ResultCode == 0 {
		update["completedAt"] = s.timestamp()
	}

	clientDoc := clientProjection(update)
	err = s.docs.BatchCommit(ctx, []store.Write{
		{Collection: collTransactions, ID: paymentID, Data: update, Merge: true},
		{Collection: collPayments, ID: paymentID, Data: clientDoc, Merge: true},
	})
	if err != nil {
		return &Error{Kind: KindInternal, Message: "failed to record confirmation", Err: err}
	}
	if err := s.statuses.Set(ctx, paymentID, update); err != nil {
		return &Error{Kind: KindInternal, Message: "failed to update payment status", Err: err}
	}

	if cb.ResultCode == 0 {
		s.enqueueEvent("PaymentConfirmed", paymentID, userID, amount, cb)
		if err := s.analytics.LogRevenue(ctx, userID, paymentID, amount); err != nil {
			log.Warn("Failed to log revenue", "error", err)
		}
	} else {
		s.enqueueEvent("PaymentConfirmationFailed", paymentID, userID, amount, cb)
		if err := s.analytics.LogFailure(ctx, userID, cb.ResultDesc, cb); err != nil {
			log.Warn("Failed to log payment failure", "error", err)
		}
	}

	log.WithPaymentID(paymentID).Info("Processed payment confirmation",
		"result_code", cb.ResultCode,
		"status", status,
	)
	return nil
}

// validCallback rejects structurally malformed provider payloads before
// any state mutation
func validCallback(envelope *model.CallbackEnvelope) (*model.StkCallback, error) {
	if envelope == nil || envelope.Body.StkCallback == nil {
		return nil, &Error{Kind: KindMalformedCallback, Message: "malformed callback payload"}
	}
	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, &Error{Kind: KindMalformedCallback, Message: "callback missing CheckoutRequestID"}
	}
	return cb, nil
}
