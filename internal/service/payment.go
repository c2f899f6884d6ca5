package service

import (
	"context"
	"errors"
	"fmt"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/mpesa"
	"mpesa-payment-gateway/internal/store"
	"mpesa-payment-gateway/internal/token"
)

const initiateAction = "initiate-payment"

// Initiate validates a payment request, registers it in the pending
// store, calls the remote payment issuer and persists the initiation
// records. Returns the provider's correlation key on success.
func (s *Service) Initiate(ctx context.Context, req *model.InitiateRequest) (*model.InitiateData, error) {
	phone := req.Phone()

	// Batch validation: report every missing field, not just the first
	var missing []string
	if req.UserID == "" {
		missing = append(missing, "userId")
	}
	if req.InvoiceID == "" {
		missing = append(missing, "invoiceId")
	}
	if req.PaymentID == "" {
		missing = append(missing, "paymentId")
	}
	if phone == "" {
		missing = append(missing, "phoneNumber")
	}
	if req.Amount == nil {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return nil, &Error{Kind: KindValidation, Message: "missing required fields", Fields: missing}
	}

	amount, ok := model.Number(req.Amount)
	if !ok || amount <= 0 {
		return nil, &Error{Kind: KindValidation, Message: "amount must be a positive number"}
	}

	log := s.log.WithPaymentID(req.PaymentID).WithUserID(req.UserID)

	// Abuse control before any remote or durable payment write
	exceeded, err := s.limiter.RegisterAttempt(ctx, req.UserID, initiateAction)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: "failed to check attempt limit", Err: err}
	}
	if exceeded {
		s.limiter.Flag(ctx, req.UserID, initiateAction, "Too many payment attempts", "blocked")
		log.Warn("Payment initiation blocked", "action", initiateAction)
		return nil, &Error{Kind: KindRateLimited, Message: "too many attempts, please try again later"}
	}

	createdAt := s.timestamp()
	internalDoc := store.Document{
		"userId":      req.UserID,
		"invoiceId":   req.InvoiceID,
		"paymentId":   req.PaymentID,
		"phoneNumber": phone,
		"amount":      amount,
		"status":      model.StatusInitiated,
		"createdAt":   createdAt,
		"updatedAt":   createdAt,
	}
	if err := s.docs.Set(ctx, collTransactions, req.PaymentID, internalDoc, true); err != nil {
		return nil, &Error{Kind: KindInternal, Message: "failed to record payment", Err: err}
	}

	s.pending.Add(req.PaymentID, model.PendingPayment{
		UserID:      req.UserID,
		InvoiceID:   req.InvoiceID,
		PaymentID:   req.PaymentID,
		PhoneNumber: phone,
		Amount:      amount,
		Status:      model.StatusInitiated,
	})

	s.enqueueEvent("PaymentInitiated", req.PaymentID, req.UserID, amount, internalDoc)

	tok, err := s.tokens.ValidToken(ctx)
	if err != nil {
		if errors.Is(err, token.ErrAcquisitionFailed) {
			return nil, &Error{Kind: KindTokenAcquisition, Message: "failed to acquire provider credential", Err: err}
		}
		return nil, &Error{Kind: KindInternal, Message: "failed to acquire provider credential", Err: err}
	}

	resp, err := s.provider.PushPayment(ctx, tok.Value, mpesa.PushRequest{
		PhoneNumber: phone,
		Amount:      amount,
	})
	if err != nil {
		return nil, &Error{Kind: KindProviderCall, Message: "failed to initiate payment with provider", Err: err}
	}

	s.enqueueEvent("ProviderApiCalled", req.PaymentID, req.UserID, amount, resp.Raw)

	if resp.CheckoutRequestID == "" {
		// The provider may or may not have charged; the initiated record
		// remains as the audit trail for manual reconciliation.
		log.Error("No checkout request ID returned from provider", "response", fmt.Sprintf("%v", resp.Raw))
		return nil, &Error{Kind: KindInternal, Message: "provider returned no checkout request id"}
	}

	// Alias the hot entry under the correlation key so callbacks can match
	// without a durable lookup
	s.pending.Update(req.PaymentID, func(p *model.PendingPayment) {
		p.CheckoutRequestID = resp.CheckoutRequestID
	})
	if p, live := s.pending.Get(req.PaymentID); live {
		s.pending.Add(resp.CheckoutRequestID, p)
	}

	err = s.statuses.Set(ctx, req.PaymentID, store.Document{
		"paymentId":         req.PaymentID,
		"checkoutRequestId": resp.CheckoutRequestID,
		"userId":            req.UserID,
		"status":            model.StatusPending,
		"stkRequest":        resp.Raw,
	})
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: "failed to record payment status", Err: err}
	}

	log.WithCheckoutID(resp.CheckoutRequestID).Info("Payment initiated",
		"amount", amount,
		"pending_count", s.pending.Count(),
	)

	return &model.InitiateData{
		PaymentID:         req.PaymentID,
		CheckoutRequestID: resp.CheckoutRequestID,
	}, nil
}
