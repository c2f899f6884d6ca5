package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/token"
)

func initiateRequest() *model.InitiateRequest {
	return &model.InitiateRequest{
		UserID:      "u1",
		InvoiceID:   "inv1",
		PaymentID:   "p1",
		PhoneNumber: "254712345678",
		Amount:      float64(100),
	}
}

func TestInitiateMissingFieldsReportedTogether(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Initiate(context.Background(), &model.InitiateRequest{
		UserID: "u1",
	})
	require.Error(t, err)

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, KindValidation, svcErr.Kind)
	assert.ElementsMatch(t, []string{"invoiceId", "paymentId", "phoneNumber", "amount"}, svcErr.Fields)

	// Fail fast: no side effects at all
	assert.Equal(t, 0, env.docs.Writes())
	assert.Equal(t, 0, env.provider.pushCalls)
	assert.Equal(t, 0, env.tokens.calls)
}

func TestInitiateRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)

	for _, amount := range []any{float64(0), float64(-5), "abc"} {
		req := initiateRequest()
		req.Amount = amount
		_, err := env.svc.Initiate(context.Background(), req)
		require.Error(t, err, "amount %v", amount)
		assert.Equal(t, KindValidation, KindOf(err))
	}
	assert.Equal(t, 0, env.provider.pushCalls)
}

func TestInitiateAcceptsStringAmountAndPhoneAlias(t *testing.T) {
	env := newTestEnv(t)

	req := &model.InitiateRequest{
		UserID:              "u1",
		InvoiceID:           "inv1",
		PaymentID:           "p1",
		CustomerPhoneNumber: "254712345678",
		Amount:              "150",
	}
	data, err := env.svc.Initiate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ws_1", data.CheckoutRequestID)
	assert.Equal(t, 150.0, env.provider.lastPush.Amount)
	assert.Equal(t, "254712345678", env.provider.lastPush.PhoneNumber)
}

func TestInitiateHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	data, err := env.svc.Initiate(ctx, initiateRequest())
	require.NoError(t, err)
	assert.Equal(t, "p1", data.PaymentID)
	assert.Equal(t, "ws_1", data.CheckoutRequestID)

	// Durable initiated record
	tx, err := env.docs.Get(ctx, collTransactions, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInitiated, tx["status"])
	assert.Equal(t, 100.0, tx["amount"])

	// Status record references the correlation key
	status, err := env.docs.Get(ctx, collStatus, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status["status"])
	assert.Equal(t, "ws_1", status["checkoutRequestId"])

	// Hot entries under both the payment id and the correlation key
	p, ok := env.pending.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "ws_1", p.CheckoutRequestID)
	_, ok = env.pending.Get("ws_1")
	assert.True(t, ok)

	// Provider called once with the right payload
	assert.Equal(t, 1, env.provider.pushCalls)
	assert.Equal(t, 100.0, env.provider.lastPush.Amount)

	// Two lifecycle events queued
	assert.Equal(t, 2, env.events.Pending())
}

func TestInitiateRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		req := initiateRequest()
		req.PaymentID = fmt.Sprintf("p%d", i)
		_, err := env.svc.Initiate(ctx, req)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, env.provider.pushCalls)

	// Sixth attempt inside the window is blocked before any remote call
	req := initiateRequest()
	req.PaymentID = "p6"
	_, err := env.svc.Initiate(ctx, req)
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, 5, env.provider.pushCalls)

	// Exactly one suspicious-activity entry tagged blocked
	flags, err := env.docs.Query(ctx, "suspicious_activity", "actionTaken", "blocked", 10)
	require.NoError(t, err)
	assert.Len(t, flags, 1)
	assert.Equal(t, "u1", flags[0].Data["userId"])
}

func TestInitiateProviderWithoutCorrelationKeyIsFatal(t *testing.T) {
	env := newTestEnv(t)
	env.provider.pushResp.CheckoutRequestID = ""

	_, err := env.svc.Initiate(context.Background(), initiateRequest())
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))

	// The initiated record remains as the audit trail
	tx, err := env.docs.Get(context.Background(), collTransactions, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInitiated, tx["status"])
}

func TestInitiateProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.pushErr = errors.New("connection refused")

	_, err := env.svc.Initiate(context.Background(), initiateRequest())
	require.Error(t, err)
	assert.Equal(t, KindProviderCall, KindOf(err))
}

func TestInitiateTokenFailure(t *testing.T) {
	env := newTestEnv(t)
	env.tokens.err = fmt.Errorf("issuance: %w", token.ErrAcquisitionFailed)

	_, err := env.svc.Initiate(context.Background(), initiateRequest())
	require.Error(t, err)
	assert.Equal(t, KindTokenAcquisition, KindOf(err))
	assert.Equal(t, 0, env.provider.pushCalls)
}
