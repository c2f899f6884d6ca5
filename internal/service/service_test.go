package service

import (
	"context"
	"testing"
	"time"

	"mpesa-payment-gateway/internal/abuse"
	"mpesa-payment-gateway/internal/analytics"
	"mpesa-payment-gateway/internal/mpesa"
	"mpesa-payment-gateway/internal/pending"
	"mpesa-payment-gateway/internal/store"
	"mpesa-payment-gateway/internal/token"
	"mpesa-payment-gateway/pkg/logger"
)

type fakeProvider struct {
	pushCalls   int
	lastPush    mpesa.PushRequest
	pushResp    *mpesa.PushResponse
	pushErr     error
	statusCalls int
	statusResp  *mpesa.StatusResponse
	statusErr   error
}

func (f *fakeProvider) PushPayment(ctx context.Context, accessToken string, push mpesa.PushRequest) (*mpesa.PushResponse, error) {
	f.pushCalls++
	f.lastPush = push
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return f.pushResp, nil
}

func (f *fakeProvider) QueryTransactionStatus(ctx context.Context, accessToken, transactionID, originatorConversationID string) (*mpesa.StatusResponse, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.statusResp, nil
}

type fakeTokens struct {
	calls int
	err   error
}

func (f *fakeTokens) ValidToken(ctx context.Context) (token.Token, error) {
	f.calls++
	if f.err != nil {
		return token.Token{}, f.err
	}
	return token.Token{
		Value:     "test-token",
		ExpiresAt: time.Now().Add(time.Hour),
		Source:    token.SourceMemory,
	}, nil
}

type testEnv struct {
	svc      *Service
	docs     *store.MemoryStore
	pending  *pending.Store
	provider *fakeProvider
	tokens   *fakeTokens
	events   *analytics.Analytics
	now      *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.New("ERROR")
	docs := store.NewMemoryStore()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	pendingStore := pending.NewStore(15*time.Minute, log)
	pendingStore.SetClock(clock)

	provider := &fakeProvider{
		pushResp: &mpesa.PushResponse{
			CheckoutRequestID: "ws_1",
			Raw: map[string]any{
				"CheckoutRequestID": "ws_1",
				"ResponseCode":      "0",
			},
		},
	}
	tokens := &fakeTokens{}
	statuses := NewStatusStore(docs, 2*time.Minute, log)
	events := analytics.New(docs, 10, log)
	events.SetClock(clock)
	limiter := abuse.NewLimiter(docs, 5, 15*time.Minute, log)
	limiter.SetClock(clock)

	svc := New(docs, pendingStore, tokens, provider, statuses, events, limiter, log)
	svc.SetClock(clock)

	return &testEnv{
		svc:      svc,
		docs:     docs,
		pending:  pendingStore,
		provider: provider,
		tokens:   tokens,
		events:   events,
		now:      &now,
	}
}
