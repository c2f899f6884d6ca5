package service

import (
	"context"
	"strings"
	"time"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/internal/mpesa"
	"mpesa-payment-gateway/internal/store"
)

const pollBatchLimit = 50

// RunStatusPoller periodically chases durable transactions stuck in
// "pending" without a confirmation, querying the provider's transaction
// status API and persisting the result.
func (s *Service) RunStatusPoller(ctx context.Context, interval, cutoff time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollPendingTransactions(ctx, cutoff)
		}
	}
}

func (s *Service) pollPendingTransactions(ctx context.Context, cutoff time.Duration) {
	results, err := s.docs.Query(ctx, collTransactions, "status", model.StatusPending, pollBatchLimit)
	if err != nil {
		s.log.Warn("Failed to list pending transactions", "error", err)
		return
	}

	cutoffISO := s.now().Add(-cutoff).UTC().Format(time.RFC3339)
	for _, result := range results {
		if !s.awaitingConfirmation(result.Data, cutoffISO) {
			continue
		}
		if err := s.chaseTransaction(ctx, result.ID, result.Data); err != nil {
			s.log.WithPaymentID(result.ID).Warn("Failed to chase pending transaction", "error", err)
		}
	}
}

// chaseTransaction queries the provider for one transaction and writes
// the reported status through the usual reconciliation unit
func (s *Service) chaseTransaction(ctx context.Context, paymentID string, txData store.Document) error {
	tok, err := s.tokens.ValidToken(ctx)
	if err != nil {
		return err
	}

	originator := paymentID
	if apiResponse, ok := txData["apiResponse"].(map[string]any); ok {
		if id, ok := apiResponse["OriginatorConversationID"].(string); ok && id != "" {
			originator = id
		}
	}

	statusResp, err := s.provider.QueryTransactionStatus(ctx, tok.Value, paymentID, originator)
	if err != nil {
		return err
	}
	result := statusResp.Result
	if result == nil {
		return &Error{Kind: KindProviderCall, Message: "no Result in status response"}
	}

	status := reportedStatus(result)
	amount := float64(0)
	if v, ok := result.Param("Amount"); ok {
		amount, _ = model.Number(v)
	}
	userID, _ := txData["userId"].(string)

	update := store.Document{
		"status":        status,
		"resultCode":    result.ResultCode,
		"resultDesc":    result.ResultDesc,
		"amount":        amount,
		"userId":        userID,
		"paymentId":     paymentID,
		"mpesaCallback": result,
		"updatedAt":     s.timestamp(),
	}
	if receipt := paramString(result, "ReceiptNo"); receipt != "" {
		update["mpesaReceiptNumber"] = receipt
	}
	if phone := paramString(result, "DebitPartyName"); phone != "" {
		update["phoneNumber"] = phone
	}
	if finalised := paramString(result, "FinalisedTime"); finalised != "" {
		update["completedAt"] = finalised
	}
	clientDoc := clientProjection(update)

	err = s.docs.BatchCommit(ctx, []store.Write{
		{Collection: collTransactions, ID: paymentID, Data: update, Merge: true},
		{Collection: collPayments, ID: paymentID, Data: clientDoc, Merge: true},
	})
	if err != nil {
		return err
	}
	if err := s.statuses.Set(ctx, paymentID, update); err != nil {
		return err
	}

	s.log.WithPaymentID(paymentID).Info("Chased pending transaction", "status", status)
	return nil
}

// reportedStatus maps the provider's TransactionStatus parameter onto the
// gateway's status values. An unreported or unrecognized status leaves the
// payment pending for the next pass.
func reportedStatus(result *mpesa.StatusResult) string {
	v, ok := result.Param("TransactionStatus")
	if !ok {
		return model.StatusPending
	}
	raw, _ := v.(string)
	switch strings.ToLower(raw) {
	case "completed":
		return model.StatusCompleted
	case "failed", "cancelled", "expired", "declined":
		return model.StatusFailed
	default:
		return model.StatusPending
	}
}

func paramString(result *mpesa.StatusResult, key string) string {
	v, ok := result.Param(key)
	if !ok || v == nil {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	return ""
}
