// Package mpesa is the remote payment issuer client: token issuance,
// STK push requests and transaction status queries.
package mpesa

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"context"

	"mpesa-payment-gateway/internal/config"
	"mpesa-payment-gateway/pkg/logger"
)

// Client talks to the M-Pesa API
type Client struct {
	httpClient *http.Client
	config     *config.MpesaConfig
	log        *logger.Logger
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewClient creates a new provider client
func NewClient(cfg *config.MpesaConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		config: cfg,
		log:    log,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// PushRequest is a push-payment instruction for one phone number
type PushRequest struct {
	PhoneNumber string
	Amount      float64
}

// PushResponse is the provider's answer to an STK push request. An empty
// CheckoutRequestID means the provider did not accept the request.
type PushResponse struct {
	CheckoutRequestID string
	Raw               map[string]any
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// IssueToken obtains a fresh access token using the application's
// basic-auth credentials. Implements token.Issuer.
func (c *Client) IssueToken(ctx context.Context) (string, time.Duration, error) {
	url := c.config.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.config.BasicAuth())

	body, err := c.do(req)
	if err != nil {
		return "", 0, err
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", 0, fmt.Errorf("invalid token response from provider")
	}

	// The live API returns expires_in as a string, the sandbox as a number
	seconds, err := tok.ExpiresIn.Int64()
	if err != nil || seconds <= 0 {
		return "", 0, fmt.Errorf("invalid expires_in in token response: %q", tok.ExpiresIn)
	}

	return tok.AccessToken, time.Duration(seconds) * time.Second, nil
}

// PushPayment sends an STK push request prompting the payer's device
func (c *Client) PushPayment(ctx context.Context, accessToken string, push PushRequest) (*PushResponse, error) {
	timestamp := c.now().Format("20060102150405")
	payload := map[string]any{
		"BusinessShortCode": c.config.ShortCode,
		"Password":          password(c.config.ShortCode, c.config.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            push.Amount,
		"PartyA":            push.PhoneNumber,
		"PartyB":            c.config.ShortCode,
		"PhoneNumber":       push.PhoneNumber,
		"CallBackURL":       c.config.CallbackURL,
		"AccountReference":  c.config.AccountReference,
		"TransactionDesc":   c.config.TransactionDesc,
	}

	body, err := c.post(ctx, c.config.BaseURL+"/mpesa/stkpush/v1/processrequest", accessToken, payload)
	if err != nil {
		return nil, fmt.Errorf("stk push request failed: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode stk push response: %w", err)
	}

	checkoutRequestID, _ := raw["CheckoutRequestID"].(string)
	return &PushResponse{CheckoutRequestID: checkoutRequestID, Raw: raw}, nil
}

// StatusResponse wraps the transaction status query result envelope
type StatusResponse struct {
	Result *StatusResult `json:"Result"`
}

// StatusResult is the provider's transaction status report
type StatusResult struct {
	ResultCode       int    `json:"ResultCode"`
	ResultDesc       string `json:"ResultDesc"`
	ResultParameters struct {
		ResultParameter []ResultParameter `json:"ResultParameter"`
	} `json:"ResultParameters"`
}

// ResultParameter is a single key/value pair in a status result
type ResultParameter struct {
	Key   string `json:"Key"`
	Value any    `json:"Value"`
}

// Param returns the value of the named result parameter
func (r *StatusResult) Param(key string) (any, bool) {
	for _, p := range r.ResultParameters.ResultParameter {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// QueryTransactionStatus queries the provider for a transaction's status,
// retrying with a linearly increasing delay between attempts
func (c *Client) QueryTransactionStatus(ctx context.Context, accessToken, transactionID, originatorConversationID string) (*StatusResponse, error) {
	payload := map[string]any{
		"Initiator":                c.config.Initiator,
		"SecurityCredential":       c.config.SecurityCred,
		"CommandID":                "TransactionStatusQuery",
		"TransactionID":            transactionID,
		"OriginatorConversationID": originatorConversationID,
		"PartyA":                   c.config.PartyA,
		"IdentifierType":           c.config.IdentifierType,
		"ResultURL":                c.config.ResultURL,
		"QueueTimeOutURL":          c.config.TimeoutURL,
		"Remarks":                  "OK",
		"Occasion":                 "OK",
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.StatusRetries; attempt++ {
		if attempt > 1 {
			c.log.Warn("Retrying transaction status query",
				"transaction_id", transactionID,
				"attempt", attempt,
			)
			c.sleep(time.Duration(attempt-1) * c.config.StatusRetryDelay)
		}

		body, err := c.post(ctx, c.config.BaseURL+"/mpesa/transactionstatus/v1/query", accessToken, payload)
		if err != nil {
			lastErr = err
			c.log.Warn("Transaction status query failed",
				"transaction_id", transactionID,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		var status StatusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, fmt.Errorf("failed to decode status response: %w", err)
		}
		return &status, nil
	}

	return nil, fmt.Errorf("transaction status query failed after %d attempts: %w",
		c.config.StatusRetries, lastErr)
}

// post sends a JSON payload with a bearer token and returns the response body
func (c *Client) post(ctx context.Context, url, accessToken string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return body, nil
}

// password derives the provider request password from the short code,
// passkey and timestamp
func password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
