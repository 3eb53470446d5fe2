package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"selfcare-backend/config"
	"selfcare-backend/internal/util"

	"go.uber.org/zap"
)

// Client talks to the SMS gateway. A failed delivery is reported
// through the ok return, not an error: callers decide whether an
// undelivered message is fatal for their flow.
type Client struct {
	url         string
	accessKey   string
	maxAttempts int
	retryDelay  time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewClient(cfg config.SMSConfig) *Client {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		url:         cfg.URL,
		accessKey:   cfg.AccessKey,
		maxAttempts: attempts,
		retryDelay:  cfg.RetryDelay,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: util.GetLogger(),
	}
}

type sendRequest struct {
	Phone    string `json:"phone"`
	Operator string `json:"operator,omitempty"`
	Text     string `json:"text"`
}

type sendResponse struct {
	Result  int    `json:"result"`
	Message string `json:"message"`
}

// Send pushes one message to the gateway, retrying transient failures.
// The returned log text is what the gateway answered, kept for audit
// trails in order payloads.
func (c *Client) Send(ctx context.Context, phone, operator, text string) (bool, string, error) {
	start := time.Now()
	defer func() {
		util.SMSSendLatency.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(sendRequest{Phone: phone, Operator: operator, Text: text})
	if err != nil {
		return false, "", fmt.Errorf("failed to encode sms request: %w", err)
	}

	var lastLog string
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		ok, logText, retryable, err := c.sendOnce(ctx, body)
		lastLog = logText
		if err == nil && ok {
			util.SMSSendTotal.WithLabelValues("sent").Inc()
			return true, logText, nil
		}
		if err != nil {
			lastLog = err.Error()
		}
		if !retryable || attempt == c.maxAttempts {
			break
		}

		c.logger.Warn("SMS send attempt failed, retrying",
			zap.String("phone", phone),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			util.SMSSendTotal.WithLabelValues("failed").Inc()
			return false, lastLog, nil
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
	}

	util.SMSSendTotal.WithLabelValues("failed").Inc()
	return false, lastLog, nil
}

// sendOnce performs a single gateway round trip. Gateway-side
// rejections (a 4xx or result=0) are final, network and 5xx
// failures are retryable.
func (c *Client) sendOnce(ctx context.Context, body []byte) (ok bool, logText string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, "", false, fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessKey != "" {
		req.Header.Set("X-API-KEY", c.accessKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, "", true, fmt.Errorf("sms gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 500 {
		return false, string(respBody), true, fmt.Errorf("sms gateway error: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return false, string(respBody), false, fmt.Errorf("sms gateway rejected message: status %d", resp.StatusCode)
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return false, string(respBody), false, fmt.Errorf("failed to decode sms response: %w", err)
	}
	if parsed.Result != 1 {
		return false, parsed.Message, false, nil
	}
	return true, string(respBody), false, nil
}
