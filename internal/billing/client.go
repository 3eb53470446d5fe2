package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"selfcare-backend/config"
	"selfcare-backend/internal/util"

	"go.uber.org/zap"
)

// Profile is the subscriber identity record kept by billing. The
// field names follow the contract document layout used by the apps.
type Profile struct {
	FIO         string `json:"fio"`
	Sex         string `json:"sex"`
	Birthdate   string `json:"birthdate"`
	Birthplace  string `json:"birthplace"`
	Citizenship string `json:"citizenship"`
	DocType     string `json:"doctype"`
	Serial      string `json:"serial"`
	DocID       string `json:"docid"`
	UFMSCode    string `json:"ufmscode"`
	Issuer      string `json:"issuer"`
	Issued      string `json:"issued"`
	Address     string `json:"address"`
}

// NumberInfo carries region and operator ownership for an MSISDN.
type NumberInfo struct {
	Region   string `json:"region"`
	Operator string `json:"operator"`
}

// CallLog is the raw request/response capture of a billing mutation.
// Stored in order payloads so support can reconstruct what happened.
type CallLog struct {
	URL      string `json:"url"`
	Request  string `json:"request"`
	Response string `json:"response"`
	Sent     string `json:"sent"`
}

// Client is the billing/CRM HTTP API adapter.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.BillingConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: util.GetLogger(),
	}
}

// ResolveNumber reports the region and current operator of a number.
func (c *Client) ResolveNumber(ctx context.Context, number string) (region, operator string, err error) {
	var info NumberInfo
	err = c.get(ctx, "resolve_number", "/numbers/"+url.PathEscape(number), nil, &info)
	if err != nil {
		return "", "", err
	}
	return info.Region, info.Operator, nil
}

// GetSubscriberProfile fetches identity data for a subscriber.
func (c *Client) GetSubscriberProfile(ctx context.Context, number string) (*Profile, error) {
	var profile Profile
	err := c.get(ctx, "subscriber_profile", "/subscribers/"+url.PathEscape(number)+"/profile", nil, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetICCID returns the SIM card identifier bound to a number.
func (c *Client) GetICCID(ctx context.Context, number string) (string, error) {
	var resp struct {
		ICCID string `json:"iccid"`
	}
	err := c.get(ctx, "iccid", "/subscribers/"+url.PathEscape(number)+"/iccid", nil, &resp)
	if err != nil {
		return "", err
	}
	return resp.ICCID, nil
}

// AvailableNumbers lists free MSISDNs from the pool for a region.
func (c *Client) AvailableNumbers(ctx context.Context, region, search string, count int) ([]string, error) {
	if count <= 0 {
		count = 10
	}
	query := url.Values{
		"region": {region},
		"count":  {strconv.Itoa(count)},
	}
	if search != "" {
		query.Set("mask", search)
	}

	var resp struct {
		Numbers []string `json:"numbers"`
	}
	err := c.get(ctx, "available_numbers", "/numbers/pool", query, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Numbers, nil
}

// ReplaceMsisdn swaps a subscriber's number in billing. The full
// exchange is returned as a CallLog regardless of outcome so callers
// can persist it.
func (c *Client) ReplaceMsisdn(ctx context.Context, oldNumber, newNumber string) (*CallLog, error) {
	start := time.Now()
	defer func() {
		util.BillingRequestLatency.WithLabelValues("replace_msisdn").Observe(time.Since(start).Seconds())
	}()

	payload := map[string]string{
		"msisdn":     oldNumber,
		"new_msisdn": newNumber,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode replace request: %w", err)
	}

	endpoint := c.baseURL + "/subscribers/" + url.PathEscape(oldNumber) + "/replace_msisdn"
	callLog := &CallLog{
		URL:     endpoint,
		Request: string(body),
		Sent:    start.UTC().Format(time.RFC3339),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return callLog, fmt.Errorf("failed to create replace request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return callLog, fmt.Errorf("billing unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	callLog.Response = string(respBody)

	if resp.StatusCode != http.StatusOK {
		return callLog, fmt.Errorf("billing replace_msisdn failed: status %d", resp.StatusCode)
	}

	c.logger.Info("Billing number replaced",
		zap.String("old_number", oldNumber),
		zap.String("new_number", newNumber))
	return callLog, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}
}

func (c *Client) get(ctx context.Context, method, path string, query url.Values, out any) error {
	start := time.Now()
	defer func() {
		util.BillingRequestLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create billing request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("billing: %s not found", path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("billing %s failed: status %d: %s", method, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode billing %s response: %w", method, err)
	}
	return nil
}
