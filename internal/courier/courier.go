package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"selfcare-backend/config"
	"selfcare-backend/internal/redisclient"
	"selfcare-backend/internal/util"

	"go.uber.org/zap"
)

// Status is what the delivery tracker shows for an order.
type Status struct {
	Updated      string `json:"updated,omitempty"`
	OrderStatus  string `json:"order_status"`
	StateStatus  string `json:"state_status,omitempty"`
	DeliveryDate string `json:"delivery_date,omitempty"`
}

// Client fetches delivery status from the courier API, with a short
// Redis cache in front so the tracker page does not hammer the
// courier on refresh.
type Client struct {
	url        string
	apiKey     string
	cacheTTL   time.Duration
	httpClient *http.Client
	redis      *redisclient.Client
	logger     *zap.Logger
}

func NewClient(cfg config.CourierConfig, redis *redisclient.Client) *Client {
	return &Client{
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		cacheTTL: cfg.CacheTTL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// courierOrder mirrors the courier API response item.
type courierOrder struct {
	OrderStatusDescription string `json:"OrderStatusDescription"`
	StateDescription       string `json:"StateDescription"`
	StatusDate             string `json:"StatusDate"`
	DeliveryDate           string `json:"DeliveryDate"`
}

// OrderStatus returns the delivery status for an order uid, cached
// for CacheTTL. Cache errors are logged and ignored, the courier API
// is the source of truth.
func (c *Client) OrderStatus(ctx context.Context, orderUID int64) (*Status, error) {
	if cached, err := c.redis.GetCourierStatus(ctx, orderUID); err != nil {
		c.logger.Warn("Courier status cache read failed",
			zap.Int64("order_uid", orderUID),
			zap.Error(err))
	} else if cached != "" {
		var status Status
		if err := json.Unmarshal([]byte(cached), &status); err == nil {
			util.CourierCacheHits.WithLabelValues("hit").Inc()
			return &status, nil
		}
	}
	util.CourierCacheHits.WithLabelValues("miss").Inc()

	status, err := c.fetchStatus(ctx, orderUID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(status); err == nil {
		if err := c.redis.SetCourierStatus(ctx, orderUID, string(payload), c.cacheTTL); err != nil {
			c.logger.Warn("Courier status cache write failed",
				zap.Int64("order_uid", orderUID),
				zap.Error(err))
		}
	}
	return status, nil
}

func (c *Client) fetchStatus(ctx context.Context, orderUID int64) (*Status, error) {
	endpoint := c.url + "/orders/" + strconv.FormatInt(orderUID, 10) + "/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create courier request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("courier unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("courier status request failed: status %d: %s", resp.StatusCode, string(body))
	}

	var orders []courierOrder
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("failed to decode courier response: %w", err)
	}

	if len(orders) == 0 {
		return &Status{OrderStatus: "Order not found"}, nil
	}

	order := orders[0]
	status := &Status{
		Updated:     order.StatusDate,
		OrderStatus: cleanStatus(order.OrderStatusDescription),
		StateStatus: cleanStatus(order.StateDescription),
	}
	if order.DeliveryDate != "" {
		// Drop the time part, the tracker shows dates only.
		status.DeliveryDate, _, _ = strings.Cut(order.DeliveryDate, "T")
	}
	return status, nil
}

// The courier API uses "-" as an empty-ish placeholder.
func cleanStatus(s string) string {
	if s == "-" {
		return ""
	}
	return s
}
