package cashback

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"selfcare-backend/config"
	"selfcare-backend/internal/util"

	"go.uber.org/zap"
)

// Offer is one cashback offer record from the partner API.
type Offer struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title"`
	Amount json.RawMessage `json:"amount,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Client talks to the cashback partner API. Subscribers are addressed
// by a sha1 hash of device uid plus msisdn, never by the raw number.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.CashbackConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: util.GetLogger(),
	}
}

// SubscriberHash derives the partner-side subscriber address.
// The msisdn is normalized to the 7-prefixed form first.
func SubscriberHash(deviceUID, msisdn string) string {
	sum := sha1.Sum([]byte(deviceUID + NormalizeMsisdn(msisdn)))
	return hex.EncodeToString(sum[:])
}

// NormalizeMsisdn prepends the country prefix when missing.
func NormalizeMsisdn(msisdn string) string {
	if msisdn != "" && !strings.HasPrefix(msisdn, "7") {
		return "7" + msisdn
	}
	return msisdn
}

// AvailableOffers lists offers a subscriber can still claim.
func (c *Client) AvailableOffers(ctx context.Context, hash string) ([]Offer, error) {
	var offers []Offer
	if err := c.get(ctx, "/available_offers/"+hash, nil, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// SuccessOffers lists offers the subscriber already completed.
func (c *Client) SuccessOffers(ctx context.Context, hash string) ([]Offer, error) {
	var offers []Offer
	if err := c.get(ctx, "/success_offers/"+hash, nil, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// SuccessUserOffers lists completed offers by msisdn within an
// optional time window.
func (c *Client) SuccessUserOffers(ctx context.Context, msisdn string, start, stop *time.Time) ([]Offer, error) {
	query := url.Values{}
	if start != nil {
		query.Set("start", fmt.Sprintf("%d", start.Unix()))
	}
	if stop != nil {
		query.Set("stop", fmt.Sprintf("%d", stop.Unix()))
	}

	var offers []Offer
	path := "/success_user_offers/" + url.PathEscape(NormalizeMsisdn(msisdn))
	if err := c.get(ctx, path, query, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// OfferDetails fetches one offer. Returns (nil, nil) when the partner
// does not know the offer.
func (c *Client) OfferDetails(ctx context.Context, hash string, offerID int64) (*Offer, error) {
	query := url.Values{"id": {fmt.Sprintf("%d", offerID)}}

	var offer Offer
	err := c.get(ctx, "/offer_details/"+hash, query, &offer)
	if err != nil {
		if strings.Contains(err.Error(), "status 404") {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create cashback request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cashback api unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("cashback request %s failed: status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode cashback response: %w", err)
	}
	return nil
}
