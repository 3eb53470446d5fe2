package service

import (
	"context"
	"time"

	"selfcare-backend/internal/cashback"
	"selfcare-backend/internal/models"
	"selfcare-backend/internal/store"
	"selfcare-backend/internal/util"

	"go.uber.org/zap"
)

// CashbackService merges the partner cashback API with the locally
// tracked offer records.
type CashbackService struct {
	store  *store.Store
	client *cashback.Client
	logger *zap.Logger
}

// NewCashbackService creates a new cashback service
func NewCashbackService(st *store.Store, client *cashback.Client) *CashbackService {
	return &CashbackService{
		store:  st,
		client: client,
		logger: util.GetLogger(),
	}
}

// TrackedOffer is a local cashback record with its rendered status.
type TrackedOffer struct {
	ID         int64          `json:"id"`
	StatusID   int            `json:"status_id"`
	StatusText string         `json:"status_text"`
	Data       map[string]any `json:"data,omitempty"`
}

// List returns the subscriber's tracked cashback records.
func (s *CashbackService) List(ctx context.Context, clientID string) ([]TrackedOffer, error) {
	records, err := s.store.ListCashbacks(ctx, clientID)
	if err != nil {
		return nil, err
	}

	offers := make([]TrackedOffer, 0, len(records))
	for _, record := range records {
		offers = append(offers, TrackedOffer{
			ID:         record.ID,
			StatusID:   record.StatusID,
			StatusText: models.CashbackStatusText[record.StatusID],
			Data:       record.Data,
		})
	}
	return offers, nil
}

// Track opens a local record for an offer the subscriber started.
func (s *CashbackService) Track(ctx context.Context, clientID string, offerID int64, data map[string]any) (*models.Cashback, error) {
	if data == nil {
		data = map[string]any{}
	}
	data["offer_id"] = offerID

	record := &models.Cashback{
		ClientID: clientID,
		StatusID: models.CashbackStatusOpen,
		Data:     data,
	}
	if err := s.store.CreateCashback(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateStatus moves a tracked record between open/approved/rejected.
func (s *CashbackService) UpdateStatus(ctx context.Context, id int64, statusID int) error {
	return s.store.UpdateCashbackStatus(ctx, id, statusID)
}

// AvailableOffers proxies the partner catalogue for a device.
func (s *CashbackService) AvailableOffers(ctx context.Context, deviceUID, msisdn string) ([]cashback.Offer, error) {
	hash := cashback.SubscriberHash(deviceUID, msisdn)
	return s.client.AvailableOffers(ctx, hash)
}

// SuccessOffers proxies the partner's completed-offers list.
func (s *CashbackService) SuccessOffers(ctx context.Context, deviceUID, msisdn string) ([]cashback.Offer, error) {
	hash := cashback.SubscriberHash(deviceUID, msisdn)
	return s.client.SuccessOffers(ctx, hash)
}

// OfferHistory lists offers the subscriber completed within a period,
// addressed by msisdn rather than device hash so it works across
// reinstalls.
func (s *CashbackService) OfferHistory(ctx context.Context, msisdn string, start, stop *time.Time) ([]cashback.Offer, error) {
	return s.client.SuccessUserOffers(ctx, msisdn, start, stop)
}

// OfferDetails returns one catalogue entry, nil when the partner no
// longer lists it.
func (s *CashbackService) OfferDetails(ctx context.Context, deviceUID, msisdn string, offerID int64) (*cashback.Offer, error) {
	hash := cashback.SubscriberHash(deviceUID, msisdn)
	return s.client.OfferDetails(ctx, hash, offerID)
}
