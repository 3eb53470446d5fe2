package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"selfcare-backend/internal/alert"
	"selfcare-backend/internal/billing"
	"selfcare-backend/internal/models"
	"selfcare-backend/internal/workflow"
)

// memStore backs the workflow engine and confirmer in service tests,
// mimicking the conditional-update semantics of the real store.
type memStore struct {
	mu       sync.Mutex
	seq      int64
	orders   map[int64]*models.Order
	confirms map[int64]*models.Confirmation
	ports    []models.Port
}

func newMemStore() *memStore {
	return &memStore{
		orders:   map[int64]*models.Order{},
		confirms: map[int64]*models.Confirmation{},
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := map[string]any{}
	raw, _ := json.Marshal(m)
	_ = json.Unmarshal(raw, &out)
	return out
}

func cloneOrder(o *models.Order) *models.Order {
	if o == nil {
		return nil
	}
	copied := *o
	copied.Data = cloneMap(o.Data)
	copied.SData = cloneMap(o.SData)
	return &copied
}

func cloneConfirm(c *models.Confirmation) *models.Confirmation {
	if c == nil {
		return nil
	}
	copied := *c
	copied.Data = cloneMap(c.Data)
	copied.SData = cloneMap(c.SData)
	return &copied
}

func (s *memStore) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	order.ID = s.seq
	order.UID = 100000000 + s.seq
	order.Created = time.Now()
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *memStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrder(s.orders[id]), nil
}

func (s *memStore) GetLiveOrder(_ context.Context, kind string, id int64, clientID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orders[id]
	if order == nil || order.Kind != kind || order.Deleted != nil {
		return nil, nil
	}
	if clientID != "" && order.ClientID != clientID {
		return nil, nil
	}
	return cloneOrder(order), nil
}

func (s *memStore) UpdateOrderPayload(_ context.Context, order *models.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.orders[order.ID]
	if stored == nil || stored.Completed != nil || stored.Deleted != nil {
		return false, nil
	}
	stored.Data = cloneMap(order.Data)
	stored.SData = cloneMap(order.SData)
	return true, nil
}

func (s *memStore) FinalizeOrder(_ context.Context, order *models.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.orders[order.ID]
	if stored == nil || stored.Completed != nil || stored.Deleted != nil {
		return false, nil
	}
	now := time.Now()
	stored.Data = cloneMap(order.Data)
	stored.SData = cloneMap(order.SData)
	stored.Completed = &now
	order.Completed = &now
	return true, nil
}

func (s *memStore) SupersedeOrders(_ context.Context, kind, clientID string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	now := time.Now()
	for _, order := range s.orders {
		if order.Kind == kind && order.ClientID == clientID && order.Completed == nil && order.Deleted == nil {
			order.Deleted = &now
			ids = append(ids, order.ID)
		}
	}
	return ids, nil
}

func (s *memStore) CreateConfirmation(_ context.Context, confirm *models.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	confirm.ID = s.seq
	confirm.Created = time.Now()
	s.confirms[confirm.ID] = cloneConfirm(confirm)
	return nil
}

func (s *memStore) LatestLiveConfirmation(_ context.Context, item string, itemID, confirmID int64) (*models.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if itemID == 0 && confirmID == 0 {
		return nil, nil
	}
	var latest *models.Confirmation
	for _, confirm := range s.confirms {
		if confirm.ConfirmItem != item || confirm.Deleted != nil {
			continue
		}
		if itemID != 0 && confirm.ConfirmItemID != itemID {
			continue
		}
		if confirmID != 0 && confirm.ID != confirmID {
			continue
		}
		if latest == nil || confirm.Created.After(latest.Created) {
			latest = confirm
		}
	}
	return cloneConfirm(latest), nil
}

func (s *memStore) UpdateConfirmationPayload(_ context.Context, confirm *models.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.confirms[confirm.ID]; stored != nil {
		stored.Data = cloneMap(confirm.Data)
		stored.SData = cloneMap(confirm.SData)
	}
	return nil
}

func (s *memStore) SoftDeleteConfirmation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.confirms[id]; stored != nil && stored.Deleted == nil {
		now := time.Now()
		stored.Deleted = &now
	}
	return nil
}

func (s *memStore) SupersedeConfirmations(_ context.Context, item string, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, confirm := range s.confirms {
		if confirm.ConfirmItem == item && confirm.ConfirmItemID == itemID && confirm.Deleted == nil {
			confirm.Deleted = &now
		}
	}
	return nil
}

func (s *memStore) SupersedeClientConfirmations(_ context.Context, item, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, confirm := range s.confirms {
		if confirm.ConfirmItem == item && confirm.ClientID == clientID && confirm.Deleted == nil {
			confirm.Deleted = &now
		}
	}
	return nil
}

func (s *memStore) LastPort(_ context.Context, number string) (*models.Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *models.Port
	for i := range s.ports {
		port := &s.ports[i]
		if port.Number != number {
			continue
		}
		if last == nil || port.PortDate.After(last.PortDate) {
			last = port
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

// liveCode returns the current live secret code for an order, the way
// a test reads the SMS off the wire.
func (s *memStore) liveCode(item string, itemID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Confirmation
	for _, confirm := range s.confirms {
		if confirm.ConfirmItem != item || confirm.ConfirmItemID != itemID || confirm.Deleted != nil {
			continue
		}
		if latest == nil || confirm.Created.After(latest.Created) {
			latest = confirm
		}
	}
	if latest == nil {
		return ""
	}
	return latest.SecretCode()
}

type smsCall struct {
	phone    string
	operator string
	text     string
}

type fakeSMS struct {
	mu    sync.Mutex
	calls []smsCall
	ok    bool
}

func (f *fakeSMS) Send(_ context.Context, phone, operator, text string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, smsCall{phone: phone, operator: operator, text: text})
	return f.ok, "", nil
}

type fakeResolver struct {
	// regions and operators by number; fallbacks apply when a number
	// is absent.
	regions   map[string]string
	operators map[string]string
	region    string
	operator  string
}

func (f *fakeResolver) ResolveNumber(_ context.Context, number string) (string, string, error) {
	region, operator := f.region, f.operator
	if r, ok := f.regions[number]; ok {
		region = r
	}
	if op, ok := f.operators[number]; ok {
		operator = op
	}
	return region, operator, nil
}

type fakeBilling struct {
	fakeResolver
	iccid   string
	profile *billing.Profile
	err     error
}

func (f *fakeBilling) GetICCID(_ context.Context, _ string) (string, error) {
	return f.iccid, f.err
}

func (f *fakeBilling) GetSubscriberProfile(_ context.Context, _ string) (*billing.Profile, error) {
	return f.profile, f.err
}

func newTestEngine(store *memStore) *workflow.Engine {
	return workflow.NewEngine(store, nil, alert.Nop{})
}

func newTestConfirmer(store *memStore, sms *fakeSMS) *workflow.Confirmer {
	return workflow.NewConfirmer(store, sms, &fakeResolver{}, alert.Nop{}, nil, 4, 0)
}
