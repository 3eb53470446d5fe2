package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"selfcare-backend/internal/models"
)

// In-memory stand-ins for the store. They copy rows on the way in and
// out the way a real round trip through the database would.

type fakeOrderStore struct {
	mu     sync.Mutex
	seq    int64
	orders map[int64]*models.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[int64]*models.Order{}}
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

func cloneMap(m map[string]any) map[string]any {
	out := map[string]any{}
	raw, _ := json.Marshal(m)
	_ = json.Unmarshal(raw, &out)
	return out
}

func (s *fakeOrderStore) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	order.ID = s.seq
	order.UID = 100000000 + s.seq
	order.Created = time.Now()
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *fakeOrderStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrder(s.orders[id]), nil
}

func (s *fakeOrderStore) GetLiveOrder(_ context.Context, kind string, id int64, clientID string) (*models.Order, error) {
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

func (s *fakeOrderStore) UpdateOrderPayload(_ context.Context, order *models.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.orders[order.ID]
	if stored == nil || stored.Completed != nil || stored.Deleted != nil {
		return false, nil
	}
	stored.ClientID = order.ClientID
	stored.Data = cloneMap(order.Data)
	stored.SData = cloneMap(order.SData)
	return true, nil
}

func (s *fakeOrderStore) FinalizeOrder(_ context.Context, order *models.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.orders[order.ID]
	if stored == nil || stored.Completed != nil || stored.Deleted != nil {
		return false, nil
	}
	now := time.Now()
	stored.ClientID = order.ClientID
	stored.Data = cloneMap(order.Data)
	stored.SData = cloneMap(order.SData)
	stored.Completed = &now
	order.Completed = &now
	return true, nil
}

func (s *fakeOrderStore) SupersedeOrders(_ context.Context, kind, clientID string) ([]int64, error) {
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

type fakeConfirmationStore struct {
	mu       sync.Mutex
	seq      int64
	confirms map[int64]*models.Confirmation
}

func newFakeConfirmationStore() *fakeConfirmationStore {
	return &fakeConfirmationStore{confirms: map[int64]*models.Confirmation{}}
}

func cloneConfirmation(c *models.Confirmation) *models.Confirmation {
	if c == nil {
		return nil
	}
	copied := *c
	copied.Data = cloneMap(c.Data)
	copied.SData = cloneMap(c.SData)
	return &copied
}

func (s *fakeConfirmationStore) CreateConfirmation(_ context.Context, confirm *models.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	confirm.ID = s.seq
	if confirm.Created.IsZero() {
		confirm.Created = time.Now()
	}
	s.confirms[confirm.ID] = cloneConfirmation(confirm)
	return nil
}

func (s *fakeConfirmationStore) LatestLiveConfirmation(_ context.Context, item string, itemID, confirmID int64) (*models.Confirmation, error) {
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
		if confirmID != 0 && confirm.ID != confirmID {
			continue
		}
		if itemID != 0 && confirm.ConfirmItemID != itemID {
			continue
		}
		if latest == nil || confirm.Created.After(latest.Created) {
			latest = confirm
		}
	}
	return cloneConfirmation(latest), nil
}

func (s *fakeConfirmationStore) UpdateConfirmationPayload(_ context.Context, confirm *models.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.confirms[confirm.ID]; stored != nil {
		stored.Data = cloneMap(confirm.Data)
		stored.SData = cloneMap(confirm.SData)
	}
	return nil
}

func (s *fakeConfirmationStore) SoftDeleteConfirmation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.confirms[id]; stored != nil && stored.Deleted == nil {
		now := time.Now()
		stored.Deleted = &now
	}
	return nil
}

func (s *fakeConfirmationStore) SupersedeConfirmations(_ context.Context, item string, itemID int64) error {
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

func (s *fakeConfirmationStore) SupersedeClientConfirmations(_ context.Context, item, clientID string) error {
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

// backdate shifts a stored confirmation's creation time, for TTL tests.
func (s *fakeConfirmationStore) backdate(id int64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.confirms[id]; stored != nil {
		stored.Created = stored.Created.Add(-d)
	}
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
	err   error
}

func (f *fakeSMS) Send(_ context.Context, phone, operator, text string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, smsCall{phone: phone, operator: operator, text: text})
	if f.err != nil {
		return false, "", f.err
	}
	return f.ok, "gateway accepted", nil
}

type fakeResolver struct {
	region   string
	operator string
	err      error
}

func (f *fakeResolver) ResolveNumber(context.Context, string) (string, string, error) {
	return f.region, f.operator, f.err
}

type fakePublisher struct {
	mu         sync.Mutex
	events     []*models.OrderCompletedEvent
	superseded []*models.OrderSupersededEvent
	issued     []*models.ConfirmationIssuedEvent
	err        error
}

func (f *fakePublisher) PublishOrderCompleted(_ context.Context, event *models.OrderCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) PublishOrderSuperseded(_ context.Context, event *models.OrderSupersededEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.superseded = append(f.superseded, event)
	return f.err
}

func (f *fakePublisher) PublishConfirmationIssued(_ context.Context, event *models.ConfirmationIssuedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, event)
	return f.err
}
