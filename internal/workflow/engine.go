package workflow

import (
	"context"
	"fmt"
	"time"

	"selfcare-backend/internal/alert"
	"selfcare-backend/internal/models"
	"selfcare-backend/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the persistence surface the engine needs. *store.Store
// satisfies it; tests plug in an in-memory fake.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetLiveOrder(ctx context.Context, kind string, id int64, clientID string) (*models.Order, error)
	UpdateOrderPayload(ctx context.Context, order *models.Order) (bool, error)
	FinalizeOrder(ctx context.Context, order *models.Order) (bool, error)
	SupersedeOrders(ctx context.Context, kind, clientID string) ([]int64, error)
}

// EventPublisher pushes lifecycle events to the broker.
type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderSuperseded(ctx context.Context, event *models.OrderSupersededEvent) error
	PublishConfirmationIssued(ctx context.Context, event *models.ConfirmationIssuedEvent) error
}

// Hooks customize the generic lifecycle per order kind.
type Hooks struct {
	// ValidateCreate runs before anything is persisted; an error
	// rejects the order without side effects.
	ValidateCreate func(ctx context.Context, order *models.Order) error
	// AfterFinalize runs once the completion is durable. Best-effort:
	// a failure is logged and alarmed, never rolled back into the
	// finalization result.
	AfterFinalize func(ctx context.Context, order *models.Order) error
}

// Engine drives the generic order lifecycle shared by every flow:
// create, progressively fill, finalize, supersede. Kind-specific
// behavior comes in through registered Hooks.
type Engine struct {
	store     OrderStore
	publisher EventPublisher
	notifier  alert.Notifier
	logger    *zap.Logger
	hooks     map[string]Hooks
}

func NewEngine(store OrderStore, publisher EventPublisher, notifier alert.Notifier) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		logger:    util.GetLogger(),
		hooks:     map[string]Hooks{},
	}
}

// Register installs the hooks for one order kind. Last registration
// wins.
func (e *Engine) Register(kind string, hooks Hooks) {
	e.hooks[kind] = hooks
}

// Create validates and persists a new order with completed unset.
func (e *Engine) Create(ctx context.Context, kind, clientID string, fields, secrets map[string]any) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "workflow.Create")
	defer span.End()

	order := &models.Order{
		Kind:     kind,
		ClientID: clientID,
		Data:     map[string]any{},
		SData:    map[string]any{},
	}
	mergePayload(order, fields, secrets)

	if hooks, ok := e.hooks[kind]; ok && hooks.ValidateCreate != nil {
		if err := hooks.ValidateCreate(ctx, order); err != nil {
			util.OrdersFailedTotal.WithLabelValues(kind, "validation").Inc()
			return nil, err
		}
	}

	if err := e.store.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues(kind, "db_error").Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.WithLabelValues(kind).Inc()
	e.logger.Info("Order created",
		zap.String("kind", kind),
		zap.Int64("order_id", order.ID))
	return order, nil
}

// Get loads a live order of the given kind, ErrOrderNotFound when it
// is missing or soft-deleted. An empty clientID skips the owner check.
func (e *Engine) Get(ctx context.Context, kind string, id int64, clientID string) (*models.Order, error) {
	if id == 0 {
		return nil, ErrOrderNotFound
	}

	order, err := e.store.GetLiveOrder(ctx, kind, id, clientID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Update merges fields into the payload of an in-progress order. Once
// the order is completed the call is a silent no-op so late client
// retries stay idempotent; nothing persisted changes.
func (e *Engine) Update(ctx context.Context, order *models.Order, fields, secrets map[string]any) error {
	ctx, span := util.StartSpan(ctx, "workflow.Update")
	defer span.End()

	if order.IsCompleted() {
		return nil
	}

	mergePayload(order, fields, secrets)

	updated, err := e.store.UpdateOrderPayload(ctx, order)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	// The conditional update matched nothing: the row either vanished
	// or completed underneath us.
	current, err := e.store.GetOrderByID(ctx, order.ID)
	if err != nil {
		return err
	}
	if current == nil || current.Deleted != nil {
		return ErrOrderNotFound
	}
	return nil
}

// Finalize performs the single terminal transition of an order. The
// completion itself is one conditional update, so two racing calls
// cannot both win; the loser observes ErrOrderCompleted. Post-finalize
// notification is best-effort and never unwinds the completion.
func (e *Engine) Finalize(ctx context.Context, order *models.Order, fields, secrets map[string]any) error {
	ctx, span := util.StartSpan(ctx, "workflow.Finalize")
	defer span.End()

	if order.IsCompleted() {
		return ErrOrderCompleted
	}

	mergePayload(order, fields, secrets)

	won, err := e.store.FinalizeOrder(ctx, order)
	if err != nil {
		return err
	}
	if !won {
		current, err := e.store.GetOrderByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Deleted != nil {
			return ErrOrderNotFound
		}
		return ErrOrderCompleted
	}

	util.OrdersCompletedTotal.WithLabelValues(order.Kind).Inc()
	e.logger.Info("Order completed",
		zap.String("kind", order.Kind),
		zap.Int64("order_id", order.ID))

	e.publishCompleted(ctx, order)

	if hooks, ok := e.hooks[order.Kind]; ok && hooks.AfterFinalize != nil {
		if err := hooks.AfterFinalize(ctx, order); err != nil {
			e.notifier.Error(fmt.Sprintf("post-finalize hook failed for order %d", order.ID),
				zap.String("kind", order.Kind), zap.Error(err))
		}
	}

	return nil
}

// Supersede soft-deletes every in-progress order of a kind for an
// owner. Completed orders stay untouched; completed and deleted are
// mutually exclusive terminal states.
func (e *Engine) Supersede(ctx context.Context, kind, clientID string) error {
	ids, err := e.store.SupersedeOrders(ctx, kind, clientID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	util.OrdersSupersededTotal.WithLabelValues(kind).Add(float64(len(ids)))
	e.logger.Info("Orders superseded",
		zap.String("kind", kind),
		zap.Int("count", len(ids)))

	if e.publisher == nil {
		return nil
	}
	for _, id := range ids {
		event := &models.OrderSupersededEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderSuperseded,
				Timestamp: time.Now(),
			},
			OrderID: id,
			Kind:    kind,
			Reason:  "replaced",
		}
		if err := e.publisher.PublishOrderSuperseded(ctx, event); err != nil {
			e.logger.Warn("Failed to publish superseded event",
				zap.Int64("order_id", id),
				zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) publishCompleted(ctx context.Context, order *models.Order) {
	if e.publisher == nil {
		return
	}

	event := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		OrderID:      order.ID,
		OrderUID:     order.UID,
		Kind:         order.Kind,
		ClientID:     order.ClientID,
		ContactEmail: order.ContactEmail(),
	}

	if err := e.publisher.PublishOrderCompleted(ctx, event); err != nil {
		e.notifier.Error("Failed to publish OrderCompleted event",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func mergePayload(order *models.Order, fields, secrets map[string]any) {
	if order.Data == nil {
		order.Data = map[string]any{}
	}
	if order.SData == nil {
		order.SData = map[string]any{}
	}
	for k, v := range fields {
		order.Data[k] = v
	}
	for k, v := range secrets {
		order.SData[k] = v
	}
}
