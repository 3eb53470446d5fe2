package workflow

import (
	"context"
	"errors"
	"testing"

	"selfcare-backend/internal/alert"
	"selfcare-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*Engine, *fakeOrderStore, *fakePublisher) {
	store := newFakeOrderStore()
	publisher := &fakePublisher{}
	return NewEngine(store, publisher, alert.Nop{}), store, publisher
}

func TestCreateStartsInProgress(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()

	order, err := engine.Create(ctx, models.KindContractEdit, "9991234567",
		map[string]any{"contact_phone": "9991234567"}, nil)
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.Nil(t, order.Completed)
	assert.Nil(t, order.Deleted)
	assert.Equal(t, "9991234567", order.ContactPhone())
}

func TestCreateValidationHookRejectsBeforePersistence(t *testing.T) {
	engine, store, _ := newTestEngine()
	engine.Register(models.KindMNP, Hooks{
		ValidateCreate: func(context.Context, *models.Order) error {
			return errors.New("equal operators")
		},
	})

	_, err := engine.Create(context.Background(), models.KindMNP, "9991234567", nil, nil)
	assert.Error(t, err)
	assert.Empty(t, store.orders)
}

func TestUpdateMergesPayload(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	order, err := engine.Create(ctx, models.KindContractEdit, "9991234567", nil, nil)
	require.NoError(t, err)

	require.NoError(t, engine.Update(ctx, order,
		map[string]any{"contact_phone": "9991234567"},
		map[string]any{"signature": "aGVsbG8="}))

	stored, _ := store.GetOrderByID(ctx, order.ID)
	assert.Equal(t, "9991234567", stored.ContactPhone())
	assert.Equal(t, "aGVsbG8=", stored.Signature())
}

func TestUpdateAfterFinalizeDoesNotAlterPayload(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	order, err := engine.Create(ctx, models.KindContractEdit, "9991234567",
		map[string]any{"contact_phone": "9991234567"}, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Finalize(ctx, order, nil, nil))

	// Late retry: silently a no-op, nothing persisted changes.
	stale, _ := store.GetOrderByID(ctx, order.ID)
	err = engine.Update(ctx, stale, map[string]any{"contact_phone": "0000000000"}, nil)
	assert.NoError(t, err)

	stored, _ := store.GetOrderByID(ctx, order.ID)
	assert.Equal(t, "9991234567", stored.ContactPhone())
}

func TestFinalizeIsTerminal(t *testing.T) {
	engine, _, publisher := newTestEngine()
	ctx := context.Background()

	order, err := engine.Create(ctx, models.KindContractCancel, "9991234567", nil, nil)
	require.NoError(t, err)

	require.NoError(t, engine.Finalize(ctx, order,
		map[string]any{"contact_email": "user@example.com"}, nil))
	assert.NotNil(t, order.Completed)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "user@example.com", publisher.events[0].ContactEmail)

	err = engine.Finalize(ctx, order, nil, nil)
	assert.ErrorIs(t, err, ErrOrderCompleted)
	assert.Len(t, publisher.events, 1)
}

func TestFinalizeRaceHasOneWinner(t *testing.T) {
	engine, store, publisher := newTestEngine()
	ctx := context.Background()

	order, err := engine.Create(ctx, models.KindContractEdit, "9991234567", nil, nil)
	require.NoError(t, err)

	// Two handlers loaded the same fresh row before either finalized.
	first, _ := store.GetOrderByID(ctx, order.ID)
	second, _ := store.GetOrderByID(ctx, order.ID)

	err1 := engine.Finalize(ctx, first, nil, nil)
	err2 := engine.Finalize(ctx, second, nil, nil)

	assert.NoError(t, err1)
	assert.ErrorIs(t, err2, ErrOrderCompleted)
	assert.Len(t, publisher.events, 1)
}

func TestFinalizeMissingOrder(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, err := engine.Get(context.Background(), models.KindContractEdit, 12345, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSupersedeLeavesCompletedOrdersAlone(t *testing.T) {
	engine, store, publisher := newTestEngine()
	ctx := context.Background()

	done, err := engine.Create(ctx, models.KindMNP, "9991234567", nil, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Finalize(ctx, done, nil, nil))

	pending, err := engine.Create(ctx, models.KindMNP, "9991234567", nil, nil)
	require.NoError(t, err)

	require.NoError(t, engine.Supersede(ctx, models.KindMNP, "9991234567"))

	storedDone, _ := store.GetOrderByID(ctx, done.ID)
	assert.Nil(t, storedDone.Deleted)
	assert.NotNil(t, storedDone.Completed)

	storedPending, _ := store.GetOrderByID(ctx, pending.ID)
	assert.NotNil(t, storedPending.Deleted)

	_, err = engine.Get(ctx, models.KindMNP, pending.ID, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	require.Len(t, publisher.superseded, 1)
	assert.Equal(t, pending.ID, publisher.superseded[0].OrderID)
	assert.Equal(t, models.KindMNP, publisher.superseded[0].Kind)
}

func TestAfterFinalizeFailureDoesNotUnwindCompletion(t *testing.T) {
	engine, store, publisher := newTestEngine()
	publisher.err = errors.New("broker down")
	engine.Register(models.KindFeedback, Hooks{
		AfterFinalize: func(context.Context, *models.Order) error {
			return errors.New("smtp down")
		},
	})
	ctx := context.Background()

	order, err := engine.Create(ctx, models.KindFeedback, "9991234567", nil, nil)
	require.NoError(t, err)

	assert.NoError(t, engine.Finalize(ctx, order, nil, nil))

	stored, _ := store.GetOrderByID(ctx, order.ID)
	assert.NotNil(t, stored.Completed)
}
