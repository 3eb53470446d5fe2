package service

import (
	"context"
	"testing"

	"selfcare-backend/internal/models"
	"selfcare-backend/internal/texts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixPayFixture() (*FixPayService, *memStore, *fakeSMS) {
	store := newMemStore()
	sms := &fakeSMS{ok: true}
	resolver := &fakeResolver{
		region:   "spb",
		operator: "sbt",
		operators: map[string]string{
			"9161112233": "mts",
			"9051112233": "beeline",
			"4951112233": "rostelecom",
		},
	}
	svc := NewFixPayService(newTestEngine(store), newTestConfirmer(store, sms), resolver)
	return svc, store, sms
}

func TestInfoOffNetOperatorCard(t *testing.T) {
	svc, _, _ := newFixPayFixture()

	info, err := svc.Info(context.Background(), "9161112233")
	require.NoError(t, err)
	assert.Contains(t, info.Message, "MTS")
	assert.Equal(t, "8 800 250 0890", info.Phone)
	assert.Contains(t, info.Info, "+7 (916) 111-22-33")
	assert.Empty(t, info.Error)
}

func TestInfoHomeNetwork(t *testing.T) {
	svc, _, _ := newFixPayFixture()

	info, err := svc.Info(context.Background(), "9991112233")
	require.NoError(t, err)
	assert.Contains(t, info.Error, "served by our network")
	assert.Empty(t, info.Message)
}

func TestInfoUnknownOperatorFallsBack(t *testing.T) {
	svc, _, _ := newFixPayFixture()

	info, err := svc.Info(context.Background(), "4951112233")
	require.NoError(t, err)
	assert.Equal(t, "Contact your operator's support service", info.Message)
	assert.Empty(t, info.Phone)
}

func TestMovePayOffNet(t *testing.T) {
	svc, store, _ := newFixPayFixture()

	result, err := svc.MovePay(context.Background(), "9990001122", "9051112233")
	require.NoError(t, err)
	require.NotNil(t, result.Info)
	assert.Contains(t, result.Info.Message, "Beeline")

	stored := store.orders[result.Order.ID]
	assert.Equal(t, "beeline", stored.Field("operator"))
	assert.Nil(t, stored.Completed)
}

func TestMovePayOnNetHasNoInfo(t *testing.T) {
	svc, _, _ := newFixPayFixture()

	result, err := svc.MovePay(context.Background(), "9990001122", "9993334455")
	require.NoError(t, err)
	assert.Nil(t, result.Info)
}

func TestMoveFlowEndToEnd(t *testing.T) {
	svc, store, _ := newFixPayFixture()
	ctx := context.Background()

	order, err := svc.Move(ctx, "9990001122", "9161112233",
		map[string]any{"amount": "500"})
	require.NoError(t, err)

	err = svc.MoveDetails(ctx, order.ID, "9990001122",
		map[string]any{"dst_number": "9993334455"}, "user@example.com")
	require.NoError(t, err)

	stored := store.orders[order.ID]
	assert.Equal(t, "sbt", stored.Field("dst_number_operator"))

	require.NoError(t, svc.Sign(ctx, models.KindFixPayMove, order.ID, "9990001122", "c2ln"))

	issue, err := svc.Confirm(ctx, models.KindFixPayMove, order.ID, "9990001122", "9990001122")
	require.NoError(t, err)
	require.True(t, issue.Delivered)

	code := store.liveCode(models.KindFixPayMove, order.ID)
	message, err := svc.Finalize(ctx, models.KindFixPayMove, order.ID, "9990001122", code)
	require.NoError(t, err)
	assert.Equal(t, texts.FixPayCompleted, message)
	assert.NotNil(t, store.orders[order.ID].Completed)
}

func TestFinalizeWrongCodeResendsFreshOne(t *testing.T) {
	svc, store, sms := newFixPayFixture()
	ctx := context.Background()

	order, err := svc.Refund(ctx, "9990001122", "user@example.com", nil)
	require.NoError(t, err)

	err = svc.RefundDetails(ctx, order.ID, "9990001122",
		map[string]any{"pan": "4111111111111111", "holder": "IVAN IVANOV"})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, models.KindFixPayRefund, order.ID, "9990001122", "9990001122")
	require.NoError(t, err)
	first := store.liveCode(models.KindFixPayRefund, order.ID)

	_, err = svc.Finalize(ctx, models.KindFixPayRefund, order.ID, "9990001122", "0000")
	var userError *UserError
	require.ErrorAs(t, err, &userError)
	assert.Contains(t, userError.Message, texts.FixPayWrongCode)
	assert.Len(t, sms.calls, 2, "a fresh code goes out with the rejection")

	second := store.liveCode(models.KindFixPayRefund, order.ID)
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)

	// The old code died with the resend; the fresh one completes the order.
	_, err = svc.Finalize(ctx, models.KindFixPayRefund, order.ID, "9990001122", first)
	require.ErrorAs(t, err, &userError)

	second = store.liveCode(models.KindFixPayRefund, order.ID)
	message, err := svc.Finalize(ctx, models.KindFixPayRefund, order.ID, "9990001122", second)
	require.NoError(t, err)
	assert.Equal(t, texts.FixPayCompleted, message)
}
