package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"selfcare-backend/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(srv *httptest.Server) *Client {
	return NewClient(config.BillingConfig{
		URL:     srv.URL,
		APIKey:  "billing-key",
		Timeout: 2 * time.Second,
	})
}

func TestResolveNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/numbers/9991234567", r.URL.Path)
		assert.Equal(t, "billing-key", r.Header.Get("X-API-KEY"))
		json.NewEncoder(w).Encode(NumberInfo{Region: "spb", Operator: "tele2"})
	}))
	defer srv.Close()

	region, operator, err := testClient(srv).ResolveNumber(context.Background(), "9991234567")
	require.NoError(t, err)
	assert.Equal(t, "spb", region)
	assert.Equal(t, "tele2", operator)
}

func TestGetSubscriberProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscribers/9991234567/profile", r.URL.Path)
		json.NewEncoder(w).Encode(Profile{FIO: "Ivanov Ivan", DocID: "12345678"})
	}))
	defer srv.Close()

	profile, err := testClient(srv).GetSubscriberProfile(context.Background(), "9991234567")
	require.NoError(t, err)
	assert.Equal(t, "Ivanov Ivan", profile.FIO)
	assert.Equal(t, "12345678", profile.DocID)
}

func TestReplaceMsisdnKeepsCallLogOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"downstream"}`))
	}))
	defer srv.Close()

	callLog, err := testClient(srv).ReplaceMsisdn(context.Background(), "9991234567", "9997654321")
	require.Error(t, err)
	require.NotNil(t, callLog)
	assert.Contains(t, callLog.Request, "9997654321")
	assert.Contains(t, callLog.Response, "downstream")
}

func TestReplaceMsisdnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"result":1}`))
	}))
	defer srv.Close()

	callLog, err := testClient(srv).ReplaceMsisdn(context.Background(), "9991234567", "9997654321")
	require.NoError(t, err)
	assert.Contains(t, callLog.Response, `"result":1`)
	assert.NotEmpty(t, callLog.Sent)
}

func TestAvailableNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/numbers/pool", r.URL.Path)
		assert.Equal(t, "spb", r.URL.Query().Get("region"))
		json.NewEncoder(w).Encode(map[string][]string{"numbers": {"9990000001", "9990000002"}})
	}))
	defer srv.Close()

	numbers, err := testClient(srv).AvailableNumbers(context.Background(), "spb", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"9990000001", "9990000002"}, numbers)
}
