package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"selfcare-backend/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) config.SMSConfig {
	return config.SMSConfig{
		URL:         url,
		AccessKey:   "test-key",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}
}

func TestSendSuccess(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(sendResponse{Result: 1})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	ok, _, err := client.Send(context.Background(), "9991234567", "tele2", "code 1234")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "9991234567", got.Phone)
	assert.Equal(t, "code 1234", got.Text)
}

func TestSendRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(sendResponse{Result: 1})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	ok, _, err := client.Send(context.Background(), "9991234567", "", "hello")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestSendGatewayRejectionIsFinal(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(sendResponse{Result: 0, Message: "unknown subscriber"})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	ok, logText, err := client.Send(context.Background(), "0000000000", "", "hello")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "unknown subscriber", logText)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "rejections must not be retried")
}

func TestSendUnreachableGateway(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:1"))
	ok, _, err := client.Send(context.Background(), "9991234567", "", "hello")
	require.NoError(t, err)
	assert.False(t, ok)
}
