package styx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndUpdateDeposit(t *testing.T) {
	var gotUpdate UpdateDepositData
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/deposits":
			var req CreateDepositRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 0.005, req.BTCAmount)
			assert.Equal(t, "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7", req.STXReceiver)
			_, _ = w.Write([]byte(`{"id":"dep-1"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/deposits/dep-1":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotUpdate))
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	id, err := c.CreateDeposit(context.Background(), CreateDepositRequest{
		BTCAmount:   0.005,
		STXReceiver: "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
		BTCSender:   "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
	})
	require.NoError(t, err)
	assert.Equal(t, "dep-1", id)

	require.NoError(t, c.UpdateDepositStatus(context.Background(), id, UpdateDepositData{BTCTxID: "abc", Status: StatusBroadcast}))
	assert.Equal(t, UpdateDepositData{BTCTxID: "abc", Status: StatusBroadcast}, gotUpdate)
}

func TestNotFoundIsDistinguished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/deposits/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Deposit not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("database unavailable"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)

	_, err := c.GetDepositStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Deposit not found", err.Error())

	_, err = c.GetDepositStatusByTxID(context.Background(), "ff00")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "database unavailable", err.Error())
}

func TestPrepareSurfacesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Cannot spend UTXOs with inscriptions"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.PrepareTransaction(context.Background(), PrepareRequest{Amount: "0.001", FeePriority: FeeMedium})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "with inscriptions")
}

func TestAllDepositsHistoryDefaultsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("poolId"))
		_, _ = w.Write([]byte(`{"aggregateData":{"totalDeposits":3,"totalVolume":0.5,"uniqueUsers":2}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	h, err := c.GetAllDepositsHistory(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.AggregateData.TotalDeposits)
	assert.NotNil(t, h.RecentDeposits)
	assert.Empty(t, h.RecentDeposits)
}
