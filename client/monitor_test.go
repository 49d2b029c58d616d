package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Status(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/status", r.URL.Path)
		assert.Equal(t, "GET", r.Method)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"running":                true,
			"transactions_processed": 3,
			"recent_errors":          []interface{}{},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil)
	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, uint64(3), status.TransactionsProcessed)
}

func TestClient_StartStop(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, []string{"POST /api/v1/start", "POST /api/v1/stop"}, paths)
}

func TestClient_Simulate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]uint64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uint64(5000), req["amount"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"amount":          5000,
			"below_threshold": false,
			"plan": map[string]interface{}{
				"amount": 5000,
				"legs": []map[string]interface{}{
					{"kind": "burn", "amount": 250},
					{"kind": "treasury", "amount": 3500},
					{"kind": "fee", "amount": 1250},
				},
			},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil)
	sim, err := c.Simulate(context.Background(), 5000)
	require.NoError(t, err)
	assert.False(t, sim.BelowThreshold)
	require.Len(t, sim.Plan.Legs, 3)
	assert.Equal(t, uint64(3500), sim.Plan.Legs[1].Amount)
}

func TestClient_Redistributions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"redistributions": []map[string]interface{}{
				{"id": 1, "signature": "sig-a", "amount": 5000},
			},
			"count": 1,
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil)
	records, err := c.Redistributions(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sig-a", records[0].Signature)
}

func TestClient_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "monitor is already running"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil)
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitor is already running")
	assert.Contains(t, err.Error(), "409")
}
