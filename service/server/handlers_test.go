package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexalabs/nexamon/service/config"
	"github.com/nexalabs/nexamon/service/db"
	"github.com/nexalabs/nexamon/service/logging"
	"github.com/nexalabs/nexamon/service/monitor"
)

type fakeController struct {
	startErr  error
	stopErr   error
	snap      monitor.Snapshot
	lastPlan  uint64
	planLegs  []monitor.Leg
}

func (f *fakeController) Start() error                  { return f.startErr }
func (f *fakeController) Stop(ctx context.Context) error { return f.stopErr }
func (f *fakeController) Status() monitor.Snapshot      { return f.snap }

func (f *fakeController) BuildPlan(amount uint64) monitor.Plan {
	f.lastPlan = amount
	return monitor.Plan{Amount: amount, Legs: f.planLegs}
}

type fakeHistory struct {
	records []*db.RedistributionRecord
	err     error
}

func (f *fakeHistory) ListRecentRedistributions(ctx context.Context, limit int) ([]*db.RedistributionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func testServerConfig() *config.Config {
	wallet := solana.NewWallet()
	return &config.Config{
		Network:                     "devnet",
		NetworkURL:                  "https://api.devnet.solana.com",
		MonitoredAccount:            wallet.PublicKey(),
		AuthorityKey:                wallet.PrivateKey,
		Mint:                        solana.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"),
		BurnPercentage:              5,
		TreasuryPercentage:          70,
		FeePercentage:               25,
		BurnAddress:                 solana.MustPublicKeyFromBase58("1nc1nerator11111111111111111111111111111111"),
		TreasuryAddress:             solana.NewWallet().PublicKey(),
		FeeAddress:                  solana.NewWallet().PublicKey(),
		MinTransferAmount:           1000,
		SignatureFetchLimit:         20,
		ConfirmationTimeout:         time.Minute,
		PollInterval:                10 * time.Second,
		ErrorRetryInterval:          30 * time.Second,
		LegPacingInterval:           time.Second,
		ConfirmationPollInterval:    time.Second,
		TokenAccountRefreshInterval: time.Hour,
	}
}

func newTestServer(ctrl Controller, ring *logging.Ring, store HistoryStore) *Server {
	if ring == nil {
		ring = logging.NewRing(100)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(":0", testServerConfig(), ctrl, ring, store, nil, logger)
}

func TestHandleStatus(t *testing.T) {
	now := time.Now()
	ctrl := &fakeController{
		snap: monitor.Snapshot{
			Running:               true,
			LastCheckedAt:         &now,
			TransactionsProcessed: 7,
		},
	}
	srv := newTestServer(ctrl, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap monitor.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Running)
	assert.Equal(t, uint64(7), snap.TransactionsProcessed)
}

func TestHandleStartStop(t *testing.T) {
	ctrl := &fakeController{}
	srv := newTestServer(ctrl, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/start", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	ctrl.startErr = monitor.ErrAlreadyRunning
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/start", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stop", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	ctrl.stopErr = monitor.ErrNotRunning
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stop", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleStartStop_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeController{}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/start", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleConfig_RedactsKeyMaterial(t *testing.T) {
	srv := newTestServer(&fakeController{}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, srv.cfg.AuthorityKey.String(), "private key must never appear in responses")
	assert.Contains(t, body, srv.cfg.AuthorityKey.PublicKey().String())
	assert.Contains(t, body, srv.cfg.MonitoredAccount.String())

	var resp configResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5.0, resp.BurnPercentage)
	assert.Equal(t, uint64(1000), resp.MinTransferAmount)
	assert.False(t, resp.NATSEnabled)
}

func TestHandleSimulate(t *testing.T) {
	ctrl := &fakeController{
		planLegs: []monitor.Leg{
			{Kind: monitor.LegBurn, Amount: 250},
			{Kind: monitor.LegTreasury, Amount: 3500},
			{Kind: monitor.LegFee, Amount: 1250},
		},
	}
	srv := newTestServer(ctrl, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/simulate", strings.NewReader(`{"amount": 5000}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp simulateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(5000), resp.Amount)
	assert.False(t, resp.BelowThreshold)
	assert.Len(t, resp.Plan.Legs, 3)
	assert.Equal(t, uint64(5000), ctrl.lastPlan)
}

func TestHandleSimulate_BelowThreshold(t *testing.T) {
	srv := newTestServer(&fakeController{}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/simulate", strings.NewReader(`{"amount": 500}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp simulateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.BelowThreshold)
}

func TestHandleSimulate_InvalidRequests(t *testing.T) {
	srv := newTestServer(&fakeController{}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/simulate", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/simulate", strings.NewReader(`{"amount": 0}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLogs(t *testing.T) {
	ring := logging.NewRing(100)
	logger := logging.NewLogger("info", io.Discard, ring)
	logger.Info("scanning account")
	logger.Error("rpc unavailable")

	srv := newTestServer(&fakeController{}, ring, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Logs  []logging.Entry `json:"logs"`
		Count int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "scanning account", resp.Logs[0].Message)
}

func TestHandleRedistributions(t *testing.T) {
	store := &fakeHistory{
		records: []*db.RedistributionRecord{
			{ID: 1, Signature: "sig-a", Amount: 5000},
			{ID: 2, Signature: "sig-b", Amount: 2000},
		},
	}
	srv := newTestServer(&fakeController{}, nil, store)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/redistributions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestHandleRedistributions_NoStore(t *testing.T) {
	srv := newTestServer(&fakeController{}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/redistributions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleRedistributions_InvalidLimit(t *testing.T) {
	srv := newTestServer(&fakeController{}, nil, &fakeHistory{})

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/redistributions?limit=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeController{}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&fakeController{}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
