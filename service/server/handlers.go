package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nexalabs/nexamon/service/config"
	"github.com/nexalabs/nexamon/service/logging"
	"github.com/nexalabs/nexamon/service/monitor"
)

const (
	maxRequestBodySize  = 1 << 20 // 1MB - plenty for the control API
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleStatus returns the monitor's current snapshot.
// GET /api/v1/status
func handleStatus(ctrl Controller, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ctrl.Status(), http.StatusOK)
	})
}

// handleLogs returns the recent redacted log entries.
// GET /api/v1/logs
func handleLogs(ring *logging.Ring, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries := ring.Entries()
		writeJSON(w, map[string]interface{}{
			"logs":  entries,
			"count": len(entries),
		}, http.StatusOK)
	})
}

// handleStart starts the monitor loop.
// POST /api/v1/start
func handleStart(ctrl Controller, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ctrl.Start(); err != nil {
			if errors.Is(err, monitor.ErrAlreadyRunning) {
				writeError(w, "monitor is already running", http.StatusConflict)
				return
			}
			logger.Error("failed to start monitor", "error", err)
			writeError(w, "failed to start monitor", http.StatusInternalServerError)
			return
		}
		logger.Info("monitor started via API")
		writeJSON(w, map[string]string{"status": "started"}, http.StatusOK)
	})
}

// handleStop stops the monitor loop. The stop takes effect between ticks.
// POST /api/v1/stop
func handleStop(ctrl Controller, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ctrl.Stop(r.Context()); err != nil {
			if errors.Is(err, monitor.ErrNotRunning) {
				writeError(w, "monitor is not running", http.StatusConflict)
				return
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				writeError(w, "timed out waiting for the current tick to finish", http.StatusGatewayTimeout)
				return
			}
			logger.Error("failed to stop monitor", "error", err)
			writeError(w, "failed to stop monitor", http.StatusInternalServerError)
			return
		}
		logger.Info("monitor stopped via API")
		writeJSON(w, map[string]string{"status": "stopped"}, http.StatusOK)
	})
}

// configResponse is the configuration view with key material left out. Only
// the authority's public half is exposed.
type configResponse struct {
	Network                     string  `json:"network"`
	NetworkURL                  string  `json:"network_url"`
	MonitoredAccount            string  `json:"monitored_account"`
	AuthorityPublicKey          string  `json:"authority_public_key"`
	Mint                        string  `json:"mint"`
	BurnPercentage              float64 `json:"burn_percentage"`
	TreasuryPercentage          float64 `json:"treasury_percentage"`
	FeePercentage               float64 `json:"fee_percentage"`
	BurnAddress                 string  `json:"burn_address"`
	TreasuryAddress             string  `json:"treasury_address"`
	FeeAddress                  string  `json:"fee_address"`
	MinTransferAmount           uint64  `json:"min_transfer_amount"`
	SignatureFetchLimit         int     `json:"signature_fetch_limit"`
	ConfirmationTimeout         string  `json:"confirmation_timeout"`
	PollInterval                string  `json:"poll_interval"`
	ErrorRetryInterval          string  `json:"error_retry_interval"`
	LegPacingInterval           string  `json:"leg_pacing_interval"`
	TokenAccountRefreshInterval string  `json:"token_account_refresh_interval"`
	NATSEnabled                 bool    `json:"nats_enabled"`
	DatabaseEnabled             bool    `json:"database_enabled"`
}

// handleConfig returns the active configuration with secrets redacted.
// GET /api/v1/config
func handleConfig(cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, configResponse{
			Network:                     cfg.Network,
			NetworkURL:                  cfg.NetworkURL,
			MonitoredAccount:            cfg.MonitoredAccount.String(),
			AuthorityPublicKey:          cfg.AuthorityKey.PublicKey().String(),
			Mint:                        cfg.Mint.String(),
			BurnPercentage:              cfg.BurnPercentage,
			TreasuryPercentage:          cfg.TreasuryPercentage,
			FeePercentage:               cfg.FeePercentage,
			BurnAddress:                 cfg.BurnAddress.String(),
			TreasuryAddress:             cfg.TreasuryAddress.String(),
			FeeAddress:                  cfg.FeeAddress.String(),
			MinTransferAmount:           cfg.MinTransferAmount,
			SignatureFetchLimit:         cfg.SignatureFetchLimit,
			ConfirmationTimeout:         cfg.ConfirmationTimeout.String(),
			PollInterval:                cfg.PollInterval.String(),
			ErrorRetryInterval:          cfg.ErrorRetryInterval.String(),
			LegPacingInterval:           cfg.LegPacingInterval.String(),
			TokenAccountRefreshInterval: cfg.TokenAccountRefreshInterval.String(),
			NATSEnabled:                 cfg.NATSURL != "",
			DatabaseEnabled:             cfg.DatabaseURL != "",
		}, http.StatusOK)
	})
}

type simulateRequest struct {
	Amount uint64 `json:"amount"`
}

type simulateResponse struct {
	Amount         uint64       `json:"amount"`
	BelowThreshold bool         `json:"below_threshold"`
	Plan           monitor.Plan `json:"plan"`
}

// handleSimulate runs an amount through the redistribution engine and
// returns the resulting plan without submitting anything.
// POST /api/v1/simulate
func handleSimulate(ctrl Controller, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req simulateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Amount == 0 {
			writeError(w, "amount must be positive", http.StatusBadRequest)
			return
		}

		logger.Debug("simulating redistribution", "amount", req.Amount)
		writeJSON(w, simulateResponse{
			Amount:         req.Amount,
			BelowThreshold: req.Amount < cfg.MinTransferAmount,
			Plan:           ctrl.BuildPlan(req.Amount),
		}, http.StatusOK)
	})
}

// handleRedistributions returns recent redistribution history.
// GET /api/v1/redistributions?limit={n}
func handleRedistributions(store HistoryStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, "history store is not configured", http.StatusServiceUnavailable)
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				writeError(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		records, err := store.ListRecentRedistributions(r.Context(), limit)
		if err != nil {
			logger.Error("failed to list redistributions", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"redistributions": records,
			"count":           len(records),
		}, http.StatusOK)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are out; nothing sensible left to do.
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, map[string]string{"error": message}, status)
}
