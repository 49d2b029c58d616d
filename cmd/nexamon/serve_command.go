package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nexalabs/nexamon/service/config"
	"github.com/nexalabs/nexamon/service/db"
	"github.com/nexalabs/nexamon/service/logging"
	"github.com/nexalabs/nexamon/service/metrics"
	"github.com/nexalabs/nexamon/service/monitor"
	natspkg "github.com/nexalabs/nexamon/service/nats"
	"github.com/nexalabs/nexamon/service/server"
	sol "github.com/nexalabs/nexamon/service/solana"
)

const logBufferSize = 100

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the redistribution monitor and its HTTP control API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "paused",
				Usage: "Boot with the scan loop stopped; start it later via the API",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ring := logging.NewRing(logBufferSize)
	logger := logging.NewLogger(cfg.LogLevel, os.Stdout, ring)
	m := metrics.NewMetrics(nil)

	rpcClient := sol.NewRPCClient(cfg.NetworkURL)
	ledger := sol.NewClient(rpcClient, cfg.Network, m, logger)

	// The interface fields stay nil unless the integration is configured;
	// assigning a nil concrete pointer would defeat the nil checks downstream.
	var publisher monitor.Publisher
	if cfg.NATSURL != "" {
		jsPub, err := natspkg.NewJetStreamPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer jsPub.Close()
		publisher = jsPub
		logger.Info("NATS event publishing enabled")
	}

	var recorder monitor.Recorder
	var history server.HistoryStore
	if cfg.DatabaseURL != "" {
		store, err := db.NewStore(c.Context, cfg.DatabaseURL, m, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(c.Context); err != nil {
			return err
		}
		recorder = store
		history = store
		logger.Info("redistribution history store enabled")
	}

	mon := monitor.NewMonitor(cfg, ledger, publisher, recorder, m, logger)
	if !c.Bool("paused") {
		if err := mon.Start(); err != nil {
			return fmt.Errorf("start monitor: %w", err)
		}
	} else {
		logger.Info("monitor booted paused; start it via POST /api/v1/start")
	}

	srv := server.New(cfg.ServerAddr, cfg, mon, ring, history, m, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mon.Stop(shutdownCtx); err != nil && !errors.Is(err, monitor.ErrNotRunning) {
		logger.Warn("failed to stop monitor cleanly", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}
