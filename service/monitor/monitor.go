package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/nexalabs/nexamon/service/config"
	"github.com/nexalabs/nexamon/service/db"
	"github.com/nexalabs/nexamon/service/metrics"
	natspkg "github.com/nexalabs/nexamon/service/nats"
)

// Publisher is the slice of the event publisher the monitor consumes.
// Satisfied by natspkg.Publisher implementations.
type Publisher interface {
	PublishRedistribution(ctx context.Context, event *natspkg.RedistributionEvent) error
}

// Recorder is the slice of the history store the monitor consumes.
// Satisfied by *db.Store.
type Recorder interface {
	RecordRedistribution(ctx context.Context, rec *db.RedistributionRecord) error
}

// Monitor owns the redistribution pipeline: one worker loop that scans the
// monitored wallet and its token accounts, detects qualifying incoming
// transfers, and executes the three-leg redistribution for each. All
// operational state lives here and is exposed only through Status snapshots.
type Monitor struct {
	cfg       *config.Config
	ledger    Ledger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher Publisher
	recorder  Recorder

	scanner   *Scanner
	submitter *Submitter
	status    *status

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// Loop-local state, touched only by the worker goroutine (and by the
	// constructor before it starts).
	tracked          map[solana.PublicKey]bool
	trackedList      []solana.PublicKey
	destTokenAccount map[solana.PublicKey]solana.PublicKey
	nextRefresh      time.Time
}

// NewMonitor wires the pipeline. publisher and recorder may be nil; the
// corresponding integrations are then skipped. If m is nil, no metrics are
// recorded.
func NewMonitor(
	cfg *config.Config,
	ledger Ledger,
	publisher Publisher,
	recorder Recorder,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		cfg:       cfg,
		ledger:    ledger,
		logger:    logger,
		metrics:   m,
		publisher: publisher,
		recorder:  recorder,
		scanner:   NewScanner(ledger, cfg.SignatureFetchLimit),
		submitter: NewSubmitter(ledger, cfg.AuthorityKey, cfg.ConfirmationTimeout, cfg.ConfirmationPollInterval, logger),
		status:    newStatus(),

		destTokenAccount: make(map[solana.PublicKey]solana.PublicKey),
	}
}

// Start launches the worker loop. Returns ErrAlreadyRunning if it is active.
func (m *Monitor) Start() error {
	if err := ValidatePercentages(m.cfg.Percentages()); err != nil {
		return fmt.Errorf("invalid redistribution percentages: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.running = true
	m.status.setRunning(true)

	go m.run(m.stopCh, m.doneCh)

	m.logger.Info("monitor started",
		"monitored_account", m.cfg.MonitoredAccount.String(),
		"mint", m.cfg.Mint.String(),
		"poll_interval", m.cfg.PollInterval,
	)
	return nil
}

// Stop signals the worker loop to exit and waits for it. The signal is only
// honored between ticks; a tick in flight always completes. Returns
// ErrNotRunning if the loop is not active.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	close(m.stopCh)
	done := m.doneCh
	m.running = false
	m.mu.Unlock()

	m.status.setRunning(false)

	select {
	case <-done:
		m.logger.Info("monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a point-in-time snapshot of the monitor's state.
func (m *Monitor) Status() Snapshot {
	return m.status.snapshot()
}

// BuildPlan allocates an amount across the configured legs in submission
// order (burn, treasury, fee). Exposed for the simulation endpoint.
func (m *Monitor) BuildPlan(amount uint64) Plan {
	shares := Split(amount, m.cfg.Percentages())
	return Plan{
		Amount: amount,
		Legs: []Leg{
			{Kind: LegBurn, Destination: m.cfg.BurnAddress, Amount: shares[0]},
			{Kind: LegTreasury, Destination: m.cfg.TreasuryAddress, Amount: shares[1]},
			{Kind: LegFee, Destination: m.cfg.FeeAddress, Amount: shares[2]},
		},
	}
}

func (m *Monitor) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ctx := context.Background()

	for {
		hadErrors := m.tick(ctx)

		wait := m.cfg.PollInterval
		if hadErrors {
			wait = m.cfg.ErrorRetryInterval
		}

		select {
		case <-stopCh:
			return
		case <-time.After(wait):
		}
	}
}

// tick runs one full scan over all tracked accounts. It reports whether any
// transient error occurred, which switches the next sleep to the error retry
// interval.
func (m *Monitor) tick(ctx context.Context) bool {
	start := time.Now()
	hadErrors := false

	if m.tracked == nil || !time.Now().Before(m.nextRefresh) {
		if err := m.refreshTrackedAccounts(ctx); err != nil {
			m.reportError(err)
			hadErrors = true
		}
	}

	for _, account := range m.trackedList {
		events, scanFailed := m.scanAccount(ctx, account)
		hadErrors = hadErrors || scanFailed
		for _, ev := range events {
			if m.handleEvent(ctx, ev) {
				hadErrors = true
			}
		}
	}

	m.status.markChecked(time.Now())
	if m.metrics != nil {
		tickStatus := "ok"
		if hadErrors {
			tickStatus = "error"
		}
		m.metrics.RecordTick(tickStatus, time.Since(start).Seconds())
	}
	return hadErrors
}

// refreshTrackedAccounts rebuilds the set of accounts to scan (the monitored
// wallet plus its token accounts for the mint) and re-resolves the token
// accounts of the redistribution destinations. On failure the previous sets
// stay in effect and the refresh is retried after the error retry interval.
func (m *Monitor) refreshTrackedAccounts(ctx context.Context) error {
	accounts, err := m.ledger.TokenAccountsByOwner(ctx, m.cfg.MonitoredAccount, m.cfg.Mint)
	if err != nil {
		m.nextRefresh = time.Now().Add(m.cfg.ErrorRetryInterval)
		return &ScanError{Account: m.cfg.MonitoredAccount, Err: fmt.Errorf("refresh token accounts: %w", err)}
	}

	next := map[solana.PublicKey]bool{m.cfg.MonitoredAccount: true}
	list := []solana.PublicKey{m.cfg.MonitoredAccount}
	for _, account := range accounts {
		if next[account] {
			continue
		}
		next[account] = true
		list = append(list, account)
		if !m.tracked[account] {
			m.logger.Info("tracking token account", "account", account.String())
		}
	}
	for old := range m.tracked {
		if !next[old] {
			m.logger.Info("token account no longer tracked", "account", old.String())
			m.scanner.Forget(old)
		}
	}
	m.tracked = next
	m.trackedList = list

	for _, owner := range []solana.PublicKey{m.cfg.BurnAddress, m.cfg.TreasuryAddress, m.cfg.FeeAddress} {
		accts, err := m.ledger.TokenAccountsByOwner(ctx, owner, m.cfg.Mint)
		if err != nil {
			// Keep whatever mapping we had; the leg fails cleanly if none exists.
			m.logger.Warn("failed to resolve destination token account",
				"owner", owner.String(),
				"error", err,
			)
			continue
		}
		if len(accts) == 0 {
			m.logger.Warn("destination has no token account for mint", "owner", owner.String())
			continue
		}
		m.destTokenAccount[owner] = accts[0]
	}

	m.nextRefresh = time.Now().Add(m.cfg.TokenAccountRefreshInterval)
	if m.metrics != nil {
		m.metrics.SetTrackedTokenAccounts(len(list) - 1)
	}
	return nil
}

// scanAccount returns the qualifying transfer events that landed on one
// account since its last scan. Malformed records are dropped with a
// DetectionError; fetch failures count as transient.
func (m *Monitor) scanAccount(ctx context.Context, account solana.PublicKey) ([]*TransferEvent, bool) {
	sigs, err := m.scanner.Scan(ctx, account)
	if err != nil {
		m.reportError(err)
		if m.metrics != nil {
			m.metrics.RecordScanError(account.String())
		}
		return nil, true
	}

	hadErrors := false
	var events []*TransferEvent
	for _, sig := range sigs {
		rec, err := m.ledger.FetchTransaction(ctx, sig)
		if err != nil {
			m.reportError(&ScanError{Account: account, Err: err})
			if m.metrics != nil {
				m.metrics.RecordScanError(account.String())
			}
			hadErrors = true
			continue
		}

		ev, err := Classify(rec, m.cfg.Mint, m.tracked)
		if err != nil {
			// Malformed record: dropped for good, not retried.
			m.reportError(err)
			continue
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events, hadErrors
}

// handleEvent runs the redistribution for one detected transfer: threshold
// check, exact-sum split, then the legs strictly in order with pacing between
// them. Partial failures are recorded and never rolled back.
func (m *Monitor) handleEvent(ctx context.Context, ev *TransferEvent) bool {
	if m.metrics != nil {
		m.metrics.RecordTransferDetected(ev.Destination.String())
	}
	m.logger.Info("incoming transfer detected",
		"signature", ev.Signature.String(),
		"destination", ev.Destination.String(),
		"amount", ev.Amount,
	)

	if ev.Amount < m.cfg.MinTransferAmount {
		m.logger.Debug("transfer below redistribution threshold",
			"signature", ev.Signature.String(),
			"amount", ev.Amount,
			"threshold", m.cfg.MinTransferAmount,
		)
		if m.metrics != nil {
			m.metrics.RecordTransferSkipped("below_threshold")
		}
		return false
	}

	plan := m.BuildPlan(ev.Amount)
	results := make([]LegResult, 0, len(plan.Legs))
	hadErrors := false
	executed := false

	for _, leg := range plan.Legs {
		if leg.Amount == 0 {
			results = append(results, LegResult{Leg: leg, Outcome: OutcomeSkipped})
			continue
		}
		if executed {
			m.sleep(ctx, m.cfg.LegPacingInterval)
		}
		executed = true

		res := m.executeLeg(ctx, ev, leg)
		if res.Err != nil {
			m.reportError(res.Err)
			hadErrors = true
		} else if res.Outcome == OutcomeTimedOut {
			// A timeout is an outcome, not a pipeline error, but it still
			// belongs in the status error list.
			m.status.recordError(time.Now(), fmt.Sprintf("%s leg timed out waiting for confirmation (signature %s)", leg.Kind, res.Signature))
		}
		results = append(results, res)
	}

	now := time.Now()
	m.status.recordProcessed(ProcessedTransaction{
		Signature:   ev.Signature.String(),
		Destination: ev.Destination.String(),
		Amount:      ev.Amount,
		ProcessedAt: now,
	})
	if m.metrics != nil {
		redistStatus := "complete"
		for _, res := range results {
			if res.Outcome == OutcomeFailed || res.Outcome == OutcomeTimedOut {
				redistStatus = "partial"
				break
			}
		}
		m.metrics.RecordRedistribution(redistStatus)
	}

	m.publish(ctx, ev, results, now)
	m.record(ctx, ev, results, now)
	return hadErrors
}

// executeLeg takes one leg through build, sign, send, and confirmation.
func (m *Monitor) executeLeg(ctx context.Context, ev *TransferEvent, leg Leg) LegResult {
	start := time.Now()
	result := LegResult{Leg: leg}

	destAccount, ok := m.destTokenAccount[leg.Destination]
	if !ok {
		result.Outcome = OutcomeFailed
		result.Err = &BuildError{Err: fmt.Errorf("no token account resolved for destination %s", leg.Destination)}
		m.finishLeg(ctx, &result, start)
		return result
	}

	blockhash, err := m.ledger.LatestBlockhash(ctx)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = &SubmissionError{Kind: leg.Kind, Err: fmt.Errorf("fetch blockhash: %w", err)}
		m.finishLeg(ctx, &result, start)
		return result
	}

	tx, err := BuildTransfer(ev.Destination, destAccount, m.cfg.AuthorityKey.PublicKey(), leg.Amount, blockhash)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		m.finishLeg(ctx, &result, start)
		return result
	}

	sub, err := m.submitter.Submit(ctx, tx)
	result.Outcome = sub.Outcome
	result.Signature = sub.Signature
	if err != nil {
		result.Err = &SubmissionError{Kind: leg.Kind, Err: err}
	}
	m.finishLeg(ctx, &result, start)
	return result
}

func (m *Monitor) finishLeg(ctx context.Context, result *LegResult, start time.Time) {
	if m.metrics != nil {
		m.metrics.RecordLeg(string(result.Leg.Kind), string(result.Outcome), result.Leg.Amount, time.Since(start).Seconds())
	}
	attrs := []any{
		"kind", string(result.Leg.Kind),
		"destination", result.Leg.Destination.String(),
		"amount", result.Leg.Amount,
		"outcome", string(result.Outcome),
	}
	if !result.Signature.IsZero() {
		attrs = append(attrs, "signature", result.Signature.String())
	}
	switch result.Outcome {
	case OutcomeConfirmed:
		m.logger.InfoContext(ctx, "redistribution leg confirmed", attrs...)
	default:
		m.logger.WarnContext(ctx, "redistribution leg did not confirm", attrs...)
	}
}

// publish sends the processed event to the publisher, if one is configured.
// Publish failures are logged and never affect the pipeline.
func (m *Monitor) publish(ctx context.Context, ev *TransferEvent, results []LegResult, processedAt time.Time) {
	if m.publisher == nil {
		return
	}
	event := &natspkg.RedistributionEvent{
		Signature:   ev.Signature.String(),
		Destination: ev.Destination.String(),
		Amount:      ev.Amount,
		BlockTime:   ev.BlockTime,
		ProcessedAt: processedAt,
		Legs:        make([]natspkg.LegOutcome, 0, len(results)),
	}
	for _, res := range results {
		leg := natspkg.LegOutcome{
			Kind:        string(res.Leg.Kind),
			Destination: res.Leg.Destination.String(),
			Amount:      res.Leg.Amount,
			Outcome:     string(res.Outcome),
		}
		if !res.Signature.IsZero() {
			leg.Signature = res.Signature.String()
		}
		if res.Err != nil {
			leg.Error = res.Err.Error()
		}
		event.Legs = append(event.Legs, leg)
	}
	if err := m.publisher.PublishRedistribution(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "failed to publish redistribution event",
			"signature", ev.Signature.String(),
			"error", err,
		)
	}
}

// record writes the processed event to the history store, if one is
// configured. Store failures are logged and never affect the pipeline.
func (m *Monitor) record(ctx context.Context, ev *TransferEvent, results []LegResult, processedAt time.Time) {
	if m.recorder == nil {
		return
	}
	rec := &db.RedistributionRecord{
		Signature:   ev.Signature.String(),
		Destination: ev.Destination.String(),
		Amount:      ev.Amount,
		BlockTime:   ev.BlockTime,
		ProcessedAt: processedAt,
		Legs:        make([]db.LegRecord, 0, len(results)),
	}
	for _, res := range results {
		leg := db.LegRecord{
			Kind:        string(res.Leg.Kind),
			Destination: res.Leg.Destination.String(),
			Amount:      res.Leg.Amount,
			Outcome:     string(res.Outcome),
		}
		if !res.Signature.IsZero() {
			leg.Signature = res.Signature.String()
		}
		if res.Err != nil {
			leg.Error = res.Err.Error()
		}
		rec.Legs = append(rec.Legs, leg)
	}
	if err := m.recorder.RecordRedistribution(ctx, rec); err != nil {
		m.logger.WarnContext(ctx, "failed to record redistribution history",
			"signature", ev.Signature.String(),
			"error", err,
		)
	}
}

func (m *Monitor) reportError(err error) {
	m.logger.Error("pipeline error", "error", err)
	m.status.recordError(time.Now(), err.Error())
}

func (m *Monitor) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
