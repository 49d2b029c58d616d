package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Submitter signs and sends a single transaction, then polls for its
// confirmation until the per-transaction timeout elapses.
type Submitter struct {
	ledger              Ledger
	signer              solana.PrivateKey
	confirmationTimeout time.Duration
	pollInterval        time.Duration
	logger              *slog.Logger
}

// SubmitResult is the terminal state of one submission. TimedOut carries the
// signature too: the transaction was sent and may still land on chain.
type SubmitResult struct {
	Outcome   Outcome
	Signature solana.Signature
}

// NewSubmitter creates a submitter signing with the given authority key.
func NewSubmitter(
	ledger Ledger,
	signer solana.PrivateKey,
	confirmationTimeout time.Duration,
	pollInterval time.Duration,
	logger *slog.Logger,
) *Submitter {
	return &Submitter{
		ledger:              ledger,
		signer:              signer,
		confirmationTimeout: confirmationTimeout,
		pollInterval:        pollInterval,
		logger:              logger,
	}
}

// Submit signs tx, sends it, and polls the signature status until it reaches
// confirmed or finalized, or the confirmation timeout expires. A timeout is
// reported through the Outcome, not as an error; errors cover signing,
// sending, and context cancellation.
func (s *Submitter) Submit(ctx context.Context, tx *solana.Transaction) (SubmitResult, error) {
	signerKey := s.signer.PublicKey()
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signerKey) {
			return &s.signer
		}
		return nil
	}); err != nil {
		return SubmitResult{Outcome: OutcomeFailed}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := s.ledger.SendTransaction(ctx, tx)
	if err != nil {
		return SubmitResult{Outcome: OutcomeFailed}, fmt.Errorf("send transaction: %w", err)
	}

	deadline := time.Now().Add(s.confirmationTimeout)
	for {
		status, err := s.ledger.SignatureStatus(ctx, sig)
		if err != nil {
			// Transient status failures don't abort the wait; the deadline does.
			s.logger.WarnContext(ctx, "confirmation status check failed",
				"signature", sig.String(),
				"error", err,
			)
		} else if status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized {
			return SubmitResult{Outcome: OutcomeConfirmed, Signature: sig}, nil
		}

		if time.Now().After(deadline) {
			s.logger.WarnContext(ctx, "transaction confirmation timed out",
				"signature", sig.String(),
				"timeout", s.confirmationTimeout,
			)
			return SubmitResult{Outcome: OutcomeTimedOut, Signature: sig}, nil
		}

		select {
		case <-ctx.Done():
			return SubmitResult{Outcome: OutcomeTimedOut, Signature: sig}, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}
