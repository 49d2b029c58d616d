package monitor

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrAlreadyRunning is returned by Start when the loop is active.
	ErrAlreadyRunning = errors.New("monitor is already running")
	// ErrNotRunning is returned by Stop when there is no loop to stop.
	ErrNotRunning = errors.New("monitor is not running")
)

// ScanError is a failure to read ledger history for one account. The affected
// account is skipped for the tick and the next sleep uses the error retry
// interval.
type ScanError struct {
	Account solana.PublicKey
	Err     error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Account, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// DetectionError marks a single malformed transaction record. The record is
// dropped and the scan continues; it does not trigger the error retry interval.
type DetectionError struct {
	Signature solana.Signature
	Err       error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.Signature, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// BuildError is a failure to construct an unsigned transfer transaction.
// Terminal for the leg it belongs to.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build transfer: %v", e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SubmissionError is a failure to sign, send, or track one leg. Terminal for
// that leg only; subsequent legs still run. A confirmation timeout is an
// Outcome, not a SubmissionError.
type SubmissionError struct {
	Kind LegKind
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s leg: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
