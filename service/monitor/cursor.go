package monitor

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Scanner tracks a per-account signature cursor and turns ledger history into
// batches of new signatures in chronological order.
//
// The first scan of an account only establishes a baseline: the newest
// signature becomes the cursor and nothing is emitted, so history predating
// the monitor is never redistributed. Cursors live in process memory; after a
// restart the baseline is re-established, which means transfers landing while
// the process was down are dropped rather than replayed.
type Scanner struct {
	ledger  Ledger
	limit   int
	cursors map[solana.PublicKey]solana.Signature
}

// NewScanner creates a scanner fetching at most limit signatures per scan.
func NewScanner(ledger Ledger, limit int) *Scanner {
	return &Scanner{
		ledger:  ledger,
		limit:   limit,
		cursors: make(map[solana.PublicKey]solana.Signature),
	}
}

// Scan returns the signatures that landed on account since the previous scan,
// oldest first, and advances the cursor to the newest one. A record equal to
// the stored cursor is never re-emitted. Errors are reported as *ScanError
// and leave the cursor untouched.
func (s *Scanner) Scan(ctx context.Context, account solana.PublicKey) ([]solana.Signature, error) {
	var until *solana.Signature
	last, seen := s.cursors[account]
	if seen {
		until = &last
	}

	sigs, err := s.ledger.ListSignatures(ctx, account, until, s.limit)
	if err != nil {
		return nil, &ScanError{Account: account, Err: err}
	}
	if len(sigs) == 0 {
		return nil, nil
	}

	// Results arrive newest first; the head is the new cursor position.
	newest := sigs[0].Signature

	if !seen {
		s.cursors[account] = newest
		return nil, nil
	}

	out := make([]solana.Signature, 0, len(sigs))
	for i := len(sigs) - 1; i >= 0; i-- {
		sig := sigs[i].Signature
		if sig.Equals(last) {
			continue
		}
		out = append(out, sig)
	}

	s.cursors[account] = newest
	return out, nil
}

// Cursor returns the stored cursor for an account, if any.
func (s *Scanner) Cursor(account solana.PublicKey) (solana.Signature, bool) {
	sig, ok := s.cursors[account]
	return sig, ok
}

// Forget drops the cursor for an account that is no longer tracked.
func (s *Scanner) Forget(account solana.PublicKey) {
	delete(s.cursors, account)
}
