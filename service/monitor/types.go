package monitor

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	sol "github.com/nexalabs/nexamon/service/solana"
)

// Ledger is the set of chain operations the redistribution pipeline consumes.
// It is satisfied by *solana.Client and mocked in tests.
type Ledger interface {
	ListSignatures(
		ctx context.Context,
		account solana.PublicKey,
		until *solana.Signature,
		limit int,
	) ([]*rpc.TransactionSignature, error)

	FetchTransaction(ctx context.Context, sig solana.Signature) (*sol.TransactionRecord, error)

	TokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		mint solana.PublicKey,
	) ([]solana.PublicKey, error)

	LatestBlockhash(ctx context.Context) (solana.Hash, error)

	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	SignatureStatus(ctx context.Context, sig solana.Signature) (rpc.ConfirmationStatusType, error)
}

// TransferEvent is a qualifying incoming transfer of the tracked mint into one
// of the monitored token accounts.
type TransferEvent struct {
	Signature   solana.Signature
	Destination solana.PublicKey
	Amount      uint64
	BlockTime   time.Time
}

// LegKind identifies one leg of a redistribution.
type LegKind string

const (
	LegBurn     LegKind = "burn"
	LegTreasury LegKind = "treasury"
	LegFee      LegKind = "fee"
)

// Leg is one planned outgoing transfer. Destination is the owning wallet; the
// concrete token account is resolved at execution time.
type Leg struct {
	Kind        LegKind          `json:"kind"`
	Destination solana.PublicKey `json:"destination"`
	Amount      uint64           `json:"amount"`
}

// Plan is the exact-sum allocation of an incoming amount across the three
// redistribution legs, in submission order.
type Plan struct {
	Amount uint64 `json:"amount"`
	Legs   []Leg  `json:"legs"`
}

// Outcome is the terminal state of one leg.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// LegResult records how one leg ended. Signature is set once the transaction
// was sent, including for timed out legs (it may still land).
type LegResult struct {
	Leg       Leg
	Outcome   Outcome
	Signature solana.Signature
	Err       error
}
