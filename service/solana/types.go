package solana

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionRecord is a decoded ledger transaction in the form the detection
// pipeline consumes: execution outcome, compiled instructions, account keys,
// and the token balance deltas recorded by the runtime. This is our domain
// model, independent of the RPC response envelope.
type TransactionRecord struct {
	Signature         solana.Signature
	Slot              uint64
	BlockTime         time.Time
	Failed            bool
	AccountKeys       []solana.PublicKey
	Instructions      []solana.CompiledInstruction
	PreTokenBalances  []rpc.TokenBalance
	PostTokenBalances []rpc.TokenBalance
}
