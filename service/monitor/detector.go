package monitor

import (
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	sol "github.com/nexalabs/nexamon/service/solana"
)

// splTransferOpcode is the instruction discriminator of the SPL token
// program's Transfer instruction.
const splTransferOpcode = 3

// Classify decides whether a transaction record is a qualifying incoming
// transfer of the target mint into one of the tracked accounts. It is pure:
// no I/O, no clock.
//
// A record qualifies when it executed successfully, carries at least one SPL
// token program instruction with the transfer opcode, and its balance deltas
// (restricted to the target mint) show some tracked account's post-balance
// exceeding its pre-balance. The first such position wins; multi-credit
// transactions yield a single event.
//
// Returns (nil, nil) for records that simply don't qualify, and a
// *DetectionError for records that are structurally malformed.
func Classify(
	rec *sol.TransactionRecord,
	mint solana.PublicKey,
	tracked map[solana.PublicKey]bool,
) (*TransferEvent, error) {
	if rec.Failed {
		return nil, nil
	}
	if !hasTokenTransfer(rec) {
		return nil, nil
	}

	pre := make(map[uint16]uint64)
	for _, bal := range rec.PreTokenBalances {
		if !bal.Mint.Equals(mint) {
			continue
		}
		amount, err := balanceAmount(rec, bal.AccountIndex, bal.UiTokenAmount)
		if err != nil {
			return nil, err
		}
		pre[bal.AccountIndex] = amount
	}

	for _, bal := range rec.PostTokenBalances {
		if !bal.Mint.Equals(mint) {
			continue
		}
		post, err := balanceAmount(rec, bal.AccountIndex, bal.UiTokenAmount)
		if err != nil {
			return nil, err
		}
		before := pre[bal.AccountIndex]
		if post <= before {
			continue
		}

		if int(bal.AccountIndex) >= len(rec.AccountKeys) {
			return nil, &DetectionError{
				Signature: rec.Signature,
				Err:       fmt.Errorf("token balance references account index %d beyond %d keys", bal.AccountIndex, len(rec.AccountKeys)),
			}
		}
		destination := rec.AccountKeys[bal.AccountIndex]
		if !tracked[destination] {
			continue
		}

		return &TransferEvent{
			Signature:   rec.Signature,
			Destination: destination,
			Amount:      post - before,
			BlockTime:   rec.BlockTime,
		}, nil
	}

	return nil, nil
}

// hasTokenTransfer reports whether any instruction targets the SPL token
// program with the transfer opcode. Program indexes beyond the static account
// keys (lookup-table addresses) cannot be the token program for the transfers
// we care about, so they are skipped rather than rejected.
func hasTokenTransfer(rec *sol.TransactionRecord) bool {
	for _, ix := range rec.Instructions {
		if int(ix.ProgramIDIndex) >= len(rec.AccountKeys) {
			continue
		}
		if !rec.AccountKeys[ix.ProgramIDIndex].Equals(solana.TokenProgramID) {
			continue
		}
		if len(ix.Data) > 0 && ix.Data[0] == splTransferOpcode {
			return true
		}
	}
	return false
}

func balanceAmount(rec *sol.TransactionRecord, index uint16, amount *rpc.UiTokenAmount) (uint64, error) {
	if amount == nil {
		return 0, &DetectionError{
			Signature: rec.Signature,
			Err:       fmt.Errorf("token balance at index %d has no amount", index),
		}
	}
	raw := amount.Amount
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &DetectionError{
			Signature: rec.Signature,
			Err:       fmt.Errorf("token balance at index %d has malformed amount %q: %w", index, raw, err),
		}
	}
	return value, nil
}
