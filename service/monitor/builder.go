package monitor

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// BuildTransfer constructs an unsigned SPL token transfer moving amount from
// the source token account to the destination token account, authorized by
// the authority wallet. The instruction layout is the token program's
// Transfer: opcode byte 3 followed by the amount as a little-endian uint64,
// with accounts in the order [source (writable), destination (writable),
// authority (signer)].
func BuildTransfer(
	source solana.PublicKey,
	destination solana.PublicKey,
	authority solana.PublicKey,
	amount uint64,
	blockhash solana.Hash,
) (*solana.Transaction, error) {
	if source.IsZero() {
		return nil, &BuildError{Err: fmt.Errorf("source token account is unset")}
	}
	if destination.IsZero() {
		return nil, &BuildError{Err: fmt.Errorf("destination token account is unset")}
	}
	if authority.IsZero() {
		return nil, &BuildError{Err: fmt.Errorf("authority is unset")}
	}
	if amount == 0 {
		return nil, &BuildError{Err: fmt.Errorf("amount must be positive")}
	}

	data := make([]byte, 9)
	data[0] = splTransferOpcode
	binary.LittleEndian.PutUint64(data[1:], amount)

	ix := solana.NewInstruction(
		solana.TokenProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(source, true, false),
			solana.NewAccountMeta(destination, true, false),
			solana.NewAccountMeta(authority, false, true),
		},
		data,
	)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(authority),
	)
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	return tx, nil
}
