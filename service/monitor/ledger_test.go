package monitor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	sol "github.com/nexalabs/nexamon/service/solana"
)

// mockLedger implements Ledger with overridable behavior per method.
// Unset methods return zero values.
type mockLedger struct {
	listSignatures func(ctx context.Context, account solana.PublicKey, until *solana.Signature, limit int) ([]*rpc.TransactionSignature, error)
	fetchTx        func(ctx context.Context, sig solana.Signature) (*sol.TransactionRecord, error)
	tokenAccounts  func(ctx context.Context, owner, mint solana.PublicKey) ([]solana.PublicKey, error)
	blockhash      func(ctx context.Context) (solana.Hash, error)
	send           func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	sigStatus      func(ctx context.Context, sig solana.Signature) (rpc.ConfirmationStatusType, error)
}

func (m *mockLedger) ListSignatures(ctx context.Context, account solana.PublicKey, until *solana.Signature, limit int) ([]*rpc.TransactionSignature, error) {
	if m.listSignatures == nil {
		return nil, nil
	}
	return m.listSignatures(ctx, account, until, limit)
}

func (m *mockLedger) FetchTransaction(ctx context.Context, sig solana.Signature) (*sol.TransactionRecord, error) {
	if m.fetchTx == nil {
		return nil, fmt.Errorf("no transaction for %s", sig)
	}
	return m.fetchTx(ctx, sig)
}

func (m *mockLedger) TokenAccountsByOwner(ctx context.Context, owner, mint solana.PublicKey) ([]solana.PublicKey, error) {
	if m.tokenAccounts == nil {
		return nil, nil
	}
	return m.tokenAccounts(ctx, owner, mint)
}

func (m *mockLedger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if m.blockhash == nil {
		return solana.Hash{1}, nil
	}
	return m.blockhash(ctx)
}

func (m *mockLedger) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if m.send == nil {
		return solana.Signature{1}, nil
	}
	return m.send(ctx, tx)
}

func (m *mockLedger) SignatureStatus(ctx context.Context, sig solana.Signature) (rpc.ConfirmationStatusType, error) {
	if m.sigStatus == nil {
		return rpc.ConfirmationStatusConfirmed, nil
	}
	return m.sigStatus(ctx, sig)
}
