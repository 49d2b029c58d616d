package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedTestTx(t *testing.T, wallet *solana.Wallet) *solana.Transaction {
	t.Helper()
	tx, err := BuildTransfer(
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
		wallet.PublicKey(),
		100,
		solana.Hash{0xBB},
	)
	require.NoError(t, err)
	return tx
}

func TestSubmitter_Confirmed(t *testing.T) {
	wallet := solana.NewWallet()
	sentSig := solana.Signature{0x01}

	var statusCalls atomic.Int32
	ledger := &mockLedger{
		send: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			require.NotEmpty(t, tx.Signatures, "transaction must be signed before sending")
			return sentSig, nil
		},
		sigStatus: func(ctx context.Context, sig solana.Signature) (rpc.ConfirmationStatusType, error) {
			// Not visible on the first poll, confirmed on the second.
			if statusCalls.Add(1) == 1 {
				return "", nil
			}
			return rpc.ConfirmationStatusConfirmed, nil
		},
	}
	submitter := NewSubmitter(ledger, wallet.PrivateKey, time.Second, time.Millisecond, discardLogger())

	res, err := submitter.Submit(context.Background(), signedTestTx(t, wallet))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, sentSig, res.Signature)
}

func TestSubmitter_FinalizedCountsAsConfirmed(t *testing.T) {
	wallet := solana.NewWallet()
	ledger := &mockLedger{
		sigStatus: func(ctx context.Context, sig solana.Signature) (rpc.ConfirmationStatusType, error) {
			return rpc.ConfirmationStatusFinalized, nil
		},
	}
	submitter := NewSubmitter(ledger, wallet.PrivateKey, time.Second, time.Millisecond, discardLogger())

	res, err := submitter.Submit(context.Background(), signedTestTx(t, wallet))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
}

func TestSubmitter_Timeout(t *testing.T) {
	wallet := solana.NewWallet()
	sentSig := solana.Signature{0x02}

	ledger := &mockLedger{
		send: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			return sentSig, nil
		},
		sigStatus: func(ctx context.Context, sig solana.Signature) (rpc.ConfirmationStatusType, error) {
			return "", nil
		},
	}
	submitter := NewSubmitter(ledger, wallet.PrivateKey, 10*time.Millisecond, time.Millisecond, discardLogger())

	res, err := submitter.Submit(context.Background(), signedTestTx(t, wallet))
	require.NoError(t, err, "a confirmation timeout is an outcome, not an error")
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, sentSig, res.Signature, "the signature is kept; the transaction may still land")
}

func TestSubmitter_StatusErrorsDontAbortWait(t *testing.T) {
	wallet := solana.NewWallet()

	var statusCalls atomic.Int32
	ledger := &mockLedger{
		sigStatus: func(ctx context.Context, sig solana.Signature) (rpc.ConfirmationStatusType, error) {
			if statusCalls.Add(1) < 3 {
				return "", errors.New("rpc flake")
			}
			return rpc.ConfirmationStatusConfirmed, nil
		},
	}
	submitter := NewSubmitter(ledger, wallet.PrivateKey, time.Second, time.Millisecond, discardLogger())

	res, err := submitter.Submit(context.Background(), signedTestTx(t, wallet))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
}

func TestSubmitter_SendError(t *testing.T) {
	wallet := solana.NewWallet()
	ledger := &mockLedger{
		send: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			return solana.Signature{}, errors.New("node rejected transaction")
		},
	}
	submitter := NewSubmitter(ledger, wallet.PrivateKey, time.Second, time.Millisecond, discardLogger())

	res, err := submitter.Submit(context.Background(), signedTestTx(t, wallet))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}
