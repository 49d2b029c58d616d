package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/nexalabs/nexamon/service/metrics"
)

// Client provides the ledger operations the redistribution pipeline consumes.
// It wraps the RPC client with domain-specific operations and decodes raw RPC
// envelopes into TransactionRecord.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet-beta", rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet-beta",
// "devnet", or RPC hostname). If m is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

func (c *Client) record(method string, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		if strings.Contains(err.Error(), "429") {
			c.metrics.RecordRateLimitHit(c.endpoint)
		}
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// ListSignatures fetches up to limit transaction signatures for an account,
// newest first. When until is non-nil, only signatures strictly newer than it
// are returned.
func (c *Client) ListSignatures(
	ctx context.Context,
	account solana.PublicKey,
	until *solana.Signature,
	limit int,
) ([]*rpc.TransactionSignature, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	}
	if until != nil {
		opts.Until = *until
	}

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, account, opts)
	c.record("GetSignaturesForAddress", err, start)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"account", account.String(),
		"count", len(signatures),
		"until", until,
	)
	return signatures, nil
}

// FetchTransaction fetches and decodes a transaction by signature.
// Versioned transactions are requested first; on parse errors the call is
// retried without version support for legacy transactions (some RPC nodes
// still return the old shape).
func (c *Client) FetchTransaction(ctx context.Context, sig solana.Signature) (*TransactionRecord, error) {
	maxVersion := uint64(0)
	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	c.record("GetTransaction", err, start)

	if err != nil && strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
		c.logger.WarnContext(ctx, "could not parse as versioned tx, retrying as legacy",
			"signature", sig.String(),
		)
		start = time.Now()
		result, err = c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding: solana.EncodingBase64,
		})
		c.record("GetTransaction", err, start)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("transaction %s not available", sig)
	}

	return recordFromResult(sig, result)
}

// recordFromResult decodes a GetTransactionResult into a TransactionRecord.
func recordFromResult(sig solana.Signature, result *rpc.GetTransactionResult) (*TransactionRecord, error) {
	rec := &TransactionRecord{
		Signature: sig,
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		rec.BlockTime = result.BlockTime.Time()
	}
	if result.Meta != nil {
		rec.Failed = result.Meta.Err != nil
		rec.PreTokenBalances = result.Meta.PreTokenBalances
		rec.PostTokenBalances = result.Meta.PostTokenBalances
	}

	if result.Transaction == nil {
		return nil, fmt.Errorf("transaction %s has no payload", sig)
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	rec.AccountKeys = tx.Message.AccountKeys
	rec.Instructions = tx.Message.Instructions

	return rec, nil
}

// TokenAccountsByOwner returns the token account addresses the owner holds
// for the given mint.
func (c *Client) TokenAccountsByOwner(
	ctx context.Context,
	owner solana.PublicKey,
	mint solana.PublicKey,
) ([]solana.PublicKey, error) {
	start := time.Now()
	result, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: &mint},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed},
	)
	c.record("GetTokenAccountsByOwner", err, start)
	if err != nil {
		return nil, err
	}

	accounts := make([]solana.PublicKey, 0, len(result.Value))
	for _, acct := range result.Value {
		accounts = append(accounts, acct.Pubkey)
	}
	return accounts, nil
}

// LatestBlockhash returns a recent blockhash for transaction construction.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	c.record("GetLatestBlockhash", err, start)
	if err != nil {
		return solana.Hash{}, err
	}
	if result == nil || result.Value == nil {
		return solana.Hash{}, fmt.Errorf("empty blockhash response")
	}
	return result.Value.Blockhash, nil
}

// SendTransaction submits a signed transaction to the network.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	c.record("SendTransaction", err, start)
	if err != nil {
		return solana.Signature{}, err
	}

	c.logger.InfoContext(ctx, "transaction sent", "signature", sig.String())
	return sig, nil
}

// SignatureStatus returns the confirmation status for a signature. An empty
// status means the network has not observed the transaction yet.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (rpc.ConfirmationStatusType, error) {
	start := time.Now()
	result, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	c.record("GetSignatureStatuses", err, start)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return "", nil
	}
	return result.Value[0].ConfirmationStatus, nil
}
