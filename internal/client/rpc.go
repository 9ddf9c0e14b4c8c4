package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-token-manager/internal/solana"
)

// Defaults for RPC confirmation.
const (
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// ErrConfirmTimeout is returned when a sent transaction does not reach the
// requested commitment in time.
var ErrConfirmTimeout = errors.New("transaction confirmation timed out")

// RPCSubmitter sends transactions over JSON-RPC and confirms them over a
// signature subscription, falling back to status polling.
type RPCSubmitter struct {
	rpc            solana.RPCClient
	ws             solana.WSClient
	commitment     string
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger
}

// RPCOption configures RPCSubmitter.
type RPCOption func(*RPCSubmitter)

// WithWebSocket enables signatureSubscribe confirmation.
func WithWebSocket(ws solana.WSClient) RPCOption {
	return func(s *RPCSubmitter) {
		s.ws = ws
	}
}

// WithCommitment sets the commitment a transaction must reach.
func WithCommitment(commitment string) RPCOption {
	return func(s *RPCSubmitter) {
		s.commitment = commitment
	}
}

// WithConfirmTimeout bounds confirmation.
func WithConfirmTimeout(d time.Duration) RPCOption {
	return func(s *RPCSubmitter) {
		s.confirmTimeout = d
	}
}

// WithPollInterval sets the status polling interval.
func WithPollInterval(d time.Duration) RPCOption {
	return func(s *RPCSubmitter) {
		s.pollInterval = d
	}
}

// WithRPCLogger sets the logger.
func WithRPCLogger(logger *zap.Logger) RPCOption {
	return func(s *RPCSubmitter) {
		s.logger = logger
	}
}

// NewRPCSubmitter creates a submitter over rpc.
func NewRPCSubmitter(rpc solana.RPCClient, opts ...RPCOption) *RPCSubmitter {
	s := &RPCSubmitter{
		rpc:            rpc,
		commitment:     solana.CommitmentConfirmed,
		confirmTimeout: DefaultConfirmTimeout,
		pollInterval:   DefaultPollInterval,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit implements Submitter.
func (s *RPCSubmitter) Submit(ctx context.Context, feePayer types.Account, ixs []types.Instruction, signers ...types.Account) (*Receipt, error) {
	latest, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        feePayer.PublicKey,
			RecentBlockhash: latest.Blockhash,
			Instructions:    ixs,
		}),
		Signers: append([]types.Account{feePayer}, signers...),
	})
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	raw, err := tx.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	signature := base58.Encode(tx.Signatures[0])

	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	// subscribe before sending so a fast confirmation is not missed
	var notifications <-chan solana.SignatureNotification
	if s.ws != nil {
		notifications, err = s.ws.SubscribeSignature(ctx, signature)
		if err != nil {
			s.logger.Warn("signature subscription failed, polling", zap.String("signature", signature), zap.Error(err))
			notifications = nil
		}
	}

	sent, err := s.rpc.SendTransaction(ctx, raw)
	if err != nil {
		var rpcErr *solana.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Data != nil {
			return nil, &TransactionError{Signature: signature, Logs: rpcErr.Logs(), Err: rpcErr}
		}
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	if sent != "" && sent != signature {
		s.logger.Warn("node returned a different signature", zap.String("expected", signature), zap.String("got", sent))
		signature = sent
	}
	s.logger.Debug("transaction sent", zap.String("signature", signature), zap.Int("instructions", len(ixs)))

	txErr, err := s.confirm(ctx, signature, notifications)
	if err != nil {
		return nil, err
	}

	logs := s.logs(ctx, signature)
	if txErr != nil {
		return nil, &TransactionError{Signature: signature, Logs: logs, Err: fmt.Errorf("%v", txErr)}
	}
	return &Receipt{Signature: signature, Logs: logs}, nil
}

// confirm waits for signature and returns the transaction's error value,
// nil when it succeeded.
func (s *RPCSubmitter) confirm(ctx context.Context, signature string, notifications <-chan solana.SignatureNotification) (interface{}, error) {
	if notifications != nil {
		select {
		case n, ok := <-notifications:
			if ok {
				return n.Err, nil
			}
			// subscription dropped, poll below
		case <-ctx.Done():
			return nil, s.timeout(ctx, signature)
		}
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		statuses, err := s.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err != nil {
			s.logger.Debug("status poll failed", zap.String("signature", signature), zap.Error(err))
		} else if len(statuses) == 1 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return st.Err, nil
			}
			if st.Reached(s.commitment) {
				return nil, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, s.timeout(ctx, signature)
		case <-ticker.C:
		}
	}
}

func (s *RPCSubmitter) timeout(ctx context.Context, signature string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrConfirmTimeout, signature)
	}
	return ctx.Err()
}

// logs fetches the transaction's log messages, best effort.
func (s *RPCSubmitter) logs(ctx context.Context, signature string) []string {
	tx, err := s.rpc.GetTransaction(ctx, signature)
	if err != nil || tx == nil || tx.Meta == nil {
		if err != nil {
			s.logger.Debug("fetch transaction logs failed", zap.String("signature", signature), zap.Error(err))
		}
		return nil
	}
	return tx.Meta.LogMessages
}

// RPCReader reads accounts over JSON-RPC.
type RPCReader struct {
	rpc solana.RPCClient
}

// NewRPCReader creates a reader over rpc.
func NewRPCReader(rpc solana.RPCClient) *RPCReader {
	return &RPCReader{rpc: rpc}
}

// Account implements AccountReader. The slot is the context slot the node
// answered at.
func (r *RPCReader) Account(ctx context.Context, key common.PublicKey) (*Account, error) {
	info, err := r.rpc.GetAccountInfo(ctx, key.ToBase58())
	if errors.Is(err, solana.ErrAccountNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Account{
		Data:  info.Data,
		Owner: common.PublicKeyFromString(info.Owner),
		Slot:  info.Slot,
	}, nil
}

var (
	_ Submitter     = (*RPCSubmitter)(nil)
	_ AccountReader = (*RPCReader)(nil)
)
