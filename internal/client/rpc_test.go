package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/program"
	"solana-token-manager/internal/solana"
	solanastub "solana-token-manager/internal/solana/stub"
)

// fakeWS delivers a fixed notification for every signature subscription.
type fakeWS struct {
	notification *solana.SignatureNotification
	err          error
	subscribed   []string
}

func (f *fakeWS) SubscribeLogs(context.Context, solana.LogsFilter) (<-chan solana.LogNotification, error) {
	return nil, errors.New("not supported")
}

func (f *fakeWS) SubscribeSignature(_ context.Context, signature string) (<-chan solana.SignatureNotification, error) {
	f.subscribed = append(f.subscribed, signature)
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan solana.SignatureNotification, 1)
	if f.notification != nil {
		ch <- *f.notification
		close(ch)
	}
	return ch, nil
}

func (f *fakeWS) Close() error { return nil }

func transferIx(payer types.Account) []types.Instruction {
	return []types.Instruction{system.Transfer(system.TransferParam{
		From:   payer.PublicKey,
		To:     types.NewAccount().PublicKey,
		Amount: 1,
	})}
}

// confirmOnSend marks every sent transaction with status and logs.
func confirmOnSend(rpc *solanastub.RPCClient, status *solana.SignatureStatus, logs []string) {
	rpc.OnSend = func(raw []byte) (string, error) {
		sig := base58.Encode(raw[1:65])
		rpc.SetStatus(sig, status)
		rpc.AddTransaction(&solana.Transaction{
			Signature: sig,
			Meta:      &solana.TransactionMeta{Err: status.Err, LogMessages: logs},
		})
		return sig, nil
	}
}

func TestRPCSubmitter_Polling(t *testing.T) {
	rpc := solanastub.NewRPCClient()
	confirmOnSend(rpc, &solana.SignatureStatus{Slot: 10, ConfirmationStatus: solana.CommitmentConfirmed}, []string{"Program log: ok"})

	s := NewRPCSubmitter(rpc, WithPollInterval(5*time.Millisecond))
	payer := types.NewAccount()
	receipt, err := s.Submit(context.Background(), payer, transferIx(payer))
	require.NoError(t, err)

	require.Len(t, rpc.Sent, 1)
	assert.Equal(t, base58.Encode(rpc.Sent[0][1:65]), receipt.Signature)
	assert.Equal(t, []string{"Program log: ok"}, receipt.Logs)
}

func TestRPCSubmitter_WaitsForCommitment(t *testing.T) {
	rpc := solanastub.NewRPCClient()
	confirmOnSend(rpc, &solana.SignatureStatus{Slot: 10, ConfirmationStatus: solana.CommitmentConfirmed}, nil)

	s := NewRPCSubmitter(rpc,
		WithCommitment(solana.CommitmentFinalized),
		WithPollInterval(5*time.Millisecond),
		WithConfirmTimeout(50*time.Millisecond),
	)
	payer := types.NewAccount()
	_, err := s.Submit(context.Background(), payer, transferIx(payer))
	assert.ErrorIs(t, err, ErrConfirmTimeout)
}

func TestRPCSubmitter_FailedTransaction(t *testing.T) {
	rpc := solanastub.NewRPCClient()
	logs := []string{
		"Program log: Instruction: BurnTokens",
		"Program log: AnchorError caused by account: mint. Error Code: ConstraintSeeds. Error Number: 2006. Error Message: A seeds constraint was violated.",
	}
	confirmOnSend(rpc, &solana.SignatureStatus{
		Slot:               10,
		ConfirmationStatus: solana.CommitmentConfirmed,
		Err:                map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 2006}}},
	}, logs)

	s := NewRPCSubmitter(rpc, WithPollInterval(5*time.Millisecond))
	payer := types.NewAccount()
	_, err := s.Submit(context.Background(), payer, transferIx(payer))

	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, logs, txErr.Logs)
	code, ok := ProgramError(err)
	require.True(t, ok)
	assert.Equal(t, program.ConstraintSeeds, code)
}

func TestRPCSubmitter_PreflightFailure(t *testing.T) {
	rpc := solanastub.NewRPCClient()
	rpc.OnSend = func([]byte) (string, error) {
		return "", &solana.RPCError{
			Code:    -32002,
			Message: "Transaction simulation failed",
			Data: &solana.RPCErrorData{Logs: []string{
				"Program log: AnchorError caused by account: payer. Error Code: AccountNotSigner. Error Number: 3010. Error Message: The given account did not sign.",
			}},
		}
	}

	s := NewRPCSubmitter(rpc)
	payer := types.NewAccount()
	_, err := s.Submit(context.Background(), payer, transferIx(payer))

	code, ok := ProgramError(err)
	require.True(t, ok)
	assert.Equal(t, program.AccountNotSigner, code)
}

func TestRPCSubmitter_WebSocket(t *testing.T) {
	rpc := solanastub.NewRPCClient()
	ws := &fakeWS{notification: &solana.SignatureNotification{Slot: 5}}

	s := NewRPCSubmitter(rpc, WithWebSocket(ws), WithConfirmTimeout(time.Second))
	payer := types.NewAccount()
	receipt, err := s.Submit(context.Background(), payer, transferIx(payer))
	require.NoError(t, err)

	// subscribed to the signature before it was sent
	require.Len(t, ws.subscribed, 1)
	assert.Equal(t, ws.subscribed[0], receipt.Signature)
	assert.Empty(t, rpc.Statuses)
}

func TestRPCSubmitter_WebSocketFallback(t *testing.T) {
	rpc := solanastub.NewRPCClient()
	confirmOnSend(rpc, &solana.SignatureStatus{Slot: 10, ConfirmationStatus: solana.CommitmentFinalized}, nil)
	ws := &fakeWS{err: errors.New("subscribe failed")}

	s := NewRPCSubmitter(rpc, WithWebSocket(ws), WithPollInterval(5*time.Millisecond))
	payer := types.NewAccount()
	_, err := s.Submit(context.Background(), payer, transferIx(payer))
	require.NoError(t, err)
}

func TestRPCReader(t *testing.T) {
	rpc := solanastub.NewRPCClient()
	key := types.NewAccount().PublicKey
	rpc.SetAccount(key.ToBase58(), &solana.AccountInfo{
		Lamports: 1,
		Owner:    address.TokenProgramID.ToBase58(),
		Data:     []byte{1, 2, 3},
	})
	rpc.Slot = 321

	r := NewRPCReader(rpc)
	acct, err := r.Account(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, acct.Data)
	assert.Equal(t, address.TokenProgramID, acct.Owner)
	assert.Equal(t, int64(321), acct.Slot)

	_, err = r.Account(context.Background(), types.NewAccount().PublicKey)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
