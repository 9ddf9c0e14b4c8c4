package journal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/client"
	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/idhash"
	"solana-token-manager/internal/instruction"
	"solana-token-manager/internal/observability"
	"solana-token-manager/internal/program"
	"solana-token-manager/internal/runtime/stub"
	"solana-token-manager/internal/solana"
	solanastub "solana-token-manager/internal/solana/stub"
	"solana-token-manager/internal/storage"
	"solana-token-manager/internal/storage/memory"
	"solana-token-manager/internal/verification"
)

var params = instruction.InitTokenParams{
	Name:     "Journal Token",
	Symbol:   "JRN",
	URI:      "https://example.com/jrn.json",
	Decimals: 6,
}

// chain runs the token manager locally and mirrors every transaction into a
// stub RPC the way a cluster would report it.
type chain struct {
	t      *testing.T
	client *client.Client
	local  *recorder
	rpc    *solanastub.RPCClient
	slot   int64
	head   atomic.Int64           // slot, for readers on the runner's goroutines
	sigs   []solana.SignatureInfo // newest first
}

func newChain(t *testing.T) *chain {
	t.Helper()
	rt := stub.NewRuntime()
	rt.Register(program.New(address.DefaultProgramID, nil))
	payer := types.NewAccount()
	rt.Bank().Airdrop(payer.PublicKey, 100_000_000_000)

	local := &recorder{Local: client.NewLocal(rt)}
	c, err := client.New(address.DefaultProgramID, payer, local, local)
	require.NoError(t, err)
	ch := &chain{t: t, client: c, local: local, rpc: solanastub.NewRPCClient(), slot: 100}
	ch.head.Store(ch.slot)
	return ch
}

// recorder submits to the local runtime and keeps the last transaction's
// instructions.
type recorder struct {
	*client.Local
	feePayer common.PublicKey
	ixs      []types.Instruction
}

func (r *recorder) Submit(ctx context.Context, feePayer types.Account, ixs []types.Instruction, signers ...types.Account) (*client.Receipt, error) {
	r.feePayer = feePayer.PublicKey
	r.ixs = ixs
	return r.Local.Submit(ctx, feePayer, ixs, signers...)
}

// message compiles the last transaction: fee payer first, then every other
// key in order of appearance.
func (r *recorder) message() *solana.TransactionMessage {
	msg := &solana.TransactionMessage{}
	index := make(map[common.PublicKey]int)
	key := func(k common.PublicKey) int {
		if i, ok := index[k]; ok {
			return i
		}
		index[k] = len(msg.AccountKeys)
		msg.AccountKeys = append(msg.AccountKeys, k.ToBase58())
		return index[k]
	}
	key(r.feePayer)
	for _, ix := range r.ixs {
		ci := solana.CompiledInstruction{ProgramIDIndex: key(ix.ProgramID), Data: ix.Data}
		for _, a := range ix.Accounts {
			ci.Accounts = append(ci.Accounts, key(a.PubKey))
		}
		msg.Instructions = append(msg.Instructions, ci)
	}
	return msg
}

// headReader reads the local runtime as of the chain's newest slot.
type headReader struct {
	c *chain
}

func (h headReader) Account(ctx context.Context, key common.PublicKey) (*client.Account, error) {
	acct, err := h.c.local.Account(ctx, key)
	if err != nil {
		return nil, err
	}
	acct.Slot = h.c.head.Load()
	return acct, nil
}

// record publishes the outcome of a client call and returns its transaction.
func (c *chain) record(receipt *client.Receipt, err error) *solana.Transaction {
	c.t.Helper()
	c.slot += 10
	c.head.Store(c.slot)
	tx := &solana.Transaction{
		Slot:      c.slot,
		BlockTime: 1_700_000_000 + c.slot,
		Meta:      &solana.TransactionMeta{},
		Message:   c.local.message(),
	}
	if err != nil {
		var txErr *client.TransactionError
		require.ErrorAs(c.t, err, &txErr)
		tx.Signature = txErr.Signature
		tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}
		tx.Meta.LogMessages = txErr.Logs
	} else {
		tx.Signature = receipt.Signature
		tx.Meta.LogMessages = receipt.Logs
	}
	c.rpc.AddTransaction(tx)
	c.sigs = append([]solana.SignatureInfo{{Signature: tx.Signature, Slot: tx.Slot, Err: tx.Meta.Err}}, c.sigs...)
	c.rpc.AddSignatures(address.DefaultProgramID.ToBase58(), c.sigs)
	return tx
}

type fixture struct {
	runner     *Runner
	operations *memory.OperationStore
	metadata   *memory.TokenMetadataStore
	supply     *memory.SupplySnapshotStore
	progress   *memory.JournalProgressStore
	metrics    *observability.Metrics
}

func newFixture(t *testing.T, c *chain, ws solana.WSClient) *fixture {
	t.Helper()
	f := &fixture{
		operations: memory.NewOperationStore(),
		metadata:   memory.NewTokenMetadataStore(),
		supply:     memory.NewSupplySnapshotStore(),
		progress:   memory.NewJournalProgressStore(),
		metrics:    observability.NewMetrics("test", prometheus.NewRegistry()),
	}
	r, err := NewRunner(RunnerOptions{
		ProgramID:     address.DefaultProgramID,
		RPC:           c.rpc,
		WS:            ws,
		Reader:        headReader{c: c},
		Operations:    f.operations,
		MetadataStore: f.metadata,
		SupplyStore:   f.supply,
		Progress:      f.progress,
		PageSize:      2,
		PollInterval:  time.Hour,
		RetryDelay:    time.Millisecond,
		Metrics:       f.metrics,
		Logger:        zaptest.NewLogger(t),
		Now:           func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
	require.NoError(t, err)
	f.runner = r
	return f
}

func (f *fixture) all(t *testing.T) []*domain.Operation {
	t.Helper()
	ops, err := f.operations.GetBySlotRange(context.Background(), address.DefaultProgramID.ToBase58(), 0, 1<<40)
	require.NoError(t, err)
	return ops
}

func TestRunner_Backfill(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)

	c.record(c.client.InitToken(ctx, params))
	c.record(c.client.MintTokens(ctx, 1_000))
	c.record(c.client.TransferTokens(ctx, types.NewAccount().PublicKey, 400))
	burn := c.record(c.client.BurnTokens(ctx, 100))
	failed := c.record(c.client.BurnTokens(ctx, 1_000_000))

	f := newFixture(t, c, nil)
	result, err := f.runner.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Transactions)
	assert.Equal(t, 5, result.Operations)

	ops := f.all(t)
	require.Len(t, ops, 5)
	kinds := make([]domain.OperationKind, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind
		assert.Equal(t, f.runner.Mint().ToBase58(), op.Mint)
		assert.Equal(t, (1_700_000_000+op.Slot)*1000, op.BlockTime)
	}
	assert.Equal(t, []domain.OperationKind{
		domain.OperationInitToken,
		domain.OperationMintTokens,
		domain.OperationTransferTokens,
		domain.OperationBurnTokens,
		domain.OperationBurnTokens,
	}, kinds)
	assert.Equal(t, uint64(1_000), ops[1].Quantity)
	assert.Equal(t, uint64(400), ops[2].Quantity)
	assert.Equal(t, uint64(100), ops[3].Quantity)

	assert.True(t, ops[3].Success)
	assert.False(t, ops[4].Success)
	assert.Equal(t, failed.Signature, ops[4].Signature)
	assert.Equal(t, uint64(1_000_000), ops[4].Quantity, "failed burn keeps the requested quantity")
	require.NotNil(t, ops[4].Error)

	md, err := f.metadata.GetByMint(ctx, f.runner.Mint().ToBase58())
	require.NoError(t, err)
	assert.Equal(t, "JRN", md.Symbol)
	assert.Equal(t, 6, md.Decimals)
	assert.Equal(t, ops[0].Signature, md.Signature)

	// one snapshot for the newest successful supply change, read at the head
	snaps, err := f.supply.GetByMint(ctx, f.runner.Mint().ToBase58())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, burn.Signature, snaps[0].Signature)
	assert.Equal(t, failed.Slot, snaps[0].Slot)
	assert.Equal(t, uint64(900), snaps[0].Supply)
	assert.Equal(t, 6, snaps[0].Decimals)

	p, err := f.progress.GetLastProcessed(ctx, address.DefaultProgramID.ToBase58())
	require.NoError(t, err)
	assert.Equal(t, failed.Signature, p.Signature)
	assert.Equal(t, failed.Slot, p.Slot)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OperationsJournaled.WithLabelValues("BurnTokens", "failed")))
	assert.Equal(t, float64(failed.Slot), testutil.ToFloat64(f.metrics.HighestSlotSeen))
}

func TestRunner_BackfillResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	c.record(c.client.InitToken(ctx, params))
	c.record(c.client.MintTokens(ctx, 50))

	f := newFixture(t, c, nil)
	_, err := f.runner.Backfill(ctx)
	require.NoError(t, err)

	result, err := f.runner.Backfill(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Transactions)

	mint := c.record(c.client.MintTokens(ctx, 25))
	result, err = f.runner.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transactions)
	assert.Len(t, f.all(t), 3)

	latest, err := f.supply.Latest(ctx, f.runner.Mint().ToBase58())
	require.NoError(t, err)
	assert.Equal(t, mint.Signature, latest.Signature)
	assert.Equal(t, uint64(75), latest.Supply)
}

func TestRunner_BackfillSkipsJournaled(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	c.record(c.client.InitToken(ctx, params))
	c.record(c.client.MintTokens(ctx, 5))

	f := newFixture(t, c, nil)
	_, err := f.runner.Backfill(ctx)
	require.NoError(t, err)

	// lose the checkpoint: everything is seen again but stored once
	f.progress = memory.NewJournalProgressStore()
	f.runner.progress = f.progress
	result, err := f.runner.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Transactions)
	assert.Zero(t, result.Operations)
	assert.Len(t, f.all(t), 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DuplicatesSkipped))
}

func TestRunner_BackfillMissingTransaction(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	c.record(c.client.InitToken(ctx, params))
	c.rpc.AddSignatures(address.DefaultProgramID.ToBase58(), append([]solana.SignatureInfo{{Signature: "missing", Slot: 999}}, c.sigs...))

	f := newFixture(t, c, nil)
	result, err := f.runner.Backfill(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, result.Transactions)

	// the checkpoint stops before the gap
	p, err := f.progress.GetLastProcessed(ctx, address.DefaultProgramID.ToBase58())
	require.NoError(t, err)
	assert.Equal(t, c.sigs[0].Signature, p.Signature)
}

func TestRunner_ProcessNotification(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	init := c.record(c.client.InitToken(ctx, params))
	mint := c.record(c.client.MintTokens(ctx, 42))
	receipt, err := c.client.BurnTokens(ctx, 2)
	require.NoError(t, err)

	f := newFixture(t, c, nil)
	for _, tx := range []*solana.Transaction{init, mint} {
		require.NoError(t, f.runner.ProcessNotification(ctx, solana.LogNotification{
			Signature: tx.Signature,
			Slot:      tx.Slot,
			Logs:      tx.Meta.LogMessages,
		}))
	}

	// not fetchable: falls back to the notification logs
	require.NoError(t, f.runner.ProcessNotification(ctx, solana.LogNotification{
		Signature: receipt.Signature,
		Slot:      500,
		Logs:      receipt.Logs,
	}))

	ops := f.all(t)
	require.Len(t, ops, 3)
	assert.Equal(t, domain.OperationMintTokens, ops[1].Kind)
	assert.Equal(t, uint64(42), ops[1].Quantity)
	assert.Equal(t, int64(500), ops[2].Slot)
	assert.Zero(t, ops[2].BlockTime)
	assert.Equal(t, uint64(2), ops[2].Quantity)

	snaps, err := f.supply.GetByMint(ctx, f.runner.Mint().ToBase58())
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, receipt.Signature, snaps[2].Signature)
	assert.Equal(t, uint64(40), snaps[2].Supply)

	// live processing never moves the checkpoint
	_, err = f.progress.GetLastProcessed(ctx, address.DefaultProgramID.ToBase58())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// deployedMintLogs is what the deployed program logs for mint_tokens: the
// instruction name and the Token program's CPI, no quantity.
func deployedMintLogs(depth int) []string {
	tm := address.DefaultProgramID.ToBase58()
	tokenProgram := common.TokenProgramID.ToBase58()
	return []string{
		fmt.Sprintf("Program %s invoke [%d]", tm, depth),
		"Program log: Instruction: MintTokens",
		fmt.Sprintf("Program %s invoke [%d]", tokenProgram, depth+1),
		"Program log: Instruction: MintTo",
		"Program " + tokenProgram + " success",
		"Program " + tm + " success",
	}
}

func TestRunner_QuantityFromInstructionData(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	f := newFixture(t, c, nil)

	tm := address.DefaultProgramID.ToBase58()
	router := types.NewAccount().PublicKey.ToBase58()
	payer := types.NewAccount().PublicKey
	mintData := func(quantity uint64) []byte {
		ix, err := instruction.MintTokens(address.DefaultProgramID, payer, quantity)
		require.NoError(t, err)
		return ix.Data
	}
	burnIx, err := instruction.BurnTokens(address.DefaultProgramID, payer, 9)
	require.NoError(t, err)

	direct := &solana.Transaction{
		Signature: "direct",
		Slot:      200,
		Meta:      &solana.TransactionMeta{LogMessages: deployedMintLogs(1)},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{payer.ToBase58(), tm},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 1, Accounts: []int{0}, Data: mintData(5_000_000)},
			},
		},
	}

	// reached through another program, token manager address loaded from a
	// lookup table
	cpiLogs := append([]string{"Program " + router + " invoke [1]"}, deployedMintLogs(2)...)
	cpiLogs = append(cpiLogs, "Program "+router+" success")
	throughCPI := &solana.Transaction{
		Signature: "cpi",
		Slot:      201,
		Meta: &solana.TransactionMeta{
			LogMessages: cpiLogs,
			InnerInstructions: []solana.InnerInstructions{{
				Index: 0,
				Instructions: []solana.CompiledInstruction{
					{ProgramIDIndex: 2, Data: mintData(77)},
				},
			}},
		},
		Message: &solana.TransactionMessage{
			AccountKeys:  []string{payer.ToBase58(), router, tm},
			Instructions: []solana.CompiledInstruction{{ProgramIDIndex: 1, Data: []byte{1}}},
		},
	}

	// data disagrees with the logs: the logged quantity stands
	mismatched := &solana.Transaction{
		Signature: "mismatched",
		Slot:      202,
		Meta: &solana.TransactionMeta{LogMessages: []string{
			"Program " + tm + " invoke [1]",
			"Program log: Instruction: TransferTokens",
			"Program log: Transferred 3 tokens successfully.",
			"Program " + tm + " success",
		}},
		Message: &solana.TransactionMessage{
			AccountKeys:  []string{payer.ToBase58(), tm},
			Instructions: []solana.CompiledInstruction{{ProgramIDIndex: 1, Data: burnIx.Data}},
		},
	}

	for _, tx := range []*solana.Transaction{direct, throughCPI, mismatched} {
		c.rpc.AddTransaction(tx)
		_, err := f.runner.processTransaction(ctx, tx, "backfill")
		require.NoError(t, err)
	}

	ops := f.all(t)
	require.Len(t, ops, 3)
	assert.Equal(t, domain.OperationMintTokens, ops[0].Kind)
	assert.Equal(t, uint64(5_000_000), ops[0].Quantity)
	assert.Equal(t, domain.OperationMintTokens, ops[1].Kind)
	assert.Equal(t, uint64(77), ops[1].Quantity)
	assert.Equal(t, domain.OperationTransferTokens, ops[2].Kind)
	assert.Equal(t, uint64(3), ops[2].Quantity)
}

func TestRunner_SnapshotsMatchJournalAfterBackToBackMints(t *testing.T) {
	ctx := context.Background()
	c := newChain(t)
	init := c.record(c.client.InitToken(ctx, params))
	first := c.record(c.client.MintTokens(ctx, 100))
	second := c.record(c.client.MintTokens(ctx, 200))

	// both mints land before the first notification is handled
	f := newFixture(t, c, nil)
	for _, tx := range []*solana.Transaction{init, first, second} {
		require.NoError(t, f.runner.ProcessNotification(ctx, solana.LogNotification{
			Signature: tx.Signature,
			Slot:      tx.Slot,
			Logs:      tx.Meta.LogMessages,
		}))
	}

	snaps, err := f.supply.GetByMint(ctx, f.runner.Mint().ToBase58())
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	for _, snap := range snaps {
		assert.Equal(t, second.Slot, snap.Slot)
		assert.Equal(t, uint64(300), snap.Supply)
	}

	report, err := verification.NewVerifier(f.operations, f.supply).
		VerifySupply(ctx, address.DefaultProgramID.ToBase58(), f.runner.Mint().ToBase58())
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "divergences: %+v", report.Divergences)
	assert.Equal(t, 3, report.MatchedSnapshots)
}

// logsWS replays notifications on a logs subscription.
type logsWS struct {
	ch chan solana.LogNotification
}

func (w *logsWS) SubscribeLogs(context.Context, solana.LogsFilter) (<-chan solana.LogNotification, error) {
	return w.ch, nil
}

func (w *logsWS) SubscribeSignature(context.Context, string) (<-chan solana.SignatureNotification, error) {
	return nil, errors.New("not supported")
}

func (w *logsWS) Close() error { return nil }

func TestRunner_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newChain(t)
	c.record(c.client.InitToken(ctx, params))

	ws := &logsWS{ch: make(chan solana.LogNotification, 1)}
	f := newFixture(t, c, ws)

	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx) }()

	mint := c.record(c.client.MintTokens(ctx, 7))
	ws.ch <- solana.LogNotification{Signature: mint.Signature, Slot: mint.Slot, Logs: mint.Meta.LogMessages}

	require.Eventually(t, func() bool {
		_, err := f.operations.GetByID(ctx, idhash.ComputeOperationID(mint.Signature, 0))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunner_RunSubscriptionClosed(t *testing.T) {
	c := newChain(t)
	ws := &logsWS{ch: make(chan solana.LogNotification)}
	close(ws.ch)
	f := newFixture(t, c, ws)

	err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription closed")
}

func TestNewRunner_RequiresStores(t *testing.T) {
	_, err := NewRunner(RunnerOptions{ProgramID: address.DefaultProgramID, RPC: solanastub.NewRPCClient()})
	assert.Error(t, err)
}
