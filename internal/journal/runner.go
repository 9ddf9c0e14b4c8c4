// Package journal follows a deployed token manager and records every
// invocation it finds in confirmed transactions, together with the mint's
// metadata and supply snapshots.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/client"
	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/idhash"
	"solana-token-manager/internal/instruction"
	"solana-token-manager/internal/layout"
	"solana-token-manager/internal/observability"
	"solana-token-manager/internal/solana"
	"solana-token-manager/internal/storage"
)

const (
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
)

// Runner journals a program from live log notifications and periodic
// signature backfill.
type Runner struct {
	programID     common.PublicKey
	mint          common.PublicKey
	metadata      common.PublicKey
	rpc           solana.RPCClient
	ws            solana.WSClient
	reader        client.AccountReader
	operations    storage.OperationStore
	metadataStore storage.TokenMetadataStore
	supplyStore   storage.SupplySnapshotStore
	progress      storage.JournalProgressStore
	pageSize      int
	pollInterval  time.Duration
	retryDelay    time.Duration
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	ProgramID     common.PublicKey
	RPC           solana.RPCClient
	WS            solana.WSClient      // optional; nil disables live notifications
	Reader        client.AccountReader // default: client.NewRPCReader(RPC)
	Operations    storage.OperationStore
	MetadataStore storage.TokenMetadataStore
	SupplyStore   storage.SupplySnapshotStore
	Progress      storage.JournalProgressStore
	PageSize      int           // Default: 1000 signatures per getSignaturesForAddress page
	PollInterval  time.Duration // Default: 30s between backfill passes
	RetryDelay    time.Duration // Default: 500ms, doubled per getTransaction retry
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Now           func() time.Time
}

// NewRunner creates a journal runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.RPC == nil || opts.Operations == nil || opts.MetadataStore == nil ||
		opts.SupplyStore == nil || opts.Progress == nil {
		return nil, errors.New("journal: rpc and all stores are required")
	}

	mint, _, err := address.MintAddress(opts.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive mint: %w", err)
	}
	metadata, _, err := address.MetadataAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata: %w", err)
	}

	r := &Runner{
		programID:     opts.ProgramID,
		mint:          mint,
		metadata:      metadata,
		rpc:           opts.RPC,
		ws:            opts.WS,
		reader:        opts.Reader,
		operations:    opts.Operations,
		metadataStore: opts.MetadataStore,
		supplyStore:   opts.SupplyStore,
		progress:      opts.Progress,
		pageSize:      opts.PageSize,
		pollInterval:  opts.PollInterval,
		retryDelay:    opts.RetryDelay,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
	}
	if r.reader == nil {
		r.reader = client.NewRPCReader(opts.RPC)
	}
	if r.pageSize == 0 {
		r.pageSize = 1000
	}
	if r.pollInterval == 0 {
		r.pollInterval = 30 * time.Second
	}
	if r.retryDelay == 0 {
		r.retryDelay = baseRetryDelay
	}
	if r.metrics == nil {
		r.metrics = observability.DefaultMetrics
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.logger = r.logger.With(zap.String("program", opts.ProgramID.ToBase58()))
	return r, nil
}

// Mint returns the mint PDA the runner snapshots.
func (r *Runner) Mint() common.PublicKey { return r.mint }

// Run backfills, then follows live notifications and re-runs backfill every
// poll interval. It blocks until ctx is cancelled or a subscription fails.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if r.ws != nil {
		logsCh, err := r.ws.SubscribeLogs(gctx, solana.LogsFilter{
			Mentions: []string{r.programID.ToBase58()},
		})
		if err != nil {
			return fmt.Errorf("subscribe logs: %w", err)
		}
		r.logger.Info("subscribed to program logs")
		g.Go(func() error {
			return r.follow(gctx, logsCh)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()
		for {
			if _, err := r.Backfill(gctx); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// next pass resumes from the checkpoint
				r.metrics.RecordJournalError("backfill")
				r.logger.Warn("backfill failed", zap.Error(err))
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

func (r *Runner) follow(ctx context.Context, logsCh <-chan solana.LogNotification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-logsCh:
			if !ok {
				return errors.New("log subscription closed")
			}
			r.metrics.NotificationsReceived.Inc()
			if err := r.ProcessNotification(ctx, notif); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.metrics.RecordJournalError("live")
				r.logger.Warn("journal notification failed",
					zap.String("signature", notif.Signature),
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessNotification journals a live log notification and snapshots the
// supply after a successful supply-changing operation. The full transaction
// is fetched for its block time; when that fails the notification's own logs
// are used.
func (r *Runner) ProcessNotification(ctx context.Context, notif solana.LogNotification) error {
	tx, err := r.fetchTransaction(ctx, notif.Signature)
	if err != nil || tx == nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Debug("using notification logs",
			zap.String("signature", notif.Signature),
			zap.Error(err),
		)
		tx = &solana.Transaction{
			Slot:      notif.Slot,
			Signature: notif.Signature,
			Meta:      &solana.TransactionMeta{Err: notif.Err, LogMessages: notif.Logs},
		}
	}

	ops, err := r.processTransaction(ctx, tx, "live")
	if err != nil {
		return err
	}
	if op := lastSupplyChange(ops); op != nil {
		return r.snapshotSupply(ctx, op)
	}
	return nil
}

// BackfillResult contains statistics from a backfill pass.
type BackfillResult struct {
	Transactions int
	Operations   int
	Duration     time.Duration
}

// Backfill journals every program transaction newer than the checkpoint,
// oldest first, advancing the checkpoint after each one. Supply at a past
// slot cannot be read back, so a pass that changed supply takes one
// snapshot at the current slot.
func (r *Runner) Backfill(ctx context.Context) (*BackfillResult, error) {
	start := r.now()
	result := &BackfillResult{}

	until := ""
	if p, err := r.progress.GetLastProcessed(ctx, r.programID.ToBase58()); err == nil {
		until = p.Signature
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	sigs, err := r.signaturesSince(ctx, until)
	if err != nil {
		return nil, err
	}

	var newest *domain.Operation
	for i := len(sigs) - 1; i >= 0; i-- {
		info := sigs[i]
		tx, err := r.fetchTransaction(ctx, info.Signature)
		if err != nil {
			return result, fmt.Errorf("get transaction %s: %w", info.Signature, err)
		}
		if tx == nil {
			return result, fmt.Errorf("transaction %s not available", info.Signature)
		}

		ops, err := r.processTransaction(ctx, tx, "backfill")
		if err != nil {
			return result, err
		}
		result.Transactions++
		result.Operations += len(ops)
		if op := lastSupplyChange(ops); op != nil {
			newest = op
		}

		err = r.progress.SetLastProcessed(ctx, &storage.JournalProgress{
			ProgramID: r.programID.ToBase58(),
			Slot:      tx.Slot,
			Signature: info.Signature,
		})
		if err != nil {
			return result, fmt.Errorf("save checkpoint: %w", err)
		}
	}

	if newest != nil {
		if err := r.snapshotSupply(ctx, newest); err != nil {
			return result, err
		}
	}

	result.Duration = r.now().Sub(start)
	r.metrics.RecordBackfill(result.Duration)
	if result.Transactions > 0 {
		r.logger.Info("backfill complete",
			zap.Int("transactions", result.Transactions),
			zap.Int("operations", result.Operations),
			zap.Duration("duration", result.Duration),
		)
	}
	return result, nil
}

// signaturesSince pages getSignaturesForAddress back to until, newest first.
func (r *Runner) signaturesSince(ctx context.Context, until string) ([]solana.SignatureInfo, error) {
	var (
		all    []solana.SignatureInfo
		before string
	)
	for {
		page, err := r.rpc.GetSignaturesForAddress(ctx, r.programID.ToBase58(), &solana.SignaturesOpts{
			Before: before,
			Until:  until,
			Limit:  r.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("get signatures: %w", err)
		}
		all = append(all, page...)
		if len(page) < r.pageSize {
			return all, nil
		}
		before = page[len(page)-1].Signature
	}
}

// processTransaction stores the program's operations in tx and returns the
// ones that were not journaled before.
func (r *Runner) processTransaction(ctx context.Context, tx *solana.Transaction, origin string) ([]*domain.Operation, error) {
	if tx.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no meta", tx.Signature)
	}
	r.metrics.TransactionsProcessed.WithLabelValues(origin).Inc()
	r.metrics.UpdateHighestSlot(tx.Slot)

	invs := ParseLogs(r.programID.ToBase58(), tx.Meta.LogMessages)
	r.applyInstructionData(tx, invs)

	var stored []*domain.Operation
	for _, inv := range invs {
		if !inv.Kind.Valid() {
			r.logger.Debug("skipping invocation without instruction",
				zap.String("signature", tx.Signature),
				zap.Int("index", inv.Index),
			)
			continue
		}

		op := r.operation(tx, inv)
		err := r.operations.Insert(ctx, op)
		if errors.Is(err, storage.ErrDuplicateKey) {
			r.metrics.DuplicatesSkipped.Inc()
			continue
		}
		if err != nil {
			return stored, fmt.Errorf("store operation %s/%d: %w", tx.Signature, inv.Index, err)
		}

		r.metrics.RecordOperation(string(op.Kind), op.Success)
		r.logger.Debug("operation journaled",
			zap.String("signature", op.Signature),
			zap.String("kind", string(op.Kind)),
			zap.Uint64("quantity", op.Quantity),
			zap.Bool("success", op.Success),
		)
		stored = append(stored, op)

		if op.Kind == domain.OperationInitToken && op.Success {
			if err := r.storeMetadata(ctx, op); err != nil {
				return stored, err
			}
		}
	}
	return stored, nil
}

func (r *Runner) operation(tx *solana.Transaction, inv *Invocation) *domain.Operation {
	success := inv.Success
	if !inv.Complete {
		// truncated log: the transaction result decides
		success = tx.Meta.Err == nil
	}
	var opErr *string
	if !success {
		opErr = inv.Error
		if opErr == nil {
			msg := fmt.Sprint(tx.Meta.Err)
			opErr = &msg
		}
	}

	return &domain.Operation{
		OperationID: idhash.ComputeOperationID(tx.Signature, inv.Index),
		Signature:   tx.Signature,
		Index:       inv.Index,
		Slot:        tx.Slot,
		BlockTime:   tx.BlockTime * 1000,
		ProgramID:   r.programID.ToBase58(),
		Mint:        r.mint.ToBase58(),
		Kind:        inv.Kind,
		Quantity:    inv.Quantity,
		Success:     success,
		Error:       opErr,
		CreatedAt:   r.now().UnixMilli(),
	}
}

// applyInstructionData takes kinds and quantities from the program's
// instruction data in tx, since not every operation logs its quantity.
// Quantities stay as logged when the calls cannot be lined up with invs.
func (r *Runner) applyInstructionData(tx *solana.Transaction, invs []*Invocation) {
	calls, ok := programCalls(tx, r.programID.ToBase58())
	if !ok || len(invs) > len(calls) {
		return
	}

	decoded := make([]instruction.Decoded, len(invs))
	for i, inv := range invs {
		dec, err := instruction.Decode(calls[i])
		if err != nil && dec.Kind == 0 {
			r.logger.Debug("undecodable program instruction",
				zap.String("signature", tx.Signature),
				zap.Int("index", i),
				zap.Error(err),
			)
			return
		}
		if inv.Kind.Valid() && string(inv.Kind) != dec.Kind.String() {
			r.logger.Debug("instruction data does not match logs",
				zap.String("signature", tx.Signature),
				zap.Int("index", i),
				zap.String("logged", string(inv.Kind)),
				zap.String("data", dec.Kind.String()),
			)
			return
		}
		if err != nil {
			// kind known, arguments malformed
			dec.Quantity = inv.Quantity
		}
		decoded[i] = dec
	}

	for i, inv := range invs {
		inv.Kind = domain.OperationKind(decoded[i].Kind.String())
		if decoded[i].Kind != instruction.KindInitToken {
			inv.Quantity = decoded[i].Quantity
		}
	}
}

func (r *Runner) storeMetadata(ctx context.Context, op *domain.Operation) error {
	raw, err := r.reader.Account(ctx, r.metadata)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	md, err := layout.DecodeMetadata(raw.Data)
	if err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	mint, _, err := r.readMint(ctx)
	if err != nil {
		return err
	}

	err = r.metadataStore.Insert(ctx, &domain.TokenMetadata{
		Mint:            md.Mint.ToBase58(),
		ProgramID:       r.programID.ToBase58(),
		Name:            md.Name,
		Symbol:          md.Symbol,
		URI:             md.URI,
		Decimals:        int(mint.Decimals),
		UpdateAuthority: md.UpdateAuthority.ToBase58(),
		Signature:       op.Signature,
		Slot:            op.Slot,
		FetchedAt:       r.now().UnixMilli(),
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("store metadata: %w", err)
	}
	r.logger.Info("token metadata stored",
		zap.String("mint", md.Mint.ToBase58()),
		zap.String("symbol", md.Symbol),
	)
	return nil
}

// snapshotSupply records the mint supply after op. The snapshot carries the
// slot the mint was read at, which may be past op.Slot.
func (r *Runner) snapshotSupply(ctx context.Context, op *domain.Operation) error {
	mint, slot, err := r.readMint(ctx)
	if err != nil {
		return err
	}
	if slot == 0 {
		slot = op.Slot
	}
	err = r.supplyStore.Insert(ctx, &domain.SupplySnapshot{
		Mint:      r.mint.ToBase58(),
		Slot:      slot,
		Signature: op.Signature,
		Supply:    mint.Supply,
		Decimals:  int(mint.Decimals),
		TakenAt:   r.now().UnixMilli(),
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store supply snapshot: %w", err)
	}
	r.metrics.SupplySnapshots.Inc()
	return nil
}

// readMint returns the decoded mint and the slot it was read at.
func (r *Runner) readMint(ctx context.Context) (*layout.Mint, int64, error) {
	raw, err := r.reader.Account(ctx, r.mint)
	if err != nil {
		return nil, 0, fmt.Errorf("read mint: %w", err)
	}
	mint, err := layout.DecodeMint(raw.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode mint: %w", err)
	}
	return mint, raw.Slot, nil
}

// fetchTransaction fetches a transaction with exponential backoff retry.
// A transaction the node does not know yet is retried too.
func (r *Runner) fetchTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		tx, err := r.rpc.GetTransaction(ctx, signature)
		if err == nil && tx != nil {
			return tx, nil
		}
		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("transaction %s not found", signature)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := r.retryDelay * time.Duration(1<<attempt)
		r.logger.Debug("retrying getTransaction",
			zap.String("signature", signature),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func lastSupplyChange(ops []*domain.Operation) *domain.Operation {
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Success && ops[i].Kind.ChangesSupply() {
			return ops[i]
		}
	}
	return nil
}
