// Package runtime executes programs with the transaction semantics of a
// Solana cluster: atomic commit or rollback, signer checks, PDA signing for
// cross-program invocations and account ownership rules.
package runtime

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-token-manager/internal/address"
)

// MaxInvokeDepth is the deepest instruction stack, the top-level instruction included.
const MaxInvokeDepth = 5

var sysvarOwner = address.MustParse("Sysvar1111111111111111111111111111111111111")

// Program is an on-chain program hosted by the runtime.
type Program interface {
	// ID returns the address the program is deployed at.
	ID() common.PublicKey

	// Process executes one instruction. Accounts are available from ic.
	Process(ic *InvokeContext, data []byte) error
}

// Transaction is a list of instructions signed by Signers.
type Transaction struct {
	Instructions []types.Instruction
	Signers      []common.PublicKey
}

// Result describes a committed transaction.
type Result struct {
	Signature string
	Logs      []string
}

// Runtime hosts programs and a bank of accounts.
type Runtime struct {
	mu       sync.Mutex
	bank     *Bank
	programs map[common.PublicKey]Program
	rent     Rent
	seq      uint64
	history  map[string]*Result
	logger   *zap.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithRent overrides the rent parameters.
func WithRent(r Rent) Option {
	return func(rt *Runtime) {
		rt.rent = r
	}
}

// WithLogger sets the logger used for transaction tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// New creates a runtime with an empty bank and the rent sysvar.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		bank:     NewBank(),
		programs: make(map[common.PublicKey]Program),
		rent:     DefaultRent(),
		history:  make(map[string]*Result),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rt)
	}

	data := rt.rent.encode()
	rt.bank.Set(address.RentSysvarID, Account{
		Lamports: rt.rent.MinimumBalance(len(data)),
		Data:     data,
		Owner:    sysvarOwner,
	})
	return rt
}

// Register deploys p at its ID.
func (rt *Runtime) Register(p Program) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.programs[p.ID()] = p
	rt.bank.Set(p.ID(), Account{
		Lamports:   1,
		Owner:      address.BPFLoaderProgramID,
		Executable: true,
	})
}

// Bank exposes the account store.
func (rt *Runtime) Bank() *Bank {
	return rt.bank
}

// Rent returns the rent parameters.
func (rt *Runtime) Rent() Rent {
	return rt.rent
}

// Transaction returns a committed transaction by signature.
func (rt *Runtime) Transaction(signature string) (*Result, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	res, ok := rt.history[signature]
	return res, ok
}

// Execute runs tx atomically. On failure no account is changed and the
// returned *TransactionError carries the logs up to the failure.
func (rt *Runtime) Execute(ctx context.Context, tx Transaction) (*Result, error) {
	if len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.seq++
	sig := rt.signature(tx)
	logs := &logCollector{}

	rt.bank.mu.Lock()
	defer rt.bank.mu.Unlock()

	snapshot := rt.bank.snapshotLocked()

	for i, ix := range tx.Instructions {
		if err := ctx.Err(); err != nil {
			rt.bank.restoreLocked(snapshot)
			return nil, err
		}
		if err := rt.executeInstruction(ctx, logs, tx.Signers, ix); err != nil {
			rt.bank.restoreLocked(snapshot)
			rt.logger.Debug("transaction failed",
				zap.String("signature", sig),
				zap.Int("instruction", i),
				zap.Error(err),
			)
			return nil, &TransactionError{Signature: sig, Index: i, Err: err, Logs: logs.lines}
		}
	}

	rt.bank.purgeLocked()

	res := &Result{Signature: sig, Logs: logs.lines}
	rt.history[sig] = res
	rt.logger.Debug("transaction committed",
		zap.String("signature", sig),
		zap.Int("instructions", len(tx.Instructions)),
	)
	return res, nil
}

func (rt *Runtime) executeInstruction(ctx context.Context, logs *logCollector, signers []common.PublicKey, ix types.Instruction) error {
	infos := make([]*AccountInfo, 0, len(ix.Accounts))
	privileges := make(map[common.PublicKey]*AccountInfo, len(ix.Accounts))

	for _, meta := range ix.Accounts {
		if meta.IsSigner && !slices.Contains(signers, meta.PubKey) {
			return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, meta.PubKey.ToBase58())
		}
		if prev, ok := privileges[meta.PubKey]; ok {
			prev.IsSigner = prev.IsSigner || meta.IsSigner
			prev.IsWritable = prev.IsWritable || meta.IsWritable
		} else {
			privileges[meta.PubKey] = &AccountInfo{
				Key:        meta.PubKey,
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
				Account:    rt.bank.loadLocked(meta.PubKey),
			}
		}
	}
	for _, meta := range ix.Accounts {
		infos = append(infos, privileges[meta.PubKey])
	}

	return rt.process(ctx, logs, nil, ix.ProgramID, infos, ix.Data)
}

// process invokes programID with accounts and checks the account rules
// on return. stack holds the callers, outermost first.
func (rt *Runtime) process(ctx context.Context, logs *logCollector, stack []common.PublicKey, programID common.PublicKey, accounts []*AccountInfo, data []byte) error {
	depth := len(stack) + 1
	if depth > MaxInvokeDepth {
		return ErrCallDepth
	}
	// Direct self-recursion is allowed, indirect re-entry is not.
	if len(stack) > 0 && stack[len(stack)-1] != programID && slices.Contains(stack, programID) {
		return ErrReentrancy
	}

	program, ok := rt.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedProgram, programID.ToBase58())
	}

	logs.add("Program %s invoke [%d]", programID.ToBase58(), depth)

	ic := &InvokeContext{
		ctx:       ctx,
		rt:        rt,
		logs:      logs,
		stack:     stack,
		programID: programID,
		accounts:  accounts,
		pre:       capture(accounts),
	}

	err := program.Process(ic, data)
	if err == nil {
		err = verify(programID, ic.pre, accounts)
	}
	if err != nil {
		logs.add("Program %s failed: %s", programID.ToBase58(), describe(err))
		return err
	}

	logs.add("Program %s success", programID.ToBase58())
	return nil
}

// signature derives a unique 64-byte transaction id.
func (rt *Runtime) signature(tx Transaction) string {
	h := sha512.New()
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], rt.seq)
	h.Write(seq[:])
	for _, ix := range tx.Instructions {
		h.Write(ix.ProgramID[:])
		for _, m := range ix.Accounts {
			h.Write(m.PubKey[:])
		}
		h.Write(ix.Data)
	}
	return base58.Encode(h.Sum(nil))
}

type accountState struct {
	lamports   uint64
	data       []byte
	owner      common.PublicKey
	executable bool
	writable   bool
}

func capture(accounts []*AccountInfo) map[common.PublicKey]accountState {
	pre := make(map[common.PublicKey]accountState, len(accounts))
	for _, a := range accounts {
		if _, ok := pre[a.Key]; ok {
			continue
		}
		pre[a.Key] = accountState{
			lamports:   a.Lamports,
			data:       bytes.Clone(a.Data),
			owner:      a.Owner,
			executable: a.Executable,
			writable:   a.IsWritable,
		}
	}
	return pre
}

// verify enforces that programID only changed what it is allowed to.
func verify(programID common.PublicKey, pre map[common.PublicKey]accountState, accounts []*AccountInfo) error {
	var before, after uint64
	seen := make(map[common.PublicKey]bool, len(pre))

	for _, a := range accounts {
		if seen[a.Key] {
			continue
		}
		seen[a.Key] = true

		p := pre[a.Key]
		before += p.lamports
		after += a.Lamports

		dataChanged := !bytes.Equal(p.data, a.Data)
		ownerChanged := p.owner != a.Owner
		lamportsChanged := p.lamports != a.Lamports

		if !p.writable && (dataChanged || ownerChanged || lamportsChanged) {
			return fmt.Errorf("%w: %s", ErrReadonlyModified, a.Key.ToBase58())
		}
		if p.executable != a.Executable {
			return fmt.Errorf("%w: %s", ErrExecutableModified, a.Key.ToBase58())
		}
		if ownerChanged && (p.owner != programID || !isZeroed(a.Data)) {
			return fmt.Errorf("%w: %s", ErrModifiedProgramID, a.Key.ToBase58())
		}
		if dataChanged && p.owner != programID {
			return fmt.Errorf("%w: %s", ErrExternalDataModified, a.Key.ToBase58())
		}
		if a.Lamports < p.lamports && p.owner != programID {
			return fmt.Errorf("%w: %s", ErrExternalLamportSpend, a.Key.ToBase58())
		}
	}

	if before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

type logCollector struct {
	lines []string
}

func (l *logCollector) add(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}
