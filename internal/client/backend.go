package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"solana-token-manager/internal/program"
	"solana-token-manager/internal/runtime"
)

// ErrAccountNotFound is returned by AccountReader for addresses with no account.
var ErrAccountNotFound = errors.New("account not found")

// Receipt is a confirmed transaction.
type Receipt struct {
	Signature string
	Logs      []string
}

// Submitter signs, sends and confirms a transaction.
type Submitter interface {
	Submit(ctx context.Context, feePayer types.Account, ixs []types.Instruction, signers ...types.Account) (*Receipt, error)
}

// Account is an account's data and owner as of Slot.
type Account struct {
	Data  []byte
	Owner common.PublicKey
	Slot  int64 // slot the account was read at
}

// AccountReader loads account data.
type AccountReader interface {
	Account(ctx context.Context, key common.PublicKey) (*Account, error)
}

// TransactionError is a transaction the cluster or runtime rejected.
type TransactionError struct {
	Signature string
	Logs      []string
	Err       error
}

func (e *TransactionError) Error() string {
	if e.Signature == "" {
		return fmt.Sprintf("transaction failed: %v", e.Err)
	}
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// ProgramError returns the token manager error code carried by err, either
// as a wrapped value (local runtime) or in the transaction logs (cluster).
func ProgramError(err error) (program.ErrorCode, bool) {
	var code program.ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		return 0, false
	}
	for _, line := range txErr.Logs {
		i := strings.Index(line, "Error Code: ")
		if i < 0 {
			continue
		}
		name := line[i+len("Error Code: "):]
		if j := strings.IndexByte(name, '.'); j >= 0 {
			name = name[:j]
		}
		if c, ok := program.ErrorCodeFromName(name); ok {
			return c, true
		}
	}
	return 0, false
}

// Local runs transactions against an in-process runtime.
type Local struct {
	rt *runtime.Runtime
}

// NewLocal wraps rt.
func NewLocal(rt *runtime.Runtime) *Local {
	return &Local{rt: rt}
}

// Submit implements Submitter. The fee payer must be among the signers.
func (l *Local) Submit(ctx context.Context, feePayer types.Account, ixs []types.Instruction, signers ...types.Account) (*Receipt, error) {
	all := append([]types.Account{feePayer}, signers...)
	res, err := l.rt.Submit(ctx, ixs, all...)
	if err != nil {
		var txErr *runtime.TransactionError
		if errors.As(err, &txErr) {
			return nil, &TransactionError{Signature: txErr.Signature, Logs: txErr.Logs, Err: txErr.Err}
		}
		return nil, err
	}
	return &Receipt{Signature: res.Signature, Logs: res.Logs}, nil
}

// Account implements AccountReader. The slot is the runtime's current one.
func (l *Local) Account(_ context.Context, key common.PublicKey) (*Account, error) {
	slot := l.rt.Slot()
	data, owner, ok := l.rt.AccountData(key)
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &Account{Data: data, Owner: owner, Slot: slot}, nil
}

var (
	_ Submitter     = (*Local)(nil)
	_ AccountReader = (*Local)(nil)
)
