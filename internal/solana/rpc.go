package solana

import (
	"context"
	"errors"
)

// ErrAccountNotFound is returned by GetAccountInfo for addresses with no account.
var ErrAccountNotFound = errors.New("account not found")

// RPCClient defines the Solana JSON-RPC methods the token manager uses.
type RPCClient interface {
	// GetAccountInfo retrieves an account, ErrAccountNotFound if it does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetLatestBlockhash returns a blockhash to sign transactions with.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SendTransaction submits a serialized, signed transaction and returns its signature.
	SendTransaction(ctx context.Context, raw []byte) (string, error)

	// GetSignatureStatuses returns the status of each signature, nil for unknown ones.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a transaction by signature, nil if unknown.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetMinimumBalanceForRentExemption returns the rent-exempt balance for size bytes.
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

// Transaction represents a confirmed Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	InnerInstructions []InnerInstructions
}

// TransactionMessage contains parsed transaction message. AccountKeys
// includes addresses loaded from lookup tables, writable ones first.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []CompiledInstruction
}

// CompiledInstruction is an instruction whose program and accounts are
// indexes into the message's account keys.
type CompiledInstruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           []byte
}

// InnerInstructions are the cross-program calls made while executing the
// top-level instruction at Index, in execution order.
type InnerInstructions struct {
	Index        int
	Instructions []CompiledInstruction
}

// AccountInfo is an account with its data decoded from base64.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool
	RentEpoch  uint64
	Slot       int64 // context slot the node answered at
}
