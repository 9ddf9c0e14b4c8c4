// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"solana-token-manager/internal/solana"
)

// RPCClient implements solana.RPCClient for testing. Sent transactions are
// recorded; their outcome is decided by OnSend.
type RPCClient struct {
	mu sync.Mutex

	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Accounts     map[string]*solana.AccountInfo
	Statuses     map[string]*solana.SignatureStatus

	Blockhash       string
	Slot            int64
	RentPerByteYear uint64

	// OnSend, when set, returns the signature or an error for a raw transaction.
	OnSend func(raw []byte) (string, error)
	Sent   [][]byte
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:    make(map[string]*solana.Transaction),
		Signatures:      make(map[string][]solana.SignatureInfo),
		Accounts:        make(map[string]*solana.AccountInfo),
		Statuses:        make(map[string]*solana.SignatureStatus),
		Blockhash:       "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
		RentPerByteYear: 3480,
	}
}

// GetAccountInfo returns a stored account as of the configured slot.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, solana.ErrAccountNotFound
	}
	out := *info
	out.Slot = c.Slot
	return &out, nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &solana.Blockhash{Blockhash: c.Blockhash, LastValidBlockHeight: uint64(c.Slot) + 150}, nil
}

// SendTransaction records raw. Without OnSend the signature is the base58
// of the first signature in the wire transaction.
func (c *RPCClient) SendTransaction(_ context.Context, raw []byte) (string, error) {
	c.mu.Lock()
	c.Sent = append(c.Sent, raw)
	onSend := c.OnSend
	c.mu.Unlock()

	if onSend != nil {
		return onSend(raw)
	}
	// compact-u16 signature count followed by 64-byte signatures
	if len(raw) < 65 {
		return "", fmt.Errorf("transaction too short: %d bytes", len(raw))
	}
	return base58.Encode(raw[1:65]), nil
}

// GetSignatureStatuses returns stored statuses, nil for unknown signatures.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		out[i] = c.Statuses[sig]
	}
	return out, nil
}

// GetSignaturesForAddress retrieves signatures for an address from the stub
// store, newest first, honouring Before and Limit.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sigs, ok := c.Signatures[address]
	if !ok {
		return nil, nil
	}

	if opts != nil && opts.Before != "" {
		for i, s := range sigs {
			if s.Signature == opts.Before {
				sigs = sigs[i+1:]
				break
			}
		}
	}

	if opts != nil && opts.Until != "" {
		for i, s := range sigs {
			if s.Signature == opts.Until {
				sigs = sigs[:i]
				break
			}
		}
	}

	// Apply limit if specified
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}

	return sigs, nil
}

// GetTransaction retrieves a transaction by signature from the stub store,
// nil when unknown.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Transactions[signature], nil
}

// GetMinimumBalanceForRentExemption uses the cluster's default rent.
func (c *RPCClient) GetMinimumBalanceForRentExemption(_ context.Context, size uint64) (uint64, error) {
	return (128 + size) * c.RentPerByteYear * 2, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Slot, nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures sets the signatures of an address, newest first as the RPC returns them.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

// SetAccount stores an account.
func (c *RPCClient) SetAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

// SetStatus stores a signature status.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = status
}

var _ solana.RPCClient = (*RPCClient)(nil)
