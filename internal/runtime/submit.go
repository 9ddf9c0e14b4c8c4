package runtime

import (
	"context"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// Submit executes ixs as one transaction signed by signers.
func (rt *Runtime) Submit(ctx context.Context, ixs []types.Instruction, signers ...types.Account) (*Result, error) {
	keys := make([]common.PublicKey, 0, len(signers))
	for _, s := range signers {
		keys = append(keys, s.PublicKey)
	}
	return rt.Execute(ctx, Transaction{Instructions: ixs, Signers: keys})
}

// AccountData returns the data and owner of key, or false when the account does not exist.
func (rt *Runtime) AccountData(key common.PublicKey) ([]byte, common.PublicKey, bool) {
	acct, ok := rt.bank.Get(key)
	if !ok || acct.IsEmpty() {
		return nil, common.PublicKey{}, false
	}
	return acct.Data, acct.Owner, true
}

// Slot returns the current slot. The local runtime opens one slot per
// executed transaction.
func (rt *Runtime) Slot() int64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return int64(rt.seq)
}
