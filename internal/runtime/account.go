package runtime

import (
	"bytes"
	"sync"

	"github.com/blocto/solana-go-sdk/common"
)

// Account is the state the runtime keeps per address.
type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      common.PublicKey
	Executable bool
}

func (a *Account) clone() *Account {
	c := *a
	c.Data = bytes.Clone(a.Data)
	return &c
}

// IsEmpty reports whether the account has never been created.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner == common.SystemProgramID
}

// AccountInfo is an account as seen by a program during one invocation.
// Account points into the bank, so writes are visible to the caller.
type AccountInfo struct {
	Key        common.PublicKey
	IsSigner   bool
	IsWritable bool
	*Account
}

// Bank holds all accounts of the runtime.
type Bank struct {
	mu       sync.RWMutex
	accounts map[common.PublicKey]*Account
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{accounts: make(map[common.PublicKey]*Account)}
}

// Get returns a copy of the account at key.
func (b *Bank) Get(key common.PublicKey) (Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	acct, ok := b.accounts[key]
	if !ok {
		return Account{}, false
	}
	return *acct.clone(), true
}

// Set stores a copy of acct at key.
func (b *Bank) Set(key common.PublicKey, acct Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[key] = acct.clone()
}

// Airdrop credits lamports to key, creating a system account if needed.
func (b *Bank) Airdrop(key common.PublicKey, lamports uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadLocked(key).Lamports += lamports
}

// Balance returns the lamports held by key.
func (b *Bank) Balance(key common.PublicKey) uint64 {
	acct, _ := b.Get(key)
	return acct.Lamports
}

// loadLocked returns the live account at key, materialising an empty
// system-owned account for unknown addresses.
func (b *Bank) loadLocked(key common.PublicKey) *Account {
	acct, ok := b.accounts[key]
	if !ok {
		acct = &Account{Owner: common.SystemProgramID}
		b.accounts[key] = acct
	}
	return acct
}

func (b *Bank) snapshotLocked() map[common.PublicKey]*Account {
	snap := make(map[common.PublicKey]*Account, len(b.accounts))
	for k, v := range b.accounts {
		snap[k] = v.clone()
	}
	return snap
}

func (b *Bank) restoreLocked(snap map[common.PublicKey]*Account) {
	b.accounts = snap
}

// purgeLocked drops accounts left with no lamports, as the cluster does.
func (b *Bank) purgeLocked() {
	for k, v := range b.accounts {
		if v.Lamports == 0 && !v.Executable {
			delete(b.accounts, k)
		}
	}
}
