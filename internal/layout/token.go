// Package layout encodes the account data of the SPL Token and Metaplex
// Token Metadata programs and decodes it through the SDK's program
// packages.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/token"
)

// Fixed account sizes.
const (
	MintSize         = 82
	TokenAccountSize = 165
)

// Token account states.
const (
	AccountStateUninitialized uint8 = iota
	AccountStateInitialized
	AccountStateFrozen
)

var (
	ErrDataTooShort  = errors.New("account data too short")
	ErrUninitialized = errors.New("account not initialized")
	ErrMalformed     = errors.New("malformed account data")
)

// Mint is the SPL Token mint record.
type Mint struct {
	MintAuthority   *common.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *common.PublicKey
}

// TokenAccount is the SPL Token holding record.
type TokenAccount struct {
	Mint            common.PublicKey
	Owner           common.PublicKey
	Amount          uint64
	Delegate        *common.PublicKey
	State           uint8
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *common.PublicKey
}

// Encode packs the mint into its 82-byte layout.
// Layout: mint_authority COption(36) | supply(8) | decimals(1) | is_initialized(1) | freeze_authority COption(36)
func (m *Mint) Encode() []byte {
	buf := make([]byte, MintSize)
	putOptionKey(buf[0:36], m.MintAuthority)
	binary.LittleEndian.PutUint64(buf[36:44], m.Supply)
	buf[44] = m.Decimals
	buf[45] = boolByte(m.IsInitialized)
	putOptionKey(buf[46:82], m.FreezeAuthority)
	return buf
}

// DecodeMint unpacks mint data. Bytes past MintSize are ignored.
// Uninitialized mints are returned together with ErrUninitialized.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("%w: mint needs %d bytes, got %d", ErrDataTooShort, MintSize, len(data))
	}
	raw, err := token.MintAccountFromData(data[:MintSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m := &Mint{
		MintAuthority:   raw.MintAuthority,
		Supply:          raw.Supply,
		Decimals:        raw.Decimals,
		IsInitialized:   raw.IsInitialized,
		FreezeAuthority: raw.FreezeAuthority,
	}
	if !m.IsInitialized {
		return m, ErrUninitialized
	}
	return m, nil
}

// Encode packs the token account into its 165-byte layout.
// Layout: mint(32) | owner(32) | amount(8) | delegate COption(36) | state(1) |
// is_native COption<u64>(12) | delegated_amount(8) | close_authority COption(36)
func (a *TokenAccount) Encode() []byte {
	buf := make([]byte, TokenAccountSize)
	copy(buf[0:32], a.Mint[:])
	copy(buf[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(buf[64:72], a.Amount)
	putOptionKey(buf[72:108], a.Delegate)
	buf[108] = a.State
	if a.IsNative != nil {
		binary.LittleEndian.PutUint32(buf[109:113], 1)
		binary.LittleEndian.PutUint64(buf[113:121], *a.IsNative)
	}
	binary.LittleEndian.PutUint64(buf[121:129], a.DelegatedAmount)
	putOptionKey(buf[129:165], a.CloseAuthority)
	return buf
}

// DecodeTokenAccount unpacks token account data. Bytes past
// TokenAccountSize are ignored.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("%w: token account needs %d bytes, got %d", ErrDataTooShort, TokenAccountSize, len(data))
	}
	raw, err := token.TokenAccountFromData(data[:TokenAccountSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	a := &TokenAccount{
		Mint:            raw.Mint,
		Owner:           raw.Owner,
		Amount:          raw.Amount,
		Delegate:        raw.Delegate,
		State:           uint8(raw.State),
		IsNative:        raw.IsNative,
		DelegatedAmount: raw.DelegatedAmount,
		CloseAuthority:  raw.CloseAuthority,
	}
	if a.State == AccountStateUninitialized {
		return a, ErrUninitialized
	}
	return a, nil
}

// putOptionKey writes a COption<Pubkey>: u32 tag followed by 32 bytes.
func putOptionKey(dst []byte, key *common.PublicKey) {
	if key == nil {
		return
	}
	binary.LittleEndian.PutUint32(dst[0:4], 1)
	copy(dst[4:36], key[:])
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
