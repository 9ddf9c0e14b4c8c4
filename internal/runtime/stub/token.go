package stub

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/blocto/solana-go-sdk/common"

	"solana-token-manager/internal/layout"
	"solana-token-manager/internal/runtime"
)

// SPL Token instruction tags.
const (
	tokenInitializeMint     byte = 0
	tokenTransfer           byte = 3
	tokenMintTo             byte = 7
	tokenBurn               byte = 8
	tokenInitializeAccount3 byte = 18
)

// InitializeAccount3Data encodes the SPL Token InitializeAccount3 instruction.
func InitializeAccount3Data(owner common.PublicKey) []byte {
	return append([]byte{tokenInitializeAccount3}, owner.Bytes()...)
}

// Token stands in for the SPL Token program.
type Token struct{}

// ID implements runtime.Program.
func (Token) ID() common.PublicKey { return common.TokenProgramID }

// Process implements runtime.Program.
func (t Token) Process(ic *runtime.InvokeContext, data []byte) error {
	err := t.process(ic, data)
	var tokenErr TokenError
	if errors.As(err, &tokenErr) {
		ic.Log("Error: %s", tokenErr.Error())
	}
	return err
}

func (t Token) process(ic *runtime.InvokeContext, data []byte) error {
	if len(data) == 0 {
		return TokenInvalidInstruction
	}
	switch data[0] {
	case tokenInitializeMint:
		ic.Log("Instruction: InitializeMint")
		// decimals(1) | mint_authority(32) | freeze COption tag(1) | freeze(32)
		if len(data) < 35 {
			return TokenInvalidInstruction
		}
		auth := common.PublicKeyFromBytes(data[2:34])
		var freeze *common.PublicKey
		if data[34] == 1 {
			if len(data) < 67 {
				return TokenInvalidInstruction
			}
			k := common.PublicKeyFromBytes(data[35:67])
			freeze = &k
		}
		return t.initializeMint(ic, data[1], auth, freeze)
	case tokenInitializeAccount3:
		ic.Log("Instruction: InitializeAccount3")
		if len(data) < 33 {
			return TokenInvalidInstruction
		}
		return t.initializeAccount(ic, common.PublicKeyFromBytes(data[1:33]))
	case tokenMintTo, tokenTransfer, tokenBurn:
		if len(data) < 9 {
			return TokenInvalidInstruction
		}
		amount := binary.LittleEndian.Uint64(data[1:9])
		switch data[0] {
		case tokenMintTo:
			ic.Log("Instruction: MintTo")
			return t.mintTo(ic, amount)
		case tokenTransfer:
			ic.Log("Instruction: Transfer")
			return t.transfer(ic, amount)
		default:
			ic.Log("Instruction: Burn")
			return t.burn(ic, amount)
		}
	}
	return TokenInvalidInstruction
}

func (Token) initializeMint(ic *runtime.InvokeContext, decimals uint8, auth common.PublicKey, freeze *common.PublicKey) error {
	accts, err := accounts(ic, 1)
	if err != nil {
		return err
	}
	mint := accts[0]
	if mint.Owner != common.TokenProgramID {
		return runtime.ErrIncorrectProgramID
	}
	if len(mint.Data) != layout.MintSize {
		return runtime.ErrInvalidAccountData
	}
	if existing, err := layout.DecodeMint(mint.Data); err == nil && existing.IsInitialized {
		return TokenAlreadyInUse
	}
	if !ic.Rent().IsExempt(mint.Lamports, len(mint.Data)) {
		return TokenNotRentExempt
	}

	m := layout.Mint{
		MintAuthority:   &auth,
		Decimals:        decimals,
		IsInitialized:   true,
		FreezeAuthority: freeze,
	}
	mint.Data = m.Encode()
	return nil
}

func (Token) initializeAccount(ic *runtime.InvokeContext, owner common.PublicKey) error {
	accts, err := accounts(ic, 2)
	if err != nil {
		return err
	}
	acct, mintInfo := accts[0], accts[1]
	if acct.Owner != common.TokenProgramID {
		return runtime.ErrIncorrectProgramID
	}
	if len(acct.Data) != layout.TokenAccountSize {
		return runtime.ErrInvalidAccountData
	}
	if _, err := layout.DecodeTokenAccount(acct.Data); err == nil {
		return TokenAlreadyInUse
	}
	if !ic.Rent().IsExempt(acct.Lamports, len(acct.Data)) {
		return TokenNotRentExempt
	}
	if _, err := loadMint(mintInfo); err != nil {
		return TokenInvalidMint
	}

	ta := layout.TokenAccount{
		Mint:  mintInfo.Key,
		Owner: owner,
		State: layout.AccountStateInitialized,
	}
	acct.Data = ta.Encode()
	return nil
}

func (Token) mintTo(ic *runtime.InvokeContext, amount uint64) error {
	accts, err := accounts(ic, 3)
	if err != nil {
		return err
	}
	mintInfo, destInfo, auth := accts[0], accts[1], accts[2]

	dest, err := loadTokenAccount(destInfo)
	if err != nil {
		return err
	}
	if dest.State == layout.AccountStateFrozen {
		return TokenAccountFrozen
	}
	if dest.Mint != mintInfo.Key {
		return TokenMintMismatch
	}
	mint, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil {
		return TokenFixedSupply
	}
	if *mint.MintAuthority != auth.Key {
		return TokenOwnerMismatch
	}
	if err := requireSigner(auth); err != nil {
		return err
	}

	if dest.Amount > math.MaxUint64-amount || mint.Supply > math.MaxUint64-amount {
		return TokenOverflow
	}
	dest.Amount += amount
	mint.Supply += amount

	destInfo.Data = dest.Encode()
	mintInfo.Data = mint.Encode()
	return nil
}

func (Token) transfer(ic *runtime.InvokeContext, amount uint64) error {
	accts, err := accounts(ic, 3)
	if err != nil {
		return err
	}
	srcInfo, dstInfo, auth := accts[0], accts[1], accts[2]

	src, err := loadTokenAccount(srcInfo)
	if err != nil {
		return err
	}
	dst, err := loadTokenAccount(dstInfo)
	if err != nil {
		return err
	}
	if src.State == layout.AccountStateFrozen || dst.State == layout.AccountStateFrozen {
		return TokenAccountFrozen
	}
	if src.Amount < amount {
		return TokenInsufficientFunds
	}
	if src.Mint != dst.Mint {
		return TokenMintMismatch
	}
	if src.Owner != auth.Key {
		return TokenOwnerMismatch
	}
	if err := requireSigner(auth); err != nil {
		return err
	}

	if srcInfo.Key == dstInfo.Key {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return TokenOverflow
	}
	src.Amount -= amount
	dst.Amount += amount

	srcInfo.Data = src.Encode()
	dstInfo.Data = dst.Encode()
	return nil
}

func (Token) burn(ic *runtime.InvokeContext, amount uint64) error {
	accts, err := accounts(ic, 3)
	if err != nil {
		return err
	}
	srcInfo, mintInfo, auth := accts[0], accts[1], accts[2]

	src, err := loadTokenAccount(srcInfo)
	if err != nil {
		return err
	}
	if src.State == layout.AccountStateFrozen {
		return TokenAccountFrozen
	}
	if src.Mint != mintInfo.Key {
		return TokenMintMismatch
	}
	mint, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	if src.Amount < amount {
		return TokenInsufficientFunds
	}
	if src.Owner != auth.Key {
		return TokenOwnerMismatch
	}
	if err := requireSigner(auth); err != nil {
		return err
	}
	if mint.Supply < amount {
		return TokenOverflow
	}

	src.Amount -= amount
	mint.Supply -= amount

	srcInfo.Data = src.Encode()
	mintInfo.Data = mint.Encode()
	return nil
}

func loadMint(info *runtime.AccountInfo) (*layout.Mint, error) {
	if info.Owner != common.TokenProgramID {
		return nil, runtime.ErrIncorrectProgramID
	}
	m, err := layout.DecodeMint(info.Data)
	if err != nil {
		if errors.Is(err, layout.ErrUninitialized) {
			return nil, TokenUninitializedState
		}
		return nil, runtime.ErrInvalidAccountData
	}
	return m, nil
}

func loadTokenAccount(info *runtime.AccountInfo) (*layout.TokenAccount, error) {
	if info.Owner != common.TokenProgramID {
		return nil, runtime.ErrIncorrectProgramID
	}
	a, err := layout.DecodeTokenAccount(info.Data)
	if err != nil {
		if errors.Is(err, layout.ErrUninitialized) {
			return nil, TokenUninitializedState
		}
		return nil, runtime.ErrInvalidAccountData
	}
	return a, nil
}
