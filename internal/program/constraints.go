package program

import (
	"errors"

	"github.com/blocto/solana-go-sdk/common"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/layout"
	"solana-token-manager/internal/runtime"
)

func accountsFor(ic *runtime.InvokeContext, n int) ([]*runtime.AccountInfo, error) {
	accts := ic.Accounts()
	if len(accts) < n {
		return nil, &AnchorError{ErrorCode: AccountNotEnoughKeys}
	}
	return accts, nil
}

func mut(info *runtime.AccountInfo, name string) error {
	if !info.IsWritable {
		return accountError(ConstraintMut, name)
	}
	return nil
}

func signer(info *runtime.AccountInfo, name string) error {
	if !info.IsSigner {
		return accountError(AccountNotSigner, name)
	}
	return nil
}

// payerSigner is the `#[account(mut)] Signer` pattern.
func payerSigner(info *runtime.AccountInfo, name string) error {
	if err := signer(info, name); err != nil {
		return err
	}
	return mut(info, name)
}

func programAccount(info *runtime.AccountInfo, id common.PublicKey, name string) error {
	if info.Key != id {
		return accountError(InvalidProgramID, name)
	}
	return nil
}

func rentSysvar(info *runtime.AccountInfo) error {
	if info.Key != address.RentSysvarID {
		return accountError(AccountSysvarMismatch, "rent")
	}
	return nil
}

// mintPDA checks the seeds constraint of the mint and returns its bump.
func mintPDA(programID common.PublicKey, info *runtime.AccountInfo) (uint8, error) {
	expected, bump, err := address.MintAddress(programID)
	if err != nil {
		return 0, err
	}
	if expected != info.Key {
		return 0, accountError(ConstraintSeeds, "mint")
	}
	return bump, nil
}

func tokenOwned(info *runtime.AccountInfo, name string) error {
	if info.IsEmpty() {
		return accountError(AccountNotInitialized, name)
	}
	if info.Owner != common.TokenProgramID {
		return accountError(AccountOwnedByWrongProgram, name)
	}
	return nil
}

// loadMint is `Account<'info, Mint>`.
func loadMint(info *runtime.AccountInfo, name string) (*layout.Mint, error) {
	if err := tokenOwned(info, name); err != nil {
		return nil, err
	}
	m, err := layout.DecodeMint(info.Data)
	switch {
	case errors.Is(err, layout.ErrUninitialized):
		return nil, accountError(AccountNotInitialized, name)
	case err != nil:
		return nil, accountError(AccountDidNotDeserialize, name)
	}
	return m, nil
}

// loadTokenAccount is `Account<'info, TokenAccount>`.
func loadTokenAccount(info *runtime.AccountInfo, name string) (*layout.TokenAccount, error) {
	if err := tokenOwned(info, name); err != nil {
		return nil, err
	}
	a, err := layout.DecodeTokenAccount(info.Data)
	switch {
	case errors.Is(err, layout.ErrUninitialized):
		return nil, accountError(AccountNotInitialized, name)
	case err != nil:
		return nil, accountError(AccountDidNotDeserialize, name)
	}
	return a, nil
}

// associatedToken checks the associated_token::mint and ::authority constraints.
func associatedToken(info *runtime.AccountInfo, acct *layout.TokenAccount, mint, authority common.PublicKey, name string) error {
	if acct.Mint != mint {
		return accountError(ConstraintTokenMint, name)
	}
	if acct.Owner != authority {
		return accountError(ConstraintTokenOwner, name)
	}
	expected, _, err := address.AssociatedTokenAddress(authority, mint)
	if err != nil {
		return err
	}
	if expected != info.Key {
		return accountError(AccountNotAssociatedTokenAccount, name)
	}
	return nil
}
