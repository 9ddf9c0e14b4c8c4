package instruction

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"solana-token-manager/internal/address"
)

// Accounts of init_token.
const (
	InitMetadata = iota
	InitMint
	InitPayer
	InitRent
	InitSystemProgram
	InitTokenProgram
	InitMetadataProgram
	initAccounts
)

// Accounts of mint_tokens.
const (
	MintMint = iota
	MintDestination
	MintPayer
	MintRent
	MintSystemProgram
	MintTokenProgram
	MintAssociatedTokenProgram
	mintAccounts
)

// Accounts of transfer_tokens.
const (
	TransferSource = iota
	TransferDestination
	TransferPayer
	TransferAuthority
	TransferMint
	TransferTokenProgram
	TransferSystemProgram
	TransferAssociatedTokenProgram
	transferAccounts
)

// Accounts of burn_tokens.
const (
	BurnMint = iota
	BurnSource
	BurnOwner
	BurnTokenProgram
	burnAccounts
)

// AccountCount returns how many accounts kind expects.
func AccountCount(kind Kind) int {
	switch kind {
	case KindInitToken:
		return initAccounts
	case KindMintTokens:
		return mintAccounts
	case KindTransferTokens:
		return transferAccounts
	case KindBurnTokens:
		return burnAccounts
	}
	return 0
}

// InitToken creates the program mint and its metadata, paid by payer.
func InitToken(programID, payer common.PublicKey, params InitTokenParams) (types.Instruction, error) {
	mint, _, err := address.MintAddress(programID)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive mint: %w", err)
	}
	metadata, _, err := address.MetadataAddress(mint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive metadata: %w", err)
	}

	data, err := Decoded{Kind: KindInitToken, Init: &params}.Encode()
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			{PubKey: metadata, IsWritable: true},
			{PubKey: mint, IsWritable: true},
			{PubKey: payer, IsSigner: true, IsWritable: true},
			{PubKey: address.RentSysvarID},
			{PubKey: address.SystemProgramID},
			{PubKey: address.TokenProgramID},
			{PubKey: address.MetadataProgramID},
		},
		Data: data,
	}, nil
}

// MintTokens mints quantity base units to payer's associated token account.
func MintTokens(programID, payer common.PublicKey, quantity uint64) (types.Instruction, error) {
	mint, _, err := address.MintAddress(programID)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive mint: %w", err)
	}
	destination, _, err := address.AssociatedTokenAddress(payer, mint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive destination: %w", err)
	}

	data, err := Decoded{Kind: KindMintTokens, Quantity: quantity}.Encode()
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			{PubKey: mint, IsWritable: true},
			{PubKey: destination, IsWritable: true},
			{PubKey: payer, IsSigner: true, IsWritable: true},
			{PubKey: address.RentSysvarID},
			{PubKey: address.SystemProgramID},
			{PubKey: address.TokenProgramID},
			{PubKey: address.AssociatedTokenProgram},
		},
		Data: data,
	}, nil
}

// TransferAccounts names the accounts of a transfer.
type TransferAccounts struct {
	Source      common.PublicKey
	Destination common.PublicKey
	Payer       common.PublicKey
	Authority   common.PublicKey
}

// TransferTokens moves quantity base units between two token accounts of the program mint.
func TransferTokens(programID common.PublicKey, accts TransferAccounts, quantity uint64) (types.Instruction, error) {
	mint, _, err := address.MintAddress(programID)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive mint: %w", err)
	}

	data, err := Decoded{Kind: KindTransferTokens, Quantity: quantity}.Encode()
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			{PubKey: accts.Source, IsWritable: true},
			{PubKey: accts.Destination, IsWritable: true},
			{PubKey: accts.Payer, IsSigner: true, IsWritable: true},
			{PubKey: accts.Authority, IsSigner: true, IsWritable: true},
			{PubKey: mint},
			{PubKey: address.TokenProgramID},
			{PubKey: address.SystemProgramID},
			{PubKey: address.AssociatedTokenProgram},
		},
		Data: data,
	}, nil
}

// BurnTokens burns quantity base units from owner's associated token account.
func BurnTokens(programID, owner common.PublicKey, quantity uint64) (types.Instruction, error) {
	mint, _, err := address.MintAddress(programID)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive mint: %w", err)
	}
	source, _, err := address.AssociatedTokenAddress(owner, mint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("derive source: %w", err)
	}

	data, err := Decoded{Kind: KindBurnTokens, Quantity: quantity}.Encode()
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			{PubKey: mint, IsWritable: true},
			{PubKey: source, IsWritable: true},
			{PubKey: owner, IsSigner: true},
			{PubKey: address.TokenProgramID},
		},
		Data: data,
	}, nil
}
