package stub

import "fmt"

// TokenError is an SPL Token program error code.
type TokenError uint32

const (
	TokenNotRentExempt      TokenError = 0
	TokenInsufficientFunds  TokenError = 1
	TokenInvalidMint        TokenError = 2
	TokenMintMismatch       TokenError = 3
	TokenOwnerMismatch      TokenError = 4
	TokenFixedSupply        TokenError = 5
	TokenAlreadyInUse       TokenError = 6
	TokenUninitializedState TokenError = 9
	TokenInvalidInstruction TokenError = 12
	TokenInvalidState       TokenError = 13
	TokenOverflow           TokenError = 14
	TokenAccountFrozen      TokenError = 17
)

var tokenErrorText = map[TokenError]string{
	TokenNotRentExempt:      "lamport balance below rent-exempt threshold",
	TokenInsufficientFunds:  "insufficient funds",
	TokenInvalidMint:        "invalid Mint",
	TokenMintMismatch:       "account not associated with this Mint",
	TokenOwnerMismatch:      "owner does not match",
	TokenFixedSupply:        "fixed supply",
	TokenAlreadyInUse:       "account or token already in use",
	TokenUninitializedState: "state is uninitialized",
	TokenInvalidInstruction: "invalid instruction",
	TokenInvalidState:       "state is invalid for requested operation",
	TokenOverflow:           "operation overflowed",
	TokenAccountFrozen:      "account is frozen",
}

func (e TokenError) Error() string {
	if s, ok := tokenErrorText[e]; ok {
		return s
	}
	return fmt.Sprintf("token error %d", uint32(e))
}

// Code returns the custom program error code.
func (e TokenError) Code() uint32 { return uint32(e) }

// SystemError is a System program error code.
type SystemError uint32

const (
	SystemAccountAlreadyInUse        SystemError = 0
	SystemResultWithNegativeLamports SystemError = 1
	SystemInvalidAccountDataLength   SystemError = 3
)

func (e SystemError) Error() string {
	switch e {
	case SystemAccountAlreadyInUse:
		return "an account with the same address already exists"
	case SystemResultWithNegativeLamports:
		return "account does not have enough SOL to perform the operation"
	case SystemInvalidAccountDataLength:
		return "cannot allocate account data of this length"
	}
	return fmt.Sprintf("system error %d", uint32(e))
}

// Code returns the custom program error code.
func (e SystemError) Code() uint32 { return uint32(e) }

// MetadataError is a Token Metadata program error code.
type MetadataError uint32

const (
	MetadataInstructionUnpack    MetadataError = 0
	MetadataAlreadyInitialized   MetadataError = 3
	MetadataInvalidMetadataKey   MetadataError = 5
	MetadataInvalidMintAuthority MetadataError = 10
	MetadataNameTooLong          MetadataError = 11
	MetadataSymbolTooLong        MetadataError = 12
	MetadataURITooLong           MetadataError = 13
	MetadataIncorrectOwner       MetadataError = 57
)

var metadataErrorText = map[MetadataError]string{
	MetadataInstructionUnpack:    "failed to unpack instruction data",
	MetadataAlreadyInitialized:   "already initialized",
	MetadataInvalidMetadataKey:   "invalid metadata key",
	MetadataInvalidMintAuthority: "invalid mint authority",
	MetadataNameTooLong:          "name too long",
	MetadataSymbolTooLong:        "symbol too long",
	MetadataURITooLong:           "URI too long",
	MetadataIncorrectOwner:       "incorrect account owner",
}

func (e MetadataError) Error() string {
	if s, ok := metadataErrorText[e]; ok {
		return s
	}
	return fmt.Sprintf("metadata error %d", uint32(e))
}

// Code returns the custom program error code.
func (e MetadataError) Code() uint32 { return uint32(e) }
