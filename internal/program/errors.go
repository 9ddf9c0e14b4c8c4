package program

import (
	"errors"
	"fmt"

	"solana-token-manager/internal/runtime"
)

// ErrorCode is an Anchor framework error code.
type ErrorCode uint32

const (
	InstructionMissing               ErrorCode = 100
	InstructionFallbackNotFound      ErrorCode = 101
	InstructionDidNotDeserialize     ErrorCode = 102
	ConstraintMut                    ErrorCode = 2000
	ConstraintSeeds                  ErrorCode = 2006
	ConstraintTokenMint              ErrorCode = 2014
	ConstraintTokenOwner             ErrorCode = 2015
	ConstraintMintMintAuthority      ErrorCode = 2016
	AccountDidNotDeserialize         ErrorCode = 3003
	AccountNotEnoughKeys             ErrorCode = 3005
	AccountNotMutable                ErrorCode = 3006
	AccountOwnedByWrongProgram       ErrorCode = 3007
	InvalidProgramID                 ErrorCode = 3008
	AccountNotSigner                 ErrorCode = 3010
	AccountNotInitialized            ErrorCode = 3012
	AccountNotAssociatedTokenAccount ErrorCode = 3014
	AccountSysvarMismatch            ErrorCode = 3015
)

var errorNames = map[ErrorCode][2]string{
	InstructionMissing:               {"InstructionMissing", "8 byte instruction identifier not provided"},
	InstructionFallbackNotFound:      {"InstructionFallbackNotFound", "Fallback functions are not supported"},
	InstructionDidNotDeserialize:     {"InstructionDidNotDeserialize", "The program could not deserialize the given instruction"},
	ConstraintMut:                    {"ConstraintMut", "A mut constraint was violated"},
	ConstraintSeeds:                  {"ConstraintSeeds", "A seeds constraint was violated"},
	ConstraintTokenMint:              {"ConstraintTokenMint", "A token mint constraint was violated"},
	ConstraintTokenOwner:             {"ConstraintTokenOwner", "A token owner constraint was violated"},
	ConstraintMintMintAuthority:      {"ConstraintMintMintAuthority", "A mint mint authority constraint was violated"},
	AccountDidNotDeserialize:         {"AccountDidNotDeserialize", "Failed to deserialize the account"},
	AccountNotEnoughKeys:             {"AccountNotEnoughKeys", "Not enough account keys given to the instruction"},
	AccountNotMutable:                {"AccountNotMutable", "The given account is not mutable"},
	AccountOwnedByWrongProgram:       {"AccountOwnedByWrongProgram", "The given account is owned by a different program than expected"},
	InvalidProgramID:                 {"InvalidProgramId", "Program ID was not as expected"},
	AccountNotSigner:                 {"AccountNotSigner", "The given account did not sign"},
	AccountNotInitialized:            {"AccountNotInitialized", "The program expected this account to be already initialized"},
	AccountNotAssociatedTokenAccount: {"AccountNotAssociatedTokenAccount", "The given account is not the associated token account"},
	AccountSysvarMismatch:            {"AccountSysvarMismatch", "The given public key does not match the required sysvar"},
}

// Name returns the Anchor name of the code.
func (c ErrorCode) Name() string {
	if n, ok := errorNames[c]; ok {
		return n[0]
	}
	return fmt.Sprintf("Error%d", uint32(c))
}

// Message returns the Anchor message of the code.
func (c ErrorCode) Message() string {
	if n, ok := errorNames[c]; ok {
		return n[1]
	}
	return "unknown error"
}

func (c ErrorCode) Error() string {
	return c.Name() + ": " + c.Message()
}

// Code implements runtime.CodedError.
func (c ErrorCode) Code() uint32 { return uint32(c) }

// ErrorCodeFromName looks up a code by its Anchor name.
func ErrorCodeFromName(name string) (ErrorCode, bool) {
	for c, n := range errorNames {
		if n[0] == name {
			return c, true
		}
	}
	return 0, false
}

// AnchorError is an ErrorCode raised while validating a named account.
type AnchorError struct {
	ErrorCode
	Account string
}

func (e *AnchorError) Error() string {
	if e.Account == "" {
		return fmt.Sprintf("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.",
			e.Name(), uint32(e.ErrorCode), e.Message())
	}
	return fmt.Sprintf("AnchorError caused by account: %s. Error Code: %s. Error Number: %d. Error Message: %s.",
		e.Account, e.Name(), uint32(e.ErrorCode), e.Message())
}

func (e *AnchorError) Unwrap() error {
	return e.ErrorCode
}

func accountError(code ErrorCode, account string) error {
	return &AnchorError{ErrorCode: code, Account: account}
}

// Compile-time check that program errors travel as custom codes.
var _ runtime.CodedError = ErrorCode(0)

// isAnchor reports whether err was raised by the program rather than a callee.
func isAnchor(err error) (*AnchorError, bool) {
	var ae *AnchorError
	ok := errors.As(err, &ae)
	return ae, ok
}
