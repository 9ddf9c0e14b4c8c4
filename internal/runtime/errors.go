package runtime

import (
	"errors"
	"fmt"
	"strings"
)

// Instruction errors raised by the runtime itself.
var (
	ErrMissingRequiredSignature = errors.New("missing required signature for instruction")
	ErrMissingAccount           = errors.New("an account required by the instruction is missing")
	ErrNotEnoughAccountKeys     = errors.New("insufficient account keys for instruction")
	ErrPrivilegeEscalation      = errors.New("cross-program invocation with unauthorized signer or writable account")
	ErrCallDepth                = errors.New("cross-program invocation call depth too deep")
	ErrReentrancy               = errors.New("cross-program invocation reentrancy not allowed for this instruction")
	ErrUnsupportedProgram       = errors.New("unsupported program id")
	ErrInvalidSeeds             = errors.New("provided seeds do not result in a valid address")
	ErrReadonlyModified         = errors.New("instruction modified a read-only account")
	ErrExternalDataModified     = errors.New("instruction modified data of an account it does not own")
	ErrExternalLamportSpend     = errors.New("instruction spent from the balance of an account it does not own")
	ErrModifiedProgramID        = errors.New("instruction illegally modified the program id of an account")
	ErrExecutableModified       = errors.New("instruction changed executable bit of an account")
	ErrUnbalancedInstruction    = errors.New("sum of account balances before and after instruction do not match")
	ErrInvalidAccountData       = errors.New("invalid account data for instruction")
	ErrInvalidInstructionData   = errors.New("invalid instruction data")
	ErrIncorrectProgramID       = errors.New("incorrect program id for instruction")
	ErrInvalidArgument          = errors.New("invalid program argument")
	ErrEmptyTransaction         = errors.New("transaction has no instructions")
)

// CodedError is implemented by program errors that travel as a custom code.
type CodedError interface {
	error
	Code() uint32
}

// CustomError is a program-defined error code.
type CustomError uint32

func (e CustomError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x", uint32(e))
}

// Code returns the numeric code.
func (e CustomError) Code() uint32 {
	return uint32(e)
}

// TransactionError reports the failing instruction of an aborted transaction.
type TransactionError struct {
	Signature string
	Index     int
	Err       error
	Logs      []string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: error processing instruction %d: %s", e.Signature, e.Index, describe(e.Err))
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// describe renders err the way the cluster logs it.
func describe(err error) string {
	var coded CodedError
	if errors.As(err, &coded) {
		return CustomError(coded.Code()).Error()
	}
	return err.Error()
}

// FormatLogs joins transaction logs for display.
func FormatLogs(logs []string) string {
	return strings.Join(logs, "\n")
}
