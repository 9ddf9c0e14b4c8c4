// Package program implements the token manager: four instructions that
// validate their accounts and delegate every state change to the SPL Token,
// Associated Token Account, System and Token Metadata programs.
package program

import (
	"errors"

	"github.com/blocto/solana-go-sdk/common"
	"go.uber.org/zap"

	"solana-token-manager/internal/instruction"
	"solana-token-manager/internal/runtime"
)

// Log lines emitted on success. Minting logs nothing beyond the
// instruction name.
const (
	LogInitialized = "Token mint created successfully."
	LogTransferred = "Transferred %d tokens successfully."
	LogBurned      = "Burned %d tokens successfully."
)

// Program is the token manager deployed at a program ID.
type Program struct {
	id     common.PublicKey
	logger *zap.Logger
}

// New creates the program for id.
func New(id common.PublicKey, logger *zap.Logger) *Program {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Program{id: id, logger: logger}
}

// ID implements runtime.Program.
func (p *Program) ID() common.PublicKey {
	return p.id
}

// Process implements runtime.Program.
func (p *Program) Process(ic *runtime.InvokeContext, data []byte) error {
	err := p.dispatch(ic, data)
	if ae, ok := isAnchor(err); ok {
		ic.Log("%s", ae.Error())
	}
	return err
}

func (p *Program) dispatch(ic *runtime.InvokeContext, data []byte) error {
	ix, err := instruction.Decode(data)
	switch {
	case errors.Is(err, instruction.ErrMissingDiscriminator):
		return &AnchorError{ErrorCode: InstructionMissing}
	case errors.Is(err, instruction.ErrUnknownInstruction):
		return &AnchorError{ErrorCode: InstructionFallbackNotFound}
	case err != nil:
		ic.Log("Instruction: %s", ix.Kind)
		return &AnchorError{ErrorCode: InstructionDidNotDeserialize}
	}

	ic.Log("Instruction: %s", ix.Kind)
	p.logger.Debug("processing instruction",
		zap.Stringer("kind", ix.Kind),
		zap.Int("depth", ic.Depth()),
	)

	switch ix.Kind {
	case instruction.KindInitToken:
		return p.initToken(ic, *ix.Init)
	case instruction.KindMintTokens:
		return p.mintTokens(ic, ix.Quantity)
	case instruction.KindTransferTokens:
		return p.transferTokens(ic, ix.Quantity)
	case instruction.KindBurnTokens:
		return p.burnTokens(ic, ix.Quantity)
	}
	return &AnchorError{ErrorCode: InstructionFallbackNotFound}
}
