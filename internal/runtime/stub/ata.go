package stub

import (
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/types"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/layout"
	"solana-token-manager/internal/runtime"
)

// ATA instruction tags. An empty payload is also Create.
const (
	ataCreate           byte = 0
	ataCreateIdempotent byte = 1
)

// ATAInvalidOwner is returned when an existing associated account has another owner.
const ATAInvalidOwner = runtime.CustomError(0)

// AssociatedToken stands in for the Associated Token Account program.
type AssociatedToken struct{}

// ID implements runtime.Program.
func (AssociatedToken) ID() common.PublicKey { return common.SPLAssociatedTokenAccountProgramID }

// Process implements runtime.Program.
//
// Accounts: funder(ws), associated(w), owner, mint, system program, token program.
func (AssociatedToken) Process(ic *runtime.InvokeContext, data []byte) error {
	idempotent := false
	switch {
	case len(data) == 0 || data[0] == ataCreate:
		ic.Log("Create")
	case data[0] == ataCreateIdempotent:
		ic.Log("CreateIdempotent")
		idempotent = true
	default:
		return runtime.ErrInvalidInstructionData
	}

	accts, err := accounts(ic, 6)
	if err != nil {
		return err
	}
	funder, ata, owner, mint, sys, tok := accts[0], accts[1], accts[2], accts[3], accts[4], accts[5]
	if err := requireProgram(sys, common.SystemProgramID); err != nil {
		return err
	}
	if err := requireProgram(tok, common.TokenProgramID); err != nil {
		return err
	}

	expected, bump, err := address.AssociatedTokenAddress(owner.Key, mint.Key)
	if err != nil {
		return err
	}
	if expected != ata.Key {
		ic.Log("Error: Associated address does not match seed derivation")
		return runtime.ErrInvalidSeeds
	}

	if idempotent && ata.Owner == common.TokenProgramID {
		existing, err := layout.DecodeTokenAccount(ata.Data)
		if err != nil {
			return runtime.ErrInvalidAccountData
		}
		if existing.Owner != owner.Key {
			ic.Log("Error: owner does not match")
			return ATAInvalidOwner
		}
		return nil
	}

	rent := ic.Rent().MinimumBalance(layout.TokenAccountSize)
	create := system.CreateAccount(system.CreateAccountParam{
		From:     funder.Key,
		New:      ata.Key,
		Owner:    common.TokenProgramID,
		Lamports: rent,
		Space:    layout.TokenAccountSize,
	})
	seeds := append(address.AssociatedTokenSeeds(owner.Key, mint.Key), []byte{bump})
	if err := ic.InvokeSigned(create, seeds); err != nil {
		return err
	}

	return ic.Invoke(types.Instruction{
		ProgramID: common.TokenProgramID,
		Accounts: []types.AccountMeta{
			{PubKey: ata.Key, IsWritable: true},
			{PubKey: mint.Key},
		},
		Data: InitializeAccount3Data(owner.Key),
	})
}
