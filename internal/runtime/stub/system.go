package stub

import (
	"encoding/binary"

	"github.com/blocto/solana-go-sdk/common"

	"solana-token-manager/internal/runtime"
)

const (
	systemCreateAccount uint32 = 0
	systemTransfer      uint32 = 2

	maxPermittedDataLength = 10 * 1024 * 1024
)

// System stands in for the System program.
type System struct{}

// ID implements runtime.Program.
func (System) ID() common.PublicKey { return common.SystemProgramID }

// Process implements runtime.Program.
func (s System) Process(ic *runtime.InvokeContext, data []byte) error {
	if len(data) < 4 {
		return runtime.ErrInvalidInstructionData
	}
	switch binary.LittleEndian.Uint32(data) {
	case systemCreateAccount:
		if len(data) < 52 {
			return runtime.ErrInvalidInstructionData
		}
		lamports := binary.LittleEndian.Uint64(data[4:12])
		space := binary.LittleEndian.Uint64(data[12:20])
		owner := common.PublicKeyFromBytes(data[20:52])
		return s.createAccount(ic, lamports, space, owner)
	case systemTransfer:
		if len(data) < 12 {
			return runtime.ErrInvalidInstructionData
		}
		return s.transfer(ic, binary.LittleEndian.Uint64(data[4:12]))
	}
	return runtime.ErrInvalidInstructionData
}

func (System) createAccount(ic *runtime.InvokeContext, lamports, space uint64, owner common.PublicKey) error {
	accts, err := accounts(ic, 2)
	if err != nil {
		return err
	}
	from, to := accts[0], accts[1]
	if err := requireSigner(from); err != nil {
		return err
	}
	if err := requireSigner(to); err != nil {
		return err
	}

	if to.Lamports > 0 || len(to.Data) > 0 || to.Owner != common.SystemProgramID {
		ic.Log("Create Account: account Address { address: %s, base: None } already in use", to.Key.ToBase58())
		return SystemAccountAlreadyInUse
	}
	if space > maxPermittedDataLength {
		return SystemInvalidAccountDataLength
	}
	if from.Lamports < lamports {
		ic.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return SystemResultWithNegativeLamports
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	to.Data = make([]byte, space)
	to.Owner = owner
	return nil
}

func (System) transfer(ic *runtime.InvokeContext, lamports uint64) error {
	accts, err := accounts(ic, 2)
	if err != nil {
		return err
	}
	from, to := accts[0], accts[1]
	if err := requireSigner(from); err != nil {
		return err
	}
	if len(from.Data) > 0 {
		ic.Log("Transfer: `from` must not carry data")
		return runtime.ErrInvalidArgument
	}
	if from.Lamports < lamports {
		ic.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return SystemResultWithNegativeLamports
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
