// Package stub provides minimal stand-ins for the System, SPL Token,
// Associated Token Account and Token Metadata programs so that programs
// calling into them can be exercised in-process.
package stub

import (
	"github.com/blocto/solana-go-sdk/common"

	"solana-token-manager/internal/runtime"
)

// NewRuntime returns a runtime with all stand-in programs registered.
func NewRuntime(opts ...runtime.Option) *runtime.Runtime {
	rt := runtime.New(opts...)
	rt.Register(System{})
	rt.Register(Token{})
	rt.Register(AssociatedToken{})
	rt.Register(Metadata{})
	return rt
}

func accounts(ic *runtime.InvokeContext, n int) ([]*runtime.AccountInfo, error) {
	all := ic.Accounts()
	if len(all) < n {
		return nil, runtime.ErrNotEnoughAccountKeys
	}
	return all, nil
}

func requireSigner(a *runtime.AccountInfo) error {
	if !a.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	return nil
}

func requireProgram(a *runtime.AccountInfo, id common.PublicKey) error {
	if a.Key != id {
		return runtime.ErrIncorrectProgramID
	}
	return nil
}
