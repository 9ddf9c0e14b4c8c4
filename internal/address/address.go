// Package address handles Solana public keys and program derived addresses.
package address

import (
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/mr-tron/base58"
)

// Well-known program and sysvar IDs.
var (
	SystemProgramID        = common.SystemProgramID
	TokenProgramID         = common.TokenProgramID
	AssociatedTokenProgram = common.SPLAssociatedTokenAccountProgramID
	MetadataProgramID      = common.MetaplexTokenMetaProgramID
	RentSysvarID           = common.SysVarRentPubkey
	BPFLoaderProgramID     = MustParse("BPFLoaderUpgradeab1e11111111111111111111111")

	// DefaultProgramID is the address the token manager program is deployed at.
	DefaultProgramID = MustParse("53Tt3YDUVYtWBQEyWZdHebdDFebfhjt9fMAwG6D3uAEz")
)

const keyLength = 32

// ErrInvalidKey is returned when a string is not a base58 encoded 32-byte key.
var ErrInvalidKey = errors.New("invalid public key")

// Parse decodes a base58 public key.
func Parse(s string) (common.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, s, err)
	}
	if len(raw) != keyLength {
		return common.PublicKey{}, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidKey, s, len(raw))
	}
	return common.PublicKeyFromBytes(raw), nil
}

// MustParse is Parse for package-level constants.
func MustParse(s string) common.PublicKey {
	key, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return key
}

// Short abbreviates a key for log output.
func Short(key common.PublicKey) string {
	s := key.ToBase58()
	if len(s) <= 10 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
