package address

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
	"github.com/blocto/solana-go-sdk/common"
)

// PDA limits enforced by the runtime.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

const pdaMarker = "ProgramDerivedAddress"

// MintSeed is the only seed of the token manager's mint account.
var MintSeed = []byte("mint")

var (
	ErrMaxSeeds      = errors.New("too many seeds")
	ErrMaxSeedLength = errors.New("seed exceeds maximum length")
	ErrOnCurve       = errors.New("derived address is on the ed25519 curve")
	ErrNoBump        = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress derives the address for seeds under programID.
// The bump, if any, must already be the last seed.
func CreateProgramAddress(seeds [][]byte, programID common.PublicKey) (common.PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return common.PublicKey{}, ErrMaxSeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return common.PublicKey{}, ErrMaxSeedLength
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var sum [32]byte
	copy(sum[:], h.Sum(nil))

	// Must be off the ed25519 curve so no private key exists
	if isOnCurve(sum[:]) {
		return common.PublicKey{}, ErrOnCurve
	}
	return common.PublicKey(sum), nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID common.PublicKey) (common.PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		key, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return key, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return common.PublicKey{}, 0, err
		}
	}
	return common.PublicKey{}, 0, ErrNoBump
}

// IsOnCurve reports whether key is a valid ed25519 point.
func IsOnCurve(key common.PublicKey) bool {
	return isOnCurve(key[:])
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// MintAddress returns the token manager's mint PDA and bump.
func MintAddress(programID common.PublicKey) (common.PublicKey, uint8, error) {
	return FindProgramAddress([][]byte{MintSeed}, programID)
}

// MintSignerSeeds returns the seeds the program signs with for the mint PDA.
func MintSignerSeeds(bump uint8) [][]byte {
	return [][]byte{MintSeed, {bump}}
}

// MetadataAddress returns the Metaplex metadata PDA of mint.
func MetadataAddress(mint common.PublicKey) (common.PublicKey, uint8, error) {
	return FindProgramAddress(MetadataSeeds(mint), MetadataProgramID)
}

// MetadataSeeds are the seeds of a mint's metadata account without bump.
func MetadataSeeds(mint common.PublicKey) [][]byte {
	return [][]byte{[]byte("metadata"), MetadataProgramID.Bytes(), mint.Bytes()}
}

// AssociatedTokenAddress returns the canonical token account of owner for mint.
func AssociatedTokenAddress(owner, mint common.PublicKey) (common.PublicKey, uint8, error) {
	return FindProgramAddress(AssociatedTokenSeeds(owner, mint), AssociatedTokenProgram)
}

// AssociatedTokenSeeds are the seeds of an associated token account without bump.
func AssociatedTokenSeeds(owner, mint common.PublicKey) [][]byte {
	return [][]byte{owner.Bytes(), TokenProgramID.Bytes(), mint.Bytes()}
}
