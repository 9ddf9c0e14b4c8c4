package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blocto/solana-go-sdk/types"
)

// ErrInvalidKeypair is returned for keypair files that are not a 64-byte JSON array.
var ErrInvalidKeypair = errors.New("invalid keypair file")

// LoadKeypair reads a Solana CLI keypair file: a JSON array of 64 bytes.
func LoadKeypair(path string) (types.Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Account{}, fmt.Errorf("read keypair: %w", err)
	}
	return ParseKeypair(raw)
}

// ParseKeypair decodes the JSON keypair format.
func ParseKeypair(raw []byte) (types.Account, error) {
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return types.Account{}, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	if len(ints) != 64 {
		return types.Account{}, fmt.Errorf("%w: want 64 bytes, got %d", ErrInvalidKeypair, len(ints))
	}
	b := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return types.Account{}, fmt.Errorf("%w: byte out of range at %d: %d", ErrInvalidKeypair, i, v)
		}
		b[i] = byte(v)
	}
	acc, err := types.AccountFromBytes(b)
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return acc, nil
}

// SaveKeypair writes acc in the Solana CLI format with owner-only permissions.
func SaveKeypair(path string, acc types.Account) error {
	ints := make([]int, len(acc.PrivateKey))
	for i, b := range acc.PrivateKey {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create keypair dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write keypair: %w", err)
	}
	return nil
}
