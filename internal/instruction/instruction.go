// Package instruction encodes and decodes token manager instructions in the
// Anchor wire format: an 8-byte discriminator followed by borsh arguments.
package instruction

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/near/borsh-go"
)

// DiscriminatorLength is the size of the Anchor method discriminator.
const DiscriminatorLength = 8

var (
	ErrMissingDiscriminator = errors.New("instruction data shorter than discriminator")
	ErrUnknownInstruction   = errors.New("unknown instruction discriminator")
	ErrInvalidArgs          = errors.New("instruction arguments did not deserialize")
)

// Kind identifies one of the token manager instructions.
type Kind uint8

const (
	KindInitToken Kind = iota + 1
	KindMintTokens
	KindTransferTokens
	KindBurnTokens
)

var kindMethods = map[Kind]string{
	KindInitToken:      "init_token",
	KindMintTokens:     "mint_tokens",
	KindTransferTokens: "transfer_tokens",
	KindBurnTokens:     "burn_tokens",
}

var kindNames = map[Kind]string{
	KindInitToken:      "InitToken",
	KindMintTokens:     "MintTokens",
	KindTransferTokens: "TransferTokens",
	KindBurnTokens:     "BurnTokens",
}

// String returns the instruction name as it appears in program logs.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Method returns the snake_case method name the discriminator is derived from.
func (k Kind) Method() string {
	return kindMethods[k]
}

// KindFromName parses a log name such as "MintTokens".
func KindFromName(name string) (Kind, bool) {
	for k, s := range kindNames {
		if s == name {
			return k, true
		}
	}
	return 0, false
}

// Discriminator returns sha256("global:<method>")[:8].
func Discriminator(method string) [DiscriminatorLength]byte {
	sum := sha256.Sum256([]byte("global:" + method))
	var d [DiscriminatorLength]byte
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// InitTokenParams are the arguments of init_token.
type InitTokenParams struct {
	Name     string
	Symbol   string
	URI      string
	Decimals uint8
}

type quantityArgs struct {
	Quantity uint64
}

// Decoded is a parsed instruction. Init is set for KindInitToken, Quantity
// for the other kinds.
type Decoded struct {
	Kind     Kind
	Init     *InitTokenParams
	Quantity uint64
}

// Encode returns the wire form of the instruction.
func (d Decoded) Encode() ([]byte, error) {
	method := d.Kind.Method()
	if method == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstruction, d.Kind)
	}

	var args interface{} = quantityArgs{Quantity: d.Quantity}
	if d.Kind == KindInitToken {
		if d.Init == nil {
			return nil, fmt.Errorf("%w: init_token without params", ErrInvalidArgs)
		}
		args = *d.Init
	}

	payload, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", method, err)
	}
	disc := Discriminator(method)
	return append(disc[:], payload...), nil
}

// Decode parses instruction data. When only the arguments are malformed the
// returned Kind is still set.
func Decode(data []byte) (Decoded, error) {
	if len(data) < DiscriminatorLength {
		return Decoded{}, ErrMissingDiscriminator
	}

	kind, ok := kindFor(data[:DiscriminatorLength])
	if !ok {
		return Decoded{}, ErrUnknownInstruction
	}
	payload := data[DiscriminatorLength:]

	if kind == KindInitToken {
		var params InitTokenParams
		if err := deserialize(&params, payload); err != nil {
			return Decoded{Kind: kind}, err
		}
		return Decoded{Kind: kind, Init: &params}, nil
	}

	// u64 quantity, nothing else
	if len(payload) < 8 {
		return Decoded{Kind: kind}, fmt.Errorf("%w: quantity needs 8 bytes, got %d", ErrInvalidArgs, len(payload))
	}
	var args quantityArgs
	if err := deserialize(&args, payload); err != nil {
		return Decoded{Kind: kind}, err
	}
	return Decoded{Kind: kind, Quantity: args.Quantity}, nil
}

func deserialize(dst interface{}, payload []byte) (err error) {
	// borsh-go panics on some truncated inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidArgs, r)
		}
	}()
	if err := borsh.Deserialize(dst, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}

func kindFor(disc []byte) (Kind, bool) {
	for k, method := range kindMethods {
		d := Discriminator(method)
		if bytes.Equal(d[:], disc) {
			return k, true
		}
	}
	return 0, false
}
