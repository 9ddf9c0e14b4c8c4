package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
)

// Metaplex limits and sizes.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
	MaxMetadataLen  = 679

	// KeyMetadataV1 is the account discriminator of metadata accounts.
	KeyMetadataV1 uint8 = 4

	// key, both authorities, three empty strings, seller fee, creators tag,
	// the two flags and the edition nonce tag
	minMetadataLen = 1 + 32 + 32 + 3*4 + 2 + 1 + 2 + 1
)

// Token standards recorded by the metadata program.
const (
	TokenStandardNonFungible uint8 = iota
	TokenStandardFungibleAsset
	TokenStandardFungible
)

// ErrUnexpectedKey is returned when the account is not a MetadataV1 account.
var ErrUnexpectedKey = errors.New("unexpected metadata account key")

// Creator is a verified or unverified creator share.
type Creator struct {
	Address  common.PublicKey
	Verified bool
	Share    uint8
}

// Metadata is the prefix of a Metaplex MetadataV1 account this repository reads.
type Metadata struct {
	UpdateAuthority      common.PublicKey
	Mint                 common.PublicKey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	PrimarySaleHappened  bool
	IsMutable            bool
	EditionNonce         *uint8
	TokenStandard        *uint8
}

// Encode writes the account in the padded layout the metadata program
// allocates (MaxMetadataLen bytes).
// Layout: key(1) | update_authority(32) | mint(32) | name | symbol | uri |
// seller_fee(2) | creators Option<Vec> | primary_sale(1) | is_mutable(1) |
// edition_nonce Option<u8> | token_standard Option<u8> | zero padding
func (m *Metadata) Encode() []byte {
	buf := make([]byte, 0, MaxMetadataLen)
	buf = append(buf, KeyMetadataV1)
	buf = append(buf, m.UpdateAuthority[:]...)
	buf = append(buf, m.Mint[:]...)
	buf = appendPuffed(buf, m.Name, MaxNameLength)
	buf = appendPuffed(buf, m.Symbol, MaxSymbolLength)
	buf = appendPuffed(buf, m.URI, MaxURILength)
	buf = binary.LittleEndian.AppendUint16(buf, m.SellerFeeBasisPoints)

	if m.Creators == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Creators)))
		for _, c := range m.Creators {
			buf = append(buf, c.Address[:]...)
			buf = append(buf, boolByte(c.Verified), c.Share)
		}
	}

	buf = append(buf, boolByte(m.PrimarySaleHappened), boolByte(m.IsMutable))
	buf = appendOptionU8(buf, m.EditionNonce)
	buf = appendOptionU8(buf, m.TokenStandard)

	if len(buf) < MaxMetadataLen {
		buf = append(buf, make([]byte, MaxMetadataLen-len(buf))...)
	}
	return buf
}

// DecodeMetadata parses a MetadataV1 account. Names are returned without
// their NUL padding.
func DecodeMetadata(data []byte) (*Metadata, error) {
	if len(data) > 0 && data[0] != KeyMetadataV1 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedKey, data[0])
	}
	if len(data) < minMetadataLen {
		return nil, fmt.Errorf("%w: metadata needs at least %d bytes, got %d", ErrDataTooShort, minMetadataLen, len(data))
	}

	raw, err := token_metadata.MetadataDeserialize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m := &Metadata{
		UpdateAuthority:      raw.UpdateAuthority,
		Mint:                 raw.Mint,
		Name:                 raw.Data.Name,
		Symbol:               raw.Data.Symbol,
		URI:                  raw.Data.Uri,
		SellerFeeBasisPoints: raw.Data.SellerFeeBasisPoints,
		PrimarySaleHappened:  raw.PrimarySaleHappened,
		IsMutable:            raw.IsMutable,
		EditionNonce:         raw.EditionNonce,
	}
	if raw.Data.Creators != nil {
		m.Creators = make([]Creator, 0, len(*raw.Data.Creators))
		for _, c := range *raw.Data.Creators {
			m.Creators = append(m.Creators, Creator{Address: c.Address, Verified: c.Verified, Share: c.Share})
		}
	}
	if raw.TokenStandard != nil {
		standard := uint8(*raw.TokenStandard)
		m.TokenStandard = &standard
	}
	return m, nil
}

// appendPuffed writes a borsh string padded with NULs to size bytes, the way
// the metadata program stores names so later updates fit in place.
func appendPuffed(buf []byte, s string, size int) []byte {
	padded := s
	if len(s) < size {
		padded = s + strings.Repeat("\x00", size-len(s))
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(padded)))
	return append(buf, padded...)
}

func appendOptionU8(buf []byte, v *uint8) []byte {
	if v == nil {
		return append(buf, 0)
	}
	return append(buf, 1, *v)
}
