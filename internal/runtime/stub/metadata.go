package stub

import (
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/near/borsh-go"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/layout"
	"solana-token-manager/internal/runtime"
)

const metadataCreateV3 byte = 33

type metadataCreator struct {
	Address  common.PublicKey
	Verified bool
	Share    uint8
}

type metadataCollection struct {
	Verified bool
	Key      common.PublicKey
}

type metadataUses struct {
	UseMethod borsh.Enum
	Remaining uint64
	Total     uint64
}

type metadataDataV2 struct {
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
	Creators             *[]metadataCreator
	Collection           *metadataCollection
	Uses                 *metadataUses
}

type collectionDetails struct {
	Enum borsh.Enum `borsh_enum:"true"`
	V1   collectionDetailsV1
}

type collectionDetailsV1 struct {
	Size uint64
}

type createMetadataV3Args struct {
	Data              metadataDataV2
	IsMutable         bool
	CollectionDetails *collectionDetails
}

// Metadata stands in for the Token Metadata program. Only
// CreateMetadataAccountV3 is supported.
type Metadata struct{}

// ID implements runtime.Program.
func (Metadata) ID() common.PublicKey { return common.MetaplexTokenMetaProgramID }

// Process implements runtime.Program.
//
// Accounts: metadata(w), mint, mint authority(s), payer(ws), update authority, system program.
func (Metadata) Process(ic *runtime.InvokeContext, data []byte) error {
	if len(data) == 0 || data[0] != metadataCreateV3 {
		return MetadataInstructionUnpack
	}
	ic.Log("IX: Create Metadata Accounts v3")

	var args createMetadataV3Args
	if err := borsh.Deserialize(&args, data[1:]); err != nil {
		return MetadataInstructionUnpack
	}

	accts, err := accounts(ic, 6)
	if err != nil {
		return err
	}
	metaInfo, mintInfo, mintAuth, payer, updateAuth, sys := accts[0], accts[1], accts[2], accts[3], accts[4], accts[5]
	if err := requireProgram(sys, common.SystemProgramID); err != nil {
		return err
	}

	switch {
	case len(args.Data.Name) > layout.MaxNameLength:
		return MetadataNameTooLong
	case len(args.Data.Symbol) > layout.MaxSymbolLength:
		return MetadataSymbolTooLong
	case len(args.Data.Uri) > layout.MaxURILength:
		return MetadataURITooLong
	}

	expected, bump, err := address.MetadataAddress(mintInfo.Key)
	if err != nil {
		return err
	}
	if expected != metaInfo.Key {
		return MetadataInvalidMetadataKey
	}
	if metaInfo.Owner != common.SystemProgramID || len(metaInfo.Data) > 0 {
		return MetadataAlreadyInitialized
	}

	if mintInfo.Owner != common.TokenProgramID {
		return MetadataIncorrectOwner
	}
	mint, err := layout.DecodeMint(mintInfo.Data)
	if err != nil {
		return MetadataIncorrectOwner
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != mintAuth.Key {
		return MetadataInvalidMintAuthority
	}
	if err := requireSigner(mintAuth); err != nil {
		return err
	}

	create := system.CreateAccount(system.CreateAccountParam{
		From:     payer.Key,
		New:      metaInfo.Key,
		Owner:    common.MetaplexTokenMetaProgramID,
		Lamports: ic.Rent().MinimumBalance(layout.MaxMetadataLen),
		Space:    layout.MaxMetadataLen,
	})
	seeds := append(address.MetadataSeeds(mintInfo.Key), []byte{bump})
	if err := ic.InvokeSigned(create, seeds); err != nil {
		return err
	}

	standard := layout.TokenStandardFungibleAsset
	if mint.Decimals > 0 {
		standard = layout.TokenStandardFungible
	}
	meta := layout.Metadata{
		UpdateAuthority:      updateAuth.Key,
		Mint:                 mintInfo.Key,
		Name:                 args.Data.Name,
		Symbol:               args.Data.Symbol,
		URI:                  args.Data.Uri,
		SellerFeeBasisPoints: args.Data.SellerFeeBasisPoints,
		IsMutable:            args.IsMutable,
		TokenStandard:        &standard,
	}
	if args.Data.Creators != nil {
		for _, c := range *args.Data.Creators {
			meta.Creators = append(meta.Creators, layout.Creator{
				Address:  c.Address,
				Verified: c.Verified && c.Address == updateAuth.Key && updateAuth.IsSigner,
				Share:    c.Share,
			})
		}
	}
	if _, nonce, err := address.FindProgramAddress(editionSeeds(mintInfo.Key), common.MetaplexTokenMetaProgramID); err == nil {
		meta.EditionNonce = &nonce
	}

	metaInfo.Data = meta.Encode()
	return nil
}

func editionSeeds(mint common.PublicKey) [][]byte {
	return append(address.MetadataSeeds(mint), []byte("edition"))
}
