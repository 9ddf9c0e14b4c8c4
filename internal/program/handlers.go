package program

import (
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"go.uber.org/zap"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/instruction"
	"solana-token-manager/internal/layout"
	"solana-token-manager/internal/runtime"
)

func (p *Program) initToken(ic *runtime.InvokeContext, params instruction.InitTokenParams) error {
	accts, err := accountsFor(ic, instruction.AccountCount(instruction.KindInitToken))
	if err != nil {
		return err
	}
	metadata := accts[instruction.InitMetadata]
	mint := accts[instruction.InitMint]
	payer := accts[instruction.InitPayer]

	if err := mut(metadata, "metadata"); err != nil {
		return err
	}
	if err := mut(mint, "mint"); err != nil {
		return err
	}
	if err := payerSigner(payer, "payer"); err != nil {
		return err
	}
	if err := rentSysvar(accts[instruction.InitRent]); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.InitSystemProgram], address.SystemProgramID, "system_program"); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.InitTokenProgram], address.TokenProgramID, "token_program"); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.InitMetadataProgram], address.MetadataProgramID, "token_metadata_program"); err != nil {
		return err
	}
	bump, err := mintPDA(p.id, mint)
	if err != nil {
		return err
	}
	seeds := address.MintSignerSeeds(bump)

	// init: allocate the mint and hand it to the token program
	create := system.CreateAccount(system.CreateAccountParam{
		From:     payer.Key,
		New:      mint.Key,
		Owner:    address.TokenProgramID,
		Lamports: ic.Rent().MinimumBalance(layout.MintSize),
		Space:    layout.MintSize,
	})
	if err := ic.InvokeSigned(create, seeds); err != nil {
		return err
	}
	initMint := token.InitializeMint(token.InitializeMintParam{
		Decimals: params.Decimals,
		Mint:     mint.Key,
		MintAuth: mint.Key,
	})
	if err := ic.Invoke(initMint); err != nil {
		return err
	}

	createMetadata := token_metadata.CreateMetadataAccountV3(token_metadata.CreateMetadataAccountV3Param{
		Metadata:                metadata.Key,
		Mint:                    mint.Key,
		MintAuthority:           mint.Key,
		Payer:                   payer.Key,
		UpdateAuthority:         mint.Key,
		UpdateAuthorityIsSigner: true,
		IsMutable:               false,
		Data: token_metadata.DataV2{
			Name:                 params.Name,
			Symbol:               params.Symbol,
			Uri:                  params.URI,
			SellerFeeBasisPoints: 0,
		},
	})
	if err := ic.InvokeSigned(createMetadata, seeds); err != nil {
		return err
	}

	ic.Log(LogInitialized)
	p.logger.Debug("token initialized",
		zap.String("mint", mint.Key.ToBase58()),
		zap.Uint8("decimals", params.Decimals),
	)
	return nil
}

func (p *Program) mintTokens(ic *runtime.InvokeContext, quantity uint64) error {
	accts, err := accountsFor(ic, instruction.AccountCount(instruction.KindMintTokens))
	if err != nil {
		return err
	}
	mint := accts[instruction.MintMint]
	destination := accts[instruction.MintDestination]
	payer := accts[instruction.MintPayer]

	if err := mut(mint, "mint"); err != nil {
		return err
	}
	if err := payerSigner(payer, "payer"); err != nil {
		return err
	}
	if err := rentSysvar(accts[instruction.MintRent]); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.MintSystemProgram], address.SystemProgramID, "system_program"); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.MintTokenProgram], address.TokenProgramID, "token_program"); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.MintAssociatedTokenProgram], address.AssociatedTokenProgram, "associated_token_program"); err != nil {
		return err
	}
	bump, err := mintPDA(p.id, mint)
	if err != nil {
		return err
	}
	mintState, err := loadMint(mint, "mint")
	if err != nil {
		return err
	}
	if mintState.MintAuthority == nil || *mintState.MintAuthority != mint.Key {
		return accountError(ConstraintMintMintAuthority, "mint")
	}

	// init_if_needed with associated_token::mint = mint, ::authority = payer
	if err := p.ensureDestination(ic, destination, mint.Key, payer.Key); err != nil {
		return err
	}

	mintTo := token.MintTo(token.MintToParam{
		Mint:   mint.Key,
		To:     destination.Key,
		Auth:   mint.Key,
		Amount: quantity,
	})
	if err := ic.InvokeSigned(mintTo, address.MintSignerSeeds(bump)); err != nil {
		return err
	}
	return nil
}

func (p *Program) ensureDestination(ic *runtime.InvokeContext, destination *runtime.AccountInfo, mint, owner common.PublicKey) error {
	if err := mut(destination, "destination"); err != nil {
		return err
	}
	expected, _, err := address.AssociatedTokenAddress(owner, mint)
	if err != nil {
		return err
	}
	if destination.Key != expected {
		return accountError(AccountNotAssociatedTokenAccount, "destination")
	}

	if destination.Owner == address.SystemProgramID {
		create := associated_token_account.CreateAssociatedTokenAccount(associated_token_account.CreateAssociatedTokenAccountParam{
			Funder:                 owner,
			Owner:                  owner,
			Mint:                   mint,
			AssociatedTokenAccount: destination.Key,
		})
		if err := ic.Invoke(create); err != nil {
			return err
		}
		p.logger.Debug("created destination token account", zap.String("account", destination.Key.ToBase58()))
	}

	acct, err := loadTokenAccount(destination, "destination")
	if err != nil {
		return err
	}
	return associatedToken(destination, acct, mint, owner, "destination")
}

func (p *Program) transferTokens(ic *runtime.InvokeContext, quantity uint64) error {
	accts, err := accountsFor(ic, instruction.AccountCount(instruction.KindTransferTokens))
	if err != nil {
		return err
	}
	source := accts[instruction.TransferSource]
	destination := accts[instruction.TransferDestination]
	authority := accts[instruction.TransferAuthority]

	if err := mut(source, "source"); err != nil {
		return err
	}
	if err := mut(destination, "destination"); err != nil {
		return err
	}
	if err := payerSigner(accts[instruction.TransferPayer], "payer"); err != nil {
		return err
	}
	if err := payerSigner(authority, "authority"); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.TransferTokenProgram], address.TokenProgramID, "token_program"); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.TransferSystemProgram], address.SystemProgramID, "system_program"); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.TransferAssociatedTokenProgram], address.AssociatedTokenProgram, "associated_token_program"); err != nil {
		return err
	}
	if _, err := loadTokenAccount(source, "source"); err != nil {
		return err
	}
	if _, err := loadMint(accts[instruction.TransferMint], "mint"); err != nil {
		return err
	}

	transfer := token.Transfer(token.TransferParam{
		From:   source.Key,
		To:     destination.Key,
		Auth:   authority.Key,
		Amount: quantity,
	})
	if err := ic.Invoke(transfer); err != nil {
		return err
	}

	ic.Log(LogTransferred, quantity)
	return nil
}

func (p *Program) burnTokens(ic *runtime.InvokeContext, quantity uint64) error {
	accts, err := accountsFor(ic, instruction.AccountCount(instruction.KindBurnTokens))
	if err != nil {
		return err
	}
	mint := accts[instruction.BurnMint]
	source := accts[instruction.BurnSource]
	owner := accts[instruction.BurnOwner]

	if err := mut(mint, "mint"); err != nil {
		return err
	}
	if err := mut(source, "source"); err != nil {
		return err
	}
	if err := signer(owner, "owner"); err != nil {
		return err
	}
	if err := programAccount(accts[instruction.BurnTokenProgram], address.TokenProgramID, "token_program"); err != nil {
		return err
	}
	bump, err := mintPDA(p.id, mint)
	if err != nil {
		return err
	}
	if _, err := loadMint(mint, "mint"); err != nil {
		return err
	}
	acct, err := loadTokenAccount(source, "source")
	if err != nil {
		return err
	}
	if err := associatedToken(source, acct, mint.Key, owner.Key, "source"); err != nil {
		return err
	}

	burn := token.Burn(token.BurnParam{
		Account: source.Key,
		Mint:    mint.Key,
		Auth:    owner.Key,
		Amount:  quantity,
	})
	if err := ic.InvokeSigned(burn, address.MintSignerSeeds(bump)); err != nil {
		return err
	}

	ic.Log(LogBurned, quantity)
	return nil
}
