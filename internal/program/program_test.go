package program

import (
	"context"
	"math"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/instruction"
	"solana-token-manager/internal/layout"
	"solana-token-manager/internal/runtime"
	"solana-token-manager/internal/runtime/stub"
)

const airdrop = 100_000_000_000

var testParams = instruction.InitTokenParams{
	Name:     "My The first token",
	Symbol:   "TFT",
	URI:      "https://arweave.net/7UtxcnH13Y1uBCwCnkL6APKsge0hAgacQFl-zFW9NlI",
	Decimals: 9,
}

type env struct {
	rt        *runtime.Runtime
	programID common.PublicKey
	mint      common.PublicKey
	payer     types.Account
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		rt:        stub.NewRuntime(),
		programID: address.DefaultProgramID,
		payer:     types.NewAccount(),
	}
	e.rt.Register(New(e.programID, nil))
	e.rt.Bank().Airdrop(e.payer.PublicKey, airdrop)

	mint, _, err := address.MintAddress(e.programID)
	require.NoError(t, err)
	e.mint = mint
	return e
}

func (e *env) submit(t *testing.T, ix types.Instruction, signers ...types.Account) (*runtime.Result, error) {
	t.Helper()
	return e.rt.Submit(context.Background(), []types.Instruction{ix}, append([]types.Account{e.payer}, signers...)...)
}

func (e *env) mustSubmit(t *testing.T, ix types.Instruction, err error, signers ...types.Account) *runtime.Result {
	t.Helper()
	require.NoError(t, err)
	res, err := e.submit(t, ix, signers...)
	require.NoError(t, err)
	return res
}

func (e *env) init(t *testing.T) {
	t.Helper()
	ix, err := instruction.InitToken(e.programID, e.payer.PublicKey, testParams)
	e.mustSubmit(t, ix, err)
}

func (e *env) ata(t *testing.T, owner common.PublicKey) common.PublicKey {
	t.Helper()
	key, _, err := address.AssociatedTokenAddress(owner, e.mint)
	require.NoError(t, err)
	return key
}

func (e *env) createATA(t *testing.T, owner common.PublicKey) common.PublicKey {
	t.Helper()
	key := e.ata(t, owner)
	ix := associated_token_account.CreateAssociatedTokenAccount(associated_token_account.CreateAssociatedTokenAccountParam{
		Funder:                 e.payer.PublicKey,
		Owner:                  owner,
		Mint:                   e.mint,
		AssociatedTokenAccount: key,
	})
	e.mustSubmit(t, ix, nil)
	return key
}

func (e *env) balance(t *testing.T, owner common.PublicKey) uint64 {
	t.Helper()
	data, _, ok := e.rt.AccountData(e.ata(t, owner))
	if !ok {
		return 0
	}
	acct, err := layout.DecodeTokenAccount(data)
	require.NoError(t, err)
	return acct.Amount
}

func (e *env) supply(t *testing.T) uint64 {
	t.Helper()
	data, _, ok := e.rt.AccountData(e.mint)
	require.True(t, ok)
	m, err := layout.DecodeMint(data)
	require.NoError(t, err)
	return m.Supply
}

func TestInitToken(t *testing.T) {
	e := setupEnv(t)

	ix, err := instruction.InitToken(e.programID, e.payer.PublicKey, testParams)
	res := e.mustSubmit(t, ix, err)
	assert.Contains(t, res.Logs, "Program log: Instruction: InitToken")
	assert.Contains(t, res.Logs, "Program log: "+LogInitialized)
	assert.Equal(t, "Program "+e.programID.ToBase58()+" success", res.Logs[len(res.Logs)-1])

	data, owner, ok := e.rt.AccountData(e.mint)
	require.True(t, ok)
	assert.Equal(t, address.TokenProgramID, owner)
	mint, err := layout.DecodeMint(data)
	require.NoError(t, err)
	assert.Equal(t, testParams.Decimals, mint.Decimals)
	assert.Equal(t, uint64(0), mint.Supply)
	require.NotNil(t, mint.MintAuthority)
	assert.Equal(t, e.mint, *mint.MintAuthority)
	assert.Nil(t, mint.FreezeAuthority)

	metaKey, _, err := address.MetadataAddress(e.mint)
	require.NoError(t, err)
	data, owner, ok = e.rt.AccountData(metaKey)
	require.True(t, ok)
	assert.Equal(t, address.MetadataProgramID, owner)
	meta, err := layout.DecodeMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, testParams.Name, meta.Name)
	assert.Equal(t, testParams.Symbol, meta.Symbol)
	assert.Equal(t, testParams.URI, meta.URI)
	assert.Equal(t, e.mint, meta.UpdateAuthority)
	assert.False(t, meta.IsMutable)
	assert.Equal(t, uint16(0), meta.SellerFeeBasisPoints)
}

func TestInitToken_Twice(t *testing.T) {
	e := setupEnv(t)
	e.init(t)
	lamports := e.rt.Bank().Balance(e.payer.PublicKey)

	ix, err := instruction.InitToken(e.programID, e.payer.PublicKey, instruction.InitTokenParams{Name: "other", Symbol: "O", Decimals: 2})
	require.NoError(t, err)
	_, err = e.submit(t, ix)
	assert.ErrorIs(t, err, stub.SystemAccountAlreadyInUse)

	assert.Equal(t, lamports, e.rt.Bank().Balance(e.payer.PublicKey))
	data, _, _ := e.rt.AccountData(e.mint)
	mint, err := layout.DecodeMint(data)
	require.NoError(t, err)
	assert.Equal(t, testParams.Decimals, mint.Decimals)
}

func TestInitToken_MetadataRejected(t *testing.T) {
	e := setupEnv(t)
	long := testParams
	long.Symbol = "WAYTOOLONGSYMBOL"

	ix, err := instruction.InitToken(e.programID, e.payer.PublicKey, long)
	require.NoError(t, err)
	_, err = e.submit(t, ix)
	assert.ErrorIs(t, err, stub.MetadataSymbolTooLong)

	_, _, ok := e.rt.AccountData(e.mint)
	assert.False(t, ok, "mint must not survive a failed initialize")
	assert.Equal(t, uint64(airdrop), e.rt.Bank().Balance(e.payer.PublicKey))
}

func TestMintTokens(t *testing.T) {
	e := setupEnv(t)
	e.init(t)

	ix, err := instruction.MintTokens(e.programID, e.payer.PublicKey, 1_000)
	res := e.mustSubmit(t, ix, err)
	assert.Contains(t, res.Logs, "Program log: Instruction: MintTokens")
	for _, line := range res.Logs {
		assert.NotContains(t, line, "Minted", "mint_tokens logs no quantity")
	}
	assert.Equal(t, uint64(1_000), e.balance(t, e.payer.PublicKey))
	assert.Equal(t, uint64(1_000), e.supply(t))

	// destination now exists
	ix, err = instruction.MintTokens(e.programID, e.payer.PublicKey, 234)
	e.mustSubmit(t, ix, err)
	assert.Equal(t, uint64(1_234), e.balance(t, e.payer.PublicKey))
	assert.Equal(t, uint64(1_234), e.supply(t))
}

func TestMintTokens_Overflow(t *testing.T) {
	e := setupEnv(t)
	e.init(t)

	ix, err := instruction.MintTokens(e.programID, e.payer.PublicKey, math.MaxUint64)
	e.mustSubmit(t, ix, err)

	ix, err = instruction.MintTokens(e.programID, e.payer.PublicKey, 1)
	require.NoError(t, err)
	_, err = e.submit(t, ix)
	assert.ErrorIs(t, err, stub.TokenOverflow)

	// the failed mint leaves balance and supply untouched
	assert.Equal(t, uint64(math.MaxUint64), e.balance(t, e.payer.PublicKey))
	assert.Equal(t, uint64(math.MaxUint64), e.supply(t))
}

func TestMintTokens_BeforeInit(t *testing.T) {
	e := setupEnv(t)

	ix, err := instruction.MintTokens(e.programID, e.payer.PublicKey, 1)
	require.NoError(t, err)
	_, err = e.submit(t, ix)
	assert.ErrorIs(t, err, AccountNotInitialized)
}

func TestTransferTokens(t *testing.T) {
	e := setupEnv(t)
	e.init(t)
	ix, err := instruction.MintTokens(e.programID, e.payer.PublicKey, 500)
	e.mustSubmit(t, ix, err)

	receiver := types.NewAccount()
	receiverATA := e.createATA(t, receiver.PublicKey)
	accts := instruction.TransferAccounts{
		Source:      e.ata(t, e.payer.PublicKey),
		Destination: receiverATA,
		Payer:       e.payer.PublicKey,
		Authority:   e.payer.PublicKey,
	}

	ix, err = instruction.TransferTokens(e.programID, accts, 200)
	res := e.mustSubmit(t, ix, err)
	assert.Contains(t, res.Logs, "Program log: Transferred 200 tokens successfully.")
	assert.Equal(t, uint64(300), e.balance(t, e.payer.PublicKey))
	assert.Equal(t, uint64(200), e.balance(t, receiver.PublicKey))
	assert.Equal(t, uint64(500), e.supply(t))

	ix, err = instruction.TransferTokens(e.programID, accts, 301)
	require.NoError(t, err)
	_, err = e.submit(t, ix)
	assert.ErrorIs(t, err, stub.TokenInsufficientFunds)
	assert.Equal(t, uint64(300), e.balance(t, e.payer.PublicKey))
	assert.Equal(t, uint64(200), e.balance(t, receiver.PublicKey))
}

func TestBurnTokens(t *testing.T) {
	e := setupEnv(t)
	e.init(t)
	ix, err := instruction.MintTokens(e.programID, e.payer.PublicKey, 100)
	e.mustSubmit(t, ix, err)

	ix, err = instruction.BurnTokens(e.programID, e.payer.PublicKey, 40)
	res := e.mustSubmit(t, ix, err)
	assert.Contains(t, res.Logs, "Program log: Burned 40 tokens successfully.")
	assert.Equal(t, uint64(60), e.balance(t, e.payer.PublicKey))
	assert.Equal(t, uint64(60), e.supply(t))

	ix, err = instruction.BurnTokens(e.programID, e.payer.PublicKey, 61)
	require.NoError(t, err)
	_, err = e.submit(t, ix)
	assert.ErrorIs(t, err, stub.TokenInsufficientFunds)
	assert.Equal(t, uint64(60), e.balance(t, e.payer.PublicKey))
	assert.Equal(t, uint64(60), e.supply(t))
}

func TestConstraints(t *testing.T) {
	e := setupEnv(t)
	e.init(t)
	ix, err := instruction.MintTokens(e.programID, e.payer.PublicKey, 100)
	e.mustSubmit(t, ix, err)

	stranger := types.NewAccount()
	e.rt.Bank().Airdrop(stranger.PublicKey, airdrop)
	strangerATA := e.createATA(t, stranger.PublicKey)

	tests := []struct {
		name    string
		build   func() types.Instruction
		signers []types.Account
		wantErr error
	}{
		{
			name: "payer not signer",
			build: func() types.Instruction {
				ix, _ := instruction.MintTokens(e.programID, e.payer.PublicKey, 1)
				ix.Accounts[instruction.MintPayer].IsSigner = false
				return ix
			},
			wantErr: AccountNotSigner,
		},
		{
			name: "mint not writable",
			build: func() types.Instruction {
				ix, _ := instruction.MintTokens(e.programID, e.payer.PublicKey, 1)
				ix.Accounts[instruction.MintMint].IsWritable = false
				return ix
			},
			wantErr: ConstraintMut,
		},
		{
			name: "mint is not the program PDA",
			build: func() types.Instruction {
				ix, _ := instruction.BurnTokens(e.programID, e.payer.PublicKey, 1)
				ix.Accounts[instruction.BurnMint].PubKey = strangerATA
				return ix
			},
			wantErr: ConstraintSeeds,
		},
		{
			name: "wrong token program",
			build: func() types.Instruction {
				ix, _ := instruction.BurnTokens(e.programID, e.payer.PublicKey, 1)
				ix.Accounts[instruction.BurnTokenProgram].PubKey = address.SystemProgramID
				return ix
			},
			wantErr: InvalidProgramID,
		},
		{
			name: "burn from another owner's account",
			build: func() types.Instruction {
				ix, _ := instruction.BurnTokens(e.programID, stranger.PublicKey, 1)
				ix.Accounts[instruction.BurnSource].PubKey = e.ata(t, e.payer.PublicKey)
				return ix
			},
			signers: []types.Account{stranger},
			wantErr: ConstraintTokenOwner,
		},
		{
			name: "mint to a non-associated account",
			build: func() types.Instruction {
				ix, _ := instruction.MintTokens(e.programID, e.payer.PublicKey, 1)
				ix.Accounts[instruction.MintDestination].PubKey = strangerATA
				return ix
			},
			wantErr: AccountNotAssociatedTokenAccount,
		},
		{
			name: "transfer authority is not the holder",
			build: func() types.Instruction {
				ix, _ := instruction.TransferTokens(e.programID, instruction.TransferAccounts{
					Source:      e.ata(t, e.payer.PublicKey),
					Destination: strangerATA,
					Payer:       stranger.PublicKey,
					Authority:   stranger.PublicKey,
				}, 1)
				return ix
			},
			signers: []types.Account{stranger},
			wantErr: stub.TokenOwnerMismatch,
		},
		{
			name: "signer flagged but absent",
			build: func() types.Instruction {
				ix, _ := instruction.BurnTokens(e.programID, stranger.PublicKey, 1)
				return ix
			},
			wantErr: runtime.ErrMissingRequiredSignature,
		},
		{
			name: "too few accounts",
			build: func() types.Instruction {
				ix, _ := instruction.BurnTokens(e.programID, e.payer.PublicKey, 1)
				ix.Accounts = ix.Accounts[:2]
				return ix
			},
			wantErr: AccountNotEnoughKeys,
		},
		{
			name: "unknown instruction",
			build: func() types.Instruction {
				ix, _ := instruction.BurnTokens(e.programID, e.payer.PublicKey, 1)
				ix.Data = make([]byte, 16)
				return ix
			},
			wantErr: InstructionFallbackNotFound,
		},
		{
			name: "truncated arguments",
			build: func() types.Instruction {
				ix, _ := instruction.BurnTokens(e.programID, e.payer.PublicKey, 1)
				ix.Data = ix.Data[:10]
				return ix
			},
			wantErr: InstructionDidNotDeserialize,
		},
		{
			name: "missing discriminator",
			build: func() types.Instruction {
				ix, _ := instruction.BurnTokens(e.programID, e.payer.PublicKey, 1)
				ix.Data = []byte{1}
				return ix
			},
			wantErr: InstructionMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.submit(t, tt.build(), tt.signers...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, uint64(100), e.balance(t, e.payer.PublicKey))
			assert.Equal(t, uint64(0), e.balance(t, stranger.PublicKey))
			assert.Equal(t, uint64(100), e.supply(t))
		})
	}
}

func TestAnchorErrorLog(t *testing.T) {
	e := setupEnv(t)
	e.init(t)

	ix, err := instruction.BurnTokens(e.programID, e.payer.PublicKey, 1)
	require.NoError(t, err)
	ix.Accounts[instruction.BurnTokenProgram].PubKey = address.SystemProgramID

	_, err = e.submit(t, ix)
	var txErr *runtime.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Contains(t, txErr.Logs,
		"Program log: AnchorError caused by account: token_program. Error Code: InvalidProgramId. Error Number: 3008. Error Message: Program ID was not as expected.")
	assert.Contains(t, txErr.Logs[len(txErr.Logs)-1], "custom program error: 0xbc0")
}
