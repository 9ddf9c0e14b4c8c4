// Package client drives the token manager program from off-chain: it builds
// the program's instructions, submits them through a Submitter and reads the
// resulting mint, token account and metadata state.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/types"
	"go.uber.org/zap"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/instruction"
	"solana-token-manager/internal/layout"
	"solana-token-manager/internal/observability"
)

// Client is bound to one deployed program and one payer.
type Client struct {
	programID common.PublicKey
	payer     types.Account
	submitter Submitter
	reader    AccountReader
	logger    *zap.Logger
	metrics   *observability.Metrics

	mint         common.PublicKey
	metadata     common.PublicKey
	payerAccount common.PublicKey
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records every submitted transaction on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client for programID paid by payer.
func New(programID common.PublicKey, payer types.Account, submitter Submitter, reader AccountReader, opts ...Option) (*Client, error) {
	c := &Client{
		programID: programID,
		payer:     payer,
		submitter: submitter,
		reader:    reader,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	if c.mint, _, err = address.MintAddress(programID); err != nil {
		return nil, fmt.Errorf("derive mint: %w", err)
	}
	if c.metadata, _, err = address.MetadataAddress(c.mint); err != nil {
		return nil, fmt.Errorf("derive metadata: %w", err)
	}
	if c.payerAccount, err = c.TokenAccount(payer.PublicKey); err != nil {
		return nil, err
	}
	return c, nil
}

// ProgramID returns the program the client targets.
func (c *Client) ProgramID() common.PublicKey { return c.programID }

// Payer returns the fee payer and default token owner.
func (c *Client) Payer() common.PublicKey { return c.payer.PublicKey }

// Mint returns the program's mint PDA.
func (c *Client) Mint() common.PublicKey { return c.mint }

// MetadataAccount returns the mint's metadata PDA.
func (c *Client) MetadataAccount() common.PublicKey { return c.metadata }

// TokenAccount returns owner's associated token account for the mint.
func (c *Client) TokenAccount(owner common.PublicKey) (common.PublicKey, error) {
	ata, _, err := address.AssociatedTokenAddress(owner, c.mint)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("derive token account: %w", err)
	}
	return ata, nil
}

// InitToken creates the mint and its metadata.
func (c *Client) InitToken(ctx context.Context, params instruction.InitTokenParams) (*Receipt, error) {
	ix, err := instruction.InitToken(c.programID, c.payer.PublicKey, params)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, "init_token", ix)
}

// EnsureInitialized runs InitToken unless the mint already exists. The
// receipt is nil when nothing was sent.
func (c *Client) EnsureInitialized(ctx context.Context, params instruction.InitTokenParams) (*Receipt, error) {
	exists, err := c.exists(ctx, c.mint)
	if err != nil {
		return nil, err
	}
	if exists {
		c.logger.Debug("mint already initialized", zap.String("mint", c.mint.ToBase58()))
		return nil, nil
	}
	return c.InitToken(ctx, params)
}

// MintTokens mints quantity base units to the payer's token account,
// creating it when missing.
func (c *Client) MintTokens(ctx context.Context, quantity uint64) (*Receipt, error) {
	ix, err := instruction.MintTokens(c.programID, c.payer.PublicKey, quantity)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, "mint_tokens", ix)
}

// TransferTokens moves quantity base units from the payer's token account to
// receiver's, creating the receiver's token account first when missing.
func (c *Client) TransferTokens(ctx context.Context, receiver common.PublicKey, quantity uint64) (*Receipt, error) {
	destination, err := c.TokenAccount(receiver)
	if err != nil {
		return nil, err
	}
	if _, err := c.CreateTokenAccount(ctx, receiver); err != nil {
		return nil, err
	}

	ix, err := instruction.TransferTokens(c.programID, instruction.TransferAccounts{
		Source:      c.payerAccount,
		Destination: destination,
		Payer:       c.payer.PublicKey,
		Authority:   c.payer.PublicKey,
	}, quantity)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, "transfer_tokens", ix)
}

// BurnTokens burns quantity base units from the payer's token account.
func (c *Client) BurnTokens(ctx context.Context, quantity uint64) (*Receipt, error) {
	ix, err := instruction.BurnTokens(c.programID, c.payer.PublicKey, quantity)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, "burn_tokens", ix)
}

// CreateTokenAccount creates owner's associated token account, funded by the
// payer. The receipt is nil when the account already exists.
func (c *Client) CreateTokenAccount(ctx context.Context, owner common.PublicKey) (*Receipt, error) {
	ata, err := c.TokenAccount(owner)
	if err != nil {
		return nil, err
	}
	exists, err := c.exists(ctx, ata)
	if err != nil || exists {
		return nil, err
	}
	ix := associated_token_account.CreateAssociatedTokenAccount(associated_token_account.CreateAssociatedTokenAccountParam{
		Funder:                 c.payer.PublicKey,
		Owner:                  owner,
		Mint:                   c.mint,
		AssociatedTokenAccount: ata,
	})
	return c.submit(ctx, "create_token_account", ix)
}

// Fund sends lamports from the payer to another wallet.
func (c *Client) Fund(ctx context.Context, to common.PublicKey, lamports uint64) (*Receipt, error) {
	ix := system.Transfer(system.TransferParam{
		From:   c.payer.PublicKey,
		To:     to,
		Amount: lamports,
	})
	return c.submit(ctx, "fund", ix)
}

// Balance returns owner's token balance in base units, zero when owner has
// no token account.
func (c *Client) Balance(ctx context.Context, owner common.PublicKey) (uint64, error) {
	ata, err := c.TokenAccount(owner)
	if err != nil {
		return 0, err
	}
	raw, err := c.reader.Account(ctx, ata)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read token account: %w", err)
	}
	acct, err := layout.DecodeTokenAccount(raw.Data)
	if err != nil {
		return 0, fmt.Errorf("decode token account %s: %w", ata.ToBase58(), err)
	}
	return acct.Amount, nil
}

// MintInfo returns the decoded mint.
func (c *Client) MintInfo(ctx context.Context) (*layout.Mint, error) {
	raw, err := c.reader.Account(ctx, c.mint)
	if err != nil {
		return nil, fmt.Errorf("read mint: %w", err)
	}
	if raw.Owner != address.TokenProgramID {
		return nil, fmt.Errorf("mint %s owned by %s", c.mint.ToBase58(), raw.Owner.ToBase58())
	}
	return layout.DecodeMint(raw.Data)
}

// Metadata returns the decoded token metadata.
func (c *Client) Metadata(ctx context.Context) (*layout.Metadata, error) {
	raw, err := c.reader.Account(ctx, c.metadata)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return layout.DecodeMetadata(raw.Data)
}

func (c *Client) exists(ctx context.Context, key common.PublicKey) (bool, error) {
	_, err := c.reader.Account(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrAccountNotFound):
		return false, nil
	}
	return false, fmt.Errorf("read account %s: %w", key.ToBase58(), err)
}

func (c *Client) submit(ctx context.Context, op string, ixs ...types.Instruction) (*Receipt, error) {
	start := time.Now()
	receipt, err := c.submitter.Submit(ctx, c.payer, ixs)
	if c.metrics != nil {
		c.metrics.RecordSubmission(op, time.Since(start), err)
	}
	if err != nil {
		c.logger.Debug("transaction failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	c.logger.Info("transaction confirmed",
		zap.String("op", op),
		zap.String("signature", receipt.Signature),
	)
	return receipt, nil
}
