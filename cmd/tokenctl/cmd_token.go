package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/client"
	"solana-token-manager/internal/instruction"
)

var initParams instruction.InitTokenParams

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the program's mint and its metadata",
	Long: `Creates the mint PDA with the given decimals, its mint authority set to
itself, and an immutable metadata account. Does nothing when the mint exists.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var mintCmd = &cobra.Command{
	Use:   "mint <amount>",
	Short: "Mint tokens to the payer's associated token account",
	Example: `  tokenctl mint 1.5
  tokenctl mint 1000000000 --raw`,
	Args: cobra.ExactArgs(1),
	RunE: runMint,
}

var transferCmd = &cobra.Command{
	Use:   "transfer <receiver> <amount>",
	Short: "Transfer tokens from the payer to a wallet",
	Args:  cobra.ExactArgs(2),
	RunE:  runTransfer,
}

var burnCmd = &cobra.Command{
	Use:   "burn <amount>",
	Short: "Burn tokens from the payer's associated token account",
	Args:  cobra.ExactArgs(1),
	RunE:  runBurn,
}

// raw treats amounts as base units instead of UI amounts.
var raw bool

func init() {
	initCmd.Flags().StringVar(&initParams.Name, "name", "", "Token name (max 32 bytes)")
	initCmd.Flags().StringVar(&initParams.Symbol, "symbol", "", "Token symbol (max 10 bytes)")
	initCmd.Flags().StringVar(&initParams.URI, "uri", "", "Metadata URI (max 200 bytes)")
	initCmd.Flags().Uint8Var(&initParams.Decimals, "decimals", 9, "Mint decimals")
	_ = initCmd.MarkFlagRequired("name")
	_ = initCmd.MarkFlagRequired("symbol")
	_ = initCmd.MarkFlagRequired("uri")

	for _, cmd := range []*cobra.Command{mintCmd, transferCmd, burnCmd} {
		cmd.Flags().BoolVar(&raw, "raw", false, "Amount is in base units")
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, c *client.Client) error {
		receipt, err := c.EnsureInitialized(ctx, initParams)
		if err != nil {
			return explain(err)
		}
		if receipt == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "mint %s already exists\n", c.Mint().ToBase58())
			return nil
		}
		printReceipt(cmd, "initialized", receipt)
		fmt.Fprintf(cmd.OutOrStdout(), "mint: %s\nmetadata: %s\n", c.Mint().ToBase58(), c.MetadataAccount().ToBase58())
		return nil
	})
}

func runMint(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, c *client.Client) error {
		qty, err := amount(ctx, c, args[0])
		if err != nil {
			return err
		}
		receipt, err := c.MintTokens(ctx, qty)
		if err != nil {
			return explain(err)
		}
		printReceipt(cmd, "minted", receipt)
		return nil
	})
}

func runTransfer(cmd *cobra.Command, args []string) error {
	receiver, err := address.Parse(args[0])
	if err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	return withSession(cmd, func(ctx context.Context, c *client.Client) error {
		qty, err := amount(ctx, c, args[1])
		if err != nil {
			return err
		}
		receipt, err := c.TransferTokens(ctx, receiver, qty)
		if err != nil {
			return explain(err)
		}
		printReceipt(cmd, "transferred", receipt)
		return nil
	})
}

func runBurn(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, c *client.Client) error {
		qty, err := amount(ctx, c, args[0])
		if err != nil {
			return err
		}
		receipt, err := c.BurnTokens(ctx, qty)
		if err != nil {
			return explain(err)
		}
		printReceipt(cmd, "burned", receipt)
		return nil
	})
}

// amount converts s to base units using the mint's decimals.
func amount(ctx context.Context, c *client.Client, s string) (uint64, error) {
	if raw {
		return client.ParseAmount(s, 0)
	}
	mint, err := c.MintInfo(ctx)
	if err != nil {
		return 0, err
	}
	return client.ParseAmount(s, mint.Decimals)
}

// explain names the program error carried by err, when there is one.
func explain(err error) error {
	if code, ok := client.ProgramError(err); ok {
		return fmt.Errorf("%s (%d): %s: %w", code.Name(), uint32(code), code.Message(), err)
	}
	return err
}
