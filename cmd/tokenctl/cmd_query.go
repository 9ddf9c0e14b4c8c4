package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/client"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [owner]",
	Short: "Show a wallet's token balance (default: the payer)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBalance,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the mint and its metadata",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

var addressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "Print the program-derived addresses",
	Args:  cobra.NoArgs,
	RunE:  runAddresses,
}

func runBalance(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, c *client.Client) error {
		owner := c.Payer()
		if len(args) == 1 {
			var err error
			if owner, err = address.Parse(args[0]); err != nil {
				return fmt.Errorf("owner: %w", err)
			}
		}
		mint, err := c.MintInfo(ctx)
		if err != nil {
			return err
		}
		bal, err := c.Balance(ctx, owner)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", client.FormatAmount(bal, mint.Decimals), owner.ToBase58())
		return nil
	})
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, c *client.Client) error {
		mint, err := c.MintInfo(ctx)
		if errors.Is(err, client.ErrAccountNotFound) {
			return fmt.Errorf("mint %s not initialized, run tokenctl init", c.Mint().ToBase58())
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mint:      %s\n", c.Mint().ToBase58())
		fmt.Fprintf(out, "supply:    %s\n", client.FormatAmount(mint.Supply, mint.Decimals))
		fmt.Fprintf(out, "decimals:  %d\n", mint.Decimals)
		if mint.MintAuthority != nil {
			fmt.Fprintf(out, "authority: %s\n", mint.MintAuthority.ToBase58())
		}

		md, err := c.Metadata(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "name:      %s\n", md.Name)
		fmt.Fprintf(out, "symbol:    %s\n", md.Symbol)
		fmt.Fprintf(out, "uri:       %s\n", md.URI)
		return nil
	})
}

func runAddresses(cmd *cobra.Command, args []string) error {
	programID := cfg.Program()
	mint, bump, err := address.MintAddress(programID)
	if err != nil {
		return err
	}
	metadata, _, err := address.MetadataAddress(mint)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "program:  %s\n", programID.ToBase58())
	fmt.Fprintf(out, "mint:     %s (bump %d)\n", mint.ToBase58(), bump)
	fmt.Fprintf(out, "metadata: %s\n", metadata.ToBase58())
	return nil
}
