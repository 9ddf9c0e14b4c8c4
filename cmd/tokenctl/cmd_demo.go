package main

import (
	"context"
	"fmt"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/spf13/cobra"

	"solana-token-manager/internal/client"
	"solana-token-manager/internal/instruction"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run init, mint, transfer and burn on an in-process runtime",
	Args:  cobra.NoArgs,
	RunE:  runDemo,
}

var demoParams = instruction.InitTokenParams{
	Name:     "My The first token",
	Symbol:   "TFT",
	URI:      "https://arweave.net/7UtxcnH13Y1uBCwCnkL6APKsge0hAgacQFl-zFW9NlI",
	Decimals: 9,
}

func runDemo(cmd *cobra.Command, args []string) error {
	local = true
	return withSession(cmd, func(ctx context.Context, c *client.Client) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "program: %s\nmint: %s\n", c.ProgramID().ToBase58(), c.Mint().ToBase58())

		receipt, err := c.EnsureInitialized(ctx, demoParams)
		if err != nil {
			return explain(err)
		}
		if receipt != nil {
			printReceipt(cmd, "initialized", receipt)
		}

		steps := []struct {
			what string
			run  func() (*client.Receipt, error)
		}{
			{"minted 1", func() (*client.Receipt, error) { return c.MintTokens(ctx, 1_000_000_000) }},
			{"transferred 0.5", func() (*client.Receipt, error) {
				return c.TransferTokens(ctx, types.NewAccount().PublicKey, 500_000_000)
			}},
			{"burned 0.3", func() (*client.Receipt, error) { return c.BurnTokens(ctx, 300_000_000) }},
		}
		for _, step := range steps {
			receipt, err := step.run()
			if err != nil {
				return explain(err)
			}
			printReceipt(cmd, step.what, receipt)
		}

		bal, err := c.Balance(ctx, c.Payer())
		if err != nil {
			return err
		}
		mint, err := c.MintInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "balance: %s\nsupply: %s\n",
			client.FormatAmount(bal, mint.Decimals), client.FormatAmount(mint.Supply, mint.Decimals))
		return nil
	})
}
