package main

import (
	"context"
	"fmt"
	"os"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/spf13/cobra"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/client"
)

// solDecimals is the number of lamport decimals in one SOL.
const solDecimals = 9

var (
	keygenOut   string
	keygenForce bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a keypair file in the Solana CLI format",
	Args:  cobra.NoArgs,
	RunE:  runKeygen,
}

var fundCmd = &cobra.Command{
	Use:   "fund <wallet> <sol>",
	Short: "Send SOL from the payer to a wallet",
	Args:  cobra.ExactArgs(2),
	RunE:  runFund,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "", "Output file (default: the configured keypair path)")
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "Overwrite an existing file")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	path := keygenOut
	if path == "" {
		path = cfg.KeypairPath()
	}
	if _, err := os.Stat(path); err == nil && !keygenForce {
		return fmt.Errorf("%s exists, use --force to overwrite", path)
	}

	acc := types.NewAccount()
	if err := client.SaveKeypair(path, acc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\npubkey: %s\n", path, acc.PublicKey.ToBase58())
	return nil
}

func runFund(cmd *cobra.Command, args []string) error {
	to, err := address.Parse(args[0])
	if err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	lamports, err := client.ParseAmount(args[1], solDecimals)
	if err != nil {
		return err
	}
	return withSession(cmd, func(ctx context.Context, c *client.Client) error {
		receipt, err := c.Fund(ctx, to, lamports)
		if err != nil {
			return err
		}
		printReceipt(cmd, "funded", receipt)
		return nil
	})
}
