// tokenctl drives a deployed token manager program: it creates the token,
// mints, transfers and burns it and reads balances and metadata.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-token-manager/internal/client"
	"solana-token-manager/internal/config"
	"solana-token-manager/internal/observability"
	"solana-token-manager/internal/program"
	"solana-token-manager/internal/runtime"
	"solana-token-manager/internal/runtime/stub"
	"solana-token-manager/internal/solana"
)

// localAirdrop funds the payer of an in-process runtime.
const localAirdrop = 100_000_000_000

var (
	// Global flags
	envFile    string
	rpcURL     string
	wsURL      string
	programID  string
	keypair    string
	commitment string
	local      bool
	verbose    bool
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger

	// localRuntime backs --local; it and its payer live for the process.
	localRuntime *runtime.Runtime
	localPayer   *types.Account
)

var rootCmd = &cobra.Command{
	Use:   "tokenctl",
	Short: "Manage an SPL token through the token manager program",
	Long: `tokenctl builds the token manager's instructions, submits them to a
Solana cluster and reads the resulting mint, token account and metadata state.

Settings come from the environment (and .env), flags override them.
With --local every command runs against an in-process runtime instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = cfg.Logger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc-url", "", "Solana RPC endpoint (or SOLANA_RPC_URL)")
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws-url", "", "Solana WebSocket endpoint (or SOLANA_WS_URL)")
	rootCmd.PersistentFlags().StringVar(&programID, "program-id", "", "Token manager program ID (or TOKEN_MANAGER_PROGRAM_ID)")
	rootCmd.PersistentFlags().StringVarP(&keypair, "keypair", "k", "", "Payer keypair file (or SOLANA_KEYPAIR)")
	rootCmd.PersistentFlags().StringVar(&commitment, "commitment", "", "Confirmation commitment (or SOLANA_COMMITMENT)")
	rootCmd.PersistentFlags().BoolVar(&local, "local", false, "Run against an in-process runtime")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(initCmd, mintCmd, transferCmd, burnCmd)
	rootCmd.AddCommand(balanceCmd, infoCmd, addressesCmd)
	rootCmd.AddCommand(keygenCmd, fundCmd, demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("rpc-url") {
		cfg.RPCURL = rpcURL
	}
	if flags.Changed("ws-url") {
		cfg.WSURL = wsURL
	}
	if flags.Changed("program-id") {
		cfg.ProgramID = programID
	}
	if flags.Changed("keypair") {
		cfg.Keypair = keypair
	}
	if flags.Changed("commitment") {
		cfg.Commitment = commitment
	}
}

// session is a client bound to the configured cluster or local runtime.
type session struct {
	client *client.Client
	close  func()
}

func newSession(ctx context.Context) (*session, error) {
	if local {
		return newLocalSession()
	}

	payer, err := client.LoadKeypair(cfg.KeypairPath())
	if err != nil {
		return nil, err
	}

	// CLI runs are short: metrics go to a private registry.
	metrics := observability.NewMetrics("", prometheus.NewRegistry())
	rpc := solana.NewHTTPClient(cfg.RPCURL,
		solana.WithCommitment(cfg.Commitment),
		solana.WithLogger(logger),
		solana.WithObserver(metrics.ObserveRPC),
	)

	opts := []client.RPCOption{
		client.WithCommitment(cfg.Commitment),
		client.WithConfirmTimeout(cfg.ConfirmTimeout),
		client.WithRPCLogger(logger),
	}
	closeWS := func() {}
	ws, err := solana.NewWSClient(ctx, cfg.WebSocketURL(), nil)
	if err != nil {
		// polling still confirms
		logger.Warn("websocket unavailable", zap.String("endpoint", cfg.WebSocketURL()), zap.Error(err))
	} else {
		opts = append(opts, client.WithWebSocket(ws))
		closeWS = func() { _ = ws.Close() }
	}

	c, err := client.New(cfg.Program(), payer,
		client.NewRPCSubmitter(rpc, opts...),
		client.NewRPCReader(rpc),
		client.WithLogger(logger),
		client.WithMetrics(metrics),
	)
	if err != nil {
		closeWS()
		return nil, err
	}
	return &session{client: c, close: closeWS}, nil
}

func newLocalSession() (*session, error) {
	if localRuntime == nil {
		localRuntime = stub.NewRuntime()
		localRuntime.Register(program.New(cfg.Program(), logger))
	}

	if localPayer == nil {
		payer, err := client.LoadKeypair(cfg.KeypairPath())
		if err != nil {
			payer = types.NewAccount()
		}
		localRuntime.Bank().Airdrop(payer.PublicKey, localAirdrop)
		localPayer = &payer
	}
	payer := *localPayer

	backend := client.NewLocal(localRuntime)
	c, err := client.New(cfg.Program(), payer, backend, backend, client.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &session{client: c, close: func() {}}, nil
}

// withSession runs fn with a fresh session under the command timeout.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s.client)
}

func printReceipt(cmd *cobra.Command, what string, receipt *client.Receipt) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", what, receipt.Signature)
	if verbose {
		for _, line := range receipt.Logs {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", line)
		}
	}
}
