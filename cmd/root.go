package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/carbonfi/carbonfi/internal/config"
	"github.com/carbonfi/carbonfi/internal/logger"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/carbonfi/carbonfi/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir     string
	cfg        *config.Config
	log        *zap.Logger
	app        *App
	chainFlag  string
	walletFlag string
	yesFlag    bool
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "carbonfi",
	Short: "CarbonFi wallet and contract console",
	Long: `carbonfi connects a local wallet to the CarbonFi contracts
(token, faucet, staking, farming, credit NFTs, marketplace, retirement)
on the supported test networks, and keeps balances fresh while you work.

Use --chain to pick a network by name or chain ID for one invocation.
Persist a default with: carbonfi config set-chain <chain>`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		// A missing .env is the normal case outside development.
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log, err = logger.New(cfg.LogLevel, logger.Format(cfg.LogFormat))
		if err != nil {
			return err
		}
		app, err = NewApp(cfg, log, AppOptions{Chain: chainFlag, Wallet: walletFlag, AutoApprove: yesFlag})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
		if log != nil {
			log.Sync() //nolint:errcheck
		}
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Err(err.Error()))
		if hint := hintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, ui.Hint(hint))
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	// CARBONFI_CONFIG_DIR env var overrides the --config default.
	if envDir := os.Getenv("CARBONFI_CONFIG_DIR"); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.carbonfi)")
	rootCmd.PersistentFlags().StringVar(&chainFlag, "chain", "", "network name or chain ID (default: config default_chain_id)")
	rootCmd.PersistentFlags().StringVarP(&walletFlag, "wallet", "w", "", "wallet name (default: config default wallet)")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "approve wallet prompts without asking")

	rootCmd.AddCommand(
		networkCmd,
		walletCmd,
		connectCmd,
		disconnectCmd,
		statusCmd,
		resolveCmd,
		balanceCmd,
		dashboardCmd,
		faucetCmd,
		tokenCmd,
		stakeCmd,
		farmCmd,
		nftCmd,
		marketCmd,
		retireCmd,
		txCmd,
		contractCmd,
		rpcCmd,
		configCmd,
		syncCmd,
	)
}
