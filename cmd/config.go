package cmd

import (
	"fmt"
	"strconv"

	"github.com/carbonfi/carbonfi/internal/logger"
	"github.com/carbonfi/carbonfi/internal/rpc"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change settings",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := app.State.Load()
		admin := cfg.AdminAddress
		if admin == "" {
			admin = ui.Meta("unset")
		}
		fmt.Println(ui.KeyValueBlock("Config", [][2]string{
			{"Directory", cfg.Dir()},
			{"Default chain", app.Registry.DisplayName(cfg.DefaultChainID)},
			{"Default wallet", cfg.DefaultWallet},
			{"Preferred wallet", cfg.PreferredWallet},
			{"RPC algorithm", cfg.RPCAlgorithm},
			{"RPC rate limit", fmt.Sprintf("%g/s", cfg.RPCRateLimit)},
			{"Refresh", fmt.Sprintf("every %s + up to %s", cfg.RefreshEvery(), cfg.RefreshJitterDuration())},
			{"Tx timeout", cfg.TxWaitTimeout().String()},
			{"Log", cfg.LogLevel + " / " + cfg.LogFormat},
			{"Admin address", admin},
			{"Auto-connect", strconv.FormatBool(st.AutoConnect)},
			{"Last dashboard", st.LastDashboard},
		}))
		return nil
	},
}

// setter builds a "config set-x <value>" command that validates, applies
// and saves.
func setter(use, short string, apply func(v string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <value>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apply(args[0]); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Println(ui.Success(fmt.Sprintf("%s = %s", use, args[0])))
			return nil
		},
	}
}

func positiveSeconds(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%q is not a number of seconds", v)
	}
	return n, nil
}

func init() {
	configCmd.AddCommand(
		configListCmd,
		setter("set-chain", "Set the default network (name or chain ID)", func(v string) error {
			n, err := app.Registry.Resolve(v)
			if err != nil {
				return err
			}
			cfg.DefaultChainID = n.ChainID
			return nil
		}),
		setter("set-wallet-kind", "Prefer a wallet kind when several are available", func(v string) error {
			if _, err := wallet.ParseKind(v); err != nil {
				return err
			}
			cfg.PreferredWallet = v
			return nil
		}),
		setter("set-algorithm", "Set RPC selection: fastest, round-robin or failover", func(v string) error {
			a, err := rpc.ParseAlgorithm(v)
			if err != nil {
				return err
			}
			cfg.RPCAlgorithm = string(a)
			return nil
		}),
		setter("set-rate-limit", "Cap balance reads per second (0 for unlimited)", func(v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("%q is not a rate", v)
			}
			cfg.RPCRateLimit = f
			return nil
		}),
		setter("set-interval", "Seconds between background refreshes (clamped to 15-30)", func(v string) error {
			n, err := positiveSeconds(v)
			if err != nil {
				return err
			}
			cfg.RefreshInterval = n
			return nil
		}),
		setter("set-jitter", "Maximum random seconds added to each refresh interval", func(v string) error {
			n, err := positiveSeconds(v)
			if err != nil {
				return err
			}
			cfg.RefreshJitter = n
			return nil
		}),
		setter("set-tx-timeout", "Seconds to wait for a transaction before reporting it pending", func(v string) error {
			n, err := positiveSeconds(v)
			if err != nil {
				return err
			}
			cfg.TxTimeout = n
			return nil
		}),
		setter("set-log-level", "Log level: debug, info, warn or error", func(v string) error {
			if _, err := logger.ParseLevel(v); err != nil {
				return err
			}
			cfg.LogLevel = v
			return nil
		}),
		setter("set-admin", "Address shown with an admin badge (display only)", func(v string) error {
			if !common.IsHexAddress(v) {
				return fmt.Errorf("%q is not an address", v)
			}
			cfg.AdminAddress = common.HexToAddress(v).Hex()
			return nil
		}),
	)
}
