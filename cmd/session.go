package cmd

import (
	"context"
	"fmt"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/config"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the selected wallet and remember the session",
	Long: `Ask the wallet for account access on the selected network. Once
approved, later commands reconnect silently until you run 'carbonfi disconnect'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := app.Session(cmd.Context())
		if err != nil {
			cur := app.Connector.State()
			fmt.Println(ui.RenderState(cur, app.Registry.DisplayName(cur.ChainID)))
			return err
		}
		fmt.Println(ui.RenderState(st, app.Registry.DisplayName(st.ChainID)))
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the remembered session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app.Connector.Disconnect()
		fmt.Println(ui.Success("Disconnected. The next write will ask for access again."))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection state without prompting",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := app.Reconnect(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(ui.RenderState(st, app.Registry.DisplayName(st.ChainID)))
		if st.Status == wallet.StatusDisconnected {
			fmt.Println(ui.Hint("Connect with: carbonfi connect"))
		}
		return nil
	},
}

var resolveSignerFlag bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <contract>",
	Short: "Resolve a CarbonFi contract on the selected network and check its code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := chain.ParseContractName(args[0])
		if err != nil {
			return err
		}
		var h *contract.Handle
		if resolveSignerFlag {
			h, err = app.SignerHandle(cmd.Context(), name)
		} else {
			h, err = app.ReadHandle(cmd.Context(), name)
		}
		if err != nil {
			return err
		}
		pairs := [][2]string{
			{"Contract", string(h.Name)},
			{"Network", app.Registry.DisplayName(h.ChainID)},
			{"Address", ui.Addr(h.Address.Hex())},
			{"Binding", h.BoundTo.String()},
		}
		if h.BoundTo == contract.Signer {
			pairs = append(pairs, [2]string{"Signer", ui.Addr(h.From.Hex())})
		}
		if url := app.Network.AddressURL(h.Address.Hex()); url != "" {
			pairs = append(pairs, [2]string{"Explorer", url})
		}
		fmt.Println(ui.KeyValueBlock("Resolved", pairs))
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Read native, CFI, faucet and staking balances once",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		refresher := app.Refresher
		account, err := app.Account(ctx)
		if len(args) == 1 {
			if account, err = parseAddress(args[0]); err != nil {
				return err
			}
		}
		if err != nil {
			return err
		}
		if st := app.Connector.State(); st.Status != wallet.StatusConnected || st.Account != account {
			refresher = app.newRefresher(false)
		}

		spin := ui.NewSpinner(fmt.Sprintf("Reading balances on %s...", ui.ChainName(app.Network.DisplayName)))
		spin.Start()
		readCtx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
		defer cancel()
		snap, err := refresher.Refresh(readCtx, account, app.Network.ChainID)
		spin.Stop()
		if err != nil {
			return err
		}
		fmt.Println(ui.Meta(account.Hex() + " on " + app.Network.DisplayName))
		fmt.Println(ui.RenderSnapshot(snap))
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveSignerFlag, "signer", false, "resolve a write handle (connects the wallet)")
}
