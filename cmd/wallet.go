package cmd

import (
	"fmt"
	"os"

	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var walletKeyFlag string

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage local wallets",
}

var walletAddCmd = &cobra.Command{
	Use:   "add <name> [address]",
	Short: "Add a watch-only address, or import a key with --key",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		var (
			w   *wallet.Wallet
			err error
		)
		switch {
		case walletKeyFlag != "":
			w, err = app.Wallets.AddWithKey(name, walletKeyFlag)
		case len(args) == 2:
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("%q is not an address", args[1])
			}
			w, err = app.Wallets.AddWatchOnly(name, common.HexToAddress(args[1]))
		default:
			return fmt.Errorf("address required for a watch-only wallet\n  Usage: carbonfi wallet add <name> <address>\n  Or for signing: carbonfi wallet add <name> --key <private-key>")
		}
		if err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("%s wallet %q added: %s", w.Type, name, ui.Addr(w.Address.Hex()))))
		fmt.Println(ui.Hint(fmt.Sprintf("Set as default with: carbonfi wallet use %s", name)))
		return nil
	},
}

var walletGenerateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate a new signing wallet",
	Long: `Generate a new EVM key. The key goes to the OS keychain (or the
encrypted file keyring under the config directory) and never to wallets.json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := app.Wallets.Generate(args[0])
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("New wallet", [][2]string{
			{"Name", w.Name},
			{"Address", ui.Addr(w.Address.Hex())},
		}))
		fmt.Println(ui.Hint("Fund it from the faucet with: carbonfi faucet claim --wallet " + w.Name))
		return nil
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		wallets, err := app.Wallets.List()
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			fmt.Println(ui.Meta("No wallets configured yet."))
			fmt.Println(ui.Hint("Create one with: carbonfi wallet generate <name>"))
			return nil
		}
		t := ui.NewTable(
			ui.Column{Title: "Name", Width: 16},
			ui.Column{Title: "Address", Width: 42},
			ui.Column{Title: "Type", Width: 10},
			ui.Column{Title: "Default", Width: 7},
		)
		for _, w := range wallets {
			def := ""
			if w.IsDefault {
				def = ui.StyleSuccess.Render("✓")
			}
			t.AddRow(ui.Val(w.Name), ui.Addr(w.Address.Hex()), ui.Meta(w.Type), def)
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta(fmt.Sprintf("%d wallet(s) configured", len(wallets))))
		return nil
	},
}

var walletUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the default wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := app.Wallets.SetDefault(name); err != nil {
			return err
		}
		cfg.DefaultWallet = name
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Default wallet set to %q.", name)))
		return nil
	},
}

var walletRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a wallet and its stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !yesFlag && !ui.Confirm(os.Stdin, os.Stderr, fmt.Sprintf("Remove wallet %q?", name)) {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}
		if err := app.Wallets.Remove(name); err != nil {
			return err
		}
		if cfg.DefaultWallet == name {
			cfg.DefaultWallet = ""
			if err := cfg.Save(); err != nil {
				return err
			}
		}
		fmt.Println(ui.Success(fmt.Sprintf("Wallet %q removed.", name)))
		return nil
	},
}

func init() {
	walletAddCmd.Flags().StringVar(&walletKeyFlag, "key", "", "hex private key to import")
	walletCmd.AddCommand(walletAddCmd, walletGenerateCmd, walletListCmd, walletUseCmd, walletRemoveCmd)
}
