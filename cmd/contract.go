package cmd

import (
	"fmt"
	"strings"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/spf13/cobra"
)

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "CarbonFi contract interfaces and address overrides",
}

var contractListCmd = &cobra.Command{
	Use:   "list",
	Short: "List CarbonFi contracts and their address on the selected network",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := ui.NewTable(
			ui.Column{Title: "Name", Width: 12},
			ui.Column{Title: "Label", Width: 22},
			ui.Column{Title: "Address", Width: 42},
		)
		for _, b := range contract.AllBuiltins() {
			addr := ui.Meta("not deployed")
			if a, ok := app.Network.ContractAddress(b.Name); ok {
				addr = ui.Addr(a.Hex())
			}
			t.AddRow(string(b.Name), b.Label, addr)
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta("on " + app.Network.DisplayName))
		return nil
	},
}

var contractABICmd = &cobra.Command{
	Use:   "abi <contract>",
	Short: "Show a contract's functions with their selectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := chain.ParseContractName(args[0])
		if err != nil {
			return err
		}
		b, ok := contract.GetBuiltin(name)
		if !ok {
			return fmt.Errorf("no interface for %s", name)
		}
		fmt.Println(renderABI(b))
		return nil
	},
}

func renderABI(b contract.BuiltinKind) string {
	t := ui.NewTable(
		ui.Column{Title: "Kind", Width: 5},
		ui.Column{Title: "Signature", Width: 44},
		ui.Column{Title: "Selector", Width: 10},
		ui.Column{Title: "Returns", Width: 30},
	)
	for _, e := range b.ABI {
		kind := ""
		switch {
		case e.IsReadFunction():
			kind = "read"
		case e.IsWriteFunction():
			kind = "write"
		default:
			continue
		}
		outs := make([]string, len(e.Outputs))
		for i, o := range e.Outputs {
			outs[i] = o.Type
		}
		t.AddRow(kind, e.Signature(), e.Selector(), strings.Join(outs, ", "))
	}
	var sb strings.Builder
	sb.WriteString(ui.StyleTitle.Render(b.Label) + "\n")
	if b.Description != "" {
		sb.WriteString(ui.Meta(b.Description) + "\n")
	}
	sb.WriteString(t.Render())
	return sb.String()
}

var contractSetCmd = &cobra.Command{
	Use:   "set <contract> <address>",
	Short: "Override a contract address on the selected network",
	Long: `Record a local deployment in contracts.json. Overrides replace the
built-in table address from the next command on.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := chain.ParseContractName(args[0])
		if err != nil {
			return err
		}
		addr, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		app.Deployments.Set(contract.Deployment{Name: name, ChainID: app.Network.ChainID, Address: addr, Source: "manual"})
		if err := app.Deployments.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("%s on %s now points at %s", name, app.Network.DisplayName, ui.Addr(addr.Hex()))))
		return nil
	},
}

var contractUnsetCmd = &cobra.Command{
	Use:   "unset <contract>",
	Short: "Remove an address override on the selected network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := chain.ParseContractName(args[0])
		if err != nil {
			return err
		}
		if err := app.Deployments.Remove(name, app.Network.ChainID); err != nil {
			return err
		}
		if err := app.Deployments.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Override for %s on %s removed", name, app.Network.DisplayName)))
		return nil
	},
}

var contractOverridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "List every address override",
	RunE: func(cmd *cobra.Command, args []string) error {
		all := app.Deployments.All()
		if len(all) == 0 {
			fmt.Println(ui.Meta("No overrides. Built-in addresses are in use."))
			return nil
		}
		t := ui.NewTable(
			ui.Column{Title: "Contract", Width: 12},
			ui.Column{Title: "Network", Width: 20},
			ui.Column{Title: "Address", Width: 42},
			ui.Column{Title: "Source", Width: 24},
		)
		for _, d := range all {
			t.AddRow(string(d.Name), app.Registry.DisplayName(d.ChainID), ui.Addr(d.Address.Hex()), ui.Meta(d.Source))
		}
		fmt.Println(t.Render())
		return nil
	},
}

func init() {
	contractCmd.AddCommand(contractListCmd, contractABICmd, contractSetCmd, contractUnsetCmd, contractOverridesCmd)
}
