package cmd

import (
	"fmt"
	"strconv"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Inspect supported networks",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported networks and how many CarbonFi contracts each has",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := ui.NewTable(
			ui.Column{Title: "Name", Width: 12},
			ui.Column{Title: "Display", Width: 22},
			ui.Column{Title: "Chain ID", Width: 10, Right: true},
			ui.Column{Title: "Currency", Width: 9},
			ui.Column{Title: "Contracts", Width: 9, Right: true},
		)
		all := app.Registry.All()
		for _, n := range all {
			name := ui.ChainName(n.Name)
			if n.ChainID == app.Network.ChainID {
				name += " *"
			}
			t.AddRow(name, n.DisplayName, strconv.FormatInt(n.ChainID, 10), n.NativeCurrency, strconv.Itoa(len(n.Contracts)))
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta(fmt.Sprintf("%d networks, * marks the selected one", len(all))))
		return nil
	},
}

var networkShowCmd = &cobra.Command{
	Use:   "show [chain]",
	Short: "Show a network's RPCs, explorer and contract addresses",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := app.Network
		if len(args) == 1 {
			var err error
			if n, err = app.Registry.Resolve(args[0]); err != nil {
				return err
			}
		}
		fmt.Println(renderNetwork(n))
		return nil
	},
}

func renderNetwork(n *chain.Network) string {
	pairs := [][2]string{
		{"Name", n.DisplayName},
		{"Chain ID", strconv.FormatInt(n.ChainID, 10)},
		{"Currency", fmt.Sprintf("%s (%d decimals)", n.NativeCurrency, n.NativeDecimals)},
		{"Explorer", n.BlockExplorer},
	}
	for i, url := range n.RPCURLs {
		pairs = append(pairs, [2]string{fmt.Sprintf("RPC %d", i+1), url})
	}
	for _, name := range chain.ContractNames() {
		v := ui.Meta("not deployed")
		if addr, ok := n.ContractAddress(name); ok {
			v = ui.Addr(addr.Hex())
		}
		pairs = append(pairs, [2]string{string(name), v})
	}
	return ui.KeyValueBlock(n.Name, pairs)
}

func init() {
	networkCmd.AddCommand(networkListCmd, networkShowCmd)
}
