package cmd

import (
	"fmt"
	"time"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/rpc"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/spf13/cobra"
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Manage RPC endpoints",
}

// networkArg resolves an optional chain argument, defaulting to the
// selected network.
func networkArg(args []string) (*chain.Network, error) {
	if len(args) == 0 {
		return app.Network, nil
	}
	return app.Registry.Resolve(args[0])
}

var rpcAddCmd = &cobra.Command{
	Use:   "add <chain> <url>",
	Short: "Add a custom RPC URL, tried before the built-in ones",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := app.Registry.Resolve(args[0])
		if err != nil {
			return err
		}
		if err := cfg.AddRPC(n.ChainID, args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Added RPC for %s: %s", ui.ChainName(n.Name), args[1])))
		return nil
	},
}

var rpcRemoveCmd = &cobra.Command{
	Use:   "remove <chain> <url>",
	Short: "Remove a custom RPC URL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := app.Registry.Resolve(args[0])
		if err != nil {
			return err
		}
		if err := cfg.RemoveRPC(n.ChainID, args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Removed RPC for %s: %s", ui.ChainName(n.Name), args[1])))
		return nil
	},
}

var rpcListCmd = &cobra.Command{
	Use:   "list [chain]",
	Short: "List RPC URLs in the order they are tried",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := networkArg(args)
		if err != nil {
			return err
		}
		custom := map[string]bool{}
		for _, u := range cfg.GetRPCs(n.ChainID) {
			custom[u] = true
		}
		fmt.Println(ui.ChainName(n.DisplayName) + ui.Meta(" ("+cfg.RPCAlgorithm+")"))
		for i, u := range n.RPCURLs {
			tag := ""
			if custom[u] {
				tag = ui.Meta("  custom")
			}
			fmt.Printf("  %2d  %s%s\n", i+1, u, tag)
		}
		return nil
	},
}

var rpcBenchmarkCmd = &cobra.Command{
	Use:   "benchmark [chain]",
	Short: "Health-check every RPC URL and show latency and head block",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := networkArg(args)
		if err != nil {
			return err
		}
		spin := ui.NewSpinner(fmt.Sprintf("Checking %d endpoints on %s...", len(n.RPCURLs), n.DisplayName))
		spin.Start()
		results := rpc.Benchmark(cmd.Context(), n.RPCURLs, n.ChainID)
		spin.Stop()

		t := ui.NewTable(
			ui.Column{Title: "URL", Width: 48},
			ui.Column{Title: "Latency", Width: 10, Right: true},
			ui.Column{Title: "Block", Width: 12, Right: true},
			ui.Column{Title: "Status", Width: 30},
		)
		for _, r := range results {
			status := ui.StyleSuccess.Render("ok")
			if r.Err != nil {
				status = ui.StyleError.Render(r.Err.Error())
			}
			t.AddRow(r.URL, r.Latency.Round(time.Millisecond).String(), fmt.Sprint(r.BlockNumber), status)
		}
		fmt.Println(t.Render())

		picked, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(rpc.ResultsToEndpoints(results))
		if err == nil {
			fmt.Println(ui.Hint("fastest healthy: " + picked.URL))
		}
		return nil
	},
}

func init() {
	rpcCmd.AddCommand(rpcAddCmd, rpcRemoveCmd, rpcListCmd, rpcBenchmarkCmd)
}
