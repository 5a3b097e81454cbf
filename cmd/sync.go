package cmd

import (
	"fmt"
	"time"

	syncer "github.com/carbonfi/carbonfi/internal/sync"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/spf13/cobra"
)

var syncWatchFlag time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch contract addresses from a deployments manifest",
	Long: `Pull a deployments manifest over HTTP and store its addresses in
contracts.json. Manifest format:

  {"contracts": {"faucet": {"sepolia": {"address": "0x..."}}}}

Network keys may be slugs or chain IDs. New addresses apply from the next
command on.`,
}

var syncSetSourceCmd = &cobra.Command{
	Use:   "set-source <url>",
	Short: "Set the manifest URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newSyncer().SetSource(args[0]); err != nil {
			return err
		}
		fmt.Println(ui.Success("Sync source set to " + args[0]))
		fmt.Println(ui.Hint("Fetch it with: carbonfi sync run"))
		return nil
	},
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the manifest now (or keep fetching with --watch)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSyncer()
		if syncWatchFlag > 0 {
			fmt.Println(ui.Meta(fmt.Sprintf("syncing every %s, Ctrl+C to stop", syncWatchFlag)))
			return s.Watch(cmd.Context(), syncWatchFlag)
		}

		spin := ui.NewSpinner("Fetching deployments manifest...")
		spin.Start()
		res, err := s.Run(cmd.Context())
		spin.Stop()
		if err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("%d address(es) applied, %d skipped", res.Applied, res.Skipped)))
		return nil
	},
}

func newSyncer() *syncer.Syncer {
	return syncer.New(cfg, app.Deployments, app.Registry, log)
}

func init() {
	syncRunCmd.Flags().DurationVar(&syncWatchFlag, "watch", 0, "keep syncing on this interval (e.g. 10m)")
	syncCmd.AddCommand(syncSetSourceCmd, syncRunCmd)
}
