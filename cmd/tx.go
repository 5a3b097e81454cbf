package cmd

import (
	"errors"
	"fmt"

	"github.com/carbonfi/carbonfi/internal/config"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var txWaitFlag bool

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Follow transactions",
}

var txStatusCmd = &cobra.Command{
	Use:   "status <hash>",
	Short: "Show whether a transaction is pending, confirmed or reverted",
	Long: `Look up a transaction on the selected network. A transaction that timed
out in an earlier command is not failed; check it here, or pass --wait to
block for up to tx_timeout seconds.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		raw, err := hexutil.Decode(args[0])
		if err != nil || len(raw) != common.HashLength {
			return fmt.Errorf("%q is not a transaction hash", args[0])
		}
		backend, err := contract.NodeBackends(app.Pool).Backend(ctx, app.Network.ChainID)
		if err != nil {
			return fmt.Errorf("%w: %v", contract.ErrRPCUnreachable, err)
		}

		opts := contract.WaitOptions{Timeout: config.ReadTimeout, Metrics: app.Metrics}
		if txWaitFlag {
			opts.Timeout = cfg.TxWaitTimeout()
		}
		tx := &contract.PendingTx{Hash: common.BytesToHash(raw), ChainID: app.Network.ChainID}
		res, err := contract.WaitMined(ctx, backend, tx, opts)
		switch {
		case errors.Is(err, contract.ErrTransactionTimedOut):
			fmt.Println(ui.Warn("pending: not mined yet"))
			return nil
		case errors.Is(err, contract.ErrTransactionReverted):
			fmt.Println(ui.Err(fmt.Sprintf("reverted in block %s", res.Receipt.BlockNumber)))
			return nil
		case err != nil:
			return err
		}

		pairs := [][2]string{
			{"Status", ui.StyleSuccess.Render(res.Status.String())},
			{"Block", res.Receipt.BlockNumber.String()},
			{"Gas used", fmt.Sprint(res.Receipt.GasUsed)},
		}
		if url := app.Network.TxURL(tx.Hash.Hex()); url != "" {
			pairs = append(pairs, [2]string{"Explorer", url})
		}
		fmt.Println(ui.KeyValueBlock(tx.Hash.Hex(), pairs))
		return nil
	},
}

func init() {
	txStatusCmd.Flags().BoolVar(&txWaitFlag, "wait", false, "wait up to tx_timeout for the transaction to be mined")
	txCmd.AddCommand(txStatusCmd)
}
