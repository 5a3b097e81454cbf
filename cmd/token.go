package cmd

import (
	"fmt"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "CFI token allowances",
}

var tokenApproveCmd = &cobra.Command{
	Use:   "approve <spender> <amount>",
	Short: "Approve a spender (an address or a contract name such as staking)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		spender, err := spenderAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := app.TokenAmount(ctx, args[1])
		if err != nil {
			return err
		}
		h, err := app.SignerHandle(ctx, chain.ContractToken)
		if err != nil {
			return err
		}
		tok, err := contract.AsToken(h)
		if err != nil {
			return err
		}
		tx, err := tok.Approve(ctx, spender, amount)
		if err != nil {
			return err
		}
		return app.Await(ctx, h, tx)
	},
}

var tokenAllowanceCmd = &cobra.Command{
	Use:   "allowance <spender> [owner]",
	Short: "Show how much a spender may move for owner (default: your account)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		spender, err := spenderAddress(args[0])
		if err != nil {
			return err
		}
		var owner common.Address
		if len(args) == 2 {
			owner, err = parseAddress(args[1])
		} else {
			owner, err = app.Account(ctx)
		}
		if err != nil {
			return err
		}
		h, err := app.ReadHandle(ctx, chain.ContractToken)
		if err != nil {
			return err
		}
		tok, err := contract.AsToken(h)
		if err != nil {
			return err
		}
		raw, err := tok.Allowance(ctx, owner, spender)
		if err != nil {
			return err
		}
		dec, err := tok.Decimals(ctx)
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("Allowance", [][2]string{
			{"Owner", ui.Addr(owner.Hex())},
			{"Spender", ui.Addr(spender.Hex())},
			{"Amount", ui.Val(chain.FormatUnits(raw, int(dec), 6))},
		}))
		return nil
	},
}

// spenderAddress accepts a hex address or a CarbonFi contract name on the
// target network.
func spenderAddress(s string) (common.Address, error) {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	name, err := chain.ParseContractName(s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%q is neither an address nor a contract name", s)
	}
	addr, ok := app.Network.ContractAddress(name)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s on %s", contract.ErrContractNotConfigured, name, app.Network.DisplayName)
	}
	return addr, nil
}

func init() {
	tokenCmd.AddCommand(tokenApproveCmd, tokenAllowanceCmd)
}
