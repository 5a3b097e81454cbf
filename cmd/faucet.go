package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/spf13/cobra"
)

var errNothingToClaim = errors.New("faucet allowance for today is used up")

var faucetCmd = &cobra.Command{
	Use:   "faucet",
	Short: "Claim test CFI from the daily-limited faucet",
}

var faucetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's faucet allowance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		account, err := app.Account(ctx)
		if err != nil {
			return err
		}
		h, err := app.ReadHandle(ctx, chain.ContractFaucet)
		if err != nil {
			return err
		}
		f, err := contract.AsFaucet(h)
		if err != nil {
			return err
		}
		q, err := f.Quota(ctx, account)
		if err != nil {
			return err
		}
		dec, err := app.TokenDecimals(ctx)
		if err != nil {
			return err
		}
		claimed := "no"
		if q.HasClaimedToday {
			claimed = "yes"
		}
		fmt.Println(ui.KeyValueBlock("Faucet", [][2]string{
			{"Account", ui.Addr(account.Hex())},
			{"Daily limit", chain.FormatUnits(q.DailyLimit, dec, 4)},
			{"Claimed today", chain.FormatUnits(q.ClaimedToday, dec, 4)},
			{"Remaining", ui.Val(chain.FormatUnits(q.Remaining, dec, 4))},
			{"Has claimed", claimed},
		}))
		return nil
	},
}

var faucetClaimCmd = &cobra.Command{
	Use:   "claim [amount]",
	Short: "Claim CFI (default: everything left today)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount := ""
		if len(args) == 1 {
			amount = args[0]
		}
		h, tx, err := submitClaim(cmd.Context(), amount)
		if err != nil {
			return err
		}
		return app.Await(cmd.Context(), h, tx)
	},
}

// submitClaim sends a faucet claim. An empty amount claims what is left of
// today's allowance.
func submitClaim(ctx context.Context, amount string) (*contract.Handle, *contract.PendingTx, error) {
	h, err := app.SignerHandle(ctx, chain.ContractFaucet)
	if err != nil {
		return nil, nil, err
	}
	f, err := contract.AsFaucet(h)
	if err != nil {
		return nil, nil, err
	}

	var amt *big.Int
	if amount == "" {
		q, err := f.Quota(ctx, h.From)
		if err != nil {
			return nil, nil, err
		}
		if q.Remaining.Sign() == 0 {
			return nil, nil, errNothingToClaim
		}
		amt = q.Remaining
	} else if amt, err = app.TokenAmount(ctx, amount); err != nil {
		return nil, nil, err
	}

	tx, err := f.Claim(ctx, amt)
	if err != nil {
		return nil, nil, err
	}
	return h, tx, nil
}

func init() {
	faucetCmd.AddCommand(faucetStatusCmd, faucetClaimCmd)
}
