package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/spf13/cobra"
)

// send resolves name with a signer, narrows the handle with as and submits
// the transaction built by fn, then waits for it.
func send[T any](ctx context.Context, name chain.ContractName, as func(*contract.Handle) (T, error), fn func(T) (*contract.PendingTx, error)) error {
	h, err := app.SignerHandle(ctx, name)
	if err != nil {
		return err
	}
	c, err := as(h)
	if err != nil {
		return err
	}
	tx, err := fn(c)
	if err != nil {
		return err
	}
	return app.Await(ctx, h, tx)
}

// read resolves name read-only and narrows it with as.
func read[T any](ctx context.Context, name chain.ContractName, as func(*contract.Handle) (T, error)) (T, error) {
	h, err := app.ReadHandle(ctx, name)
	if err != nil {
		var zero T
		return zero, err
	}
	return as(h)
}

func tokens(raw *big.Int, dec int) string {
	return chain.FormatUnits(raw, dec, 6)
}

// --- staking ---

var stakeCmd = &cobra.Command{
	Use:   "stake",
	Short: "Single-asset CFI staking",
}

var stakeDepositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Stake CFI (approve the staking contract first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		amt, err := app.TokenAmount(ctx, args[0])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractStaking, contract.AsStaking, func(s *contract.Staking) (*contract.PendingTx, error) {
			return s.Stake(ctx, amt)
		})
	},
}

var stakeWithdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>",
	Short: "Unstake CFI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		amt, err := app.TokenAmount(ctx, args[0])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractStaking, contract.AsStaking, func(s *contract.Staking) (*contract.PendingTx, error) {
			return s.Unstake(ctx, amt)
		})
	},
}

var stakeClaimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim staking rewards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return send(ctx, chain.ContractStaking, contract.AsStaking, func(s *contract.Staking) (*contract.PendingTx, error) {
			return s.ClaimRewards(ctx)
		})
	},
}

var stakeInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show your staking position and the pool total",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		account, err := app.Account(ctx)
		if err != nil {
			return err
		}
		s, err := read(ctx, chain.ContractStaking, contract.AsStaking)
		if err != nil {
			return err
		}
		info, err := s.Info(ctx, account)
		if err != nil {
			return err
		}
		total, err := s.TotalStaked(ctx)
		if err != nil {
			return err
		}
		dec, err := app.TokenDecimals(ctx)
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("Staking", [][2]string{
			{"Account", ui.Addr(account.Hex())},
			{"Staked", ui.Val(tokens(info.Staked, dec))},
			{"Pending rewards", tokens(info.PendingRewards, dec)},
			{"Pool total", ui.Meta(tokens(total, dec))},
		}))
		return nil
	},
}

// --- farming ---

var farmCmd = &cobra.Command{
	Use:   "farm",
	Short: "Yield farm pools",
}

var farmDepositCmd = &cobra.Command{
	Use:   "deposit <pool-id> <amount>",
	Short: "Deposit into a farm pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pid, err := parseID(args[0])
		if err != nil {
			return err
		}
		amt, err := app.TokenAmount(ctx, args[1])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractFarming, contract.AsFarming, func(f *contract.Farming) (*contract.PendingTx, error) {
			return f.Deposit(ctx, pid, amt)
		})
	},
}

var farmWithdrawCmd = &cobra.Command{
	Use:   "withdraw <pool-id> <amount>",
	Short: "Withdraw from a farm pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pid, err := parseID(args[0])
		if err != nil {
			return err
		}
		amt, err := app.TokenAmount(ctx, args[1])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractFarming, contract.AsFarming, func(f *contract.Farming) (*contract.PendingTx, error) {
			return f.Withdraw(ctx, pid, amt)
		})
	},
}

var farmHarvestCmd = &cobra.Command{
	Use:   "harvest <pool-id>",
	Short: "Harvest a pool's rewards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pid, err := parseID(args[0])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractFarming, contract.AsFarming, func(f *contract.Farming) (*contract.PendingTx, error) {
			return f.Harvest(ctx, pid)
		})
	},
}

var farmInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show your position in every pool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		account, err := app.Account(ctx)
		if err != nil {
			return err
		}
		f, err := read(ctx, chain.ContractFarming, contract.AsFarming)
		if err != nil {
			return err
		}
		n, err := f.PoolLength(ctx)
		if err != nil {
			return err
		}
		dec, err := app.TokenDecimals(ctx)
		if err != nil {
			return err
		}
		t := ui.NewTable(
			ui.Column{Title: "Pool", Width: 5, Right: true},
			ui.Column{Title: "Deposited", Width: 20, Right: true},
			ui.Column{Title: "Pending", Width: 20, Right: true},
		)
		for pid := big.NewInt(0); pid.Cmp(n) < 0 && pid.Int64() < maxPools; pid = new(big.Int).Add(pid, big.NewInt(1)) {
			pos, err := f.Position(ctx, pid, account)
			if err != nil {
				return fmt.Errorf("pool %s: %w", pid, err)
			}
			t.AddRow(pid.String(), tokens(pos.Amount, dec), tokens(pos.Pending, dec))
		}
		fmt.Println(t.Render())
		return nil
	},
}

// maxPools bounds the pool walk in farm info.
const maxPools = 64

// --- credit NFTs ---

var nftCmd = &cobra.Command{
	Use:   "nft",
	Short: "Carbon credit certificates (ERC-1155)",
}

var nftMintCmd = &cobra.Command{
	Use:   "mint <token-id> <amount>",
	Short: "Mint credit certificates (the contract enforces the minter role)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		amt, err := parseID(args[1])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractNFT, contract.AsNFT, func(n *contract.NFT) (*contract.PendingTx, error) {
			return n.Mint(ctx, id, amt)
		})
	},
}

var nftBalanceCmd = &cobra.Command{
	Use:   "balance <token-id> [owner]",
	Short: "Show how many certificates of a token ID an account holds",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		owner, err := app.Account(ctx)
		if len(args) == 2 {
			owner, err = parseAddress(args[1])
		}
		if err != nil {
			return err
		}
		n, err := read(ctx, chain.ContractNFT, contract.AsNFT)
		if err != nil {
			return err
		}
		bal, err := n.BalanceOf(ctx, owner, id)
		if err != nil {
			return err
		}
		uri, err := n.URI(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("Certificate", [][2]string{
			{"Owner", ui.Addr(owner.Hex())},
			{"Token ID", id.String()},
			{"Balance", ui.Val(bal.String())},
			{"URI", ui.Meta(uri)},
		}))
		return nil
	},
}

// --- marketplace ---

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Fixed-price credit marketplace",
}

var marketListCmd = &cobra.Command{
	Use:   "list <token-id> <amount> <price>",
	Short: "List certificates for sale at a CFI price per unit",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		amt, err := parseID(args[1])
		if err != nil {
			return err
		}
		price, err := app.TokenAmount(ctx, args[2])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractMarketplace, contract.AsMarketplace, func(m *contract.Marketplace) (*contract.PendingTx, error) {
			return m.List(ctx, id, amt, price)
		})
	},
}

var marketBuyCmd = &cobra.Command{
	Use:   "buy <listing-id>",
	Short: "Buy a listing (approve the marketplace for the price first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractMarketplace, contract.AsMarketplace, func(m *contract.Marketplace) (*contract.PendingTx, error) {
			return m.Buy(ctx, id)
		})
	},
}

var marketCancelCmd = &cobra.Command{
	Use:   "cancel <listing-id>",
	Short: "Cancel one of your listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractMarketplace, contract.AsMarketplace, func(m *contract.Marketplace) (*contract.PendingTx, error) {
			return m.Cancel(ctx, id)
		})
	},
}

var marketShowCmd = &cobra.Command{
	Use:   "show [listing-id]",
	Short: "Show one listing, or the most recent ones",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := read(ctx, chain.ContractMarketplace, contract.AsMarketplace)
		if err != nil {
			return err
		}
		dec, err := app.TokenDecimals(ctx)
		if err != nil {
			return err
		}

		var ids []*big.Int
		if len(args) == 1 {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		} else {
			n, err := m.ListingCount(ctx)
			if err != nil {
				return err
			}
			for i := new(big.Int).Set(n); i.Sign() > 0 && len(ids) < maxListings; {
				i = new(big.Int).Sub(i, big.NewInt(1))
				ids = append(ids, i)
			}
		}

		t := ui.NewTable(
			ui.Column{Title: "ID", Width: 5, Right: true},
			ui.Column{Title: "Seller", Width: 14},
			ui.Column{Title: "Token", Width: 6, Right: true},
			ui.Column{Title: "Amount", Width: 8, Right: true},
			ui.Column{Title: "Price", Width: 16, Right: true},
			ui.Column{Title: "Active", Width: 6},
		)
		for _, id := range ids {
			l, err := m.Listing(ctx, id)
			if err != nil {
				return fmt.Errorf("listing %s: %w", id, err)
			}
			active := ui.Meta("no")
			if l.Active {
				active = ui.StyleSuccess.Render("yes")
			}
			t.AddRow(id.String(), ui.TruncateAddr(l.Seller.Hex()), l.TokenID.String(), l.Amount.String(), tokens(l.Price, dec), active)
		}
		fmt.Println(t.Render())
		return nil
	},
}

// maxListings bounds market show without an ID.
const maxListings = 20

// --- retirement ---

var retireCmd = &cobra.Command{
	Use:   "retire",
	Short: "Retire carbon credits",
}

var retireCreditsCmd = &cobra.Command{
	Use:   "credits <amount> <reason>",
	Short: "Retire CFI-denominated credits with a public reason",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		amt, err := app.TokenAmount(ctx, args[0])
		if err != nil {
			return err
		}
		return send(ctx, chain.ContractRetirement, contract.AsRetirement, func(r *contract.Retirement) (*contract.PendingTx, error) {
			return r.Retire(ctx, amt, args[1])
		})
	},
}

var retireTotalCmd = &cobra.Command{
	Use:   "total [account]",
	Short: "Show total retirements, overall and for an account",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		account, err := app.Account(ctx)
		if len(args) == 1 {
			account, err = parseAddress(args[0])
		}
		if err != nil {
			return err
		}
		r, err := read(ctx, chain.ContractRetirement, contract.AsRetirement)
		if err != nil {
			return err
		}
		total, err := r.TotalRetired(ctx)
		if err != nil {
			return err
		}
		mine, err := r.RetiredBy(ctx, account)
		if err != nil {
			return err
		}
		dec, err := app.TokenDecimals(ctx)
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("Retired", [][2]string{
			{"All accounts", ui.Val(tokens(total, dec))},
			{ui.TruncateAddr(account.Hex()), tokens(mine, dec)},
		}))
		return nil
	},
}

var retireVerifiersCmd = &cobra.Command{
	Use:   "verifiers",
	Short: "List registered retirement verifiers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := read(ctx, chain.ContractRetirement, contract.AsRetirement)
		if err != nil {
			return err
		}
		vs, err := r.Verifiers(ctx)
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			fmt.Println(ui.Meta("No verifiers registered."))
			return nil
		}
		for i, v := range vs {
			fmt.Printf("  %2d  %s\n", i+1, ui.Addr(v.Hex()))
		}
		return nil
	},
}

func init() {
	stakeCmd.AddCommand(stakeDepositCmd, stakeWithdrawCmd, stakeClaimCmd, stakeInfoCmd)
	farmCmd.AddCommand(farmDepositCmd, farmWithdrawCmd, farmHarvestCmd, farmInfoCmd)
	nftCmd.AddCommand(nftMintCmd, nftBalanceCmd)
	marketCmd.AddCommand(marketListCmd, marketBuyCmd, marketCancelCmd, marketShowCmd)
	retireCmd.AddCommand(retireCreditsCmd, retireTotalCmd, retireVerifiersCmd)
}
