package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

// MaxVerifiers bounds the retirement verifier walk. The on-chain array is
// fixed at this size.
const MaxVerifiers = 10

func expect(h *Handle, want chain.ContractName) error {
	if h.Name != want {
		return fmt.Errorf("handle is for %s, not %s", h.Name, want)
	}
	return nil
}

func bigAt(vals []any, i int) (*big.Int, error) {
	if i >= len(vals) {
		return nil, fmt.Errorf("missing output %d", i)
	}
	v, ok := vals[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d is %T, not uint256", i, vals[i])
	}
	return v, nil
}

// Token wraps the CFI token.
type Token struct{ *Handle }

// AsToken narrows h to the token wrapper. h must be a token handle.
func AsToken(h *Handle) (*Token, error) {
	if err := expect(h, chain.ContractToken); err != nil {
		return nil, err
	}
	return &Token{h}, nil
}

// BalanceOf returns account's balance in base units.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, t.Handle, "balanceOf", account)
}

// Decimals reads the token's decimals.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	return callOne[uint8](ctx, t.Handle, "decimals")
}

// Symbol reads the ticker, e.g. "CFI".
func (t *Token) Symbol(ctx context.Context) (string, error) {
	return callOne[string](ctx, t.Handle, "symbol")
}

// Allowance is what spender may still pull from owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, t.Handle, "allowance", owner, spender)
}

// Approve lets spender pull up to amount. Needs a signer handle.
func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*PendingTx, error) {
	return t.Transact(ctx, "approve", TxOpts{}, spender, amount)
}

// Transfer sends amount base units to to.
func (t *Token) Transfer(ctx context.Context, to common.Address, amount *big.Int) (*PendingTx, error) {
	return t.Transact(ctx, "transfer", TxOpts{}, to, amount)
}

// FaucetQuota is one account's daily faucet position, in token base units.
type FaucetQuota struct {
	DailyLimit      *big.Int
	ClaimedToday    *big.Int
	Remaining       *big.Int
	HasClaimedToday bool
}

// Faucet wraps the daily-limited faucet.
type Faucet struct{ *Handle }

// AsFaucet narrows h to the faucet wrapper.
func AsFaucet(h *Handle) (*Faucet, error) {
	if err := expect(h, chain.ContractFaucet); err != nil {
		return nil, err
	}
	return &Faucet{h}, nil
}

// Quota reads account's position for the current day.
func (f *Faucet) Quota(ctx context.Context, account common.Address) (FaucetQuota, error) {
	vals, err := f.Call(ctx, "quotaOf", account)
	if err != nil {
		return FaucetQuota{}, err
	}
	var q FaucetQuota
	if q.DailyLimit, err = bigAt(vals, 0); err != nil {
		return FaucetQuota{}, err
	}
	if q.ClaimedToday, err = bigAt(vals, 1); err != nil {
		return FaucetQuota{}, err
	}
	if q.Remaining, err = bigAt(vals, 2); err != nil {
		return FaucetQuota{}, err
	}
	claimed, ok := vals[3].(bool)
	if !ok {
		return FaucetQuota{}, fmt.Errorf("quotaOf output 3 is %T, not bool", vals[3])
	}
	q.HasClaimedToday = claimed
	return q, nil
}

// Claim requests amount from today's quota.
func (f *Faucet) Claim(ctx context.Context, amount *big.Int) (*PendingTx, error) {
	return f.Transact(ctx, "claimTokens", TxOpts{}, amount)
}

// StakeInfo is an account's staking position.
type StakeInfo struct {
	Staked         *big.Int
	PendingRewards *big.Int
}

// Staking wraps the single-asset staking pool.
type Staking struct{ *Handle }

// AsStaking narrows h to the staking wrapper.
func AsStaking(h *Handle) (*Staking, error) {
	if err := expect(h, chain.ContractStaking); err != nil {
		return nil, err
	}
	return &Staking{h}, nil
}

// Info reads the staked amount and unclaimed rewards for account.
func (s *Staking) Info(ctx context.Context, account common.Address) (StakeInfo, error) {
	staked, err := callOne[*big.Int](ctx, s.Handle, "stakedBalance", account)
	if err != nil {
		return StakeInfo{}, err
	}
	pending, err := callOne[*big.Int](ctx, s.Handle, "pendingRewards", account)
	if err != nil {
		return StakeInfo{}, err
	}
	return StakeInfo{Staked: staked, PendingRewards: pending}, nil
}

// TotalStaked is the pool-wide stake.
func (s *Staking) TotalStaked(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, s.Handle, "totalStaked")
}

// Stake deposits amount. The token allowance must already cover it.
func (s *Staking) Stake(ctx context.Context, amount *big.Int) (*PendingTx, error) {
	return s.Transact(ctx, "stake", TxOpts{}, amount)
}

// Unstake withdraws amount of the caller's stake.
func (s *Staking) Unstake(ctx context.Context, amount *big.Int) (*PendingTx, error) {
	return s.Transact(ctx, "unstake", TxOpts{}, amount)
}

// ClaimRewards pays out pending rewards.
func (s *Staking) ClaimRewards(ctx context.Context) (*PendingTx, error) {
	return s.Transact(ctx, "claimRewards", TxOpts{})
}

// FarmPosition is an account's position in one pool.
type FarmPosition struct {
	PoolID  *big.Int
	Amount  *big.Int
	Pending *big.Int
}

// Farming wraps the yield farm.
type Farming struct{ *Handle }

// AsFarming narrows h to the farm wrapper.
func AsFarming(h *Handle) (*Farming, error) {
	if err := expect(h, chain.ContractFarming); err != nil {
		return nil, err
	}
	return &Farming{h}, nil
}

// PoolLength is the number of farm pools.
func (f *Farming) PoolLength(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, f.Handle, "poolLength")
}

// Position reads account's deposit and pending reward in pool pid.
func (f *Farming) Position(ctx context.Context, pid *big.Int, account common.Address) (FarmPosition, error) {
	vals, err := f.Call(ctx, "userInfo", pid, account)
	if err != nil {
		return FarmPosition{}, err
	}
	amount, err := bigAt(vals, 0)
	if err != nil {
		return FarmPosition{}, err
	}
	pending, err := callOne[*big.Int](ctx, f.Handle, "pendingReward", pid, account)
	if err != nil {
		return FarmPosition{}, err
	}
	return FarmPosition{PoolID: pid, Amount: amount, Pending: pending}, nil
}

// Deposit adds amount to pool pid.
func (f *Farming) Deposit(ctx context.Context, pid, amount *big.Int) (*PendingTx, error) {
	return f.Transact(ctx, "deposit", TxOpts{}, pid, amount)
}

// Withdraw removes amount from pool pid.
func (f *Farming) Withdraw(ctx context.Context, pid, amount *big.Int) (*PendingTx, error) {
	return f.Transact(ctx, "withdraw", TxOpts{}, pid, amount)
}

// Harvest claims the pending reward of pool pid.
func (f *Farming) Harvest(ctx context.Context, pid *big.Int) (*PendingTx, error) {
	return f.Transact(ctx, "harvest", TxOpts{}, pid)
}

// NFT wraps the ERC-1155 credit certificates.
type NFT struct{ *Handle }

// AsNFT narrows h to the certificate wrapper.
func AsNFT(h *Handle) (*NFT, error) {
	if err := expect(h, chain.ContractNFT); err != nil {
		return nil, err
	}
	return &NFT{h}, nil
}

// BalanceOf returns how many certificates of id account holds.
func (n *NFT) BalanceOf(ctx context.Context, account common.Address, id *big.Int) (*big.Int, error) {
	return callOne[*big.Int](ctx, n.Handle, "balanceOf", account, id)
}

// URI is the metadata URI for id.
func (n *NFT) URI(ctx context.Context, id *big.Int) (string, error) {
	return callOne[string](ctx, n.Handle, "uri", id)
}

// Mint issues amount certificates of id to the caller.
func (n *NFT) Mint(ctx context.Context, id, amount *big.Int) (*PendingTx, error) {
	return n.Transact(ctx, "mint", TxOpts{}, id, amount)
}

// SetApprovalForAll lets operator move every certificate, e.g. the marketplace.
func (n *NFT) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (*PendingTx, error) {
	return n.Transact(ctx, "setApprovalForAll", TxOpts{}, operator, approved)
}

// Listing is one marketplace listing.
type Listing struct {
	ID      *big.Int
	Seller  common.Address
	TokenID *big.Int
	Amount  *big.Int
	Price   *big.Int
	Active  bool
}

// Marketplace wraps the fixed-price marketplace.
type Marketplace struct{ *Handle }

// AsMarketplace narrows h to the marketplace wrapper.
func AsMarketplace(h *Handle) (*Marketplace, error) {
	if err := expect(h, chain.ContractMarketplace); err != nil {
		return nil, err
	}
	return &Marketplace{h}, nil
}

// ListingCount counts listings ever created, active or not.
func (m *Marketplace) ListingCount(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, m.Handle, "listingCount")
}

// Listing reads one listing by ID.
func (m *Marketplace) Listing(ctx context.Context, id *big.Int) (Listing, error) {
	vals, err := m.Call(ctx, "getListing", id)
	if err != nil {
		return Listing{}, err
	}
	if len(vals) != 5 {
		return Listing{}, fmt.Errorf("getListing returned %d values", len(vals))
	}
	l := Listing{ID: id}
	var ok bool
	if l.Seller, ok = vals[0].(common.Address); !ok {
		return Listing{}, fmt.Errorf("getListing seller is %T", vals[0])
	}
	if l.TokenID, err = bigAt(vals, 1); err != nil {
		return Listing{}, err
	}
	if l.Amount, err = bigAt(vals, 2); err != nil {
		return Listing{}, err
	}
	if l.Price, err = bigAt(vals, 3); err != nil {
		return Listing{}, err
	}
	if l.Active, ok = vals[4].(bool); !ok {
		return Listing{}, fmt.Errorf("getListing active is %T", vals[4])
	}
	return l, nil
}

// List offers amount of tokenID at price.
func (m *Marketplace) List(ctx context.Context, tokenID, amount, price *big.Int) (*PendingTx, error) {
	return m.Transact(ctx, "listItem", TxOpts{}, tokenID, amount, price)
}

// Buy fills listingID.
func (m *Marketplace) Buy(ctx context.Context, listingID *big.Int) (*PendingTx, error) {
	return m.Transact(ctx, "buyItem", TxOpts{}, listingID)
}

// Cancel withdraws the caller's listing.
func (m *Marketplace) Cancel(ctx context.Context, listingID *big.Int) (*PendingTx, error) {
	return m.Transact(ctx, "cancelListing", TxOpts{}, listingID)
}

// Retirement wraps credit retirement.
type Retirement struct{ *Handle }

// AsRetirement narrows h to the retirement wrapper.
func AsRetirement(h *Handle) (*Retirement, error) {
	if err := expect(h, chain.ContractRetirement); err != nil {
		return nil, err
	}
	return &Retirement{h}, nil
}

// TotalRetired is the total amount retired.
func (r *Retirement) TotalRetired(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, r.Handle, "totalRetired")
}

// RetiredBy is what account has retired.
func (r *Retirement) RetiredBy(ctx context.Context, account common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, r.Handle, "retiredBy", account)
}

// Verifiers lists the registered verifiers, stopping at the first empty slot.
func (r *Retirement) Verifiers(ctx context.Context) ([]common.Address, error) {
	return Enumerate(ctx, MaxVerifiers,
		func(ctx context.Context) (uint64, error) {
			n, err := callOne[*big.Int](ctx, r.Handle, "verifierCount")
			if err != nil {
				return 0, err
			}
			if !n.IsUint64() {
				return MaxVerifiers, nil
			}
			return n.Uint64(), nil
		},
		func(ctx context.Context, i uint64) (common.Address, error) {
			return callOne[common.Address](ctx, r.Handle, "verifiers", new(big.Int).SetUint64(i))
		})
}

// Retire retires amount of credits with reason recorded on chain.
func (r *Retirement) Retire(ctx context.Context, amount *big.Int, reason string) (*PendingTx, error) {
	return r.Transact(ctx, "retire", TxOpts{}, amount, reason)
}
