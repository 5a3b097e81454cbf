package contract

import "github.com/carbonfi/carbonfi/internal/chain"

func init() {
	RegisterBuiltin(BuiltinKind{
		Name:        chain.ContractStaking,
		Label:       "CarbonFi Staking",
		Description: "Single-asset CFI staking with continuously accruing rewards.",
		ABI:         stakingABI,
	})
}

var stakingABI = []ABIEntry{
	view("stakedBalance", params("account", "address"), params("", "uint256")),
	view("pendingRewards", params("account", "address"), params("", "uint256")),
	view("totalStaked", nil, params("", "uint256")),
	view("rewardRate", nil, params("", "uint256")),

	write("stake", params("amount", "uint256"), nil),
	write("unstake", params("amount", "uint256"), nil),
	write("claimRewards", nil, nil),

	event("Staked", indexed("account", "address"), ABIParam{Name: "amount", Type: "uint256"}),
	event("Unstaked", indexed("account", "address"), ABIParam{Name: "amount", Type: "uint256"}),
	event("RewardsClaimed", indexed("account", "address"), ABIParam{Name: "amount", Type: "uint256"}),
}
