package contract

import "github.com/carbonfi/carbonfi/internal/chain"

// The faucet dispenses a bounded daily quota of CFI per address. quotaOf
// returns the whole quota in one read so the four fields always agree.
func init() {
	RegisterBuiltin(BuiltinKind{
		Name:        chain.ContractFaucet,
		Label:       "CarbonFi Faucet",
		Description: "Daily-limited CFI faucet for test networks.",
		ABI:         faucetABI,
	})
}

var faucetABI = []ABIEntry{
	view("dailyLimit", nil, params("", "uint256")),
	view("quotaOf", params("account", "address"),
		params("dailyLimit", "uint256", "claimedToday", "uint256", "remaining", "uint256", "hasClaimedToday", "bool")),
	view("token", nil, params("", "address")),

	write("claimTokens", params("amount", "uint256"), nil),

	event("TokensClaimed", indexed("account", "address"), ABIParam{Name: "amount", Type: "uint256"}),
}
