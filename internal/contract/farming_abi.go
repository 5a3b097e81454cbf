package contract

import "github.com/carbonfi/carbonfi/internal/chain"

func init() {
	RegisterBuiltin(BuiltinKind{
		Name:        chain.ContractFarming,
		Label:       "CarbonFi Yield Farm",
		Description: "Pool-based yield farming (MasterChef style).",
		ABI:         farmingABI,
	})
}

var farmingABI = []ABIEntry{
	view("poolLength", nil, params("", "uint256")),
	view("userInfo", params("pid", "uint256", "account", "address"), params("amount", "uint256", "rewardDebt", "uint256")),
	view("pendingReward", params("pid", "uint256", "account", "address"), params("", "uint256")),

	write("deposit", params("pid", "uint256", "amount", "uint256"), nil),
	write("withdraw", params("pid", "uint256", "amount", "uint256"), nil),
	write("harvest", params("pid", "uint256"), nil),

	event("Deposit", indexed("account", "address"), indexed("pid", "uint256"), ABIParam{Name: "amount", Type: "uint256"}),
	event("Withdraw", indexed("account", "address"), indexed("pid", "uint256"), ABIParam{Name: "amount", Type: "uint256"}),
	event("Harvest", indexed("account", "address"), indexed("pid", "uint256"), ABIParam{Name: "amount", Type: "uint256"}),
}
