package contract

import "github.com/carbonfi/carbonfi/internal/chain"

// The CFI token: ERC-20 plus burn, which retirement relies on.
//
// Function selectors:
//
//	balanceOf(address)  → 0x70a08231
//	allowance(a,a)      → 0xdd62ed3e
//	transfer(a,u256)    → 0xa9059cbb
//	approve(a,u256)     → 0x095ea7b3
//	burn(u256)          → 0x42966c68
func init() {
	RegisterBuiltin(BuiltinKind{
		Name:        chain.ContractToken,
		Label:       "CarbonFi Token (ERC-20)",
		Description: "CFI, the platform's fungible token. Spent on staking, farming, the marketplace and retirement.",
		ABI:         tokenABI,
	})
}

var tokenABI = []ABIEntry{
	view("name", nil, params("", "string")),
	view("symbol", nil, params("", "string")),
	view("decimals", nil, params("", "uint8")),
	view("totalSupply", nil, params("", "uint256")),
	view("balanceOf", params("account", "address"), params("", "uint256")),
	view("allowance", params("owner", "address", "spender", "address"), params("", "uint256")),

	write("transfer", params("to", "address", "value", "uint256"), params("", "bool")),
	write("approve", params("spender", "address", "value", "uint256"), params("", "bool")),
	write("transferFrom", params("from", "address", "to", "address", "value", "uint256"), params("", "bool")),
	write("burn", params("value", "uint256"), nil),

	event("Transfer", indexed("from", "address"), indexed("to", "address"), ABIParam{Name: "value", Type: "uint256"}),
	event("Approval", indexed("owner", "address"), indexed("spender", "address"), ABIParam{Name: "value", Type: "uint256"}),
}
