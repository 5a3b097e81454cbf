package contract

import "github.com/carbonfi/carbonfi/internal/chain"

// Retirement burns CFI permanently as an offset claim. Verifiers live in a
// fixed-size public array; verifierCount bounds it.
func init() {
	RegisterBuiltin(BuiltinKind{
		Name:        chain.ContractRetirement,
		Label:       "CarbonFi Retirement",
		Description: "Permanent retirement (burn) of carbon credits with an on-chain reason.",
		ABI:         retirementABI,
	})
}

var retirementABI = []ABIEntry{
	view("totalRetired", nil, params("", "uint256")),
	view("retiredBy", params("account", "address"), params("", "uint256")),
	view("verifierCount", nil, params("", "uint256")),
	view("verifiers", params("index", "uint256"), params("", "address")),
	view("isVerifier", params("account", "address"), params("", "bool")),

	write("retire", params("amount", "uint256", "reason", "string"), nil),

	event("CreditsRetired", indexed("account", "address"), ABIParam{Name: "amount", Type: "uint256"}, ABIParam{Name: "reason", Type: "string"}),
}
