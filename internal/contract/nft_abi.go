package contract

import "github.com/carbonfi/carbonfi/internal/chain"

// Carbon-credit certificates as an ERC-1155 multi-token.
func init() {
	RegisterBuiltin(BuiltinKind{
		Name:        chain.ContractNFT,
		Label:       "CarbonFi Credits (ERC-1155)",
		Description: "Multi-token carbon-credit certificates, minted against CFI.",
		ABI:         nftABI,
	})
}

var nftABI = []ABIEntry{
	view("balanceOf", params("account", "address", "id", "uint256"), params("", "uint256")),
	view("uri", params("id", "uint256"), params("", "string")),
	view("isApprovedForAll", params("account", "address", "operator", "address"), params("", "bool")),
	view("mintPrice", params("id", "uint256"), params("", "uint256")),

	write("mint", params("id", "uint256", "amount", "uint256"), nil),
	write("setApprovalForAll", params("operator", "address", "approved", "bool"), nil),

	event("TransferSingle",
		indexed("operator", "address"), indexed("from", "address"), indexed("to", "address"),
		ABIParam{Name: "id", Type: "uint256"}, ABIParam{Name: "value", Type: "uint256"}),
}
