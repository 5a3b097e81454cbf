package contract

import "github.com/carbonfi/carbonfi/internal/chain"

func init() {
	RegisterBuiltin(BuiltinKind{
		Name:        chain.ContractMarketplace,
		Label:       "CarbonFi Marketplace",
		Description: "Fixed-price listings of credit NFTs, settled in CFI.",
		ABI:         marketplaceABI,
	})
}

var marketplaceABI = []ABIEntry{
	view("listingCount", nil, params("", "uint256")),
	view("getListing", params("listingId", "uint256"),
		params("seller", "address", "tokenId", "uint256", "amount", "uint256", "price", "uint256", "active", "bool")),

	write("listItem", params("tokenId", "uint256", "amount", "uint256", "price", "uint256"), params("listingId", "uint256")),
	write("buyItem", params("listingId", "uint256"), nil),
	write("cancelListing", params("listingId", "uint256"), nil),

	event("ItemListed", indexed("listingId", "uint256"), indexed("seller", "address"),
		ABIParam{Name: "tokenId", Type: "uint256"}, ABIParam{Name: "amount", Type: "uint256"}, ABIParam{Name: "price", Type: "uint256"}),
	event("ItemSold", indexed("listingId", "uint256"), indexed("buyer", "address")),
	event("ListingCancelled", indexed("listingId", "uint256")),
}
