package cmd

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/rpc"
	syncer "github.com/carbonfi/carbonfi/internal/sync"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
)

// hints maps the error taxonomy to what the user can do next. The first
// match wins, so wrapped-specific errors come before their general causes.
var hints = []struct {
	err  error
	hint string
}{
	{wallet.ErrNoProviderFound, "Create a wallet with: carbonfi wallet generate <name>"},
	{wallet.ErrWatchOnly, "Watch-only wallets cannot sign. Import a key with: carbonfi wallet add <name> --key <hex>"},
	{wallet.ErrWalletNotFound, "List wallets with: carbonfi wallet list"},
	{contract.ErrTransactionRejected, "The transaction was declined. Run the command again and approve it."},
	{wallet.ErrUserRejected, "The request was declined. Run the command again and approve it, or pass --yes."},
	{wallet.ErrRequestPending, "A wallet prompt is already open. Answer it first."},
	{wallet.ErrUnsupportedNetwork, "Pick a supported network with --chain. See: carbonfi network list"},
	{contract.ErrUnknownNetwork, "Pick a supported network with --chain. See: carbonfi network list"},
	{contract.ErrContractNotConfigured, "This contract is not on the selected network. Try --chain sepolia."},
	{contract.ErrContractNotDeployed, "The configured address has no code. Update deployments with: carbonfi sync run"},
	{contract.ErrStaleHandle, "The wallet changed account or network mid-operation. Run the command again."},
	{refresh.ErrStaleResult, "The wallet changed account or network mid-read. Run the command again."},
	{wallet.ErrNotConnected, "Connect first with: carbonfi connect"},
	{contract.ErrTransactionTimedOut, "The transaction may still be mined. Check later with: carbonfi tx status <hash>"},
	{contract.ErrTransactionReverted, "The contract rejected the transaction. The reason is shown above."},
	{contract.ErrCallReverted, "The contract rejected the call. The reason is shown above."},
	{rpc.ErrNoHealthyRPC, "No node answered. Add an endpoint with: carbonfi rpc add <chain> <url>"},
	{contract.ErrRPCUnreachable, "No node answered. Add an endpoint with: carbonfi rpc add <chain> <url>"},
	{chain.ErrChainNotFound, "See supported networks with: carbonfi network list"},
	{syncer.ErrNoSource, "Set a manifest URL with: carbonfi sync set-source <url>"},
}

func hintFor(err error) string {
	for _, h := range hints {
		if errors.Is(err, h.err) {
			return h.hint
		}
	}
	return ""
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not an address", s)
	}
	return common.HexToAddress(s), nil
}

// parseID reads a non-negative integer such as a pool, token or listing ID.
func parseID(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%q is not a valid id", s)
	}
	return n, nil
}
