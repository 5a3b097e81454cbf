// check-balances reads the CarbonFi snapshot (native, CFI, staking) for a set
// of addresses on every supported testnet in parallel and prints a table.
//
// Run from the module root:
//
//	go run ./scripts/check-balances 0xabc... 0xdef...
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/rpc"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

const readTimeout = 20 * time.Second

type result struct {
	network string
	wallet  common.Address
	snap    *refresh.Snapshot
	err     error
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: check-balances <address>...")
		os.Exit(2)
	}
	var wallets []common.Address
	for _, a := range os.Args[1:] {
		if !common.IsHexAddress(a) {
			fmt.Fprintf(os.Stderr, "%q is not an address\n", a)
			os.Exit(2)
		}
		wallets = append(wallets, common.HexToAddress(a))
	}

	reg, err := chain.NewRegistry()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	pool := rpc.NewPool(reg, rpc.AlgorithmFastest, nil)
	defer pool.Close()
	backends := contract.NodeBackends(pool)
	resolver := contract.NewResolver(reg, backends, nil)
	defer resolver.Close()
	refresher := refresh.New(reg, resolver, backends)

	var (
		mu      sync.Mutex
		results []result
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(8)
	for _, n := range reg.All() {
		if !n.Testnet || n.Name == "localhost" {
			continue
		}
		for _, w := range wallets {
			g.Go(func() error {
				readCtx, cancel := context.WithTimeout(ctx, readTimeout)
				defer cancel()
				snap, err := refresher.Refresh(readCtx, w, n.ChainID)
				mu.Lock()
				results = append(results, result{network: n.Name, wallet: w, snap: snap, err: err})
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	printTable(results)
}

func printTable(results []result) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.network != b.network {
			return a.network < b.network
		}
		return a.wallet.Hex() < b.wallet.Hex()
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tWALLET\tNATIVE\tCFI\tSTAKED\tNOTE")
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t%s\n", r.network, shortAddr(r.wallet), shortErr(r.err))
			continue
		}
		s := r.snap
		var cfi string
		for _, v := range s.Tokens {
			cfi = v.String()
		}
		var degraded []string
		for f := range s.FieldErrors {
			degraded = append(degraded, f)
		}
		sort.Strings(degraded)
		note := ""
		if len(degraded) > 0 {
			note = "degraded: " + strings.Join(degraded, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			r.network, shortAddr(r.wallet), s.Native.String(), s.NativeUnit, cfi, s.Staking.Staked.String(), note)
	}
	w.Flush()
}

func shortAddr(a common.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

func shortErr(err error) string {
	s := err.Error()
	if len(s) > 40 {
		return s[:40] + "…"
	}
	return s
}
