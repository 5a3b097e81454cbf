package refresh_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

const sepolia = int64(11155111)

var acct = common.HexToAddress("0x1111111111111111111111111111111111111111")

// node is a fake chain node that answers by selector and counts calls.
type node struct {
	mu       sync.Mutex
	balance  func() (*big.Int, error)
	answers  map[string]func() ([]byte, error)
	calls    map[string]int
	balCalls int
}

func newNode() *node {
	return &node{
		balance: func() (*big.Int, error) { return big.NewInt(0), nil },
		answers: map[string]func() ([]byte, error){},
		calls:   map[string]int{},
	}
}

func (n *node) selector(t *testing.T, name chain.ContractName, method string) string {
	t.Helper()
	a, err := contract.ABIFor(name)
	require.NoError(t, err)
	m, ok := a.Methods[method]
	require.True(t, ok, method)
	return string(m.ID)
}

func (n *node) returns(t *testing.T, name chain.ContractName, method string, outputs ...any) {
	t.Helper()
	a, err := contract.ABIFor(name)
	require.NoError(t, err)
	out, err := a.Methods[method].Outputs.Pack(outputs...)
	require.NoError(t, err)
	n.answer(t, name, method, func() ([]byte, error) { return out, nil })
}

func (n *node) answer(t *testing.T, name chain.ContractName, method string, fn func() ([]byte, error)) {
	sel := n.selector(t, name, method)
	n.mu.Lock()
	n.answers[sel] = fn
	n.mu.Unlock()
}

func (n *node) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (n *node) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	n.mu.Lock()
	sel := string(msg.Data[:4])
	n.calls[sel]++
	fn := n.answers[sel]
	n.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("no answer for %x", msg.Data[:4])
	}
	return fn()
}

func (n *node) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	n.mu.Lock()
	n.balCalls++
	fn := n.balance
	n.mu.Unlock()
	return fn()
}

func (n *node) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func (n *node) balanceCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.balCalls
}

func (n *node) source() contract.BackendSource {
	return contract.BackendSourceFunc(func(context.Context, int64) (contract.Backend, error) { return n, nil })
}

// healthy answers every read a Sepolia refresh makes.
func (n *node) healthy(t *testing.T) {
	t.Helper()
	n.mu.Lock()
	n.balance = func() (*big.Int, error) { return big.NewInt(2e18), nil }
	n.mu.Unlock()
	n.returns(t, chain.ContractToken, "decimals", uint8(18))
	n.returns(t, chain.ContractToken, "balanceOf", big.NewInt(5e18))
	n.returns(t, chain.ContractFaucet, "quotaOf", tokens(100), big.NewInt(0), tokens(100), false)
	n.returns(t, chain.ContractStaking, "stakedBalance", big.NewInt(3e18))
	n.returns(t, chain.ContractStaking, "pendingRewards", big.NewInt(1e17))
}

// fakeLive is a settable connector state.
type fakeLive struct {
	mu   sync.Mutex
	st   wallet.ConnectionState
	subs map[int]func(wallet.ConnectionState)
	next int
}

func newFakeLive(st wallet.ConnectionState) *fakeLive {
	return &fakeLive{st: st, subs: map[int]func(wallet.ConnectionState){}}
}

func (l *fakeLive) Current() (wallet.ConnectionState, *wallet.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st, nil
}

func (l *fakeLive) Subscribe(fn func(wallet.ConnectionState)) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

func (l *fakeLive) set(st wallet.ConnectionState) {
	l.mu.Lock()
	l.st = st
	fns := make([]func(wallet.ConnectionState), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func connected(account common.Address, chainID int64) wallet.ConnectionState {
	return wallet.ConnectionState{Status: wallet.StatusConnected, Account: account, ChainID: chainID}
}

func newRefresher(t *testing.T, n *node, opts ...refresh.Option) *refresh.Refresher {
	t.Helper()
	reg, err := chain.NewRegistry()
	require.NoError(t, err)
	resolver := contract.NewResolver(reg, n.source(), nil)
	opts = append([]refresh.Option{refresh.WithRetry(0, time.Millisecond, time.Millisecond)}, opts...)
	return refresh.New(reg, resolver, n.source(), opts...)
}

// tokens is n whole 18-decimal tokens.
func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}
