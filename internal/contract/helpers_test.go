package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

const (
	sepolia = int64(11155111)
	amoy    = int64(80002)
	acct1   = "0x1111111111111111111111111111111111111111"

	sepoliaFaucet = "0x0c77a59cdbc9511b6f05c939df243dd9aac0747e"
	sepoliaToken  = "0xb69aad04b75bbc22e9a0ca8bce6a9fedd035826e"
)

type responder func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)

// fakeBackend answers contract calls by selector and counts them.
type fakeBackend struct {
	mu         sync.Mutex
	code       map[common.Address][]byte
	responders map[string]responder
	receipts   func(n int) (*types.Receipt, error)
	calls      int
	receiptN   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{code: map[common.Address][]byte{}, responders: map[string]responder{}}
}

// on answers method of contract name with fn.
func (b *fakeBackend) on(t *testing.T, name chain.ContractName, method string, fn responder) {
	t.Helper()
	a, err := contract.ABIFor(name)
	require.NoError(t, err)
	m, ok := a.Methods[method]
	require.True(t, ok, "no method %s on %s", method, name)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responders[string(m.ID)] = fn
}

// returns answers method with the packed outputs.
func (b *fakeBackend) returns(t *testing.T, name chain.ContractName, method string, outputs ...any) {
	t.Helper()
	a, err := contract.ABIFor(name)
	require.NoError(t, err)
	out, err := a.Methods[method].Outputs.Pack(outputs...)
	require.NoError(t, err)
	b.on(t, name, method, func(ethereum.CallMsg, *big.Int) ([]byte, error) { return out, nil })
}

func (b *fakeBackend) CodeAt(_ context.Context, addr common.Address, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.code[addr], nil
}

func (b *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	b.mu.Lock()
	b.calls++
	var fn responder
	if len(msg.Data) >= 4 {
		fn = b.responders[string(msg.Data[:4])]
	}
	b.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("no responder for calldata %x", msg.Data)
	}
	return fn(msg, block)
}

func (b *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (b *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	b.receiptN++
	n := b.receiptN
	fn := b.receipts
	b.mu.Unlock()
	if fn == nil {
		return nil, ethereum.NotFound
	}
	return fn(n)
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// countingSource serves one backend for every chain and counts dials.
type countingSource struct {
	backend contract.Backend
	mu      sync.Mutex
	dials   int
}

func (s *countingSource) Backend(context.Context, int64) (contract.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	return s.backend, nil
}

// revertErr mimics the node's JSON-RPC error for a reverted call.
type revertErr struct{ data string }

func (e revertErr) Error() string          { return "execution reverted" }
func (e revertErr) ErrorCode() int         { return 3 }
func (e revertErr) ErrorData() interface{} { return e.data }

// stubWallet is a minimal injected wallet.
type stubWallet struct {
	mu        sync.Mutex
	account   string
	chainID   int64
	sent      []wallet.TxRequest
	sendErr   error
	listeners map[string]map[wallet.ListenerID]wallet.Listener
	next      wallet.ListenerID
}

func newStubWallet(account string, chainID int64) *stubWallet {
	return &stubWallet{account: account, chainID: chainID, listeners: map[string]map[wallet.ListenerID]wallet.Listener{}}
}

func (w *stubWallet) Info() wallet.ProviderInfo { return wallet.ProviderInfo{IsMetaMask: true} }

func (w *stubWallet) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch method {
	case "eth_requestAccounts", "eth_accounts":
		return json.Marshal([]string{w.account})
	case "eth_chainId":
		return json.Marshal(wallet.HexChainID(w.chainID))
	case "eth_sendTransaction":
		if w.sendErr != nil {
			return nil, w.sendErr
		}
		req := params[0].(wallet.TxRequest)
		w.sent = append(w.sent, req)
		return json.Marshal(common.BytesToHash(bytes.Repeat([]byte{byte(len(w.sent))}, 32)))
	}
	return nil, &wallet.ProviderError{Code: wallet.CodeUnsupportedMethod, Message: method}
}

func (w *stubWallet) On(event string, fn wallet.Listener) wallet.ListenerID {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	if w.listeners[event] == nil {
		w.listeners[event] = map[wallet.ListenerID]wallet.Listener{}
	}
	w.listeners[event][w.next] = fn
	return w.next
}

func (w *stubWallet) RemoveListener(event string, id wallet.ListenerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.listeners[event], id)
}

func (w *stubWallet) emit(event string, payload any) {
	raw, _ := json.Marshal(payload)
	w.mu.Lock()
	var fns []wallet.Listener
	for _, fn := range w.listeners[event] {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(raw)
	}
}

func (w *stubWallet) switchChain(id int64) {
	w.mu.Lock()
	w.chainID = id
	w.mu.Unlock()
	w.emit(wallet.EventChainChanged, wallet.HexChainID(id))
}

func (w *stubWallet) sentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}

func testRegistry(t *testing.T, opts ...chain.Option) *chain.Registry {
	t.Helper()
	reg, err := chain.NewRegistry(opts...)
	require.NoError(t, err)
	return reg
}

// fixture wires a registry, a connector over a stub wallet and a resolver
// over a fake backend.
type fixture struct {
	reg       *chain.Registry
	wallet    *stubWallet
	connector *wallet.Connector
	backend   *fakeBackend
	source    *countingSource
	resolver  *contract.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reg:     testRegistry(t),
		wallet:  newStubWallet(acct1, sepolia),
		backend: newFakeBackend(),
	}
	f.connector = wallet.NewConnector(wallet.StaticEnvironment{f.wallet}, f.reg)
	f.source = &countingSource{backend: f.backend}
	f.resolver = contract.NewResolver(f.reg, f.source, f.connector)
	t.Cleanup(f.resolver.Close)
	return f
}

func (f *fixture) connect(t *testing.T) wallet.ConnectionState {
	t.Helper()
	st, err := f.connector.Connect(context.Background())
	require.NoError(t, err)
	return st
}
