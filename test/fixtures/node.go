// Package fixtures provides an in-process EVM node for integration tests.
package fixtures

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// Node answers the JSON-RPC methods the CLI reads with: chain ID, head
// block, native balance, bytecode, receipts and eth_call. Contract calls
// are matched by address and selector and answered with ABI-encoded values.
type Node struct {
	*httptest.Server
	ChainID int64

	t     *testing.T
	mu    sync.Mutex
	block uint64
	bal   map[common.Address]*big.Int
	code  map[common.Address][]byte
	calls map[string][]byte
	rcpt  map[common.Hash]*types.Receipt
	hits  map[string]*atomic.Int32
}

// NewNode starts a node serving chainID. It is closed with t.
func NewNode(t *testing.T, chainID int64) *Node {
	t.Helper()
	n := &Node{
		ChainID: chainID,
		t:       t,
		block:   100,
		bal:     map[common.Address]*big.Int{},
		code:    map[common.Address][]byte{},
		calls:   map[string][]byte{},
		rcpt:    map[common.Hash]*types.Receipt{},
		hits:    map[string]*atomic.Int32{},
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Close)
	return n
}

// SetBalance sets the native balance of addr in base units.
func (n *Node) SetBalance(addr common.Address, wei *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bal[addr] = wei
}

// Deploy marks addr as holding bytecode.
func (n *Node) Deploy(addr common.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.code[addr] = []byte{0x60, 0x80, 0x60, 0x40}
}

// OnCall answers calls to method of the builtin contract kind at addr with
// outputs, whatever the arguments.
func (n *Node) OnCall(addr common.Address, kind chain.ContractName, method string, outputs ...any) {
	n.t.Helper()
	a, err := contract.ABIFor(kind)
	require.NoError(n.t, err)
	m, ok := a.Methods[method]
	require.True(n.t, ok, "%s has no method %s", kind, method)
	data, err := m.Outputs.Pack(outputs...)
	require.NoError(n.t, err)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.code[addr] = []byte{0x60, 0x80, 0x60, 0x40}
	n.calls[callKey(addr, m.ID)] = data
}

// Mine records a receipt for hash in the next block.
func (n *Node) Mine(hash common.Hash, success bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.block++
	status := types.ReceiptStatusSuccessful
	if !success {
		status = types.ReceiptStatusFailed
	}
	n.rcpt[hash] = &types.Receipt{
		Type:              types.DynamicFeeTxType,
		Status:            status,
		CumulativeGasUsed: 21000,
		GasUsed:           21000,
		Logs:              []*types.Log{},
		TxHash:            hash,
		BlockHash:         common.BigToHash(new(big.Int).SetUint64(n.block)),
		BlockNumber:       new(big.Int).SetUint64(n.block),
		EffectiveGasPrice: big.NewInt(1),
	}
}

// Hits returns how often method was called.
func (n *Node) Hits(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if c, ok := n.hits[method]; ok {
		return int(c.Load())
	}
	return 0
}

func callKey(addr common.Address, selector []byte) string {
	return strings.ToLower(addr.Hex()) + "/" + hex.EncodeToString(selector)
}

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.count(req.Method)

	res := response{JSONRPC: "2.0", ID: req.ID}
	result, err := n.handle(req)
	if err != nil {
		res.Error = &rpcError{Code: -32601, Message: err.Error()}
	} else {
		res.Result = result
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res) //nolint:errcheck
}

func (n *Node) count(method string) {
	n.mu.Lock()
	c, ok := n.hits[method]
	if !ok {
		c = &atomic.Int32{}
		n.hits[method] = c
	}
	n.mu.Unlock()
	c.Add(1)
}

func (n *Node) handle(req request) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch req.Method {
	case "eth_chainId":
		return hexutil.EncodeBig(big.NewInt(n.ChainID)), nil
	case "eth_blockNumber":
		return hexutil.EncodeUint64(n.block), nil
	case "eth_getBalance":
		addr, err := addressParam(req.Params)
		if err != nil {
			return nil, err
		}
		wei, ok := n.bal[addr]
		if !ok {
			wei = new(big.Int)
		}
		return hexutil.EncodeBig(wei), nil
	case "eth_getCode":
		addr, err := addressParam(req.Params)
		if err != nil {
			return nil, err
		}
		return hexutil.Bytes(n.code[addr]), nil
	case "eth_call":
		return n.call(req.Params)
	case "eth_getTransactionReceipt":
		var hash common.Hash
		if len(req.Params) == 0 {
			return nil, fmt.Errorf("missing hash")
		}
		if err := json.Unmarshal(req.Params[0], &hash); err != nil {
			return nil, err
		}
		if rc, ok := n.rcpt[hash]; ok {
			return rc, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("method %s not supported", req.Method)
}

func (n *Node) call(params []json.RawMessage) (any, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing call object")
	}
	var msg struct {
		To    *common.Address `json:"to"`
		Input hexutil.Bytes   `json:"input"`
		Data  hexutil.Bytes   `json:"data"`
	}
	if err := json.Unmarshal(params[0], &msg); err != nil {
		return nil, err
	}
	input := msg.Input
	if len(input) == 0 {
		input = msg.Data
	}
	if msg.To == nil || len(input) < 4 {
		return hexutil.Bytes{}, nil
	}
	// Unknown calls return empty data, the way a node answers a call to an
	// address without code.
	return hexutil.Bytes(n.calls[callKey(*msg.To, input[:4])]), nil
}

func addressParam(params []json.RawMessage) (common.Address, error) {
	var addr common.Address
	if len(params) == 0 {
		return addr, fmt.Errorf("missing address")
	}
	err := json.Unmarshal(params[0], &addr)
	return addr, err
}
