package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the node surface handles read through. *chain.EVMClient
// satisfies it.
type Backend interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// BackendSource returns a Backend for a chain.
type BackendSource interface {
	Backend(ctx context.Context, chainID int64) (Backend, error)
}

// BackendSourceFunc adapts a function to BackendSource.
type BackendSourceFunc func(ctx context.Context, chainID int64) (Backend, error)

func (f BackendSourceFunc) Backend(ctx context.Context, chainID int64) (Backend, error) {
	return f(ctx, chainID)
}

// NodeBackends reads through the RPC pool.
func NodeBackends(nodes wallet.NodeSource) BackendSource {
	return BackendSourceFunc(func(ctx context.Context, chainID int64) (Backend, error) {
		c, err := nodes.Client(ctx, chainID)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// LiveState is the connector surface the resolver and handles validate
// against. *wallet.Connector satisfies it.
type LiveState interface {
	Current() (wallet.ConnectionState, *wallet.Session)
	Subscribe(fn func(wallet.ConnectionState)) (unsubscribe func())
}

// Binding says whether a handle can write.
type Binding int

const (
	ReadOnly Binding = iota
	Signer
)

func (b Binding) String() string {
	if b == Signer {
		return "signer"
	}
	return "read-only"
}

// Handle is a contract bound to one address on one chain. Handles resolved
// against the active session carry its epoch and fail with ErrStaleHandle
// once the account or chain moves on.
type Handle struct {
	Name    chain.ContractName
	ChainID int64
	Address common.Address
	BoundTo Binding
	// From is the session account, zero for handles resolved while
	// disconnected.
	From  common.Address
	Epoch uint64
	ABI   *abi.ABI

	backend  Backend
	provider wallet.Provider
	live     LiveState
	pinned   bool
	verified bool
}

// Backend returns the node backend the handle reads through.
func (h *Handle) Backend() Backend { return h.backend }

// Check fails with ErrStaleHandle if the session the handle was resolved
// for is gone.
func (h *Handle) Check() error {
	if !h.pinned {
		return nil
	}
	st, sess := h.live.Current()
	if sess == nil || sess.Epoch != h.Epoch || sess.ChainID != h.ChainID {
		return fmt.Errorf("%w (%s on chain %d)", ErrStaleHandle, h.Name, h.ChainID)
	}
	if h.BoundTo == Signer && st.Status != wallet.StatusConnected {
		return fmt.Errorf("%w (%s on chain %d)", ErrStaleHandle, h.Name, h.ChainID)
	}
	return nil
}

// Call runs a view function and returns the unpacked outputs. The session is
// re-checked after the node answers; a result that crossed an account or
// chain change is discarded.
func (h *Handle) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	if err := h.Check(); err != nil {
		return nil, err
	}
	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s.%s: %w", h.Name, method, err)
	}

	out, err := h.backend.CallContract(ctx, ethereum.CallMsg{From: h.From, To: &h.Address, Data: data}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if reason, ok := revertReason(err); ok {
			return nil, &RevertError{Reason: reason, Err: ErrCallReverted}
		}
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrRPCUnreachable, h.Name, method, err)
	}
	if err := h.Check(); err != nil {
		return nil, err
	}

	m := h.ABI.Methods[method]
	if len(out) == 0 && len(m.Outputs) > 0 {
		return nil, fmt.Errorf("%w: %s at %s", ErrContractNotDeployed, h.Name, h.Address.Hex())
	}
	vals, err := h.ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("decoding %s.%s: %w", h.Name, method, err)
	}
	return vals, nil
}

// TxOpts are optional transaction fields. Zero values let the wallet decide.
type TxOpts struct {
	Value    *big.Int
	GasLimit uint64
}

// Transact sends a state-changing call through the session's wallet. It is
// never retried: a failure is returned for the user to decide.
func (h *Handle) Transact(ctx context.Context, method string, opts TxOpts, args ...any) (*PendingTx, error) {
	if h.BoundTo != Signer {
		return nil, fmt.Errorf("%w: %s.%s", ErrReadOnlyHandle, h.Name, method)
	}
	if err := h.Check(); err != nil {
		return nil, err
	}
	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s.%s: %w", h.Name, method, err)
	}

	to := h.Address
	req := wallet.TxRequest{From: h.From, To: &to, Data: data}
	if opts.Value != nil {
		req.Value = (*hexutil.Big)(opts.Value)
	}
	if opts.GasLimit > 0 {
		g := hexutil.Uint64(opts.GasLimit)
		req.Gas = &g
	}

	raw, err := h.provider.Request(ctx, "eth_sendTransaction", req)
	if err != nil {
		return nil, h.sendError(method, err)
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return nil, fmt.Errorf("decoding transaction hash: %w", err)
	}
	return &PendingTx{
		Hash:     hash,
		ChainID:  h.ChainID,
		From:     h.From,
		To:       &to,
		Data:     data,
		Value:    opts.Value,
		Contract: h.Name,
		Method:   method,
	}, nil
}

// Wait blocks until tx is mined or opts.Timeout passes.
func (h *Handle) Wait(ctx context.Context, tx *PendingTx, opts WaitOptions) (*TxResult, error) {
	return WaitMined(ctx, h.backend, tx, opts)
}

func (h *Handle) sendError(method string, err error) error {
	if errors.Is(err, wallet.ErrUserRejected) {
		return fmt.Errorf("%w: %s.%s", ErrTransactionRejected, h.Name, method)
	}
	if reason, ok := revertReason(err); ok {
		return &RevertError{Reason: reason, Err: ErrTransactionReverted}
	}
	return fmt.Errorf("sending %s.%s: %w", h.Name, method, err)
}

// callOne runs a single-output view and converts it to T.
func callOne[T any](ctx context.Context, h *Handle, method string, args ...any) (T, error) {
	var zero T
	vals, err := h.Call(ctx, method, args...)
	if err != nil {
		return zero, err
	}
	if len(vals) != 1 {
		return zero, fmt.Errorf("%s.%s returned %d values", h.Name, method, len(vals))
	}
	v, ok := vals[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s.%s returned %T", h.Name, method, vals[0])
	}
	return v, nil
}
