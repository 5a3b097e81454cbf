package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/config"
	"github.com/carbonfi/carbonfi/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// NodeSource hands out a node client per chain. *rpc.Pool satisfies it.
type NodeSource interface {
	Client(ctx context.Context, chainID int64) (*chain.EVMClient, error)
}

// ApprovalRequest describes what the user is asked to approve.
type ApprovalRequest struct {
	Method  string
	ChainID int64
	From    common.Address
	Summary string
}

// Approver stands in for the wallet's confirmation prompt.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// AutoApprove accepts every request.
var AutoApprove Approver = ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) { return true, nil })

// TxRequest is the eth_sendTransaction parameter object.
type TxRequest struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

// KeystoreProvider is a Provider backed by a local signing wallet. It is the
// CLI's stand-in for a browser extension: account access and transactions go
// through an Approver, reads are forwarded to a node.
type KeystoreProvider struct {
	nodes    NodeSource
	networks NetworkLookup
	approver Approver
	log      *zap.Logger

	mu        sync.Mutex
	signer    *Signer
	chainID   int64
	granted   bool
	prompting bool
	known     map[int64]bool
	listeners map[string]map[ListenerID]Listener
	nextID    ListenerID
}

// NewKeystoreProvider starts on chainID. A nil signer behaves like a wallet
// with no accounts.
func NewKeystoreProvider(signer *Signer, chainID int64, nodes NodeSource, networks NetworkLookup, approver Approver, log *zap.Logger) *KeystoreProvider {
	if approver == nil {
		approver = AutoApprove
	}
	return &KeystoreProvider{
		nodes:     nodes,
		networks:  networks,
		approver:  approver,
		log:       logger.OrNop(log).Named("keystore-provider"),
		signer:    signer,
		chainID:   chainID,
		known:     map[int64]bool{chainID: true},
		listeners: make(map[string]map[ListenerID]Listener),
	}
}

func (p *KeystoreProvider) Info() ProviderInfo {
	return ProviderInfo{Name: "carbonfi keystore"}
}

func (p *KeystoreProvider) On(event string, fn Listener) ListenerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	if p.listeners[event] == nil {
		p.listeners[event] = make(map[ListenerID]Listener)
	}
	p.listeners[event][p.nextID] = fn
	return p.nextID
}

func (p *KeystoreProvider) RemoveListener(event string, id ListenerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners[event], id)
}

// Lock revokes account access, as when the user locks the extension.
func (p *KeystoreProvider) Lock() {
	p.mu.Lock()
	was := p.granted
	p.granted = false
	p.mu.Unlock()
	if was {
		p.emit(EventAccountsChanged, []string{})
	}
}

// Grant restores account access approved in an earlier process, the way an
// extension remembers a connected site. eth_accounts answers without a prompt
// afterwards.
func (p *KeystoreProvider) Grant() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = p.signer != nil
}

// UseWallet swaps the active account.
func (p *KeystoreProvider) UseWallet(s *Signer) {
	p.mu.Lock()
	p.signer = s
	granted := p.granted
	p.mu.Unlock()
	if granted {
		p.emit(EventAccountsChanged, []string{s.Address().Hex()})
	}
}

func (p *KeystoreProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts":
		return p.requestAccounts(ctx)
	case "eth_accounts":
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.granted || p.signer == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal([]string{p.signer.Address().Hex()})
	case "eth_chainId":
		p.mu.Lock()
		defer p.mu.Unlock()
		return json.Marshal(HexChainID(p.chainID))
	case "wallet_switchEthereumChain":
		return p.switchChain(params)
	case "wallet_addEthereumChain":
		return p.addChain(params)
	case "eth_sendTransaction":
		return p.sendTransaction(ctx, params)
	case "personal_sign":
		return p.personalSign(ctx, params)
	default:
		client, err := p.client(ctx)
		if err != nil {
			return nil, err
		}
		return client.Raw(ctx, method, params...)
	}
}

func (p *KeystoreProvider) requestAccounts(ctx context.Context) (json.RawMessage, error) {
	p.mu.Lock()
	if p.signer == nil {
		p.mu.Unlock()
		return nil, providerErr(CodeUnauthorized, "no wallet loaded")
	}
	if p.granted {
		addr := p.signer.Address()
		p.mu.Unlock()
		return json.Marshal([]string{addr.Hex()})
	}
	if p.prompting {
		p.mu.Unlock()
		return nil, providerErr(CodeRequestPending, "request of type eth_requestAccounts already pending")
	}
	p.prompting = true
	req := ApprovalRequest{Method: "eth_requestAccounts", ChainID: p.chainID, From: p.signer.Address(), Summary: "connect " + p.signer.Address().Hex()}
	p.mu.Unlock()

	ok, err := p.approver.Approve(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompting = false
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, providerErr(CodeUserRejected, "user rejected the request")
	}
	p.granted = true
	return json.Marshal([]string{p.signer.Address().Hex()})
}

type chainParam struct {
	ChainID string   `json:"chainId"`
	RPCURLs []string `json:"rpcUrls,omitempty"`
}

func (p *KeystoreProvider) switchChain(params []any) (json.RawMessage, error) {
	var cp chainParam
	if err := decodeParam(params, 0, &cp); err != nil {
		return nil, err
	}
	id, err := ParseChainID(cp.ChainID)
	if err != nil {
		return nil, providerErr(CodeInvalidParams, "invalid chainId %q", cp.ChainID)
	}

	p.mu.Lock()
	if !p.known[id] {
		p.mu.Unlock()
		return nil, providerErr(CodeUnrecognizedChain, "unrecognized chain ID %s", cp.ChainID)
	}
	changed := p.chainID != id
	p.chainID = id
	p.mu.Unlock()

	if changed {
		p.log.Debug("switched chain", zap.Int64("chain_id", id))
		p.emit(EventChainChanged, HexChainID(id))
	}
	return json.RawMessage("null"), nil
}

func (p *KeystoreProvider) addChain(params []any) (json.RawMessage, error) {
	var cp chainParam
	if err := decodeParam(params, 0, &cp); err != nil {
		return nil, err
	}
	id, err := ParseChainID(cp.ChainID)
	if err != nil {
		return nil, providerErr(CodeInvalidParams, "invalid chainId %q", cp.ChainID)
	}
	if !p.networks.Supported(id) {
		return nil, providerErr(CodeInvalidParams, "no RPC route for chain %s", p.networks.DisplayName(id))
	}
	p.mu.Lock()
	p.known[id] = true
	p.mu.Unlock()
	return json.RawMessage("null"), nil
}

func (p *KeystoreProvider) sendTransaction(ctx context.Context, params []any) (json.RawMessage, error) {
	var req TxRequest
	if err := decodeParam(params, 0, &req); err != nil {
		return nil, err
	}
	signer, chainID, err := p.activeSigner(req.From)
	if err != nil {
		return nil, err
	}
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	value := new(big.Int)
	if req.Value != nil {
		value = req.Value.ToInt()
	}
	nonce, err := client.PendingNonceAt(ctx, req.From)
	if err != nil {
		return nil, providerErr(CodeInternal, "nonce: %v", err)
	}
	gas, err := client.GetGasInfo(ctx)
	if err != nil {
		return nil, providerErr(CodeInternal, "gas price: %v", err)
	}

	gasLimit := config.GasLimitContractCall
	if len(req.Data) == 0 {
		gasLimit = config.GasLimitNativeTransfer
	}
	if req.Gas != nil {
		gasLimit = uint64(*req.Gas)
	} else {
		est, err := client.EstimateGas(ctx, ethereum.CallMsg{From: req.From, To: req.To, Value: value, Data: req.Data})
		switch {
		case err == nil:
			gasLimit = est * 12 / 10
		case isExecutionError(err):
			return nil, providerErr(CodeInternal, "execution reverted: %v", err)
		default:
			p.log.Debug("gas estimate failed, using default limit", zap.Error(err))
		}
	}

	ok, err := p.approver.Approve(ctx, ApprovalRequest{
		Method:  "eth_sendTransaction",
		ChainID: chainID,
		From:    req.From,
		Summary: txSummary(req, value, gasLimit, gas),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, providerErr(CodeUserRejected, "user denied transaction signature")
	}

	var tx *types.Transaction
	if gas.BaseFee != nil {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   big.NewInt(chainID),
			Nonce:     nonce,
			GasTipCap: gas.TipCap,
			GasFeeCap: gas.FeeCap,
			Gas:       gasLimit,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
		})
	} else {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gas.GasPrice,
			Gas:      gasLimit,
			To:       req.To,
			Value:    value,
			Data:     req.Data,
		})
	}
	signed, err := signer.SignTx(tx, big.NewInt(chainID))
	if err != nil {
		return nil, providerErr(CodeInternal, "%v", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	p.log.Info("transaction sent", zap.String("hash", signed.Hash().Hex()), zap.Int64("chain_id", chainID))
	return json.Marshal(signed.Hash().Hex())
}

func (p *KeystoreProvider) personalSign(ctx context.Context, params []any) (json.RawMessage, error) {
	var msgHex string
	var from common.Address
	if err := decodeParam(params, 0, &msgHex); err != nil {
		return nil, err
	}
	if err := decodeParam(params, 1, &from); err != nil {
		return nil, err
	}
	msg, err := hexutil.Decode(msgHex)
	if err != nil {
		msg = []byte(msgHex)
	}
	signer, chainID, err := p.activeSigner(from)
	if err != nil {
		return nil, err
	}
	ok, err := p.approver.Approve(ctx, ApprovalRequest{Method: "personal_sign", ChainID: chainID, From: from, Summary: fmt.Sprintf("sign %d byte message", len(msg))})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, providerErr(CodeUserRejected, "user denied message signature")
	}
	sig, err := signer.SignMessage(msg)
	if err != nil {
		return nil, providerErr(CodeInternal, "%v", err)
	}
	return json.Marshal(hexutil.Encode(sig))
}

func (p *KeystoreProvider) activeSigner(from common.Address) (*Signer, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted || p.signer == nil {
		return nil, 0, providerErr(CodeUnauthorized, "account access not granted")
	}
	if p.signer.Address() != from {
		return nil, 0, providerErr(CodeUnauthorized, "unknown account %s", from.Hex())
	}
	return p.signer, p.chainID, nil
}

func (p *KeystoreProvider) client(ctx context.Context) (*chain.EVMClient, error) {
	p.mu.Lock()
	id := p.chainID
	p.mu.Unlock()
	return p.nodes.Client(ctx, id)
}

func (p *KeystoreProvider) emit(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	p.mu.Lock()
	ids := make([]ListenerID, 0, len(p.listeners[event]))
	for id := range p.listeners[event] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, p.listeners[event][id])
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(raw)
	}
}

func decodeParam(params []any, i int, v any) error {
	if i >= len(params) {
		return providerErr(CodeInvalidParams, "missing parameter %d", i)
	}
	raw, err := json.Marshal(params[i])
	if err != nil {
		return providerErr(CodeInvalidParams, "parameter %d: %v", i, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return providerErr(CodeInvalidParams, "parameter %d: %v", i, err)
	}
	return nil
}

// isExecutionError reports a node-side revert during estimation, as opposed
// to a transport failure.
func isExecutionError(err error) bool {
	var de interface{ ErrorData() interface{} }
	return errors.As(err, &de)
}

func txSummary(req TxRequest, value *big.Int, gasLimit uint64, gas *chain.GasInfo) string {
	to := "contract creation"
	if req.To != nil {
		to = req.To.Hex()
	}
	gwei, eip1559 := gas.GasPriceDisplay()
	fee := "gas price"
	if eip1559 {
		fee = "base fee"
	}
	return fmt.Sprintf("to %s, value %s wei, %d bytes data, gas limit %d, %s %.2f gwei", to, value, len(req.Data), gasLimit, fee, gwei)
}
