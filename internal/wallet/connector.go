package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/logger"
	"github.com/carbonfi/carbonfi/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// NetworkLookup is the slice of the network registry the connector needs.
type NetworkLookup interface {
	Lookup(chainID int64) (*chain.Network, error)
	Supported(chainID int64) bool
	DisplayName(chainID int64) string
}

// Preferences persists the auto-connect flag.
type Preferences interface {
	AutoConnect() bool
	SetAutoConnect(on bool) error
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithPreferences persists auto-connect through p.
func WithPreferences(p Preferences) ConnectorOption {
	return func(c *Connector) { c.prefs = p }
}

// WithPreferredKind makes Detect favour providers of kind k.
func WithPreferredKind(k Kind) ConnectorOption {
	return func(c *Connector) { c.preferred = k }
}

// WithAdmin sets the address shown as admin. Display only.
func WithAdmin(addr common.Address) ConnectorOption {
	return func(c *Connector) { c.admin = addr }
}

// WithLogger sets the connector's logger.
func WithLogger(l *zap.Logger) ConnectorOption {
	return func(c *Connector) { c.log = logger.OrNop(l).Named("connector") }
}

// WithMetrics records state transitions.
func WithMetrics(m *metrics.Collector) ConnectorOption {
	return func(c *Connector) { c.metrics = m }
}

// Connector owns the connection state and the current session. Provider
// calls are never made while holding the state lock; every result that
// crossed a provider call is re-checked against the live attempt before it
// is written back.
type Connector struct {
	env       Environment
	networks  NetworkLookup
	prefs     Preferences
	preferred Kind
	admin     common.Address
	log       *zap.Logger
	metrics   *metrics.Collector

	mu         sync.Mutex
	state      ConnectionState
	session    *Session
	connecting bool
	attempt    uint64
	attached   *attachment

	subMu   sync.Mutex
	subs    map[int]func(ConnectionState)
	nextSub int

	notifyMu sync.Mutex
}

type attachment struct {
	provider Provider
	accounts ListenerID
	chain    ListenerID
}

func (a *attachment) detach() {
	if a == nil {
		return
	}
	a.provider.RemoveListener(EventAccountsChanged, a.accounts)
	a.provider.RemoveListener(EventChainChanged, a.chain)
}

// NewConnector creates a connector in the Disconnected state.
func NewConnector(env Environment, networks NetworkLookup, opts ...ConnectorOption) *Connector {
	c := &Connector{
		env:      env,
		networks: networks,
		log:      zap.NewNop(),
		subs:     make(map[int]func(ConnectionState)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the connection state.
func (c *Connector) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the current session, or nil when no account is attached.
func (c *Connector) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Current returns state and session read under one lock.
func (c *Connector) Current() (ConnectionState, *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.session
}

// Subscribe registers fn for every state change and returns a function that
// unregisters it. fn receives the latest state and must not call Connect,
// Disconnect or the event handlers synchronously.
func (c *Connector) Subscribe(fn func(ConnectionState)) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// Connect asks the wallet for account access. Overlapping calls return
// ErrRequestPending without a second provider request. An unsupported chain
// leaves the connector in WrongNetwork and returns ErrUnsupportedNetwork.
func (c *Connector) Connect(ctx context.Context) (ConnectionState, error) {
	return c.connect(ctx, "eth_requestAccounts")
}

// AutoConnect reconnects silently when the last session asked for it. It
// never prompts: a locked wallet simply leaves the connector Disconnected.
func (c *Connector) AutoConnect(ctx context.Context) (ConnectionState, error) {
	if c.prefs == nil || !c.prefs.AutoConnect() {
		return c.State(), nil
	}
	return c.connect(ctx, "eth_accounts")
}

func (c *Connector) connect(ctx context.Context, method string) (ConnectionState, error) {
	c.mu.Lock()
	if c.connecting {
		st := c.state
		c.mu.Unlock()
		return st, ErrRequestPending
	}
	if c.state.Status == StatusConnected {
		st := c.state
		c.mu.Unlock()
		return st, nil
	}
	c.connecting = true
	c.attempt++
	attempt := c.attempt
	c.state = ConnectionState{Status: StatusConnecting, Epoch: c.state.Epoch}
	c.mu.Unlock()
	c.notify()

	p, kind, err := Detect(c.env, c.preferred)
	if err != nil {
		return c.fail(attempt, nil, err)
	}
	att := c.attach(p)

	accounts, err := requestAccounts(ctx, p, method)
	if err != nil {
		return c.fail(attempt, att, connectError(err))
	}
	if len(accounts) == 0 {
		if method == "eth_accounts" {
			return c.abandon(attempt, att)
		}
		return c.fail(attempt, att, fmt.Errorf("%w: wallet returned no accounts", ErrUserRejected))
	}
	chainID, err := requestChainID(ctx, p)
	if err != nil {
		return c.fail(attempt, att, err)
	}

	c.mu.Lock()
	if c.attempt != attempt {
		st := c.state
		c.mu.Unlock()
		att.detach()
		return st, ErrConnectAborted
	}
	c.connecting = false
	old := c.attached
	c.attached = att
	st := c.establishLocked(p, kind, accounts[0], chainID)
	c.mu.Unlock()

	old.detach()

	if c.prefs != nil {
		if err := c.prefs.SetAutoConnect(true); err != nil {
			c.log.Warn("persisting auto-connect", zap.Error(err))
		}
	}
	c.log.Info("wallet connected",
		zap.String("account", st.Account.Hex()),
		zap.Int64("chain_id", st.ChainID),
		zap.String("kind", string(kind)),
		zap.String("status", st.Status.String()))
	c.notify()

	if st.Status == StatusWrongNetwork {
		return st, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, c.networks.DisplayName(chainID))
	}
	return st, nil
}

func (c *Connector) fail(attempt uint64, att *attachment, cause error) (ConnectionState, error) {
	c.mu.Lock()
	if c.attempt != attempt {
		st := c.state
		c.mu.Unlock()
		att.detach()
		return st, ErrConnectAborted
	}
	c.connecting = false
	c.session = nil
	c.state = ConnectionState{Status: StatusError, ErrorMessage: cause.Error(), Epoch: c.state.Epoch + 1}
	old := c.attached
	c.attached = nil
	st := c.state
	c.mu.Unlock()

	att.detach()
	old.detach()
	c.log.Warn("wallet connect failed", zap.Error(cause))
	c.notify()
	return st, cause
}

// abandon returns to Disconnected without an error (silent reconnect found
// a locked wallet).
func (c *Connector) abandon(attempt uint64, att *attachment) (ConnectionState, error) {
	c.mu.Lock()
	if c.attempt != attempt {
		st := c.state
		c.mu.Unlock()
		att.detach()
		return st, ErrConnectAborted
	}
	c.connecting = false
	c.session = nil
	c.state = ConnectionState{Status: StatusDisconnected, Epoch: c.state.Epoch + 1}
	old := c.attached
	c.attached = nil
	st := c.state
	c.mu.Unlock()

	att.detach()
	old.detach()
	c.notify()
	return st, nil
}

// Disconnect is valid from any state. It drops the session, bumps the epoch
// so every derived handle goes stale and clears the auto-connect preference.
func (c *Connector) Disconnect() ConnectionState {
	st := c.reset()
	if c.prefs != nil {
		if err := c.prefs.SetAutoConnect(false); err != nil {
			c.log.Warn("clearing auto-connect", zap.Error(err))
		}
	}
	return st
}

func (c *Connector) reset() ConnectionState {
	c.mu.Lock()
	c.attempt++
	c.connecting = false
	c.session = nil
	c.state = ConnectionState{Status: StatusDisconnected, Epoch: c.state.Epoch + 1}
	att := c.attached
	c.attached = nil
	st := c.state
	c.mu.Unlock()

	att.detach()
	c.log.Info("wallet disconnected")
	c.notify()
	return st
}

// OnAccountsChanged handles the provider event. An empty list is an implicit
// disconnect; a different first account re-runs the connected setup.
func (c *Connector) OnAccountsChanged(accounts []string) {
	addrs, err := parseAccounts(accounts)
	if err != nil {
		c.log.Warn("ignoring accountsChanged", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}
	if len(addrs) == 0 {
		c.mu.Unlock()
		c.reset()
		return
	}
	if addrs[0] == c.session.Account {
		c.mu.Unlock()
		return
	}
	s := c.session
	st := c.establishLocked(s.Provider, s.Kind, addrs[0], s.ChainID)
	c.mu.Unlock()

	c.log.Info("account changed", zap.String("account", st.Account.Hex()))
	c.notify()
}

// OnChainChanged handles the provider event. The epoch always advances, so
// handles resolved for the old chain fail as stale. Chains outside the
// registry give WrongNetwork, which is recoverable by switching again.
func (c *Connector) OnChainChanged(chainID int64) {
	c.mu.Lock()
	if c.session == nil || c.session.ChainID == chainID {
		c.mu.Unlock()
		return
	}
	s := c.session
	st := c.establishLocked(s.Provider, s.Kind, s.Account, chainID)
	c.mu.Unlock()

	c.log.Info("chain changed", zap.Int64("chain_id", chainID), zap.String("status", st.Status.String()))
	c.notify()
}

// SwitchChain asks the wallet to move to chainID, adding the network first
// when the wallet does not know it. The state changes when the wallet emits
// chainChanged.
func (c *Connector) SwitchChain(ctx context.Context, chainID int64) error {
	s := c.Session()
	if s == nil {
		return ErrNotConnected
	}
	params := map[string]string{"chainId": HexChainID(chainID)}

	_, err := s.Provider.Request(ctx, "wallet_switchEthereumChain", params)
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code == CodeUnrecognizedChain {
		n, lerr := c.networks.Lookup(chainID)
		if lerr != nil {
			return fmt.Errorf("%w: %s", ErrUnsupportedNetwork, c.networks.DisplayName(chainID))
		}
		if _, err := s.Provider.Request(ctx, "wallet_addEthereumChain", addChainParams(n)); err != nil {
			return connectError(err)
		}
		_, err = s.Provider.Request(ctx, "wallet_switchEthereumChain", params)
	}
	if err != nil {
		return connectError(err)
	}
	return nil
}

// establishLocked installs a new session and derives the state for it.
func (c *Connector) establishLocked(p Provider, kind Kind, account common.Address, chainID int64) ConnectionState {
	epoch := c.state.Epoch + 1
	c.session = &Session{Provider: p, Account: account, ChainID: chainID, Kind: kind, Epoch: epoch}

	st := ConnectionState{
		Status:  StatusConnected,
		Account: account,
		ChainID: chainID,
		Kind:    kind,
		Epoch:   epoch,
		IsAdmin: c.admin != (common.Address{}) && c.admin == account,
	}
	if !c.networks.Supported(chainID) {
		st.Status = StatusWrongNetwork
		st.ErrorMessage = "unsupported network: " + c.networks.DisplayName(chainID)
	}
	c.state = st
	return st
}

func (c *Connector) attach(p Provider) *attachment {
	return &attachment{
		provider: p,
		accounts: p.On(EventAccountsChanged, func(payload json.RawMessage) {
			var accounts []string
			if err := json.Unmarshal(payload, &accounts); err != nil {
				c.log.Warn("bad accountsChanged payload", zap.Error(err))
				return
			}
			c.OnAccountsChanged(accounts)
		}),
		chain: p.On(EventChainChanged, func(payload json.RawMessage) {
			var hexID string
			if err := json.Unmarshal(payload, &hexID); err != nil {
				c.log.Warn("bad chainChanged payload", zap.Error(err))
				return
			}
			id, err := ParseChainID(hexID)
			if err != nil {
				c.log.Warn("bad chainChanged payload", zap.Error(err))
				return
			}
			c.OnChainChanged(id)
		}),
	}
}

// notify delivers the latest state to subscribers. Deliveries are
// serialised, so a subscriber never sees an older state after a newer one.
func (c *Connector) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	st := c.State()
	c.metrics.StateChanged(st.Status.String())

	c.subMu.Lock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(ConnectionState), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func addChainParams(n *chain.Network) map[string]any {
	params := map[string]any{
		"chainId":   HexChainID(n.ChainID),
		"chainName": n.DisplayName,
		"nativeCurrency": map[string]any{
			"name":     n.NativeCurrency,
			"symbol":   n.NativeCurrency,
			"decimals": n.NativeDecimals,
		},
		"rpcUrls": n.RPCURLs,
	}
	if n.BlockExplorer != "" {
		params["blockExplorerUrls"] = []string{n.BlockExplorer}
	}
	return params
}
