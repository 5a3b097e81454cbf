package contract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/logger"
	"github.com/carbonfi/carbonfi/internal/metrics"
	"github.com/carbonfi/carbonfi/internal/wallet"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Networks is the registry surface the resolver needs.
type Networks interface {
	Lookup(chainID int64) (*chain.Network, error)
}

// Options select what Resolve returns.
type Options struct {
	ChainID     int64
	WantsSigner bool
	// VerifyDeployment checks for bytecode at the address. Costs one read.
	VerifyDeployment bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the resolver's logger. nil means no logging.
func WithLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.log = logger.OrNop(l).Named("resolver") }
}

// WithMetrics counts cache hits and misses.
func WithMetrics(m *metrics.Collector) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithCacheTTL bounds how long an unused handle stays cached.
func WithCacheTTL(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.ttl = d }
}

// Resolver turns (contract name, chain) into handles. Handles are cached per
// (name, chain, binding, session epoch); the cache is flushed whenever the
// connector reports a chain change.
type Resolver struct {
	networks Networks
	backends BackendSource
	live     LiveState
	log      *zap.Logger
	metrics  *metrics.Collector
	ttl      time.Duration

	cache       *gocache.Cache
	unsubscribe func()

	mu        sync.Mutex
	lastChain int64
}

// NewResolver creates a resolver. live may be nil for read-only use; then
// every signer request fails with ErrNotConnected.
func NewResolver(networks Networks, backends BackendSource, live LiveState, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		networks: networks,
		backends: backends,
		live:     live,
		log:      zap.NewNop(),
		ttl:      10 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = gocache.New(r.ttl, 2*r.ttl)
	if live != nil {
		st, _ := live.Current()
		r.lastChain = st.ChainID
		r.unsubscribe = live.Subscribe(r.onState)
	}
	return r
}

// Close stops following the connector.
func (r *Resolver) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

func (r *Resolver) onState(st wallet.ConnectionState) {
	r.mu.Lock()
	changed := st.ChainID != r.lastChain
	r.lastChain = st.ChainID
	r.mu.Unlock()
	if changed {
		r.cache.Flush()
		r.log.Debug("chain changed, handle cache flushed", zap.Int64("chain_id", st.ChainID))
	}
}

// Resolve returns a handle for name on o.ChainID. Signer handles need a
// Connected session on that same chain.
func (r *Resolver) Resolve(ctx context.Context, name chain.ContractName, o Options) (*Handle, error) {
	n, err := r.networks.Lookup(o.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: chain %d", ErrUnknownNetwork, o.ChainID)
	}
	addr, ok := n.ContractAddress(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrContractNotConfigured, name, n.DisplayName)
	}

	var (
		st   wallet.ConnectionState
		sess *wallet.Session
	)
	if r.live != nil {
		st, sess = r.live.Current()
	}
	binding := ReadOnly
	if o.WantsSigner {
		if sess == nil || st.Status != wallet.StatusConnected {
			return nil, fmt.Errorf("%w: %s needs a connected wallet", ErrNotConnected, name)
		}
		if sess.ChainID != o.ChainID {
			return nil, fmt.Errorf("%w: wallet is on chain %d, not %d", ErrNotConnected, sess.ChainID, o.ChainID)
		}
		binding = Signer
	}
	pinned := sess != nil && sess.ChainID == o.ChainID
	var epoch uint64
	if pinned {
		epoch = sess.Epoch
	}

	key := fmt.Sprintf("%s@%d/%s/%d", name, o.ChainID, binding, epoch)
	if v, found := r.cache.Get(key); found {
		h := v.(*Handle)
		if !o.VerifyDeployment || h.verified {
			r.metrics.Resolved(true)
			return h, nil
		}
	}
	r.metrics.Resolved(false)

	contractABI, err := ABIFor(name)
	if err != nil {
		return nil, err
	}
	backend, err := r.backends.Backend(ctx, o.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCUnreachable, err)
	}

	h := &Handle{
		Name:    name,
		ChainID: o.ChainID,
		Address: addr,
		BoundTo: binding,
		Epoch:   epoch,
		ABI:     contractABI,
		backend: backend,
		live:    r.live,
		pinned:  pinned,
	}
	if pinned {
		h.From = sess.Account
		h.provider = sess.Provider
	}

	if o.VerifyDeployment {
		code, err := backend.CodeAt(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: checking code at %s: %v", ErrRPCUnreachable, addr.Hex(), err)
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: %s at %s on %s", ErrContractNotDeployed, name, addr.Hex(), n.DisplayName)
		}
		h.verified = true
	}

	// The code check crossed a suspension point.
	if err := h.Check(); err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, h)
	r.log.Debug("resolved contract",
		zap.String("contract", string(name)),
		zap.Int64("chain_id", o.ChainID),
		zap.String("address", addr.Hex()),
		zap.Stringer("binding", binding))
	return h, nil
}

// Flush drops every cached handle, so the next Resolve binds a fresh backend.
func (r *Resolver) Flush() {
	r.cache.Flush()
}

// CachedHandles reports how many handles are cached.
func (r *Resolver) CachedHandles() int {
	return r.cache.ItemCount()
}
