package refresh

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/logger"
	"github.com/carbonfi/carbonfi/internal/metrics"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrCoalesced means a refresh for the same account and chain was
	// already running; this request was dropped.
	ErrCoalesced = errors.New("refresh already in flight")
	// ErrStaleResult means the account or chain changed while reading.
	ErrStaleResult = errors.New("refresh result is stale")
	// ErrRPCUnreachable means no field could be read at all.
	ErrRPCUnreachable = contract.ErrRPCUnreachable
)

// Networks is the registry surface the refresher needs.
type Networks interface {
	Lookup(chainID int64) (*chain.Network, error)
}

// Handles resolves read handles. *contract.Resolver satisfies it.
type Handles interface {
	Resolve(ctx context.Context, name chain.ContractName, o contract.Options) (*contract.Handle, error)
}

// Live is the connector surface checked at write-back.
type Live interface {
	Current() (wallet.ConnectionState, *wallet.Session)
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets the refresher's logger. nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(r *Refresher) { r.log = logger.OrNop(l).Named("refresher") }
}

// WithMetrics records refresh outcomes and degraded fields.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Refresher) { r.metrics = m }
}

// WithLive discards results whose account or chain no longer matches the
// connector.
func WithLive(l Live) Option {
	return func(r *Refresher) { r.live = l }
}

// WithRateLimit caps node reads per second across a batch. Zero or less
// means unlimited.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Refresher) {
		if perSecond <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetry sets how often a failed transport read is retried and the
// backoff bounds between attempts.
func WithRetry(maxRetries int, base, max time.Duration) Option {
	return func(r *Refresher) {
		r.maxRetries = maxRetries
		r.backoffBase = base
		r.backoffMax = max
	}
}

// Refresher reads an account's balances and publishes them as a Snapshot.
type Refresher struct {
	networks Networks
	handles  Handles
	backends contract.BackendSource
	live     Live
	log      *zap.Logger
	metrics  *metrics.Collector
	limiter  *rate.Limiter

	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	seq      uint64
	written  uint64

	latest atomic.Pointer[Snapshot]

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// New builds a refresher. Retries default to three attempts with backoff.
func New(networks Networks, handles Handles, backends contract.BackendSource, opts ...Option) *Refresher {
	r := &Refresher{
		networks:    networks,
		handles:     handles,
		backends:    backends,
		log:         zap.NewNop(),
		limiter:     rate.NewLimiter(rate.Inf, 0),
		maxRetries:  2,
		backoffBase: 200 * time.Millisecond,
		backoffMax:  time.Second,
		inflight:    map[string]struct{}{},
		subs:        map[int]func(Snapshot){},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Latest returns the last published snapshot, or nil.
func (r *Refresher) Latest() *Snapshot {
	return r.latest.Load()
}

// Subscribe calls fn with every published snapshot.
func (r *Refresher) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()
	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// Refresh reads every field for account on chainID in parallel. At most one
// refresh per (account, chain) runs at a time; a second caller gets
// ErrCoalesced immediately. Fields that fail are zeroed and listed in
// FieldErrors. When every attempted read failed on transport, nothing is
// published and the previous snapshot stays.
func (r *Refresher) Refresh(ctx context.Context, account common.Address, chainID int64) (*Snapshot, error) {
	key := fmt.Sprintf("%s@%d", account.Hex(), chainID)
	r.mu.Lock()
	if _, busy := r.inflight[key]; busy {
		r.mu.Unlock()
		r.metrics.RefreshFinished("coalesced", 0)
		r.log.Debug("refresh coalesced", zap.String("account", account.Hex()), zap.Int64("chain_id", chainID))
		return nil, ErrCoalesced
	}
	r.inflight[key] = struct{}{}
	r.seq++
	seq := r.seq
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
	}()

	started := time.Now()
	snap, err := r.read(ctx, account, chainID)
	if err != nil {
		r.finish(outcomeOf(err), started)
		return nil, err
	}

	if !r.stillCurrent(account, chainID) {
		r.finish("stale", started)
		return nil, fmt.Errorf("%w: %s on chain %d", ErrStaleResult, account.Hex(), chainID)
	}

	r.mu.Lock()
	if seq < r.written {
		r.mu.Unlock()
		r.finish("stale", started)
		return nil, fmt.Errorf("%w: a newer refresh already published", ErrStaleResult)
	}
	r.written = seq
	r.latest.Store(snap)
	r.mu.Unlock()

	outcome := "ok"
	if len(snap.FieldErrors) > 0 {
		outcome = "partial"
	}
	r.finish(outcome, started)
	r.publish(*snap)
	return snap, nil
}

func (r *Refresher) finish(outcome string, started time.Time) {
	r.metrics.RefreshFinished(outcome, time.Since(started))
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrRPCUnreachable):
		return "unreachable"
	case errors.Is(err, ErrStaleResult):
		return "stale"
	default:
		return "error"
	}
}

func (r *Refresher) stillCurrent(account common.Address, chainID int64) bool {
	if r.live == nil {
		return true
	}
	st, _ := r.live.Current()
	return st.Status == wallet.StatusConnected && st.Account == account && st.ChainID == chainID
}

func (r *Refresher) publish(s Snapshot) {
	r.subMu.Lock()
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.subs[id])
	}
	r.subMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// fieldResult is what one parallel read produced.
type fieldResult struct {
	name      string
	err       error
	attempted bool
}

func (r *Refresher) read(ctx context.Context, account common.Address, chainID int64) (*Snapshot, error) {
	n, err := r.networks.Lookup(chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: chain %d", contract.ErrUnknownNetwork, chainID)
	}

	snap := emptySnapshot(account, chainID)
	snap.NativeUnit = n.NativeCurrency
	symbol := n.TokenSymbol
	if symbol == "" {
		symbol = "CFI"
	}
	snap.Tokens[symbol] = decimal.Zero

	b := &batch{r: r, account: account, chainID: chainID}
	b.decimals = sync.OnceValues(func() (int, error) {
		tok, err := b.token(ctx)
		if err != nil {
			return 0, err
		}
		var d uint8
		err = r.retry(ctx, func() error {
			var err error
			d, err = tok.Decimals(ctx)
			return err
		})
		return int(d), err
	})

	var (
		mu      sync.Mutex
		results []fieldResult
	)
	record := func(res fieldResult) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := b.native(gctx, n.NativeDecimals)
		record(fieldResult{name: FieldNative, err: err, attempted: true})
		if err == nil {
			snap.Native = v
		}
		return nil
	})
	g.Go(func() error {
		v, attempted, err := b.tokenBalance(gctx)
		record(fieldResult{name: FieldToken, err: err, attempted: attempted})
		if err == nil && attempted {
			mu.Lock()
			snap.Tokens[symbol] = v
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		q, attempted, err := b.faucet(gctx)
		record(fieldResult{name: FieldFaucet, err: err, attempted: attempted})
		if err == nil && attempted {
			snap.Faucet = q
		}
		return nil
	})
	g.Go(func() error {
		p, attempted, err := b.staking(gctx)
		record(fieldResult{name: FieldStaking, err: err, attempted: attempted})
		if err == nil && attempted {
			snap.Staking = p
		}
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var attempted, unreachable int
	for _, res := range results {
		if !res.attempted {
			continue
		}
		attempted++
		if res.err == nil {
			continue
		}
		if errors.Is(res.err, contract.ErrStaleHandle) {
			return nil, fmt.Errorf("%w: %v", ErrStaleResult, res.err)
		}
		if errors.Is(res.err, ErrRPCUnreachable) {
			unreachable++
		}
		snap.FieldErrors[res.name] = res.err.Error()
		r.metrics.FieldDegraded(res.name)
		r.log.Warn("balance field degraded",
			zap.String("field", res.name),
			zap.String("account", account.Hex()),
			zap.Int64("chain_id", chainID),
			zap.Error(res.err))
	}
	if attempted > 0 && unreachable == attempted {
		return nil, fmt.Errorf("%w: every balance read failed on chain %d", ErrRPCUnreachable, chainID)
	}

	snap.RefreshedAt = time.Now()
	return snap, nil
}

// retry runs fn, retrying transport failures with backoff. Every attempt
// waits on the rate limiter first.
func (r *Refresher) retry(ctx context.Context, fn func() error) error {
	policy := retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return errors.Is(err, ErrRPCUnreachable) && ctx.Err() == nil
		}).
		WithBackoff(r.backoffBase, r.backoffMax).
		WithMaxRetries(r.maxRetries).
		ReturnLastFailure().
		Build()
	return failsafe.With[any](policy).WithContext(ctx).Run(func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn()
	})
}

// batch holds per-refresh state shared by the parallel reads.
type batch struct {
	r        *Refresher
	account  common.Address
	chainID  int64
	decimals func() (int, error)

	tokenOnce sync.Once
	tokenH    *contract.Token
	tokenErr  error
}

func (b *batch) resolve(ctx context.Context, name chain.ContractName) (*contract.Handle, bool, error) {
	h, err := b.r.handles.Resolve(ctx, name, contract.Options{ChainID: b.chainID})
	if errors.Is(err, contract.ErrContractNotConfigured) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	return h, true, nil
}

func (b *batch) token(ctx context.Context) (*contract.Token, error) {
	b.tokenOnce.Do(func() {
		h, ok, err := b.resolve(ctx, chain.ContractToken)
		switch {
		case err != nil:
			b.tokenErr = err
		case !ok:
			b.tokenErr = fmt.Errorf("%w: token", contract.ErrContractNotConfigured)
		default:
			b.tokenH, b.tokenErr = contract.AsToken(h)
		}
	})
	return b.tokenH, b.tokenErr
}

func (b *batch) native(ctx context.Context, decimals int) (decimal.Decimal, error) {
	backend, err := b.r.backends.Backend(ctx, b.chainID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRPCUnreachable, err)
	}
	var wei *big.Int
	err = b.r.retry(ctx, func() error {
		var err error
		wei, err = backend.BalanceAt(ctx, b.account, nil)
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("%w: balance of %s: %v", ErrRPCUnreachable, b.account.Hex(), err)
		}
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return chain.ToDecimal(wei, decimals), nil
}

func (b *batch) tokenBalance(ctx context.Context) (decimal.Decimal, bool, error) {
	tok, err := b.token(ctx)
	if errors.Is(err, contract.ErrContractNotConfigured) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, true, err
	}
	var raw *big.Int
	if err := b.r.retry(ctx, func() error {
		var err error
		raw, err = tok.BalanceOf(ctx, b.account)
		return err
	}); err != nil {
		return decimal.Zero, true, err
	}
	d, err := b.decimals()
	if err != nil {
		return decimal.Zero, true, err
	}
	return chain.ToDecimal(raw, d), true, nil
}

func (b *batch) faucet(ctx context.Context) (FaucetQuota, bool, error) {
	h, ok, err := b.resolve(ctx, chain.ContractFaucet)
	if !ok || err != nil {
		return FaucetQuota{}, ok, err
	}
	f, err := contract.AsFaucet(h)
	if err != nil {
		return FaucetQuota{}, true, err
	}
	var q contract.FaucetQuota
	if err := b.r.retry(ctx, func() error {
		var err error
		q, err = f.Quota(ctx, b.account)
		return err
	}); err != nil {
		return FaucetQuota{}, true, err
	}
	d, err := b.decimals()
	if err != nil {
		return FaucetQuota{}, true, err
	}
	return FaucetQuota{
		DailyLimit:      chain.ToDecimal(q.DailyLimit, d),
		ClaimedToday:    chain.ToDecimal(q.ClaimedToday, d),
		Remaining:       chain.ToDecimal(q.Remaining, d),
		HasClaimedToday: q.HasClaimedToday,
	}, true, nil
}

func (b *batch) staking(ctx context.Context) (StakingPosition, bool, error) {
	h, ok, err := b.resolve(ctx, chain.ContractStaking)
	if !ok || err != nil {
		return StakingPosition{}, ok, err
	}
	s, err := contract.AsStaking(h)
	if err != nil {
		return StakingPosition{}, true, err
	}
	var info contract.StakeInfo
	if err := b.r.retry(ctx, func() error {
		var err error
		info, err = s.Info(ctx, b.account)
		return err
	}); err != nil {
		return StakingPosition{}, true, err
	}
	d, err := b.decimals()
	if err != nil {
		return StakingPosition{}, true, err
	}
	return StakingPosition{
		Staked:         chain.ToDecimal(info.Staked, d),
		PendingRewards: chain.ToDecimal(info.PendingRewards, d),
	}, true, nil
}
