package refresh

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/carbonfi/carbonfi/internal/config"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/logger"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Trigger reasons, used in logs.
const (
	TriggerConnect     = "connect"
	TriggerInterval    = "interval"
	TriggerTxConfirmed = "tx-confirmed"
	TriggerManual      = "manual"
)

// Refreshable is what the scheduler drives. *Refresher satisfies it.
type Refreshable interface {
	Refresh(ctx context.Context, account common.Address, chainID int64) (*Snapshot, error)
}

// SchedulerOptions tune the polling loop.
type SchedulerOptions struct {
	Interval time.Duration
	Jitter   time.Duration
	Logger   *zap.Logger
	// OnUnreachable runs after a refresh found no working node, so the
	// caller can drop the endpoint it had selected for chainID.
	OnUnreachable func(chainID int64)
}

// Scheduler decides when to refresh: on connect or account/chain change, on
// every interval plus jitter, after a confirmed transaction, and on request.
// Triggers that arrive while one is already queued are merged.
type Scheduler struct {
	refresher Refreshable
	live      contract.LiveState
	interval  time.Duration
	jitter    time.Duration
	log       *zap.Logger

	onUnreachable func(chainID int64)

	trigger chan string
}

// NewScheduler builds an idle scheduler; Run drives it.
func NewScheduler(r Refreshable, live contract.LiveState, opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		refresher: r,
		live:      live,
		interval:  clampInterval(opts.Interval),
		jitter:    opts.Jitter,
		log:       logger.OrNop(opts.Logger).Named("scheduler"),
		trigger:   make(chan string, 1),

		onUnreachable: opts.OnUnreachable,
	}
	if s.jitter < 0 {
		s.jitter = 0
	}
	return s
}

func clampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return 20 * time.Second
	case d < config.MinRefreshInterval:
		return config.MinRefreshInterval
	case d > config.MaxRefreshInterval:
		return config.MaxRefreshInterval
	}
	return d
}

// Interval is the clamped base interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

func (s *Scheduler) next() time.Duration {
	if s.jitter == 0 {
		return s.interval
	}
	return s.interval + rand.N(s.jitter)
}

// RequestRefresh asks for a refresh now.
func (s *Scheduler) RequestRefresh() { s.enqueue(TriggerManual) }

// NotifyTxConfirmed asks for a refresh after a transaction was mined.
func (s *Scheduler) NotifyTxConfirmed() { s.enqueue(TriggerTxConfirmed) }

func (s *Scheduler) enqueue(reason string) {
	select {
	case s.trigger <- reason:
	default:
	}
}

// Run loops until ctx is done. It refreshes immediately when a session is
// already connected.
func (s *Scheduler) Run(ctx context.Context) error {
	var last wallet.ConnectionState
	unsubscribe := s.live.Subscribe(func(st wallet.ConnectionState) {
		if st.Status == wallet.StatusConnected &&
			(last.Status != wallet.StatusConnected || last.Account != st.Account || last.ChainID != st.ChainID) {
			s.enqueue(TriggerConnect)
		}
		last = st
	})
	defer unsubscribe()

	if st, _ := s.live.Current(); st.Status == wallet.StatusConnected {
		s.enqueue(TriggerConnect)
	}

	timer := time.NewTimer(s.next())
	defer timer.Stop()
	s.log.Info("refresh loop started", zap.Duration("interval", s.interval), zap.Duration("jitter", s.jitter))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			s.tick(ctx, TriggerInterval)
		case reason := <-s.trigger:
			s.tick(ctx, reason)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		timer.Reset(s.next())
	}
}

func (s *Scheduler) tick(ctx context.Context, reason string) {
	st, _ := s.live.Current()
	if st.Status != wallet.StatusConnected {
		return
	}
	log := s.log.With(zap.String("trigger", reason), zap.String("account", st.Account.Hex()), zap.Int64("chain_id", st.ChainID))

	rctx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
	defer cancel()
	_, err := s.refresher.Refresh(rctx, st.Account, st.ChainID)
	switch {
	case err == nil:
		log.Debug("balances refreshed")
	case errors.Is(err, ErrCoalesced), errors.Is(err, ErrStaleResult):
		log.Debug("refresh dropped", zap.Error(err))
	case ctx.Err() != nil:
	default:
		log.Warn("refresh failed", zap.Error(err))
		if errors.Is(err, ErrRPCUnreachable) && s.onUnreachable != nil {
			s.onUnreachable(st.ChainID)
		}
	}
}
