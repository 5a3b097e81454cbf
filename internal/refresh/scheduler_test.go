package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/carbonfi/carbonfi/internal/config"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	mu    sync.Mutex
	calls []int64
}

func (c *countingRefresher) Refresh(_ context.Context, _ common.Address, chainID int64) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, chainID)
	return &Snapshot{ChainID: chainID}, nil
}

func (c *countingRefresher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type staticLive struct {
	mu  sync.Mutex
	st  wallet.ConnectionState
	fns []func(wallet.ConnectionState)
}

func (l *staticLive) Current() (wallet.ConnectionState, *wallet.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st, nil
}

func (l *staticLive) Subscribe(fn func(wallet.ConnectionState)) func() {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
	return func() {}
}

func (l *staticLive) set(st wallet.ConnectionState) {
	l.mu.Lock()
	l.st = st
	fns := append([]func(wallet.ConnectionState){}, l.fns...)
	l.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func TestClampInterval(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, 20 * time.Second},
		{time.Second, config.MinRefreshInterval},
		{25 * time.Second, 25 * time.Second},
		{time.Hour, config.MaxRefreshInterval},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampInterval(tt.in), tt.in.String())
	}
}

func TestTriggersMergeWhileQueued(t *testing.T) {
	s := NewScheduler(&countingRefresher{}, &staticLive{}, SchedulerOptions{})
	s.RequestRefresh()
	s.NotifyTxConfirmed()
	s.RequestRefresh()
	assert.Len(t, s.trigger, 1)
	assert.Equal(t, TriggerManual, <-s.trigger)
}

func TestSchedulerWithoutLogger(t *testing.T) {
	s := NewScheduler(&countingRefresher{}, &staticLive{}, SchedulerOptions{})
	require.NotNil(t, s.log)
	assert.NotPanics(t, func() { s.log.Debug("tick") })
}

func TestJitterStaysInRange(t *testing.T) {
	s := NewScheduler(&countingRefresher{}, &staticLive{}, SchedulerOptions{Interval: 20 * time.Second, Jitter: 5 * time.Second})
	for range 100 {
		d := s.next()
		assert.GreaterOrEqual(t, d, 20*time.Second)
		assert.Less(t, d, 25*time.Second)
	}
}

func TestSchedulerRefreshesOnTriggers(t *testing.T) {
	acct := common.HexToAddress("0x1111111111111111111111111111111111111111")
	live := &staticLive{}
	r := &countingRefresher{}
	s := NewScheduler(r, live, SchedulerOptions{Interval: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Disconnected: manual triggers are ignored.
	s.RequestRefresh()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, r.count())

	live.set(wallet.ConnectionState{Status: wallet.StatusConnected, Account: acct, ChainID: 11155111})
	require.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)

	s.NotifyTxConfirmed()
	require.Eventually(t, func() bool { return r.count() == 2 }, time.Second, 5*time.Millisecond)

	live.set(wallet.ConnectionState{Status: wallet.StatusConnected, Account: acct, ChainID: 80002})
	require.Eventually(t, func() bool { return r.count() == 3 }, time.Second, 5*time.Millisecond)
	r.mu.Lock()
	assert.Equal(t, int64(80002), r.calls[2])
	r.mu.Unlock()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

type refresherFunc func(ctx context.Context, account common.Address, chainID int64) (*Snapshot, error)

func (f refresherFunc) Refresh(ctx context.Context, account common.Address, chainID int64) (*Snapshot, error) {
	return f(ctx, account, chainID)
}

func TestSchedulerReportsUnreachableNode(t *testing.T) {
	down := refresherFunc(func(context.Context, common.Address, int64) (*Snapshot, error) {
		return nil, ErrRPCUnreachable
	})
	var (
		mu      sync.Mutex
		dropped []int64
	)
	live := &staticLive{}
	s := NewScheduler(down, live, SchedulerOptions{
		Interval: time.Minute,
		OnUnreachable: func(chainID int64) {
			mu.Lock()
			dropped = append(dropped, chainID)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx) //nolint:errcheck

	live.set(wallet.ConnectionState{Status: wallet.StatusConnected, Account: common.HexToAddress("0x01"), ChainID: 80002})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dropped) == 1 && dropped[0] == 80002
	}, time.Second, 5*time.Millisecond)
}
