package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/carbonfi/carbonfi/internal/wallet"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const dashboardName = "balances"

var dashboardMetricsAddr string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live balances, refreshed on an interval, after transactions and on demand",
	Long: `Open a live balance view for the connected wallet.

Balances refresh on connect, on every account or network change, every
refresh_interval seconds plus up to refresh_jitter seconds, after a
confirmed transaction, and when you press r. With --yes, c claims the
remaining faucet allowance without a prompt.

--metrics-addr serves Prometheus metrics (e.g. :9464) while the dashboard runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if _, err := app.Session(ctx); err != nil {
			return err
		}
		if dashboardMetricsAddr != "" {
			srv := serveMetrics(dashboardMetricsAddr)
			defer srv.Close()
		}
		if err := app.State.SetLastDashboard(dashboardName); err != nil {
			log.Warn("persisting last dashboard", zap.Error(err))
		}

		sched := refresh.NewScheduler(app.Refresher, app.Connector, refresh.SchedulerOptions{
			Interval: cfg.RefreshEvery(),
			Jitter:   cfg.RefreshJitterDuration(),
			Logger:   log,
			OnUnreachable: func(chainID int64) {
				app.Pool.Invalidate(chainID)
				app.Resolver.Flush()
			},
		})

		var p *tea.Program
		opts := ui.DashboardOptions{
			State:     app.Connector.State(),
			Snapshot:  app.Refresher.Latest(),
			Network:   app.Registry.DisplayName,
			OnRefresh: sched.RequestRefresh,
			Footer:    fmt.Sprintf("every %s", sched.Interval()),
		}
		if yesFlag {
			var busy atomic.Bool
			opts.OnClaim = func() {
				if !busy.CompareAndSwap(false, true) {
					return
				}
				go func() {
					defer busy.Store(false)
					p.Send(ui.NoticeMsg(dashboardClaim(ctx, sched)))
				}()
			}
		}
		p = ui.NewDashboard(opts, tea.WithAltScreen(), tea.WithContext(ctx))

		unsubState := app.Connector.Subscribe(func(st wallet.ConnectionState) { p.Send(ui.StateMsg(st)) })
		defer unsubState()
		unsubSnap := app.Refresher.Subscribe(func(s refresh.Snapshot) { p.Send(ui.SnapshotMsg(s)) })
		defer unsubSnap()

		done := make(chan error, 1)
		go func() { done <- sched.Run(ctx) }()

		_, err := p.Run()
		cancel()
		<-done
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	},
}

// dashboardClaim claims the rest of today's faucet allowance and returns a
// one-line notice. A confirmed claim triggers a refresh.
func dashboardClaim(ctx context.Context, sched *refresh.Scheduler) string {
	h, tx, err := submitClaim(ctx, "")
	if err != nil {
		return ui.Err(err.Error())
	}
	res, err := h.Wait(ctx, tx, contract.WaitOptions{Timeout: cfg.TxWaitTimeout(), Metrics: app.Metrics})
	if err != nil {
		if res != nil && res.Status == contract.TxPending {
			return ui.Warn("claim " + tx.Hash.Hex() + " still pending")
		}
		return ui.Err(err.Error())
	}
	sched.NotifyTxConfirmed()
	return ui.Success("faucet claim confirmed in block " + res.Receipt.BlockNumber.String())
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}
