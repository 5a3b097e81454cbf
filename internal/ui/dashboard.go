package ui

import (
	"strings"

	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/wallet"
	tea "github.com/charmbracelet/bubbletea"
)

// StateMsg carries a connector transition into the dashboard.
type StateMsg wallet.ConnectionState

// SnapshotMsg carries a published balance snapshot into the dashboard.
type SnapshotMsg refresh.Snapshot

// NoticeMsg replaces the one-line notice under the balances.
type NoticeMsg string

// DashboardOptions wire the dashboard to the core.
type DashboardOptions struct {
	State     wallet.ConnectionState
	Snapshot  *refresh.Snapshot
	Network   func(chainID int64) string
	OnRefresh func()
	OnClaim   func() // binds "c" to a faucet claim when set
	Footer    string
}

// dashboardModel is the Bubble Tea model for the live balance dashboard. It
// only renders; the scheduler owns refresh timing.
type dashboardModel struct {
	opts     DashboardOptions
	state    wallet.ConnectionState
	snapshot *refresh.Snapshot
	notice   string
	quitting bool
}

// NewDashboard creates the dashboard program. Feed it with p.Send(StateMsg)
// and p.Send(SnapshotMsg).
func NewDashboard(opts DashboardOptions, progOpts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(newDashboardModel(opts), progOpts...)
}

func newDashboardModel(opts DashboardOptions) dashboardModel {
	if opts.Network == nil {
		opts.Network = func(int64) string { return "" }
	}
	return dashboardModel{opts: opts, state: opts.State, snapshot: opts.Snapshot}
}

func (m dashboardModel) Init() tea.Cmd { return nil }

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.opts.OnRefresh != nil {
				m.opts.OnRefresh()
			}
		case "c":
			if m.opts.OnClaim != nil {
				m.opts.OnClaim()
			}
		}

	case NoticeMsg:
		m.notice = string(msg)

	case StateMsg:
		st := wallet.ConnectionState(msg)
		if st.Account != m.state.Account || st.ChainID != m.state.ChainID {
			m.snapshot = nil
		}
		m.state = st

	case SnapshotMsg:
		s := refresh.Snapshot(msg)
		if s.Account == m.state.Account && s.ChainID == m.state.ChainID {
			m.snapshot = &s
		}
	}
	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(Banner() + "\n\n")
	sb.WriteString(RenderState(m.state, m.opts.Network(m.state.ChainID)) + "\n\n")

	switch m.state.Status {
	case wallet.StatusConnected:
		sb.WriteString(RenderSnapshot(m.snapshot) + "\n")
	case wallet.StatusWrongNetwork:
		sb.WriteString(Warn("switch to a supported network to see balances") + "\n")
	default:
		sb.WriteString(Meta("connect a wallet to see balances") + "\n")
	}

	if m.notice != "" {
		sb.WriteString("\n" + m.notice + "\n")
	}

	footer := "r refresh · q quit"
	if m.opts.OnClaim != nil {
		footer = "c claim faucet · " + footer
	}
	if m.opts.Footer != "" {
		footer += " · " + m.opts.Footer
	}
	sb.WriteString("\n" + Meta(footer))
	return sb.String()
}
