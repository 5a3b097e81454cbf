package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/wallet"
)

// StatusBadge renders a connection status with its color.
func StatusBadge(s wallet.Status) string {
	switch s {
	case wallet.StatusConnected:
		return StyleSuccess.Render("● " + s.String())
	case wallet.StatusConnecting:
		return StyleWarning.Render("◌ " + s.String())
	case wallet.StatusWrongNetwork:
		return StyleWarning.Render("▲ " + s.String())
	case wallet.StatusError:
		return StyleError.Render("✗ " + s.String())
	default:
		return StyleMeta.Render("○ " + s.String())
	}
}

// RenderState shows the connection state. network is the display name of
// st.ChainID.
func RenderState(st wallet.ConnectionState, network string) string {
	pairs := [][2]string{{"Status", StatusBadge(st.Status)}}
	if st.HasAccount() {
		pairs = append(pairs, [2]string{"Account", Addr(st.Account.Hex())})
	}
	if st.ChainID != 0 {
		pairs = append(pairs, [2]string{"Network", ChainName(network) + Meta(fmt.Sprintf(" (%d)", st.ChainID))})
	}
	if st.Kind != "" {
		pairs = append(pairs, [2]string{"Wallet", string(st.Kind)})
	}
	if st.IsAdmin {
		pairs = append(pairs, [2]string{"Role", "admin"})
	}
	if st.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", st.ErrorMessage})
	}
	return KeyValueBlock("Wallet", pairs)
}

// RenderSnapshot shows one balance snapshot. Degraded fields are flagged.
func RenderSnapshot(s *refresh.Snapshot) string {
	if s == nil {
		return Meta("no balances yet")
	}
	mark := func(field, v string) string {
		if s.Degraded(field) {
			return v + StyleWarning.Render("  (unavailable)")
		}
		return v
	}

	t := NewTable(Column{Title: "Asset", Width: 22}, Column{Title: "Amount", Width: 26, Right: true})
	t.AddRow(s.NativeUnit, mark(refresh.FieldNative, s.Native.String()))
	symbols := make([]string, 0, len(s.Tokens))
	for sym := range s.Tokens {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		t.AddRow(sym, mark(refresh.FieldToken, s.Tokens[sym].String()))
	}
	t.AddRow("Staked", mark(refresh.FieldStaking, s.Staking.Staked.String()))
	t.AddRow("Pending rewards", mark(refresh.FieldStaking, s.Staking.PendingRewards.String()))
	t.AddRow("Faucet daily limit", mark(refresh.FieldFaucet, s.Faucet.DailyLimit.String()))
	t.AddRow("Faucet remaining", mark(refresh.FieldFaucet, s.Faucet.Remaining.String()))

	claimed := "no"
	if s.Faucet.HasClaimedToday {
		claimed = "yes"
	}
	t.AddRow("Claimed today", mark(refresh.FieldFaucet, claimed))

	return t.Render() + Meta("refreshed "+s.RefreshedAt.Format(time.TimeOnly))
}
