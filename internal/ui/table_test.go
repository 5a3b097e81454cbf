package ui

import (
	"strings"
	"testing"

	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit(t *testing.T) {
	tests := []struct {
		in    string
		width int
		right bool
		want  string
	}{
		{"ab", 4, false, "ab  "},
		{"ab", 4, true, "  ab"},
		{"abcd", 4, false, "abcd"},
		{"abcdef", 4, false, "abcd"},
		{"", 0, false, ""},
		{"0x12…ff", 5, false, "0x12…"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fit(tt.in, tt.width, tt.right), tt.in)
	}
}

func TestTableRender(t *testing.T) {
	tbl := NewTable(Column{Title: "Asset", Width: 8}, Column{Title: "Amount", Width: 6, Right: true})
	tbl.AddRow("CFI", "12.5")
	tbl.AddRow("ETH")

	lines := strings.Split(strings.TrimSuffix(tbl.Render(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Asset")
	assert.Contains(t, lines[2], "CFI")
	assert.Contains(t, lines[2], "  12.5")
	assert.Contains(t, lines[3], "ETH")
}

func TestKeyValueBlockOrderAndBorder(t *testing.T) {
	out := KeyValueBlock("Config", [][2]string{{"First", "AAA"}, {"Second", "BBB"}})
	assert.Contains(t, out, "Config")
	assert.Less(t, strings.Index(out, "First"), strings.Index(out, "Second"))
	assert.Contains(t, out, "╭")
	assert.Contains(t, out, "╰")
}

func TestRenderStateWrongNetwork(t *testing.T) {
	st := wallet.ConnectionState{
		Status:       wallet.StatusWrongNetwork,
		Account:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		ChainID:      999999,
		ErrorMessage: "unsupported network: Chain ID: 999999",
	}
	out := RenderState(st, "Chain ID: 999999")
	assert.Contains(t, out, "wrong-network")
	assert.Contains(t, out, "Chain ID: 999999")
	assert.Contains(t, out, "0x1111111111111111111111111111111111111111")
}

func TestRenderSnapshotFlagsDegradedFields(t *testing.T) {
	s := &refresh.Snapshot{
		NativeUnit:  "ETH",
		Native:      decimal.RequireFromString("1.5"),
		Tokens:      map[string]decimal.Decimal{"CFI": decimal.RequireFromString("42")},
		Faucet:      refresh.FaucetQuota{DailyLimit: decimal.Zero, Remaining: decimal.Zero},
		Staking:     refresh.StakingPosition{Staked: decimal.Zero, PendingRewards: decimal.Zero},
		FieldErrors: map[string]string{refresh.FieldFaucet: "reverted"},
	}
	out := RenderSnapshot(s)
	assert.Contains(t, out, "1.5")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "unavailable")
	assert.Contains(t, RenderSnapshot(nil), "no balances yet")
}
