package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/rpc"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHintFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"wrapped not connected", fmt.Errorf("resolve: %w", wallet.ErrNotConnected), "carbonfi connect"},
		{"rejected transaction", fmt.Errorf("%w: faucet.claimTokens", contract.ErrTransactionRejected), "declined"},
		{"rejected connect", wallet.ErrUserRejected, "--yes"},
		{"revert error", &contract.RevertError{Reason: "daily limit reached", Err: contract.ErrTransactionReverted}, "rejected the transaction"},
		{"timeout", contract.ErrTransactionTimedOut, "carbonfi tx status"},
		{"not configured", contract.ErrContractNotConfigured, "--chain sepolia"},
		{"not deployed", contract.ErrContractNotDeployed, "sync run"},
		{"stale handle", contract.ErrStaleHandle, "mid-operation"},
		{"stale refresh", refresh.ErrStaleResult, "mid-read"},
		{"no rpc", rpc.ErrNoHealthyRPC, "rpc add"},
		{"unreachable", fmt.Errorf("%w: dial", contract.ErrRPCUnreachable), "rpc add"},
		{"unknown network", contract.ErrUnknownNetwork, "network list"},
		{"unrelated", errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hintFor(tt.err)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, "42", id.String())

	for _, bad := range []string{"", "-1", "1.5", "0x10", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseAddress(t *testing.T) {
	a, err := parseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", a.Hex())

	_, err = parseAddress("0x1234")
	assert.Error(t, err)
}

// withApp installs a minimal App on network chainID for the duration of t.
func withApp(t *testing.T, chainID int64) {
	t.Helper()
	reg, err := chain.NewRegistry()
	require.NoError(t, err)
	n, err := reg.Lookup(chainID)
	require.NoError(t, err)
	prev := app
	app = &App{Registry: reg, Network: n}
	t.Cleanup(func() { app = prev })
}

func TestSpenderAddress(t *testing.T) {
	withApp(t, 11155111)

	addr, err := spenderAddress("staking")
	require.NoError(t, err)
	want, _ := app.Network.ContractAddress(chain.ContractStaking)
	assert.Equal(t, want, addr)

	addr, err = spenderAddress("0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", addr.Hex())

	_, err = spenderAddress("somebody")
	assert.Error(t, err)
}

func TestSpenderAddressNotConfigured(t *testing.T) {
	withApp(t, 84532)

	_, err := spenderAddress("staking")
	assert.ErrorIs(t, err, contract.ErrContractNotConfigured)
}
