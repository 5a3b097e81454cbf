package chain_test

import (
	"testing"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, opts ...chain.Option) *chain.Registry {
	t.Helper()
	r, err := chain.NewRegistry(opts...)
	require.NoError(t, err)
	return r
}

func TestRegistryLoadsBuiltinTable(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		name    string
		chainID int64
	}{
		{"sepolia", 11155111},
		{"amoy", 80002},
		{"bsc-testnet", 97},
		{"fuji", 43113},
		{"base-sepolia", 84532},
		{"localhost", 31337},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := r.Lookup(tt.chainID)
			require.NoError(t, err)
			assert.Equal(t, tt.name, n.Name)
			assert.NotEmpty(t, n.RPCURLs)
			assert.Equal(t, 18, n.NativeDecimals)
		})
	}
	assert.Len(t, r.All(), len(tests))
}

func TestLookupUnknownChain(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Lookup(999999)
	assert.ErrorIs(t, err, chain.ErrChainNotFound)
	assert.False(t, r.Supported(999999))
}

func TestDisplayNameFallback(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, "Sepolia", r.DisplayName(11155111))
	assert.Equal(t, "Chain ID: 999999", r.DisplayName(999999))
}

func TestSepoliaCarriesEveryContract(t *testing.T) {
	r := newRegistry(t)
	n, err := r.Lookup(11155111)
	require.NoError(t, err)

	for _, name := range chain.ContractNames() {
		addr, ok := n.ContractAddress(name)
		assert.True(t, ok, "sepolia missing %s", name)
		assert.NotEqual(t, [20]byte{}, [20]byte(addr))
	}
}

func TestPartialDeployments(t *testing.T) {
	r := newRegistry(t)
	n, err := r.Lookup(84532)
	require.NoError(t, err)
	_, ok := n.ContractAddress(chain.ContractToken)
	assert.False(t, ok, "base sepolia has no deployments")
}

func TestLookupReturnsCopy(t *testing.T) {
	r := newRegistry(t)
	n, _ := r.Lookup(11155111)
	n.Contracts[chain.ContractToken] = "0x0000000000000000000000000000000000000001"
	n.RPCURLs[0] = "http://mutated"

	again, _ := r.Lookup(11155111)
	assert.NotEqual(t, "0x0000000000000000000000000000000000000001", again.Contracts[chain.ContractToken])
	assert.NotEqual(t, "http://mutated", again.RPCURLs[0])
}

func TestResolveByNameOrID(t *testing.T) {
	r := newRegistry(t)

	n, err := r.Resolve("Sepolia")
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), n.ChainID)

	n, err = r.Resolve("80002")
	require.NoError(t, err)
	assert.Equal(t, "amoy", n.Name)

	_, err = r.Resolve("nowhere")
	assert.ErrorIs(t, err, chain.ErrChainNotFound)
}

func TestOverridesApplied(t *testing.T) {
	const addr = "0x1234567890123456789012345678901234567890"
	r := newRegistry(t, chain.WithOverrides(chain.Overrides{
		84532: {chain.ContractFaucet: addr},
	}))
	n, err := r.Lookup(84532)
	require.NoError(t, err)
	got, ok := n.ContractAddress(chain.ContractFaucet)
	require.True(t, ok)
	assert.Equal(t, addr, got.Hex(), "digits only, so checksum casing is a no-op")
}

func TestOverridesRejectBadInput(t *testing.T) {
	_, err := chain.NewRegistry(chain.WithOverrides(chain.Overrides{
		424242: {chain.ContractToken: "0x1234567890123456789012345678901234567890"},
	}))
	assert.ErrorIs(t, err, chain.ErrChainNotFound)

	_, err = chain.NewRegistry(chain.WithOverrides(chain.Overrides{
		11155111: {chain.ContractToken: "not-an-address"},
	}))
	assert.Error(t, err)
}

func TestExtraRPCsArePrepended(t *testing.T) {
	r := newRegistry(t, chain.WithExtraRPCs(map[int64][]string{97: {"https://mine.example"}}))
	n, _ := r.Lookup(97)
	assert.Equal(t, "https://mine.example", n.RPCURLs[0])
	assert.Greater(t, len(n.RPCURLs), 1)
}

func TestParseTableRejectsDuplicateChainID(t *testing.T) {
	doc := []byte(`
networks:
  - {chain_id: 5, name: a}
  - {chain_id: 5, name: b}
`)
	_, err := chain.ParseTable(doc)
	assert.ErrorIs(t, err, chain.ErrInvalidTable)
}

func TestParseTableRejectsBadAddress(t *testing.T) {
	doc := []byte(`
networks:
  - chain_id: 5
    name: a
    contracts:
      token: "0xnope"
`)
	_, err := chain.ParseTable(doc)
	assert.ErrorIs(t, err, chain.ErrInvalidTable)
}

func TestParseTableDefaults(t *testing.T) {
	nets, err := chain.ParseTable([]byte("networks:\n  - {chain_id: 7, name: Seven}\n"))
	require.NoError(t, err)
	require.Len(t, nets, 1)
	assert.Equal(t, "seven", nets[0].Name)
	assert.Equal(t, 18, nets[0].NativeDecimals)
	assert.NotNil(t, nets[0].Contracts)
}

func TestExplorerLinks(t *testing.T) {
	r := newRegistry(t)
	n, _ := r.Lookup(11155111)
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xabc", n.TxURL("0xabc"))
	assert.Equal(t, "https://sepolia.etherscan.io/address/0xdef", n.AddressURL("0xdef"))

	local, _ := r.Lookup(31337)
	assert.Empty(t, local.TxURL("0xabc"))
}

func TestParseContractName(t *testing.T) {
	n, err := chain.ParseContractName(" Faucet ")
	require.NoError(t, err)
	assert.Equal(t, chain.ContractFaucet, n)

	_, err = chain.ParseContractName("bridge")
	assert.Error(t, err)
}
