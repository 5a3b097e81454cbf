package contract_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploymentsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "contracts.json")
	d := contract.NewDeployments(path)
	require.NoError(t, d.Load(), "missing file is empty")

	faucet := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	d.Set(contract.Deployment{Name: chain.ContractFaucet, ChainID: sepolia, Address: faucet, Source: "manual"})
	d.Set(contract.Deployment{Name: chain.ContractToken, ChainID: amoy, Address: common.HexToAddress("0x01")})
	require.NoError(t, d.Save())

	loaded := contract.NewDeployments(path)
	require.NoError(t, loaded.Load())
	got, err := loaded.Get(chain.ContractFaucet, sepolia)
	require.NoError(t, err)
	assert.Equal(t, faucet, got.Address)
	assert.Equal(t, "manual", got.Source)

	all := loaded.All()
	require.Len(t, all, 2)
	assert.Equal(t, amoy, all[0].ChainID)

	require.NoError(t, loaded.Remove(chain.ContractToken, amoy))
	assert.ErrorIs(t, loaded.Remove(chain.ContractToken, amoy), contract.ErrDeploymentNotFound)
	_, err = loaded.Get(chain.ContractToken, amoy)
	assert.ErrorIs(t, err, contract.ErrDeploymentNotFound)
}

func TestDeploymentsRejectUnknownName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"bridge","chain_id":1,"address":"0x0000000000000000000000000000000000000001"}]`), 0o600))
	assert.Error(t, contract.NewDeployments(path).Load())
}

func TestDeploymentOverridesReachResolver(t *testing.T) {
	d := contract.NewDeployments(filepath.Join(t.TempDir(), "contracts.json"))
	override := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	d.Set(contract.Deployment{Name: chain.ContractFaucet, ChainID: sepolia, Address: override})

	reg := testRegistry(t, chain.WithOverrides(d.Overrides()))
	n, err := reg.Lookup(sepolia)
	require.NoError(t, err)
	addr, ok := n.ContractAddress(chain.ContractFaucet)
	require.True(t, ok)
	assert.Equal(t, override, addr)

	tok, ok := n.ContractAddress(chain.ContractToken)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(sepoliaToken), tok)
}
