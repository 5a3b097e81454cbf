package contract_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnknownNetwork(t *testing.T) {
	f := newFixture(t)
	for _, id := range []int64{0, -1, 1, 999999, 1 << 40} {
		for _, name := range chain.ContractNames() {
			for _, signer := range []bool{false, true} {
				_, err := f.resolver.Resolve(context.Background(), name, contract.Options{ChainID: id, WantsSigner: signer})
				require.ErrorIs(t, err, contract.ErrUnknownNetwork, "chain %d %s", id, name)
			}
		}
	}
}

func TestResolveNotConfigured(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		chainID int64
		name    chain.ContractName
	}{
		{84532, chain.ContractToken},
		{43113, chain.ContractFaucet},
		{97, chain.ContractRetirement},
	}
	for _, tt := range tests {
		_, err := f.resolver.Resolve(context.Background(), tt.name, contract.Options{ChainID: tt.chainID})
		assert.ErrorIs(t, err, contract.ErrContractNotConfigured, "%s on %d", tt.name, tt.chainID)
	}
}

func TestResolveTokenAddressRoundTrip(t *testing.T) {
	const table = `
networks:
  - chain_id: 424242
    name: devnet
    display_name: Devnet
    native_currency: ETH
    rpc_urls: [http://127.0.0.1:8545]
    contracts:
      token: "0xAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaa"
`
	reg := testRegistry(t, chain.WithTable([]byte(table)))
	r := contract.NewResolver(reg, &countingSource{backend: newFakeBackend()}, nil)

	h, err := r.Resolve(context.Background(), chain.ContractToken, contract.Options{ChainID: 424242})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaa"), h.Address)
	assert.Equal(t, contract.ReadOnly, h.BoundTo)
	assert.Equal(t, int64(424242), h.ChainID)
	assert.Equal(t, chain.ContractToken, h.Name)
}

func TestResolveVerifiesDeployment(t *testing.T) {
	f := newFixture(t)
	opts := contract.Options{ChainID: sepolia, VerifyDeployment: true}

	_, err := f.resolver.Resolve(context.Background(), chain.ContractToken, opts)
	require.ErrorIs(t, err, contract.ErrContractNotDeployed)

	f.backend.code[common.HexToAddress(sepoliaToken)] = []byte{0x60, 0x80}
	h, err := f.resolver.Resolve(context.Background(), chain.ContractToken, opts)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(sepoliaToken), h.Address)
}

func TestResolveSignerNeedsConnection(t *testing.T) {
	t.Run("no connector", func(t *testing.T) {
		r := contract.NewResolver(testRegistry(t), &countingSource{backend: newFakeBackend()}, nil)
		_, err := r.Resolve(context.Background(), chain.ContractFaucet, contract.Options{ChainID: sepolia, WantsSigner: true})
		assert.ErrorIs(t, err, contract.ErrNotConnected)
	})

	t.Run("disconnected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.resolver.Resolve(context.Background(), chain.ContractFaucet, contract.Options{ChainID: sepolia, WantsSigner: true})
		assert.ErrorIs(t, err, contract.ErrNotConnected)
	})

	t.Run("other chain", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		_, err := f.resolver.Resolve(context.Background(), chain.ContractFaucet, contract.Options{ChainID: amoy, WantsSigner: true})
		assert.ErrorIs(t, err, contract.ErrNotConnected)
	})

	t.Run("wrong network", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.wallet.switchChain(999999)
		_, err := f.resolver.Resolve(context.Background(), chain.ContractFaucet, contract.Options{ChainID: sepolia, WantsSigner: true})
		assert.ErrorIs(t, err, contract.ErrNotConnected)
	})
}

func TestResolveFaucetWithSigner(t *testing.T) {
	f := newFixture(t)
	st := f.connect(t)
	require.Equal(t, wallet.StatusConnected, st.Status)

	h, err := f.resolver.Resolve(context.Background(), chain.ContractFaucet, contract.Options{ChainID: sepolia, WantsSigner: true})
	require.NoError(t, err)
	assert.Equal(t, contract.Signer, h.BoundTo)
	assert.Equal(t, common.HexToAddress(acct1), h.From)
	assert.Equal(t, common.HexToAddress(sepoliaFaucet), h.Address)
	assert.Equal(t, st.Epoch, h.Epoch)
	assert.NoError(t, h.Check())
}

func TestHandleStaleAfterChainChange(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	h, err := f.resolver.Resolve(context.Background(), chain.ContractFaucet, contract.Options{ChainID: sepolia, WantsSigner: true})
	require.NoError(t, err)
	faucet, err := contract.AsFaucet(h)
	require.NoError(t, err)

	f.wallet.switchChain(amoy)

	_, err = faucet.Claim(context.Background(), big.NewInt(100))
	require.ErrorIs(t, err, contract.ErrStaleHandle)
	assert.Zero(t, f.wallet.sentCount(), "a stale handle must not reach the wallet")

	_, err = faucet.Quota(context.Background(), common.HexToAddress(acct1))
	require.ErrorIs(t, err, contract.ErrStaleHandle)
	assert.Zero(t, f.backend.callCount())

	// Re-resolving on the new chain works and targets the new address.
	fresh, err := f.resolver.Resolve(context.Background(), chain.ContractFaucet, contract.Options{ChainID: amoy, WantsSigner: true})
	require.NoError(t, err)
	assert.NotEqual(t, h.Address, fresh.Address)
	assert.NoError(t, fresh.Check())
}

func TestHandleStaleAfterAccountsCleared(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	h, err := f.resolver.Resolve(context.Background(), chain.ContractToken, contract.Options{ChainID: sepolia, WantsSigner: true})
	require.NoError(t, err)

	f.wallet.emit(wallet.EventAccountsChanged, []string{})
	assert.Equal(t, wallet.StatusDisconnected, f.connector.State().Status)
	require.ErrorIs(t, h.Check(), contract.ErrStaleHandle)

	_, err = f.resolver.Resolve(context.Background(), chain.ContractToken, contract.Options{ChainID: sepolia, WantsSigner: true})
	assert.ErrorIs(t, err, contract.ErrNotConnected)
}

func TestResolverCachesUntilChainChange(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	opts := contract.Options{ChainID: sepolia}

	first, err := f.resolver.Resolve(context.Background(), chain.ContractStaking, opts)
	require.NoError(t, err)
	second, err := f.resolver.Resolve(context.Background(), chain.ContractStaking, opts)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, f.source.dials)
	assert.Equal(t, 1, f.resolver.CachedHandles())

	f.wallet.switchChain(amoy)
	assert.Zero(t, f.resolver.CachedHandles())

	third, err := f.resolver.Resolve(context.Background(), chain.ContractStaking, opts)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestResolverFlushRedials(t *testing.T) {
	f := newFixture(t)
	opts := contract.Options{ChainID: sepolia}

	_, err := f.resolver.Resolve(context.Background(), chain.ContractStaking, opts)
	require.NoError(t, err)
	f.resolver.Flush()
	assert.Zero(t, f.resolver.CachedHandles())

	_, err = f.resolver.Resolve(context.Background(), chain.ContractStaking, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, f.source.dials)
}

func TestResolverNilLogger(t *testing.T) {
	f := newFixture(t)
	r := contract.NewResolver(f.reg, f.source, nil, contract.WithLogger(nil))
	t.Cleanup(r.Close)

	assert.NotPanics(t, func() {
		_, err := r.Resolve(context.Background(), chain.ContractToken, contract.Options{ChainID: sepolia, VerifyDeployment: true})
		assert.ErrorIs(t, err, contract.ErrContractNotDeployed)
		_, err = r.Resolve(context.Background(), chain.ContractStaking, contract.Options{ChainID: sepolia})
		assert.NoError(t, err)
	})
}

func TestReadOnlyHandleWhileDisconnectedIsNotPinned(t *testing.T) {
	f := newFixture(t)
	f.backend.returns(t, chain.ContractToken, "totalSupply", big.NewInt(1000))

	h, err := f.resolver.Resolve(context.Background(), chain.ContractToken, contract.Options{ChainID: sepolia})
	require.NoError(t, err)

	f.connect(t)
	f.wallet.switchChain(amoy)

	vals, err := h.Call(context.Background(), "totalSupply")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), vals[0])
}
