package integration_test

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/rpc"
	"github.com/carbonfi/carbonfi/test/fixtures"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devnetID = 31337

var (
	account     = common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	faucetAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	stakingAddr = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	nftAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a4")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// stack wires registry, pool, resolver and refresher against node.
type stack struct {
	node      *fixtures.Node
	pool      *rpc.Pool
	resolver  *contract.Resolver
	refresher *refresh.Refresher
}

func newStack(t *testing.T) *stack {
	t.Helper()
	node := fixtures.NewNode(t, devnetID)
	doc := fmt.Sprintf(`networks:
  - chain_id: %d
    name: devnet
    display_name: Devnet
    native_currency: ETH
    native_decimals: 18
    token_symbol: CFI
    rpc_urls:
      - %s
    contracts:
      token: "%s"
      faucet: "%s"
      staking: "%s"
      nft: "%s"
`, devnetID, node.URL, tokenAddr.Hex(), faucetAddr.Hex(), stakingAddr.Hex(), nftAddr.Hex())

	reg, err := chain.NewRegistry(chain.WithTable([]byte(doc)))
	require.NoError(t, err)

	pool := rpc.NewPool(reg, rpc.AlgorithmFailover, nil)
	t.Cleanup(pool.Close)
	backends := contract.NodeBackends(pool)
	resolver := contract.NewResolver(reg, backends, nil)
	t.Cleanup(resolver.Close)

	return &stack{
		node:      node,
		pool:      pool,
		resolver:  resolver,
		refresher: refresh.New(reg, resolver, backends, refresh.WithRetry(0, time.Millisecond, time.Millisecond)),
	}
}

func (s *stack) seedToken(balance *big.Int) {
	s.node.OnCall(tokenAddr, chain.ContractToken, "decimals", uint8(18))
	s.node.OnCall(tokenAddr, chain.ContractToken, "balanceOf", balance)
}

func TestRefreshReadsEveryField(t *testing.T) {
	s := newStack(t)
	s.node.SetBalance(account, tokens(2))
	s.seedToken(tokens(1500))
	s.node.OnCall(faucetAddr, chain.ContractFaucet, "quotaOf", tokens(100), tokens(40), tokens(60), true)
	s.node.OnCall(stakingAddr, chain.ContractStaking, "stakedBalance", tokens(10))
	s.node.OnCall(stakingAddr, chain.ContractStaking, "pendingRewards", big.NewInt(5e17))

	snap, err := s.refresher.Refresh(context.Background(), account, devnetID)
	require.NoError(t, err)

	assert.Empty(t, snap.FieldErrors)
	assert.Equal(t, "ETH", snap.NativeUnit)
	assert.True(t, snap.Native.Equal(decimal.NewFromInt(2)), snap.Native.String())
	assert.True(t, snap.Tokens["CFI"].Equal(decimal.NewFromInt(1500)))
	assert.True(t, snap.Faucet.DailyLimit.Equal(decimal.NewFromInt(100)))
	assert.True(t, snap.Faucet.Remaining.Equal(decimal.NewFromInt(60)))
	assert.True(t, snap.Faucet.HasClaimedToday)
	assert.True(t, snap.Staking.Staked.Equal(decimal.NewFromInt(10)))
	assert.True(t, snap.Staking.PendingRewards.Equal(decimal.RequireFromString("0.5")))
	assert.Same(t, snap, s.refresher.Latest())
}

func TestRefreshDegradesUndeployedContract(t *testing.T) {
	s := newStack(t)
	s.node.SetBalance(account, tokens(1))
	s.seedToken(tokens(7))
	s.node.OnCall(faucetAddr, chain.ContractFaucet, "quotaOf", tokens(100), big.NewInt(0), tokens(100), false)

	snap, err := s.refresher.Refresh(context.Background(), account, devnetID)
	require.NoError(t, err)

	assert.True(t, snap.Degraded(refresh.FieldStaking))
	assert.Contains(t, snap.FieldErrors[refresh.FieldStaking], "no contract code")
	assert.True(t, snap.Staking.Staked.IsZero())
	assert.False(t, snap.Degraded(refresh.FieldToken))
	assert.True(t, snap.Tokens["CFI"].Equal(decimal.NewFromInt(7)))
}

func TestRefreshUnreachableNode(t *testing.T) {
	s := newStack(t)
	s.node.Close()

	_, err := s.refresher.Refresh(context.Background(), account, devnetID)
	assert.ErrorIs(t, err, contract.ErrRPCUnreachable)
	assert.Nil(t, s.refresher.Latest())
}

func TestResolveChecksBytecode(t *testing.T) {
	s := newStack(t)
	s.seedToken(big.NewInt(0))
	ctx := context.Background()

	h, err := s.resolver.Resolve(ctx, chain.ContractToken, contract.Options{ChainID: devnetID, VerifyDeployment: true})
	require.NoError(t, err)
	assert.Equal(t, tokenAddr, h.Address)

	_, err = s.resolver.Resolve(ctx, chain.ContractNFT, contract.Options{ChainID: devnetID, VerifyDeployment: true})
	assert.ErrorIs(t, err, contract.ErrContractNotDeployed)

	_, err = s.resolver.Resolve(ctx, chain.ContractMarketplace, contract.Options{ChainID: devnetID})
	assert.ErrorIs(t, err, contract.ErrContractNotConfigured)

	before := s.node.Hits("eth_getCode")
	_, err = s.resolver.Resolve(ctx, chain.ContractToken, contract.Options{ChainID: devnetID, VerifyDeployment: true})
	require.NoError(t, err)
	assert.Equal(t, before, s.node.Hits("eth_getCode"), "verified handle comes from cache")
}

func TestWaitMined(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	c, err := s.pool.Client(ctx, devnetID)
	require.NoError(t, err)

	mined := common.HexToHash("0x01")
	s.node.Mine(mined, true)
	res, err := contract.WaitMined(ctx, c, &contract.PendingTx{Hash: mined, ChainID: devnetID}, contract.WaitOptions{
		Timeout:  2 * time.Second,
		PollBase: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, contract.TxConfirmed, res.Status)
	assert.Equal(t, int64(101), res.Receipt.BlockNumber.Int64())

	res, err = contract.WaitMined(ctx, c, &contract.PendingTx{Hash: common.HexToHash("0x02"), ChainID: devnetID}, contract.WaitOptions{
		Timeout:  150 * time.Millisecond,
		PollBase: 10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, contract.ErrTransactionTimedOut)
	require.NotNil(t, res)
	assert.Equal(t, contract.TxPending, res.Status)
}
