package e2e_test

import (
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbonfi/carbonfi/cmd"
	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/test/fixtures"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binaryPath string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "carbonfi-e2e-test")
	if err != nil {
		panic(err)
	}

	binaryPath = filepath.Join(tmp, "carbonfi")
	moduleRoot, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		panic(err)
	}
	build := exec.Command("go", "build", "-o", binaryPath, ".")
	build.Dir = moduleRoot
	if out, err := build.CombinedOutput(); err != nil {
		panic("build failed: " + string(out))
	}

	code := m.Run()
	os.RemoveAll(tmp)
	os.Exit(code)
}

func runCLI(t *testing.T, configDir string, args ...string) (string, error) {
	t.Helper()
	c := exec.Command(binaryPath, args...)
	c.Dir = configDir
	c.Env = append(os.Environ(),
		"CARBONFI_CONFIG_DIR="+configDir,
		"CARBONFI_KEYRING_PASSWORD=e2e",
		"CARBONFI_LOG_LEVEL=error",
	)
	out, err := c.CombinedOutput()
	return string(out), err
}

func TestVersionFlag(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "carbonfi")
	assert.Contains(t, out, cmd.Version)
}

func TestHelpCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--help")
	require.NoError(t, err)
	for _, sub := range []string{"balance", "connect", "dashboard", "faucet", "stake", "market", "retire", "sync"} {
		assert.Contains(t, out, sub)
	}
	assert.Contains(t, out, "--chain")
	assert.Contains(t, out, "--yes")
}

func TestNetworkList(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "network", "list")
	require.NoError(t, err)
	for _, n := range []string{"sepolia", "amoy", "fuji", "base-sepolia", "localhost"} {
		assert.Contains(t, out, n)
	}
	assert.Contains(t, out, "*")
}

func TestNetworkShowMissingContracts(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "network", "show", "base-sepolia")
	require.NoError(t, err)
	assert.Contains(t, out, "84532")
	assert.Contains(t, out, "not deployed")
}

func TestUnknownNetworkShowsHint(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--chain", "nowhere", "network", "list")
	require.Error(t, err)
	assert.Contains(t, out, "carbonfi network list")
}

func TestWalletAddAndList(t *testing.T) {
	dir := t.TempDir()
	addr := "0x1111111111111111111111111111111111111111"

	out, err := runCLI(t, dir, "wallet", "add", "watcher", addr)
	require.NoError(t, err, out)
	assert.Contains(t, out, "watcher")

	out, err = runCLI(t, dir, "wallet", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "watcher")
	assert.Contains(t, out, addr)
	assert.Contains(t, out, "1 wallet(s)")
}

func TestWalletUseAndRemove(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "wallet", "add", "w1", "0x2222222222222222222222222222222222222222")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "wallet", "use", "w1")
	require.NoError(t, err, out)

	out, err = runCLI(t, dir, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "w1")

	out, err = runCLI(t, dir, "wallet", "remove", "w1", "--yes")
	require.NoError(t, err, out)

	out, err = runCLI(t, dir, "wallet", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No wallets configured")
}

func TestWalletAddRejectsBadAddress(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "wallet", "add", "bad", "0x1234")
	require.Error(t, err)
	assert.Contains(t, out, "not an address")
}

func TestRPCAddAndList(t *testing.T) {
	dir := t.TempDir()
	url := "https://rpc.example.invalid"

	out, err := runCLI(t, dir, "rpc", "add", "amoy", url)
	require.NoError(t, err, out)

	out, err = runCLI(t, dir, "rpc", "list", "amoy")
	require.NoError(t, err)
	assert.Contains(t, out, url)
	assert.Contains(t, out, "custom")

	_, err = runCLI(t, dir, "rpc", "remove", "amoy", url)
	require.NoError(t, err)
	out, err = runCLI(t, dir, "rpc", "list", "amoy")
	require.NoError(t, err)
	assert.NotContains(t, out, url)
}

func TestConfigSetChain(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, dir, "config", "set-chain", "amoy")
	require.NoError(t, err, out)

	out, err = runCLI(t, dir, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Polygon Amoy")
}

func TestConfigRejectsBadValues(t *testing.T) {
	tests := [][]string{
		{"config", "set-interval", "soon"},
		{"config", "set-algorithm", "random"},
		{"config", "set-admin", "0x12"},
		{"config", "set-chain", "nowhere"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args[1:], " "), func(t *testing.T) {
			_, err := runCLI(t, t.TempDir(), args...)
			assert.Error(t, err)
		})
	}
}

func TestContractABI(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "contract", "abi", "faucet")
	require.NoError(t, err)
	assert.Contains(t, out, "quotaOf(address)")
	assert.Contains(t, out, "claimTokens(uint256)")
}

func TestContractOverride(t *testing.T) {
	dir := t.TempDir()
	addr := common.HexToAddress("0x3333333333333333333333333333333333333333").Hex()

	out, err := runCLI(t, dir, "--chain", "base-sepolia", "contract", "set", "faucet", addr)
	require.NoError(t, err, out)

	out, err = runCLI(t, dir, "contract", "overrides")
	require.NoError(t, err)
	assert.Contains(t, out, addr)
	assert.Contains(t, out, "manual")

	out, err = runCLI(t, dir, "network", "show", "base-sepolia")
	require.NoError(t, err)
	assert.Contains(t, out, addr)

	_, err = runCLI(t, dir, "--chain", "base-sepolia", "contract", "unset", "faucet")
	require.NoError(t, err)
	out, err = runCLI(t, dir, "contract", "overrides")
	require.NoError(t, err)
	assert.Contains(t, out, "No overrides")
}

func TestUnknownCommandShowsError(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "nonexistent-command")
	require.Error(t, err)
	assert.Contains(t, out, "unknown command")
}

func TestSyncRunWithoutSource(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "sync", "run")
	require.Error(t, err)
	assert.Contains(t, out, "carbonfi sync set-source")
}

func TestSyncRunAppliesManifest(t *testing.T) {
	dir := t.TempDir()
	addr := common.HexToAddress("0x4444444444444444444444444444444444444444").Hex()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"contracts": {"nft": {"base-sepolia": {"address": %q}}}}`, addr)
	}))
	defer srv.Close()

	out, err := runCLI(t, dir, "sync", "set-source", srv.URL)
	require.NoError(t, err, out)

	out, err = runCLI(t, dir, "sync", "run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 address(es) applied")

	out, err = runCLI(t, dir, "contract", "overrides")
	require.NoError(t, err)
	assert.Contains(t, out, addr)
}

func TestBalanceAgainstLocalNode(t *testing.T) {
	dir := t.TempDir()
	node := fixtures.NewNode(t, 11155111)
	account := common.HexToAddress("0x5555555555555555555555555555555555555555")

	reg, err := chain.NewRegistry()
	require.NoError(t, err)
	sepolia, err := reg.Resolve("sepolia")
	require.NoError(t, err)
	token, ok := sepolia.ContractAddress(chain.ContractToken)
	require.True(t, ok)

	node.SetBalance(account, new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18)))
	node.OnCall(token, chain.ContractToken, "decimals", uint8(18))
	node.OnCall(token, chain.ContractToken, "balanceOf", new(big.Int).Mul(big.NewInt(1234), big.NewInt(1e18)))

	out, err := runCLI(t, dir, "config", "set-algorithm", "failover")
	require.NoError(t, err, out)
	out, err = runCLI(t, dir, "rpc", "add", "sepolia", node.URL)
	require.NoError(t, err, out)

	out, err = runCLI(t, dir, "--chain", "sepolia", "balance", account.Hex())
	require.NoError(t, err, out)
	assert.Contains(t, out, "1234")
	assert.Contains(t, out, "ETH")
	assert.Contains(t, out, "unavailable", "undeployed faucet and staking fall back to defaults")
	assert.Positive(t, node.Hits("eth_getBalance"))
}
