package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nodeServer answers eth_blockNumber and eth_chainId like a real node and
// counts requests.
func nodeServer(t *testing.T, chainID int64, blockNum uint64) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req struct {
			Method string          `json:"method"`
			ID     json.RawMessage `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		var result string
		switch req.Method {
		case "eth_chainId":
			result = fmt.Sprintf("0x%x", chainID)
		default:
			result = fmt.Sprintf("0x%x", blockNum)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"%s"}`, req.ID, result)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestHealthCheckHealthy(t *testing.T) {
	srv, _ := nodeServer(t, 11155111, 1000)

	ep, err := HealthCheck(context.Background(), srv.URL, 11155111, 0)
	require.NoError(t, err)
	assert.True(t, ep.Healthy)
	assert.True(t, ep.Checked)
	assert.Equal(t, uint64(1000), ep.BlockNumber)
	assert.Equal(t, int64(11155111), ep.ChainID)
}

func TestHealthCheckWrongChain(t *testing.T) {
	srv, _ := nodeServer(t, 1, 1000)

	ep, err := HealthCheck(context.Background(), srv.URL, 11155111, 0)
	require.Error(t, err)
	assert.False(t, ep.Healthy)
	assert.Contains(t, err.Error(), "serves chain 1")
}

func TestHealthCheckUnreachable(t *testing.T) {
	ep, err := HealthCheck(context.Background(), "http://127.0.0.1:19994", 0, 0)
	require.Error(t, err)
	assert.False(t, ep.Healthy)
}

func TestHealthCheckStaleBehind(t *testing.T) {
	srv, _ := nodeServer(t, 0, 500)

	ep, err := HealthCheck(context.Background(), srv.URL, 0, 510)
	require.NoError(t, err)
	assert.False(t, ep.Healthy, "10 blocks behind is stale")
}

func TestBenchmarkKeepsOrder(t *testing.T) {
	good, _ := nodeServer(t, 97, 10)
	results := Benchmark(context.Background(), []string{"http://127.0.0.1:19995", good.URL}, 97)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)

	eps := ResultsToEndpoints(results)
	assert.False(t, eps[0].Healthy)
	assert.True(t, eps[1].Healthy)
	assert.Equal(t, good.URL, eps[1].URL)
}
