package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/carbonfi/carbonfi/internal/chain"
	"golang.org/x/sync/errgroup"
)

const healthTimeout = 5 * time.Second

// HealthCheck pings url and verifies it serves wantChainID (0 skips the check).
// A node more than staleBlockThreshold behind bestBlock is unhealthy.
func HealthCheck(ctx context.Context, url string, wantChainID int64, bestBlock uint64) (Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	ep := Endpoint{URL: url, Checked: true}

	c, err := chain.Dial(ctx, url)
	if err != nil {
		return ep, err
	}
	defer c.Close()

	ep.Latency, ep.BlockNumber, err = c.Ping(ctx)
	if err != nil {
		return ep, err
	}
	if wantChainID != 0 {
		id, err := c.ChainIDInt64(ctx)
		if err != nil {
			return ep, err
		}
		ep.ChainID = id
		if id != wantChainID {
			return ep, fmt.Errorf("%s serves chain %d, want %d", url, id, wantChainID)
		}
	}

	ep.Healthy = bestBlock == 0 || bestBlock < ep.BlockNumber || bestBlock-ep.BlockNumber <= staleBlockThreshold
	return ep, nil
}

// BenchmarkResult holds the result of one endpoint health check.
type BenchmarkResult struct {
	Endpoint
	Err error
}

// Benchmark health-checks every URL concurrently. Results keep input order.
func Benchmark(ctx context.Context, urls []string, wantChainID int64) []BenchmarkResult {
	results := make([]BenchmarkResult, len(urls))
	var g errgroup.Group
	for i, url := range urls {
		g.Go(func() error {
			ep, err := HealthCheck(ctx, url, wantChainID, 0)
			results[i] = BenchmarkResult{Endpoint: ep, Err: err}
			return nil
		})
	}
	g.Wait() //nolint:errcheck
	return results
}

// ResultsToEndpoints converts benchmark results to picker endpoints.
func ResultsToEndpoints(results []BenchmarkResult) []Endpoint {
	endpoints := make([]Endpoint, 0, len(results))
	for _, r := range results {
		e := r.Endpoint
		e.Checked = true
		e.Healthy = r.Err == nil
		endpoints = append(endpoints, e)
	}
	return endpoints
}
