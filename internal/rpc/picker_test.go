package rpc_test

import (
	"testing"
	"time"

	"github.com/carbonfi/carbonfi/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checked builds an endpoint that has been health-checked.
func checked(url string, latency time.Duration, block uint64, healthy bool) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Latency: latency, BlockNumber: block, Healthy: healthy, Checked: true}
}

// unchecked builds an endpoint with measurements but no health status.
func unchecked(url string, latency time.Duration, block uint64) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Latency: latency, BlockNumber: block}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := rpc.ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, rpc.AlgorithmFailover, a)

	a, err = rpc.ParseAlgorithm("round-robin")
	require.NoError(t, err)
	assert.Equal(t, rpc.AlgorithmRoundRobin, a)

	_, err = rpc.ParseAlgorithm("random")
	assert.Error(t, err)
}

func TestPickerSelectsFastest(t *testing.T) {
	endpoints := []rpc.Endpoint{
		unchecked("http://slow.rpc", 200*time.Millisecond, 100),
		unchecked("http://fast.rpc", 30*time.Millisecond, 100),
		unchecked("http://medium.rpc", 80*time.Millisecond, 100),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://fast.rpc", winner.URL)
}

func TestPickerDiscardsStaleNodes(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("http://fresh.rpc", 50*time.Millisecond, 1000, true),
		checked("http://stale.rpc", 10*time.Millisecond, 990, true),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://fresh.rpc", winner.URL, "stale node should be discarded even if faster")
}

func TestPickerFailoverKeepsOrder(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("http://primary", 0, 100, false),
		checked("http://secondary", 90*time.Millisecond, 100, true),
		checked("http://tertiary", 5*time.Millisecond, 100, true),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFailover).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://secondary", winner.URL, "first healthy in list order, not the fastest")
}

func TestPickerErrorsWhenAllUnhealthy(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("http://rpc1", 100*time.Millisecond, 0, false),
		checked("http://rpc2", 200*time.Millisecond, 0, false),
	}

	for _, algo := range []rpc.Algorithm{rpc.AlgorithmFastest, rpc.AlgorithmRoundRobin, rpc.AlgorithmFailover} {
		t.Run(string(algo), func(t *testing.T) {
			_, err := rpc.NewPicker(algo).Pick(endpoints)
			assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC)
		})
	}
}

func TestPickerCachesFastestWinner(t *testing.T) {
	picker := rpc.NewPicker(rpc.AlgorithmFastest)

	first, err := picker.Pick([]rpc.Endpoint{
		unchecked("http://a", 30*time.Millisecond, 100),
		unchecked("http://b", 90*time.Millisecond, 100),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://a", first.URL)

	// b is now faster, but a is still cached.
	again, err := picker.Pick([]rpc.Endpoint{
		unchecked("http://a", 90*time.Millisecond, 100),
		unchecked("http://b", 10*time.Millisecond, 100),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://a", again.URL)

	picker.Forget()
	fresh, err := picker.Pick([]rpc.Endpoint{
		unchecked("http://a", 90*time.Millisecond, 100),
		unchecked("http://b", 10*time.Millisecond, 100),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://b", fresh.URL)
}

func TestPickerCachedWinnerTurnedUnhealthy(t *testing.T) {
	picker := rpc.NewPicker(rpc.AlgorithmFastest)
	_, err := picker.Pick([]rpc.Endpoint{checked("http://a", 10*time.Millisecond, 100, true)})
	require.NoError(t, err)

	winner, err := picker.Pick([]rpc.Endpoint{
		checked("http://a", 10*time.Millisecond, 100, false),
		checked("http://b", 50*time.Millisecond, 100, true),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://b", winner.URL)
}

func TestPickerEmptyEndpoints(t *testing.T) {
	_, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(nil)
	assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC)
}

func TestPickerRoundRobinCycles(t *testing.T) {
	endpoints := []rpc.Endpoint{
		checked("http://rpc1", 0, 100, true),
		checked("http://rpc2", 0, 100, true),
	}

	picker := rpc.NewPicker(rpc.AlgorithmRoundRobin)
	first, _ := picker.Pick(endpoints)
	second, _ := picker.Pick(endpoints)
	third, _ := picker.Pick(endpoints)

	assert.NotEqual(t, first.URL, second.URL)
	assert.Equal(t, first.URL, third.URL)
}
