package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// EVMClient is a JSON-RPC client for one EVM endpoint. The typed helpers come
// from the embedded ethclient; Raw forwards arbitrary methods unchanged.
type EVMClient struct {
	*ethclient.Client
	rpc *gethrpc.Client
	url string
}

// Dial connects to url. HTTP endpoints are dialled lazily, so a nil error does
// not mean the node is reachable; use Ping for that.
func Dial(ctx context.Context, url string) (*EVMClient, error) {
	rc, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &EVMClient{
		Client: ethclient.NewClient(rc),
		rpc:    rc,
		url:    url,
	}, nil
}

// URL returns the endpoint this client talks to.
func (c *EVMClient) URL() string {
	return c.url
}

// Raw performs a JSON-RPC call and returns the undecoded result.
func (c *EVMClient) Raw(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.rpc.CallContext(ctx, &result, method, params...); err != nil {
		return nil, err
	}
	return result, nil
}

// ChainIDInt64 returns the node's chain ID.
func (c *EVMClient) ChainIDInt64(ctx context.Context) (int64, error) {
	id, err := c.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Int64(), nil
}

// Ping measures round-trip latency using eth_blockNumber.
func (c *EVMClient) Ping(ctx context.Context) (latency time.Duration, blockNum uint64, err error) {
	start := time.Now()
	blockNum, err = c.BlockNumber(ctx)
	latency = time.Since(start)
	return latency, blockNum, err
}

// WeiToGwei converts a Wei value to Gwei as float64.
func WeiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		new(big.Float).SetFloat64(1e9),
	).Float64()
	return f
}
