package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/config"
	"github.com/carbonfi/carbonfi/internal/logger"
	"go.uber.org/zap"
)

// Pool hands out one read client per chain, chosen from the network's RPC
// list (custom URLs first) by the configured algorithm.
type Pool struct {
	reg  *chain.Registry
	algo Algorithm
	log  *zap.Logger

	mu      sync.Mutex
	clients map[int64]*chain.EVMClient
	pickers map[int64]*Picker
}

// NewPool creates a pool over reg's networks.
func NewPool(reg *chain.Registry, algo Algorithm, log *zap.Logger) *Pool {
	return &Pool{
		reg:     reg,
		algo:    algo,
		log:     logger.OrNop(log).Named("rpc"),
		clients: make(map[int64]*chain.EVMClient),
		pickers: make(map[int64]*Picker),
	}
}

// Client returns a healthy client for chainID, selecting one on first use.
// Unknown chains return chain.ErrChainNotFound; exhausted endpoint lists
// return ErrNoHealthyRPC.
func (p *Pool) Client(ctx context.Context, chainID int64) (*chain.EVMClient, error) {
	p.mu.Lock()
	if c, ok := p.clients[chainID]; ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	n, err := p.reg.Lookup(chainID)
	if err != nil {
		return nil, err
	}

	selectCtx, cancel := context.WithTimeout(ctx, config.RPCSelectTimeout)
	defer cancel()
	url, err := p.selectURL(selectCtx, n)
	if err != nil {
		return nil, err
	}
	c, err := chain.Dial(ctx, url)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[chainID]; ok {
		c.Close()
		return existing, nil
	}
	p.clients[chainID] = c
	p.log.Debug("rpc selected", zap.Int64("chain_id", chainID), zap.String("url", url), zap.String("algorithm", string(p.algo)))
	return c, nil
}

// Invalidate drops the cached client for chainID so the next call re-selects.
func (p *Pool) Invalidate(chainID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[chainID]; ok {
		c.Close()
		delete(p.clients, chainID)
	}
	if pk, ok := p.pickers[chainID]; ok {
		pk.Forget()
	}
}

// Close releases every client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
}

func (p *Pool) selectURL(ctx context.Context, n *chain.Network) (string, error) {
	if len(n.RPCURLs) == 0 {
		return "", fmt.Errorf("%s: %w", n.Name, ErrNoHealthyRPC)
	}

	if p.algo == AlgorithmFailover || p.algo == "" {
		var errs []error
		for _, url := range n.RPCURLs {
			if _, err := HealthCheck(ctx, url, n.ChainID, 0); err != nil {
				p.log.Warn("rpc endpoint failed", zap.String("url", url), zap.Error(err))
				errs = append(errs, err)
				continue
			}
			return url, nil
		}
		return "", fmt.Errorf("%s: %w: %w", n.Name, ErrNoHealthyRPC, errors.Join(errs...))
	}

	endpoints := ResultsToEndpoints(Benchmark(ctx, n.RPCURLs, n.ChainID))
	winner, err := p.picker(n.ChainID).Pick(endpoints)
	if err != nil {
		return "", fmt.Errorf("%s: %w", n.Name, err)
	}
	return winner.URL, nil
}

func (p *Pool) picker(chainID int64) *Picker {
	p.mu.Lock()
	defer p.mu.Unlock()
	pk, ok := p.pickers[chainID]
	if !ok {
		pk = NewPicker(p.algo)
		p.pickers[chainID] = pk
	}
	return pk
}
