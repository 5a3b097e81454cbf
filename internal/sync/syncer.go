package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/config"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"
)

// ErrNoSource is returned by Run when no manifest URL is configured.
var ErrNoSource = errors.New("no sync source configured, run: carbonfi sync set-source <url>")

// Manifest is a deployments manifest:
// {"contracts": {"faucet": {"sepolia": {"address": "0x..."}}}}.
// Network keys are slugs or decimal chain IDs.
type Manifest struct {
	Contracts map[string]map[string]ManifestEntry `json:"contracts"`
}

// ManifestEntry is a single contract deployment entry.
type ManifestEntry struct {
	Address string `json:"address"`
}

// Networks resolves manifest network keys.
type Networks interface {
	Resolve(nameOrID string) (*chain.Network, error)
}

// Result counts what a run did.
type Result struct {
	Applied int
	Skipped int
}

// Syncer fetches a manifest and writes it into contracts.json. The new
// addresses take effect the next time the registry is built.
type Syncer struct {
	cfg         *config.Config
	deployments *contract.Deployments
	networks    Networks
	client      *http.Client
	log         *zap.Logger
	executor    failsafe.Executor[*http.Response]
}

// New creates a new Syncer.
func New(cfg *config.Config, deployments *contract.Deployments, networks Networks, log *zap.Logger) *Syncer {
	retry := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		}).
		WithBackoff(200*time.Millisecond, 2*time.Second).
		WithJitterFactor(0.1).
		WithMaxRetries(3).
		ReturnLastFailure().
		Build()
	return &Syncer{
		cfg:         cfg,
		deployments: deployments,
		networks:    networks,
		client:      &http.Client{Timeout: 15 * time.Second},
		log:         logger.OrNop(log).Named("sync"),
		executor:    failsafe.With[*http.Response](retry),
	}
}

// Run fetches the manifest from the configured source and updates the
// deployment overrides.
func (s *Syncer) Run(ctx context.Context) (Result, error) {
	syncCfg, err := s.cfg.LoadSync()
	if err != nil {
		return Result{}, fmt.Errorf("loading sync config: %w", err)
	}
	if syncCfg.Source == "" {
		return Result{}, ErrNoSource
	}

	manifest, err := s.fetchManifest(ctx, syncCfg.Source)
	if err != nil {
		return Result{}, fmt.Errorf("fetching manifest: %w", err)
	}
	if err := s.deployments.Load(); err != nil {
		return Result{}, fmt.Errorf("loading contracts: %w", err)
	}

	res := s.apply(manifest, syncCfg.Source)
	if err := s.deployments.Save(); err != nil {
		return res, fmt.Errorf("saving contracts: %w", err)
	}

	syncCfg.LastSynced = time.Now().UTC().Format(time.RFC3339)
	if err := s.cfg.SaveSync(syncCfg); err != nil {
		return res, err
	}
	s.log.Info("manifest synced",
		zap.String("source", syncCfg.Source),
		zap.Int("applied", res.Applied),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

func (s *Syncer) apply(m *Manifest, source string) Result {
	var res Result
	for rawName, networks := range m.Contracts {
		name, err := chain.ParseContractName(rawName)
		if err != nil {
			s.log.Warn("skipping unknown contract", zap.String("contract", rawName))
			res.Skipped += len(networks)
			continue
		}
		for key, entry := range networks {
			n, err := s.networks.Resolve(key)
			if err != nil {
				s.log.Warn("skipping unknown network", zap.String("contract", rawName), zap.String("network", key))
				res.Skipped++
				continue
			}
			if !common.IsHexAddress(entry.Address) {
				s.log.Warn("skipping invalid address",
					zap.String("contract", rawName),
					zap.String("network", key),
					zap.String("address", entry.Address))
				res.Skipped++
				continue
			}
			s.deployments.Set(contract.Deployment{
				Name:    name,
				ChainID: n.ChainID,
				Address: common.HexToAddress(entry.Address),
				Source:  source,
			})
			res.Applied++
		}
	}
	return res
}

// SetSource sets the remote manifest URL.
func (s *Syncer) SetSource(url string) error {
	syncCfg, err := s.cfg.LoadSync()
	if err != nil {
		return err
	}
	syncCfg.Source = url
	return s.cfg.SaveSync(syncCfg)
}

// Watch runs Syncer.Run on a ticker until ctx is cancelled.
func (s *Syncer) Watch(ctx context.Context, interval time.Duration) error {
	if _, err := s.Run(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.log.Warn("sync failed", zap.Error(err))
			}
		}
	}
}

func (s *Syncer) fetchManifest(ctx context.Context, url string) (*Manifest, error) {
	resp, err := s.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return s.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest source returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
