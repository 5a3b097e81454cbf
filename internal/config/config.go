package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"
)

const (
	defaultChainID     = 11155111 // Sepolia
	defaultAlgorithm   = "failover"
	defaultRateLimit   = 10
	defaultInterval    = 20
	defaultJitter      = 5
	defaultTxTimeout   = 180
	defaultLogLevel    = "warn"
	defaultLogFormat   = "console"
	defaultDirName     = ".carbonfi"
	envConfigDir       = "CARBONFI_CONFIG_DIR"
	envLogLevel        = "CARBONFI_LOG_LEVEL"
	envDefaultChainID  = "CARBONFI_CHAIN_ID"
	envPreferredWallet = "CARBONFI_WALLET_KIND"

	configFile    = "config.json"
	walletsFile   = "wallets.json"
	contractsFile = "contracts.json"
	syncFile      = "sync.json"
	stateFile     = "state.json"
)

// DefaultDir returns $CARBONFI_CONFIG_DIR or ~/.carbonfi.
func DefaultDir() (string, error) {
	if dir := os.Getenv(envConfigDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home dir: %w", err)
	}
	return filepath.Join(home, defaultDirName), nil
}

// Load reads config from dir (or creates defaults). An empty dir means DefaultDir.
// Environment variables override file values.
func Load(dir string) (*Config, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.configDir = dir
	if cfg.CustomRPCs == nil {
		cfg.CustomRPCs = make(map[int64][]string)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	return saveJSON(filepath.Join(c.configDir, configFile), c)
}

// AddRPC adds a custom RPC URL for a chain. Custom URLs are tried before built-ins.
func (c *Config) AddRPC(chainID int64, url string) error {
	if c.CustomRPCs == nil {
		c.CustomRPCs = make(map[int64][]string)
	}
	if slices.Contains(c.CustomRPCs[chainID], url) {
		return fmt.Errorf("RPC %s already exists for chain %d", url, chainID)
	}
	c.CustomRPCs[chainID] = append(c.CustomRPCs[chainID], url)
	return nil
}

// RemoveRPC removes a custom RPC URL for a chain.
func (c *Config) RemoveRPC(chainID int64, url string) error {
	rpcs := c.CustomRPCs[chainID]
	idx := slices.Index(rpcs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not found for chain %d", url, chainID)
	}
	c.CustomRPCs[chainID] = slices.Delete(rpcs, idx, idx+1)
	if len(c.CustomRPCs[chainID]) == 0 {
		delete(c.CustomRPCs, chainID)
	}
	return nil
}

// GetRPCs returns custom RPCs for a chain.
func (c *Config) GetRPCs(chainID int64) []string {
	return c.CustomRPCs[chainID]
}

// RefreshEvery returns the polling interval clamped to [15s, 30s].
func (c *Config) RefreshEvery() time.Duration {
	d := time.Duration(c.RefreshInterval) * time.Second
	return min(max(d, MinRefreshInterval), MaxRefreshInterval)
}

// RefreshJitterDuration returns the configured jitter; never negative.
func (c *Config) RefreshJitterDuration() time.Duration {
	return time.Duration(max(c.RefreshJitter, 0)) * time.Second
}

// TxWaitTimeout returns how long write commands wait for a receipt before
// reporting the transaction as still pending.
func (c *Config) TxWaitTimeout() time.Duration {
	if c.TxTimeout <= 0 {
		return defaultTxTimeout * time.Second
	}
	return time.Duration(c.TxTimeout) * time.Second
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// WalletsPath is where the wallet manager keeps wallet metadata.
func (c *Config) WalletsPath() string {
	return filepath.Join(c.configDir, walletsFile)
}

// ContractsPath is where deployment overrides live.
func (c *Config) ContractsPath() string {
	return filepath.Join(c.configDir, contractsFile)
}

// KeyringDir is the directory used by the file keyring backend.
func (c *Config) KeyringDir() string {
	return filepath.Join(c.configDir, "keys")
}

// LoadSync reads sync.json.
func (c *Config) LoadSync() (*SyncConfig, error) {
	return loadJSON[SyncConfig](filepath.Join(c.configDir, syncFile))
}

// SaveSync writes sync.json.
func (c *Config) SaveSync(sc *SyncConfig) error {
	return saveJSON(filepath.Join(c.configDir, syncFile), sc)
}

// StateStore persists State to state.json. Reads that fail yield defaults and
// writes are best effort, matching browser local storage semantics.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore returns a store rooted in the config directory.
func (c *Config) NewStateStore() *StateStore {
	return &StateStore{path: filepath.Join(c.configDir, stateFile)}
}

// Load returns the stored state, or the zero State when unreadable.
func (s *StateStore) Load() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := loadJSON[State](s.path)
	if err != nil {
		return State{}
	}
	return *st
}

// AutoConnect reports whether the last session asked to reconnect silently.
func (s *StateStore) AutoConnect() bool {
	return s.Load().AutoConnect
}

// SetAutoConnect records the auto-connect preference.
func (s *StateStore) SetAutoConnect(on bool) error {
	return s.update(func(st *State) { st.AutoConnect = on })
}

// SetLastDashboard records the last dashboard the user opened.
func (s *StateStore) SetLastDashboard(name string) error {
	return s.update(func(st *State) { st.LastDashboard = name })
}

func (s *StateStore) update(fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := loadJSON[State](s.path)
	if err != nil {
		st = &State{}
	}
	fn(st)
	return saveJSON(s.path, st)
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		DefaultChainID:  defaultChainID,
		RPCAlgorithm:    defaultAlgorithm,
		RPCRateLimit:    defaultRateLimit,
		RefreshInterval: defaultInterval,
		RefreshJitter:   defaultJitter,
		TxTimeout:       defaultTxTimeout,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
		CustomRPCs:      make(map[int64][]string),
		configDir:       dir,
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envPreferredWallet); v != "" {
		c.PreferredWallet = v
	}
	if v := os.Getenv(envDefaultChainID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envDefaultChainID, err)
		}
		c.DefaultChainID = id
	}
	return nil
}

func loadJSON[T any](path string) (*T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &zero, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
