package config

// Config holds all carbonfi configuration.
type Config struct {
	DefaultChainID  int64              `json:"default_chain_id"`
	DefaultWallet   string             `json:"default_wallet"`
	PreferredWallet string             `json:"preferred_wallet"` // "metamask" | "coinbase" | "trust" | "rabby" | ""
	RPCAlgorithm    string             `json:"rpc_algorithm"`    // "fastest" | "round-robin" | "failover"
	RPCRateLimit    float64            `json:"rpc_rate_limit"`   // reads per second per refresh batch
	RefreshInterval int                `json:"refresh_interval"` // seconds
	RefreshJitter   int                `json:"refresh_jitter"`   // seconds
	TxTimeout       int                `json:"tx_timeout"`       // seconds
	LogLevel        string             `json:"log_level"`
	LogFormat       string             `json:"log_format"`
	AdminAddress    string             `json:"admin_address,omitempty"` // display only
	CustomRPCs      map[int64][]string `json:"custom_rpcs"`

	// internal: config dir path used for Save()
	configDir string
}

// State holds the two browser-style local flags. Losing them is harmless.
type State struct {
	AutoConnect   bool   `json:"auto_connect"`
	LastDashboard string `json:"last_dashboard,omitempty"`
}

// SyncConfig is the structure of sync.json.
type SyncConfig struct {
	Source     string `json:"source"`
	LastSynced string `json:"last_synced"`
}
