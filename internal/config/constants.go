package config

import "time"

// Gas limits used as EstimateGas fallbacks when the node cannot simulate the tx.
const (
	GasLimitNativeTransfer = uint64(21_000)
	GasLimitContractCall   = uint64(300_000)
)

// Timeouts used across cmd and the core packages.
const (
	RPCSelectTimeout = 10 * time.Second
	ConnectTimeout   = 2 * time.Minute // user may take a while to approve in the wallet
	ReadTimeout      = 15 * time.Second
)

// Refresh interval bounds. Anything outside is clamped.
const (
	MinRefreshInterval = 15 * time.Second
	MaxRefreshInterval = 30 * time.Second
)
