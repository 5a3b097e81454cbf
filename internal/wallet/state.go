package wallet

import "github.com/ethereum/go-ethereum/common"

// Status is the connection lifecycle state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusWrongNetwork
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusWrongNetwork:
		return "wrong-network"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionState is a value snapshot of the connector. Account is the zero
// address and ChainID is 0 when absent.
type ConnectionState struct {
	Status       Status
	Account      common.Address
	ChainID      int64
	Kind         Kind
	ErrorMessage string
	// Epoch increases on every account, chain or connection change. Anything
	// derived from an older epoch is stale.
	Epoch uint64
	// IsAdmin is a display hint only. The contracts enforce roles.
	IsAdmin bool
}

// HasAccount reports whether an account is attached (Connected or WrongNetwork).
func (s ConnectionState) HasAccount() bool {
	return s.Account != (common.Address{})
}

// Session is the provider, account and chain bound together for one epoch.
// It is replaced wholesale, never mutated.
type Session struct {
	Provider Provider
	Account  common.Address
	ChainID  int64
	Kind     Kind
	Epoch    uint64
}
