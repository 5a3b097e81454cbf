package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Connection errors. Each is recoverable and maps to an actionable message.
var (
	ErrNoProviderFound    = errors.New("no wallet provider found")
	ErrUserRejected       = errors.New("request rejected in wallet")
	ErrRequestPending     = errors.New("a wallet request is already pending")
	ErrUnsupportedNetwork = errors.New("unsupported network")
	ErrNotConnected       = errors.New("wallet not connected")
	ErrConnectAborted     = errors.New("connect aborted by disconnect")
)

// EIP-1193 and JSON-RPC error codes a wallet provider may return.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
	CodeRequestPending    = -32002
	CodeInvalidParams     = -32602
	CodeInternal          = -32603
)

// ProviderError is an error returned by a wallet provider request.
type ProviderError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match provider codes against the package sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrUserRejected:
		return e.Code == CodeUserRejected
	case ErrRequestPending:
		return e.Code == CodeRequestPending
	case ErrNotConnected:
		return e.Code == CodeUnauthorized || e.Code == CodeDisconnected
	}
	return false
}

func providerErr(code int, format string, args ...any) *ProviderError {
	return &ProviderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// connectError maps a provider failure during connect to the taxonomy.
func connectError(err error) error {
	switch {
	case errors.Is(err, ErrUserRejected):
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	case errors.Is(err, ErrRequestPending):
		return fmt.Errorf("%w: check the wallet for an open prompt", ErrRequestPending)
	default:
		return err
	}
}
