package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Provider events.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Listener receives the JSON payload of a provider event: an address array
// for accountsChanged, a hex chain ID string for chainChanged.
type Listener func(payload json.RawMessage)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// ProviderInfo is how a provider identifies itself.
type ProviderInfo struct {
	Name             string
	IsMetaMask       bool
	IsCoinbaseWallet bool
	IsTrust          bool
	IsRabby          bool
}

// Provider is an EIP-1193 style wallet: a request channel plus events.
// Events may be delivered on any goroutine.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	On(event string, fn Listener) ListenerID
	RemoveListener(event string, id ListenerID)
	Info() ProviderInfo
}

// Environment exposes the providers available to the process. There may be
// none, one, or several.
type Environment interface {
	Providers() []Provider
}

// StaticEnvironment is a fixed provider list.
type StaticEnvironment []Provider

func (e StaticEnvironment) Providers() []Provider { return e }

// requestAccounts decodes an accounts array result.
func requestAccounts(ctx context.Context, p Provider, method string) ([]common.Address, error) {
	raw, err := p.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", method, err)
	}
	return parseAccounts(accounts)
}

func requestChainID(ctx context.Context, p Provider) (int64, error) {
	raw, err := p.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	var hexID string
	if err := json.Unmarshal(raw, &hexID); err != nil {
		return 0, fmt.Errorf("decoding eth_chainId result: %w", err)
	}
	return ParseChainID(hexID)
}

func parseAccounts(accounts []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(accounts))
	for _, a := range accounts {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("provider returned invalid account %q", a)
		}
		out = append(out, common.HexToAddress(a))
	}
	return out, nil
}

// ParseChainID accepts "0xaa36a7" or "11155111".
func ParseChainID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

// HexChainID formats a chain ID the way providers expect.
func HexChainID(id int64) string {
	return "0x" + strconv.FormatInt(id, 16)
}
