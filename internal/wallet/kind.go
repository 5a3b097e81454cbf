package wallet

import (
	"fmt"
	"strings"
)

// Kind classifies a wallet provider. Display and logging only.
type Kind string

const (
	KindMetaMask Kind = "MetaMask"
	KindCoinbase Kind = "Coinbase"
	KindTrust    Kind = "Trust"
	KindRabby    Kind = "Rabby"
	KindGeneric  Kind = "Generic"
)

// Classify is the single place a provider's self-identification flags are
// turned into a Kind. Rabby and Trust also set the MetaMask flag, so they are
// checked first.
func Classify(info ProviderInfo) Kind {
	switch {
	case info.IsRabby:
		return KindRabby
	case info.IsTrust:
		return KindTrust
	case info.IsCoinbaseWallet:
		return KindCoinbase
	case info.IsMetaMask:
		return KindMetaMask
	default:
		return KindGeneric
	}
}

// ParseKind reads a config value ("metamask", "coinbase", ...). Empty means
// no preference.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "metamask":
		return KindMetaMask, nil
	case "coinbase":
		return KindCoinbase, nil
	case "trust":
		return KindTrust, nil
	case "rabby":
		return KindRabby, nil
	case "generic":
		return KindGeneric, nil
	default:
		return "", fmt.Errorf("unknown wallet kind %q", s)
	}
}

// Detect picks one provider when several are injected: the first of the
// preferred kind, else the first MetaMask, else the first one found.
func Detect(env Environment, preferred Kind) (Provider, Kind, error) {
	if env == nil {
		return nil, "", ErrNoProviderFound
	}
	providers := env.Providers()
	if len(providers) == 0 {
		return nil, "", ErrNoProviderFound
	}

	for _, want := range []Kind{preferred, KindMetaMask} {
		if want == "" {
			continue
		}
		for _, p := range providers {
			if k := Classify(p.Info()); k == want {
				return p, k, nil
			}
		}
	}
	p := providers[0]
	return p, Classify(p.Info()), nil
}
