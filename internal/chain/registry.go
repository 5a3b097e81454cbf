package chain

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ErrChainNotFound is returned when a chain ID or name is not in the registry.
var ErrChainNotFound = errors.New("chain not found")

// ErrInvalidTable is returned when the network table fails validation.
var ErrInvalidTable = errors.New("invalid network table")

//go:embed networks.yaml
var builtinTable []byte

// ContractName is the logical name of a CarbonFi contract.
type ContractName string

const (
	ContractToken       ContractName = "token"
	ContractFaucet      ContractName = "faucet"
	ContractStaking     ContractName = "staking"
	ContractFarming     ContractName = "farming"
	ContractNFT         ContractName = "nft"
	ContractMarketplace ContractName = "marketplace"
	ContractRetirement  ContractName = "retirement"
)

// ContractNames lists every logical contract in display order.
func ContractNames() []ContractName {
	return []ContractName{
		ContractToken, ContractFaucet, ContractStaking, ContractFarming,
		ContractNFT, ContractMarketplace, ContractRetirement,
	}
}

// ParseContractName validates a user-supplied contract name.
func ParseContractName(s string) (ContractName, error) {
	n := ContractName(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(ContractNames(), n) {
		return "", fmt.Errorf("unknown contract %q", s)
	}
	return n, nil
}

// Network describes one supported chain and where CarbonFi is deployed on it.
type Network struct {
	ChainID        int64                   `yaml:"chain_id"`
	Name           string                  `yaml:"name"`
	DisplayName    string                  `yaml:"display_name"`
	NativeCurrency string                  `yaml:"native_currency"`
	NativeDecimals int                     `yaml:"native_decimals"`
	TokenSymbol    string                  `yaml:"token_symbol"`
	Testnet        bool                    `yaml:"testnet"`
	RPCURLs        []string                `yaml:"rpc_urls"` // first is primary
	BlockExplorer  string                  `yaml:"explorer"`
	Contracts      map[ContractName]string `yaml:"contracts"`
}

// ContractAddress returns the configured address for name, if any.
func (n *Network) ContractAddress(name ContractName) (common.Address, bool) {
	raw, ok := n.Contracts[name]
	if !ok || raw == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// TxURL links a transaction on the block explorer, or "" when none is known.
func (n *Network) TxURL(hash string) string {
	if n.BlockExplorer == "" {
		return ""
	}
	return strings.TrimRight(n.BlockExplorer, "/") + "/tx/" + hash
}

// AddressURL links an address on the block explorer, or "" when none is known.
func (n *Network) AddressURL(addr string) string {
	if n.BlockExplorer == "" {
		return ""
	}
	return strings.TrimRight(n.BlockExplorer, "/") + "/address/" + addr
}

func (n *Network) clone() *Network {
	c := *n
	c.RPCURLs = slices.Clone(n.RPCURLs)
	c.Contracts = maps.Clone(n.Contracts)
	if c.Contracts == nil {
		c.Contracts = map[ContractName]string{}
	}
	return &c
}

// Overrides replaces deployment addresses: chainID -> contract -> address.
type Overrides map[int64]map[ContractName]string

// Option configures a Registry at construction. Descriptors are immutable afterwards.
type Option func(*options)

type options struct {
	table     []byte
	overrides Overrides
	extraRPCs map[int64][]string
}

// WithTable replaces the embedded network table (tests, forks).
func WithTable(yamlDoc []byte) Option {
	return func(o *options) { o.table = yamlDoc }
}

// WithOverrides applies deployment address overrides.
func WithOverrides(ov Overrides) Option {
	return func(o *options) { o.overrides = ov }
}

// WithExtraRPCs prepends user RPC URLs to a chain's list.
func WithExtraRPCs(rpcs map[int64][]string) Option {
	return func(o *options) { o.extraRPCs = rpcs }
}

// Registry is the read-only table of supported networks.
type Registry struct {
	networks []*Network
	byName   map[string]*Network
	byID     map[int64]*Network
}

// NewRegistry decodes the network table and applies options.
func NewRegistry(opts ...Option) (*Registry, error) {
	o := options{table: builtinTable}
	for _, opt := range opts {
		opt(&o)
	}

	networks, err := ParseTable(o.table)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		networks: networks,
		byName:   make(map[string]*Network, len(networks)),
		byID:     make(map[int64]*Network, len(networks)),
	}
	for _, n := range networks {
		r.byName[n.Name] = n
		r.byID[n.ChainID] = n
	}

	for id, addrs := range o.overrides {
		n, ok := r.byID[id]
		if !ok {
			return nil, fmt.Errorf("override for chain %d: %w", id, ErrChainNotFound)
		}
		for name, addr := range addrs {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("override %s on chain %d: invalid address %q", name, id, addr)
			}
			n.Contracts[name] = addr
		}
	}
	for id, urls := range o.extraRPCs {
		if n, ok := r.byID[id]; ok && len(urls) > 0 {
			n.RPCURLs = append(slices.Clone(urls), n.RPCURLs...)
		}
	}
	return r, nil
}

// ParseTable decodes and validates a YAML network table.
func ParseTable(doc []byte) ([]*Network, error) {
	var table struct {
		Networks []*Network `yaml:"networks"`
	}
	if err := yaml.Unmarshal(doc, &table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	seenID := make(map[int64]bool, len(table.Networks))
	seenName := make(map[string]bool, len(table.Networks))
	for _, n := range table.Networks {
		if n.ChainID <= 0 {
			return nil, fmt.Errorf("%w: network %q has no chain_id", ErrInvalidTable, n.Name)
		}
		if seenID[n.ChainID] {
			return nil, fmt.Errorf("%w: duplicate chain_id %d", ErrInvalidTable, n.ChainID)
		}
		seenID[n.ChainID] = true

		n.Name = strings.ToLower(n.Name)
		if n.Name == "" || seenName[n.Name] {
			return nil, fmt.Errorf("%w: missing or duplicate name %q", ErrInvalidTable, n.Name)
		}
		seenName[n.Name] = true

		if n.NativeDecimals == 0 {
			n.NativeDecimals = 18
		}
		if n.Contracts == nil {
			n.Contracts = map[ContractName]string{}
		}
		for name, addr := range n.Contracts {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("%w: %s on %s has invalid address %q", ErrInvalidTable, name, n.Name, addr)
			}
		}
	}
	return table.Networks, nil
}

// All returns copies of every network, in table order.
func (r *Registry) All() []*Network {
	out := make([]*Network, len(r.networks))
	for i, n := range r.networks {
		out[i] = n.clone()
	}
	return out
}

// Lookup finds a network by chain ID. Unknown IDs return ErrChainNotFound;
// callers treat that as an unsupported network, never as fatal.
func (r *Registry) Lookup(chainID int64) (*Network, error) {
	n, ok := r.byID[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrChainNotFound, chainID)
	}
	return n.clone(), nil
}

// Supported reports whether chainID is in the table.
func (r *Registry) Supported(chainID int64) bool {
	_, ok := r.byID[chainID]
	return ok
}

// GetByName finds a network by slug, e.g. "sepolia".
func (r *Registry) GetByName(name string) (*Network, error) {
	n, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, name)
	}
	return n.clone(), nil
}

// Resolve accepts either a slug or a decimal chain ID.
func (r *Registry) Resolve(nameOrID string) (*Network, error) {
	if id, err := strconv.ParseInt(nameOrID, 10, 64); err == nil {
		return r.Lookup(id)
	}
	return r.GetByName(nameOrID)
}

// DisplayName returns the network's display name, or "Chain ID: <id>" for
// chains outside the table.
func (r *Registry) DisplayName(chainID int64) string {
	if n, ok := r.byID[chainID]; ok {
		return n.DisplayName
	}
	return fmt.Sprintf("Chain ID: %d", chainID)
}
