package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

// ErrDeploymentNotFound is returned when no override exists.
var ErrDeploymentNotFound = errors.New("deployment not found")

// Deployment overrides the table address of one contract on one chain.
type Deployment struct {
	Name    chain.ContractName `json:"name"`
	ChainID int64              `json:"chain_id"`
	Address common.Address     `json:"address"`
	Source  string             `json:"source,omitempty"`
}

// Deployments is the contracts.json override store. Overrides are read once
// at startup and handed to the network registry; editing them never changes
// a registry that already exists.
type Deployments struct {
	path string

	mu      sync.Mutex
	entries map[string]*Deployment
}

// NewDeployments returns an empty store backed by path. Call Load to read it.
func NewDeployments(path string) *Deployments {
	return &Deployments{path: path, entries: make(map[string]*Deployment)}
}

// Load reads the file. A missing file is an empty store.
func (d *Deployments) Load() error {
	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var list []Deployment
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parsing %s: %w", d.path, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range list {
		e := &list[i]
		if _, err := chain.ParseContractName(string(e.Name)); err != nil {
			return fmt.Errorf("%s: %w", d.path, err)
		}
		d.entries[deploymentKey(e.Name, e.ChainID)] = e
	}
	return nil
}

// Save writes every override to path.
func (d *Deployments) Save() error {
	data, err := json.MarshalIndent(d.All(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(d.path, data, 0o600)
}

// Set adds or replaces an override.
func (d *Deployments) Set(e Deployment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[deploymentKey(e.Name, e.ChainID)] = &e
}

// Get returns the override for name on chainID, or ErrDeploymentNotFound.
func (d *Deployments) Get(name chain.ContractName, chainID int64) (Deployment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[deploymentKey(name, chainID)]
	if !ok {
		return Deployment{}, fmt.Errorf("%w: %s on chain %d", ErrDeploymentNotFound, name, chainID)
	}
	return *e, nil
}

// Remove drops an override. Removing a missing one is an error.
func (d *Deployments) Remove(name chain.ContractName, chainID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := deploymentKey(name, chainID)
	if _, ok := d.entries[k]; !ok {
		return fmt.Errorf("%w: %s on chain %d", ErrDeploymentNotFound, name, chainID)
	}
	delete(d.entries, k)
	return nil
}

// All returns overrides ordered by chain then name.
func (d *Deployments) All() []Deployment {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Deployment, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainID != out[j].ChainID {
			return out[i].ChainID < out[j].ChainID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Overrides converts the store for chain.WithOverrides.
func (d *Deployments) Overrides() chain.Overrides {
	ov := chain.Overrides{}
	for _, e := range d.All() {
		if ov[e.ChainID] == nil {
			ov[e.ChainID] = map[chain.ContractName]string{}
		}
		ov[e.ChainID][e.Name] = e.Address.Hex()
	}
	return ov
}

func deploymentKey(name chain.ContractName, chainID int64) string {
	return string(name) + "@" + strconv.FormatInt(chainID, 10)
}
