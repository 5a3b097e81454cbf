package contract

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"golang.org/x/crypto/sha3"
)

// ABIEntry is one ABI entry (function, event, error).
type ABIEntry struct {
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Inputs          []ABIParam `json:"inputs"`
	Outputs         []ABIParam `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
}

// ABIParam is a parameter in an ABI entry.
type ABIParam struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

// IsReadFunction returns true if the function is read-only (view/pure).
func (e ABIEntry) IsReadFunction() bool {
	return e.Type == "function" &&
		(e.StateMutability == "view" || e.StateMutability == "pure")
}

// IsWriteFunction returns true if the function modifies state.
func (e ABIEntry) IsWriteFunction() bool {
	return e.Type == "function" &&
		(e.StateMutability == "nonpayable" || e.StateMutability == "payable")
}

// Signature is the canonical form, e.g. "transfer(address,uint256)".
func (e ABIEntry) Signature() string {
	types := make([]string, len(e.Inputs))
	for i, p := range e.Inputs {
		types[i] = p.Type
	}
	return e.Name + "(" + strings.Join(types, ",") + ")"
}

// Selector is the 4-byte function selector as 0x-prefixed hex.
func (e ABIEntry) Selector() string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(e.Signature()))
	return "0x" + hex.EncodeToString(h.Sum(nil)[:4])
}

// BuiltinKind is a contract interface embedded in the binary. Each one
// registers itself from init() in its own <name>_abi.go file.
type BuiltinKind struct {
	Name        chain.ContractName
	Label       string
	Description string
	ABI         []ABIEntry
}

var (
	builtinRegistry = map[chain.ContractName]BuiltinKind{}

	parsedMu sync.Mutex
	parsed   = map[chain.ContractName]*abi.ABI{}
)

// RegisterBuiltin adds a built-in ABI. Call it from init().
func RegisterBuiltin(b BuiltinKind) {
	builtinRegistry[b.Name] = b
}

// GetBuiltin returns a built-in by contract name.
func GetBuiltin(name chain.ContractName) (BuiltinKind, bool) {
	b, ok := builtinRegistry[name]
	return b, ok
}

// AllBuiltins returns all registered built-ins sorted by name.
func AllBuiltins() []BuiltinKind {
	out := make([]BuiltinKind, 0, len(builtinRegistry))
	for _, b := range builtinRegistry {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ABIFor returns the parsed go-ethereum ABI for a logical contract. Parsing
// happens once per name.
func ABIFor(name chain.ContractName) (*abi.ABI, error) {
	parsedMu.Lock()
	defer parsedMu.Unlock()
	if a, ok := parsed[name]; ok {
		return a, nil
	}
	b, ok := builtinRegistry[name]
	if !ok {
		return nil, fmt.Errorf("no ABI for contract %q", name)
	}
	a, err := toABI(b.ABI)
	if err != nil {
		return nil, fmt.Errorf("parsing %s ABI: %w", name, err)
	}
	parsed[name] = a
	return a, nil
}

func toABI(entries []ABIEntry) (*abi.ABI, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	a, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func view(name string, inputs, outputs []ABIParam) ABIEntry {
	return ABIEntry{Name: name, Type: "function", Inputs: inputs, Outputs: outputs, StateMutability: "view"}
}

func write(name string, inputs, outputs []ABIParam) ABIEntry {
	return ABIEntry{Name: name, Type: "function", Inputs: inputs, Outputs: outputs, StateMutability: "nonpayable"}
}

func event(name string, inputs ...ABIParam) ABIEntry {
	return ABIEntry{Name: name, Type: "event", Inputs: inputs}
}

func params(pairs ...string) []ABIParam {
	out := make([]ABIParam, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, ABIParam{Name: pairs[i], Type: pairs[i+1]})
	}
	return out
}

func indexed(name, typ string) ABIParam {
	return ABIParam{Name: name, Type: typ, Indexed: true}
}
