// Package contracts bundles the ABI definitions for the market factory and
// market contracts. The default ABIs are embedded in the binary; a directory
// of compiled artifacts can be supplied instead for chains running a newer
// protocol build.
package contracts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var abiFS embed.FS

// Interfaces holds the parsed contract interface definitions used by the
// scanner: the factory that emits MarketDeployed and the market contract
// whose status/outcome are reconciled.
type Interfaces struct {
	Factory abi.ABI
	Market  abi.ABI
}

// Load parses the contract ABIs. When dir is empty the embedded definitions
// are used; otherwise market_factory.json and market.json are read from dir.
// Files may be either a bare ABI array or a full compiler artifact with an
// "abi" field. Any failure here is a configuration error and must abort the
// process before scanning starts.
func Load(dir string) (Interfaces, error) {
	factory, err := load(dir, "market_factory.json")
	if err != nil {
		return Interfaces{}, fmt.Errorf("contracts: factory abi: %w", err)
	}
	market, err := load(dir, "market.json")
	if err != nil {
		return Interfaces{}, fmt.Errorf("contracts: market abi: %w", err)
	}

	if _, ok := factory.Events["MarketDeployed"]; !ok {
		return Interfaces{}, fmt.Errorf("contracts: factory abi has no MarketDeployed event")
	}
	if _, ok := market.Methods["status"]; !ok {
		return Interfaces{}, fmt.Errorf("contracts: market abi has no status() method")
	}

	return Interfaces{Factory: factory, Market: market}, nil
}

func load(dir, name string) (abi.ABI, error) {
	var raw []byte
	var err error
	if dir == "" {
		raw, err = abiFS.ReadFile("abi/" + name)
	} else {
		raw, err = os.ReadFile(filepath.Join(dir, name))
	}
	if err != nil {
		return abi.ABI{}, err
	}

	// Compiler artifacts wrap the ABI in an object; accept both shapes.
	var artifact struct {
		Abi json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(raw, &artifact); err == nil && len(artifact.Abi) > 0 {
		raw = artifact.Abi
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return parsed, nil
}
