// Package snapshot loads planning inputs from YAML or JSON files.
//
// Documents are parsed with yaml.v3 (JSON is accepted as YAML) into generic
// values and then decoded through the JSON shapes of the domain types, so a
// file and a gRPC payload carrying the same document decode identically.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solatis/waveplanner/internal/compare"
	"github.com/solatis/waveplanner/internal/types"
)

// Scenario is a self-contained offline planning input.
type Scenario struct {
	StockPoints []types.StockPoint `json:"stock_points"`
	Orders      []types.Order      `json:"orders"`
	Strategies  []compare.Entry    `json:"strategies"`
}

// Decode parses one YAML or JSON document from r into dst.
func Decode(r io.Reader, dst any) error {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return fmt.Errorf("empty document")
		}
		return fmt.Errorf("parse document: %w", err)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("document is not representable as JSON: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Load reads path into dst.
func Load(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Decode(f, dst); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadOrders reads an order list. The document is either a bare list or a
// mapping with an "orders" key.
func LoadOrders(path string) ([]types.Order, error) {
	var orders []types.Order
	if err := loadList(path, "orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// LoadStockPoints reads a stock point list, bare or under "stock_points".
func LoadStockPoints(path string) ([]types.StockPoint, error) {
	var points []types.StockPoint
	if err := loadList(path, "stock_points", &points); err != nil {
		return nil, err
	}
	return points, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	var s Scenario
	if err := Load(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func loadList(path, key string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var probe yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%s: parse document: %w", path, err)
	}
	if len(probe.Content) > 0 && probe.Content[0].Kind == yaml.MappingNode {
		wrapped := map[string]json.RawMessage{}
		if err := Decode(bytes.NewReader(data), &wrapped); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		raw, ok := wrapped[key]
		if !ok {
			return fmt.Errorf("%s: missing %q", path, key)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%s: decode %s: %w", path, key, err)
		}
		return nil
	}

	if err := Decode(bytes.NewReader(data), dst); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
