package metering

import (
	"encoding/json"
	"fmt"
	"os"
)

// Price is USD per one million tokens.
type Price struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// PriceTable maps a model identifier to its token prices.
type PriceTable map[string]Price

func DefaultPriceTable() PriceTable {
	return PriceTable{
		"text-embedding-3-small": {InputPerMillion: 0.02, OutputPerMillion: 0},
		"text-embedding-3-large": {InputPerMillion: 0.13, OutputPerMillion: 0},
		"gpt-4o":                 {InputPerMillion: 2.5, OutputPerMillion: 10},
		"gpt-4o-mini":            {InputPerMillion: 0.15, OutputPerMillion: 0.6},
		"gpt-4.1":                {InputPerMillion: 2.0, OutputPerMillion: 8.0},
		"gpt-4.1-mini":           {InputPerMillion: 0.4, OutputPerMillion: 1.6},
		"gpt-4.1-nano":           {InputPerMillion: 0.1, OutputPerMillion: 0.4},
	}
}

// ComputeCost is linear in both token counts. Unknown models cost 0 and
// negative counts are treated as 0, so the result is never negative.
func (t PriceTable) ComputeCost(model string, inputTokens, outputTokens int) float64 {
	price, ok := t[model]
	if !ok {
		return 0
	}

	in := float64(max(inputTokens, 0))
	out := float64(max(outputTokens, 0))

	cost := in/1_000_000*price.InputPerMillion + out/1_000_000*price.OutputPerMillion
	if cost < 0 {
		return 0
	}
	return cost
}

func (t PriceTable) Has(model string) bool {
	_, ok := t[model]
	return ok
}

func (t PriceTable) Clone() PriceTable {
	out := make(PriceTable, len(t))
	for model, price := range t {
		out[model] = price
	}
	return out
}

// Merge returns a copy of t with overrides applied on top.
func (t PriceTable) Merge(overrides PriceTable) PriceTable {
	out := t.Clone()
	for model, price := range overrides {
		out[model] = price
	}
	return out
}

func (t PriceTable) validate() error {
	for model, price := range t {
		if model == "" {
			return fmt.Errorf("empty model name in price table")
		}
		if price.InputPerMillion < 0 || price.OutputPerMillion < 0 {
			return fmt.Errorf("negative price for model %q", model)
		}
	}
	return nil
}

// LoadPriceTable reads a JSON object of model -> price and merges it over
// the default table.
func LoadPriceTable(path string) (PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("pricing file is empty: %s", path)
	}

	var overrides PriceTable
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse pricing JSON: %w", err)
	}

	if err := overrides.validate(); err != nil {
		return nil, fmt.Errorf("invalid pricing file %s: %w", path, err)
	}

	return DefaultPriceTable().Merge(overrides), nil
}
