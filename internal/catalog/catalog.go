// Package catalog holds the demo heat records shipped with the binary.
package catalog

import (
	_ "embed"
	"fmt"

	"imelt/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed heats.yml
var heatsYAML []byte

// Load parses the embedded heat catalog.
func Load() ([]models.HeatRecord, error) {
	return Parse(heatsYAML)
}

// Parse decodes a YAML list of heat records and rejects duplicates or missing ids.
func Parse(data []byte) ([]models.HeatRecord, error) {
	var records []models.HeatRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse heat catalog: %w", err)
	}
	seen := make(map[int]struct{}, len(records))
	for i, r := range records {
		if r.HeatID <= 0 {
			return nil, fmt.Errorf("heat catalog entry %d: heatId must be positive", i)
		}
		if _, dup := seen[r.HeatID]; dup {
			return nil, fmt.Errorf("heat catalog entry %d: duplicate heatId %d", i, r.HeatID)
		}
		seen[r.HeatID] = struct{}{}
	}
	return records, nil
}
