package models

import "time"

// HeatRecord is the canonical descriptive record of a heat.
type HeatRecord struct {
	HeatID    int                `json:"heatId" yaml:"heatId"`
	Grade     string             `json:"grade" yaml:"grade"`
	Master    string             `json:"master" yaml:"master"`
	Furnace   string             `json:"furnace" yaml:"furnace"`
	Chemistry []ChemistryReading `json:"chemistry" yaml:"chemistry"`
	Stages    []StageRecord      `json:"stages" yaml:"stages"`
	Buckets   []Bucket           `json:"buckets" yaml:"buckets"`
	UpdatedAt time.Time          `json:"updatedAt" yaml:"-"`
}

// ChemistryReading is one element of the latest spectrometer sample, in weight percent.
type ChemistryReading struct {
	Element string  `json:"element" yaml:"element"`
	Actual  float64 `json:"actual" yaml:"actual"`
	Target  float64 `json:"target" yaml:"target"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
}

// InSpec reports whether the actual value lies within [Min, Max].
func (c ChemistryReading) InSpec() bool {
	return c.Actual >= c.Min && c.Actual <= c.Max
}

// StageRecord is one completed or planned stage.
type StageRecord struct {
	Name        Stage   `json:"name" yaml:"name"`
	DurationMin float64 `json:"durationMin" yaml:"durationMin"`
	EnergyKWh   float64 `json:"energyKwh" yaml:"energyKwh"`
}

// Bucket is a scrap charge bucket.
type Bucket struct {
	ID        int        `json:"id" yaml:"id"`
	Materials []Material `json:"materials" yaml:"materials"`
}

// Material is a named charge component.
type Material struct {
	Name string  `json:"name" yaml:"name"`
	Tons float64 `json:"tons" yaml:"tons"`
}

// TotalTons sums all bucket materials.
func (r HeatRecord) TotalTons() float64 {
	var total float64
	for _, b := range r.Buckets {
		for _, m := range b.Materials {
			total += m.Tons
		}
	}
	return total
}
