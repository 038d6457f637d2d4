package models

import "time"

// Stage is the furnace process stage of a heat.
type Stage string

const (
	StageMelt   Stage = "MELT"
	StageRefine Stage = "REFINE"
	StageTap    Stage = "TAP"
)

// Order returns the position of the stage in the MELT -> REFINE -> TAP sequence.
func (s Stage) Order() int {
	switch s {
	case StageMelt:
		return 0
	case StageRefine:
		return 1
	case StageTap:
		return 2
	default:
		return -1
	}
}

// ScenarioID tags an injected fault condition.
type ScenarioID string

const (
	ScenarioNone         ScenarioID = "none"
	ScenarioEnergySpike  ScenarioID = "energy-spike"
	ScenarioFoamCollapse ScenarioID = "foam-collapse"
	ScenarioTempRisk     ScenarioID = "temp-risk"
	ScenarioPowerFactor  ScenarioID = "power-factor"
)

// HeatState is the mutable simulation snapshot of one heat.
type HeatState struct {
	HeatID           int             `json:"heatId"`
	Seed             int64           `json:"seed"`
	Stage            Stage           `json:"stage"`
	TemperatureC     float64         `json:"temperature"`
	PowerFactor      float64         `json:"powerFactor"`
	FoamIndex        float64         `json:"foamIndex"`
	CarbonPct        float64         `json:"carbonPct"`
	CarbonTargetPct  float64         `json:"carbonTargetPct"`
	EnergyKWhPerTon  float64         `json:"energyKwhPerTon"`
	Confidence       int             `json:"confidence"` // 0..100
	ActiveScenario   ScenarioID      `json:"activeScenario"`
	Timeline         []TimelineEvent `json:"timeline"`
	ResolvedIssueIDs []string        `json:"resolvedIssueIds"`
	Ticks            int             `json:"ticks"`

	// Version increases on every mutation of the heat, including reset.
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`

	// TempSamples holds the most recent temperatures, oldest first.
	TempSamples []float64 `json:"-"`
}

// IsResolved reports whether the operator already acted on the insight id.
func (s HeatState) IsResolved(id string) bool {
	for _, r := range s.ResolvedIssueIDs {
		if r == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out to readers.
func (s HeatState) Clone() HeatState {
	out := s
	out.Timeline = append([]TimelineEvent(nil), s.Timeline...)
	out.ResolvedIssueIDs = append([]string(nil), s.ResolvedIssueIDs...)
	out.TempSamples = append([]float64(nil), s.TempSamples...)
	if out.Timeline == nil {
		out.Timeline = []TimelineEvent{}
	}
	if out.ResolvedIssueIDs == nil {
		out.ResolvedIssueIDs = []string{}
	}
	return out
}

// Timeline event kinds.
const (
	TimelineStart    = "START"
	TimelineStage    = "STAGE"
	TimelineEnergy   = "ENERGY"
	TimelineScenario = "SCENARIO"
	TimelineAction   = "ACTION"
)

// TimelineEvent is one entry of a heat's stage/energy history.
type TimelineEvent struct {
	ID              string    `json:"id" csv:"id"`
	At              time.Time `json:"at" csv:"at"`
	Tick            int       `json:"tick" csv:"tick"`
	Kind            string    `json:"kind" csv:"kind"`
	Stage           Stage     `json:"stage" csv:"stage"`
	Message         string    `json:"message" csv:"message"`
	TemperatureC    float64   `json:"temperature" csv:"temperature_c"`
	EnergyKWhPerTon float64   `json:"energyKwhPerTon" csv:"energy_kwh_per_ton"`
}
