package service

import (
	"math"

	"imelt/internal/models"
)

// scenarioDef is one entry of the scenario registry.
type scenarioDef struct {
	ID          models.ScenarioID
	Title       string
	Description string
	// InsightID is the alert the scenario is expected to raise.
	InsightID string
	Penalty   int
	perturb   func(st *models.HeatState)
}

// ScenarioInfo is the public description of a registered scenario.
type ScenarioInfo struct {
	ID          models.ScenarioID `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	InsightID   string            `json:"insightId,omitempty"`
}

var scenarioRegistry = []scenarioDef{
	{
		ID:          models.ScenarioEnergySpike,
		Title:       "Energy spike",
		Description: "Arc instability drives specific energy consumption above plan.",
		InsightID:   insightEnergySpike,
		Penalty:     15,
		perturb: func(st *models.HeatState) {
			st.EnergyKWhPerTon = round(math.Max(st.EnergyKWhPerTon+80, 450), 1)
			st.PowerFactor = round(clamp(st.PowerFactor-0.04, MinPowerFactor, MaxPowerFactor), 3)
		},
	},
	{
		ID:          models.ScenarioFoamCollapse,
		Title:       "Foam collapse",
		Description: "Slag foam collapses and exposes the electrodes to radiant heat.",
		InsightID:   insightFoamCollapse,
		Penalty:     25,
		perturb: func(st *models.HeatState) {
			st.FoamIndex = round(math.Min(st.FoamIndex*0.3, 20), 1)
		},
	},
	{
		ID:          models.ScenarioTempRisk,
		Title:       "Temperature risk",
		Description: "Bath temperature overshoots the caster limit.",
		InsightID:   insightTempCaster,
		Penalty:     20,
		perturb: func(st *models.HeatState) {
			st.TemperatureC = round(clamp(math.Max(st.TemperatureC+60, 1652), MinTempC, MaxTempC), 1)
			st.TempSamples = append(st.TempSamples, st.TemperatureC)
		},
	},
	{
		ID:          models.ScenarioPowerFactor,
		Title:       "Power factor drop",
		Description: "Reactive load pushes the power factor below the optimum band.",
		InsightID:   insightPowerFactor,
		Penalty:     10,
		perturb: func(st *models.HeatState) {
			st.PowerFactor = round(clamp(math.Min(st.PowerFactor-0.12, 0.75), MinPowerFactor, MaxPowerFactor), 3)
		},
	},
	{
		ID:          models.ScenarioNone,
		Title:       "Scenario cleared",
		Description: "Removes the active scenario without touching the metrics.",
		perturb:     func(*models.HeatState) {},
	},
}

func lookupScenario(id models.ScenarioID) (scenarioDef, bool) {
	for _, def := range scenarioRegistry {
		if def.ID == id {
			return def, true
		}
	}
	return scenarioDef{}, false
}

func scenarioPenalty(id models.ScenarioID) int {
	def, ok := lookupScenario(id)
	if !ok {
		return 0
	}
	return def.Penalty
}

// Scenarios lists the registered scenarios in registry order.
func Scenarios() []ScenarioInfo {
	out := make([]ScenarioInfo, 0, len(scenarioRegistry))
	for _, def := range scenarioRegistry {
		out = append(out, ScenarioInfo{ID: def.ID, Title: def.Title, Description: def.Description, InsightID: def.InsightID})
	}
	return out
}
