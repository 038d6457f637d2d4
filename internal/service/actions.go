package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"imelt/internal/models"
)

// Bath and cost assumptions used to express action results in plant units.
const (
	heatSizeTons          = 100.0
	recarburizerRecovery  = 0.8
	recarburizerUSDPerKg  = 0.45
	electricityUSDPerKWh  = 0.11
	injectionCarbonUSDKg  = 0.38
	oxygenUSDPerNm3       = 0.12
	capacitorStepPF       = 0.04
	tempDropCPerMWMinute  = 4.0
	minEnergyKWhPerTon    = 330.0
	stabilisedFoamCeiling = 72.0
)

// paramSpec validates one numeric action parameter.
type paramSpec struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	// Default applies when the parameter is absent; NaN means "derive from state".
	Default float64 `json:"default"`
	Integer bool    `json:"integer,omitempty"`
}

type paramSchema []paramSpec

// actionParams holds the validated parameters by name.
type actionParams map[string]float64

// parse validates raw request fields against the schema. Unknown fields are ignored.
func (s paramSchema) parse(raw map[string]any) (actionParams, error) {
	out := make(actionParams, len(s))
	for _, spec := range s {
		v, present := raw[spec.Name]
		if !present || v == nil {
			out[spec.Name] = spec.Default
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, invalidParam("%s: %v", spec.Name, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalidParam("%s must be a finite number", spec.Name)
		}
		if spec.Integer && f != math.Trunc(f) {
			return nil, invalidParam("%s must be an integer, got %v", spec.Name, f)
		}
		if f < spec.Min || f > spec.Max {
			return nil, invalidParam("%s must be within [%g, %g], got %g", spec.Name, spec.Min, spec.Max, f)
		}
		out[spec.Name] = f
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// actionDef is one entry of the action registry.
type actionDef struct {
	Type     string
	Label    string
	Clears   models.ScenarioID
	Resolves string
	Params   paramSchema
	apply    func(st *models.HeatState, p actionParams) models.ActionResult
}

// ActionInfo is the public description of a registered action.
type ActionInfo struct {
	Type     string      `json:"type"`
	Label    string      `json:"label"`
	Clears   string      `json:"clears,omitempty"`
	Resolves string      `json:"resolves"`
	Params   []paramSpec `json:"params"`
}

var actionRegistry = []actionDef{
	{
		Type:     "adjust-carbon",
		Label:    "Adjust carbon to target",
		Resolves: insightCarbonLow,
		Params:   paramSchema{{Name: "targetCarbonPct", Min: 0.01, Max: 1.5, Default: math.NaN()}},
		apply:    applyAdjustCarbon,
	},
	{
		Type:     "optimize-energy",
		Label:    "Optimize energy profile",
		Clears:   models.ScenarioEnergySpike,
		Resolves: insightEnergySpike,
		Params:   paramSchema{{Name: "reductionPct", Min: 1, Max: 30, Default: 8}},
		apply:    applyOptimizeEnergy,
	},
	{
		Type:     "prevent-foam-collapse",
		Label:    "Stabilize slag foam",
		Clears:   models.ScenarioFoamCollapse,
		Resolves: insightFoamCollapse,
		Params:   paramSchema{{Name: "carbonKg", Min: 50, Max: 2000, Default: 400}},
		apply:    applyPreventFoamCollapse,
	},
	{
		Type:     "reduce-temperature",
		Label:    "Reduce bath temperature",
		Clears:   models.ScenarioTempRisk,
		Resolves: insightTempCaster,
		Params:   paramSchema{{Name: "targetC", Min: 1500, Max: CasterLimitC, Default: 1615}},
		apply:    applyReduceTemperature,
	},
	{
		Type:     "correct-power-factor",
		Label:    "Switch in capacitor steps",
		Clears:   models.ScenarioPowerFactor,
		Resolves: insightPowerFactor,
		Params:   paramSchema{{Name: "capacitorSteps", Min: 1, Max: 6, Default: 2, Integer: true}},
		apply:    applyCorrectPowerFactor,
	},
}

func lookupAction(actionType string) (actionDef, bool) {
	for _, def := range actionRegistry {
		if def.Type == actionType {
			return def, true
		}
	}
	return actionDef{}, false
}

// Actions lists the registered actions in registry order.
func Actions() []ActionInfo {
	out := make([]ActionInfo, 0, len(actionRegistry))
	for _, def := range actionRegistry {
		params := make([]paramSpec, 0, len(def.Params))
		for _, p := range def.Params {
			if math.IsNaN(p.Default) {
				p.Default = 0
			}
			params = append(params, p)
		}
		out = append(out, ActionInfo{
			Type:     def.Type,
			Label:    def.Label,
			Clears:   string(def.Clears),
			Resolves: def.Resolves,
			Params:   params,
		})
	}
	return out
}

// IsAction reports whether actionType is registered.
func IsAction(actionType string) bool {
	_, ok := lookupAction(actionType)
	return ok
}

func applyAdjustCarbon(st *models.HeatState, p actionParams) models.ActionResult {
	target := p["targetCarbonPct"]
	if math.IsNaN(target) {
		target = st.CarbonTargetPct
	}
	before := st.CarbonPct
	st.CarbonPct = round(target, 4)

	kg := 0.0
	if delta := target - before; delta > 0 {
		kg = round(delta/100*heatSizeTons*1000/recarburizerRecovery, 1)
	}
	return models.ActionResult{
		Message:          fmt.Sprintf("Carbon adjusted from %.3f%% to %.3f%%", before, st.CarbonPct),
		CostUSD:          round(kg*recarburizerUSDPerKg, 2),
		EstimatedMinutes: 4,
		CarbonAdjustment: &models.CarbonAdjustment{
			CarbonBeforePct: before,
			CarbonAfterPct:  st.CarbonPct,
			RecarburizerKg:  kg,
		},
	}
}

func applyOptimizeEnergy(st *models.HeatState, p actionParams) models.ActionResult {
	before := st.EnergyKWhPerTon
	after := round(math.Max(before*(1-p["reductionPct"]/100), minEnergyKWhPerTon), 1)
	if after > before {
		after = before
	}
	st.EnergyKWhPerTon = after
	if st.ActiveScenario == models.ScenarioEnergySpike {
		st.PowerFactor = round(clamp(st.PowerFactor+0.03, MinPowerFactor, MaxPowerFactor), 3)
	}
	saved := round((before-after)*heatSizeTons, 1)
	return models.ActionResult{
		Message:          fmt.Sprintf("Energy profile optimized: %.1f -> %.1f kWh/t", before, after),
		CostUSD:          0,
		EstimatedMinutes: 6,
		EnergyOptimization: &models.EnergyOptimization{
			EnergyBeforeKWhPerTon: before,
			EnergyAfterKWhPerTon:  after,
			SavedKWhPerHeat:       saved,
			SavingsUSD:            round(saved*electricityUSDPerKWh, 2),
		},
	}
}

func applyPreventFoamCollapse(st *models.HeatState, p actionParams) models.ActionResult {
	carbonKg := p["carbonKg"]
	before := st.FoamIndex
	after := round(math.Min(math.Max(before, FoamCollapseThreshold)+carbonKg/10, stabilisedFoamCeiling), 1)
	st.FoamIndex = after
	oxygen := round(carbonKg*0.9, 1)
	return models.ActionResult{
		Message:          fmt.Sprintf("Foam stabilized: index %.1f -> %.1f", before, after),
		CostUSD:          round(carbonKg*injectionCarbonUSDKg+oxygen*oxygenUSDPerNm3, 2),
		EstimatedMinutes: 3,
		FoamStabilization: &models.FoamStabilization{
			FoamBefore:     before,
			FoamAfter:      after,
			CarbonInjectKg: carbonKg,
			OxygenNm3:      oxygen,
		},
	}
}

func applyReduceTemperature(st *models.HeatState, p actionParams) models.ActionResult {
	before := st.TemperatureC
	after := math.Min(before, p["targetC"])
	st.TemperatureC = round(after, 1)
	st.TempSamples = []float64{st.TemperatureC}
	drop := before - st.TemperatureC
	mw := round(drop/tempDropCPerMWMinute, 2)
	return models.ActionResult{
		Message:          fmt.Sprintf("Temperature reduced from %.1f to %.1f C", before, st.TemperatureC),
		CostUSD:          0,
		EstimatedMinutes: round(math.Max(drop/10, 1), 1),
		TemperatureCorrection: &models.TemperatureCorrection{
			TempBeforeC: before,
			TempAfterC:  st.TemperatureC,
			PowerCutMW:  mw,
		},
	}
}

func applyCorrectPowerFactor(st *models.HeatState, p actionParams) models.ActionResult {
	steps := int(p["capacitorSteps"])
	before := st.PowerFactor
	st.PowerFactor = round(math.Min(before+capacitorStepPF*float64(steps), 0.98), 3)
	return models.ActionResult{
		Message:          fmt.Sprintf("Power factor corrected from %.3f to %.3f", before, st.PowerFactor),
		CostUSD:          round(15*float64(steps), 2),
		EstimatedMinutes: 1,
		PowerFactorCorrection: &models.PowerFactorCorrection{
			PowerFactorBefore: before,
			PowerFactorAfter:  st.PowerFactor,
			CapacitorSteps:    steps,
		},
	}
}
