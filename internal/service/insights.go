package service

import (
	"fmt"

	"imelt/internal/models"

	"gonum.org/v1/gonum/stat"
)

// Insight ids. They double as de-duplication keys in HeatState.ResolvedIssueIDs.
const (
	insightFoamCollapse = "foam-collapse-critical"
	insightTempCaster   = "temperature-caster-limit-critical"
	insightEnergySpike  = "energy-spike-high"
	insightTempRising   = "temperature-rising-medium"
	insightPowerFactor  = "power-factor-low-medium"
	insightCarbonLow    = "carbon-below-target-medium"
	insightNominal      = "nominal-operation-low"
)

const (
	// trendMinSamples is the fewest samples the slope rule will fit.
	trendMinSamples = 4
	// trendSlopeCPerTick is the warming rate that triggers the trend rule.
	trendSlopeCPerTick = 1.5
	trendFloorC        = 1600.0
)

// insightRule is one entry of the fixed, ordered rule set.
type insightRule struct {
	id       string
	severity models.Severity
	fires    func(st models.HeatState) bool
	build    func(st models.HeatState) models.Insight
}

// insightRules are evaluated top to bottom; order is highest severity first and must not change at runtime.
var insightRules = []insightRule{
	{
		id:       insightFoamCollapse,
		severity: models.SeverityCritical,
		fires:    func(st models.HeatState) bool { return st.FoamIndex < FoamCollapseThreshold },
		build: func(st models.HeatState) models.Insight {
			return models.Insight{
				Title:   "Slag foam collapse",
				Message: fmt.Sprintf("Foam index %.1f is below the collapse threshold of %.0f.", st.FoamIndex, FoamCollapseThreshold),
				Why: []string{
					"Electrodes are exposed to radiant heat",
					"Refractory wear and energy losses rise sharply",
					fmt.Sprintf("Foam index dropped to %.1f", st.FoamIndex),
				},
				Action: []string{
					"Inject carbon fines through the slag door",
					"Trim oxygen lance flow until foam recovers",
				},
				ActionType:  "prevent-foam-collapse",
				ActionLabel: "Stabilize foam",
				Confidence:  92,
			}
		},
	},
	{
		id:       insightTempCaster,
		severity: models.SeverityCritical,
		fires:    func(st models.HeatState) bool { return st.TemperatureC > CasterLimitC },
		build: func(st models.HeatState) models.Insight {
			return models.Insight{
				Title:   "Temperature above caster limit",
				Message: fmt.Sprintf("Bath at %.1f C exceeds the caster limit of %.0f C.", st.TemperatureC, CasterLimitC),
				Why: []string{
					"Superheat at the caster will exceed the mould window",
					"Overheated steel raises breakout risk",
				},
				Action: []string{
					"Reduce the active power tap",
					"Add cooling scrap if tapping is imminent",
				},
				ActionType:  "reduce-temperature",
				ActionLabel: "Reduce temperature",
				Confidence:  89,
			}
		},
	},
	{
		id:       insightEnergySpike,
		severity: models.SeverityHigh,
		fires:    func(st models.HeatState) bool { return st.EnergyKWhPerTon > EnergySpikeKWhPerTon },
		build: func(st models.HeatState) models.Insight {
			return models.Insight{
				Title:   "Energy consumption spike",
				Message: fmt.Sprintf("Specific energy %.1f kWh/t is above the %.0f kWh/t plan.", st.EnergyKWhPerTon, EnergySpikeKWhPerTon),
				Why: []string{
					"Arc is unstable or poorly covered",
					fmt.Sprintf("Power factor is %.3f", st.PowerFactor),
				},
				Action: []string{
					"Switch to the optimized power profile",
					"Check electrode regulation",
				},
				ActionType:  "optimize-energy",
				ActionLabel: "Optimize energy",
				Confidence:  86,
			}
		},
	},
	{
		id:       insightTempRising,
		severity: models.SeverityMedium,
		fires: func(st models.HeatState) bool {
			return st.TemperatureC > trendFloorC && temperatureSlope(st.TempSamples) > trendSlopeCPerTick
		},
		build: func(st models.HeatState) models.Insight {
			return models.Insight{
				Title:   "Temperature rising quickly",
				Message: fmt.Sprintf("Bath is warming at %.1f C per tick toward the caster limit.", temperatureSlope(st.TempSamples)),
				Why: []string{
					fmt.Sprintf("Fitted slope over the last %d samples", len(st.TempSamples)),
					fmt.Sprintf("Current temperature %.1f C", st.TemperatureC),
				},
				Action: []string{
					"Lower the power tap before the limit is reached",
				},
				ActionType:  "reduce-temperature",
				ActionLabel: "Reduce temperature",
				Confidence:  74,
			}
		},
	},
	{
		id:       insightPowerFactor,
		severity: models.SeverityMedium,
		fires:    func(st models.HeatState) bool { return st.PowerFactor < PowerFactorOptimum },
		build: func(st models.HeatState) models.Insight {
			return models.Insight{
				Title:   "Power factor below optimum",
				Message: fmt.Sprintf("Power factor %.3f is below the %.2f optimum.", st.PowerFactor, PowerFactorOptimum),
				Why: []string{
					"Reactive power draws line current without melting",
					"Utility penalties apply below the optimum band",
				},
				Action: []string{
					"Switch in static VAR compensation steps",
				},
				ActionType:  "correct-power-factor",
				ActionLabel: "Correct power factor",
				Confidence:  81,
			}
		},
	},
	{
		id:       insightCarbonLow,
		severity: models.SeverityMedium,
		fires: func(st models.HeatState) bool {
			c := carbonReading(st)
			return !c.InSpec() && c.Actual < c.Target
		},
		build: func(st models.HeatState) models.Insight {
			return models.Insight{
				Title:   "Carbon below target",
				Message: fmt.Sprintf("Carbon %.3f%% is below the %.3f%% aim.", st.CarbonPct, st.CarbonTargetPct),
				Why: []string{
					"Grade chemistry will fall out of specification",
					"Late recarburization costs yield",
				},
				Action: []string{
					"Add recarburizer to reach the aim",
				},
				ActionType:  "adjust-carbon",
				ActionLabel: "Adjust carbon",
				Confidence:  84,
			}
		},
	},
}

// InsightGenerator maps a HeatState snapshot to insights. It is pure and safe for concurrent use.
type InsightGenerator struct {
	rules []insightRule
}

func NewInsightGenerator() *InsightGenerator {
	return &InsightGenerator{rules: insightRules}
}

// Evaluate returns every firing rule whose id is not resolved, in rule order.
func (g *InsightGenerator) Evaluate(st models.HeatState) []models.Insight {
	var out []models.Insight
	for _, r := range g.rules {
		if st.IsResolved(r.id) || !r.fires(st) {
			continue
		}
		out = append(out, r.materialize(st))
	}
	return out
}

// Generate returns the first firing unresolved rule, or the nominal insight.
func (g *InsightGenerator) Generate(st models.HeatState) models.Insight {
	for _, r := range g.rules {
		if st.IsResolved(r.id) || !r.fires(st) {
			continue
		}
		return r.materialize(st)
	}
	return nominalInsight(st)
}

func (r insightRule) materialize(st models.HeatState) models.Insight {
	in := r.build(st)
	in.ID = r.id
	in.Severity = r.severity
	in.Actionable = in.ActionType != ""
	in.Confidence = clampInt(in.Confidence, 0, 100)
	return in
}

func nominalInsight(st models.HeatState) models.Insight {
	return models.Insight{
		ID:      insightNominal,
		Title:   "Nominal operation",
		Message: fmt.Sprintf("Heat %d is running within all monitored limits in %s.", st.HeatID, st.Stage),
		Why: []string{
			fmt.Sprintf("Temperature %.1f C, power factor %.3f, foam index %.1f", st.TemperatureC, st.PowerFactor, st.FoamIndex),
		},
		Action:     []string{"Continue the current practice"},
		Severity:   models.SeverityLow,
		Confidence: st.Confidence,
	}
}

// temperatureSlope fits a least-squares line through the samples and returns °C per tick.
func temperatureSlope(samples []float64) float64 {
	if len(samples) < trendMinSamples {
		return 0
	}
	xs := make([]float64, len(samples))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, samples, nil, false)
	return beta
}
