package service

import (
	"testing"

	"imelt/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nominalState fires no rule.
func nominalState() models.HeatState {
	return models.HeatState{
		HeatID:           demoHeat,
		Stage:            models.StageMelt,
		TemperatureC:     1520,
		PowerFactor:      0.9,
		FoamIndex:        65,
		CarbonPct:        0.17,
		CarbonTargetPct:  CarbonTargetPct,
		EnergyKWhPerTon:  380,
		Confidence:       81,
		ActiveScenario:   models.ScenarioNone,
		Timeline:         []models.TimelineEvent{},
		ResolvedIssueIDs: []string{},
		TempSamples:      []float64{1520, 1519.5, 1520.2, 1520},
	}
}

func TestGenerate_EachRule(t *testing.T) {
	cases := []struct {
		name       string
		mutate     func(st *models.HeatState)
		wantID     string
		wantSev    models.Severity
		wantAction string
	}{
		{"nominal", func(*models.HeatState) {}, insightNominal, models.SeverityLow, ""},
		{"foam", func(st *models.HeatState) { st.FoamIndex = 12 }, insightFoamCollapse, models.SeverityCritical, "prevent-foam-collapse"},
		{"caster", func(st *models.HeatState) { st.TemperatureC = 1655 }, insightTempCaster, models.SeverityCritical, "reduce-temperature"},
		{"energy", func(st *models.HeatState) { st.EnergyKWhPerTon = 455 }, insightEnergySpike, models.SeverityHigh, "optimize-energy"},
		{"trend", func(st *models.HeatState) {
			st.TemperatureC = 1612
			st.TempSamples = []float64{1600, 1602, 1604, 1606, 1608, 1610, 1612}
		}, insightTempRising, models.SeverityMedium, "reduce-temperature"},
		{"power factor", func(st *models.HeatState) { st.PowerFactor = 0.78 }, insightPowerFactor, models.SeverityMedium, "correct-power-factor"},
		{"carbon", func(st *models.HeatState) { st.CarbonPct = 0.11 }, insightCarbonLow, models.SeverityMedium, "adjust-carbon"},
	}

	gen := NewInsightGenerator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := nominalState()
			tc.mutate(&st)
			in := gen.Generate(st)
			assert.Equal(t, tc.wantID, in.ID)
			assert.Equal(t, tc.wantSev, in.Severity)
			assert.Equal(t, tc.wantAction, in.ActionType)
			assert.Equal(t, tc.wantAction != "", in.Actionable)
			if in.Actionable {
				assert.NotEmpty(t, in.ActionLabel)
				assert.True(t, IsAction(in.ActionType), "insight points to an unregistered action %q", in.ActionType)
			}
			assert.NotEmpty(t, in.Title)
			assert.NotEmpty(t, in.Message)
			assert.NotEmpty(t, in.Why)
			assert.NotEmpty(t, in.Action)
			assert.GreaterOrEqual(t, in.Confidence, 0)
			assert.LessOrEqual(t, in.Confidence, 100)
		})
	}
}

func TestGenerate_NominalCarriesStateConfidence(t *testing.T) {
	st := nominalState()
	st.Confidence = 77
	assert.Equal(t, 77, NewInsightGenerator().Generate(st).Confidence)
}

func TestGenerate_HighestSeverityFirst(t *testing.T) {
	st := nominalState()
	st.PowerFactor = 0.7
	st.EnergyKWhPerTon = 470
	st.FoamIndex = 10

	gen := NewInsightGenerator()
	assert.Equal(t, insightFoamCollapse, gen.Generate(st).ID)

	ranked := gen.Evaluate(st)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{insightFoamCollapse, insightEnergySpike, insightPowerFactor},
		[]string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
	for i := 1; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i].Severity.Rank(), ranked[i-1].Severity.Rank())
	}
}

func TestGenerate_SkipsResolvedIssues(t *testing.T) {
	st := nominalState()
	st.FoamIndex = 10
	st.PowerFactor = 0.7
	st.ResolvedIssueIDs = []string{insightFoamCollapse}

	gen := NewInsightGenerator()
	in := gen.Generate(st)
	assert.NotEqual(t, insightFoamCollapse, in.ID)
	assert.Equal(t, insightPowerFactor, in.ID)

	for _, r := range gen.Evaluate(st) {
		assert.NotEqual(t, insightFoamCollapse, r.ID)
	}

	st.ResolvedIssueIDs = append(st.ResolvedIssueIDs, insightPowerFactor)
	assert.Equal(t, insightNominal, gen.Generate(st).ID)
	assert.Empty(t, gen.Evaluate(st))
}

func TestGenerate_IsIdempotent(t *testing.T) {
	st := nominalState()
	st.TemperatureC = 1650
	gen := NewInsightGenerator()
	assert.Equal(t, gen.Generate(st), gen.Generate(st))
	assert.Equal(t, gen.Evaluate(st), gen.Evaluate(st))
}

func TestGenerate_DoesNotMutateSnapshot(t *testing.T) {
	st := nominalState()
	st.FoamIndex = 5
	before := st.Clone()
	_ = NewInsightGenerator().Evaluate(st)
	assert.Equal(t, before, st)
}

func TestTemperatureSlope(t *testing.T) {
	assert.Equal(t, 0.0, temperatureSlope(nil))
	assert.Equal(t, 0.0, temperatureSlope([]float64{1600, 1700, 1800}))
	assert.InDelta(t, 2.0, temperatureSlope([]float64{1600, 1602, 1604, 1606}), 1e-9)
	assert.InDelta(t, -0.5, temperatureSlope([]float64{1610, 1609.5, 1609, 1608.5, 1608}), 1e-9)
}

func TestTrendRule_NeedsHotBath(t *testing.T) {
	st := nominalState()
	st.TemperatureC = 1560
	st.TempSamples = []float64{1540, 1545, 1550, 1555, 1560}
	assert.Equal(t, insightNominal, NewInsightGenerator().Generate(st).ID)
}

func TestEveryScenarioRaisesItsInsight(t *testing.T) {
	gen := NewInsightGenerator()
	for _, sc := range Scenarios() {
		if sc.InsightID == "" {
			continue
		}
		t.Run(string(sc.ID), func(t *testing.T) {
			def, ok := lookupScenario(sc.ID)
			require.True(t, ok)
			st := nominalState()
			def.perturb(&st)
			ids := []string{}
			for _, in := range gen.Evaluate(st) {
				ids = append(ids, in.ID)
			}
			assert.Contains(t, ids, sc.InsightID)
		})
	}
}

func TestEveryActionResolvesARule(t *testing.T) {
	ruleIDs := map[string]bool{}
	for _, r := range insightRules {
		ruleIDs[r.id] = true
	}
	for _, a := range Actions() {
		assert.True(t, ruleIDs[a.Resolves], "%s resolves unknown insight %q", a.Type, a.Resolves)
	}
}
