package models

// ActionResult is the common envelope returned by every remediation.
// Exactly one of the embedded variants is set; its fields are flattened into the JSON object.
type ActionResult struct {
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
	Confidence       int     `json:"confidence"`
	ResolvedIssueID  string  `json:"resolvedIssueId"`
	CostUSD          float64 `json:"costUsd"`
	EstimatedMinutes float64 `json:"estimatedMinutes"`

	*CarbonAdjustment
	*EnergyOptimization
	*FoamStabilization
	*TemperatureCorrection
	*PowerFactorCorrection
}

// CarbonAdjustment is the result of adjust-carbon.
type CarbonAdjustment struct {
	CarbonBeforePct float64 `json:"carbonBeforePct"`
	CarbonAfterPct  float64 `json:"carbonAfterPct"`
	RecarburizerKg  float64 `json:"recarburizerKg"`
}

// EnergyOptimization is the result of optimize-energy.
type EnergyOptimization struct {
	EnergyBeforeKWhPerTon float64 `json:"energyBeforeKwhPerTon"`
	EnergyAfterKWhPerTon  float64 `json:"energyAfterKwhPerTon"`
	SavedKWhPerHeat       float64 `json:"savedKwhPerHeat"`
	SavingsUSD            float64 `json:"savingsUsd"`
}

// FoamStabilization is the result of prevent-foam-collapse.
type FoamStabilization struct {
	FoamBefore     float64 `json:"foamBefore"`
	FoamAfter      float64 `json:"foamAfter"`
	CarbonInjectKg float64 `json:"carbonInjectKg"`
	OxygenNm3      float64 `json:"oxygenNm3"`
}

// TemperatureCorrection is the result of reduce-temperature.
type TemperatureCorrection struct {
	TempBeforeC float64 `json:"tempBeforeC"`
	TempAfterC  float64 `json:"tempAfterC"`
	PowerCutMW  float64 `json:"powerCutMw"`
}

// PowerFactorCorrection is the result of correct-power-factor.
type PowerFactorCorrection struct {
	PowerFactorBefore float64 `json:"powerFactorBefore"`
	PowerFactorAfter  float64 `json:"powerFactorAfter"`
	CapacitorSteps    int     `json:"capacitorSteps"`
}

// ScenarioResult describes an injected scenario and the state it produced.
type ScenarioResult struct {
	Name        ScenarioID `json:"name"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	State       HeatState  `json:"state"`
}
