package models

// Severity ranks insights; higher severities are evaluated first.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (0) to critical (3); unknown values rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Insight is an operator-facing finding computed from one HeatState snapshot.
// Confidence is an integer percentage (0..100).
type Insight struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	Why         []string `json:"why"`
	Action      []string `json:"action"`
	Severity    Severity `json:"severity"`
	Actionable  bool     `json:"actionable"`
	ActionType  string   `json:"actionType,omitempty"`
	ActionLabel string   `json:"actionLabel,omitempty"`
	Confidence  int      `json:"confidence"`
}

// Insight generation modes.
const (
	ModeDeterministic = "deterministic"
	ModeAI            = "ai"
)
