package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"imelt/internal/logger"
	"imelt/internal/metrics"
	"imelt/internal/models"

	"google.golang.org/genai"
)

// DefaultAITimeout bounds one completion call when none is configured.
const DefaultAITimeout = 8 * time.Second

var errAIUnavailable = errors.New("ai completion is not configured")

// Completer sends one prompt to a text-completion backend.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GenAICompleter is a Completer backed by the Gemini API.
type GenAICompleter struct {
	client *genai.Client
	model  string
}

// NewGenAICompleter creates a Gemini client for the given key and model.
func NewGenAICompleter(ctx context.Context, apiKey, model string) (*GenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAICompleter{client: client, model: model}, nil
}

func (c *GenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("genai generate: empty response")
	}
	return text, nil
}

// InsightReport is the body of GET /api/insights/:heatId.
type InsightReport struct {
	HeatID    int       `json:"heatId"`
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`
	Fallback  bool      `json:"fallback"`
	// Error carries the upstream failure that caused a fallback.
	Error           string           `json:"error,omitempty"`
	Insight         models.Insight   `json:"insight"`
	Ranked          []models.Insight `json:"ranked"`
	SimulationState models.HeatState `json:"simulationState"`
}

// ChatReply is the body of POST /api/ai/chat.
type ChatReply struct {
	HeatID    int       `json:"heatId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`
	Fallback  bool      `json:"fallback"`
	Error     string    `json:"error,omitempty"`
	Reply     string    `json:"reply"`
	// Insight is the deterministic finding the fallback reply was built from.
	Insight *models.Insight `json:"insight,omitempty"`
}

// InsightService produces insights for running heats, optionally through an AI completer.
type InsightService struct {
	sim     *SimulatorService
	gen     *InsightGenerator
	ai      Completer
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time
}

// NewInsightService wires the generator. ai may be nil, in which case AI mode always falls back.
func NewInsightService(sim *SimulatorService, ai Completer, timeout time.Duration, log *logger.Logger) *InsightService {
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &InsightService{
		sim:     sim,
		gen:     NewInsightGenerator(),
		ai:      ai,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
}

// Generate computes the insight for heatID. Unknown modes are rejected; AI failures fall back.
func (s *InsightService) Generate(ctx context.Context, heatID int, mode string) (InsightReport, error) {
	switch mode {
	case "":
		mode = models.ModeDeterministic
	case models.ModeDeterministic, models.ModeAI:
	default:
		return InsightReport{}, invalidParam("mode must be %q or %q, got %q", models.ModeDeterministic, models.ModeAI, mode)
	}
	st, err := s.sim.Status(heatID)
	if err != nil {
		return InsightReport{}, err
	}

	ranked := s.gen.Evaluate(st)
	if ranked == nil {
		ranked = []models.Insight{}
	}
	report := InsightReport{
		HeatID:          heatID,
		Timestamp:       s.now().UTC(),
		Mode:            models.ModeDeterministic,
		Insight:         s.gen.Generate(st),
		Ranked:          ranked,
		SimulationState: st,
	}

	if mode == models.ModeAI {
		in, err := s.aiInsight(ctx, st, report.Insight)
		if err != nil {
			s.log.Warnw("ai_insight_fallback", "heat_id", heatID, "err", err)
			report.Fallback = true
			report.Error = err.Error()
		} else {
			report.Mode = models.ModeAI
			report.Insight = in
		}
	}
	metrics.ObserveInsight(mode, report.Fallback)
	return report, nil
}

// Chat answers a free-text operator question about heatID. heatID 0 means the current heat.
func (s *InsightService) Chat(ctx context.Context, heatID int, message string) (ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatReply{}, invalidParam("message is required")
	}

	var (
		st  models.HeatState
		err error
	)
	if heatID != 0 {
		if st, err = s.sim.Status(heatID); err != nil {
			return ChatReply{}, err
		}
	} else if cur, ok := s.sim.Current(); ok {
		st = cur
	}

	reply := ChatReply{HeatID: st.HeatID, Timestamp: s.now().UTC(), Mode: models.ModeAI}
	text, err := s.complete(ctx, chatPrompt(st, message))
	if err == nil {
		reply.Reply = text
		metrics.ObserveInsight(models.ModeAI, false)
		return reply, nil
	}

	s.log.Warnw("ai_chat_fallback", "heat_id", st.HeatID, "err", err)
	reply.Mode = models.ModeDeterministic
	reply.Fallback = true
	reply.Error = err.Error()
	if st.HeatID != 0 {
		in := s.gen.Generate(st)
		reply.Insight = &in
		reply.Reply = fmt.Sprintf("%s. %s", in.Title, in.Message)
	} else {
		reply.Reply = "No heat is running. Start a demo heat to get process guidance."
	}
	metrics.ObserveInsight(models.ModeAI, true)
	return reply, nil
}

func (s *InsightService) complete(ctx context.Context, prompt string) (string, error) {
	if s.ai == nil {
		return "", errAIUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ai.Complete(ctx, prompt)
}

// aiReply is the JSON shape the model is asked to return.
type aiReply struct {
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Why        []string `json:"why"`
	Action     []string `json:"action"`
	Severity   string   `json:"severity"`
	Confidence float64  `json:"confidence"`
}

// aiInsight asks the completer to explain the deterministic finding. The id and
// action binding stay those of the rule so de-duplication keeps working.
func (s *InsightService) aiInsight(ctx context.Context, st models.HeatState, base models.Insight) (models.Insight, error) {
	text, err := s.complete(ctx, insightPrompt(st, base))
	if err != nil {
		return models.Insight{}, err
	}
	var r aiReply
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &r); err != nil {
		return models.Insight{}, fmt.Errorf("malformed ai reply: %w", err)
	}
	if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Message) == "" {
		return models.Insight{}, fmt.Errorf("malformed ai reply: title and message are required")
	}

	in := base
	in.Title = r.Title
	in.Message = r.Message
	if len(r.Why) > 0 {
		in.Why = r.Why
	}
	if len(r.Action) > 0 {
		in.Action = r.Action
	}
	if sev := models.Severity(strings.ToLower(r.Severity)); sev.Rank() >= 0 {
		in.Severity = sev
	}
	in.Confidence = normalizeConfidence(r.Confidence, base.Confidence)
	return in, nil
}

// normalizeConfidence converts a model-reported confidence to an integer percentage.
// Values in (0, 1] are fractions; zero or negative values keep def.
func normalizeConfidence(v float64, def int) int {
	switch {
	case v <= 0:
		return def
	case v <= 1:
		return clampInt(int(round(v*100, 0)), 0, 100)
	default:
		return clampInt(int(round(v, 0)), 0, 100)
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func snapshotJSON(st models.HeatState) string {
	b, err := json.Marshal(struct {
		HeatID          int               `json:"heatId"`
		Stage           models.Stage      `json:"stage"`
		TemperatureC    float64           `json:"temperatureC"`
		PowerFactor     float64           `json:"powerFactor"`
		FoamIndex       float64           `json:"foamIndex"`
		CarbonPct       float64           `json:"carbonPct"`
		CarbonTargetPct float64           `json:"carbonTargetPct"`
		EnergyKWhPerTon float64           `json:"energyKwhPerTon"`
		ActiveScenario  models.ScenarioID `json:"activeScenario"`
		Confidence      int               `json:"confidence"`
	}{
		st.HeatID, st.Stage, st.TemperatureC, st.PowerFactor, st.FoamIndex,
		st.CarbonPct, st.CarbonTargetPct, st.EnergyKWhPerTon, st.ActiveScenario, st.Confidence,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

func insightPrompt(st models.HeatState, base models.Insight) string {
	var b strings.Builder
	b.WriteString("You are a process engineer advising an electric arc furnace operator.\n")
	b.WriteString("Current heat snapshot (JSON):\n")
	b.WriteString(snapshotJSON(st))
	fmt.Fprintf(&b, "\nRule engine finding: %s (%s): %s\n", base.Title, base.Severity, base.Message)
	b.WriteString("Reply with JSON only, no prose, using the keys ")
	b.WriteString(`"title", "message", "why" (array of strings), "action" (array of strings), "severity" (low|medium|high|critical), "confidence" (0..1).`)
	return b.String()
}

func chatPrompt(st models.HeatState, message string) string {
	var b strings.Builder
	b.WriteString("You are a process engineer advising an electric arc furnace operator. Answer briefly.\n")
	if st.HeatID != 0 {
		b.WriteString("Current heat snapshot (JSON):\n")
		b.WriteString(snapshotJSON(st))
		b.WriteString("\n")
	}
	b.WriteString("Operator question: ")
	b.WriteString(message)
	return b.String()
}
