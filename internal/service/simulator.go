package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"imelt/internal/logger"
	"imelt/internal/metrics"
	"imelt/internal/models"
	"imelt/internal/repository"

	"github.com/google/uuid"
)

// ----------- Simulation constants -----------
const (
	MinTempC     = 1400.0
	MaxTempC     = 1680.0
	CasterLimitC = 1640.0

	MinPowerFactor     = 0.5
	MaxPowerFactor     = 1.0
	PowerFactorOptimum = 0.85

	FoamCollapseThreshold = 30.0
	EnergySpikeKWhPerTon  = 430.0
	CarbonTargetPct       = 0.17
	CarbonTolerancePct    = 0.03

	MeltTicks   = 30 // ticks spent in MELT before REFINE
	RefineTicks = 60 // ticks spent in REFINE before TAP

	MaxConfidence  = 95
	ConfidenceStep = 10 // per resolved issue

	tempSampleWindow = 12
)

// stage set-points the metrics relax toward when no scenario pushes them.
var stageTempTargetC = map[models.Stage]float64{
	models.StageMelt:   1590,
	models.StageRefine: 1615,
	models.StageTap:    1625,
}

const (
	nominalPowerFactor = 0.9
	nominalFoamIndex   = 65.0
	nominalEnergy      = 380.0
	relaxRate          = 0.05
	scenarioPullRate   = 0.25
)

// Publisher receives snapshots after every mutation. Implementations must not block.
type Publisher interface {
	PublishState(st models.HeatState)
	PublishInsight(heatID int, in models.Insight)
}

type nopPublisher struct{}

func (nopPublisher) PublishState(models.HeatState) {}
func (nopPublisher) PublishInsight(int, models.Insight) {}

// session owns one heat's state. mu serializes ticks, scenarios and actions on the heat.
type session struct {
	mu             sync.Mutex
	state          models.HeatState
	rng            *rand.Rand
	baseConfidence int
}

// SimulatorService is the per-process registry of demo heats.
type SimulatorService struct {
	mu       sync.RWMutex
	sessions map[int]*session
	current  int

	journal      repository.EventRepo
	publisher    Publisher
	insights     *InsightGenerator
	insightEvery int
	log          *logger.Logger
	now          func() time.Time
}

// SimulatorOption customises a SimulatorService.
type SimulatorOption func(*SimulatorService)

// WithPublisher sets the push target for state and insight frames.
func WithPublisher(p Publisher) SimulatorOption {
	return func(s *SimulatorService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithInsightEvery pushes the deterministic insight every n ticks; 0 disables.
func WithInsightEvery(n int) SimulatorOption {
	return func(s *SimulatorService) { s.insightEvery = n }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *SimulatorService) { s.now = now }
}

func WithLogger(l *logger.Logger) SimulatorOption {
	return func(s *SimulatorService) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSimulatorService returns an empty registry. journal may be nil.
func NewSimulatorService(journal repository.EventRepo, opts ...SimulatorOption) *SimulatorService {
	s := &SimulatorService{
		sessions:  make(map[int]*session),
		journal:   journal,
		publisher: nopPublisher{},
		insights:  NewInsightGenerator(),
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateHeatID(heatID int) error {
	if heatID <= 0 {
		return invalidParam("heatId must be a positive integer, got %d", heatID)
	}
	return nil
}

// Start creates the heat if absent; an existing heat is returned unchanged.
func (s *SimulatorService) Start(ctx context.Context, seed int64, heatID int) (models.HeatState, error) {
	if err := validateHeatID(heatID); err != nil {
		return models.HeatState{}, err
	}

	s.mu.Lock()
	if sess, ok := s.sessions[heatID]; ok {
		s.current = heatID
		s.mu.Unlock()
		return sess.snapshot(), nil
	}
	sess := &session{}
	sess.init(seed, heatID, s.now().UTC())
	s.sessions[heatID] = sess
	s.current = heatID
	snap := sess.state.Clone()
	s.mu.Unlock()

	s.log.Infow("demo_heat_started", "heat_id", heatID, "seed", seed, "confidence", snap.Confidence)
	s.record(ctx, heatID, models.EventStart, fmt.Sprintf("Heat %d started", heatID), map[string]any{"seed": seed})
	s.publisher.PublishState(snap)
	return snap, nil
}

// Reset reinitializes the heat from seed, discarding timeline, scenario and resolved issues.
func (s *SimulatorService) Reset(ctx context.Context, seed int64, heatID int) (models.HeatState, error) {
	if err := validateHeatID(heatID); err != nil {
		return models.HeatState{}, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[heatID]
	if !ok {
		sess = &session{}
		s.sessions[heatID] = sess
	}
	s.current = heatID
	sess.mu.Lock()
	version := sess.state.Version
	sess.init(seed, heatID, s.now().UTC())
	sess.state.Version = version + 1
	snap := sess.state.Clone()
	sess.mu.Unlock()
	s.mu.Unlock()

	s.log.Infow("demo_heat_reset", "heat_id", heatID, "seed", seed, "confidence", snap.Confidence)
	s.record(ctx, heatID, models.EventReset, fmt.Sprintf("Heat %d reset", heatID), map[string]any{"seed": seed})
	s.publisher.PublishState(snap)
	return snap, nil
}

// Status returns a snapshot of the heat or ErrNoActiveHeat.
func (s *SimulatorService) Status(heatID int) (models.HeatState, error) {
	sess, err := s.lookup(heatID)
	if err != nil {
		return models.HeatState{}, err
	}
	return sess.snapshot(), nil
}

// Current returns the most recently started or reset heat.
func (s *SimulatorService) Current() (models.HeatState, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[s.current]
	s.mu.RUnlock()
	if !ok {
		return models.HeatState{}, false
	}
	return sess.snapshot(), true
}

// List returns snapshots of every heat ordered by heat id.
func (s *SimulatorService) List() []models.HeatState {
	sessions := s.sessionsSorted()
	out := make([]models.HeatState, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.snapshot())
	}
	return out
}

// Timeline returns the ordered stage/energy history of the heat.
func (s *SimulatorService) Timeline(heatID int) ([]models.TimelineEvent, error) {
	st, err := s.Status(heatID)
	if err != nil {
		return nil, err
	}
	return st.Timeline, nil
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick()
		}
	}
}

// Tick advances every heat by one time unit. It never blocks on I/O.
func (s *SimulatorService) Tick() {
	now := s.now().UTC()
	sessions := s.sessionsSorted()
	for _, sess := range sessions {
		sess.mu.Lock()
		sess.advance(now)
		snap := sess.state.Clone()
		emitInsight := s.insightEvery > 0 && snap.Ticks%s.insightEvery == 0
		sess.mu.Unlock()

		s.publisher.PublishState(snap)
		if emitInsight {
			s.publisher.PublishInsight(snap.HeatID, s.insights.Generate(snap))
		}
	}
	metrics.ObserveTick(len(sessions))
}

// ApplyScenario injects a fault condition into a running heat.
func (s *SimulatorService) ApplyScenario(ctx context.Context, heatID int, id models.ScenarioID) (models.ScenarioResult, error) {
	def, ok := lookupScenario(id)
	if !ok {
		return models.ScenarioResult{}, fmt.Errorf("%w %q", ErrUnknownScenario, id)
	}
	sess, err := s.lookup(heatID)
	if err != nil {
		return models.ScenarioResult{}, err
	}

	sess.mu.Lock()
	st := &sess.state
	def.perturb(st)
	st.ActiveScenario = def.ID
	if def.InsightID != "" {
		st.ResolvedIssueIDs = removeString(st.ResolvedIssueIDs, def.InsightID)
	}
	now := s.now().UTC()
	st.Timeline = append(st.Timeline, timelineEvent(st, now, models.TimelineScenario, def.Title))
	sess.touch(now)
	snap := sess.state.Clone()
	sess.mu.Unlock()

	metrics.ObserveScenario(string(def.ID))
	s.log.Infow("demo_scenario_applied", "heat_id", heatID, "scenario", def.ID, "confidence", snap.Confidence)
	s.record(ctx, heatID, models.EventScenario, def.Title, map[string]any{"scenario": def.ID})
	s.publisher.PublishState(snap)

	return models.ScenarioResult{
		Name:        def.ID,
		Title:       def.Title,
		Description: def.Description,
		State:       snap,
	}, nil
}

// ApplyAction executes a remediation on a running heat.
func (s *SimulatorService) ApplyAction(ctx context.Context, heatID int, actionType string, params map[string]any) (models.ActionResult, error) {
	res, err := s.applyAction(ctx, heatID, actionType, params)
	label := actionType
	if !IsAction(actionType) {
		label = metrics.UnknownAction
	}
	metrics.ObserveAction(label, err)
	return res, err
}

func (s *SimulatorService) applyAction(ctx context.Context, heatID int, actionType string, params map[string]any) (models.ActionResult, error) {
	def, ok := lookupAction(actionType)
	if !ok {
		return models.ActionResult{}, fmt.Errorf("%w %q", ErrUnknownAction, actionType)
	}
	p, err := def.Params.parse(params)
	if err != nil {
		return models.ActionResult{}, err
	}
	sess, err := s.lookup(heatID)
	if err != nil {
		return models.ActionResult{}, err
	}

	sess.mu.Lock()
	st := &sess.state
	res := def.apply(st, p)
	if st.ActiveScenario == def.Clears {
		st.ActiveScenario = models.ScenarioNone
	}
	if !st.IsResolved(def.Resolves) {
		st.ResolvedIssueIDs = append(st.ResolvedIssueIDs, def.Resolves)
	}
	now := s.now().UTC()
	st.Timeline = append(st.Timeline, timelineEvent(st, now, models.TimelineAction, def.Label))
	sess.touch(now)
	res.Success = true
	res.Confidence = sess.state.Confidence
	res.ResolvedIssueID = def.Resolves
	snap := sess.state.Clone()
	sess.mu.Unlock()

	s.log.Infow("demo_action_applied", "heat_id", heatID, "action", actionType, "confidence", res.Confidence)
	s.record(ctx, heatID, models.EventAction, res.Message, map[string]any{
		"action":     actionType,
		"resolved":   def.Resolves,
		"cost_usd":   res.CostUSD,
		"confidence": res.Confidence,
	})
	s.publisher.PublishState(snap)
	return res, nil
}

func (s *SimulatorService) lookup(heatID int) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[heatID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: heat %d", ErrNoActiveHeat, heatID)
	}
	return sess, nil
}

func (s *SimulatorService) sessionsSorted() []*session {
	s.mu.RLock()
	ids := make([]int, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*session, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.sessions[id])
	}
	s.mu.RUnlock()
	return out
}

// record appends a journal entry. Failures are logged and never fail the operation.
func (s *SimulatorService) record(ctx context.Context, heatID int, kind, msg string, meta map[string]any) {
	if s.journal == nil {
		return
	}
	// the mutation is already applied; a canceled request must not drop its journal entry
	err := s.journal.Append(context.WithoutCancel(ctx), models.HeatEvent{
		EventID:    uuid.NewString(),
		HeatID:     heatID,
		OccurredAt: s.now().UTC(),
		Kind:       kind,
		Message:    msg,
		Metadata:   meta,
	})
	if err != nil {
		s.log.Warnw("journal_append_failed", "heat_id", heatID, "kind", kind, "err", err)
	}
}

// ----------- session -----------

func (ss *session) snapshot() models.HeatState {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.state.Clone()
}

// init derives the initial heat from (seed, heatID). Caller holds mu or owns ss exclusively.
func (ss *session) init(seed int64, heatID int, now time.Time) {
	r := newSessionRand(seed, heatID)
	ss.rng = r
	ss.baseConfidence = 70 + r.IntN(20)

	ss.state = models.HeatState{
		HeatID:           heatID,
		Seed:             seed,
		Stage:            models.StageMelt,
		TemperatureC:     round(between(r, 1480, 1540), 1),
		PowerFactor:      round(between(r, 0.86, 0.94), 3),
		FoamIndex:        round(between(r, 55, 80), 1),
		CarbonPct:        round(between(r, 0.12, 0.19), 3),
		CarbonTargetPct:  CarbonTargetPct,
		EnergyKWhPerTon:  round(between(r, 360, 400), 1),
		ActiveScenario:   models.ScenarioNone,
		ResolvedIssueIDs: []string{},
		UpdatedAt:        now,
	}
	ss.state.TempSamples = []float64{ss.state.TemperatureC}
	ss.state.Confidence = computeConfidence(ss.baseConfidence, ss.state.ActiveScenario, ss.state.ResolvedIssueIDs)
	ss.state.Timeline = []models.TimelineEvent{
		timelineEvent(&ss.state, now, models.TimelineStart, fmt.Sprintf("Heat %d charged, seed %d", heatID, seed)),
	}
}

// touch finalizes a mutation: confidence, version and timestamp.
func (ss *session) touch(now time.Time) {
	ss.state.Confidence = computeConfidence(ss.baseConfidence, ss.state.ActiveScenario, ss.state.ResolvedIssueIDs)
	ss.state.Version++
	ss.state.UpdatedAt = now
}

// advance applies one tick. Caller holds mu.
func (ss *session) advance(now time.Time) {
	st := &ss.state
	r := ss.rng
	st.Ticks++

	if next, ok := nextStage(st.Stage, st.Ticks); ok {
		st.Stage = next
		st.Timeline = append(st.Timeline, timelineEvent(st, now, models.TimelineStage, "Stage "+string(next)))
	}

	tempTarget := stageTempTargetC[st.Stage]
	pfTarget, foamTarget, energyTarget := nominalPowerFactor, nominalFoamIndex, nominalEnergy
	tempRate, pfRate, foamRate, energyRate := relaxRate, relaxRate, relaxRate, relaxRate

	switch st.ActiveScenario {
	case models.ScenarioEnergySpike:
		energyTarget, energyRate = 470, scenarioPullRate
		pfTarget = 0.82
	case models.ScenarioFoamCollapse:
		foamTarget, foamRate = 15, scenarioPullRate
	case models.ScenarioTempRisk:
		tempTarget, tempRate = 1660, scenarioPullRate
	case models.ScenarioPowerFactor:
		pfTarget, pfRate = 0.74, scenarioPullRate
	}

	st.TemperatureC = round(clamp(relax(st.TemperatureC, tempTarget, tempRate)+jitter(r, 1.5), MinTempC, MaxTempC), 1)
	st.PowerFactor = round(clamp(relax(st.PowerFactor, pfTarget, pfRate)+jitter(r, 0.004), MinPowerFactor, MaxPowerFactor), 3)
	st.FoamIndex = round(clamp(relax(st.FoamIndex, foamTarget, foamRate)+jitter(r, 1.0), 0, 100), 1)
	prevEnergy := st.EnergyKWhPerTon
	st.EnergyKWhPerTon = round(clamp(relax(st.EnergyKWhPerTon, energyTarget, energyRate)+jitter(r, 2.0), 250, 600), 1)
	if prevEnergy <= EnergySpikeKWhPerTon && st.EnergyKWhPerTon > EnergySpikeKWhPerTon {
		st.Timeline = append(st.Timeline, timelineEvent(st, now, models.TimelineEnergy,
			fmt.Sprintf("Specific energy above %.0f kWh/t", EnergySpikeKWhPerTon)))
	}
	if st.Stage == models.StageRefine {
		// oxygen lancing decarburizes the bath
		st.CarbonPct = round(clamp(st.CarbonPct-0.0005, 0.04, 1.5), 4)
	}

	st.TempSamples = append(st.TempSamples, st.TemperatureC)
	if n := len(st.TempSamples); n > tempSampleWindow {
		st.TempSamples = st.TempSamples[n-tempSampleWindow:]
	}
	ss.touch(now)
}

var (
	stageSequence = []models.Stage{models.StageMelt, models.StageRefine, models.StageTap}
	// stageEndTick[i] is the tick count at which stageSequence[i] hands over.
	stageEndTick = []int{MeltTicks, MeltTicks + RefineTicks}
)

// nextStage returns the stage to enter after the given tick count, if any. TAP is terminal.
func nextStage(cur models.Stage, ticks int) (models.Stage, bool) {
	i := cur.Order()
	if i < 0 || i >= len(stageEndTick) || ticks < stageEndTick[i] {
		return cur, false
	}
	return stageSequence[i+1], true
}

func relax(v, target, rate float64) float64 {
	return v + (target-v)*rate
}

// computeConfidence is the only source of HeatState.Confidence.
func computeConfidence(base int, scenario models.ScenarioID, resolved []string) int {
	c := base - scenarioPenalty(scenario) + ConfidenceStep*len(resolved)
	return clampInt(c, 0, MaxConfidence)
}

func timelineEvent(st *models.HeatState, now time.Time, kind, msg string) models.TimelineEvent {
	return models.TimelineEvent{
		ID:              uuid.NewString(),
		At:              now,
		Tick:            st.Ticks,
		Kind:            kind,
		Stage:           st.Stage,
		Message:         msg,
		TemperatureC:    st.TemperatureC,
		EnergyKWhPerTon: st.EnergyKWhPerTon,
	}
}

func removeString(ss []string, drop string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
