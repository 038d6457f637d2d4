package handlers

import (
	"context"
	"sync"
	"time"

	"imelt/internal/models"
	"imelt/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockSimulation struct {
	mu sync.Mutex

	state    models.HeatState
	stateErr error
	current  bool
	heats    []models.HeatState
	timeline []models.TimelineEvent

	startErr    error
	scenarioRes models.ScenarioResult
	scenarioErr error
	actionRes   models.ActionResult
	actionErr   error

	lastSeed       int64
	lastHeatID     int
	lastScenario   models.ScenarioID
	lastActionType string
	lastParams     map[string]any
	startCalls     int
	resetCalls     int
}

func (m *mockSimulation) Start(_ context.Context, seed int64, heatID int) (models.HeatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	m.lastSeed, m.lastHeatID = seed, heatID
	return m.state, m.startErr
}
func (m *mockSimulation) Reset(_ context.Context, seed int64, heatID int) (models.HeatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	m.lastSeed, m.lastHeatID = seed, heatID
	return m.state, m.startErr
}
func (m *mockSimulation) Status(heatID int) (models.HeatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeatID = heatID
	return m.state, m.stateErr
}
func (m *mockSimulation) Current() (models.HeatState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.current
}
func (m *mockSimulation) List() []models.HeatState { return m.heats }
func (m *mockSimulation) Timeline(heatID int) ([]models.TimelineEvent, error) {
	m.lastHeatID = heatID
	return m.timeline, m.stateErr
}
func (m *mockSimulation) ApplyScenario(_ context.Context, heatID int, id models.ScenarioID) (models.ScenarioResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeatID, m.lastScenario = heatID, id
	return m.scenarioRes, m.scenarioErr
}
func (m *mockSimulation) ApplyAction(_ context.Context, heatID int, actionType string, params map[string]any) (models.ActionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeatID, m.lastActionType, m.lastParams = heatID, actionType, params
	return m.actionRes, m.actionErr
}
func (m *mockSimulation) Run(context.Context, time.Duration) {}

type mockInsights struct {
	report   service.InsightReport
	reply    service.ChatReply
	err      error
	lastMode string
	lastMsg  string
}

func (m *mockInsights) Generate(_ context.Context, heatID int, mode string) (service.InsightReport, error) {
	m.lastMode = mode
	return m.report, m.err
}
func (m *mockInsights) Chat(_ context.Context, heatID int, message string) (service.ChatReply, error) {
	m.lastMsg = message
	return m.reply, m.err
}

type mockHeats struct {
	rec      models.HeatRecord
	events   []models.HeatEvent
	err      error
	lastKind string
	lastLim  int
}

func (m *mockHeats) Get(context.Context, int) (models.HeatRecord, error) { return m.rec, m.err }
func (m *mockHeats) Events(_ context.Context, _ int, kind string, limit int) ([]models.HeatEvent, error) {
	m.lastKind, m.lastLim = kind, limit
	return m.events, m.err
}
func (m *mockHeats) Seed(context.Context, []models.HeatRecord) error { return nil }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
