package service

import (
	"context"
	"time"

	"imelt/internal/logger"
	"imelt/internal/models"
	"imelt/internal/repository"
)

// Simulation owns per-heat demo state: lifecycle, scenario injection and remediation.
type Simulation interface {
	Start(ctx context.Context, seed int64, heatID int) (models.HeatState, error)
	Reset(ctx context.Context, seed int64, heatID int) (models.HeatState, error)
	Status(heatID int) (models.HeatState, error)
	Current() (models.HeatState, bool)
	List() []models.HeatState
	Timeline(heatID int) ([]models.TimelineEvent, error)
	ApplyScenario(ctx context.Context, heatID int, id models.ScenarioID) (models.ScenarioResult, error)
	ApplyAction(ctx context.Context, heatID int, actionType string, params map[string]any) (models.ActionResult, error)
	// Run ticks until ctx is canceled. Stop it from main() for graceful shutdown.
	Run(ctx context.Context, tick time.Duration)
}

// Insights computes operator insights and answers chat questions.
type Insights interface {
	Generate(ctx context.Context, heatID int, mode string) (InsightReport, error)
	Chat(ctx context.Context, heatID int, message string) (ChatReply, error)
}

// Heats exposes descriptive heat records and the journal.
type Heats interface {
	Get(ctx context.Context, heatID int) (models.HeatRecord, error)
	Events(ctx context.Context, heatID int, kind string, limit int) ([]models.HeatEvent, error)
	Seed(ctx context.Context, recs []models.HeatRecord) error
}

//
// Root Service aggregates all sub-services.
//

type Service struct {
	Simulation
	Insights
	Heats
}

// Deps carries the collaborators that do not come from the repository layer.
type Deps struct {
	Publisher    Publisher
	Completer    Completer
	AITimeout    time.Duration
	InsightEvery int
	Log          *logger.Logger
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	sim := NewSimulatorService(repos.EventRepo,
		WithPublisher(deps.Publisher),
		WithInsightEvery(deps.InsightEvery),
		WithLogger(log.With("component", "simulator")),
	)
	return &Service{
		Simulation: sim,
		Insights:   NewInsightService(sim, deps.Completer, deps.AITimeout, log.With("component", "insights")),
		Heats:      NewHeatService(repos.HeatRepo, repos.EventRepo, sim, log),
	}
}
