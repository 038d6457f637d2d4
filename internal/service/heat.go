package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"imelt/internal/logger"
	"imelt/internal/models"
	"imelt/internal/repository"
)

// HeatService serves descriptive heat records and the heat journal.
type HeatService struct {
	heats  repository.HeatRepo
	events repository.EventRepo
	sim    *SimulatorService
	log    *logger.Logger
}

func NewHeatService(heats repository.HeatRepo, events repository.EventRepo, sim *SimulatorService, log *logger.Logger) *HeatService {
	if log == nil {
		log = logger.Nop()
	}
	return &HeatService{heats: heats, events: events, sim: sim, log: log}
}

// Get returns the stored record, a record synthesised from a running session, or ErrHeatRecordNotFound.
func (s *HeatService) Get(ctx context.Context, heatID int) (models.HeatRecord, error) {
	if err := validateHeatID(heatID); err != nil {
		return models.HeatRecord{}, err
	}
	if s.heats != nil {
		rec, found, err := s.heats.Get(ctx, heatID)
		if err != nil {
			return models.HeatRecord{}, fmt.Errorf("load heat %d: %w", heatID, err)
		}
		if found {
			return rec, nil
		}
	}
	if s.sim != nil {
		if st, err := s.sim.Status(heatID); err == nil {
			return synthesizeRecord(st), nil
		}
	}
	return models.HeatRecord{}, fmt.Errorf("%w %d", ErrHeatRecordNotFound, heatID)
}

// Events lists journal entries of heatID, optionally filtered by kind.
func (s *HeatService) Events(ctx context.Context, heatID int, kind string, limit int) ([]models.HeatEvent, error) {
	if err := validateHeatID(heatID); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, invalidParam("limit must not be negative, got %d", limit)
	}
	if s.events == nil {
		return []models.HeatEvent{}, nil
	}
	events, err := s.events.List(ctx, heatID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list events of heat %d: %w", heatID, err)
	}
	if events == nil {
		events = []models.HeatEvent{}
	}
	return events, nil
}

// Seed upserts catalog records into the heat store.
func (s *HeatService) Seed(ctx context.Context, recs []models.HeatRecord) error {
	if s.heats == nil {
		return nil
	}
	for _, rec := range recs {
		if err := s.heats.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("seed heat %d: %w", rec.HeatID, err)
		}
	}
	s.log.Infow("heat_catalog_seeded", "count", len(recs))
	return nil
}

var (
	syntheticGrades  = []string{"S235JR", "S355J2", "B500B", "C45", "42CrMo4"}
	syntheticMasters = []string{"R. Tursunov", "A. Karimov", "D. Yusupova", "M. Rahimov"}
)

// synthesizeRecord derives a plausible record from the session seed. Only carbon follows the live state.
func synthesizeRecord(st models.HeatState) models.HeatRecord {
	r := rand.New(rand.NewPCG(uint64(st.Seed), uint64(st.HeatID)^0x5eed))

	reading := func(element string, target, tol float64) models.ChemistryReading {
		return models.ChemistryReading{
			Element: element,
			Actual:  round(target+jitter(r, tol), 3),
			Target:  target,
			Min:     round(target-tol, 3),
			Max:     round(target+tol, 3),
		}
	}
	return models.HeatRecord{
		HeatID:  st.HeatID,
		Grade:   syntheticGrades[r.IntN(len(syntheticGrades))],
		Master:  syntheticMasters[r.IntN(len(syntheticMasters))],
		Furnace: fmt.Sprintf("EAF-%d", 1+r.IntN(3)),
		Chemistry: []models.ChemistryReading{
			carbonReading(st),
			reading("Mn", 1.30, 0.15),
			reading("Si", 0.25, 0.08),
			reading("P", 0.020, 0.005),
			reading("S", 0.015, 0.005),
		},
		Stages: []models.StageRecord{
			{Name: models.StageMelt, DurationMin: round(between(r, 28, 36), 1), EnergyKWh: round(between(r, 26000, 31000), 0)},
			{Name: models.StageRefine, DurationMin: round(between(r, 14, 20), 1), EnergyKWh: round(between(r, 7000, 9500), 0)},
			{Name: models.StageTap, DurationMin: round(between(r, 4, 7), 1), EnergyKWh: 0},
		},
		Buckets: []models.Bucket{
			{ID: 1, Materials: []models.Material{
				{Name: "HMS 1&2", Tons: round(between(r, 40, 48), 1)},
				{Name: "Shredded", Tons: round(between(r, 12, 18), 1)},
			}},
			{ID: 2, Materials: []models.Material{
				{Name: "Pig iron", Tons: round(between(r, 10, 15), 1)},
				{Name: "Busheling", Tons: round(between(r, 20, 26), 1)},
			}},
		},
		UpdatedAt: st.UpdatedAt,
	}
}

// carbonReading is the live bath carbon against the grade aim.
func carbonReading(st models.HeatState) models.ChemistryReading {
	return models.ChemistryReading{
		Element: "C",
		Actual:  round(st.CarbonPct, 3),
		Target:  st.CarbonTargetPct,
		Min:     round(st.CarbonTargetPct-CarbonTolerancePct, 3),
		Max:     round(st.CarbonTargetPct+CarbonTolerancePct, 3),
	}
}
