package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"imelt/internal/models"

	"github.com/google/uuid"
)

// Memory is an in-process stand-in for both repositories. State is lost on restart.
type Memory struct {
	mu     sync.RWMutex
	heats  map[int]models.HeatRecord
	events map[int][]models.HeatEvent
}

var (
	_ HeatRepo  = (*Memory)(nil)
	_ EventRepo = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		heats:  make(map[int]models.HeatRecord),
		events: make(map[int][]models.HeatEvent),
	}
}

func (m *Memory) Upsert(_ context.Context, rec models.HeatRecord) error {
	if rec.HeatID <= 0 {
		return fmt.Errorf("upsert heat: invalid heat id %d", rec.HeatID)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.heats[rec.HeatID] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, heatID int) (models.HeatRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.heats[heatID]
	return rec, ok, nil
}

func (m *Memory) Append(_ context.Context, e models.HeatEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	e.Kind = normalizeKind(e.Kind)
	m.mu.Lock()
	m.events[e.HeatID] = append(m.events[e.HeatID], e)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, heatID int, kind string, limit int) ([]models.HeatEvent, error) {
	kind = normalizeKind(kind)
	m.mu.RLock()
	src := m.events[heatID]
	out := make([]models.HeatEvent, 0, len(src))
	for _, e := range src {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
