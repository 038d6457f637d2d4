package repository

import (
	"context"
	"database/sql"

	"imelt/internal/models"
)

// HeatRepo stores descriptive heat records.
type HeatRepo interface {
	Upsert(ctx context.Context, r models.HeatRecord) error
	// Get returns found=false with a nil error when the heat is unknown.
	Get(ctx context.Context, heatID int) (rec models.HeatRecord, found bool, err error)
}

// EventRepo is the append-only heat journal.
type EventRepo interface {
	Append(ctx context.Context, e models.HeatEvent) error
	// List returns events for heatID ordered by time; empty kind matches all, limit<=0 means no limit.
	List(ctx context.Context, heatID int, kind string, limit int) ([]models.HeatEvent, error)
}

type Repository struct {
	HeatRepo  HeatRepo
	EventRepo EventRepo
}

// NewRepository builds SQLite-backed repositories over db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		HeatRepo:  NewHeatSQLite(db),
		EventRepo: NewEventSQLite(db),
	}
}

// NewMemoryRepository builds in-memory repositories for demo mode without a database file.
func NewMemoryRepository() *Repository {
	m := NewMemory()
	return &Repository{HeatRepo: m, EventRepo: m}
}
