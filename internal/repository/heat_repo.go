package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"imelt/internal/models"
)

type HeatSQLite struct {
	db *sql.DB
}

func NewHeatSQLite(db *sql.DB) *HeatSQLite {
	return &HeatSQLite{db: db}
}

const (
	upsertHeatSQL = `
		INSERT INTO heats (id, grade, master, furnace, chemistry, stages, buckets, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			grade=excluded.grade,
			master=excluded.master,
			furnace=excluded.furnace,
			chemistry=excluded.chemistry,
			stages=excluded.stages,
			buckets=excluded.buckets,
			updated_at=excluded.updated_at
	`

	selectHeatSQL = `
		SELECT id, grade, master, furnace, chemistry, stages, buckets, updated_at
		FROM heats WHERE id=?
	`
)

// marshalJSONColumn converts v to the TEXT stored in a JSON column.
func marshalJSONColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalJSONColumn parses a JSON column, treating empty text as "no value".
func unmarshalJSONColumn(s string, dst any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}

// Upsert inserts or replaces the heat row keyed by HeatID.
func (r *HeatSQLite) Upsert(ctx context.Context, rec models.HeatRecord) error {
	if rec.HeatID <= 0 {
		return fmt.Errorf("upsert heat: invalid heat id %d", rec.HeatID)
	}
	chemistry, err := marshalJSONColumn(rec.Chemistry)
	if err != nil {
		return fmt.Errorf("marshal chemistry: %w", err)
	}
	stages, err := marshalJSONColumn(rec.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}
	buckets, err := marshalJSONColumn(rec.Buckets)
	if err != nil {
		return fmt.Errorf("marshal buckets: %w", err)
	}

	ts := rec.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err = r.db.ExecContext(ctx, upsertHeatSQL,
		rec.HeatID,
		rec.Grade,
		rec.Master,
		rec.Furnace,
		chemistry,
		stages,
		buckets,
		ts,
	)
	if err != nil {
		return fmt.Errorf("upsert heat %d: %w", rec.HeatID, err)
	}
	return nil
}

// Get loads one heat row.
func (r *HeatSQLite) Get(ctx context.Context, heatID int) (models.HeatRecord, bool, error) {
	row := r.db.QueryRowContext(ctx, selectHeatSQL, heatID)

	var (
		rec                        models.HeatRecord
		chemistry, stages, buckets string
	)
	if err := row.Scan(
		&rec.HeatID,
		&rec.Grade,
		&rec.Master,
		&rec.Furnace,
		&chemistry,
		&stages,
		&buckets,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.HeatRecord{}, false, nil
		}
		return models.HeatRecord{}, false, fmt.Errorf("select heat %d: %w", heatID, err)
	}

	if err := unmarshalJSONColumn(chemistry, &rec.Chemistry); err != nil {
		return models.HeatRecord{}, false, fmt.Errorf("decode chemistry of heat %d: %w", heatID, err)
	}
	if err := unmarshalJSONColumn(stages, &rec.Stages); err != nil {
		return models.HeatRecord{}, false, fmt.Errorf("decode stages of heat %d: %w", heatID, err)
	}
	if err := unmarshalJSONColumn(buckets, &rec.Buckets); err != nil {
		return models.HeatRecord{}, false, fmt.Errorf("decode buckets of heat %d: %w", heatID, err)
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, true, nil
}
