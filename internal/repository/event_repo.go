package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"imelt/internal/models"

	"github.com/google/uuid"
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

const insertEventSQL = `
		INSERT INTO heat_events (id, heat_id, occurred_at, kind, message, meta)
		VALUES (?, ?, ?, ?, ?, ?)
	`

// normalizeKind trims and uppercases an event kind.
func normalizeKind(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Append inserts a new event. If EventID or OccurredAt are empty, they're set.
func (r *EventSQLite) Append(ctx context.Context, e models.HeatEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		e.HeatID,
		e.OccurredAt,
		normalizeKind(e.Kind),
		e.Message,
		metaPtr,
	)
	return err
}

// List returns the heat's events filtered by kind, oldest first.
func (r *EventSQLite) List(ctx context.Context, heatID int, kind string, limit int) ([]models.HeatEvent, error) {
	conds := []string{"heat_id = ?"}
	args := []any{heatID}

	if kind = normalizeKind(kind); kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, kind)
	}

	q := `SELECT id, heat_id, occurred_at, kind, message, meta FROM heat_events WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY occurred_at ASC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.HeatEvent, 0, 16)
	for rows.Next() {
		var ev models.HeatEvent
		var metaStr sql.NullString
		if err := rows.Scan(&ev.EventID, &ev.HeatID, &ev.OccurredAt, &ev.Kind, &ev.Message, &metaStr); err != nil {
			return nil, err
		}
		ev.OccurredAt = ev.OccurredAt.UTC()

		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = metaStr.String // keep raw if malformed
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
