package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"imelt/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo := NewEventSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), 93378, sqlmock.AnyArg(), "ACTION", "foam stabilised", `{"a":1}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Append(ctx(t), models.HeatEvent{
		HeatID:   93378,
		Kind:     "  action ",
		Message:  "foam stabilised",
		Metadata: map[string]any{"a": 1},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).WillReturnError(errors.New("insert failed"))

	if err := NewEventSQLite(db).Append(ctx(t), models.HeatEvent{HeatID: 1, Kind: "START"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestList_BuildsFiltersAndDecodesMeta(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC().Truncate(time.Second)
	rows := sqlmock.NewRows([]string{"id", "heat_id", "occurred_at", "kind", "message", "meta"}).
		AddRow("e1", 7, now, "SCENARIO", "foam collapse injected", `{"scenario":"foam-collapse"}`).
		AddRow("e2", 7, now.Add(time.Second), "SCENARIO", "raw meta", `not-json`).
		AddRow("e3", 7, now.Add(2*time.Second), "SCENARIO", "no meta", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE heat_id = ? AND kind = ? ORDER BY occurred_at ASC LIMIT ?`)).
		WithArgs(7, "SCENARIO", 10).
		WillReturnRows(rows)

	got, err := NewEventSQLite(db).List(ctx(t), 7, "scenario", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	meta, ok := got[0].Metadata.(map[string]any)
	if !ok || meta["scenario"] != "foam-collapse" {
		t.Fatalf("meta decode: %#v", got[0].Metadata)
	}
	if got[1].Metadata != "not-json" {
		t.Fatalf("raw meta should be kept, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[2].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_QueryError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, heat_id`)).WillReturnError(errors.New("boom"))
	if _, err := NewEventSQLite(db).List(ctx(t), 1, "", 0); err == nil {
		t.Fatalf("expected error")
	}
}
