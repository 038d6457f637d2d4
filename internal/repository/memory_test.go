package repository

import (
	"context"
	"testing"
	"time"

	"imelt/internal/models"
)

func TestMemory_HeatsAndEvents(t *testing.T) {
	m := NewMemory()
	c := context.Background()

	if _, found, _ := m.Get(c, 1); found {
		t.Fatalf("empty memory should not find heat")
	}
	if err := m.Upsert(c, models.HeatRecord{HeatID: 1, Grade: "A"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := m.Upsert(c, models.HeatRecord{HeatID: 1, Grade: "B"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rec, found, _ := m.Get(c, 1)
	if !found || rec.Grade != "B" || rec.UpdatedAt.IsZero() {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := m.Upsert(c, models.HeatRecord{}); err == nil {
		t.Fatalf("expected invalid id error")
	}

	base := time.Now().UTC()
	_ = m.Append(c, models.HeatEvent{HeatID: 1, Kind: "action", OccurredAt: base.Add(2 * time.Second)})
	_ = m.Append(c, models.HeatEvent{HeatID: 1, Kind: "START", OccurredAt: base})
	_ = m.Append(c, models.HeatEvent{HeatID: 2, Kind: "START"})

	all, _ := m.List(c, 1, "", 0)
	if len(all) != 2 || all[0].Kind != "START" || all[1].Kind != "ACTION" {
		t.Fatalf("unexpected order/kinds: %+v", all)
	}
	if all[0].EventID == "" {
		t.Fatalf("expected generated id")
	}
	actions, _ := m.List(c, 1, "Action", 0)
	if len(actions) != 1 {
		t.Fatalf("kind filter: got %d", len(actions))
	}
	limited, _ := m.List(c, 1, "", 1)
	if len(limited) != 1 {
		t.Fatalf("limit: got %d", len(limited))
	}
}
