package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"imelt/internal/models"
	"imelt/internal/service"
)

func TestGetHeat(t *testing.T) {
	heats := &mockHeats{rec: models.HeatRecord{
		HeatID: 93378,
		Grade:  "S355J2",
		Chemistry: []models.ChemistryReading{
			{Element: "C", Actual: 0.12, Target: 0.16, Min: 0.12, Max: 0.2},
		},
	}}
	r := newTestRouter(&service.Service{Heats: heats})

	w := doRequest(r, http.MethodGet, "/api/heat/93378", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["grade"] != "S355J2" || body["heatId"] != float64(93378) {
		t.Fatalf("unexpected body: %v", body)
	}

	if w := doRequest(r, http.MethodGet, "/api/heat/-1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	heats.err = fmt.Errorf("%w %d", service.ErrHeatRecordNotFound, 5)
	if w := doRequest(r, http.MethodGet, "/api/heat/5", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetHeatEvents(t *testing.T) {
	heats := &mockHeats{events: []models.HeatEvent{
		{EventID: "e1", HeatID: 93378, OccurredAt: time.Unix(0, 0).UTC(), Kind: models.EventAction, Message: "prevent-foam-collapse"},
	}}
	r := newTestRouter(&service.Service{Heats: heats})

	w := doRequest(r, http.MethodGet, "/api/heat/93378/events?kind=%20action%20&limit=5000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if heats.lastKind != "ACTION" {
		t.Fatalf("kind not normalized: %q", heats.lastKind)
	}
	if heats.lastLim != maxEventsLimit {
		t.Fatalf("limit not capped: %d", heats.lastLim)
	}
	if body := decodeBody(t, w); body["count"] != float64(1) || body["heatId"] != float64(93378) {
		t.Fatalf("unexpected body: %v", body)
	}

	for _, q := range []string{"limit=-1", "limit=ten"} {
		w := doRequest(r, http.MethodGet, "/api/heat/93378/events?"+q, "")
		if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != errLimitInvalid {
			t.Fatalf("%s: expected 400, got %d %s", q, w.Code, w.Body.String())
		}
	}
}
