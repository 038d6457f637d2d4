package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"imelt/internal/models"
	"imelt/internal/service"

	"github.com/gin-gonic/gin"
)

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return out
}

func sampleState() models.HeatState {
	return models.HeatState{
		HeatID:         93378,
		Seed:           42,
		Stage:          models.StageMelt,
		TemperatureC:   1512.4,
		PowerFactor:    0.91,
		FoamIndex:      63.2,
		Confidence:     82,
		ActiveScenario: models.ScenarioNone,
		Timeline: []models.TimelineEvent{
			{ID: "t1", Kind: models.TimelineStart, Stage: models.StageMelt, Message: "Heat 93378 charged, seed 42"},
		},
		ResolvedIssueIDs: []string{},
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := doRequest(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if body := decodeBody(t, w); body["ok"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := doRequest(r, http.MethodGet, "/api/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != errRouteNotFound {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestStartReset_ValidationAndDelegation(t *testing.T) {
	sim := &mockSimulation{state: sampleState()}
	r := newTestRouter(&service.Service{Simulation: sim})

	for _, path := range []string{
		"/api/demo/start?heatId=93378",
		"/api/demo/start?seed=abc&heatId=93378",
		"/api/demo/start?seed=42",
		"/api/demo/start?seed=42&heatId=0",
		"/api/demo/reset?seed=42&heatId=-7",
	} {
		w := doRequest(r, http.MethodGet, path, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
		if body := decodeBody(t, w); body["error"] == "" || body["error"] == nil {
			t.Fatalf("%s: missing error message", path)
		}
	}
	if sim.startCalls != 0 || sim.resetCalls != 0 {
		t.Fatalf("service called on invalid input")
	}

	w := doRequest(r, http.MethodGet, "/api/demo/start?seed=42&heatId=93378", "")
	if w.Code != http.StatusOK {
		t.Fatalf("start status=%d body=%s", w.Code, w.Body.String())
	}
	if sim.lastSeed != 42 || sim.lastHeatID != 93378 {
		t.Fatalf("wrong args: seed=%d heat=%d", sim.lastSeed, sim.lastHeatID)
	}
	var st models.HeatState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.HeatID != 93378 || st.Confidence != 82 || len(st.Timeline) != 1 {
		t.Fatalf("unexpected state: %+v", st)
	}
	body := decodeBody(t, w)
	for _, key := range []string{"heatId", "seed", "stage", "confidence", "temperature", "powerFactor", "foamIndex", "timeline"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("response lacks %q: %v", key, body)
		}
	}

	w = doRequest(r, http.MethodPost, "/api/demo/reset?seed=-3&heatId=5", "")
	if w.Code != http.StatusOK || sim.resetCalls != 1 || sim.lastSeed != -3 {
		t.Fatalf("reset status=%d calls=%d seed=%d", w.Code, sim.resetCalls, sim.lastSeed)
	}
}

func TestStart_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{fmt.Errorf("%w: heatId", service.ErrInvalidParameter), http.StatusBadRequest, ""},
		{service.ErrNoActiveHeat, http.StatusNotFound, ""},
		{errors.New("disk on fire"), http.StatusInternalServerError, errInternal},
	}
	for _, tc := range cases {
		sim := &mockSimulation{startErr: tc.err}
		r := newTestRouter(&service.Service{Simulation: sim})
		w := doRequest(r, http.MethodGet, "/api/demo/start?seed=1&heatId=1", "")
		if w.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, w.Code)
		}
		body := decodeBody(t, w)
		if tc.msg != "" && body["error"] != tc.msg {
			t.Fatalf("%v: error=%v", tc.err, body["error"])
		}
		if strings.Contains(w.Body.String(), "disk on fire") {
			t.Fatalf("internal error leaked: %s", w.Body.String())
		}
	}
}

func TestDemoStatus(t *testing.T) {
	sim := &mockSimulation{}
	r := newTestRouter(&service.Service{Simulation: sim})

	w := doRequest(r, http.MethodGet, "/api/demo/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if body := decodeBody(t, w); body["running"] != false {
		t.Fatalf("expected running=false, got %v", body)
	}

	sim.state = sampleState()
	sim.state.ActiveScenario = models.ScenarioFoamCollapse
	sim.current = true
	body := decodeBody(t, doRequest(r, http.MethodGet, "/api/demo/status", ""))
	if body["running"] != true || body["heatId"] != float64(93378) || body["scenario"] != "foam-collapse" ||
		body["seed"] != float64(42) || body["confidence"] != float64(82) || body["stage"] != "MELT" {
		t.Fatalf("unexpected status body: %v", body)
	}

	sim.stateErr = fmt.Errorf("%w: heat 5", service.ErrNoActiveHeat)
	body = decodeBody(t, doRequest(r, http.MethodGet, "/api/demo/status?heatId=5", ""))
	if body["running"] != false || sim.lastHeatID != 5 {
		t.Fatalf("unknown heat should report running=false: %v", body)
	}

	if w := doRequest(r, http.MethodGet, "/api/demo/status?heatId=x", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestApplyScenario(t *testing.T) {
	st := sampleState()
	st.ActiveScenario = models.ScenarioFoamCollapse
	sim := &mockSimulation{scenarioRes: models.ScenarioResult{Name: models.ScenarioFoamCollapse, Title: "Foam collapse", State: st}}
	r := newTestRouter(&service.Service{Simulation: sim})

	w := doRequest(r, http.MethodPost, "/api/demo/scenario/foam-collapse", `{"heatId":93378}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		OK       bool                  `json:"ok"`
		Scenario models.ScenarioResult `json:"scenario"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.OK || resp.Scenario.Name != models.ScenarioFoamCollapse || resp.Scenario.State.ActiveScenario != models.ScenarioFoamCollapse {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if sim.lastHeatID != 93378 || sim.lastScenario != models.ScenarioFoamCollapse {
		t.Fatalf("wrong args: heat=%d scenario=%q", sim.lastHeatID, sim.lastScenario)
	}

	// no body and no current heat
	w = doRequest(r, http.MethodPost, "/api/demo/scenario/foam-collapse", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["ok"] != false || body["error"] == nil {
		t.Fatalf("expected ok:false envelope, got %v", body)
	}

	// no body falls back to the current heat
	sim.current = true
	sim.state = sampleState()
	sim.state.HeatID = 777
	if w := doRequest(r, http.MethodPost, "/api/demo/scenario/temp-risk", ""); w.Code != http.StatusOK || sim.lastHeatID != 777 {
		t.Fatalf("expected current heat 777, got status=%d heat=%d", w.Code, sim.lastHeatID)
	}

	w = doRequest(r, http.MethodPost, "/api/demo/scenario/foam-collapse", `{"heatId":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on malformed body, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["ok"] != false {
		t.Fatalf("expected ok:false, got %v", body)
	}

	sim.scenarioErr = fmt.Errorf("%w %q", service.ErrUnknownScenario, "meteor")
	w = doRequest(r, http.MethodPost, "/api/demo/scenario/meteor", `{"heatId":93378}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["ok"] != false || !strings.Contains(body["error"].(string), "unknown scenario") {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestTimelineExport(t *testing.T) {
	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	sim := &mockSimulation{timeline: []models.TimelineEvent{
		{ID: "a", At: at, Kind: models.TimelineStart, Stage: models.StageMelt, Message: "charged", TemperatureC: 1500, EnergyKWhPerTon: 380},
		{ID: "b", At: at.Add(2 * time.Second), Tick: 1, Kind: models.TimelineScenario, Stage: models.StageMelt, Message: "Foam collapse"},
	}}
	r := newTestRouter(&service.Service{Simulation: sim})

	body := decodeBody(t, doRequest(r, http.MethodGet, "/api/demo/timeline/93378", ""))
	if body["count"] != float64(2) || body["heatId"] != float64(93378) {
		t.Fatalf("unexpected json body: %v", body)
	}

	w := doRequest(r, http.MethodGet, "/api/demo/timeline/93378?format=csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("csv status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content-type=%q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d: %q", len(lines), w.Body.String())
	}
	if lines[0] != "id,at,tick,kind,stage,message,temperature_c,energy_kwh_per_ton" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "a,") || !strings.Contains(lines[2], "Foam collapse") {
		t.Fatalf("unexpected rows: %q", lines[1:])
	}

	if w := doRequest(r, http.MethodGet, "/api/demo/timeline/93378?format=xml", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for xml, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/demo/timeline/abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad heatId, got %d", w.Code)
	}
	sim.stateErr = service.ErrNoActiveHeat
	if w := doRequest(r, http.MethodGet, "/api/demo/timeline/1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCatalogListings(t *testing.T) {
	sim := &mockSimulation{heats: []models.HeatState{sampleState()}}
	r := newTestRouter(&service.Service{Simulation: sim})

	body := decodeBody(t, doRequest(r, http.MethodGet, "/api/demo/heats", ""))
	if body["count"] != float64(1) {
		t.Fatalf("unexpected heats body: %v", body)
	}

	body = decodeBody(t, doRequest(r, http.MethodGet, "/api/demo/scenarios", ""))
	if got := len(body["scenarios"].([]any)); got != len(service.Scenarios()) {
		t.Fatalf("expected %d scenarios, got %d", len(service.Scenarios()), got)
	}

	body = decodeBody(t, doRequest(r, http.MethodGet, "/api/actions", ""))
	actions := body["actions"].([]any)
	if len(actions) != len(service.Actions()) {
		t.Fatalf("expected %d actions, got %d", len(service.Actions()), len(actions))
	}
	first := actions[0].(map[string]any)
	if first["type"] != "adjust-carbon" || first["params"] == nil {
		t.Fatalf("unexpected action entry: %v", first)
	}
}
