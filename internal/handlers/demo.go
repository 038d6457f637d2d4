package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"imelt/internal/models"
	"imelt/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
)

// Common response constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errInternal        = "internal error"
	errRouteNotFound   = "route not found"
	errInvalidBodyPref = "invalid body: "
	errExportTimeline  = "failed to export timeline"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// errorStatus maps service error kinds to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {error}. Internal faults are logged and masked.
func (h *Handler) respondError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		h.logAndJSONError(c, code, errInternal, logKey, err, kv...)
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// respondOpError writes {ok:false, error} for scenario and action endpoints.
func (h *Handler) respondOpError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	code := errorStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		if h.log != nil {
			h.log.Errorw(logKey, append([]interface{}{"err", err}, kv...)...)
		}
		msg = errInternal
	}
	c.JSON(code, gin.H{"ok": false, "error": msg})
}

// badRequest wraps a parse failure so it maps to 400.
func badRequest(err error) error {
	return fmt.Errorf("%w: %s", service.ErrInvalidParameter, err.Error())
}

// bindOptionalJSON decodes the body into v; an empty body leaves v untouched.
func bindOptionalJSON(c *gin.Context, v any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest(errors.New(errInvalidBodyPref + err.Error()))
	}
	return nil
}

// resolveHeatID substitutes the current heat for 0.
func (h *Handler) resolveHeatID(heatID int) (int, error) {
	if heatID < 0 {
		return 0, badRequest(fmt.Errorf("heatId must be a positive integer, got %d", heatID))
	}
	if heatID > 0 {
		return heatID, nil
	}
	cur, ok := h.services.Current()
	if !ok {
		return 0, service.ErrNoActiveHeat
	}
	return cur.HeatID, nil
}

// parseSeedAndHeat reads the required ?seed= and ?heatId= query parameters.
func parseSeedAndHeat(c *gin.Context) (int64, int, error) {
	raw := strings.TrimSpace(c.Query("seed"))
	if raw == "" {
		return 0, 0, badRequest(errors.New("seed is required"))
	}
	seed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, 0, badRequest(fmt.Errorf("seed must be an integer, got %q", raw))
	}
	heatID, err := parsePositiveInt("heatId", c.Query("heatId"))
	if err != nil {
		return 0, 0, badRequest(err)
	}
	return seed, heatID, nil
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Router       /healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		statusOK: true,
	})
}

// @Summary      Start demo heat
// @Description  Creates the heat if absent; an existing heat is returned unchanged.
// @Tags         demo
// @Produce      json
// @Param        seed    query  int  true  "PRNG seed"  example(42)
// @Param        heatId  query  int  true  "Heat number"  example(93378)
// @Success      200  {object}  models.HeatState
// @Failure      400  {object}  map[string]string
// @Router       /api/demo/start [get]
func (h *Handler) startDemo(c *gin.Context) {
	seed, heatID, err := parseSeedAndHeat(c)
	if err != nil {
		h.respondError(c, err, "demo_start_failed")
		return
	}
	st, err := h.services.Start(c.Request.Context(), seed, heatID)
	if err != nil {
		h.respondError(c, err, "demo_start_failed", "heat_id", heatID)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Reset demo heat
// @Description  Reinitializes the heat from the seed, clearing timeline, scenario and resolved issues.
// @Tags         demo
// @Produce      json
// @Param        seed    query  int  true  "PRNG seed"  example(42)
// @Param        heatId  query  int  true  "Heat number"  example(93378)
// @Success      200  {object}  models.HeatState
// @Failure      400  {object}  map[string]string
// @Router       /api/demo/reset [get]
func (h *Handler) resetDemo(c *gin.Context) {
	seed, heatID, err := parseSeedAndHeat(c)
	if err != nil {
		h.respondError(c, err, "demo_reset_failed")
		return
	}
	st, err := h.services.Reset(c.Request.Context(), seed, heatID)
	if err != nil {
		h.respondError(c, err, "demo_reset_failed", "heat_id", heatID)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Demo status
// @Description  Status of ?heatId, or of the most recently started heat.
// @Tags         demo
// @Produce      json
// @Param        heatId  query  int  false  "Heat number"
// @Success      200  {object}  map[string]interface{}  "running, heatId, scenario, seed, confidence, stage"
// @Failure      400  {object}  map[string]string
// @Router       /api/demo/status [get]
func (h *Handler) demoStatus(c *gin.Context) {
	var (
		st  models.HeatState
		ok  bool
		err error
	)
	if raw := c.Query("heatId"); raw != "" {
		heatID, perr := parsePositiveInt("heatId", raw)
		if perr != nil {
			h.respondError(c, badRequest(perr), "demo_status_failed")
			return
		}
		st, err = h.services.Status(heatID)
		ok = err == nil
		if err != nil && !errors.Is(err, service.ErrNoActiveHeat) {
			h.respondError(c, err, "demo_status_failed", "heat_id", heatID)
			return
		}
	} else {
		st, ok = h.services.Current()
	}

	if !ok {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"running":    true,
		"heatId":     st.HeatID,
		"scenario":   st.ActiveScenario,
		"seed":       st.Seed,
		"confidence": st.Confidence,
		"stage":      st.Stage,
		"ticks":      st.Ticks,
		"updatedAt":  st.UpdatedAt,
	})
}

// @Summary      List demo heats
// @Tags         demo
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, heats"
// @Router       /api/demo/heats [get]
func (h *Handler) listHeats(c *gin.Context) {
	heats := h.services.List()
	c.JSON(http.StatusOK, gin.H{
		"count": len(heats),
		"heats": heats,
	})
}

// @Summary      List scenarios
// @Tags         demo
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "scenarios"
// @Router       /api/demo/scenarios [get]
func (h *Handler) listScenarios(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scenarios": service.Scenarios()})
}

// @Summary      Export heat timeline
// @Tags         demo
// @Produce      json,text/csv
// @Param        heatId  path   int     true   "Heat number"
// @Param        format  query  string  false  "Output format"  Enums(json,csv)
// @Success      200  {object}  map[string]interface{}  "heatId, count, timeline"
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/demo/timeline/{heatId} [get]
func (h *Handler) getTimeline(c *gin.Context) {
	heatID, err := heatIDParam(c)
	if err != nil {
		h.respondError(c, badRequest(err), "timeline_failed")
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json")))
	if format != "json" && format != "csv" {
		h.respondError(c, badRequest(fmt.Errorf("format must be json or csv, got %q", format)), "timeline_failed")
		return
	}
	events, err := h.services.Timeline(heatID)
	if err != nil {
		h.respondError(c, err, "timeline_failed", "heat_id", heatID)
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, gin.H{
			"heatId":   heatID,
			"count":    len(events),
			"timeline": events,
		})
		return
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(events, &buf); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errExportTimeline, "timeline_csv_failed", err, "heat_id", heatID)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="heat-%d-timeline.csv"`, heatID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

type scenarioRequest struct {
	HeatID int `json:"heatId" example:"93378"`
}

// @Summary      Inject scenario
// @Tags         demo
// @Accept       json
// @Produce      json
// @Param        scenarioId  path  string           true   "Scenario"  Enums(energy-spike,foam-collapse,temp-risk,power-factor,none)
// @Param        body        body  scenarioRequest  false  "Target heat; defaults to the current heat"
// @Success      200  {object}  map[string]interface{}  "ok, scenario"
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/demo/scenario/{scenarioId} [post]
func (h *Handler) applyScenario(c *gin.Context) {
	var req scenarioRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.respondOpError(c, err, "demo_scenario_failed")
		return
	}
	heatID, err := h.resolveHeatID(req.HeatID)
	if err != nil {
		h.respondOpError(c, err, "demo_scenario_failed")
		return
	}
	id := models.ScenarioID(c.Param("scenarioId"))
	res, err := h.services.ApplyScenario(c.Request.Context(), heatID, id)
	if err != nil {
		h.respondOpError(c, err, "demo_scenario_failed", "heat_id", heatID, "scenario", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "scenario": res})
}
