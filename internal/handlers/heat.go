package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	errLimitInvalid = "invalid 'limit'; use a non-negative integer"
	maxEventsLimit  = 1000
)

// @Summary      Heat record
// @Description  Stored record, or one synthesised from the running demo session.
// @Tags         heat
// @Produce      json
// @Param        heatId  path  int  true  "Heat number"
// @Success      200  {object}  models.HeatRecord
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/heat/{heatId} [get]
func (h *Handler) getHeat(c *gin.Context) {
	heatID, err := heatIDParam(c)
	if err != nil {
		h.respondError(c, badRequest(err), "heat_get_failed")
		return
	}
	rec, err := h.services.Get(c.Request.Context(), heatID)
	if err != nil {
		h.respondError(c, err, "heat_get_failed", "heat_id", heatID)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary      Heat journal
// @Description  Journal entries ordered by time.
// @Tags         heat
// @Produce      json
// @Param        heatId  path   int     true   "Heat number"
// @Param        kind    query  string  false  "Event kind"  Enums(START,RESET,SCENARIO,ACTION)
// @Param        limit   query  int     false  "Maximum entries (0 = all)"
// @Success      200  {object}  map[string]interface{}  "count, events"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/heat/{heatId}/events [get]
func (h *Handler) getHeatEvents(c *gin.Context) {
	heatID, err := heatIDParam(c)
	if err != nil {
		h.respondError(c, badRequest(err), "heat_events_failed")
		return
	}
	var (
		// Normalize kind: trim spaces and uppercase to match stored values.
		kind  = strings.ToUpper(strings.TrimSpace(c.Query("kind")))
		limit int
	)
	if qs := c.Query("limit"); qs != "" {
		limit, err = strconv.Atoi(qs)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return
		}
		if limit > maxEventsLimit {
			limit = maxEventsLimit
		}
	}
	events, err := h.services.Events(c.Request.Context(), heatID, kind, limit)
	if err != nil {
		h.respondError(c, err, "heat_events_failed", "heat_id", heatID, "kind", kind)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"heatId": heatID,
		"count":  len(events),
		"events": events,
	})
}
