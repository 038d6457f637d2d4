package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"imelt/internal/service"

	"github.com/gin-gonic/gin"
)

// ExecuteActionRequest documents the action payload. Parameters other than heatId depend on the action.
type ExecuteActionRequest struct {
	HeatID int `json:"heatId" example:"93378"`
	// Example parameter of prevent-foam-collapse
	CarbonKg float64 `json:"carbonKg,omitempty" example:"400"`
}

// @Summary      List actions
// @Tags         actions
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "actions"
// @Router       /api/actions [get]
func (h *Handler) listActions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"actions": service.Actions()})
}

// @Summary      Execute action
// @Description  Runs a remediation on the heat. Result fields depend on the action type.
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        actionType  path  string                true   "Action"  Enums(adjust-carbon,optimize-energy,prevent-foam-collapse,reduce-temperature,correct-power-factor)
// @Param        body        body  ExecuteActionRequest  false  "heatId plus action parameters"
// @Success      200  {object}  map[string]interface{}  "ok, action, result"
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/actions/{actionType} [post]
func (h *Handler) executeAction(c *gin.Context) {
	actionType := c.Param("actionType")

	params := map[string]any{}
	if err := bindOptionalJSON(c, &params); err != nil {
		h.respondOpError(c, err, "action_failed", "action", actionType)
		return
	}
	heatID, err := heatIDFromBody(params)
	if err != nil {
		h.respondOpError(c, err, "action_failed", "action", actionType)
		return
	}
	delete(params, "heatId")
	if heatID, err = h.resolveHeatID(heatID); err != nil {
		h.respondOpError(c, err, "action_failed", "action", actionType)
		return
	}

	res, err := h.services.ApplyAction(c.Request.Context(), heatID, actionType, params)
	if err != nil {
		h.respondOpError(c, err, "action_failed", "action", actionType, "heat_id", heatID)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"action": actionType,
		"heatId": heatID,
		"result": res,
	})
}

// heatIDFromBody extracts an optional integer heatId; absent means 0.
func heatIDFromBody(body map[string]any) (int, error) {
	raw, ok := body["heatId"]
	if !ok || raw == nil {
		return 0, nil
	}
	n, ok := raw.(json.Number)
	if !ok {
		return 0, badRequest(errors.New("heatId must be an integer"))
	}
	v, err := n.Int64()
	if err != nil {
		return 0, badRequest(fmt.Errorf("heatId must be an integer, got %s", n))
	}
	return int(v), nil
}
