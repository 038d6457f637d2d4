package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ChatRequest is the payload of POST /api/ai/chat. heatId 0 means the current heat.
type ChatRequest struct {
	HeatID  int    `json:"heatId" example:"93378"`
	Message string `json:"message" example:"Why is the foam index dropping?"`
}

// @Summary      Heat insight
// @Description  Deterministic rule-based insight, or an AI explanation with deterministic fallback.
// @Tags         insights
// @Produce      json
// @Param        heatId  path   int     true   "Heat number"
// @Param        mode    query  string  false  "Generation mode"  Enums(deterministic,ai)
// @Success      200  {object}  service.InsightReport
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/insights/{heatId} [get]
func (h *Handler) getInsights(c *gin.Context) {
	heatID, err := heatIDParam(c)
	if err != nil {
		h.respondError(c, badRequest(err), "insight_failed")
		return
	}
	mode := strings.ToLower(strings.TrimSpace(c.Query("mode")))
	rep, err := h.services.Generate(c.Request.Context(), heatID, mode)
	if err != nil {
		h.respondError(c, err, "insight_failed", "heat_id", heatID, "mode", mode)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// @Summary      Operator chat
// @Description  Always answers 200; upstream AI failures are reported through fallback and error.
// @Tags         insights
// @Accept       json
// @Produce      json
// @Param        body  body  ChatRequest  true  "Question"
// @Success      200  {object}  service.ChatReply
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/ai/chat [post]
func (h *Handler) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if req.HeatID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "heatId must be a positive integer"})
		return
	}
	reply, err := h.services.Chat(c.Request.Context(), req.HeatID, req.Message)
	if err != nil {
		h.respondError(c, err, "chat_failed", "heat_id", req.HeatID)
		return
	}
	c.JSON(http.StatusOK, reply)
}
