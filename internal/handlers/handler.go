package handlers

import (
	"imelt/internal/logger"
	"imelt/internal/service"
	"imelt/internal/stream"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services, the push hub and logging.
type Handler struct {
	services *service.Service
	hub      *stream.Hub
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. A nil hub puts /ws in polling mode.
func NewHandler(services *service.Service, hub *stream.Hub, log *logger.Logger) *Handler {
	return &Handler{services: services, hub: hub, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)
	router.NoRoute(h.notFound)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/healthz", h.health)

	h.registerAPIRoutes(router)

	// Push channel (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		h.registerDemoRoutes(api)
		h.registerInsightRoutes(api)
		h.registerActionRoutes(api)
		h.registerHeatRoutes(api)
	}
}

func (h *Handler) registerDemoRoutes(api *gin.RouterGroup) {
	demo := api.Group("/demo")
	{
		// Query: ?seed=42&heatId=93378
		demo.GET("/start", h.startDemo)
		demo.POST("/start", h.startDemo)
		demo.GET("/reset", h.resetDemo)
		demo.POST("/reset", h.resetDemo)
		demo.GET("/status", h.demoStatus)
		demo.GET("/heats", h.listHeats)
		demo.GET("/scenarios", h.listScenarios)
		demo.GET("/timeline/:heatId", h.getTimeline)
		// Body: {"heatId":93378}
		demo.POST("/scenario/:scenarioId", h.applyScenario)
	}
}

func (h *Handler) registerInsightRoutes(api *gin.RouterGroup) {
	api.GET("/insights/:heatId", h.getInsights)
	api.POST("/ai/chat", h.chat)
}

func (h *Handler) registerActionRoutes(api *gin.RouterGroup) {
	actions := api.Group("/actions")
	{
		actions.GET("", h.listActions)
		// Body: {"heatId":93378, ...action params}
		actions.POST("/:actionType", h.executeAction)
	}
}

func (h *Handler) registerHeatRoutes(api *gin.RouterGroup) {
	heat := api.Group("/heat")
	{
		heat.GET("/:heatId", h.getHeat)
		heat.GET("/:heatId/events", h.getHeatEvents)
	}
}
