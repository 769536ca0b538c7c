// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/caremesh/intake/internal/intake"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Registry     *intake.Registry
	Orchestrator *intake.Orchestrator
	Gate         *intake.Gate
	History      HistorySource
	PreviewDir   string
	Version      string
}

// Handlers holds all handler instances
type Handlers struct {
	Intake    IntakeHandler
	Health    HealthHandler
	WebSocket *WebSocketHandler

	previewDir string
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	h := NewHandler(deps.Registry, deps.Orchestrator, deps.Gate, deps.History, deps.Version)
	return &Handlers{
		Intake:     h,
		Health:     h,
		WebSocket:  NewWebSocketHandler(deps.Registry, deps.Gate),
		previewDir: deps.PreviewDir,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.HTTPErrorHandler = ErrorHandler

	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Credential intake
	intakeGroup := apiGroup.Group("/intake")
	intakeGroup.GET("/slots", handlers.Intake.HandleListSlots)
	intakeGroup.GET("/slots/msgpack", handlers.Intake.HandleListSlotsMsgpack)
	intakeGroup.POST("/slots/:kind", handlers.Intake.HandleSelectDocument)
	intakeGroup.DELETE("/slots/:kind", handlers.Intake.HandleRemoveDocument)
	intakeGroup.GET("/status", handlers.Intake.HandleIntakeStatus)
	intakeGroup.POST("/submit", handlers.Intake.HandleSubmit)
	intakeGroup.GET("/history", handlers.Intake.HandleHistory)

	// Change feed
	apiGroup.GET("/ws/intake", handlers.WebSocket.HandleIntakeStream)

	// Local preview serving
	if handlers.previewDir != "" {
		e.Static("/previews", handlers.previewDir)
	}
}
