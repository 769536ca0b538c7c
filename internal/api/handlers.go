package api

import (
	"context"

	"github.com/caremesh/intake/internal/intake"
	"github.com/caremesh/intake/internal/models"
)

// HistorySource reads recent events from the intake audit log.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]models.IntakeEvent, error)
}

// Handler handles API requests.
type Handler struct {
	registry     *intake.Registry
	orchestrator *intake.Orchestrator
	gate         *intake.Gate
	history      HistorySource
	version      string
}

// NewHandler creates a new API handler. history may be nil when the audit
// log is disabled.
func NewHandler(registry *intake.Registry, orchestrator *intake.Orchestrator, gate *intake.Gate, history HistorySource, version string) *Handler {
	return &Handler{
		registry:     registry,
		orchestrator: orchestrator,
		gate:         gate,
		history:      history,
		version:      version,
	}
}
