// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// IntakeHandler handles credential slot and document operations
type IntakeHandler interface {
	HandleListSlots(c echo.Context) error
	HandleListSlotsMsgpack(c echo.Context) error
	HandleSelectDocument(c echo.Context) error
	HandleRemoveDocument(c echo.Context) error
	HandleIntakeStatus(c echo.Context) error
	HandleSubmit(c echo.Context) error
	HandleHistory(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}
