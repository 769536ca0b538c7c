// handlers_intake.go - Credential slot and document operation handlers
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/caremesh/intake/internal/intake"
	"github.com/caremesh/intake/internal/models"
)

// historyLimit caps the events returned by the history endpoint.
const historyLimit = 50

// intakeStatusResponse mirrors what the verification page binds to.
type intakeStatusResponse struct {
	CanSubmit bool     `json:"canSubmit"`
	Submitted bool     `json:"submitted"`
	Missing   []string `json:"missing"`
}

// HandleListSlots returns every configured slot with its current record, in
// the configured presentation order.
func (h *Handler) HandleListSlots(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.Snapshot())
}

// HandleListSlotsMsgpack returns the same snapshot msgpack-encoded for the
// web client's binary poller.
func (h *Handler) HandleListSlotsMsgpack(c echo.Context) error {
	data, err := msgpack.Marshal(h.registry.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode snapshot", err)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

// HandleSelectDocument accepts a multipart file selection for a slot,
// validates it and starts the upload attempt. A file that fails validation
// is rejected here and never reaches the platform API.
func (h *Handler) HandleSelectDocument(c echo.Context) error {
	kind := c.Param("kind")
	if _, ok := h.registry.Slot(kind); !ok {
		return NewNotFoundError("slot", kind)
	}
	if h.gate.Submitted() {
		return NewConflictError("documents can no longer be changed after submission")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return NewInternalError("failed to read uploaded file", err)
	}

	// The upload attempt outlives this request. Superseded attempts are
	// never cancelled; their results are discarded by the record-id guard.
	rec, err := h.orchestrator.Start(context.Background(), kind, file.Filename, file.Header.Get("Content-Type"), content)
	if err != nil {
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			return NewValidationError(verr.Message)
		}
		// The Submitted check above is a fast path; the registry rejects the
		// insert itself when submission won the race.
		if errors.Is(err, intake.ErrFrozen) {
			return NewConflictError(err.Error())
		}
		return NewInternalError("failed to start upload", err)
	}

	return c.JSON(http.StatusAccepted, rec)
}

// HandleRemoveDocument clears a slot. Removal is optimistic and local only.
func (h *Handler) HandleRemoveDocument(c echo.Context) error {
	kind := c.Param("kind")
	if _, ok := h.registry.Slot(kind); !ok {
		return NewNotFoundError("slot", kind)
	}
	if h.gate.Submitted() {
		return NewConflictError("documents can no longer be changed after submission")
	}

	if !h.orchestrator.Remove(kind) {
		if h.gate.Submitted() {
			return NewConflictError("documents can no longer be changed after submission")
		}
		return NewNotFoundError("document", kind)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleIntakeStatus reports the submission gate, recomputed from a fresh
// snapshot on every call.
func (h *Handler) HandleIntakeStatus(c echo.Context) error {
	snapshot := h.registry.Snapshot()
	submitted := h.gate.Submitted()

	missing := intake.MissingKinds(snapshot)
	if missing == nil {
		missing = []string{}
	}

	return c.JSON(http.StatusOK, intakeStatusResponse{
		CanSubmit: !submitted && intake.CanSubmit(snapshot),
		Submitted: submitted,
		Missing:   missing,
	})
}

// HandleSubmit finalizes the verification submission. Failure keeps the
// gate open; uploaded documents are already persisted server-side.
func (h *Handler) HandleSubmit(c echo.Context) error {
	err := h.gate.Submit(c.Request().Context())
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]interface{}{"submitted": true})
	case errors.Is(err, intake.ErrAlreadySubmitted):
		return NewConflictError(err.Error())
	case errors.Is(err, intake.ErrNotReady):
		return NewConflictError(err.Error())
	default:
		var serr *intake.SubmissionError
		if errors.As(err, &serr) {
			return NewSubmissionError(serr.Message)
		}
		return NewInternalError("failed to submit", err)
	}
}

// HandleHistory returns recent intake audit events, newest first.
func (h *Handler) HandleHistory(c echo.Context) error {
	if h.history == nil {
		return c.JSON(http.StatusOK, []models.IntakeEvent{})
	}

	events, err := h.history.Recent(c.Request().Context(), historyLimit)
	if err != nil {
		return NewInternalError("failed to read intake history", err)
	}
	if events == nil {
		events = []models.IntakeEvent{}
	}
	return c.JSON(http.StatusOK, events)
}
