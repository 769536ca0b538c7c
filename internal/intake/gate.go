package intake

import (
	"context"
	"errors"
	"sync"

	"github.com/caremesh/intake/internal/models"
)

// ErrAlreadySubmitted is returned once the terminal submitted state has been
// reached.
var ErrAlreadySubmitted = errors.New("verification already submitted")

// ErrNotReady is returned while a required slot is still missing an uploaded
// document.
var ErrNotReady = errors.New("required documents are not all uploaded")

// SubmissionError carries a retryable finalize failure. Uploaded documents
// stay server-side, so submission can be retried without re-uploading.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string {
	return e.Message
}

// Finalizer submits the uploaded document set for verification.
type Finalizer interface {
	Finalize(ctx context.Context) error
}

// CanSubmit reports whether every required slot holds an uploaded record.
// Pure selector over a snapshot: it is recomputed on demand, never cached.
func CanSubmit(snapshot []models.SlotView) bool {
	for _, view := range snapshot {
		if !view.Required {
			continue
		}
		if view.Record == nil || view.Record.Status != models.StatusUploaded {
			return false
		}
	}
	return true
}

// MissingKinds lists required slots not yet satisfied, in configured order.
func MissingKinds(snapshot []models.SlotView) []string {
	var missing []string
	for _, view := range snapshot {
		if !view.Required {
			continue
		}
		if view.Record == nil || view.Record.Status != models.StatusUploaded {
			missing = append(missing, view.Kind)
		}
	}
	return missing
}

// Gate controls the final submit action. Submission is permitted only while
// every required slot is uploaded, and succeeds at most once.
type Gate struct {
	registry *Registry
	client   Finalizer
	audit    Recorder

	mu        sync.Mutex // serializes finalize calls
	submitted bool
}

// NewGate creates a submission gate. audit may be nil.
func NewGate(registry *Registry, client Finalizer, audit Recorder) *Gate {
	return &Gate{
		registry: registry,
		client:   client,
		audit:    audit,
	}
}

// Submitted reports whether the terminal submitted state has been reached.
func (g *Gate) Submitted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitted
}

// Submit re-checks the gate against a fresh snapshot and calls the finalize
// endpoint. A failed finalize leaves the gate open for retry; a successful
// one is terminal.
func (g *Gate) Submit(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.submitted {
		return ErrAlreadySubmitted
	}
	if !CanSubmit(g.registry.Snapshot()) {
		return ErrNotReady
	}

	if err := g.client.Finalize(ctx); err != nil {
		msg := submitErrorMessage(err)
		if g.audit != nil {
			g.audit.Record("", models.EventSubmitFailed, msg)
		}
		return &SubmissionError{Message: msg}
	}

	g.submitted = true
	g.registry.Freeze()
	if g.audit != nil {
		g.audit.Record("", models.EventSubmitted, "")
	}
	return nil
}

func submitErrorMessage(err error) string {
	var sm interface{ ServerMessage() string }
	if errors.As(err, &sm) {
		if msg := sm.ServerMessage(); msg != "" {
			return msg
		}
	}
	return "submission failed, please try again"
}
