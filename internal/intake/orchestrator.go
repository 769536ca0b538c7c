package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/intake/internal/models"
)

// genericUploadError is shown when the platform API gives no usable message.
const genericUploadError = "upload failed, please try again"

// Uploader sends a document to the remote platform API and returns its
// stable remote location.
type Uploader interface {
	Upload(ctx context.Context, kind, fileName, mimeType string, r io.Reader) (string, error)
}

// PreviewStore creates and releases local preview resources for image files.
type PreviewStore interface {
	Create(recordID, fileName string, r io.Reader) (string, error)
	Release(uri string) error
}

// Recorder appends intake events to the audit log.
type Recorder interface {
	Record(kind string, event models.EventType, detail string)
}

// Orchestrator drives a slot's record through the upload lifecycle:
// uploading -> uploaded or error. One upload attempt per Start call; a new
// Start for the same slot supersedes any in-flight attempt, whose result is
// discarded by the registry's record-id guard. Distinct slots upload
// concurrently with no shared lock beyond the registry's own.
type Orchestrator struct {
	registry *Registry
	client   Uploader
	previews PreviewStore
	rules    Rules
	audit    Recorder
}

// NewOrchestrator creates an orchestrator. previews and audit may be nil.
func NewOrchestrator(registry *Registry, client Uploader, previews PreviewStore, rules Rules, audit Recorder) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		client:   client,
		previews: previews,
		rules:    rules,
		audit:    audit,
	}
}

// Rules returns the validation rules in force.
func (o *Orchestrator) Rules() Rules {
	return o.rules
}

// Start validates a selected file and, if it passes, registers an uploading
// record for the slot and launches the upload attempt. Validation failures
// are returned synchronously and nothing reaches the network or the registry.
func (o *Orchestrator) Start(ctx context.Context, kind, fileName, mimeType string, content []byte) (models.DocumentRecord, error) {
	if _, ok := o.registry.Slot(kind); !ok {
		return models.DocumentRecord{}, fmt.Errorf("unknown slot kind: %s", kind)
	}
	if err := Validate(o.rules, fileName, int64(len(content)), mimeType); err != nil {
		return models.DocumentRecord{}, err
	}

	rec := models.DocumentRecord{
		ID:         uuid.New().String(),
		Name:       fileName,
		SizeBytes:  int64(len(content)),
		MimeType:   mimeType,
		Status:     models.StatusUploading,
		SelectedAt: time.Now(),
	}

	if o.previews != nil && isImage(mimeType) {
		uri, err := o.previews.Create(rec.ID, fileName, bytes.NewReader(content))
		if err != nil {
			// A missing preview only degrades the UI; the upload proceeds.
			fmt.Printf("[Intake %s] Warning: failed to create preview: %v\n", kind, err)
		} else {
			rec.PreviewURI = uri
		}
	}

	if err := o.registry.Put(kind, rec); err != nil {
		if rec.PreviewURI != "" && o.previews != nil {
			if rerr := o.previews.Release(rec.PreviewURI); rerr != nil {
				fmt.Printf("[Intake %s] Warning: failed to release preview: %v\n", kind, rerr)
			}
		}
		return models.DocumentRecord{}, err
	}

	o.record(kind, models.EventSelected, rec.Name)
	go o.run(ctx, kind, rec, content)

	return rec, nil
}

// run performs the single upload attempt and publishes the outcome. The
// registry's Update guard ensures a superseded attempt changes nothing.
func (o *Orchestrator) run(ctx context.Context, kind string, rec models.DocumentRecord, content []byte) {
	remoteURI, err := o.client.Upload(ctx, kind, rec.Name, rec.MimeType, bytes.NewReader(content))
	if err != nil {
		msg := uploadErrorMessage(err)
		applied := o.registry.Update(kind, rec.ID, func(r *models.DocumentRecord) {
			r.Status = models.StatusError
			r.Error = msg
		})
		if applied {
			o.record(kind, models.EventUploadFailed, msg)
		} else {
			fmt.Printf("[Intake %s] Discarding stale upload failure for record %s\n", kind, rec.ID)
		}
		return
	}

	applied := o.registry.Update(kind, rec.ID, func(r *models.DocumentRecord) {
		r.Status = models.StatusUploaded
		r.RemoteURI = remoteURI
		r.Error = ""
	})
	if applied {
		o.record(kind, models.EventUploaded, remoteURI)
	} else {
		fmt.Printf("[Intake %s] Discarding stale upload result for record %s\n", kind, rec.ID)
	}
}

// Remove clears a slot's record. Removal is local only: the remote copy, if
// any, stays orphaned until finalize ignores it server-side.
func (o *Orchestrator) Remove(kind string) bool {
	removed := o.registry.Remove(kind)
	if removed {
		o.record(kind, models.EventRemoved, "")
	}
	return removed
}

func (o *Orchestrator) record(kind string, event models.EventType, detail string) {
	if o.audit != nil {
		o.audit.Record(kind, event, detail)
	}
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

// uploadErrorMessage prefers the platform API's own message when one is
// present in the error chain.
func uploadErrorMessage(err error) string {
	var sm interface{ ServerMessage() string }
	if errors.As(err, &sm) {
		if msg := sm.ServerMessage(); msg != "" {
			return msg
		}
	}
	return genericUploadError
}
