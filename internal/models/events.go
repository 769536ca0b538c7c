package models

import "time"

// EventType classifies intake audit events.
type EventType string

const (
	EventSelected     EventType = "selected"
	EventUploaded     EventType = "uploaded"
	EventUploadFailed EventType = "upload_failed"
	EventRemoved      EventType = "removed"
	EventSubmitted    EventType = "submitted"
	EventSubmitFailed EventType = "submit_failed"
)

// IntakeEvent is one row of the append-only intake audit log.
type IntakeEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind,omitempty"`
	Event     EventType `json:"event"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
