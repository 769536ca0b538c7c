package models

import "time"

// DocumentStatus tracks the upload lifecycle of a credential document.
type DocumentStatus string

const (
	StatusUploading DocumentStatus = "uploading"
	StatusUploaded  DocumentStatus = "uploaded"
	StatusError     DocumentStatus = "error"
)

// DocumentRecord represents one file occupying a credential slot.
// Name, SizeBytes and MimeType are fixed at selection time; a record is
// only ever replaced as a whole, never partially mutated by callers.
type DocumentRecord struct {
	ID         string         `json:"id" msgpack:"id"`
	Name       string         `json:"name" msgpack:"name"`
	SizeBytes  int64          `json:"sizeBytes" msgpack:"sizeBytes"`
	MimeType   string         `json:"mimeType" msgpack:"mimeType"`
	PreviewURI string         `json:"previewUri,omitempty" msgpack:"previewUri,omitempty"`
	Status     DocumentStatus `json:"status" msgpack:"status"`
	RemoteURI  string         `json:"remoteUri,omitempty" msgpack:"remoteUri,omitempty"`
	Error      string         `json:"error,omitempty" msgpack:"error,omitempty"`
	SelectedAt time.Time      `json:"selectedAt" msgpack:"selectedAt"`
}

// Slot defines one credential slot in the configured intake set.
type Slot struct {
	Kind     string `json:"kind" yaml:"kind" msgpack:"kind"`
	Label    string `json:"label" yaml:"label" msgpack:"label"`
	Required bool   `json:"required" yaml:"required" msgpack:"required"`
}

// SlotView pairs a slot definition with its current record, if any.
type SlotView struct {
	Slot   `msgpack:",inline"`
	Record *DocumentRecord `json:"record,omitempty" msgpack:"record,omitempty"`
}

// Change is published on every registry mutation. Record is nil when the
// slot was cleared.
type Change struct {
	Kind   string          `json:"kind"`
	Record *DocumentRecord `json:"record,omitempty"`
}
