// tracking_previews.go - Resource-tracking preview store double
package testutil

import (
	"fmt"
	"io"
	"sync"
)

// TrackingPreviews counts preview create/release calls so tests can assert
// the exactly-once release invariant (no leak, no double free).
type TrackingPreviews struct {
	mu       sync.Mutex
	nextID   int
	live     map[string]bool
	released map[string]int
}

// NewTrackingPreviews creates a tracking preview store.
func NewTrackingPreviews() *TrackingPreviews {
	return &TrackingPreviews{
		live:     make(map[string]bool),
		released: make(map[string]int),
	}
}

func (t *TrackingPreviews) Create(recordID, fileName string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	uri := fmt.Sprintf("/previews/test-%d", t.nextID)
	t.live[uri] = true
	return uri, nil
}

func (t *TrackingPreviews) Release(uri string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.released[uri]++
	if !t.live[uri] {
		return fmt.Errorf("release of unknown or already-released preview: %s", uri)
	}
	delete(t.live, uri)
	return nil
}

// LiveCount returns how many previews have been created and not released.
func (t *TrackingPreviews) LiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// ReleaseCount returns how many times a URI has been released.
func (t *TrackingPreviews) ReleaseCount(uri string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released[uri]
}

// DoubleReleases returns how many release calls hit an already-released or
// unknown URI.
func (t *TrackingPreviews) DoubleReleases() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, n := range t.released {
		if n > 1 {
			count += n - 1
		}
	}
	return count
}
