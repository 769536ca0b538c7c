package intake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caremesh/intake/internal/models"
)

// ErrFrozen is returned for mutations once the registry has been frozen by a
// successful submission.
var ErrFrozen = errors.New("documents can no longer be changed after submission")

// changeBuffer is the per-subscriber channel depth. A subscriber that falls
// this far behind misses intermediate changes but can always recover from the
// next Snapshot.
const changeBuffer = 16

// Releaser frees a preview resource once its record is discarded.
type Releaser interface {
	Release(uri string) error
}

// Registry is the keyed store of credential slots. One record per slot kind;
// the presentation order is the configured slot order, never map insertion
// order. All mutations publish a change event to subscribers, so derived
// values like the submission gate can be recomputed from a fresh Snapshot.
type Registry struct {
	mu       sync.RWMutex
	slots    []models.Slot
	records  map[string]models.DocumentRecord
	previews Releaser
	subs     map[int]chan models.Change
	nextSub  int
	frozen   bool
	closed   bool
}

// NewRegistry creates a registry for the configured slots. previews may be
// nil when preview resources are not in use (tests, headless runs).
func NewRegistry(slots []models.Slot, previews Releaser) *Registry {
	return &Registry{
		slots:    slots,
		records:  make(map[string]models.DocumentRecord, len(slots)),
		previews: previews,
		subs:     make(map[int]chan models.Change),
	}
}

// Slot returns the configuration of a slot kind.
func (r *Registry) Slot(kind string) (models.Slot, bool) {
	for _, s := range r.slots {
		if s.Kind == kind {
			return s, true
		}
	}
	return models.Slot{}, false
}

// Slots returns the configured slot order.
func (r *Registry) Slots() []models.Slot {
	out := make([]models.Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

// Put inserts or replaces the record for a slot. When replacing, the previous
// record's preview is released exactly once, unless the new record carries
// the same preview URI.
func (r *Registry) Put(kind string, rec models.DocumentRecord) error {
	if _, ok := r.Slot(kind); !ok {
		return fmt.Errorf("unknown slot kind: %s", kind)
	}

	r.mu.Lock()
	if r.frozen {
		r.mu.Unlock()
		return ErrFrozen
	}
	prev, existed := r.records[kind]
	r.records[kind] = rec
	r.publishLocked(models.Change{Kind: kind, Record: &rec})
	r.mu.Unlock()

	if existed && prev.PreviewURI != "" && prev.PreviewURI != rec.PreviewURI {
		r.releasePreview(prev.PreviewURI)
	}
	return nil
}

// Get returns a copy of the slot's current record.
func (r *Registry) Get(kind string) (models.DocumentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[kind]
	return rec, ok
}

// Update applies fn to the slot's record only if it still holds recordID.
// This is the supersede guard: a late-arriving result from a replaced upload
// attempt finds a different record id and is discarded. Returns whether the
// update was applied.
func (r *Registry) Update(kind, recordID string, fn func(rec *models.DocumentRecord)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[kind]
	if !ok || rec.ID != recordID {
		return false
	}
	fn(&rec)
	rec.ID = recordID // identity is not updatable
	r.records[kind] = rec
	r.publishLocked(models.Change{Kind: kind, Record: &rec})
	return true
}

// Remove clears a slot and releases its preview, if any. Returns whether a
// record was present.
func (r *Registry) Remove(kind string) bool {
	r.mu.Lock()
	if r.frozen {
		r.mu.Unlock()
		return false
	}
	rec, ok := r.records[kind]
	if ok {
		delete(r.records, kind)
		r.publishLocked(models.Change{Kind: kind})
	}
	r.mu.Unlock()

	if ok && rec.PreviewURI != "" {
		r.releasePreview(rec.PreviewURI)
	}
	return ok
}

// Freeze permanently rejects Put and Remove. The gate freezes the registry
// when submission reaches its terminal state, so the document set can no
// longer change. In-flight upload attempts may still settle their status via
// Update: they concern a document that was already selected before freezing.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Snapshot returns every configured slot with its current record, in the
// configured order.
func (r *Registry) Snapshot() []models.SlotView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]models.SlotView, 0, len(r.slots))
	for _, slot := range r.slots {
		view := models.SlotView{Slot: slot}
		if rec, ok := r.records[slot.Kind]; ok {
			recCopy := rec
			view.Record = &recCopy
		}
		views = append(views, view)
	}
	return views
}

// Subscribe registers a change listener. The returned cancel function must be
// called to release the subscription.
func (r *Registry) Subscribe() (<-chan models.Change, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan models.Change, changeBuffer)
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close releases all remaining previews and terminates subscribers. The
// registry must not be used afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	var previews []string
	for kind, rec := range r.records {
		if rec.PreviewURI != "" {
			previews = append(previews, rec.PreviewURI)
		}
		delete(r.records, kind)
	}
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
	r.mu.Unlock()

	for _, uri := range previews {
		r.releasePreview(uri)
	}
}

// publishLocked fans a change out to subscribers. Callers hold r.mu. Sends
// never block: a full subscriber buffer drops the event rather than stalling
// registry mutations.
func (r *Registry) publishLocked(change models.Change) {
	for _, ch := range r.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func (r *Registry) releasePreview(uri string) {
	if r.previews == nil {
		return
	}
	if err := r.previews.Release(uri); err != nil {
		fmt.Printf("[Registry] Warning: failed to release preview %s: %v\n", uri, err)
	}
}
