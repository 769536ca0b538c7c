package intake

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/caremesh/intake/internal/models"
)

func emptyReader() io.Reader {
	return strings.NewReader("")
}

// timeout fails the test after the standard polling deadline.
func timeout(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(2 * time.Second)
}

// waitForStatus polls the registry until the slot's record reaches the
// wanted status or the deadline expires.
func waitForStatus(t *testing.T, reg *Registry, kind string, status models.DocumentStatus) models.DocumentRecord {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := reg.Get(kind); ok && rec.Status == status {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec, ok := reg.Get(kind)
	t.Fatalf("timed out waiting for %s to reach %s (present=%v, record=%+v)", kind, status, ok, rec)
	return models.DocumentRecord{}
}
