package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/caremesh/intake/internal/models"
	"github.com/caremesh/intake/internal/testutil"
)

func TestOrchestratorUploadSuccess(t *testing.T) {
	platform := testutil.NewMockPlatform()
	reg := NewRegistry(testSlots(), nil)
	orch := NewOrchestrator(reg, platform, nil, testRules(), nil)

	rec, err := orch.Start(context.Background(), "license", "license.pdf", "application/pdf", []byte("pdf-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != models.StatusUploading {
		t.Errorf("expected uploading status immediately, got %s", rec.Status)
	}

	final := waitForStatus(t, reg, "license", models.StatusUploaded)
	if final.ID != rec.ID {
		t.Errorf("record identity changed across the upload: %s -> %s", rec.ID, final.ID)
	}
	if final.RemoteURI == "" {
		t.Errorf("expected remote URI after successful upload")
	}
	if final.Error != "" {
		t.Errorf("expected empty error, got %q", final.Error)
	}

	uploads := platform.Uploads()
	if len(uploads) != 1 {
		t.Fatalf("expected 1 upload call, got %d", len(uploads))
	}
	if uploads[0].Kind != "license" || uploads[0].FileName != "license.pdf" {
		t.Errorf("unexpected upload call: %+v", uploads[0])
	}
}

func TestOrchestratorUploadFailure(t *testing.T) {
	platform := testutil.NewMockPlatform()
	platform.UploadFn = func(ctx context.Context, kind, fileName, mimeType string, r io.Reader) (string, error) {
		return "", errors.New("connection reset")
	}
	reg := NewRegistry(testSlots(), nil)
	orch := NewOrchestrator(reg, platform, nil, testRules(), nil)

	if _, err := orch.Start(context.Background(), "degree", "degree.pdf", "application/pdf", []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := waitForStatus(t, reg, "degree", models.StatusError)
	if final.Error == "" {
		t.Errorf("expected an error message on the record")
	}
	if final.RemoteURI != "" {
		t.Errorf("failed upload must not set a remote URI")
	}
}

type serverError struct{ msg string }

func (e *serverError) Error() string         { return e.msg }
func (e *serverError) ServerMessage() string { return e.msg }

func TestOrchestratorPrefersServerMessage(t *testing.T) {
	platform := testutil.NewMockPlatform()
	platform.UploadFn = func(ctx context.Context, kind, fileName, mimeType string, r io.Reader) (string, error) {
		return "", &serverError{msg: "document is password protected"}
	}
	reg := NewRegistry(testSlots(), nil)
	orch := NewOrchestrator(reg, platform, nil, testRules(), nil)

	orch.Start(context.Background(), "license", "license.pdf", "application/pdf", []byte("x"))

	final := waitForStatus(t, reg, "license", models.StatusError)
	if final.Error != "document is password protected" {
		t.Errorf("expected the server message, got %q", final.Error)
	}
}

func TestOrchestratorRejectsOversizedBeforeNetwork(t *testing.T) {
	platform := testutil.NewMockPlatform()
	reg := NewRegistry(testSlots(), nil)
	orch := NewOrchestrator(reg, platform, nil, testRules(), nil)

	// The cap is exclusive: a file of exactly the ceiling is rejected
	// before any network call.
	oversized := make([]byte, 10*1024*1024)
	_, err := orch.Start(context.Background(), "license", "license.pdf", "application/pdf", oversized)

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != "size" {
		t.Fatalf("expected a size validation error, got %v", err)
	}
	if platform.UploadCount() != 0 {
		t.Errorf("validation failure must not reach the network, got %d calls", platform.UploadCount())
	}
	if _, ok := reg.Get("license"); ok {
		t.Errorf("validation failure must not create a registry entry")
	}
}

func TestOrchestratorSupersededAttemptIsDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	platform := testutil.NewMockPlatform()
	var callMu sync.Mutex
	call := 0
	platform.UploadFn = func(ctx context.Context, kind, fileName, mimeType string, r io.Reader) (string, error) {
		callMu.Lock()
		call++
		n := call
		callMu.Unlock()
		if n == 1 {
			close(firstStarted)
			<-releaseFirst
			return "https://cdn.example.com/stale", nil
		}
		return "https://cdn.example.com/fresh", nil
	}

	reg := NewRegistry(testSlots(), nil)
	orch := NewOrchestrator(reg, platform, nil, testRules(), nil)

	// First selection blocks in flight.
	orch.Start(context.Background(), "license", "old.pdf", "application/pdf", []byte("old"))
	<-firstStarted

	// Re-select before the first resolves.
	second, err := orch.Start(context.Background(), "license", "new.pdf", "application/pdf", []byte("new"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Second resolves first.
	final := waitForStatus(t, reg, "license", models.StatusUploaded)
	if final.ID != second.ID || final.RemoteURI != "https://cdn.example.com/fresh" {
		t.Fatalf("expected the second attempt's outcome, got %+v", final)
	}

	// Now let the stale first response arrive.
	close(releaseFirst)
	waitForUploadCalls(t, platform, 2)

	got, _ := reg.Get("license")
	if got.ID != second.ID {
		t.Errorf("stale response replaced the newer record: %+v", got)
	}
	if got.RemoteURI != "https://cdn.example.com/fresh" {
		t.Errorf("stale response overwrote the remote URI: %q", got.RemoteURI)
	}
	if got.Name != "new.pdf" {
		t.Errorf("expected the second file name, got %q", got.Name)
	}
}

func TestOrchestratorDistinctSlotsUploadIndependently(t *testing.T) {
	platform := testutil.NewMockPlatform()
	platform.UploadFn = func(ctx context.Context, kind, fileName, mimeType string, r io.Reader) (string, error) {
		if kind == "degree" {
			return "", errors.New("boom")
		}
		return fmt.Sprintf("https://cdn.example.com/%s", kind), nil
	}
	reg := NewRegistry(testSlots(), nil)
	orch := NewOrchestrator(reg, platform, nil, testRules(), nil)

	orch.Start(context.Background(), "license", "a.pdf", "application/pdf", []byte("a"))
	orch.Start(context.Background(), "degree", "b.pdf", "application/pdf", []byte("b"))

	waitForStatus(t, reg, "license", models.StatusUploaded)
	waitForStatus(t, reg, "degree", models.StatusError)
}

func TestOrchestratorCreatesPreviewForImagesOnly(t *testing.T) {
	platform := testutil.NewMockPlatform()
	previews := testutil.NewTrackingPreviews()
	reg := NewRegistry(testSlots(), previews)
	orch := NewOrchestrator(reg, platform, previews, testRules(), nil)

	imgRec, err := orch.Start(context.Background(), "id_proof", "id.jpg", "image/jpeg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imgRec.PreviewURI == "" {
		t.Errorf("expected a preview for an image selection")
	}

	pdfRec, err := orch.Start(context.Background(), "license", "license.pdf", "application/pdf", []byte("pdf"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pdfRec.PreviewURI != "" {
		t.Errorf("expected no preview for a pdf selection")
	}

	waitForStatus(t, reg, "id_proof", models.StatusUploaded)
	rec, _ := reg.Get("id_proof")
	if rec.PreviewURI != imgRec.PreviewURI {
		t.Errorf("preview must be retained after a successful upload")
	}
	if previews.LiveCount() != 1 {
		t.Errorf("expected one live preview, got %d", previews.LiveCount())
	}

	orch.Remove("id_proof")
	if previews.LiveCount() != 0 {
		t.Errorf("expected preview released on removal")
	}
}

func TestOrchestratorReleasesPreviewWhenRegistrationFails(t *testing.T) {
	platform := testutil.NewMockPlatform()
	previews := testutil.NewTrackingPreviews()
	reg := NewRegistry(testSlots(), previews)
	reg.Freeze()
	orch := NewOrchestrator(reg, platform, previews, testRules(), nil)

	_, err := orch.Start(context.Background(), "id_proof", "id.jpg", "image/jpeg", []byte("jpeg"))
	if !errors.Is(err, ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
	if previews.LiveCount() != 0 {
		t.Errorf("expected the preview released when registration fails, got %d live", previews.LiveCount())
	}
	if previews.DoubleReleases() != 0 {
		t.Errorf("expected no double releases")
	}
	if platform.UploadCount() != 0 {
		t.Errorf("failed registration must not reach the network")
	}
}

func waitForUploadCalls(t *testing.T, platform *testutil.MockPlatform, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if platform.UploadCount() >= want {
			// Give the stale continuation a moment to run its guard check.
			time.Sleep(20 * time.Millisecond)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d upload calls, got %d", want, platform.UploadCount())
}
