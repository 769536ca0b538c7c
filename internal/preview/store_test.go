package preview

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreCreateAndRelease(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	uri, err := store.Create("rec-1", "photo.jpg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(uri, URIPrefix) {
		t.Errorf("expected serving URI, got %s", uri)
	}

	path := filepath.Join(store.Dir(), strings.TrimPrefix(uri, URIPrefix))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading preview file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("unexpected preview content: %q", data)
	}

	if err := store.Release(uri); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected preview file deleted")
	}
}

func TestStoreDoubleReleaseIsAnError(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	uri, _ := store.Create("rec-1", "photo.png", strings.NewReader("x"))
	if err := store.Release(uri); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := store.Release(uri); err == nil {
		t.Errorf("expected error on double release")
	}
	if err := store.Release("/previews/never-existed"); err == nil {
		t.Errorf("expected error on unknown URI")
	}
}

func TestStoreSanitizesFileNames(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	uri, err := store.Create("rec-1", "../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	name := strings.TrimPrefix(uri, URIPrefix)
	if strings.ContainsAny(name, "/\\") {
		t.Errorf("preview name must not contain path separators: %q", name)
	}

	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 1 {
		t.Fatalf("expected one file in the store dir, got %d", len(entries))
	}
}
