// Package preview manages local preview copies of selected image files. The
// web client shows these thumbnails while the authoritative copy lives on
// the platform API; every preview must be released exactly once when its
// record is removed or replaced, or the file leaks.
package preview

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// URIPrefix is the public route previews are served under.
const URIPrefix = "/previews/"

// Store implements preview resources as files in a local directory.
type Store struct {
	mu    sync.Mutex
	dir   string
	files map[string]string // uri -> absolute path
}

// NewStore creates a preview store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating preview directory: %w", err)
	}
	return &Store{
		dir:   dir,
		files: make(map[string]string),
	}, nil
}

// Dir returns the directory previews are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// Create writes a preview copy for a record and returns its serving URI.
func (s *Store) Create(recordID, fileName string, r io.Reader) (string, error) {
	name := recordID + sanitizeExt(fileName)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating preview file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing preview file: %w", err)
	}

	uri := URIPrefix + name
	s.mu.Lock()
	s.files[uri] = path
	s.mu.Unlock()

	return uri, nil
}

// Release deletes the preview behind a URI. Releasing an unknown URI is an
// error so that double releases surface in tests instead of passing silently.
func (s *Store) Release(uri string) error {
	s.mu.Lock()
	path, ok := s.files[uri]
	if ok {
		delete(s.files, uri)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown preview: %s", uri)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting preview file: %w", err)
	}
	return nil
}

// sanitizeExt keeps only a plain extension from the original file name so
// preview paths never escape the store directory.
func sanitizeExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
