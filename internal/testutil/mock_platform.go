// mock_platform.go - Mock platform API client for testing
package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// UploadCall records one Upload invocation.
type UploadCall struct {
	Kind     string
	FileName string
	MimeType string
	Size     int64
}

// MockPlatform implements the intake Uploader and Finalizer contracts.
// Zero value behavior: every upload succeeds with a deterministic remote
// URI and every finalize succeeds. Override UploadFn / FinalizeFn to
// script failures or blocking.
type MockPlatform struct {
	mu        sync.Mutex
	uploads   []UploadCall
	finalizes int

	UploadFn   func(ctx context.Context, kind, fileName, mimeType string, r io.Reader) (string, error)
	FinalizeFn func(ctx context.Context) error
}

// NewMockPlatform creates a mock platform client.
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{}
}

func (m *MockPlatform) Upload(ctx context.Context, kind, fileName, mimeType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.uploads = append(m.uploads, UploadCall{
		Kind:     kind,
		FileName: fileName,
		MimeType: mimeType,
		Size:     int64(len(data)),
	})
	m.mu.Unlock()

	if m.UploadFn != nil {
		return m.UploadFn(ctx, kind, fileName, mimeType, r)
	}
	return fmt.Sprintf("https://cdn.caremesh.example.com/docs/%s/%s", kind, fileName), nil
}

func (m *MockPlatform) Finalize(ctx context.Context) error {
	m.mu.Lock()
	m.finalizes++
	m.mu.Unlock()

	if m.FinalizeFn != nil {
		return m.FinalizeFn(ctx)
	}
	return nil
}

// UploadCount returns how many uploads reached the mock.
func (m *MockPlatform) UploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

// Uploads returns a copy of the recorded upload calls.
func (m *MockPlatform) Uploads() []UploadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UploadCall, len(m.uploads))
	copy(out, m.uploads)
	return out
}

// FinalizeCount returns how many finalize calls reached the mock.
func (m *MockPlatform) FinalizeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalizes
}
