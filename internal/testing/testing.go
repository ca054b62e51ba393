// Package testing holds fakes shared by the command, task and server tests: a fake Spotify
// upstream, a manual clock, failing transports and writers for exercising output errors.
package testing

import (
	"errors"
	"io"
	"os"
	"testing"
)

// ErrInjected is returned by every injected failure in this package.
var ErrInjected = errors.New("injected failure")

// BrokenWriter rejects every write.
type BrokenWriter struct{}

func (BrokenWriter) Write([]byte) (int, error) { return 0, ErrInjected }

// QuotaWriter forwards the first n writes to its target and rejects the rest, which lets a test
// fail the trailing newline of an otherwise successful output.
type QuotaWriter struct {
	target    io.Writer
	remaining int
}

// NewQuotaWriter allows n writes to target.
func NewQuotaWriter(n int, target io.Writer) *QuotaWriter {
	return &QuotaWriter{target: target, remaining: n}
}

func (q *QuotaWriter) Write(p []byte) (int, error) {
	if q.remaining <= 0 {
		return 0, ErrInjected
	}
	q.remaining--
	return q.target.Write(p)
}

// RequireFile fails the test unless path is an existing regular file.
func RequireFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected file %s: %v", path, err)
		return
	}
	if info.IsDir() {
		t.Errorf("expected %s to be a file, found a directory", path)
	}
}

// RequireDir fails the test unless path is an existing directory.
func RequireDir(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected directory %s: %v", path, err)
		return
	}
	if !info.IsDir() {
		t.Errorf("expected %s to be a directory", path)
	}
}

// FileContent returns the contents of an exported file, stopping the test if it cannot be read.
func FileContent(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}
