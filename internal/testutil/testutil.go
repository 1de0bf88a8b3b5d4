// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
)

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data []byte
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockByteSource) Bytes() []byte {
	return m.data
}

// ZipFile is one member of a test archive.
type ZipFile struct {
	// Name is the member name. A trailing slash marks a directory entry.
	Name string
	Data []byte
	// Store disables DEFLATE for the member.
	Store bool
}

// BuildZip assembles a zip container in memory, preserving member order.
func BuildZip(tb testing.TB, files ...ZipFile) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Deflate
		if f.Store {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   method,
			Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			tb.Fatalf("create zip member %s: %v", f.Name, err)
		}
		if len(f.Data) > 0 {
			if _, err := w.Write(f.Data); err != nil {
				tb.Fatalf("write zip member %s: %v", f.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

// ZipDir archives every regular file below dir, in lexical order, with
// member names relative to dir.
func ZipDir(tb testing.TB, dir string) []byte {
	tb.Helper()

	var files []ZipFile
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path) //nolint:gosec // test fixture path
		if err != nil {
			return err
		}
		files = append(files, ZipFile{Name: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		tb.Fatalf("walk %s: %v", dir, err)
	}
	return BuildZip(tb, files...)
}

// WriteFiles writes test files below dir, creating parents as needed.
func WriteFiles(tb testing.TB, dir string, files map[string][]byte) {
	tb.Helper()
	for path, content := range files {
		fullPath := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			tb.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(fullPath, content, 0o644); err != nil { //nolint:gosec // test fixture
			tb.Fatalf("write %s: %v", path, err)
		}
	}
}

// MockCache implements a basic concurrency-safe result cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[digest.Digest][]byte
	gets int
	puts int
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[digest.Digest][]byte)}
}

// Get retrieves data by key.
func (c *MockCache) Get(key digest.Digest) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.data[key]
	return data, ok
}

// Put stores data by key.
func (c *MockCache) Put(key digest.Digest, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.data[key] = bytes.Clone(content)
	return nil
}

// Counts returns the number of Get and Put calls so far.
func (c *MockCache) Counts() (gets, puts int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gets, c.puts
}

// Len returns the number of cached entries.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
