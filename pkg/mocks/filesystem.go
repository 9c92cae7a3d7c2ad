package mocks

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// FileSystem is a mock implementation of ports.FileSystem backed by memory.
type FileSystem struct {
	mu     sync.RWMutex
	files  map[string][]byte
	dirs   map[string]bool
	opened []*File

	OpenFunc      func(path string) (ports.File, error)
	ReadFileFunc  func(path string) ([]byte, error)
	WriteFileFunc func(path string, data []byte) error
	MkdirAllFunc  func(path string) error
	ExistsFunc    func(path string) (bool, error)

	// OnClose is installed on every file handed out by Open.
	OnClose func(path string)
}

// NewFileSystem creates a new mock FileSystem.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// AddFile stores data under path.
func (m *FileSystem) AddFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
}

func (m *FileSystem) Open(path string) (ports.File, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	f := &File{Path: path, Reader: bytes.NewReader(data), OnClose: m.OnClose}
	m.opened = append(m.opened, f)
	return f, nil
}

func (m *FileSystem) ReadFile(path string) ([]byte, error) {
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(path)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if data, ok := m.files[path]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("file not found: %s", path)
}

func (m *FileSystem) WriteFile(path string, data []byte) error {
	if m.WriteFileFunc != nil {
		return m.WriteFileFunc(path, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
	return nil
}

func (m *FileSystem) MkdirAll(path string) error {
	if m.MkdirAllFunc != nil {
		return m.MkdirAllFunc(path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path] = true
	return nil
}

func (m *FileSystem) Exists(path string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(path)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.files[path]; ok {
		return true, nil
	}
	if _, ok := m.dirs[path]; ok {
		return true, nil
	}
	return false, nil
}

// GetFile returns the contents of a file (for test verification).
func (m *FileSystem) GetFile(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	return data, ok
}

// Opened returns every file handed out by Open, in order.
func (m *FileSystem) Opened() []*File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*File(nil), m.opened...)
}

// OpenCount returns the number of handles that are still open.
func (m *FileSystem) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, f := range m.opened {
		if f.Closes == 0 {
			n++
		}
	}
	return n
}

// File is an in-memory file handle that records seeks and closes.
type File struct {
	*bytes.Reader
	Path   string
	Seeks  int
	Closes int

	// OnClose is called on every Close when set.
	OnClose func(path string)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.Seeks++
	return f.Reader.Seek(offset, whence)
}

func (f *File) Close() error {
	f.Closes++
	if f.OnClose != nil {
		f.OnClose(f.Path)
	}
	return nil
}

var _ ports.FileSystem = (*FileSystem)(nil)
var _ ports.File = (*File)(nil)
