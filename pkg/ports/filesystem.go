package ports

import "io"

// File is an open, seekable input file.
type File interface {
	io.Reader
	io.Seeker
	io.Closer
}

// FileSystem abstracts file system operations.
type FileSystem interface {
	// Open opens a file for reading.
	Open(path string) (File, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)
}
