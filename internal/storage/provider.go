// Package storage defines the file-system abstraction for rule documents.
package storage

// Provider is the interface for document file operations. Paths are absolute.
type Provider interface {
	// Read returns the raw bytes of the file at path. A missing file yields
	// an error matching os.ErrNotExist.
	Read(path string) ([]byte, error)
	// Write replaces the whole file at path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
}
