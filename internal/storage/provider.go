// Package storage defines the data directory file-system abstraction.
package storage

import "io/fs"

// Provider is the interface for data directory file operations. Paths are
// relative to the provider root.
type Provider interface {
	// Root returns the absolute path of the data directory.
	Root() string
	// Abs resolves path against the root, rejecting traversal.
	Abs(path string) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}
