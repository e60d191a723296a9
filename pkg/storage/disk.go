// Package storage addresses files on named disks by slash-separated keys.
// Keys never carry a leading or trailing slash, and listings return them in
// that form. Drivers: LocalDisk (a directory), S3Disk (any S3-compatible
// store) and MemoryDisk (tests).
//
//	m := storage.NewManager("local")
//	m.Register("local", storage.NewLocalDisk("storage", "http://localhost:8080/storage"))
//	disk, _ := m.Disk("local")
//	disk.Put("images/photo.jpg", data)
package storage

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is wrapped by drivers for a missing file or directory.
	ErrNotFound = errors.New("storage: not found")
	// ErrDiskNotConfigured is returned by Manager.Disk for unknown names.
	ErrDiskNotConfigured = errors.New("storage: disk not configured")
	// ErrExists is wrapped by ExclusiveWriter calls when the key is taken.
	ErrExists = errors.New("storage: already exists")
)

// DeleteError is returned by DeleteDirectory when the backend accepted the
// request but kept some keys.
type DeleteError struct {
	Path   string
	Failed []string
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("storage: delete directory %s: %d keys not deleted: %s",
		e.Path, len(e.Failed), strings.Join(e.Failed, ", "))
}

// Reader is the read side of a disk.
type Reader interface {
	Get(path string) ([]byte, error)
	// GetStream opens the file; the caller closes it.
	GetStream(path string) (io.ReadCloser, error)

	Exists(path string) bool
	Size(path string) (int64, error)
	LastModified(path string) (time.Time, error)
	// MimeType is "" when the driver cannot tell.
	MimeType(path string) (string, error)
	// URL is the driver's own public URL, not a signed gateway link.
	URL(path string) string
}

// Writer changes files. Put and PutStream create parent directories;
// Delete of a missing file is not an error.
type Writer interface {
	Put(path string, content []byte) error
	PutStream(path string, r io.Reader) error
	Delete(path string) error
	Copy(src, dst string) error
	Move(src, dst string) error
}

// Directories are real on local disks and "prefix/" markers plus implied
// prefixes on object stores.
type DirectoryOps interface {
	DirectoryExists(path string) bool
	// Files and Directories list immediate children; AllFiles recurses.
	Files(directory string) ([]string, error)
	AllFiles(directory string) ([]string, error)
	Directories(directory string) ([]string, error)
	MakeDirectory(path string) error
	DeleteDirectory(path string) error
}

// Disk is a full driver.
type Disk interface {
	Reader
	Writer
	DirectoryOps
}

// ExclusiveWriter is implemented by disks that can create a key only when
// no file or directory is stored under it yet. The check and the write are
// one step for the backend; a collision wraps ErrExists and leaves the
// existing entry untouched.
type ExclusiveWriter interface {
	PutStreamExclusive(path string, r io.Reader) error
	MakeDirectoryExclusive(path string) error
	// MoveExclusive moves a file.
	MoveExclusive(src, dst string) error
}

// DirectoryMover is implemented by disks that can rename a whole directory
// in one step.
type DirectoryMover interface {
	MoveDirectory(src, dst string) error
}

// RangeReader is implemented by disks that can open a byte range without
// reading the preceding bytes.
type RangeReader interface {
	GetRange(path string, offset, length int64) (io.ReadCloser, error)
}

// Clean normalises p to the key form used by every driver.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.Trim(p, "/")
}

// Join builds a key from parts, ignoring empty ones.
func Join(parts ...string) string {
	return Clean(path.Join(parts...))
}

var (
	_ ExclusiveWriter = (*LocalDisk)(nil)
	_ ExclusiveWriter = (*MemoryDisk)(nil)
	_ ExclusiveWriter = (*S3Disk)(nil)
)
