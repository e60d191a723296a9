// Package filemanager defines the adapter contract shared by the database
// tree and the storage-backed file manager, plus the storage-backed
// implementation itself.
//
// Callers above this package never look at identifier formats. They pass
// the ID they got from an Item back unchanged.
//
// Error contract: mutating methods return *Error (test with IsUserError or
// errors.Is against the Err* kinds) for expected conditions such as
// duplicates, cycles and bad names. Any other error is a backend fault.
// Item returns (nil, nil) for an unknown identifier.
package filemanager

import (
	"context"
	"io"
)

const (
	ModeDatabase = "database"
	ModeStorage  = "storage"
)

// DefaultMaxContents bounds Contents when the caller passes maxSize <= 0.
const DefaultMaxContents int64 = 1 << 20

// Adapter is the uniform surface over both backing stores.
type Adapter interface {
	ModeName() string

	Items(ctx context.Context, path string) ([]Item, error)
	Folders(ctx context.Context, path string) ([]Item, error)
	Item(ctx context.Context, id string) (*Item, error)
	FolderTree(ctx context.Context) ([]FolderNode, error)
	Breadcrumbs(ctx context.Context, path string) ([]Breadcrumb, error)

	CreateFolder(ctx context.Context, name, parentPath string) (*Item, error)
	UploadFile(ctx context.Context, file UploadedFile, path string) (*Item, error)
	Rename(ctx context.Context, id, newName string) error
	Move(ctx context.Context, id, newParentPath string) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int, error)

	Exists(ctx context.Context, id string) bool
	URL(ctx context.Context, id string) (string, error)
	Contents(ctx context.Context, id string, maxSize int64) ([]byte, error)
	Stream(ctx context.Context, id string) (io.ReadCloser, error)
	Size(ctx context.Context, id string) (int64, error)
}

// StreamTarget is what a signed gateway link points at.
type StreamTarget struct {
	Disk       string
	Path       string
	Mode       string
	Identifier string
	Filename   string
}

// Linker turns a StreamTarget into a signed, expiring gateway URL.
type Linker interface {
	StreamURL(t StreamTarget) (string, error)
	DownloadURL(t StreamTarget) (string, error)
}

// Lifecycle events fired after a mutation succeeds.
const (
	EventCreated  = "filemanager.item.created"
	EventUploaded = "filemanager.item.uploaded"
	EventRenamed  = "filemanager.item.renamed"
	EventMoved    = "filemanager.item.moved"
	EventDeleted  = "filemanager.item.deleted"
)

// ItemEvent is the payload of every lifecycle event.
type ItemEvent struct {
	Mode string
	ID   string
	Name string
	From string
	To   string
	Item *Item
}
