package filemanager

import (
	"fmt"
	"io"
)

// Item is the mode-agnostic view of a folder or file. ID is opaque: a numeric
// key in database mode, the disk path in storage mode.
type Item struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	ParentPath   string `json:"parent_path"`
	IsFolder     bool   `json:"is_folder"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type,omitempty"`
	Extension    string `json:"extension,omitempty"`
	LastModified int64  `json:"last_modified"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	Depth        int    `json:"depth"`
	FileType     string `json:"file_type,omitempty"`
	Category     string `json:"category,omitempty"`
	CanPreview   bool   `json:"can_preview"`
	Viewer       string `json:"viewer,omitempty"`

	// StoragePath and Disk locate the bytes. They never leave the server.
	StoragePath string `json:"-"`
	Disk        string `json:"-"`
}

func (i Item) IsFile() bool     { return !i.IsFolder }
func (i Item) IsVideo() bool    { return !i.IsFolder && i.Category == "video" }
func (i Item) IsImage() bool    { return !i.IsFolder && i.Category == "image" }
func (i Item) IsAudio() bool    { return !i.IsFolder && i.Category == "audio" }
func (i Item) IsDocument() bool { return !i.IsFolder && i.Category == "document" }

// FormattedSize renders Size in base-1024 units with one decimal place.
// Zero renders as "".
func (i Item) FormattedSize() string { return FormatSize(i.Size) }

// FormattedDuration renders Duration as M:SS. Minutes are not wrapped into
// hours, so 3661 becomes "61:01".
func (i Item) FormattedDuration() string { return FormatDuration(i.Duration) }

// ToMap flattens the item, derived fields included, for templates and JSON
// clients that expect a plain object.
func (i Item) ToMap() map[string]any {
	return map[string]any{
		"id":                 i.ID,
		"name":               i.Name,
		"path":               i.Path,
		"parent_path":        i.ParentPath,
		"is_folder":          i.IsFolder,
		"is_file":            i.IsFile(),
		"size":               i.Size,
		"formatted_size":     i.FormattedSize(),
		"mime_type":          i.MimeType,
		"extension":          i.Extension,
		"last_modified":      i.LastModified,
		"thumbnail_url":      i.ThumbnailURL,
		"duration":           i.Duration,
		"formatted_duration": i.FormattedDuration(),
		"is_video":           i.IsVideo(),
		"is_image":           i.IsImage(),
		"is_audio":           i.IsAudio(),
		"is_document":        i.IsDocument(),
		"depth":              i.Depth,
		"file_type":          i.FileType,
		"category":           i.Category,
		"can_preview":        i.CanPreview,
		"viewer":             i.Viewer,
	}
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

func FormatSize(n int64) string {
	if n <= 0 {
		return ""
	}
	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}

func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FolderNode is one entry of the nested folder tree.
type FolderNode struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Path      string       `json:"path"`
	Depth     int          `json:"depth"`
	FileCount int          `json:"file_count"`
	Children  []FolderNode `json:"children"`
}

type Breadcrumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// UploadedFile is an incoming file handle. Reader is consumed once.
type UploadedFile struct {
	Name     string
	Size     int64
	MimeType string
	Reader   io.Reader
}
