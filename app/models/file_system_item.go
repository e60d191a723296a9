package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	ItemTypeFolder = "folder"
	ItemTypeFile   = "file"
)

const (
	CategoryVideo    = "video"
	CategoryImage    = "image"
	CategoryDocument = "document"
	CategoryAudio    = "audio"
	CategoryOther    = "other"
)

var (
	ErrFolderAttributes = errors.New("models: folders cannot carry size, duration, thumbnail, mime type or storage path")
	ErrMissingCategory  = errors.New("models: files require a valid file category")
	ErrMediaAttributes  = errors.New("models: duration is for audio/video and thumbnails for image/video only")
	ErrInvalidItemType  = errors.New("models: item type must be folder or file")
	ErrItemName         = errors.New("models: name is required and must not exceed 255 characters")
)

// FileSystemItem is one node of the database-backed tree.
//
// ParentID is the nullable self reference. ParentKey mirrors it with 0 for
// root items so the (parent_key, name) unique index also covers root
// siblings; most databases treat NULLs as distinct in unique indexes.
type FileSystemItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null;uniqueIndex:idx_file_system_items_parent_name,priority:2" json:"name"`
	Type         string    `gorm:"size:16;not null;index" json:"type"`
	FileCategory *string   `gorm:"size:16" json:"file_category,omitempty"`
	ParentID     *uint     `gorm:"index" json:"parent_id"`
	ParentKey    uint      `gorm:"not null;default:0;uniqueIndex:idx_file_system_items_parent_name,priority:1" json:"-"`
	Size         *int64    `json:"size,omitempty"`
	Duration     *int      `json:"duration,omitempty"`
	Thumbnail    *string   `gorm:"size:2048" json:"thumbnail,omitempty"`
	MimeType     *string   `gorm:"size:255" json:"mime_type,omitempty"`
	StoragePath  *string   `gorm:"size:1024" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Children only declares the foreign key; it is never preloaded.
	Children []FileSystemItem `gorm:"foreignKey:ParentID" json:"-"`
}

func (FileSystemItem) TableName() string { return "file_system_items" }

func (i *FileSystemItem) IsFolder() bool { return i.Type == ItemTypeFolder }
func (i *FileSystemItem) IsFile() bool   { return i.Type == ItemTypeFile }

// Category returns the file category, "" for folders.
func (i *FileSystemItem) Category() string {
	if i.FileCategory == nil {
		return ""
	}
	return *i.FileCategory
}

// SetParent updates both parent columns.
func (i *FileSystemItem) SetParent(parentID *uint) {
	i.ParentID = parentID
	i.ParentKey = ParentKeyOf(parentID)
}

// ParentKeyOf maps a nullable parent reference onto the unique-index column.
func ParentKeyOf(parentID *uint) uint {
	if parentID == nil {
		return 0
	}
	return *parentID
}

// BeforeSave keeps ParentKey in sync and enforces the folder/file attribute
// rules before anything reaches the table.
func (i *FileSystemItem) BeforeSave(*gorm.DB) error {
	i.ParentKey = ParentKeyOf(i.ParentID)
	return i.Validate()
}

func (i *FileSystemItem) Validate() error {
	if name := strings.TrimSpace(i.Name); name == "" || len(i.Name) > 255 {
		return ErrItemName
	}

	switch i.Type {
	case ItemTypeFolder:
		if i.FileCategory != nil || i.Size != nil || i.Duration != nil ||
			i.Thumbnail != nil || i.MimeType != nil || i.StoragePath != nil {
			return ErrFolderAttributes
		}
		return nil
	case ItemTypeFile:
	default:
		return ErrInvalidItemType
	}

	switch i.Category() {
	case CategoryVideo, CategoryImage, CategoryDocument, CategoryAudio, CategoryOther:
	default:
		return ErrMissingCategory
	}
	c := i.Category()
	if i.Duration != nil && c != CategoryVideo && c != CategoryAudio {
		return ErrMediaAttributes
	}
	if i.Thumbnail != nil && c != CategoryImage && c != CategoryVideo {
		return ErrMediaAttributes
	}
	return nil
}
