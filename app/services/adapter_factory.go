package services

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/filemanager/app/repositories"
	"github.com/shashiranjanraj/filemanager/config"
	"github.com/shashiranjanraj/filemanager/pkg/cache"
	"github.com/shashiranjanraj/filemanager/pkg/event"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/filetype"
	"github.com/shashiranjanraj/filemanager/pkg/storage"
	"github.com/shashiranjanraj/filemanager/pkg/workerpool"
)

// ErrNoDatabase is returned when database mode is selected without a
// connection.
var ErrNoDatabase = errors.New("services: database mode requires a database connection")

// Deps are the shared collaborators handed to whichever adapter is built.
type Deps struct {
	DB       *gorm.DB
	Disks    *storage.Manager
	Registry *filetype.Registry
	Links    filemanager.Linker
	Cache    cache.Store
	Events   *event.Dispatcher
	Logger   *slog.Logger
	Pool     *workerpool.Pool
}

// NewAdapter builds the adapter cfg.Mode names, bound to cfg.Disk. This is
// the only place that knows which concrete adapter is in use; the result is
// wrapped with metrics.
func NewAdapter(cfg config.FileManagerConfig, deps Deps) (filemanager.Adapter, error) {
	if deps.Disks == nil {
		return nil, fmt.Errorf("services: no disks configured")
	}
	disk, err := deps.Disks.Disk(cfg.Disk)
	if err != nil {
		return nil, fmt.Errorf("services: file manager disk: %w", err)
	}

	var a filemanager.Adapter
	switch cfg.Mode {
	case filemanager.ModeDatabase:
		if deps.DB == nil {
			return nil, ErrNoDatabase
		}
		a = NewDatabaseAdapter(repositories.NewFileSystemItemRepository(deps.DB), disk, DatabaseOptions{
			DiskName:  cfg.Disk,
			Directory: cfg.DBDirectory,
			Registry:  deps.Registry,
			Links:     deps.Links,
			Cache:     deps.Cache,
			CacheTTL:  cfg.TreeCacheTTL,
			Events:    deps.Events,
			Logger:    deps.Logger,
		})
	case filemanager.ModeStorage:
		a = filemanager.NewStorageAdapter(disk, filemanager.StorageOptions{
			DiskName:        cfg.Disk,
			Root:            cfg.StorageRoot,
			ShowHidden:      cfg.ShowHidden,
			Overwrite:       cfg.Overwrite,
			Registry:        deps.Registry,
			Links:           deps.Links,
			Cache:           deps.Cache,
			CacheTTL:        cfg.TreeCacheTTL,
			Events:          deps.Events,
			Logger:          deps.Logger,
			Pool:            deps.Pool,
			MoveConcurrency: cfg.MoveConcurrency,
			MoveRetries:     cfg.MoveRetries,
		})
	default:
		return nil, fmt.Errorf("services: unknown file manager mode %q", cfg.Mode)
	}
	return Instrument(a), nil
}
