package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/filemanager/app/models"
	"github.com/shashiranjanraj/filemanager/app/repositories"
	"github.com/shashiranjanraj/filemanager/pkg/cache"
	"github.com/shashiranjanraj/filemanager/pkg/event"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/filetype"
	"github.com/shashiranjanraj/filemanager/pkg/logger"
	"github.com/shashiranjanraj/filemanager/pkg/storage"
)

// DatabaseOptions configures a DatabaseAdapter.
type DatabaseOptions struct {
	DiskName  string
	Directory string

	Registry *filetype.Registry
	Links    filemanager.Linker
	Cache    cache.Store
	CacheTTL time.Duration
	Events   *event.Dispatcher
	Logger   *slog.Logger
}

// DatabaseAdapter serves the file_system_items tree. IDs are decimal primary
// keys; file bytes live on a disk under Directory with generated names.
type DatabaseAdapter struct {
	repo *repositories.FileSystemItemRepository
	disk storage.Disk
	opts DatabaseOptions
	log  *slog.Logger
}

var _ filemanager.Adapter = (*DatabaseAdapter)(nil)

func NewDatabaseAdapter(repo *repositories.FileSystemItemRepository, disk storage.Disk, opts DatabaseOptions) *DatabaseAdapter {
	if opts.Registry == nil {
		opts.Registry = filetype.NewDefaultRegistry()
	}
	opts.Directory = storage.Clean(opts.Directory)
	log := opts.Logger
	if log == nil {
		log = logger.L
	}
	return &DatabaseAdapter{
		repo: repo,
		disk: disk,
		opts: opts,
		log:  log.With("adapter", filemanager.ModeDatabase, "disk", opts.DiskName),
	}
}

func (a *DatabaseAdapter) ModeName() string { return filemanager.ModeDatabase }

// Disk exposes the blob disk to the gateway.
func (a *DatabaseAdapter) Disk() storage.Disk { return a.disk }

// parseID turns an opaque identifier into a primary key. ok is false for
// anything that is not a positive integer.
func parseID(id string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func formatID(id uint) string { return strconv.FormatUint(uint64(id), 10) }

// folderRef resolves a folder identifier. "" is the root and yields nil.
func (a *DatabaseAdapter) folderRef(ctx context.Context, p string) (*uint, error) {
	if strings.TrimSpace(p) == "" {
		return nil, nil
	}
	id, ok := parseID(p)
	if !ok {
		return nil, filemanager.NotFound("Folder")
	}
	folder, err := a.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, filemanager.NotFound("Folder")
	}
	if !folder.IsFolder() {
		return nil, &filemanager.Error{Kind: filemanager.ErrNotAFolder, Message: fmt.Sprintf("%q is not a folder", folder.Name)}
	}
	return &folder.ID, nil
}

// ── Item mapping ─────────────────────────────────────────────────────────────

func (a *DatabaseAdapter) toItem(ctx context.Context, m *models.FileSystemItem) (filemanager.Item, error) {
	chain, err := a.repo.Ancestors(ctx, m)
	if err != nil {
		return filemanager.Item{}, err
	}
	return a.itemAt(m, chain), nil
}

// itemAt maps a row whose ancestor chain is already known.
func (a *DatabaseAdapter) itemAt(m *models.FileSystemItem, chain []models.FileSystemItem) filemanager.Item {
	item := filemanager.Item{
		ID:           formatID(m.ID),
		Name:         m.Name,
		Path:         pathOf(chain, m.Name),
		IsFolder:     m.IsFolder(),
		LastModified: m.UpdatedAt.Unix(),
		Depth:        len(chain),
		Disk:         a.opts.DiskName,
	}
	if m.ParentID != nil {
		item.ParentPath = formatID(*m.ParentID)
	}
	if m.IsFolder() {
		return item
	}

	item.Extension = strings.ToLower(strings.TrimPrefix(path.Ext(m.Name), "."))
	if m.Size != nil {
		item.Size = *m.Size
	}
	if m.MimeType != nil {
		item.MimeType = *m.MimeType
	}
	if m.Duration != nil {
		item.Duration = *m.Duration
	}
	if m.StoragePath != nil {
		item.StoragePath = *m.StoragePath
	}

	def := a.opts.Registry.Detect(item.MimeType, m.Name)
	item.FileType = def.ID
	item.Category = m.Category()
	if item.Category == "" {
		item.Category = def.Category()
	}
	item.CanPreview = def.CanPreview
	item.Viewer = def.Viewer

	switch {
	case m.Thumbnail != nil:
		item.ThumbnailURL = *m.Thumbnail
	case item.IsImage() && a.opts.Links != nil && item.StoragePath != "":
		if u, err := a.opts.Links.StreamURL(a.target(m)); err == nil {
			item.ThumbnailURL = u
		}
	}
	return item
}

func pathOf(chain []models.FileSystemItem, name string) string {
	parts := make([]string, 0, len(chain)+1)
	for _, c := range chain {
		parts = append(parts, c.Name)
	}
	return "/" + strings.Join(append(parts, name), "/")
}

func (a *DatabaseAdapter) target(m *models.FileSystemItem) filemanager.StreamTarget {
	t := filemanager.StreamTarget{
		Disk:       a.opts.DiskName,
		Mode:       filemanager.ModeDatabase,
		Identifier: formatID(m.ID),
		Filename:   m.Name,
	}
	if m.StoragePath != nil {
		t.Path = *m.StoragePath
	}
	return t
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (a *DatabaseAdapter) list(ctx context.Context, p string, foldersOnly bool) ([]filemanager.Item, error) {
	parentID, err := a.folderRef(ctx, p)
	if err != nil {
		if filemanager.IsUserError(err) {
			return []filemanager.Item{}, nil
		}
		return nil, err
	}

	var chain []models.FileSystemItem
	if parentID != nil {
		parent, err := a.repo.Find(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if chain, err = a.repo.Ancestors(ctx, parent); err != nil {
			return nil, err
		}
		chain = append(chain, *parent)
	}

	rows, err := a.repo.ItemsInFolder(ctx, parentID, foldersOnly)
	if err != nil {
		return nil, err
	}
	items := make([]filemanager.Item, 0, len(rows))
	for i := range rows {
		items = append(items, a.itemAt(&rows[i], chain))
	}
	return items, nil
}

func (a *DatabaseAdapter) Items(ctx context.Context, p string) ([]filemanager.Item, error) {
	return a.list(ctx, p, false)
}

func (a *DatabaseAdapter) Folders(ctx context.Context, p string) ([]filemanager.Item, error) {
	return a.list(ctx, p, true)
}

func (a *DatabaseAdapter) find(ctx context.Context, id string) (*models.FileSystemItem, error) {
	pk, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	return a.repo.Find(ctx, pk)
}

func (a *DatabaseAdapter) Item(ctx context.Context, id string) (*filemanager.Item, error) {
	m, err := a.find(ctx, id)
	if err != nil || m == nil {
		return nil, err
	}
	item, err := a.toItem(ctx, m)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (a *DatabaseAdapter) treeKey() string {
	return cache.Key("tree", filemanager.ModeDatabase, a.opts.DiskName)
}

func (a *DatabaseAdapter) FolderTree(ctx context.Context) ([]filemanager.FolderNode, error) {
	useCache := a.opts.Cache != nil && a.opts.CacheTTL > 0
	if useCache {
		var cached []filemanager.FolderNode
		if a.opts.Cache.Get(ctx, a.treeKey(), &cached) {
			return cached, nil
		}
	}

	nodes, err := a.repo.FolderTree(ctx, nil)
	if err != nil {
		return nil, err
	}
	tree := toFolderNodes(nodes)
	if useCache {
		if err := a.opts.Cache.Set(ctx, a.treeKey(), tree, a.opts.CacheTTL); err != nil {
			a.log.Warn("folder tree cache write failed", "error", err)
		}
	}
	return tree, nil
}

func toFolderNodes(nodes []repositories.TreeNode) []filemanager.FolderNode {
	out := make([]filemanager.FolderNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, filemanager.FolderNode{
			ID:        formatID(n.Item.ID),
			Name:      n.Item.Name,
			Path:      n.Path,
			Depth:     n.Depth,
			FileCount: n.FileCount,
			Children:  toFolderNodes(n.Children),
		})
	}
	return out
}

func (a *DatabaseAdapter) invalidate(ctx context.Context) {
	if a.opts.Cache == nil {
		return
	}
	if err := a.opts.Cache.Del(ctx, a.treeKey()); err != nil {
		a.log.Warn("folder tree cache invalidation failed", "error", err)
	}
}

// Breadcrumbs lists the ancestors of folder p followed by p itself.
func (a *DatabaseAdapter) Breadcrumbs(ctx context.Context, p string) ([]filemanager.Breadcrumb, error) {
	m, err := a.find(ctx, p)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return []filemanager.Breadcrumb{}, nil
	}
	chain, err := a.repo.Ancestors(ctx, m)
	if err != nil {
		return nil, err
	}
	chain = append(chain, *m)

	crumbs := make([]filemanager.Breadcrumb, 0, len(chain))
	for i := range chain {
		crumbs = append(crumbs, filemanager.Breadcrumb{
			ID:   formatID(chain[i].ID),
			Name: chain[i].Name,
			Path: pathOf(chain[:i], chain[i].Name),
		})
	}
	return crumbs, nil
}

// ── Mutations ────────────────────────────────────────────────────────────────

func (a *DatabaseAdapter) CreateFolder(ctx context.Context, name, parentPath string) (*filemanager.Item, error) {
	if err := filemanager.ValidateName(name); err != nil {
		return nil, err
	}
	parentID, err := a.folderRef(ctx, parentPath)
	if err != nil {
		return nil, err
	}
	m := &models.FileSystemItem{Name: strings.TrimSpace(name), Type: models.ItemTypeFolder, ParentID: parentID}
	if err := a.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	a.invalidate(ctx)

	item, err := a.toItem(ctx, m)
	if err != nil {
		return nil, err
	}
	a.fire(filemanager.EventCreated, filemanager.ItemEvent{ID: item.ID, Name: item.Name, To: item.Path, Item: &item})
	return &item, nil
}

// blobKey names a stored upload; the original name lives only in the row.
func (a *DatabaseAdapter) blobKey(name string) string {
	return storage.Join(a.opts.Directory, uuid.NewString()+strings.ToLower(path.Ext(name)))
}

// UploadFile writes the bytes first and inserts the row after. A rejected
// insert removes the blob again.
func (a *DatabaseAdapter) UploadFile(ctx context.Context, f filemanager.UploadedFile, p string) (*filemanager.Item, error) {
	name := path.Base(storage.Clean(strings.ReplaceAll(f.Name, `\`, "/")))
	if err := filemanager.ValidateName(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if f.Reader == nil {
		return nil, &filemanager.Error{Kind: filemanager.ErrInvalidName, Message: fmt.Sprintf("File %q has no content", name)}
	}
	parentID, err := a.folderRef(ctx, p)
	if err != nil {
		return nil, err
	}

	key := a.blobKey(name)
	if err := a.disk.PutStream(key, f.Reader); err != nil {
		return nil, fmt.Errorf("services/database: store %s: %w", name, err)
	}

	size := f.Size
	if s, err := a.disk.Size(key); err == nil {
		size = s
	}
	mime := f.MimeType
	if mime == "" {
		if m, err := a.disk.MimeType(key); err == nil {
			mime = m
		}
	}
	category := a.opts.Registry.Detect(mime, name).Category()

	m := &models.FileSystemItem{
		Name:         name,
		Type:         models.ItemTypeFile,
		ParentID:     parentID,
		FileCategory: &category,
		Size:         &size,
		StoragePath:  &key,
	}
	if mime != "" {
		m.MimeType = &mime
	}
	if err := a.repo.Create(ctx, m); err != nil {
		if delErr := a.disk.Delete(key); delErr != nil {
			a.log.Warn("orphaned upload blob", "key", key, "error", delErr)
		}
		return nil, err
	}
	a.invalidate(ctx)

	item, err := a.toItem(ctx, m)
	if err != nil {
		return nil, err
	}
	a.fire(filemanager.EventUploaded, filemanager.ItemEvent{ID: item.ID, Name: name, To: item.Path, Item: &item})
	return &item, nil
}

func (a *DatabaseAdapter) existing(ctx context.Context, id string) (*models.FileSystemItem, error) {
	m, err := a.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, filemanager.NotFound("Item")
	}
	return m, nil
}

// Rename changes the name only; the blob key never changes.
func (a *DatabaseAdapter) Rename(ctx context.Context, id, newName string) error {
	if err := filemanager.ValidateName(newName); err != nil {
		return err
	}
	newName = strings.TrimSpace(newName)
	m, err := a.existing(ctx, id)
	if err != nil {
		return err
	}
	from := m.Name
	if _, err := a.repo.Rename(ctx, m.ID, newName); err != nil {
		return err
	}
	a.invalidate(ctx)
	a.fire(filemanager.EventRenamed, filemanager.ItemEvent{ID: formatID(m.ID), Name: newName, From: from, To: newName})
	return nil
}

func (a *DatabaseAdapter) Move(ctx context.Context, id, newParentPath string) error {
	m, err := a.existing(ctx, id)
	if err != nil {
		return err
	}
	parentID, err := a.folderRef(ctx, newParentPath)
	if err != nil {
		return err
	}
	if _, err := a.repo.MoveTo(ctx, m.ID, parentID); err != nil {
		return err
	}
	a.invalidate(ctx)

	ev := filemanager.ItemEvent{ID: formatID(m.ID), Name: m.Name, To: strings.TrimSpace(newParentPath)}
	if m.ParentID != nil {
		ev.From = formatID(*m.ParentID)
	}
	a.fire(filemanager.EventMoved, ev)
	return nil
}

// Delete removes the item and its subtree. Blob removal is best effort and
// happens after the rows are gone.
func (a *DatabaseAdapter) Delete(ctx context.Context, id string) error {
	pk, ok := parseID(id)
	if !ok {
		return filemanager.NotFound("Item")
	}
	files, err := a.repo.Delete(ctx, pk)
	if err != nil {
		return err
	}
	a.removeBlobs(files)
	a.invalidate(ctx)
	a.fire(filemanager.EventDeleted, filemanager.ItemEvent{ID: id, From: id})
	return nil
}

func (a *DatabaseAdapter) DeleteMany(ctx context.Context, ids []string) (int, error) {
	pks := make([]uint, 0, len(ids))
	for _, id := range ids {
		if pk, ok := parseID(id); ok {
			pks = append(pks, pk)
		}
	}
	removed, files, err := a.repo.DeleteMany(ctx, pks)
	if err != nil {
		return 0, err
	}
	a.removeBlobs(files)
	if len(removed) > 0 {
		a.invalidate(ctx)
	}
	for _, m := range removed {
		id := formatID(m.ID)
		a.fire(filemanager.EventDeleted, filemanager.ItemEvent{ID: id, Name: m.Name, From: id})
	}
	return len(removed), nil
}

func (a *DatabaseAdapter) removeBlobs(files []models.FileSystemItem) {
	for _, f := range files {
		if f.StoragePath == nil || *f.StoragePath == "" {
			continue
		}
		if err := a.disk.Delete(*f.StoragePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.log.Warn("orphaned blob after delete", "key", *f.StoragePath, "error", err)
		}
	}
}

// ── Content access ───────────────────────────────────────────────────────────

// blob returns the row and storage key of a file item.
func (a *DatabaseAdapter) blob(ctx context.Context, id string) (*models.FileSystemItem, string, error) {
	m, err := a.find(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if m == nil || !m.IsFile() || m.StoragePath == nil || !a.disk.Exists(*m.StoragePath) {
		return nil, "", filemanager.NotFound("File")
	}
	return m, *m.StoragePath, nil
}

func (a *DatabaseAdapter) Exists(ctx context.Context, id string) bool {
	m, err := a.find(ctx, id)
	return err == nil && m != nil
}

func (a *DatabaseAdapter) URL(ctx context.Context, id string) (string, error) {
	m, key, err := a.blob(ctx, id)
	if err != nil {
		return "", err
	}
	if a.opts.Links == nil {
		return a.disk.URL(key), nil
	}
	return a.opts.Links.StreamURL(a.target(m))
}

func (a *DatabaseAdapter) Contents(ctx context.Context, id string, maxSize int64) ([]byte, error) {
	rc, err := a.Stream(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if maxSize <= 0 {
		maxSize = filemanager.DefaultMaxContents
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxSize))
	if err != nil {
		return nil, fmt.Errorf("services/database: read %s: %w", id, err)
	}
	return data, nil
}

func (a *DatabaseAdapter) Stream(ctx context.Context, id string) (io.ReadCloser, error) {
	_, key, err := a.blob(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, err := a.disk.GetStream(key)
	if err != nil {
		return nil, fmt.Errorf("services/database: open %s: %w", key, err)
	}
	return rc, nil
}

func (a *DatabaseAdapter) Size(ctx context.Context, id string) (int64, error) {
	_, key, err := a.blob(ctx, id)
	if err != nil {
		return 0, err
	}
	return a.disk.Size(key)
}

func (a *DatabaseAdapter) fire(name string, ev filemanager.ItemEvent) {
	ev.Mode = filemanager.ModeDatabase
	a.opts.Events.Fire(name, ev)
}
