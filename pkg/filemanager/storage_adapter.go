package filemanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/shashiranjanraj/filemanager/pkg/cache"
	"github.com/shashiranjanraj/filemanager/pkg/event"
	"github.com/shashiranjanraj/filemanager/pkg/filetype"
	"github.com/shashiranjanraj/filemanager/pkg/logger"
	"github.com/shashiranjanraj/filemanager/pkg/storage"
	"github.com/shashiranjanraj/filemanager/pkg/workerpool"
)

// StorageOptions configures a StorageAdapter. Only Disk is required.
type StorageOptions struct {
	DiskName   string
	Root       string
	ShowHidden bool
	Overwrite  bool

	Registry *filetype.Registry
	Links    Linker
	Cache    cache.Store
	CacheTTL time.Duration
	Events   *event.Dispatcher
	Logger   *slog.Logger

	// Pool runs per-key copies for folder moves. A private pool of
	// MoveConcurrency workers is used per move when nil.
	Pool            *workerpool.Pool
	MoveConcurrency int
	MoveRetries     int
	RetryBackoff    time.Duration
}

// StorageAdapter synthesises the folder tree from a disk's listing. IDs are
// disk keys; directories are inferred from prefixes.
//
// Creates, uploads, renames and moves hold a per-key lock on the target
// from the duplicate check through the write. Disks implementing
// storage.ExclusiveWriter also refuse the write themselves, which covers
// other processes sharing the disk.
type StorageAdapter struct {
	disk  storage.Disk
	opts  StorageOptions
	root  string
	log   *slog.Logger
	names keyLocks
}

var _ Adapter = (*StorageAdapter)(nil)

func NewStorageAdapter(disk storage.Disk, opts StorageOptions) *StorageAdapter {
	if opts.Registry == nil {
		opts.Registry = filetype.NewDefaultRegistry()
	}
	if opts.MoveRetries < 1 {
		opts.MoveRetries = 1
	}
	if opts.MoveConcurrency < 1 {
		opts.MoveConcurrency = 4
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 25 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = logger.L
	}
	return &StorageAdapter{
		disk: disk,
		opts: opts,
		root: storage.Clean(opts.Root),
		log:  log.With("adapter", ModeStorage, "disk", opts.DiskName),
	}
}

func (a *StorageAdapter) ModeName() string { return ModeStorage }

// Disk exposes the bound disk to the gateway.
func (a *StorageAdapter) Disk() storage.Disk { return a.disk }

// ── Path helpers ─────────────────────────────────────────────────────────────

// resolve maps a caller path to a disk key inside the root. An empty path is
// the root itself.
func (a *StorageAdapter) resolve(p string) (string, error) {
	k := storage.Clean(p)
	if k == "" {
		return a.root, nil
	}
	if a.root != "" && k != a.root && !strings.HasPrefix(k, a.root+"/") {
		return "", userError(ErrOutsideRoot, "Path %q is outside the file manager root", p)
	}
	return k, nil
}

func (a *StorageAdapter) relative(k string) string {
	if a.root == "" {
		return k
	}
	return strings.TrimPrefix(strings.TrimPrefix(k, a.root), "/")
}

func (a *StorageAdapter) depth(k string) int {
	rel := a.relative(k)
	if rel == "" {
		return 0
	}
	return strings.Count(rel, "/")
}

func (a *StorageAdapter) parentOf(k string) string {
	if k == a.root {
		return a.root
	}
	dir := path.Dir(k)
	if dir == "." {
		return ""
	}
	return dir
}

func (a *StorageAdapter) hidden(k string) bool {
	return !a.opts.ShowHidden && strings.HasPrefix(path.Base(k), ".")
}

func (a *StorageAdapter) isDir(k string) bool {
	return k == a.root || a.disk.DirectoryExists(k)
}

func (a *StorageAdapter) taken(k string) bool {
	return a.disk.Exists(k) || a.disk.DirectoryExists(k)
}

// ── Item synthesis ───────────────────────────────────────────────────────────

func (a *StorageAdapter) folderItem(k string) Item {
	return Item{
		ID:         k,
		Name:       path.Base(k),
		Path:       k,
		ParentPath: a.parentOf(k),
		IsFolder:   true,
		Depth:      a.depth(k),
		Disk:       a.opts.DiskName,
	}
}

func (a *StorageAdapter) fileItem(k string) Item {
	name := path.Base(k)
	item := Item{
		ID:          k,
		Name:        name,
		Path:        k,
		ParentPath:  a.parentOf(k),
		Extension:   strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")),
		Depth:       a.depth(k),
		StoragePath: k,
		Disk:        a.opts.DiskName,
	}
	if size, err := a.disk.Size(k); err == nil {
		item.Size = size
	}
	if mime, err := a.disk.MimeType(k); err == nil {
		item.MimeType = mime
	}
	if mod, err := a.disk.LastModified(k); err == nil {
		item.LastModified = mod.Unix()
	}

	def := a.opts.Registry.Detect(item.MimeType, name)
	item.FileType = def.ID
	item.Category = def.Category()
	item.CanPreview = def.CanPreview
	item.Viewer = def.Viewer

	if item.IsImage() && a.opts.Links != nil {
		if u, err := a.opts.Links.StreamURL(a.target(k)); err == nil {
			item.ThumbnailURL = u
		}
	}
	return item
}

func (a *StorageAdapter) target(k string) StreamTarget {
	return StreamTarget{Disk: a.opts.DiskName, Path: k, Mode: ModeStorage, Filename: path.Base(k)}
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsFolder != items[j].IsFolder {
			return items[i].IsFolder
		}
		li, lj := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
		if li != lj {
			return li < lj
		}
		return items[i].Name < items[j].Name
	})
}

// ── Reads ────────────────────────────────────────────────────────────────────

// list returns directory and file keys directly under dir. A missing
// directory lists as empty.
func (a *StorageAdapter) list(dir string, withFiles bool) (dirs, files []string, err error) {
	dirs, err = a.disk.Directories(dir)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("filemanager/storage: list %s: %w", dir, err)
	}
	if withFiles {
		files, err = a.disk.Files(dir)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("filemanager/storage: list %s: %w", dir, err)
		}
	}
	return filterHidden(a, dirs), filterHidden(a, files), nil
}

func filterHidden(a *StorageAdapter, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !a.hidden(k) {
			out = append(out, k)
		}
	}
	return out
}

func (a *StorageAdapter) Items(ctx context.Context, p string) ([]Item, error) {
	dir, err := a.resolve(p)
	if err != nil {
		return []Item{}, nil
	}
	dirs, files, err := a.list(dir, true)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(dirs)+len(files))
	for _, d := range dirs {
		items = append(items, a.folderItem(d))
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items = append(items, a.fileItem(f))
	}
	sortItems(items)
	return items, nil
}

func (a *StorageAdapter) Folders(ctx context.Context, p string) ([]Item, error) {
	dir, err := a.resolve(p)
	if err != nil {
		return []Item{}, nil
	}
	dirs, _, err := a.list(dir, false)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(dirs))
	for _, d := range dirs {
		items = append(items, a.folderItem(d))
	}
	sortItems(items)
	return items, nil
}

func (a *StorageAdapter) Item(_ context.Context, id string) (*Item, error) {
	k, err := a.resolve(id)
	if err != nil || k == "" || k == a.root {
		return nil, nil
	}
	if a.disk.Exists(k) {
		item := a.fileItem(k)
		return &item, nil
	}
	if a.disk.DirectoryExists(k) {
		item := a.folderItem(k)
		return &item, nil
	}
	return nil, nil
}

func (a *StorageAdapter) treeKey() string {
	return cache.Key("tree", a.opts.DiskName, a.root, fmt.Sprint(a.opts.ShowHidden))
}

// FolderTree walks directories from the root. The result is cached when a
// cache store and a positive TTL are configured.
func (a *StorageAdapter) FolderTree(ctx context.Context) ([]FolderNode, error) {
	useCache := a.opts.Cache != nil && a.opts.CacheTTL > 0
	if useCache {
		var cached []FolderNode
		if a.opts.Cache.Get(ctx, a.treeKey(), &cached) {
			return cached, nil
		}
	}

	tree, err := a.walk(ctx, a.root, 0)
	if err != nil {
		return nil, err
	}
	if useCache {
		if err := a.opts.Cache.Set(ctx, a.treeKey(), tree, a.opts.CacheTTL); err != nil {
			a.log.Warn("folder tree cache write failed", "error", err)
		}
	}
	return tree, nil
}

func (a *StorageAdapter) walk(ctx context.Context, dir string, depth int) ([]FolderNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirs, _, err := a.list(dir, false)
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)

	nodes := make([]FolderNode, 0, len(dirs))
	for _, d := range dirs {
		_, files, err := a.list(d, true)
		if err != nil {
			return nil, err
		}
		children, err := a.walk(ctx, d, depth+1)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, FolderNode{
			ID:        d,
			Name:      path.Base(d),
			Path:      d,
			Depth:     depth,
			FileCount: len(files),
			Children:  children,
		})
	}
	return nodes, nil
}

func (a *StorageAdapter) invalidate(ctx context.Context) {
	if a.opts.Cache == nil {
		return
	}
	if err := a.opts.Cache.Del(ctx, a.treeKey()); err != nil {
		a.log.Warn("folder tree cache invalidation failed", "error", err)
	}
}

// Breadcrumbs lists every folder from the root down to p, p included. The
// root itself is not part of the trail.
func (a *StorageAdapter) Breadcrumbs(_ context.Context, p string) ([]Breadcrumb, error) {
	k, err := a.resolve(p)
	if err != nil {
		return []Breadcrumb{}, nil
	}
	rel := a.relative(k)
	if rel == "" {
		return []Breadcrumb{}, nil
	}

	parts := strings.Split(rel, "/")
	crumbs := make([]Breadcrumb, 0, len(parts))
	cur := a.root
	for _, part := range parts {
		cur = storage.Join(cur, part)
		crumbs = append(crumbs, Breadcrumb{ID: cur, Name: part, Path: cur})
	}
	return crumbs, nil
}

// ── Mutations ────────────────────────────────────────────────────────────────

func (a *StorageAdapter) parentDir(p string) (string, error) {
	dir, err := a.resolve(p)
	if err != nil {
		return "", err
	}
	if a.disk.Exists(dir) {
		return "", userError(ErrNotAFolder, "%q is not a folder", path.Base(dir))
	}
	if !a.isDir(dir) {
		return "", NotFound("Folder")
	}
	return dir, nil
}

func (a *StorageAdapter) CreateFolder(ctx context.Context, name, parentPath string) (*Item, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	parent, err := a.parentDir(parentPath)
	if err != nil {
		return nil, err
	}
	k := storage.Join(parent, name)
	unlock := a.names.lock(k)
	defer unlock()
	if a.taken(k) {
		return nil, Duplicate(name)
	}
	if err := a.makeDirectory(k); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return nil, Duplicate(name)
		}
		return nil, fmt.Errorf("filemanager/storage: create folder %s: %w", k, err)
	}
	a.invalidate(ctx)

	item := a.folderItem(k)
	a.fire(EventCreated, ItemEvent{ID: k, Name: name, To: k, Item: &item})
	return &item, nil
}

// UploadFile rejects a name already taken unless Overwrite is set. A folder
// with the same name is never overwritten.
func (a *StorageAdapter) UploadFile(ctx context.Context, f UploadedFile, p string) (*Item, error) {
	name := path.Base(storage.Clean(f.Name))
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if f.Reader == nil {
		return nil, userError(ErrInvalidName, "File %q has no content", name)
	}
	parent, err := a.parentDir(p)
	if err != nil {
		return nil, err
	}
	k := storage.Join(parent, name)
	unlock := a.names.lock(k)
	defer unlock()
	if a.disk.DirectoryExists(k) || (!a.opts.Overwrite && a.disk.Exists(k)) {
		return nil, Duplicate(name)
	}
	if err := a.putFile(k, f.Reader); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return nil, Duplicate(name)
		}
		return nil, fmt.Errorf("filemanager/storage: upload %s: %w", k, err)
	}
	a.invalidate(ctx)

	item := a.fileItem(k)
	a.fire(EventUploaded, ItemEvent{ID: k, Name: name, To: k, Item: &item})
	return &item, nil
}

func (a *StorageAdapter) makeDirectory(k string) error {
	if ex, ok := a.disk.(storage.ExclusiveWriter); ok {
		return ex.MakeDirectoryExclusive(k)
	}
	return a.disk.MakeDirectory(k)
}

// putFile replaces an existing file only when Overwrite is set.
func (a *StorageAdapter) putFile(k string, r io.Reader) error {
	if ex, ok := a.disk.(storage.ExclusiveWriter); ok && !a.opts.Overwrite {
		return ex.PutStreamExclusive(k, r)
	}
	return a.disk.PutStream(k, r)
}

// existing resolves id to a key that is a file or a non-root folder.
func (a *StorageAdapter) existing(id string) (k string, isFolder bool, err error) {
	k, err = a.resolve(id)
	if err != nil {
		return "", false, err
	}
	if k == "" || k == a.root {
		return "", false, userError(ErrInvalidName, "The root folder cannot be changed")
	}
	if a.disk.Exists(k) {
		return k, false, nil
	}
	if a.disk.DirectoryExists(k) {
		return k, true, nil
	}
	return "", false, NotFound("Item")
}

func (a *StorageAdapter) Rename(ctx context.Context, id, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}
	newName = strings.TrimSpace(newName)
	k, isFolder, err := a.existing(id)
	if err != nil {
		return err
	}
	dst := storage.Join(a.parentOf(k), newName)
	if dst == k {
		return nil
	}
	unlock := a.names.lock(dst)
	defer unlock()
	if a.taken(dst) {
		return Duplicate(newName)
	}

	if isFolder {
		err = a.moveTree(ctx, "rename", k, dst)
	} else {
		err = a.moveFile(k, dst)
	}
	if err != nil {
		return err
	}
	a.invalidate(ctx)
	a.fire(EventRenamed, ItemEvent{ID: dst, Name: newName, From: k, To: dst})
	return nil
}

// moveFile never replaces dst. The move is a single disk call when the disk
// can do it exclusively.
func (a *StorageAdapter) moveFile(src, dst string) error {
	ex, ok := a.disk.(storage.ExclusiveWriter)
	if !ok {
		return a.copyThenDelete(src, dst)
	}
	if err := ex.MoveExclusive(src, dst); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return Duplicate(path.Base(dst))
		}
		return fmt.Errorf("filemanager/storage: move %s: %w", src, err)
	}
	return nil
}

func (a *StorageAdapter) copyThenDelete(src, dst string) error {
	if err := a.disk.Copy(src, dst); err != nil {
		return fmt.Errorf("filemanager/storage: copy %s: %w", src, err)
	}
	if err := a.disk.Delete(src); err != nil {
		if rbErr := a.disk.Delete(dst); rbErr != nil {
			a.log.Error("rename rollback failed", "from", src, "to", dst, "error", rbErr)
		}
		return fmt.Errorf("filemanager/storage: delete %s: %w", src, err)
	}
	return nil
}

func (a *StorageAdapter) Move(ctx context.Context, id, newParentPath string) error {
	k, isFolder, err := a.existing(id)
	if err != nil {
		return err
	}
	dest, err := a.parentDir(newParentPath)
	if err != nil {
		return err
	}
	if isFolder && (dest == k || strings.HasPrefix(dest, k+"/")) {
		return Circular()
	}
	dst := storage.Join(dest, path.Base(k))
	if dst == k {
		return nil
	}
	unlock := a.names.lock(dst)
	defer unlock()
	if a.taken(dst) {
		return Duplicate(path.Base(k))
	}

	if isFolder {
		err = a.moveTree(ctx, "move", k, dst)
	} else {
		err = a.moveFile(k, dst)
	}
	if err != nil {
		return err
	}
	a.invalidate(ctx)
	a.fire(EventMoved, ItemEvent{ID: dst, Name: path.Base(k), From: k, To: dst})
	return nil
}

func (a *StorageAdapter) Delete(ctx context.Context, id string) error {
	k, isFolder, err := a.existing(id)
	if err != nil {
		return err
	}
	if err := a.remove(k, isFolder); err != nil {
		return err
	}
	a.invalidate(ctx)
	a.fire(EventDeleted, ItemEvent{ID: k, Name: path.Base(k), From: k})
	return nil
}

func (a *StorageAdapter) remove(k string, isFolder bool) error {
	var err error
	if isFolder {
		err = a.disk.DeleteDirectory(k)
	} else {
		err = a.disk.Delete(k)
	}
	if err != nil {
		return fmt.Errorf("filemanager/storage: delete %s: %w", k, err)
	}
	return nil
}

// DeleteMany skips identifiers that do not exist. Backend faults do not stop
// the batch; they are joined into the returned error.
func (a *StorageAdapter) DeleteMany(ctx context.Context, ids []string) (int, error) {
	var (
		count int
		errs  []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		k, isFolder, err := a.existing(id)
		if err != nil {
			continue
		}
		if err := a.remove(k, isFolder); err != nil {
			errs = append(errs, err)
			continue
		}
		count++
		a.fire(EventDeleted, ItemEvent{ID: k, Name: path.Base(k), From: k})
	}
	if count > 0 {
		a.invalidate(ctx)
	}
	return count, errors.Join(errs...)
}

// ── Content access ───────────────────────────────────────────────────────────

func (a *StorageAdapter) file(id string) (string, error) {
	k, err := a.resolve(id)
	if err != nil || k == "" || !a.disk.Exists(k) {
		return "", NotFound("File")
	}
	return k, nil
}

func (a *StorageAdapter) Exists(_ context.Context, id string) bool {
	k, err := a.resolve(id)
	if err != nil || k == "" || k == a.root {
		return false
	}
	return a.taken(k)
}

// URL returns a signed gateway link, or the disk's raw URL when no Linker
// is configured.
func (a *StorageAdapter) URL(_ context.Context, id string) (string, error) {
	k, err := a.file(id)
	if err != nil {
		return "", err
	}
	if a.opts.Links == nil {
		return a.disk.URL(k), nil
	}
	return a.opts.Links.StreamURL(a.target(k))
}

func (a *StorageAdapter) Contents(_ context.Context, id string, maxSize int64) ([]byte, error) {
	k, err := a.file(id)
	if err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxContents
	}
	rc, err := a.disk.GetStream(k)
	if err != nil {
		return nil, fmt.Errorf("filemanager/storage: open %s: %w", k, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxSize))
	if err != nil {
		return nil, fmt.Errorf("filemanager/storage: read %s: %w", k, err)
	}
	return data, nil
}

func (a *StorageAdapter) Stream(_ context.Context, id string) (io.ReadCloser, error) {
	k, err := a.file(id)
	if err != nil {
		return nil, err
	}
	rc, err := a.disk.GetStream(k)
	if err != nil {
		return nil, fmt.Errorf("filemanager/storage: open %s: %w", k, err)
	}
	return rc, nil
}

func (a *StorageAdapter) Size(_ context.Context, id string) (int64, error) {
	k, err := a.file(id)
	if err != nil {
		return 0, err
	}
	return a.disk.Size(k)
}

func (a *StorageAdapter) fire(name string, ev ItemEvent) {
	ev.Mode = ModeStorage
	a.opts.Events.Fire(name, ev)
}
