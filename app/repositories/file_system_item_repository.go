package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/filemanager/app/models"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
)

// ErrCorruptTree is returned when a parent chain loops or points at a row
// that no longer exists.
var ErrCorruptTree = errors.New("repositories: parent chain is corrupt")

// TreeNode is one folder of the nested tree returned by FolderTree.
type TreeNode struct {
	Item      models.FileSystemItem
	Path      string
	Depth     int
	FileCount int
	Children  []TreeNode
}

// FileSystemItemRepository handles hierarchy operations for FileSystemItem.
// Paths and depths are never stored; they are derived from the parent chain.
type FileSystemItemRepository struct {
	db *gorm.DB
}

func NewFileSystemItemRepository(db *gorm.DB) *FileSystemItemRepository {
	return &FileSystemItemRepository{db: db}
}

func (r *FileSystemItemRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.FileSystemItem{})
}

// Find looks up an item by primary key. A missing row is (nil, nil).
func (r *FileSystemItemRepository) Find(ctx context.Context, id uint) (*models.FileSystemItem, error) {
	return find(r.db.WithContext(ctx), id, false)
}

func find(tx *gorm.DB, id uint, lock bool) (*models.FileSystemItem, error) {
	var item models.FileSystemItem
	q := tx.Model(&models.FileSystemItem{})
	if lock && supportsRowLocks(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repositories: find item %d: %w", id, err)
	}
	return &item, nil
}

// supportsRowLocks reports whether SELECT ... FOR UPDATE is understood.
func supportsRowLocks(tx *gorm.DB) bool {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return true
	}
	return false
}

// Ancestors walks parent references up to the root and returns them root
// first. A root item has no ancestors.
func (r *FileSystemItemRepository) Ancestors(ctx context.Context, item *models.FileSystemItem) ([]models.FileSystemItem, error) {
	return ancestors(r.db.WithContext(ctx), item, false)
}

func ancestors(tx *gorm.DB, item *models.FileSystemItem, lock bool) ([]models.FileSystemItem, error) {
	var chain []models.FileSystemItem
	seen := map[uint]bool{item.ID: true}
	parentID := item.ParentID
	for parentID != nil {
		if seen[*parentID] {
			return nil, fmt.Errorf("%w: item %d revisited", ErrCorruptTree, *parentID)
		}
		seen[*parentID] = true

		parent, err := find(tx, *parentID, lock)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent %d missing", ErrCorruptTree, *parentID)
		}
		chain = append(chain, *parent)
		parentID = parent.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// FullPath renders "/" + ancestor names + own name, e.g. "/a/b/c".
func (r *FileSystemItemRepository) FullPath(ctx context.Context, item *models.FileSystemItem) (string, error) {
	chain, err := r.Ancestors(ctx, item)
	if err != nil {
		return "", err
	}
	return joinPath(chain, item.Name), nil
}

func joinPath(chain []models.FileSystemItem, name string) string {
	var b strings.Builder
	for _, a := range chain {
		b.WriteByte('/')
		b.WriteString(a.Name)
	}
	b.WriteByte('/')
	b.WriteString(name)
	return b.String()
}

// Depth is the number of ancestors; root items are at depth 0.
func (r *FileSystemItemRepository) Depth(ctx context.Context, item *models.FileSystemItem) (int, error) {
	chain, err := r.Ancestors(ctx, item)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}

// ItemsInFolder lists direct children of parentID (nil for the root), folders
// first and then by name.
func (r *FileSystemItemRepository) ItemsInFolder(ctx context.Context, parentID *uint, foldersOnly bool) ([]models.FileSystemItem, error) {
	q := r.query(ctx).Where("parent_key = ?", models.ParentKeyOf(parentID))
	if foldersOnly {
		q = q.Where("type = ?", models.ItemTypeFolder)
	}
	// "folder" sorts after "file", so descending type puts folders first.
	var items []models.FileSystemItem
	if err := q.Order("type desc").Order("name asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("repositories: list folder %d: %w", models.ParentKeyOf(parentID), err)
	}
	return items, nil
}

// DirectFileCount counts direct children that are not folders.
func (r *FileSystemItemRepository) DirectFileCount(ctx context.Context, parentID *uint) (int, error) {
	counts, err := r.fileCounts(ctx, []uint{models.ParentKeyOf(parentID)})
	if err != nil {
		return 0, err
	}
	return counts[models.ParentKeyOf(parentID)], nil
}

func (r *FileSystemItemRepository) fileCounts(ctx context.Context, parentKeys []uint) (map[uint]int, error) {
	var rows []struct {
		ParentKey uint
		Total     int
	}
	err := r.query(ctx).
		Select("parent_key, count(*) as total").
		Where("type <> ? AND parent_key IN ?", models.ItemTypeFolder, parentKeys).
		Group("parent_key").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repositories: count files: %w", err)
	}
	out := make(map[uint]int, len(rows))
	for _, row := range rows {
		out[row.ParentKey] = row.Total
	}
	return out, nil
}

// FolderTree returns the nested folder tree under parentID (nil for the
// root). Folders and file counts are fetched one level per query and the
// tree is assembled in memory.
func (r *FileSystemItemRepository) FolderTree(ctx context.Context, parentID *uint) ([]TreeNode, error) {
	basePath := ""
	baseDepth := 0
	if parentID != nil {
		parent, err := r.Find(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || !parent.IsFolder() {
			return []TreeNode{}, nil
		}
		chain, err := r.Ancestors(ctx, parent)
		if err != nil {
			return nil, err
		}
		basePath = joinPath(chain, parent.Name)
		baseDepth = len(chain) + 1
	}

	rootKey := models.ParentKeyOf(parentID)
	children := map[uint][]models.FileSystemItem{}
	counts := map[uint]int{}
	seen := map[uint]bool{}

	for level := []uint{rootKey}; len(level) > 0; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var folders []models.FileSystemItem
		err := r.query(ctx).
			Where("type = ? AND parent_key IN ?", models.ItemTypeFolder, level).
			Order("name asc").
			Find(&folders).Error
		if err != nil {
			return nil, fmt.Errorf("repositories: folder tree: %w", err)
		}

		next := make([]uint, 0, len(folders))
		for _, f := range folders {
			if seen[f.ID] {
				return nil, fmt.Errorf("%w: item %d revisited", ErrCorruptTree, f.ID)
			}
			seen[f.ID] = true
			children[f.ParentKey] = append(children[f.ParentKey], f)
			next = append(next, f.ID)
		}
		if len(next) > 0 {
			levelCounts, err := r.fileCounts(ctx, next)
			if err != nil {
				return nil, err
			}
			for k, v := range levelCounts {
				counts[k] = v
			}
		}
		level = next
	}

	var build func(key uint, path string, depth int) []TreeNode
	build = func(key uint, path string, depth int) []TreeNode {
		nodes := make([]TreeNode, 0, len(children[key]))
		for _, f := range children[key] {
			p := path + "/" + f.Name
			nodes = append(nodes, TreeNode{
				Item:      f,
				Path:      p,
				Depth:     depth,
				FileCount: counts[f.ID],
				Children:  build(f.ID, p, depth+1),
			})
		}
		return nodes
	}
	return build(rootKey, basePath, baseDepth), nil
}

// ── Mutations ────────────────────────────────────────────────────────────────

// isUniqueViolation recognises the sibling-name index firing. TranslateError
// covers most drivers; the message check covers the rest.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func nameTaken(tx *gorm.DB, parentKey uint, name string, except uint) (bool, error) {
	var n int64
	err := tx.Model(&models.FileSystemItem{}).
		Where("parent_key = ? AND name = ? AND id <> ?", parentKey, name, except).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("repositories: check name %q: %w", name, err)
	}
	return n > 0, nil
}

// folderFor loads the folder a new or moved item should land in. A nil id is
// the root and needs no row.
func folderFor(tx *gorm.DB, parentID *uint, lock bool) (*models.FileSystemItem, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := find(tx, *parentID, lock)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, filemanager.NotFound("Folder")
	}
	if !parent.IsFolder() {
		return nil, &filemanager.Error{Kind: filemanager.ErrNotAFolder, Message: fmt.Sprintf("%q is not a folder", parent.Name)}
	}
	return parent, nil
}

// Create inserts item beneath item.ParentID. The name pre-check gives a
// friendly error; the unique index settles races.
func (r *FileSystemItemRepository) Create(ctx context.Context, item *models.FileSystemItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := folderFor(tx, item.ParentID, true); err != nil {
			return err
		}
		item.SetParent(item.ParentID)
		taken, err := nameTaken(tx, item.ParentKey, item.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return filemanager.Duplicate(item.Name)
		}
		if err := tx.Create(item).Error; err != nil {
			if isUniqueViolation(err) {
				return filemanager.Duplicate(item.Name)
			}
			return fmt.Errorf("repositories: create %q: %w", item.Name, err)
		}
		return nil
	})
}

// Rename changes the name only.
func (r *FileSystemItemRepository) Rename(ctx context.Context, id uint, name string) (*models.FileSystemItem, error) {
	var out *models.FileSystemItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := find(tx, id, true)
		if err != nil {
			return err
		}
		if item == nil {
			return filemanager.NotFound("Item")
		}
		if item.Name == name {
			out = item
			return nil
		}
		taken, err := nameTaken(tx, item.ParentKey, name, item.ID)
		if err != nil {
			return err
		}
		if taken {
			return filemanager.Duplicate(name)
		}
		item.Name = name
		if err := item.Validate(); err != nil {
			return &filemanager.Error{Kind: filemanager.ErrInvalidName, Message: err.Error()}
		}
		if err := tx.Model(item).Update("name", name).Error; err != nil {
			if isUniqueViolation(err) {
				return filemanager.Duplicate(name)
			}
			return fmt.Errorf("repositories: rename %d: %w", id, err)
		}
		out = item
		return nil
	})
	return out, err
}

// MoveTo re-parents an item. newParentID nil moves it to the root. A folder
// cannot be moved into itself or any of its descendants, which is checked by
// looking for the folder in the target's own ancestor chain.
func (r *FileSystemItemRepository) MoveTo(ctx context.Context, id uint, newParentID *uint) (*models.FileSystemItem, error) {
	var out *models.FileSystemItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := find(tx, id, true)
		if err != nil {
			return err
		}
		if item == nil {
			return filemanager.NotFound("Item")
		}
		parent, err := folderFor(tx, newParentID, true)
		if err != nil {
			return err
		}

		if item.IsFolder() && parent != nil {
			if parent.ID == item.ID {
				return filemanager.Circular()
			}
			chain, err := ancestors(tx, parent, true)
			if err != nil {
				return err
			}
			for _, a := range chain {
				if a.ID == item.ID {
					return filemanager.Circular()
				}
			}
		}

		key := models.ParentKeyOf(newParentID)
		if key == item.ParentKey {
			out = item
			return nil
		}
		taken, err := nameTaken(tx, key, item.Name, item.ID)
		if err != nil {
			return err
		}
		if taken {
			return filemanager.Duplicate(item.Name)
		}

		item.SetParent(newParentID)
		err = tx.Model(item).Updates(map[string]any{
			"parent_id":  newParentID,
			"parent_key": key,
		}).Error
		if err != nil {
			if isUniqueViolation(err) {
				return filemanager.Duplicate(item.Name)
			}
			return fmt.Errorf("repositories: move %d: %w", id, err)
		}
		out = item
		return nil
	})
	return out, err
}

// Delete removes an item and, for folders, its whole subtree. Rows go
// deepest level first so the parent foreign key never dangles. The removed
// files are returned so their blobs can be cleaned up after commit.
func (r *FileSystemItemRepository) Delete(ctx context.Context, id uint) ([]models.FileSystemItem, error) {
	removed, files, err := r.DeleteMany(ctx, []uint{id})
	if err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, filemanager.NotFound("Item")
	}
	return files, nil
}

// DeleteMany removes every listed item with its subtree in one transaction.
// removed holds the listed rows that existed, each once; missing ids are
// skipped. files holds every file row deleted, subtrees included.
func (r *FileSystemItemRepository) DeleteMany(ctx context.Context, ids []uint) (removed, files []models.FileSystemItem, err error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var top []models.FileSystemItem
		if err := tx.Model(&models.FileSystemItem{}).Where("id IN ?", ids).Order("id").Find(&top).Error; err != nil {
			return fmt.Errorf("repositories: load items: %w", err)
		}
		if len(top) == 0 {
			return nil
		}

		levels := [][]models.FileSystemItem{top}
		seen := map[uint]bool{}
		for _, it := range top {
			seen[it.ID] = true
		}
		for current := top; len(current) > 0; {
			var parents []uint
			for _, it := range current {
				if it.IsFolder() {
					parents = append(parents, it.ID)
				}
			}
			if len(parents) == 0 {
				break
			}
			var next []models.FileSystemItem
			if err := tx.Model(&models.FileSystemItem{}).Where("parent_id IN ?", parents).Find(&next).Error; err != nil {
				return fmt.Errorf("repositories: load subtree: %w", err)
			}
			// Listed ids nested in another listed folder were already in top.
			fresh := next[:0]
			for _, it := range next {
				if !seen[it.ID] {
					seen[it.ID] = true
					fresh = append(fresh, it)
				}
			}
			if len(fresh) == 0 {
				break
			}
			levels = append(levels, fresh)
			current = fresh
		}

		// A listed id can sit below another listed folder; delete by depth in
		// the real tree rather than by level of discovery.
		all := make([]models.FileSystemItem, 0, len(seen))
		for _, lvl := range levels {
			all = append(all, lvl...)
		}
		for _, batch := range deepestFirst(all) {
			if err := tx.Where("id IN ?", batch).Delete(&models.FileSystemItem{}).Error; err != nil {
				return fmt.Errorf("repositories: delete items: %w", err)
			}
		}
		for _, it := range all {
			if it.IsFile() {
				files = append(files, it)
			}
		}
		removed = top
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return removed, files, nil
}

// deepestFirst groups ids by their height within the set so every child is
// deleted in an earlier batch than its parent.
func deepestFirst(items []models.FileSystemItem) [][]uint {
	byID := make(map[uint]models.FileSystemItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	depth := make(map[uint]int, len(items))
	var depthOf func(id uint) int
	depthOf = func(id uint) int {
		if d, ok := depth[id]; ok {
			return d
		}
		depth[id] = 0
		it := byID[id]
		if it.ParentID != nil {
			if _, inSet := byID[*it.ParentID]; inSet {
				depth[id] = depthOf(*it.ParentID) + 1
			}
		}
		return depth[id]
	}
	maxDepth := 0
	for _, it := range items {
		if d := depthOf(it.ID); d > maxDepth {
			maxDepth = d
		}
	}
	batches := make([][]uint, maxDepth+1)
	for _, it := range items {
		d := depth[it.ID]
		batches[maxDepth-d] = append(batches[maxDepth-d], it.ID)
	}
	return batches
}
