package services

import (
	"context"
	"io"
	"time"

	"github.com/shashiranjanraj/filemanager/pkg/cache"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/metrics"
)

// instrumented times every adapter call and labels it by outcome.
type instrumented struct {
	next filemanager.Adapter
	mode string
}

// Instrument wraps a with Prometheus timing. Wrapping twice is a no-op.
func Instrument(a filemanager.Adapter) filemanager.Adapter {
	if _, ok := a.(*instrumented); ok {
		return a
	}
	return &instrumented{next: a, mode: a.ModeName()}
}

// Unwrap returns the adapter being measured.
func (m *instrumented) Unwrap() filemanager.Adapter { return m.next }

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case filemanager.IsUserError(err):
		return "user_error"
	default:
		return "error"
	}
}

func (m *instrumented) observe(op string, start time.Time, err error) {
	metrics.ObserveAdapter(m.mode, op, outcome(err), start)
}

func (m *instrumented) ModeName() string { return m.mode }

func (m *instrumented) Items(ctx context.Context, p string) ([]filemanager.Item, error) {
	start := time.Now()
	items, err := m.next.Items(ctx, p)
	m.observe("items", start, err)
	return items, err
}

func (m *instrumented) Folders(ctx context.Context, p string) ([]filemanager.Item, error) {
	start := time.Now()
	items, err := m.next.Folders(ctx, p)
	m.observe("folders", start, err)
	return items, err
}

func (m *instrumented) Item(ctx context.Context, id string) (*filemanager.Item, error) {
	start := time.Now()
	item, err := m.next.Item(ctx, id)
	m.observe("item", start, err)
	return item, err
}

func (m *instrumented) FolderTree(ctx context.Context) ([]filemanager.FolderNode, error) {
	start := time.Now()
	tree, err := m.next.FolderTree(ctx)
	m.observe("folder_tree", start, err)
	return tree, err
}

func (m *instrumented) Breadcrumbs(ctx context.Context, p string) ([]filemanager.Breadcrumb, error) {
	start := time.Now()
	crumbs, err := m.next.Breadcrumbs(ctx, p)
	m.observe("breadcrumbs", start, err)
	return crumbs, err
}

func (m *instrumented) CreateFolder(ctx context.Context, name, parentPath string) (*filemanager.Item, error) {
	start := time.Now()
	item, err := m.next.CreateFolder(ctx, name, parentPath)
	m.observe("create_folder", start, err)
	return item, err
}

func (m *instrumented) UploadFile(ctx context.Context, f filemanager.UploadedFile, p string) (*filemanager.Item, error) {
	start := time.Now()
	item, err := m.next.UploadFile(ctx, f, p)
	m.observe("upload", start, err)
	return item, err
}

func (m *instrumented) Rename(ctx context.Context, id, newName string) error {
	start := time.Now()
	err := m.next.Rename(ctx, id, newName)
	m.observe("rename", start, err)
	return err
}

func (m *instrumented) Move(ctx context.Context, id, newParentPath string) error {
	start := time.Now()
	err := m.next.Move(ctx, id, newParentPath)
	m.observe("move", start, err)
	return err
}

func (m *instrumented) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.Delete(ctx, id)
	m.observe("delete", start, err)
	return err
}

func (m *instrumented) DeleteMany(ctx context.Context, ids []string) (int, error) {
	start := time.Now()
	n, err := m.next.DeleteMany(ctx, ids)
	m.observe("delete_many", start, err)
	return n, err
}

func (m *instrumented) Exists(ctx context.Context, id string) bool {
	return m.next.Exists(ctx, id)
}

func (m *instrumented) URL(ctx context.Context, id string) (string, error) {
	start := time.Now()
	u, err := m.next.URL(ctx, id)
	m.observe("url", start, err)
	return u, err
}

func (m *instrumented) Contents(ctx context.Context, id string, maxSize int64) ([]byte, error) {
	start := time.Now()
	data, err := m.next.Contents(ctx, id, maxSize)
	m.observe("contents", start, err)
	return data, err
}

func (m *instrumented) Stream(ctx context.Context, id string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := m.next.Stream(ctx, id)
	m.observe("stream", start, err)
	return rc, err
}

func (m *instrumented) Size(ctx context.Context, id string) (int64, error) {
	start := time.Now()
	n, err := m.next.Size(ctx, id)
	m.observe("size", start, err)
	return n, err
}

// meteredCache counts hits and misses for a cache.Store.
type meteredCache struct {
	cache.Store
	driver string
}

// MeterCache wraps s so every Get is counted under driver.
func MeterCache(s cache.Store, driver string) cache.Store {
	if s == nil {
		return nil
	}
	return &meteredCache{Store: s, driver: driver}
}

func (c *meteredCache) Get(ctx context.Context, key string, dest any) bool {
	hit := c.Store.Get(ctx, key, dest)
	metrics.ObserveCache(c.driver, hit)
	return hit
}
