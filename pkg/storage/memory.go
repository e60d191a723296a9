package storage

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

type memFile struct {
	data    []byte
	modTime time.Time
}

// MemoryDisk keeps files in a map. Directories exist when created
// explicitly or implied by a file key beneath them.
//
// FailHook, when set, is consulted before every mutating call (op is one of
// "put", "copy", "move", "delete", "mkdir", "rmdir"); a non-nil result is
// returned instead of performing the operation.
type MemoryDisk struct {
	mu    sync.RWMutex
	files map[string]memFile
	dirs  map[string]struct{}
	now   func() time.Time

	FailHook func(op, path string) error
}

func NewMemoryDisk() *MemoryDisk {
	return &MemoryDisk{
		files: map[string]memFile{},
		dirs:  map[string]struct{}{},
		now:   time.Now,
	}
}

func (d *MemoryDisk) fail(op, p string) error {
	if d.FailHook == nil {
		return nil
	}
	if err := d.FailHook(op, p); err != nil {
		return fmt.Errorf("storage/memory: %s %s: %w", op, p, err)
	}
	return nil
}

func (d *MemoryDisk) Put(p string, content []byte) error {
	if err := d.fail("put", p); err != nil {
		return err
	}
	key := Clean(p)
	if key == "" {
		return fmt.Errorf("storage/memory: put: empty path")
	}
	buf := make([]byte, len(content))
	copy(buf, content)

	d.mu.Lock()
	d.files[key] = memFile{data: buf, modTime: d.now()}
	d.mu.Unlock()
	return nil
}

func (d *MemoryDisk) PutStream(p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("storage/memory: read: %w", err)
	}
	return d.Put(p, data)
}

func (d *MemoryDisk) file(p string) (memFile, error) {
	d.mu.RLock()
	f, ok := d.files[Clean(p)]
	d.mu.RUnlock()
	if !ok {
		return memFile{}, fmt.Errorf("storage/memory: %s: %w", p, ErrNotFound)
	}
	return f, nil
}

func (d *MemoryDisk) Get(p string) ([]byte, error) {
	f, err := d.file(p)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out, nil
}

func (d *MemoryDisk) GetStream(p string) (io.ReadCloser, error) {
	f, err := d.file(p)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (d *MemoryDisk) GetRange(p string, offset, length int64) (io.ReadCloser, error) {
	f, err := d.file(p)
	if err != nil {
		return nil, err
	}
	size := int64(len(f.data))
	if offset > size {
		offset = size
	}
	end := min(offset+length, size)
	return io.NopCloser(bytes.NewReader(f.data[offset:end])), nil
}

func (d *MemoryDisk) Exists(p string) bool {
	_, err := d.file(p)
	return err == nil
}

func (d *MemoryDisk) DirectoryExists(p string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirExists(Clean(p))
}

// dirExists needs d.mu held.
func (d *MemoryDisk) dirExists(key string) bool {
	if key == "" {
		return true
	}
	if _, ok := d.dirs[key]; ok {
		return true
	}
	pfx := key + "/"
	for k := range d.files {
		if strings.HasPrefix(k, pfx) {
			return true
		}
	}
	for k := range d.dirs {
		if strings.HasPrefix(k, pfx) {
			return true
		}
	}
	return false
}

// taken needs d.mu held.
func (d *MemoryDisk) taken(key string) bool {
	_, isFile := d.files[key]
	return isFile || d.dirExists(key)
}

func (d *MemoryDisk) Size(p string) (int64, error) {
	f, err := d.file(p)
	if err != nil {
		return 0, err
	}
	return int64(len(f.data)), nil
}

func (d *MemoryDisk) LastModified(p string) (time.Time, error) {
	f, err := d.file(p)
	if err != nil {
		return time.Time{}, err
	}
	return f.modTime, nil
}

func (d *MemoryDisk) MimeType(p string) (string, error) {
	f, err := d.file(p)
	if err != nil {
		return "", err
	}
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t, nil
	}
	if len(f.data) == 0 {
		return "", nil
	}
	return http.DetectContentType(f.data), nil
}

func (d *MemoryDisk) URL(p string) string { return "memory://" + Clean(p) }

func (d *MemoryDisk) Delete(p string) error {
	if err := d.fail("delete", p); err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.files, Clean(p))
	d.mu.Unlock()
	return nil
}

func (d *MemoryDisk) Copy(src, dst string) error {
	if err := d.fail("copy", src); err != nil {
		return err
	}
	f, err := d.file(src)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.files[Clean(dst)] = memFile{data: f.data, modTime: d.now()}
	d.mu.Unlock()
	return nil
}

func (d *MemoryDisk) Move(src, dst string) error {
	if err := d.fail("move", src); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[Clean(src)]
	if !ok {
		return fmt.Errorf("storage/memory: move %s: %w", src, ErrNotFound)
	}
	delete(d.files, Clean(src))
	d.files[Clean(dst)] = f
	return nil
}

func (d *MemoryDisk) Files(directory string) ([]string, error) {
	dir := Clean(directory)
	if !d.DirectoryExists(dir) {
		return nil, fmt.Errorf("storage/memory: list %s: %w", directory, ErrNotFound)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for k := range d.files {
		if path.Dir("/"+k) == "/"+dir {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *MemoryDisk) AllFiles(directory string) ([]string, error) {
	pfx := dirPrefix(directory)
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for k := range d.files {
		if strings.HasPrefix(k, pfx) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *MemoryDisk) Directories(directory string) ([]string, error) {
	dir := Clean(directory)
	if !d.DirectoryExists(dir) {
		return nil, fmt.Errorf("storage/memory: list %s: %w", directory, ErrNotFound)
	}
	pfx := dirPrefix(dir)

	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := map[string]struct{}{}
	collect := func(k string) {
		if !strings.HasPrefix(k, pfx) {
			return
		}
		rest := strings.TrimPrefix(k, pfx)
		if i := strings.IndexByte(rest, '/'); i > 0 {
			seen[pfx+rest[:i]] = struct{}{}
		}
	}
	for k := range d.files {
		collect(k)
	}
	for k := range d.dirs {
		collect(k + "/")
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (d *MemoryDisk) MakeDirectory(p string) error {
	if err := d.fail("mkdir", p); err != nil {
		return err
	}
	key := Clean(p)
	if key == "" {
		return nil
	}
	d.mu.Lock()
	d.dirs[key] = struct{}{}
	d.mu.Unlock()
	return nil
}

func (d *MemoryDisk) PutStreamExclusive(p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("storage/memory: read: %w", err)
	}
	if err := d.fail("put", p); err != nil {
		return err
	}
	key := Clean(p)
	if key == "" {
		return fmt.Errorf("storage/memory: put: empty path")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.taken(key) {
		return fmt.Errorf("storage/memory: put %s: %w", p, ErrExists)
	}
	d.files[key] = memFile{data: data, modTime: d.now()}
	return nil
}

func (d *MemoryDisk) MakeDirectoryExclusive(p string) error {
	if err := d.fail("mkdir", p); err != nil {
		return err
	}
	key := Clean(p)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.taken(key) {
		return fmt.Errorf("storage/memory: mkdir %s: %w", p, ErrExists)
	}
	d.dirs[key] = struct{}{}
	return nil
}

func (d *MemoryDisk) MoveExclusive(src, dst string) error {
	if err := d.fail("move", src); err != nil {
		return err
	}
	from, to := Clean(src), Clean(dst)
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[from]
	if !ok {
		return fmt.Errorf("storage/memory: move %s: %w", src, ErrNotFound)
	}
	if d.taken(to) {
		return fmt.Errorf("storage/memory: move %s: %w", dst, ErrExists)
	}
	delete(d.files, from)
	d.files[to] = f
	return nil
}

func (d *MemoryDisk) DeleteDirectory(p string) error {
	if err := d.fail("rmdir", p); err != nil {
		return err
	}
	key := Clean(p)
	if key == "" {
		return fmt.Errorf("storage/memory: refusing to delete disk root")
	}
	pfx := key + "/"
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.files {
		if strings.HasPrefix(k, pfx) {
			delete(d.files, k)
		}
	}
	for k := range d.dirs {
		if k == key || strings.HasPrefix(k, pfx) {
			delete(d.dirs, k)
		}
	}
	return nil
}
