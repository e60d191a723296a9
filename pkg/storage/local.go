package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LocalDisk is the local-filesystem driver.
type LocalDisk struct {
	root    string // absolute root directory
	baseURL string // public URL prefix for URL()
}

// NewLocalDisk roots a disk at root, made absolute against the working
// directory when relative.
func NewLocalDisk(root, baseURL string) *LocalDisk {
	if !filepath.IsAbs(root) {
		cwd, _ := os.Getwd()
		root = filepath.Join(cwd, root)
	}
	return &LocalDisk{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// abs never resolves outside the root because Clean drops "..".
func (d *LocalDisk) abs(p string) string {
	return filepath.Join(d.root, filepath.FromSlash(Clean(p)))
}

func notFound(op, p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage/local: %s %s: %w", op, p, ErrNotFound)
	}
	return fmt.Errorf("storage/local: %s %s: %w", op, p, err)
}

func (d *LocalDisk) Put(p string, content []byte) error {
	return d.PutStream(p, bytes.NewReader(content))
}

// PutStream writes to a hidden temp file beside the target and renames it
// into place, so readers never see a partial file.
func (d *LocalDisk) PutStream(p string, r io.Reader) error {
	tmp, err := d.writeTemp(p, r)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, d.abs(p)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage/local: rename %s: %w", p, err)
	}
	return nil
}

// PutStreamExclusive hard-links the finished temp file to the target, which
// fails when anything already exists there.
func (d *LocalDisk) PutStreamExclusive(p string, r io.Reader) error {
	tmp, err := d.writeTemp(p, r)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.Link(tmp, d.abs(p)); err != nil {
		return takenErr("create", p, err)
	}
	return nil
}

// writeTemp copies r into a temp file in the target's directory and returns
// its name. The file is gone again when err is non-nil.
func (d *LocalDisk) writeTemp(p string, r io.Reader) (name string, err error) {
	dir := filepath.Dir(d.abs(p))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage/local: mkdir %s: %w", p, err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage/local: create %s: %w", p, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("storage/local: write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage/local: write %s: %w", p, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("storage/local: chmod %s: %w", p, err)
	}
	return tmp.Name(), nil
}

func takenErr(op, p string, err error) error {
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("storage/local: %s %s: %w", op, p, ErrExists)
	}
	return notFound(op, p, err)
}

func (d *LocalDisk) Get(p string) ([]byte, error) {
	data, err := os.ReadFile(d.abs(p))
	if err != nil {
		return nil, notFound("get", p, err)
	}
	return data, nil
}

func (d *LocalDisk) GetStream(p string) (io.ReadCloser, error) {
	f, err := d.openFile(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetRange seeks to offset and caps the reader at length bytes.
func (d *LocalDisk) GetRange(p string, offset, length int64) (io.ReadCloser, error) {
	f, err := d.openFile(p)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("storage/local: seek %s: %w", p, err)
	}
	return limitedReadCloser{Reader: io.LimitReader(f, length), Closer: f}, nil
}

func (d *LocalDisk) openFile(p string) (*os.File, error) {
	full := d.abs(p)
	info, err := os.Stat(full)
	if err != nil {
		return nil, notFound("open", p, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("storage/local: open %s: is a directory: %w", p, ErrNotFound)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, notFound("open", p, err)
	}
	return f, nil
}

func (d *LocalDisk) Exists(p string) bool {
	info, err := os.Stat(d.abs(p))
	return err == nil && !info.IsDir()
}

func (d *LocalDisk) DirectoryExists(p string) bool {
	info, err := os.Stat(d.abs(p))
	return err == nil && info.IsDir()
}

func (d *LocalDisk) Size(p string) (int64, error) {
	info, err := os.Stat(d.abs(p))
	if err != nil {
		return 0, notFound("size", p, err)
	}
	return info.Size(), nil
}

func (d *LocalDisk) LastModified(p string) (time.Time, error) {
	info, err := os.Stat(d.abs(p))
	if err != nil {
		return time.Time{}, notFound("stat", p, err)
	}
	return info.ModTime(), nil
}

// MimeType trusts the extension first and sniffs the first 512 bytes
// otherwise.
func (d *LocalDisk) MimeType(p string) (string, error) {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t, nil
	}
	f, err := d.openFile(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("storage/local: sniff %s: %w", p, err)
	}
	if n == 0 {
		return "", nil
	}
	return http.DetectContentType(buf[:n]), nil
}

func (d *LocalDisk) URL(p string) string {
	return d.baseURL + "/" + Clean(p)
}

func (d *LocalDisk) Delete(p string) error {
	full := d.abs(p)
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return fmt.Errorf("storage/local: delete %s: is a directory", p)
	}
	err := os.Remove(full)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage/local: delete %s: %w", p, err)
	}
	return nil
}

func (d *LocalDisk) Copy(src, dst string) error {
	in, err := d.GetStream(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return d.PutStream(dst, in)
}

// Move replaces dst when it exists.
func (d *LocalDisk) Move(src, dst string) error {
	to := d.abs(dst)
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("storage/local: mkdir: %w", err)
	}
	if err := os.Rename(d.abs(src), to); err != nil {
		return notFound("move", src, err)
	}
	return nil
}

// MoveExclusive links src at dst before unlinking src, so an existing dst
// is never replaced.
func (d *LocalDisk) MoveExclusive(src, dst string) error {
	from, to := d.abs(src), d.abs(dst)
	if info, err := os.Stat(from); err != nil {
		return notFound("move", src, err)
	} else if info.IsDir() {
		return fmt.Errorf("storage/local: move %s: is a directory", src)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("storage/local: mkdir: %w", err)
	}
	if err := os.Link(from, to); err != nil {
		return takenErr("move", dst, err)
	}
	if err := os.Remove(from); err != nil {
		os.Remove(to)
		return fmt.Errorf("storage/local: move %s: %w", src, err)
	}
	return nil
}

// MoveDirectory renames src to dst in one syscall. dst must not exist.
func (d *LocalDisk) MoveDirectory(src, dst string) error {
	from, to := d.abs(src), d.abs(dst)
	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("storage/local: move %s: destination %s exists", src, dst)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("storage/local: mkdir: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return notFound("move", src, err)
	}
	return nil
}

func (d *LocalDisk) Files(directory string) ([]string, error) {
	return d.readDir(directory, false)
}

func (d *LocalDisk) Directories(directory string) ([]string, error) {
	return d.readDir(directory, true)
}

func (d *LocalDisk) readDir(directory string, dirs bool) ([]string, error) {
	entries, err := os.ReadDir(d.abs(directory))
	if err != nil {
		return nil, notFound("list", directory, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() == dirs {
			out = append(out, Join(directory, e.Name()))
		}
	}
	return out, nil
}

func (d *LocalDisk) AllFiles(directory string) ([]string, error) {
	absDir := d.abs(directory)
	var out []string
	err := filepath.WalkDir(absDir, func(p string, info fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(d.root, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, notFound("walk", directory, err)
	}
	sort.Strings(out)
	return out, nil
}

func (d *LocalDisk) MakeDirectory(p string) error {
	if err := os.MkdirAll(d.abs(p), 0o755); err != nil {
		return fmt.Errorf("storage/local: mkdir %s: %w", p, err)
	}
	return nil
}

// MakeDirectoryExclusive creates the parents as needed but fails when the
// last element already exists as a file or directory.
func (d *LocalDisk) MakeDirectoryExclusive(p string) error {
	full := d.abs(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("storage/local: mkdir %s: %w", p, err)
	}
	if err := os.Mkdir(full, 0o755); err != nil {
		return takenErr("mkdir", p, err)
	}
	return nil
}

func (d *LocalDisk) DeleteDirectory(p string) error {
	if Clean(p) == "" {
		return fmt.Errorf("storage/local: refusing to delete disk root")
	}
	if err := os.RemoveAll(d.abs(p)); err != nil {
		return fmt.Errorf("storage/local: rmdir %s: %w", p, err)
	}
	return nil
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}
