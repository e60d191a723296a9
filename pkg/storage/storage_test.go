package storage_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/config"
	"github.com/shashiranjanraj/filemanager/pkg/storage"
)

func disks(t *testing.T) map[string]storage.Disk {
	return map[string]storage.Disk{
		"local":  storage.NewLocalDisk(t.TempDir(), "http://cdn.test"),
		"memory": storage.NewMemoryDisk(),
	}
}

func TestClean(t *testing.T) {
	assert.Equal(t, "", storage.Clean(""))
	assert.Equal(t, "", storage.Clean("/"))
	assert.Equal(t, "a/b", storage.Clean("/a//b/"))
	assert.Equal(t, "etc/passwd", storage.Clean("../../etc/passwd"))
	assert.Equal(t, "a/b", storage.Clean(`a\b`))
	assert.Equal(t, "a/b.txt", storage.Join("", "a", "b.txt"))
}

func TestDiskContract(t *testing.T) {
	for name, d := range disks(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, d.Put("docs/readme.txt", []byte("hello world")))
			require.NoError(t, d.Put("docs/sub/deep.txt", []byte("x")))
			require.NoError(t, d.Put("top.png", []byte("png")))
			require.NoError(t, d.MakeDirectory("empty"))

			assert.True(t, d.Exists("docs/readme.txt"))
			assert.False(t, d.Exists("docs/none.txt"))
			assert.False(t, d.Exists("docs"))
			assert.True(t, d.DirectoryExists("docs"))
			assert.True(t, d.DirectoryExists("empty"))
			assert.False(t, d.DirectoryExists("top.png"))

			size, err := d.Size("docs/readme.txt")
			require.NoError(t, err)
			assert.EqualValues(t, 11, size)

			mt, err := d.MimeType("top.png")
			require.NoError(t, err)
			assert.Equal(t, "image/png", mt)

			files, err := d.Files("docs")
			require.NoError(t, err)
			assert.Equal(t, []string{"docs/readme.txt"}, files)

			dirs, err := d.Directories("")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"docs", "empty"}, dirs)

			all, err := d.AllFiles("docs")
			require.NoError(t, err)
			assert.Equal(t, []string{"docs/readme.txt", "docs/sub/deep.txt"}, all)

			require.NoError(t, d.Copy("top.png", "copy.png"))
			require.NoError(t, d.Move("copy.png", "docs/moved.png"))
			assert.False(t, d.Exists("copy.png"))
			assert.True(t, d.Exists("docs/moved.png"))

			rr, ok := d.(storage.RangeReader)
			require.True(t, ok)
			rc, err := rr.GetRange("docs/readme.txt", 6, 5)
			require.NoError(t, err)
			part, err := io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
			assert.Equal(t, "world", string(part))

			require.NoError(t, d.DeleteDirectory("docs"))
			assert.False(t, d.DirectoryExists("docs"))
			assert.True(t, d.Exists("top.png"))
			assert.Error(t, d.DeleteDirectory(""))

			require.NoError(t, d.Delete("top.png"))
			require.NoError(t, d.Delete("top.png"))

			_, err = d.Get("top.png")
			assert.True(t, errors.Is(err, storage.ErrNotFound))
		})
	}
}

func TestLocalMoveDirectory(t *testing.T) {
	d := storage.NewLocalDisk(t.TempDir(), "")
	require.NoError(t, d.Put("a/one.txt", []byte("1")))
	require.NoError(t, d.Put("b/keep.txt", []byte("2")))

	require.NoError(t, d.MoveDirectory("a", "c/a"))
	assert.True(t, d.Exists("c/a/one.txt"))
	assert.False(t, d.DirectoryExists("a"))

	assert.Error(t, d.MoveDirectory("c", "b"))
}

func TestLocalURL(t *testing.T) {
	d := storage.NewLocalDisk(t.TempDir(), "http://cdn.test/")
	assert.Equal(t, "http://cdn.test/a/b.txt", d.URL("/a/b.txt"))
}

func TestMemoryFailHook(t *testing.T) {
	d := storage.NewMemoryDisk()
	boom := errors.New("boom")
	d.FailHook = func(op, p string) error {
		if op == "put" && p == "bad.txt" {
			return boom
		}
		return nil
	}
	require.NoError(t, d.Put("good.txt", nil))
	assert.ErrorIs(t, d.Put("bad.txt", nil), boom)
}

func TestManager(t *testing.T) {
	m := storage.NewManager("mem")
	m.Register("mem", storage.NewMemoryDisk())

	_, err := m.Default()
	require.NoError(t, err)
	assert.True(t, m.Has("mem"))

	_, err = m.Disk("nope")
	assert.ErrorIs(t, err, storage.ErrDiskNotConfigured)
	assert.Equal(t, []string{"mem"}, m.Names())
}

func TestConnectWithSkipsS3WithoutBucket(t *testing.T) {
	m := storage.ConnectWith(config.StorageConfig{
		Default:    "public",
		LocalRoot:  t.TempDir(),
		PublicRoot: t.TempDir(),
		URL:        "http://cdn.test",
	})

	assert.Equal(t, []string{"local", "public"}, m.Names())
	d, err := m.Default()
	require.NoError(t, err)
	require.NoError(t, d.Put("a.txt", []byte("a")))

	pub, err := m.Disk("public")
	require.NoError(t, err)
	assert.True(t, pub.Exists("a.txt"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestLocalPutStreamIsAtomic(t *testing.T) {
	d := storage.NewLocalDisk(t.TempDir(), "")
	require.NoError(t, d.Put("docs/a.txt", []byte("original")))

	assert.Error(t, d.PutStream("docs/a.txt", io.MultiReader(strings.NewReader("partial"), failingReader{})))

	got, err := d.Get("docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	files, err := d.Files("docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.txt"}, files, "no temp file is left behind")
}

func TestExclusiveWritesRefuseTakenKeys(t *testing.T) {
	for name, d := range disks(t) {
		t.Run(name, func(t *testing.T) {
			ex, ok := d.(storage.ExclusiveWriter)
			require.True(t, ok)
			require.NoError(t, d.Put("docs/a.txt", []byte("first")))

			assert.ErrorIs(t, ex.PutStreamExclusive("docs/a.txt", strings.NewReader("second")), storage.ErrExists)
			data, err := d.Get("docs/a.txt")
			require.NoError(t, err)
			assert.Equal(t, "first", string(data))
			assert.ErrorIs(t, ex.PutStreamExclusive("docs", strings.NewReader("x")), storage.ErrExists)

			require.NoError(t, ex.MakeDirectoryExclusive("docs/new"))
			assert.True(t, d.DirectoryExists("docs/new"))
			assert.ErrorIs(t, ex.MakeDirectoryExclusive("docs/new"), storage.ErrExists)
			assert.ErrorIs(t, ex.MakeDirectoryExclusive("docs/a.txt"), storage.ErrExists)

			require.NoError(t, ex.PutStreamExclusive("docs/b.txt", strings.NewReader("b")))
			assert.ErrorIs(t, ex.MoveExclusive("docs/b.txt", "docs/a.txt"), storage.ErrExists)
			assert.True(t, d.Exists("docs/b.txt"))
			require.NoError(t, ex.MoveExclusive("docs/b.txt", "other/b.txt"))
			assert.False(t, d.Exists("docs/b.txt"))
			assert.True(t, d.Exists("other/b.txt"))

			assert.ErrorIs(t, ex.MoveExclusive("ghost.txt", "x.txt"), storage.ErrNotFound)

			files, err := d.Files("docs")
			require.NoError(t, err)
			assert.Equal(t, []string{"docs/a.txt"}, files)
		})
	}
}
