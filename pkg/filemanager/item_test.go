package filemanager_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
)

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		0:          "",
		1:          "1.0 B",
		1023:       "1023.0 B",
		1024:       "1.0 KB",
		1536:       "1.5 KB",
		1048576:    "1.0 MB",
		1073741824: "1.0 GB",
		1 << 40:    "1.0 TB",
		1 << 50:    "1024.0 TB",
	}
	for in, want := range cases {
		assert.Equal(t, want, filemanager.FormatSize(in), "size %d", in)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int]string{
		0:    "",
		59:   "0:59",
		90:   "1:30",
		3661: "61:01",
	}
	for in, want := range cases {
		assert.Equal(t, want, filemanager.Item{Duration: in}.FormattedDuration(), "duration %d", in)
	}
}

func TestItemFlags(t *testing.T) {
	video := filemanager.Item{Category: "video"}
	assert.True(t, video.IsVideo())
	assert.True(t, video.IsFile())
	assert.False(t, video.IsImage())

	folder := filemanager.Item{IsFolder: true, Category: "video"}
	assert.False(t, folder.IsVideo())

	m := filemanager.Item{ID: "7", Name: "a.mp3", Size: 1536, Duration: 90, Category: "audio"}.ToMap()
	assert.Equal(t, "1.5 KB", m["formatted_size"])
	assert.Equal(t, "1:30", m["formatted_duration"])
	assert.Equal(t, true, m["is_audio"])
	assert.Equal(t, false, m["is_folder"])
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", filemanager.SanitizeFilename("../../etc/report.pdf"))
	assert.Equal(t, "report.pdf", filemanager.SanitizeFilename(`C:\Users\me\report.pdf`))
	assert.Equal(t, "my file-1_.txt", filemanager.SanitizeFilename("my file-1_.txt"))
	assert.Equal(t, "caf_.txt", filemanager.SanitizeFilename("café.txt"))
	assert.Equal(t, "download", filemanager.SanitizeFilename(""))
	assert.Equal(t, "download", filemanager.SanitizeFilename("dir/"))

	got := filemanager.SanitizeFilename(`<script>alert("x")</script>.html`)
	assert.NotContains(t, got, "<")
	assert.NotContains(t, got, ">")
	assert.NotContains(t, got, `"`)
	assert.True(t, strings.HasSuffix(got, ".html"))

	long := strings.Repeat("a", 300) + ".jpeg"
	got = filemanager.SanitizeFilename(long)
	assert.Len(t, got, 255)
	assert.True(t, strings.HasSuffix(got, ".jpeg"))
}

func TestSanitizeStripsControlCharacters(t *testing.T) {
	got := filemanager.SanitizeFilename("evil\r\nSet-Cookie: x.txt")
	assert.NotContains(t, got, "\r")
	assert.NotContains(t, got, "\n")
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", "   ", ".", "..", "a/b", `a\b`, "tab\tname", strings.Repeat("x", 256)} {
		err := filemanager.ValidateName(bad)
		assert.True(t, errors.Is(err, filemanager.ErrInvalidName), "name %q", bad)
		assert.True(t, filemanager.IsUserError(err))
	}
	assert.NoError(t, filemanager.ValidateName("Quarterly report (final).pdf"))
}

func TestPartialFailureError(t *testing.T) {
	cause := errors.New("timeout")
	err := &filemanager.PartialFailureError{
		Op: "move", From: "a", To: "b/a", Total: 4,
		Failed: []string{"a/1", "a/2"}, RollbackFailed: []string{"b/a/3"}, Cause: cause,
	}
	assert.ErrorIs(t, err, cause)
	assert.False(t, filemanager.IsUserError(err))
	assert.Contains(t, err.Error(), "2 of 4 keys failed")
	assert.Contains(t, err.Error(), "1 keys left at destination")
}
