package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/app/controllers"
	"github.com/shashiranjanraj/filemanager/pkg/ctx"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/rbac"
	"github.com/shashiranjanraj/filemanager/pkg/storage"
)

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type apiFixture struct {
	t    *testing.T
	disk *storage.MemoryDisk
	fc   *controllers.FileManagerController
}

func newAPI(t *testing.T, gate *rbac.Gate) *apiFixture {
	t.Helper()
	disk := storage.NewMemoryDisk()
	require.NoError(t, disk.Put("docs/report.pdf", []byte("%PDF")))
	require.NoError(t, disk.Put("docs/old/notes.txt", []byte("hi")))
	require.NoError(t, disk.MakeDirectory("archive"))

	adapter := filemanager.NewStorageAdapter(disk, filemanager.StorageOptions{DiskName: "local"})
	return &apiFixture{t: t, disk: disk, fc: controllers.NewFileManagerController(adapter, gate, 1<<10)}
}

func (f *apiFixture) call(h ctx.HandlerFunc, req *http.Request, subject rbac.Subject) (int, envelope) {
	f.t.Helper()
	if subject != nil {
		req = req.WithContext(rbac.WithSubject(req.Context(), subject))
	}
	rec := httptest.NewRecorder()
	ctx.Wrap(h)(rec, req)

	var env envelope
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (f *apiFixture) get(h ctx.HandlerFunc, target string, subject rbac.Subject) (int, envelope) {
	return f.call(h, httptest.NewRequest(http.MethodGet, target, nil), subject)
}

func (f *apiFixture) post(h ctx.HandlerFunc, body string, subject rbac.Subject) (int, envelope) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.call(h, req, subject)
}

func openGate() *rbac.Gate { return rbac.NewGate(false, nil) }

func TestItemsListing(t *testing.T) {
	f := newAPI(t, openGate())

	code, env := f.get(f.fc.Items, "/items?path=docs", nil)
	require.Equal(t, http.StatusOK, code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "old", items[0]["name"])
	assert.Equal(t, true, items[0]["is_folder"])
	assert.Equal(t, "report.pdf", items[1]["name"])
	assert.Equal(t, "4.0 B", items[1]["formatted_size"])

	code, env = f.get(f.fc.Folders, "/folders", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 2)
}

func TestItemLookup(t *testing.T) {
	f := newAPI(t, openGate())

	code, env := f.get(f.fc.Item, "/item?id=docs/report.pdf", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"is_document":true`)

	code, _ = f.get(f.fc.Item, "/item?id=docs/missing.pdf", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTreeAndBreadcrumbs(t *testing.T) {
	f := newAPI(t, openGate())

	code, env := f.get(f.fc.Tree, "/tree", nil)
	require.Equal(t, http.StatusOK, code)
	var tree []filemanager.FolderNode
	require.NoError(t, json.Unmarshal(env.Data, &tree))
	require.Len(t, tree, 2)
	assert.Equal(t, "archive", tree[0].Name)
	assert.Equal(t, "docs", tree[1].Name)
	assert.Equal(t, 1, tree[1].FileCount)

	code, env = f.get(f.fc.Breadcrumbs, "/breadcrumbs?path=docs/old", nil)
	require.Equal(t, http.StatusOK, code)
	var crumbs []filemanager.Breadcrumb
	require.NoError(t, json.Unmarshal(env.Data, &crumbs))
	assert.Equal(t, []filemanager.Breadcrumb{
		{ID: "docs", Name: "docs", Path: "docs"},
		{ID: "docs/old", Name: "old", Path: "docs/old"},
	}, crumbs)
}

func TestCreateFolder(t *testing.T) {
	f := newAPI(t, openGate())

	code, _ := f.post(f.fc.CreateFolder, `{"name":"new","parent":"docs"}`, nil)
	assert.Equal(t, http.StatusCreated, code)
	assert.True(t, f.disk.DirectoryExists("docs/new"))

	code, env := f.post(f.fc.CreateFolder, `{"name":"new","parent":"docs"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Message, "already exists")

	code, env = f.post(f.fc.CreateFolder, `{"parent":"docs"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "name")

	code, _ = f.post(f.fc.CreateFolder, `{"name":"a/b"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func multipartUpload(t *testing.T, field, filename, dest string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if dest != "" {
		require.NoError(t, w.WriteField("path", dest))
	}
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	f := newAPI(t, openGate())

	code, env := f.call(f.fc.Upload, multipartUpload(t, "file", "photo.png", "docs", []byte("png-bytes")), nil)
	require.Equal(t, http.StatusCreated, code, env.Message)
	data, err := f.disk.Get("docs/photo.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	code, _ = f.call(f.fc.Upload, multipartUpload(t, "file", "photo.png", "docs", []byte("again")), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, env = f.call(f.fc.Upload, multipartUpload(t, "attachment", "x.txt", "", []byte("x")), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "file")

	code, _ = f.call(f.fc.Upload, multipartUpload(t, "file", "big.bin", "", bytes.Repeat([]byte("x"), 4<<10)), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	code, _ = f.call(f.fc.Upload, req, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRenameMoveDelete(t *testing.T) {
	f := newAPI(t, openGate())

	code, _ := f.post(f.fc.Rename, `{"id":"docs/report.pdf","name":"final.pdf"}`, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, f.disk.Exists("docs/final.pdf"))

	code, _ = f.post(f.fc.Move, `{"id":"docs/final.pdf","parent":"archive"}`, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, f.disk.Exists("archive/final.pdf"))

	code, env := f.post(f.fc.Move, `{"id":"docs","parent":"docs/old"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Message, "into itself")

	code, _ = f.post(f.fc.Rename, `{"id":"nope","name":"x"}`, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.post(f.fc.Delete, `{"id":"archive/final.pdf"}`, nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, f.disk.Exists("archive/final.pdf"))

	code, _ = f.post(f.fc.Delete, `{}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestDeleteManyCountsExisting(t *testing.T) {
	f := newAPI(t, openGate())
	require.NoError(t, f.disk.Put("a.txt", []byte("a")))
	require.NoError(t, f.disk.Put("b.txt", []byte("b")))

	code, env := f.post(f.fc.DeleteMany, `{"ids":["a.txt","b.txt","docs/report.pdf","ghost1","ghost2"]}`, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"deleted":3}`, string(env.Data))

	code, _ = f.post(f.fc.DeleteMany, `{"ids":[]}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestURLReturnsLink(t *testing.T) {
	f := newAPI(t, openGate())

	code, env := f.get(f.fc.URL, "/url?id=docs/report.pdf", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"url":`)

	code, _ = f.get(f.fc.URL, "/url?id=docs", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGateIsApplied(t *testing.T) {
	gate := rbac.NewGate(true, map[string]string{
		rbac.ViewAny: "files.list",
		rbac.Create:  "files.create",
		rbac.Update:  "files.update",
		rbac.Delete:  "files.delete",
	})
	f := newAPI(t, gate)

	code, _ := f.get(f.fc.Items, "/items", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = f.get(f.fc.Items, "/items", user())
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = f.get(f.fc.Items, "/items", user("files.list"))
	assert.Equal(t, http.StatusOK, code)

	// No view permission is configured, so any authenticated caller may view.
	code, _ = f.get(f.fc.Item, "/item?id=docs/report.pdf", user())
	assert.Equal(t, http.StatusOK, code)
	code, _ = f.get(f.fc.Item, "/item?id=docs/report.pdf", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.post(f.fc.CreateFolder, `{"name":"x"}`, user("files.list"))
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = f.post(f.fc.Rename, `{"id":"docs/report.pdf","name":"y.pdf"}`, user("files.list"))
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = f.post(f.fc.Delete, `{"id":"docs/report.pdf"}`, user("files.update"))
	assert.Equal(t, http.StatusForbidden, code)

	// DeleteAny falls back to the delete permission.
	code, _ = f.post(f.fc.DeleteMany, `{"ids":["docs/report.pdf"]}`, user("files.update"))
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = f.post(f.fc.DeleteMany, `{"ids":["docs/report.pdf"]}`, user("files.delete"))
	assert.Equal(t, http.StatusOK, code)
}

type failingAdapter struct {
	filemanager.Adapter
	err error
}

func (a failingAdapter) Items(_ context.Context, _ string) ([]filemanager.Item, error) {
	return nil, a.err
}

func TestBackendFailuresAre500(t *testing.T) {
	for _, err := range []error{
		errors.New("connection refused"),
		&filemanager.PartialFailureError{Op: "move", From: "a", To: "b", Total: 2, Failed: []string{"a/x"}},
	} {
		fc := controllers.NewFileManagerController(failingAdapter{err: err}, openGate(), 0)
		rec := httptest.NewRecorder()
		ctx.Wrap(fc.Items)(rec, httptest.NewRequest(http.MethodGet, "/items", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	}
}
