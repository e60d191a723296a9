package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/filemanager/pkg/ctx"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/rbac"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in RAM
// before spilling to temp files.
const multipartMemory = 8 << 20

// FileManagerController is the JSON API the browser UI talks to. Every
// handler is mode-agnostic and goes through the adapter and the gate.
type FileManagerController struct {
	adapter   filemanager.Adapter
	gate      *rbac.Gate
	maxUpload int64
}

func NewFileManagerController(adapter filemanager.Adapter, gate *rbac.Gate, maxUpload int64) *FileManagerController {
	if maxUpload <= 0 {
		maxUpload = 100 << 20
	}
	return &FileManagerController{adapter: adapter, gate: gate, maxUpload: maxUpload}
}

type createFolderInput struct {
	Name   string `json:"name" validate:"required,max=255"`
	Parent string `json:"parent"`
}

type renameInput struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,max=255"`
}

type moveInput struct {
	ID     string `json:"id" validate:"required"`
	Parent string `json:"parent"`
}

type deleteInput struct {
	ID string `json:"id" validate:"required"`
}

type deleteManyInput struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// fail maps adapter errors onto the envelope: not found is 404, other
// business rule violations are 422 with their message, anything else is a
// logged 500.
func (fc *FileManagerController) fail(c *ctx.Context, err error) {
	var partial *filemanager.PartialFailureError
	switch {
	case errors.Is(err, filemanager.ErrNotFound):
		c.Error(http.StatusNotFound, err.Error())
	case filemanager.IsUserError(err):
		c.Error(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &partial):
		c.Log().Error("filemanager api: partial failure", "op", partial.Op, "from", partial.From, "to", partial.To, "failed", partial.Failed)
		c.Error(http.StatusInternalServerError, "The operation did not complete for every file")
	default:
		c.Log().Error("filemanager api: backend failure", "path", c.R.URL.Path, "error", err)
		c.Error(http.StatusInternalServerError, "Internal Server Error")
	}
}

func toMaps(items []filemanager.Item) []map[string]any {
	out := make([]map[string]any, len(items))
	for i, item := range items {
		out[i] = item.ToMap()
	}
	return out
}

// lookup resolves id and writes a 404 when it is unknown.
func (fc *FileManagerController) lookup(c *ctx.Context, id string) (*filemanager.Item, bool) {
	item, err := fc.adapter.Item(c.Context(), id)
	if err != nil {
		fc.fail(c, err)
		return nil, false
	}
	if item == nil {
		c.NotFound()
		return nil, false
	}
	return item, true
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (fc *FileManagerController) Items(c *ctx.Context) {
	fc.listing(c, false)
}

func (fc *FileManagerController) Folders(c *ctx.Context) {
	fc.listing(c, true)
}

func (fc *FileManagerController) listing(c *ctx.Context, foldersOnly bool) {
	if !fc.gate.CanViewAny(c.Subject()) {
		c.Forbidden()
		return
	}
	list := fc.adapter.Items
	if foldersOnly {
		list = fc.adapter.Folders
	}
	items, err := list(c.Context(), c.Query("path"))
	if err != nil {
		fc.fail(c, err)
		return
	}
	c.Success(toMaps(items))
}

func (fc *FileManagerController) Item(c *ctx.Context) {
	item, ok := fc.lookup(c, c.Query("id"))
	if !ok {
		return
	}
	if !fc.gate.CanView(c.Subject(), item) {
		c.Forbidden()
		return
	}
	c.Success(item.ToMap())
}

func (fc *FileManagerController) Tree(c *ctx.Context) {
	if !fc.gate.CanViewAny(c.Subject()) {
		c.Forbidden()
		return
	}
	tree, err := fc.adapter.FolderTree(c.Context())
	if err != nil {
		fc.fail(c, err)
		return
	}
	c.Success(tree)
}

func (fc *FileManagerController) Breadcrumbs(c *ctx.Context) {
	if !fc.gate.CanViewAny(c.Subject()) {
		c.Forbidden()
		return
	}
	crumbs, err := fc.adapter.Breadcrumbs(c.Context(), c.Query("path"))
	if err != nil {
		fc.fail(c, err)
		return
	}
	c.Success(crumbs)
}

// URL returns a signed preview link for a file.
func (fc *FileManagerController) URL(c *ctx.Context) {
	item, ok := fc.lookup(c, c.Query("id"))
	if !ok {
		return
	}
	if !fc.gate.CanView(c.Subject(), item) {
		c.Forbidden()
		return
	}
	u, err := fc.adapter.URL(c.Context(), item.ID)
	if err != nil {
		fc.fail(c, err)
		return
	}
	c.Success(map[string]string{"url": u})
}

// ── Mutations ────────────────────────────────────────────────────────────────

func (fc *FileManagerController) CreateFolder(c *ctx.Context) {
	if !fc.gate.CanCreate(c.Subject()) {
		c.Forbidden()
		return
	}
	var in createFolderInput
	if !c.BindJSON(&in) {
		return
	}
	item, err := fc.adapter.CreateFolder(c.Context(), in.Name, in.Parent)
	if err != nil {
		fc.fail(c, err)
		return
	}
	c.Created(item.ToMap())
}

// Upload takes a multipart "file" part and an optional "path" field naming
// the destination folder.
func (fc *FileManagerController) Upload(c *ctx.Context) {
	if !fc.gate.CanCreate(c.Subject()) {
		c.Forbidden()
		return
	}

	c.R.Body = http.MaxBytesReader(c.W, c.R.Body, fc.maxUpload)
	if err := c.R.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Error(http.StatusRequestEntityTooLarge, "The file exceeds the upload limit")
			return
		}
		c.Error(http.StatusBadRequest, "Expected a multipart form upload")
		return
	}
	defer c.R.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := c.R.FormFile("file")
	if err != nil {
		c.ValidationError(map[string]string{"file": "The file field is required."})
		return
	}
	defer file.Close()

	item, err := fc.adapter.UploadFile(c.Context(), filemanager.UploadedFile{
		Name:     header.Filename,
		Size:     header.Size,
		MimeType: strings.TrimSpace(header.Header.Get("Content-Type")),
		Reader:   file,
	}, c.R.FormValue("path"))
	if err != nil {
		fc.fail(c, err)
		return
	}
	c.Created(item.ToMap())
}

func (fc *FileManagerController) Rename(c *ctx.Context) {
	var in renameInput
	if !c.BindJSON(&in) {
		return
	}
	item, ok := fc.lookup(c, in.ID)
	if !ok {
		return
	}
	if !fc.gate.CanUpdate(c.Subject(), item) {
		c.Forbidden()
		return
	}
	if err := fc.adapter.Rename(c.Context(), item.ID, in.Name); err != nil {
		fc.fail(c, err)
		return
	}
	c.Success(map[string]bool{"success": true})
}

func (fc *FileManagerController) Move(c *ctx.Context) {
	var in moveInput
	if !c.BindJSON(&in) {
		return
	}
	item, ok := fc.lookup(c, in.ID)
	if !ok {
		return
	}
	if !fc.gate.CanUpdate(c.Subject(), item) {
		c.Forbidden()
		return
	}
	if err := fc.adapter.Move(c.Context(), item.ID, in.Parent); err != nil {
		fc.fail(c, err)
		return
	}
	c.Success(map[string]bool{"success": true})
}

func (fc *FileManagerController) Delete(c *ctx.Context) {
	var in deleteInput
	if !c.BindJSON(&in) {
		return
	}
	item, ok := fc.lookup(c, in.ID)
	if !ok {
		return
	}
	if !fc.gate.CanDelete(c.Subject(), item) {
		c.Forbidden()
		return
	}
	if err := fc.adapter.Delete(c.Context(), item.ID); err != nil {
		fc.fail(c, err)
		return
	}
	c.Success(map[string]bool{"success": true})
}

// DeleteMany ignores unknown identifiers and reports how many were removed.
func (fc *FileManagerController) DeleteMany(c *ctx.Context) {
	if !fc.gate.CanDeleteAny(c.Subject()) {
		c.Forbidden()
		return
	}
	var in deleteManyInput
	if !c.BindJSON(&in) {
		return
	}
	n, err := fc.adapter.DeleteMany(c.Context(), in.IDs)
	if err != nil {
		fc.fail(c, err)
		return
	}
	c.Success(map[string]int{"deleted": n})
}
