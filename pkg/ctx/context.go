// Package ctx wraps a request/response pair for the file manager handlers.
//
//	func (fc *FileController) Item(c *ctx.Context) {
//	    item, err := fc.adapter.Item(c.Context(), c.Query("id"))
//	    ...
//	    c.Success(item)
//	}
//
//	r.Get("/api/item", "filemanager.api.item", ctx.Wrap(fc.Item))
package ctx

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/filemanager/pkg/bind"
	"github.com/shashiranjanraj/filemanager/pkg/logger"
	"github.com/shashiranjanraj/filemanager/pkg/rbac"
	"github.com/shashiranjanraj/filemanager/pkg/response"
	"github.com/shashiranjanraj/filemanager/pkg/validate"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap converts a HandlerFunc to a standard http.HandlerFunc.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context is borrowed from a pool for the duration of one handler call and
// must not be retained.
type Context struct {
	W http.ResponseWriter
	R *http.Request

	status int        // 0 until something is written
	query  url.Values // parsed on first use
}

var pool = sync.Pool{New: func() any { return new(Context) }}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	*c = Context{W: w, R: r}
	return c
}

func release(c *Context) {
	*c = Context{}
	pool.Put(c)
}

// Param returns a URL path parameter.
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// Query returns a query-string value, "" if absent.
func (c *Context) Query(key string) string {
	if c.query == nil {
		c.query = c.R.URL.Query()
	}
	return c.query.Get(key)
}

// DefaultQuery is Query with def for an absent or empty value.
func (c *Context) DefaultQuery(key, def string) string {
	return cmp.Or(c.Query(key), def)
}

func (c *Context) Context() context.Context { return c.R.Context() }

// Subject is the authenticated caller, nil for anonymous requests.
func (c *Context) Subject() rbac.Subject { return rbac.SubjectFrom(c.R.Context()) }

// Log returns the request-scoped logger.
func (c *Context) Log() *slog.Logger { return logger.WithCtx(c.R.Context()) }

// BindJSON decodes and validates the body into dest. On failure the 400, 413
// or 422 response has already been written and false is returned.
//
//	var in RenameInput
//	if !c.BindJSON(&in) {
//	    return
//	}
func (c *Context) BindJSON(dest any) bool {
	errs, err := bind.JSON(c.R, dest)
	if err != nil {
		status := http.StatusBadRequest
		var be *bind.BodyError
		if errors.As(err, &be) {
			status = be.Status
		}
		c.Error(status, err.Error())
		return false
	}
	if validate.HasErrors(errs) {
		c.ValidationError(errs)
		return false
	}
	return true
}

func (c *Context) SetHeader(key, value string) {
	c.W.Header().Set(key, value)
}

// JSON writes v as is with the given status.
func (c *Context) JSON(code int, v any) {
	c.status = code
	response.JSON(c.W, code, v)
}

func (c *Context) Success(data any) {
	c.status = http.StatusOK
	response.Success(c.W, data)
}

func (c *Context) Created(data any) {
	c.status = http.StatusCreated
	response.Created(c.W, data)
}

// Error sends the JSON error envelope.
func (c *Context) Error(code int, message string) {
	c.status = code
	response.Error(c.W, code, message)
}

// ValidationError sends a 422 with field-level errors.
func (c *Context) ValidationError(errs map[string]string) {
	c.status = http.StatusUnprocessableEntity
	response.ValidationError(c.W, errs)
}

func (c *Context) Forbidden() {
	c.status = http.StatusForbidden
	response.Forbidden(c.W)
}

func (c *Context) NotFound() {
	c.status = http.StatusNotFound
	response.NotFound(c.W)
}

// WrittenStatus returns the status written so far, or 0.
func (c *Context) WrittenStatus() int { return c.status }
