package ctx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/pkg/auth"
	appctx "github.com/shashiranjanraj/filemanager/pkg/ctx"
	"github.com/shashiranjanraj/filemanager/pkg/rbac"
)

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    any               `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func serve(h appctx.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	appctx.Wrap(h)(rec, req)
	return rec
}

func TestSuccessAndStatus(t *testing.T) {
	var written int
	rec := serve(func(c *appctx.Context) {
		c.Success(map[string]any{"id": "1"})
		written = c.WrittenStatus()
	}, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, written)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{"id": "1"}, decode(t, rec).Data)
}

func TestQueryHelpers(t *testing.T) {
	serve(func(c *appctx.Context) {
		assert.Equal(t, "docs", c.Query("path"))
		assert.Equal(t, "", c.Query("missing"))
		assert.Equal(t, "storage", c.DefaultQuery("mode", "storage"))
	}, httptest.NewRequest(http.MethodGet, "/?path=docs", nil))
}

func TestParam(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/items/{id}", appctx.Wrap(func(c *appctx.Context) {
		c.Success(c.Param("id"))
	}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	assert.Equal(t, "42", decode(t, rec).Data)
}

func TestBindJSON(t *testing.T) {
	type input struct {
		Name string `json:"name" validate:"required,max=5"`
	}

	t.Run("valid", func(t *testing.T) {
		var got input
		rec := serve(func(c *appctx.Context) {
			if c.BindJSON(&got) {
				c.Created(got.Name)
			}
		}, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"docs"}`)))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "docs", got.Name)
	})

	t.Run("validation errors", func(t *testing.T) {
		rec := serve(func(c *appctx.Context) {
			var in input
			assert.False(t, c.BindJSON(&in))
		}, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"toolong"}`)))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode(t, rec).Errors, "name")
	})

	t.Run("malformed", func(t *testing.T) {
		rec := serve(func(c *appctx.Context) {
			var in input
			assert.False(t, c.BindJSON(&in))
		}, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	serve(func(c *appctx.Context) {
		assert.Nil(t, c.Subject())
		assert.NotNil(t, c.Log())
	}, req)

	claims := &auth.Claims{UserID: 9}
	req = req.WithContext(rbac.WithSubject(req.Context(), claims))
	serve(func(c *appctx.Context) {
		require.NotNil(t, c.Subject())
		assert.Equal(t, "9", c.Subject().SubjectID())
	}, req)
}

func TestErrorHelpers(t *testing.T) {
	rec := serve(func(c *appctx.Context) { c.Forbidden() }, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(func(c *appctx.Context) { c.NotFound() }, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(func(c *appctx.Context) { c.Error(http.StatusConflict, "taken") }, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "taken", decode(t, rec).Message)
}

func TestBindJSONTooLarge(t *testing.T) {
	t.Setenv("MAX_BODY_BYTES", "8")
	rec := serve(func(c *appctx.Context) {
		var in struct {
			Name string `json:"name"`
		}
		assert.False(t, c.BindJSON(&in))
	}, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"far too long"}`)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decode(t, rec).Message, "too large")
}
