package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/pkg/router"
)

func text(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(body)) }
}

func tag(value string) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Chain", value)
			next.ServeHTTP(w, r)
		})
	}
}

func TestGroupsAndNames(t *testing.T) {
	r := router.New()
	fm := r.Group("/filemanager/", tag("outer"))
	api := fm.Group("api", tag("inner"))
	api.Get("/items", "api.items", text("items"))
	api.Delete("/items/{id}", "api.items.delete", text("deleted"))
	fm.Get("stream", "stream", text("bytes"))

	assert.Equal(t, "/filemanager/api", api.Prefix())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/filemanager/api/items", nil))
	assert.Equal(t, "items", rec.Body.String())
	assert.Equal(t, []string{"outer", "inner"}, rec.Header().Values("X-Chain"))

	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/filemanager/api/items/5", nil))
	assert.Equal(t, "deleted", rec.Body.String())

	path, ok := r.Path("stream")
	assert.True(t, ok)
	assert.Equal(t, "/filemanager/stream", path)

	u, err := r.URL("api.items.delete", map[string]string{"id": "5"})
	require.NoError(t, err)
	assert.Equal(t, "/filemanager/api/items/5", u)

	_, err = r.URL("api.items.delete", nil)
	assert.Error(t, err)
	_, err = r.URL("nope", nil)
	assert.Error(t, err)
}

func TestRoutesListing(t *testing.T) {
	r := router.New()
	r.Post("/b", "b.create", text("b"))
	r.Get("/b", "", text("b"))
	r.Handle("/metrics", "metrics", text("m"))
	r.Get("/a", "a", text("a"))

	routes := r.Routes()
	require.Len(t, routes, 4)
	assert.Equal(t, router.RouteInfo{Method: http.MethodGet, Path: "/a", Name: "a"}, routes[0])
	assert.Equal(t, http.MethodGet, routes[1].Method)
	assert.Equal(t, http.MethodPost, routes[2].Method)
	assert.Equal(t, router.RouteInfo{Method: "*", Path: "/metrics", Name: "metrics"}, routes[3])

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/metrics", nil))
	assert.Equal(t, "m", rec.Body.String())
}

func TestDuplicateNamePanics(t *testing.T) {
	r := router.New()
	r.Get("/a", "same", text("a"))
	assert.PanicsWithValue(t, `router: name "same" already used by /a`, func() {
		r.Group("/v2").Get("/a", "same", text("b"))
	})
}

func TestMethodAndRootPrefix(t *testing.T) {
	r := router.New()
	r.Group("/").Method(http.MethodPut, "/files/{id}", "files.put", text("put"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/files/1", nil))
	assert.Equal(t, "put", rec.Body.String())
	assert.Equal(t, "/", r.Group("//").Prefix())

	_, err := r.URL("files.put", map[string]string{"other": "x"})
	assert.EqualError(t, err, `router: route "files.put" needs id`)
}
