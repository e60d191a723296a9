package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/42", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, uint64(1), samples(t, "filemanager_http_request_duration_seconds", "/files/{id}", "418"))
	assert.Zero(t, testutil.ToFloat64(RequestsInFlight))
}

// samples returns the observation count of the series whose label values
// include every one of values.
func samples(t *testing.T, family string, values ...string) uint64 {
	t.Helper()
	families, err := Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != family {
			continue
		}
	series:
		for _, m := range f.GetMetric() {
			have := map[string]bool{}
			for _, l := range m.GetLabel() {
				have[l.GetValue()] = true
			}
			for _, v := range values {
				if !have[v] {
					continue series
				}
			}
			return m.GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func TestMiddleware_ObservesPanicsAndImplicitOK(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	r.Get("/body", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("hello")) })

	assert.Panics(t, func() {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/body", nil))

	assert.Equal(t, uint64(1), samples(t, "filemanager_http_request_duration_seconds", "/boom", "200"))
	assert.Equal(t, uint64(1), samples(t, "filemanager_http_request_duration_seconds", "/body", "200"))
	assert.Equal(t, uint64(1), samples(t, "filemanager_http_response_size_bytes", "/body"))
	assert.Zero(t, testutil.ToFloat64(RequestsInFlight))
}

func TestObserveCache(t *testing.T) {
	ObserveCache("memory", true)
	ObserveCache("memory", false)
	ObserveCache("memory", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(CacheLookups.WithLabelValues("memory", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(CacheLookups.WithLabelValues("memory", "miss")))
}

func TestObserveAdapter(t *testing.T) {
	ObserveAdapter("storage", "move", "ok", time.Now())
	assert.Equal(t, 1, testutil.CollectAndCount(AdapterOps))
}

func TestHandler(t *testing.T) {
	StreamBytes.WithLabelValues("local").Add(10)

	rec := httptest.NewRecorder()
	Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "filemanager_gateway_bytes_total")
}
