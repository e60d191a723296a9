package reqid_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/pkg/reqid"
)

func run(t *testing.T, incoming string) (string, string) {
	t.Helper()
	var seen string
	h := reqid.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqid.FromCtx(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(reqid.Header, incoming)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec.Header().Get(reqid.Header)
}

func TestGeneratesUUID(t *testing.T) {
	seen, echoed := run(t, "")
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, echoed)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestReusesUpstreamID(t *testing.T) {
	seen, echoed := run(t, "trace-abc-123")
	assert.Equal(t, "trace-abc-123", seen)
	assert.Equal(t, "trace-abc-123", echoed)
}

func TestRejectsUnsafeUpstreamID(t *testing.T) {
	for _, bad := range []string{"has space", strings.Repeat("x", 200)} {
		seen, _ := run(t, bad)
		assert.NotEqual(t, bad, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	}
}

func TestFromCtxEmpty(t *testing.T) {
	assert.Equal(t, "", reqid.FromCtx(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
