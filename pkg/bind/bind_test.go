package bind_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/pkg/bind"
)

type renameInput struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,max=8"`
}

func request(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func bodyStatus(t *testing.T, err error) int {
	t.Helper()
	var be *bind.BodyError
	require.ErrorAs(t, err, &be)
	return be.Status
}

func TestJSONDecodesAndValidates(t *testing.T) {
	var in renameInput
	errs, err := bind.JSON(request(`{"id":"docs/a.txt","name":"b.txt"}`), &in)
	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, "b.txt", in.Name)

	errs, err = bind.JSON(request(`{"id":"docs/a.txt","name":"much-too-long.txt"}`), &renameInput{})
	require.NoError(t, err)
	assert.Contains(t, errs, "name")
	assert.NotContains(t, errs, "id")
}

func TestJSONRejectsBadBodies(t *testing.T) {
	_, err := bind.JSON(request(`{"id":`), &renameInput{})
	assert.Equal(t, http.StatusBadRequest, bodyStatus(t, err))

	_, err = bind.JSON(request(``), &renameInput{})
	assert.Equal(t, http.StatusBadRequest, bodyStatus(t, err))
	assert.EqualError(t, err, "request body is empty")

	_, err = bind.JSON(request(`{"id":"a","name":"b"} {"id":"c"}`), &renameInput{})
	assert.Equal(t, http.StatusBadRequest, bodyStatus(t, err))
}

func TestJSONEnforcesLimit(t *testing.T) {
	t.Setenv("MAX_BODY_BYTES", "16")
	assert.Equal(t, int64(16), bind.Limit())

	_, err := bind.JSON(request(`{"id":"`+strings.Repeat("x", 64)+`"}`), &renameInput{})
	assert.Equal(t, http.StatusRequestEntityTooLarge, bodyStatus(t, err))

	t.Setenv("MAX_BODY_BYTES", "-1")
	assert.Equal(t, int64(4<<20), bind.Limit())
}
