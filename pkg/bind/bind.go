// Package bind decodes and validates an HTTP request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/shashiranjanraj/filemanager/config"
	"github.com/shashiranjanraj/filemanager/pkg/validate"
)

const defaultLimit = 4 << 20

// BodyError is a body that could not be decoded. Status is 400, or 413
// when the body exceeds the limit.
type BodyError struct {
	Status int
	Msg    string
}

func (e *BodyError) Error() string { return e.Msg }

// Limit is MAX_BODY_BYTES, or 4 MiB when unset or invalid.
func Limit() int64 {
	n, err := strconv.ParseInt(config.Get("MAX_BODY_BYTES", ""), 10, 64)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return n
}

// JSON decodes exactly one JSON value from r.Body into dest, then validates
// it. A decode failure is a *BodyError; validation failures come back as a
// field map with a nil error.
func JSON(r *http.Request, dest any) (map[string]string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, &BodyError{Status: http.StatusBadRequest, Msg: "request body is empty"}
	}
	body := http.MaxBytesReader(nil, r.Body, Limit())
	dec := json.NewDecoder(body)

	if err := dec.Decode(dest); err != nil {
		return nil, decodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, decodeError(err)
		}
		return nil, &BodyError{Status: http.StatusBadRequest, Msg: "invalid JSON: unexpected data after the first value"}
	}

	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}

func decodeError(err error) *BodyError {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return &BodyError{
			Status: http.StatusRequestEntityTooLarge,
			Msg:    fmt.Sprintf("request body too large (max %d bytes)", maxErr.Limit),
		}
	case errors.Is(err, io.EOF):
		return &BodyError{Status: http.StatusBadRequest, Msg: "request body is empty"}
	default:
		return &BodyError{Status: http.StatusBadRequest, Msg: "invalid JSON: " + err.Error()}
	}
}
