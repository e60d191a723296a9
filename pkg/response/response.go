// Package response writes the JSON envelope shared by every API handler:
//
//	{"status": 422, "message": "Validation failed", "errors": {"name": "..."}}
package response

import (
	"encoding/json"
	"net/http"

	"github.com/shashiranjanraj/filemanager/pkg/logger"
)

// Body is the envelope. Status repeats the HTTP status code.
type Body struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// JSON writes v as is. Encoding errors are logged; the status line has
// already gone out by then.
func JSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("response: encode failed", "status", status, "error", err)
	}
}

// Send writes b with b.Status.
func Send(w http.ResponseWriter, b Body) { JSON(w, b.Status, b) }

// Success sends 200 with data.
func Success(w http.ResponseWriter, data any) {
	Send(w, Body{Status: http.StatusOK, Data: data})
}

// Created sends 201 with data.
func Created(w http.ResponseWriter, data any) {
	Send(w, Body{Status: http.StatusCreated, Data: data})
}

// Error sends status with a message and no data.
func Error(w http.ResponseWriter, status int, message string) {
	Send(w, Body{Status: status, Message: message})
}

// ValidationError sends 422 with one message per failing field.
func ValidationError(w http.ResponseWriter, errs map[string]string) {
	Send(w, Body{Status: http.StatusUnprocessableEntity, Message: "Validation failed", Errors: errs})
}

func BadRequest(w http.ResponseWriter, message string) { Error(w, http.StatusBadRequest, message) }

func Unauthorized(w http.ResponseWriter) { Error(w, http.StatusUnauthorized, "Unauthorized") }

func Forbidden(w http.ResponseWriter) { Error(w, http.StatusForbidden, "Forbidden") }

func NotFound(w http.ResponseWriter) { Error(w, http.StatusNotFound, "Not found") }
