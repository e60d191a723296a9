package filemanager

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds of expected, recoverable conditions. Match with errors.Is.
var (
	ErrNotFound      = errors.New("filemanager: not found")
	ErrInvalidName   = errors.New("filemanager: invalid name")
	ErrDuplicateName = errors.New("filemanager: duplicate name")
	ErrCircularMove  = errors.New("filemanager: folder cannot be moved into itself")
	ErrNotAFolder    = errors.New("filemanager: target is not a folder")
	ErrOutsideRoot   = errors.New("filemanager: path is outside the configured root")
)

// Error carries a user-facing message for a business rule violation. Backend
// faults are never wrapped in an Error.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func userError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds the not-found Error used across adapters.
func NotFound(what string) error {
	return userError(ErrNotFound, "%s not found", what)
}

// Duplicate builds the duplicate-name Error used across adapters.
func Duplicate(name string) error {
	return userError(ErrDuplicateName, "An item named %q already exists in this folder", name)
}

// Circular builds the cycle Error used across adapters.
func Circular() error {
	return userError(ErrCircularMove, "Cannot move a folder into itself or one of its subfolders")
}

// IsUserError reports whether err is an expected condition whose message
// can be shown to the caller as is.
func IsUserError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// PartialFailureError reports a folder rename or move that could not be
// completed for every key. Failed lists source keys that never reached the
// destination. RollbackFailed lists destination keys that were copied but
// could not be removed again and need manual cleanup.
type PartialFailureError struct {
	Op             string
	From           string
	To             string
	Total          int
	Failed         []string
	RollbackFailed []string
	Cause          error
}

func (e *PartialFailureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "filemanager: %s %s -> %s incomplete: %d of %d keys failed", e.Op, e.From, e.To, len(e.Failed), e.Total)
	if len(e.RollbackFailed) > 0 {
		fmt.Fprintf(&b, ", %d keys left at destination", len(e.RollbackFailed))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *PartialFailureError) Unwrap() error { return e.Cause }

// ValidateName rejects names that cannot be a single path segment.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return userError(ErrInvalidName, "Name is required")
	case len(name) > 255:
		return userError(ErrInvalidName, "Name must not exceed 255 characters")
	case trimmed == "." || trimmed == "..":
		return userError(ErrInvalidName, "Name %q is reserved", trimmed)
	case strings.ContainsAny(name, `/\`):
		return userError(ErrInvalidName, "Name must not contain slashes")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return userError(ErrInvalidName, "Name must not contain control characters")
		}
	}
	return nil
}
