package storage

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrNotFound is returned when no attachment exists at the key.
	ErrNotFound = errors.New("attachment not found")

	// ErrInvalidKey is returned for malformed keys, including path
	// traversal attempts like "../".
	ErrInvalidKey = errors.New("invalid attachment key")

	// ErrTooLarge is returned when an attachment exceeds the size cap
	// passed in PutOptions.
	ErrTooLarge = errors.New("attachment exceeds maximum size")

	// ErrAccessDenied is returned when the blob store rejects the
	// operation with a permission error.
	ErrAccessDenied = errors.New("access denied")
)

// =============================================================================
// Structured Error Type
// =============================================================================

// Error carries the failed operation and key alongside the cause, and
// unwraps to the sentinels above for errors.Is checks.
type Error struct {
	Op  string // "Put", "Get", "Delete", ...
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// =============================================================================
// Helper Functions
// =============================================================================

// IsNotFound reports whether err means the attachment does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTooLarge reports whether err means the attachment exceeded the cap.
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}
