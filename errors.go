package cryptfile

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrInvalidKey indicates a key of the wrong length was supplied.
	ErrInvalidKey = errors.New("key must be 32 bytes")

	// ErrInvalidMode indicates an unsupported open mode.
	ErrInvalidMode = errors.New("unsupported open mode")

	// ErrCorruptHeader indicates the file is too short to contain a nonce.
	ErrCorruptHeader = errors.New("file too short to contain a nonce header")

	// ErrInvalidOffset indicates a seek or truncate would yield a negative
	// position.
	ErrInvalidOffset = errors.New("invalid file offset")

	// ErrReadOnly indicates a mutating operation on a read-only handle.
	ErrReadOnly = errors.New("file opened read-only")

	// ErrClosed indicates an operation on a closed handle.
	ErrClosed = errors.New("file already closed")
)

// IOError represents an underlying storage read, write or lock failure.
// It wraps the lower-level cause so callers can inspect it with errors.As.
type IOError struct {
	Op   string // "read", "write", "seek", "lock", "truncate", "close", etc.
	Path string // File path, if known
	Err  error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("io error: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError checks if an error is an underlying storage failure.
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
