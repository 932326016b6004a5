// Package businessflow contains the core business logic and use cases of the counter service
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// ErrStorageUnavailable marks a backing store failure (unreachable, write failed)
	ErrStorageUnavailable = errors.New("counter storage unavailable")

	// ErrCacheNotAvailable is returned by caches without a usable backend
	ErrCacheNotAvailable = errors.New("cache not available")
)

// Error codes carried by BusinessError
const (
	CodeCounterStorageFailed = "COUNTER_STORAGE_FAILED"
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// newStorageError wraps a repository failure so callers can match ErrStorageUnavailable
func newStorageError(message string, err error) *BusinessError {
	return NewBusinessError(CodeCounterStorageFailed, message, fmt.Errorf("%w: %w", ErrStorageUnavailable, err))
}

func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// ErrorCode returns the BusinessError code carried by err, if any
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
