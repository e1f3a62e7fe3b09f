package backend

import (
	"errors"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
)

// Sentinels for errors.Is. Hosts never return them bare; each failure is a
// fresh *apperrors.Error wrapping one of them.
var (
	// ErrShortWrite marks a host that accepted no bytes without an error.
	ErrShortWrite = errors.New("host accepted zero bytes")

	// ErrNotInitialized marks a host used before Init.
	ErrNotInitialized = errors.New("host not initialized")
)

// NotInitialized returns the error for op on a host used before Init.
func NotInitialized(op string) *apperrors.Error {
	return apperrors.Wrap(ErrNotInitialized, apperrors.ErrCodeNotInitialized, op)
}

func shortWrite(remaining int) *apperrors.Error {
	return apperrors.Wrap(ErrShortWrite, apperrors.ErrCodeTerminalIO, "write to host").
		WithRetryable(true).
		WithContext("remaining", remaining)
}
