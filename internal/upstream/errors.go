package upstream

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// IsTimeoutOrReset reports whether err is a timeout or a connection reset.
// These are the only failures worth retrying against slow public endpoints.
func IsTimeoutOrReset(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTransient reports whether err is a network-level or server-side failure
// that may succeed on a later attempt.
func IsTransient(err error) bool {
	if IsTimeoutOrReset(err) {
		return true
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServerError) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
