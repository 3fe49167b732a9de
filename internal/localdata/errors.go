package localdata

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
)

// ErrOffline marks a fetch failure caused by missing connectivity. Fetch and
// update functions may wrap it to opt into offline handling explicitly.
var ErrOffline = errors.New("localdata: offline")

// IsTransient is the default classifier for fetch/update errors. Transient
// errors are absorbed by the Manager; everything else reaches the caller.
// Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrOffline) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
