// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/fulltext/internal/failure"
)

// StatusError reports a non-success HTTP status from a remote service.
type StatusError struct {
	Code    int
	Service string
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.Code, e.Body)
	}
	return fmt.Sprintf("%s returned HTTP %d", e.Service, e.Code)
}

// CheckStatus returns nil for 2xx responses. Otherwise it reads up to 512
// bytes of the body into a *StatusError classified with Classify.
func CheckStatus(resp *http.Response, service string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return Classify(&StatusError{
		Code:    resp.StatusCode,
		Service: service,
		Body:    strings.TrimSpace(string(body)),
	})
}

// IsTransientStatus reports whether a status code indicates a gateway or
// overload condition that may clear on retry.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Classify marks err as failure.Unavailable for connection-level failures
// (refused, unreachable, DNS) and failure.Transient for timeouts, resets,
// 429 and 502/503/504. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if failure.Is(err, failure.Transient) || failure.Is(err, failure.Unavailable) {
		return err
	}
	if isUnavailable(err) {
		return failure.Mark(err, failure.Unavailable)
	}
	if isTransient(err) {
		return failure.Mark(err, failure.Transient)
	}
	return err
}

func isUnavailable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}

func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || IsTransientStatus(se.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
