// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package failure classifies errors into the handful of kinds the retrieval
// code branches on. Kinds are attached with cockroachdb/errors marks, so
// they survive wrapping and are tested with errors.Is.
package failure

import (
	"github.com/cockroachdb/errors"
)

// Kind markers. Compare with Is, never by message.
var (
	// Configuration is a missing credential or unset service URL. Fail fast.
	Configuration = errors.New("configuration")

	// Transient is a timeout, reset, or 5xx. Retried with backoff.
	Transient = errors.New("transient")

	// Unavailable is a connection-level failure of a local service.
	// Falls through immediately without retry.
	Unavailable = errors.New("unavailable")

	// Permanent is an explicit provider rejection (blocked, blocklisted,
	// unsupported). No retry.
	Permanent = errors.New("permanent")

	// ContentInvalid is non-PDF bytes where a PDF was expected or a
	// malformed extracted URL.
	ContentInvalid = errors.New("content invalid")

	// ClassificationUncertain is a failed model call during classification.
	ClassificationUncertain = errors.New("classification uncertain")
)

// Mark tags err with kind. A nil err stays nil.
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, kind)
}

// Newf creates an error already tagged with kind.
func Newf(kind error, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}

// Is reports whether err carries kind.
func Is(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf returns a short label for logging.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, Configuration):
		return "configuration"
	case errors.Is(err, Unavailable):
		return "unavailable"
	case errors.Is(err, Transient):
		return "transient"
	case errors.Is(err, Permanent):
		return "permanent"
	case errors.Is(err, ContentInvalid):
		return "content_invalid"
	case errors.Is(err, ClassificationUncertain):
		return "classification_uncertain"
	default:
		return "unknown"
	}
}
