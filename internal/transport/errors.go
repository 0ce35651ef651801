package transport

import "fmt"

// Kind classifies an error for retry/propagation purposes (spec §7).
type Kind int

const (
	// KindMalformedInput is a single skipped input row — never fatal.
	KindMalformedInput Kind = iota
	// KindRequestValidation is a client error at a request boundary.
	KindRequestValidation
	// KindTransientWorker is retryable: timeout, connection failure, or a
	// transient server-side condition.
	KindTransientWorker
	// KindPermanentWorker is not retryable: malformed response, schema
	// violation, or a structured 4xx-equivalent.
	KindPermanentWorker
	// KindCompleteness is a fatal aggregator validation failure.
	KindCompleteness
	// KindWrite is a fatal artefact-write failure.
	KindWrite
)

// ClassifiedError carries a Kind alongside the underlying error so callers
// can decide retry vs. fail-fast without string-matching messages.
type ClassifiedError struct {
	Kind Kind
	Err  error
}

func (c *ClassifiedError) Error() string { return c.Err.Error() }
func (c *ClassifiedError) Unwrap() error { return c.Err }

func Classify(kind Kind, err error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Err: err}
}

func (c *ClassifiedError) Retryable() bool {
	return c.Kind == KindTransientWorker
}

// Sanitize produces the caller-facing message for a fatal error: no
// filesystem paths, no stack details, just enough context to act on
// (spec §7 "every fatal path produces a sanitised message to the
// caller ... logs the full context server-side with the request id").
func Sanitize(requestID string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("request %s failed: %s", requestID, genericReason(err))
}

// genericReason strips anything that looks like it came from the
// filesystem or a driver-level error, leaving only a short category.
func genericReason(err error) string {
	var ce *ClassifiedError
	if as, ok := err.(*ClassifiedError); ok {
		ce = as
	}
	if ce == nil {
		return "internal error"
	}
	switch ce.Kind {
	case KindMalformedInput:
		return "one or more input rows were malformed and were skipped"
	case KindRequestValidation:
		return "the request failed validation"
	case KindTransientWorker:
		return "a detector service was temporarily unavailable"
	case KindPermanentWorker:
		return "a detector service returned a permanent error"
	case KindCompleteness:
		return "the result set was incomplete"
	case KindWrite:
		return "writing the output artefacts failed"
	default:
		return "internal error"
	}
}
