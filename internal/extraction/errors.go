package extraction

import "errors"

// The extraction error taxonomy. All of these are recoverable at the
// conversation worker: the user is asked to retry with a better photo and the
// session state is left untouched.
var (
	// ErrMediaFetch covers network or authorization failures while retrieving
	// the source image.
	ErrMediaFetch = errors.New("media fetch failed")

	// ErrEmptyImage is returned for zero-byte payloads.
	ErrEmptyImage = errors.New("empty image")

	// ErrModelInvocation covers failed or non-2xx model calls.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrMalformedExtraction is returned when the model replied but the
	// content is not parseable JSON or the required amount field is missing.
	ErrMalformedExtraction = errors.New("malformed extraction result")
)
