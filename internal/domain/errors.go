package domain

import "errors"

// Sentinel errors for the adjudication boundary. Handlers map these to
// stable HTTP error codes; rule failures are decisions, never errors.
var (
	// ErrValidation indicates malformed or incomplete claim input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates an operation not allowed in the
	// record's current lifecycle state (e.g. appealing an approved claim).
	ErrInvalidState = errors.New("invalid state")

	// ErrPolicyLookup indicates policy terms could not be resolved for
	// the tenant. Adjudication never silently falls back to defaults.
	ErrPolicyLookup = errors.New("policy terms unavailable")

	// ErrExtractionTimeout indicates the document extraction collaborator
	// exceeded its deadline. Recovered internally: the pipeline proceeds
	// with a degraded extraction instead of surfacing this.
	ErrExtractionTimeout = errors.New("document extraction timed out")
)
