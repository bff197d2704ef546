package ragcore

import "errors"

// Taxonomy sentinels per spec section 7. Each maps to exactly one taxonomy
// code via Code() and one HTTP status code via StatusCode(); nothing upstream of the HTTP layer should invent
// its own status mapping.
var (
	// ErrValidation covers bad inputs at the boundary: missing fields,
	// library weights not summing to 1, invalid search queries, unsupported
	// content types. Never retried.
	ErrValidation = errors.New("ragcore: validation error")

	// ErrNotFound is returned when a referenced entity (library, document,
	// chapter) does not exist. Never retried.
	ErrNotFound = errors.New("ragcore: entity not found")

	// ErrConflict is returned on a unique-constraint violation, e.g. a
	// duplicate user/library association. Never retried.
	ErrConflict = errors.New("ragcore: conflict")

	// ErrTransientExternal covers I/O, timeout, and 5xx errors from a
	// provider or a store-serialization failure. Retried per policy.
	ErrTransientExternal = errors.New("ragcore: transient external failure")

	// ErrModelNotRegistered is returned when resolve(model_name) finds no
	// provider advertising the requested model. Never retried; treated as
	// a deployment error.
	ErrModelNotRegistered = errors.New("ragcore: model not registered with any provider")

	// ErrPipelineFatal covers unrecoverable ingestion failures: the splitter
	// produced zero chapters, or a persistence constraint failed after
	// content generation. Document moves to FAILED; never retried.
	ErrPipelineFatal = errors.New("ragcore: pipeline failure")

	// ErrCancelled is returned when an in-flight ingestion observes a
	// caller-initiated cancel. The document is left in place.
	ErrCancelled = errors.New("ragcore: cancelled")

	// ErrStoreClosed is returned when operating on a closed store handle.
	ErrStoreClosed = errors.New("ragcore: store is closed")

	// ErrInvalidConfig is returned for invalid configuration values
	// (e.g. zero providers configured for the LLM pool).
	ErrInvalidConfig = errors.New("ragcore: invalid configuration")
)

// Code returns the taxonomy code the HTTP layer surfaces for err, walking
// wrapped errors with errors.Is. Unclassified errors map to INTERNAL_ERROR.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "ENTITY_NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrModelNotRegistered):
		return "MODEL_NOT_REGISTERED"
	case errors.Is(err, ErrPipelineFatal):
		return "PROCESSING_ERROR"
	case errors.Is(err, ErrTransientExternal):
		return "PROCESSING_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// StatusCode returns the HTTP status the handler layer should write for err.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return 400
	case errors.Is(err, ErrNotFound):
		return 404
	default:
		return 500
	}
}

// Retryable reports whether the orchestrator and per-call retry wrappers
// should attempt err again. Only Transient-external failures are retried;
// everything else (including Cancelled) is terminal for the current
// attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientExternal)
}
