// Package errs defines the sentinel error values shared across EdgeVec's
// component packages (spec §7's error-kind table). Components that can
// raise one of these wrap it with context via fmt.Errorf("...: %w", ...);
// callers compare with errors.Is.
package errs

import "errors"

var (
	// ErrDimensionMismatch: input vector length != the index's configured d.
	ErrDimensionMismatch = errors.New("edgevec: dimension mismatch")

	// ErrNonFiniteValue: a vector component is NaN or +/-Inf.
	ErrNonFiniteValue = errors.New("edgevec: non-finite value")

	// ErrDuplicateID: an explicit-id insert collided with a live id.
	ErrDuplicateID = errors.New("edgevec: duplicate id")

	// ErrIDNotFound: delete/get referenced an id that was never assigned.
	ErrIDNotFound = errors.New("edgevec: id not found")

	// ErrFilterDepthExceeded: a filter AST nested deeper than policy allows.
	ErrFilterDepthExceeded = errors.New("edgevec: filter nesting depth exceeded")

	// ErrFilterTypeError: a comparison in a filter predicate compared
	// incompatible types.
	ErrFilterTypeError = errors.New("edgevec: filter type error")

	// ErrBQNotEnabled: SearchBQ called while binary quantization is off.
	ErrBQNotEnabled = errors.New("edgevec: binary quantization not enabled")

	// ErrVersionMismatch: a snapshot's version field is not supported by
	// this build.
	ErrVersionMismatch = errors.New("edgevec: snapshot version mismatch")

	// ErrChecksumFailed: a snapshot's trailing CRC32C did not match its body.
	ErrChecksumFailed = errors.New("edgevec: snapshot checksum failed")

	// ErrCorrupt: a snapshot's structure could not be parsed at all.
	ErrCorrupt = errors.New("edgevec: snapshot corrupt")

	// ErrIndexNotReady: a query ran before any vector had been inserted.
	// Per spec §7 this is also an acceptable-to-avoid error: callers may
	// instead return an empty result set for an empty index, as long as the
	// chosen behavior is consistent (spec §9 Open Questions).
	ErrIndexNotReady = errors.New("edgevec: index not ready")
)
