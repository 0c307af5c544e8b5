// Package dumperrors defines the dumper's error taxonomy. Each kind is a
// sentinel that call sites wrap with fmt.Errorf("...: %w", err) in the
// teacher's own idiom (see internal/mysqlconn), so callers can still match
// with errors.Is while getting a component-specific message.
package dumperrors

import "errors"

var (
	// ErrInvalidConfig: bad output URL, conflicting options. Fails before Init.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPreconditionFailed: missing privilege, unsupported server version. Fails before Dumping.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrLockAcquisitionFailed: both strong and fallback table locks denied. Fails before Snapshotted.
	ErrLockAcquisitionFailed = errors.New("lock acquisition failed")

	// ErrCompatibility: unfixable compatibility issues under the target version. No code path
	// returns it yet; compatibility issues are only logged as warnings.
	ErrCompatibility = errors.New("compatibility error")

	// ErrTransientQuery: deadlock/timeout on a chunk. Recorded by a Worker, job aborts.
	ErrTransientQuery = errors.New("transient query error")

	// ErrWriter: I/O error on output. Recorded by a Worker, job aborts.
	ErrWriter = errors.New("writer error")

	// ErrCancelled: operator interrupt. Clean shutdown, raised to the caller of Run.
	ErrCancelled = errors.New("dump cancelled")
)

// Is reports whether err ultimately wraps target, mirroring errors.Is so
// callers can write dumperrors.Is(err, dumperrors.ErrWriter) symmetrically
// with the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
