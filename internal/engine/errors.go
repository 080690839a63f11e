package engine

import "fmt"

// InvalidOperationError rejects a malformed request before any sub-job is
// spawned and before any progress event is emitted. The caller's fault; no
// side effects.
type InvalidOperationError struct {
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return "invalid operation: " + e.Reason
}

// ProcessingError surfaces a failed or unusable sub-job: the external
// engine exited non-zero, was killed, or reported success without writing
// its output file. Never retried automatically; callers may resubmit.
type ProcessingError struct {
	Phase  string
	Reason string
	Err    error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed during %s: %s", e.Phase, e.Reason)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
