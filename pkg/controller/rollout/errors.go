// Package rollout implements the reconciliation engine: one reconcile
// pass per Rollout key, dispatching to the strategy state machines and
// applying the resulting ReplicaSet, HTTPRoute, and status mutations.
package rollout

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// TransientError wraps a retryable infrastructure failure (5xx, timeout,
// connection reset). The runtime requeues with exponential backoff.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return fmt.Sprintf("transient error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// ConflictError wraps a 409 optimistic-concurrency failure. The runtime
// requeues immediately rather than backing off, since the conflict is
// expected to clear on the next attempt.
type ConflictError struct{ Err error }

func (e *ConflictError) Error() string { return fmt.Sprintf("conflict: %v", e.Err) }
func (e *ConflictError) Unwrap() error { return e.Err }

// ValidationError wraps a malformed input (a queue key missing its
// namespace or name, or an Invalid/BadRequest API response). The runtime
// surfaces it without retrying the same input; the next spec update
// re-triggers reconciliation.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return fmt.Sprintf("validation failed: %v", e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// SerializationError wraps a pod-template canonicalization failure. This
// pass is skipped; status is not patched to Failed for an infrastructure
// problem like this one.
type SerializationError struct{ Err error }

func (e *SerializationError) Error() string { return fmt.Sprintf("serialization failed: %v", e.Err) }
func (e *SerializationError) Unwrap() error { return e.Err }

// MetricsUnavailableError wraps a failed Prometheus query (an empty
// result is a NoData tick instead). It does not advance the rollback
// failure streak; the reconciler logs it and continues the pass.
type MetricsUnavailableError struct{ Err error }

func (e *MetricsUnavailableError) Error() string {
	return fmt.Sprintf("metrics unavailable: %v", e.Err)
}
func (e *MetricsUnavailableError) Unwrap() error { return e.Err }

// LeaderLostError is observed at the start of a reconcile when this
// instance is not (or is no longer) the leader. The pass is skipped
// without recording an error result.
type LeaderLostError struct{}

func (e *LeaderLostError) Error() string { return "leadership lost or not held" }

// classifyAPIError maps a Kubernetes API error into the taxonomy above.
// A nil error classifies to nil. NotFound has no case of its own and
// falls through to TransientError: callers that treat a NotFound
// specially (a missing Rollout or HTTPRoute) test it with
// apierrors.IsNotFound at the call site before classifying.
func classifyAPIError(err error, context string) error {
	if err == nil {
		return nil
	}
	switch {
	case apierrors.IsConflict(err):
		return &ConflictError{Err: fmt.Errorf("%s: %w", context, err)}
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		return &ValidationError{Err: fmt.Errorf("%s: %w", context, err)}
	case apierrors.IsServerTimeout(err), apierrors.IsTimeout(err), apierrors.IsServiceUnavailable(err),
		apierrors.IsInternalError(err), apierrors.IsTooManyRequests(err):
		return &TransientError{Err: fmt.Errorf("%s: %w", context, err)}
	default:
		return &TransientError{Err: fmt.Errorf("%s: %w", context, err)}
	}
}

// isRetryableImmediately reports whether err should be requeued without
// backoff (a conflict, expected to clear on the very next attempt).
func isRetryableImmediately(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
