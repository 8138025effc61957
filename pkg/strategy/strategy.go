// Package strategy computes the next RolloutStatus for each of the three
// supported deployment strategies. These are pure functions of the
// current Rollout: no Kubernetes or Prometheus I/O happens here, which
// keeps the state machine unit-testable without a cluster.
package strategy

import (
	"time"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

// Clock abstracts time.Now so tests can control pause-elapsed checks.
type Clock func() time.Time

// Handler implements one deployment strategy's status state machine.
type Handler interface {
	// Name identifies the strategy for logging and metrics labels; the
	// reconciler also switches on it to pick ReplicaSet roles.
	Name() string
	// ComputeNextStatus returns the RolloutStatus that should be written
	// for the next reconcile given the rollout's spec and current status.
	ComputeNextStatus(r *v1alpha1.Rollout, now time.Time) v1alpha1.RolloutStatus
	// SupportsMetricsAnalysis reports whether this rollout, under this
	// strategy, can reach a phase where Prometheus analysis applies.
	SupportsMetricsAnalysis(r *v1alpha1.Rollout) bool
	// SupportsManualPromotion reports whether the kulta.io/promote
	// annotation affects this strategy's progression.
	SupportsManualPromotion() bool
}

// Dispatch selects the Handler for a rollout. Precedence is
// Simple > BlueGreen > Canary; Canary is the fallback when all three
// strategy fields are nil (matching RolloutStrategy's documented default).
func Dispatch(r *v1alpha1.Rollout) Handler {
	switch {
	case r.Spec.Strategy.Simple != nil:
		return SimpleHandler{}
	case r.Spec.Strategy.BlueGreen != nil:
		return BlueGreenHandler{}
	default:
		return CanaryHandler{}
	}
}

// HasPromoteAnnotation reports whether the rollout carries
// kulta.io/promote=true, the manual-promotion trigger shared by the
// canary pause gate and the blue-green cutover.
func HasPromoteAnnotation(r *v1alpha1.Rollout) bool {
	return r.Annotations[v1alpha1.AnnotationPromote] == "true"
}

func int32p(v int32) *int32 { return &v }
