package strategy

import (
	"fmt"
	"time"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

// SimpleHandler deploys all replicas behind a single ReplicaSet with no
// traffic splitting. It completes on the first reconcile; only an
// analysis-driven rollback can move it off Completed.
type SimpleHandler struct{}

func (SimpleHandler) Name() string { return "simple" }

func (SimpleHandler) SupportsManualPromotion() bool { return false }

// SupportsMetricsAnalysis is true when the simple strategy configures
// Analysis: rollback still applies even though there is no step gate to
// hold at, matching the original's "advisory" framing for this strategy.
func (SimpleHandler) SupportsMetricsAnalysis(r *v1alpha1.Rollout) bool {
	return r.Spec.Strategy.Simple != nil && r.Spec.Strategy.Simple.Analysis != nil
}

func (SimpleHandler) ComputeNextStatus(r *v1alpha1.Rollout, now time.Time) v1alpha1.RolloutStatus {
	return v1alpha1.RolloutStatus{
		Phase:            v1alpha1.PhaseCompleted,
		CurrentStepIndex: nil,
		CurrentWeight:    nil,
		Message:          fmt.Sprintf("Simple rollout completed: %d replicas updated", replicasOf(r)),
	}
}

func replicasOf(r *v1alpha1.Rollout) int32 {
	if r.Spec.Replicas == nil {
		return 1
	}
	return *r.Spec.Replicas
}
