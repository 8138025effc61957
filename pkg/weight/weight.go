// Package weight computes canary traffic-split percentages and the
// corresponding replica counts for the canary strategy.
package weight

import (
	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

// Calculate returns (stableWeight, canaryWeight) for a Rollout, both in
// [0, 100] and always summing to 100.
//
// No canary strategy, no status yet, or currentStepIndex < 0 all mean the
// rollout hasn't started stepping and traffic stays fully on stable.
// currentStepIndex at or past the end of Steps means the canary has
// absorbed all traffic. Otherwise the active step's SetWeight (0 if the
// step is a Pause step with no weight) names the canary share.
func Calculate(r *v1alpha1.Rollout) (stable, canary int32) {
	canaryStrategy := r.Spec.Strategy.Canary
	if canaryStrategy == nil {
		return 100, 0
	}

	stepIndex := int32(-1)
	if r.Status.CurrentStepIndex != nil {
		stepIndex = *r.Status.CurrentStepIndex
	}
	if stepIndex < 0 {
		return 100, 0
	}
	if int(stepIndex) >= len(canaryStrategy.Steps) {
		return 0, 100
	}

	step := canaryStrategy.Steps[stepIndex]
	canaryWeight := int32(0)
	if step.SetWeight != nil {
		canaryWeight = *step.SetWeight
	}
	return 100 - canaryWeight, canaryWeight
}

// SplitReplicas divides total replicas between stable and canary
// proportionally to canaryWeight, rounding down and assigning the
// remainder to stable so the canary never gets more capacity than its
// configured traffic share would justify.
func SplitReplicas(total int32, canaryWeight int32) (stable, canary int32) {
	if total <= 0 {
		return 0, 0
	}
	if canaryWeight <= 0 {
		return total, 0
	}
	if canaryWeight >= 100 {
		return 0, total
	}

	canary = (total * canaryWeight) / 100
	stable = total - canary
	return stable, canary
}
