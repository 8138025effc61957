package strategy

import (
	"fmt"
	"time"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

// CanaryHandler progressively shifts traffic from stable to canary
// across the configured Steps, pausing between steps until a duration
// elapses or a manual promotion arrives.
type CanaryHandler struct{}

func (CanaryHandler) Name() string { return "canary" }

func (CanaryHandler) SupportsMetricsAnalysis(r *v1alpha1.Rollout) bool { return true }

func (CanaryHandler) SupportsManualPromotion() bool { return true }

func (h CanaryHandler) ComputeNextStatus(r *v1alpha1.Rollout, now time.Time) v1alpha1.RolloutStatus {
	canary := r.Spec.Strategy.Canary
	if canary == nil {
		return r.Status
	}

	if r.Status.Phase == "" {
		return initializeCanaryStatus(canary, now)
	}

	if shouldAdvanceCanary(r, canary, now) {
		return advanceCanaryStatus(r.Status, canary, now)
	}

	return r.Status
}

func initializeCanaryStatus(canary *v1alpha1.CanaryStrategy, now time.Time) v1alpha1.RolloutStatus {
	var firstWeight int32
	var pauseStart string
	if len(canary.Steps) > 0 {
		step := canary.Steps[0]
		if step.SetWeight != nil {
			firstWeight = *step.SetWeight
		}
		if step.Pause != nil {
			pauseStart = now.UTC().Format(time.RFC3339)
		}
	}

	phase := v1alpha1.PhaseProgressing
	message := fmt.Sprintf("Starting canary rollout at step 0 (%d%% traffic)", firstWeight)
	if len(canary.Steps) > 0 && canary.Steps[0].Pause != nil {
		phase = v1alpha1.PhasePaused
		message = "Starting canary rollout at step 0, paused"
	}

	return v1alpha1.RolloutStatus{
		CurrentStepIndex: int32p(0),
		CurrentWeight:    int32p(firstWeight),
		Phase:            phase,
		Message:          message,
		PauseStartTime:   pauseStart,
	}
}

// shouldAdvanceCanary mirrors should_progress_to_next_step: a non-pause
// step always advances; a pause step holds until its duration elapses or
// a manual promotion annotation arrives (which overrides the hold
// unconditionally, even mid-pause), and a pause with no duration holds
// indefinitely absent promotion. The rollout's Phase tracks whichever of
// these holds applied most recently; it isn't consulted here; only the
// step at CurrentStepIndex and PauseStartTime are.
func shouldAdvanceCanary(r *v1alpha1.Rollout, canary *v1alpha1.CanaryStrategy, now time.Time) bool {
	if r.Status.CurrentStepIndex == nil {
		return false
	}
	idx := *r.Status.CurrentStepIndex
	if idx < 0 || int(idx) >= len(canary.Steps) {
		return false
	}

	step := canary.Steps[idx]
	if step.Pause == nil {
		return true
	}
	if HasPromoteAnnotation(r) {
		return true
	}
	if step.Pause.Duration == "" {
		return false
	}

	d, err := ParseDuration(step.Pause.Duration)
	if err != nil || r.Status.PauseStartTime == "" {
		return false
	}
	start, err := time.Parse(time.RFC3339, r.Status.PauseStartTime)
	if err != nil {
		return false
	}
	return now.Sub(start) >= d
}

func advanceCanaryStatus(current v1alpha1.RolloutStatus, canary *v1alpha1.CanaryStrategy, now time.Time) v1alpha1.RolloutStatus {
	currentIdx := int32(-1)
	if current.CurrentStepIndex != nil {
		currentIdx = *current.CurrentStepIndex
	}
	nextIdx := currentIdx + 1

	next := current
	next.CurrentStepIndex = int32p(nextIdx)

	if int(nextIdx) >= len(canary.Steps) {
		next.CurrentWeight = int32p(100)
		next.Phase = v1alpha1.PhaseCompleted
		next.Message = "Rollout completed: 100% traffic to canary"
		next.PauseStartTime = ""
		return next
	}

	step := canary.Steps[nextIdx]
	var weight int32
	if step.SetWeight != nil {
		weight = *step.SetWeight
	}
	next.CurrentWeight = int32p(weight)

	switch {
	case step.Pause != nil:
		next.Phase = v1alpha1.PhasePaused
		next.Message = fmt.Sprintf("Paused at step %d", nextIdx)
		next.PauseStartTime = now.UTC().Format(time.RFC3339)
	case weight == 100:
		next.Phase = v1alpha1.PhaseCompleted
		next.Message = "Rollout completed: 100% traffic to canary"
		next.PauseStartTime = ""
	default:
		next.Phase = v1alpha1.PhaseProgressing
		next.Message = fmt.Sprintf("Advanced to step %d (%d%% traffic)", nextIdx, weight)
		next.PauseStartTime = ""
	}
	return next
}
