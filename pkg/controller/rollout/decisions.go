package rollout

import (
	"time"

	"github.com/kulta-io/kulta-rollouts/pkg/analysis"
	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

// buildDecision classifies an old→next status transition into the
// Decision the reconciler should append, mirroring cdevents.Transition's
// before/after classification but producing the richer action/reason
// pair §4.7 requires. Returns ok=false for an identity transition (the
// 30s self-requeue polling this same status again), which must not grow
// the decision log.
func buildDecision(old, next v1alpha1.RolloutStatus, hadPromote bool, ticks []analysis.Tick, now time.Time) (v1alpha1.Decision, bool) {
	action, ok := decisionAction(old, next)
	if !ok {
		return v1alpha1.Decision{}, false
	}

	d := v1alpha1.Decision{
		Timestamp: now.UTC().Format(time.RFC3339),
		Action:    action,
		Reason:    decisionReason(old, next, hadPromote, action),
		FromStep:  old.CurrentStepIndex,
		ToStep:    next.CurrentStepIndex,
		Message:   next.Message,
	}
	if snapshots := metricSnapshots(ticks); len(snapshots) > 0 {
		d.Metrics = snapshots
	}
	return d, true
}

func decisionAction(old, next v1alpha1.RolloutStatus) (v1alpha1.DecisionAction, bool) {
	switch {
	case old.Phase == "" && next.Phase != "":
		return v1alpha1.DecisionInitialize, true
	case next.Phase == v1alpha1.PhaseFailed && old.Phase != v1alpha1.PhaseFailed:
		return v1alpha1.DecisionRollback, true
	case next.Phase == v1alpha1.PhaseCompleted && old.Phase != v1alpha1.PhaseCompleted:
		return v1alpha1.DecisionComplete, true
	case next.Phase == v1alpha1.PhasePaused && old.Phase != v1alpha1.PhasePaused:
		return v1alpha1.DecisionPause, true
	case old.Phase == v1alpha1.PhasePaused && next.Phase != v1alpha1.PhasePaused:
		return v1alpha1.DecisionResume, true
	case old.Phase != "" && next.Phase != "" &&
		(old.Phase != next.Phase || !equalInt32p(old.CurrentStepIndex, next.CurrentStepIndex)):
		return v1alpha1.DecisionStepAdvance, true
	default:
		return "", false
	}
}

// decisionReason assigns the best-available reason for action. The pure
// strategy handlers don't thread a "why" out of ComputeNextStatus, so
// this infers it from the signals the reconciler does have: the
// snapshotted promote annotation, whether the rollout was paused, and
// whether this is the very first transition.
func decisionReason(old, next v1alpha1.RolloutStatus, hadPromote bool, action v1alpha1.DecisionAction) v1alpha1.DecisionReason {
	switch {
	case action == v1alpha1.DecisionRollback:
		return v1alpha1.ReasonAnalysisFailed
	case action == v1alpha1.DecisionInitialize:
		return v1alpha1.ReasonInitialization
	case hadPromote:
		return v1alpha1.ReasonManualPromotion
	case old.Phase == v1alpha1.PhasePaused:
		return v1alpha1.ReasonPauseDurationExpired
	default:
		return v1alpha1.ReasonAnalysisPassed
	}
}

func metricSnapshots(ticks []analysis.Tick) map[string]v1alpha1.MetricSnapshot {
	snapshots := make(map[string]v1alpha1.MetricSnapshot, len(ticks))
	for _, t := range ticks {
		if snap, ok := t.Snapshot(); ok {
			snapshots[string(t.Metric)] = snap
		}
	}
	return snapshots
}
