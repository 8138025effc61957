package strategy

import (
	"time"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

// BlueGreenHandler maintains full-size active and preview ReplicaSets and
// cuts traffic over instantly on promotion rather than shifting it
// gradually. It never reaches Progressing, so metrics analysis never
// gates it the way it gates canary steps.
type BlueGreenHandler struct{}

func (BlueGreenHandler) Name() string { return "blue-green" }

func (BlueGreenHandler) SupportsMetricsAnalysis(r *v1alpha1.Rollout) bool { return false }

func (BlueGreenHandler) SupportsManualPromotion() bool { return true }

// ComputeNextStatus extends the original's Preview/Completed state
// machine with auto-promotion: if AutoPromotionEnabled and
// AutoPromotionSeconds are set, entering Preview stamps PauseStartTime
// the same way a canary pause step does, and elapsing that duration
// promotes exactly like the annotation would.
func (h BlueGreenHandler) ComputeNextStatus(r *v1alpha1.Rollout, now time.Time) v1alpha1.RolloutStatus {
	bg := r.Spec.Strategy.BlueGreen
	if bg == nil {
		return r.Status
	}

	switch r.Status.Phase {
	case v1alpha1.PhaseCompleted:
		return v1alpha1.RolloutStatus{
			Phase:    v1alpha1.PhaseCompleted,
			Message:  "Blue-green rollout completed: preview promoted to active",
			Replicas: replicasOf(r),
		}

	case v1alpha1.PhasePreview:
		if HasPromoteAnnotation(r) || h.autoPromotionElapsed(r, bg, now) {
			return v1alpha1.RolloutStatus{
				Phase:    v1alpha1.PhaseCompleted,
				Message:  "Blue-green rollout completed: preview promoted to active",
				Replicas: replicasOf(r),
			}
		}
		return v1alpha1.RolloutStatus{
			Phase:          v1alpha1.PhasePreview,
			Message:        "Blue-green rollout: preview environment ready, awaiting promotion",
			Replicas:       replicasOf(r),
			PauseStartTime: r.Status.PauseStartTime,
		}

	default:
		status := v1alpha1.RolloutStatus{
			Phase:    v1alpha1.PhasePreview,
			Message:  "Blue-green rollout: preview environment ready",
			Replicas: replicasOf(r),
		}
		if bg.AutoPromotionEnabled != nil && *bg.AutoPromotionEnabled {
			status.PauseStartTime = now.UTC().Format(time.RFC3339)
		}
		return status
	}
}

func (BlueGreenHandler) autoPromotionElapsed(r *v1alpha1.Rollout, bg *v1alpha1.BlueGreenStrategy, now time.Time) bool {
	if bg.AutoPromotionEnabled == nil || !*bg.AutoPromotionEnabled {
		return false
	}
	if bg.AutoPromotionSeconds == nil || r.Status.PauseStartTime == "" {
		return false
	}
	start, err := time.Parse(time.RFC3339, r.Status.PauseStartTime)
	if err != nil {
		return false
	}
	return now.Sub(start) >= time.Duration(*bg.AutoPromotionSeconds)*time.Second
}
