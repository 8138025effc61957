package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

func boolp(v bool) *bool { return &v }

func blueGreenRollout(bg *v1alpha1.BlueGreenStrategy) *v1alpha1.Rollout {
	return &v1alpha1.Rollout{
		Spec: v1alpha1.RolloutSpec{
			Replicas: int32p(4),
			Strategy: v1alpha1.RolloutStrategy{BlueGreen: bg},
		},
	}
}

func TestBlueGreenHandler_InitializesToPreview(t *testing.T) {
	r := blueGreenRollout(&v1alpha1.BlueGreenStrategy{})
	status := BlueGreenHandler{}.ComputeNextStatus(r, fixedNow)
	assert.Equal(t, v1alpha1.PhasePreview, status.Phase)
	assert.Equal(t, int32(4), status.Replicas)
	assert.Empty(t, status.PauseStartTime)
}

func TestBlueGreenHandler_StaysInPreviewWithoutPromotion(t *testing.T) {
	r := blueGreenRollout(&v1alpha1.BlueGreenStrategy{})
	r.Status = v1alpha1.RolloutStatus{Phase: v1alpha1.PhasePreview}
	status := BlueGreenHandler{}.ComputeNextStatus(r, fixedNow)
	assert.Equal(t, v1alpha1.PhasePreview, status.Phase)
}

func TestBlueGreenHandler_PromotesOnAnnotation(t *testing.T) {
	r := blueGreenRollout(&v1alpha1.BlueGreenStrategy{})
	r.Status = v1alpha1.RolloutStatus{Phase: v1alpha1.PhasePreview}
	r.Annotations = map[string]string{v1alpha1.AnnotationPromote: "true"}
	status := BlueGreenHandler{}.ComputeNextStatus(r, fixedNow)
	assert.Equal(t, v1alpha1.PhaseCompleted, status.Phase)
}

func TestBlueGreenHandler_AutoPromotionElapsed(t *testing.T) {
	bg := &v1alpha1.BlueGreenStrategy{
		AutoPromotionEnabled: boolp(true),
		AutoPromotionSeconds: int32p(60),
	}
	r := blueGreenRollout(bg)
	r.Status = v1alpha1.RolloutStatus{
		Phase:          v1alpha1.PhasePreview,
		PauseStartTime: fixedNow.Format(time.RFC3339),
	}
	status := BlueGreenHandler{}.ComputeNextStatus(r, fixedNow.Add(90*time.Second))
	assert.Equal(t, v1alpha1.PhaseCompleted, status.Phase)
}

func TestBlueGreenHandler_AutoPromotionNotYetElapsed(t *testing.T) {
	bg := &v1alpha1.BlueGreenStrategy{
		AutoPromotionEnabled: boolp(true),
		AutoPromotionSeconds: int32p(600),
	}
	r := blueGreenRollout(bg)
	r.Status = v1alpha1.RolloutStatus{
		Phase:          v1alpha1.PhasePreview,
		PauseStartTime: fixedNow.Format(time.RFC3339),
	}
	status := BlueGreenHandler{}.ComputeNextStatus(r, fixedNow.Add(90*time.Second))
	assert.Equal(t, v1alpha1.PhasePreview, status.Phase)
}

func TestBlueGreenHandler_NeverSupportsMetricsAnalysis(t *testing.T) {
	assert.False(t, BlueGreenHandler{}.SupportsMetricsAnalysis(&v1alpha1.Rollout{}))
}
