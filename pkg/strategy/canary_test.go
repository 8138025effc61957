package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func canaryRollout(steps []v1alpha1.CanaryStep) *v1alpha1.Rollout {
	return &v1alpha1.Rollout{
		Spec: v1alpha1.RolloutSpec{
			Strategy: v1alpha1.RolloutStrategy{
				Canary: &v1alpha1.CanaryStrategy{Steps: steps},
			},
		},
	}
}

func TestCanaryHandler_Initializes(t *testing.T) {
	r := canaryRollout([]v1alpha1.CanaryStep{{SetWeight: int32p(20)}, {SetWeight: int32p(50)}})
	status := CanaryHandler{}.ComputeNextStatus(r, fixedNow)

	assert.Equal(t, v1alpha1.PhaseProgressing, status.Phase)
	require.NotNil(t, status.CurrentStepIndex)
	assert.Equal(t, int32(0), *status.CurrentStepIndex)
	require.NotNil(t, status.CurrentWeight)
	assert.Equal(t, int32(20), *status.CurrentWeight)
	assert.Empty(t, status.PauseStartTime)
}

func TestCanaryHandler_InitializesWithPause(t *testing.T) {
	r := canaryRollout([]v1alpha1.CanaryStep{{SetWeight: int32p(10), Pause: &v1alpha1.PauseStep{}}})
	status := CanaryHandler{}.ComputeNextStatus(r, fixedNow)
	assert.NotEmpty(t, status.PauseStartTime)
	assert.Equal(t, v1alpha1.PhasePaused, status.Phase)
}

func TestCanaryHandler_HoldsDuringPauseDuration(t *testing.T) {
	r := canaryRollout([]v1alpha1.CanaryStep{
		{SetWeight: int32p(20), Pause: &v1alpha1.PauseStep{Duration: "10m"}},
		{SetWeight: int32p(100)},
	})
	r.Status = v1alpha1.RolloutStatus{
		CurrentStepIndex: int32p(0),
		CurrentWeight:    int32p(20),
		Phase:            v1alpha1.PhasePaused,
		PauseStartTime:   fixedNow.Format(time.RFC3339),
	}

	status := CanaryHandler{}.ComputeNextStatus(r, fixedNow.Add(5*time.Minute))
	assert.Equal(t, int32(0), *status.CurrentStepIndex)
	assert.Equal(t, v1alpha1.PhasePaused, status.Phase)
}

func TestCanaryHandler_AdvancesAfterPauseElapses(t *testing.T) {
	r := canaryRollout([]v1alpha1.CanaryStep{
		{SetWeight: int32p(20), Pause: &v1alpha1.PauseStep{Duration: "10m"}},
		{SetWeight: int32p(100)},
	})
	r.Status = v1alpha1.RolloutStatus{
		CurrentStepIndex: int32p(0),
		CurrentWeight:    int32p(20),
		Phase:            v1alpha1.PhasePaused,
		PauseStartTime:   fixedNow.Format(time.RFC3339),
	}

	status := CanaryHandler{}.ComputeNextStatus(r, fixedNow.Add(11*time.Minute))
	require.NotNil(t, status.CurrentStepIndex)
	assert.Equal(t, int32(1), *status.CurrentStepIndex)
	assert.Equal(t, v1alpha1.PhaseCompleted, status.Phase)
	assert.Equal(t, int32(100), *status.CurrentWeight)
}

func TestCanaryHandler_ManualPromotionOverridesPause(t *testing.T) {
	r := canaryRollout([]v1alpha1.CanaryStep{
		{SetWeight: int32p(20), Pause: &v1alpha1.PauseStep{}},
		{SetWeight: int32p(50)},
	})
	r.Annotations = map[string]string{v1alpha1.AnnotationPromote: "true"}
	r.Status = v1alpha1.RolloutStatus{
		CurrentStepIndex: int32p(0),
		CurrentWeight:    int32p(20),
		Phase:            v1alpha1.PhasePaused,
	}

	status := CanaryHandler{}.ComputeNextStatus(r, fixedNow)
	assert.Equal(t, int32(1), *status.CurrentStepIndex)
	assert.Equal(t, v1alpha1.PhaseProgressing, status.Phase)
}

func TestCanaryHandler_IndefinitePauseHoldsWithoutAnnotation(t *testing.T) {
	r := canaryRollout([]v1alpha1.CanaryStep{
		{SetWeight: int32p(20), Pause: &v1alpha1.PauseStep{}},
		{SetWeight: int32p(50)},
	})
	r.Status = v1alpha1.RolloutStatus{
		CurrentStepIndex: int32p(0),
		CurrentWeight:    int32p(20),
		Phase:            v1alpha1.PhasePaused,
	}
	status := CanaryHandler{}.ComputeNextStatus(r, fixedNow.Add(24*time.Hour))
	assert.Equal(t, int32(0), *status.CurrentStepIndex)
	assert.Equal(t, v1alpha1.PhasePaused, status.Phase)
}

func TestDispatch_Precedence(t *testing.T) {
	simple := &v1alpha1.Rollout{Spec: v1alpha1.RolloutSpec{Strategy: v1alpha1.RolloutStrategy{
		Simple: &v1alpha1.SimpleStrategy{}, BlueGreen: &v1alpha1.BlueGreenStrategy{},
	}}}
	assert.Equal(t, "simple", Dispatch(simple).Name())

	bg := &v1alpha1.Rollout{Spec: v1alpha1.RolloutSpec{Strategy: v1alpha1.RolloutStrategy{
		BlueGreen: &v1alpha1.BlueGreenStrategy{},
	}}}
	assert.Equal(t, "blue-green", Dispatch(bg).Name())

	fallback := &v1alpha1.Rollout{}
	assert.Equal(t, "canary", Dispatch(fallback).Name())
}
