package weight

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

func int32p(v int32) *int32 { return &v }

func TestCalculate_NoCanaryStrategy(t *testing.T) {
	r := &v1alpha1.Rollout{}
	stable, canary := Calculate(r)
	assert.Equal(t, int32(100), stable)
	assert.Equal(t, int32(0), canary)
}

func TestCalculate_NoStepStarted(t *testing.T) {
	r := &v1alpha1.Rollout{
		Spec: v1alpha1.RolloutSpec{
			Strategy: v1alpha1.RolloutStrategy{
				Canary: &v1alpha1.CanaryStrategy{
					Steps: []v1alpha1.CanaryStep{{SetWeight: int32p(20)}},
				},
			},
		},
	}
	stable, canary := Calculate(r)
	assert.Equal(t, int32(100), stable)
	assert.Equal(t, int32(0), canary)
}

func TestCalculate_MidStep(t *testing.T) {
	r := &v1alpha1.Rollout{
		Spec: v1alpha1.RolloutSpec{
			Strategy: v1alpha1.RolloutStrategy{
				Canary: &v1alpha1.CanaryStrategy{
					Steps: []v1alpha1.CanaryStep{
						{SetWeight: int32p(20)},
						{SetWeight: int32p(50)},
					},
				},
			},
		},
		Status: v1alpha1.RolloutStatus{CurrentStepIndex: int32p(1)},
	}
	stable, canary := Calculate(r)
	assert.Equal(t, int32(50), stable)
	assert.Equal(t, int32(50), canary)
}

func TestCalculate_PastLastStep(t *testing.T) {
	r := &v1alpha1.Rollout{
		Spec: v1alpha1.RolloutSpec{
			Strategy: v1alpha1.RolloutStrategy{
				Canary: &v1alpha1.CanaryStrategy{
					Steps: []v1alpha1.CanaryStep{{SetWeight: int32p(20)}},
				},
			},
		},
		Status: v1alpha1.RolloutStatus{CurrentStepIndex: int32p(5)},
	}
	stable, canary := Calculate(r)
	assert.Equal(t, int32(0), stable)
	assert.Equal(t, int32(100), canary)
}

func TestSplitReplicas(t *testing.T) {
	cases := []struct {
		total, weight, wantStable, wantCanary int32
	}{
		{10, 0, 10, 0},
		{10, 100, 0, 10},
		{10, 50, 5, 5},
		{10, 33, 7, 3},
		{0, 50, 0, 0},
		{5, 10, 5, 0},
	}
	for _, c := range cases {
		stable, canary := SplitReplicas(c.total, c.weight)
		assert.Equal(t, c.wantStable, stable, "total=%d weight=%d", c.total, c.weight)
		assert.Equal(t, c.wantCanary, canary, "total=%d weight=%d", c.total, c.weight)
	}
}
