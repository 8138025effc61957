package cdevents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

func int32p(v int32) *int32 { return &v }

func rolloutWithImage(image string) *v1alpha1.Rollout {
	return &v1alpha1.Rollout{
		ObjectMeta: metav1.ObjectMeta{Name: "demo", Namespace: "default"},
		Spec: v1alpha1.RolloutSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "app", Image: image}}},
			},
		},
	}
}

func TestTransition_Initialization(t *testing.T) {
	kind := Transition(nil, v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseProgressing})
	assert.Equal(t, typeServiceDeployed, kind)
}

func TestTransition_StepProgression(t *testing.T) {
	old := v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseProgressing, CurrentStepIndex: int32p(0)}
	kind := Transition(&old, v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseProgressing, CurrentStepIndex: int32p(1)})
	assert.Equal(t, typeServiceUpgraded, kind)
}

func TestTransition_Rollback(t *testing.T) {
	old := v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseProgressing}
	kind := Transition(&old, v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseFailed})
	assert.Equal(t, typeServiceRolledBack, kind)
}

func TestTransition_NoEventForUnrelatedChange(t *testing.T) {
	old := v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseProgressing, CurrentStepIndex: int32p(1)}
	kind := Transition(&old, v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseProgressing, CurrentStepIndex: int32p(1)})
	assert.Empty(t, kind)
}

func TestEmitTransition_EmitsOnInitialization(t *testing.T) {
	sink := NewRecordingSink()
	r := rolloutWithImage("demo:v2")

	err := EmitTransition(context.Background(), sink, r, nil, v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseProgressing})
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, typeServiceDeployed, events[0].Type())
	assert.Equal(t, eventSource, events[0].Source())
}

func TestEmitTransition_NoOpWithoutTransition(t *testing.T) {
	sink := NewRecordingSink()
	r := rolloutWithImage("demo:v2")

	old := v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseProgressing, CurrentStepIndex: int32p(2)}
	err := EmitTransition(context.Background(), sink, r, &old, v1alpha1.RolloutStatus{Phase: v1alpha1.PhaseProgressing, CurrentStepIndex: int32p(2)})
	require.NoError(t, err)
	assert.Empty(t, sink.Events())
}

func TestSubjectIDFor_StepIncludesIndex(t *testing.T) {
	id := subjectIDFor("demo", typeServiceUpgraded, v1alpha1.RolloutStatus{CurrentStepIndex: int32p(3)})
	assert.Equal(t, "/rollouts/demo/step/3", id)
}
