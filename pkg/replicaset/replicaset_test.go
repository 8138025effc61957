package replicaset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

func testRollout() *v1alpha1.Rollout {
	return &v1alpha1.Rollout{
		ObjectMeta: metav1.ObjectMeta{Name: "demo", Namespace: "default"},
		Spec: v1alpha1.RolloutSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: "app", Image: "demo:v1"}},
				},
			},
		},
	}
}

func TestBuild_NameAndLabels(t *testing.T) {
	rollout := testRollout()
	rs, err := Build(rollout, v1alpha1.ReplicaSetStable, 3)
	require.NoError(t, err)

	assert.Equal(t, "demo-stable", rs.Name)
	assert.Equal(t, "default", rs.Namespace)
	assert.Equal(t, "true", rs.Labels[v1alpha1.LabelManaged])
	assert.Equal(t, "stable", rs.Labels[v1alpha1.LabelType])
	assert.Equal(t, "demo", rs.Labels[v1alpha1.LabelRollout])
	assert.NotEmpty(t, rs.Labels[v1alpha1.LabelPodTemplateHash])
	assert.Equal(t, int32(3), *rs.Spec.Replicas)
	assert.Equal(t, rs.Labels, rs.Spec.Selector.MatchLabels)
	require.Len(t, rs.OwnerReferences, 1)
	assert.Equal(t, "Rollout", rs.OwnerReferences[0].Kind)
	assert.Equal(t, "demo", rs.OwnerReferences[0].Name)
}

func TestBuild_MissingName(t *testing.T) {
	rollout := testRollout()
	rollout.Name = ""
	_, err := Build(rollout, v1alpha1.ReplicaSetCanary, 0)
	require.Error(t, err)
}

func TestName(t *testing.T) {
	assert.Equal(t, "demo-canary", Name("demo", v1alpha1.ReplicaSetCanary))
}
