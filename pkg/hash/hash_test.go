package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func podTemplate(image string, labels map[string]string) corev1.PodTemplateSpec {
	return corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{Labels: labels},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{Name: "app", Image: image},
			},
		},
	}
}

func TestPodTemplate_Deterministic(t *testing.T) {
	tpl := podTemplate("app:v1", map[string]string{"app": "demo"})

	h1, err := PodTemplate(tpl)
	require.NoError(t, err)
	h2, err := PodTemplate(tpl)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 10)
}

func TestPodTemplate_DiffersOnImageChange(t *testing.T) {
	a, err := PodTemplate(podTemplate("app:v1", nil))
	require.NoError(t, err)
	b, err := PodTemplate(podTemplate("app:v2", nil))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestPodTemplate_KeyOrderIndependent(t *testing.T) {
	labelsA := map[string]string{"a": "1", "b": "2"}
	labelsB := map[string]string{"b": "2", "a": "1"}

	h1, err := PodTemplate(podTemplate("app:v1", labelsA))
	require.NoError(t, err)
	h2, err := PodTemplate(podTemplate("app:v1", labelsB))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}
