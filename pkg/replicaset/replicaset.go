// Package replicaset builds the ReplicaSets a Rollout owns: one per role
// (stable/canary, active/preview, or a single simple ReplicaSet), each
// carrying a pod-template-hash label so the controller can tell revisions
// apart.
package replicaset

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
	"github.com/kulta-io/kulta-rollouts/pkg/hash"
)

// Build constructs the ReplicaSet for rollout's current pod template with
// the given role and replica count. The name is {rollout}-{rsType}; the
// rollouts.kulta.io/managed label keeps Deployment controllers from
// adopting it, and the pod-template-hash label (also folded into the
// selector) lets the reconciler distinguish revisions of the same role.
func Build(rollout *v1alpha1.Rollout, rsType v1alpha1.ReplicaSetType, replicas int32) (*appsv1.ReplicaSet, error) {
	if rollout.Name == "" {
		return nil, fmt.Errorf("rollout missing name")
	}

	templateHash, err := hash.PodTemplate(rollout.Spec.Template)
	if err != nil {
		return nil, fmt.Errorf("compute pod template hash: %w", err)
	}

	template := *rollout.Spec.Template.DeepCopy()
	labels := map[string]string{}
	for k, v := range template.Labels {
		labels[k] = v
	}
	labels[v1alpha1.LabelPodTemplateHash] = templateHash
	labels[v1alpha1.LabelType] = string(rsType)
	labels[v1alpha1.LabelManaged] = "true"
	labels[v1alpha1.LabelRollout] = rollout.Name
	template.Labels = labels

	name := fmt.Sprintf("%s-%s", rollout.Name, rsType)
	replicasVal := replicas

	rs := &appsv1.ReplicaSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: rollout.Namespace,
			Labels:    labels,
			OwnerReferences: []metav1.OwnerReference{
				*metav1.NewControllerRef(rollout, v1alpha1.SchemeGroupVersion.WithKind("Rollout")),
			},
		},
		Spec: appsv1.ReplicaSetSpec{
			Replicas: &replicasVal,
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: template,
		},
	}
	return rs, nil
}

// Name returns the deterministic name a ReplicaSet of the given role would
// have for rollout, without building the full object.
func Name(rolloutName string, rsType v1alpha1.ReplicaSetType) string {
	return fmt.Sprintf("%s-%s", rolloutName, rsType)
}
