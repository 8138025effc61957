// Package hash computes the pod-template-hash label used to distinguish
// ReplicaSets owned by the same Rollout across template revisions.
package hash

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	corev1 "k8s.io/api/core/v1"
)

// PodTemplate hashes a PodTemplateSpec to a 10-character hex string.
//
// The template is round-tripped through encoding/json into a generic
// map so object keys come out in a stable lexicographic order regardless
// of struct field order, then hashed with FNV-1a. Two templates that are
// semantically identical but constructed differently always hash the same.
func PodTemplate(template corev1.PodTemplateSpec) (string, error) {
	raw, err := json.Marshal(template)
	if err != nil {
		return "", fmt.Errorf("marshal pod template: %w", err)
	}

	var canon interface{}
	if err := json.Unmarshal(raw, &canon); err != nil {
		return "", fmt.Errorf("unmarshal pod template for canonicalization: %w", err)
	}
	canonRaw, err := json.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("marshal canonical pod template: %w", err)
	}

	h := fnv.New64a()
	_, _ = h.Write(canonRaw)
	sum := fmt.Sprintf("%016x", h.Sum64())
	return sum[:10], nil
}
