// Package gatewayapi steers live traffic for canary and blue-green
// rollouts by merge-patching the weighted backendRefs of an existing
// Gateway API HTTPRoute. It assumes the HTTPRoute has exactly one rule:
// the traffic-splitting rule between a rollout's stable/active and
// canary/preview Services.
package gatewayapi

import (
	"context"
	"encoding/json"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	gatewayclientset "sigs.k8s.io/gateway-api/pkg/client/clientset/versioned"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

// Backend names a Service and the percentage weight of traffic it should
// receive. Weight is in [0, 100].
type Backend struct {
	Name   string
	Weight int32
}

const defaultPort = 80

// Patcher patches HTTPRoute backend weights using a typed Gateway API
// client. The same client works against both the cluster apiserver and
// fake clientsets in tests.
type Patcher struct {
	client gatewayclientset.Interface
}

// NewPatcher wraps a Gateway API clientset for HTTPRoute patching.
func NewPatcher(client gatewayclientset.Interface) *Patcher {
	return &Patcher{client: client}
}

// Routing resolves the GatewayAPI traffic routing config from whichever
// strategy the rollout uses, trying canary before blueGreen. Returns nil
// if traffic routing isn't configured, which is valid: routing is optional.
func Routing(r *v1alpha1.Rollout) *v1alpha1.GatewayAPIRouting {
	if c := r.Spec.Strategy.Canary; c != nil && c.TrafficRouting != nil && c.TrafficRouting.GatewayAPI != nil {
		return c.TrafficRouting.GatewayAPI
	}
	if bg := r.Spec.Strategy.BlueGreen; bg != nil && bg.TrafficRouting != nil && bg.TrafficRouting.GatewayAPI != nil {
		return bg.TrafficRouting.GatewayAPI
	}
	return nil
}

// BuildBackends pairs service names with their weights in stable/canary
// (or active/preview) order, skipping blank service names.
func BuildBackends(stableOrActive string, stableWeight int32, canaryOrPreview string, canaryWeight int32) []Backend {
	var backends []Backend
	if stableOrActive != "" {
		backends = append(backends, Backend{Name: stableOrActive, Weight: stableWeight})
	}
	if canaryOrPreview != "" {
		backends = append(backends, Backend{Name: canaryOrPreview, Weight: canaryWeight})
	}
	return backends
}

// httpBackendRef mirrors the JSON shape of gatewayapi.networking.k8s.io's
// HTTPBackendRef closely enough for a merge patch: name, port, and weight
// under the core Service group.
type httpBackendRef struct {
	Name   string `json:"name"`
	Port   int32  `json:"port"`
	Weight int32  `json:"weight"`
	Kind   string `json:"kind"`
	Group  string `json:"group"`
}

// Patch replaces the first rule's backendRefs on the named HTTPRoute with
// the given weighted backends. A missing HTTPRoute is not an error:
// traffic routing is best-effort until the route is created out of band.
func (p *Patcher) Patch(ctx context.Context, namespace, httpRouteName string, backends []Backend) error {
	refs := make([]httpBackendRef, 0, len(backends))
	for _, b := range backends {
		refs = append(refs, httpBackendRef{
			Name:   b.Name,
			Port:   defaultPort,
			Weight: b.Weight,
			Kind:   "Service",
			Group:  "",
		})
	}

	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"rules": []interface{}{
				map[string]interface{}{"backendRefs": refs},
			},
		},
	}
	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal httproute patch: %w", err)
	}

	_, err = p.client.GatewayV1().HTTPRoutes(namespace).Patch(
		ctx, httpRouteName, types.MergePatchType, patchBytes, metav1.PatchOptions{},
	)
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("patch httproute %s/%s: %w", namespace, httpRouteName, err)
	}
	return nil
}
