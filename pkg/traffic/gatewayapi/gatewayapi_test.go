package gatewayapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	gatewayfake "sigs.k8s.io/gateway-api/pkg/client/clientset/versioned/fake"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

func int32p(v int32) *int32 { return &v }

func TestRouting_PrefersCanary(t *testing.T) {
	r := &v1alpha1.Rollout{
		Spec: v1alpha1.RolloutSpec{
			Strategy: v1alpha1.RolloutStrategy{
				Canary: &v1alpha1.CanaryStrategy{
					TrafficRouting: &v1alpha1.TrafficRouting{
						GatewayAPI: &v1alpha1.GatewayAPIRouting{HTTPRoute: "demo-route"},
					},
				},
				BlueGreen: &v1alpha1.BlueGreenStrategy{
					TrafficRouting: &v1alpha1.TrafficRouting{
						GatewayAPI: &v1alpha1.GatewayAPIRouting{HTTPRoute: "bg-route"},
					},
				},
			},
		},
	}
	routing := Routing(r)
	require.NotNil(t, routing)
	assert.Equal(t, "demo-route", routing.HTTPRoute)
}

func TestRouting_Unconfigured(t *testing.T) {
	assert.Nil(t, Routing(&v1alpha1.Rollout{}))
}

func TestPatch_UpdatesFirstRuleBackendRefs(t *testing.T) {
	route := &gatewayv1.HTTPRoute{
		ObjectMeta: metav1.ObjectMeta{Name: "demo-route", Namespace: "default"},
		Spec: gatewayv1.HTTPRouteSpec{
			Rules: []gatewayv1.HTTPRouteRule{{}},
		},
	}
	client := gatewayfake.NewSimpleClientset(route)
	patcher := NewPatcher(client)

	err := patcher.Patch(context.Background(), "default", "demo-route", BuildBackends("stable-svc", 80, "canary-svc", 20))
	require.NoError(t, err)

	got, err := client.GatewayV1().HTTPRoutes("default").Get(context.Background(), "demo-route", metav1.GetOptions{})
	require.NoError(t, err)
	require.Len(t, got.Spec.Rules, 1)
	require.Len(t, got.Spec.Rules[0].BackendRefs, 2)
	assert.Equal(t, gatewayv1.ObjectName("stable-svc"), got.Spec.Rules[0].BackendRefs[0].Name)
	assert.Equal(t, int32(80), *got.Spec.Rules[0].BackendRefs[0].Weight)
	assert.Equal(t, gatewayv1.ObjectName("canary-svc"), got.Spec.Rules[0].BackendRefs[1].Name)
	assert.Equal(t, int32(20), *got.Spec.Rules[0].BackendRefs[1].Weight)
}

func TestPatch_MissingRouteIsNotAnError(t *testing.T) {
	client := gatewayfake.NewSimpleClientset()
	patcher := NewPatcher(client)

	err := patcher.Patch(context.Background(), "default", "missing-route", BuildBackends("a", 100, "b", 0))
	require.NoError(t, err)
}

func TestBuildBackends_SkipsBlankNames(t *testing.T) {
	backends := BuildBackends("", 100, "canary-svc", 0)
	require.Len(t, backends, 1)
	assert.Equal(t, "canary-svc", backends[0].Name)
}

func TestHTTPBackendRef_JSONShape(t *testing.T) {
	ref := httpBackendRef{Name: "svc", Port: defaultPort, Weight: 50, Kind: "Service", Group: ""}
	raw, err := json.Marshal(ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"svc","port":80,"weight":50,"kind":"Service","group":""}`, string(raw))
}
