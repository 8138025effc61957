// Package v1alpha1 is a hand-written typed client for the Rollout CRD,
// shaped exactly like a client-go code-generator output (the CRD has no
// generated clientset of its own, unlike apps/v1 ReplicaSet or
// coordination/v1 Lease, which this controller talks to through
// client-go's built-in typed clients).
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime/serializer"
	"k8s.io/client-go/rest"

	rolloutsv1alpha1 "github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
	"github.com/kulta-io/kulta-rollouts/pkg/client/clientset/versioned/scheme"
)

// RolloutsV1alpha1Interface groups the resources this client version serves.
type RolloutsV1alpha1Interface interface {
	RESTClient() rest.Interface
	Rollouts(namespace string) RolloutInterface
}

// RolloutsV1alpha1Client talks to the kulta.io/v1alpha1 API group.
type RolloutsV1alpha1Client struct {
	restClient rest.Interface
}

// Rollouts returns the RolloutInterface scoped to namespace.
func (c *RolloutsV1alpha1Client) Rollouts(namespace string) RolloutInterface {
	return newRollouts(c, namespace)
}

// RESTClient returns the underlying REST client, exposed so higher-level
// code (e.g. informer ListWatch funcs) can build raw requests if needed.
func (c *RolloutsV1alpha1Client) RESTClient() rest.Interface {
	if c == nil {
		return nil
	}
	return c.restClient
}

// NewForConfig creates a RolloutsV1alpha1Client for the given config.
func NewForConfig(c *rest.Config) (*RolloutsV1alpha1Client, error) {
	config := *c
	setConfigDefaults(&config)
	client, err := rest.RESTClientFor(&config)
	if err != nil {
		return nil, err
	}
	return &RolloutsV1alpha1Client{restClient: client}, nil
}

func setConfigDefaults(config *rest.Config) {
	gv := rolloutsv1alpha1.SchemeGroupVersion
	config.GroupVersion = &gv
	config.APIPath = "/apis"
	config.NegotiatedSerializer = serializer.WithoutConversionCodecFactory{CodecFactory: scheme.Codecs}
	if config.UserAgent == "" {
		config.UserAgent = rest.DefaultKubernetesUserAgent()
	}
}
