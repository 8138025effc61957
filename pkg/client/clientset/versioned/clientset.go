// Package versioned is the entry point for the hand-written Rollout CRD
// clientset, mirroring client-go's own generated clientset.go shape
// (one Interface per supported group/version, satisfied by a Clientset
// built from a single rest.Config).
package versioned

import (
	"fmt"

	"k8s.io/client-go/rest"
	flowcontrol "k8s.io/client-go/util/flowcontrol"

	rolloutsv1alpha1 "github.com/kulta-io/kulta-rollouts/pkg/client/clientset/versioned/typed/rollouts/v1alpha1"
)

// Interface abstracts the clientset so callers can substitute the fake
// implementation in tests.
type Interface interface {
	RolloutsV1alpha1() rolloutsv1alpha1.RolloutsV1alpha1Interface
}

// Clientset is the production implementation of Interface, backed by a
// REST client built from a *rest.Config (in-cluster or kubeconfig).
type Clientset struct {
	rolloutsV1alpha1 *rolloutsv1alpha1.RolloutsV1alpha1Client
}

var _ Interface = &Clientset{}

// RolloutsV1alpha1 returns the kulta.io/v1alpha1 client.
func (c *Clientset) RolloutsV1alpha1() rolloutsv1alpha1.RolloutsV1alpha1Interface {
	return c.rolloutsV1alpha1
}

// NewForConfig creates a Clientset for the given config, applying the
// same QPS/Burst defaults client-go's generated clientsets apply.
func NewForConfig(c *rest.Config) (*Clientset, error) {
	configShallowCopy := *c
	if configShallowCopy.RateLimiter == nil && configShallowCopy.QPS > 0 {
		configShallowCopy.RateLimiter = flowcontrol.NewTokenBucketRateLimiter(configShallowCopy.QPS, configShallowCopy.Burst)
	}
	client, err := rolloutsv1alpha1.NewForConfig(&configShallowCopy)
	if err != nil {
		return nil, fmt.Errorf("build rollouts v1alpha1 client: %w", err)
	}
	return &Clientset{rolloutsV1alpha1: client}, nil
}
