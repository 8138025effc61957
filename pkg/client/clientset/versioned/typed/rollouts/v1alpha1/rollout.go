package v1alpha1

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/rest"

	rolloutsv1alpha1 "github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
	"github.com/kulta-io/kulta-rollouts/pkg/client/clientset/versioned/scheme"
)

// RolloutInterface is the verb set the reconciler and controller runtime
// need against one namespace's Rollouts: read for the watch/reconcile
// loop, UpdateStatus/Patch for the status subresource, Patch for clearing
// the promotion annotation.
type RolloutInterface interface {
	Get(ctx context.Context, name string, opts metav1.GetOptions) (*rolloutsv1alpha1.Rollout, error)
	List(ctx context.Context, opts metav1.ListOptions) (*rolloutsv1alpha1.RolloutList, error)
	Watch(ctx context.Context, opts metav1.ListOptions) (watch.Interface, error)
	Create(ctx context.Context, rollout *rolloutsv1alpha1.Rollout, opts metav1.CreateOptions) (*rolloutsv1alpha1.Rollout, error)
	Update(ctx context.Context, rollout *rolloutsv1alpha1.Rollout, opts metav1.UpdateOptions) (*rolloutsv1alpha1.Rollout, error)
	UpdateStatus(ctx context.Context, rollout *rolloutsv1alpha1.Rollout, opts metav1.UpdateOptions) (*rolloutsv1alpha1.Rollout, error)
	Patch(ctx context.Context, name string, pt types.PatchType, data []byte, opts metav1.PatchOptions, subresources ...string) (*rolloutsv1alpha1.Rollout, error)
	Delete(ctx context.Context, name string, opts metav1.DeleteOptions) error
}

// rollouts implements RolloutInterface against one namespace.
type rollouts struct {
	client rest.Interface
	ns     string
}

func newRollouts(c *RolloutsV1alpha1Client, namespace string) *rollouts {
	return &rollouts{client: c.restClient, ns: namespace}
}

func (c *rollouts) Get(ctx context.Context, name string, opts metav1.GetOptions) (result *rolloutsv1alpha1.Rollout, err error) {
	result = &rolloutsv1alpha1.Rollout{}
	err = c.client.Get().
		Namespace(c.ns).
		Resource("rollouts").
		Name(name).
		VersionedParams(&opts, scheme.ParameterCodec).
		Do(ctx).
		Into(result)
	return
}

func (c *rollouts) List(ctx context.Context, opts metav1.ListOptions) (result *rolloutsv1alpha1.RolloutList, err error) {
	result = &rolloutsv1alpha1.RolloutList{}
	err = c.client.Get().
		Namespace(c.ns).
		Resource("rollouts").
		VersionedParams(&opts, scheme.ParameterCodec).
		Do(ctx).
		Into(result)
	return
}

func (c *rollouts) Watch(ctx context.Context, opts metav1.ListOptions) (watch.Interface, error) {
	opts.Watch = true
	return c.client.Get().
		Namespace(c.ns).
		Resource("rollouts").
		VersionedParams(&opts, scheme.ParameterCodec).
		Watch(ctx)
}

func (c *rollouts) Create(ctx context.Context, rollout *rolloutsv1alpha1.Rollout, opts metav1.CreateOptions) (result *rolloutsv1alpha1.Rollout, err error) {
	result = &rolloutsv1alpha1.Rollout{}
	err = c.client.Post().
		Namespace(c.ns).
		Resource("rollouts").
		VersionedParams(&opts, scheme.ParameterCodec).
		Body(rollout).
		Do(ctx).
		Into(result)
	return
}

func (c *rollouts) Update(ctx context.Context, rollout *rolloutsv1alpha1.Rollout, opts metav1.UpdateOptions) (result *rolloutsv1alpha1.Rollout, err error) {
	result = &rolloutsv1alpha1.Rollout{}
	err = c.client.Put().
		Namespace(c.ns).
		Resource("rollouts").
		Name(rollout.Name).
		VersionedParams(&opts, scheme.ParameterCodec).
		Body(rollout).
		Do(ctx).
		Into(result)
	return
}

// UpdateStatus hits the status subresource only, matching the spec's
// requirement that writes to status go through the status subresource
// rather than a full-object update.
func (c *rollouts) UpdateStatus(ctx context.Context, rollout *rolloutsv1alpha1.Rollout, opts metav1.UpdateOptions) (result *rolloutsv1alpha1.Rollout, err error) {
	result = &rolloutsv1alpha1.Rollout{}
	err = c.client.Put().
		Namespace(c.ns).
		Resource("rollouts").
		Name(rollout.Name).
		SubResource("status").
		VersionedParams(&opts, scheme.ParameterCodec).
		Body(rollout).
		Do(ctx).
		Into(result)
	return
}

func (c *rollouts) Patch(ctx context.Context, name string, pt types.PatchType, data []byte, opts metav1.PatchOptions, subresources ...string) (result *rolloutsv1alpha1.Rollout, err error) {
	result = &rolloutsv1alpha1.Rollout{}
	err = c.client.Patch(pt).
		Namespace(c.ns).
		Resource("rollouts").
		Name(name).
		SubResource(subresources...).
		VersionedParams(&opts, scheme.ParameterCodec).
		Body(data).
		Do(ctx).
		Into(result)
	return
}

func (c *rollouts) Delete(ctx context.Context, name string, opts metav1.DeleteOptions) error {
	return c.client.Delete().
		Namespace(c.ns).
		Resource("rollouts").
		Name(name).
		Body(&opts).
		Do(ctx).
		Error()
}
