// Package fake provides an in-memory Rollout clientset for unit tests,
// the hand-written equivalent of the fake clientset client-go's
// code-generator produces for a real typed client (the same role
// k8s.io/client-go/kubernetes/fake and
// sigs.k8s.io/gateway-api/.../fake play for ReplicaSet/Lease and
// HTTPRoute in this repo's other tests).
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/rest"

	rolloutsv1alpha1 "github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
	versioned "github.com/kulta-io/kulta-rollouts/pkg/client/clientset/versioned"
	typedv1alpha1 "github.com/kulta-io/kulta-rollouts/pkg/client/clientset/versioned/typed/rollouts/v1alpha1"
)

// Clientset is an in-memory Interface implementation. Zero value is not
// usable; build one with NewSimpleClientset.
type Clientset struct {
	mu      sync.Mutex
	objects map[string]*rolloutsv1alpha1.Rollout
}

var _ versioned.Interface = &Clientset{}

// NewSimpleClientset seeds the fake store with objs, keyed by
// namespace/name, and returns a ready-to-use Interface.
func NewSimpleClientset(objs ...*rolloutsv1alpha1.Rollout) *Clientset {
	c := &Clientset{objects: make(map[string]*rolloutsv1alpha1.Rollout)}
	for _, o := range objs {
		c.objects[key(o.Namespace, o.Name)] = o.DeepCopy()
	}
	return c
}

func key(namespace, name string) string { return namespace + "/" + name }

// RolloutsV1alpha1 satisfies versioned.Interface.
func (c *Clientset) RolloutsV1alpha1() typedv1alpha1.RolloutsV1alpha1Interface {
	return &fakeRolloutsV1alpha1{c: c}
}

var _ typedv1alpha1.RolloutsV1alpha1Interface = &fakeRolloutsV1alpha1{}
var _ typedv1alpha1.RolloutInterface = &fakeRollouts{}

type fakeRolloutsV1alpha1 struct{ c *Clientset }

func (f *fakeRolloutsV1alpha1) RESTClient() rest.Interface { return nil }

func (f *fakeRolloutsV1alpha1) Rollouts(namespace string) typedv1alpha1.RolloutInterface {
	return &fakeRollouts{c: f.c, ns: namespace}
}

type fakeRollouts struct {
	c  *Clientset
	ns string
}

func notFound(name string) error {
	return apierrors.NewNotFound(schema.GroupResource{Group: rolloutsv1alpha1.GroupName, Resource: "rollouts"}, name)
}

func (f *fakeRollouts) Get(_ context.Context, name string, _ metav1.GetOptions) (*rolloutsv1alpha1.Rollout, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	obj, ok := f.c.objects[key(f.ns, name)]
	if !ok {
		return nil, notFound(name)
	}
	return obj.DeepCopy(), nil
}

func (f *fakeRollouts) List(_ context.Context, _ metav1.ListOptions) (*rolloutsv1alpha1.RolloutList, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	list := &rolloutsv1alpha1.RolloutList{}
	for _, obj := range f.c.objects {
		if obj.Namespace == f.ns {
			list.Items = append(list.Items, *obj.DeepCopy())
		}
	}
	return list, nil
}

func (f *fakeRollouts) Watch(_ context.Context, _ metav1.ListOptions) (watch.Interface, error) {
	return watch.NewFake(), nil
}

func (f *fakeRollouts) Create(_ context.Context, rollout *rolloutsv1alpha1.Rollout, _ metav1.CreateOptions) (*rolloutsv1alpha1.Rollout, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	k := key(f.ns, rollout.Name)
	if _, exists := f.c.objects[k]; exists {
		return nil, apierrors.NewAlreadyExists(schema.GroupResource{Group: rolloutsv1alpha1.GroupName, Resource: "rollouts"}, rollout.Name)
	}
	stored := rollout.DeepCopy()
	stored.Namespace = f.ns
	f.c.objects[k] = stored
	return stored.DeepCopy(), nil
}

func (f *fakeRollouts) Update(_ context.Context, rollout *rolloutsv1alpha1.Rollout, _ metav1.UpdateOptions) (*rolloutsv1alpha1.Rollout, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	k := key(f.ns, rollout.Name)
	if _, ok := f.c.objects[k]; !ok {
		return nil, notFound(rollout.Name)
	}
	stored := rollout.DeepCopy()
	f.c.objects[k] = stored
	return stored.DeepCopy(), nil
}

func (f *fakeRollouts) UpdateStatus(_ context.Context, rollout *rolloutsv1alpha1.Rollout, _ metav1.UpdateOptions) (*rolloutsv1alpha1.Rollout, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	k := key(f.ns, rollout.Name)
	existing, ok := f.c.objects[k]
	if !ok {
		return nil, notFound(rollout.Name)
	}
	stored := existing.DeepCopy()
	stored.Status = *rollout.Status.DeepCopy()
	f.c.objects[k] = stored
	return stored.DeepCopy(), nil
}

func (f *fakeRollouts) Patch(_ context.Context, name string, pt types.PatchType, data []byte, _ metav1.PatchOptions, _ ...string) (*rolloutsv1alpha1.Rollout, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	existing, ok := f.c.objects[key(f.ns, name)]
	if !ok {
		return nil, notFound(name)
	}

	if pt != types.MergePatchType {
		return nil, fmt.Errorf("fake rollouts client only supports merge patches, got %s", pt)
	}

	existingJSON, err := json.Marshal(existing)
	if err != nil {
		return nil, fmt.Errorf("marshal existing rollout: %w", err)
	}
	merged, err := jsonpatch.MergePatch(existingJSON, data)
	if err != nil {
		return nil, fmt.Errorf("apply merge patch: %w", err)
	}

	patched := &rolloutsv1alpha1.Rollout{}
	if err := json.Unmarshal(merged, patched); err != nil {
		return nil, fmt.Errorf("unmarshal patched rollout: %w", err)
	}
	f.c.objects[key(f.ns, name)] = patched
	return patched.DeepCopy(), nil
}

func (f *fakeRollouts) Delete(_ context.Context, name string, _ metav1.DeleteOptions) error {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	k := key(f.ns, name)
	if _, ok := f.c.objects[k]; !ok {
		return notFound(name)
	}
	delete(f.c.objects, k)
	return nil
}
