package rollout

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/util/workqueue"
	gatewaycache "sigs.k8s.io/gateway-api/apis/v1"
	gatewayclientset "sigs.k8s.io/gateway-api/pkg/client/clientset/versioned"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
	versioned "github.com/kulta-io/kulta-rollouts/pkg/client/clientset/versioned"
	"github.com/kulta-io/kulta-rollouts/pkg/strategy"
)

// maxRetries bounds how many times a key is rate-limited-requeued before
// the controller gives up and drops it, matching the teacher pack's own
// deployment-controller convention of a fixed retry ceiling.
const maxRetries = 15

// resyncPeriod drives periodic full relists on top of event-driven
// enqueues, catching drift a missed watch event would otherwise hide.
const resyncPeriod = 10 * time.Minute

// activeRolloutsReportInterval is how often the kulta_rollouts_active
// gauge is recomputed from the informer cache's current contents.
const activeRolloutsReportInterval = 15 * time.Second

// Controller drains a namespace-agnostic workqueue of Rollout keys,
// built from Rollout/ReplicaSet/HTTPRoute informers, and dispatches each
// to the Reconciler. This is the client-go "SharedIndexInformer +
// RateLimitingInterface" shape the retrieval pack's own deployment
// controller uses, not sigs.k8s.io/controller-runtime: the CRD has no
// generated informer, so the Rollout side is a small hand-rolled
// ListWatch instead of a generated SharedInformerFactory.
type Controller struct {
	reconciler *Reconciler

	rolloutClient versioned.Interface
	rolloutStore  cache.Store
	rolloutSynced cache.InformerSynced

	rsInformer cache.SharedIndexInformer

	queue workqueue.TypedRateLimitingInterface[string]
}

// NewController wires informers for Rollouts (hand-rolled ListWatch over
// the generated-style clientset), owned ReplicaSets (the real client-go
// informer), and, when gatewayClient is non-nil, owned HTTPRoutes (the
// real gateway-api informer) so that edits to any of the three enqueue
// the owning rollout's key.
func NewController(
	kubeClient kubernetes.Interface,
	rolloutClient versioned.Interface,
	gatewayClient gatewayclientset.Interface,
	reconciler *Reconciler,
	namespace string,
) *Controller {
	c := &Controller{
		reconciler:    reconciler,
		rolloutClient: rolloutClient,
		queue: workqueue.NewTypedRateLimitingQueue[string](
			workqueue.NewTypedItemExponentialFailureRateLimiter[string](10*time.Second, 5*time.Minute),
		),
	}

	rolloutInformer := cache.NewSharedIndexInformer(
		rolloutListWatch(rolloutClient, namespace),
		&v1alpha1.Rollout{},
		resyncPeriod,
		cache.Indexers{cache.NamespaceIndex: cache.MetaNamespaceIndexFunc},
	)
	rolloutInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { c.enqueueRollout(obj) },
		UpdateFunc: func(_, cur interface{}) { c.enqueueRollout(cur) },
		DeleteFunc: func(obj interface{}) { c.enqueueRollout(obj) },
	})
	c.rolloutStore = rolloutInformer.GetStore()
	c.rolloutSynced = rolloutInformer.HasSynced

	rsInformer := cache.NewSharedIndexInformer(
		&cache.ListWatch{
			ListFunc: func(opts metav1.ListOptions) (interface{}, error) {
				return kubeClient.AppsV1().ReplicaSets(namespace).List(context.Background(), opts)
			},
			WatchFunc: func(opts metav1.ListOptions) (watch.Interface, error) {
				return kubeClient.AppsV1().ReplicaSets(namespace).Watch(context.Background(), opts)
			},
		},
		&appsv1.ReplicaSet{},
		resyncPeriod,
		cache.Indexers{cache.NamespaceIndex: cache.MetaNamespaceIndexFunc},
	)
	rsInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { c.enqueueOwner(obj) },
		UpdateFunc: func(_, cur interface{}) { c.enqueueOwner(cur) },
		DeleteFunc: func(obj interface{}) { c.enqueueOwner(obj) },
	})
	c.rsInformer = rsInformer

	if gatewayClient != nil {
		routeInformer := cache.NewSharedIndexInformer(
			&cache.ListWatch{
				ListFunc: func(opts metav1.ListOptions) (interface{}, error) {
					return gatewayClient.GatewayV1().HTTPRoutes(namespace).List(context.Background(), opts)
				},
				WatchFunc: func(opts metav1.ListOptions) (watch.Interface, error) {
					return gatewayClient.GatewayV1().HTTPRoutes(namespace).Watch(context.Background(), opts)
				},
			},
			&gatewaycache.HTTPRoute{},
			resyncPeriod,
			cache.Indexers{},
		)
		routeInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
			AddFunc:    func(obj interface{}) { c.enqueueOwner(obj) },
			UpdateFunc: func(_, cur interface{}) { c.enqueueOwner(cur) },
		})
		go routeInformer.Run(context.Background().Done())
	}

	c.startInformers(rolloutInformer, rsInformer)
	return c
}

func (c *Controller) startInformers(informers ...cache.SharedIndexInformer) {
	for _, i := range informers {
		go i.Run(context.Background().Done())
	}
}

// rolloutListWatch adapts the hand-rolled typed clientset into a
// cache.ListWatch, the same adaptation the generated client-go
// informers perform over their own typed clients.
func rolloutListWatch(client versioned.Interface, namespace string) *cache.ListWatch {
	return &cache.ListWatch{
		ListFunc: func(opts metav1.ListOptions) (interface{}, error) {
			return client.RolloutsV1alpha1().Rollouts(namespace).List(context.Background(), opts)
		},
		WatchFunc: func(opts metav1.ListOptions) (watch.Interface, error) {
			return client.RolloutsV1alpha1().Rollouts(namespace).Watch(context.Background(), opts)
		},
	}
}

func (c *Controller) enqueueRollout(obj interface{}) {
	key, err := cache.MetaNamespaceKeyFunc(obj)
	if err != nil {
		utilruntime.HandleError(fmt.Errorf("couldn't get key for rollout %#v: %w", obj, err))
		return
	}
	c.queue.Add(key)
}

// enqueueOwner resolves obj's controller owner reference back to a
// Rollout key. Non-owned or foreign-kind objects are ignored; the
// metav1.Object accessor below works for both ReplicaSet and HTTPRoute
// since both embed a metav1.ObjectMeta.
func (c *Controller) enqueueOwner(obj interface{}) {
	accessor, ok := obj.(metav1.Object)
	if !ok {
		if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			accessor, ok = tombstone.Obj.(metav1.Object)
			if !ok {
				return
			}
		} else {
			return
		}
	}

	ref := metav1.GetControllerOf(accessor)
	if ref == nil || ref.Kind != "Rollout" {
		return
	}
	c.queue.Add(fmt.Sprintf("%s/%s", accessor.GetNamespace(), ref.Name))
}

// Run blocks until ctx is cancelled, waiting for informer caches to sync
// and then draining the queue with the given number of worker goroutines.
func (c *Controller) Run(ctx context.Context, workers int) error {
	defer utilruntime.HandleCrash()
	defer c.queue.ShutDown()

	log.Info("starting rollout controller")
	if !cache.WaitForCacheSync(ctx.Done(), c.rolloutSynced, c.rsInformer.HasSynced) {
		return fmt.Errorf("timed out waiting for informer caches to sync")
	}

	for i := 0; i < workers; i++ {
		go wait.Until(func() { c.worker(ctx) }, time.Second, ctx.Done())
	}
	go wait.Until(c.reportActiveRollouts, activeRolloutsReportInterval, ctx.Done())

	<-ctx.Done()
	log.Info("shutting down rollout controller")
	return nil
}

func (c *Controller) worker(ctx context.Context) {
	for c.processNextWorkItem(ctx) {
	}
}

func (c *Controller) processNextWorkItem(ctx context.Context) bool {
	key, quit := c.queue.Get()
	if quit {
		return false
	}
	defer c.queue.Done(key)

	result, err := c.syncKey(ctx, key)
	c.handleResult(key, result, err)
	return true
}

func (c *Controller) syncKey(ctx context.Context, key string) (Result, error) {
	namespace, name, err := cache.SplitMetaNamespaceKey(key)
	if err != nil {
		return Result{}, &ValidationError{Err: fmt.Errorf("invalid key %q: %w", key, err)}
	}
	return c.reconciler.Reconcile(ctx, namespace, name)
}

// handleResult translates a reconcile outcome into the queue's
// forget/retry/delay vocabulary: success and skip forget the key and
// re-add it after the returned requeue interval; a conflict is retried
// immediately (no backoff, since the next attempt is expected to
// succeed); any other error backs off exponentially up to maxRetries,
// after which the key is dropped and logged.
func (c *Controller) handleResult(key string, result Result, err error) {
	if err == nil {
		c.queue.Forget(key)
		if result.RequeueAfter > 0 {
			c.queue.AddAfter(key, result.RequeueAfter)
		}
		return
	}

	if isRetryableImmediately(err) {
		c.queue.Add(key)
		return
	}

	if c.queue.NumRequeues(key) < maxRetries {
		log.WithField("rollout", key).WithError(err).Warn("error syncing rollout, retrying")
		c.queue.AddRateLimited(key)
		return
	}

	log.WithField("rollout", key).WithError(err).Error("dropping rollout out of the queue after too many retries")
	utilruntime.HandleError(err)
	c.queue.Forget(key)
}

// reportActiveRollouts recomputes kulta_rollouts_active from the Rollout
// informer's current cache contents, grouped by phase and strategy. It
// resets the gauge first so a phase/strategy combination with no more
// members reads back to zero instead of lingering at its last count.
func (c *Controller) reportActiveRollouts() {
	counts := map[[2]string]float64{}
	for _, obj := range c.rolloutStore.List() {
		rollout, ok := obj.(*v1alpha1.Rollout)
		if !ok {
			continue
		}
		phase := string(rollout.Status.Phase)
		if phase == "" {
			phase = string(v1alpha1.PhaseInitializing)
		}
		key := [2]string{phase, strategy.Dispatch(rollout).Name()}
		counts[key]++
	}

	c.reconciler.metrics.ResetActiveRollouts()
	for key, count := range counts {
		c.reconciler.metrics.SetActiveRollouts(key[0], key[1], count)
	}
}
