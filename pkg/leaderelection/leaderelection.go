// Package leaderelection acquires and renews a single coordination.k8s.io
// Lease so that, across any number of controller replicas, only one
// instance ever performs mutating reconcile work at a time.
package leaderelection

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	coordv1client "k8s.io/client-go/kubernetes/typed/coordination/v1"

	"github.com/pkg/errors"
)

// DefaultLeaseDuration is how long a held lease stays valid without renewal.
const DefaultLeaseDuration = 15 * time.Second

// DefaultRenewInterval is how often the coordinator attempts to
// acquire or renew the lease; should be roughly a third of the lease
// duration so a missed tick or two doesn't cost leadership.
const DefaultRenewInterval = 5 * time.Second

// LeaseName is the single, fixed lease object every controller instance
// contends for.
const LeaseName = "kulta-controller-leader"

// Config parameterizes one coordinator instance.
type Config struct {
	HolderID            string
	LeaseName           string
	LeaseNamespace      string
	LeaseDurationSeconds int32
	RenewInterval        time.Duration
}

// withDefaults fills unset fields with their documented defaults.
func (c Config) withDefaults() Config {
	if c.LeaseName == "" {
		c.LeaseName = LeaseName
	}
	if c.LeaseDurationSeconds == 0 {
		c.LeaseDurationSeconds = int32(DefaultLeaseDuration / time.Second)
	}
	if c.RenewInterval == 0 {
		c.RenewInterval = DefaultRenewInterval
	}
	return c
}

// State is the process-wide leader flag: a single atomic boolean with
// one writer (the Coordinator's renew loop) and many readers (every
// reconcile worker, gating mutating API calls).
type State struct {
	leader atomic.Bool
}

// NewState returns a State that starts as a follower.
func NewState() *State { return &State{} }

// IsLeader reports the current leader status.
func (s *State) IsLeader() bool { return s.leader.Load() }

func (s *State) set(v bool) { s.leader.Store(v) }

// SetLeader forces the leader flag directly, bypassing the Coordinator's
// renew loop. This is for single-replica deployments that skip leader
// election entirely (every mutating call should proceed unconditionally)
// and for tests that need a leader State without standing up a Lease.
func (s *State) SetLeader(v bool) { s.set(v) }

// Coordinator runs the acquire-or-renew loop against a single Lease
// object, driving a shared State.
type Coordinator struct {
	client kubernetes.Interface
	config Config
	state  *State
	log    *log.Entry
}

// New builds a Coordinator. client is the typed Kubernetes clientset used
// for coordination/v1 Lease GET/CREATE/PATCH calls.
func New(client kubernetes.Interface, config Config, state *State) *Coordinator {
	config = config.withDefaults()
	return &Coordinator{
		client: client,
		config: config,
		state:  state,
		log:    log.WithField("holderId", config.HolderID),
	}
}

// Run blocks, ticking every RenewInterval until ctx is cancelled. The
// first tick fires immediately so a freshly started instance doesn't
// wait a full interval before contending for leadership. The lease is
// never released on shutdown; it expires naturally.
func (c *Coordinator) Run(ctx context.Context) {
	c.tick(ctx)

	ticker := time.NewTicker(c.config.RenewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("leader election shutting down")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	wasLeader := c.state.IsLeader()
	isLeader, err := c.acquireOrRenew(ctx)
	if err != nil {
		c.log.WithError(err).Warn("leader election error; treating this instance as follower")
		isLeader = false
	}
	c.state.set(isLeader)

	switch {
	case isLeader && !wasLeader:
		c.log.Info("acquired leadership")
	case !isLeader && wasLeader:
		c.log.Warn("lost leadership")
	}
}

// acquireOrRenew implements try_acquire_or_renew: GET the lease; if
// missing, attempt to CREATE it as self (a 409 means a race was lost);
// if self already holds it, PATCH to renew; if expired, PATCH to seize
// it (incrementing leaseTransitions); otherwise remain a follower.
func (c *Coordinator) acquireOrRenew(ctx context.Context) (bool, error) {
	leases := c.client.CoordinationV1().Leases(c.config.LeaseNamespace)
	now := metav1.NewMicroTime(time.Now())

	existing, err := leases.Get(ctx, c.config.LeaseName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return c.create(ctx, leases, now)
	}
	if err != nil {
		return false, errors.Wrap(err, "get lease")
	}

	spec := existing.Spec
	if spec.HolderIdentity != nil && *spec.HolderIdentity == c.config.HolderID {
		return true, c.renew(ctx, leases, now)
	}

	if !leaseExpired(spec, now.Time) {
		return false, nil
	}

	transitions := int32(0)
	if spec.LeaseTransitions != nil {
		transitions = *spec.LeaseTransitions
	}
	return true, c.seize(ctx, leases, now, transitions+1)
}

func leaseExpired(spec coordinationv1.LeaseSpec, now time.Time) bool {
	if spec.RenewTime == nil || spec.LeaseDurationSeconds == nil {
		return true
	}
	expiry := spec.RenewTime.Add(time.Duration(*spec.LeaseDurationSeconds) * time.Second)
	return now.After(expiry)
}

func (c *Coordinator) create(ctx context.Context, leases coordv1client.LeaseInterface, now metav1.MicroTime) (bool, error) {
	lease := &coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{
			Name:      c.config.LeaseName,
			Namespace: c.config.LeaseNamespace,
		},
		Spec: coordinationv1.LeaseSpec{
			HolderIdentity:       &c.config.HolderID,
			AcquireTime:          &now,
			RenewTime:            &now,
			LeaseDurationSeconds: &c.config.LeaseDurationSeconds,
			LeaseTransitions:     int32p(0),
		},
	}
	_, err := leases.Create(ctx, lease, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		c.log.Info("lease already created by another holder; will retry acquisition on next interval")
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "create lease")
	}
	c.log.Info("created new lease")
	return true, nil
}

func (c *Coordinator) renew(ctx context.Context, leases coordv1client.LeaseInterface, now metav1.MicroTime) error {
	patch, err := mergePatch(map[string]interface{}{
		"spec": map[string]interface{}{
			"renewTime":            now,
			"leaseDurationSeconds": c.config.LeaseDurationSeconds,
		},
	})
	if err != nil {
		return err
	}
	_, err = leases.Patch(ctx, c.config.LeaseName, types.MergePatchType, patch, metav1.PatchOptions{})
	return errors.Wrap(err, "renew lease")
}

func (c *Coordinator) seize(ctx context.Context, leases coordv1client.LeaseInterface, now metav1.MicroTime, transitions int32) error {
	patch, err := mergePatch(map[string]interface{}{
		"spec": map[string]interface{}{
			"holderIdentity":       c.config.HolderID,
			"acquireTime":          now,
			"renewTime":            now,
			"leaseDurationSeconds": c.config.LeaseDurationSeconds,
			"leaseTransitions":     transitions,
		},
	})
	if err != nil {
		return err
	}
	c.log.Info("lease expired, seizing leadership")
	_, err = leases.Patch(ctx, c.config.LeaseName, types.MergePatchType, patch, metav1.PatchOptions{})
	return errors.Wrap(err, "seize lease")
}

// mergePatch marshals a patch document directly: a JSON merge patch
// (RFC 7386) against a known-shape field set like this one is just the
// JSON encoding of "what should change", so no diff computation is
// needed the way pkg/traffic/gatewayapi's HTTPRoute patch does not need
// one either.
func mergePatch(doc map[string]interface{}) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshal lease patch")
	}
	return b, nil
}

func int32p(v int32) *int32 { return &v }
