package rollout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	gatewayclientset "sigs.k8s.io/gateway-api/pkg/client/clientset/versioned"

	"github.com/kulta-io/kulta-rollouts/pkg/analysis"
	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
	"github.com/kulta-io/kulta-rollouts/pkg/cdevents"
	versioned "github.com/kulta-io/kulta-rollouts/pkg/client/clientset/versioned"
	"github.com/kulta-io/kulta-rollouts/pkg/decision"
	"github.com/kulta-io/kulta-rollouts/pkg/hash"
	"github.com/kulta-io/kulta-rollouts/pkg/leaderelection"
	"github.com/kulta-io/kulta-rollouts/pkg/metrics"
	"github.com/kulta-io/kulta-rollouts/pkg/replicaset"
	"github.com/kulta-io/kulta-rollouts/pkg/strategy"
	"github.com/kulta-io/kulta-rollouts/pkg/traffic/gatewayapi"
	"github.com/kulta-io/kulta-rollouts/pkg/weight"
)

// defaultRequeueInterval bounds the latency of pause-duration and
// auto-promotion transitions, which are observed by polling rather than
// by a timer (§5 "Duration semantics").
const defaultRequeueInterval = 30 * time.Second

// backoffRequeueInterval is the base requeue delay on a reconcile error;
// the controller runtime layers exponential backoff on top of repeat
// failures for the same key.
const backoffRequeueInterval = 10 * time.Second

// Result tells the controller runtime when to look at this key again.
type Result struct {
	RequeueAfter time.Duration
}

// Reconciler performs one reconcile pass per Rollout key: observe the
// Rollout and its owned objects, compute the next cluster mutation via
// the dispatched strategy, and apply it. It is the Go realization of the
// teacher's rolloutContext/reconcile() pair, trimmed to this spec's
// scope (no AnalysisRun/Experiment bookkeeping) and extended with the
// weight calculator, decision log, and leader gate this spec needs.
type Reconciler struct {
	kubeClient    kubernetes.Interface
	rolloutClient versioned.Interface
	gatewayClient gatewayclientset.Interface
	patcher       *gatewayapi.Patcher
	leader        *leaderelection.State
	metrics       *metrics.Registry
	sink          cdevents.Sink
	now           func() time.Time

	mu         sync.Mutex
	evaluators map[string]*analysis.Evaluator
}

// NewReconciler wires the Reconciler's collaborators. gatewayClient may
// be nil if no rollout in the cluster configures Gateway API traffic
// routing; reconcileTraffic short-circuits before using it in that case.
func NewReconciler(
	kubeClient kubernetes.Interface,
	rolloutClient versioned.Interface,
	gatewayClient gatewayclientset.Interface,
	leader *leaderelection.State,
	metricsRegistry *metrics.Registry,
	sink cdevents.Sink,
) *Reconciler {
	var patcher *gatewayapi.Patcher
	if gatewayClient != nil {
		patcher = gatewayapi.NewPatcher(gatewayClient)
	}
	return &Reconciler{
		kubeClient:    kubeClient,
		rolloutClient: rolloutClient,
		gatewayClient: gatewayClient,
		patcher:       patcher,
		leader:        leader,
		metrics:       metricsRegistry,
		sink:          sink,
		now:           time.Now,
		evaluators:    make(map[string]*analysis.Evaluator),
	}
}

// Reconcile runs one pass for namespace/name. It never blocks longer
// than the context allows; every API call below threads ctx.
func (r *Reconciler) Reconcile(ctx context.Context, namespace, name string) (Result, error) {
	if !r.leader.IsLeader() {
		r.observe(metrics.ResultSkipped, "", 0)
		return Result{RequeueAfter: leaderelection.DefaultRenewInterval}, nil
	}

	start := r.now()
	entry := log.WithFields(log.Fields{"rollout": name, "namespace": namespace})

	if namespace == "" || name == "" {
		return Result{}, &ValidationError{Err: fmt.Errorf("reconcile key missing namespace or name")}
	}

	rollout, err := r.rolloutClient.RolloutsV1alpha1().Rollouts(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		// Owner references cascade the ReplicaSet/HTTPRoute cleanup; there
		// is nothing left for this pass to do.
		return Result{}, nil
	}
	if err != nil {
		r.observe(metrics.ResultError, "", r.now().Sub(start).Seconds())
		return Result{RequeueAfter: backoffRequeueInterval}, classifyAPIError(err, "get rollout")
	}

	handler := strategy.Dispatch(rollout)
	entry = entry.WithField("strategy", handler.Name())

	hadPromote := strategy.HasPromoteAnnotation(rollout)
	previousStatus := rollout.Status

	templateHash, err := hash.PodTemplate(rollout.Spec.Template)
	if err != nil {
		r.observe(metrics.ResultError, handler.Name(), r.now().Sub(start).Seconds())
		return Result{}, &SerializationError{Err: err}
	}

	// Invariant I6: a Completed rollout only leaves that phase when its
	// pod template changes. Detect that here (rather than inside each
	// pure strategy handler) by resetting to an empty status whenever the
	// freshly computed hash no longer matches the hash the Completed
	// status was computed for; every handler already treats an empty
	// status as "first ever reconcile" and re-initializes from it.
	effective := *rollout
	completedUnchanged := previousStatus.Phase == v1alpha1.PhaseCompleted && previousStatus.CurrentPodHash == templateHash
	if previousStatus.Phase == v1alpha1.PhaseCompleted && !completedUnchanged {
		effective.Status = v1alpha1.RolloutStatus{}
		entry.Info("pod template changed on a completed rollout; re-initializing")
	}

	// Stable: a Completed rollout with an unchanged template keeps its
	// status; reconcileReplicaSets/reconcileTraffic converge to a no-op.
	nextStatus := previousStatus
	if !completedUnchanged {
		nextStatus = handler.ComputeNextStatus(&effective, start)
	}

	// The metrics-driven rollback gate overrides whatever the pure state
	// machine decided, per §4.5's "Rollback transition": three
	// consecutive failing ticks move the rollout to Failed regardless of
	// where it was in its steps.
	var ticks []analysis.Tick
	if handler.SupportsMetricsAnalysis(rollout) && previousStatus.Phase != v1alpha1.PhaseFailed {
		ticks, nextStatus, err = r.evaluateAnalysis(ctx, rollout, handler, nextStatus, start)
		if err != nil {
			entry.WithError(err).Warn("metrics evaluation failed; continuing with the state machine's status for this pass")
		}
	}
	nextStatus.CurrentPodHash = templateHash

	projected := *rollout
	projected.Status = nextStatus

	rsCounts, err := r.reconcileReplicaSets(ctx, &projected, handler)
	if err != nil {
		r.observe(metrics.ResultError, handler.Name(), r.now().Sub(start).Seconds())
		return Result{RequeueAfter: backoffRequeueInterval}, err
	}
	nextStatus.Replicas = rsCounts.desired
	nextStatus.ReadyReplicas = rsCounts.ready
	nextStatus.UpdatedReplicas = rsCounts.updated

	stableWeight, canaryWeight := trafficWeights(&projected)
	if err := r.reconcileTraffic(ctx, rollout, stableWeight, canaryWeight); err != nil {
		r.observe(metrics.ResultError, handler.Name(), r.now().Sub(start).Seconds())
		return Result{RequeueAfter: backoffRequeueInterval}, err
	}

	changed := !statusEquivalent(previousStatus, nextStatus)
	var oldForEvents *v1alpha1.RolloutStatus
	if previousStatus.Phase != "" {
		oldForEvents = &previousStatus
	}

	if changed {
		if d, ok := buildDecision(previousStatus, nextStatus, hadPromote, ticks, start); ok {
			nextStatus.Decisions = decision.Append(previousStatus.Decisions, d)
		} else {
			nextStatus.Decisions = previousStatus.Decisions
		}

		updated, err := r.patchStatus(ctx, rollout, nextStatus)
		if err != nil {
			r.observe(metrics.ResultError, handler.Name(), r.now().Sub(start).Seconds())
			return Result{RequeueAfter: backoffRequeueInterval}, err
		}

		if err := cdevents.EmitTransition(ctx, r.sink, rollout, oldForEvents, nextStatus); err != nil {
			entry.WithError(err).Warn("failed to emit cdevent; reconciliation continues")
		}

		consumedPromote := hadPromote && previousStatus.Phase == v1alpha1.PhasePaused && nextStatus.Phase != v1alpha1.PhasePaused
		if consumedPromote {
			if err := r.clearPromoteAnnotation(ctx, updated); err != nil {
				entry.WithError(err).Warn("failed to clear promote annotation")
			}
		}
	} else {
		nextStatus.Decisions = previousStatus.Decisions
	}

	r.metrics.SetTrafficWeight(namespace, name, canaryWeightOrPreview(handler, nextStatus, canaryWeight))
	r.observe(metrics.ResultSuccess, handler.Name(), r.now().Sub(start).Seconds())
	return Result{RequeueAfter: defaultRequeueInterval}, nil
}

func (r *Reconciler) observe(result metrics.Result, strategyName string, seconds float64) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveReconcile(result, strategyName, seconds)
}

// canaryWeightOrPreview returns the value kulta_traffic_weight should
// report for a rollout: the canary share for canary strategies, or the
// preview share (0 or 100) for blue-green.
func canaryWeightOrPreview(handler strategy.Handler, status v1alpha1.RolloutStatus, canaryWeight int32) int32 {
	if handler.Name() == "blue-green" {
		if status.Phase == v1alpha1.PhaseCompleted {
			return 100
		}
		return 0
	}
	return canaryWeight
}

// trafficWeights derives the (stable, canary-or-preview) backend split a
// projected rollout (one whose Status already holds the about-to-be-
// written nextStatus) should route traffic with.
func trafficWeights(projected *v1alpha1.Rollout) (stable, canary int32) {
	if bg := projected.Spec.Strategy.BlueGreen; bg != nil {
		if projected.Status.Phase == v1alpha1.PhaseCompleted {
			return 0, 100
		}
		return 100, 0
	}
	return weight.Calculate(projected)
}

func replicasOf(r *v1alpha1.Rollout) int32 {
	if r.Spec.Replicas == nil {
		return 1
	}
	return *r.Spec.Replicas
}

// statusEquivalent reports whether two statuses agree on every field a
// Decision or CDEvent could be triggered by, so a no-op poll (the 30s
// self-requeue) never appends a duplicate decision (P5) or fires a
// duplicate CDEvent.
func statusEquivalent(a, b v1alpha1.RolloutStatus) bool {
	return a.Phase == b.Phase &&
		equalInt32p(a.CurrentStepIndex, b.CurrentStepIndex) &&
		equalInt32p(a.CurrentWeight, b.CurrentWeight) &&
		a.PauseStartTime == b.PauseStartTime &&
		a.Replicas == b.Replicas &&
		a.ReadyReplicas == b.ReadyReplicas &&
		a.UpdatedReplicas == b.UpdatedReplicas &&
		a.Message == b.Message &&
		a.CurrentPodHash == b.CurrentPodHash
}

func equalInt32p(a, b *int32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// patchStatus merge-patches the status subresource, matching §5's
// requirement that status writes go through the status subresource
// rather than a full-object update.
func (r *Reconciler) patchStatus(ctx context.Context, rollout *v1alpha1.Rollout, next v1alpha1.RolloutStatus) (*v1alpha1.Rollout, error) {
	patch := map[string]interface{}{"status": next}
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, &SerializationError{Err: fmt.Errorf("marshal status patch: %w", err)}
	}
	updated, err := r.rolloutClient.RolloutsV1alpha1().Rollouts(rollout.Namespace).
		Patch(ctx, rollout.Name, types.MergePatchType, data, metav1.PatchOptions{}, "status")
	if err != nil {
		return nil, classifyAPIError(err, "patch rollout status")
	}
	return updated, nil
}

// clearPromoteAnnotation removes kulta.io/promote once a Paused→
// Progressing (or →Completed) transition has consumed it, avoiding the
// promotion-annotation race described in §9: the annotation snapshot was
// taken before computeNextStatus ran, so this patch only fires when that
// snapshot is the reason the transition happened.
func (r *Reconciler) clearPromoteAnnotation(ctx context.Context, rollout *v1alpha1.Rollout) error {
	patch := map[string]interface{}{
		"metadata": map[string]interface{}{
			"annotations": map[string]interface{}{
				v1alpha1.AnnotationPromote: nil,
			},
		},
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal annotation patch: %w", err)
	}
	_, err = r.rolloutClient.RolloutsV1alpha1().Rollouts(rollout.Namespace).
		Patch(ctx, rollout.Name, types.MergePatchType, data, metav1.PatchOptions{})
	return err
}

// replicaSetCounts aggregates observed status across a rollout's owned
// ReplicaSets for the reconciler to fold into status.{replicas,
// readyReplicas,updatedReplicas}.
type replicaSetCounts struct {
	desired int32
	ready   int32
	updated int32
}

type rsRole struct {
	Type     v1alpha1.ReplicaSetType
	Replicas int32
}

// rolesFor returns the owned-ReplicaSet roles and sizes invariant I1 and
// I3 require for the dispatched strategy, driven by the rollout's
// projected (about-to-be-written) status.
func rolesFor(projected *v1alpha1.Rollout, handler strategy.Handler) []rsRole {
	total := replicasOf(projected)
	switch handler.Name() {
	case "canary":
		_, canaryWeight := weight.Calculate(projected)
		stableCount, canaryCount := weight.SplitReplicas(total, canaryWeight)
		return []rsRole{
			{Type: v1alpha1.ReplicaSetStable, Replicas: stableCount},
			{Type: v1alpha1.ReplicaSetCanary, Replicas: canaryCount},
		}
	case "blue-green":
		return []rsRole{
			{Type: v1alpha1.ReplicaSetActive, Replicas: total},
			{Type: v1alpha1.ReplicaSetPreview, Replicas: total},
		}
	default:
		return []rsRole{{Type: v1alpha1.ReplicaSetSimple, Replicas: total}}
	}
}

// reconcileReplicaSets implements the ensure-exists contract of §4.10:
// GET by name, CREATE on 404, a separate scale patch when the replica
// count differs, and a delete-then-recreate when the pod-template-hash
// no longer matches (the new revision superseding the old one, per the
// Lifecycles note in §3 — this data model names ReplicaSets by role, not
// by hash, so a template change can't be expressed as a selector update:
// ReplicaSet selectors are immutable once created).
func (r *Reconciler) reconcileReplicaSets(ctx context.Context, projected *v1alpha1.Rollout, handler strategy.Handler) (replicaSetCounts, error) {
	var counts replicaSetCounts
	for _, role := range rolesFor(projected, handler) {
		desired, err := replicaset.Build(projected, role.Type, role.Replicas)
		if err != nil {
			return replicaSetCounts{}, &SerializationError{Err: err}
		}
		counts.desired += role.Replicas

		rsClient := r.kubeClient.AppsV1().ReplicaSets(projected.Namespace)
		existing, err := rsClient.Get(ctx, desired.Name, metav1.GetOptions{})
		switch {
		case apierrors.IsNotFound(err):
			created, err := rsClient.Create(ctx, desired, metav1.CreateOptions{})
			if err != nil {
				return replicaSetCounts{}, classifyAPIError(err, fmt.Sprintf("create replicaset %s", desired.Name))
			}
			counts.ready += created.Status.ReadyReplicas
			counts.updated += created.Status.Replicas
		case err != nil:
			return replicaSetCounts{}, classifyAPIError(err, fmt.Sprintf("get replicaset %s", desired.Name))
		case existing.Labels[v1alpha1.LabelPodTemplateHash] != desired.Labels[v1alpha1.LabelPodTemplateHash]:
			if err := rsClient.Delete(ctx, existing.Name, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
				return replicaSetCounts{}, classifyAPIError(err, fmt.Sprintf("delete superseded replicaset %s", existing.Name))
			}
			created, err := rsClient.Create(ctx, desired, metav1.CreateOptions{})
			if err != nil {
				return replicaSetCounts{}, classifyAPIError(err, fmt.Sprintf("recreate replicaset %s", desired.Name))
			}
			counts.ready += created.Status.ReadyReplicas
			counts.updated += created.Status.Replicas
		case existing.Spec.Replicas == nil || *existing.Spec.Replicas != role.Replicas:
			if err := r.scaleReplicaSet(ctx, existing, role.Replicas); err != nil {
				return replicaSetCounts{}, err
			}
			counts.ready += existing.Status.ReadyReplicas
			counts.updated += role.Replicas
		default:
			counts.ready += existing.Status.ReadyReplicas
			counts.updated += existing.Status.Replicas
		}
	}
	return counts, nil
}

func (r *Reconciler) scaleReplicaSet(ctx context.Context, rs *appsv1.ReplicaSet, replicas int32) error {
	patch := map[string]interface{}{"spec": map[string]interface{}{"replicas": replicas}}
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal replicaset scale patch: %w", err)
	}
	_, err = r.kubeClient.AppsV1().ReplicaSets(rs.Namespace).Patch(ctx, rs.Name, types.MergePatchType, data, metav1.PatchOptions{})
	if err != nil {
		return classifyAPIError(err, fmt.Sprintf("scale replicaset %s", rs.Name))
	}
	return nil
}

// reconcileTraffic patches the configured HTTPRoute, skipping entirely
// when no Gateway API routing is configured (optional per §4.4).
func (r *Reconciler) reconcileTraffic(ctx context.Context, rollout *v1alpha1.Rollout, stableWeight, canaryWeight int32) error {
	routing := gatewayapi.Routing(rollout)
	if routing == nil || r.patcher == nil {
		return nil
	}

	var stableName, canaryName string
	if c := rollout.Spec.Strategy.Canary; c != nil {
		stableName, canaryName = c.StableService, c.CanaryService
	} else if bg := rollout.Spec.Strategy.BlueGreen; bg != nil {
		stableName, canaryName = bg.ActiveService, bg.PreviewService
	}

	backends := gatewayapi.BuildBackends(stableName, stableWeight, canaryName, canaryWeight)
	if err := r.patcher.Patch(ctx, rollout.Namespace, routing.HTTPRoute, backends); err != nil {
		return &TransientError{Err: fmt.Errorf("patch httproute %s: %w", routing.HTTPRoute, err)}
	}
	return nil
}

// evaluateAnalysis runs the metrics-driven rollback gate (§4.6) and
// returns the ticks (for the Decision's metric snapshots) plus the
// status the reconciler should use: nextStatus unchanged on pass/no-
// data/warmup-not-elapsed, or a Failed status on rollback.
func (r *Reconciler) evaluateAnalysis(ctx context.Context, rollout *v1alpha1.Rollout, handler strategy.Handler, nextStatus v1alpha1.RolloutStatus, now time.Time) ([]analysis.Tick, v1alpha1.RolloutStatus, error) {
	cfg := analysisConfigFor(rollout)
	if cfg == nil || cfg.Prometheus == nil || cfg.Prometheus.Address == "" {
		return nil, nextStatus, nil
	}

	if rollout.Status.Phase == "" {
		// Nothing has started progressing yet; warmup hasn't begun.
		return nil, nextStatus, nil
	}

	progressingEnter, err := progressingEnterTime(rollout, now)
	if err == nil && !analysis.WarmedUp(cfg, progressingEnter, now) {
		return nil, nextStatus, nil
	}

	evaluator, err := r.evaluatorFor(rollout, cfg)
	if err != nil {
		return nil, nextStatus, &MetricsUnavailableError{Err: err}
	}

	revision := analysis.RevisionFor(handler.Name())
	ticks, rollback, err := evaluator.Evaluate(ctx, cfg, rollout.Name, revision, now)
	if err != nil {
		return nil, nextStatus, &MetricsUnavailableError{Err: err}
	}
	if !rollback {
		return ticks, nextStatus, nil
	}

	failed := v1alpha1.RolloutStatus{
		Phase:          v1alpha1.PhaseFailed,
		Message:        fmt.Sprintf("Rolled back: %d consecutive failing analysis ticks", analysisFailureThreshold(cfg)),
		PauseStartTime: "",
	}
	return ticks, failed, nil
}

func analysisConfigFor(r *v1alpha1.Rollout) *v1alpha1.AnalysisConfig {
	switch {
	case r.Spec.Strategy.Canary != nil:
		return r.Spec.Strategy.Canary.Analysis
	case r.Spec.Strategy.BlueGreen != nil:
		return r.Spec.Strategy.BlueGreen.Analysis
	case r.Spec.Strategy.Simple != nil:
		return r.Spec.Strategy.Simple.Analysis
	default:
		return nil
	}
}

func analysisFailureThreshold(cfg *v1alpha1.AnalysisConfig) int32 {
	for _, m := range cfg.Metrics {
		if m.FailureThreshold != nil {
			return *m.FailureThreshold
		}
	}
	return 3
}

// progressingEnterTime approximates when the rollout entered its current
// progression window. Since status doesn't separately track this, the
// pause/preview start time doubles as the closest available signal; in
// its absence (no pause recorded yet) warmup is treated as already
// elapsed so a freshly progressing rollout isn't stuck forever without a
// timestamp to measure from.
func progressingEnterTime(r *v1alpha1.Rollout, now time.Time) (time.Time, error) {
	if r.Status.PauseStartTime == "" {
		return now.Add(-24 * time.Hour), nil
	}
	return time.Parse(time.RFC3339, r.Status.PauseStartTime)
}

// evaluatorFor returns the per-rollout Evaluator, creating it (and its
// Prometheus client) on first use so consecutive-failure streaks persist
// across reconciles the way the reconciler's own in-memory state does
// for the leader flag and metrics registry.
func (r *Reconciler) evaluatorFor(rollout *v1alpha1.Rollout, cfg *v1alpha1.AnalysisConfig) (*analysis.Evaluator, error) {
	key := rollout.Namespace + "/" + rollout.Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.evaluators[key]; ok {
		return e, nil
	}
	querier, err := analysis.NewQuerier(cfg.Prometheus.Address)
	if err != nil {
		return nil, err
	}
	e := analysis.NewEvaluator(querier)
	r.evaluators[key] = e
	return e, nil
}
