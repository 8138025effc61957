package analysis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
	"github.com/kulta-io/kulta-rollouts/pkg/strategy"
)

// Verdict is the per-tick outcome of evaluating one metric.
type Verdict string

const (
	// VerdictPass means the observed value cleared the threshold.
	VerdictPass Verdict = "Pass"
	// VerdictFail means the observed value crossed the threshold.
	VerdictFail Verdict = "Fail"
	// VerdictNoData means Prometheus returned an empty result; this is
	// neither a pass nor a fail and does not advance the failure streak.
	VerdictNoData Verdict = "NoData"
	// VerdictSkipped means the sample count was below MinSampleSize, so
	// the tick is not evaluated at all.
	VerdictSkipped Verdict = "Skipped"
)

const defaultFailureThreshold = 3

// Tick is one evaluated metric observation, ready to fold into a Decision.
type Tick struct {
	Metric    v1alpha1.MetricName
	Verdict   Verdict
	Value     float64
	Threshold float64
	Passed    bool
}

// Snapshot turns a passing or failing Tick into the MetricSnapshot shape
// persisted on a Decision. NoData/Skipped ticks have no snapshot.
func (t Tick) Snapshot() (v1alpha1.MetricSnapshot, bool) {
	if t.Verdict != VerdictPass && t.Verdict != VerdictFail {
		return v1alpha1.MetricSnapshot{}, false
	}
	return v1alpha1.MetricSnapshot{Value: t.Value, Threshold: t.Threshold, Passed: t.Passed}, true
}

// Querier is the subset of the Prometheus HTTP API this evaluator needs.
// promv1.API satisfies it directly; tests substitute a fake.
type Querier interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...promv1.Option) (model.Value, promv1.Warnings, error)
}

// NewQuerier builds a Querier against a Prometheus server at address,
// matching the api/prometheus/v1 client the teacher's go.mod already
// depends on for its own analysis provider.
func NewQuerier(address string) (Querier, error) {
	client, err := promapi.NewClient(promapi.Config{Address: address})
	if err != nil {
		return nil, errors.Wrap(err, "create prometheus client")
	}
	return promv1.NewAPI(client), nil
}

// Evaluator evaluates an AnalysisConfig's metrics against Prometheus and
// tracks each metric's consecutive-failure streak across reconciles. A
// fresh Evaluator is constructed per Rollout key and lives alongside the
// reconciler's per-key state: streak counts, like the rollout's own
// status, must persist across reconcile passes, not just within one.
type Evaluator struct {
	querier Querier
	streaks map[v1alpha1.MetricName]int32
	noData  map[v1alpha1.MetricName]int32
}

// NewEvaluator wraps a Querier with empty failure-streak counters.
func NewEvaluator(q Querier) *Evaluator {
	return &Evaluator{
		querier: q,
		streaks: make(map[v1alpha1.MetricName]int32),
		noData:  make(map[v1alpha1.MetricName]int32),
	}
}

// WarmedUp reports whether enough time has passed since progressingEnter
// for analysis to begin, per AnalysisConfig.WarmupDuration.
func WarmedUp(cfg *v1alpha1.AnalysisConfig, progressingEnter, now time.Time) bool {
	if cfg.WarmupDuration == "" {
		return true
	}
	d, err := strategy.ParseDuration(cfg.WarmupDuration)
	if err != nil {
		return true
	}
	return now.Sub(progressingEnter) >= d
}

// Evaluate runs every configured metric's query once against revision
// (the canary or preview ReplicaSet's role name) and returns one Tick per
// metric plus the aggregate rollback decision: rollback fires once any
// metric's consecutive-Fail streak (or, under FailurePolicyRollback,
// consecutive-NoData streak) reaches its FailureThreshold.
func (e *Evaluator) Evaluate(ctx context.Context, cfg *v1alpha1.AnalysisConfig, rolloutName, revision string, now time.Time) ([]Tick, bool, error) {
	if cfg == nil || cfg.Prometheus == nil {
		return nil, false, nil
	}

	policy := cfg.FailurePolicy
	if policy == "" {
		policy = v1alpha1.FailurePolicyRollback
	}

	rollback := false
	ticks := make([]Tick, 0, len(cfg.Metrics))
	for _, m := range cfg.Metrics {
		tick, err := e.evaluateOne(ctx, m, rolloutName, revision, now)
		if err != nil {
			return nil, false, errors.Wrapf(err, "evaluate metric %s", m.Name)
		}
		ticks = append(ticks, tick)

		threshold := defaultFailureThreshold
		if m.FailureThreshold != nil {
			threshold = int(*m.FailureThreshold)
		}

		switch tick.Verdict {
		case VerdictFail:
			e.streaks[m.Name]++
			e.noData[m.Name] = 0
			if int(e.streaks[m.Name]) >= threshold {
				rollback = true
			}
		case VerdictPass:
			e.streaks[m.Name] = 0
			e.noData[m.Name] = 0
		case VerdictNoData:
			e.streaks[m.Name] = 0
			e.noData[m.Name]++
			if policy == v1alpha1.FailurePolicyRollback && int(e.noData[m.Name]) >= threshold {
				rollback = true
			}
		case VerdictSkipped:
			// sample size too small to judge; streaks untouched.
		}
	}
	return ticks, rollback, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, m v1alpha1.MetricConfig, rolloutName, revision string, now time.Time) (Tick, error) {
	query, err := BuildQuery(m.Name, rolloutName, revision)
	if err != nil {
		return Tick{}, err
	}

	value, _, err := e.querier.Query(ctx, query, now)
	if err != nil {
		return Tick{}, errors.Wrap(err, "query prometheus")
	}

	sample, sampleCount, ok := firstSample(value)
	if !ok {
		return Tick{Metric: m.Name, Verdict: VerdictNoData, Threshold: m.Threshold}, nil
	}
	if m.MinSampleSize != nil && sampleCount < int(*m.MinSampleSize) {
		return Tick{Metric: m.Name, Verdict: VerdictSkipped, Threshold: m.Threshold}, nil
	}

	passed := sample < m.Threshold
	verdict := VerdictFail
	if passed {
		verdict = VerdictPass
	}
	return Tick{
		Metric:    m.Name,
		Verdict:   verdict,
		Value:     sample,
		Threshold: m.Threshold,
		Passed:    passed,
	}, nil
}

// firstSample extracts a scalar observation and an approximate sample
// count from a Prometheus query result, accepting either a bare scalar
// or a non-empty instant vector (the two shapes BuildQuery's queries can
// return). For a vector the first element's value is used and the vector
// length is the sample count. Any other shape, or an empty vector, is
// NoData.
func firstSample(v model.Value) (value float64, sampleCount int, ok bool) {
	switch result := v.(type) {
	case *model.Scalar:
		if result == nil {
			return 0, 0, false
		}
		return float64(result.Value), 1, true
	case model.Vector:
		if len(result) == 0 {
			return 0, 0, false
		}
		return float64(result[0].Value), len(result), true
	default:
		return 0, 0, false
	}
}

// RevisionFor returns the ReplicaSet-role label ("canary" or "preview")
// that a rollout's analysis queries should be scoped to, matching the
// revision label the PromQL templates in BuildQuery expect.
func RevisionFor(strategyName string) string {
	switch strategyName {
	case "blue-green":
		return string(v1alpha1.ReplicaSetPreview)
	default:
		return string(v1alpha1.ReplicaSetCanary)
	}
}
