package analysis

import (
	"context"
	"testing"
	"time"

	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

type fakeQuerier struct {
	values []model.Value
	err    error
	calls  int
}

func (f *fakeQuerier) Query(ctx context.Context, query string, ts time.Time, opts ...promv1.Option) (model.Value, promv1.Warnings, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.values[f.calls], nil, nil
}

func scalarValue(v float64) model.Value {
	return &model.Scalar{Value: model.SampleValue(v)}
}

func TestEvaluator_FailStreakTriggersRollback(t *testing.T) {
	q := &fakeQuerier{values: []model.Value{scalarValue(7.2), scalarValue(6.4), scalarValue(8.1)}}
	e := NewEvaluator(q)
	cfg := &v1alpha1.AnalysisConfig{
		Prometheus: &v1alpha1.PrometheusConfig{Address: "http://prom"},
		Metrics:    []v1alpha1.MetricConfig{{Name: v1alpha1.MetricErrorRate, Threshold: 5.0}},
	}

	var rollback bool
	var ticks []Tick
	for i := 0; i < 3; i++ {
		q.calls = i
		var err error
		ticks, rollback, err = e.Evaluate(context.Background(), cfg, "my-app", "canary", time.Now())
		require.NoError(t, err)
	}

	assert.True(t, rollback)
	require.Len(t, ticks, 1)
	assert.Equal(t, VerdictFail, ticks[0].Verdict)
	assert.InDelta(t, 8.1, ticks[0].Value, 0.0001)
	snap, ok := ticks[0].Snapshot()
	require.True(t, ok)
	assert.False(t, snap.Passed)
}

func TestEvaluator_PassResetsStreak(t *testing.T) {
	q := &fakeQuerier{values: []model.Value{scalarValue(7.0), scalarValue(1.0), scalarValue(7.0)}}
	e := NewEvaluator(q)
	cfg := &v1alpha1.AnalysisConfig{
		Prometheus: &v1alpha1.PrometheusConfig{Address: "http://prom"},
		Metrics:    []v1alpha1.MetricConfig{{Name: v1alpha1.MetricErrorRate, Threshold: 5.0, FailureThreshold: int32p(2)}},
	}

	var rollback bool
	for i := 0; i < 3; i++ {
		q.calls = i
		var err error
		_, rollback, err = e.Evaluate(context.Background(), cfg, "my-app", "canary", time.Now())
		require.NoError(t, err)
	}
	assert.False(t, rollback, "a passing tick in the middle should reset the streak")
}

func TestEvaluator_NoDataDoesNotFail(t *testing.T) {
	q := &fakeQuerier{values: []model.Value{model.Vector{}}}
	e := NewEvaluator(q)
	cfg := &v1alpha1.AnalysisConfig{
		Prometheus: &v1alpha1.PrometheusConfig{Address: "http://prom"},
		Metrics:    []v1alpha1.MetricConfig{{Name: v1alpha1.MetricErrorRate, Threshold: 5.0}},
	}

	ticks, rollback, err := e.Evaluate(context.Background(), cfg, "my-app", "canary", time.Now())
	require.NoError(t, err)
	assert.False(t, rollback)
	require.Len(t, ticks, 1)
	assert.Equal(t, VerdictNoData, ticks[0].Verdict)
	_, ok := ticks[0].Snapshot()
	assert.False(t, ok)
}

func TestEvaluator_MinSampleSizeSkipsTick(t *testing.T) {
	q := &fakeQuerier{values: []model.Value{model.Vector{
		&model.Sample{Value: model.SampleValue(9.0)},
	}}}
	e := NewEvaluator(q)
	cfg := &v1alpha1.AnalysisConfig{
		Prometheus: &v1alpha1.PrometheusConfig{Address: "http://prom"},
		Metrics: []v1alpha1.MetricConfig{{
			Name:          v1alpha1.MetricErrorRate,
			Threshold:     5.0,
			MinSampleSize: int32p(5),
		}},
	}

	ticks, rollback, err := e.Evaluate(context.Background(), cfg, "my-app", "canary", time.Now())
	require.NoError(t, err)
	assert.False(t, rollback)
	assert.Equal(t, VerdictSkipped, ticks[0].Verdict)
}

func TestEvaluator_IgnorePolicySuppressesNoDataRollback(t *testing.T) {
	q := &fakeQuerier{values: []model.Value{model.Vector{}, model.Vector{}, model.Vector{}}}
	e := NewEvaluator(q)
	cfg := &v1alpha1.AnalysisConfig{
		Prometheus:    &v1alpha1.PrometheusConfig{Address: "http://prom"},
		FailurePolicy: v1alpha1.FailurePolicyIgnore,
		Metrics:       []v1alpha1.MetricConfig{{Name: v1alpha1.MetricErrorRate, Threshold: 5.0, FailureThreshold: int32p(2)}},
	}

	var rollback bool
	for i := 0; i < 3; i++ {
		q.calls = i
		var err error
		_, rollback, err = e.Evaluate(context.Background(), cfg, "my-app", "canary", time.Now())
		require.NoError(t, err)
	}
	assert.False(t, rollback)
}

func TestWarmedUp(t *testing.T) {
	enter := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := &v1alpha1.AnalysisConfig{WarmupDuration: "60s"}
	assert.False(t, WarmedUp(cfg, enter, enter.Add(30*time.Second)))
	assert.True(t, WarmedUp(cfg, enter, enter.Add(61*time.Second)))
	assert.True(t, WarmedUp(&v1alpha1.AnalysisConfig{}, enter, enter))
}

func int32p(v int32) *int32 { return &v }
