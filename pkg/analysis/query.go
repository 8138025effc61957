package analysis

import (
	"fmt"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

// BuildQuery assembles the PromQL template for name against the given
// rollout/revision label pair. revision is the ReplicaSet role the
// metric is scoped to, as returned by RevisionFor ("canary" or "preview").
func BuildQuery(name v1alpha1.MetricName, rolloutName, revision string) (string, error) {
	switch name {
	case v1alpha1.MetricErrorRate:
		return fmt.Sprintf(
			`sum(rate(http_requests_total{status=~"5..",rollout="%s",revision="%s"}[2m])) / sum(rate(http_requests_total{rollout="%s",revision="%s"}[2m])) * 100`,
			rolloutName, revision, rolloutName, revision,
		), nil
	case v1alpha1.MetricLatencyP95:
		return fmt.Sprintf(
			`histogram_quantile(0.95, rate(http_request_duration_seconds_bucket{rollout="%s",revision="%s"}[2m]))`,
			rolloutName, revision,
		), nil
	case v1alpha1.MetricLatencyP99:
		return fmt.Sprintf(
			`histogram_quantile(0.99, rate(http_request_duration_seconds_bucket{rollout="%s",revision="%s"}[2m]))`,
			rolloutName, revision,
		), nil
	default:
		return "", fmt.Errorf("unknown metric name %q", name)
	}
}
