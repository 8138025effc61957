package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto copies r into out.
func (r *Rollout) DeepCopyInto(out *Rollout) {
	*out = *r
	out.TypeMeta = r.TypeMeta
	r.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	r.Spec.DeepCopyInto(&out.Spec)
	r.Status.DeepCopyInto(&out.Status)
}

// DeepCopy returns a deep copy of r.
func (r *Rollout) DeepCopy() *Rollout {
	if r == nil {
		return nil
	}
	out := new(Rollout)
	r.DeepCopyInto(out)
	return out
}

// DeepCopyObject satisfies runtime.Object.
func (r *Rollout) DeepCopyObject() runtime.Object {
	if c := r.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies l into out.
func (l *RolloutList) DeepCopyInto(out *RolloutList) {
	*out = *l
	out.TypeMeta = l.TypeMeta
	out.ListMeta = l.ListMeta
	if l.Items != nil {
		out.Items = make([]Rollout, len(l.Items))
		for i := range l.Items {
			l.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy returns a deep copy of l.
func (l *RolloutList) DeepCopy() *RolloutList {
	if l == nil {
		return nil
	}
	out := new(RolloutList)
	l.DeepCopyInto(out)
	return out
}

// DeepCopyObject satisfies runtime.Object.
func (l *RolloutList) DeepCopyObject() runtime.Object {
	if c := l.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func (s *RolloutSpec) DeepCopyInto(out *RolloutSpec) {
	*out = *s
	if s.Replicas != nil {
		v := *s.Replicas
		out.Replicas = &v
	}
	if s.Selector != nil {
		out.Selector = s.Selector.DeepCopy()
	}
	s.Template.DeepCopyInto(&out.Template)
	s.Strategy.DeepCopyInto(&out.Strategy)
}

func (s *RolloutStrategy) DeepCopyInto(out *RolloutStrategy) {
	*out = *s
	if s.Simple != nil {
		out.Simple = s.Simple.DeepCopy()
	}
	if s.Canary != nil {
		out.Canary = s.Canary.DeepCopy()
	}
	if s.BlueGreen != nil {
		out.BlueGreen = s.BlueGreen.DeepCopy()
	}
}

func (s *SimpleStrategy) DeepCopy() *SimpleStrategy {
	if s == nil {
		return nil
	}
	out := new(SimpleStrategy)
	*out = *s
	if s.Analysis != nil {
		out.Analysis = s.Analysis.DeepCopy()
	}
	return out
}

func (c *CanaryStrategy) DeepCopy() *CanaryStrategy {
	if c == nil {
		return nil
	}
	out := new(CanaryStrategy)
	*out = *c
	if c.Steps != nil {
		out.Steps = make([]CanaryStep, len(c.Steps))
		for i := range c.Steps {
			c.Steps[i].DeepCopyInto(&out.Steps[i])
		}
	}
	if c.TrafficRouting != nil {
		out.TrafficRouting = c.TrafficRouting.DeepCopy()
	}
	if c.Analysis != nil {
		out.Analysis = c.Analysis.DeepCopy()
	}
	return out
}

func (s *CanaryStep) DeepCopyInto(out *CanaryStep) {
	*out = *s
	if s.SetWeight != nil {
		v := *s.SetWeight
		out.SetWeight = &v
	}
	if s.Pause != nil {
		p := *s.Pause
		out.Pause = &p
	}
}

func (b *BlueGreenStrategy) DeepCopy() *BlueGreenStrategy {
	if b == nil {
		return nil
	}
	out := new(BlueGreenStrategy)
	*out = *b
	if b.AutoPromotionEnabled != nil {
		v := *b.AutoPromotionEnabled
		out.AutoPromotionEnabled = &v
	}
	if b.AutoPromotionSeconds != nil {
		v := *b.AutoPromotionSeconds
		out.AutoPromotionSeconds = &v
	}
	if b.TrafficRouting != nil {
		out.TrafficRouting = b.TrafficRouting.DeepCopy()
	}
	if b.Analysis != nil {
		out.Analysis = b.Analysis.DeepCopy()
	}
	return out
}

func (t *TrafficRouting) DeepCopy() *TrafficRouting {
	if t == nil {
		return nil
	}
	out := new(TrafficRouting)
	*out = *t
	if t.GatewayAPI != nil {
		g := *t.GatewayAPI
		out.GatewayAPI = &g
	}
	return out
}

func (a *AnalysisConfig) DeepCopy() *AnalysisConfig {
	if a == nil {
		return nil
	}
	out := new(AnalysisConfig)
	*out = *a
	if a.Prometheus != nil {
		p := *a.Prometheus
		out.Prometheus = &p
	}
	if a.Metrics != nil {
		out.Metrics = make([]MetricConfig, len(a.Metrics))
		for i := range a.Metrics {
			a.Metrics[i].DeepCopyInto(&out.Metrics[i])
		}
	}
	return out
}

func (m *MetricConfig) DeepCopyInto(out *MetricConfig) {
	*out = *m
	if m.FailureThreshold != nil {
		v := *m.FailureThreshold
		out.FailureThreshold = &v
	}
	if m.MinSampleSize != nil {
		v := *m.MinSampleSize
		out.MinSampleSize = &v
	}
}

func (s *RolloutStatus) DeepCopyInto(out *RolloutStatus) {
	*out = *s
	if s.CurrentStepIndex != nil {
		v := *s.CurrentStepIndex
		out.CurrentStepIndex = &v
	}
	if s.CurrentWeight != nil {
		v := *s.CurrentWeight
		out.CurrentWeight = &v
	}
	if s.Decisions != nil {
		out.Decisions = make([]Decision, len(s.Decisions))
		for i := range s.Decisions {
			s.Decisions[i].DeepCopyInto(&out.Decisions[i])
		}
	}
}

func (s *RolloutStatus) DeepCopy() *RolloutStatus {
	if s == nil {
		return nil
	}
	out := new(RolloutStatus)
	s.DeepCopyInto(out)
	return out
}

func (d *Decision) DeepCopyInto(out *Decision) {
	*out = *d
	if d.FromStep != nil {
		v := *d.FromStep
		out.FromStep = &v
	}
	if d.ToStep != nil {
		v := *d.ToStep
		out.ToStep = &v
	}
	if d.Metrics != nil {
		out.Metrics = make(map[string]MetricSnapshot, len(d.Metrics))
		for k, v := range d.Metrics {
			out.Metrics[k] = v
		}
	}
}
