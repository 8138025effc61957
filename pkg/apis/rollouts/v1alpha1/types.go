// Package v1alpha1 contains the Rollout custom resource API.
package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// Rollout is the Schema for progressive delivery of a pod template.
type Rollout struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   RolloutSpec   `json:"spec"`
	Status RolloutStatus `json:"status,omitempty"`
}

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// RolloutList is a list of Rollouts.
type RolloutList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []Rollout `json:"items"`
}

// RolloutSpec is the desired state of a Rollout, authored by the user.
type RolloutSpec struct {
	// Replicas is the desired number of pods. Defaults to 1 if unset by the apiserver.
	Replicas *int32 `json:"replicas,omitempty"`

	// Selector matches the labels on Template. Must be a subset of Template's labels.
	Selector *metav1.LabelSelector `json:"selector"`

	// Template describes the pods that will be created.
	Template corev1.PodTemplateSpec `json:"template"`

	// Strategy selects exactly one of Simple, Canary, or BlueGreen.
	Strategy RolloutStrategy `json:"strategy"`
}

// RolloutStrategy is a tagged union of the three supported deployment strategies.
// Dispatch precedence is Simple > BlueGreen > Canary; Canary is the fallback when
// all three are nil.
type RolloutStrategy struct {
	Simple    *SimpleStrategy    `json:"simple,omitempty"`
	Canary    *CanaryStrategy    `json:"canary,omitempty"`
	BlueGreen *BlueGreenStrategy `json:"blueGreen,omitempty"`
}

// SimpleStrategy deploys all replicas at once behind a single ReplicaSet.
type SimpleStrategy struct {
	Analysis *AnalysisConfig `json:"analysis,omitempty"`
}

// CanaryStrategy progressively shifts traffic from stable to canary across Steps.
type CanaryStrategy struct {
	CanaryService   string           `json:"canaryService"`
	StableService   string           `json:"stableService"`
	Steps           []CanaryStep     `json:"steps,omitempty"`
	TrafficRouting  *TrafficRouting  `json:"trafficRouting,omitempty"`
	Analysis        *AnalysisConfig  `json:"analysis,omitempty"`
}

// CanaryStep has exactly one of SetWeight or Pause set.
type CanaryStep struct {
	SetWeight *int32        `json:"setWeight,omitempty"`
	Pause     *PauseStep    `json:"pause,omitempty"`
}

// PauseStep holds progression until Duration elapses or a manual promotion
// annotation arrives. An empty/nil Duration means an indefinite pause.
type PauseStep struct {
	Duration string `json:"duration,omitempty"`
}

// BlueGreenStrategy maintains two full-size environments with an instant cutover.
type BlueGreenStrategy struct {
	ActiveService        string          `json:"activeService"`
	PreviewService       string          `json:"previewService"`
	AutoPromotionEnabled *bool           `json:"autoPromotionEnabled,omitempty"`
	AutoPromotionSeconds *int32          `json:"autoPromotionSeconds,omitempty"`
	TrafficRouting       *TrafficRouting `json:"trafficRouting,omitempty"`
	Analysis             *AnalysisConfig `json:"analysis,omitempty"`
}

// TrafficRouting selects the mechanism used to steer live traffic.
type TrafficRouting struct {
	GatewayAPI *GatewayAPIRouting `json:"gatewayAPI,omitempty"`
}

// GatewayAPIRouting names the existing HTTPRoute to patch.
type GatewayAPIRouting struct {
	HTTPRoute string `json:"httpRoute"`
}

// FailurePolicy controls how a persistent MetricsUnavailable condition is treated.
type FailurePolicy string

const (
	FailurePolicyRollback FailurePolicy = "rollback"
	FailurePolicyIgnore   FailurePolicy = "ignore"
)

// AnalysisConfig configures the metrics-driven rollback gate.
type AnalysisConfig struct {
	Prometheus     *PrometheusConfig `json:"prometheus,omitempty"`
	WarmupDuration string            `json:"warmupDuration,omitempty"`
	FailurePolicy  FailurePolicy     `json:"failurePolicy,omitempty"`
	Metrics        []MetricConfig    `json:"metrics,omitempty"`
}

// PrometheusConfig points at the Prometheus server to query.
type PrometheusConfig struct {
	Address string `json:"address"`
}

// MetricName is one of the fixed, supported PromQL templates.
type MetricName string

const (
	MetricErrorRate  MetricName = "error-rate"
	MetricLatencyP95 MetricName = "latency-p95"
	MetricLatencyP99 MetricName = "latency-p99"
)

// MetricConfig names a metric, its rollback threshold, and evaluation cadence.
type MetricConfig struct {
	Name             MetricName `json:"name"`
	Threshold        float64    `json:"threshold"`
	Interval         string     `json:"interval,omitempty"`
	FailureThreshold *int32     `json:"failureThreshold,omitempty"`
	MinSampleSize    *int32     `json:"minSampleSize,omitempty"`
}

// Phase is the coarse-grained lifecycle state of a Rollout.
type Phase string

const (
	PhaseInitializing Phase = "Initializing"
	PhaseProgressing  Phase = "Progressing"
	PhasePaused       Phase = "Paused"
	PhasePreview      Phase = "Preview"
	PhaseCompleted    Phase = "Completed"
	PhaseFailed       Phase = "Failed"
)

// DecisionAction names the kind of transition a Decision records.
type DecisionAction string

const (
	DecisionInitialize  DecisionAction = "Initialize"
	DecisionStepAdvance DecisionAction = "StepAdvance"
	DecisionPromotion   DecisionAction = "Promotion"
	DecisionRollback    DecisionAction = "Rollback"
	DecisionPause       DecisionAction = "Pause"
	DecisionResume      DecisionAction = "Resume"
	DecisionComplete    DecisionAction = "Complete"
)

// DecisionReason names why a Decision was made.
type DecisionReason string

const (
	ReasonAnalysisPassed        DecisionReason = "AnalysisPassed"
	ReasonAnalysisFailed        DecisionReason = "AnalysisFailed"
	ReasonPauseDurationExpired  DecisionReason = "PauseDurationExpired"
	ReasonManualPromotion       DecisionReason = "ManualPromotion"
	ReasonManualRollback        DecisionReason = "ManualRollback"
	ReasonTimeout               DecisionReason = "Timeout"
	ReasonInitialization        DecisionReason = "Initialization"
)

// MetricSnapshot records one evaluated metric tick alongside the Decision it informed.
type MetricSnapshot struct {
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

// Decision is one append-only entry in status.decisions.
type Decision struct {
	Timestamp string                     `json:"timestamp"`
	Action    DecisionAction             `json:"action"`
	FromStep  *int32                     `json:"fromStep,omitempty"`
	ToStep    *int32                     `json:"toStep,omitempty"`
	Reason    DecisionReason             `json:"reason"`
	Message   string                     `json:"message,omitempty"`
	Metrics   map[string]MetricSnapshot  `json:"metrics,omitempty"`
}

// RolloutStatus is the controller-owned observed state.
type RolloutStatus struct {
	Phase             Phase      `json:"phase,omitempty"`
	CurrentStepIndex  *int32     `json:"currentStepIndex,omitempty"`
	CurrentWeight     *int32     `json:"currentWeight,omitempty"`
	Replicas          int32      `json:"replicas"`
	ReadyReplicas     int32      `json:"readyReplicas"`
	UpdatedReplicas   int32      `json:"updatedReplicas"`
	PauseStartTime    string     `json:"pauseStartTime,omitempty"`
	Message           string     `json:"message,omitempty"`
	Decisions         []Decision `json:"decisions,omitempty"`

	// CurrentPodHash is the pod-template-hash the status above was computed
	// for. The reconciler compares it against the freshly computed hash of
	// spec.template on every pass: a Completed rollout only re-enters the
	// state machine (effectively re-initializing) when this stops matching,
	// which is what makes Completed a terminal phase for an unchanged
	// template (invariant I6) while still reacting to template edits.
	CurrentPodHash string `json:"currentPodHash,omitempty"`
}

// Owned-object label keys, shared by pkg/hash, pkg/replicaset, and the reconciler.
const (
	LabelManaged          = "rollouts.kulta.io/managed"
	LabelType             = "rollouts.kulta.io/type"
	LabelRollout           = "rollouts.kulta.io/rollout"
	LabelPodTemplateHash  = "pod-template-hash"

	AnnotationPromote = "kulta.io/promote"
)

// ReplicaSetType enumerates the rollouts.kulta.io/type label values the reconciler
// assigns to owned ReplicaSets.
type ReplicaSetType string

const (
	ReplicaSetSimple  ReplicaSetType = "simple"
	ReplicaSetStable  ReplicaSetType = "stable"
	ReplicaSetCanary  ReplicaSetType = "canary"
	ReplicaSetActive  ReplicaSetType = "active"
	ReplicaSetPreview ReplicaSetType = "preview"
)
