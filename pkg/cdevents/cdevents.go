// Package cdevents emits CDEvents-shaped CloudEvents for Rollout status
// transitions: initialization (service.deployed), step progression
// (service.upgraded), and rollback (service.rolledback). The retrieval
// pack carries no Go CDEvents SDK, so events are assembled by hand onto
// a github.com/cloudevents/sdk-go/v2 envelope using the CDEvents
// context/subject/type URN scheme.
package cdevents

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

const (
	eventSource   = "https://kulta.io"
	subjectSource = "https://kulta.io/controller"

	typeServiceDeployed   = "dev.cdevents.service.deployed.0.2.0"
	typeServiceUpgraded   = "dev.cdevents.service.upgraded.0.2.0"
	typeServiceRolledBack = "dev.cdevents.service.rolledback.0.2.0"
)

// Sink accepts emitted CloudEvents. Implementations range from an HTTP
// CDEvents receiver in production to a recording sink in tests.
type Sink interface {
	Emit(ctx context.Context, event cloudevents.Event) error
}

// content is the CDEvents subject content shape shared by the three
// service.* event kinds this controller emits.
type content struct {
	ArtifactID  string      `json:"artifactId"`
	Environment environment `json:"environment"`
}

type environment struct {
	ID     string `json:"id"`
	Source string `json:"source,omitempty"`
}

type subject struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Type    string  `json:"type"`
	Content content `json:"content"`
}

type cdEventPayload struct {
	Context struct {
		Version string `json:"version"`
		ID      string `json:"id"`
		Source  string `json:"source"`
		Type    string `json:"type"`
	} `json:"context"`
	Subject subject `json:"subject"`
}

// Transition classifies an observed RolloutStatus change into the CDEvent
// kind it should emit, mirroring the original's three detectors:
// initialization (no prior status, new phase Progressing), step
// progression (Progressing to Progressing with a different step index),
// and rollback (any phase to Failed). Returns "" when no event applies.
func Transition(old *v1alpha1.RolloutStatus, next v1alpha1.RolloutStatus) string {
	isInit := old == nil && next.Phase == v1alpha1.PhaseProgressing
	isStep := old != nil &&
		old.Phase == v1alpha1.PhaseProgressing &&
		next.Phase == v1alpha1.PhaseProgressing &&
		!equalStepIndex(old.CurrentStepIndex, next.CurrentStepIndex)
	isRollback := next.Phase == v1alpha1.PhaseFailed

	switch {
	case isInit:
		return typeServiceDeployed
	case isStep:
		return typeServiceUpgraded
	case isRollback:
		return typeServiceRolledBack
	default:
		return ""
	}
}

func equalStepIndex(a, b *int32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// EmitTransition builds and emits the appropriate CDEvent for the given
// status transition, doing nothing if Transition reports no applicable
// event kind.
func EmitTransition(ctx context.Context, sink Sink, r *v1alpha1.Rollout, old *v1alpha1.RolloutStatus, next v1alpha1.RolloutStatus) error {
	kind := Transition(old, next)
	if kind == "" {
		return nil
	}

	event, err := build(r, next, kind)
	if err != nil {
		return fmt.Errorf("build cdevent: %w", err)
	}
	return sink.Emit(ctx, event)
}

func build(r *v1alpha1.Rollout, status v1alpha1.RolloutStatus, eventType string) (cloudevents.Event, error) {
	image, err := extractImage(r)
	if err != nil {
		return cloudevents.Event{}, err
	}

	subjectID := subjectIDFor(r.Name, eventType, status)
	payload := content{
		ArtifactID: image,
		Environment: environment{
			ID:     fmt.Sprintf("%s/%s", r.Namespace, r.Name),
			Source: fmt.Sprintf("/apis/kulta.io/v1alpha1/namespaces/%s/rollouts/%s", r.Namespace, r.Name),
		},
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(eventSource)
	event.SetType(eventType)
	if err := event.SetData(cloudevents.ApplicationJSON, cdEventBody(subjectID, eventType, payload)); err != nil {
		return cloudevents.Event{}, fmt.Errorf("set cdevent data: %w", err)
	}
	return event, nil
}

func cdEventBody(subjectID, eventType string, c content) cdEventPayload {
	var body cdEventPayload
	body.Context.Version = "0.4.1"
	body.Context.ID = uuid.NewString()
	body.Context.Source = eventSource
	body.Context.Type = eventType
	body.Subject = subject{
		ID:      subjectID,
		Source:  subjectSource,
		Type:    "service",
		Content: c,
	}
	return body
}

func subjectIDFor(rolloutName, eventType string, status v1alpha1.RolloutStatus) string {
	switch eventType {
	case typeServiceUpgraded:
		step := int32(0)
		if status.CurrentStepIndex != nil {
			step = *status.CurrentStepIndex
		}
		return fmt.Sprintf("/rollouts/%s/step/%d", rolloutName, step)
	case typeServiceRolledBack:
		return fmt.Sprintf("/rollouts/%s/rollback", rolloutName)
	default:
		return fmt.Sprintf("/rollouts/%s/initialization", rolloutName)
	}
}

// extractImage returns the first container's image, the CDEvents
// artifactId for every event kind this controller emits.
func extractImage(r *v1alpha1.Rollout) (string, error) {
	if len(r.Spec.Template.Spec.Containers) == 0 {
		return "", fmt.Errorf("rollout %s/%s has no containers", r.Namespace, r.Name)
	}
	return r.Spec.Template.Spec.Containers[0].Image, nil
}
