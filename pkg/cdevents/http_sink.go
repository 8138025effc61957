package cdevents

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// HTTPSink delivers CDEvents to a CDEvents-compatible HTTP receiver
// (e.g. an events gateway or a CDEvents-aware CI system) using the
// CloudEvents HTTP binding.
type HTTPSink struct {
	client cloudevents.Client
	target string
}

// NewHTTPSink builds an HTTPSink posting to target using cloudevents/sdk-go's
// default HTTP protocol binding.
func NewHTTPSink(target string) (*HTTPSink, error) {
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("create cloudevents http client: %w", err)
	}
	return &HTTPSink{client: client, target: target}, nil
}

func (s *HTTPSink) Emit(ctx context.Context, event cloudevents.Event) error {
	ctx = cloudevents.ContextWithTarget(ctx, s.target)
	result := s.client.Send(ctx, event)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("deliver cdevent to %s: %w", s.target, result)
	}
	return nil
}
