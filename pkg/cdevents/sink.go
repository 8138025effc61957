package cdevents

import (
	"context"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// RecordingSink collects emitted events in memory; used by tests and by
// any caller that wants to inspect what would have been sent without a
// live CDEvents receiver.
type RecordingSink struct {
	mu     sync.Mutex
	events []cloudevents.Event
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Emit(_ context.Context, event cloudevents.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *RecordingSink) Events() []cloudevents.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cloudevents.Event, len(s.events))
	copy(out, s.events)
	return out
}
