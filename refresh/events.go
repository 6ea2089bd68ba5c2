package refresh

import (
	"context"
	"time"
)

// EventType tags a refresh lifecycle event.
type EventType string

const (
	// EventSuccess is an exported constant or variable used by the refresh engine.
	EventSuccess EventType = "REFRESH_SUCCESS"
	// EventFailure is an exported constant or variable used by the refresh engine.
	EventFailure EventType = "REFRESH_FAILURE"
)

// Event is published on every refresh attempt, scheduled or manual. Reason
// is set only on failure.
type Event struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Broker    string    `json:"broker_type"`
	EventType EventType `json:"event_type"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WireType renders the event type in the published contract's form:
// "REFRESH_SUCCESS" or "REFRESH_FAILURE: <reason>".
func (e Event) WireType() string {
	if e.EventType == EventFailure && e.Reason != "" {
		return string(EventFailure) + ": " + e.Reason
	}
	return string(e.EventType)
}

// Sink receives refresh lifecycle events. Implementations must be safe for
// concurrent use; the engine publishes from multiple goroutines.
type Sink interface {
	Publish(ctx context.Context, event Event)
}

// NoOpSink drops refresh events.
type NoOpSink struct{}

// Publish implements [Sink].
func (NoOpSink) Publish(context.Context, Event) {}

// ChannelSink buffers refresh events into a channel for an external
// publisher (the platform's event-bus bridge) to drain.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink creates a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

// Publish implements [Sink]. Blocks until buffered or ctx is done.
func (s *ChannelSink) Publish(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the drain side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Recorder receives the engine's outcome counts, decoupled from the sink so
// the metrics collector can live in the wiring package without a cycle.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RefreshSucceeded()
	RefreshFailed()
	SweepSkipped()
}

// NoOpRecorder discards outcome counts.
type NoOpRecorder struct{}

// RefreshSucceeded implements [Recorder].
func (NoOpRecorder) RefreshSucceeded() {}

// RefreshFailed implements [Recorder].
func (NoOpRecorder) RefreshFailed() {}

// SweepSkipped implements [Recorder].
func (NoOpRecorder) SweepSkipped() {}
