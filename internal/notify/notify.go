// Package notify delivers structured status messages to an external sink.
// Delivery is best-effort telemetry: a failed send is logged and never fails
// the caller's primary operation.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Severity selects the visual treatment of a message at the sink.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

// Message is one structured notification. Device identification fields are
// constant for the process lifetime; Title, Status and Error vary per event.
type Message struct {
	Title    string
	Severity Severity

	DeviceID string
	Major    uint16
	Minor    uint16
	Firmware string
	UUID     string

	// Status carries outcome text for informational messages, Error the
	// failure description for error messages. At most one is set.
	Status string
	Error  string

	// Fields carries additional outcome-specific name/value pairs.
	Fields map[string]string
}

// Sink is the notification transport capability.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// BestEffort wraps a sink so delivery failures are logged and swallowed.
type BestEffort struct {
	sink   Sink
	logger *slog.Logger
}

// NewBestEffort wraps sink.
func NewBestEffort(sink Sink, logger *slog.Logger) *BestEffort {
	return &BestEffort{sink: sink, logger: logger}
}

func (b *BestEffort) Send(ctx context.Context, msg Message) error {
	if b.sink == nil {
		return nil
	}
	if err := b.sink.Send(ctx, msg); err != nil {
		b.logger.Warn("notification delivery failed", "title", msg.Title, "error", err)
	}
	return nil
}

// Multi fans a message out to several sinks.
type Multi []Sink

func (m Multi) Send(ctx context.Context, msg Message) error {
	var firstErr error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Timestamp is the wall-clock format used in sink payloads.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
