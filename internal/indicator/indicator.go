// Package indicator drives the binary human-visible status output. It is
// write-only telemetry, never a concurrency primitive.
package indicator

import (
	"log/slog"
	"time"
)

// Output is the capability boundary: set the signal on or off. It is never
// read back.
type Output interface {
	Set(on bool) error
}

// LED wraps an Output with the blink patterns the beacon uses.
type LED struct {
	out    Output
	logger *slog.Logger
}

// New builds an LED over an output.
func New(out Output, logger *slog.Logger) *LED {
	return &LED{out: out, logger: logger}
}

// Pulse turns the output on for the given duration, then off. Blocking;
// callers schedule it where a delay is harmless.
func (l *LED) Pulse(d time.Duration) {
	l.set(true)
	time.Sleep(d)
	l.set(false)
}

// Blink toggles the output n times with the given half-period.
func (l *LED) Blink(n int, halfPeriod time.Duration) {
	for i := 0; i < n; i++ {
		l.set(true)
		time.Sleep(halfPeriod)
		l.set(false)
		time.Sleep(halfPeriod)
	}
}

func (l *LED) set(on bool) {
	if err := l.out.Set(on); err != nil {
		l.logger.Debug("indicator set failed", "on", on, "error", err)
	}
}

// LogOutput is the host-side output: it has no physical pin and records
// transitions at debug level.
type LogOutput struct {
	Logger *slog.Logger
}

func (o LogOutput) Set(on bool) error {
	o.Logger.Debug("indicator", "on", on)
	return nil
}
