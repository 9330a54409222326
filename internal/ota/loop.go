package ota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roombeacon/beacond/internal/indicator"
	"roombeacon/beacond/internal/notify"
)

// Outcome classifies one check cycle.
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeUpToDate
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Attempt records one check cycle. It exists only to drive the end-of-cycle
// notification; no history is kept across cycles.
type Attempt struct {
	Outcome   Outcome
	Reason    string
	Timestamp time.Time
}

// Rebooter restarts the device so the newly applied image boots.
type Rebooter interface {
	Restart()
}

const (
	defaultGracePeriod   = 10 * time.Second
	defaultCheckInterval = 5 * time.Minute
	defaultRebootDelay   = time.Second
	failurePulse         = 500 * time.Millisecond
)

// Loop is the sole long-lived task governing updates. Each cycle is
// independent; the only state carried between cycles is the wall-clock wait.
// Failures retry at the fixed interval with no backoff growth.
type Loop struct {
	logger  *slog.Logger
	source  Source
	applier Applier
	sink    notify.Sink
	led     *indicator.LED
	reboot  Rebooter

	base notify.Message

	// GracePeriod delays the first check after network availability.
	GracePeriod time.Duration
	// CheckInterval is the fixed wait between cycles.
	CheckInterval time.Duration
	// RebootDelay is the short pause between the success notification and the
	// restart, giving the send a chance to flush.
	RebootDelay time.Duration
	// PulseDuration is the indicator pulse length on failure.
	PulseDuration time.Duration
}

// NewLoop wires an update lifecycle. base supplies the constant device
// identification fields for every notification.
func NewLoop(source Source, applier Applier, sink notify.Sink, led *indicator.LED, reboot Rebooter, base notify.Message, logger *slog.Logger) *Loop {
	return &Loop{
		logger:        logger,
		source:        source,
		applier:       applier,
		sink:          sink,
		led:           led,
		reboot:        reboot,
		base:          base,
		GracePeriod:   defaultGracePeriod,
		CheckInterval: defaultCheckInterval,
		RebootDelay:   defaultRebootDelay,
		PulseDuration: failurePulse,
	}
}

// Run blocks for the lifetime of the process: grace period, then one cycle per
// check interval, forever. It returns only when the context ends or an update
// was applied and the restart issued.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("update lifecycle started",
		"grace", l.GracePeriod, "interval", l.CheckInterval)

	if !sleepCtx(ctx, l.GracePeriod) {
		return ctx.Err()
	}

	for {
		attempt := l.RunCycle(ctx)
		if attempt.Outcome == OutcomeUpdated {
			sleepCtx(ctx, l.RebootDelay)
			l.logger.Info("restarting to boot new firmware")
			l.reboot.Restart()
			return nil
		}

		if !sleepCtx(ctx, l.CheckInterval) {
			return ctx.Err()
		}
	}
}

// RunCycle performs one check-apply-report cycle and returns its record.
func (l *Loop) RunCycle(ctx context.Context) Attempt {
	l.logger.Info("checking for firmware update")

	attempt := Attempt{Timestamp: time.Now().UTC()}

	body, err := l.source.Fetch(ctx)
	switch {
	case err == nil:
		applyErr := l.applier.Apply(body)
		body.Close()
		if applyErr != nil {
			attempt.Outcome = OutcomeFailed
			attempt.Reason = applyErr.Error()
		} else {
			attempt.Outcome = OutcomeUpdated
		}
	case errors.Is(err, ErrNoUpdate):
		attempt.Outcome = OutcomeUpToDate
	default:
		attempt.Outcome = OutcomeFailed
		attempt.Reason = err.Error()
	}

	l.report(ctx, attempt)
	return attempt
}

func (l *Loop) report(ctx context.Context, attempt Attempt) {
	msg := l.base

	switch attempt.Outcome {
	case OutcomeUpdated:
		l.logger.Info("firmware updated, device will restart")
		msg.Title = "Firmware Updated"
		msg.Status = "Firmware updated successfully - rebooting"
	case OutcomeUpToDate:
		l.logger.Info("firmware is up to date")
		msg.Title = "Update Check Complete"
		msg.Status = "No update needed - already on latest firmware"
	case OutcomeFailed:
		l.logger.Error("update check failed", "reason", attempt.Reason)
		if l.led != nil {
			l.led.Pulse(l.PulseDuration)
		}
		msg.Title = "Update Failed"
		msg.Severity = notify.SeverityError
		msg.Error = attempt.Reason
	}

	_ = l.sink.Send(ctx, msg)
}

// sleepCtx waits for d and reports false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
