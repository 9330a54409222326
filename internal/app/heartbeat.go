package app

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"

	"roombeacon/beacond/internal/notify"
)

// heartbeat sends the "beacon online" notification: once at startup, and
// periodically when an interval is configured.
type heartbeat struct {
	scheduler gocron.Scheduler
}

func (a *App) startHeartbeat(ctx context.Context, sink notify.Sink, base notify.Message) error {
	send := func() {
		msg := base
		msg.Title = "Beacon Online"
		msg.Status = "Beacon is broadcasting"
		msg.Fields = map[string]string{
			"Interval": a.cfg.AdvInterval.String(),
		}
		_ = sink.Send(ctx, msg)
	}

	// Startup notification always goes out once the network is up.
	go send()

	if a.cfg.HeartbeatInterval <= 0 {
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create heartbeat scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(a.cfg.HeartbeatInterval),
		gocron.NewTask(send),
		gocron.WithName("heartbeat"),
	)
	if err != nil {
		return fmt.Errorf("schedule heartbeat: %w", err)
	}

	s.Start()
	a.heartbeat = &heartbeat{scheduler: s}
	a.logger.Info("heartbeat scheduled", "interval", a.cfg.HeartbeatInterval)
	return nil
}

func (a *App) stopHeartbeat() {
	if a.heartbeat == nil {
		return
	}
	if err := a.heartbeat.scheduler.Shutdown(); err != nil {
		a.logger.Warn("heartbeat scheduler shutdown", "error", err)
	}
	a.heartbeat = nil
}
