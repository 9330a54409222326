// Package app wires the beacon agent's components and sequences their startup:
// durable storage, identity, radio, advertising, network join, update loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roombeacon/beacond/internal/advertise"
	"roombeacon/beacond/internal/config"
	"roombeacon/beacond/internal/ibeacon"
	"roombeacon/beacond/internal/identity"
	"roombeacon/beacond/internal/indicator"
	"roombeacon/beacond/internal/kvstore"
	"roombeacon/beacond/internal/netjoin"
	"roombeacon/beacond/internal/notify"
	"roombeacon/beacond/internal/ota"
	"roombeacon/beacond/internal/radio"

	"github.com/grandcat/zeroconf"
)

// App owns the component lifecycle for one process run.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	driver radio.Driver

	kv        *kvstore.Store
	mdns      *zeroconf.Server
	mqtt      *notify.MQTT
	led       *indicator.LED
	heartbeat *heartbeat

	// Rebooter is replaced in tests; the default restarts the process so a
	// supervisor boots the newly applied image.
	Rebooter ota.Rebooter

	// Joiner is replaced in tests; the default probes the update source.
	Joiner netjoin.Joiner
}

// New constructs the application. The radio driver is injected so the entry
// point decides between the host stack and the simulator.
func New(cfg config.Config, driver radio.Driver, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger, driver: driver}
}

// Run executes the startup sequence and blocks until the context is cancelled
// or a fatal startup error occurs. Each step's success gates the next.
func (a *App) Run(ctx context.Context) error {
	a.led = indicator.New(indicator.LogOutput{Logger: a.logger}, a.logger)

	if err := a.initStorage(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := a.kv.Close(); cerr != nil {
			a.logger.Error("close kvstore", "error", cerr)
		}
	}()

	id, err := a.loadIdentity(ctx)
	if err != nil {
		return err
	}

	deviceName := fmt.Sprintf("iBeacon-%d-%d", id.Major, id.Minor)
	if err := a.driver.SetDeviceName(deviceName); err != nil {
		return fmt.Errorf("set device name: %w", err)
	}

	a.logger.Info("beacon configuration",
		"uuid", id.UUIDString(),
		"major", id.Major,
		"minor", id.Minor,
		"interval", a.cfg.AdvInterval,
		"firmware", config.FirmwareVersion)

	machine := advertise.New(a.driver, id, a.cfg.AdvInterval, a.cfg.TxPower, a.logger)
	machineErrCh := make(chan error, 1)
	go func() {
		if err := machine.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			machineErrCh <- err
		}
	}()

	if err := a.startMDNS(deviceName, id); err != nil {
		a.logger.Warn("mDNS announcement failed", "error", err)
	}
	defer a.stopMDNS()

	sink := a.buildSink(deviceName)
	defer func() {
		if a.mqtt != nil {
			a.mqtt.Close()
		}
	}()

	base := a.baseMessage(id)

	// Network-dependent tasks. A failed join leaves the beacon broadcasting
	// on its current firmware; only updates and notifications are lost.
	if a.joinNetwork(ctx) {
		go a.led.Blink(5, 250*time.Millisecond)

		if err := a.startHeartbeat(ctx, sink, base); err != nil {
			a.logger.Warn("heartbeat scheduling failed", "error", err)
		}
		defer a.stopHeartbeat()

		if a.cfg.UpdateURL != "" {
			loop := a.buildUpdateLoop(sink, base)
			go func() {
				if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Error("update lifecycle stopped", "error", err)
				}
			}()
		}
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down")
			return nil
		case err := <-machineErrCh:
			return fmt.Errorf("advertising machine: %w", err)
		case <-machine.Done():
			if machine.State() == advertise.StateFailed {
				msg := base
				msg.Title = "Advertising Failed"
				msg.Severity = notify.SeverityError
				msg.Error = machine.Err().Error()
				_ = sink.Send(ctx, msg)
				// The beacon process stays up for diagnosis; a watchdog or
				// operator decides whether to reboot.
			}
			<-ctx.Done()
			a.logger.Info("shutting down")
			return nil
		}
	}
}

// initStorage opens and initializes the durable store. A needs-erase failure
// is recovered exactly once by erasing and retrying; anything else is fatal.
func (a *App) initStorage(ctx context.Context) error {
	kv, err := kvstore.Open(a.cfg.DataPath)
	if err != nil {
		return fmt.Errorf("open durable store: %w", err)
	}
	a.kv = kv

	if err := kv.Init(ctx); err != nil {
		if !errors.Is(err, kvstore.ErrNeedsErase) {
			return fmt.Errorf("init durable store: %w", err)
		}

		a.logger.Warn("durable store needs erase, erasing and retrying")
		if err := kv.Erase(); err != nil {
			return fmt.Errorf("erase durable store: %w", err)
		}
		if err := kv.Reopen(); err != nil {
			return fmt.Errorf("reopen durable store: %w", err)
		}
		if err := kv.Init(ctx); err != nil {
			return fmt.Errorf("init durable store after erase: %w", err)
		}
	}

	a.logger.Info("durable store ready", "path", a.cfg.DataPath)
	return nil
}

// loadIdentity reads the persisted identity, applying defaults per key, and
// persists the defaults on first boot when a real default identity was
// compiled in.
func (a *App) loadIdentity(ctx context.Context) (ibeacon.Identity, error) {
	uuid, err := ibeacon.ParseUUID(a.cfg.ProximityUUID)
	if err != nil {
		return ibeacon.Identity{}, err
	}

	defaults := identity.Defaults{Major: a.cfg.DefaultMajor, Minor: a.cfg.DefaultMinor}
	store := identity.NewStore(a.kv, defaults)

	rec, err := store.Load(ctx)
	if err != nil {
		return ibeacon.Identity{}, fmt.Errorf("load identity: %w", err)
	}

	if !rec.Persisted && defaults.Minor != identity.UnconfiguredMinor {
		a.logger.Info("first boot, persisting default identity",
			"major", defaults.Major, "minor", defaults.Minor)
		if err := store.Save(ctx, defaults.Major, defaults.Minor); err != nil {
			return ibeacon.Identity{}, fmt.Errorf("persist default identity: %w", err)
		}
	}

	source := "store"
	if !rec.Persisted {
		source = "defaults"
	}
	a.logger.Info("identity loaded", "major", rec.Major, "minor", rec.Minor, "source", source)

	return ibeacon.Identity{
		ProximityUUID: uuid,
		Major:         rec.Major,
		Minor:         rec.Minor,
		MeasuredPower: a.cfg.MeasuredPower,
	}, nil
}

func (a *App) buildSink(deviceName string) notify.Sink {
	var sinks notify.Multi

	if a.cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(a.cfg.WebhookURL))
	}
	if a.cfg.MQTTBroker != "" {
		clientID := fmt.Sprintf("%s-%d", deviceName, time.Now().UnixNano())
		mq, err := notify.NewMQTT(a.cfg.MQTTBroker, clientID, a.cfg.MQTTTopicPrefix)
		if err != nil {
			a.logger.Warn("mqtt sink unavailable", "broker", a.cfg.MQTTBroker, "error", err)
		} else {
			a.mqtt = mq
			sinks = append(sinks, mq)
		}
	}

	return notify.NewBestEffort(sinks, a.logger)
}

func (a *App) baseMessage(id ibeacon.Identity) notify.Message {
	return notify.Message{
		DeviceID: deviceID(),
		Major:    id.Major,
		Minor:    id.Minor,
		Firmware: config.FirmwareVersion,
		UUID:     id.UUIDString(),
	}
}

func (a *App) joinNetwork(ctx context.Context) bool {
	joiner := a.Joiner
	if joiner == nil {
		switch {
		case a.cfg.UpdateURL != "":
			joiner = netjoin.NewProber(a.cfg.UpdateURL, a.logger)
		case a.cfg.WebhookURL != "":
			joiner = netjoin.NewProber(a.cfg.WebhookURL, a.logger)
		case a.cfg.MQTTBroker != "":
			// The broker connect in buildSink already proved reachability.
			return true
		default:
			return false
		}
	}

	if err := joiner.Connect(ctx); err != nil {
		a.logger.Error("network join failed, continuing without updates", "error", err)
		return false
	}
	return true
}

func (a *App) buildUpdateLoop(sink notify.Sink, base notify.Message) *ota.Loop {
	rebooter := a.Rebooter
	if rebooter == nil {
		rebooter = processRestart{logger: a.logger}
	}

	source := ota.NewHTTPSource(a.cfg.UpdateURL, config.FirmwareVersion)
	applier := &ota.FileApplier{Path: a.cfg.FirmwarePath}

	loop := ota.NewLoop(source, applier, sink, a.led, rebooter, base, a.logger)
	loop.GracePeriod = a.cfg.UpdateGracePeriod
	loop.CheckInterval = a.cfg.UpdateCheckInterval
	return loop
}
