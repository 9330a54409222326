// Package config collects the compile-time and environment-supplied settings
// of the beacon agent. The only values that change at runtime are the
// persisted major/minor, which live in the identity store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// FirmwareVersion identifies the running image in notifications and update
// checks.
const FirmwareVersion = "3.1.0"

// Config lists the tunable parameters for the beacon agent.
type Config struct {
	LogLevel string

	// DataPath is the durable store backing file.
	DataPath string

	// ProximityUUID is the canonical 36-character hyphenated UUID string.
	ProximityUUID string
	// DefaultMajor and DefaultMinor are used until an identity is persisted.
	DefaultMajor uint16
	DefaultMinor uint16

	// AdvInterval is the advertising interval; the radio stack receives it
	// converted into its native units.
	AdvInterval time.Duration
	// TxPower is the requested transmit power in dBm.
	TxPower int8
	// MeasuredPower is the calibrated power byte carried in the packet.
	MeasuredPower int8
	// Radio selects the driver: "bluez" or "sim".
	Radio string

	// UpdateURL is the firmware image location; empty disables the update
	// lifecycle.
	UpdateURL           string
	UpdateCheckInterval time.Duration
	UpdateGracePeriod   time.Duration
	// FirmwarePath is where an applied image is staged for the next boot.
	FirmwarePath string

	// WebhookURL and MQTTBroker each enable one notification sink; both may
	// be set.
	WebhookURL      string
	MQTTBroker      string
	MQTTTopicPrefix string

	// HeartbeatInterval repeats the online notification; zero sends it once
	// at startup only.
	HeartbeatInterval time.Duration

	// MDNSPort is the nominal port carried in the discovery record. No TCP
	// service listens there; the record exists so the device name is
	// discoverable during setup.
	MDNSPort int
}

const (
	defaultLogLevel        = "info"
	defaultDataPath        = "data/beacond.db"
	defaultProximityUUID   = "FDA50693-A4E2-4FB1-AFCF-C6EB07647825"
	defaultMajor           = uint16(100)
	defaultMinor           = uint16(15)
	defaultAdvInterval     = 50 * time.Millisecond
	defaultTxPower         = int8(3)
	defaultMeasuredPower   = int8(-59)
	defaultRadio           = "bluez"
	defaultCheckInterval   = 5 * time.Minute
	defaultGracePeriod     = 10 * time.Second
	defaultFirmwarePath    = "data/firmware/beacond.bin"
	defaultMQTTTopicPrefix = "beacons"
	defaultMDNSPort        = 5353
)

// Load derives configuration from the environment, falling back to defaults.
// A .env file in the working directory is merged in first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		LogLevel:            defaultLogLevel,
		DataPath:            defaultDataPath,
		ProximityUUID:       defaultProximityUUID,
		DefaultMajor:        defaultMajor,
		DefaultMinor:        defaultMinor,
		AdvInterval:         defaultAdvInterval,
		TxPower:             defaultTxPower,
		MeasuredPower:       defaultMeasuredPower,
		Radio:               defaultRadio,
		UpdateCheckInterval: defaultCheckInterval,
		UpdateGracePeriod:   defaultGracePeriod,
		FirmwarePath:        defaultFirmwarePath,
		MQTTTopicPrefix:     defaultMQTTTopicPrefix,
		MDNSPort:            defaultMDNSPort,
	}

	if v := os.Getenv("BEACOND_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BEACOND_DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv("BEACOND_UUID"); v != "" {
		cfg.ProximityUUID = v
	}

	var err error
	if cfg.DefaultMajor, err = envU16("BEACOND_MAJOR", cfg.DefaultMajor); err != nil {
		return Config{}, err
	}
	if cfg.DefaultMinor, err = envU16("BEACOND_MINOR", cfg.DefaultMinor); err != nil {
		return Config{}, err
	}
	if cfg.AdvInterval, err = envDuration("BEACOND_ADV_INTERVAL", cfg.AdvInterval); err != nil {
		return Config{}, err
	}
	if cfg.TxPower, err = envI8("BEACOND_TX_POWER", cfg.TxPower); err != nil {
		return Config{}, err
	}
	if cfg.MeasuredPower, err = envI8("BEACOND_MEASURED_POWER", cfg.MeasuredPower); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("BEACOND_RADIO"); v != "" {
		if v != "bluez" && v != "sim" {
			return Config{}, fmt.Errorf("invalid BEACOND_RADIO %q: want bluez or sim", v)
		}
		cfg.Radio = v
	}

	if v := os.Getenv("BEACOND_UPDATE_URL"); v != "" {
		cfg.UpdateURL = v
	}
	if cfg.UpdateCheckInterval, err = envDuration("BEACOND_UPDATE_INTERVAL", cfg.UpdateCheckInterval); err != nil {
		return Config{}, err
	}
	if cfg.UpdateGracePeriod, err = envDuration("BEACOND_UPDATE_GRACE", cfg.UpdateGracePeriod); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("BEACOND_FIRMWARE_PATH"); v != "" {
		cfg.FirmwarePath = v
	}

	if v := os.Getenv("BEACOND_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("BEACOND_MQTT_BROKER"); v != "" {
		cfg.MQTTBroker = v
	}
	if v := os.Getenv("BEACOND_MQTT_TOPIC_PREFIX"); v != "" {
		cfg.MQTTTopicPrefix = v
	}

	if cfg.HeartbeatInterval, err = envDuration("BEACOND_HEARTBEAT_INTERVAL", cfg.HeartbeatInterval); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("BEACOND_MDNS_PORT"); v != "" {
		port, perr := strconv.Atoi(v)
		if perr != nil {
			return Config{}, fmt.Errorf("invalid BEACOND_MDNS_PORT: %w", perr)
		}
		cfg.MDNSPort = port
	}

	return cfg, nil
}

func envU16(name string, fallback uint16) (uint16, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return uint16(n), nil
}

func envI8(name string, fallback int8) (int8, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return int8(n), nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
