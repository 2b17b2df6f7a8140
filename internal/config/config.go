// Package config loads the bridge configuration.
//
// Loading order:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values, secrets only)
//
// Environment variables follow the pattern SESAME_BRIDGE_SECTION_KEY,
// for example SESAME_BRIDGE_MQTT_PASSWORD.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/sesame-bridge/internal/gpio"
	"github.com/sweeney/sesame-bridge/internal/sesame"
)

// Network manager kinds.
const (
	ManagerNetworkManager = "networkmanager"
	ManagerNone           = "none"
)

// Key sizes in bytes.
const (
	SecretKeySize = 16
	PublicKeySize = 64
)

// Config is the root configuration structure.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Network  NetworkConfig  `yaml:"network"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Radio    RadioConfig    `yaml:"radio"`
	Lock     LockConfig     `yaml:"lock"`
	AutoTest AutoTestConfig `yaml:"auto_test"`
	Loop     LoopConfig     `yaml:"loop"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies the lock and its keys.
type DeviceConfig struct {
	Name           string        `yaml:"name"`
	Address        string        `yaml:"address"`
	Model          string        `yaml:"model"`
	PublicKey      string        `yaml:"public_key"`
	SecretKey      string        `yaml:"secret_key"`
	ConnectRetries int           `yaml:"connect_retries"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// NetworkConfig contains the local link settings.
type NetworkConfig struct {
	Manager     string        `yaml:"manager"`
	Interface   string        `yaml:"interface"`
	SSID        string        `yaml:"ssid"`
	Password    string        `yaml:"password"`
	AttemptStep time.Duration `yaml:"attempt_step"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Topics         TopicsConfig  `yaml:"topics"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// TopicsConfig names the MQTT topics.
type TopicsConfig struct {
	Command string `yaml:"command"`
	Status  string `yaml:"status"`
	Radio   string `yaml:"radio"`
}

// RadioConfig contains the 433MHz receiver settings.
type RadioConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Chip          string        `yaml:"chip"`
	Pin           int           `yaml:"pin"`
	MinWidth      time.Duration `yaml:"min_width"`
	SignalTimeout time.Duration `yaml:"signal_timeout"`
}

// LockConfig contains lock session timing.
type LockConfig struct {
	RetryInterval time.Duration `yaml:"retry_interval"`
	StatusGrace   time.Duration `yaml:"status_grace"`
}

// AutoTestConfig controls the post-authentication unlock.
type AutoTestConfig struct {
	Enabled bool          `yaml:"enabled"`
	Delay   time.Duration `yaml:"delay"`
}

// LoopConfig controls the scheduling pass.
type LoopConfig struct {
	Tick time.Duration `yaml:"tick"`
}

// HTTPConfig controls the local status server. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with the firmware defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:           "SESAME 4",
			Model:          "sesame_4",
			ConnectRetries: 5,
			ConnectTimeout: 15 * time.Second,
		},
		Network: NetworkConfig{
			Manager:     ManagerNetworkManager,
			Interface:   "wlan0",
			AttemptStep: 500 * time.Millisecond,
			MaxAttempts: 20,
		},
		MQTT: MQTTConfig{
			Broker: "tcp://192.168.0.200:1883",
			Topics: TopicsConfig{
				Command: "sesame/command",
				Status:  "sesame/status",
				Radio:   "sesame/rxb6",
			},
			ConnectTimeout: 10 * time.Second,
			PublishTimeout: 5 * time.Second,
		},
		Radio: RadioConfig{
			Enabled:       true,
			Chip:          gpio.DefaultChip,
			Pin:           gpio.DefaultPin,
			MinWidth:      50 * time.Millisecond,
			SignalTimeout: 500 * time.Millisecond,
		},
		Lock: LockConfig{
			RetryInterval: 30 * time.Second,
			StatusGrace:   500 * time.Millisecond,
		},
		AutoTest: AutoTestConfig{
			Enabled: true,
			Delay:   5 * time.Second,
		},
		Loop: LoopConfig{
			Tick: 100 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SESAME_BRIDGE_DEVICE_ADDRESS"); v != "" {
		cfg.Device.Address = v
	}
	if v := os.Getenv("SESAME_BRIDGE_DEVICE_PUBLIC_KEY"); v != "" {
		cfg.Device.PublicKey = v
	}
	if v := os.Getenv("SESAME_BRIDGE_DEVICE_SECRET_KEY"); v != "" {
		cfg.Device.SecretKey = v
	}
	if v := os.Getenv("SESAME_BRIDGE_NETWORK_PASSWORD"); v != "" {
		cfg.Network.Password = v
	}
	if v := os.Getenv("SESAME_BRIDGE_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("SESAME_BRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("SESAME_BRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

// normalize lower-cases keys and fills a client id when none is set.
func (c *Config) normalize() {
	c.Device.PublicKey = strings.ToLower(strings.TrimSpace(c.Device.PublicKey))
	c.Device.SecretKey = strings.ToLower(strings.TrimSpace(c.Device.SecretKey))
	c.Network.Manager = strings.ToLower(c.Network.Manager)
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "sesame-bridge-" + uuid.NewString()[:8]
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.Address == "" {
		errs = append(errs, "device.address is required")
	}
	if _, err := sesame.ParseModel(c.Device.Model); err != nil {
		errs = append(errs, fmt.Sprintf("device.model %q is not supported", c.Device.Model))
	}
	if err := checkHexKey(c.Device.SecretKey, SecretKeySize); err != nil {
		errs = append(errs, "device.secret_key "+err.Error())
	}
	if err := checkHexKey(c.Device.PublicKey, PublicKeySize); err != nil {
		errs = append(errs, "device.public_key "+err.Error())
	}
	if c.Device.ConnectRetries < 1 {
		errs = append(errs, "device.connect_retries must be at least 1")
	}

	switch c.Network.Manager {
	case ManagerNetworkManager:
		if c.Network.SSID == "" {
			errs = append(errs, "network.ssid is required with networkmanager")
		}
		if c.Network.Interface == "" {
			errs = append(errs, "network.interface is required with networkmanager")
		}
	case ManagerNone:
	default:
		errs = append(errs, fmt.Sprintf("network.manager %q must be networkmanager or none", c.Network.Manager))
	}
	if c.Network.MaxAttempts < 1 {
		errs = append(errs, "network.max_attempts must be at least 1")
	}

	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if c.MQTT.Topics.Command == "" || c.MQTT.Topics.Status == "" || c.MQTT.Topics.Radio == "" {
		errs = append(errs, "mqtt.topics.command, status and radio are required")
	}

	if c.Radio.Enabled && c.Radio.Pin < 0 {
		errs = append(errs, "radio.pin must not be negative")
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"device.connect_timeout", c.Device.ConnectTimeout},
		{"network.attempt_step", c.Network.AttemptStep},
		{"mqtt.connect_timeout", c.MQTT.ConnectTimeout},
		{"mqtt.publish_timeout", c.MQTT.PublishTimeout},
		{"radio.min_width", c.Radio.MinWidth},
		{"radio.signal_timeout", c.Radio.SignalTimeout},
		{"lock.retry_interval", c.Lock.RetryInterval},
		{"loop.tick", c.Loop.Tick},
	} {
		if d.value <= 0 {
			errs = append(errs, d.name+" must be positive")
		}
	}
	if c.Lock.StatusGrace < 0 || c.AutoTest.Delay < 0 {
		errs = append(errs, "lock.status_grace and auto_test.delay must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SecretKeyBytes returns the decoded secret key. Call after Validate.
func (c *Config) SecretKeyBytes() []byte {
	b, _ := hex.DecodeString(c.Device.SecretKey)
	return b
}

// PublicKeyBytes returns the decoded public key. Call after Validate.
func (c *Config) PublicKeyBytes() []byte {
	b, _ := hex.DecodeString(c.Device.PublicKey)
	return b
}

// Redacted returns a copy safe for printing.
func (c *Config) Redacted() Config {
	r := *c
	if r.Device.SecretKey != "" {
		r.Device.SecretKey = "***"
	}
	if r.Network.Password != "" {
		r.Network.Password = "***"
	}
	if r.MQTT.Password != "" {
		r.MQTT.Password = "***"
	}
	return r
}

func checkHexKey(s string, size int) error {
	if s == "" {
		return fmt.Errorf("is required")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("is not valid hex")
	}
	if len(b) != size {
		return fmt.Errorf("must be %d bytes (%d hex characters), got %d", size, size*2, len(b))
	}
	return nil
}
