// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Serial    SerialConfig    `yaml:"serial"`
	Link      LinkConfig      `yaml:"link"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Button    ButtonConfig    `yaml:"button"`
	IMU       IMUConfig       `yaml:"imu"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Web       WebConfig       `yaml:"web"`
	Display   DisplayConfig   `yaml:"display"`
	Log       LogConfig       `yaml:"log"`
}

type NodeConfig struct {
	Name             string `yaml:"name"`               // advertised link name
	SampleIntervalMS int    `yaml:"sample_interval_ms"` // sampling loop period
	DefaultMode      string `yaml:"default_mode"`       // "serial" or "link"
	MockSensor       bool   `yaml:"mock_sensor"`
}

type SerialConfig struct {
	Port     string `yaml:"port"` // empty writes to stdout
	BaudRate uint   `yaml:"baud_rate"`
}

type LinkConfig struct {
	Enabled          bool `yaml:"enabled"`
	StartupTimeoutMS int  `yaml:"startup_timeout_ms"`
	WakeupTimeoutMS  int  `yaml:"wakeup_timeout_ms"`
	SendTimeoutMS    int  `yaml:"send_timeout_ms"`
}

type IndicatorConfig struct {
	RedPin    string `yaml:"red_pin"`
	OrangePin string `yaml:"orange_pin"`
	YellowPin string `yaml:"yellow_pin"`
}

type ButtonConfig struct {
	Pin        string `yaml:"pin"`
	DebounceMS int    `yaml:"debounce_ms"`
}

type IMUConfig struct {
	SPIDevice string `yaml:"spi_device"`
	CSPin     string `yaml:"cs_pin"`
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange byte `yaml:"accel_range"`
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroRange   byte    `yaml:"gyro_range"`
	FusionAlpha float64 `yaml:"fusion_alpha"` // gyro weight of the complementary filter
}

type MQTTConfig struct {
	Broker           string `yaml:"broker"` // empty disables the control plane
	ClientIDNode     string `yaml:"client_id_node"`
	ClientIDConsole  string `yaml:"client_id_console"`
	TopicCommand     string `yaml:"topic_command"`
	TopicStatus      string `yaml:"topic_status"`
	TopicErrors      string `yaml:"topic_errors"`
	StatusIntervalMS int    `yaml:"status_interval_ms"`
}

type WebConfig struct {
	Port int `yaml:"port"` // 0 disables the monitor
}

type DisplayConfig struct {
	Enabled          bool   `yaml:"enabled"`
	I2CBus           string `yaml:"i2c_bus"` // empty picks the first bus
	UpdateIntervalMS int    `yaml:"update_interval_ms"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Name:             "XdkHeadTrack",
			SampleIntervalMS: 20,
			DefaultMode:      "serial",
		},
		Serial: SerialConfig{BaudRate: 115200},
		Link: LinkConfig{
			Enabled:          true,
			StartupTimeoutMS: 2000,
			WakeupTimeoutMS:  1000,
			SendTimeoutMS:    500,
		},
		Button: ButtonConfig{DebounceMS: 30},
		IMU: IMUConfig{
			SPIDevice:   "/dev/spidev0.0",
			CSPin:       "8",
			FusionAlpha: 0.98,
		},
		MQTT: MQTTConfig{
			ClientIDNode:     "headtrack-node",
			ClientIDConsole:  "headtrack-console",
			TopicCommand:     "headtrack/cmd",
			TopicStatus:      "headtrack/status",
			TopicErrors:      "headtrack/errors",
			StatusIntervalMS: 5000,
		},
		Display: DisplayConfig{UpdateIntervalMS: 500},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their Default() value.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	if c.Node.Name == "" {
		return fmt.Errorf("node.name is required")
	}
	if c.Node.SampleIntervalMS <= 0 {
		return fmt.Errorf("node.sample_interval_ms must be positive, got %d", c.Node.SampleIntervalMS)
	}
	switch c.Node.DefaultMode {
	case "serial", "link":
	default:
		return fmt.Errorf("node.default_mode must be \"serial\" or \"link\", got %q", c.Node.DefaultMode)
	}
	if c.Serial.Port != "" && c.Serial.BaudRate == 0 {
		return fmt.Errorf("serial.baud_rate is required when serial.port is set")
	}
	if c.Link.Enabled {
		if c.Link.StartupTimeoutMS <= 0 || c.Link.WakeupTimeoutMS <= 0 || c.Link.SendTimeoutMS <= 0 {
			return fmt.Errorf("link timeouts must be positive")
		}
	}
	if c.IMU.AccelRange > 3 {
		return fmt.Errorf("imu.accel_range must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", c.IMU.AccelRange)
	}
	if c.IMU.GyroRange > 3 {
		return fmt.Errorf("imu.gyro_range must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", c.IMU.GyroRange)
	}
	if c.IMU.FusionAlpha < 0 || c.IMU.FusionAlpha > 1 {
		return fmt.Errorf("imu.fusion_alpha must be within [0,1], got %v", c.IMU.FusionAlpha)
	}
	if !c.Node.MockSensor && (c.IMU.SPIDevice == "" || c.IMU.CSPin == "") {
		return fmt.Errorf("imu.spi_device and imu.cs_pin are required unless node.mock_sensor is set")
	}
	if c.MQTT.Broker != "" && c.MQTT.StatusIntervalMS <= 0 {
		return fmt.Errorf("mqtt.status_interval_ms must be positive, got %d", c.MQTT.StatusIntervalMS)
	}
	if c.Display.Enabled && c.Display.UpdateIntervalMS <= 0 {
		return fmt.Errorf("display.update_interval_ms must be positive, got %d", c.Display.UpdateIntervalMS)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port out of range: %d", c.Web.Port)
	}
	return nil
}

// SampleInterval is the sampling loop period.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Node.SampleIntervalMS) * time.Millisecond
}

func (c *Config) StatusInterval() time.Duration {
	return c.MQTT.StatusInterval()
}

func (m MQTTConfig) StatusInterval() time.Duration {
	return time.Duration(m.StatusIntervalMS) * time.Millisecond
}

// Timeouts returns the startup, wakeup and send timeouts.
func (l LinkConfig) Timeouts() (startup, wakeup, send time.Duration) {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return ms(l.StartupTimeoutMS), ms(l.WakeupTimeoutMS), ms(l.SendTimeoutMS)
}

func (c *Config) DisplayInterval() time.Duration {
	return time.Duration(c.Display.UpdateIntervalMS) * time.Millisecond
}

func (c *Config) ButtonDebounce() time.Duration {
	return time.Duration(c.Button.DebounceMS) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
