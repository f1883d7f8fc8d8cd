// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("node:\n  mock_sensor: true\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Node.Name != "XdkHeadTrack" {
		t.Errorf("Expected default name XdkHeadTrack, got %q", cfg.Node.Name)
	}
	if cfg.SampleInterval() != 20*time.Millisecond {
		t.Errorf("Expected 20ms sample interval, got %v", cfg.SampleInterval())
	}
	if cfg.Link.SendTimeoutMS != 500 {
		t.Errorf("Expected 500ms send timeout, got %d", cfg.Link.SendTimeoutMS)
	}
	if !cfg.Node.MockSensor {
		t.Error("Expected mock_sensor to be set from file")
	}
}

func TestParseOverrides(t *testing.T) {
	data := `
node:
  name: Bench
  sample_interval_ms: 10
  default_mode: link
serial:
  port: /dev/ttyUSB0
  baud_rate: 230400
mqtt:
  broker: tcp://localhost:1883
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Node.Name != "Bench" || cfg.Node.DefaultMode != "link" {
		t.Errorf("Unexpected node section: %+v", cfg.Node)
	}
	if cfg.Serial.BaudRate != 230400 {
		t.Errorf("Expected baud 230400, got %d", cfg.Serial.BaudRate)
	}
	if cfg.MQTT.TopicCommand != "headtrack/cmd" {
		t.Errorf("Expected default command topic, got %q", cfg.MQTT.TopicCommand)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad mode", "node:\n  default_mode: wifi\n", "default_mode"},
		{"zero interval", "node:\n  sample_interval_ms: 0\n", "sample_interval_ms"},
		{"accel range", "imu:\n  accel_range: 4\n", "accel_range"},
		{"gyro range", "imu:\n  gyro_range: 9\n", "gyro_range"},
		{"alpha", "imu:\n  fusion_alpha: 1.5\n", "fusion_alpha"},
		{"link timeout", "link:\n  send_timeout_ms: 0\n", "timeouts"},
		{"missing imu", "imu:\n  spi_device: \"\"\n", "spi_device"},
		{"syntax", "node: [", "error reading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatalf("Expected error for %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headtrack_config.yaml")
	if err := os.WriteFile(path, []byte("web:\n  port: 8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Expected web port 8080, got %d", cfg.Web.Port)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	startup, wakeup, send := cfg.Link.Timeouts()
	if startup != 2*time.Second || wakeup != time.Second || send != 500*time.Millisecond {
		t.Errorf("Unexpected link timeouts %v %v %v", startup, wakeup, send)
	}
	if cfg.SampleInterval() != 20*time.Millisecond {
		t.Errorf("Expected 20ms sample interval, got %v", cfg.SampleInterval())
	}
	if cfg.StatusInterval() != 5*time.Second {
		t.Errorf("Expected 5s status interval, got %v", cfg.StatusInterval())
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "headtrack_config.yaml"))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Indicator.RedPin == "" || cfg.Button.Pin == "" {
		t.Errorf("Expected pins in the example config, got %+v %+v", cfg.Indicator, cfg.Button)
	}
}
