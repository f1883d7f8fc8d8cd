// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mode decides which transport tracking data goes out on and keeps
// the indicator in step with that choice.
package mode

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/headtrack/internal/fault"
)

// Mode is the active transport for tracking data.
type Mode int32

const (
	Serial Mode = iota
	Link
)

func (m Mode) String() string {
	switch m {
	case Serial:
		return "serial"
	case Link:
		return "link"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Valid reports whether m is a declared mode.
func (m Mode) Valid() bool {
	return m == Serial || m == Link
}

// Parse accepts the names used in config files and commands.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "serial", "usb":
		return Serial, nil
	case "link", "ble", "bluetooth":
		return Link, nil
	case "wifi", "ip", "udp":
		return Serial, fmt.Errorf("mode %q: %w", s, fault.ErrUnsupported)
	}
	return Serial, fmt.Errorf("mode %q: %w", s, fault.ErrInvalidArgument)
}
