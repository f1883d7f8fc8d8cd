// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transport turns orientation samples into the bytes each output
// channel carries.
package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/headtrack/internal/config"
	"github.com/relabs-tech/headtrack/internal/orientation"
)

const (
	serialQuatPrefix = ">>QUAT:"
	serialCaliPrefix = ">>CALI:"
)

// Serial writes one text line per sample, the format the desktop client parses:
//
//	>>QUAT: w x y z
//	>>CALI: w x y z
type Serial struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewSerial writes lines to w.
func NewSerial(w io.Writer) *Serial {
	s := &Serial{w: w}
	if c, ok := w.(io.Closer); ok && w != os.Stdout {
		s.c = c
	}
	return s
}

// OpenSerial opens the configured port, or stdout when no port is set.
func OpenSerial(cfg config.SerialConfig) (*Serial, error) {
	if cfg.Port == "" {
		log.Println("serial: no port configured, writing tracking lines to stdout")
		return NewSerial(os.Stdout), nil
	}

	opts := serial.OpenOptions{
		PortName:              cfg.Port,
		BaudRate:              cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Port, err)
	}
	log.Printf("serial: port opened on %s at %d baud", opts.PortName, opts.BaudRate)
	return NewSerial(port), nil
}

// Send writes s as a QUAT line, or a CALI line when calibration is set.
func (t *Serial) Send(_ context.Context, s orientation.Sample, calibration bool) error {
	prefix := serialQuatPrefix
	if calibration {
		prefix = serialCaliPrefix
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.w, "%s %f %f %f %f\n", prefix, s.W, s.X, s.Y, s.Z); err != nil {
		return fmt.Errorf("serial: write: %w", err)
	}
	return nil
}

// Close releases the port. Stdout is left open.
func (t *Serial) Close() error {
	if t.c == nil {
		return nil
	}
	return t.c.Close()
}
