// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package button delivers debounced press and release events from a GPIO
// push button wired active-low.
package button

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/headtrack/internal/fault"
)

// Event is a button level change.
type Event int

const (
	Pressed Event = iota
	Released
)

func (e Event) String() string {
	switch e {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Handler receives button events on the watcher goroutine.
type Handler func(Event)

// OnRelease adapts fn to a Handler that ignores presses.
func OnRelease(fn func()) Handler {
	return func(e Event) {
		if e == Released {
			fn()
		}
	}
}

// edgePin is the part of gpio.PinIn the watcher uses.
type edgePin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

// edgePoll bounds each edge wait so cancellation is noticed.
const edgePoll = 200 * time.Millisecond

// Open looks up a pin by its periph name.
func Open(name string) (gpio.PinIn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("button: host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("button: pin %q: %w", name, fault.ErrInvalidArgument)
	}
	return p, nil
}

// Watch configures pin as a pulled-up input and calls handler on every
// debounced level change until ctx is done.
func Watch(ctx context.Context, pin edgePin, debounce time.Duration, handler Handler) error {
	if pin == nil || handler == nil {
		return fmt.Errorf("button: pin and handler are required: %w", fault.ErrInvalidArgument)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return fmt.Errorf("button: configure input: %w", err)
	}

	last := pin.Read()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !pin.WaitForEdge(edgePoll) {
			continue
		}
		if debounce > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(debounce):
			}
		}

		level := pin.Read()
		if level == last {
			continue
		}
		last = level

		ev := Released
		if level == gpio.Low {
			ev = Pressed
		}
		log.WithField("component", "button").Debugf("button %v", ev)
		handler(ev)
	}
}
