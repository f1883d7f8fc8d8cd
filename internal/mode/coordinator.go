// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mode

import (
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/headtrack/internal/fault"
	"github.com/relabs-tech/headtrack/internal/indicator"
)

// Player shows an animation. *indicator.Engine satisfies it.
type Player interface {
	Play(a *indicator.Animation) error
}

// Coordinator holds the current mode. The sampling loop reads it once per
// cycle without locking; a read racing SetMode may see either value.
//
// Every animation change made on behalf of a mode or of the sampling state
// goes through show, so the indicator always ends on the animation matching
// the last mode and enable flag written.
type Coordinator struct {
	player  Player
	enabled func() bool
	current atomic.Int32

	show sync.Mutex

	mu       sync.Mutex
	onChange func(Mode)
}

// NewCoordinator starts in Serial. enabled reports whether sampling is
// running; animations are only requested while it is.
func NewCoordinator(player Player, enabled func() bool) *Coordinator {
	return &Coordinator{player: player, enabled: enabled}
}

// OnChange registers fn to be called after every SetMode.
func (c *Coordinator) OnChange(fn func(Mode)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// SetMode stores m and, while sampling, switches the indicator to the
// matching tracking animation.
func (c *Coordinator) SetMode(m Mode) error {
	a, err := AnimationFor(m)
	if err != nil {
		return err
	}
	prev := Mode(c.current.Swap(int32(m)))
	if prev != m {
		log.WithField("component", "mode").Infof("mode %v -> %v", prev, m)
	}

	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(m)
	}

	return c.Exclusive(func() error {
		if c.enabled == nil || !c.enabled() {
			return nil
		}
		// A later SetMode may have stored a newer mode while this one waited.
		cur := c.Current()
		if cur != m {
			if a, err = AnimationFor(cur); err != nil {
				return err
			}
		}
		if err := c.player.Play(a); err != nil {
			return fmt.Errorf("mode: show %v: %w", cur, err)
		}
		return nil
	})
}

// Exclusive runs fn holding the lock SetMode takes before it plays an
// animation. The sampling loop flips its enable flag and plays its own
// animation inside fn.
func (c *Coordinator) Exclusive(fn func() error) error {
	c.show.Lock()
	defer c.show.Unlock()
	return fn()
}

// Current returns the active mode.
func (c *Coordinator) Current() Mode {
	return Mode(c.current.Load())
}

// LinkStateChanged makes the link the transport while a peer is connected
// and falls back to serial otherwise.
func (c *Coordinator) LinkStateChanged(connected bool) error {
	if connected {
		return c.SetMode(Link)
	}
	return c.SetMode(Serial)
}

// AnimationFor returns the tracking animation shown while m is active.
func AnimationFor(m Mode) (*indicator.Animation, error) {
	switch m {
	case Serial:
		return indicator.TrackingSerial, nil
	case Link:
		return indicator.TrackingLink, nil
	default:
		return nil, fmt.Errorf("mode: no animation for %v: %w", m, fault.ErrInconsistentState)
	}
}
