// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package indicator drives the node's discrete status LEDs through timed
// on/off animations.
package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/headtrack/internal/fault"
)

// Driver switches the indicator hardware. The engine owns it exclusively.
type Driver interface {
	Enable() error
	SetChannel(ch Channel, on bool) error
	Disable() error
}

// Engine plays one Animation at a time on a Driver.
//
// The engine is idle (no animation, timer stopped) or playing (animation set,
// timer armed with the current step's hold). Ticks run on the timer's
// goroutine; Play and StopAll stop the timer synchronously before touching the
// cursor, so a tick never sees a half-swapped animation.
type Engine struct {
	driver   Driver
	sink     fault.Sink
	newTimer timerFactory

	opMu sync.Mutex // serializes Initialize, Play, StopAll, Deinitialize

	mu        sync.Mutex
	timer     stepTimer
	animation *Animation
	index     int
}

// NewEngine creates an engine for driver. Tick failures go to sink.
func NewEngine(driver Driver, sink fault.Sink) *Engine {
	if sink == nil {
		sink = fault.Discard
	}
	return &Engine{
		driver:   driver,
		sink:     sink,
		newTimer: newAfterFuncTimer,
	}
}

// Initialize enables the indicator hardware and creates the stopped step timer.
// Calling it again on an initialized engine is a no-op.
func (e *Engine) Initialize() error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.timer != nil {
		return nil
	}
	if err := e.driver.Enable(); err != nil {
		return fmt.Errorf("indicator: enable driver: %w", err)
	}
	t, err := e.newTimer(e.tick)
	if err != nil {
		return fmt.Errorf("indicator: create timer: %w (%w)", fault.ErrResourceExhausted, err)
	}

	e.mu.Lock()
	e.timer = t
	e.mu.Unlock()
	return nil
}

// Play replaces whatever is playing with a, shows its first step right away
// and arms the timer for that step's hold.
func (e *Engine) Play(a *Animation) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.timer == nil {
		return fmt.Errorf("indicator: play: %w", fault.ErrNotInitialized)
	}
	if err := a.Validate(); err != nil {
		return err
	}

	e.timer.Stop()

	e.mu.Lock()
	e.animation = a
	e.index = 0
	err := e.apply(a.Steps[0].Pattern)
	if err != nil {
		e.animation = nil
	}
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("indicator: play %q: %w", a.Name, err)
	}

	e.timer.Start(a.Steps[0].Hold)
	return nil
}

// StopAll stops the timer and forgets the current animation. The LEDs keep
// whatever pattern was last applied.
func (e *Engine) StopAll() error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.timer == nil {
		return fmt.Errorf("indicator: stop: %w", fault.ErrNotInitialized)
	}
	e.stopLocked()
	return nil
}

func (e *Engine) stopLocked() {
	e.timer.Stop()

	e.mu.Lock()
	e.animation = nil
	e.index = 0
	e.mu.Unlock()
}

// Deinitialize stops everything, switches the LEDs off and releases the timer.
func (e *Engine) Deinitialize() error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.timer == nil {
		return nil
	}
	e.stopLocked()

	e.mu.Lock()
	e.timer = nil
	e.mu.Unlock()

	if err := e.driver.Disable(); err != nil {
		return fmt.Errorf("indicator: disable driver: %w", err)
	}
	return nil
}

// Playing reports whether an animation is in progress.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.animation != nil
}

// Current returns the animation being played, or nil.
func (e *Engine) Current() *Animation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.animation
}

// tick advances to the next step. On wrap-around a HoldLast animation ends
// with its last step still lit; a Continue animation starts over.
func (e *Engine) tick() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.animation
	if a == nil {
		return 0, false
	}

	next := (e.index + 1) % len(a.Steps)
	if next == 0 {
		switch a.Loop {
		case HoldLast:
			e.animation = nil
			e.index = 0
			return 0, false
		case Continue:
		default:
			e.animation = nil
			e.sink.Report(fmt.Errorf("indicator: animation %q loop %v: %w", a.Name, a.Loop, fault.ErrInconsistentState))
			return 0, false
		}
	}

	e.index = next
	step := a.Steps[next]
	if err := e.apply(step.Pattern); err != nil {
		e.sink.Report(fmt.Errorf("indicator: %q step %d: %w", a.Name, next, err))
	}
	return step.Hold, true
}

// apply must be called with e.mu held.
func (e *Engine) apply(p Pattern) error {
	for ch := Channel(0); ch < ChannelCount; ch++ {
		if err := e.driver.SetChannel(ch, p[ch]); err != nil {
			return fmt.Errorf("set %v: %w", ch, err)
		}
	}
	return nil
}
