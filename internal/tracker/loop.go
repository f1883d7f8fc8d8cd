// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracker runs the fixed-rate sampling loop: read an orientation
// sample, hand it to the transport of the current mode, sleep until the next
// deadline.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/headtrack/internal/fault"
	"github.com/relabs-tech/headtrack/internal/indicator"
	"github.com/relabs-tech/headtrack/internal/mode"
	"github.com/relabs-tech/headtrack/internal/orientation"
)

// Transport delivers one sample. calibration marks the sample the host
// should take as its new reference.
type Transport interface {
	Send(ctx context.Context, s orientation.Sample, calibration bool) error
}

// Transports holds one transport per mode. A nil entry means the mode's
// transport is not available on this node.
type Transports struct {
	Serial Transport
	Link   Transport
}

// For returns the transport of m.
func (t Transports) For(m mode.Mode) (Transport, error) {
	var tr Transport
	switch m {
	case mode.Serial:
		tr = t.Serial
	case mode.Link:
		tr = t.Link
	default:
		return nil, fmt.Errorf("tracker: no transport for %v: %w", m, fault.ErrInconsistentState)
	}
	if tr == nil {
		return nil, fmt.Errorf("tracker: %v transport: %w", m, fault.ErrUnsupported)
	}
	return tr, nil
}

// Animator is the part of the indicator engine the loop drives.
type Animator interface {
	Play(a *indicator.Animation) error
	Current() *indicator.Animation
}

// Dispatch describes a sample that was delivered successfully.
type Dispatch struct {
	Mode        mode.Mode
	Sample      orientation.Sample
	Calibration bool
	Time        time.Time
}

// Observer is called on the loop goroutine after every successful dispatch.
// It must return quickly.
type Observer func(d Dispatch)

// Options configures a Loop.
type Options struct {
	Period     time.Duration
	Source     orientation.Source
	Transports Transports
	Indicator  Animator
	Sink       fault.Sink
}

// Loop is the sampling task. The enable flag and the calibration latch are
// the only state written from other goroutines.
type Loop struct {
	period     time.Duration
	source     orientation.Source
	transports Transports
	indicator  Animator
	sink       fault.Sink
	modes      *mode.Coordinator
	logger     *log.Entry

	enabled   atomic.Bool
	calibrate atomic.Bool
	wake      chan struct{}

	mu        sync.Mutex
	observers []Observer
}

// New validates opts and creates a stopped loop with its mode coordinator.
func New(opts Options) (*Loop, error) {
	if opts.Period <= 0 {
		return nil, fmt.Errorf("tracker: period %v: %w", opts.Period, fault.ErrInvalidArgument)
	}
	if opts.Source == nil || opts.Indicator == nil {
		return nil, fmt.Errorf("tracker: source and indicator are required: %w", fault.ErrInvalidArgument)
	}
	if opts.Sink == nil {
		opts.Sink = fault.Discard
	}

	l := &Loop{
		period:     opts.Period,
		source:     opts.Source,
		transports: opts.Transports,
		indicator:  opts.Indicator,
		sink:       opts.Sink,
		logger:     log.WithField("component", "tracker"),
		wake:       make(chan struct{}, 1),
	}
	l.modes = mode.NewCoordinator(opts.Indicator, l.Enabled)
	return l, nil
}

// Observe adds o to the observers called after each dispatch.
func (l *Loop) Observe(o Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

// Modes returns the coordinator; the link reports connect and disconnect to it.
func (l *Loop) Modes() *mode.Coordinator { return l.modes }

// Enabled reports whether sampling is running.
func (l *Loop) Enabled() bool { return l.enabled.Load() }

// Run executes the loop until ctx is done. While stopped it blocks on the
// wake signal; while running it paces cycles on absolute deadlines.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.WithField("period", l.period).Info("sampling loop started")
	defer l.logger.Info("sampling loop stopped")

	next := time.Now()
	for {
		if !l.enabled.Load() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.wake:
			}
			next = time.Now()
			continue
		}

		l.cycle(ctx)

		next = next.Add(l.period)
		if err := sleepUntil(ctx, next); err != nil {
			return err
		}
	}
}

func sleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cycle reads one sample and dispatches it. Failures are reported and only
// affect this cycle.
func (l *Loop) cycle(ctx context.Context) {
	s, err := l.source.Next()
	if err != nil {
		l.sink.Report(fmt.Errorf("tracker: read sample: %w", err))
		return
	}

	m := l.modes.Current()
	tr, err := l.transports.For(m)
	if err != nil {
		l.sink.Report(err)
		return
	}

	if l.calibrate.CompareAndSwap(true, false) {
		l.dispatch(ctx, tr, m, s, true)
	}
	l.dispatch(ctx, tr, m, s, false)
}

func (l *Loop) dispatch(ctx context.Context, tr Transport, m mode.Mode, s orientation.Sample, calibration bool) {
	if err := tr.Send(ctx, s, calibration); err != nil {
		l.sink.Report(fmt.Errorf("tracker: %v dispatch (calibration=%v): %w", m, calibration, err))
		return
	}

	l.mu.Lock()
	observers := l.observers
	l.mu.Unlock()
	d := Dispatch{Mode: m, Sample: s, Calibration: calibration, Time: time.Now()}
	for _, o := range observers {
		o(d)
	}
}

// Start enables sampling and shows the tracking animation of the current mode.
func (l *Loop) Start() error {
	return l.modes.Exclusive(func() error {
		l.enabled.Store(true)
		select {
		case l.wake <- struct{}{}:
		default:
		}

		a, err := mode.AnimationFor(l.modes.Current())
		if err != nil {
			return err
		}
		if err := l.indicator.Play(a); err != nil {
			return fmt.Errorf("tracker: start: %w", err)
		}
		return nil
	})
}

// Stop disables sampling; the loop parks before its next cycle. The idle
// animation is requested once per stop.
func (l *Loop) Stop() error {
	return l.modes.Exclusive(func() error {
		wasEnabled := l.enabled.Swap(false)
		if !wasEnabled && l.indicator.Current() == indicator.Idle {
			return nil
		}
		if err := l.indicator.Play(indicator.Idle); err != nil {
			return fmt.Errorf("tracker: stop: %w", err)
		}
		return nil
	})
}

// RequestCalibration latches a request; the next cycle sends one sample
// tagged for calibration. Safe from any goroutine.
func (l *Loop) RequestCalibration() {
	l.calibrate.Store(true)
}

// CalibrationPending reports whether a request is latched.
func (l *Loop) CalibrationPending() bool {
	return l.calibrate.Load()
}

// ChangeMode switches the transport; while sampling it also swaps the
// visible animation.
func (l *Loop) ChangeMode(m mode.Mode) error {
	return l.modes.SetMode(m)
}
