// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package link brings up the wireless peripheral role, tracks the peer
// connection and sends tracking records over the bidirectional data channel.
//
// Radio callbacks only enqueue events. A single handler goroutine turns each
// event into a state change plus at most one signal raise, so nothing the
// radio calls into ever blocks.
package link

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/headtrack/internal/fault"
)

// State of the handshake.
type State int32

const (
	Down State = iota
	Starting
	AwaitingWake
	Ready // up, no peer
	Connected
)

func (s State) String() string {
	switch s {
	case Down:
		return "down"
	case Starting:
		return "starting"
	case AwaitingWake:
		return "awaiting-wake"
	case Ready:
		return "ready"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// EventKind enumerates what the radio stack reports.
type EventKind int

const (
	Started EventKind = iota
	SleepSucceeded
	WakeupSucceeded
	PeerConnected
	PeerDisconnected
	RadioError
	Sent     // completion of SendAsync; Err carries a failure status
	Received // data from the peer
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case SleepSucceeded:
		return "sleep-succeeded"
	case WakeupSucceeded:
		return "wakeup-succeeded"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case RadioError:
		return "error"
	case Sent:
		return "sent"
	case Received:
		return "received"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is delivered by the radio to the handler registered in Initialize.
type Event struct {
	Kind EventKind
	Err  error
	Data []byte
}

// Radio is the peripheral-role radio stack.
type Radio interface {
	// Initialize registers the event handler and the service-registration
	// callback. onRegister is invoked by the radio while it registers its
	// services during Start.
	Initialize(onEvent func(Event), onRegister func() error) error
	SetDeviceName(name string) error
	// Start brings the peripheral up and begins advertising.
	Start() error
	Wakeup() error
	RegisterDataChannel() error
	// SendAsync queues payload. Completion arrives as a Sent event.
	SendAsync(payload []byte) error
	Deinitialize() error
}

// Notifier is told synchronously about every peer connect and disconnect.
type Notifier interface {
	LinkStateChanged(connected bool) error
}

// Options configures the handshake.
type Options struct {
	Name           string
	StartupTimeout time.Duration
	WakeupTimeout  time.Duration
	SendTimeout    time.Duration
}

const eventQueueSize = 32

// Link owns the radio exclusively.
type Link struct {
	radio  Radio
	opts   Options
	sink   fault.Sink
	logger *log.Entry

	state     atomic.Int32
	awake     atomic.Bool
	connected atomic.Bool

	powerModeChanged  signal
	sleepStateChanged signal
	connectionChanged signal
	sendAcknowledged  signal

	events chan Event

	mu       sync.Mutex // guards notifier, done, wg
	notifier Notifier
	done     chan struct{}
	wg       sync.WaitGroup

	sendMu  sync.Mutex  // one Send at a time
	pending atomic.Bool // submitted to the radio, no Sent event yet
}

// New creates a link over radio. Errors raised from event handling go to sink.
func New(radio Radio, opts Options, sink fault.Sink) *Link {
	if sink == nil {
		sink = fault.Discard
	}
	return &Link{
		radio:             radio,
		opts:              opts,
		sink:              sink,
		logger:            log.WithField("component", "link"),
		powerModeChanged:  newSignal(),
		sleepStateChanged: newSignal(),
		connectionChanged: newSignal(),
		sendAcknowledged:  newSignal(),
		events:            make(chan Event, eventQueueSize),
	}
}

// Initialize runs the handshake: start and advertise, wait for the radio to
// report it is powered, request wake and wait for it. On any failure the
// radio is torn down and the link stays Down.
func (l *Link) Initialize(ctx context.Context, n Notifier) error {
	if n == nil {
		return fmt.Errorf("link: nil notifier: %w", fault.ErrInvalidArgument)
	}

	l.mu.Lock()
	if l.done != nil {
		l.mu.Unlock()
		return nil
	}
	l.notifier = n
	l.done = make(chan struct{})
	done := l.done
	l.wg.Add(1)
	l.mu.Unlock()

	l.drain()
	for _, s := range []signal{l.powerModeChanged, l.sleepStateChanged, l.connectionChanged, l.sendAcknowledged} {
		s.clear()
	}
	go l.handleEvents(done)

	if err := l.handshake(ctx); err != nil {
		if derr := l.radio.Deinitialize(); derr != nil {
			l.logger.WithError(derr).Warn("radio teardown after failed handshake")
		}
		l.teardown()
		return err
	}
	l.logger.WithField("name", l.opts.Name).Info("link ready, advertising")
	return nil
}

func (l *Link) handshake(ctx context.Context) error {
	l.state.Store(int32(Starting))

	if err := l.radio.Initialize(l.enqueue, l.registerDataChannel); err != nil {
		return fmt.Errorf("link: radio initialize: %w", err)
	}
	if err := l.radio.SetDeviceName(l.opts.Name); err != nil {
		return fmt.Errorf("link: set device name: %w", err)
	}
	if err := l.radio.Start(); err != nil {
		return fmt.Errorf("link: start peripheral: %w", err)
	}
	if err := l.powerModeChanged.wait(ctx, l.opts.StartupTimeout); err != nil {
		return fmt.Errorf("link: waiting for peripheral start: %w", err)
	}

	l.state.Store(int32(AwaitingWake))
	if err := l.radio.Wakeup(); err != nil {
		return fmt.Errorf("link: wakeup: %w", err)
	}
	if err := l.sleepStateChanged.wait(ctx, l.opts.WakeupTimeout); err != nil {
		return fmt.Errorf("link: waiting for wakeup: %w", err)
	}
	if !l.awake.Load() {
		return fmt.Errorf("link: radio went to sleep instead of waking: %w", fault.ErrLinkFailure)
	}

	l.state.CompareAndSwap(int32(AwaitingWake), int32(Ready))
	return nil
}

func (l *Link) registerDataChannel() error {
	if err := l.radio.RegisterDataChannel(); err != nil {
		return fmt.Errorf("link: register data channel: %w", err)
	}
	return nil
}

// Send transmits payload to the peer and waits for the radio to acknowledge
// it. Without a peer the payload is dropped and Send succeeds. While an
// earlier send that timed out is still unacknowledged the payload is dropped
// too; its late completion must not be taken for this one's.
func (l *Link) Send(ctx context.Context, payload []byte) error {
	if !l.connected.Load() {
		return nil
	}

	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if l.pending.Load() {
		l.logger.Debug("previous send still in flight, dropping payload")
		return nil
	}
	l.sendAcknowledged.clear()
	l.pending.Store(true)
	if err := l.radio.SendAsync(payload); err != nil {
		l.pending.Store(false)
		return fmt.Errorf("link: send: %w", err)
	}
	if err := l.sendAcknowledged.wait(ctx, l.opts.SendTimeout); err != nil {
		return fmt.Errorf("link: waiting for send completion: %w", err)
	}
	return nil
}

// Deinitialize tears the peripheral down and forgets the notifier.
func (l *Link) Deinitialize() error {
	err := l.radio.Deinitialize()
	l.teardown()
	if err != nil {
		return fmt.Errorf("link: deinitialize: %w", err)
	}
	return nil
}

func (l *Link) teardown() {
	l.mu.Lock()
	done := l.done
	l.done = nil
	l.notifier = nil
	l.mu.Unlock()

	if done != nil {
		close(done)
		l.wg.Wait()
	}
	l.drain()
	l.pending.Store(false)
	l.connected.Store(false)
	l.awake.Store(false)
	l.state.Store(int32(Down))
}

// State returns the current handshake state.
func (l *Link) State() State { return State(l.state.Load()) }

// Connected reports whether a peer is connected.
func (l *Link) Connected() bool { return l.connected.Load() }

// drain discards queued events. Only called while no handler runs.
func (l *Link) drain() {
	for {
		select {
		case <-l.events:
		default:
			return
		}
	}
}

// enqueue is the radio's event callback. It never blocks.
func (l *Link) enqueue(ev Event) {
	select {
	case l.events <- ev:
	default:
		l.sink.Report(fmt.Errorf("link: event queue full, dropped %v: %w", ev.Kind, fault.ErrResourceExhausted))
	}
}

func (l *Link) handleEvents(done <-chan struct{}) {
	defer l.wg.Done()
	for {
		select {
		case <-done:
			return
		case ev := <-l.events:
			l.handle(ev)
		}
	}
}

func (l *Link) handle(ev Event) {
	switch ev.Kind {
	case Started:
		l.powerModeChanged.raise()
	case SleepSucceeded:
		l.awake.Store(false)
		l.sleepStateChanged.raise()
	case WakeupSucceeded:
		l.awake.Store(true)
		l.sleepStateChanged.raise()
	case PeerConnected:
		if !l.state.CompareAndSwap(int32(Ready), int32(Connected)) && l.State() != Connected {
			l.sink.Report(fmt.Errorf("link: peer connected while %v: %w", l.State(), fault.ErrInconsistentState))
			return
		}
		l.connected.Store(true)
		l.connectionChanged.raise()
		l.notify(true)
	case PeerDisconnected:
		l.state.CompareAndSwap(int32(Connected), int32(Ready))
		l.connected.Store(false)
		l.connectionChanged.raise()
		l.notify(false)
	case RadioError:
		l.sink.Report(fault.Fatal(fmt.Errorf("link: radio: %w: %v", fault.ErrLinkFailure, ev.Err)))
	case Sent:
		l.pending.Store(false)
		if ev.Err != nil {
			l.sink.Report(fmt.Errorf("link: send completion: %w", ev.Err))
		}
		l.sendAcknowledged.raise()
	case Received:
		l.logger.WithField("bytes", len(ev.Data)).Debug("data received from peer")
	default:
		l.sink.Report(fault.Fatal(fmt.Errorf("link: unexpected radio event %v: %w", ev.Kind, fault.ErrInconsistentState)))
	}
}

func (l *Link) notify(connected bool) {
	l.mu.Lock()
	n := l.notifier
	l.mu.Unlock()
	if n == nil {
		return
	}
	if err := n.LinkStateChanged(connected); err != nil {
		l.sink.Report(fmt.Errorf("link: notify connected=%v: %w", connected, err))
	}
}
