// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/headtrack/internal/fault"
)

type fakeRadio struct {
	mu         sync.Mutex
	onEvent    func(Event)
	onRegister func() error

	// behaviour
	emitStarted bool
	emitWake    bool
	ackSends    bool
	sendStatus  error
	beforeStart []Event

	// observations
	name       string
	registered bool
	sends      [][]byte
	deinits    int
}

func (r *fakeRadio) Initialize(onEvent func(Event), onRegister func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvent = onEvent
	r.onRegister = onRegister
	return nil
}

func (r *fakeRadio) SetDeviceName(name string) error {
	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
	return nil
}

func (r *fakeRadio) Start() error {
	if err := r.onRegister(); err != nil {
		return err
	}
	for _, ev := range r.beforeStart {
		r.onEvent(ev)
	}
	if r.emitStarted {
		r.onEvent(Event{Kind: Started})
	}
	return nil
}

func (r *fakeRadio) Wakeup() error {
	if r.emitWake {
		r.onEvent(Event{Kind: WakeupSucceeded})
	}
	return nil
}

func (r *fakeRadio) RegisterDataChannel() error {
	r.mu.Lock()
	r.registered = true
	r.mu.Unlock()
	return nil
}

func (r *fakeRadio) SendAsync(payload []byte) error {
	r.mu.Lock()
	r.sends = append(r.sends, append([]byte(nil), payload...))
	ack, status := r.ackSends, r.sendStatus
	r.mu.Unlock()
	if ack {
		go r.onEvent(Event{Kind: Sent, Err: status})
	}
	return nil
}

func (r *fakeRadio) Deinitialize() error {
	r.mu.Lock()
	r.deinits++
	r.mu.Unlock()
	return nil
}

func (r *fakeRadio) sendCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

func (r *fakeRadio) emit(ev Event) { r.onEvent(ev) }

type fakeNotifier struct {
	changes chan bool
	err     error
}

func newFakeNotifier() *fakeNotifier { return &fakeNotifier{changes: make(chan bool, 8)} }

func (n *fakeNotifier) LinkStateChanged(connected bool) error {
	n.changes <- connected
	return n.err
}

func (n *fakeNotifier) next(t *testing.T) bool {
	t.Helper()
	select {
	case c := <-n.changes:
		return c
	case <-time.After(time.Second):
		t.Fatal("Notifier was not called")
		return false
	}
}

type chanSink chan error

func (s chanSink) Report(err error) {
	select {
	case s <- err:
	default:
	}
}

func (s chanSink) next(t *testing.T) error {
	t.Helper()
	select {
	case err := <-s:
		return err
	case <-time.After(time.Second):
		t.Fatal("Nothing reported to the sink")
		return nil
	}
}

var testOptions = Options{
	Name:           "XdkHeadTrack",
	StartupTimeout: 50 * time.Millisecond,
	WakeupTimeout:  50 * time.Millisecond,
	SendTimeout:    50 * time.Millisecond,
}

func healthyRadio() *fakeRadio {
	return &fakeRadio{emitStarted: true, emitWake: true, ackSends: true}
}

func waitState(t *testing.T, l *Link, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for l.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected state %v, got %v", want, l.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInitializeNilNotifier(t *testing.T) {
	radio := healthyRadio()
	l := New(radio, testOptions, nil)
	if err := l.Initialize(context.Background(), nil); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
	if radio.onEvent != nil {
		t.Error("Radio touched despite invalid argument")
	}
}

func TestInitializeHandshake(t *testing.T) {
	radio := healthyRadio()
	l := New(radio, testOptions, nil)
	if err := l.Initialize(context.Background(), newFakeNotifier()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer l.Deinitialize()

	if l.State() != Ready {
		t.Errorf("Expected state ready, got %v", l.State())
	}
	if !radio.registered {
		t.Error("Data channel was not registered during service registration")
	}
	if radio.name != "XdkHeadTrack" {
		t.Errorf("Expected advertised name XdkHeadTrack, got %q", radio.name)
	}
	if l.Connected() {
		t.Error("Link should not be connected without a peer")
	}
}

func TestInitializeStartupTimeout(t *testing.T) {
	radio := &fakeRadio{emitWake: true}
	l := New(radio, testOptions, nil)

	err := l.Initialize(context.Background(), newFakeNotifier())
	if !errors.Is(err, fault.ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if l.State() != Down {
		t.Errorf("Expected link down after timeout, got %v", l.State())
	}
	if radio.deinits != 1 {
		t.Errorf("Expected radio torn down once, got %d", radio.deinits)
	}
}

func TestInitializeWakeupTimeout(t *testing.T) {
	radio := &fakeRadio{emitStarted: true}
	l := New(radio, testOptions, nil)

	if err := l.Initialize(context.Background(), newFakeNotifier()); !errors.Is(err, fault.ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if l.State() != Down {
		t.Errorf("Expected link down, got %v", l.State())
	}
}

func TestInitializeCancelled(t *testing.T) {
	l := New(&fakeRadio{}, Options{StartupTimeout: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Initialize(ctx, newFakeNotifier()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSendWhileDisconnectedIsDropped(t *testing.T) {
	radio := healthyRadio()
	l := New(radio, testOptions, nil)
	if err := l.Initialize(context.Background(), newFakeNotifier()); err != nil {
		t.Fatal(err)
	}
	defer l.Deinitialize()

	if err := l.Send(context.Background(), []byte{1, 2, 3}); err != nil {
		t.Errorf("Expected silent drop, got %v", err)
	}
	if radio.sendCount() != 0 {
		t.Errorf("Expected no radio call, got %d sends", radio.sendCount())
	}
}

func TestConnectNotifiesAndSends(t *testing.T) {
	radio := healthyRadio()
	n := newFakeNotifier()
	l := New(radio, testOptions, nil)
	if err := l.Initialize(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	defer l.Deinitialize()

	radio.emit(Event{Kind: PeerConnected})
	if !n.next(t) {
		t.Fatal("Expected connected=true notification")
	}
	waitState(t, l, Connected)

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := l.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if radio.sendCount() != 1 || !bytes.Equal(radio.sends[0], payload) {
		t.Errorf("Expected payload %x sent once, got %x", payload, radio.sends)
	}

	radio.emit(Event{Kind: PeerDisconnected})
	if n.next(t) {
		t.Fatal("Expected connected=false notification")
	}
	waitState(t, l, Ready)
	if l.Connected() {
		t.Error("Expected disconnected link")
	}
}

func TestSendTimeout(t *testing.T) {
	radio := healthyRadio()
	radio.ackSends = false
	n := newFakeNotifier()
	l := New(radio, testOptions, nil)
	if err := l.Initialize(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	defer l.Deinitialize()

	radio.emit(Event{Kind: PeerConnected})
	n.next(t)

	if err := l.Send(context.Background(), []byte{1}); !errors.Is(err, fault.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestSendFailureStatusReported(t *testing.T) {
	radio := healthyRadio()
	status := errors.New("gatt: notify failed")
	radio.sendStatus = status
	n := newFakeNotifier()
	sink := make(chanSink, 4)
	l := New(radio, testOptions, sink)
	if err := l.Initialize(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	defer l.Deinitialize()

	radio.emit(Event{Kind: PeerConnected})
	n.next(t)

	if err := l.Send(context.Background(), []byte{1}); err != nil {
		t.Errorf("Send should complete once acknowledged, got %v", err)
	}
	if err := sink.next(t); !errors.Is(err, status) {
		t.Errorf("Expected send status reported, got %v", err)
	}
}

func TestConnectBeforeReadyIsInconsistent(t *testing.T) {
	radio := healthyRadio()
	radio.beforeStart = []Event{{Kind: PeerConnected}}
	n := newFakeNotifier()
	sink := make(chanSink, 4)
	l := New(radio, testOptions, sink)
	if err := l.Initialize(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	defer l.Deinitialize()

	err := sink.next(t)
	if !errors.Is(err, fault.ErrInconsistentState) || !fault.IsFatal(err) {
		t.Errorf("Expected fatal ErrInconsistentState, got %v", err)
	}
	if l.Connected() {
		t.Error("Early connect must not mark the link connected")
	}
	select {
	case <-n.changes:
		t.Error("Notifier called for an inconsistent connect")
	default:
	}
}

func TestRadioErrorIsFatal(t *testing.T) {
	radio := healthyRadio()
	sink := make(chanSink, 4)
	l := New(radio, testOptions, sink)
	if err := l.Initialize(context.Background(), newFakeNotifier()); err != nil {
		t.Fatal(err)
	}
	defer l.Deinitialize()

	radio.emit(Event{Kind: RadioError, Err: errors.New("controller reset")})
	err := sink.next(t)
	if !errors.Is(err, fault.ErrLinkFailure) || !fault.IsFatal(err) {
		t.Errorf("Expected fatal ErrLinkFailure, got %v", err)
	}
}

func TestDeinitialize(t *testing.T) {
	radio := healthyRadio()
	n := newFakeNotifier()
	l := New(radio, testOptions, nil)
	if err := l.Initialize(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	radio.emit(Event{Kind: PeerConnected})
	n.next(t)

	if err := l.Deinitialize(); err != nil {
		t.Fatalf("Deinitialize failed: %v", err)
	}
	if l.State() != Down || l.Connected() {
		t.Errorf("Expected down and disconnected, got %v connected=%v", l.State(), l.Connected())
	}
	if err := l.Send(context.Background(), []byte{1}); err != nil {
		t.Errorf("Send after teardown should drop silently, got %v", err)
	}

	radio.emit(Event{Kind: PeerDisconnected})
	time.Sleep(10 * time.Millisecond)
	select {
	case <-n.changes:
		t.Error("Notifier called after Deinitialize")
	default:
	}
}

func TestLateCompletionIsNotTakenForNextSend(t *testing.T) {
	radio := healthyRadio()
	radio.ackSends = false
	n := newFakeNotifier()
	l := New(radio, testOptions, nil)
	if err := l.Initialize(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	defer l.Deinitialize()

	radio.emit(Event{Kind: PeerConnected})
	n.next(t)

	if err := l.Send(context.Background(), []byte{1}); !errors.Is(err, fault.ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	// The first send is still outstanding at the radio.
	if err := l.Send(context.Background(), []byte{2}); err != nil {
		t.Errorf("Expected the payload dropped, got %v", err)
	}
	if got := radio.sendCount(); got != 1 {
		t.Fatalf("Expected 1 radio submission while one is outstanding, got %d", got)
	}

	radio.emit(Event{Kind: Sent})
	deadline := time.Now().Add(time.Second)
	for l.pending.Load() {
		if time.Now().After(deadline) {
			t.Fatal("Late completion never cleared the outstanding send")
		}
		time.Sleep(time.Millisecond)
	}

	radio.mu.Lock()
	radio.ackSends = true
	radio.mu.Unlock()
	if err := l.Send(context.Background(), []byte{3}); err != nil {
		t.Errorf("Expected send after completion to succeed, got %v", err)
	}
	if got := radio.sendCount(); got != 2 {
		t.Errorf("Expected 2 radio submissions, got %d", got)
	}
}

func TestReinitializeIgnoresStaleEvents(t *testing.T) {
	radio := healthyRadio()
	l := New(radio, testOptions, nil)
	if err := l.Initialize(context.Background(), newFakeNotifier()); err != nil {
		t.Fatal(err)
	}
	if err := l.Deinitialize(); err != nil {
		t.Fatal(err)
	}

	// Reported by the radio after teardown; must not count for the next start.
	radio.emit(Event{Kind: Started})
	radio.emitStarted = false

	if err := l.Initialize(context.Background(), newFakeNotifier()); !errors.Is(err, fault.ErrTimeout) {
		t.Errorf("Expected ErrTimeout with no fresh start event, got %v", err)
	}
	if l.State() != Down {
		t.Errorf("Expected link down, got %v", l.State())
	}
}
