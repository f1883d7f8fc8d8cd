// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package button

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/headtrack/internal/fault"
)

// fakePin replays a scripted sequence of levels, one per edge.
type fakePin struct {
	mu    sync.Mutex
	level gpio.Level
	edges chan gpio.Level
	pull  gpio.Pull
	inErr error
}

func newFakePin() *fakePin {
	return &fakePin{level: gpio.High, edges: make(chan gpio.Level, 16)}
}

func (p *fakePin) In(pull gpio.Pull, _ gpio.Edge) error {
	p.pull = pull
	return p.inErr
}

func (p *fakePin) Read() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *fakePin) WaitForEdge(timeout time.Duration) bool {
	select {
	case l := <-p.edges:
		p.mu.Lock()
		p.level = l
		p.mu.Unlock()
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatchDeliversDebouncedEvents(t *testing.T) {
	pin := newFakePin()
	events := make(chan Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, pin, time.Millisecond, func(e Event) { events <- e })
	}()

	// Press, a bounce that settles at the same level, then release.
	pin.edges <- gpio.Low
	pin.edges <- gpio.Low
	pin.edges <- gpio.High

	want := []Event{Pressed, Released}
	for i, w := range want {
		select {
		case got := <-events:
			if got != w {
				t.Errorf("event %d: expected %v, got %v", i, w, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d: timed out", i)
		}
	}
	select {
	case extra := <-events:
		t.Errorf("Unexpected extra event %v", extra)
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if pin.pull != gpio.PullUp {
		t.Errorf("Expected pull-up input, got %v", pin.pull)
	}
}

func TestOnReleaseIgnoresPress(t *testing.T) {
	calls := 0
	h := OnRelease(func() { calls++ })
	h(Pressed)
	h(Released)
	h(Pressed)
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestWatchRejectsMissingHandler(t *testing.T) {
	err := Watch(context.Background(), newFakePin(), 0, nil)
	if !errors.Is(err, fault.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestWatchConfigureFailure(t *testing.T) {
	pin := newFakePin()
	pin.inErr = errors.New("pin busy")
	if err := Watch(context.Background(), pin, 0, OnRelease(func() {})); err == nil {
		t.Error("Expected configure error")
	}
}
