// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package indicator

import (
	"sync"
	"time"
)

// tickFunc runs when the step timer fires. It returns the delay until the
// next firing, or false to leave the timer stopped.
type tickFunc func() (next time.Duration, again bool)

// stepTimer is a recurring timer whose period is chosen by each tick.
type stepTimer interface {
	// Start arms the timer to fire after d, cancelling any pending firing.
	Start(d time.Duration)
	// Stop cancels any pending firing and returns only once no tick is running.
	Stop()
}

type timerFactory func(fire tickFunc) (stepTimer, error)

// afterFuncTimer re-arms a time.AfterFunc per step. Every Start/Stop bumps a
// generation so that stale callbacks exit without touching the engine.
type afterFuncTimer struct {
	fire tickFunc

	busy sync.Mutex // held while fire runs

	mu  sync.Mutex
	gen uint64
	t   *time.Timer
}

func newAfterFuncTimer(fire tickFunc) (stepTimer, error) {
	return &afterFuncTimer{fire: fire}, nil
}

func (t *afterFuncTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	t.arm(t.gen, d)
}

// arm must be called with t.mu held.
func (t *afterFuncTimer) arm(gen uint64, d time.Duration) {
	t.t = time.AfterFunc(d, func() { t.run(gen) })
}

func (t *afterFuncTimer) run(gen uint64) {
	t.busy.Lock()
	defer t.busy.Unlock()

	t.mu.Lock()
	current := gen == t.gen
	t.mu.Unlock()
	if !current {
		return
	}

	next, again := t.fire()

	t.mu.Lock()
	if again && gen == t.gen {
		t.arm(gen, next)
	}
	t.mu.Unlock()
}

func (t *afterFuncTimer) Stop() {
	t.mu.Lock()
	t.gen++
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.mu.Unlock()

	// Wait out a tick that passed its generation check before we bumped it.
	t.busy.Lock()
	t.busy.Unlock()
}
