// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"context"
	"time"

	"github.com/relabs-tech/headtrack/internal/fault"
)

// signal is a binary semaphore: raising an already raised signal is a no-op.
type signal chan struct{}

func newSignal() signal { return make(signal, 1) }

// raise never blocks, so it is safe from event handlers.
func (s signal) raise() {
	select {
	case s <- struct{}{}:
	default:
	}
}

// clear discards a stale raise.
func (s signal) clear() {
	select {
	case <-s:
	default:
	}
}

// wait blocks until the signal is raised, timeout elapses or ctx is done.
func (s signal) wait(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s:
		return nil
	case <-t.C:
		return fault.ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
