// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fault

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Sink receives errors from contexts that cannot return them to a caller
// (sampling loop, timer ticks, radio callbacks). Report must never block.
type Sink interface {
	Report(err error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(err error)

func (f SinkFunc) Report(err error) { f(err) }

// Discard drops every report.
var Discard Sink = SinkFunc(func(error) {})

// LogSink queues reports and logs them from its own goroutine.
// Reports arriving while the queue is full are counted and dropped.
type LogSink struct {
	queue   chan error
	dropped atomic.Uint64
	logger  *log.Entry

	mu         sync.Mutex
	forwarders []func(error)
}

// NewLogSink creates a sink with room for capacity pending reports.
func NewLogSink(capacity int) *LogSink {
	if capacity <= 0 {
		capacity = 1
	}
	return &LogSink{
		queue:  make(chan error, capacity),
		logger: log.WithField("component", "fault"),
	}
}

// Forward registers fn to receive every drained report after it is logged.
func (s *LogSink) Forward(fn func(error)) {
	s.mu.Lock()
	s.forwarders = append(s.forwarders, fn)
	s.mu.Unlock()
}

func (s *LogSink) Report(err error) {
	if err == nil {
		return
	}
	select {
	case s.queue <- err:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of reports lost to a full queue.
func (s *LogSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run drains the queue until ctx is done.
func (s *LogSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-s.queue:
			s.handle(err)
		}
	}
}

func (s *LogSink) handle(err error) {
	entry := s.logger.WithField("severity", Severity(err)).WithError(err)
	if IsFatal(err) {
		entry.Error("fatal error reported")
	} else {
		entry.Warn("error reported")
	}

	s.mu.Lock()
	forwarders := append([]func(error){}, s.forwarders...)
	s.mu.Unlock()
	for _, fn := range forwarders {
		fn(err)
	}
}
