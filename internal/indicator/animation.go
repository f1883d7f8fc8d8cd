// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package indicator

import (
	"fmt"
	"time"

	"github.com/relabs-tech/headtrack/internal/fault"
)

// Channel identifies one discrete indicator output.
type Channel int

const (
	Red Channel = iota
	Orange
	Yellow

	ChannelCount
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Orange:
		return "orange"
	case Yellow:
		return "yellow"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Pattern is the on/off state of every channel, indexed by Channel.
type Pattern [ChannelCount]bool

// Step shows Pattern for Hold before the animation advances.
type Step struct {
	Pattern Pattern
	Hold    time.Duration
}

// LoopPolicy decides what happens after the last step of an animation.
type LoopPolicy int

const (
	// HoldLast stops after one pass and leaves the last pattern lit.
	HoldLast LoopPolicy = iota
	// Continue starts over from the first step.
	Continue

	loopPolicyCount
)

func (p LoopPolicy) String() string {
	switch p {
	case HoldLast:
		return "hold-last"
	case Continue:
		return "continue"
	}
	return fmt.Sprintf("loop(%d)", int(p))
}

// Animation is an immutable, statically defined step sequence.
// The engine never modifies one; it only moves its own cursor.
type Animation struct {
	Name  string
	Steps []Step
	Loop  LoopPolicy
}

// Validate rejects animations the engine cannot play.
func (a *Animation) Validate() error {
	if a == nil {
		return fmt.Errorf("indicator: nil animation: %w", fault.ErrInvalidArgument)
	}
	if len(a.Steps) == 0 {
		return fmt.Errorf("indicator: animation %q has no steps: %w", a.Name, fault.ErrInvalidArgument)
	}
	if a.Loop < 0 || a.Loop >= loopPolicyCount {
		return fmt.Errorf("indicator: animation %q loop policy %d: %w", a.Name, int(a.Loop), fault.ErrInvalidArgument)
	}
	for i, s := range a.Steps {
		if s.Hold <= 0 {
			return fmt.Errorf("indicator: animation %q step %d hold %v: %w", a.Name, i, s.Hold, fault.ErrInvalidArgument)
		}
	}
	return nil
}
