// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock orientation source that
// generates a smoothly nodding and turning head.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) Next() (Sample, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	roll := 10 * math.Pi / 180 * math.Sin(elapsed)
	pitch := 15 * math.Pi / 180 * math.Cos(elapsed*0.7)
	yaw := 60 * math.Pi / 180 * math.Sin(elapsed*0.3)

	return FromEuler(roll, pitch, yaw), nil
}
