// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/headtrack/internal/imu"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestFromEulerRoundTrip(t *testing.T) {
	roll, pitch, yaw := 0.3, -0.2, 1.1
	q := FromEuler(roll, pitch, yaw)
	if math.Abs(q.Norm()-1) > eps {
		t.Fatalf("Expected unit quaternion, got norm %v", q.Norm())
	}
	r, p, y := q.Euler()
	if !near(r, roll) || !near(p, pitch) || !near(y, yaw) {
		t.Errorf("Expected (%v,%v,%v), got (%v,%v,%v)", roll, pitch, yaw, r, p, y)
	}
}

func TestMultiplyIdentity(t *testing.T) {
	q := FromEuler(0.1, 0.2, 0.3)
	if got := q.Multiply(Identity); got != q {
		t.Errorf("q*1 = %+v, expected %+v", got, q)
	}
	if got := Identity.Multiply(q); got != q {
		t.Errorf("1*q = %+v, expected %+v", got, q)
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := (Sample{}).Normalize(); got != Identity {
		t.Errorf("Expected Identity for zero quaternion, got %+v", got)
	}
}

func TestIntegrateYaw(t *testing.T) {
	// 90°/s about Z for one second in small steps.
	q := Identity
	for i := 0; i < 1000; i++ {
		q = q.Integrate(0, 0, math.Pi/2, 0.001)
	}
	_, _, yaw := q.Euler()
	if math.Abs(yaw-math.Pi/2) > 1e-3 {
		t.Errorf("Expected yaw ~%v, got %v", math.Pi/2, yaw)
	}
}

func TestNlerpShortestArc(t *testing.T) {
	q := FromEuler(0, 0, 0.2)
	neg := Sample{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
	got := Identity.Nlerp(neg, 1)
	if !near(got.W, q.W) || !near(got.Z, q.Z) {
		t.Errorf("Expected nlerp to pick the shorter arc, got %+v", got)
	}
}

func TestMockSourceUnit(t *testing.T) {
	src := NewMockSource()
	for i := 0; i < 5; i++ {
		s, err := src.Next()
		if err != nil {
			t.Fatalf("mock source error: %v", err)
		}
		if math.Abs(s.Norm()-1) > 1e-9 {
			t.Errorf("Expected unit sample, got norm %v", s.Norm())
		}
	}
}

type fakeReader struct {
	raw imu.IMURaw
	err error
}

func (f *fakeReader) ReadRaw() (imu.IMURaw, error) { return f.raw, f.err }

func TestIMUSourceLevelAndStill(t *testing.T) {
	reader := &fakeReader{raw: imu.IMURaw{Az: 16384}}
	src := NewIMUSource(reader, 0, 0.98).(*imuSource)
	clock := time.Unix(0, 0)
	src.now = func() time.Time { clock = clock.Add(20 * time.Millisecond); return clock }

	for i := 0; i < 10; i++ {
		s, err := src.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !near(s.W, 1) {
			t.Fatalf("Expected identity for a level, still sensor, got %+v", s)
		}
	}
}

func TestIMUSourceTiltConverges(t *testing.T) {
	// Rolled 90°: gravity along +Y.
	reader := &fakeReader{raw: imu.IMURaw{Ay: 16384}}
	src := NewIMUSource(reader, 0, 0.5).(*imuSource)
	clock := time.Unix(0, 0)
	src.now = func() time.Time { clock = clock.Add(20 * time.Millisecond); return clock }

	var s Sample
	for i := 0; i < 50; i++ {
		s, _ = src.Next()
	}
	roll, _, _ := s.Euler()
	if math.Abs(roll-math.Pi/2) > 1e-3 {
		t.Errorf("Expected roll ~pi/2, got %v", roll)
	}
}

func TestIMUSourceReadError(t *testing.T) {
	boom := errors.New("spi read")
	src := NewIMUSource(&fakeReader{err: boom}, 0, 0.98)
	if _, err := src.Next(); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped read error, got %v", err)
	}
}

func TestIMUSourceGapDoesNotIntegrate(t *testing.T) {
	// Level, turning at 90°/s around Z.
	reader := &fakeReader{raw: imu.IMURaw{Az: 16384, Gz: 131 * 90}}
	src := NewIMUSource(reader, 0, 0.98).(*imuSource)
	clock := time.Unix(0, 0)
	step := 20 * time.Millisecond
	src.now = func() time.Time { clock = clock.Add(step); return clock }

	src.Next()
	s, _ := src.Next()
	_, _, before := s.Euler()
	if math.Abs(before-90*0.02*math.Pi/180) > 1e-3 {
		t.Fatalf("Expected ~1.8° of yaw after one period, got %v rad", before)
	}

	step = 10 * time.Second
	s, _ = src.Next()
	_, _, after := s.Euler()
	if !near(after, before) {
		t.Errorf("Expected yaw held across a pause, went %v -> %v", before, after)
	}

	step = 20 * time.Millisecond
	s, _ = src.Next()
	_, _, resumed := s.Euler()
	if resumed <= after || resumed-after > 2*90*0.02*math.Pi/180 {
		t.Errorf("Expected integration to resume after the pause, got %v -> %v", after, resumed)
	}
}
