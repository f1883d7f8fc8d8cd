// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
)

// Sample is a unit rotation quaternion: scalar W plus the vector X, Y, Z.
// It is produced fresh each sampling cycle and never mutated afterwards.
type Sample struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity is the zero rotation.
var Identity = Sample{W: 1}

// Source is anything that can provide orientation samples over time.
type Source interface {
	Next() (Sample, error)
}

// Norm returns the quaternion magnitude.
func (q Sample) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize scales q to unit length. A zero quaternion becomes Identity.
func (q Sample) Normalize() Sample {
	n := q.Norm()
	if n == 0 {
		return Identity
	}
	return Sample{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Multiply returns the Hamilton product q*r.
func (q Sample) Multiply(r Sample) Sample {
	return Sample{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// FromEuler builds a rotation from roll (x), pitch (y) and yaw (z) in radians,
// applied in Z-Y-X order.
func FromEuler(roll, pitch, yaw float64) Sample {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)

	return Sample{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// Euler returns roll, pitch and yaw in radians.
func (q Sample) Euler() (roll, pitch, yaw float64) {
	roll = math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	switch {
	case sinp >= 1:
		pitch = math.Pi / 2
	case sinp <= -1:
		pitch = -math.Pi / 2
	default:
		pitch = math.Asin(sinp)
	}

	yaw = math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return roll, pitch, yaw
}

// Nlerp blends from q towards r by t in [0,1] along the shorter arc and
// renormalizes the result.
func (q Sample) Nlerp(r Sample, t float64) Sample {
	if q.W*r.W+q.X*r.X+q.Y*r.Y+q.Z*r.Z < 0 {
		r = Sample{W: -r.W, X: -r.X, Y: -r.Y, Z: -r.Z}
	}
	return Sample{
		W: q.W + (r.W-q.W)*t,
		X: q.X + (r.X-q.X)*t,
		Y: q.Y + (r.Y-q.Y)*t,
		Z: q.Z + (r.Z-q.Z)*t,
	}.Normalize()
}

// Integrate advances q by the body angular rates gx, gy, gz (rad/s) over dt seconds.
func (q Sample) Integrate(gx, gy, gz, dt float64) Sample {
	omega := Sample{X: gx, Y: gy, Z: gz}
	dq := q.Multiply(omega)
	return Sample{
		W: q.W + 0.5*dq.W*dt,
		X: q.X + 0.5*dq.X*dt,
		Y: q.Y + 0.5*dq.Y*dt,
		Z: q.Z + 0.5*dq.Z*dt,
	}.Normalize()
}

// TiltFromAccel computes roll and pitch (radians) from accelerometer data.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func TiltFromAccel(ax, ay, az float64) (roll, pitch float64) {
	roll = math.Atan2(ay, az)
	pitch = math.Atan2(-ax, math.Sqrt(ay*ay+az*az))
	return roll, pitch
}
