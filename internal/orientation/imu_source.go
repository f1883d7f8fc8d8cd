// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/headtrack/internal/imu"
)

// maxGap is the longest interval the gyro is integrated over.
const maxGap = 250 * time.Millisecond

type imuSource struct {
	reader    imu.Reader
	gyroScale float64 // rad/s per count
	alpha     float64 // gyro weight
	now       func() time.Time

	q    Sample
	last time.Time
}

// NewIMUSource fuses raw IMU samples into an orientation with a complementary
// filter: gyro rates are integrated and the result is pulled towards the
// accelerometer tilt by (1 - alpha) each sample. Yaw is gyro-only.
func NewIMUSource(reader imu.Reader, gyroRange byte, alpha float64) Source {
	return &imuSource{
		reader:    reader,
		gyroScale: (math.Pi / 180) / imu.GyroCountsPerDegree(gyroRange),
		alpha:     alpha,
		now:       time.Now,
	}
}

func (s *imuSource) Next() (Sample, error) {
	raw, err := s.reader.ReadRaw()
	if err != nil {
		return Sample{}, fmt.Errorf("imu source: %w", err)
	}
	t := s.now()

	roll, pitch := TiltFromAccel(float64(raw.Ax), float64(raw.Ay), float64(raw.Az))
	if s.last.IsZero() {
		// First sample: start from the accelerometer tilt.
		s.q = FromEuler(roll, pitch, 0)
		s.last = t
		return s.q, nil
	}

	gap := t.Sub(s.last)
	s.last = t
	if gap > maxGap {
		// Sampling was paused; the current rate says nothing about the gap.
		_, _, yaw := s.q.Euler()
		s.q = FromEuler(roll, pitch, yaw)
		return s.q, nil
	}
	dt := gap.Seconds()

	gyro := s.q.Integrate(
		float64(raw.Gx)*s.gyroScale,
		float64(raw.Gy)*s.gyroScale,
		float64(raw.Gz)*s.gyroScale,
		dt,
	)
	_, _, yaw := gyro.Euler()
	s.q = gyro.Nlerp(FromEuler(roll, pitch, yaw), 1-s.alpha)
	return s.q, nil
}
