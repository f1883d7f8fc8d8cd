// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// IMURaw represents a single raw accelerometer + gyroscope sample in sensor counts.
type IMURaw struct {
	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Reader reads one raw sample from an IMU.
type Reader interface {
	ReadRaw() (IMURaw, error)
}

// GyroCountsPerDegree is the MPU-9250 gyro sensitivity (LSB per °/s) for a
// range code 0-3 (±250, ±500, ±1000, ±2000 °/s).
func GyroCountsPerDegree(rangeCode byte) float64 {
	return 131.0 / float64(uint(1)<<rangeCode)
}
