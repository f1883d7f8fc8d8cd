// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/headtrack/internal/config"
	"github.com/relabs-tech/headtrack/internal/imu"
)

type imuSource struct {
	imu *mpu9250.MPU9250
}

// NewIMUReader initializes the head-mounted MPU9250 over SPI using the imu
// section of cfg and returns a raw sample reader.
func NewIMUReader(cfg config.IMUConfig) (imu.Reader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.SPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := dev.SetAccelRange(cfg.AccelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Printf("IMU: accelerometer range set to %d (±%dg)", cfg.AccelRange, []int{2, 4, 8, 16}[cfg.AccelRange])

	if err := dev.SetGyroRange(cfg.GyroRange); err != nil {
		return nil, fmt.Errorf("IMU: set gyro range: %w", err)
	}
	log.Printf("IMU: gyroscope range set to %d (±%d°/s)", cfg.GyroRange, []int{250, 500, 1000, 2000}[cfg.GyroRange])

	// The wearer is asked to hold still during power-up; bias calibration
	// failing only costs drift, so it is not fatal.
	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: IMU calibration failed: %v", err)
	} else {
		log.Println("IMU calibration complete")
	}

	return &imuSource{imu: dev}, nil
}

// ReadRaw reads accelerometer and gyroscope data.
func (s *imuSource) ReadRaw() (imu.IMURaw, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU gyro Z: %w", err)
	}

	return imu.IMURaw{Ax: ax, Ay: ay, Az: az, Gx: gx, Gy: gy, Gz: gz}, nil
}
