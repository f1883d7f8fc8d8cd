// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/relabs-tech/headtrack/internal/config"
	"github.com/relabs-tech/headtrack/internal/orientation"
	"github.com/relabs-tech/headtrack/internal/sensors"
)

const degPerRad = 180 / math.Pi

// formatAngles renders s as roll, pitch and yaw in degrees.
func formatAngles(s orientation.Sample) string {
	r, p, y := s.Euler()
	return fmt.Sprintf("ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f", r*degPerRad, p*degPerRad, y*degPerRad)
}

// RunPreview prints orientation from src to out every interval, without
// indicator, transports or calibration. Handy for checking sensor mounting.
func RunPreview(ctx context.Context, src orientation.Source, interval time.Duration, out io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pose, err := src.Next()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatAngles(pose))
	}
}

// PreviewSource opens the orientation source named in cfg.
func PreviewSource(cfg *config.Config) (orientation.Source, error) {
	if cfg.Node.MockSensor {
		return orientation.NewMockSource(), nil
	}
	reader, err := sensors.NewIMUReader(cfg.IMU)
	if err != nil {
		return nil, err
	}
	return orientation.NewIMUSource(reader, cfg.IMU.GyroRange, cfg.IMU.FusionAlpha), nil
}
