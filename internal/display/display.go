// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display shows node status on an SSD1306 OLED panel.
package display

import (
	"context"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

const (
	width      = 128
	height     = 64
	lineHeight = 13
	maxLines   = height / lineHeight
)

// drawer is the part of *ssd1306.Dev the panel uses.
type drawer interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Bounds() image.Rectangle
}

// Panel renders text lines on the display.
type Panel struct {
	dev drawer
	bus i2c.BusCloser
}

// Open initializes the SSD1306 on the named I2C bus ("" picks the first one).
func Open(busName string) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on I2C bus %q", busName)
	return &Panel{dev: dev, bus: bus}, nil
}

// Show draws lines, one per text row. Extra lines are cut off.
func (p *Panel) Show(lines []string) error {
	return p.dev.Draw(p.dev.Bounds(), Render(lines), image.Point{})
}

// Run redraws the panel with lines() every interval until ctx is done,
// then blanks it.
func (p *Panel) Run(ctx context.Context, interval time.Duration, lines func() []string) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := p.Show(nil); err != nil {
				log.Printf("display: error clearing: %v", err)
			}
			return nil
		case <-ticker.C:
			if err := p.Show(lines()); err != nil {
				log.Printf("display: error updating: %v", err)
			}
		}
	}
}

func (p *Panel) Close() error {
	if p.bus == nil {
		return nil
	}
	return p.bus.Close()
}

// Render lays lines out in the 7x13 font on a blank 128x64 frame.
func Render(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i == maxLines {
			break
		}
		d.Dot = fixed.P(0, (i+1)*lineHeight-2)
		d.DrawString(line)
	}
	return img
}
