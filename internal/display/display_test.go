// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func lit(img *image1bit.VerticalLSB, rows image.Rectangle) int {
	n := 0
	for y := rows.Min.Y; y < rows.Max.Y; y++ {
		for x := rows.Min.X; x < rows.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRenderPlacesLines(t *testing.T) {
	img := Render([]string{"SERIAL", "", "R: 12.0"})
	if lit(img, image.Rect(0, 0, width, lineHeight)) == 0 {
		t.Error("Expected pixels on the first row")
	}
	if lit(img, image.Rect(0, lineHeight, width, 2*lineHeight)) != 0 {
		t.Error("Expected an empty second row")
	}
	if lit(img, image.Rect(0, 2*lineHeight, width, 3*lineHeight)) == 0 {
		t.Error("Expected pixels on the third row")
	}
}

func TestRenderBlank(t *testing.T) {
	if n := lit(Render(nil), image.Rect(0, 0, width, height)); n != 0 {
		t.Errorf("Expected a blank frame, got %d pixels", n)
	}
}

type fakeDev struct {
	mu     sync.Mutex
	frames int
	last   image.Image
}

func (d *fakeDev) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	d.mu.Lock()
	d.frames++
	d.last = src
	d.mu.Unlock()
	return nil
}

func (d *fakeDev) Bounds() image.Rectangle { return image.Rect(0, 0, width, height) }

func TestRunRedrawsAndBlanks(t *testing.T) {
	dev := &fakeDev{}
	p := &Panel{dev: dev}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := p.Run(ctx, 5*time.Millisecond, func() []string { return []string{"LINK"} }); err != nil {
		t.Fatal(err)
	}
	if dev.frames < 2 {
		t.Errorf("Expected several redraws, got %d", dev.frames)
	}
	last := dev.last.(*image1bit.VerticalLSB)
	if lit(last, last.Bounds()) != 0 {
		t.Error("Expected the panel blanked on shutdown")
	}
}
