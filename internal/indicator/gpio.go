// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package indicator

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/headtrack/internal/config"
)

// GPIODriver drives one LED per channel through periph GPIO pins.
// A channel with an empty pin name is not fitted and ignores commands.
type GPIODriver struct {
	names [ChannelCount]string
	pins  [ChannelCount]gpio.PinOut
}

// NewGPIODriver maps the pin names from cfg to channels. Pins are resolved
// in Enable.
func NewGPIODriver(cfg config.IndicatorConfig) *GPIODriver {
	d := &GPIODriver{}
	d.names[Red] = cfg.RedPin
	d.names[Orange] = cfg.OrangePin
	d.names[Yellow] = cfg.YellowPin
	return d
}

func (d *GPIODriver) Enable() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	for ch, name := range d.names {
		if name == "" {
			continue
		}
		p := gpioreg.ByName(name)
		if p == nil {
			return fmt.Errorf("%v LED pin %q not found", Channel(ch), name)
		}
		if err := p.Out(gpio.Low); err != nil {
			return fmt.Errorf("%v LED pin %q: %w", Channel(ch), name, err)
		}
		d.pins[ch] = p
	}
	return nil
}

func (d *GPIODriver) SetChannel(ch Channel, on bool) error {
	if ch < 0 || ch >= ChannelCount {
		return fmt.Errorf("LED %v: out of range", ch)
	}
	p := d.pins[ch]
	if p == nil {
		return nil
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return p.Out(level)
}

func (d *GPIODriver) Disable() error {
	var first error
	for ch, p := range d.pins {
		if p == nil {
			continue
		}
		if err := p.Out(gpio.Low); err != nil && first == nil {
			first = fmt.Errorf("%v LED off: %w", Channel(ch), err)
		}
		d.pins[ch] = nil
	}
	return first
}
