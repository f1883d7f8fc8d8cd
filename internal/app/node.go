// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires the tracker core to hardware and to the optional MQTT
// control plane and web monitor.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/headtrack/internal/button"
	"github.com/relabs-tech/headtrack/internal/config"
	"github.com/relabs-tech/headtrack/internal/display"
	"github.com/relabs-tech/headtrack/internal/fault"
	"github.com/relabs-tech/headtrack/internal/indicator"
	"github.com/relabs-tech/headtrack/internal/link"
	"github.com/relabs-tech/headtrack/internal/mode"
	"github.com/relabs-tech/headtrack/internal/orientation"
	"github.com/relabs-tech/headtrack/internal/radio"
	"github.com/relabs-tech/headtrack/internal/tracker"
	"github.com/relabs-tech/headtrack/internal/transport"
)

const errorQueueSize = 64

// StatusPanel shows a few lines of status text.
type StatusPanel interface {
	Run(ctx context.Context, interval time.Duration, lines func() []string) error
	Close() error
}

// Hardware is everything the node talks to. Nil Radio disables the link,
// nil Button disables calibration by button, nil Panel disables the display.
type Hardware struct {
	Indicator indicator.Driver
	Source    orientation.Source
	Serial    *transport.Serial
	Radio     link.Radio
	Button    gpio.PinIn
	Panel     StatusPanel
}

var openSerial = transport.OpenSerial

// OpenHardware opens the devices named in cfg. On failure everything opened
// so far is closed again.
func OpenHardware(cfg *config.Config) (hw Hardware, err error) {
	hw = Hardware{Indicator: indicator.NewGPIODriver(cfg.Indicator)}

	if cfg.Node.MockSensor {
		log.Println("using mock orientation source")
	}
	src, err := PreviewSource(cfg)
	if err != nil {
		return Hardware{}, err
	}
	hw.Source = src

	s, err := openSerial(cfg.Serial)
	if err != nil {
		return Hardware{}, err
	}
	hw.Serial = s
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if cfg.Link.Enabled {
		hw.Radio = radio.NewBluetooth()
	}
	if cfg.Button.Pin != "" {
		pin, err := button.Open(cfg.Button.Pin)
		if err != nil {
			return Hardware{}, err
		}
		hw.Button = pin
	}
	if cfg.Display.Enabled {
		panel, err := display.Open(cfg.Display.I2CBus)
		if err != nil {
			return Hardware{}, err
		}
		hw.Panel = panel
	}
	return hw, nil
}

// Node is one head tracker.
type Node struct {
	cfg    *config.Config
	hw     Hardware
	logger *log.Entry

	sink    *fault.LogSink
	metrics *Metrics
	engine  *indicator.Engine
	serial  *transport.Serial
	link    *link.Link
	loop    *tracker.Loop
	control *ControlPlane
	monitor *Monitor

	linkUp bool // handshake succeeded; shutdown owns the teardown
	last   atomic.Pointer[tracker.Dispatch]
}

// NewNode builds the node's components without touching hardware.
func NewNode(cfg *config.Config, hw Hardware) (*Node, error) {
	if hw.Indicator == nil || hw.Source == nil || hw.Serial == nil {
		return nil, fmt.Errorf("node: indicator, source and serial are required: %w", fault.ErrInvalidArgument)
	}

	n := &Node{
		cfg:     cfg,
		hw:      hw,
		logger:  log.WithField("component", "node"),
		sink:    fault.NewLogSink(errorQueueSize),
		metrics: NewMetrics(),
	}
	n.sink.Forward(n.metrics.CountError)
	n.engine = indicator.NewEngine(hw.Indicator, n.sink)

	n.serial = hw.Serial
	transports := tracker.Transports{Serial: n.serial}

	if hw.Radio != nil {
		startup, wakeup, send := cfg.Link.Timeouts()
		n.link = link.New(hw.Radio, link.Options{
			Name:           cfg.Node.Name,
			StartupTimeout: startup,
			WakeupTimeout:  wakeup,
			SendTimeout:    send,
		}, n.sink)
		transports.Link = transport.NewLink(n.link)
	}

	loop, err := tracker.New(tracker.Options{
		Period:     cfg.SampleInterval(),
		Source:     hw.Source,
		Transports: transports,
		Indicator:  n.engine,
		Sink:       n.sink,
	})
	if err != nil {
		return nil, err
	}
	n.loop = loop
	n.loop.Observe(n.metrics.Observe)
	n.loop.Observe(func(d tracker.Dispatch) { n.last.Store(&d) })

	n.loop.Modes().OnChange(func(mode.Mode) { n.changed() })
	if cfg.MQTT.Broker != "" {
		n.control = NewControlPlane(cfg.MQTT, n)
		n.sink.Forward(n.control.ReportError)
	}
	if cfg.Web.Port != 0 {
		n.monitor = NewMonitor(n, n.metrics)
		n.loop.Observe(n.monitor.Observe)
	}
	return n, nil
}

// Run performs the startup sequence and runs until ctx is done or a
// component fails.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n.sink.Run(ctx)
		return nil
	})

	if err := n.startup(ctx, g); err != nil {
		cancel()
		n.shutdown()
		return errors.Join(err, ignoreCanceled(g.Wait()))
	}
	n.logger.WithField("mode", n.loop.Modes().Current()).Info("head tracker running")

	err := ignoreCanceled(g.Wait())
	n.shutdown()
	return err
}

func (n *Node) startup(ctx context.Context, g *errgroup.Group) error {
	if err := n.engine.Initialize(); err != nil {
		return err
	}
	if err := n.engine.Play(indicator.Initializing); err != nil {
		return err
	}

	m, err := mode.Parse(n.cfg.Node.DefaultMode)
	if err != nil {
		return err
	}
	if err := n.loop.ChangeMode(m); err != nil {
		return err
	}

	if n.hw.Button != nil {
		g.Go(func() error {
			return ignoreCanceled(button.Watch(ctx, n.hw.Button, n.cfg.ButtonDebounce(), button.OnRelease(n.RequestCalibration)))
		})
	}
	if n.link != nil {
		// A failed handshake has already torn the radio down.
		if err := n.link.Initialize(ctx, n.loop.Modes()); err != nil {
			return err
		}
		n.linkUp = true
	}

	g.Go(func() error { return ignoreCanceled(n.loop.Run(ctx)) })
	if err := n.Start(); err != nil {
		return err
	}

	// The outer planes are optional; losing one does not stop tracking.
	if n.control != nil {
		g.Go(func() error {
			if err := n.control.Run(ctx); err != nil {
				n.logger.WithError(err).Warn("control plane stopped")
			}
			return nil
		})
	}
	if n.monitor != nil {
		g.Go(func() error {
			if err := n.monitor.Run(ctx, n.cfg.Web.Port); err != nil {
				n.logger.WithError(err).Warn("web monitor stopped")
			}
			return nil
		})
	}
	if n.hw.Panel != nil {
		g.Go(func() error {
			if err := n.hw.Panel.Run(ctx, n.cfg.DisplayInterval(), n.panelLines); err != nil {
				n.logger.WithError(err).Warn("status panel stopped")
			}
			return nil
		})
	}
	return nil
}

// panelLines is what the status panel shows: name, mode and sampling state,
// link state, last orientation in degrees.
func (n *Node) panelLines() []string {
	s := n.Status()
	state := "STOP"
	if s.Sampling {
		state = "RUN"
	}
	lines := []string{
		s.Node,
		fmt.Sprintf("%s %s", strings.ToUpper(s.Mode), state),
		"link " + s.Link,
	}
	if d := n.last.Load(); d != nil {
		r, p, y := d.Sample.Euler()
		lines = append(lines, fmt.Sprintf("%4.0f %4.0f %4.0f", r*degPerRad, p*degPerRad, y*degPerRad))
	} else {
		lines = append(lines, "waiting...")
	}
	return lines
}

// shutdown releases the link and the indicator; the LEDs go dark.
func (n *Node) shutdown() {
	if n.linkUp {
		n.linkUp = false
		if err := n.link.Deinitialize(); err != nil {
			n.logger.WithError(err).Warn("link teardown")
		}
	}
	if err := n.engine.Deinitialize(); err != nil {
		n.logger.WithError(err).Warn("indicator teardown")
	}
	if err := n.serial.Close(); err != nil {
		n.logger.WithError(err).Warn("serial close")
	}
	if n.hw.Panel != nil {
		if err := n.hw.Panel.Close(); err != nil {
			n.logger.WithError(err).Warn("display close")
		}
	}
	if d := n.sink.Dropped(); d > 0 {
		n.logger.Warnf("%d error reports dropped", d)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Start enables sampling.
func (n *Node) Start() error {
	defer n.changed()
	return n.loop.Start()
}

// Stop disables sampling.
func (n *Node) Stop() error {
	defer n.changed()
	return n.loop.Stop()
}

// RequestCalibration latches a calibration request.
func (n *Node) RequestCalibration() {
	n.logger.Info("calibration requested")
	n.loop.RequestCalibration()
}

// ChangeMode switches the transport. Link mode needs the link enabled.
func (n *Node) ChangeMode(m mode.Mode) error {
	if m == mode.Link && n.link == nil {
		return fmt.Errorf("node: link is disabled: %w", fault.ErrUnsupported)
	}
	return n.loop.ChangeMode(m)
}

// Status snapshots the node.
func (n *Node) Status() Status {
	s := Status{
		Node:               n.cfg.Node.Name,
		Online:             true,
		Mode:               n.loop.Modes().Current().String(),
		Sampling:           n.loop.Enabled(),
		Link:               "disabled",
		CalibrationPending: n.loop.CalibrationPending(),
		Time:               time.Now().Format(time.RFC3339),
	}
	if n.link != nil {
		s.Link = n.link.State().String()
		s.LinkConnected = n.link.Connected()
	}
	return s
}

// Metrics exposes the node's counters.
func (n *Node) Metrics() *Metrics { return n.metrics }

func (n *Node) changed() {
	n.metrics.setStatus(n.Status())
	if n.control != nil {
		n.control.Changed()
	}
}

// RunHeadTrack opens the hardware named in cfg and runs a node until ctx is done.
func RunHeadTrack(ctx context.Context, cfg *config.Config) error {
	hw, err := OpenHardware(cfg)
	if err != nil {
		return err
	}
	n, err := NewNode(cfg, hw)
	if err != nil {
		return err
	}
	return n.Run(ctx)
}
