// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/headtrack/internal/config"
	"github.com/relabs-tech/headtrack/internal/fault"
	"github.com/relabs-tech/headtrack/internal/mode"
)

// Controller is the surface the outer planes drive. *Node implements it.
type Controller interface {
	Start() error
	Stop() error
	RequestCalibration()
	ChangeMode(m mode.Mode) error
	Status() Status
}

// Status is published retained on the status topic and served by the web monitor.
type Status struct {
	Node               string `json:"node"`
	Online             bool   `json:"online"`
	Mode               string `json:"mode"`
	Sampling           bool   `json:"sampling"`
	Link               string `json:"link"`
	LinkConnected      bool   `json:"link_connected"`
	CalibrationPending bool   `json:"calibration_pending"`
	Time               string `json:"time"`
}

// Command names accepted on the command topic.
const (
	CmdStart     = "start"
	CmdStop      = "stop"
	CmdCalibrate = "calibrate"
	CmdMode      = "mode"
)

// Command is a parsed control message.
type Command struct {
	Name string `json:"cmd"`
	Mode string `json:"mode,omitempty"`
}

// ParseCommand accepts either plain text ("start", "mode link") or JSON
// ({"cmd":"mode","mode":"link"}).
func ParseCommand(payload []byte) (Command, error) {
	text := strings.TrimSpace(string(payload))
	var c Command
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return Command{}, fmt.Errorf("command: %w: %v", fault.ErrInvalidArgument, err)
		}
	} else {
		fields := strings.Fields(text)
		if len(fields) == 0 {
			return Command{}, fmt.Errorf("command: empty: %w", fault.ErrInvalidArgument)
		}
		c.Name = fields[0]
		if len(fields) > 1 {
			c.Mode = fields[1]
		}
	}
	c.Name = strings.ToLower(c.Name)

	switch c.Name {
	case CmdStart, CmdStop, CmdCalibrate:
		return c, nil
	case CmdMode:
		if c.Mode == "" {
			return Command{}, fmt.Errorf("command: mode needs an argument: %w", fault.ErrInvalidArgument)
		}
		return c, nil
	}
	return Command{}, fmt.Errorf("command %q: %w", c.Name, fault.ErrInvalidArgument)
}

// Apply runs c against ctrl.
func Apply(ctrl Controller, c Command) error {
	switch c.Name {
	case CmdStart:
		return ctrl.Start()
	case CmdStop:
		return ctrl.Stop()
	case CmdCalibrate:
		ctrl.RequestCalibration()
		return nil
	case CmdMode:
		m, err := mode.Parse(c.Mode)
		if err != nil {
			return err
		}
		return ctrl.ChangeMode(m)
	default:
		return fmt.Errorf("command %q: %w", c.Name, fault.ErrInvalidArgument)
	}
}

// ControlPlane takes commands from MQTT and publishes status and errors.
type ControlPlane struct {
	cfg    config.MQTTConfig
	ctrl   Controller
	logger *log.Entry

	changed chan struct{}

	mu     sync.Mutex
	client mqtt.Client
}

func NewControlPlane(cfg config.MQTTConfig, ctrl Controller) *ControlPlane {
	return &ControlPlane{
		cfg:     cfg,
		ctrl:    ctrl,
		logger:  log.WithField("component", "control"),
		changed: make(chan struct{}, 1),
	}
}

// Changed asks for a status publish. It never blocks.
func (c *ControlPlane) Changed() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// ReportError is a fault.LogSink forwarder. Errors raised before the broker
// connection is up are dropped.
func (c *ControlPlane) ReportError(err error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return
	}
	payload, _ := json.Marshal(struct {
		Severity string `json:"severity"`
		Error    string `json:"error"`
		Time     string `json:"time"`
	}{fault.Severity(err), err.Error(), time.Now().Format(time.RFC3339)})
	client.Publish(c.cfg.TopicErrors, 0, false, payload)
}

// Run connects to the broker and serves until ctx is done.
func (c *ControlPlane) Run(ctx context.Context) error {
	offline, _ := json.Marshal(Status{Node: c.ctrl.Status().Node, Online: false})
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetClientID(c.cfg.ClientIDNode).
		SetAutoReconnect(true).
		SetWill(c.cfg.TopicStatus, string(offline), 1, true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("control: connect %s: %w", c.cfg.Broker, token.Error())
	}
	defer client.Disconnect(250)
	c.logger.Printf("connected to MQTT broker at %s", c.cfg.Broker)

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.client = nil
		c.mu.Unlock()
	}()

	token := client.Subscribe(c.cfg.TopicCommand, 1, func(_ mqtt.Client, msg mqtt.Message) {
		c.handle(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("control: subscribe %s: %w", c.cfg.TopicCommand, token.Error())
	}
	c.logger.Printf("subscribed to %s", c.cfg.TopicCommand)

	ticker := time.NewTicker(c.cfg.StatusInterval())
	defer ticker.Stop()

	c.publishStatus(client, c.ctrl.Status())
	for {
		select {
		case <-ctx.Done():
			final := c.ctrl.Status()
			final.Online = false
			c.publishStatus(client, final)
			return nil
		case <-ticker.C:
			c.publishStatus(client, c.ctrl.Status())
		case <-c.changed:
			c.publishStatus(client, c.ctrl.Status())
		}
	}
}

func (c *ControlPlane) handle(payload []byte) {
	cmd, err := ParseCommand(payload)
	if err == nil {
		err = Apply(c.ctrl, cmd)
	}
	if err != nil {
		c.logger.WithError(err).Warnf("command %q rejected", strings.TrimSpace(string(payload)))
		return
	}
	c.logger.Infof("command %s %s applied", cmd.Name, cmd.Mode)
	c.Changed()
}

func (c *ControlPlane) publishStatus(client mqtt.Client, s Status) {
	payload, err := json.Marshal(s)
	if err != nil {
		c.logger.Printf("status marshal error: %v", err)
		return
	}
	if token := client.Publish(c.cfg.TopicStatus, 1, true, payload); token.Wait() && token.Error() != nil {
		c.logger.Printf("MQTT publish error (status): %v", token.Error())
	}
}
