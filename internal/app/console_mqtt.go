// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/headtrack/internal/config"
)

// SendCommand publishes one command to the node and returns once the broker
// has accepted it.
func SendCommand(cfg config.MQTTConfig, command string) error {
	if _, err := ParseCommand([]byte(command)); err != nil {
		return err
	}
	client, err := connectConsole(cfg, "-cmd")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Publish(cfg.TopicCommand, 1, false, command)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("console: publish %s timed out", cfg.TopicCommand)
	}
	return token.Error()
}

// RunConsoleMQTT prints node status and reported errors to out until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg config.MQTTConfig, out io.Writer) error {
	client, err := connectConsole(cfg, "")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	statusToken := client.Subscribe(cfg.TopicStatus, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var s Status
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(out, formatStatus(s))
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	errorsToken := client.Subscribe(cfg.TopicErrors, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var e struct {
			Severity string `json:"severity"`
			Error    string `json:"error"`
			Time     string `json:"time"`
		}
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("console: error report unmarshal error: %v", err)
			return
		}
		fmt.Fprintf(out, "[ERR ]  %s %-5s %s\n", e.Time, e.Severity, e.Error)
	})
	errorsToken.Wait()
	if errorsToken.Error() != nil {
		return errorsToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicErrors)

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

func formatStatus(s Status) string {
	if !s.Online {
		return fmt.Sprintf("[NODE]  %s offline", s.Node)
	}
	sampling := "stopped"
	if s.Sampling {
		sampling = "sampling"
	}
	cal := ""
	if s.CalibrationPending {
		cal = " calibration-pending"
	}
	return fmt.Sprintf("[NODE]  %s %s mode=%s link=%s%s (%s)", s.Node, sampling, s.Mode, s.Link, cal, s.Time)
}

func connectConsole(cfg config.MQTTConfig, suffix string) (mqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("console: mqtt.broker is not configured")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientIDConsole + suffix)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.Broker)
	return client, nil
}
