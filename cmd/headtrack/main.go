// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/headtrack/internal/app"
	"github.com/relabs-tech/headtrack/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "headtrack",
		Short: "Head orientation tracker node",
		Long: `headtrack samples head orientation at a fixed rate and streams it to the
host over serial, or over the wireless link while a peer is connected.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "headtrack_config.yaml", "path to the YAML configuration file")

	var mock bool
	run := &cobra.Command{
		Use:   "run",
		Short: "Run the tracker node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if mock {
				cfg.Node.MockSensor = true
			}
			log.Printf("starting head tracker %q", cfg.Node.Name)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return app.RunHeadTrack(ctx, cfg)
		},
	}
	run.Flags().BoolVar(&mock, "mock", false, "use the synthetic orientation source instead of the IMU")

	console := &cobra.Command{
		Use:   "console",
		Short: "Print node status and errors from MQTT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return app.RunConsoleMQTT(ctx, cfg.MQTT, os.Stdout)
		},
	}

	send := &cobra.Command{
		Use:   "send <start|stop|calibrate|mode serial|mode link>",
		Short: "Send a command to the node over MQTT",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			return app.SendCommand(cfg.MQTT, strings.Join(args, " "))
		},
	}

	var interval time.Duration
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Print roll, pitch and yaw from the orientation source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if mock {
				cfg.Node.MockSensor = true
			}
			src, err := app.PreviewSource(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return app.RunPreview(ctx, src, interval, os.Stdout)
		},
	}
	preview.Flags().BoolVar(&mock, "mock", false, "use the synthetic orientation source instead of the IMU")
	preview.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "print interval")

	root.AddCommand(run, console, send, preview)
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if err := config.InitGlobal(path); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return cfg, nil
}
