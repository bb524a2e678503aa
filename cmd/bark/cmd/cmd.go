/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cmd implements bark's CLI: stream, receive and stats, each a
// thin wrapper gluing config+netmux onto the source/receiver/statsproto
// packages.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/barksync/bark/config"
)

// RootCmd is bark's entry point.
var RootCmd = &cobra.Command{
	Use:   "bark",
	Short: "LAN multicast audio streaming with time-synced playback",
}

var (
	configFlag    string
	multicastFlag string
	ifaceFlag     string
	formatFlag    string
	logLevelFlag  string
)

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "path to a YAML config file")
	RootCmd.PersistentFlags().StringVar(&multicastFlag, "multicast", "", "multicast group:port, e.g. 239.1.1.1:9100")
	RootCmd.PersistentFlags().StringVar(&ifaceFlag, "iface", "", "multicast interface name")
	RootCmd.PersistentFlags().StringVar(&formatFlag, "format", "", "audio format: F32LE, S16LE, or OPUS")
	RootCmd.PersistentFlags().StringVar(&logLevelFlag, "loglevel", "info", "log level: debug, info, warning, error")
}

// Execute runs the CLI, exiting the process on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func configureLogging() {
	switch logLevelFlag {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", logLevelFlag)
	}
}

// prepareConfig loads the optional config file, then lets the CLI's
// persistent flags override it (warning on every flag override), the
// same precedence cmd/sptp's prepareConfig follows, and finally fills
// fields still at their zero value from the BARK_* environment
// variables.
func prepareConfig() (*config.Config, error) {
	cfg := &config.Config{}
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if configFlag != "" {
		cfg, err = config.ReadConfig(configFlag)
		if err != nil {
			return nil, err
		}
	}
	if multicastFlag != "" && multicastFlag != cfg.Multicast {
		warn("multicast")
		cfg.Multicast = multicastFlag
	}
	if ifaceFlag != "" && ifaceFlag != cfg.Iface {
		warn("iface")
		cfg.Iface = ifaceFlag
	}
	if formatFlag != "" && formatFlag != cfg.Format {
		warn("format")
		cfg.Format = formatFlag
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM, the same
// graceful-shutdown shape cmd/ntpresponder uses.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warning("received shutdown signal")
		cancel()
	}()
	return ctx, cancel
}
