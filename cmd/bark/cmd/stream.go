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

package cmd

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/barksync/bark/netmux"
	"github.com/barksync/bark/node"
	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/source"
)

var (
	streamDevice string
	streamDelay  time.Duration
	streamPrio   int
)

func init() {
	RootCmd.AddCommand(streamCmd)
	streamCmd.Flags().StringVar(&streamDevice, "device", "", "capture device name")
	streamCmd.Flags().DurationVar(&streamDelay, "delay", 0, "presentation delay added to each packet's PTS")
	streamCmd.Flags().IntVar(&streamPrio, "priority", 0, "takeover priority this source advertises")
}

func runStream(*cobra.Command, []string) {
	configureLogging()
	cfg, err := prepareConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if streamDevice != "" {
		cfg.SourceDevice = streamDevice
	}
	if streamDelay != 0 {
		cfg.SourceDelay = streamDelay
	}

	group, err := resolveUDPAddr(cfg.Multicast)
	if err != nil {
		log.Fatalf("resolving multicast address: %v", err)
	}
	iface, err := resolveIface(cfg.Iface)
	if err != nil {
		log.Fatalf("resolving interface: %v", err)
	}
	format, err := protocol.ParseFormat(cfg.Format)
	if err != nil {
		log.Fatalf("parsing format: %v", err)
	}

	mux, err := netmux.New(netmux.Config{Group: group, Unicast: &net.UDPAddr{}, Iface: iface})
	if err != nil {
		log.Fatalf("binding socket: %v", err)
	}
	defer mux.Close()

	pipeline, err := source.New(source.Config{
		Mux:      mux,
		Capture:  &toneSource{},
		Format:   format,
		Priority: protocol.Priority(streamPrio),
		PTSDelay: cfg.SourceDelay,
	})
	if err != nil {
		log.Fatalf("creating pipeline: %v", err)
	}

	log.Infof("streaming %s to %s (device %q, priority %d)", format, group, cfg.SourceDevice, streamPrio)
	if rt, err := node.CollectRuntimeStats(); err != nil {
		log.Warnf("collecting runtime stats: %v", err)
	} else {
		log.Infof("runtime: %d goroutines, %d MB RSS", rt.Goroutines, rt.RSSBytes/(1<<20))
	}
	ctx, cancel := signalContext()
	defer cancel()
	if err := pipeline.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("pipeline stopped: %v", err)
	}
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "capture and broadcast audio to the multicast group",
	Run:   runStream,
}

func resolveUDPAddr(s string) (*net.UDPAddr, error) {
	if s == "" {
		return nil, fmt.Errorf("no multicast address configured (set --multicast or BARK_MULTICAST)")
	}
	return net.ResolveUDPAddr("udp4", s)
}

func resolveIface(name string) (*net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	return net.InterfaceByName(name)
}
