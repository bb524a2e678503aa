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
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/barksync/bark/netmux"
	"github.com/barksync/bark/node"
	"github.com/barksync/bark/receiver"
)

var (
	receiveDevice  string
	receiveLatency time.Duration
)

func init() {
	RootCmd.AddCommand(receiveCmd)
	receiveCmd.Flags().StringVar(&receiveDevice, "device", "", "playback device name")
	receiveCmd.Flags().DurationVar(&receiveLatency, "buffer-latency", 0, "buffer-latency hint for the playback sink")
}

func runReceive(*cobra.Command, []string) {
	configureLogging()
	cfg, err := prepareConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if receiveDevice != "" {
		cfg.ReceiveDevice = receiveDevice
	}
	if receiveLatency != 0 {
		cfg.ReceiveOutputLatency = receiveLatency
	}

	group, err := resolveUDPAddr(cfg.Multicast)
	if err != nil {
		log.Fatalf("resolving multicast address: %v", err)
	}
	iface, err := resolveIface(cfg.Iface)
	if err != nil {
		log.Fatalf("resolving interface: %v", err)
	}

	mux, err := netmux.New(netmux.Config{Group: group, Unicast: &net.UDPAddr{}, Iface: iface})
	if err != nil {
		log.Fatalf("binding socket: %v", err)
	}
	defer mux.Close()

	r, err := receiver.New(receiver.Config{
		Mux:          mux,
		Sink:         &discardSink{},
		NewResampler: func() receiver.Resampler { return identityResampler{} },
	})
	if err != nil {
		log.Fatalf("creating receiver: %v", err)
	}

	log.Infof("receiving from %s (device %q)", group, cfg.ReceiveDevice)
	if rt, err := node.CollectRuntimeStats(); err != nil {
		log.Warnf("collecting runtime stats: %v", err)
	} else {
		log.Infof("runtime: %d goroutines, %d MB RSS", rt.Goroutines, rt.RSSBytes/(1<<20))
	}
	ctx, cancel := signalContext()
	defer cancel()
	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("receiver stopped: %v", err)
	}
}

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "join the multicast group and play the active stream",
	Run:   runReceive,
}
