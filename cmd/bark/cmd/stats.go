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
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/barksync/bark/netmux"
	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/statsproto"
)

// redrawInterval is how often the stats table is repainted; decoupled
// from statsproto.BroadcastInterval since redraw only needs to keep up
// with what a human can read.
const redrawInterval = 500 * time.Millisecond

func runStats(*cobra.Command, []string) {
	configureLogging()
	cfg, err := prepareConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
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

	client := statsproto.NewClient(mux)
	ctx, cancel := signalContext()
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return client.Run(ctx) })
	eg.Go(func() error { return redrawLoop(ctx, client) })
	if err := eg.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("stats client stopped: %v", err)
	}
}

func redrawLoop(ctx context.Context, client *statsproto.Client) error {
	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			renderStats(client.Snapshot())
		}
	}
}

func renderStats(peers []statsproto.Peer) {
	sort.Slice(peers, func(i, j int) bool { return peers[i].Addr < peers[j].Addr })

	table := tablewriter.NewWriter(os.Stdout)
	table.SetColWidth(20)
	table.SetHeader([]string{
		"address", "node", "role", "sid", "status", "offset(us)", "latency(us)", "buffer",
		"drops", "resets", "misses",
	})
	for _, p := range peers {
		role := "source"
		if p.Reply.IsReceiver {
			role = "receiver"
		}
		status := ""
		offset := ""
		latency := ""
		buffer := ""
		drops := ""
		resets := ""
		misses := ""
		if p.Reply.IsReceiver {
			status = colorizeStatus(p.Reply.Receiver.Status)
			if p.Reply.Receiver.HasPredictOffset() {
				offset = fmt.Sprintf("%d", p.Reply.Receiver.PredictOffsetUs)
			}
			if p.Reply.Receiver.HasNetworkLatency() {
				latency = fmt.Sprintf("%d", p.Reply.Receiver.NetworkLatency)
			}
			if p.Reply.Receiver.HasBufferLength() {
				buffer = fmt.Sprintf("%d", p.Reply.Receiver.BufferLength)
			}
			drops = fmt.Sprintf("%d", p.Reply.Receiver.PacketsDropped)
			resets = fmt.Sprintf("%d", p.Reply.Receiver.StreamResets)
			misses = fmt.Sprintf("%d", p.Reply.Receiver.Misses)
		}
		table.Append([]string{
			p.Addr,
			fmt.Sprintf("%s@%s", p.Reply.Node.Username, p.Reply.Node.Hostname),
			role,
			p.Reply.SID.String(),
			status,
			offset,
			latency,
			buffer,
			drops,
			resets,
			misses,
		})
	}
	table.Render()
}

// isTerminal is resolved once so a piped/redirected stats stream stays
// plain text, the same gate sa53fw's main applies before reaching for
// color.
var isTerminal = term.IsTerminal(int(os.Stdout.Fd()))

// colorizeStatus paints a peer's stream status: green for steady-state,
// yellow while converging, red once frames are being missed.
func colorizeStatus(s protocol.StreamStatus) string {
	text := s.String()
	if !isTerminal {
		return text
	}
	switch s {
	case protocol.StatusSync:
		return color.GreenString(text)
	case protocol.StatusSeek, protocol.StatusSlew:
		return color.YellowString(text)
	case protocol.StatusMiss:
		return color.RedString(text)
	default:
		return text
	}
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "poll the multicast group and print a live stats table",
	Run:   runStats,
}

func init() {
	RootCmd.AddCommand(statsCmd)
}
