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

// Command bark-exporter polls a bark multicast group over the stats
// protocol and re-exposes every peer's reply as Prometheus gauges,
// the same scrape-and-republish shape ptp/sptp/stats.PrometheusExporter
// uses for sptp's own monitoring endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/barksync/bark/netmux"
	"github.com/barksync/bark/node"
	"github.com/barksync/bark/statsproto"
)

func main() {
	var (
		multicastFlag string
		ifaceFlag     string
		listenFlag    int
		verboseFlag   bool
	)
	flag.StringVar(&multicastFlag, "multicast", "", "multicast group:port to poll, e.g. 239.1.1.1:9100")
	flag.StringVar(&ifaceFlag, "iface", "", "multicast interface name")
	flag.IntVar(&listenFlag, "exporterport", 6943, "port the prometheus metrics exporter listens on")
	flag.BoolVar(&verboseFlag, "verbose", false, "verbose output")
	flag.Parse()

	log.SetLevel(log.InfoLevel)
	if verboseFlag {
		log.SetLevel(log.DebugLevel)
	}
	if multicastFlag == "" {
		log.Fatal("missing -multicast")
	}

	group, err := net.ResolveUDPAddr("udp4", multicastFlag)
	if err != nil {
		log.Fatalf("resolving multicast address: %v", err)
	}
	var iface *net.Interface
	if ifaceFlag != "" {
		iface, err = net.InterfaceByName(ifaceFlag)
		if err != nil {
			log.Fatalf("resolving interface: %v", err)
		}
	}
	mux, err := netmux.New(netmux.Config{Group: group, Unicast: &net.UDPAddr{}, Iface: iface})
	if err != nil {
		log.Fatalf("binding socket: %v", err)
	}
	defer mux.Close()

	client := statsproto.NewClient(mux)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("stats client stopped: %v", err)
		}
	}()

	e := newExporter(client)
	go e.pollForever(ctx, time.Second)

	mux2 := http.NewServeMux()
	mux2.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", listenFlag), mux2))
}

type exporter struct {
	client   *statsproto.Client
	registry *prometheus.Registry

	offset  *prometheus.GaugeVec
	latency *prometheus.GaugeVec
	buffer  *prometheus.GaugeVec
	status  *prometheus.GaugeVec
	drops   *prometheus.GaugeVec
	resets  *prometheus.GaugeVec
	misses  *prometheus.GaugeVec

	uptime     prometheus.Gauge
	goroutines prometheus.Gauge
	rss        prometheus.Gauge
	cpuPercent prometheus.Gauge
	heapAlloc  prometheus.Gauge
	numGC      prometheus.Gauge
}

func newExporter(client *statsproto.Client) *exporter {
	labels := []string{"addr", "node", "role", "sid"}
	e := &exporter{
		client:   client,
		registry: prometheus.NewRegistry(),
		offset: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bark_predict_offset_us", Help: "receiver's predicted clock offset, microseconds",
		}, labels),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bark_network_latency_us", Help: "receiver's estimated one-way network latency, microseconds",
		}, labels),
		buffer: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bark_buffer_length_samples", Help: "receiver's jitter queue depth, samples",
		}, labels),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bark_stream_status", Help: "receiver's playback status as a protocol.StreamStatus value",
		}, labels),
		drops: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bark_packets_dropped_total", Help: "packets the receiver's jitter queue has discarded, lifetime",
		}, labels),
		resets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bark_stream_resets_total", Help: "forced jitter queue resyncs, lifetime",
		}, labels),
		misses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bark_misses_total", Help: "playback ticks with nothing due to present, lifetime",
		}, labels),
		uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bark_exporter_uptime_seconds", Help: "time since the exporter process started, seconds",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bark_exporter_goroutines", Help: "number of goroutines running in the exporter process",
		}),
		rss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bark_exporter_rss_bytes", Help: "resident set size of the exporter process, bytes",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bark_exporter_cpu_percent", Help: "CPU usage of the exporter process, percent",
		}),
		heapAlloc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bark_exporter_heap_alloc_bytes", Help: "Go heap bytes allocated and in use by the exporter process",
		}),
		numGC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bark_exporter_num_gc", Help: "number of completed garbage collection cycles in the exporter process",
		}),
	}
	e.registry.MustRegister(
		e.offset, e.latency, e.buffer, e.status, e.drops, e.resets, e.misses,
		e.uptime, e.goroutines, e.rss, e.cpuPercent, e.heapAlloc, e.numGC,
	)
	return e
}

func (e *exporter) pollForever(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.scrape()
			e.scrapeRuntime()
		}
	}
}

// scrapeRuntime reports the exporter's own process health, the one node
// whose runtime bark-exporter can observe directly without going
// through the stats protocol.
func (e *exporter) scrapeRuntime() {
	stats, err := node.CollectRuntimeStats()
	if err != nil {
		log.Warnf("collecting runtime stats: %v", err)
	}
	e.uptime.Set(float64(stats.UptimeSeconds))
	e.goroutines.Set(float64(stats.Goroutines))
	e.rss.Set(float64(stats.RSSBytes))
	e.cpuPercent.Set(stats.CPUPercent)
	e.heapAlloc.Set(float64(stats.HeapAlloc))
	e.numGC.Set(float64(stats.NumGC))
}

func (e *exporter) scrape() {
	for _, p := range e.client.Snapshot() {
		if !p.Reply.IsReceiver {
			continue
		}
		role := "receiver"
		labels := prometheus.Labels{
			"addr": p.Addr,
			"node": fmt.Sprintf("%s@%s", p.Reply.Node.Username, p.Reply.Node.Hostname),
			"role": role,
			"sid":  p.Reply.SID.String(),
		}
		if p.Reply.Receiver.HasPredictOffset() {
			e.offset.With(labels).Set(float64(p.Reply.Receiver.PredictOffsetUs))
		}
		if p.Reply.Receiver.HasNetworkLatency() {
			e.latency.With(labels).Set(float64(p.Reply.Receiver.NetworkLatency))
		}
		if p.Reply.Receiver.HasBufferLength() {
			e.buffer.With(labels).Set(float64(p.Reply.Receiver.BufferLength))
		}
		e.status.With(labels).Set(float64(p.Reply.Receiver.Status))
		e.drops.With(labels).Set(float64(p.Reply.Receiver.PacketsDropped))
		e.resets.With(labels).Set(float64(p.Reply.Receiver.StreamResets))
		e.misses.With(labels).Set(float64(p.Reply.Receiver.Misses))
	}
}
