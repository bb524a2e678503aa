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

// Package config describes bark's run options: a YAML-loadable Config
// struct overridable by CLI flags and BARK_* environment variables, the
// same layered shape sptp/client.Config uses.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config holds everything a bark node needs to bind its socket and run
// one of the stream/receive roles.
type Config struct {
	Multicast            string        `yaml:"multicast"`              // host:port of the stream group
	Iface                string        `yaml:"iface"`                  // multicast interface name, empty means kernel default
	Format               string        `yaml:"format"`                 // F32LE, S16LE, or OPUS
	SourceDevice         string        `yaml:"source_device"`          // capture device name
	SourceDelay          time.Duration `yaml:"source_delay"`           // PTS delay added at the source
	SourcePriority       int           `yaml:"source_priority"`        // takeover priority this source advertises
	ReceiveDevice        string        `yaml:"receive_device"`         // playback device name
	ReceiveOutputLatency time.Duration `yaml:"receive_output_latency"` // buffer-latency hint for the sink
}

// ReadConfig loads a Config from a YAML file.
func ReadConfig(path string) (*Config, error) {
	c := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return c, nil
}

// envOverrides is the BARK_* environment variables named in the
// external interfaces, each applied only when the matching field was
// left at its zero value by the config file and CLI flags.
var envOverrides = []struct {
	name string
	set  func(c *Config, v string)
}{
	{"BARK_MULTICAST", func(c *Config, v string) {
		if c.Multicast == "" {
			c.Multicast = v
		}
	}},
	{"BARK_SOURCE_DEVICE", func(c *Config, v string) {
		if c.SourceDevice == "" {
			c.SourceDevice = v
		}
	}},
	{"BARK_SOURCE_DELAY_MS", func(c *Config, v string) {
		var ms int
		if _, err := fmt.Sscanf(v, "%d", &ms); err == nil && c.SourceDelay == 0 {
			c.SourceDelay = time.Duration(ms) * time.Millisecond
		}
	}},
	{"BARK_RECEIVE_DEVICE", func(c *Config, v string) {
		if c.ReceiveDevice == "" {
			c.ReceiveDevice = v
		}
	}},
	{"BARK_RECEIVE_OUTPUT_LATENCY_MS", func(c *Config, v string) {
		var ms int
		if _, err := fmt.Sscanf(v, "%d", &ms); err == nil && c.ReceiveOutputLatency == 0 {
			c.ReceiveOutputLatency = time.Duration(ms) * time.Millisecond
		}
	}},
}

// ApplyEnv overrides zero-valued fields from the BARK_* environment
// variables. It logs nothing itself.
func (c *Config) ApplyEnv() {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.set(c, v)
		}
	}
}
