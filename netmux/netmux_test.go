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

package netmux

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// TestMuxMulticastRoundTrip joins the loopback interface to a multicast
// group and confirms a packet sent to the group is observed on the
// multicast socket. Skipped where the sandbox doesn't allow multicast
// group membership on loopback.
func TestMuxMulticastRoundTrip(t *testing.T) {
	lo, err := net.InterfaceByName("lo")
	if err != nil {
		t.Skipf("no loopback interface available: %v", err)
	}

	group := &net.UDPAddr{IP: net.IPv4(239, 1, 2, 3), Port: 0}
	// pick an ephemeral port by binding once, then reuse its port number.
	probe, err := net.ListenUDP("udp4", &net.UDPAddr{})
	require.NoError(t, err)
	group.Port = probe.LocalAddr().(*net.UDPAddr).Port
	probe.Close()

	mux, err := New(Config{
		Group:   group,
		Unicast: &net.UDPAddr{},
		Iface:   lo,
	})
	if err != nil {
		t.Skipf("multicast join unavailable in this environment: %v", err)
	}
	defer mux.Close()

	require.NoError(t, mux.SendMulticast([]byte("hello")))

	buf := make([]byte, 64)
	mux.mc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := mux.RecvMulticast(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

// TestMuxSetsBroadcastAndMulticastLoopback confirms New wires up two
// socket options alongside SO_REUSEADDR/TOS: SO_BROADCAST on the
// unicast socket and multicast loopback on the multicast socket.
func TestMuxSetsBroadcastAndMulticastLoopback(t *testing.T) {
	lo, err := net.InterfaceByName("lo")
	if err != nil {
		t.Skipf("no loopback interface available: %v", err)
	}

	group := &net.UDPAddr{IP: net.IPv4(239, 1, 2, 4), Port: 0}
	probe, err := net.ListenUDP("udp4", &net.UDPAddr{})
	require.NoError(t, err)
	group.Port = probe.LocalAddr().(*net.UDPAddr).Port
	probe.Close()

	mux, err := New(Config{
		Group:   group,
		Unicast: &net.UDPAddr{},
		Iface:   lo,
	})
	if err != nil {
		t.Skipf("multicast join unavailable in this environment: %v", err)
	}
	defer mux.Close()

	raw, err := mux.tx.SyscallConn()
	require.NoError(t, err)
	var broadcast int
	var getErr error
	require.NoError(t, raw.Control(func(fd uintptr) {
		broadcast, getErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST)
	}))
	require.NoError(t, getErr)
	require.NotZero(t, broadcast)

	loopback, err := ipv4.NewPacketConn(mux.mc).MulticastLoopback()
	require.NoError(t, err)
	require.True(t, loopback)
}
