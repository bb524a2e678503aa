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

// Package netmux multiplexes bark's two sockets: a unicast socket used
// for both TX and unicast RX (time-handshake replies, stats replies),
// and a multicast RX socket joined to the stream group. Both source and
// receiver nodes use the same Mux; which paths they exercise differs.
package netmux

import (
	"context"
	"fmt"
	"net"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// DefaultTOS is the DSCP EF (Expedited Forwarding) codepoint, 0xB8,
// marked on every packet bark transmits so LAN switches prioritize it
// over best-effort traffic.
const DefaultTOS = 0xB8

// Config describes the addresses and interface a Mux should bind.
type Config struct {
	// Group is the multicast group/port audio and time packets travel on.
	Group *net.UDPAddr
	// Unicast is the local address the TX/unicast-RX socket binds to.
	// A zero port lets the kernel assign one.
	Unicast *net.UDPAddr
	// Iface is the interface multicast membership is joined on. Nil
	// means the kernel's default multicast interface.
	Iface *net.Interface
	// TOS is the IP_TOS value marked on outgoing packets.
	// Zero means DefaultTOS.
	TOS int
}

// Mux owns the two sockets a bark node needs.
type Mux struct {
	group *net.UDPAddr

	tx *net.UDPConn // unicast TX + unicast RX
	mc *net.UDPConn // multicast RX only
}

// New binds both sockets and joins the multicast group.
func New(cfg Config) (*Mux, error) {
	tos := cfg.TOS
	if tos == 0 {
		tos = DefaultTOS
	}

	tx, err := net.ListenUDP("udp4", cfg.Unicast)
	if err != nil {
		return nil, fmt.Errorf("netmux: binding unicast socket: %w", err)
	}
	if err := setTOS(tx, tos); err != nil {
		log.Warnf("netmux: failed to set TOS on unicast socket: %v", err)
	}
	if err := setBroadcast(tx); err != nil {
		log.Warnf("netmux: failed to set SO_BROADCAST on unicast socket: %v", err)
	}
	if err := tx.SetWriteBuffer(1 << 20); err != nil {
		log.Warnf("netmux: failed to set write buffer: %v", err)
	}

	mc, err := listenMulticast(cfg.Group, cfg.Iface)
	if err != nil {
		tx.Close()
		return nil, fmt.Errorf("netmux: joining multicast group: %w", err)
	}

	return &Mux{group: cfg.Group, tx: tx, mc: mc}, nil
}

func listenMulticast(group *net.UDPAddr, iface *net.Interface) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", group.Port))
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)
	if err := conn.SetReadBuffer(1 << 20); err != nil {
		log.Warnf("netmux: failed to set multicast read buffer: %v", err)
	}

	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(iface, group); err != nil {
		conn.Close()
		return nil, fmt.Errorf("joining group %s: %w", group, err)
	}
	if err := p.SetMulticastLoopback(true); err != nil {
		log.Warnf("netmux: failed to enable multicast loopback: %v", err)
	}
	return conn, nil
}

func setTOS(conn *net.UDPConn, tos int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, tos)
	}); err != nil {
		return err
	}
	return sockErr
}

// setBroadcast marks the socket broadcast-capable alongside
// SO_REUSEADDR, even though bark only ever targets a specific
// multicast/unicast address: belt-and-suspenders for networks where a
// receiver resolves the group through a broadcast fallback.
func setBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

// SendMulticast writes b to the stream group.
func (m *Mux) SendMulticast(b []byte) error {
	_, err := m.tx.WriteToUDP(b, m.group)
	return err
}

// SendUnicast writes b to a specific peer address.
func (m *Mux) SendUnicast(b []byte, addr *net.UDPAddr) error {
	_, err := m.tx.WriteToUDP(b, addr)
	return err
}

// RecvMulticast reads the next datagram from the multicast socket
// (AUDIO and TIME-broadcast packets arrive here).
func (m *Mux) RecvMulticast(buf []byte) (int, *net.UDPAddr, error) {
	return m.mc.ReadFromUDP(buf)
}

// RecvUnicast reads the next datagram from the unicast socket (TIME
// handshake replies and STATS traffic arrive here).
func (m *Mux) RecvUnicast(buf []byte) (int, *net.UDPAddr, error) {
	return m.tx.ReadFromUDP(buf)
}

// LocalAddr returns the address the unicast socket is bound to, useful
// for telling peers where to unicast replies.
func (m *Mux) LocalAddr() *net.UDPAddr {
	return m.tx.LocalAddr().(*net.UDPAddr)
}

// Close releases both sockets.
func (m *Mux) Close() error {
	err1 := m.tx.Close()
	err2 := m.mc.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
