/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package loopback implements an in-process transport.Transport used
// by the test suite and by cmd/rtpsctl: participants registered on the
// same Network exchange datagrams through Go channels instead of UDP
// sockets, optionally dropping every Nth one to exercise retransmission
// (spec.md §8, scenario 2 "reliable recovery").
package loopback

import (
	"context"
	"sync"

	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/sabouaram/rtpsdds/transport"
)

// Network is the shared medium a set of loopback Transports register
// on. It is the test analogue of the physical UDP broadcast domain.
type Network struct {
	mu        sync.Mutex
	nextPort  uint32
	peers     map[wire.Locator]*Transport
	dropEvery int // when > 0, drop every Nth datagram written (1-indexed)
	sent      int
}

// NewNetwork creates an empty medium. startPort seeds the locator port
// assigned to the first Transport registered on it.
func NewNetwork(startPort uint32) *Network {
	return &Network{nextPort: startPort, peers: make(map[wire.Locator]*Transport)}
}

// DropEvery configures the network to silently discard every Nth
// datagram written (n<=0 disables dropping), for reliability tests.
func (n *Network) DropEvery(every int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropEvery = every
	n.sent = 0
}

// NewTransport registers a new participant on the network and returns
// its Transport, bound to a fresh loopback locator.
func (n *Network) NewTransport() *Transport {
	n.mu.Lock()
	loc := wire.Locator{Kind: wire.LocatorKindUDPv4, Port: n.nextPort}
	loc.Address[12] = 127
	loc.Address[15] = 1
	n.nextPort++
	t := &Transport{net: n, local: loc, inbox: make(chan transport.Datagram, 256)}
	n.peers[loc] = t
	n.mu.Unlock()
	return t
}

// deliver hands dg to the transport registered at to; dg is dropped
// when no transport is registered there or its inbox is full.
func (n *Network) deliver(to wire.Locator, dg transport.Datagram) {
	n.mu.Lock()
	peer, ok := n.peers[to]
	n.mu.Unlock()
	if !ok {
		return
	}
	select {
	case peer.inbox <- dg:
	default:
		// backlog full: drop, matching a lossy UDP socket under load.
	}
}

// Transport is one participant's endpoint on a loopback Network.
type Transport struct {
	net   *Network
	local wire.Locator
	inbox chan transport.Datagram
	group *multicastGroup
}

type multicastGroup struct {
	mu      sync.Mutex
	members []*Transport
}

// JoinMulticast adds t to the group addressed by locator, so a Write
// to that locator is fanned out to every joined member (modeling IP
// multicast for SPDP).
func (n *Network) JoinMulticast(locator wire.Locator, t *Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	g, ok := n.multicastGroups()[locator]
	if !ok {
		g = &multicastGroup{}
		n.setMulticastGroup(locator, g)
	}
	g.mu.Lock()
	g.members = append(g.members, t)
	g.mu.Unlock()
}

// groupsByNetwork lazily backs the multicast registry; kept on Network via a
// side map to avoid growing the exported struct's surface.
var groupsMu sync.Mutex
var groupsByNetwork = map[*Network]map[wire.Locator]*multicastGroup{}

func (n *Network) multicastGroups() map[wire.Locator]*multicastGroup {
	groupsMu.Lock()
	defer groupsMu.Unlock()
	g, ok := groupsByNetwork[n]
	if !ok {
		g = map[wire.Locator]*multicastGroup{}
		groupsByNetwork[n] = g
	}
	return g
}

func (n *Network) setMulticastGroup(locator wire.Locator, g *multicastGroup) {
	groupsMu.Lock()
	defer groupsMu.Unlock()
	groupsByNetwork[n][locator] = g
}

// Write implements transport.Transport.
func (t *Transport) Write(_ context.Context, locator wire.Locator, data []byte) error {
	t.net.mu.Lock()
	t.net.sent++
	drop := t.net.dropEvery > 0 && t.net.sent%t.net.dropEvery == 0
	t.net.mu.Unlock()
	if drop {
		return nil
	}

	if g, ok := t.net.multicastGroups()[locator]; ok {
		g.mu.Lock()
		members := append([]*Transport{}, g.members...)
		g.mu.Unlock()
		for _, m := range members {
			t.net.deliver(m.local, transport.Datagram{From: t.local, Data: data})
		}
		return nil
	}

	t.net.deliver(locator, transport.Datagram{From: t.local, Data: data})
	return nil
}

// Read implements transport.Transport.
func (t *Transport) Read(ctx context.Context) (transport.Datagram, error) {
	select {
	case dg := <-t.inbox:
		return dg, nil
	case <-ctx.Done():
		return transport.Datagram{}, ctx.Err()
	}
}

// LocalLocator implements transport.Transport.
func (t *Transport) LocalLocator() wire.Locator { return t.local }

// Close implements transport.Transport.
func (t *Transport) Close() error { return nil }

var _ transport.Transport = (*Transport)(nil)
