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

package spdp

import (
	"sync"
	"time"

	"github.com/nabbar/golib/duration"
	"github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"

	"github.com/sabouaram/rtpsdds/actor"
	"github.com/sabouaram/rtpsdds/rtps/endpoint"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// PeerCallback is invoked once per distinct remote participant
// announcement, and again (with alive=false) when its lease expires.
type PeerCallback func(data ParticipantBuiltinTopicData, alive bool)

// Agent drives the built-in SPDP writer/reader pair for one local
// participant: periodic announcement, lease tracking and de-duplication
// of already-known peers (spec.md §4.7).
type Agent struct {
	mu    sync.Mutex
	log   logger.Logger
	self  ParticipantBuiltinTopicData
	ex    *actor.Executor

	writer *endpoint.StatelessWriter
	reader *endpoint.StatelessReader

	announceHandle *actor.TimerHandle
	leases         map[guid.Guid]*actor.TimerHandle
	known          map[guid.Guid]ParticipantBuiltinTopicData

	leaseDuration time.Duration
	onPeer        PeerCallback
}

// NewAgent builds an SPDP agent. writerCache/readerCache back the
// built-in stateless writer/reader; callers own their lifecycle (they
// are ordinary rtps/history caches, same as any user endpoint).
func NewAgent(ex *actor.Executor, log logger.Logger, self ParticipantBuiltinTopicData, leaseDuration time.Duration,
	writerCache *history.WriterCache, readerCache *history.ReaderCache, onPeer PeerCallback) *Agent {
	writerGuid := guid.Guid{Prefix: self.Guid.Prefix, EntityId: guid.EntityIdSPDPBuiltinParticipantWriter}
	readerGuid := guid.Guid{Prefix: self.Guid.Prefix, EntityId: guid.EntityIdSPDPBuiltinParticipantReader}
	return &Agent{
		log:           log,
		self:          self,
		ex:            ex,
		writer:        endpoint.NewStatelessWriter(writerGuid, writerCache),
		reader:        endpoint.NewStatelessReader(readerGuid, readerCache),
		leases:        make(map[guid.Guid]*actor.TimerHandle),
		known:         make(map[guid.Guid]ParticipantBuiltinTopicData),
		leaseDuration: leaseDuration,
		onPeer:        onPeer,
	}
}

// AddDestination registers the multicast (or unicast) locator SPDP
// announcements go to.
func (a *Agent) AddDestination(loc wire.Locator) {
	a.writer.AddReaderLocator(loc, false)
}

// Announce publishes the local participant data once, assigning it the
// next sequence number in the built-in writer's history.
func (a *Agent) Announce() error {
	payload := Encode(a.self)
	_, err := a.writer.Cache.Add(&history.CacheChange{
		Kind:           history.Alive,
		WriterGuid:     a.writer.Guid,
		InstanceHandle: instanceHandle(a.self.Guid),
		Payload:        payload,
	})
	return err
}

// StartAnnouncing schedules periodic Announce()+Period() calls every
// interval, on the agent's executor. send receives one fully framed
// RTPS datagram (header plus submessages) per locator, ready for a
// transport.Transport.Write.
func (a *Agent) StartAnnouncing(interval time.Duration, send func(loc wire.Locator, data []byte)) {
	sender := message.NewSender(message.Header{
		ProtocolVersion: message.ProtocolVersion,
		VendorID:        message.VendorID,
		GuidPrefix:      a.self.Guid.Prefix,
	}, message.DefaultMTU)

	var tick func()
	tick = func() {
		if err := a.Announce(); err != nil {
			a.log.Entry(loglvl.WarnLevel, "spdp: announce failed").ErrorAdd(true, err).Log()
		}
		for loc, datagrams := range sender.Batch(a.writer.Period()) {
			for _, dg := range datagrams {
				send(loc, dg)
			}
		}
		a.announceHandle = a.ex.Timers().After(interval, func() { a.ex.Submit(tick) })
	}
	a.ex.Submit(tick)
}

// Stop cancels the announcement loop and every outstanding lease timer.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.announceHandle.Cancel()
	for _, h := range a.leases {
		h.Cancel()
	}
}

// HandleDatagram processes one decoded DATA submessage believed to
// carry an SPDP announcement; it updates lease state and invokes the
// registered PeerCallback for new or changed peers (spec.md §4.7,
// "Open questions — domain-id in SPDP").
func (a *Agent) HandleDatagram(payload []byte, expectedDomainID int) {
	data, err := Decode(payload)
	if err != nil {
		a.log.Entry(loglvl.WarnLevel, "spdp: dropping malformed announcement").ErrorAdd(true, err).Log()
		return
	}
	if data.DomainID != expectedDomainID {
		a.log.Entry(loglvl.WarnLevel, "spdp: dropping announcement for foreign domain").Log()
		return
	}
	if data.Guid == a.self.Guid {
		return
	}

	a.mu.Lock()
	prev, known := a.known[data.Guid]
	changed := !known || !sameParticipantData(prev, data)
	a.known[data.Guid] = data
	if h, ok := a.leases[data.Guid]; ok {
		h.Cancel()
	}
	lease := a.leaseDuration
	if data.LeaseDuration > 0 {
		lease = data.LeaseDuration
	}
	a.leases[data.Guid] = a.ex.Timers().After(lease, func() { a.ex.Submit(func() { a.expirePeer(data.Guid) }) })
	a.mu.Unlock()

	if changed {
		a.log.Entry(loglvl.InfoLevel, "spdp: peer announced").
			FieldAdd("peer", data.Guid.String()).
			FieldAdd("lease", duration.ParseDuration(lease).String()).
			Log()
	}
	if changed && a.onPeer != nil {
		a.onPeer(data, true)
	}
}

func (a *Agent) expirePeer(g guid.Guid) {
	a.mu.Lock()
	data, ok := a.known[g]
	delete(a.known, g)
	delete(a.leases, g)
	a.mu.Unlock()
	if ok {
		a.log.Entry(loglvl.WarnLevel, "spdp: peer lease expired").
			FieldAdd("peer", g.String()).
			FieldAdd("lease", duration.ParseDuration(a.leaseDuration).String()).
			Log()
	}
	if ok && a.onPeer != nil {
		a.onPeer(data, false)
	}
}

func sameParticipantData(a, b ParticipantBuiltinTopicData) bool {
	if a.Guid != b.Guid || a.AvailableBuiltinEndpoints != b.AvailableBuiltinEndpoints || a.DomainID != b.DomainID {
		return false
	}
	if len(a.MetatrafficUnicastLocators) != len(b.MetatrafficUnicastLocators) {
		return false
	}
	for i := range a.MetatrafficUnicastLocators {
		if a.MetatrafficUnicastLocators[i] != b.MetatrafficUnicastLocators[i] {
			return false
		}
	}
	return true
}

func instanceHandle(g guid.Guid) wire.InstanceHandle {
	var h wire.InstanceHandle
	copy(h[0:12], g.Prefix[:])
	copy(h[12:15], g.EntityId.Key[:])
	h[15] = byte(g.EntityId.Kind)
	return h
}
