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

package dds

import (
	"sync"
	"time"

	"github.com/sabouaram/rtpsdds/rtps/endpoint"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// DataWriter publishes samples on one Topic. Reliability QoS picks its
// transport behavior: Reliable writers run a stateful writer with
// heartbeat/ACKNACK recovery (spec.md §4.4), BestEffort writers run the
// stateless, fire-and-forget form (spec.md §4.3).
type DataWriter struct {
	mu     sync.Mutex
	Guid   guid.Guid
	Topic  *Topic
	QoS    qos.Profile

	stateful  *endpoint.StatefulWriter
	stateless *endpoint.StatelessWriter

	status   *StatusCondition
	listener Listener
	matched  map[guid.Guid]bool
}

func newDataWriter(g guid.Guid, t *Topic, cfg qos.Profile, wcfg endpoint.StatefulWriterConfig, l Listener) *DataWriter {
	limits := cfg.ResourceLimits
	cache := history.NewWriterCache(cfg.History, limits)
	dw := &DataWriter{
		Guid:     g,
		Topic:    t,
		QoS:      cfg,
		status:   newStatusCondition(),
		listener: l,
		matched:  make(map[guid.Guid]bool),
	}
	if cfg.Reliability.Kind == qos.Reliable {
		dw.stateful = endpoint.NewStatefulWriter(g, cache, wcfg)
	} else {
		dw.stateless = endpoint.NewStatelessWriter(g, cache)
	}
	return dw
}

func (dw *DataWriter) newChange(kind history.ChangeKind, payload, key []byte) *history.CacheChange {
	var handle wire.InstanceHandle
	switch {
	case key != nil:
		handle = computeInstanceHandle(key)
	case dw.Topic.Key != nil && payload != nil:
		handle = computeInstanceHandle(dw.Topic.Key(payload))
	}
	return &history.CacheChange{
		Kind:           kind,
		WriterGuid:     dw.Guid,
		SourceTimestamp: time.Now(),
		HasTimestamp:   true,
		InstanceHandle: handle,
		InlineQos:      encodeStatusInfo(kind),
		Payload:        payload,
	}
}

// Write publishes a new Alive sample.
func (dw *DataWriter) Write(payload []byte) (wire.SequenceNumber, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.addChange(dw.newChange(history.Alive, payload, nil))
}

// Dispose announces the instance identified by key as
// NotAliveDisposed; no payload is carried.
func (dw *DataWriter) Dispose(key []byte) (wire.SequenceNumber, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.addChange(dw.newChange(history.NotAliveDisposed, nil, key))
}

// Unregister announces the instance identified by key as
// NotAliveUnregistered.
func (dw *DataWriter) Unregister(key []byte) (wire.SequenceNumber, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.addChange(dw.newChange(history.NotAliveUnregistered, nil, key))
}

func (dw *DataWriter) addChange(ch *history.CacheChange) (wire.SequenceNumber, error) {
	if dw.stateful != nil {
		return dw.stateful.NewChange(ch)
	}
	return dw.stateless.Cache.Add(ch)
}

// Send drains whatever DATA/DATA_FRAG/GAP traffic is currently owed to
// matched readers (spec.md §4.3, §4.4.1).
func (dw *DataWriter) Send() []message.Outbound {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stateful != nil {
		return dw.stateful.Send()
	}
	return dw.stateless.Period()
}

// Heartbeat emits a periodic HEARTBEAT for reliable matched readers; a
// no-op for best-effort writers, which have no notion of acknowledgment.
func (dw *DataWriter) Heartbeat() []message.Outbound {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stateful == nil {
		return nil
	}
	return dw.stateful.Heartbeat(false)
}

// LivelinessHeartbeat emits a liveliness-flagged HEARTBEAT to every
// reliable matched reader regardless of ack state, keeping the
// offered Liveliness lease alive without publishing data. The owning
// participant drains and flushes the result (see
// Participant.AssertLiveliness).
func (dw *DataWriter) LivelinessHeartbeat() []message.Outbound {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stateful == nil {
		return nil
	}
	return dw.stateful.Heartbeat(true)
}

// HandleAckNack feeds a received ACKNACK into the reliable writer
// state machine; a no-op for best-effort writers.
func (dw *DataWriter) HandleAckNack(readerGuid guid.Guid, an message.AckNack) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stateful != nil {
		dw.stateful.HandleAckNack(readerGuid, an)
	}
}

// HandleNackFrag retransmits the fragments a matched reader reported
// missing; a no-op for best-effort writers.
func (dw *DataWriter) HandleNackFrag(readerGuid guid.Guid, nf message.NackFrag) []message.Outbound {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stateful == nil {
		return nil
	}
	return dw.stateful.HandleNackFrag(readerGuid, nf)
}

// WaitForAcknowledgments reports whether every reliable matched reader
// has acknowledged the writer's current last change. Best-effort
// writers have nothing to wait for and always report true.
func (dw *DataWriter) WaitForAcknowledgments() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stateful == nil {
		return true
	}
	return dw.stateful.WaitForAcknowledgments()
}

// handleMatch applies one SEDP match/unmatch outcome: a compatible
// match adds the remote as a destination, an incompatible attempt only
// raises OfferedIncompatibleQos, and an unmatch removes a previously
// matched destination.
func (dw *DataWriter) handleMatch(remote guid.Guid, locators []wire.Locator, expectsInlineQos, reliable bool, incompat []qos.Incompatibility, present bool) {
	dw.mu.Lock()
	wasMatched := dw.matched[remote]
	dw.mu.Unlock()

	if !present {
		if wasMatched {
			dw.mu.Lock()
			delete(dw.matched, remote)
			if dw.stateful != nil {
				dw.stateful.MatchedReaderRemove(remote)
			}
			dw.mu.Unlock()
			dw.status.onPublicationMatched(remote, false)
			if dw.listener.OnPublicationMatched != nil {
				dw.listener.OnPublicationMatched(dw.status.getPublicationMatchedStatus())
			}
		}
		return
	}

	if len(incompat) > 0 {
		dw.status.onOfferedIncompatibleQos(incompat)
		if dw.listener.OnOfferedIncompatibleQos != nil {
			dw.listener.OnOfferedIncompatibleQos(dw.status.getOfferedIncompatibleQosStatus())
		}
		return
	}

	if wasMatched {
		return
	}
	dw.mu.Lock()
	dw.matched[remote] = true
	if dw.stateful != nil {
		dw.stateful.MatchedReaderAdd(remote, locators, expectsInlineQos, reliable)
	} else {
		for _, loc := range locators {
			dw.stateless.AddReaderLocator(loc, expectsInlineQos)
		}
	}
	dw.mu.Unlock()
	dw.status.onPublicationMatched(remote, true)
	if dw.listener.OnPublicationMatched != nil {
		dw.listener.OnPublicationMatched(dw.status.getPublicationMatchedStatus())
	}
}

// GetPublicationMatchedStatus reads and clears the accumulated delta,
// per the latch-until-read semantics resolved in spec.md §9.
func (dw *DataWriter) GetPublicationMatchedStatus() PublicationMatchedStatus {
	return dw.status.getPublicationMatchedStatus()
}

// GetOfferedIncompatibleQosStatus reads and clears the accumulated delta.
func (dw *DataWriter) GetOfferedIncompatibleQosStatus() OfferedIncompatibleQosStatus {
	return dw.status.getOfferedIncompatibleQosStatus()
}

// StatusCondition returns the condition a WaitSet can attach to in
// order to block until one of this writer's enabled statuses changes.
func (dw *DataWriter) StatusCondition() *StatusCondition {
	return dw.status
}
