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

	"github.com/sabouaram/rtpsdds/rtps/endpoint"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// DataReader subscribes to one Topic. Reliability QoS picks its
// transport behavior the same way DataWriter does (spec.md §4.5, §4.3).
type DataReader struct {
	mu     sync.Mutex
	Guid   guid.Guid
	Topic  *Topic
	QoS    qos.Profile

	stateful  *endpoint.StatefulReader
	stateless *endpoint.StatelessReader

	writerLocators map[guid.Guid][]wire.Locator

	status   *StatusCondition
	listener Listener
	matched  map[guid.Guid]bool
}

func newDataReader(g guid.Guid, t *Topic, cfg qos.Profile, rcfg endpoint.StatefulReaderConfig, l Listener) *DataReader {
	keepAll := cfg.History.Kind == qos.HistoryKeepAll
	depth := cfg.History.Depth
	cache := history.NewReaderCache(keepAll, depth)
	if cfg.DestinationOrder == qos.DestinationOrderBySourceTimestamp {
		cache.OrderBySourceTimestamp()
	}
	dr := &DataReader{
		Guid:           g,
		Topic:          t,
		QoS:            cfg,
		writerLocators: make(map[guid.Guid][]wire.Locator),
		status:         newStatusCondition(),
		listener:       l,
		matched:        make(map[guid.Guid]bool),
	}
	if cfg.Reliability.Kind == qos.Reliable {
		dr.stateful = endpoint.NewStatefulReader(g, cache, rcfg)
	} else {
		dr.stateless = endpoint.NewStatelessReader(g, cache)
	}
	return dr
}

func (dr *DataReader) instanceFor(payload []byte) wire.InstanceHandle {
	if dr.Topic.Key == nil || payload == nil {
		return wire.InstanceHandle{}
	}
	return computeInstanceHandle(dr.Topic.Key(payload))
}

// HandleData processes a decoded DATA submessage from writerGuid.
func (dr *DataReader) HandleData(writerGuid guid.Guid, d message.Data) *history.ReaderSample {
	dr.mu.Lock()
	var sample *history.ReaderSample
	kind := decodeChangeKind(d.InlineQos, d.HasData)
	instance := dr.instanceFor(d.SerializedData)
	if dr.stateful != nil {
		sample = dr.stateful.HandleData(writerGuid, d, instance, kind)
	} else {
		sample = dr.stateless.HandleData(writerGuid, d, instance, kind)
	}
	dr.mu.Unlock()

	if sample != nil {
		dr.status.markDataAvailable()
		if dr.listener.OnDataAvailable != nil {
			dr.listener.OnDataAvailable()
		}
	}
	return sample
}

// HandleDataFrag processes one DATA_FRAG submessage; a no-op for
// best-effort readers, which this core does not fragment-reassemble
// (fragmentation is only meaningful paired with reliable recovery of
// the missing fragments, spec.md §4.6).
func (dr *DataReader) HandleDataFrag(writerGuid guid.Guid, df message.DataFrag) (*history.ReaderSample, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	if dr.stateful == nil {
		return nil, nil
	}
	kind := decodeChangeKind(nil, true)
	instance := dr.instanceFor(df.SerializedData)
	return dr.stateful.HandleDataFrag(writerGuid, df, instance, kind)
}

// HandleHeartbeat feeds a received HEARTBEAT into the reliable reader
// state machine, returning the ACKNACK to send (if any) along with the
// locators it should go to.
func (dr *DataReader) HandleHeartbeat(writerGuid guid.Guid, hb message.Heartbeat) []message.Outbound {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	if dr.stateful == nil {
		return nil
	}
	owed, an := dr.stateful.HandleHeartbeat(writerGuid, hb)
	if !owed {
		return nil
	}
	return dr.toWriter(writerGuid, an)
}

// HandleHeartbeatFrag feeds a received HEARTBEAT_FRAG into the reliable
// reader state machine, returning the NACK_FRAG to send (if any) along
// with the locators it should go to.
func (dr *DataReader) HandleHeartbeatFrag(writerGuid guid.Guid, hf message.HeartbeatFrag) []message.Outbound {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	if dr.stateful == nil {
		return nil
	}
	owed, nf := dr.stateful.HandleHeartbeatFrag(writerGuid, hf)
	if !owed {
		return nil
	}
	locs := dr.writerLocators[writerGuid]
	sm := nf.Encode(false)
	out := make([]message.Outbound, 0, len(locs))
	for _, loc := range locs {
		out = append(out, message.Outbound{Locator: loc, Submessage: sm})
	}
	return out
}

// HandleGap feeds a received GAP into the reliable reader state machine.
func (dr *DataReader) HandleGap(writerGuid guid.Guid, g message.Gap) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	if dr.stateful != nil {
		dr.stateful.HandleGap(writerGuid, g)
	}
}

// PeriodicAckNack builds an unsolicited ACKNACK for every matched
// writer with a non-empty missing set, so ACKNACKs are not purely
// heartbeat-triggered (spec.md §4.5, liveness bound on recovery time).
func (dr *DataReader) PeriodicAckNack() []message.Outbound {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	if dr.stateful == nil {
		return nil
	}
	var out []message.Outbound
	for _, w := range dr.stateful.MatchedWriters() {
		an, ok := dr.stateful.AckNackFor(w)
		if !ok || len(an.ReaderSNState.Missing()) == 0 {
			continue
		}
		out = append(out, dr.toWriter(w, an)...)
	}
	return out
}

func (dr *DataReader) toWriter(writerGuid guid.Guid, an message.AckNack) []message.Outbound {
	locs := dr.writerLocators[writerGuid]
	out := make([]message.Outbound, 0, len(locs))
	sm := an.Encode(false)
	for _, loc := range locs {
		out = append(out, message.Outbound{Locator: loc, Submessage: sm})
	}
	return out
}

// Read returns every sample currently in the reader cache without
// marking them as read.
func (dr *DataReader) Read() []*history.ReaderSample {
	return dr.cache().Read(wire.InstanceHandle{}, true)
}

// Take returns every sample currently in the reader cache and removes
// them from it.
func (dr *DataReader) Take() []*history.ReaderSample {
	return dr.cache().Take(wire.InstanceHandle{}, true)
}

func (dr *DataReader) cache() *history.ReaderCache {
	if dr.stateful != nil {
		return dr.stateful.Cache
	}
	return dr.stateless.Cache
}

// handleMatch mirrors DataWriter.handleMatch for the reader side.
func (dr *DataReader) handleMatch(remote guid.Guid, locators []wire.Locator, incompat []qos.Incompatibility, present bool) {
	dr.mu.Lock()
	wasMatched := dr.matched[remote]
	dr.mu.Unlock()

	if !present {
		if wasMatched {
			dr.mu.Lock()
			delete(dr.matched, remote)
			delete(dr.writerLocators, remote)
			if dr.stateful != nil {
				dr.stateful.MatchedWriterRemove(remote)
			}
			dr.mu.Unlock()
			dr.status.onSubscriptionMatched(remote, false)
			if dr.listener.OnSubscriptionMatched != nil {
				dr.listener.OnSubscriptionMatched(dr.status.getSubscriptionMatchedStatus())
			}
		}
		return
	}

	if len(incompat) > 0 {
		dr.status.onRequestedIncompatibleQos(incompat)
		if dr.listener.OnRequestedIncompatibleQos != nil {
			dr.listener.OnRequestedIncompatibleQos(dr.status.getRequestedIncompatibleQosStatus())
		}
		return
	}

	if wasMatched {
		return
	}
	dr.mu.Lock()
	dr.matched[remote] = true
	dr.writerLocators[remote] = locators
	if dr.stateful != nil {
		dr.stateful.MatchedWriterAdd(remote, locators)
	}
	dr.mu.Unlock()
	dr.status.onSubscriptionMatched(remote, true)
	if dr.listener.OnSubscriptionMatched != nil {
		dr.listener.OnSubscriptionMatched(dr.status.getSubscriptionMatchedStatus())
	}
	if dr.listener.OnDataAvailable != nil {
		dr.listener.OnDataAvailable()
	}
}

// GetSubscriptionMatchedStatus reads and clears the accumulated delta.
func (dr *DataReader) GetSubscriptionMatchedStatus() SubscriptionMatchedStatus {
	return dr.status.getSubscriptionMatchedStatus()
}

// GetRequestedIncompatibleQosStatus reads and clears the accumulated delta.
func (dr *DataReader) GetRequestedIncompatibleQosStatus() RequestedIncompatibleQosStatus {
	return dr.status.getRequestedIncompatibleQosStatus()
}

// StatusCondition returns the condition a WaitSet can attach to in
// order to block until one of this reader's enabled statuses changes.
func (dr *DataReader) StatusCondition() *StatusCondition {
	return dr.status
}
