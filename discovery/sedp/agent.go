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

package sedp

import (
	"sync"

	"github.com/sabouaram/rtpsdds/rtps/endpoint"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// MatchOutcome is reported for every remote endpoint announcement
// compared against a local one sharing a topic and type name
// (spec.md §4.7).
type MatchOutcome struct {
	Local          EndpointBuiltinTopicData
	Remote         EndpointBuiltinTopicData
	LocalIsWriter  bool
	Incompatible   []qos.Incompatibility
}

// MatchCallback is invoked once per (local, remote) pairing discovered
// or retired. ok is false when the remote endpoint's announcement has
// expired (its participant's SPDP lease lapsed) and any match formed
// from it must be torn down.
type MatchCallback func(outcome MatchOutcome, ok bool)

// Agent drives the three SEDP built-in topic pairs (publications,
// subscriptions, topics) for one local participant and runs the
// offered/requested QoS matching engine described in spec.md §4.7.
type Agent struct {
	mu sync.Mutex

	PublicationsWriter  *endpoint.StatefulWriter
	PublicationsReader  *endpoint.StatefulReader
	SubscriptionsWriter *endpoint.StatefulWriter
	SubscriptionsReader *endpoint.StatefulReader
	TopicsWriter        *endpoint.StatefulWriter
	TopicsReader        *endpoint.StatefulReader

	localPubs  map[guid.Guid]PublicationBuiltinTopicData
	localSubs  map[guid.Guid]SubscriptionBuiltinTopicData
	remotePubs map[guid.Guid]PublicationBuiltinTopicData
	remoteSubs map[guid.Guid]SubscriptionBuiltinTopicData

	onMatch MatchCallback
}

// NewAgent builds the SEDP agent's six built-in endpoints, one
// reliable stateful writer/reader pair per topic.
func NewAgent(prefix guid.GuidPrefix, wcfg endpoint.StatefulWriterConfig, rcfg endpoint.StatefulReaderConfig, onMatch MatchCallback) *Agent {
	mk := func(id guid.EntityId, history_ func() *history.WriterCache) *endpoint.StatefulWriter {
		return endpoint.NewStatefulWriter(guid.Guid{Prefix: prefix, EntityId: id}, history_(), wcfg)
	}
	mkR := func(id guid.EntityId) *endpoint.StatefulReader {
		return endpoint.NewStatefulReader(guid.Guid{Prefix: prefix, EntityId: id}, history.NewReaderCache(true, 0), rcfg)
	}
	keepAll := func() *history.WriterCache {
		return history.NewWriterCache(qos.History{Kind: qos.HistoryKeepAll}, qos.ResourceLimits{})
	}

	return &Agent{
		PublicationsWriter:  mk(guid.EntityIdSEDPBuiltinPublicationsWriter, keepAll),
		PublicationsReader:  mkR(guid.EntityIdSEDPBuiltinPublicationsReader),
		SubscriptionsWriter: mk(guid.EntityIdSEDPBuiltinSubscriptionsWriter, keepAll),
		SubscriptionsReader: mkR(guid.EntityIdSEDPBuiltinSubscriptionsReader),
		TopicsWriter:        mk(guid.EntityIdSEDPBuiltinTopicsWriter, keepAll),
		TopicsReader:        mkR(guid.EntityIdSEDPBuiltinTopicsReader),
		localPubs:           make(map[guid.Guid]PublicationBuiltinTopicData),
		localSubs:           make(map[guid.Guid]SubscriptionBuiltinTopicData),
		remotePubs:          make(map[guid.Guid]PublicationBuiltinTopicData),
		remoteSubs:          make(map[guid.Guid]SubscriptionBuiltinTopicData),
		onMatch:             onMatch,
	}
}

// MatchParticipant wires a newly discovered remote participant's SEDP
// metatraffic locators onto all six built-in endpoints, per spec.md
// §4.7 step 1 ("adds the remote's metatraffic locators as
// reader-locators on its SEDP writers and as matched writers on its
// SEDP readers").
func (a *Agent) MatchParticipant(remotePrefix guid.GuidPrefix, metatraffic []wire.Locator) {
	remoteReader := func(id guid.EntityId) guid.Guid { return guid.Guid{Prefix: remotePrefix, EntityId: id} }

	a.PublicationsWriter.MatchedReaderAdd(remoteReader(guid.EntityIdSEDPBuiltinPublicationsReader), metatraffic, false, true)
	a.SubscriptionsWriter.MatchedReaderAdd(remoteReader(guid.EntityIdSEDPBuiltinSubscriptionsReader), metatraffic, false, true)
	a.TopicsWriter.MatchedReaderAdd(remoteReader(guid.EntityIdSEDPBuiltinTopicsReader), metatraffic, false, true)

	a.PublicationsReader.MatchedWriterAdd(guid.Guid{Prefix: remotePrefix, EntityId: guid.EntityIdSEDPBuiltinPublicationsWriter}, metatraffic)
	a.SubscriptionsReader.MatchedWriterAdd(guid.Guid{Prefix: remotePrefix, EntityId: guid.EntityIdSEDPBuiltinSubscriptionsWriter}, metatraffic)
	a.TopicsReader.MatchedWriterAdd(guid.Guid{Prefix: remotePrefix, EntityId: guid.EntityIdSEDPBuiltinTopicsWriter}, metatraffic)
}

// UnmatchParticipant tears down a lapsed peer's SEDP endpoints and
// retires every match formed from its announcements.
func (a *Agent) UnmatchParticipant(remotePrefix guid.GuidPrefix) {
	a.PublicationsWriter.MatchedReaderRemove(guid.Guid{Prefix: remotePrefix, EntityId: guid.EntityIdSEDPBuiltinPublicationsReader})
	a.SubscriptionsWriter.MatchedReaderRemove(guid.Guid{Prefix: remotePrefix, EntityId: guid.EntityIdSEDPBuiltinSubscriptionsReader})
	a.TopicsWriter.MatchedReaderRemove(guid.Guid{Prefix: remotePrefix, EntityId: guid.EntityIdSEDPBuiltinTopicsReader})
	a.PublicationsReader.MatchedWriterRemove(guid.Guid{Prefix: remotePrefix, EntityId: guid.EntityIdSEDPBuiltinPublicationsWriter})
	a.SubscriptionsReader.MatchedWriterRemove(guid.Guid{Prefix: remotePrefix, EntityId: guid.EntityIdSEDPBuiltinSubscriptionsWriter})
	a.TopicsReader.MatchedWriterRemove(guid.Guid{Prefix: remotePrefix, EntityId: guid.EntityIdSEDPBuiltinTopicsWriter})

	a.mu.Lock()
	defer a.mu.Unlock()
	for g, pub := range a.remotePubs {
		if g.Prefix == remotePrefix {
			a.retireRemote(pub.EndpointBuiltinTopicData, false)
			delete(a.remotePubs, g)
		}
	}
	for g, sub := range a.remoteSubs {
		if g.Prefix == remotePrefix {
			a.retireRemote(sub.EndpointBuiltinTopicData, true)
			delete(a.remoteSubs, g)
		}
	}
}

// AnnouncePublication registers a local DataWriter's discovery data
// and publishes it on the publications writer, matching it against
// every already-known remote subscription on the same topic.
func (a *Agent) AnnouncePublication(d PublicationBuiltinTopicData) error {
	a.mu.Lock()
	a.localPubs[d.Guid] = d
	a.mu.Unlock()

	if _, err := a.PublicationsWriter.NewChange(&history.CacheChange{
		Kind:           history.Alive,
		WriterGuid:     a.PublicationsWriter.Guid,
		InstanceHandle: endpointInstanceHandle(d.Guid),
		Payload:        EncodePublication(d),
	}); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sub := range a.remoteSubs {
		a.tryMatch(d.EndpointBuiltinTopicData, sub.EndpointBuiltinTopicData, true)
	}
	return nil
}

// AnnounceSubscription is AnnouncePublication's mirror for a local
// DataReader.
func (a *Agent) AnnounceSubscription(d SubscriptionBuiltinTopicData) error {
	a.mu.Lock()
	a.localSubs[d.Guid] = d
	a.mu.Unlock()

	if _, err := a.SubscriptionsWriter.NewChange(&history.CacheChange{
		Kind:           history.Alive,
		WriterGuid:     a.SubscriptionsWriter.Guid,
		InstanceHandle: endpointInstanceHandle(d.Guid),
		Payload:        EncodeSubscription(d),
	}); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, pub := range a.remotePubs {
		a.tryMatch(pub.EndpointBuiltinTopicData, d.EndpointBuiltinTopicData, false)
	}
	return nil
}

// HandlePublicationData processes one decoded DATA submessage received
// on the publications reader's matched-writer set.
func (a *Agent) HandlePublicationData(payload []byte) error {
	d, err := DecodePublication(payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.remotePubs[d.Guid] = d
	defer a.mu.Unlock()
	for _, sub := range a.localSubs {
		a.tryMatch(d.EndpointBuiltinTopicData, sub.EndpointBuiltinTopicData, true)
	}
	return nil
}

// HandleSubscriptionData is HandlePublicationData's mirror for the
// subscriptions reader.
func (a *Agent) HandleSubscriptionData(payload []byte) error {
	d, err := DecodeSubscription(payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.remoteSubs[d.Guid] = d
	defer a.mu.Unlock()
	for _, pub := range a.localPubs {
		a.tryMatch(pub.EndpointBuiltinTopicData, d.EndpointBuiltinTopicData, false)
	}
	return nil
}

// tryMatch compares offered against requested QoS for a same-topic,
// same-type (local, remote) pair and invokes onMatch regardless of
// outcome so callers can surface OfferedIncompatibleQos/
// RequestedIncompatibleQos (spec.md §4.7). Caller must hold a.mu.
func (a *Agent) tryMatch(writer, reader EndpointBuiltinTopicData, localIsWriter bool) {
	if writer.TopicName != reader.TopicName || writer.TypeName != reader.TypeName {
		return
	}
	offered := qos.Default()
	offered.Reliability = writer.Reliability
	offered.Durability = writer.Durability
	requested := qos.Default()
	requested.Reliability = reader.Reliability
	requested.Durability = reader.Durability

	bad := qos.Compatible(offered, requested)

	local, remote := writer, reader
	if !localIsWriter {
		local, remote = reader, writer
	}
	if a.onMatch != nil {
		a.onMatch(MatchOutcome{Local: local, Remote: remote, LocalIsWriter: localIsWriter, Incompatible: bad}, true)
	}
}

func (a *Agent) retireRemote(remote EndpointBuiltinTopicData, remoteIsWriter bool) {
	if a.onMatch == nil {
		return
	}
	a.onMatch(MatchOutcome{Remote: remote, LocalIsWriter: !remoteIsWriter}, false)
}

// Send drains every built-in writer's pending sends; callers batch the
// combined result through a message.Sender exactly like the SPDP
// agent does.
func (a *Agent) Send() []message.Outbound {
	var out []message.Outbound
	out = append(out, a.PublicationsWriter.Send()...)
	out = append(out, a.SubscriptionsWriter.Send()...)
	out = append(out, a.TopicsWriter.Send()...)
	return out
}

// Heartbeat emits periodic heartbeats for every reliable built-in
// writer (spec.md §4.4.2).
func (a *Agent) Heartbeat() []message.Outbound {
	var out []message.Outbound
	out = append(out, a.PublicationsWriter.Heartbeat(false)...)
	out = append(out, a.SubscriptionsWriter.Heartbeat(false)...)
	out = append(out, a.TopicsWriter.Heartbeat(false)...)
	return out
}

func endpointInstanceHandle(g guid.Guid) wire.InstanceHandle {
	var h wire.InstanceHandle
	copy(h[0:12], g.Prefix[:])
	copy(h[12:15], g.EntityId.Key[:])
	h[15] = byte(g.EntityId.Kind)
	return h
}
