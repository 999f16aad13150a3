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
	"context"
	"crypto/rand"
	"net"
	"sync"
	"time"

	enchex "github.com/nabbar/golib/encoding/hexa"
	rerrpool "github.com/nabbar/golib/errors/pool"
	mapcloser "github.com/nabbar/golib/ioutils/mapCloser"
	"github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/rtpsdds/actor"
	"github.com/sabouaram/rtpsdds/config"
	"github.com/sabouaram/rtpsdds/discovery/sedp"
	"github.com/sabouaram/rtpsdds/discovery/spdp"
	"github.com/sabouaram/rtpsdds/metrics"
	"github.com/sabouaram/rtpsdds/rtps/endpoint"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/sabouaram/rtpsdds/transport"
)

// sendInterval is how often a Participant drains Unsent/Requested
// writer traffic and reader ACKNACKs onto the wire, independent of the
// configured heartbeat period (spec.md §4.4.1, §5).
const sendInterval = 20 * time.Millisecond

// Participant is the root DDS entity of spec.md §2/§3: it owns a
// Transport, the single-threaded actor.Executor every endpoint on it
// is driven from, the SPDP/SEDP discovery agents, and the registries
// Publisher/Subscriber draw on when creating DataWriters/DataReaders.
type Participant struct {
	mu  sync.Mutex
	cfg config.Config
	log logger.Logger
	mtr *metrics.Registry

	tp     transport.Transport
	ex     *actor.Executor
	ids    *entityIdAllocator
	prefix guid.GuidPrefix

	wcfg endpoint.StatefulWriterConfig
	rcfg endpoint.StatefulReaderConfig

	spdpAgent *spdp.Agent
	sedp      *sedp.Agent

	writers map[guid.Guid]*DataWriter
	readers map[guid.Guid]*DataReader

	remoteLocators map[guid.GuidPrefix][]wire.Locator

	sender *message.Sender

	ctx        context.Context
	cancel     context.CancelFunc
	eg         *errgroup.Group
	stopOnce   sync.Once
	sendHandle *actor.TimerHandle
	hbHandle   *actor.TimerHandle

	// closers collects every io.Closer a running participant
	// accumulates (the transport and the periodic timer handles) so
	// Stop releases all of them together instead of hand-listing them.
	closers mapcloser.Closer
}

// closerFunc adapts a teardown function to io.Closer so timer handles
// and other non-Closer resources can be registered on closers.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// NewParticipant builds a Participant on domain cfg.DomainID, driving
// its RTPS traffic over tp. The participant is not yet running: call
// Enable to start discovery, periodic sends and the receive loop.
func NewParticipant(cfg config.Config, tp transport.Transport, log logger.Logger) (*Participant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prefix := randGuidPrefix()
	p := &Participant{
		cfg: cfg,
		log: log,
		mtr: metrics.NewRegistry(),
		tp:  tp,
		ex:  actor.NewExecutor(cfg.MailboxBacklog),
		ids: newEntityIdAllocator(),
		prefix: prefix,
		wcfg: endpoint.StatefulWriterConfig{
			PushMode:          true,
			HeartbeatPeriod:   cfg.HeartbeatPeriod,
			NackResponseDelay: cfg.NackResponseDelay,
			FragmentSize:      cfg.FragmentSize,
		},
		rcfg:           endpoint.StatefulReaderConfig{HeartbeatResponseDelay: cfg.HeartbeatResponseDelay},
		writers:        make(map[guid.Guid]*DataWriter),
		readers:        make(map[guid.Guid]*DataReader),
		remoteLocators: make(map[guid.GuidPrefix][]wire.Locator),
		ctx:            context.Background(),
	}
	p.closers = mapcloser.New(context.Background())
	p.closers.Add(tp)

	p.sender = message.NewSender(message.Header{
		ProtocolVersion: message.ProtocolVersion,
		VendorID:        message.VendorID,
		GuidPrefix:      prefix,
	}, message.DefaultMTU)

	unicast := tp.LocalLocator()
	self := spdp.ParticipantBuiltinTopicData{
		Guid:                       guid.Participant(prefix),
		ProtocolVersion:            message.ProtocolVersion,
		VendorID:                   message.VendorID,
		DefaultUnicastLocators:     []wire.Locator{unicast},
		MetatrafficUnicastLocators: []wire.Locator{unicast},
		AvailableBuiltinEndpoints: spdp.BuiltinEndpointParticipantAnnouncer | spdp.BuiltinEndpointParticipantDetector |
			spdp.BuiltinEndpointPublicationAnnouncer | spdp.BuiltinEndpointPublicationDetector |
			spdp.BuiltinEndpointSubscriptionAnnouncer | spdp.BuiltinEndpointSubscriptionDetector |
			spdp.BuiltinEndpointTopicAnnouncer | spdp.BuiltinEndpointTopicDetector,
		LeaseDuration: cfg.LeaseDuration,
		DomainID:      cfg.DomainID,
		DomainTag:     cfg.DomainTag,
	}

	spdpWriterCache := history.NewWriterCache(qos.History{Kind: qos.HistoryKeepLast, Depth: 1}, qos.ResourceLimits{})
	spdpReaderCache := history.NewReaderCache(true, 0)
	p.spdpAgent = spdp.NewAgent(p.ex, log, self, cfg.LeaseDuration, spdpWriterCache, spdpReaderCache, p.onSpdpPeer)

	mcast, err := spdpMulticastLocator(cfg)
	if err != nil {
		return nil, err
	}
	p.spdpAgent.AddDestination(mcast)

	p.sedp = sedp.NewAgent(prefix, p.wcfg, p.rcfg, p.onSedpMatch)

	return p, nil
}

func randGuidPrefix() guid.GuidPrefix {
	var prefix guid.GuidPrefix
	_, _ = rand.Read(prefix[:])
	return prefix
}

func spdpMulticastLocator(cfg config.Config) (wire.Locator, error) {
	ip := net.ParseIP(config.SPDPMulticastAddress)
	if ip == nil {
		return wire.Locator{}, ErrBadParameter("dds: invalid spdp multicast address")
	}
	return wire.NewLocatorUDPv4(ip, cfg.SPDPMulticastPort()), nil
}

// Enable starts discovery announcements, the periodic send/heartbeat
// loops and the transport receive loop, all driven by the participant's
// actor.Executor goroutine (spec.md §4.8, §5).
func (p *Participant) Enable() {
	parent, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(parent)
	p.ctx = ctx
	p.cancel = cancel
	p.eg = eg

	eg.Go(func() error { p.ex.Run(ctx); return nil })

	p.spdpAgent.StartAnnouncing(p.cfg.ParticipantAnnouncementInterval, func(loc wire.Locator, data []byte) {
		p.write(loc, data)
	})

	p.sendHandle = p.ex.Timers().Every(sendInterval, func() { p.drainSend() })
	p.hbHandle = p.ex.Timers().Every(p.cfg.HeartbeatPeriod, func() { p.drainHeartbeat() })
	p.closers.Add(
		closerFunc(func() error { p.sendHandle.Cancel(); return nil }),
		closerFunc(func() error { p.hbHandle.Cancel(); return nil }),
	)

	eg.Go(func() error { p.receiveLoop(ctx); return nil })
}

// Stop halts discovery, periodic traffic and the receive loop, and
// closes every resource this participant accumulated while running
// (the transport and the periodic timers), reporting the
// combined failure through an error pool rather than only the first
// one encountered.
func (p *Participant) Stop() {
	p.stopOnce.Do(func() {
		p.spdpAgent.Stop()
		if p.cancel != nil {
			p.cancel()
		}
		p.ex.Stop()
		if p.eg != nil {
			_ = p.eg.Wait()
		}

		errs := rerrpool.New()
		errs.Add(p.closers.Close())
		if err := errs.Error(); err != nil {
			p.log.Entry(loglvl.WarnLevel, "participant: teardown reported errors").ErrorAdd(true, err).Log()
		}
	})
}

// AssertLiveliness manually asserts every owned writer's liveliness: a
// liveliness-flagged HEARTBEAT goes to each reliable matched reader,
// satisfying the manual Liveliness QoS kinds without writing a sample.
func (p *Participant) AssertLiveliness() {
	p.mu.Lock()
	writers := make([]*DataWriter, 0, len(p.writers))
	for _, dw := range p.writers {
		writers = append(writers, dw)
	}
	p.mu.Unlock()

	var out []message.Outbound
	for _, dw := range writers {
		out = append(out, dw.LivelinessHeartbeat()...)
	}
	p.ex.Submit(func() { p.flush(out) })
}

// CreatePublisher builds a Publisher owned by this participant.
func (p *Participant) CreatePublisher() *Publisher { return newPublisher(p) }

// CreateSubscriber builds a Subscriber owned by this participant.
func (p *Participant) CreateSubscriber() *Subscriber { return newSubscriber(p) }

func (p *Participant) guidPrefix() guid.GuidPrefix                      { return p.prefix }
func (p *Participant) writerConfig() endpoint.StatefulWriterConfig      { return p.wcfg }
func (p *Participant) readerConfig() endpoint.StatefulReaderConfig      { return p.rcfg }

func (p *Participant) registerWriter(dw *DataWriter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writers[dw.Guid] = dw
}

func (p *Participant) unregisterWriter(g guid.Guid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.writers, g)
}

func (p *Participant) registerReader(dr *DataReader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readers[dr.Guid] = dr
}

func (p *Participant) unregisterReader(g guid.Guid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.readers, g)
}

// onSpdpPeer wires a newly discovered (or expired) remote participant
// onto SEDP, per spec.md §4.7 step 1.
func (p *Participant) onSpdpPeer(data spdp.ParticipantBuiltinTopicData, alive bool) {
	remotePrefix := data.Guid.Prefix
	if alive {
		p.mu.Lock()
		p.remoteLocators[remotePrefix] = data.DefaultUnicastLocators
		p.mu.Unlock()
		p.sedp.MatchParticipant(remotePrefix, data.MetatrafficUnicastLocators)
		return
	}
	p.sedp.UnmatchParticipant(remotePrefix)
	p.mu.Lock()
	delete(p.remoteLocators, remotePrefix)
	p.mu.Unlock()
}

// onSedpMatch applies one SEDP match/unmatch outcome to the local
// DataWriter/DataReader it concerns, resolving the remote's locators
// from the default unicast set its participant announced over SPDP
// (user endpoint announcements carry no locators of their own).
func (p *Participant) onSedpMatch(outcome sedp.MatchOutcome, ok bool) {
	if !ok {
		p.mu.Lock()
		defer p.mu.Unlock()
		if outcome.LocalIsWriter {
			for _, dw := range p.writers {
				dw.handleMatch(outcome.Remote.Guid, nil, false, false, nil, false)
			}
		} else {
			for _, dr := range p.readers {
				dr.handleMatch(outcome.Remote.Guid, nil, nil, false)
			}
		}
		return
	}

	p.mu.Lock()
	locs := append([]wire.Locator(nil), p.remoteLocators[outcome.Remote.Guid.Prefix]...)
	p.mu.Unlock()

	if outcome.LocalIsWriter {
		p.mu.Lock()
		dw, found := p.writers[outcome.Local.Guid]
		p.mu.Unlock()
		if !found {
			return
		}
		reliable := outcome.Remote.Reliability.Kind == qos.Reliable
		dw.handleMatch(outcome.Remote.Guid, locs, false, reliable, outcome.Incompatible, true)
		return
	}

	p.mu.Lock()
	dr, found := p.readers[outcome.Local.Guid]
	p.mu.Unlock()
	if !found {
		return
	}
	dr.handleMatch(outcome.Remote.Guid, locs, outcome.Incompatible, true)
}

func (p *Participant) receiveLoop(ctx context.Context) {
	for {
		dg, err := p.tp.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		datagram := dg
		p.ex.Submit(func() { p.handleDatagram(datagram) })
	}
}

func (p *Participant) handleDatagram(dg transport.Datagram) {
	dispatches, dropped, err := message.Route(dg.Data)
	if err != nil {
		p.log.Entry(loglvl.WarnLevel, "participant: dropping malformed datagram").
			ErrorAdd(true, err).
			FieldAdd("hex", string(enchex.New().Encode(dg.Data))).
			Log()
		return
	}
	if dropped > 0 {
		p.mtr.SubmessagesDropped.WithLabelValues("unknown-kind").Add(float64(dropped))
	}
	for _, dp := range dispatches {
		p.handleSubmessage(dp)
	}
}

func (p *Participant) handleSubmessage(dp message.Dispatch) {
	switch dp.Submessage.Kind {
	case message.KindData:
		if d, ok := message.DecodeData(dp.Submessage); ok {
			p.routeData(dp.State, d)
		}
	case message.KindDataFrag:
		if df, ok := message.DecodeDataFrag(dp.Submessage); ok {
			p.routeDataFrag(dp.State, df)
		}
	case message.KindHeartbeat:
		if hb, ok := message.DecodeHeartbeat(dp.Submessage); ok {
			p.routeHeartbeat(dp.State, hb)
		}
	case message.KindAckNack:
		if an, ok := message.DecodeAckNack(dp.Submessage); ok {
			p.routeAckNack(dp.State, an)
		}
	case message.KindGap:
		if g, ok := message.DecodeGap(dp.Submessage); ok {
			p.routeGap(dp.State, g)
		}
	case message.KindHeartbeatFrag:
		if hf, ok := message.DecodeHeartbeatFrag(dp.Submessage); ok {
			p.routeHeartbeatFrag(dp.State, hf)
		}
	case message.KindNackFrag:
		if nf, ok := message.DecodeNackFrag(dp.Submessage); ok {
			p.routeNackFrag(dp.State, nf)
		}
	}
}

func (p *Participant) routeHeartbeatFrag(st message.ReceiverState, hf message.HeartbeatFrag) {
	writerGuid := guid.Guid{Prefix: st.SourceGuidPrefix, EntityId: hf.WriterID}
	readerGuid := guid.Guid{Prefix: p.prefix, EntityId: hf.ReaderID}

	p.mu.Lock()
	dr, ok := p.readers[readerGuid]
	p.mu.Unlock()
	if !ok {
		return
	}
	out := dr.HandleHeartbeatFrag(writerGuid, hf)
	if len(out) == 0 {
		return
	}
	p.ex.Timers().After(p.rcfg.HeartbeatResponseDelay, func() {
		p.ex.Submit(func() { p.flush(out) })
	})
}

func (p *Participant) routeNackFrag(st message.ReceiverState, nf message.NackFrag) {
	readerGuid := guid.Guid{Prefix: st.SourceGuidPrefix, EntityId: nf.ReaderID}
	writerGuid := guid.Guid{Prefix: p.prefix, EntityId: nf.WriterID}

	p.mu.Lock()
	dw, ok := p.writers[writerGuid]
	p.mu.Unlock()
	if !ok {
		return
	}
	out := dw.HandleNackFrag(readerGuid, nf)
	if len(out) == 0 {
		return
	}
	p.ex.Timers().After(p.wcfg.NackResponseDelay, func() {
		p.ex.Submit(func() { p.flush(out) })
	})
}

func (p *Participant) routeData(st message.ReceiverState, d message.Data) {
	writerGuid := guid.Guid{Prefix: st.SourceGuidPrefix, EntityId: d.WriterID}

	switch d.WriterID {
	case guid.EntityIdSPDPBuiltinParticipantWriter:
		p.spdpAgent.HandleDatagram(d.SerializedData, p.cfg.DomainID)
		return
	case guid.EntityIdSEDPBuiltinPublicationsWriter:
		if err := p.sedp.HandlePublicationData(d.SerializedData); err != nil {
			p.log.Entry(loglvl.WarnLevel, "participant: malformed sedp publication").ErrorAdd(true, err).Log()
		}
		return
	case guid.EntityIdSEDPBuiltinSubscriptionsWriter:
		if err := p.sedp.HandleSubscriptionData(d.SerializedData); err != nil {
			p.log.Entry(loglvl.WarnLevel, "participant: malformed sedp subscription").ErrorAdd(true, err).Log()
		}
		return
	case guid.EntityIdSEDPBuiltinTopicsWriter:
		return
	}

	readerGuid := guid.Guid{Prefix: p.prefix, EntityId: d.ReaderID}
	p.mu.Lock()
	dr, ok := p.readers[readerGuid]
	p.mu.Unlock()
	if !ok {
		return
	}
	if sample := dr.HandleData(writerGuid, d); sample != nil {
		// The INFO_TS in effect for this submessage is the writer's
		// source timestamp; BySourceTimestamp ordering reads it back.
		sample.Change.SourceTimestamp = st.Timestamp
		sample.Change.HasTimestamp = st.HaveTimestamp
		p.mtr.DataReceived.WithLabelValues(readerGuid.String()).Inc()
	}
}

func (p *Participant) routeDataFrag(st message.ReceiverState, df message.DataFrag) {
	writerGuid := guid.Guid{Prefix: st.SourceGuidPrefix, EntityId: df.WriterID}
	readerGuid := guid.Guid{Prefix: p.prefix, EntityId: df.ReaderID}

	p.mu.Lock()
	dr, ok := p.readers[readerGuid]
	p.mu.Unlock()
	if !ok {
		return
	}
	sample, err := dr.HandleDataFrag(writerGuid, df)
	if err != nil {
		p.log.Entry(loglvl.WarnLevel, "participant: fragment reassembly failed").ErrorAdd(true, err).Log()
		return
	}
	if sample != nil {
		sample.Change.SourceTimestamp = st.Timestamp
		sample.Change.HasTimestamp = st.HaveTimestamp
		p.mtr.DataReceived.WithLabelValues(readerGuid.String()).Inc()
	}
}

func (p *Participant) routeHeartbeat(st message.ReceiverState, hb message.Heartbeat) {
	writerGuid := guid.Guid{Prefix: st.SourceGuidPrefix, EntityId: hb.WriterID}

	switch hb.WriterID {
	case guid.EntityIdSEDPBuiltinPublicationsWriter:
		p.scheduleBuiltinHeartbeatReply(p.sedp.PublicationsReader, writerGuid, hb)
		return
	case guid.EntityIdSEDPBuiltinSubscriptionsWriter:
		p.scheduleBuiltinHeartbeatReply(p.sedp.SubscriptionsReader, writerGuid, hb)
		return
	case guid.EntityIdSEDPBuiltinTopicsWriter:
		p.scheduleBuiltinHeartbeatReply(p.sedp.TopicsReader, writerGuid, hb)
		return
	}

	readerGuid := guid.Guid{Prefix: p.prefix, EntityId: hb.ReaderID}
	p.mu.Lock()
	dr, ok := p.readers[readerGuid]
	p.mu.Unlock()
	if !ok {
		return
	}
	out := dr.HandleHeartbeat(writerGuid, hb)
	if len(out) == 0 {
		return
	}
	p.ex.Timers().After(p.rcfg.HeartbeatResponseDelay, func() {
		p.ex.Submit(func() { p.flush(out) })
	})
}

func (p *Participant) scheduleBuiltinHeartbeatReply(r *endpoint.StatefulReader, writerGuid guid.Guid, hb message.Heartbeat) {
	owed, an := r.HandleHeartbeat(writerGuid, hb)
	if !owed {
		return
	}
	locs := r.WriterLocators(writerGuid)
	if len(locs) == 0 {
		return
	}
	sm := an.Encode(false)
	out := make([]message.Outbound, 0, len(locs))
	for _, loc := range locs {
		out = append(out, message.Outbound{Locator: loc, Submessage: sm})
	}
	p.ex.Timers().After(p.rcfg.HeartbeatResponseDelay, func() {
		p.ex.Submit(func() { p.flush(out) })
	})
}

func (p *Participant) routeAckNack(st message.ReceiverState, an message.AckNack) {
	readerGuid := guid.Guid{Prefix: st.SourceGuidPrefix, EntityId: an.ReaderID}

	switch an.WriterID {
	case guid.EntityIdSEDPBuiltinPublicationsWriter:
		p.sedp.PublicationsWriter.HandleAckNack(readerGuid, an)
		return
	case guid.EntityIdSEDPBuiltinSubscriptionsWriter:
		p.sedp.SubscriptionsWriter.HandleAckNack(readerGuid, an)
		return
	case guid.EntityIdSEDPBuiltinTopicsWriter:
		p.sedp.TopicsWriter.HandleAckNack(readerGuid, an)
		return
	}

	writerGuid := guid.Guid{Prefix: p.prefix, EntityId: an.WriterID}
	p.mu.Lock()
	dw, ok := p.writers[writerGuid]
	p.mu.Unlock()
	if !ok {
		return
	}
	dw.HandleAckNack(readerGuid, an)
}

func (p *Participant) routeGap(st message.ReceiverState, g message.Gap) {
	writerGuid := guid.Guid{Prefix: st.SourceGuidPrefix, EntityId: g.WriterID}

	switch g.WriterID {
	case guid.EntityIdSEDPBuiltinPublicationsWriter:
		p.sedp.PublicationsReader.HandleGap(writerGuid, g)
		return
	case guid.EntityIdSEDPBuiltinSubscriptionsWriter:
		p.sedp.SubscriptionsReader.HandleGap(writerGuid, g)
		return
	case guid.EntityIdSEDPBuiltinTopicsWriter:
		p.sedp.TopicsReader.HandleGap(writerGuid, g)
		return
	}

	readerGuid := guid.Guid{Prefix: p.prefix, EntityId: g.ReaderID}
	p.mu.Lock()
	dr, ok := p.readers[readerGuid]
	p.mu.Unlock()
	if !ok {
		return
	}
	dr.HandleGap(writerGuid, g)
}

// drainSend flushes every writer's Unsent/Requested traffic, every
// reader's unsolicited ACKNACK, and the SEDP agent's own pending sends.
func (p *Participant) drainSend() {
	p.mu.Lock()
	writers := make([]*DataWriter, 0, len(p.writers))
	for _, dw := range p.writers {
		writers = append(writers, dw)
	}
	readers := make([]*DataReader, 0, len(p.readers))
	for _, dr := range p.readers {
		readers = append(readers, dr)
	}
	p.mu.Unlock()

	var out []message.Outbound
	for _, dw := range writers {
		out = append(out, dw.Send()...)
	}
	for _, dr := range readers {
		out = append(out, dr.PeriodicAckNack()...)
	}
	out = append(out, p.sedp.Send()...)
	out = append(out, p.builtinPeriodicAckNacks()...)
	p.flush(out)
}

// drainHeartbeat flushes every reliable writer's periodic HEARTBEAT,
// including the SEDP agent's three built-in writers (spec.md §4.4.2).
func (p *Participant) drainHeartbeat() {
	p.mu.Lock()
	writers := make([]*DataWriter, 0, len(p.writers))
	for _, dw := range p.writers {
		writers = append(writers, dw)
	}
	p.mu.Unlock()

	var out []message.Outbound
	for _, dw := range writers {
		out = append(out, dw.Heartbeat()...)
	}
	out = append(out, p.sedp.Heartbeat()...)
	p.flush(out)
}

func (p *Participant) builtinPeriodicAckNacks() []message.Outbound {
	var out []message.Outbound
	for _, r := range []*endpoint.StatefulReader{p.sedp.PublicationsReader, p.sedp.SubscriptionsReader, p.sedp.TopicsReader} {
		for _, w := range r.MatchedWriters() {
			an, ok := r.AckNackFor(w)
			if !ok || len(an.ReaderSNState.Missing()) == 0 {
				continue
			}
			sm := an.Encode(false)
			for _, loc := range r.WriterLocators(w) {
				out = append(out, message.Outbound{Locator: loc, Submessage: sm})
			}
		}
	}
	return out
}

func (p *Participant) flush(out []message.Outbound) {
	if len(out) == 0 {
		return
	}
	for loc, datagrams := range p.sender.Batch(out) {
		for _, dg := range datagrams {
			p.write(loc, dg)
		}
	}
}

func (p *Participant) write(loc wire.Locator, data []byte) {
	if err := p.tp.Write(p.ctx, loc, data); err != nil {
		p.log.Entry(loglvl.WarnLevel, "participant: write failed").ErrorAdd(true, err).Log()
	}
}
