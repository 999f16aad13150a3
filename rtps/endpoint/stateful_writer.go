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

package endpoint

import (
	"sync"
	"time"

	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// StatefulWriterConfig bundles the timing and fragmentation knobs a
// reliable writer runs under (spec.md §4.4, §4.6).
type StatefulWriterConfig struct {
	PushMode          bool
	HeartbeatPeriod   time.Duration
	NackResponseDelay time.Duration
	FragmentSize      uint32
}

// DefaultStatefulWriterConfig matches the OMG RTPS defaults.
func DefaultStatefulWriterConfig() StatefulWriterConfig {
	return StatefulWriterConfig{
		PushMode:          true,
		HeartbeatPeriod:   3 * time.Second,
		NackResponseDelay: 200 * time.Millisecond,
		FragmentSize:      1344,
	}
}

// StatefulWriter implements the reliable writer behavior of spec.md
// §4.4: per-matched-reader delivery tracking, periodic heartbeats and
// ACKNACK-driven retransmission.
type StatefulWriter struct {
	mu      sync.Mutex
	Guid    guid.Guid
	Cache   *history.WriterCache
	Config  StatefulWriterConfig
	proxies   map[guid.Guid]*ReaderProxy
	count     wire.Count
	fragCount wire.Count
}

func NewStatefulWriter(g guid.Guid, cache *history.WriterCache, cfg StatefulWriterConfig) *StatefulWriter {
	return &StatefulWriter{
		Guid:    g,
		Cache:   cache,
		Config:  cfg,
		proxies: make(map[guid.Guid]*ReaderProxy),
	}
}

// MatchedReaderAdd registers a newly matched reader, per spec.md §4.7.
func (w *StatefulWriter) MatchedReaderAdd(readerGuid guid.Guid, locators []wire.Locator, expectsInlineQos, reliable bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.proxies[readerGuid] = NewReaderProxy(readerGuid, locators, expectsInlineQos, reliable, w.Cache.MinSN(), w.Cache.MaxSN())
}

// MatchedReaderRemove drops a reader proxy (unmatch or lease expiry).
func (w *StatefulWriter) MatchedReaderRemove(readerGuid guid.Guid) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.proxies, readerGuid)
}

// MatchedReaders lists the currently matched reader guids.
func (w *StatefulWriter) MatchedReaders() []guid.Guid {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]guid.Guid, 0, len(w.proxies))
	for g := range w.proxies {
		out = append(out, g)
	}
	return out
}

// NewChange appends ch to the writer cache and marks it Unsent on
// every matched proxy.
func (w *StatefulWriter) NewChange(ch *history.CacheChange) (wire.SequenceNumber, error) {
	sn, err := w.Cache.Add(ch)
	if err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rp := range w.proxies {
		rp.AddChange(sn)
	}
	return sn, nil
}

// Send drains each proxy's Unsent and Requested changes, emitting
// DATA (or DATA_FRAG when the payload exceeds fragment_size) to the
// proxy's locators (spec.md §4.4.1). If PushMode is false, changes
// stay Unsent until requested by ACKNACK.
func (w *StatefulWriter) Send() []message.Outbound {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []message.Outbound
	for _, rp := range w.proxies {
		var pending []wire.SequenceNumber
		if w.Config.PushMode {
			pending = append(pending, rp.UnsentChanges()...)
		}
		pending = append(pending, rp.RequestedChanges()...)

		for _, sn := range pending {
			ch, ok := w.Cache.Get(sn)
			if !ok {
				// Purged since requested: tell the reader via GAP.
				gap := message.Gap{
					ReaderID: rp.Guid.EntityId,
					WriterID: w.Guid.EntityId,
					GapStart: sn,
					GapList:  message.SequenceNumberSet{Base: sn + 1},
				}
				out = append(out, toProxy(rp, gap.Encode(false))...)
				delete(rp.Status, sn)
				continue
			}
			out = append(out, w.encodeChange(rp, ch)...)
			rp.MarkSent(sn)
		}
	}
	return out
}

func (w *StatefulWriter) encodeChange(rp *ReaderProxy, ch *history.CacheChange) []message.Outbound {
	if w.Config.FragmentSize == 0 || uint32(len(ch.Payload)) <= w.Config.FragmentSize || !ch.Kind.HasPayload() {
		data := message.Data{
			ReaderID:       rp.Guid.EntityId,
			WriterID:       w.Guid.EntityId,
			WriterSN:       ch.SequenceNumber,
			HasInlineQos:   len(ch.InlineQos) > 0,
			InlineQos:      ch.InlineQos,
			HasData:        ch.Kind.HasPayload(),
			SerializedData: ch.Payload,
		}
		return stampTimestamp(ch, toProxy(rp, data.Encode(false)))
	}

	var out []message.Outbound
	nfrags := w.fragmentCount(ch)
	for i := uint32(1); i <= nfrags; i++ {
		df := w.encodeFragment(rp, ch, wire.FragmentNumber(i))
		out = append(out, toProxy(rp, df.Encode(false))...)
	}
	return stampTimestamp(ch, out)
}

// stampTimestamp carries the change's source timestamp onto its
// outbound DATA/DATA_FRAG so the Sender prepends INFO_TS (spec.md §4.2).
func stampTimestamp(ch *history.CacheChange, out []message.Outbound) []message.Outbound {
	if !ch.HasTimestamp {
		return out
	}
	for i := range out {
		out[i].Timestamp = ch.SourceTimestamp
		out[i].HasTimestamp = true
	}
	return out
}

// fragmentCount is ceil(len(payload)/fragment_size), or zero when the
// change is small enough to travel as plain DATA.
func (w *StatefulWriter) fragmentCount(ch *history.CacheChange) uint32 {
	fsize := w.Config.FragmentSize
	if fsize == 0 || uint32(len(ch.Payload)) <= fsize || !ch.Kind.HasPayload() {
		return 0
	}
	return (uint32(len(ch.Payload)) + fsize - 1) / fsize
}

func (w *StatefulWriter) encodeFragment(rp *ReaderProxy, ch *history.CacheChange, fn wire.FragmentNumber) message.DataFrag {
	total := uint32(len(ch.Payload))
	fsize := w.Config.FragmentSize
	start := (uint32(fn) - 1) * fsize
	end := start + fsize
	if end > total {
		end = total
	}
	return message.DataFrag{
		ReaderID:            rp.Guid.EntityId,
		WriterID:            w.Guid.EntityId,
		WriterSN:            ch.SequenceNumber,
		FragmentStartingNum: fn,
		FragmentsInSubmsg:   1,
		FragmentSize:        uint16(fsize),
		DataSize:            total,
		SerializedData:      ch.Payload[start:end],
	}
}

func toProxy(rp *ReaderProxy, sm message.Submessage) []message.Outbound {
	out := make([]message.Outbound, 0, len(rp.Locators))
	for _, loc := range rp.Locators {
		out = append(out, message.Outbound{Locator: loc, Submessage: sm})
	}
	return out
}

// Heartbeat emits a HEARTBEAT to every reliable, not-yet-fully-acked
// proxy (spec.md §4.4.2). liveliness marks it as a liveliness-only
// heartbeat that demands no ACKNACK response semantics beyond keeping
// the lease alive.
func (w *StatefulWriter) Heartbeat(liveliness bool) []message.Outbound {
	w.mu.Lock()
	defer w.mu.Unlock()

	last := w.Cache.MaxSN()
	first := w.Cache.MinSN()
	w.count++

	var out []message.Outbound
	for _, rp := range w.proxies {
		if !rp.IsReliable {
			continue
		}
		if !liveliness && rp.IsFullyAcked(last) {
			continue
		}
		hb := message.Heartbeat{
			ReaderID:       rp.Guid.EntityId,
			WriterID:       w.Guid.EntityId,
			FirstSN:        first,
			LastSN:         last,
			Count:          w.count,
			FinalFlag:      false,
			LivelinessFlag: liveliness,
		}
		rp.HeartbeatCount = w.count
		out = append(out, toProxy(rp, hb.Encode(false))...)

		// Unacknowledged fragmented changes additionally get a
		// HEARTBEAT_FRAG so the reader can NACK_FRAG individual missing
		// fragments instead of the whole sample (spec.md §4.6).
		for _, ch := range w.Cache.Range(rp.HighestAcked+1, last) {
			nfrags := w.fragmentCount(ch)
			if nfrags == 0 {
				continue
			}
			w.fragCount++
			hf := message.HeartbeatFrag{
				ReaderID:        rp.Guid.EntityId,
				WriterID:        w.Guid.EntityId,
				WriterSN:        ch.SequenceNumber,
				LastFragmentNum: wire.FragmentNumber(nfrags),
				Count:           w.fragCount,
			}
			out = append(out, toProxy(rp, hf.Encode(false))...)
		}
	}
	return out
}

// HandleNackFrag retransmits the specific fragments a matched reader
// reports missing, returning the DATA_FRAG traffic to put back on the
// wire (the caller applies nack_response_delay before flushing). A
// change no longer retained yields a GAP exactly as in the ACKNACK
// path.
func (w *StatefulWriter) HandleNackFrag(readerGuid guid.Guid, nf message.NackFrag) []message.Outbound {
	w.mu.Lock()
	defer w.mu.Unlock()

	rp, ok := w.proxies[readerGuid]
	if !ok {
		return nil
	}
	ch, ok := w.Cache.Get(nf.WriterSN)
	if !ok {
		gap := message.Gap{
			ReaderID: rp.Guid.EntityId,
			WriterID: w.Guid.EntityId,
			GapStart: nf.WriterSN,
			GapList:  message.SequenceNumberSet{Base: nf.WriterSN + 1},
		}
		return toProxy(rp, gap.Encode(false))
	}

	nfrags := w.fragmentCount(ch)
	var out []message.Outbound
	for _, fn := range nf.FragmentNumberState.Missing() {
		if uint32(fn) == 0 || uint32(fn) > nfrags {
			continue
		}
		df := w.encodeFragment(rp, ch, fn)
		out = append(out, toProxy(rp, df.Encode(false))...)
	}
	return out
}

// HandleAckNack processes an ACKNACK from a matched reader, advancing
// its acked set and flagging bitmap entries Requested so the next
// Send() call retransmits or GAPs them (spec.md §4.4.3).
func (w *StatefulWriter) HandleAckNack(readerGuid guid.Guid, an message.AckNack) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rp, ok := w.proxies[readerGuid]
	if !ok {
		return
	}
	rp.AcknowledgeThrough(an.ReaderSNState.Base)
	rp.MarkRequested(an.ReaderSNState.Missing())
}

// WaitForAcknowledgments reports whether every matched proxy has
// acknowledged through the writer's current last sequence number
// (spec.md §4.4 "Termination").
func (w *StatefulWriter) WaitForAcknowledgments() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last := w.Cache.MaxSN()
	for _, rp := range w.proxies {
		if rp.IsReliable && !rp.IsFullyAcked(last) {
			return false
		}
	}
	return true
}
