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

	"github.com/sabouaram/rtpsdds/rtps/fragment"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// StatefulReaderConfig bundles the reliable reader's response timing
// (spec.md §4.5).
type StatefulReaderConfig struct {
	HeartbeatResponseDelay time.Duration
}

func DefaultStatefulReaderConfig() StatefulReaderConfig {
	return StatefulReaderConfig{HeartbeatResponseDelay: 500 * time.Millisecond}
}

// StatefulReader implements the reliable reader behavior of spec.md
// §4.5: per-matched-writer gap tracking, heartbeat-driven ACKNACK
// generation and DATA_FRAG reassembly.
type StatefulReader struct {
	mu      sync.Mutex
	Guid    guid.Guid
	Cache   *history.ReaderCache
	Config  StatefulReaderConfig
	proxies   map[guid.Guid]*WriterProxy
	reasm     *fragment.Reassembler
	count     wire.Count
	fragCount wire.Count
}

func NewStatefulReader(g guid.Guid, cache *history.ReaderCache, cfg StatefulReaderConfig) *StatefulReader {
	return &StatefulReader{
		Guid:    g,
		Cache:   cache,
		Config:  cfg,
		proxies: make(map[guid.Guid]*WriterProxy),
		reasm:   fragment.NewReassembler(),
	}
}

// MatchedWriterAdd registers a newly matched writer.
func (r *StatefulReader) MatchedWriterAdd(writerGuid guid.Guid, locators []wire.Locator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proxies[writerGuid] = NewWriterProxy(writerGuid, locators)
}

// MatchedWriterRemove drops a writer proxy.
func (r *StatefulReader) MatchedWriterRemove(writerGuid guid.Guid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.proxies, writerGuid)
}

// MatchedWriters lists the currently matched writer guids.
func (r *StatefulReader) MatchedWriters() []guid.Guid {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]guid.Guid, 0, len(r.proxies))
	for g := range r.proxies {
		out = append(out, g)
	}
	return out
}

// HandleData processes DATA from writerGuid with sequence sn. Drops
// duplicates (sn <= available_changes_max) per spec.md §4.5. instance
// and kind are resolved by the caller (rtps/cdr + the topic's key
// extraction), since this package doesn't know user types.
func (r *StatefulReader) HandleData(writerGuid guid.Guid, d message.Data, instance wire.InstanceHandle, kind history.ChangeKind) *history.ReaderSample {
	r.mu.Lock()
	wp, ok := r.proxies[writerGuid]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	isNew := wp.ReceiveChange(d.WriterSN)
	r.mu.Unlock()
	if !isNew {
		return nil
	}

	ch := &history.CacheChange{
		Kind:           kind,
		WriterGuid:     writerGuid,
		SequenceNumber: d.WriterSN,
		InstanceHandle: instance,
		InlineQos:      d.InlineQos,
		Payload:        d.SerializedData,
	}
	return r.Cache.Insert(ch)
}

// HandleDataFrag processes one DATA_FRAG submessage, returning the
// completed sample once every fragment of the change has arrived (and
// nil while reassembly is still in progress).
func (r *StatefulReader) HandleDataFrag(writerGuid guid.Guid, df message.DataFrag, instance wire.InstanceHandle, kind history.ChangeKind) (*history.ReaderSample, error) {
	r.mu.Lock()
	wp, ok := r.proxies[writerGuid]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if df.WriterSN <= wp.AvailableChangesMax {
		return nil, nil
	}

	key := fragment.Key{Writer: writerGuid, SN: df.WriterSN}
	buf := r.reasm.Buffer(key, uint32(df.FragmentSize), df.DataSize)
	complete, err := buf.AddFragment(df.FragmentStartingNum, uint32(df.FragmentsInSubmsg), df.SerializedData)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, nil
	}
	payload, err := buf.Assemble()
	if err != nil {
		return nil, err
	}
	r.reasm.Discard(key)

	r.mu.Lock()
	isNew := wp.ReceiveChange(df.WriterSN)
	r.mu.Unlock()
	if !isNew {
		return nil, nil
	}

	ch := &history.CacheChange{
		Kind:           kind,
		WriterGuid:     writerGuid,
		SequenceNumber: df.WriterSN,
		InstanceHandle: instance,
		Payload:        payload,
	}
	return r.Cache.Insert(ch), nil
}

// HandleHeartbeat processes a HEARTBEAT and returns whether an ACKNACK
// is owed (the caller schedules it after HeartbeatResponseDelay) and
// the missing bitmap it should carry when sent (spec.md §4.5).
func (r *StatefulReader) HandleHeartbeat(writerGuid guid.Guid, hb message.Heartbeat) (owed bool, an message.AckNack) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wp, ok := r.proxies[writerGuid]
	if !ok {
		return false, message.AckNack{}
	}
	if !wp.ApplyHeartbeat(hb.FirstSN, hb.LastSN, hb.Count) {
		return false, message.AckNack{}
	}

	missing := wp.MissingSet()
	if hb.FinalFlag && len(missing) == 0 {
		return false, message.AckNack{}
	}

	r.count++
	wp.AckNackCount = r.count
	bits := make([]bool, 0, len(missing))
	base := wp.AvailableChangesMax + 1
	maxSN := base
	for _, sn := range missing {
		if sn > maxSN {
			maxSN = sn
		}
	}
	n := int(maxSN - base + 1)
	if n < 0 {
		n = 0
	}
	bitset := make([]bool, n)
	for _, sn := range missing {
		bitset[sn-base] = true
	}
	bits = bitset

	return true, message.AckNack{
		ReaderID:      r.Guid.EntityId,
		WriterID:      writerGuid.EntityId,
		ReaderSNState: message.SequenceNumberSet{Base: base, Bits: bits},
		Count:         r.count,
	}
}

// HandleHeartbeatFrag processes a HEARTBEAT_FRAG for one fragmented
// sample, returning whether a NACK_FRAG is owed and the missing-fragment
// bitmap it should carry (spec.md §4.6). With no reassembly buffer yet,
// every announced fragment is missing.
func (r *StatefulReader) HandleHeartbeatFrag(writerGuid guid.Guid, hf message.HeartbeatFrag) (owed bool, nf message.NackFrag) {
	r.mu.Lock()
	wp, ok := r.proxies[writerGuid]
	if !ok {
		r.mu.Unlock()
		return false, message.NackFrag{}
	}
	if wp.HaveHeartbeatFrag && hf.Count <= wp.LastHeartbeatFragCount {
		r.mu.Unlock()
		return false, message.NackFrag{}
	}
	wp.LastHeartbeatFragCount = hf.Count
	wp.HaveHeartbeatFrag = true
	done := hf.WriterSN <= wp.AvailableChangesMax || wp.Received[hf.WriterSN] || wp.Irrelevant[hf.WriterSN]
	r.mu.Unlock()
	if done {
		return false, message.NackFrag{}
	}

	var missing []wire.FragmentNumber
	key := fragment.Key{Writer: writerGuid, SN: hf.WriterSN}
	if buf, ok := r.reasm.Lookup(key); ok {
		missing = buf.Missing()
	} else {
		for fn := wire.FragmentNumber(1); fn <= hf.LastFragmentNum; fn++ {
			missing = append(missing, fn)
		}
	}
	if len(missing) == 0 {
		return false, message.NackFrag{}
	}

	base := missing[0]
	span := int(missing[len(missing)-1] - base + 1)
	if span > 256 {
		span = 256
	}
	bits := make([]bool, span)
	for _, fn := range missing {
		if idx := int(fn - base); idx < span {
			bits[idx] = true
		}
	}

	r.mu.Lock()
	r.fragCount++
	cnt := r.fragCount
	r.mu.Unlock()
	return true, message.NackFrag{
		ReaderID:            r.Guid.EntityId,
		WriterID:            writerGuid.EntityId,
		WriterSN:            hf.WriterSN,
		FragmentNumberState: message.FragmentNumberSet{Base: base, Bits: bits},
		Count:               cnt,
	}
}

// HandleGap marks the submessage's sequence range irrelevant
// (spec.md §4.5).
func (r *StatefulReader) HandleGap(writerGuid guid.Guid, g message.Gap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wp, ok := r.proxies[writerGuid]
	if !ok {
		return
	}
	for sn := g.GapStart; sn < g.GapList.Base; sn++ {
		wp.ReceiveGap(sn)
	}
	for _, sn := range g.GapList.Missing() {
		wp.ReceiveGap(sn)
	}
}

// WriterLocators returns the locators registered for a matched writer,
// for callers addressing an unsolicited ACKNACK without a dds.DataReader
// wrapper (the built-in SEDP/SPDP endpoints).
func (r *StatefulReader) WriterLocators(writerGuid guid.Guid) []wire.Locator {
	r.mu.Lock()
	defer r.mu.Unlock()
	wp, ok := r.proxies[writerGuid]
	if !ok {
		return nil
	}
	return append([]wire.Locator(nil), wp.Locators...)
}

// AckNackFor builds an unsolicited ACKNACK reflecting the current
// missing set for a matched writer (used by periodic liveliness
// acknacks and by tests).
func (r *StatefulReader) AckNackFor(writerGuid guid.Guid) (message.AckNack, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wp, ok := r.proxies[writerGuid]
	if !ok {
		return message.AckNack{}, false
	}
	r.count++
	missing := wp.MissingSet()
	base := wp.AvailableChangesMax + 1
	maxSN := base
	for _, sn := range missing {
		if sn > maxSN {
			maxSN = sn
		}
	}
	n := int(maxSN - base + 1)
	if n < 0 {
		n = 0
	}
	bitset := make([]bool, n)
	for _, sn := range missing {
		bitset[sn-base] = true
	}
	return message.AckNack{
		ReaderID:      r.Guid.EntityId,
		WriterID:      writerGuid.EntityId,
		ReaderSNState: message.SequenceNumberSet{Base: base, Bits: bitset},
		Count:         r.count,
	}, true
}
