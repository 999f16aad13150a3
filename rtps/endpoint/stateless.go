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

	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// StatelessWriter drives SPDP and best-effort user writers that track
// destinations by locator rather than by matched-reader identity
// (spec.md §4.3).
type StatelessWriter struct {
	mu         sync.Mutex
	Guid       guid.Guid
	Cache      *history.WriterCache
	ReaderLocs []*ReaderLocator
}

func NewStatelessWriter(g guid.Guid, cache *history.WriterCache) *StatelessWriter {
	return &StatelessWriter{Guid: g, Cache: cache}
}

// AddReaderLocator registers a new destination; it starts with
// HighestSent = firstSN-1 so the next Period() call sends the oldest
// retained change.
func (w *StatelessWriter) AddReaderLocator(loc wire.Locator, expectsInlineQos bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ReaderLocs = append(w.ReaderLocs, &ReaderLocator{Locator: loc, ExpectsInlineQos: expectsInlineQos, HighestSent: w.Cache.MinSN() - 1})
}

// RemoveReaderLocator drops a destination (the peer is gone).
func (w *StatelessWriter) RemoveReaderLocator(loc wire.Locator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.ReaderLocs[:0]
	for _, rl := range w.ReaderLocs {
		if rl.Locator != loc {
			out = append(out, rl)
		}
	}
	w.ReaderLocs = out
}

// Period runs one iteration of the periodic send loop described in
// spec.md §4.3: for each reader locator, send the lowest unsent
// change, or a GAP if the oldest retained sequence has moved past what
// the locator has seen.
func (w *StatelessWriter) Period() []message.Outbound {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []message.Outbound
	first := w.Cache.MinSN()
	for _, rl := range w.ReaderLocs {
		if rl.HighestSent+1 < first {
			// Changes below `first` were purged by KeepLast; tell the
			// reader they're gone so it doesn't wait forever.
			gap := message.Gap{
				ReaderID: guid.EntityIdUnknown,
				WriterID: w.Guid.EntityId,
				GapStart: rl.HighestSent + 1,
				GapList:  message.SequenceNumberSet{Base: first},
			}
			out = append(out, message.Outbound{Locator: rl.Locator, Submessage: gap.Encode(false)})
			rl.HighestSent = first - 1
		}

		next := rl.HighestSent + 1
		ch, ok := w.Cache.Get(next)
		if !ok {
			continue
		}
		data := message.Data{
			ReaderID:     guid.EntityIdUnknown,
			WriterID:     w.Guid.EntityId,
			WriterSN:     ch.SequenceNumber,
			HasInlineQos: len(ch.InlineQos) > 0,
			InlineQos:    ch.InlineQos,
			HasData:      ch.Kind.HasPayload(),
			SerializedData: ch.Payload,
		}
		out = append(out, message.Outbound{
			Locator:      rl.Locator,
			Timestamp:    ch.SourceTimestamp,
			HasTimestamp: ch.HasTimestamp,
			Submessage:   data.Encode(false),
		})
		rl.HighestSent = next
	}
	return out
}

// StatelessReader accepts DATA addressed to ENTITYID_UNKNOWN or its own
// id and discards anything else (spec.md §4.3).
type StatelessReader struct {
	Guid  guid.Guid
	Cache *history.ReaderCache
}

func NewStatelessReader(g guid.Guid, cache *history.ReaderCache) *StatelessReader {
	return &StatelessReader{Guid: g, Cache: cache}
}

// HandleData processes one decoded DATA submessage from writerGuid.
// Returns the inserted sample, or nil if the datum was addressed to a
// different reader.
func (r *StatelessReader) HandleData(writerGuid guid.Guid, d message.Data, instance wire.InstanceHandle, kind history.ChangeKind) *history.ReaderSample {
	if d.ReaderID != guid.EntityIdUnknown && d.ReaderID != r.Guid.EntityId {
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
