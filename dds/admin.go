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
	"time"

	"github.com/sabouaram/rtpsdds/admin"
	"github.com/sabouaram/rtpsdds/rtps/guid"
)

// Snapshot builds a debug snapshot of this participant's entity graph
// (spec.md §9 "cyclic references" resolves parent lookups by message,
// so this walks the participant's own registries rather than asking
// each DataWriter/DataReader to know its own siblings).
func (p *Participant) Snapshot() admin.Snapshot {
	p.mu.Lock()
	writers := make([]*DataWriter, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	readers := make([]*DataReader, 0, len(p.readers))
	for _, r := range p.readers {
		readers = append(readers, r)
	}
	p.mu.Unlock()

	snap := admin.Snapshot{
		Participant: guid.Participant(p.prefix).String(),
		Domain:      p.cfg.DomainID,
		Taken:       time.Now(),
	}
	for _, w := range writers {
		w.mu.Lock()
		snap.Writers = append(snap.Writers, admin.EntitySnapshot{
			Guid:     w.Guid.String(),
			Topic:    w.Topic.Name,
			TypeName: w.Topic.TypeName,
			Reliable: w.stateful != nil,
			Matched:  len(w.matched),
		})
		w.mu.Unlock()
	}
	for _, r := range readers {
		r.mu.Lock()
		snap.Readers = append(snap.Readers, admin.EntitySnapshot{
			Guid:     r.Guid.String(),
			Topic:    r.Topic.Name,
			TypeName: r.Topic.TypeName,
			Reliable: r.stateful != nil,
			Matched:  len(r.matched),
		})
		r.mu.Unlock()
	}
	return snap
}
