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

// Package endpoint implements the RTPS reader and writer behaviors:
// the stateless reader-locator form used by discovery and best-effort
// endpoints, and the stateful reader-proxy/writer-proxy form used by
// reliable endpoints (spec.md §4.3–§4.5).
package endpoint

import (
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// ChangeForReaderStatus tracks, from a stateful writer's point of view,
// the delivery status of one change for one matched reader.
type ChangeForReaderStatus int

const (
	Unsent ChangeForReaderStatus = iota
	Unacknowledged
	Requested
	Acknowledged
	Underway
)

// ReaderLocator is the unit a stateless writer tracks per destination:
// a locator plus the highest sequence number sent there so far
// (spec.md §4.3).
type ReaderLocator struct {
	Locator          wire.Locator
	ExpectsInlineQos bool
	HighestSent      wire.SequenceNumber
}

// ReaderProxy is the unit a stateful writer tracks per matched reader
// (spec.md §3, "ReaderProxy").
type ReaderProxy struct {
	Guid             guid.Guid
	Locators         []wire.Locator
	ExpectsInlineQos bool
	IsReliable       bool

	Status          map[wire.SequenceNumber]ChangeForReaderStatus
	HighestAcked    wire.SequenceNumber
	HeartbeatCount  wire.Count
}

// NewReaderProxy builds a proxy for a newly matched reader; every
// change currently retained by the writer ([firstSN, lastSN]) starts
// Unsent.
func NewReaderProxy(g guid.Guid, locators []wire.Locator, expectsInlineQos, reliable bool, firstSN, lastSN wire.SequenceNumber) *ReaderProxy {
	rp := &ReaderProxy{
		Guid:             g,
		Locators:         locators,
		ExpectsInlineQos: expectsInlineQos,
		IsReliable:       reliable,
		Status:           make(map[wire.SequenceNumber]ChangeForReaderStatus),
		HighestAcked:     firstSN - 1,
	}
	for sn := firstSN; sn <= lastSN; sn++ {
		rp.Status[sn] = Unsent
	}
	return rp
}

// AddChange marks a newly produced change Unsent for this proxy.
func (rp *ReaderProxy) AddChange(sn wire.SequenceNumber) {
	rp.Status[sn] = Unsent
}

// UnsentChanges returns, in ascending order, every sequence number
// still Unsent.
func (rp *ReaderProxy) UnsentChanges() []wire.SequenceNumber {
	return rp.filterSorted(Unsent)
}

// RequestedChanges returns, in ascending order, every sequence number
// Requested via ACKNACK.
func (rp *ReaderProxy) RequestedChanges() []wire.SequenceNumber {
	return rp.filterSorted(Requested)
}

func (rp *ReaderProxy) filterSorted(status ChangeForReaderStatus) []wire.SequenceNumber {
	var out []wire.SequenceNumber
	for sn, st := range rp.Status {
		if st == status {
			out = append(out, sn)
		}
	}
	sortSNs(out)
	return out
}

func sortSNs(s []wire.SequenceNumber) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// MarkSent transitions a change from Underway-pending to Unacknowledged
// (reliable) once it has been put on the wire, per spec.md §4.4.1.
func (rp *ReaderProxy) MarkSent(sn wire.SequenceNumber) {
	if rp.IsReliable {
		rp.Status[sn] = Unacknowledged
	} else {
		rp.Status[sn] = Acknowledged
	}
}

// AcknowledgeThrough applies an ACKNACK's base: every tracked sequence
// strictly below base is Acknowledged and HighestAcked advances.
func (rp *ReaderProxy) AcknowledgeThrough(base wire.SequenceNumber) {
	for sn := range rp.Status {
		if sn < base {
			rp.Status[sn] = Acknowledged
			delete(rp.Status, sn)
		}
	}
	if base-1 > rp.HighestAcked {
		rp.HighestAcked = base - 1
	}
}

// MarkRequested flags the given sequence numbers Requested. Entries the
// writer no longer retains still get flagged: the send task resolves
// them to a GAP when the cache lookup fails (spec.md §4.4.3).
func (rp *ReaderProxy) MarkRequested(sns []wire.SequenceNumber) {
	for _, sn := range sns {
		rp.Status[sn] = Requested
	}
}

// IsFullyAcked reports whether every change up to lastSN has been
// acknowledged, the condition for wait_for_acknowledgments (spec.md
// §4.4 "Termination").
func (rp *ReaderProxy) IsFullyAcked(lastSN wire.SequenceNumber) bool {
	return rp.HighestAcked >= lastSN
}

// WriterProxy is the unit a stateful reader tracks per matched writer
// (spec.md §3, "WriterProxy").
type WriterProxy struct {
	Guid                guid.Guid
	Locators            []wire.Locator

	AvailableChangesMax wire.SequenceNumber
	Missing             map[wire.SequenceNumber]bool
	Received            map[wire.SequenceNumber]bool
	Irrelevant          map[wire.SequenceNumber]bool

	LastHeartbeatCount     wire.Count
	HaveHeartbeat          bool
	AckNackCount           wire.Count
	LastHeartbeatFragCount wire.Count
	HaveHeartbeatFrag      bool
}

// NewWriterProxy builds a proxy for a newly matched writer.
func NewWriterProxy(g guid.Guid, locators []wire.Locator) *WriterProxy {
	return &WriterProxy{
		Guid:      g,
		Locators:  locators,
		Missing:   make(map[wire.SequenceNumber]bool),
		Received:  make(map[wire.SequenceNumber]bool),
		Irrelevant: make(map[wire.SequenceNumber]bool),
	}
}

// ReceiveChange records sn as received and advances
// AvailableChangesMax as far as the contiguous run extends
// (spec.md §4.5).
func (wp *WriterProxy) ReceiveChange(sn wire.SequenceNumber) (isNew bool) {
	if sn <= wp.AvailableChangesMax || wp.Received[sn] || wp.Irrelevant[sn] {
		return false
	}
	wp.Received[sn] = true
	delete(wp.Missing, sn)
	wp.advance()
	return true
}

// ReceiveGap marks sn irrelevant: it counts as received for contiguity
// purposes but yields no user sample (spec.md §4.5).
func (wp *WriterProxy) ReceiveGap(sn wire.SequenceNumber) {
	if sn <= wp.AvailableChangesMax {
		return
	}
	wp.Irrelevant[sn] = true
	delete(wp.Missing, sn)
	wp.advance()
}

func (wp *WriterProxy) advance() {
	for {
		next := wp.AvailableChangesMax + 1
		if wp.Received[next] {
			delete(wp.Received, next)
			wp.AvailableChangesMax = next
			continue
		}
		if wp.Irrelevant[next] {
			delete(wp.Irrelevant, next)
			wp.AvailableChangesMax = next
			continue
		}
		break
	}
}

// ApplyHeartbeat updates the missing set from a HEARTBEAT(firstSN,
// lastSN, count). Stale heartbeats (count <= LastHeartbeatCount) are
// ignored. Returns ok=false for a stale/duplicate heartbeat.
func (wp *WriterProxy) ApplyHeartbeat(firstSN, lastSN wire.SequenceNumber, count wire.Count) (ok bool) {
	if wp.HaveHeartbeat && count <= wp.LastHeartbeatCount {
		return false
	}
	wp.LastHeartbeatCount = count
	wp.HaveHeartbeat = true

	// Sequences below firstSN are lost forever; treat them as available
	// (the writer will never resend them).
	if firstSN-1 > wp.AvailableChangesMax {
		wp.AvailableChangesMax = firstSN - 1
	}
	for sn := wp.AvailableChangesMax + 1; sn <= lastSN; sn++ {
		if !wp.Received[sn] && !wp.Irrelevant[sn] {
			wp.Missing[sn] = true
		}
	}
	return true
}

// MissingSet returns the current missing sequence numbers, sorted.
func (wp *WriterProxy) MissingSet() []wire.SequenceNumber {
	var out []wire.SequenceNumber
	for sn := range wp.Missing {
		out = append(out, sn)
	}
	sortSNs(out)
	return out
}
