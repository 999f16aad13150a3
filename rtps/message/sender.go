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

package message

import (
	"time"

	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// DefaultMTU is the conservative UDP payload size this core batches
// submessages to, below typical Ethernet MTU minus IP/UDP headers.
const DefaultMTU = 1400

// Outbound is one submessage queued for a destination locator, with
// enough addressing context for the Sender to prepend INFO_DST/INFO_TS.
type Outbound struct {
	Locator         wire.Locator
	DestGuidPrefix  guid.GuidPrefix // zero means "no specific participant"
	Timestamp       time.Time
	HasTimestamp    bool
	Submessage      Submessage
}

// Sender batches Outbound submessages addressed to the same locator
// into as few datagrams as fit under mtu, prepending INFO_DST ahead of
// a destination change and INFO_TS ahead of a run of DATA submessages
// sharing one timestamp (spec.md §4.2).
type Sender struct {
	header Header
	mtu    int
}

// NewSender builds a Sender that stamps every outgoing message with
// the given participant header.
func NewSender(header Header, mtu int) *Sender {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &Sender{header: header, mtu: mtu}
}

// Batch groups queued submessages per locator into one or more
// datagrams apiece, respecting the MTU.
func (s *Sender) Batch(queue []Outbound) map[wire.Locator][][]byte {
	byLocator := make(map[wire.Locator][]Outbound)
	for _, o := range queue {
		byLocator[o.Locator] = append(byLocator[o.Locator], o)
	}

	out := make(map[wire.Locator][][]byte)
	for loc, items := range byLocator {
		out[loc] = s.batchOne(items)
	}
	return out
}

func (s *Sender) batchOne(items []Outbound) [][]byte {
	var datagrams [][]byte
	var cur Message
	cur.Header = s.header
	curLen := 20 // header

	var lastDest guid.GuidPrefix
	haveDest := false
	var lastTS time.Time
	haveTS := false

	flush := func() {
		if len(cur.Submessages) > 0 {
			datagrams = append(datagrams, cur.Encode())
		}
		cur = Message{Header: s.header}
		curLen = 20
		haveDest = false
		haveTS = false
	}

	for _, item := range items {
		var prepend []Submessage

		if item.DestGuidPrefix != (guid.GuidPrefix{}) && (!haveDest || lastDest != item.DestGuidPrefix) {
			prepend = append(prepend, InfoDst{GuidPrefix: item.DestGuidPrefix}.Encode(false))
			lastDest = item.DestGuidPrefix
			haveDest = true
		}
		if item.HasTimestamp && (!haveTS || !lastTS.Equal(item.Timestamp)) {
			prepend = append(prepend, FromTime(item.Timestamp).Encode(false))
			lastTS = item.Timestamp
			haveTS = true
		}

		addLen := len(item.Submessage.Body) + 4
		for _, p := range prepend {
			addLen += len(p.Body) + 4
		}

		if curLen+addLen > s.mtu && len(cur.Submessages) > 0 {
			flush()
			// Destination/timestamp context resets per datagram, so the
			// first submessage of the new datagram must re-prepend.
			prepend = nil
			if item.DestGuidPrefix != (guid.GuidPrefix{}) {
				prepend = append(prepend, InfoDst{GuidPrefix: item.DestGuidPrefix}.Encode(false))
				lastDest = item.DestGuidPrefix
				haveDest = true
			}
			if item.HasTimestamp {
				prepend = append(prepend, FromTime(item.Timestamp).Encode(false))
				lastTS = item.Timestamp
				haveTS = true
			}
		}

		for _, p := range prepend {
			cur.Submessages = append(cur.Submessages, p)
			curLen += len(p.Body) + 4
		}
		cur.Submessages = append(cur.Submessages, item.Submessage)
		curLen += len(item.Submessage.Body) + 4
	}
	flush()
	return datagrams
}
