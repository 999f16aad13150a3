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
)

// ReceiverState is the per-message state threaded through a single
// datagram's submessage run, updated by INFO_* submessages and
// consulted by the DATA/HEARTBEAT/ACKNACK submessages that follow them
// (spec.md §4.2).
type ReceiverState struct {
	SourceGuidPrefix guid.GuidPrefix
	DestGuidPrefix   guid.GuidPrefix
	Timestamp        time.Time
	HaveTimestamp    bool
}

// NewReceiverState seeds state from the message header; SourceGuidPrefix
// starts as the header's prefix and DestGuidPrefix is unknown until an
// INFO_DST submessage sets it.
func NewReceiverState(h Header) *ReceiverState {
	return &ReceiverState{SourceGuidPrefix: h.GuidPrefix}
}

// Apply updates receiver state for one INFO_* submessage; it is a
// no-op for any other kind.
func (s *ReceiverState) Apply(sm Submessage) {
	switch sm.Kind {
	case KindInfoSrc:
		if len(sm.Body) >= 12 {
			copy(s.SourceGuidPrefix[:], sm.Body[len(sm.Body)-12:])
		}
	case KindInfoDst:
		if d, ok := DecodeInfoDst(sm); ok {
			s.DestGuidPrefix = d.GuidPrefix
		}
	case KindInfoTS:
		if t, ok := DecodeInfoTS(sm); ok {
			if t.Invalidate {
				s.HaveTimestamp = false
			} else {
				s.Timestamp = t.ToTime()
				s.HaveTimestamp = true
			}
		}
	}
}

// Dispatch is a single routed submessage, its body not yet decoded,
// plus the receiver state in effect when it arrived. It carries no
// addressed entity id: the caller resolves the ReaderId or WriterId
// from the decoded body.
type Dispatch struct {
	Submessage Submessage
	State      ReceiverState
}

// Route decodes a full datagram into per-submessage Dispatches, each
// carrying a snapshot of the receiver state as of that submessage.
// Submessages of an unrecognized kind are dropped and counted in the
// returned int; a framing error (bad header, truncated or overrunning
// submessage length) rejects the whole datagram with an error.
func Route(data []byte) ([]Dispatch, int, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, 0, err
	}
	state := NewReceiverState(m.Header)
	var out []Dispatch
	dropped := 0
	for _, sm := range m.Submessages {
		switch sm.Kind {
		case KindInfoSrc, KindInfoDst, KindInfoTS:
			state.Apply(sm)
			continue
		case KindPad, KindInfoReply:
			// INFO_REPLY's reply locators are recognized but unused:
			// this core answers to the locators learned via discovery.
			continue
		}
		if !isKnownKind(sm.Kind) {
			dropped++
			continue
		}
		snapshot := *state
		out = append(out, Dispatch{Submessage: sm, State: snapshot})
	}
	return out, dropped, nil
}

func isKnownKind(k SubmessageKind) bool {
	switch k {
	case KindAckNack, KindHeartbeat, KindGap, KindData, KindDataFrag, KindNackFrag, KindHeartbeatFrag, KindPing:
		return true
	}
	return false
}
