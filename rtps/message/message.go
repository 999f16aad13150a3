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

// Package message implements RTPS message framing (spec.md §4.2): the
// fixed message header, the submessage stream, and the per-message
// receiver state threaded through INFO_* submessages.
package message

import (
	"encoding/binary"

	rerrors "github.com/nabbar/golib/errors"

	"github.com/sabouaram/rtpsdds/ddserr"
	"github.com/sabouaram/rtpsdds/rtps/guid"
)

const errFraming = ddserr.MinPkgMessage + 1

func errf(msg string) rerrors.Error {
	return rerrors.New(errFraming, msg)
}

// ProtocolVersion is the two-byte RTPS protocol version; this core
// speaks 2.4 per spec.md §6.
var ProtocolVersion = [2]byte{2, 4}

// VendorID identifies the implementation that produced a message. The
// value is unregistered (vendor id 0x0000 is reserved for "unknown");
// this core uses a private, unassigned id.
var VendorID = [2]byte{0x01, 0xff}

// Magic is the 4-byte "RTPS" literal at the start of every message.
var Magic = [4]byte{'R', 'T', 'P', 'S'}

// Header is the fixed 20-byte RTPS message header.
type Header struct {
	ProtocolVersion [2]byte
	VendorID        [2]byte
	GuidPrefix      guid.GuidPrefix
}

// Encode writes the 20-byte header.
func (h Header) Encode() []byte {
	buf := make([]byte, 20)
	copy(buf[0:4], Magic[:])
	buf[4], buf[5] = h.ProtocolVersion[0], h.ProtocolVersion[1]
	buf[6], buf[7] = h.VendorID[0], h.VendorID[1]
	copy(buf[8:20], h.GuidPrefix[:])
	return buf
}

// DecodeHeader parses the fixed header from the start of a datagram.
func DecodeHeader(data []byte) (Header, []byte, error) {
	if len(data) < 20 {
		return Header{}, nil, errf("message: datagram shorter than RTPS header")
	}
	if string(data[0:4]) != string(Magic[:]) {
		return Header{}, nil, errf("message: missing RTPS magic")
	}
	var h Header
	h.ProtocolVersion[0], h.ProtocolVersion[1] = data[4], data[5]
	h.VendorID[0], h.VendorID[1] = data[6], data[7]
	copy(h.GuidPrefix[:], data[8:20])
	return h, data[20:], nil
}

// SubmessageKind identifies the kind of a submessage, per spec.md §4.2.
type SubmessageKind byte

const (
	KindPad            SubmessageKind = 0x01
	KindAckNack        SubmessageKind = 0x06
	KindHeartbeat      SubmessageKind = 0x07
	KindGap            SubmessageKind = 0x08
	KindInfoTS         SubmessageKind = 0x09
	KindInfoSrc        SubmessageKind = 0x0c
	KindInfoReply      SubmessageKind = 0x0f
	KindInfoDst        SubmessageKind = 0x0e
	KindNackFrag       SubmessageKind = 0x12
	KindHeartbeatFrag  SubmessageKind = 0x13
	KindData           SubmessageKind = 0x15
	KindDataFrag       SubmessageKind = 0x16
	KindPing           SubmessageKind = 0x7f // vendor-specific probe
)

// FlagEndianness is bit 0 of every submessage's flags byte: it governs
// the byte order of that submessage's body (spec.md §4.2).
const FlagEndianness byte = 0x01

// Submessage is one parsed or to-be-serialized unit within an RTPS
// message.
type Submessage struct {
	Kind  SubmessageKind
	Flags byte
	Body  []byte
}

// LittleEndian reports the endianness flag of this submessage.
func (s Submessage) LittleEndian() bool {
	return s.Flags&FlagEndianness != 0
}

func (s Submessage) order() binary.ByteOrder {
	if s.LittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Encode serializes the submessage header plus body. octetsToNextHeader
// is computed from len(Body) unless forceZeroLength is set, which emits
// octetsToNextHeader=0 to mean "to end of datagram" (legal only for
// DATA/DATA_FRAG per spec.md §4.2).
func (s Submessage) Encode(forceZeroLength bool) []byte {
	buf := make([]byte, 4)
	buf[0] = byte(s.Kind)
	buf[1] = s.Flags
	var octets uint16
	if !forceZeroLength {
		octets = uint16(len(s.Body))
	}
	s.order().PutUint16(buf[2:4], octets)
	return append(buf, s.Body...)
}

// Message is a parsed or to-be-sent RTPS message: one header plus an
// ordered run of submessages.
type Message struct {
	Header      Header
	Submessages []Submessage
}

// Encode serializes the full message. The last submessage takes the
// "rest of datagram" zero-length encoding when it is a DATA or
// DATA_FRAG with a non-empty body; every other submessage carries its
// body length.
func (m Message) Encode() []byte {
	out := m.Header.Encode()
	for i, sm := range m.Submessages {
		isLast := i == len(m.Submessages)-1
		zero := isLast && len(sm.Body) > 0 && (sm.Kind == KindData || sm.Kind == KindDataFrag)
		out = append(out, sm.Encode(zero)...)
	}
	return out
}

// Decode parses a full RTPS message out of a received datagram.
func Decode(data []byte) (*Message, error) {
	h, rest, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	m := &Message{Header: h}
	for len(rest) > 0 {
		if len(rest) < 4 {
			return nil, errf("message: truncated submessage header")
		}
		kind := SubmessageKind(rest[0])
		flags := rest[1]
		order := binary.BigEndian
		if flags&FlagEndianness != 0 {
			order = binary.LittleEndian
		}
		octets := order.Uint16(rest[2:4])
		rest = rest[4:]

		var body []byte
		if octets == 0 {
			if kind != KindData && kind != KindDataFrag {
				return nil, errf("message: octetsToNextHeader=0 is illegal for this submessage kind")
			}
			body = rest
			rest = nil
		} else {
			if int(octets) > len(rest) {
				return nil, errf("message: octetsToNextHeader overruns datagram")
			}
			body = rest[:octets]
			rest = rest[octets:]
		}
		m.Submessages = append(m.Submessages, Submessage{Kind: kind, Flags: flags, Body: body})
	}
	return m, nil
}
