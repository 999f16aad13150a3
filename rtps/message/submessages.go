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
	"encoding/binary"
	"time"

	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// bw/br are minimal aligned writer/reader for submessage bodies, whose
// alignment is relative to the start of the submessage, not to any
// encapsulation header (unlike rtps/cdr, which serializes payloads).
type bw struct {
	order binary.ByteOrder
	buf   []byte
}

func newBW(le bool) *bw {
	o := binary.ByteOrder(binary.BigEndian)
	if le {
		o = binary.LittleEndian
	}
	return &bw{order: o}
}

func (w *bw) align(n int) {
	pad := (n - len(w.buf)%n) % n
	for i := 0; i < pad; i++ {
		w.buf = append(w.buf, 0)
	}
}

func (w *bw) u8(v byte)  { w.buf = append(w.buf, v) }
func (w *bw) u16(v uint16) {
	w.align(2)
	b := make([]byte, 2)
	w.order.PutUint16(b, v)
	w.buf = append(w.buf, b...)
}
func (w *bw) u32(v uint32) {
	w.align(4)
	b := make([]byte, 4)
	w.order.PutUint32(b, v)
	w.buf = append(w.buf, b...)
}
func (w *bw) i32(v int32) { w.u32(uint32(v)) }
func (w *bw) bytes(b []byte) { w.buf = append(w.buf, b...) }

type br struct {
	order binary.ByteOrder
	buf   []byte
	pos   int
}

func newBR(buf []byte, le bool) *br {
	o := binary.ByteOrder(binary.BigEndian)
	if le {
		o = binary.LittleEndian
	}
	return &br{order: o, buf: buf}
}

func (r *br) align(n int) { r.pos += (n - r.pos%n) % n }

func (r *br) ok(n int) bool { return r.pos+n <= len(r.buf) }

func (r *br) u8() (byte, bool) {
	if !r.ok(1) {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}
func (r *br) u16() (uint16, bool) {
	r.align(2)
	if !r.ok(2) {
		return 0, false
	}
	v := r.order.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, true
}
func (r *br) u32() (uint32, bool) {
	r.align(4)
	if !r.ok(4) {
		return 0, false
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, true
}
func (r *br) i32() (int32, bool) {
	v, ok := r.u32()
	return int32(v), ok
}
func (r *br) bytes(n int) ([]byte, bool) {
	if !r.ok(n) {
		return nil, false
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

// sequenceNumber{High,Low} is the RTPS wire representation of a 64-bit
// sequence number split across two 32-bit fields.
func writeSN(w *bw, sn wire.SequenceNumber) {
	w.i32(int32(int64(sn) >> 32))
	w.u32(uint32(int64(sn)))
}

func readSN(r *br) (wire.SequenceNumber, bool) {
	hi, ok := r.i32()
	if !ok {
		return 0, false
	}
	lo, ok := r.u32()
	if !ok {
		return 0, false
	}
	return wire.SequenceNumber(int64(hi)<<32 | int64(lo)), true
}

func writeEntityID(w *bw, e guid.EntityId) {
	w.bytes(e.Key[:])
	w.u8(byte(e.Kind))
}

func readEntityID(r *br) (guid.EntityId, bool) {
	k, ok := r.bytes(3)
	if !ok {
		return guid.EntityId{}, false
	}
	kind, ok := r.u8()
	if !ok {
		return guid.EntityId{}, false
	}
	var e guid.EntityId
	copy(e.Key[:], k)
	e.Kind = guid.EntityKind(kind)
	return e, true
}

// SequenceNumberSet is the bitmap form used by ACKNACK/GAP: a base
// sequence number plus up to 256 following bits, bit i set meaning
// "base+i is requested/irrelevant".
type SequenceNumberSet struct {
	Base   wire.SequenceNumber
	Bits   []bool // len(Bits) == numBits; Bits[i] corresponds to Base+i
}

func writeSNSet(w *bw, s SequenceNumberSet) {
	writeSN(w, s.Base)
	w.i32(int32(len(s.Bits)))
	nwords := (len(s.Bits) + 31) / 32
	words := make([]uint32, nwords)
	for i, set := range s.Bits {
		if set {
			words[i/32] |= 1 << uint(31-i%32)
		}
	}
	for _, wd := range words {
		w.u32(wd)
	}
}

func readSNSet(r *br) (SequenceNumberSet, bool) {
	base, ok := readSN(r)
	if !ok {
		return SequenceNumberSet{}, false
	}
	n, ok := r.i32()
	if !ok || n < 0 || n > 256 {
		return SequenceNumberSet{}, false
	}
	nwords := (int(n) + 31) / 32
	bits := make([]bool, n)
	for i := 0; i < nwords; i++ {
		word, ok := r.u32()
		if !ok {
			return SequenceNumberSet{}, false
		}
		for b := 0; b < 32; b++ {
			idx := i*32 + b
			if idx >= int(n) {
				break
			}
			bits[idx] = word&(1<<uint(31-b)) != 0
		}
	}
	return SequenceNumberSet{Base: base, Bits: bits}, true
}

// Missing returns the absolute sequence numbers marked set in the bitmap.
func (s SequenceNumberSet) Missing() []wire.SequenceNumber {
	var out []wire.SequenceNumber
	for i, set := range s.Bits {
		if set {
			out = append(out, s.Base+wire.SequenceNumber(i))
		}
	}
	return out
}

// AckNack is the reader->writer retransmission request / acknowledgment.
type AckNack struct {
	ReaderID       guid.EntityId
	WriterID       guid.EntityId
	ReaderSNState  SequenceNumberSet
	Count          wire.Count
	FinalFlag      bool
}

const flagFinal byte = 0x02

func (a AckNack) Encode(littleEndian bool) Submessage {
	w := newBW(littleEndian)
	writeEntityID(w, a.ReaderID)
	writeEntityID(w, a.WriterID)
	writeSNSet(w, a.ReaderSNState)
	w.i32(int32(a.Count))
	flags := byte(0)
	if littleEndian {
		flags |= FlagEndianness
	}
	if a.FinalFlag {
		flags |= flagFinal
	}
	return Submessage{Kind: KindAckNack, Flags: flags, Body: w.buf}
}

func DecodeAckNack(sm Submessage) (AckNack, bool) {
	r := newBR(sm.Body, sm.LittleEndian())
	var a AckNack
	var ok bool
	if a.ReaderID, ok = readEntityID(r); !ok {
		return a, false
	}
	if a.WriterID, ok = readEntityID(r); !ok {
		return a, false
	}
	if a.ReaderSNState, ok = readSNSet(r); !ok {
		return a, false
	}
	cnt, ok := r.i32()
	if !ok {
		return a, false
	}
	a.Count = wire.Count(cnt)
	a.FinalFlag = sm.Flags&flagFinal != 0
	return a, true
}

// Heartbeat is the writer->reader availability announcement.
type Heartbeat struct {
	ReaderID       guid.EntityId
	WriterID       guid.EntityId
	FirstSN        wire.SequenceNumber
	LastSN         wire.SequenceNumber
	Count          wire.Count
	FinalFlag      bool
	LivelinessFlag bool
}

const flagLiveliness byte = 0x04

func (h Heartbeat) Encode(littleEndian bool) Submessage {
	w := newBW(littleEndian)
	writeEntityID(w, h.ReaderID)
	writeEntityID(w, h.WriterID)
	writeSN(w, h.FirstSN)
	writeSN(w, h.LastSN)
	w.i32(int32(h.Count))
	flags := byte(0)
	if littleEndian {
		flags |= FlagEndianness
	}
	if h.FinalFlag {
		flags |= flagFinal
	}
	if h.LivelinessFlag {
		flags |= flagLiveliness
	}
	return Submessage{Kind: KindHeartbeat, Flags: flags, Body: w.buf}
}

func DecodeHeartbeat(sm Submessage) (Heartbeat, bool) {
	r := newBR(sm.Body, sm.LittleEndian())
	var h Heartbeat
	var ok bool
	if h.ReaderID, ok = readEntityID(r); !ok {
		return h, false
	}
	if h.WriterID, ok = readEntityID(r); !ok {
		return h, false
	}
	if h.FirstSN, ok = readSN(r); !ok {
		return h, false
	}
	if h.LastSN, ok = readSN(r); !ok {
		return h, false
	}
	cnt, ok := r.i32()
	if !ok {
		return h, false
	}
	h.Count = wire.Count(cnt)
	h.FinalFlag = sm.Flags&flagFinal != 0
	h.LivelinessFlag = sm.Flags&flagLiveliness != 0
	return h, true
}

// Gap declares a range of sequence numbers irrelevant to the reader.
type Gap struct {
	ReaderID  guid.EntityId
	WriterID  guid.EntityId
	GapStart  wire.SequenceNumber
	GapList   SequenceNumberSet
}

func (g Gap) Encode(littleEndian bool) Submessage {
	w := newBW(littleEndian)
	writeEntityID(w, g.ReaderID)
	writeEntityID(w, g.WriterID)
	writeSN(w, g.GapStart)
	writeSNSet(w, g.GapList)
	flags := byte(0)
	if littleEndian {
		flags |= FlagEndianness
	}
	return Submessage{Kind: KindGap, Flags: flags, Body: w.buf}
}

func DecodeGap(sm Submessage) (Gap, bool) {
	r := newBR(sm.Body, sm.LittleEndian())
	var g Gap
	var ok bool
	if g.ReaderID, ok = readEntityID(r); !ok {
		return g, false
	}
	if g.WriterID, ok = readEntityID(r); !ok {
		return g, false
	}
	if g.GapStart, ok = readSN(r); !ok {
		return g, false
	}
	if g.GapList, ok = readSNSet(r); !ok {
		return g, false
	}
	return g, true
}

// FragmentNumberSet is the bitmap form used by NACK_FRAG: a base
// fragment number plus up to 256 following bits, bit i set meaning
// "base+i is missing".
type FragmentNumberSet struct {
	Base wire.FragmentNumber
	Bits []bool
}

func writeFNSet(w *bw, s FragmentNumberSet) {
	w.u32(uint32(s.Base))
	w.i32(int32(len(s.Bits)))
	nwords := (len(s.Bits) + 31) / 32
	words := make([]uint32, nwords)
	for i, set := range s.Bits {
		if set {
			words[i/32] |= 1 << uint(31-i%32)
		}
	}
	for _, wd := range words {
		w.u32(wd)
	}
}

func readFNSet(r *br) (FragmentNumberSet, bool) {
	base, ok := r.u32()
	if !ok {
		return FragmentNumberSet{}, false
	}
	n, ok := r.i32()
	if !ok || n < 0 || n > 256 {
		return FragmentNumberSet{}, false
	}
	nwords := (int(n) + 31) / 32
	bits := make([]bool, n)
	for i := 0; i < nwords; i++ {
		word, ok := r.u32()
		if !ok {
			return FragmentNumberSet{}, false
		}
		for b := 0; b < 32; b++ {
			idx := i*32 + b
			if idx >= int(n) {
				break
			}
			bits[idx] = word&(1<<uint(31-b)) != 0
		}
	}
	return FragmentNumberSet{Base: wire.FragmentNumber(base), Bits: bits}, true
}

// Missing returns the absolute fragment numbers marked set in the bitmap.
func (s FragmentNumberSet) Missing() []wire.FragmentNumber {
	var out []wire.FragmentNumber
	for i, set := range s.Bits {
		if set {
			out = append(out, s.Base+wire.FragmentNumber(i))
		}
	}
	return out
}

// HeartbeatFrag announces, per fragmented sample, the highest fragment
// number available, driving NACK_FRAG recovery the way HEARTBEAT drives
// ACKNACK (spec.md §4.6).
type HeartbeatFrag struct {
	ReaderID        guid.EntityId
	WriterID        guid.EntityId
	WriterSN        wire.SequenceNumber
	LastFragmentNum wire.FragmentNumber
	Count           wire.Count
}

func (h HeartbeatFrag) Encode(littleEndian bool) Submessage {
	w := newBW(littleEndian)
	writeEntityID(w, h.ReaderID)
	writeEntityID(w, h.WriterID)
	writeSN(w, h.WriterSN)
	w.u32(uint32(h.LastFragmentNum))
	w.i32(int32(h.Count))
	flags := byte(0)
	if littleEndian {
		flags |= FlagEndianness
	}
	return Submessage{Kind: KindHeartbeatFrag, Flags: flags, Body: w.buf}
}

func DecodeHeartbeatFrag(sm Submessage) (HeartbeatFrag, bool) {
	r := newBR(sm.Body, sm.LittleEndian())
	var h HeartbeatFrag
	var ok bool
	if h.ReaderID, ok = readEntityID(r); !ok {
		return h, false
	}
	if h.WriterID, ok = readEntityID(r); !ok {
		return h, false
	}
	if h.WriterSN, ok = readSN(r); !ok {
		return h, false
	}
	last, ok := r.u32()
	if !ok {
		return h, false
	}
	h.LastFragmentNum = wire.FragmentNumber(last)
	cnt, ok := r.i32()
	if !ok {
		return h, false
	}
	h.Count = wire.Count(cnt)
	return h, true
}

// NackFrag requests retransmission of specific fragments of one sample,
// ACKNACK's counterpart at fragment granularity (spec.md §4.6).
type NackFrag struct {
	ReaderID            guid.EntityId
	WriterID            guid.EntityId
	WriterSN            wire.SequenceNumber
	FragmentNumberState FragmentNumberSet
	Count               wire.Count
}

func (n NackFrag) Encode(littleEndian bool) Submessage {
	w := newBW(littleEndian)
	writeEntityID(w, n.ReaderID)
	writeEntityID(w, n.WriterID)
	writeSN(w, n.WriterSN)
	writeFNSet(w, n.FragmentNumberState)
	w.i32(int32(n.Count))
	flags := byte(0)
	if littleEndian {
		flags |= FlagEndianness
	}
	return Submessage{Kind: KindNackFrag, Flags: flags, Body: w.buf}
}

func DecodeNackFrag(sm Submessage) (NackFrag, bool) {
	r := newBR(sm.Body, sm.LittleEndian())
	var n NackFrag
	var ok bool
	if n.ReaderID, ok = readEntityID(r); !ok {
		return n, false
	}
	if n.WriterID, ok = readEntityID(r); !ok {
		return n, false
	}
	if n.WriterSN, ok = readSN(r); !ok {
		return n, false
	}
	if n.FragmentNumberState, ok = readFNSet(r); !ok {
		return n, false
	}
	cnt, ok := r.i32()
	if !ok {
		return n, false
	}
	n.Count = wire.Count(cnt)
	return n, true
}

// InfoTS carries the source timestamp applied to the DATA submessages
// that follow it in the same message.
type InfoTS struct {
	Seconds     int32
	Fraction    uint32
	Invalidate  bool // INVALIDATE_FLAG: no timestamp applies to following DATA
}

const flagInvalidate byte = 0x02

func (t InfoTS) Encode(littleEndian bool) Submessage {
	w := newBW(littleEndian)
	flags := byte(0)
	if littleEndian {
		flags |= FlagEndianness
	}
	if t.Invalidate {
		flags |= flagInvalidate
		return Submessage{Kind: KindInfoTS, Flags: flags, Body: nil}
	}
	w.i32(t.Seconds)
	w.u32(t.Fraction)
	return Submessage{Kind: KindInfoTS, Flags: flags, Body: w.buf}
}

func DecodeInfoTS(sm Submessage) (InfoTS, bool) {
	if sm.Flags&flagInvalidate != 0 {
		return InfoTS{Invalidate: true}, true
	}
	r := newBR(sm.Body, sm.LittleEndian())
	sec, ok := r.i32()
	if !ok {
		return InfoTS{}, false
	}
	frac, ok := r.u32()
	if !ok {
		return InfoTS{}, false
	}
	return InfoTS{Seconds: sec, Fraction: frac}, true
}

// ToTime converts an InfoTS into a time.Time (NTP-style seconds since
// epoch plus a fractional-second field).
func (t InfoTS) ToTime() time.Time {
	return time.Unix(int64(t.Seconds), int64(float64(t.Fraction)/4294967296.0*1e9))
}

// FromTime builds an InfoTS from a time.Time.
func FromTime(t time.Time) InfoTS {
	return InfoTS{Seconds: int32(t.Unix()), Fraction: uint32(float64(t.Nanosecond()) / 1e9 * 4294967296.0)}
}

// InfoDst addresses the following submessages to a specific remote
// participant, identified by its GuidPrefix.
type InfoDst struct {
	GuidPrefix guid.GuidPrefix
}

func (d InfoDst) Encode(littleEndian bool) Submessage {
	flags := byte(0)
	if littleEndian {
		flags |= FlagEndianness
	}
	return Submessage{Kind: KindInfoDst, Flags: flags, Body: append([]byte{}, d.GuidPrefix[:]...)}
}

func DecodeInfoDst(sm Submessage) (InfoDst, bool) {
	if len(sm.Body) < 12 {
		return InfoDst{}, false
	}
	var d InfoDst
	copy(d.GuidPrefix[:], sm.Body[:12])
	return d, true
}

// Data carries (or references via fragments, see DataFrag) one change.
type Data struct {
	ReaderID       guid.EntityId
	WriterID       guid.EntityId
	WriterSN       wire.SequenceNumber
	InlineQos      []byte
	SerializedData []byte
	HasInlineQos   bool
	HasData        bool
}

const (
	flagDataInlineQos byte = 0x02
	flagDataData      byte = 0x04
	flagDataKey       byte = 0x08
)

func (d Data) Encode(littleEndian bool) Submessage {
	w := newBW(littleEndian)
	w.u16(0) // extraFlags
	qosOff := uint16(0)
	// octetsToInlineQos counts from just after this field to the start
	// of inline qos (or serialized data if no inline qos).
	headerPos := len(w.buf)
	w.u16(qosOff)
	writeEntityID(w, d.ReaderID)
	writeEntityID(w, d.WriterID)
	writeSN(w, d.WriterSN)
	realOff := uint16(len(w.buf) - headerPos - 2)
	w.order.PutUint16(w.buf[headerPos:headerPos+2], realOff)

	flags := byte(0)
	if littleEndian {
		flags |= FlagEndianness
	}
	if d.HasInlineQos && len(d.InlineQos) > 0 {
		flags |= flagDataInlineQos
		w.bytes(d.InlineQos)
	}
	if d.HasData {
		flags |= flagDataData
		w.bytes(d.SerializedData)
	} else {
		flags |= flagDataKey
	}
	return Submessage{Kind: KindData, Flags: flags, Body: w.buf}
}

func DecodeData(sm Submessage) (Data, bool) {
	r := newBR(sm.Body, sm.LittleEndian())
	if _, ok := r.u16(); !ok { // extraFlags
		return Data{}, false
	}
	octetsToInline, ok := r.u16()
	if !ok {
		return Data{}, false
	}
	inlineStart := r.pos + int(octetsToInline)
	var d Data
	if d.ReaderID, ok = readEntityID(r); !ok {
		return d, false
	}
	if d.WriterID, ok = readEntityID(r); !ok {
		return d, false
	}
	if d.WriterSN, ok = readSN(r); !ok {
		return d, false
	}
	if inlineStart > len(r.buf) {
		return d, false
	}
	r.pos = inlineStart

	if sm.Flags&flagDataInlineQos != 0 {
		d.HasInlineQos = true
		d.InlineQos = r.buf[r.pos:]
		// Inline QoS length is not separately framed; a parameter-list
		// sentinel terminates it. Callers needing the split must parse
		// the PL_CDR stream themselves via rtps/plist.
	}
	if sm.Flags&flagDataData != 0 {
		d.HasData = true
		d.SerializedData = r.buf[r.pos:]
	}
	return d, true
}

// DataFrag carries one or more contiguous fragments of a large sample.
type DataFrag struct {
	ReaderID           guid.EntityId
	WriterID           guid.EntityId
	WriterSN           wire.SequenceNumber
	FragmentStartingNum wire.FragmentNumber
	FragmentsInSubmsg  uint16
	FragmentSize       uint16
	DataSize           uint32
	SerializedData     []byte
}

func (d DataFrag) Encode(littleEndian bool) Submessage {
	w := newBW(littleEndian)
	w.u16(0) // extraFlags
	headerPos := len(w.buf)
	w.u16(0)
	writeEntityID(w, d.ReaderID)
	writeEntityID(w, d.WriterID)
	writeSN(w, d.WriterSN)
	realOff := uint16(len(w.buf) - headerPos - 2)
	w.order.PutUint16(w.buf[headerPos:headerPos+2], realOff)

	w.u32(uint32(d.FragmentStartingNum))
	w.u16(d.FragmentsInSubmsg)
	w.u16(d.FragmentSize)
	w.u32(d.DataSize)
	w.bytes(d.SerializedData)

	flags := byte(0)
	if littleEndian {
		flags |= FlagEndianness
	}
	return Submessage{Kind: KindDataFrag, Flags: flags, Body: w.buf}
}

func DecodeDataFrag(sm Submessage) (DataFrag, bool) {
	r := newBR(sm.Body, sm.LittleEndian())
	if _, ok := r.u16(); !ok {
		return DataFrag{}, false
	}
	octetsToInline, ok := r.u16()
	if !ok {
		return DataFrag{}, false
	}
	inlineStart := r.pos + int(octetsToInline)
	var d DataFrag
	if d.ReaderID, ok = readEntityID(r); !ok {
		return d, false
	}
	if d.WriterID, ok = readEntityID(r); !ok {
		return d, false
	}
	if d.WriterSN, ok = readSN(r); !ok {
		return d, false
	}
	if inlineStart > len(r.buf) {
		return d, false
	}
	r.pos = inlineStart

	startNum, ok := r.u32()
	if !ok {
		return d, false
	}
	d.FragmentStartingNum = wire.FragmentNumber(startNum)
	if d.FragmentsInSubmsg, ok = r.u16(); !ok {
		return d, false
	}
	if d.FragmentSize, ok = r.u16(); !ok {
		return d, false
	}
	if d.DataSize, ok = r.u32(); !ok {
		return d, false
	}
	d.SerializedData = r.buf[r.pos:]
	return d, true
}
