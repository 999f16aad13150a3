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

// Package cdr implements the Common Data Representation wire codec used
// for both user sample payloads and, layered with rtps/plist, the
// PL_CDR parameter-list encapsulation of built-in topic data.
package cdr

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	rerrors "github.com/nabbar/golib/errors"

	"github.com/sabouaram/rtpsdds/ddserr"
)

// Representation is the 2-byte encapsulation identifier at the head of
// every serialized payload.
type Representation uint16

const (
	ReprCDRBE   Representation = 0x0000
	ReprCDRLE   Representation = 0x0001
	ReprPLCDRBE Representation = 0x0002
	ReprPLCDRLE Representation = 0x0003
)

// IsLittleEndian reports the byte order implied by the representation.
func (r Representation) IsLittleEndian() bool {
	return r == ReprCDRLE || r == ReprPLCDRLE
}

// IsParameterList reports whether the representation carries a PL_CDR
// (TLV parameter list) body rather than a plain struct.
func (r Representation) IsParameterList() bool {
	return r == ReprPLCDRBE || r == ReprPLCDRLE
}

const invalidData = ddserr.MinPkgCDR + 1

// ErrInvalidData constructs the CodeError raised for any malformed CDR
// input: underflow, unknown representation id, length overrun or
// invalid UTF-8 in a string.
func ErrInvalidData(msg string, parents ...error) rerrors.Error {
	return rerrors.New(invalidData, msg, parents...)
}

// Writer serializes values into a CDR byte stream, tracking alignment
// relative to the start of the payload body (i.e. just after the
// 4-byte encapsulation header).
type Writer struct {
	repr Representation
	buf  []byte
}

// NewWriter creates a Writer and immediately emits the 4-byte
// encapsulation header. Representation options are always written as
// zero, per the write-zero convention.
func NewWriter(repr Representation) *Writer {
	w := &Writer{repr: repr}
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(repr))
	w.buf = append(w.buf, hdr[:]...)
	return w
}

// Bytes returns the accumulated serialized payload.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// bodyLen is the length of the buffer excluding the 4-byte header;
// alignment is always computed relative to the body, not the buffer.
func (w *Writer) bodyLen() int {
	return len(w.buf) - 4
}

func (w *Writer) order() binary.ByteOrder {
	if w.repr.IsLittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// align pads the buffer so the next write starts at an offset (from
// the body start) that is a multiple of n.
func (w *Writer) align(n int) {
	if n <= 1 {
		return
	}
	pad := (n - w.bodyLen()%n) % n
	for i := 0; i < pad; i++ {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func (w *Writer) WriteU16(v uint16) {
	w.align(2)
	var b [2]byte
	w.order().PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI16(v int16) { w.WriteU16(uint16(v)) }

func (w *Writer) WriteU32(v uint32) {
	w.align(4)
	var b [4]byte
	w.order().PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

func (w *Writer) WriteU64(v uint64) {
	w.align(8)
	var b [8]byte
	w.order().PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI64(v int64) { w.WriteU64(uint64(v)) }

func (w *Writer) WriteF32(v float32) { w.WriteU32(math.Float32bits(v)) }

func (w *Writer) WriteF64(v float64) { w.WriteU64(math.Float64bits(v)) }

// WriteString encodes a string as a 4-byte-aligned unsigned-32 length
// (including the trailing NUL) followed by the bytes and the NUL.
func (w *Writer) WriteString(s string) {
	w.WriteU32(uint32(len(s) + 1))
	w.buf = append(w.buf, []byte(s)...)
	w.buf = append(w.buf, 0)
}

// WriteBytes appends raw bytes with no length prefix and no alignment,
// for use inside fixed-size arrays.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteSequenceLen writes the 4-byte element count that precedes every
// CDR sequence.
func (w *Writer) WriteSequenceLen(n int) {
	w.WriteU32(uint32(n))
}

// Reader deserializes a CDR byte stream produced by Writer, enforcing
// the same alignment rules and returning rerrors.Error on underflow or
// malformed input.
type Reader struct {
	repr Representation
	buf  []byte
	pos  int
}

// NewReader parses the 4-byte encapsulation header and returns a Reader
// positioned at the start of the body.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < 4 {
		return nil, ErrInvalidData("cdr: payload shorter than encapsulation header")
	}
	repr := Representation(binary.BigEndian.Uint16(data[0:2]))
	switch repr {
	case ReprCDRBE, ReprCDRLE, ReprPLCDRBE, ReprPLCDRLE:
	default:
		return nil, ErrInvalidData("cdr: unknown representation id")
	}
	return &Reader{repr: repr, buf: data[4:]}, nil
}

// Representation reports the encapsulation id the stream was parsed with.
func (r *Reader) Representation() Representation { return r.repr }

// Remaining returns the unread tail of the body.
func (r *Reader) Remaining() []byte { return r.buf[r.pos:] }

func (r *Reader) order() binary.ByteOrder {
	if r.repr.IsLittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (r *Reader) align(n int) {
	if n <= 1 {
		return
	}
	pad := (n - r.pos%n) % n
	r.pos += pad
}

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return ErrInvalidData("cdr: underflow reading value")
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func (r *Reader) ReadU16() (uint16, error) {
	r.align(2)
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order().Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	r.align(4)
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order().Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	r.align(8)
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order().Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadString decodes a length-prefixed NUL-terminated string, rejecting
// invalid UTF-8.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrInvalidData("cdr: string length is zero (must include NUL)")
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	raw := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	if raw[n-1] != 0 {
		return "", ErrInvalidData("cdr: string not NUL-terminated")
	}
	s := raw[:n-1]
	if !utf8.Valid(s) {
		return "", ErrInvalidData("cdr: string is not valid UTF-8")
	}
	return string(s), nil
}

// ReadSequenceLen reads the 4-byte element count preceding a sequence,
// rejecting counts that could not possibly fit the remaining buffer.
func (r *Reader) ReadSequenceLen() (int, error) {
	n, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if int(n) > len(r.buf)-r.pos {
		return 0, ErrInvalidData("cdr: sequence length overruns buffer")
	}
	return int(n), nil
}

// ReadBytes reads n raw bytes with no alignment, for fixed-size arrays.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
