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

// Package plist implements the PL_CDR parameter-list TLV codec used to
// carry built-in topic data (SPDP/SEDP) and inline QoS. A parameter
// list is a sequence of (id, length, value) entries terminated by the
// sentinel id PID_SENTINEL; readers must tolerate and skip unknown ids.
package plist

import (
	rerrors "github.com/nabbar/golib/errors"

	"github.com/sabouaram/rtpsdds/ddserr"
	"github.com/sabouaram/rtpsdds/rtps/cdr"
)

// ParameterID is the 2-byte key of a parameter-list entry.
type ParameterID uint16

// Well-known parameter ids, from spec.md §6 and the OMG RTPS spec.
const (
	PIDPad                        ParameterID = 0x0000
	PIDSentinel                   ParameterID = 0x0001
	PIDParticipantLeaseDuration   ParameterID = 0x0002
	PIDTopicName                  ParameterID = 0x0005
	PIDTypeName                   ParameterID = 0x0007
	PIDDomainID                   ParameterID = 0x000f
	PIDProtocolVersion            ParameterID = 0x0015
	PIDVendorID                   ParameterID = 0x0016
	PIDReliability                ParameterID = 0x001a
	PIDDurability                 ParameterID = 0x001d
	PIDDefaultUnicastLocator      ParameterID = 0x0031
	PIDMetatrafficUnicastLocator  ParameterID = 0x0032
	PIDMetatrafficMulticastLoc    ParameterID = 0x0033
	PIDDefaultMulticastLocator    ParameterID = 0x0048
	PIDContentFilterProperty      ParameterID = 0x0035
	PIDEndpointGUID               ParameterID = 0x005a
	PIDParticipantGUID            ParameterID = 0x0050
	PIDBuiltinEndpointSet         ParameterID = 0x0058
	PIDDomainTag                  ParameterID = 0x4014
	PIDStatusInfo                 ParameterID = 0x0071
)

// Parameter is one TLV entry: an id and its raw value bytes (already
// CDR-encoded in whatever representation the surrounding list uses).
type Parameter struct {
	ID    ParameterID
	Value []byte
}

const errInvalid = ddserr.MinPkgPList + 1

func errf(msg string) rerrors.Error {
	return rerrors.New(errInvalid, msg)
}

// List is an ordered collection of parameters, preserving insertion
// (and therefore encode) order; duplicate ids are permitted by the
// wire format and both copies are kept.
type List struct {
	Params []Parameter
}

// Add appends a parameter. Callers omit parameters equal to their
// documented default, per the wire-rule in spec.md §4.1.
func (l *List) Add(id ParameterID, value []byte) {
	l.Params = append(l.Params, Parameter{ID: id, Value: value})
}

// Get returns the first parameter with the given id, if present.
func (l *List) Get(id ParameterID) ([]byte, bool) {
	for _, p := range l.Params {
		if p.ID == id {
			return p.Value, true
		}
	}
	return nil, false
}

// GetAll returns every parameter with the given id, in encounter order
// (used for repeating fields like locator lists).
func (l *List) GetAll(id ParameterID) [][]byte {
	var out [][]byte
	for _, p := range l.Params {
		if p.ID == id {
			out = append(out, p.Value)
		}
	}
	return out
}

// Encode serializes the list as a PL_CDR body (the 4-byte encapsulation
// header is written by the caller via cdr.Writer, since plist rides on
// top of a CDR stream that may also carry other parameters).
func Encode(w *cdr.Writer, l *List) {
	for _, p := range l.Params {
		w.WriteU16(uint16(p.ID))
		// Parameter length is itself 4-byte aligned per spec.md §4.1.
		padded := (len(p.Value) + 3) / 4 * 4
		w.WriteU16(uint16(padded))
		w.WriteBytes(p.Value)
		for i := len(p.Value); i < padded; i++ {
			w.WriteByte(0)
		}
	}
	w.WriteU16(uint16(PIDSentinel))
	w.WriteU16(0)
}

// Decode parses a PL_CDR body. Unknown parameter ids are kept verbatim
// in the returned List (callers ignore the ones they don't recognize);
// a truncated entry or missing sentinel is an error.
func Decode(r *cdr.Reader) (*List, error) {
	l := &List{}
	for {
		id, err := r.ReadU16()
		if err != nil {
			return nil, errf("plist: underflow reading parameter id")
		}
		if ParameterID(id) == PIDSentinel {
			if _, err := r.ReadU16(); err != nil {
				return nil, errf("plist: underflow reading sentinel padding")
			}
			return l, nil
		}
		length, err := r.ReadU16()
		if err != nil {
			return nil, errf("plist: underflow reading parameter length")
		}
		value, err := r.ReadBytes(int(length))
		if err != nil {
			return nil, errf("plist: parameter length overruns buffer")
		}
		cp := make([]byte, len(value))
		copy(cp, value)
		l.Add(ParameterID(id), cp)
	}
}
