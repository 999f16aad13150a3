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

// Package spdp implements the Simple Participant Discovery Protocol:
// the built-in stateless writer/reader pair that bootstraps
// participant-level matching (spec.md §4.7).
package spdp

import (
	"encoding/binary"
	"time"

	"github.com/sabouaram/rtpsdds/rtps/cdr"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/plist"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// ParticipantBuiltinTopicData is the sample payload SPDP exchanges:
// enough for a remote participant to be recognized, leased and have
// its SEDP endpoints matched (spec.md §4.7).
type ParticipantBuiltinTopicData struct {
	Guid                       guid.Guid
	ProtocolVersion            [2]byte
	VendorID                   [2]byte
	DefaultUnicastLocators     []wire.Locator
	MetatrafficUnicastLocators []wire.Locator
	AvailableBuiltinEndpoints  uint32
	LeaseDuration              time.Duration
	DomainID                   int
	DomainTag                  string
}

func encodeLocator(loc wire.Locator) []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint32(buf[0:4], uint32(loc.Kind))
	binary.BigEndian.PutUint32(buf[4:8], loc.Port)
	copy(buf[8:24], loc.Address[:])
	return buf
}

func decodeLocator(b []byte) (wire.Locator, bool) {
	if len(b) < 24 {
		return wire.Locator{}, false
	}
	var loc wire.Locator
	loc.Kind = wire.LocatorKind(binary.BigEndian.Uint32(b[0:4]))
	loc.Port = binary.BigEndian.Uint32(b[4:8])
	copy(loc.Address[:], b[8:24])
	return loc, true
}

// Encode serializes the participant data as a PL_CDR_LE parameter
// list, per the required PID table in spec.md §6.
func Encode(d ParticipantBuiltinTopicData) []byte {
	w := cdr.NewWriter(cdr.ReprPLCDRLE)
	l := &plist.List{}

	guidBuf := make([]byte, 16)
	copy(guidBuf[0:12], d.Guid.Prefix[:])
	copy(guidBuf[12:15], d.Guid.EntityId.Key[:])
	guidBuf[15] = byte(d.Guid.EntityId.Kind)
	l.Add(plist.PIDParticipantGUID, guidBuf)

	l.Add(plist.PIDProtocolVersion, []byte{d.ProtocolVersion[0], d.ProtocolVersion[1], 0, 0})
	l.Add(plist.PIDVendorID, []byte{d.VendorID[0], d.VendorID[1], 0, 0})

	for _, loc := range d.DefaultUnicastLocators {
		l.Add(plist.PIDDefaultUnicastLocator, encodeLocator(loc))
	}
	for _, loc := range d.MetatrafficUnicastLocators {
		l.Add(plist.PIDMetatrafficUnicastLocator, encodeLocator(loc))
	}

	leaseBuf := make([]byte, 8)
	sec := int32(d.LeaseDuration / time.Second)
	frac := uint32((d.LeaseDuration % time.Second) * 4294967296 / time.Second)
	binary.BigEndian.PutUint32(leaseBuf[0:4], uint32(sec))
	binary.BigEndian.PutUint32(leaseBuf[4:8], frac)
	l.Add(plist.PIDParticipantLeaseDuration, leaseBuf)

	domainBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(domainBuf, uint32(d.DomainID))
	l.Add(plist.PIDDomainID, domainBuf)

	if d.DomainTag != "" {
		tagBuf := make([]byte, 4+len(d.DomainTag)+1)
		binary.BigEndian.PutUint32(tagBuf[0:4], uint32(len(d.DomainTag)+1))
		copy(tagBuf[4:], d.DomainTag)
		l.Add(plist.PIDDomainTag, tagBuf)
	}

	beBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(beBuf, d.AvailableBuiltinEndpoints)
	l.Add(plist.PIDBuiltinEndpointSet, beBuf)

	plist.Encode(w, l)
	return w.Bytes()
}

// Decode parses a PL_CDR participant announcement. Unknown parameters
// are ignored per the wire rule in spec.md §4.1.
func Decode(data []byte) (ParticipantBuiltinTopicData, error) {
	r, err := cdr.NewReader(data)
	if err != nil {
		return ParticipantBuiltinTopicData{}, err
	}
	l, err := plist.Decode(r)
	if err != nil {
		return ParticipantBuiltinTopicData{}, err
	}

	var d ParticipantBuiltinTopicData
	if v, ok := l.Get(plist.PIDParticipantGUID); ok && len(v) >= 16 {
		copy(d.Guid.Prefix[:], v[0:12])
		copy(d.Guid.EntityId.Key[:], v[12:15])
		d.Guid.EntityId.Kind = guid.EntityKind(v[15])
	}
	if v, ok := l.Get(plist.PIDProtocolVersion); ok && len(v) >= 2 {
		d.ProtocolVersion[0], d.ProtocolVersion[1] = v[0], v[1]
	}
	if v, ok := l.Get(plist.PIDVendorID); ok && len(v) >= 2 {
		d.VendorID[0], d.VendorID[1] = v[0], v[1]
	}
	for _, v := range l.GetAll(plist.PIDDefaultUnicastLocator) {
		if loc, ok := decodeLocator(v); ok {
			d.DefaultUnicastLocators = append(d.DefaultUnicastLocators, loc)
		}
	}
	for _, v := range l.GetAll(plist.PIDMetatrafficUnicastLocator) {
		if loc, ok := decodeLocator(v); ok {
			d.MetatrafficUnicastLocators = append(d.MetatrafficUnicastLocators, loc)
		}
	}
	if v, ok := l.Get(plist.PIDParticipantLeaseDuration); ok && len(v) >= 8 {
		sec := int32(binary.BigEndian.Uint32(v[0:4]))
		frac := binary.BigEndian.Uint32(v[4:8])
		d.LeaseDuration = time.Duration(sec)*time.Second + time.Duration(float64(frac)/4294967296.0*float64(time.Second))
	}
	if v, ok := l.Get(plist.PIDDomainID); ok && len(v) >= 4 {
		d.DomainID = int(binary.BigEndian.Uint32(v[0:4]))
	}
	if v, ok := l.Get(plist.PIDDomainTag); ok && len(v) >= 4 {
		n := binary.BigEndian.Uint32(v[0:4])
		if int(n) <= len(v)-4 && n > 0 {
			d.DomainTag = string(v[4 : 4+n-1])
		}
	}
	if v, ok := l.Get(plist.PIDBuiltinEndpointSet); ok && len(v) >= 4 {
		d.AvailableBuiltinEndpoints = binary.BigEndian.Uint32(v[0:4])
	}
	return d, nil
}

// Built-in endpoint bitmask flags, per the OMG RTPS spec table this
// core's AvailableBuiltinEndpoints field follows.
const (
	BuiltinEndpointParticipantAnnouncer  uint32 = 1 << 0
	BuiltinEndpointParticipantDetector   uint32 = 1 << 1
	BuiltinEndpointPublicationAnnouncer  uint32 = 1 << 2
	BuiltinEndpointPublicationDetector   uint32 = 1 << 3
	BuiltinEndpointSubscriptionAnnouncer uint32 = 1 << 4
	BuiltinEndpointSubscriptionDetector  uint32 = 1 << 5
	BuiltinEndpointTopicAnnouncer        uint32 = 1 << 28
	BuiltinEndpointTopicDetector         uint32 = 1 << 29
)
