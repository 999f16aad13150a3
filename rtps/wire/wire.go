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

// Package wire holds the small value types shared across the RTPS wire
// engine: sequence numbers, fragment numbers, counts, locators and
// instance handles. None of these types know how to serialize
// themselves; that is rtps/cdr's job.
package wire

import (
	"fmt"
	"net"
)

// SequenceNumber is a signed 64-bit counter, monotonic from 1 within one
// writer's history.
type SequenceNumber int64

// SequenceNumberUnknown is the reserved sentinel meaning "no sequence
// number applies".
const SequenceNumberUnknown SequenceNumber = 0

// FragmentNumber is a 32-bit counter, monotonic from 1 within one
// fragmented sample.
type FragmentNumber uint32

// FragmentNumberUnknown is the reserved sentinel.
const FragmentNumberUnknown FragmentNumber = 0

// Count is a 32-bit monotonic counter attached to heartbeat/acknack
// submessages so duplicates and stale messages can be recognized.
type Count int32

// LocatorKind discriminates the address family carried by a Locator.
type LocatorKind int32

const (
	LocatorKindInvalid LocatorKind = -1
	LocatorKindUDPv4    LocatorKind = 1
	LocatorKindUDPv6    LocatorKind = 2
)

// Locator is a transport-neutral network address: a kind, a port and a
// 16-byte address (IPv4 addresses are stored in the low 4 bytes per the
// RTPS convention).
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte
}

// LocatorInvalid is the reserved invalid locator.
var LocatorInvalid = Locator{Kind: LocatorKindInvalid}

// NewLocatorUDPv4 builds a UDPv4 locator from a dotted address and port.
func NewLocatorUDPv4(ip net.IP, port uint32) Locator {
	var addr [16]byte
	v4 := ip.To4()
	copy(addr[12:], v4)
	return Locator{Kind: LocatorKindUDPv4, Port: port, Address: addr}
}

// UDPAddr renders the locator as a net.UDPAddr, valid only for UDPv4/v6
// locators.
func (l Locator) UDPAddr() *net.UDPAddr {
	switch l.Kind {
	case LocatorKindUDPv4:
		return &net.UDPAddr{IP: net.IP(l.Address[12:16]), Port: int(l.Port)}
	case LocatorKindUDPv6:
		ip := make(net.IP, 16)
		copy(ip, l.Address[:])
		return &net.UDPAddr{IP: ip, Port: int(l.Port)}
	default:
		return nil
	}
}

func (l Locator) String() string {
	if a := l.UDPAddr(); a != nil {
		return a.String()
	}
	return fmt.Sprintf("locator(kind=%d,port=%d)", l.Kind, l.Port)
}

// IsMulticast reports whether the locator's address is a multicast
// address.
func (l Locator) IsMulticast() bool {
	if a := l.UDPAddr(); a != nil {
		return a.IP.IsMulticast()
	}
	return false
}

// InstanceHandle is the opaque 16-byte identifier of a topic-keyed
// instance, derived from a sample's key fields.
type InstanceHandle [16]byte

// HandleNil is the reserved nil instance handle.
var HandleNil = InstanceHandle{}

func (h InstanceHandle) IsNil() bool {
	return h == HandleNil
}

func (h InstanceHandle) String() string {
	return fmt.Sprintf("%x", [16]byte(h))
}
