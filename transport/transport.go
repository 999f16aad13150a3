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

// Package transport defines the Transport collaborator interface
// (spec.md §6): the RTPS core never opens a socket itself. A concrete
// UDP transport is out of scope for this core; transport/loopback
// provides an in-process implementation used by the test suite.
package transport

import (
	"context"

	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// Datagram is one received unit: the locator it arrived from (the
// sender's address, for outbound routing of any reply) plus the raw
// bytes of an RTPS message.
type Datagram struct {
	From wire.Locator
	Data []byte
}

// Transport is the external collaborator every participant is built
// on: write one datagram to a locator, or block for the next arrival.
// Any implementation satisfying this interface may be plugged in
// (spec.md §6).
type Transport interface {
	// Write sends data to locator. Implementations should not block
	// indefinitely; ctx governs cancellation.
	Write(ctx context.Context, locator wire.Locator, data []byte) error

	// Read blocks until a datagram arrives or ctx is cancelled.
	Read(ctx context.Context) (Datagram, error)

	// LocalLocator reports the address this transport is bound to, so
	// SPDP can advertise it as a default/metatraffic locator.
	LocalLocator() wire.Locator

	// Close releases the transport's resources (e.g. the bound socket).
	Close() error
}
