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

package wire_test

import (
	"net"
	"testing"

	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/stretchr/testify/assert"
)

func TestNewLocatorUDPv4RoundTripsThroughUDPAddr(t *testing.T) {
	loc := wire.NewLocatorUDPv4(net.ParseIP("239.255.0.1"), 7400)
	addr := loc.UDPAddr()
	assert.Equal(t, "239.255.0.1", addr.IP.String())
	assert.Equal(t, 7400, addr.Port)
}

func TestLocatorIsMulticast(t *testing.T) {
	mcast := wire.NewLocatorUDPv4(net.ParseIP("239.255.0.1"), 7400)
	unicast := wire.NewLocatorUDPv4(net.ParseIP("10.0.0.5"), 7400)
	assert.True(t, mcast.IsMulticast())
	assert.False(t, unicast.IsMulticast())
}

func TestLocatorInvalidHasNoUDPAddr(t *testing.T) {
	assert.Nil(t, wire.LocatorInvalid.UDPAddr())
	assert.Equal(t, wire.LocatorKindInvalid, wire.LocatorInvalid.Kind)
}

func TestInstanceHandleNilDetection(t *testing.T) {
	var h wire.InstanceHandle
	assert.True(t, h.IsNil())

	h[0] = 0x01
	assert.False(t, h.IsNil())
	assert.NotEqual(t, wire.HandleNil, h)
}

func TestSequenceNumberUnknownIsZero(t *testing.T) {
	assert.Equal(t, wire.SequenceNumber(0), wire.SequenceNumberUnknown)
}

func TestLocatorStringFallsBackForNonUDPKind(t *testing.T) {
	l := wire.Locator{Kind: wire.LocatorKindInvalid, Port: 42}
	assert.Contains(t, l.String(), "locator(")
}
