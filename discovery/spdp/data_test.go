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

package spdp_test

import (
	"net"
	"testing"
	"time"

	"github.com/sabouaram/rtpsdds/discovery/spdp"
	"github.com/sabouaram/rtpsdds/rtps/cdr"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/plist"
	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleParticipantData() spdp.ParticipantBuiltinTopicData {
	return spdp.ParticipantBuiltinTopicData{
		Guid:            guid.Participant(guid.GuidPrefix{0xaa, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}),
		ProtocolVersion: [2]byte{2, 4},
		VendorID:        [2]byte{0x01, 0xff},
		DefaultUnicastLocators: []wire.Locator{
			wire.NewLocatorUDPv4(net.ParseIP("192.168.1.10"), 7411),
		},
		MetatrafficUnicastLocators: []wire.Locator{
			wire.NewLocatorUDPv4(net.ParseIP("192.168.1.10"), 7410),
		},
		AvailableBuiltinEndpoints: spdp.BuiltinEndpointParticipantAnnouncer | spdp.BuiltinEndpointPublicationDetector,
		LeaseDuration:             20 * time.Second,
		DomainID:                  3,
		DomainTag:                 "lab",
	}
}

func TestParticipantDataRoundTrip(t *testing.T) {
	want := sampleParticipantData()

	got, err := spdp.Decode(spdp.Encode(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParticipantDataRoundTripWithoutTagOrLocators(t *testing.T) {
	want := sampleParticipantData()
	want.DomainTag = ""
	want.DefaultUnicastLocators = nil
	want.MetatrafficUnicastLocators = nil

	got, err := spdp.Decode(spdp.Encode(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParticipantLeaseDurationSubSecond(t *testing.T) {
	want := sampleParticipantData()
	want.LeaseDuration = 2500 * time.Millisecond

	got, err := spdp.Decode(spdp.Encode(want))
	require.NoError(t, err)
	assert.InDelta(t, float64(want.LeaseDuration), float64(got.LeaseDuration), float64(time.Millisecond))
}

func TestDecodeIgnoresUnknownParameters(t *testing.T) {
	want := sampleParticipantData()

	// Re-encode the announcement with a foreign parameter spliced in
	// ahead of the known ones.
	r, err := cdr.NewReader(spdp.Encode(want))
	require.NoError(t, err)
	l, err := plist.Decode(r)
	require.NoError(t, err)

	spliced := &plist.List{}
	spliced.Add(plist.ParameterID(0x6f00), []byte{1, 2, 3, 4})
	spliced.Params = append(spliced.Params, l.Params...)

	w := cdr.NewWriter(cdr.ReprPLCDRLE)
	plist.Encode(w, spliced)

	got, err := spdp.Decode(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, want.Guid, got.Guid)
	assert.Equal(t, want.DomainID, got.DomainID)
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	raw := spdp.Encode(sampleParticipantData())
	_, err := spdp.Decode(raw[:len(raw)-6])
	assert.Error(t, err)
}
