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

package message_test

import (
	"net"
	"testing"
	"time"

	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	readerID = guid.EntityId{Key: [3]byte{0, 0, 1}, Kind: guid.EntityKindUserReaderNoKey}
	writerID = guid.EntityId{Key: [3]byte{0, 0, 2}, Kind: guid.EntityKindUserWriterNoKey}
)

func testHeader() message.Header {
	return message.Header{
		ProtocolVersion: message.ProtocolVersion,
		VendorID:        message.VendorID,
		GuidPrefix:      guid.GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := testHeader()
	got, rest, err := message.DecodeHeader(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Empty(t, rest)
}

func TestHeaderRejectsShortAndBadMagic(t *testing.T) {
	_, _, err := message.DecodeHeader([]byte("RTP"))
	assert.Error(t, err)

	buf := testHeader().Encode()
	buf[0] = 'X'
	_, _, err = message.DecodeHeader(buf)
	assert.Error(t, err)
}

func TestSubmessageRoundTripsBothEndiannesses(t *testing.T) {
	for _, le := range []bool{false, true} {
		an := message.AckNack{
			ReaderID:      readerID,
			WriterID:      writerID,
			ReaderSNState: message.SequenceNumberSet{Base: 4, Bits: []bool{true, false, true}},
			Count:         7,
			FinalFlag:     true,
		}
		got, ok := message.DecodeAckNack(an.Encode(le))
		require.True(t, ok)
		assert.Equal(t, an, got)
		assert.Equal(t, []wire.SequenceNumber{4, 6}, got.ReaderSNState.Missing())

		hb := message.Heartbeat{
			ReaderID: readerID,
			WriterID: writerID,
			FirstSN:  1,
			LastSN:   9,
			Count:    3,
		}
		gotHB, ok := message.DecodeHeartbeat(hb.Encode(le))
		require.True(t, ok)
		assert.Equal(t, hb, gotHB)

		g := message.Gap{
			ReaderID: readerID,
			WriterID: writerID,
			GapStart: 2,
			GapList:  message.SequenceNumberSet{Base: 5, Bits: []bool{true}},
		}
		gotGap, ok := message.DecodeGap(g.Encode(le))
		require.True(t, ok)
		assert.Equal(t, g, gotGap)
	}
}

func TestDataRoundTripWithInlineQosAndPayload(t *testing.T) {
	d := message.Data{
		ReaderID:       readerID,
		WriterID:       writerID,
		WriterSN:       42,
		HasInlineQos:   true,
		InlineQos:      []byte{0x71, 0x00, 0x04, 0x00, 0, 0, 0, 1, 0x01, 0x00, 0x00, 0x00},
		HasData:        true,
		SerializedData: []byte("payload"),
	}
	sm := d.Encode(false)
	got, ok := message.DecodeData(sm)
	require.True(t, ok)
	assert.Equal(t, d.WriterSN, got.WriterSN)
	assert.Equal(t, d.ReaderID, got.ReaderID)
	assert.Equal(t, d.WriterID, got.WriterID)
	assert.True(t, got.HasInlineQos)
	// Inline QoS and payload are not separately framed on the wire;
	// DecodeData hands back everything from the inline-qos offset on.
	assert.Equal(t, append(append([]byte{}, d.InlineQos...), d.SerializedData...), got.InlineQos)
}

func TestDataKeyOnlyHasNoPayload(t *testing.T) {
	d := message.Data{ReaderID: readerID, WriterID: writerID, WriterSN: 1, HasData: false}
	got, ok := message.DecodeData(d.Encode(true))
	require.True(t, ok)
	assert.False(t, got.HasData)
	assert.Empty(t, got.SerializedData)
}

func TestDataFragRoundTrip(t *testing.T) {
	df := message.DataFrag{
		ReaderID:            readerID,
		WriterID:            writerID,
		WriterSN:            5,
		FragmentStartingNum: 3,
		FragmentsInSubmsg:   1,
		FragmentSize:        1344,
		DataSize:            15000,
		SerializedData:      []byte{1, 2, 3, 4},
	}
	got, ok := message.DecodeDataFrag(df.Encode(false))
	require.True(t, ok)
	assert.Equal(t, df, got)
}

func TestHeartbeatFragAndNackFragRoundTrip(t *testing.T) {
	hf := message.HeartbeatFrag{
		ReaderID:        readerID,
		WriterID:        writerID,
		WriterSN:        5,
		LastFragmentNum: 12,
		Count:           2,
	}
	gotHF, ok := message.DecodeHeartbeatFrag(hf.Encode(true))
	require.True(t, ok)
	assert.Equal(t, hf, gotHF)

	nf := message.NackFrag{
		ReaderID:            readerID,
		WriterID:            writerID,
		WriterSN:            5,
		FragmentNumberState: message.FragmentNumberSet{Base: 2, Bits: []bool{true, true, false, true}},
		Count:               4,
	}
	gotNF, ok := message.DecodeNackFrag(nf.Encode(false))
	require.True(t, ok)
	assert.Equal(t, nf, gotNF)
	assert.Equal(t, []wire.FragmentNumber{2, 3, 5}, gotNF.FragmentNumberState.Missing())
}

func TestMessageEncodeDecodeFullRun(t *testing.T) {
	hb := message.Heartbeat{ReaderID: readerID, WriterID: writerID, FirstSN: 1, LastSN: 2, Count: 1}
	d := message.Data{ReaderID: readerID, WriterID: writerID, WriterSN: 2, HasData: true, SerializedData: []byte("tail")}

	m := message.Message{
		Header:      testHeader(),
		Submessages: []message.Submessage{hb.Encode(false), d.Encode(false)},
	}
	got, err := message.Decode(m.Encode())
	require.NoError(t, err)
	require.Len(t, got.Submessages, 2)

	// The trailing DATA uses octetsToNextHeader=0 ("to end of datagram")
	// and must still decode to the same body.
	gotData, ok := message.DecodeData(got.Submessages[1])
	require.True(t, ok)
	assert.Equal(t, []byte("tail"), gotData.SerializedData)
}

func TestZeroLengthIllegalOutsideData(t *testing.T) {
	hb := message.Heartbeat{ReaderID: readerID, WriterID: writerID, FirstSN: 1, LastSN: 1, Count: 1}
	raw := testHeader().Encode()
	raw = append(raw, hb.Encode(false).Encode(true)...) // force octetsToNextHeader=0

	_, err := message.Decode(raw)
	assert.Error(t, err)
}

func TestDecodeRejectsOverrunningLength(t *testing.T) {
	raw := testHeader().Encode()
	raw = append(raw, byte(message.KindHeartbeat), 0, 0, 200) // body claims 200 bytes, none follow
	_, err := message.Decode(raw)
	assert.Error(t, err)
}

func TestRouteThreadsReceiverState(t *testing.T) {
	src := guid.GuidPrefix{9, 9, 9}
	dst := guid.GuidPrefix{7, 7, 7}
	ts := time.Unix(1700000000, 0)

	hb := message.Heartbeat{ReaderID: readerID, WriterID: writerID, FirstSN: 1, LastSN: 1, Count: 1}
	m := message.Message{
		Header: message.Header{ProtocolVersion: message.ProtocolVersion, VendorID: message.VendorID, GuidPrefix: src},
		Submessages: []message.Submessage{
			message.InfoDst{GuidPrefix: dst}.Encode(false),
			message.FromTime(ts).Encode(false),
			hb.Encode(false),
		},
	}

	dispatches, dropped, err := message.Route(m.Encode())
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, dispatches, 1, "INFO_* submessages update state, they are not dispatched")

	st := dispatches[0].State
	assert.Equal(t, src, st.SourceGuidPrefix)
	assert.Equal(t, dst, st.DestGuidPrefix)
	require.True(t, st.HaveTimestamp)
	assert.WithinDuration(t, ts, st.Timestamp, time.Second)
}

func TestRouteCountsUnknownKinds(t *testing.T) {
	raw := testHeader().Encode()
	raw = append(raw, 0x55, 0, 0, 4, 1, 2, 3, 4) // unknown submessage id
	hb := message.Heartbeat{ReaderID: readerID, WriterID: writerID, FirstSN: 1, LastSN: 1, Count: 1}
	raw = append(raw, hb.Encode(false).Encode(false)...)

	dispatches, dropped, err := message.Route(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Len(t, dispatches, 1, "the heartbeat after the unknown kind still dispatches")
}

func TestSenderBatchesPerLocatorUnderMTU(t *testing.T) {
	s := message.NewSender(testHeader(), 200)
	locA := wire.NewLocatorUDPv4(net.ParseIP("127.0.0.1"), 7500)
	locB := wire.NewLocatorUDPv4(net.ParseIP("127.0.0.1"), 7501)

	big := message.Data{ReaderID: readerID, WriterID: writerID, WriterSN: 1, HasData: true, SerializedData: make([]byte, 120)}
	var queue []message.Outbound
	for i := 0; i < 3; i++ {
		queue = append(queue, message.Outbound{Locator: locA, Submessage: big.Encode(false)})
	}
	queue = append(queue, message.Outbound{Locator: locB, Submessage: big.Encode(false)})

	got := s.Batch(queue)
	require.Len(t, got, 2)
	assert.Len(t, got[locA], 3, "each oversized submessage gets its own datagram")
	assert.Len(t, got[locB], 1)

	for _, dg := range got[locA] {
		_, _, err := message.Route(dg)
		require.NoError(t, err)
	}
}

func TestSenderPrependsInfoDst(t *testing.T) {
	s := message.NewSender(testHeader(), message.DefaultMTU)
	loc := wire.NewLocatorUDPv4(net.ParseIP("127.0.0.1"), 7500)
	dst := guid.GuidPrefix{3, 3, 3}

	hb := message.Heartbeat{ReaderID: readerID, WriterID: writerID, FirstSN: 1, LastSN: 1, Count: 1}
	got := s.Batch([]message.Outbound{{Locator: loc, DestGuidPrefix: dst, Submessage: hb.Encode(false)}})
	require.Len(t, got[loc], 1)

	dispatches, _, err := message.Route(got[loc][0])
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.Equal(t, dst, dispatches[0].State.DestGuidPrefix)
}
