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

package endpoint_test

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/sabouaram/rtpsdds/rtps/endpoint"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/message"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	writerGuid = guid.Guid{
		Prefix:   guid.GuidPrefix{1},
		EntityId: guid.EntityId{Key: [3]byte{0, 0, 1}, Kind: guid.EntityKindUserWriterNoKey},
	}
	readerGuid = guid.Guid{
		Prefix:   guid.GuidPrefix{2},
		EntityId: guid.EntityId{Key: [3]byte{0, 0, 2}, Kind: guid.EntityKindUserReaderNoKey},
	}
	testLoc = wire.NewLocatorUDPv4(net.ParseIP("127.0.0.1"), 7600)
)

func newPair(t *testing.T, wcfg endpoint.StatefulWriterConfig) (*endpoint.StatefulWriter, *endpoint.StatefulReader) {
	t.Helper()
	w := endpoint.NewStatefulWriter(writerGuid,
		history.NewWriterCache(qos.History{Kind: qos.HistoryKeepAll}, qos.ResourceLimits{}), wcfg)
	r := endpoint.NewStatefulReader(readerGuid,
		history.NewReaderCache(true, 0), endpoint.DefaultStatefulReaderConfig())
	w.MatchedReaderAdd(readerGuid, []wire.Locator{testLoc}, false, true)
	r.MatchedWriterAdd(writerGuid, []wire.Locator{testLoc})
	return w, r
}

func publish(t *testing.T, w *endpoint.StatefulWriter, payload []byte) wire.SequenceNumber {
	t.Helper()
	sn, err := w.NewChange(&history.CacheChange{Kind: history.Alive, WriterGuid: writerGuid, Payload: payload})
	require.NoError(t, err)
	return sn
}

// deliverData feeds every DATA/DATA_FRAG submessage in out to the
// reader, skipping indexes listed in drop.
func deliverData(t *testing.T, r *endpoint.StatefulReader, out []message.Outbound, drop map[int]bool) {
	t.Helper()
	for i, o := range out {
		if drop[i] {
			continue
		}
		switch o.Submessage.Kind {
		case message.KindData:
			d, ok := message.DecodeData(o.Submessage)
			require.True(t, ok)
			r.HandleData(writerGuid, d, wire.InstanceHandle{}, history.Alive)
		case message.KindDataFrag:
			df, ok := message.DecodeDataFrag(o.Submessage)
			require.True(t, ok)
			_, err := r.HandleDataFrag(writerGuid, df, wire.InstanceHandle{}, history.Alive)
			require.NoError(t, err)
		case message.KindGap:
			g, ok := message.DecodeGap(o.Submessage)
			require.True(t, ok)
			r.HandleGap(writerGuid, g)
		}
	}
}

func TestSendDrainsUnsentOnce(t *testing.T) {
	w, r := newPair(t, endpoint.DefaultStatefulWriterConfig())

	publish(t, w, []byte("one"))
	publish(t, w, []byte("two"))

	out := w.Send()
	require.Len(t, out, 2)
	deliverData(t, r, out, nil)
	assert.Equal(t, 2, r.Cache.Len())

	assert.Empty(t, w.Send(), "already-sent changes must not resend unrequested")
}

func TestDuplicateDataIsDropped(t *testing.T) {
	w, r := newPair(t, endpoint.DefaultStatefulWriterConfig())
	publish(t, w, []byte("once"))

	out := w.Send()
	require.Len(t, out, 1)
	d, ok := message.DecodeData(out[0].Submessage)
	require.True(t, ok)

	require.NotNil(t, r.HandleData(writerGuid, d, wire.InstanceHandle{}, history.Alive))
	assert.Nil(t, r.HandleData(writerGuid, d, wire.InstanceHandle{}, history.Alive))
	assert.Equal(t, 1, r.Cache.Len())
}

func TestHeartbeatAckNackRecoversLoss(t *testing.T) {
	w, r := newPair(t, endpoint.DefaultStatefulWriterConfig())
	for i := 0; i < 3; i++ {
		publish(t, w, []byte{byte(i)})
	}

	// Lose the middle DATA.
	deliverData(t, r, w.Send(), map[int]bool{1: true})
	assert.Equal(t, 2, r.Cache.Len())

	hbs := w.Heartbeat(false)
	require.NotEmpty(t, hbs)
	hb, ok := message.DecodeHeartbeat(hbs[0].Submessage)
	require.True(t, ok)
	assert.Equal(t, wire.SequenceNumber(1), hb.FirstSN)
	assert.Equal(t, wire.SequenceNumber(3), hb.LastSN)

	owed, an := r.HandleHeartbeat(writerGuid, hb)
	require.True(t, owed)
	assert.Equal(t, []wire.SequenceNumber{2}, an.ReaderSNState.Missing())

	w.HandleAckNack(readerGuid, an)
	deliverData(t, r, w.Send(), nil)
	assert.Equal(t, 3, r.Cache.Len())

	// Base 4 acknowledges everything through 3: writer converges.
	w.HandleAckNack(readerGuid, message.AckNack{
		ReaderID:      readerGuid.EntityId,
		WriterID:      writerGuid.EntityId,
		ReaderSNState: message.SequenceNumberSet{Base: 4},
		Count:         an.Count + 1,
	})
	assert.True(t, w.WaitForAcknowledgments())
}

func TestHeartbeatCountsAreMonotonic(t *testing.T) {
	w, _ := newPair(t, endpoint.DefaultStatefulWriterConfig())
	publish(t, w, []byte("x"))

	var last wire.Count
	for i := 0; i < 4; i++ {
		hbs := w.Heartbeat(false)
		require.NotEmpty(t, hbs)
		hb, ok := message.DecodeHeartbeat(hbs[0].Submessage)
		require.True(t, ok)
		assert.Greater(t, hb.Count, last)
		last = hb.Count
	}
}

func TestStaleHeartbeatIsIgnored(t *testing.T) {
	_, r := newPair(t, endpoint.DefaultStatefulWriterConfig())

	hb := message.Heartbeat{ReaderID: readerGuid.EntityId, WriterID: writerGuid.EntityId, FirstSN: 1, LastSN: 2, Count: 5}
	owed, _ := r.HandleHeartbeat(writerGuid, hb)
	assert.True(t, owed)

	hb.Count = 5
	owed, _ = r.HandleHeartbeat(writerGuid, hb)
	assert.False(t, owed, "same count must be dropped")
}

func TestFinalHeartbeatWithNothingMissingSuppressesAckNack(t *testing.T) {
	w, r := newPair(t, endpoint.DefaultStatefulWriterConfig())
	publish(t, w, []byte("x"))
	deliverData(t, r, w.Send(), nil)

	hb := message.Heartbeat{ReaderID: readerGuid.EntityId, WriterID: writerGuid.EntityId, FirstSN: 1, LastSN: 1, Count: 1, FinalFlag: true}
	owed, _ := r.HandleHeartbeat(writerGuid, hb)
	assert.False(t, owed)
}

func TestHeartbeatAdvancesPastPurgedPrefix(t *testing.T) {
	_, r := newPair(t, endpoint.DefaultStatefulWriterConfig())

	// Writer announces its history now starts at 5: 1..4 are lost for
	// good and must not be requested.
	hb := message.Heartbeat{ReaderID: readerGuid.EntityId, WriterID: writerGuid.EntityId, FirstSN: 5, LastSN: 6, Count: 1}
	owed, an := r.HandleHeartbeat(writerGuid, hb)
	require.True(t, owed)
	assert.Equal(t, []wire.SequenceNumber{5, 6}, an.ReaderSNState.Missing())
}

func TestRequestedChangeNoLongerHeldBecomesGap(t *testing.T) {
	w := endpoint.NewStatefulWriter(writerGuid,
		history.NewWriterCache(qos.History{Kind: qos.HistoryKeepLast, Depth: 1}, qos.ResourceLimits{}),
		endpoint.DefaultStatefulWriterConfig())
	w.MatchedReaderAdd(readerGuid, []wire.Locator{testLoc}, false, true)

	publish(t, w, []byte("old"))
	publish(t, w, []byte("new")) // KeepLast(1) purges sn 1
	w.Send()

	w.HandleAckNack(readerGuid, message.AckNack{
		ReaderID:      readerGuid.EntityId,
		WriterID:      writerGuid.EntityId,
		ReaderSNState: message.SequenceNumberSet{Base: 1, Bits: []bool{true}},
		Count:         1,
	})

	out := w.Send()
	require.NotEmpty(t, out)
	assert.Equal(t, message.KindGap, out[0].Submessage.Kind)
}

func TestGapMarksIrrelevantWithoutSamples(t *testing.T) {
	w, r := newPair(t, endpoint.DefaultStatefulWriterConfig())
	for i := 0; i < 3; i++ {
		publish(t, w, []byte{byte(i)})
	}
	out := w.Send()

	// Deliver only the last; GAP the first two away.
	deliverData(t, r, out, map[int]bool{0: true, 1: true})
	r.HandleGap(writerGuid, message.Gap{
		ReaderID: readerGuid.EntityId,
		WriterID: writerGuid.EntityId,
		GapStart: 1,
		GapList:  message.SequenceNumberSet{Base: 3},
	})

	an, ok := r.AckNackFor(writerGuid)
	require.True(t, ok)
	assert.Empty(t, an.ReaderSNState.Missing())
	assert.Equal(t, wire.SequenceNumber(4), an.ReaderSNState.Base)
	assert.Equal(t, 1, r.Cache.Len(), "gapped sequences produce no user samples")
}

func TestPushModeOffWaitsForRequest(t *testing.T) {
	cfg := endpoint.DefaultStatefulWriterConfig()
	cfg.PushMode = false
	w, _ := newPair(t, cfg)
	publish(t, w, []byte("held"))

	assert.Empty(t, w.Send(), "pull-mode writer must not push unsolicited DATA")

	w.HandleAckNack(readerGuid, message.AckNack{
		ReaderID:      readerGuid.EntityId,
		WriterID:      writerGuid.EntityId,
		ReaderSNState: message.SequenceNumberSet{Base: 1, Bits: []bool{true}},
		Count:         1,
	})
	assert.Len(t, w.Send(), 1)
}

func TestLargePayloadFragmentsAndReassembles(t *testing.T) {
	cfg := endpoint.DefaultStatefulWriterConfig()
	cfg.FragmentSize = 1000
	w, r := newPair(t, cfg)

	payload := make([]byte, 2500)
	for i := range payload {
		payload[i] = byte(i)
	}
	publish(t, w, payload)

	out := w.Send()
	require.Len(t, out, 3)
	for _, o := range out {
		assert.Equal(t, message.KindDataFrag, o.Submessage.Kind)
	}

	deliverData(t, r, out, nil)
	got := r.Cache.Read(wire.InstanceHandle{}, true)
	require.Len(t, got, 1)
	assert.True(t, bytes.Equal(payload, got[0].Change.Payload))

	// A full retransmission must not produce a duplicate sample.
	deliverData(t, r, out, nil)
	assert.Equal(t, 1, r.Cache.Len())
}

func TestHeartbeatFragNackFragRecoversMissingFragment(t *testing.T) {
	cfg := endpoint.DefaultStatefulWriterConfig()
	cfg.FragmentSize = 1000
	w, r := newPair(t, cfg)

	payload := make([]byte, 2500)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	sn := publish(t, w, payload)

	out := w.Send()
	require.Len(t, out, 3)
	deliverData(t, r, out, map[int]bool{1: true}) // lose fragment 2
	assert.Zero(t, r.Cache.Len())

	// The periodic heartbeat run now carries a HEARTBEAT_FRAG for the
	// unacknowledged fragmented change.
	var hf message.HeartbeatFrag
	found := false
	for _, o := range w.Heartbeat(false) {
		if o.Submessage.Kind == message.KindHeartbeatFrag {
			var ok bool
			hf, ok = message.DecodeHeartbeatFrag(o.Submessage)
			require.True(t, ok)
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, sn, hf.WriterSN)
	assert.Equal(t, wire.FragmentNumber(3), hf.LastFragmentNum)

	owed, nf := r.HandleHeartbeatFrag(writerGuid, hf)
	require.True(t, owed)
	assert.Equal(t, []wire.FragmentNumber{2}, nf.FragmentNumberState.Missing())

	resent := w.HandleNackFrag(readerGuid, nf)
	require.Len(t, resent, 1)
	deliverData(t, r, resent, nil)

	got := r.Cache.Read(wire.InstanceHandle{}, true)
	require.Len(t, got, 1)
	assert.True(t, bytes.Equal(payload, got[0].Change.Payload))
}

func TestHeartbeatFragForCompletedSampleOwesNothing(t *testing.T) {
	cfg := endpoint.DefaultStatefulWriterConfig()
	cfg.FragmentSize = 1000
	w, r := newPair(t, cfg)

	publish(t, w, make([]byte, 2500))
	deliverData(t, r, w.Send(), nil)

	hf := message.HeartbeatFrag{ReaderID: readerGuid.EntityId, WriterID: writerGuid.EntityId, WriterSN: 1, LastFragmentNum: 3, Count: 1}
	owed, _ := r.HandleHeartbeatFrag(writerGuid, hf)
	assert.False(t, owed)
}

func TestOutboundDataCarriesSourceTimestamp(t *testing.T) {
	w, _ := newPair(t, endpoint.DefaultStatefulWriterConfig())
	ts := time.Unix(1700000000, 0)
	_, err := w.NewChange(&history.CacheChange{
		Kind:            history.Alive,
		WriterGuid:      writerGuid,
		SourceTimestamp: ts,
		HasTimestamp:    true,
		Payload:         []byte("stamped"),
	})
	require.NoError(t, err)

	out := w.Send()
	require.Len(t, out, 1)
	assert.True(t, out[0].HasTimestamp, "the Sender needs the timestamp to prepend INFO_TS")
	assert.True(t, ts.Equal(out[0].Timestamp))
}

func TestStatelessWriterGapsOverPurgedHistory(t *testing.T) {
	w := endpoint.NewStatelessWriter(writerGuid,
		history.NewWriterCache(qos.History{Kind: qos.HistoryKeepLast, Depth: 1}, qos.ResourceLimits{}))
	w.AddReaderLocator(testLoc, false)

	_, err := w.Cache.Add(&history.CacheChange{Kind: history.Alive, Payload: []byte("a")})
	require.NoError(t, err)
	_, err = w.Cache.Add(&history.CacheChange{Kind: history.Alive, Payload: []byte("b")})
	require.NoError(t, err)

	out := w.Period()
	require.Len(t, out, 2)
	assert.Equal(t, message.KindGap, out[0].Submessage.Kind)
	assert.Equal(t, message.KindData, out[1].Submessage.Kind)

	assert.Empty(t, w.Period(), "locator is caught up")
}

func TestStatelessReaderFiltersForeignReaderId(t *testing.T) {
	r := endpoint.NewStatelessReader(readerGuid, history.NewReaderCache(true, 0))

	other := guid.EntityId{Key: [3]byte{9, 9, 9}, Kind: guid.EntityKindUserReaderNoKey}
	d := message.Data{ReaderID: other, WriterID: writerGuid.EntityId, WriterSN: 1, HasData: true, SerializedData: []byte("x")}
	assert.Nil(t, r.HandleData(writerGuid, d, wire.InstanceHandle{}, history.Alive))

	d.ReaderID = guid.EntityIdUnknown
	assert.NotNil(t, r.HandleData(writerGuid, d, wire.InstanceHandle{}, history.Alive))
}
