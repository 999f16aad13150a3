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

package history_test

import (
	"testing"
	"time"

	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aliveChange(instance byte, data string) *history.CacheChange {
	var h wire.InstanceHandle
	h[0] = instance
	return &history.CacheChange{
		Kind:           history.Alive,
		InstanceHandle: h,
		Payload:        []byte(data),
	}
}

func TestWriterCacheAssignsContiguousSequenceNumbers(t *testing.T) {
	c := history.NewWriterCache(qos.History{Kind: qos.HistoryKeepAll}, qos.ResourceLimits{})

	for i := 1; i <= 5; i++ {
		sn, err := c.Add(aliveChange(1, "x"))
		require.NoError(t, err)
		assert.Equal(t, wire.SequenceNumber(i), sn)
	}
	assert.Equal(t, wire.SequenceNumber(1), c.MinSN())
	assert.Equal(t, wire.SequenceNumber(5), c.MaxSN())
	assert.Equal(t, 5, c.Len())
}

func TestWriterCacheEmptyBounds(t *testing.T) {
	c := history.NewWriterCache(qos.History{Kind: qos.HistoryKeepAll}, qos.ResourceLimits{})
	// An empty cache's MinSN is the next sequence number, so an empty
	// HEARTBEAT carries first_sn = last_sn + 1.
	assert.Equal(t, wire.SequenceNumber(1), c.MinSN())
	assert.Equal(t, wire.SequenceNumber(0), c.MaxSN())
}

func TestWriterCacheKeepLastPurgesPerInstance(t *testing.T) {
	c := history.NewWriterCache(qos.History{Kind: qos.HistoryKeepLast, Depth: 2}, qos.ResourceLimits{})

	_, err := c.Add(aliveChange(1, "a1"))
	require.NoError(t, err)
	_, err = c.Add(aliveChange(2, "b1"))
	require.NoError(t, err)
	_, err = c.Add(aliveChange(1, "a2"))
	require.NoError(t, err)
	_, err = c.Add(aliveChange(1, "a3"))
	require.NoError(t, err)

	// Instance 1 keeps its two most recent (sn 3, 4); instance 2 keeps
	// its only sample (sn 2). sn 1 is gone regardless of ack state.
	_, ok := c.Get(1)
	assert.False(t, ok)
	for _, sn := range []wire.SequenceNumber{2, 3, 4} {
		_, ok := c.Get(sn)
		assert.True(t, ok, "sn %d must be retained", sn)
	}
	assert.Equal(t, wire.SequenceNumber(2), c.MinSN())
	assert.Equal(t, wire.SequenceNumber(4), c.MaxSN())
}

func TestWriterCacheKeepAllEnforcesResourceLimits(t *testing.T) {
	c := history.NewWriterCache(qos.History{Kind: qos.HistoryKeepAll}, qos.ResourceLimits{MaxSamples: 2})

	_, err := c.Add(aliveChange(1, "a"))
	require.NoError(t, err)
	_, err = c.Add(aliveChange(1, "b"))
	require.NoError(t, err)
	_, err = c.Add(aliveChange(1, "c"))
	assert.Error(t, err, "KeepAll past MaxSamples must refuse the change")
}

func TestWriterCacheRemoveAcknowledgedAdvancesMin(t *testing.T) {
	c := history.NewWriterCache(qos.History{Kind: qos.HistoryKeepAll}, qos.ResourceLimits{})
	for i := 0; i < 3; i++ {
		_, err := c.Add(aliveChange(1, "x"))
		require.NoError(t, err)
	}

	c.RemoveAcknowledged(1)
	assert.Equal(t, wire.SequenceNumber(2), c.MinSN())
	assert.Equal(t, wire.SequenceNumber(3), c.MaxSN())

	got := c.Range(1, 3)
	require.Len(t, got, 2)
	assert.Equal(t, wire.SequenceNumber(2), got[0].SequenceNumber)
}

func TestReaderCacheViewStates(t *testing.T) {
	rc := history.NewReaderCache(true, 0)

	s1 := rc.Insert(aliveChange(1, "first"))
	assert.Equal(t, history.New, s1.ViewState)
	assert.Equal(t, history.NotRead, s1.SampleState)
	assert.Equal(t, history.InstanceAlive, s1.InstanceState)

	s2 := rc.Insert(aliveChange(1, "second"))
	assert.Equal(t, history.NotNew, s2.ViewState)

	s3 := rc.Insert(aliveChange(2, "other"))
	assert.Equal(t, history.New, s3.ViewState, "a different instance starts New")
}

func TestReaderCacheDisposeFlipsInstanceState(t *testing.T) {
	rc := history.NewReaderCache(true, 0)
	rc.Insert(aliveChange(1, "v"))

	var h wire.InstanceHandle
	h[0] = 1
	s := rc.Insert(&history.CacheChange{Kind: history.NotAliveDisposed, InstanceHandle: h})
	assert.Equal(t, history.InstanceNotAliveDisposed, s.InstanceState)
	assert.Nil(t, s.Change.Payload)

	// A later alive sample revives the instance.
	s = rc.Insert(aliveChange(1, "again"))
	assert.Equal(t, history.InstanceAlive, s.InstanceState)
}

func TestReaderCacheUnregisterMeansNoWriters(t *testing.T) {
	rc := history.NewReaderCache(true, 0)
	var h wire.InstanceHandle
	h[0] = 9
	s := rc.Insert(&history.CacheChange{Kind: history.NotAliveUnregistered, InstanceHandle: h})
	assert.Equal(t, history.InstanceNotAliveNoWriters, s.InstanceState)
}

func TestReaderCacheTakeDrainsReadDoesNot(t *testing.T) {
	rc := history.NewReaderCache(true, 0)
	rc.Insert(aliveChange(1, "a"))
	rc.Insert(aliveChange(1, "b"))

	assert.Len(t, rc.Read(wire.InstanceHandle{}, true), 2)
	assert.Len(t, rc.Read(wire.InstanceHandle{}, true), 2, "read must not consume")

	assert.Len(t, rc.Take(wire.InstanceHandle{}, true), 2)
	assert.Empty(t, rc.Take(wire.InstanceHandle{}, true), "take must consume")
	assert.Zero(t, rc.Len())
}

func TestReaderCacheKeepLastBoundsPerInstance(t *testing.T) {
	rc := history.NewReaderCache(false, 2)
	for i := 0; i < 5; i++ {
		rc.Insert(aliveChange(1, "x"))
	}
	assert.Equal(t, 2, rc.Len())
}

func TestReaderCacheOrdersBySourceTimestampWhenAsked(t *testing.T) {
	rc := history.NewReaderCache(true, 0)
	rc.OrderBySourceTimestamp()

	base := time.Unix(1700000000, 0)
	late := aliveChange(1, "late")
	late.SourceTimestamp, late.HasTimestamp = base.Add(2*time.Second), true
	early := aliveChange(2, "early")
	early.SourceTimestamp, early.HasTimestamp = base, true

	// Reception order is late-then-early; read order must flip.
	rc.Insert(late)
	rc.Insert(early)

	got := rc.Read(wire.InstanceHandle{}, true)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("early"), got[0].Change.Payload)
	assert.Equal(t, []byte("late"), got[1].Change.Payload)
}

func TestReaderCacheDefaultsToReceptionOrder(t *testing.T) {
	rc := history.NewReaderCache(true, 0)

	base := time.Unix(1700000000, 0)
	late := aliveChange(1, "late")
	late.SourceTimestamp, late.HasTimestamp = base.Add(2*time.Second), true
	early := aliveChange(1, "early")
	early.SourceTimestamp, early.HasTimestamp = base, true

	rc.Insert(late)
	rc.Insert(early)

	got := rc.Read(wire.InstanceHandle{}, true)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("late"), got[0].Change.Payload)
}

func TestReaderCacheMarkRead(t *testing.T) {
	rc := history.NewReaderCache(true, 0)
	rc.Insert(aliveChange(1, "a"))
	rc.MarkRead()
	got := rc.Read(wire.InstanceHandle{}, true)
	require.Len(t, got, 1)
	assert.Equal(t, history.Read, got[0].SampleState)
}
