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

// End-to-end scenario tests driven over transport/loopback, one per
// numbered scenario in spec.md §8: best-effort echo, reliable
// recovery, discovery match, QoS incompatibility and dispose here;
// fragmentation and the content-filtered variant live in
// scenario_frag_test.go.
package dds_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nabbar/golib/logger"

	"github.com/sabouaram/rtpsdds/config"
	"github.com/sabouaram/rtpsdds/dds"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/sabouaram/rtpsdds/transport/loopback"
	"github.com/stretchr/testify/require"
)

// fastConfig shortens every interval so discovery and retransmission
// converge quickly under test, without changing any protocol behavior.
func fastConfig() config.Config {
	c := config.Default()
	c.ParticipantAnnouncementInterval = 20 * time.Millisecond
	c.HeartbeatPeriod = 30 * time.Millisecond
	c.NackResponseDelay = 5 * time.Millisecond
	c.HeartbeatResponseDelay = 5 * time.Millisecond
	c.LeaseDuration = 2 * time.Second
	return c
}

// pairOfParticipants builds two participants sharing a loopback Network
// and wires SPDP multicast between them, the way two OS processes on
// the same multicast-capable link would discover each other.
func pairOfParticipants(t *testing.T, net1 *loopback.Network, cfg config.Config) (*dds.Participant, *dds.Participant) {
	t.Helper()

	mcastIP := net.ParseIP(config.SPDPMulticastAddress)
	mcast := wire.NewLocatorUDPv4(mcastIP, cfg.SPDPMulticastPort())

	tpA := net1.NewTransport()
	tpB := net1.NewTransport()
	net1.JoinMulticast(mcast, tpA)
	net1.JoinMulticast(mcast, tpB)

	log := logger.New(context.Background())

	a, err := dds.NewParticipant(cfg, tpA, log)
	require.NoError(t, err)
	b, err := dds.NewParticipant(cfg, tpB, log)
	require.NoError(t, err)

	a.Enable()
	b.Enable()
	t.Cleanup(func() {
		a.Stop()
		b.Stop()
	})
	return a, b
}

func TestBestEffortEcho(t *testing.T) {
	netw := loopback.NewNetwork(20000)
	pub, sub := pairOfParticipants(t, netw, fastConfig())

	topic := dds.NewTopic("scenario/echo", "octets", qos.Default(), nil)
	dw, err := pub.CreatePublisher().CreateDataWriter(topic, qos.Default(), nil)
	require.NoError(t, err)
	dr, err := sub.CreateSubscriber().CreateDataReader(topic, qos.Default(), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dw.GetPublicationMatchedStatus().CurrentCount > 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err = dw.Write([]byte("hello"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(dr.Take()) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReliableRecoveryUnderLoss(t *testing.T) {
	netw := loopback.NewNetwork(20100)
	netw.DropEvery(3)
	cfg := fastConfig()
	reliable := qos.Default()
	reliable.Reliability.Kind = qos.Reliable
	reliable.History.Kind = qos.HistoryKeepAll

	pub, sub := pairOfParticipants(t, netw, cfg)

	topic := dds.NewTopic("scenario/reliable", "octets", reliable, nil)
	dw, err := pub.CreatePublisher().CreateDataWriter(topic, reliable, nil)
	require.NoError(t, err)
	dr, err := sub.CreateSubscriber().CreateDataReader(topic, reliable, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dw.GetPublicationMatchedStatus().CurrentCount > 0
	}, 2*time.Second, 10*time.Millisecond)

	const n = 20
	for i := 0; i < n; i++ {
		_, err := dw.Write([]byte{byte(i)})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return len(dr.Read()) == n
	}, 5*time.Second, 20*time.Millisecond, "reliable reader must recover every dropped sample via heartbeat/acknack retransmission")
}

func TestDiscoveryMatchStatus(t *testing.T) {
	netw := loopback.NewNetwork(20200)
	pub, sub := pairOfParticipants(t, netw, fastConfig())

	topic := dds.NewTopic("scenario/match", "octets", qos.Default(), nil)
	dw, err := pub.CreatePublisher().CreateDataWriter(topic, qos.Default(), nil)
	require.NoError(t, err)
	_, err = sub.CreateSubscriber().CreateDataReader(topic, qos.Default(), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dw.GetPublicationMatchedStatus().CurrentCount > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQosIncompatibilityReported(t *testing.T) {
	netw := loopback.NewNetwork(20300)
	cfg := fastConfig()
	pub, sub := pairOfParticipants(t, netw, cfg)

	offered := qos.Default()
	requested := qos.Default()
	requested.Reliability.Kind = qos.Reliable

	topic := dds.NewTopic("scenario/incompatible", "octets", offered, nil)
	dw, err := pub.CreatePublisher().CreateDataWriter(topic, offered, nil)
	require.NoError(t, err)
	_, err = sub.CreateSubscriber().CreateDataReader(topic, requested, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dw.GetOfferedIncompatibleQosStatus().TotalCount > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return dw.GetPublicationMatchedStatus().CurrentCount == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDisposeMarksInstanceNotAlive(t *testing.T) {
	netw := loopback.NewNetwork(20400)
	cfg := fastConfig()
	reliable := qos.Default()
	reliable.Reliability.Kind = qos.Reliable
	reliable.History.Kind = qos.HistoryKeepAll

	pub, sub := pairOfParticipants(t, netw, cfg)

	keyed := func(payload []byte) []byte { return payload[:1] }
	topic := dds.NewTopic("scenario/dispose", "keyed", reliable, keyed)
	dw, err := pub.CreatePublisher().CreateDataWriter(topic, reliable, nil)
	require.NoError(t, err)
	dr, err := sub.CreateSubscriber().CreateDataReader(topic, reliable, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dw.GetPublicationMatchedStatus().CurrentCount > 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err = dw.Write([]byte{1, 0xaa})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(dr.Read()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = dw.Dispose([]byte{1})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		samples := dr.Read()
		for _, s := range samples {
			if s.Change.Kind == history.NotAliveDisposed {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
