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

package sedp_test

import (
	"net"
	"testing"
	"time"

	"github.com/sabouaram/rtpsdds/discovery/sedp"
	"github.com/sabouaram/rtpsdds/rtps/endpoint"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	localPrefix  = guid.GuidPrefix{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	remotePrefix = guid.GuidPrefix{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}
)

func endpointData(prefix guid.GuidPrefix, key byte, kind guid.EntityKind, topic string, rel qos.ReliabilityKind) sedp.EndpointBuiltinTopicData {
	return sedp.EndpointBuiltinTopicData{
		Guid:        guid.Guid{Prefix: prefix, EntityId: guid.EntityId{Key: [3]byte{0, 0, key}, Kind: kind}},
		TopicName:   topic,
		TypeName:    "Y",
		Reliability: qos.Reliability{Kind: rel, MaxBlockingTime: 100 * time.Millisecond},
		Durability:  qos.Durability{Kind: qos.Volatile},
	}
}

func TestPublicationRoundTrip(t *testing.T) {
	want := sedp.PublicationBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(localPrefix, 1, guid.EntityKindUserWriterNoKey, "T", qos.Reliable),
	}
	got, err := sedp.DecodePublication(sedp.EncodePublication(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSubscriptionRoundTripWithFilter(t *testing.T) {
	want := sedp.SubscriptionBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(localPrefix, 2, guid.EntityKindUserReaderNoKey, "T", qos.BestEffort),
		FilterExpression:         "id > %0 AND name = %1",
		ExpressionParameters:     []string{"10", "sensor"},
	}
	got, err := sedp.DecodeSubscription(sedp.EncodeSubscription(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSubscriptionWithoutFilterOmitsTheParameter(t *testing.T) {
	want := sedp.SubscriptionBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(localPrefix, 2, guid.EntityKindUserReaderNoKey, "T", qos.BestEffort),
	}
	got, err := sedp.DecodeSubscription(sedp.EncodeSubscription(want))
	require.NoError(t, err)
	assert.Empty(t, got.FilterExpression)
	assert.Empty(t, got.ExpressionParameters)
}

func TestTopicRoundTrip(t *testing.T) {
	want := sedp.TopicBuiltinTopicData{Name: "T", TypeName: "Y"}
	got, err := sedp.DecodeTopic(sedp.EncodeTopic(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

type outcomeRecorder struct {
	outcomes []sedp.MatchOutcome
	oks      []bool
}

func (r *outcomeRecorder) cb(outcome sedp.MatchOutcome, ok bool) {
	r.outcomes = append(r.outcomes, outcome)
	r.oks = append(r.oks, ok)
}

func newTestAgent(rec *outcomeRecorder) *sedp.Agent {
	return sedp.NewAgent(localPrefix,
		endpoint.DefaultStatefulWriterConfig(),
		endpoint.DefaultStatefulReaderConfig(),
		rec.cb)
}

func TestRemoteSubscriptionMatchesLocalPublication(t *testing.T) {
	rec := &outcomeRecorder{}
	a := newTestAgent(rec)

	local := sedp.PublicationBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(localPrefix, 1, guid.EntityKindUserWriterNoKey, "T", qos.Reliable),
	}
	require.NoError(t, a.AnnouncePublication(local))
	assert.Empty(t, rec.outcomes, "no remotes known yet")

	remote := sedp.SubscriptionBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(remotePrefix, 2, guid.EntityKindUserReaderNoKey, "T", qos.Reliable),
	}
	require.NoError(t, a.HandleSubscriptionData(sedp.EncodeSubscription(remote)))

	require.Len(t, rec.outcomes, 1)
	out := rec.outcomes[0]
	assert.True(t, out.LocalIsWriter)
	assert.Equal(t, local.Guid, out.Local.Guid)
	assert.Equal(t, remote.Guid, out.Remote.Guid)
	assert.Empty(t, out.Incompatible)
}

func TestTopicOrTypeMismatchProducesNoOutcome(t *testing.T) {
	rec := &outcomeRecorder{}
	a := newTestAgent(rec)

	require.NoError(t, a.AnnouncePublication(sedp.PublicationBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(localPrefix, 1, guid.EntityKindUserWriterNoKey, "T", qos.Reliable),
	}))
	require.NoError(t, a.HandleSubscriptionData(sedp.EncodeSubscription(sedp.SubscriptionBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(remotePrefix, 2, guid.EntityKindUserReaderNoKey, "Other", qos.Reliable),
	})))

	assert.Empty(t, rec.outcomes)
}

func TestIncompatibleQosSurfacesPolicy(t *testing.T) {
	rec := &outcomeRecorder{}
	a := newTestAgent(rec)

	// BestEffort offered, Reliable requested: incompatible on Reliability.
	require.NoError(t, a.AnnouncePublication(sedp.PublicationBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(localPrefix, 1, guid.EntityKindUserWriterNoKey, "T", qos.BestEffort),
	}))
	require.NoError(t, a.HandleSubscriptionData(sedp.EncodeSubscription(sedp.SubscriptionBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(remotePrefix, 2, guid.EntityKindUserReaderNoKey, "T", qos.Reliable),
	})))

	require.Len(t, rec.outcomes, 1)
	require.Len(t, rec.outcomes[0].Incompatible, 1)
	assert.Equal(t, qos.PolicyReliability, rec.outcomes[0].Incompatible[0].Policy)
}

func TestUnmatchParticipantRetiresItsEndpoints(t *testing.T) {
	rec := &outcomeRecorder{}
	a := newTestAgent(rec)

	metatraffic := []wire.Locator{wire.NewLocatorUDPv4(net.ParseIP("10.0.0.2"), 7410)}
	a.MatchParticipant(remotePrefix, metatraffic)

	require.NoError(t, a.AnnouncePublication(sedp.PublicationBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(localPrefix, 1, guid.EntityKindUserWriterNoKey, "T", qos.Reliable),
	}))
	require.NoError(t, a.HandleSubscriptionData(sedp.EncodeSubscription(sedp.SubscriptionBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(remotePrefix, 2, guid.EntityKindUserReaderNoKey, "T", qos.Reliable),
	})))
	require.Len(t, rec.outcomes, 1)

	a.UnmatchParticipant(remotePrefix)
	require.Len(t, rec.outcomes, 2)
	assert.False(t, rec.oks[1], "retirement is reported with ok=false")
	assert.Equal(t, rec.outcomes[0].Remote.Guid, rec.outcomes[1].Remote.Guid)
}

func TestMatchParticipantWiresBuiltinEndpoints(t *testing.T) {
	rec := &outcomeRecorder{}
	a := newTestAgent(rec)

	metatraffic := []wire.Locator{wire.NewLocatorUDPv4(net.ParseIP("10.0.0.2"), 7410)}
	a.MatchParticipant(remotePrefix, metatraffic)

	assert.Len(t, a.PublicationsWriter.MatchedReaders(), 1)
	assert.Len(t, a.SubscriptionsReader.MatchedWriters(), 1)

	// An announced publication now drains to the remote's SEDP reader.
	require.NoError(t, a.AnnouncePublication(sedp.PublicationBuiltinTopicData{
		EndpointBuiltinTopicData: endpointData(localPrefix, 1, guid.EntityKindUserWriterNoKey, "T", qos.Reliable),
	}))
	out := a.Send()
	require.NotEmpty(t, out)
	assert.Equal(t, metatraffic[0], out[0].Locator)
}
