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

package dds

import (
	"sync"

	"github.com/sabouaram/rtpsdds/discovery/sedp"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/qos"
)

// Subscriber owns a set of DataReaders, mirroring Publisher on the
// reader side (spec.md §3).
type Subscriber struct {
	mu      sync.Mutex
	p       *Participant
	readers map[guid.Guid]*DataReader
}

func newSubscriber(p *Participant) *Subscriber {
	return &Subscriber{p: p, readers: make(map[guid.Guid]*DataReader)}
}

// CreateDataReader builds a DataReader for topic, announces it over
// SEDP, and registers it with the owning participant for dispatch.
func (sub *Subscriber) CreateDataReader(topic *Topic, profile qos.Profile, listener Listener) (*DataReader, error) {
	return sub.CreateDataReaderFor(DescriptionOf(topic), profile, listener)
}

// CreateDataReaderFor builds a DataReader against either TopicDescription
// variant. A ContentFilteredTopic reader binds to the related topic's
// name and type; its filter expression rides the SEDP subscription
// announcement so a filtering-capable remote writer can apply it
// upstream (this core itself never evaluates it, spec.md §1 Non-goals).
func (sub *Subscriber) CreateDataReaderFor(desc TopicDescription, profile qos.Profile, listener Listener) (*DataReader, error) {
	topic := desc.related()
	if topic == nil {
		return nil, ErrBadParameter("dds: topic description binds no topic")
	}

	kind := guid.EntityKindUserReaderNoKey
	if topic.Key != nil {
		kind = guid.EntityKindUserReaderWithKey
	}
	g := guid.Guid{Prefix: sub.p.guidPrefix(), EntityId: sub.p.ids.Next(kind)}
	dr := newDataReader(g, topic, profile, sub.p.readerConfig(), listener)

	sub.mu.Lock()
	sub.readers[g] = dr
	sub.mu.Unlock()

	sub.p.registerReader(dr)
	announce := sedp.SubscriptionBuiltinTopicData{
		EndpointBuiltinTopicData: sedp.EndpointBuiltinTopicData{
			Guid:        g,
			TopicName:   topic.Name,
			TypeName:    topic.TypeName,
			Reliability: profile.Reliability,
			Durability:  profile.Durability,
		},
	}
	if desc.Filtered != nil {
		announce.FilterExpression = desc.Filtered.FilterExpression
		announce.ExpressionParameters = append([]string(nil), desc.Filtered.ExpressionParameters...)
	}
	if err := sub.p.sedp.AnnounceSubscription(announce); err != nil {
		return nil, err
	}
	return dr, nil
}

// DeleteDataReader unregisters and forgets dr.
func (sub *Subscriber) DeleteDataReader(dr *DataReader) error {
	sub.mu.Lock()
	_, ok := sub.readers[dr.Guid]
	delete(sub.readers, dr.Guid)
	sub.mu.Unlock()
	if !ok {
		return ErrAlreadyDeleted("dds: data reader already deleted")
	}
	sub.p.unregisterReader(dr.Guid)
	return nil
}
