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

// Publisher owns a set of DataWriters created against one participant,
// per the ownership hierarchy in spec.md §3 (Participant owns
// Publishers, Publisher owns DataWriters — never the reverse).
type Publisher struct {
	mu      sync.Mutex
	p       *Participant
	writers map[guid.Guid]*DataWriter
}

func newPublisher(p *Participant) *Publisher {
	return &Publisher{p: p, writers: make(map[guid.Guid]*DataWriter)}
}

// CreateDataWriter builds a DataWriter for topic, announces it over
// SEDP, and registers it with the owning participant for dispatch and
// periodic send/heartbeat.
func (pub *Publisher) CreateDataWriter(topic *Topic, profile qos.Profile, listener Listener) (*DataWriter, error) {
	kind := guid.EntityKindUserWriterNoKey
	if topic.Key != nil {
		kind = guid.EntityKindUserWriterWithKey
	}
	g := guid.Guid{Prefix: pub.p.guidPrefix(), EntityId: pub.p.ids.Next(kind)}
	dw := newDataWriter(g, topic, profile, pub.p.writerConfig(), listener)

	pub.mu.Lock()
	pub.writers[g] = dw
	pub.mu.Unlock()

	pub.p.registerWriter(dw)
	err := pub.p.sedp.AnnouncePublication(sedp.PublicationBuiltinTopicData{
		EndpointBuiltinTopicData: sedp.EndpointBuiltinTopicData{
			Guid:        g,
			TopicName:   topic.Name,
			TypeName:    topic.TypeName,
			Reliability: profile.Reliability,
			Durability:  profile.Durability,
		},
	})
	if err != nil {
		return nil, err
	}
	return dw, nil
}

// DeleteDataWriter unregisters and forgets dw.
func (pub *Publisher) DeleteDataWriter(dw *DataWriter) error {
	pub.mu.Lock()
	_, ok := pub.writers[dw.Guid]
	delete(pub.writers, dw.Guid)
	pub.mu.Unlock()
	if !ok {
		return ErrAlreadyDeleted("dds: data writer already deleted")
	}
	pub.p.unregisterWriter(dw.Guid)
	return nil
}
