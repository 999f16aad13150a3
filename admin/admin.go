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

// Package admin is a debug export surface for a running participant: a
// snapshot of its entity graph (writers, readers, match counts) pushed
// as CBOR frames over a multiplexed stream, so an operator can tail
// several diagnostic channels (entities, log tail) through one
// connection without the core depending on any particular transport
// for it. This is collaborator-boundary tooling, never read back by
// the RTPS core itself.
package admin

import (
	"io"
	"time"

	encmux "github.com/nabbar/golib/encoding/mux"
)

// EntitySnapshot describes one DataWriter or DataReader at the moment
// the snapshot was taken.
type EntitySnapshot struct {
	Guid      string `cbor:"guid"`
	Topic     string `cbor:"topic"`
	TypeName  string `cbor:"type_name"`
	Reliable  bool   `cbor:"reliable"`
	Matched   int    `cbor:"matched"`
}

// Snapshot is the entity graph of one participant at an instant.
type Snapshot struct {
	Participant string           `cbor:"participant"`
	Domain      int              `cbor:"domain"`
	Taken       time.Time        `cbor:"taken"`
	Writers     []EntitySnapshot `cbor:"writers"`
	Readers     []EntitySnapshot `cbor:"readers"`
}

// channelEntities is the mux channel key snapshots are written on;
// channelLog carries the log lines written through WriteLogLine on the
// same connection.
const (
	channelEntities = 'e'
	channelLog      = 'l'
)

// Exporter multiplexes a participant's periodic snapshots and its log
// lines over a single io.Writer using the
// CBOR+hex framed channel protocol in encoding/mux.
type Exporter struct {
	entities io.Writer
	log      io.Writer
}

// NewExporter wraps w in a Multiplexer and opens the entities and log
// channels on it. w is owned by the caller; Exporter never closes it.
func NewExporter(w io.Writer) *Exporter {
	mx := encmux.NewMultiplexer(w, '\n')
	return &Exporter{
		entities: mx.NewChannel(channelEntities),
		log:      mx.NewChannel(channelLog),
	}
}

// WriteSnapshot CBOR-encodes snap and pushes it on the entities
// channel.
func (x *Exporter) WriteSnapshot(snap Snapshot) error {
	b, err := cborMarshal(snap)
	if err != nil {
		return err
	}
	_, err = x.entities.Write(b)
	return err
}

// WriteLogLine pushes a pre-formatted log line on the log channel, so
// a tailing listener can interleave it with entity snapshots without
// a second connection.
func (x *Exporter) WriteLogLine(line string) error {
	_, err := x.log.Write([]byte(line))
	return err
}

// Listener decodes a stream produced by an Exporter back into
// snapshots and raw log lines, for a CLI to render.
type Listener struct {
	dmx       encmux.DeMultiplexer
	snapshots chan Snapshot
	logLines  chan string
}

// NewListener wraps r in a DeMultiplexer and routes its two channels
// into buffered Go channels a caller can range over.
func NewListener(r io.Reader) *Listener {
	l := &Listener{
		dmx:       encmux.NewDeMultiplexer(r, '\n', 32*1024),
		snapshots: make(chan Snapshot, 16),
		logLines:  make(chan string, 64),
	}
	l.dmx.NewChannel(channelEntities, writerFunc(l.onEntities))
	l.dmx.NewChannel(channelLog, writerFunc(l.onLog))
	return l
}

// Run drains the underlying stream until it errors or reaches EOF.
func (l *Listener) Run() error { return l.dmx.Copy() }

// Snapshots is the channel new Snapshot values arrive on.
func (l *Listener) Snapshots() <-chan Snapshot { return l.snapshots }

// LogLines is the channel new raw log lines arrive on.
func (l *Listener) LogLines() <-chan string { return l.logLines }

func (l *Listener) onEntities(p []byte) (int, error) {
	var snap Snapshot
	if err := cborUnmarshal(p, &snap); err != nil {
		return 0, err
	}
	l.snapshots <- snap
	return len(p), nil
}

func (l *Listener) onLog(p []byte) (int, error) {
	l.logLines <- string(p)
	return len(p), nil
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
