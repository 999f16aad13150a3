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

// Package fragment implements DATA_FRAG reassembly: a per
// (writer_guid, writer_sn) buffer sized to the advertised data_size
// that tracks which fragments have arrived and yields the reassembled
// payload once complete (spec.md §4.6).
package fragment

import (
	"sync"

	rerrors "github.com/nabbar/golib/errors"

	"github.com/sabouaram/rtpsdds/ddserr"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

const errFragment = ddserr.MinPkgFragment + 1

func errf(msg string) rerrors.Error {
	return rerrors.New(errFragment, msg)
}

// Key identifies one in-flight reassembly: a writer and the sequence
// number of the sample being fragmented.
type Key struct {
	Writer guid.Guid
	SN     wire.SequenceNumber
}

// Buffer accumulates DATA_FRAG payloads for one sample.
type Buffer struct {
	mu           sync.Mutex
	fragmentSize uint32
	dataSize     uint32
	total        uint32
	have         map[wire.FragmentNumber][]byte
	payload      []byte
}

// NewBuffer sizes a reassembly buffer per spec.md §4.6:
// ceil(data_size / fragment_size) fragments.
func NewBuffer(fragmentSize, dataSize uint32) *Buffer {
	total := (dataSize + fragmentSize - 1) / fragmentSize
	if total == 0 {
		total = 1
	}
	return &Buffer{
		fragmentSize: fragmentSize,
		dataSize:     dataSize,
		total:        total,
		have:         make(map[wire.FragmentNumber][]byte),
	}
}

// AddFragment stores fragments [startingNum, startingNum+count) carried
// in one DATA_FRAG submessage. Returns true once every fragment of the
// sample has been received.
func (b *Buffer) AddFragment(startingNum wire.FragmentNumber, count uint32, data []byte) (complete bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if uint32(startingNum) == 0 || uint32(startingNum) > b.total {
		return false, errf("fragment: fragment_starting_num out of range")
	}

	off := 0
	for i := uint32(0); i < count; i++ {
		fn := startingNum + wire.FragmentNumber(i)
		size := int(b.fragmentSize)
		if uint32(fn) == b.total {
			// last fragment may be shorter
			rem := int(b.dataSize) - int(uint32(fn)-1)*int(b.fragmentSize)
			if rem > 0 && rem < size {
				size = rem
			}
		}
		if off+size > len(data) {
			return false, errf("fragment: DATA_FRAG payload shorter than declared fragment count")
		}
		if _, seen := b.have[fn]; !seen {
			cp := make([]byte, size)
			copy(cp, data[off:off+size])
			b.have[fn] = cp
		}
		off += size
	}

	return uint32(len(b.have)) >= b.total, nil
}

// Assemble concatenates every fragment in order into the completed
// payload. Callers must only call this once AddFragment has reported
// completion.
func (b *Buffer) Assemble() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, 0, b.dataSize)
	for i := wire.FragmentNumber(1); uint32(i) <= b.total; i++ {
		part, ok := b.have[i]
		if !ok {
			return nil, errf("fragment: assemble called before reassembly completed")
		}
		out = append(out, part...)
	}
	return out, nil
}

// Missing reports which fragment numbers have not yet arrived, used to
// build NACK_FRAG bitmaps.
func (b *Buffer) Missing() []wire.FragmentNumber {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []wire.FragmentNumber
	for i := wire.FragmentNumber(1); uint32(i) <= b.total; i++ {
		if _, ok := b.have[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Reassembler indexes in-flight Buffers by Key for a single reader.
type Reassembler struct {
	mu      sync.Mutex
	buffers map[Key]*Buffer
}

func NewReassembler() *Reassembler {
	return &Reassembler{buffers: make(map[Key]*Buffer)}
}

// Buffer returns (creating if necessary) the reassembly buffer for key.
func (r *Reassembler) Buffer(key Key, fragmentSize, dataSize uint32) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buffers[key]
	if !ok {
		b = NewBuffer(fragmentSize, dataSize)
		r.buffers[key] = b
	}
	return b
}

// Lookup returns the in-flight buffer for key without creating one,
// for callers answering HEARTBEAT_FRAG before any fragment has arrived.
func (r *Reassembler) Lookup(key Key) (*Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buffers[key]
	return b, ok
}

// Discard removes a completed or abandoned buffer.
func (r *Reassembler) Discard(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, key)
}

// Pending reports how many reassembly buffers are currently in flight,
// exposed by metrics as a gauge.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}
