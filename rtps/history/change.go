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

// Package history implements the writer-side and reader-side history
// caches: ordered CacheChange storage, instance/sample-state
// bookkeeping and the KeepAll/KeepLast(N) retention policies.
package history

import (
	"time"

	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// ChangeKind discriminates an alive sample from a dispose/unregister
// event, per spec.md §3.
type ChangeKind int

const (
	Alive ChangeKind = iota
	NotAliveDisposed
	NotAliveUnregistered
	NotAliveDisposedUnregistered
	AliveFiltered
)

// HasPayload reports whether changes of this kind carry a serialized
// payload (as opposed to key-only dispose/unregister events).
func (k ChangeKind) HasPayload() bool {
	return k == Alive || k == AliveFiltered
}

// CacheChange is the atomic unit of data exchanged between a writer and
// its matched readers.
type CacheChange struct {
	Kind            ChangeKind
	WriterGuid      guid.Guid
	SequenceNumber  wire.SequenceNumber
	SourceTimestamp time.Time
	HasTimestamp    bool
	InstanceHandle  wire.InstanceHandle
	InlineQos       []byte
	Payload         []byte
}
