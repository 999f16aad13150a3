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
	"crypto/md5"

	rtpsatomic "github.com/nabbar/golib/atomic"

	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// entityIdAllocator hands out distinct user entity keys within one
// participant's GuidPrefix, backed by the core's atomic value wrapper
// rather than a bare mutex+int (mirrors how the rest of this module
// leans on atomic.NewValue for cross-actor counters).
type entityIdAllocator struct {
	next rtpsatomic.Value[uint32]
}

func newEntityIdAllocator() *entityIdAllocator {
	a := &entityIdAllocator{next: rtpsatomic.NewValue[uint32]()}
	a.next.Store(1)
	return a
}

// Next allocates the next user EntityId of the given kind.
func (a *entityIdAllocator) Next(kind guid.EntityKind) guid.EntityId {
	for {
		cur := a.next.Load()
		nxt := cur + 1
		if a.next.CompareAndSwap(cur, nxt) {
			return guid.EntityId{
				Key:  [3]byte{byte(cur >> 16), byte(cur >> 8), byte(cur)},
				Kind: kind,
			}
		}
	}
}

// instanceHandleOf packs a guid into the 16-byte InstanceHandle built-in
// discovery entities use for themselves (spec.md §3).
func instanceHandleOf(g guid.Guid) wire.InstanceHandle {
	var h wire.InstanceHandle
	copy(h[0:12], g.Prefix[:])
	copy(h[12:15], g.EntityId.Key[:])
	h[15] = byte(g.EntityId.Kind)
	return h
}

// computeInstanceHandle derives a user-topic instance handle from a
// caller-extracted key, following the same convention DDS
// implementations use for arbitrary-length instance keys: the key
// itself when it fits in 16 bytes (zero-padded), or its MD5 digest
// otherwise. A nil/empty key (keyless topic) always yields the same
// handle, so a keyless DataWriter/DataReader has exactly one instance.
func computeInstanceHandle(key []byte) wire.InstanceHandle {
	var h wire.InstanceHandle
	if len(key) <= 16 {
		copy(h[:], key)
		return h
	}
	sum := md5.Sum(key)
	copy(h[:], sum[:])
	return h
}
