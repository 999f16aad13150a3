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

package history

import (
	"sort"
	"sync"

	rerrors "github.com/nabbar/golib/errors"

	"github.com/sabouaram/rtpsdds/ddserr"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/rtps/wire"
)

const errResourceLimits = ddserr.KindPreconditionNotMet

// ErrResourceLimitsExceeded is raised by WriterCache.Add when a
// KeepAll cache would grow past its configured ResourceLimits.
func ErrResourceLimitsExceeded(msg string) rerrors.Error {
	return rerrors.New(uint16(errResourceLimits), msg)
}

// WriterCache is the ordered-by-sequence-number collection of changes
// produced by one writer (spec.md §3, "HistoryCache (writer side)").
// It is not safe to share across actor boundaries; the owning writer
// actor is the only caller, per spec.md §5.
type WriterCache struct {
	mu       sync.Mutex
	policy   qos.History
	limits   qos.ResourceLimits
	changes  []*CacheChange // ordered ascending by SequenceNumber
	perKey   map[wire.InstanceHandle][]*CacheChange
	nextSN   wire.SequenceNumber
	firstSN  wire.SequenceNumber
}

// NewWriterCache builds an empty cache under the given retention
// policy and resource limits.
func NewWriterCache(policy qos.History, limits qos.ResourceLimits) *WriterCache {
	return &WriterCache{
		policy:  policy,
		limits:  limits,
		perKey:  make(map[wire.InstanceHandle][]*CacheChange),
		nextSN:  1,
		firstSN: 1,
	}
}

// NextSequenceNumber allocates (without consuming) the sequence number
// the next Add call will use.
func (c *WriterCache) NextSequenceNumber() wire.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextSN
}

// Add appends a new change, assigning it the next sequence number and
// applying the retention policy. Returns PreconditionNotMet if a
// KeepAll cache would exceed its MaxSamples resource limit.
func (c *WriterCache) Add(ch *CacheChange) (wire.SequenceNumber, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.policy.Kind == qos.HistoryKeepAll && c.limits.MaxSamples > 0 && len(c.changes) >= c.limits.MaxSamples {
		return 0, ErrResourceLimitsExceeded("writer cache: resource limit MaxSamples exceeded")
	}

	sn := c.nextSN
	ch.SequenceNumber = sn
	c.nextSN++
	c.changes = append(c.changes, ch)
	c.perKey[ch.InstanceHandle] = append(c.perKey[ch.InstanceHandle], ch)

	if c.policy.Kind == qos.HistoryKeepLast {
		depth := c.policy.Depth
		if depth < 1 {
			depth = 1
		}
		keyChanges := c.perKey[ch.InstanceHandle]
		for len(keyChanges) > depth {
			dropped := keyChanges[0]
			keyChanges = keyChanges[1:]
			c.removeLocked(dropped.SequenceNumber)
		}
		c.perKey[ch.InstanceHandle] = keyChanges
	}

	return sn, nil
}

// removeLocked deletes a change by sequence number from the ordered
// list, advancing firstSN if the removed change was the oldest. Caller
// must hold mu.
func (c *WriterCache) removeLocked(sn wire.SequenceNumber) {
	idx := sort.Search(len(c.changes), func(i int) bool { return c.changes[i].SequenceNumber >= sn })
	if idx < len(c.changes) && c.changes[idx].SequenceNumber == sn {
		c.changes = append(c.changes[:idx], c.changes[idx+1:]...)
	}
	if len(c.changes) == 0 {
		c.firstSN = c.nextSN
	} else {
		c.firstSN = c.changes[0].SequenceNumber
	}
}

// RemoveAcknowledged drops a KeepAll change once every matched reader
// has acknowledged it; callers (the writer actor) decide when that
// holds true per ReaderProxy state.
func (c *WriterCache) RemoveAcknowledged(sn wire.SequenceNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(sn)
}

// MinSN is the lowest sequence number still retained, or nextSN if the
// cache is empty (matching first_sn in an "empty" HEARTBEAT).
func (c *WriterCache) MinSN() wire.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.changes) == 0 {
		return c.nextSN
	}
	return c.changes[0].SequenceNumber
}

// MaxSN is the highest sequence number ever assigned by this writer
// (last_change_sequence_number), independent of retention.
func (c *WriterCache) MaxSN() wire.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextSN - 1
}

// Get returns the change with the given sequence number, if still
// retained.
func (c *WriterCache) Get(sn wire.SequenceNumber) (*CacheChange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := sort.Search(len(c.changes), func(i int) bool { return c.changes[i].SequenceNumber >= sn })
	if idx < len(c.changes) && c.changes[idx].SequenceNumber == sn {
		return c.changes[idx], true
	}
	return nil, false
}

// Range returns every retained change with SequenceNumber in [from,to].
func (c *WriterCache) Range(from, to wire.SequenceNumber) []*CacheChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*CacheChange
	for _, ch := range c.changes {
		if ch.SequenceNumber >= from && ch.SequenceNumber <= to {
			out = append(out, ch)
		}
	}
	return out
}

// Len reports the number of retained changes.
func (c *WriterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes)
}
