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

	"github.com/sabouaram/rtpsdds/rtps/wire"
)

// SampleState tracks whether the user has consumed a reader-side change.
type SampleState int

const (
	NotRead SampleState = iota
	Read
)

// ViewState tracks whether an instance's first sample has been seen.
type ViewState int

const (
	New ViewState = iota
	NotNew
)

// InstanceState tracks the life-cycle of an instance in a reader cache.
type InstanceState int

const (
	InstanceAlive InstanceState = iota
	InstanceNotAliveDisposed
	InstanceNotAliveNoWriters
)

// ReaderSample wraps a received CacheChange with the reader-local state
// spec.md §3 requires.
type ReaderSample struct {
	Change        *CacheChange
	SampleState   SampleState
	ViewState     ViewState
	InstanceState InstanceState
}

type instanceView struct {
	state   InstanceState
	samples []*ReaderSample
}

// ReaderCache is the per-reader history cache: one ordered sequence per
// matched writer (tracked by the endpoint's WriterProxy, not here) plus
// the merged per-instance view that take()/read() operate on.
type ReaderCache struct {
	mu        sync.Mutex
	policy    policyKind
	depth     int
	bySource  bool
	instances map[wire.InstanceHandle]*instanceView
}

type policyKind int

const (
	policyKeepLast policyKind = iota
	policyKeepAll
)

// NewReaderCache builds an empty reader cache. depth <= 0 means
// unbounded (KeepAll-equivalent retention per instance).
func NewReaderCache(keepAll bool, depth int) *ReaderCache {
	p := policyKeepLast
	if keepAll {
		p = policyKeepAll
	}
	return &ReaderCache{
		policy:    p,
		depth:     depth,
		instances: make(map[wire.InstanceHandle]*instanceView),
	}
}

// Insert adds a newly received, non-duplicate change to the merged
// instance view. Dispose/unregister changes flip the instance's state
// without requiring a payload.
func (rc *ReaderCache) Insert(ch *CacheChange) *ReaderSample {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	iv, ok := rc.instances[ch.InstanceHandle]
	view := New
	if ok {
		view = NotNew
	} else {
		iv = &instanceView{state: InstanceAlive}
		rc.instances[ch.InstanceHandle] = iv
	}

	switch ch.Kind {
	case NotAliveDisposed, NotAliveDisposedUnregistered:
		iv.state = InstanceNotAliveDisposed
	case NotAliveUnregistered:
		iv.state = InstanceNotAliveNoWriters
	default:
		iv.state = InstanceAlive
	}

	sample := &ReaderSample{Change: ch, SampleState: NotRead, ViewState: view, InstanceState: iv.state}
	iv.samples = append(iv.samples, sample)

	if rc.policy == policyKeepLast && rc.depth > 0 {
		for len(iv.samples) > rc.depth {
			iv.samples = iv.samples[1:]
		}
	}

	return sample
}

// OrderBySourceTimestamp switches Read/Take to order samples across
// writers by their source timestamp instead of reception order
// (DestinationOrder BySourceTimestamp, spec.md §5). Samples with no
// timestamp keep their reception position.
func (rc *ReaderCache) OrderBySourceTimestamp() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.bySource = true
}

// Read returns every sample currently in the cache without marking
// them consumed, optionally filtered to a single instance.
func (rc *ReaderCache) Read(instance wire.InstanceHandle, anyInstance bool) []*ReaderSample {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	var out []*ReaderSample
	for h, iv := range rc.instances {
		if !anyInstance && h != instance {
			continue
		}
		out = append(out, iv.samples...)
	}
	rc.orderLocked(out)
	return out
}

// Take returns every sample and removes them from the cache. The
// returned samples keep the SampleState they had; Take does not mark
// them read.
func (rc *ReaderCache) Take(instance wire.InstanceHandle, anyInstance bool) []*ReaderSample {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	var out []*ReaderSample
	for h, iv := range rc.instances {
		if !anyInstance && h != instance {
			continue
		}
		out = append(out, iv.samples...)
		iv.samples = nil
	}
	rc.orderLocked(out)
	return out
}

func (rc *ReaderCache) orderLocked(samples []*ReaderSample) {
	if !rc.bySource {
		return
	}
	sort.SliceStable(samples, func(i, j int) bool {
		a, b := samples[i].Change, samples[j].Change
		if !a.HasTimestamp || !b.HasTimestamp {
			return false
		}
		return a.SourceTimestamp.Before(b.SourceTimestamp)
	})
}

// MarkRead flips every currently-unread sample's SampleState, the
// effect of a read() call without take()'s removal.
func (rc *ReaderCache) MarkRead() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, iv := range rc.instances {
		for _, s := range iv.samples {
			s.SampleState = Read
		}
	}
}

// Len returns the total number of samples across all instances.
func (rc *ReaderCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	n := 0
	for _, iv := range rc.instances {
		n += len(iv.samples)
	}
	return n
}
