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

	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/qos"
)

// PublicationMatchedStatus mirrors the OMG DDS status of the same name:
// a running total plus the delta since the last read.
type PublicationMatchedStatus struct {
	TotalCount       int
	TotalCountChange int
	CurrentCount     int
	CurrentCountChange int
	LastSubscription guid.Guid
}

// SubscriptionMatchedStatus is PublicationMatchedStatus's reader-side
// mirror.
type SubscriptionMatchedStatus struct {
	TotalCount       int
	TotalCountChange int
	CurrentCount     int
	CurrentCountChange int
	LastPublication  guid.Guid
}

// OfferedIncompatibleQosStatus reports policies a writer offered that a
// matched-attempt reader could not accept.
type OfferedIncompatibleQosStatus struct {
	TotalCount       int
	TotalCountChange int
	LastPolicy       qos.PolicyID
}

// RequestedIncompatibleQosStatus is the reader-side mirror.
type RequestedIncompatibleQosStatus struct {
	TotalCount       int
	TotalCountChange int
	LastPolicy       qos.PolicyID
}

// StatusKind identifies one of the status changes a StatusCondition
// tracks, as a single-bit mask value combinable with others.
//
// Grounded on original_source/bindings/python/src/infrastructure/condition.rs's
// StatusCondition.{get,set}_enabled_statuses: a WaitSet or listener can
// narrow which status changes it cares about instead of waking for every
// one an entity accumulates.
type StatusKind uint32

const (
	PublicationMatchedStatusKind StatusKind = 1 << iota
	SubscriptionMatchedStatusKind
	OfferedIncompatibleQosStatusKind
	RequestedIncompatibleQosStatusKind
	DataAvailableStatusKind

	AllStatusKinds = PublicationMatchedStatusKind |
		SubscriptionMatchedStatusKind |
		OfferedIncompatibleQosStatusKind |
		RequestedIncompatibleQosStatusKind |
		DataAvailableStatusKind
)

// StatusCondition latches the four status kinds an entity accumulates
// between reads. Per the resolved Open Question in spec.md §9, a status
// is only cleared by its matching get_*_status call: readers calling
// get_publication_matched_status see TotalCountChange/CurrentCountChange
// reset to zero afterward, not on any unrelated activity.
//
// enabled/pending add the mask-gated trigger value from
// original_source/dds/src/dcps/status_condition_mail.rs's
// GetStatusConditionEnabledStatuses/SetStatusConditionEnabledStatuses/
// GetStatusConditionTriggerValue messages, adapted onto this struct's
// own mutex rather than a separate actor mailbox.
type StatusCondition struct {
	mu sync.Mutex

	pubMatched PublicationMatchedStatus
	subMatched SubscriptionMatchedStatus
	offeredIncompat OfferedIncompatibleQosStatus
	requestedIncompat RequestedIncompatibleQosStatus

	enabled StatusKind
	pending StatusKind

	// watchers are WaitSet wakeup channels; markPending pokes each one
	// non-blockingly so a blocked Wait re-checks its conditions.
	watchers map[chan struct{}]struct{}
}

func newStatusCondition() *StatusCondition {
	return &StatusCondition{
		enabled:  AllStatusKinds,
		watchers: make(map[chan struct{}]struct{}),
	}
}

// SetEnabledStatuses restricts which status kinds can set the trigger
// value. A status kind not in mask still accumulates in its own
// Get*Status counters; it just never flips GetTriggerValue to true.
func (s *StatusCondition) SetEnabledStatuses(mask StatusKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = mask
	s.pending &= mask
}

// GetEnabledStatuses returns the current status mask.
func (s *StatusCondition) GetEnabledStatuses() StatusKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// GetTriggerValue reports whether any enabled status kind has changed
// since it was last observed through this call. Unlike Get*Status, this
// does not distinguish per-kind deltas — it is the coarse signal a
// WaitSet blocks on before a caller goes on to inspect the specific
// Get*Status payload it actually wants.
func (s *StatusCondition) GetTriggerValue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	triggered := s.pending != 0
	s.pending = 0
	return triggered
}

func (s *StatusCondition) markPending(kind StatusKind) {
	if s.enabled&kind == 0 {
		return
	}
	s.pending |= kind
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// peekTrigger reports the trigger value without consuming it, for a
// WaitSet deciding which of its attached conditions fired.
func (s *StatusCondition) peekTrigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != 0
}

func (s *StatusCondition) watch(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[ch] = struct{}{}
}

func (s *StatusCondition) unwatch(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, ch)
}

// markDataAvailable flips the DataAvailable bit into GetTriggerValue's
// pending set, for a WaitSet blocked on a reader's status condition.
func (s *StatusCondition) markDataAvailable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markPending(DataAvailableStatusKind)
}

func (s *StatusCondition) onPublicationMatched(remote guid.Guid, matched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubMatched.TotalCount++
	s.pubMatched.TotalCountChange++
	if matched {
		s.pubMatched.CurrentCount++
		s.pubMatched.CurrentCountChange++
	} else {
		s.pubMatched.CurrentCount--
		s.pubMatched.CurrentCountChange--
	}
	s.pubMatched.LastSubscription = remote
	s.markPending(PublicationMatchedStatusKind)
}

func (s *StatusCondition) getPublicationMatchedStatus() PublicationMatchedStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pubMatched
	s.pubMatched.TotalCountChange = 0
	s.pubMatched.CurrentCountChange = 0
	return out
}

func (s *StatusCondition) onSubscriptionMatched(remote guid.Guid, matched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subMatched.TotalCount++
	s.subMatched.TotalCountChange++
	if matched {
		s.subMatched.CurrentCount++
		s.subMatched.CurrentCountChange++
	} else {
		s.subMatched.CurrentCount--
		s.subMatched.CurrentCountChange--
	}
	s.subMatched.LastPublication = remote
	s.markPending(SubscriptionMatchedStatusKind)
}

func (s *StatusCondition) getSubscriptionMatchedStatus() SubscriptionMatchedStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.subMatched
	s.subMatched.TotalCountChange = 0
	s.subMatched.CurrentCountChange = 0
	return out
}

func (s *StatusCondition) onOfferedIncompatibleQos(policies []qos.Incompatibility) {
	if len(policies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offeredIncompat.TotalCount++
	s.offeredIncompat.TotalCountChange++
	s.offeredIncompat.LastPolicy = policies[0].Policy
	s.markPending(OfferedIncompatibleQosStatusKind)
}

func (s *StatusCondition) getOfferedIncompatibleQosStatus() OfferedIncompatibleQosStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.offeredIncompat
	s.offeredIncompat.TotalCountChange = 0
	return out
}

func (s *StatusCondition) onRequestedIncompatibleQos(policies []qos.Incompatibility) {
	if len(policies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestedIncompat.TotalCount++
	s.requestedIncompat.TotalCountChange++
	s.requestedIncompat.LastPolicy = policies[0].Policy
	s.markPending(RequestedIncompatibleQosStatusKind)
}

func (s *StatusCondition) getRequestedIncompatibleQosStatus() RequestedIncompatibleQosStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.requestedIncompat
	s.requestedIncompat.TotalCountChange = 0
	return out
}

// Listener is the set of callbacks a DataWriter or DataReader may
// register. Each callback is called synchronously on the goroutine that
// delivers the status change; it is not posted to a mailbox, and
// nothing stops a callback body from calling back into the entity that
// invoked it.
type Listener struct {
	OnPublicationMatched         func(PublicationMatchedStatus)
	OnSubscriptionMatched        func(SubscriptionMatchedStatus)
	OnOfferedIncompatibleQos     func(OfferedIncompatibleQosStatus)
	OnRequestedIncompatibleQos   func(RequestedIncompatibleQosStatus)
	OnDataAvailable              func()
}
