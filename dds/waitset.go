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
	"time"
)

// ConditionKind discriminates the Condition variants. Only the
// status-condition kind exists in this core; the tag stays so a reader
// of a Condition value always dispatches through an explicit switch
// rather than a nil-field probe (spec.md §9, "variant types over
// inheritance").
type ConditionKind int

const (
	ConditionStatus ConditionKind = iota
)

// Condition is the tagged union a WaitSet blocks on.
type Condition struct {
	Kind   ConditionKind
	Status *StatusCondition
}

// NewStatusCondition wraps an entity's StatusCondition as a Condition.
func NewStatusCondition(s *StatusCondition) Condition {
	return Condition{Kind: ConditionStatus, Status: s}
}

func (c Condition) triggered() bool {
	switch c.Kind {
	case ConditionStatus:
		return c.Status != nil && c.Status.peekTrigger()
	}
	return false
}

// WaitSet is a blocking collection point over one or more entities'
// conditions: a caller attaches the conditions it cares about and Wait
// parks until at least one of them triggers, instead of polling each
// entity's Get*Status in a loop.
type WaitSet struct {
	mu    sync.Mutex
	conds []Condition
	wake  chan struct{}
}

// NewWaitSet builds an empty WaitSet.
func NewWaitSet() *WaitSet {
	return &WaitSet{wake: make(chan struct{}, 1)}
}

// Attach adds a condition to the set. Attaching an already-triggered
// condition makes the next Wait return immediately. Attaching the same
// condition twice is a no-op.
func (ws *WaitSet) Attach(c Condition) error {
	if c.Kind == ConditionStatus && c.Status == nil {
		return ErrBadParameter("dds: attach of nil status condition")
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for _, have := range ws.conds {
		if have == c {
			return nil
		}
	}
	ws.conds = append(ws.conds, c)
	if c.Kind == ConditionStatus {
		c.Status.watch(ws.wake)
	}
	// Wake any in-flight Wait so it re-evaluates against the new set.
	select {
	case ws.wake <- struct{}{}:
	default:
	}
	return nil
}

// Detach removes a previously attached condition.
func (ws *WaitSet) Detach(c Condition) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for i, have := range ws.conds {
		if have == c {
			ws.conds = append(ws.conds[:i], ws.conds[i+1:]...)
			if c.Kind == ConditionStatus {
				c.Status.unwatch(ws.wake)
			}
			return nil
		}
	}
	return ErrPreconditionNotMet("dds: detach of condition not attached to this wait set")
}

// GetConditions returns the currently attached conditions.
func (ws *WaitSet) GetConditions() []Condition {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return append([]Condition(nil), ws.conds...)
}

// Wait blocks until at least one attached condition triggers, returning
// every triggered condition, or Timeout after the given duration. The
// trigger is not consumed: it stays set until the caller calls
// GetTriggerValue on the condition. The matching Get*Status call resets
// that status's change counters but leaves the trigger set.
func (ws *WaitSet) Wait(timeout time.Duration) ([]Condition, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		ws.mu.Lock()
		var fired []Condition
		for _, c := range ws.conds {
			if c.triggered() {
				fired = append(fired, c)
			}
		}
		ws.mu.Unlock()
		if len(fired) > 0 {
			return fired, nil
		}

		select {
		case <-ws.wake:
		case <-deadline.C:
			return nil, ErrTimeout("dds: wait set expired with no condition triggered")
		}
	}
}
