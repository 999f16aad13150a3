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

// Package actor implements the single-threaded cooperative executor
// described in spec.md §4.8 and §5: every endpoint runs as an actor
// with a private, bounded mailbox; the executor drains one runnable at
// a time so actor state never needs locking, and timers are modeled as
// scheduled mailbox sends rather than background goroutines racing the
// actor.
package actor

import (
	"context"
	"sync"
	"time"

	rerrors "github.com/nabbar/golib/errors"

	"github.com/sabouaram/rtpsdds/ddserr"
)

const errMailboxFull = ddserr.MinPkgActor + 1
const errTimeout = ddserr.KindTimeout

// ErrMailboxFull builds the error for a bounded mailbox that is full.
// The executor's own submit calls do not return it: TrySubmit reports a
// full backlog as false, and SubmitWait reports an expired wait with
// ErrTimeout.
func ErrMailboxFull(msg string) rerrors.Error {
	return rerrors.New(errMailboxFull, msg)
}

// ErrTimeout mirrors the DdsError Timeout kind for blocking calls that
// exceed their caller-supplied Duration (spec.md §5, §7).
func ErrTimeout(msg string) rerrors.Error {
	return rerrors.New(uint16(errTimeout), msg)
}

// runnable is one unit of work submitted to the executor: a closure
// capturing the actor and message that produced it.
type runnable func()

// Executor is the single-threaded cooperative scheduler. All actors
// registered with the same Executor are guaranteed never to run
// concurrently: Run drains exactly one runnable at a time, in the
// order mailboxes submitted them.
type Executor struct {
	queue  chan runnable
	done   chan struct{}
	once   sync.Once
	timers *timerWheel
}

// NewExecutor builds an Executor with the given mailbox submission
// backlog (how many pending runnables may queue before Submit blocks).
func NewExecutor(backlog int) *Executor {
	if backlog <= 0 {
		backlog = 256
	}
	e := &Executor{
		queue: make(chan runnable, backlog),
		done:  make(chan struct{}),
	}
	e.timers = newTimerWheel(e)
	return e
}

// Run drives the executor loop until ctx is cancelled or Stop is
// called. It is meant to be run in exactly one goroutine; that
// goroutine is the only place actor state is ever touched.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case r := <-e.queue:
			r()
		}
	}
}

// Stop makes Run return. Runnables still waiting in the backlog are
// not drained and never run. Calling Stop more than once is safe.
func (e *Executor) Stop() {
	e.once.Do(func() { close(e.done) })
}

// Submit enqueues a runnable, blocking if the executor's backlog is
// full (the mailbox backpressure spec.md §5 calls for).
func (e *Executor) Submit(r runnable) {
	e.queue <- r
}

// TrySubmit enqueues a runnable without blocking; it returns false if
// the backlog is full.
func (e *Executor) TrySubmit(r runnable) bool {
	select {
	case e.queue <- r:
		return true
	default:
		return false
	}
}

// SubmitWait enqueues a runnable, blocking until accepted or d elapses.
func (e *Executor) SubmitWait(r runnable, d time.Duration) error {
	if d <= 0 {
		e.Submit(r)
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case e.queue <- r:
		return nil
	case <-t.C:
		return ErrTimeout("actor: mailbox submission timed out")
	}
}

// Timers exposes the executor's timer wheel, used by callers that
// schedule periodic actor messages (heartbeat, SPDP announce, lease).
func (e *Executor) Timers() *timerWheel {
	return e.timers
}
