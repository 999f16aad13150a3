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

package actor

import "time"

// Address is a non-owning, copyable reference to an actor's mailbox —
// the "mailbox address" spec.md §9 describes as the resolution for
// cyclic parent/child references: a child stores its parent's Address
// rather than a shared pointer back-edge.
type Address[T any] struct {
	mbox *Mailbox[T]
}

// Send enqueues msg for processing by the actor owning this address,
// blocking on the executor's backlog if full.
func (a Address[T]) Send(msg T) {
	a.mbox.Send(msg)
}

// TrySend enqueues msg without blocking.
func (a Address[T]) TrySend(msg T) bool {
	return a.mbox.TrySend(msg)
}

// Mailbox is one actor's private inbox: a handler function run on the
// shared Executor for every message, in the order Send was called
// (spec.md §5, "Messages sent on the same mailbox are processed in the
// order sent").
type Mailbox[T any] struct {
	ex      *Executor
	handler func(T)
}

// NewMailbox binds a handler to run, on ex, for every message sent to
// the returned Mailbox.
func NewMailbox[T any](ex *Executor, handler func(T)) *Mailbox[T] {
	return &Mailbox[T]{ex: ex, handler: handler}
}

// Address returns a copyable, non-owning reference to this mailbox.
func (m *Mailbox[T]) Address() Address[T] {
	return Address[T]{mbox: m}
}

// Send submits msg to the executor queue, to be handled in turn.
func (m *Mailbox[T]) Send(msg T) {
	m.ex.Submit(func() { m.handler(msg) })
}

// TrySend submits msg without blocking if the executor backlog is full.
func (m *Mailbox[T]) TrySend(msg T) bool {
	return m.ex.TrySubmit(func() { m.handler(msg) })
}

// SendWait submits msg, blocking up to d if the backlog is full before
// giving up with ErrTimeout. With d<=0 it blocks until the backlog
// accepts msg, like Send, and returns nil.
func (m *Mailbox[T]) SendWait(msg T, d time.Duration) error {
	return m.ex.SubmitWait(func() { m.handler(msg) }, d)
}

// Oneshot is a single-value reply channel, the mechanism a blocking
// user-facing call (e.g. wait_for_acknowledgments) uses to receive its
// result from the actor that computed it (spec.md §5, "awaiting a
// oneshot reply").
type Oneshot[T any] struct {
	ch chan T
}

// NewOneshot creates an unfulfilled Oneshot.
func NewOneshot[T any]() *Oneshot[T] {
	return &Oneshot[T]{ch: make(chan T, 1)}
}

// Reply fulfills the oneshot; it must be called at most once.
func (o *Oneshot[T]) Reply(v T) {
	o.ch <- v
}

// Wait blocks for a reply up to d (d<=0 means wait forever), returning
// ErrTimeout on expiry. On timeout the oneshot is left as it was; the
// actor side is expected to stop trying to reply once the caller has
// moved on (spec.md §5, "cancellation ... cleans up any in-flight
// oneshot").
func (o *Oneshot[T]) Wait(d time.Duration) (T, error) {
	var zero T
	if d <= 0 {
		return <-o.ch, nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case v := <-o.ch:
		return v, nil
	case <-t.C:
		return zero, ErrTimeout("actor: oneshot reply timed out")
	}
}
