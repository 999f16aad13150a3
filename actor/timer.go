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

import (
	"sync"
	"time"
)

// TimerHandle is a cancellable scheduled runnable; dropping it (calling
// Cancel) removes the pending timer from the executor, per spec.md §5.
type TimerHandle struct {
	stop func() bool
}

// Cancel removes the timer if it has not already fired.
func (h *TimerHandle) Cancel() {
	if h != nil && h.stop != nil {
		h.stop()
	}
}

// timerWheel schedules runnables onto an Executor's queue after a
// delay or on a period, using Go's runtime timers underneath — the
// wheel itself does no work in any actor's goroutine beyond enqueuing.
type timerWheel struct {
	mu sync.Mutex
	ex *Executor
}

func newTimerWheel(ex *Executor) *timerWheel {
	return &timerWheel{ex: ex}
}

// After schedules r to run once, after d, on the executor.
func (w *timerWheel) After(d time.Duration, r runnable) *TimerHandle {
	t := time.AfterFunc(d, func() {
		w.ex.Submit(r)
	})
	return &TimerHandle{stop: t.Stop}
}

// Every schedules r to run on the executor every period d, starting
// after the first interval elapses. The heartbeat-style "drop
// redundant, keep latest" backpressure described in spec.md §5 is the
// caller's responsibility (the runnable itself should check whether a
// previous tick is still pending before doing work).
func (w *timerWheel) Every(d time.Duration, r runnable) *TimerHandle {
	ticker := time.NewTicker(d)
	stopCh := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				w.ex.Submit(r)
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return &TimerHandle{stop: func() bool {
		once.Do(func() { close(stopCh) })
		return true
	}}
}
