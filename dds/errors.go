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

// Package dds is the user-facing façade: Participant, Publisher,
// Subscriber, Topic, DataWriter and DataReader, wired on top of the
// rtps/* core and the discovery agents (spec.md §2, §3).
package dds

import (
	rerrors "github.com/nabbar/golib/errors"

	"github.com/sabouaram/rtpsdds/ddserr"
)

// DdsError kinds, per spec.md §7. Each is a distinct error code in this
// package's reserved range so callers can match on it with rerrors.IsCode.
const (
	errAlreadyDeleted       = ddserr.MinPkgDds + 1
	errBadParameter         = ddserr.MinPkgDds + 2
	errInconsistentPolicy   = ddserr.MinPkgDds + 3
	errImmutablePolicy      = ddserr.MinPkgDds + 4
	errNotEnabled           = ddserr.MinPkgDds + 5
	errNoData               = ddserr.MinPkgDds + 6
	errTimeout              = ddserr.MinPkgDds + 7
	errPreconditionNotMet   = ddserr.MinPkgDds + 8
	errUnsupported          = ddserr.MinPkgDds + 9
)

// ErrAlreadyDeleted reports an operation on an entity that has already
// been torn down.
func ErrAlreadyDeleted(msg string) rerrors.Error { return rerrors.New(errAlreadyDeleted, msg) }

// ErrBadParameter reports a caller-supplied value outside its domain.
func ErrBadParameter(msg string) rerrors.Error { return rerrors.New(errBadParameter, msg) }

// ErrInconsistentPolicy reports a QoS combination no single entity may
// hold simultaneously (e.g. BestEffort with a non-zero resource limit
// that requires Reliable retransmission semantics to be meaningful).
func ErrInconsistentPolicy(msg string) rerrors.Error { return rerrors.New(errInconsistentPolicy, msg) }

// ErrImmutablePolicy reports an attempt to change a QoS policy that may
// only be set before the entity is enabled.
func ErrImmutablePolicy(msg string) rerrors.Error { return rerrors.New(errImmutablePolicy, msg) }

// ErrNotEnabled reports an operation attempted before Enable.
func ErrNotEnabled(msg string) rerrors.Error { return rerrors.New(errNotEnabled, msg) }

// ErrNoData reports a read/take that found nothing matching.
func ErrNoData(msg string) rerrors.Error { return rerrors.New(errNoData, msg) }

// ErrTimeout reports a blocking call that exceeded its deadline.
func ErrTimeout(msg string) rerrors.Error { return rerrors.New(errTimeout, msg) }

// ErrPreconditionNotMet reports a structural precondition violation
// (e.g. deleting a Publisher that still owns DataWriters).
func ErrPreconditionNotMet(msg string) rerrors.Error { return rerrors.New(errPreconditionNotMet, msg) }

// ErrUnsupported reports a request this core deliberately does not
// implement (spec.md §1 Non-goals).
func ErrUnsupported(msg string) rerrors.Error { return rerrors.New(errUnsupported, msg) }
