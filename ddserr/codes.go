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

// Package ddserr reserves this module's liberr.CodeError ranges above
// golib's MinAvailable, the way golib's own errors/modules.go reserves
// one range per package: a code value alone tells which package raised
// an error without consulting its message.
package ddserr

import liberr "github.com/nabbar/golib/errors"

// Code ranges reserved per RTPS/DDS package. Each package declares its
// specific codes as offsets from its range (MinPkgCDR+1, ...).
const (
	MinPkgCDR       = liberr.MinAvailable + 100
	MinPkgPList     = liberr.MinAvailable + 200
	MinPkgMessage   = liberr.MinAvailable + 300
	MinPkgHistory   = liberr.MinAvailable + 400
	MinPkgFragment  = liberr.MinAvailable + 500
	MinPkgEndpoint  = liberr.MinAvailable + 600
	MinPkgDiscovery = liberr.MinAvailable + 700
	MinPkgQos       = liberr.MinAvailable + 800
	MinPkgActor     = liberr.MinAvailable + 900
	MinPkgDds       = liberr.MinAvailable + 1000
	MinPkgTransport = liberr.MinAvailable + 1100
	MinPkgConfig    = liberr.MinAvailable + 1200

	minKind = liberr.MinAvailable + 2000
)

// Kind values from the error-handling design: shared above every
// package range so they keep a stable meaning regardless of which
// package raised them.
const (
	KindAlreadyDeleted liberr.CodeError = iota + minKind
	KindBadParameter
	KindInconsistentPolicy
	KindImmutablePolicy
	KindNotEnabled
	KindNoData
	KindTimeout
	KindPreconditionNotMet
	KindUnsupported
)
