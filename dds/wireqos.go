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
	"encoding/binary"

	"github.com/sabouaram/rtpsdds/rtps/cdr"
	"github.com/sabouaram/rtpsdds/rtps/history"
	"github.com/sabouaram/rtpsdds/rtps/plist"
)

// The wire DATA submessage only distinguishes "carries a payload" from
// "key-only"; it has no room for which of the three key-only meanings
// (disposed, unregistered, both) applies. This core carries that as a
// PID_STATUS_INFO entry in the change's inline QoS parameter list,
// following the same bitmask convention the OMG RTPS wire protocol
// itself uses for status info.
const (
	statusInfoDisposed     uint32 = 0x01
	statusInfoUnregistered uint32 = 0x02
)

// encodeStatusInfo returns the inline-QoS bytes for kind, or nil for
// Alive (no status info needed: absence means alive).
func encodeStatusInfo(kind history.ChangeKind) []byte {
	var flags uint32
	switch kind {
	case history.NotAliveDisposed:
		flags = statusInfoDisposed
	case history.NotAliveUnregistered:
		flags = statusInfoUnregistered
	case history.NotAliveDisposedUnregistered:
		flags = statusInfoDisposed | statusInfoUnregistered
	default:
		return nil
	}
	w := cdr.NewWriter(cdr.ReprPLCDRLE)
	l := &plist.List{}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, flags)
	l.Add(plist.PIDStatusInfo, buf)
	plist.Encode(w, l)
	return w.Bytes()
}

// decodeChangeKind recovers the ChangeKind a received DATA submessage
// represents from its HasData flag and inline QoS.
func decodeChangeKind(inlineQos []byte, hasData bool) history.ChangeKind {
	if len(inlineQos) == 0 {
		return history.Alive
	}
	r, err := cdr.NewReader(inlineQos)
	if err != nil {
		return history.Alive
	}
	l, err := plist.Decode(r)
	if err != nil {
		return history.Alive
	}
	v, ok := l.Get(plist.PIDStatusInfo)
	if !ok || len(v) < 4 {
		return history.Alive
	}
	flags := binary.BigEndian.Uint32(v)
	disposed := flags&statusInfoDisposed != 0
	unregistered := flags&statusInfoUnregistered != 0
	switch {
	case disposed && unregistered:
		return history.NotAliveDisposedUnregistered
	case disposed:
		return history.NotAliveDisposed
	case unregistered:
		return history.NotAliveUnregistered
	case hasData:
		return history.Alive
	default:
		return history.Alive
	}
}
