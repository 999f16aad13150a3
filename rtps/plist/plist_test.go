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

package plist_test

import (
	"testing"

	"github.com/sabouaram/rtpsdds/rtps/cdr"
	"github.com/sabouaram/rtpsdds/rtps/plist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeList(t *testing.T, l *plist.List) []byte {
	t.Helper()
	w := cdr.NewWriter(cdr.ReprPLCDRLE)
	plist.Encode(w, l)
	return w.Bytes()
}

func decodeList(t *testing.T, data []byte) *plist.List {
	t.Helper()
	r, err := cdr.NewReader(data)
	require.NoError(t, err)
	l, err := plist.Decode(r)
	require.NoError(t, err)
	return l
}

func TestRoundTripKnownParameters(t *testing.T) {
	l := &plist.List{}
	l.Add(plist.PIDTopicName, []byte{0, 0, 0, 2, 'T', 0})
	l.Add(plist.PIDDomainID, []byte{0, 0, 0, 7})

	got := decodeList(t, encodeList(t, l))

	v, ok := got.Get(plist.PIDTopicName)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0, 2, 'T', 0}, v)

	v, ok = got.Get(plist.PIDDomainID)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0, 7}, v)
}

func TestUnknownParameterIdsAreKeptAndNeighborsSurvive(t *testing.T) {
	l := &plist.List{}
	l.Add(plist.PIDTopicName, []byte{0, 0, 0, 2, 'T', 0})
	l.Add(plist.ParameterID(0x7788), []byte{0xde, 0xad, 0xbe, 0xef})
	l.Add(plist.PIDTypeName, []byte{0, 0, 0, 2, 'Y', 0})

	got := decodeList(t, encodeList(t, l))

	_, ok := got.Get(plist.ParameterID(0x7788))
	assert.True(t, ok, "unknown ids must decode without error")

	v, ok := got.Get(plist.PIDTypeName)
	require.True(t, ok, "parameter after an unknown id must remain intact")
	assert.Equal(t, []byte{0, 0, 0, 2, 'Y', 0}, v)
}

func TestValueLengthIsAlignedToFour(t *testing.T) {
	l := &plist.List{}
	l.Add(plist.PIDVendorID, []byte{0x01, 0xff})

	got := decodeList(t, encodeList(t, l))

	v, ok := got.Get(plist.PIDVendorID)
	require.True(t, ok)
	// Two value bytes pad out to a four-byte parameter body.
	assert.Equal(t, []byte{0x01, 0xff, 0, 0}, v)
}

func TestDuplicateIdsAreAllKept(t *testing.T) {
	l := &plist.List{}
	l.Add(plist.PIDDefaultUnicastLocator, []byte{1, 0, 0, 0})
	l.Add(plist.PIDDefaultUnicastLocator, []byte{2, 0, 0, 0})

	got := decodeList(t, encodeList(t, l))
	all := got.GetAll(plist.PIDDefaultUnicastLocator)
	require.Len(t, all, 2)
	assert.Equal(t, []byte{1, 0, 0, 0}, all[0])
	assert.Equal(t, []byte{2, 0, 0, 0}, all[1])
}

func TestMissingSentinelIsAnError(t *testing.T) {
	w := cdr.NewWriter(cdr.ReprPLCDRLE)
	w.WriteU16(uint16(plist.PIDDomainID))
	w.WriteU16(4)
	w.WriteBytes([]byte{0, 0, 0, 1})
	// No sentinel: the stream just ends.

	r, err := cdr.NewReader(w.Bytes())
	require.NoError(t, err)
	_, err = plist.Decode(r)
	assert.Error(t, err)
}

func TestTruncatedValueIsAnError(t *testing.T) {
	w := cdr.NewWriter(cdr.ReprPLCDRLE)
	w.WriteU16(uint16(plist.PIDDomainID))
	w.WriteU16(64) // longer than what follows
	w.WriteBytes([]byte{0, 0})

	r, err := cdr.NewReader(w.Bytes())
	require.NoError(t, err)
	_, err = plist.Decode(r)
	assert.Error(t, err)
}

func TestEmptyListIsJustASentinel(t *testing.T) {
	got := decodeList(t, encodeList(t, &plist.List{}))
	assert.Empty(t, got.Params)
}
