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

package fragment_test

import (
	"bytes"
	"testing"

	"github.com/sabouaram/rtpsdds/rtps/fragment"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadOf(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i * 31)
	}
	return p
}

func feed(t *testing.T, b *fragment.Buffer, payload []byte, fragSize int, order []int) bool {
	t.Helper()
	complete := false
	for _, idx := range order {
		start := (idx - 1) * fragSize
		end := start + fragSize
		if end > len(payload) {
			end = len(payload)
		}
		var err error
		complete, err = b.AddFragment(wire.FragmentNumber(idx), 1, payload[start:end])
		require.NoError(t, err)
	}
	return complete
}

func TestReassemblyInOrder(t *testing.T) {
	payload := payloadOf(15000)
	b := fragment.NewBuffer(1344, 15000)

	complete := feed(t, b, payload, 1344, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	require.True(t, complete)

	got, err := b.Assemble()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestReassemblyOutOfOrderAndDuplicates(t *testing.T) {
	payload := payloadOf(4000)
	b := fragment.NewBuffer(1344, 4000)

	// 3 fragments total; last arrives first, fragment 2 twice.
	complete := feed(t, b, payload, 1344, []int{3, 2, 2, 1})
	require.True(t, complete)

	got, err := b.Assemble()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestMissingTracksUnseenFragments(t *testing.T) {
	b := fragment.NewBuffer(100, 450) // 5 fragments

	_, err := b.AddFragment(2, 1, make([]byte, 100))
	require.NoError(t, err)
	_, err = b.AddFragment(5, 1, make([]byte, 50))
	require.NoError(t, err)

	assert.Equal(t, []wire.FragmentNumber{1, 3, 4}, b.Missing())
}

func TestAssembleBeforeCompleteFails(t *testing.T) {
	b := fragment.NewBuffer(100, 300)
	_, err := b.AddFragment(1, 1, make([]byte, 100))
	require.NoError(t, err)

	_, err = b.Assemble()
	assert.Error(t, err)
}

func TestFragmentNumberOutOfRangeFails(t *testing.T) {
	b := fragment.NewBuffer(100, 300)

	_, err := b.AddFragment(0, 1, make([]byte, 100))
	assert.Error(t, err)
	_, err = b.AddFragment(4, 1, make([]byte, 100))
	assert.Error(t, err)
}

func TestShortPayloadFails(t *testing.T) {
	b := fragment.NewBuffer(100, 300)
	_, err := b.AddFragment(1, 2, make([]byte, 150))
	assert.Error(t, err, "two declared fragments need two hundred bytes")
}

func TestReassemblerIndexesPerWriterAndSequence(t *testing.T) {
	r := fragment.NewReassembler()
	w1 := guid.Guid{Prefix: guid.GuidPrefix{1}, EntityId: guid.EntityId{Key: [3]byte{0, 0, 1}, Kind: guid.EntityKindUserWriterNoKey}}

	k1 := fragment.Key{Writer: w1, SN: 1}
	k2 := fragment.Key{Writer: w1, SN: 2}

	b1 := r.Buffer(k1, 100, 300)
	b2 := r.Buffer(k2, 100, 300)
	assert.NotSame(t, b1, b2)
	assert.Same(t, b1, r.Buffer(k1, 100, 300))
	assert.Equal(t, 2, r.Pending())

	_, ok := r.Lookup(k1)
	assert.True(t, ok)
	_, ok = r.Lookup(fragment.Key{Writer: w1, SN: 9})
	assert.False(t, ok)

	r.Discard(k1)
	assert.Equal(t, 1, r.Pending())
	_, ok = r.Lookup(k1)
	assert.False(t, ok)
}
