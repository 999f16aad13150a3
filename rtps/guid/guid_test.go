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

package guid_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomPrefix derives a GuidPrefix from a random UUID so table cases
// get distinct-but-arbitrary prefixes without hand-rolled bytes.
func randomPrefix(t *testing.T) guid.GuidPrefix {
	t.Helper()
	u, err := uuid.NewRandom()
	require.NoError(t, err)
	var p guid.GuidPrefix
	copy(p[:], u[:12])
	return p
}

func TestGuidPrefixUnknown(t *testing.T) {
	assert.True(t, guid.GuidPrefixUnknown.IsUnknown())
	assert.False(t, randomPrefix(t).IsUnknown())
}

func TestGuidPrefixDistinct(t *testing.T) {
	a := randomPrefix(t)
	b := randomPrefix(t)
	assert.NotEqual(t, a, b)
}

func TestEntityIdClassification(t *testing.T) {
	cases := []struct {
		name    string
		id      guid.EntityId
		writer  bool
		reader  bool
		builtin bool
	}{
		{"user writer no key", guid.EntityId{Kind: guid.EntityKindUserWriterNoKey}, true, false, false},
		{"user reader with key", guid.EntityId{Kind: guid.EntityKindUserReaderWithKey}, false, true, false},
		{"builtin participant", guid.EntityIdParticipant, false, false, true},
		{"spdp writer", guid.EntityIdSPDPBuiltinParticipantWriter, true, false, true},
		{"spdp reader", guid.EntityIdSPDPBuiltinParticipantReader, false, true, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.writer, c.id.IsWriter())
			assert.Equal(t, c.reader, c.id.IsReader())
			assert.Equal(t, c.builtin, c.id.IsBuiltin())
		})
	}
}

func TestGuidParticipant(t *testing.T) {
	prefix := randomPrefix(t)
	g := guid.Participant(prefix)
	assert.Equal(t, prefix, g.Prefix)
	assert.Equal(t, guid.EntityIdParticipant, g.EntityId)
	assert.False(t, g.IsUnknown())
	assert.True(t, guid.GuidUnknown.IsUnknown())
}

func TestGuidStringIsStable(t *testing.T) {
	prefix := randomPrefix(t)
	g := guid.Participant(prefix)
	assert.Equal(t, g.String(), g.String())
	assert.Contains(t, g.String(), prefix.String())
}
