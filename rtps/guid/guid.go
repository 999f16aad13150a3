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

// Package guid implements the RTPS identifier hierarchy: GuidPrefix,
// EntityId and the Guid pair, along with the well-known entity ids that
// every RTPS-compliant participant must recognize for its built-in
// discovery endpoints.
package guid

import (
	"encoding/hex"
	"fmt"
)

// GuidPrefix is the 12-byte prefix unique to a participant.
type GuidPrefix [12]byte

// GuidPrefixUnknown is the reserved all-zero prefix.
var GuidPrefixUnknown = GuidPrefix{}

func (p GuidPrefix) String() string {
	return hex.EncodeToString(p[:])
}

// IsUnknown reports whether the prefix is the reserved zero value.
func (p GuidPrefix) IsUnknown() bool {
	return p == GuidPrefixUnknown
}

// EntityKind is the one-byte entity kind discriminator packed into the
// fourth byte of an EntityId. The two low bits encode keyed/keyless +
// reader/writer; the high bits discriminate built-in from user entities.
type EntityKind byte

const (
	EntityKindUnknown              EntityKind = 0x00
	EntityKindUserWriterWithKey     EntityKind = 0x02
	EntityKindUserWriterNoKey       EntityKind = 0x03
	EntityKindUserReaderWithKey     EntityKind = 0x07
	EntityKindUserReaderNoKey       EntityKind = 0x04
	EntityKindBuiltinWriterWithKey  EntityKind = 0xc2
	EntityKindBuiltinWriterNoKey    EntityKind = 0xc3
	EntityKindBuiltinReaderWithKey  EntityKind = 0xc7
	EntityKindBuiltinReaderNoKey    EntityKind = 0xc4
	EntityKindBuiltinParticipant    EntityKind = 0xc1
)

// EntityId identifies an endpoint within the scope of one participant: a
// 3-byte key plus the 1-byte kind.
type EntityId struct {
	Key  [3]byte
	Kind EntityKind
}

func (e EntityId) String() string {
	return fmt.Sprintf("%02x%02x%02x.%02x", e.Key[0], e.Key[1], e.Key[2], byte(e.Kind))
}

// IsWriter reports whether the kind byte marks this id as a writer.
func (e EntityId) IsWriter() bool {
	switch e.Kind {
	case EntityKindUserWriterWithKey, EntityKindUserWriterNoKey, EntityKindBuiltinWriterWithKey, EntityKindBuiltinWriterNoKey:
		return true
	}
	return false
}

// IsReader reports whether the kind byte marks this id as a reader.
func (e EntityId) IsReader() bool {
	switch e.Kind {
	case EntityKindUserReaderWithKey, EntityKindUserReaderNoKey, EntityKindBuiltinReaderWithKey, EntityKindBuiltinReaderNoKey:
		return true
	}
	return false
}

// IsBuiltin reports whether this id belongs to a built-in (discovery)
// endpoint rather than a user-defined one.
func (e EntityId) IsBuiltin() bool {
	switch e.Kind {
	case EntityKindBuiltinWriterWithKey, EntityKindBuiltinWriterNoKey, EntityKindBuiltinReaderWithKey, EntityKindBuiltinReaderNoKey, EntityKindBuiltinParticipant:
		return true
	}
	return false
}

// Well-known entity ids, per the RTPS spec's reserved identifier table.
var (
	EntityIdUnknown     = EntityId{}
	EntityIdParticipant = EntityId{Key: [3]byte{0x00, 0x00, 0x01}, Kind: EntityKindBuiltinParticipant}

	EntityIdSPDPBuiltinParticipantWriter = EntityId{Key: [3]byte{0x00, 0x01, 0x00}, Kind: EntityKindBuiltinWriterWithKey}
	EntityIdSPDPBuiltinParticipantReader = EntityId{Key: [3]byte{0x00, 0x01, 0x00}, Kind: EntityKindBuiltinReaderWithKey}

	EntityIdSEDPBuiltinPublicationsWriter  = EntityId{Key: [3]byte{0x00, 0x03, 0x00}, Kind: EntityKindBuiltinWriterWithKey}
	EntityIdSEDPBuiltinPublicationsReader  = EntityId{Key: [3]byte{0x00, 0x03, 0x00}, Kind: EntityKindBuiltinReaderWithKey}
	EntityIdSEDPBuiltinSubscriptionsWriter = EntityId{Key: [3]byte{0x00, 0x04, 0x00}, Kind: EntityKindBuiltinWriterWithKey}
	EntityIdSEDPBuiltinSubscriptionsReader = EntityId{Key: [3]byte{0x00, 0x04, 0x00}, Kind: EntityKindBuiltinReaderWithKey}
	EntityIdSEDPBuiltinTopicsWriter        = EntityId{Key: [3]byte{0x00, 0x02, 0x00}, Kind: EntityKindBuiltinWriterWithKey}
	EntityIdSEDPBuiltinTopicsReader        = EntityId{Key: [3]byte{0x00, 0x02, 0x00}, Kind: EntityKindBuiltinReaderWithKey}
)

// Guid is a globally unique endpoint (or participant) identifier: a
// GuidPrefix scoped by an EntityId.
type Guid struct {
	Prefix   GuidPrefix
	EntityId EntityId
}

// GuidUnknown is the reserved all-zero guid.
var GuidUnknown = Guid{}

func (g Guid) String() string {
	return fmt.Sprintf("%s:%s", g.Prefix, g.EntityId)
}

// IsUnknown reports whether g is the reserved zero value.
func (g Guid) IsUnknown() bool {
	return g == GuidUnknown
}

// Participant builds the guid of the participant that owns this prefix.
func Participant(prefix GuidPrefix) Guid {
	return Guid{Prefix: prefix, EntityId: EntityIdParticipant}
}
