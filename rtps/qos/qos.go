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

// Package qos holds the DDS QoS policy types relevant to the RTPS core
// and the offered/requested compatibility matrix from spec.md §4.7.
package qos

import "time"

type ReliabilityKind int

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

type Reliability struct {
	Kind            ReliabilityKind
	MaxBlockingTime time.Duration
}

type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
	// Persistent is accepted for ordering comparisons only; durable
	// persistence beyond transient-local is a non-goal (spec.md §1).
	Persistent
)

type Durability struct {
	Kind DurabilityKind
}

type Deadline struct {
	Period time.Duration
}

type LatencyBudget struct {
	Duration time.Duration
}

type OwnershipKind int

const (
	OwnershipShared OwnershipKind = iota
	OwnershipExclusive
)

type Ownership struct {
	Kind OwnershipKind
}

type LivelinessKind int

const (
	LivelinessAutomatic LivelinessKind = iota
	LivelinessManualByParticipant
	LivelinessManualByTopic
)

type Liveliness struct {
	Kind          LivelinessKind
	LeaseDuration time.Duration
}

type PresentationAccessScope int

const (
	PresentationInstance PresentationAccessScope = iota
	PresentationTopic
	PresentationGroup
)

type Presentation struct {
	AccessScope    PresentationAccessScope
	CoherentAccess bool
	OrderedAccess  bool
}

type HistoryKind int

const (
	HistoryKeepLast HistoryKind = iota
	HistoryKeepAll
)

type History struct {
	Kind  HistoryKind
	Depth int
}

// ResourceLimits bounds a history cache; zero means "unbounded" in the
// same sense as DDS's LENGTH_UNLIMITED.
type ResourceLimits struct {
	MaxSamples          int
	MaxInstances         int
	MaxSamplesPerInstance int
}

// DestinationOrderKind selects how a reader orders samples from
// different writers in its merged per-instance view.
type DestinationOrderKind int

const (
	DestinationOrderByReception DestinationOrderKind = iota
	DestinationOrderBySourceTimestamp
)

// Profile bundles the policies this core actually enforces for
// matching and behavior; a DataWriter or DataReader carries one.
type Profile struct {
	Reliability      Reliability
	Durability       Durability
	Deadline         Deadline
	LatencyBudget    LatencyBudget
	Ownership        Ownership
	Liveliness       Liveliness
	Presentation     Presentation
	History          History
	ResourceLimits   ResourceLimits
	DestinationOrder DestinationOrderKind
}

// Default mirrors the OMG RTPS default QoS profile.
func Default() Profile {
	return Profile{
		Reliability:   Reliability{Kind: BestEffort},
		Durability:    Durability{Kind: Volatile},
		Deadline:      Deadline{Period: 0},
		LatencyBudget: LatencyBudget{Duration: 0},
		Ownership:     Ownership{Kind: OwnershipShared},
		Liveliness:    Liveliness{Kind: LivelinessAutomatic, LeaseDuration: 0},
		Presentation:  Presentation{AccessScope: PresentationInstance},
		History:       History{Kind: HistoryKeepLast, Depth: 1},
	}
}

// PolicyID names which QoS policy triggered an incompatibility, mirroring
// the policy_id field surfaced on OfferedIncompatibleQos/
// RequestedIncompatibleQos statuses (spec.md §4.7).
type PolicyID int

const (
	PolicyReliability PolicyID = iota
	PolicyDurability
	PolicyDeadline
	PolicyLatencyBudget
	PolicyOwnership
	PolicyLiveliness
	PolicyPresentation
)

// Incompatibility records one failed offered/requested comparison.
type Incompatibility struct {
	Policy PolicyID
}

// Compatible evaluates offered (writer) against requested (reader) QoS
// per the table in spec.md §4.7. It returns every failing policy so
// callers can surface all of them, not just the first.
func Compatible(offered, requested Profile) []Incompatibility {
	var bad []Incompatibility

	if offered.Reliability.Kind < requested.Reliability.Kind {
		bad = append(bad, Incompatibility{Policy: PolicyReliability})
	}
	if offered.Durability.Kind < requested.Durability.Kind {
		bad = append(bad, Incompatibility{Policy: PolicyDurability})
	}
	if requested.Deadline.Period > 0 {
		if offered.Deadline.Period == 0 || offered.Deadline.Period > requested.Deadline.Period {
			bad = append(bad, Incompatibility{Policy: PolicyDeadline})
		}
	}
	if offered.LatencyBudget.Duration > requested.LatencyBudget.Duration {
		bad = append(bad, Incompatibility{Policy: PolicyLatencyBudget})
	}
	if offered.Ownership.Kind != requested.Ownership.Kind {
		bad = append(bad, Incompatibility{Policy: PolicyOwnership})
	}
	if offered.Liveliness.Kind != requested.Liveliness.Kind || offered.Liveliness.LeaseDuration > requested.Liveliness.LeaseDuration {
		bad = append(bad, Incompatibility{Policy: PolicyLiveliness})
	}
	if offered.Presentation.AccessScope < requested.Presentation.AccessScope {
		bad = append(bad, Incompatibility{Policy: PolicyPresentation})
	} else if requested.Presentation.CoherentAccess && !offered.Presentation.CoherentAccess {
		bad = append(bad, Incompatibility{Policy: PolicyPresentation})
	} else if requested.Presentation.OrderedAccess && !offered.Presentation.OrderedAccess {
		bad = append(bad, Incompatibility{Policy: PolicyPresentation})
	}

	return bad
}

// IsCompatible is the common case: true iff Compatible returns no
// incompatibilities.
func IsCompatible(offered, requested Profile) bool {
	return len(Compatible(offered, requested)) == 0
}
