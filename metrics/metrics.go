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

// Package metrics exposes the core's countable events as Prometheus
// collectors: dropped submessages, heartbeat/acknack traffic, matched
// endpoint counts and in-flight reassembly buffers. None of this
// drives behavior; it is purely observational, wired per
// SPEC_FULL.md's domain-stack section.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector the core registers, so a Participant
// can construct one per domain participant without colliding on
// Prometheus's default global registry when more than one participant
// runs in a process.
type Registry struct {
	reg *prometheus.Registry

	SubmessagesDropped  *prometheus.CounterVec
	HeartbeatsSent      *prometheus.CounterVec
	HeartbeatsReceived  *prometheus.CounterVec
	AckNacksSent        *prometheus.CounterVec
	AckNacksReceived    *prometheus.CounterVec
	GapsSent            *prometheus.CounterVec
	DataSent            *prometheus.CounterVec
	DataReceived        *prometheus.CounterVec
	MatchedEndpoints    *prometheus.GaugeVec
	ReassemblyBuffers   prometheus.Gauge
	SPDPAnnouncements   prometheus.Counter
	SEDPMatches         prometheus.Counter
	QosIncompatibilities *prometheus.CounterVec
}

// NewRegistry builds and registers every collector on a fresh
// prometheus.Registry (never the global DefaultRegisterer, so multiple
// domain participants in one process don't collide).
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		SubmessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps",
			Name:      "submessages_dropped_total",
			Help:      "Submessages dropped at parse time, by reason.",
		}, []string{"reason"}),
		HeartbeatsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps",
			Name:      "heartbeats_sent_total",
			Help:      "HEARTBEAT submessages sent, by writer guid.",
		}, []string{"writer"}),
		HeartbeatsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps",
			Name:      "heartbeats_received_total",
			Help:      "HEARTBEAT submessages received, by writer guid.",
		}, []string{"writer"}),
		AckNacksSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps",
			Name:      "acknacks_sent_total",
			Help:      "ACKNACK submessages sent, by reader guid.",
		}, []string{"reader"}),
		AckNacksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps",
			Name:      "acknacks_received_total",
			Help:      "ACKNACK submessages received, by reader guid.",
		}, []string{"reader"}),
		GapsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps",
			Name:      "gaps_sent_total",
			Help:      "GAP submessages sent, by writer guid.",
		}, []string{"writer"}),
		DataSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps",
			Name:      "data_sent_total",
			Help:      "DATA/DATA_FRAG submessages sent, by writer guid.",
		}, []string{"writer"}),
		DataReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps",
			Name:      "data_received_total",
			Help:      "DATA/DATA_FRAG submessages received, by reader guid.",
		}, []string{"reader"}),
		MatchedEndpoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtps",
			Name:      "matched_endpoints",
			Help:      "Currently matched remote endpoints, by local endpoint guid.",
		}, []string{"endpoint"}),
		ReassemblyBuffers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtps",
			Name:      "reassembly_buffers_in_flight",
			Help:      "DATA_FRAG reassembly buffers currently incomplete.",
		}),
		SPDPAnnouncements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtps",
			Subsystem: "spdp",
			Name:      "announcements_sent_total",
			Help:      "SPDP participant announcements sent.",
		}),
		SEDPMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtps",
			Subsystem: "sedp",
			Name:      "matches_total",
			Help:      "SEDP-driven reader/writer matches formed.",
		}),
		QosIncompatibilities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps",
			Name:      "qos_incompatibilities_total",
			Help:      "OfferedIncompatibleQos/RequestedIncompatibleQos events, by policy.",
		}, []string{"policy", "side"}),
	}

	reg.MustRegister(
		r.SubmessagesDropped, r.HeartbeatsSent, r.HeartbeatsReceived,
		r.AckNacksSent, r.AckNacksReceived, r.GapsSent, r.DataSent,
		r.DataReceived, r.MatchedEndpoints, r.ReassemblyBuffers,
		r.SPDPAnnouncements, r.SEDPMatches, r.QosIncompatibilities,
	)
	return r
}

// Gatherer exposes the underlying registry for an HTTP /metrics
// handler (wired by the collaborator process, not this core).
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
