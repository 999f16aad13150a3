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

// Package sedp implements the Simple Endpoint Discovery Protocol: the
// three built-in stateful-reliable topic pairs that exchange
// publication, subscription and topic metadata once two participants
// have found each other via SPDP (spec.md §4.7).
package sedp

import (
	"encoding/binary"
	"time"

	"github.com/sabouaram/rtpsdds/rtps/cdr"
	"github.com/sabouaram/rtpsdds/rtps/guid"
	"github.com/sabouaram/rtpsdds/rtps/plist"
	"github.com/sabouaram/rtpsdds/rtps/qos"
)

// EndpointBuiltinTopicData is the common shape shared by publications
// and subscriptions: identity, topic binding and the QoS policies this
// core actually enforces for matching (spec.md §4.7).
type EndpointBuiltinTopicData struct {
	Guid        guid.Guid
	TopicName   string
	TypeName    string
	Reliability qos.Reliability
	Durability  qos.Durability
}

func encodeEndpointCommon(l *plist.List, d EndpointBuiltinTopicData) {
	guidBuf := make([]byte, 16)
	copy(guidBuf[0:12], d.Guid.Prefix[:])
	copy(guidBuf[12:15], d.Guid.EntityId.Key[:])
	guidBuf[15] = byte(d.Guid.EntityId.Kind)
	l.Add(plist.PIDEndpointGUID, guidBuf)

	l.Add(plist.PIDTopicName, encodeString(d.TopicName))
	l.Add(plist.PIDTypeName, encodeString(d.TypeName))

	relBuf := make([]byte, 8)
	binary.BigEndian.PutUint32(relBuf[0:4], uint32(d.Reliability.Kind))
	binary.BigEndian.PutUint32(relBuf[4:8], uint32(d.Reliability.MaxBlockingTime/1000))
	l.Add(plist.PIDReliability, relBuf)

	durBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(durBuf, uint32(d.Durability.Kind))
	l.Add(plist.PIDDurability, durBuf)
}

func decodeEndpointCommon(l *plist.List) EndpointBuiltinTopicData {
	var d EndpointBuiltinTopicData
	if v, ok := l.Get(plist.PIDEndpointGUID); ok && len(v) >= 16 {
		copy(d.Guid.Prefix[:], v[0:12])
		copy(d.Guid.EntityId.Key[:], v[12:15])
		d.Guid.EntityId.Kind = guid.EntityKind(v[15])
	}
	if v, ok := l.Get(plist.PIDTopicName); ok {
		d.TopicName = decodeString(v)
	}
	if v, ok := l.Get(plist.PIDTypeName); ok {
		d.TypeName = decodeString(v)
	}
	if v, ok := l.Get(plist.PIDReliability); ok && len(v) >= 8 {
		d.Reliability.Kind = qos.ReliabilityKind(binary.BigEndian.Uint32(v[0:4]))
		d.Reliability.MaxBlockingTime = time.Duration(binary.BigEndian.Uint32(v[4:8])) * 1000
	}
	if v, ok := l.Get(plist.PIDDurability); ok && len(v) >= 4 {
		d.Durability.Kind = qos.DurabilityKind(binary.BigEndian.Uint32(v))
	}
	return d
}

// PublicationBuiltinTopicData is what SEDP's publications writer
// announces for each local DataWriter.
type PublicationBuiltinTopicData struct {
	EndpointBuiltinTopicData
}

// SubscriptionBuiltinTopicData is what SEDP's subscriptions writer
// announces for each local DataReader. FilterExpression and
// ExpressionParameters pass a ContentFilteredTopic's filter through
// discovery; this core never evaluates it against sample content
// (spec.md §1 Non-goals).
type SubscriptionBuiltinTopicData struct {
	EndpointBuiltinTopicData
	FilterExpression     string
	ExpressionParameters []string
}

// TopicBuiltinTopicData describes a topic's name/type binding,
// independent of any single reader or writer (spec.md §3).
type TopicBuiltinTopicData struct {
	Name     string
	TypeName string
}

// EncodePublication serializes a publication announcement as PL_CDR_LE.
func EncodePublication(d PublicationBuiltinTopicData) []byte {
	w := cdr.NewWriter(cdr.ReprPLCDRLE)
	l := &plist.List{}
	encodeEndpointCommon(l, d.EndpointBuiltinTopicData)
	plist.Encode(w, l)
	return w.Bytes()
}

// DecodePublication parses a publication announcement.
func DecodePublication(data []byte) (PublicationBuiltinTopicData, error) {
	common, err := decodeCommon(data)
	return PublicationBuiltinTopicData{EndpointBuiltinTopicData: common}, err
}

// EncodeSubscription serializes a subscription announcement as PL_CDR_LE.
func EncodeSubscription(d SubscriptionBuiltinTopicData) []byte {
	w := cdr.NewWriter(cdr.ReprPLCDRLE)
	l := &plist.List{}
	encodeEndpointCommon(l, d.EndpointBuiltinTopicData)
	if d.FilterExpression != "" {
		l.Add(plist.PIDContentFilterProperty, encodeFilterProperty(d.FilterExpression, d.ExpressionParameters))
	}
	plist.Encode(w, l)
	return w.Bytes()
}

// DecodeSubscription parses a subscription announcement.
func DecodeSubscription(data []byte) (SubscriptionBuiltinTopicData, error) {
	r, err := cdr.NewReader(data)
	if err != nil {
		return SubscriptionBuiltinTopicData{}, err
	}
	l, err := plist.Decode(r)
	if err != nil {
		return SubscriptionBuiltinTopicData{}, err
	}
	d := SubscriptionBuiltinTopicData{EndpointBuiltinTopicData: decodeEndpointCommon(l)}
	if v, ok := l.Get(plist.PIDContentFilterProperty); ok {
		d.FilterExpression, d.ExpressionParameters = decodeFilterProperty(v)
	}
	return d, nil
}

// encodeFilterProperty packs a content filter as the expression string
// followed by a counted run of parameter strings.
func encodeFilterProperty(expression string, parameters []string) []byte {
	out := encodeString(expression)
	cnt := make([]byte, 4)
	binary.BigEndian.PutUint32(cnt, uint32(len(parameters)))
	out = append(out, cnt...)
	for _, p := range parameters {
		out = append(out, encodeString(p)...)
	}
	return out
}

func decodeFilterProperty(v []byte) (string, []string) {
	expression, rest := takeString(v)
	if len(rest) < 4 {
		return expression, nil
	}
	n := binary.BigEndian.Uint32(rest[0:4])
	rest = rest[4:]
	var params []string
	for i := uint32(0); i < n && len(rest) > 0; i++ {
		var p string
		p, rest = takeString(rest)
		params = append(params, p)
	}
	return expression, params
}

// takeString decodes one length-prefixed string and returns the
// remaining bytes.
func takeString(v []byte) (string, []byte) {
	if len(v) < 4 {
		return "", nil
	}
	n := binary.BigEndian.Uint32(v[0:4])
	if n == 0 || int(n) > len(v)-4 {
		return "", nil
	}
	return string(v[4 : 4+n-1]), v[4+n:]
}

// EncodeTopic serializes a topic announcement as PL_CDR_LE.
func EncodeTopic(d TopicBuiltinTopicData) []byte {
	w := cdr.NewWriter(cdr.ReprPLCDRLE)
	l := &plist.List{}
	l.Add(plist.PIDTopicName, encodeString(d.Name))
	l.Add(plist.PIDTypeName, encodeString(d.TypeName))
	plist.Encode(w, l)
	return w.Bytes()
}

// DecodeTopic parses a topic announcement.
func DecodeTopic(data []byte) (TopicBuiltinTopicData, error) {
	r, err := cdr.NewReader(data)
	if err != nil {
		return TopicBuiltinTopicData{}, err
	}
	l, err := plist.Decode(r)
	if err != nil {
		return TopicBuiltinTopicData{}, err
	}
	var d TopicBuiltinTopicData
	if v, ok := l.Get(plist.PIDTopicName); ok {
		d.Name = decodeString(v)
	}
	if v, ok := l.Get(plist.PIDTypeName); ok {
		d.TypeName = decodeString(v)
	}
	return d, nil
}

func decodeCommon(data []byte) (EndpointBuiltinTopicData, error) {
	r, err := cdr.NewReader(data)
	if err != nil {
		return EndpointBuiltinTopicData{}, err
	}
	l, err := plist.Decode(r)
	if err != nil {
		return EndpointBuiltinTopicData{}, err
	}
	return decodeEndpointCommon(l), nil
}

func encodeString(s string) []byte {
	buf := make([]byte, 4+len(s)+1)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(s)+1))
	copy(buf[4:], s)
	return buf
}

func decodeString(v []byte) string {
	if len(v) < 4 {
		return ""
	}
	n := binary.BigEndian.Uint32(v[0:4])
	if int(n) == 0 || int(n) > len(v)-4 {
		return ""
	}
	return string(v[4 : 4+n-1])
}
