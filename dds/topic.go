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

import "github.com/sabouaram/rtpsdds/rtps/qos"

// KeyFunc extracts an instance key from a sample's serialized payload.
// A nil KeyFunc marks a keyless topic: every sample belongs to the same
// single instance. Extracting keys from an arbitrary user type is an
// IDL/XTypes concern this core treats as out of scope (spec.md §1); the
// caller supplies the function instead.
type KeyFunc func(payload []byte) []byte

// Topic is a name/type binding shared by every DataWriter/DataReader
// built on it.
type Topic struct {
	Name     string
	TypeName string
	QoS      qos.Profile
	Key      KeyFunc
}

// NewTopic builds a Topic with the given name/type binding and QoS.
func NewTopic(name, typeName string, profile qos.Profile, key KeyFunc) *Topic {
	return &Topic{Name: name, TypeName: typeName, QoS: profile, Key: key}
}

// ContentFilteredTopic narrows a related Topic by a filter expression.
// This core never evaluates the expression against sample content
// (content-filter evaluation is a Non-goal, spec.md §1); it carries the
// expression through SEDP so a filtering-capable remote writer can
// apply it upstream.
type ContentFilteredTopic struct {
	Name                 string
	Related              *Topic
	FilterExpression     string
	ExpressionParameters []string
}

// NewContentFilteredTopic builds a filtered view over related. The
// related topic supplies the type binding, QoS and key extraction.
func NewContentFilteredTopic(name string, related *Topic, expression string, parameters []string) (*ContentFilteredTopic, error) {
	if related == nil {
		return nil, ErrBadParameter("dds: content filtered topic requires a related topic")
	}
	if expression == "" {
		return nil, ErrBadParameter("dds: content filtered topic requires a filter expression")
	}
	return &ContentFilteredTopic{
		Name:                 name,
		Related:              related,
		FilterExpression:     expression,
		ExpressionParameters: parameters,
	}, nil
}

// SetExpressionParameters replaces the filter's parameter values. The
// expression itself is immutable after creation.
func (c *ContentFilteredTopic) SetExpressionParameters(parameters []string) {
	c.ExpressionParameters = append([]string(nil), parameters...)
}

// TopicDescription is the tagged union a DataReader can be created
// against: a plain Topic or a ContentFilteredTopic. Per the "variant
// types over inheritance" resolution in spec.md §9, dispatch lives in
// an explicit switch on the populated case, not a vtable; only a plain
// Topic can be written to.
type TopicDescription struct {
	Topic    *Topic
	Filtered *ContentFilteredTopic
}

// DescriptionOf wraps a plain Topic.
func DescriptionOf(t *Topic) TopicDescription {
	return TopicDescription{Topic: t}
}

// DescriptionOfFiltered wraps a ContentFilteredTopic.
func DescriptionOfFiltered(c *ContentFilteredTopic) TopicDescription {
	return TopicDescription{Filtered: c}
}

// related resolves the underlying Topic either variant binds to.
func (td TopicDescription) related() *Topic {
	if td.Filtered != nil {
		return td.Filtered.Related
	}
	return td.Topic
}
