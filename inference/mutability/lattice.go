//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mutability infers which reference parameters a method may mutate. A call to a method
// listed as mutating marks its receiver mutable, and the mark travels back through the calls that
// produced the receiver as long as they return views of their own receiver (e.g.,
// `list.iterator().remove()` mutates `list`).
package mutability

import (
	"fmt"

	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/lattice"
)

// Value is the mutability qualifier of an abstract value.
type Value uint8

// Mutability qualifiers.
const (
	ReadOnly Value = iota
	Mutable
)

// AnalysisType implements lattice.Qualifier.
func (Value) AnalysisType() lattice.AnalysisType { return lattice.Mutability }

func (v Value) String() string {
	switch v {
	case ReadOnly:
		return "read-only"
	case Mutable:
		return "mutable"
	default:
		return fmt.Sprintf("mutability.Value(%d)", uint8(v))
	}
}

// Annotation returns the annotation reported for a value with qualifier v. Only mutation is
// reported.
func (v Value) Annotation() (annotation.Mutability, bool) {
	if v == Mutable {
		return annotation.Mutable, true
	}
	return 0, false
}

// Set is the two-point mutability lattice.
type Set struct{}

var _ lattice.QualifierSet[Value] = Set{}

// ID implements lattice.QualifierSet.
func (Set) ID() lattice.AnalysisType { return lattice.Mutability }

// Initial implements lattice.QualifierSet.
func (Set) Initial() Value { return ReadOnly }

// Merge implements lattice.QualifierSet.
func (Set) Merge(a, b Value) Value {
	if a == b {
		return a
	}
	return Mutable
}

// Contains implements lattice.QualifierSet.
func (Set) Contains(q lattice.Qualifier) bool {
	v, ok := q.(Value)
	return ok && v <= Mutable
}

// Elements implements lattice.QualifierSet.
func (Set) Elements() []Value {
	return []Value{ReadOnly, Mutable}
}

func of(qs lattice.Qualifiers) Value {
	return lattice.Get[Value](qs, Set{})
}

func setMutable(qs lattice.Qualifiers) lattice.Qualifiers {
	return qs.With(Mutable)
}
