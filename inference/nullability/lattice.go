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

// Package nullability infers nullability annotations for method parameters, method returns and
// fields from the frames of a method analysis.
//
// The lattice has five values. Conflict is the bottom and marks values on infeasible paths (a value
// known to be null that was dereferenced). Null and NotNull are exact facts. Unknown is a value
// that may be non-null or may come from code we know nothing about; a NotNull value joined with an
// Unknown one stays Unknown. Nullable is the top.
//
//	Merge     | Conflict Null     NotNull  Unknown  Nullable
//	----------+-------------------------------------------------
//	Conflict  | Conflict Null     NotNull  Unknown  Nullable
//	Null      | Null     Null     Nullable Nullable Nullable
//	NotNull   | NotNull  Nullable NotNull  Unknown  Nullable
//	Unknown   | Unknown  Nullable Unknown  Unknown  Nullable
//	Nullable  | Nullable Nullable Nullable Nullable Nullable
//
// Null and Nullable are reported as @Nullable, NotNull as @NotNull, and Unknown and Conflict are
// not reported.
package nullability

import (
	"fmt"

	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/lattice"
)

// Value is the nullability qualifier of an abstract value.
type Value uint8

// Nullability qualifiers, see the package documentation for their order.
const (
	Conflict Value = iota
	Null
	NotNull
	Unknown
	Nullable
)

// AnalysisType implements lattice.Qualifier.
func (Value) AnalysisType() lattice.AnalysisType { return lattice.Nullability }

func (v Value) String() string {
	switch v {
	case Conflict:
		return "conflict"
	case Null:
		return "null"
	case NotNull:
		return "not-null"
	case Unknown:
		return "unknown"
	case Nullable:
		return "nullable"
	default:
		return fmt.Sprintf("nullability.Value(%d)", uint8(v))
	}
}

// Annotation returns the annotation reported for a value with qualifier v.
func (v Value) Annotation() (annotation.Nullability, bool) {
	switch v {
	case Null, Nullable:
		return annotation.Nullable, true
	case NotNull:
		return annotation.NotNull, true
	default:
		return 0, false
	}
}

// FromAnnotation returns the qualifier of values at a position annotated with a.
func FromAnnotation(a annotation.Nullability) Value {
	switch a {
	case annotation.NotNull:
		return NotNull
	case annotation.Nullable:
		return Nullable
	default:
		return Unknown
	}
}

// assumeNotNull refines v on a path where the value is known not to be null, e.g., after it was
// dereferenced.
func assumeNotNull(v Value) Value {
	switch v {
	case Null:
		return Conflict
	case Unknown, Nullable:
		return NotNull
	default:
		return v
	}
}

// assumeNull refines v on a path where the value is known to be null.
func assumeNull(v Value) Value {
	switch v {
	case NotNull:
		return Conflict
	case Unknown, Nullable:
		return Null
	default:
		return v
	}
}

// Set is the nullability lattice.
type Set struct{}

var _ lattice.QualifierSet[Value] = Set{}

// ID implements lattice.QualifierSet.
func (Set) ID() lattice.AnalysisType { return lattice.Nullability }

// Initial implements lattice.QualifierSet.
func (Set) Initial() Value { return Conflict }

// Merge implements lattice.QualifierSet.
func (Set) Merge(a, b Value) Value {
	switch {
	case a == b:
		return a
	case a == Conflict:
		return b
	case b == Conflict:
		return a
	case a == Nullable || b == Nullable:
		return Nullable
	case (a == NotNull && b == Unknown) || (a == Unknown && b == NotNull):
		return Unknown
	default:
		// Null with NotNull or Unknown.
		return Nullable
	}
}

// Contains implements lattice.QualifierSet.
func (Set) Contains(q lattice.Qualifier) bool {
	v, ok := q.(Value)
	return ok && v <= Nullable
}

// Elements implements lattice.QualifierSet.
func (Set) Elements() []Value {
	return []Value{Conflict, Null, NotNull, Unknown, Nullable}
}

// Merge joins two nullability qualifiers.
func Merge(a, b Value) Value {
	return Set{}.Merge(a, b)
}

// of returns the nullability qualifier stored in qs.
func of(qs lattice.Qualifiers) Value {
	return lattice.Get[Value](qs, Set{})
}
