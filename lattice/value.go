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

package lattice

import (
	"strings"

	"go.uber.org/jqual/cfg"
)

// QualifiedValue pairs a base value with its qualifiers. Identity follows the base value.
type QualifiedValue struct {
	Base       *cfg.Value
	Qualifiers Qualifiers
}

func (v QualifiedValue) String() string {
	return v.Base.String() + v.Qualifiers.String()
}

// QualifiedValueSet is the set of qualified values that may occupy a stack or local slot, at most
// one per base value, ordered by base ID. Sets are immutable: every operation returns a new set
// and never modifies its inputs, so sets may be shared between frames.
type QualifiedValueSet struct {
	values []QualifiedValue
}

// Singleton returns the set holding only v.
func Singleton(v QualifiedValue) QualifiedValueSet {
	return QualifiedValueSet{values: []QualifiedValue{v}}
}

// Values returns the members of the set ordered by base ID. The slice must not be modified.
func (s QualifiedValueSet) Values() []QualifiedValue {
	return s.values
}

// Len returns the number of values in the set.
func (s QualifiedValueSet) Len() int {
	return len(s.values)
}

// IsEmpty returns true for the empty set, which only occurs for unset slots.
func (s QualifiedValueSet) IsEmpty() bool {
	return len(s.values) == 0
}

// Lookup returns the member whose base is v.
func (s QualifiedValueSet) Lookup(v *cfg.Value) (QualifiedValue, bool) {
	for _, qv := range s.values {
		if qv.Base == v {
			return qv, true
		}
	}
	return QualifiedValue{}, false
}

// Equal returns true if both sets hold the same bases with the same qualifiers.
func (s QualifiedValueSet) Equal(o QualifiedValueSet) bool {
	if len(s.values) != len(o.values) {
		return false
	}
	for i := range s.values {
		if s.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// Map returns the set with f applied to every member. f must not change the base.
func (s QualifiedValueSet) Map(f func(QualifiedValue) QualifiedValue) QualifiedValueSet {
	if len(s.values) == 0 {
		return s
	}
	values := make([]QualifiedValue, len(s.values))
	changed := false
	for i, qv := range s.values {
		values[i] = f(qv)
		if values[i] != qv {
			changed = true
		}
	}
	if !changed {
		return s
	}
	return QualifiedValueSet{values: values}
}

func (s QualifiedValueSet) String() string {
	parts := make([]string, len(s.values))
	for i, qv := range s.values {
		parts[i] = qv.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MergeSets returns the union of a and b. Values present in both have their qualifiers merged in
// the product lattice. The result is equal to a if b adds nothing.
func (p *Product) MergeSets(a, b QualifiedValueSet) QualifiedValueSet {
	switch {
	case b.IsEmpty():
		return a
	case a.IsEmpty():
		return b
	}
	out := make([]QualifiedValue, 0, len(a.values)+len(b.values))
	i, j := 0, 0
	for i < len(a.values) && j < len(b.values) {
		x, y := a.values[i], b.values[j]
		switch {
		case x.Base.ID < y.Base.ID:
			out = append(out, x)
			i++
		case x.Base.ID > y.Base.ID:
			out = append(out, y)
			j++
		default:
			out = append(out, QualifiedValue{Base: x.Base, Qualifiers: p.Merge(x.Qualifiers, y.Qualifiers)})
			i++
			j++
		}
	}
	out = append(out, a.values[i:]...)
	out = append(out, b.values[j:]...)
	return QualifiedValueSet{values: out}
}

// Update returns the set with the qualifiers of base v replaced by f's result. The set is returned
// unchanged if v is not a member.
func (s QualifiedValueSet) Update(v *cfg.Value, f func(Qualifiers) Qualifiers) QualifiedValueSet {
	return s.Map(func(qv QualifiedValue) QualifiedValue {
		if qv.Base == v {
			qv.Qualifiers = f(qv.Qualifiers)
		}
		return qv
	})
}
