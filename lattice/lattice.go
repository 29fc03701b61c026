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

// Package lattice defines the qualifier lattices the frame analysis merges at control-flow joins.
// Each analysis contributes one qualifier dimension; the dimensions are combined into a product
// lattice so that several analyses can tag the same abstract value without interfering.
package lattice

import "fmt"

// AnalysisType identifies a qualifier dimension. The set of dimensions is closed and known at
// compile time, so the qualifiers of a value are stored in a fixed-size array indexed by it.
type AnalysisType uint8

const (
	// Nullability tracks whether a reference may be null.
	Nullability AnalysisType = iota
	// Mutability tracks whether an object may be mutated through a reference.
	Mutability

	numAnalysisTypes
)

func (a AnalysisType) String() string {
	switch a {
	case Nullability:
		return "nullability"
	case Mutability:
		return "mutability"
	default:
		return fmt.Sprintf("AnalysisType(%d)", a)
	}
}

// Qualifier is an abstract fact attached to a value in one dimension.
type Qualifier interface {
	// AnalysisType returns the dimension the qualifier belongs to.
	AnalysisType() AnalysisType
	String() string
}

// QualifierSet is a join-semilattice of qualifiers of type Q. Merge must be commutative and
// idempotent, have Initial as its unit, and be associative.
type QualifierSet[Q Qualifier] interface {
	// ID returns the dimension of the lattice.
	ID() AnalysisType
	// Initial returns the bottom element.
	Initial() Q
	// Merge returns the least upper bound of q1 and q2.
	Merge(q1, q2 Q) Q
	// Contains returns true if q is a qualifier of this lattice.
	Contains(q Qualifier) bool
	// Elements returns every qualifier of the lattice.
	Elements() []Q
}

// Dimension is a QualifierSet with its qualifier type erased, as stored in a Product. The only
// implementation is created by Erase.
type Dimension interface {
	ID() AnalysisType
	Initial() Qualifier
	Merge(q1, q2 Qualifier) Qualifier
	Contains(q Qualifier) bool

	sealed()
}

// Erase converts a typed QualifierSet into a Dimension.
func Erase[Q Qualifier](s QualifierSet[Q]) Dimension {
	return erased[Q]{set: s}
}

type erased[Q Qualifier] struct {
	set QualifierSet[Q]
}

func (e erased[Q]) ID() AnalysisType   { return e.set.ID() }
func (e erased[Q]) Initial() Qualifier { return e.set.Initial() }

func (e erased[Q]) Merge(q1, q2 Qualifier) Qualifier {
	return e.set.Merge(e.typed(q1), e.typed(q2))
}

func (e erased[Q]) Contains(q Qualifier) bool { return e.set.Contains(q) }

func (erased[Q]) sealed() {}

// typed narrows q to Q, treating absent or foreign qualifiers as the initial element.
func (e erased[Q]) typed(q Qualifier) Q {
	if t, ok := q.(Q); ok && e.set.Contains(q) {
		return t
	}
	return e.set.Initial()
}

// Qualifiers holds at most one qualifier per dimension. A nil entry means the dimension is not
// tracked. The zero value tracks nothing. Qualifiers is comparable.
type Qualifiers [numAnalysisTypes]Qualifier

// Get returns the qualifier stored for dimension a, or nil.
func (qs Qualifiers) Get(a AnalysisType) Qualifier {
	return qs[a]
}

// With returns a copy of qs with q stored in its dimension.
func (qs Qualifiers) With(q Qualifier) Qualifiers {
	qs[q.AnalysisType()] = q
	return qs
}

func (qs Qualifiers) String() string {
	s := "{"
	first := true
	for _, q := range qs {
		if q == nil {
			continue
		}
		if !first {
			s += " "
		}
		first = false
		s += q.String()
	}
	return s + "}"
}

// Get returns the qualifier of lattice s stored in qs, or the lattice's initial element if qs
// holds none.
func Get[Q Qualifier](qs Qualifiers, s QualifierSet[Q]) Q {
	if q, ok := qs[s.ID()].(Q); ok && s.Contains(q) {
		return q
	}
	return s.Initial()
}

// Product is the product of several qualifier dimensions, merged component-wise.
type Product struct {
	dims []Dimension
}

// NewProduct combines dimensions into a product lattice. Each AnalysisType may appear once.
func NewProduct(dims ...Dimension) (*Product, error) {
	var seen [numAnalysisTypes]bool
	for _, d := range dims {
		if int(d.ID()) >= len(seen) {
			return nil, fmt.Errorf("unknown dimension %s", d.ID())
		}
		if seen[d.ID()] {
			return nil, fmt.Errorf("dimension %s added twice", d.ID())
		}
		seen[d.ID()] = true
	}
	return &Product{dims: dims}, nil
}

// Dimensions returns the dimensions of the product.
func (p *Product) Dimensions() []Dimension {
	return p.dims
}

// Has returns true if dimension a is part of the product.
func (p *Product) Has(a AnalysisType) bool {
	for _, d := range p.dims {
		if d.ID() == a {
			return true
		}
	}
	return false
}

// Initial returns the bottom element of the product.
func (p *Product) Initial() Qualifiers {
	var qs Qualifiers
	for _, d := range p.dims {
		qs[d.ID()] = d.Initial()
	}
	return qs
}

// Merge joins a and b in every dimension of the product. Dimensions outside the product are
// dropped.
func (p *Product) Merge(a, b Qualifiers) Qualifiers {
	var qs Qualifiers
	for _, d := range p.dims {
		qs[d.ID()] = d.Merge(a[d.ID()], b[d.ID()])
	}
	return qs
}
