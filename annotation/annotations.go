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

// Package annotation holds the output of inference: maps from declaration positions to annotation
// values, and the vocabulary of annotation classes that declared annotations are resolved from.
package annotation

import (
	"bytes"
	"encoding/gob"
	"errors"
	"slices"

	"github.com/klauspost/compress/s2"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/util/orderedmap"
)

// Annotations maps positions to annotation values of type A, at most one value per position.
// Iteration follows insertion order. Annotations is not safe for concurrent use; the session
// collects per-method results and merges them in a fixed order.
type Annotations[A comparable] struct {
	m *orderedmap.OrderedMap[declaration.Position, A]
}

// New returns an empty annotation map.
func New[A comparable]() *Annotations[A] {
	return &Annotations[A]{m: orderedmap.New[declaration.Position, A]()}
}

// Get returns the annotation at p.
func (a *Annotations[A]) Get(p declaration.Position) (A, bool) {
	return a.m.Load(p)
}

// Set stores v at p unless p already holds an annotation. It returns false if an existing,
// different annotation was kept.
func (a *Annotations[A]) Set(p declaration.Position, v A) bool {
	if old, ok := a.m.Load(p); ok {
		return old == v
	}
	a.m.Store(p, v)
	return true
}

// Replace stores v at p, overwriting any existing annotation. It is used by passes that
// deliberately weaken an annotation.
func (a *Annotations[A]) Replace(p declaration.Position, v A) {
	a.m.Store(p, v)
}

// Delete removes the annotation at p.
func (a *Annotations[A]) Delete(p declaration.Position) {
	a.m.Delete(p)
}

// Len returns the number of annotated positions.
func (a *Annotations[A]) Len() int {
	return a.m.Len()
}

// Range calls f on every position in insertion order until f returns false.
func (a *Annotations[A]) Range(f func(p declaration.Position, v A) bool) {
	a.m.OrderedRange(f)
}

// Entry is one annotated position.
type Entry[A comparable] struct {
	Position declaration.Position
	Value    A
}

// Sorted returns the entries ordered by position.
func (a *Annotations[A]) Sorted() []Entry[A] {
	entries := make([]Entry[A], 0, a.m.Len())
	a.m.OrderedRange(func(p declaration.Position, v A) bool {
		entries = append(entries, Entry[A]{Position: p, Value: v})
		return true
	})
	slices.SortFunc(entries, func(x, y Entry[A]) int {
		switch {
		case x.Position.Less(y.Position):
			return -1
		case y.Position.Less(x.Position):
			return 1
		default:
			return 0
		}
	})
	return entries
}

// Merge copies every annotation of o into a with Set semantics and returns the positions where a
// kept a different annotation.
func (a *Annotations[A]) Merge(o *Annotations[A]) []declaration.Position {
	var conflicts []declaration.Position
	o.Range(func(p declaration.Position, v A) bool {
		if !a.Set(p, v) {
			conflicts = append(conflicts, p)
		}
		return true
	})
	return conflicts
}

// Clone returns a copy of a.
func (a *Annotations[A]) Clone() *Annotations[A] {
	c := New[A]()
	c.Merge(a)
	return c
}

// Equal returns true if both maps hold the same annotations, regardless of order.
func (a *Annotations[A]) Equal(o *Annotations[A]) bool {
	if a.Len() != o.Len() {
		return false
	}
	equal := true
	a.Range(func(p declaration.Position, v A) bool {
		ov, ok := o.Get(p)
		equal = ok && ov == v
		return equal
	})
	return equal
}

// GobEncode encodes the annotations as a compressed gob stream.
func (a *Annotations[A]) GobEncode() (b []byte, err error) {
	var buf bytes.Buffer
	writer := s2.NewWriter(&buf)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := gob.NewEncoder(writer).Encode(a.m); err != nil {
		return nil, err
	}

	// Close the s2 writer before getting the bytes such that we have complete information.
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode replaces the contents of a with the decoded annotations.
func (a *Annotations[A]) GobDecode(input []byte) error {
	a.m = orderedmap.New[declaration.Position, A]()
	return gob.NewDecoder(s2.NewReader(bytes.NewBuffer(input))).Decode(&a.m)
}
