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

package jqual

import (
	"errors"
	"slices"
	"strings"

	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/config"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/hierarchy"
	"go.uber.org/jqual/index"
)

// Result holds the annotations inferred by a session run.
type Result struct {
	Nullability *annotation.Annotations[annotation.Nullability]
	Mutability  *annotation.Annotations[annotation.Mutability]
	// Propagated lists the positions whose annotation was set or weakened from an overriding
	// method rather than inferred from the method's own body.
	Propagated []declaration.Position
	// Rounds is the number of rounds run.
	Rounds int
	// Errors lists the methods whose analysis failed in the last round, ordered by method.
	Errors []*MethodError
}

// MethodError is the failure of the analysis of one method.
type MethodError struct {
	Method declaration.MethodID
	Err    error
}

func (e *MethodError) Error() string {
	return e.Err.Error()
}

func (e *MethodError) Unwrap() error {
	return e.Err
}

// Err joins the errors of the result, nil if every method was analyzed.
func (r *Result) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Snapshot returns the annotations of the result for use as the prior of a later run.
func (r *Result) Snapshot() *Snapshot {
	return &Snapshot{Nullability: r.Nullability.Clone(), Mutability: r.Mutability.Clone()}
}

// IsPropagated returns true if the annotation at p came from an overriding method.
func (r *Result) IsPropagated(p declaration.Position) bool {
	_, found := slices.BinarySearchFunc(r.Propagated, p, comparePositions)
	return found
}

func sortedErrors(errs map[declaration.MethodID]error) []*MethodError {
	out := make([]*MethodError, 0, len(errs))
	for m, err := range errs {
		out = append(out, &MethodError{Method: m, Err: err})
	}
	slices.SortFunc(out, func(a, b *MethodError) int {
		return strings.Compare(a.Method.String(), b.Method.String())
	})
	return out
}

func comparePositions(a, b declaration.Position) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// filter drops the annotations of classes out of the configured scope.
func (r *Result) filter(conf *config.Config) {
	inScope := func(p declaration.Position) bool { return conf.IsClassInScope(string(p.Owner)) }
	for _, e := range r.Nullability.Sorted() {
		if !inScope(e.Position) {
			r.Nullability.Delete(e.Position)
		}
	}
	for _, e := range r.Mutability.Sorted() {
		if !inScope(e.Position) {
			r.Mutability.Delete(e.Position)
		}
	}
	r.Propagated = slices.DeleteFunc(r.Propagated, func(p declaration.Position) bool { return !inScope(p) })
}

// propagateOverrides carries parameter annotations from overriding methods to the methods they
// override. A nullable parameter weakens an inferred non-null parameter of an overridden method,
// and a mutable parameter makes the overridden parameter mutable. Declared annotations of
// overridden methods are left alone. It returns the changed positions, sorted.
func propagateOverrides(g *hierarchy.Graph[*declaration.Class], idx index.DeclarationIndex, r *Result) []declaration.Position {
	declared := func(p declaration.Position) (nullable, mutable bool) {
		anns := idx.DeclaredAnnotations(p)
		_, nullable = annotation.ResolveNullability(anns)
		_, mutable = annotation.ResolveMutability(anns)
		return nullable, mutable
	}
	nullabilityOf := func(p declaration.Position) (annotation.Nullability, bool) {
		if n, ok := annotation.ResolveNullability(idx.DeclaredAnnotations(p)); ok {
			return n, true
		}
		return r.Nullability.Get(p)
	}
	mutabilityOf := func(p declaration.Position) (annotation.Mutability, bool) {
		if m, ok := annotation.ResolveMutability(idx.DeclaredAnnotations(p)); ok {
			return m, true
		}
		return r.Mutability.Get(p)
	}

	changed := make(map[declaration.Position]bool)
	for _, n := range g.Nodes() {
		if !n.Resolved() {
			continue
		}
		for _, m := range n.Data().Methods {
			overridden := hierarchy.OverriddenMethods(g, m)
			if len(overridden) == 0 {
				continue
			}
			for i, t := range m.Params() {
				if !t.IsReference() {
					continue
				}
				pos := declaration.ParameterPosition(m.ID(), i)
				nv, nok := nullabilityOf(pos)
				mv, mok := mutabilityOf(pos)
				for _, sm := range overridden {
					sp := declaration.ParameterPosition(sm.ID(), i)
					hasNullability, hasMutability := declared(sp)
					if nok && nv == annotation.Nullable && !hasNullability {
						if cur, ok := r.Nullability.Get(sp); ok && cur == annotation.NotNull {
							r.Nullability.Replace(sp, annotation.Nullable)
							changed[sp] = true
						}
					}
					if mok && mv == annotation.Mutable && !hasMutability {
						if _, ok := r.Mutability.Get(sp); !ok {
							r.Mutability.Set(sp, annotation.Mutable)
							changed[sp] = true
						}
					}
				}
			}
		}
	}

	out := make([]declaration.Position, 0, len(changed))
	for p := range changed {
		out = append(out, p)
	}
	slices.SortFunc(out, comparePositions)
	return out
}
