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

package hierarchy

import (
	"fmt"

	"go.uber.org/jqual/declaration"
)

// Resolution is the outcome of a supertype search.
type Resolution uint8

const (
	// Found means a supertype matched.
	Found Resolution = iota
	// NotFound means every supertype was visited and none matched.
	NotFound
	// Unresolved means no supertype matched, but part of the hierarchy was unknown or beyond the
	// depth limit, so a match may have been missed.
	Unresolved
)

func (r Resolution) String() string {
	switch r {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	case Unresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("Resolution(%d)", r)
	}
}

// SearchResult describes a supertype search.
type SearchResult struct {
	Resolution Resolution
	// Match is the matching supertype when Resolution is Found.
	Match declaration.ClassName
	// Missing lists the types whose supertypes are unknown, in visiting order.
	Missing []declaration.ClassName
}

// SupertypeIndex maps every known type to its direct supertypes. It is built once per session and
// is safe for concurrent reads.
type SupertypeIndex struct {
	supers   map[declaration.ClassName][]declaration.ClassName
	maxDepth int
}

// NewSupertypeIndex indexes the resolved nodes of g. builtin adds supertypes of types outside the
// analyzed classes (e.g., library collections); entries from g take precedence. maxDepth caps
// the number of supertype levels a search visits.
func NewSupertypeIndex[D any](g *Graph[D], builtin map[declaration.ClassName][]declaration.ClassName, maxDepth int) *SupertypeIndex {
	supers := make(map[declaration.ClassName][]declaration.ClassName, len(g.nodes)+len(builtin))
	for name, ss := range builtin {
		supers[name] = ss
	}
	for _, n := range g.nodes {
		if !n.resolved {
			continue
		}
		ss := make([]declaration.ClassName, 0, len(n.parents))
		for _, e := range n.parents {
			ss = append(ss, e.parent.name)
		}
		supers[n.name] = ss
	}
	return &SupertypeIndex{supers: supers, maxDepth: maxDepth}
}

// Supertypes returns the direct supertypes of name and whether name is known.
func (s *SupertypeIndex) Supertypes(name declaration.ClassName) ([]declaration.ClassName, bool) {
	ss, ok := s.supers[name]
	return ss, ok
}

// Search visits start and its transitive supertypes breadth-first, nearest first, and stops at the
// first type for which match returns true.
func (s *SupertypeIndex) Search(start declaration.ClassName, match func(declaration.ClassName) bool) SearchResult {
	var res SearchResult
	seen := map[declaration.ClassName]bool{start: true}
	level := []declaration.ClassName{start}
	truncated := false
	for depth := 0; len(level) > 0; depth++ {
		var next []declaration.ClassName
		for _, name := range level {
			if match(name) {
				return SearchResult{Resolution: Found, Match: name, Missing: res.Missing}
			}
			ss, ok := s.supers[name]
			if !ok {
				// java/lang/Object is the root of every hierarchy and has no supertypes to miss.
				if name != "java/lang/Object" {
					res.Missing = append(res.Missing, name)
				}
				continue
			}
			for _, super := range ss {
				if !seen[super] {
					seen[super] = true
					next = append(next, super)
				}
			}
		}
		if depth == s.maxDepth && len(next) > 0 {
			truncated = true
			break
		}
		level = next
	}
	res.Resolution = NotFound
	if truncated || len(res.Missing) > 0 {
		res.Resolution = Unresolved
	}
	return res
}

// OverriddenMethods returns the methods that m overrides: methods with the same name and
// descriptor declared by resolved supertypes of m's owner, nearest first. Static, private and
// constructor methods override nothing.
func OverriddenMethods(g *Graph[*declaration.Class], m *declaration.Method) []*declaration.Method {
	if m.IsStatic() || m.Access.IsPrivate() || m.IsConstructor() || m.Name == "<clinit>" {
		return nil
	}
	n, ok := g.Node(m.Owner)
	if !ok {
		return nil
	}
	var out []*declaration.Method
	for _, a := range g.Ancestors(n) {
		if !a.resolved {
			continue
		}
		for _, am := range a.data.Methods {
			if am.Name == m.Name && am.Desc == m.Desc && !am.IsStatic() && !am.Access.IsPrivate() {
				out = append(out, am)
			}
		}
	}
	return out
}
