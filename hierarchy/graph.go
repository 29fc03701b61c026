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

// Package hierarchy builds the subtype graph of the analyzed classes. Nodes own their parent and
// child edges, each edge is shared by the two nodes it links, and nothing changes after Build.
package hierarchy

import (
	"go.uber.org/jqual/declaration"
	"golang.org/x/tools/container/intsets"
)

// Edge links a supertype (parent) to a direct subtype (child).
type Edge[D any] struct {
	parent, child *Node[D]
}

// Parent returns the supertype end of the edge.
func (e *Edge[D]) Parent() *Node[D] { return e.parent }

// Child returns the subtype end of the edge.
func (e *Edge[D]) Child() *Node[D] { return e.child }

// Node is a class in the graph.
type Node[D any] struct {
	id       int
	name     declaration.ClassName
	data     D
	resolved bool
	children []*Edge[D]
	parents  []*Edge[D]
}

// Name returns the class name of the node.
func (n *Node[D]) Name() declaration.ClassName { return n.name }

// Data returns the payload of the node, the zero value for unresolved nodes.
func (n *Node[D]) Data() D { return n.data }

// Resolved returns false for nodes that were only referenced as a supertype, never declared.
func (n *Node[D]) Resolved() bool { return n.resolved }

// Children returns the edges to direct subtypes.
func (n *Node[D]) Children() []*Edge[D] { return n.children }

// Parents returns the edges to direct supertypes, in declaration order.
func (n *Node[D]) Parents() []*Edge[D] { return n.parents }

func (n *Node[D]) String() string { return string(n.name) }

// Graph is a hierarchy of classes with payload D.
type Graph[D any] struct {
	nodes  []*Node[D]
	byName map[declaration.ClassName]*Node[D]
}

// Build creates the graph of items, where name and supertypes describe each item. Supertypes that
// are not among items become unresolved nodes. Duplicate names keep the first item.
func Build[D any](items []D, name func(D) declaration.ClassName, supertypes func(D) []declaration.ClassName) *Graph[D] {
	g := &Graph[D]{byName: make(map[declaration.ClassName]*Node[D], len(items))}
	for _, item := range items {
		n := g.node(name(item))
		if n.resolved {
			continue
		}
		n.data, n.resolved = item, true
	}
	linked := make(map[declaration.ClassName]bool, len(items))
	for _, item := range items {
		child := g.byName[name(item)]
		if linked[child.name] {
			continue
		}
		linked[child.name] = true
		for _, super := range supertypes(item) {
			parent := g.node(super)
			e := &Edge[D]{parent: parent, child: child}
			parent.children = append(parent.children, e)
			child.parents = append(child.parents, e)
		}
	}
	return g
}

func (g *Graph[D]) node(name declaration.ClassName) *Node[D] {
	if n, ok := g.byName[name]; ok {
		return n
	}
	n := &Node[D]{id: len(g.nodes), name: name}
	g.nodes = append(g.nodes, n)
	g.byName[name] = n
	return n
}

// BuildClasses creates the hierarchy of class declarations.
func BuildClasses(classes []*declaration.Class) *Graph[*declaration.Class] {
	return Build(classes,
		func(c *declaration.Class) declaration.ClassName { return c.Name },
		(*declaration.Class).Supertypes,
	)
}

// Nodes returns every node, declared classes first in input order, then unresolved supertypes in
// the order they were first referenced.
func (g *Graph[D]) Nodes() []*Node[D] {
	return g.nodes
}

// Node returns the node of the named class.
func (g *Graph[D]) Node(name declaration.ClassName) (*Node[D], bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Ancestors returns the transitive supertypes of n in breadth-first order, nearest first.
func (g *Graph[D]) Ancestors(n *Node[D]) []*Node[D] {
	return g.bfs(n, func(x *Node[D]) []*Edge[D] { return x.parents }, (*Edge[D]).Parent)
}

// Descendants returns the transitive subtypes of n in breadth-first order, nearest first.
func (g *Graph[D]) Descendants(n *Node[D]) []*Node[D] {
	return g.bfs(n, func(x *Node[D]) []*Edge[D] { return x.children }, (*Edge[D]).Child)
}

func (g *Graph[D]) bfs(start *Node[D], edges func(*Node[D]) []*Edge[D], next func(*Edge[D]) *Node[D]) []*Node[D] {
	var (
		visited intsets.Sparse
		out     []*Node[D]
	)
	visited.Insert(start.id)
	queue := []*Node[D]{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range edges(n) {
			m := next(e)
			if visited.Insert(m.id) {
				out = append(out, m)
				queue = append(queue, m)
			}
		}
	}
	return out
}
