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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/jqual/declaration"
)

func class(t *testing.T, name, super string, ifaces []string, methods ...*declaration.Method) *declaration.Class {
	t.Helper()
	c := &declaration.Class{Name: declaration.ClassName(name), Super: declaration.ClassName(super), Methods: methods}
	for _, i := range ifaces {
		c.Interfaces = append(c.Interfaces, declaration.ClassName(i))
	}
	for _, m := range methods {
		m.Owner = c.Name
	}
	return c
}

func method(t *testing.T, access declaration.Access, name, desc string) *declaration.Method {
	t.Helper()
	m, err := declaration.NewMethod("", access, name, desc)
	require.NoError(t, err)
	return m
}

func names[D any](nodes []*Node[D]) []declaration.ClassName {
	out := make([]declaration.ClassName, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}

func TestBuild(t *testing.T) {
	t.Parallel()

	a := class(t, "test/A", "java/lang/Object", []string{"test/I"})
	b := class(t, "test/B", "test/A", nil)
	i := class(t, "test/I", "", nil)
	dup := class(t, "test/B", "test/Other", nil)
	g := BuildClasses([]*declaration.Class{a, b, i, dup})

	require.Equal(t,
		[]declaration.ClassName{"test/A", "test/B", "test/I", "java/lang/Object"},
		names(g.Nodes()))

	nb, ok := g.Node("test/B")
	require.True(t, ok)
	require.Same(t, b, nb.Data())
	require.True(t, nb.Resolved())
	require.Len(t, nb.Parents(), 1)
	require.Equal(t, declaration.ClassName("test/A"), nb.Parents()[0].Parent().Name())

	na, _ := g.Node("test/A")
	require.Len(t, na.Children(), 1)
	// Both nodes share the edge.
	require.Same(t, na.Children()[0], nb.Parents()[0])
	require.Same(t, nb, na.Children()[0].Child())

	obj, ok := g.Node("java/lang/Object")
	require.True(t, ok)
	require.False(t, obj.Resolved())
	require.Nil(t, obj.Data())

	_, ok = g.Node("test/Other")
	require.False(t, ok)
}

func TestAncestorsAndDescendants(t *testing.T) {
	t.Parallel()

	g := BuildClasses([]*declaration.Class{
		class(t, "test/C", "test/B", []string{"test/J"}),
		class(t, "test/B", "test/A", []string{"test/I"}),
		class(t, "test/A", "java/lang/Object", []string{"test/I"}),
		class(t, "test/J", "", []string{"test/I"}),
	})

	c, _ := g.Node("test/C")
	require.Equal(t,
		[]declaration.ClassName{"test/B", "test/J", "test/A", "test/I", "java/lang/Object"},
		names(g.Ancestors(c)))

	i, _ := g.Node("test/I")
	require.Equal(t,
		[]declaration.ClassName{"test/B", "test/A", "test/J", "test/C"},
		names(g.Descendants(i)))
}

func TestSupertypeIndexSearch(t *testing.T) {
	t.Parallel()

	g := BuildClasses([]*declaration.Class{
		class(t, "test/MyList", "java/util/ArrayList", []string{"test/Marker"}),
		class(t, "test/Marker", "", nil),
		class(t, "test/Broken", "lib/Missing", nil),
	})
	builtin := map[declaration.ClassName][]declaration.ClassName{
		"java/util/ArrayList":    {"java/util/AbstractList", "java/util/List"},
		"java/util/AbstractList": {"java/lang/Object"},
		"java/util/List":         {"java/util/Collection"},
		"java/util/Collection":   {"java/lang/Iterable"},
		"java/lang/Iterable":     nil,
	}
	idx := NewSupertypeIndex(g, builtin, 16)

	ss, ok := idx.Supertypes("test/MyList")
	require.True(t, ok)
	require.Equal(t, []declaration.ClassName{"java/util/ArrayList", "test/Marker"}, ss)

	is := func(name declaration.ClassName) func(declaration.ClassName) bool {
		return func(n declaration.ClassName) bool { return n == name }
	}

	res := idx.Search("test/MyList", is("java/util/Collection"))
	require.Equal(t, Found, res.Resolution)
	require.Equal(t, declaration.ClassName("java/util/Collection"), res.Match)

	res = idx.Search("test/MyList", is("java/util/Map"))
	require.Equal(t, NotFound, res.Resolution)
	require.Empty(t, res.Missing)

	res = idx.Search("test/Broken", is("java/util/Map"))
	require.Equal(t, Unresolved, res.Resolution)
	require.Equal(t, []declaration.ClassName{"lib/Missing"}, res.Missing)

	shallow := NewSupertypeIndex(g, builtin, 1)
	res = shallow.Search("test/MyList", is("java/util/Collection"))
	require.Equal(t, Unresolved, res.Resolution)
	require.Equal(t, "unresolved", res.Resolution.String())
}

func TestOverriddenMethods(t *testing.T) {
	t.Parallel()

	base := method(t, declaration.AccPublic, "get", "(I)Ljava/lang/Object;")
	hidden := method(t, declaration.AccPrivate, "put", "(Ljava/lang/Object;)V")
	iface := method(t, declaration.AccPublic|declaration.AccAbstract, "get", "(I)Ljava/lang/Object;")
	sub := method(t, declaration.AccPublic, "get", "(I)Ljava/lang/Object;")
	subPut := method(t, declaration.AccPublic, "put", "(Ljava/lang/Object;)V")
	ctor := method(t, declaration.AccPublic, "<init>", "()V")
	static := method(t, declaration.AccStatic, "get", "(I)Ljava/lang/Object;")

	g := BuildClasses([]*declaration.Class{
		class(t, "test/Sub", "test/Base", nil, sub, subPut, ctor),
		class(t, "test/Base", "java/lang/Object", []string{"test/Getter"}, base, hidden, method(t, declaration.AccPublic, "<init>", "()V")),
		class(t, "test/Getter", "", nil, iface),
		class(t, "test/Static", "test/Base", nil, static),
	})

	require.Equal(t, []*declaration.Method{base, iface}, OverriddenMethods(g, sub))
	require.Empty(t, OverriddenMethods(g, subPut))
	require.Empty(t, OverriddenMethods(g, ctor))
	require.Empty(t, OverriddenMethods(g, static))

	orphan := method(t, declaration.AccPublic, "get", "(I)Ljava/lang/Object;")
	orphan.Owner = "test/Unknown"
	require.Empty(t, OverriddenMethods(g, orphan))
}
