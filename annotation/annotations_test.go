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

package annotation

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/jqual/declaration"
	"gopkg.in/yaml.v3"
)

var (
	method = declaration.MethodID{Owner: "com/acme/A", Name: "get", Desc: "(Ljava/lang/Object;)Ljava/lang/Object;"}
	param0 = declaration.ParameterPosition(method, 0)
	ret    = declaration.ReturnPosition(method)
	field  = declaration.FieldPosition(declaration.FieldID{Owner: "com/acme/A", Name: "f"})
)

func TestAnnotations_SetDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	a := New[Nullability]()
	require.True(t, a.Set(ret, NotNull))
	require.True(t, a.Set(ret, NotNull))
	require.False(t, a.Set(ret, Nullable))
	v, ok := a.Get(ret)
	require.True(t, ok)
	require.Equal(t, NotNull, v)

	a.Replace(ret, Nullable)
	v, _ = a.Get(ret)
	require.Equal(t, Nullable, v)

	a.Delete(ret)
	_, ok = a.Get(ret)
	require.False(t, ok)
	require.Zero(t, a.Len())
}

func TestAnnotations_MergeAndSorted(t *testing.T) {
	t.Parallel()

	a := New[Nullability]()
	a.Set(ret, NotNull)
	b := New[Nullability]()
	b.Set(field, Nullable)
	b.Set(ret, Nullable)
	b.Set(param0, NotNull)

	conflicts := a.Merge(b)
	require.Equal(t, []declaration.Position{ret}, conflicts)
	require.Equal(t, 3, a.Len())

	want := []Entry[Nullability]{
		{Position: field, Value: Nullable},
		{Position: param0, Value: NotNull},
		{Position: ret, Value: NotNull},
	}
	if diff := cmp.Diff(want, a.Sorted()); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}

	c := a.Clone()
	require.True(t, c.Equal(a))
	c.Replace(field, NotNull)
	require.False(t, c.Equal(a))
	require.False(t, New[Nullability]().Equal(a))
}

func TestAnnotations_Gob(t *testing.T) {
	t.Parallel()

	a := New[Mutability]()
	a.Set(param0, Mutable)
	a.Set(param0.Sub(1), Mutable)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(a))

	decoded := New[Mutability]()
	require.NoError(t, gob.NewDecoder(&buf).Decode(decoded))
	require.True(t, decoded.Equal(a))
	require.Equal(t, a.Sorted(), decoded.Sorted())

	empty := New[Mutability]()
	b, err := empty.GobEncode()
	require.NoError(t, err)
	require.NoError(t, decoded.GobDecode(b))
	require.Zero(t, decoded.Len())
}

func TestResolveNullability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		anns  []Data
		want  Nullability
		found bool
	}{
		{name: "none"},
		{name: "unrelated", anns: []Data{{Class: "java.lang.Deprecated"}}},
		{name: "not null", anns: []Data{{Class: "javax.annotation.Nonnull"}}, want: NotNull, found: true},
		{name: "nullable", anns: []Data{{Class: "org.jetbrains.annotations.Nullable"}}, want: Nullable, found: true},
		{
			name:  "conflict",
			anns:  []Data{{Class: "org.jetbrains.annotations.NotNull"}, {Class: "javax.annotation.CheckForNull"}},
			want:  Nullable,
			found: true,
		},
		{
			name: "propagated",
			anns: []Data{
				{Class: "org.jetbrains.annotations.NotNull"},
				{Class: PropagatedClass, Attributes: map[string]string{"value": "MUTABILITY, NULLABILITY"}},
			},
		},
		{
			name: "propagated other kind",
			anns: []Data{
				{Class: "org.jetbrains.annotations.NotNull"},
				{Class: PropagatedClass, Attributes: map[string]string{"value": "MUTABILITY"}},
			},
			want:  NotNull,
			found: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, found := ResolveNullability(tt.anns)
			require.Equal(t, tt.found, found)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveMutability(t *testing.T) {
	t.Parallel()

	m, ok := ResolveMutability([]Data{{Class: "jqual.annotations.Mutable"}})
	require.True(t, ok)
	require.Equal(t, Mutable, m)

	m, ok = ResolveMutability([]Data{{Class: "org.jetbrains.annotations.Unmodifiable"}, {Class: "jqual.annotations.Mutable"}})
	require.True(t, ok)
	require.Equal(t, Mutable, m)

	_, ok = ResolveMutability([]Data{
		{Class: "jqual.annotations.Mutable"},
		{Class: PropagatedClass, Attributes: map[string]string{"value": MutabilityKind}},
	})
	require.False(t, ok)
}

func TestYAML(t *testing.T) {
	t.Parallel()

	out, err := yaml.Marshal(map[string]any{"nullness": Nullable, "mutability": Mutable})
	require.NoError(t, err)
	require.Equal(t, "mutability: Mutable\nnullness: Nullable\n", string(out))

	var in struct {
		N Nullability `yaml:"nullness"`
		M Mutability  `yaml:"mutability"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("nullness: NotNull\nmutability: ReadOnly\n"), &in))
	require.Equal(t, NotNull, in.N)
	require.Equal(t, ReadOnly, in.M)
	require.Error(t, yaml.Unmarshal([]byte("nullness: Maybe\n"), &in))
	require.Error(t, yaml.Unmarshal([]byte("mutability: Frozen\n"), &in))
}
