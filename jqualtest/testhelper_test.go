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

package jqualtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/declaration"
)

const _src = `
classes:
  - name: test/A
    methods:
      - name: pick
        desc: (Ljava/lang/String;Ljava/util/List;)Ljava/lang/Object;
        access: [static]
        code: |
          ; want: 0:NotNull return:Nullable
          # unrelated comment
          aload 0
          invokevirtual java/lang/String.length()I
          pop
          ; want: 1:Mutable
          aconst_null
          areturn
      - name: nothing
        desc: ()V
        access: [static]
        code: |
          ; want:
          return
      - name: quiet
        desc: ()V
        access: [static]
        code: |
          return
`

func TestFindExpectedValues(t *testing.T) {
	t.Parallel()

	p := Load(t, _src)
	found := FindExpectedValues(p, "want:")

	pick := declaration.MethodID{Owner: "test/A", Name: "pick", Desc: "(Ljava/lang/String;Ljava/util/List;)Ljava/lang/Object;"}
	nothing := declaration.MethodID{Owner: "test/A", Name: "nothing", Desc: "()V"}
	require.Equal(t, []string{"0:NotNull", "return:Nullable", "1:Mutable"}, found[pick])
	require.Contains(t, found, nothing)
	require.Empty(t, found[nothing])
	require.Len(t, found, 2)
}

func TestExpectedAnnotations(t *testing.T) {
	t.Parallel()

	p := Load(t, _src)
	exp, err := ExpectedAnnotations(p, "want:")
	require.NoError(t, err)

	pick := declaration.MethodID{Owner: "test/A", Name: "pick", Desc: "(Ljava/lang/String;Ljava/util/List;)Ljava/lang/Object;"}
	n, ok := exp.Nullability.Get(declaration.ParameterPosition(pick, 0))
	require.True(t, ok)
	require.Equal(t, annotation.NotNull, n)
	n, ok = exp.Nullability.Get(declaration.ReturnPosition(pick))
	require.True(t, ok)
	require.Equal(t, annotation.Nullable, n)
	require.Equal(t, 2, exp.Nullability.Len())

	m, ok := exp.Mutability.Get(declaration.ParameterPosition(pick, 1))
	require.True(t, ok)
	require.Equal(t, annotation.Mutable, m)
	require.Equal(t, 1, exp.Mutability.Len())
}

func TestExpectedAnnotations_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
		err  string
	}{
		{name: "malformed", want: "NotNull", err: "malformed expectation"},
		{name: "not a number", want: "first:NotNull", err: "bad parameter"},
		{name: "out of range", want: "1:NotNull", err: "bad parameter"},
		{name: "unknown annotation", want: "0:Frozen", err: "unknown annotation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Load(t, `
classes:
  - name: test/B
    methods:
      - name: m
        desc: (Ljava/lang/String;)V
        access: [static]
        code: |
          ; want: `+tt.want+`
          return
`)
			_, err := ExpectedAnnotations(p, "want:")
			require.ErrorContains(t, err, tt.err)
		})
	}
}
