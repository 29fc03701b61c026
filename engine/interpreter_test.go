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

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/lattice"
)

func TestExecute_StackShuffles(t *testing.T) {
	t.Parallel()

	g := graph(t, declaration.AccStatic, "()V", "return")
	a := New(g, markProduct(t), nil)

	slot := func(id int, typ declaration.Type) lattice.QualifiedValueSet {
		return lattice.Singleton(lattice.QualifiedValue{Base: &cfg.Value{ID: id, Type: typ, Param: -1}})
	}
	i1, i2, i3, i4 := slot(1, declaration.IntType), slot(2, declaration.IntType), slot(3, declaration.IntType), slot(4, declaration.IntType)
	l := slot(5, declaration.LongType)

	tests := []struct {
		name  string
		op    cfg.Opcode
		stack []lattice.QualifiedValueSet
		want  []lattice.QualifiedValueSet
	}{
		{name: "dup", op: cfg.DUP, stack: slots(i1), want: slots(i1, i1)},
		{name: "dup_x1", op: cfg.DUP_X1, stack: slots(i1, i2), want: slots(i2, i1, i2)},
		{name: "dup_x2 form 1", op: cfg.DUP_X2, stack: slots(i1, i2, i3), want: slots(i3, i1, i2, i3)},
		{name: "dup_x2 form 2", op: cfg.DUP_X2, stack: slots(l, i1), want: slots(i1, l, i1)},
		{name: "dup2 form 1", op: cfg.DUP2, stack: slots(i1, i2), want: slots(i1, i2, i1, i2)},
		{name: "dup2 form 2", op: cfg.DUP2, stack: slots(l), want: slots(l, l)},
		{name: "dup2_x1 form 1", op: cfg.DUP2_X1, stack: slots(i1, i2, i3), want: slots(i2, i3, i1, i2, i3)},
		{name: "dup2_x1 form 2", op: cfg.DUP2_X1, stack: slots(i1, l), want: slots(l, i1, l)},
		{name: "dup2_x2 form 1", op: cfg.DUP2_X2, stack: slots(i1, i2, i3, i4), want: slots(i3, i4, i1, i2, i3, i4)},
		{name: "dup2_x2 form 2", op: cfg.DUP2_X2, stack: slots(i1, i2, l), want: slots(l, i1, i2, l)},
		{name: "dup2_x2 form 3", op: cfg.DUP2_X2, stack: slots(l, i1, i2), want: slots(i1, i2, l, i1, i2)},
		{name: "dup2_x2 form 4", op: cfg.DUP2_X2, stack: slots(l, l), want: slots(l, l, l)},
		{name: "swap", op: cfg.SWAP, stack: slots(i1, i2), want: slots(i2, i1)},
		{name: "pop2 long", op: cfg.POP2, stack: slots(i1, l), want: slots(i1)},
		{name: "pop2 ints", op: cfg.POP2, stack: slots(i1, i2, i3), want: slots(i1)},
	}
	for _, tt := range tests {
		got, err := a.execute(&cfg.Instruction{Op: tt.op}, &Frame{Stack: tt.stack})
		require.NoError(t, err, tt.name)
		require.Equal(t, len(tt.want), got.StackSize(), tt.name)
		for i := range tt.want {
			require.True(t, tt.want[i].Equal(got.Stack[i]), "%s: slot %d", tt.name, i)
		}
	}

	for _, op := range []cfg.Opcode{cfg.DUP2, cfg.POP2} {
		_, err := a.execute(&cfg.Instruction{Op: op}, &Frame{Stack: slots(l, i1)[1:]})
		require.ErrorIs(t, err, ErrStackMismatch, op.String())
	}
	_, err := a.execute(&cfg.Instruction{Op: cfg.DUP2_X1}, &Frame{Stack: slots(l, i1, i2)})
	require.ErrorIs(t, err, ErrStackMismatch)
}

func slots(sets ...lattice.QualifiedValueSet) []lattice.QualifiedValueSet {
	return sets
}

func TestExecute_Locals(t *testing.T) {
	t.Parallel()

	g := graph(t, declaration.AccStatic, "()V", "return")
	a := New(g, markProduct(t), nil)
	long := lattice.Singleton(lattice.QualifiedValue{Base: &cfg.Value{ID: 1, Type: declaration.LongType, Param: -1}})
	obj := lattice.Singleton(lattice.QualifiedValue{Base: &cfg.Value{ID: 2, Type: declaration.ObjectType, Param: -1}})

	f := &Frame{Locals: make([]lattice.QualifiedValueSet, 4), Stack: slots(long)}
	f, err := a.execute(&cfg.Instruction{Op: cfg.LSTORE, Var: 1}, f)
	require.NoError(t, err)
	require.True(t, f.Locals[1].Equal(long))
	require.True(t, f.Locals[2].IsEmpty())

	f.Stack = slots(obj)
	f, err = a.execute(&cfg.Instruction{Op: cfg.ASTORE, Var: 2}, f)
	require.NoError(t, err)
	require.True(t, f.Locals[1].IsEmpty(), "overwriting the upper half invalidates the long")
	require.True(t, f.Locals[2].Equal(obj))

	_, err = a.execute(&cfg.Instruction{Op: cfg.LLOAD, Var: 1}, f)
	require.ErrorIs(t, err, ErrUninitializedLocal)

	f.Stack = slots(long)
	_, err = a.execute(&cfg.Instruction{Op: cfg.LSTORE, Var: 3}, f)
	require.ErrorIs(t, err, ErrStackMismatch)
}

func TestExecute_ProducedValues(t *testing.T) {
	t.Parallel()

	g := graph(t, declaration.AccStatic, "([Ljava/lang/String;)Ljava/lang/Object;", `
		aload 0
		iconst_0
		aaload
		astore 0
		getstatic test/A.F Ljava/util/List;
		checkcast java/util/ArrayList
		invokevirtual java/util/ArrayList.size()I
		i2l
		l2d
		d2f
		f2i
		anewarray java/lang/String
		arraylength
		newarray long
		iconst_0
		ldc 3L
		lastore
		aload 0
		areturn
	`)
	res, err := Analyze(g, markProduct(t), nil)
	require.NoError(t, err)

	typeAt := func(i int) declaration.Type {
		return res.Frames[i].StackFromTop(0).Values()[0].Base.Type
	}
	require.Equal(t, declaration.StringType, typeAt(3))
	require.Equal(t, "Ljava/util/List;", typeAt(5).Desc)
	field := res.Frames[5].StackFromTop(0).Values()[0].Base
	require.True(t, field.Interesting)
	require.Same(t, field, res.Frames[6].StackFromTop(0).Values()[0].Base, "checkcast keeps the value")
	require.Equal(t, declaration.IntType, typeAt(7))
	require.Equal(t, declaration.LongType, typeAt(8))
	require.Equal(t, declaration.DoubleType, typeAt(9))
	require.Equal(t, declaration.FloatType, typeAt(10))
	require.Equal(t, declaration.IntType, typeAt(11))
	require.Equal(t, "[Ljava/lang/String;", typeAt(12).Desc)
	require.Equal(t, "[J", typeAt(14).Desc)
	require.Equal(t, declaration.LongType, typeAt(16))
	require.Equal(t, 0, res.Frames[17].StackSize())
}
