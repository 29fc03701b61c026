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

package nullability

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/asm"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/index"
	"go.uber.org/jqual/inference"
	"go.uber.org/jqual/lattice"
)

const (
	nullableClass = "org.jetbrains.annotations.Nullable"
	notNullClass  = "org.jetbrains.annotations.NotNull"
)

func newMethod(t *testing.T, owner declaration.ClassName, access declaration.Access, name, desc string) *declaration.Method {
	t.Helper()
	m, err := declaration.NewMethod(owner, access, name, desc)
	require.NoError(t, err)
	return m
}

func infer(t *testing.T, inf *Inferrer, m *declaration.Method, src string) *annotation.Annotations[annotation.Nullability] {
	t.Helper()
	g, err := asm.MustParse(src).Build(m)
	require.NoError(t, err)
	anns, err := inf.Infer(g)
	require.NoError(t, err)
	return anns
}

type want map[declaration.Position]annotation.Nullability

func requireAnnotations(t *testing.T, expected want, got *annotation.Annotations[annotation.Nullability]) {
	t.Helper()
	w := annotation.New[annotation.Nullability]()
	for p, n := range expected {
		w.Set(p, n)
	}
	if diff := cmp.Diff(w.Sorted(), got.Sorted()); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}
}

func TestLattice(t *testing.T) {
	t.Parallel()

	require.NoError(t, lattice.CheckLaws[Value](Set{}))
	require.Equal(t, Conflict, Set{}.Initial())

	tests := []struct {
		a, b, want Value
	}{
		{Conflict, Null, Null},
		{Null, NotNull, Nullable},
		{NotNull, Unknown, Unknown},
		{Null, Unknown, Nullable},
		{Unknown, Nullable, Nullable},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Merge(tt.a, tt.b), "%s ⊔ %s", tt.a, tt.b)
		require.Equal(t, tt.want, Merge(tt.b, tt.a), "%s ⊔ %s", tt.b, tt.a)
	}

	require.Equal(t, Conflict, assumeNotNull(Null))
	require.Equal(t, NotNull, assumeNotNull(Nullable))
	require.Equal(t, NotNull, assumeNotNull(Unknown))
	require.Equal(t, Conflict, assumeNull(NotNull))
	require.Equal(t, Null, assumeNull(Unknown))

	for v, a := range map[Value]annotation.Nullability{Null: annotation.Nullable, Nullable: annotation.Nullable, NotNull: annotation.NotNull} {
		got, ok := v.Annotation()
		require.True(t, ok)
		require.Equal(t, a, got)
	}
	for _, v := range []Value{Conflict, Unknown} {
		_, ok := v.Annotation()
		require.False(t, ok, v.String())
	}
}

func TestInfer_Returns(t *testing.T) {
	t.Parallel()

	inf := NewInferrer(index.NewMap(), nil, inference.FullInfer)

	t.Run("null or new", func(t *testing.T) {
		t.Parallel()
		m := newMethod(t, "test/A", declaration.AccStatic, "pick", "(Z)Ljava/lang/Object;")
		anns := infer(t, inf, m, `
			iload 0
			ifeq Null
			new java/lang/Object
			dup
			invokespecial java/lang/Object.<init>()V
			areturn
		Null:
			aconst_null
			areturn
		`)
		requireAnnotations(t, want{declaration.ReturnPosition(m.ID()): annotation.Nullable}, anns)
	})

	t.Run("always new", func(t *testing.T) {
		t.Parallel()
		m := newMethod(t, "test/A", declaration.AccStatic, "make", "()[I")
		anns := infer(t, inf, m, `
			iconst_3
			newarray int
			areturn
		`)
		requireAnnotations(t, want{declaration.ReturnPosition(m.ID()): annotation.NotNull}, anns)
	})

	t.Run("unresolved callee", func(t *testing.T) {
		t.Parallel()
		m := newMethod(t, "test/A", declaration.AccStatic, "call", "()Ljava/lang/Object;")
		anns := infer(t, inf, m, `
			invokestatic test/Missing.get()Ljava/lang/Object;
			areturn
		`)
		require.Zero(t, anns.Len())
	})

	t.Run("trusted callee", func(t *testing.T) {
		t.Parallel()
		m := newMethod(t, "test/A", declaration.AccStatic, "name", "(I)Ljava/lang/String;")
		anns := infer(t, inf, m, `
			iload 0
			invokestatic java/lang/String.valueOf(I)Ljava/lang/String;
			areturn
		`)
		requireAnnotations(t, want{declaration.ReturnPosition(m.ID()): annotation.NotNull}, anns)
	})
}

func TestInfer_Parameters(t *testing.T) {
	t.Parallel()

	inf := NewInferrer(index.NewMap(), nil, inference.FullInfer)

	tests := []struct {
		name string
		desc string
		code string
		want annotation.Nullability
		none bool
	}{
		{
			name: "dereferenced",
			desc: "(Ljava/lang/String;)I",
			code: `
				aload 0
				invokevirtual java/lang/String.length()I
				ireturn
			`,
			want: annotation.NotNull,
		},
		{
			name: "field read",
			desc: "(Ltest/Box;)Ljava/lang/Object;",
			code: `
				aload 0
				getfield test/Box.value Ljava/lang/Object;
				areturn
			`,
			want: annotation.NotNull,
		},
		{
			name: "array length",
			desc: "([I)I",
			code: `
				aload 0
				arraylength
				ireturn
			`,
			want: annotation.NotNull,
		},
		{
			name: "null checked",
			desc: "(Ljava/lang/String;)I",
			code: `
				aload 0
				ifnonnull Present
				iconst_0
				ireturn
			Present:
				aload 0
				invokevirtual java/lang/String.length()I
				ireturn
			`,
			want: annotation.Nullable,
		},
		{
			name: "compared with null",
			desc: "(Ljava/lang/Object;)I",
			code: `
				aload 0
				aconst_null
				if_acmpeq Absent
				aload 0
				invokevirtual java/lang/Object.hashCode()I
				ireturn
			Absent:
				iconst_0
				ireturn
			`,
			want: annotation.Nullable,
		},
		{
			name: "asserted by requireNonNull",
			desc: "(Ljava/lang/Object;)V",
			code: `
				aload 0
				invokestatic java/util/Objects.requireNonNull(Ljava/lang/Object;)Ljava/lang/Object;
				pop
				return
			`,
			want: annotation.NotNull,
		},
		{
			name: "null path terminates",
			desc: "(Ljava/lang/Object;)V",
			code: `
				aload 0
				ifnonnull Done
				iconst_1
				invokestatic java/lang/System.exit(I)V
			Done:
				return
			`,
			want: annotation.NotNull,
		},
		{
			name: "dereference may throw",
			desc: "(Ljava/lang/String;)V",
			code: `
				.catch java/lang/RuntimeException from Try to EndTry using Handler
			Try:
				aload 0
				invokevirtual java/lang/String.length()I
				pop
			EndTry:
				return
			Handler:
				pop
				return
			`,
			none: true,
		},
		{
			name: "passed through",
			desc: "(Ljava/lang/Object;)Ljava/lang/Object;",
			code: `
				aload 0
				areturn
			`,
			none: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newMethod(t, "test/A", declaration.AccStatic, "m", tt.desc)
			anns := infer(t, inf, m, tt.code)
			got, ok := anns.Get(declaration.ParameterPosition(m.ID(), 0))
			if tt.none {
				require.False(t, ok, "unexpected %s", got)
				return
			}
			require.True(t, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestInfer_NullCheckedReturn(t *testing.T) {
	t.Parallel()

	// The returned parameter is checked on one path only; both its annotations follow from the
	// exits.
	m := newMethod(t, "test/A", declaration.AccStatic, "orEmpty", "(Ljava/lang/String;)Ljava/lang/String;")
	anns := infer(t, NewInferrer(index.NewMap(), nil, inference.FullInfer), m, `
		aload 0
		ifnull Empty
		aload 0
		areturn
	Empty:
		ldc ""
		areturn
	`)
	requireAnnotations(t, want{
		declaration.ParameterPosition(m.ID(), 0): annotation.Nullable,
		declaration.ReturnPosition(m.ID()):       annotation.NotNull,
	}, anns)
}

func TestInfer_KnownAnnotations(t *testing.T) {
	t.Parallel()

	idx := index.NewMap()
	sink := newMethod(t, "test/Sink", declaration.AccStatic, "take", "(Ljava/lang/Object;Ljava/lang/Object;)V")
	source := newMethod(t, "test/Sink", declaration.AccStatic, "give", "()Ljava/lang/Object;")
	require.NoError(t, idx.AddClass(&declaration.Class{Name: "test/Sink", Methods: []*declaration.Method{sink, source}}))
	idx.Annotate(declaration.ParameterPosition(sink.ID(), 1), annotation.Data{Class: notNullClass})

	// Parameter 0 of take is only known from inference.
	inferred := annotation.New[annotation.Nullability]()
	inferred.Set(declaration.ParameterPosition(sink.ID(), 0), annotation.NotNull)
	inferred.Set(declaration.ReturnPosition(source.ID()), annotation.Nullable)

	caller := newMethod(t, "test/A", declaration.AccStatic, "pass", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;")
	code := `
		aload 0
		aload 1
		invokestatic test/Sink.take(Ljava/lang/Object;Ljava/lang/Object;)V
		invokestatic test/Sink.give()Ljava/lang/Object;
		areturn
	`

	full := infer(t, NewInferrer(idx, inferred, inference.FullInfer), caller, code)
	requireAnnotations(t, want{
		declaration.ParameterPosition(caller.ID(), 0): annotation.NotNull,
		declaration.ParameterPosition(caller.ID(), 1): annotation.NotNull,
		declaration.ReturnPosition(caller.ID()):       annotation.Nullable,
	}, full)

	declaredOnly := infer(t, NewInferrer(idx, inferred, inference.NoInfer), caller, code)
	requireAnnotations(t, want{
		declaration.ParameterPosition(caller.ID(), 1): annotation.NotNull,
	}, declaredOnly)
}

func TestInfer_DeclaredPositionsAreKept(t *testing.T) {
	t.Parallel()

	idx := index.NewMap()
	m := newMethod(t, "test/A", declaration.AccStatic, "m", "(Ljava/lang/String;)Ljava/lang/String;")
	idx.Annotate(declaration.ParameterPosition(m.ID(), 0), annotation.Data{Class: nullableClass})

	// The declared @Nullable seeds the parameter. The dereference refines it, but declared positions
	// are never re-annotated.
	anns := infer(t, NewInferrer(idx, nil, inference.FullInfer), m, `
		aload 0
		invokevirtual java/lang/String.trim()Ljava/lang/String;
		areturn
	`)
	requireAnnotations(t, want{declaration.ReturnPosition(m.ID()): annotation.NotNull}, anns)

	// A propagated annotation is not a declaration.
	idx.Annotate(declaration.ReturnPosition(m.ID()), annotation.Data{
		Class:      annotation.PropagatedClass,
		Attributes: map[string]string{"value": annotation.NullabilityKind},
	})
	idx.Annotate(declaration.ReturnPosition(m.ID()), annotation.Data{Class: nullableClass})
	anns = infer(t, NewInferrer(idx, nil, inference.FullInfer), m, `
		aload 0
		invokevirtual java/lang/String.trim()Ljava/lang/String;
		areturn
	`)
	requireAnnotations(t, want{declaration.ReturnPosition(m.ID()): annotation.NotNull}, anns)
}

func TestFieldMemo(t *testing.T) {
	t.Parallel()

	idx := index.NewMap()
	holder := &declaration.Class{Name: "test/Holder"}
	f, err := declaration.NewField(holder.Name, declaration.AccPrivate|declaration.AccStatic, "cache", "Ljava/lang/Object;", nil)
	require.NoError(t, err)
	holder.Fields = []*declaration.Field{f}
	clearCache := newMethod(t, holder.Name, declaration.AccStatic, "clear", "()V")
	read := newMethod(t, holder.Name, declaration.AccStatic, "read", "()Ljava/lang/Object;")
	holder.Methods = []*declaration.Method{clearCache, read}
	require.NoError(t, idx.AddClass(holder))

	const readCode = `
		getstatic test/Holder.cache Ljava/lang/Object;
		areturn
	`

	// Without a memo nothing is known about the field.
	inf := NewInferrer(idx, nil, inference.FullInfer)
	require.Zero(t, infer(t, inf, read, readCode).Len())

	memo := NewFieldMemo()
	inf.Fields, inf.Record = memo, memo
	infer(t, inf, clearCache, `
		aconst_null
		putstatic test/Holder.cache Ljava/lang/Object;
		return
	`)
	written, ok := memo.Field(f.ID())
	require.True(t, ok)
	require.Equal(t, Null, written)
	require.Equal(t, []declaration.MethodID{clearCache.ID()}, memo.Writers(f.ID()))

	requireAnnotations(t, want{declaration.ReturnPosition(read.ID()): annotation.Nullable}, infer(t, inf, read, readCode))

	requireAnnotations(t, want{declaration.FieldPosition(f.ID()): annotation.Nullable}, inf.FieldAnnotations(holder.Fields))
}

func TestFieldWrites_LiveAtExit(t *testing.T) {
	t.Parallel()

	inf := NewInferrer(index.NewMap(), nil, inference.FullInfer)
	inf.Record = NewFieldMemo()

	// The stored parameter is dereferenced after the store, so the write is non-null.
	m := newMethod(t, "test/Box", 0, "set", "(Ljava/lang/String;)V")
	g, err := asm.MustParse(`
		aload 0
		aload 1
		putfield test/Box.value Ljava/lang/Object;
		aload 1
		invokevirtual java/lang/String.length()I
		pop
		return
	`).Build(m)
	require.NoError(t, err)

	p := inf.NewPass(m)
	_, err = inference.Analyze(g, p)
	require.NoError(t, err)

	id := declaration.FieldID{Owner: "test/Box", Name: "value"}
	require.Equal(t, map[declaration.FieldID]Value{id: NotNull}, p.FieldWrites())
	written, ok := inf.Record.Field(id)
	require.True(t, ok)
	require.Equal(t, NotNull, written)
}

func TestFieldAnnotations(t *testing.T) {
	t.Parallel()

	field := func(name string, access declaration.Access, desc string, value any) *declaration.Field {
		f, err := declaration.NewField("test/A", access, name, desc, value)
		require.NoError(t, err)
		return f
	}
	var (
		constant     = field("NAME", declaration.AccStatic|declaration.AccFinal, "Ljava/lang/String;", "a")
		finalSet     = field("finalSet", declaration.AccFinal, "Ljava/lang/Object;", nil)
		finalMaybe   = field("finalMaybe", declaration.AccFinal, "Ljava/lang/Object;", nil)
		privateNull  = field("privateNull", declaration.AccPrivate, "Ljava/lang/Object;", nil)
		privateSet   = field("privateSet", declaration.AccPrivate, "Ljava/lang/Object;", nil)
		publicNull   = field("publicNull", declaration.AccPublic, "Ljava/lang/Object;", nil)
		primitive    = field("count", declaration.AccPrivate|declaration.AccFinal, "I", nil)
		declaredNull = field("declared", declaration.AccPrivate, "Ljava/lang/Object;", nil)
		unwritten    = field("unwritten", declaration.AccFinal, "Ljava/lang/Object;", nil)
	)

	idx := index.NewMap()
	idx.Annotate(declaration.FieldPosition(declaredNull.ID()), annotation.Data{Class: notNullClass})

	memo := NewFieldMemo()
	ctor := declaration.MethodID{Owner: "test/A", Name: "<init>", Desc: "()V"}
	reset := declaration.MethodID{Owner: "test/A", Name: "reset", Desc: "()V"}
	memo.Record(ctor, map[declaration.FieldID]Value{
		finalSet.ID():     NotNull,
		finalMaybe.ID():   NotNull,
		privateNull.ID():  NotNull,
		privateSet.ID():   NotNull,
		publicNull.ID():   Null,
		primitive.ID():    NotNull,
		declaredNull.ID(): Null,
	})
	memo.Record(reset, map[declaration.FieldID]Value{
		finalMaybe.ID():  Unknown,
		privateNull.ID(): Null,
	})

	inf := NewInferrer(idx, nil, inference.FullInfer)
	inf.Fields = memo
	got := inf.FieldAnnotations([]*declaration.Field{
		constant, finalSet, finalMaybe, privateNull, privateSet, publicNull, primitive, declaredNull, unwritten,
	})
	requireAnnotations(t, want{
		declaration.FieldPosition(constant.ID()):    annotation.NotNull,
		declaration.FieldPosition(finalSet.ID()):    annotation.NotNull,
		declaration.FieldPosition(privateNull.ID()): annotation.Nullable,
	}, got)
}
