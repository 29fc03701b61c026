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
	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/engine"
	"go.uber.org/jqual/hook"
	"go.uber.org/jqual/inference"
	"go.uber.org/jqual/lattice"
)

// dereferenced maps opcodes to the stack position (from the top, before the instruction) of the
// reference they dereference.
var dereferenced = map[cfg.Opcode]int{
	cfg.GETFIELD:     0,
	cfg.PUTFIELD:     1,
	cfg.ARRAYLENGTH:  0,
	cfg.MONITORENTER: 0,
	cfg.MONITOREXIT:  0,
	cfg.IALOAD:       1,
	cfg.LALOAD:       1,
	cfg.FALOAD:       1,
	cfg.DALOAD:       1,
	cfg.AALOAD:       1,
	cfg.BALOAD:       1,
	cfg.CALOAD:       1,
	cfg.SALOAD:       1,
	cfg.IASTORE:      2,
	cfg.LASTORE:      2,
	cfg.FASTORE:      2,
	cfg.DASTORE:      2,
	cfg.AASTORE:      2,
	cfg.BASTORE:      2,
	cfg.CASTORE:      2,
	cfg.SASTORE:      2,
}

// PostFrame implements engine.FrameTransformer. On the normal and jump edges of an instruction it
// refines the values the instruction proves non-null (dereferences, null checks, arguments of
// callees declaring non-null parameters, trusted assertion methods) or null (null checks).
// Exception edges are left alone: the exception may be the NullPointerException itself.
func (p *Pass) PostFrame(insn *cfg.Instruction, kind cfg.EdgeKind, pre, executed *engine.Frame, _ *engine.Analyzer) *engine.Frame {
	if kind == cfg.Exception {
		return nil
	}
	post := executed
	refine := func(s lattice.QualifiedValueSet, f func(Value) Value) {
		for _, qv := range s.Values() {
			post = post.UpdateQualifiers(qv.Base, func(qs lattice.Qualifiers) lattice.Qualifiers {
				return qs.With(f(of(qs)))
			})
		}
	}

	if n, ok := dereferenced[insn.Op]; ok {
		refine(pre.StackFromTop(n), assumeNotNull)
	}

	switch {
	case insn.Op == cfg.IFNULL, insn.Op == cfg.IFNONNULL:
		// The jump of IFNULL and the fall-through of IFNONNULL see a null value.
		if (insn.Op == cfg.IFNULL) == (kind == cfg.Jump) {
			refine(pre.StackFromTop(0), assumeNull)
		} else {
			refine(pre.StackFromTop(0), assumeNotNull)
		}

	case insn.Op == cfg.IF_ACMPEQ, insn.Op == cfg.IF_ACMPNE:
		// Only comparisons against the null constant tell anything.
		compared, other := pre.StackFromTop(0), pre.StackFromTop(1)
		if !isNullConstant(compared) {
			compared, other = other, compared
		}
		if !isNullConstant(compared) {
			break
		}
		if (insn.Op == cfg.IF_ACMPEQ) == (kind == cfg.Jump) {
			refine(other, assumeNull)
		} else {
			refine(other, assumeNotNull)
		}

	case insn.IsInvoke():
		if hook.IsTerminatingCall(insn) {
			return unreachable(executed)
		}
		if r := inference.ReceiverFromTop(insn); r >= 0 {
			refine(pre.StackFromTop(r), assumeNotNull)
		}
		nargs := inference.ArgumentCount(insn)
		for _, i := range hook.NonNilArguments(insn) {
			refine(pre.StackFromTop(nargs-1-i), assumeNotNull)
		}
		inference.AssertCallArguments(insn, p.inf.Index, p.inf.known,
			func(a annotation.Nullability) bool { return a == annotation.NotNull },
			func(indexFromTop int) { refine(pre.StackFromTop(indexFromTop), assumeNotNull) },
		)
	}

	if post == executed {
		return nil
	}
	return post
}

// isNullConstant returns true if every value of s is the null constant.
func isNullConstant(s lattice.QualifiedValueSet) bool {
	if s.IsEmpty() {
		return false
	}
	for _, qv := range s.Values() {
		if qv.Base.CreatedAt == nil || qv.Base.CreatedAt.Op != cfg.ACONST_NULL {
			return false
		}
	}
	return true
}

// unreachable returns f with every value marked Conflict, so that the frame adds nothing to the
// frames it is merged with.
func unreachable(f *engine.Frame) *engine.Frame {
	conflict := func(qv lattice.QualifiedValue) lattice.QualifiedValue {
		qv.Qualifiers = qv.Qualifiers.With(Conflict)
		return qv
	}
	out := &engine.Frame{
		Locals: make([]lattice.QualifiedValueSet, len(f.Locals)),
		Stack:  make([]lattice.QualifiedValueSet, len(f.Stack)),
	}
	for i, s := range f.Locals {
		out.Locals[i] = s.Map(conflict)
	}
	for i, s := range f.Stack {
		out.Stack[i] = s.Map(conflict)
	}
	return out
}
