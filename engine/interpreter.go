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
	"fmt"

	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/lattice"
)

// arrayTypes maps newarray type codes to array types.
var arrayTypes = map[int]string{
	4: "[Z", 5: "[C", 6: "[F", 7: "[D", 8: "[B", 9: "[S", 10: "[I", 11: "[J",
}

// numericTypes is the result type of the typed arithmetic families, in I, L, F, D order.
var numericTypes = [4]declaration.Type{
	declaration.IntType, declaration.LongType, declaration.FloatType, declaration.DoubleType,
}

// execute applies the standard stack effect of insn to pre. Values produced by insn are created
// once per analysis and reused on every later visit.
func (a *Analyzer) execute(insn *cfg.Instruction, pre *Frame) (*Frame, error) {
	f := pre.Copy()
	op := insn.Op

	// produce pushes the value insn creates, of type t.
	produce := func(t declaration.Type) {
		f.push(lattice.Singleton(a.value(valueKey{site: insn.Index, kind: resultValue}, func() *cfg.Value {
			return &cfg.Value{
				Type:        t,
				CreatedAt:   insn,
				Param:       -1,
				Interesting: (op == cfg.GETFIELD || op == cfg.GETSTATIC) && t.IsReference(),
			}
		})))
	}
	popProduce := func(n int, t declaration.Type) error {
		if err := f.popN(n); err != nil {
			return err
		}
		produce(t)
		return nil
	}

	switch {
	case op == cfg.NOP, op == cfg.GOTO, op == cfg.RETURN:
	case op == cfg.ACONST_NULL:
		produce(declaration.ObjectType)
	case op >= cfg.ICONST_M1 && op <= cfg.ICONST_5, op == cfg.BIPUSH, op == cfg.SIPUSH:
		produce(declaration.IntType)
	case op == cfg.LCONST_0 || op == cfg.LCONST_1:
		produce(declaration.LongType)
	case op >= cfg.FCONST_0 && op <= cfg.FCONST_2:
		produce(declaration.FloatType)
	case op == cfg.DCONST_0 || op == cfg.DCONST_1:
		produce(declaration.DoubleType)
	case op == cfg.LDC:
		produce(constantType(insn.Const))

	case op >= cfg.ILOAD && op <= cfg.ALOAD:
		if insn.Var >= len(f.Locals) || f.Locals[insn.Var].IsEmpty() {
			return nil, fmt.Errorf("%w %d", ErrUninitializedLocal, insn.Var)
		}
		f.push(f.Locals[insn.Var])
	case op >= cfg.ISTORE && op <= cfg.ASTORE:
		s, err := f.pop()
		if err != nil {
			return nil, err
		}
		size := 1
		if op == cfg.LSTORE || op == cfg.DSTORE {
			size = 2
		}
		if insn.Var+size > len(f.Locals) {
			return nil, fmt.Errorf("%w: store to local %d beyond %d locals", ErrStackMismatch, insn.Var, len(f.Locals))
		}
		// Overwriting the second half of a category-2 value invalidates it.
		if insn.Var > 0 && category(f.Locals[insn.Var-1]) == 2 {
			f.Locals[insn.Var-1] = lattice.QualifiedValueSet{}
		}
		f.Locals[insn.Var] = s
		if size == 2 {
			f.Locals[insn.Var+1] = lattice.QualifiedValueSet{}
		}
	case op == cfg.IINC:
		if insn.Var >= len(f.Locals) {
			return nil, fmt.Errorf("%w %d", ErrUninitializedLocal, insn.Var)
		}
		f.Locals[insn.Var] = lattice.Singleton(a.value(valueKey{site: insn.Index, kind: resultValue}, func() *cfg.Value {
			return &cfg.Value{Type: declaration.IntType, CreatedAt: insn, Param: -1}
		}))

	case op >= cfg.IALOAD && op <= cfg.SALOAD:
		if err := f.popN(1); err != nil {
			return nil, err
		}
		arr, err := f.pop()
		if err != nil {
			return nil, err
		}
		t := declaration.IntType
		switch op {
		case cfg.LALOAD:
			t = declaration.LongType
		case cfg.FALOAD:
			t = declaration.FloatType
		case cfg.DALOAD:
			t = declaration.DoubleType
		case cfg.AALOAD:
			t = declaration.ObjectType
			if vs := arr.Values(); len(vs) > 0 {
				t = vs[0].Base.Type.Elem()
			}
		}
		produce(t)
	case op >= cfg.IASTORE && op <= cfg.SASTORE:
		if err := f.popN(3); err != nil {
			return nil, err
		}

	case op == cfg.POP:
		if err := f.popN(1); err != nil {
			return nil, err
		}
	case op == cfg.POP2:
		n, err := entriesForWords(f, 0, 2)
		if err != nil {
			return nil, err
		}
		if err := f.popN(n); err != nil {
			return nil, err
		}
	case op == cfg.DUP:
		return f, dupX(f, 1, 0)
	case op == cfg.DUP_X1:
		return f, dupX(f, 1, 1)
	case op == cfg.DUP_X2:
		return f, dupX(f, 1, 2)
	case op == cfg.DUP2:
		return f, dupX(f, 2, 0)
	case op == cfg.DUP2_X1:
		return f, dupX(f, 2, 1)
	case op == cfg.DUP2_X2:
		return f, dupX(f, 2, 2)
	case op == cfg.SWAP:
		if f.StackSize() < 2 {
			return nil, fmt.Errorf("%w: swap on stack of %d", ErrStackMismatch, f.StackSize())
		}
		top, below := f.StackFromTop(0), f.StackFromTop(1)
		f.SetStackFromTop(0, below)
		f.SetStackFromTop(1, top)

	case op >= cfg.IADD && op <= cfg.DREM:
		if err := popProduce(2, numericTypes[(op-cfg.IADD)%4]); err != nil {
			return nil, err
		}
	case op >= cfg.INEG && op <= cfg.DNEG:
		if err := popProduce(1, numericTypes[op-cfg.INEG]); err != nil {
			return nil, err
		}
	case op >= cfg.ISHL && op <= cfg.LXOR:
		if err := popProduce(2, numericTypes[(op-cfg.ISHL)%2]); err != nil {
			return nil, err
		}
	case op >= cfg.I2L && op <= cfg.I2S:
		if err := popProduce(1, conversionType(op)); err != nil {
			return nil, err
		}
	case op >= cfg.LCMP && op <= cfg.DCMPG:
		if err := popProduce(2, declaration.IntType); err != nil {
			return nil, err
		}

	case op >= cfg.IFEQ && op <= cfg.IFLE, op == cfg.IFNULL, op == cfg.IFNONNULL, insn.IsSwitch():
		if err := f.popN(1); err != nil {
			return nil, err
		}
	case op >= cfg.IF_ICMPEQ && op <= cfg.IF_ACMPNE:
		if err := f.popN(2); err != nil {
			return nil, err
		}
	case op >= cfg.IRETURN && op <= cfg.ARETURN, op == cfg.ATHROW, op == cfg.MONITORENTER, op == cfg.MONITOREXIT, op == cfg.PUTSTATIC:
		if err := f.popN(1); err != nil {
			return nil, err
		}

	case op == cfg.GETSTATIC:
		produce(fieldType(insn))
	case op == cfg.GETFIELD:
		if err := popProduce(1, fieldType(insn)); err != nil {
			return nil, err
		}
	case op == cfg.PUTFIELD:
		if err := f.popN(2); err != nil {
			return nil, err
		}

	case insn.IsInvoke():
		params, ret, err := declaration.ParseMethodDescriptor(insn.Desc)
		if err != nil {
			return nil, err
		}
		n := len(params)
		if insn.HasReceiver() {
			n++
		}
		if err := f.popN(n); err != nil {
			return nil, err
		}
		if ret.Sort != declaration.Void {
			produce(ret)
		}

	case op == cfg.NEW:
		produce(declaration.ObjectTypeOf(insn.Owner))
	case op == cfg.NEWARRAY:
		desc, ok := arrayTypes[insn.Int]
		if !ok {
			return nil, fmt.Errorf("%w: newarray type code %d", cfg.ErrMalformed, insn.Int)
		}
		if err := popProduce(1, declaration.Type{Sort: declaration.Array, Desc: desc}); err != nil {
			return nil, err
		}
	case op == cfg.ANEWARRAY:
		elem := declaration.ObjectTypeOf(insn.Owner)
		if err := popProduce(1, declaration.Type{Sort: declaration.Array, Desc: "[" + elem.Desc}); err != nil {
			return nil, err
		}
	case op == cfg.MULTIANEWARRAY:
		if err := popProduce(insn.Int, declaration.ObjectTypeOf(insn.Owner)); err != nil {
			return nil, err
		}
	case op == cfg.ARRAYLENGTH, op == cfg.INSTANCEOF:
		if err := popProduce(1, declaration.IntType); err != nil {
			return nil, err
		}
	case op == cfg.CHECKCAST:
		// The cast value keeps its identity so that its provenance stays traceable.
		if f.StackSize() == 0 {
			return nil, fmt.Errorf("%w: checkcast on empty stack", ErrStackMismatch)
		}

	default:
		return nil, fmt.Errorf("%w: unsupported opcode %s", cfg.ErrMalformed, op)
	}
	return f, nil
}

// category returns the computational type category of the values in a slot, 0 for empty slots.
func category(s lattice.QualifiedValueSet) int {
	vs := s.Values()
	if len(vs) == 0 {
		return 0
	}
	if vs[0].Base.Type.Size() == 2 {
		return 2
	}
	return 1
}

// entriesForWords returns how many stack entries, starting skip entries below the top, make up
// exactly words stack words.
func entriesForWords(f *Frame, skip, words int) (int, error) {
	n := 0
	for words > 0 {
		s := f.StackFromTop(skip + n)
		c := category(s)
		if c == 0 {
			return 0, fmt.Errorf("%w: stack too shallow", ErrStackMismatch)
		}
		if c > words {
			return 0, fmt.Errorf("%w: category-2 value split by a word-wise stack operation", ErrStackMismatch)
		}
		words -= c
		n++
	}
	return n, nil
}

// dupX duplicates the top w1 words and inserts the copy below the following w2 words, which covers
// the dup, dup_x*, dup2 and dup2_x* families.
func dupX(f *Frame, w1, w2 int) error {
	k1, err := entriesForWords(f, 0, w1)
	if err != nil {
		return err
	}
	k2, err := entriesForWords(f, k1, w2)
	if err != nil {
		return err
	}
	n := len(f.Stack)
	top := append([]lattice.QualifiedValueSet(nil), f.Stack[n-k1:]...)
	below := append([]lattice.QualifiedValueSet(nil), f.Stack[n-k1-k2:n-k1]...)
	f.Stack = append(f.Stack[:n-k1-k2], top...)
	f.Stack = append(f.Stack, below...)
	f.Stack = append(f.Stack, top...)
	return nil
}

func constantType(c any) declaration.Type {
	switch c.(type) {
	case int32, int:
		return declaration.IntType
	case int64:
		return declaration.LongType
	case float32:
		return declaration.FloatType
	case float64:
		return declaration.DoubleType
	case string:
		return declaration.StringType
	case declaration.Type:
		return declaration.ClassType
	default:
		return declaration.ObjectType
	}
}

func conversionType(op cfg.Opcode) declaration.Type {
	switch op {
	case cfg.I2L, cfg.F2L, cfg.D2L:
		return declaration.LongType
	case cfg.I2F, cfg.L2F, cfg.D2F:
		return declaration.FloatType
	case cfg.I2D, cfg.L2D, cfg.F2D:
		return declaration.DoubleType
	default:
		return declaration.IntType
	}
}

func fieldType(insn *cfg.Instruction) declaration.Type {
	t, err := declaration.ParseType(insn.Desc)
	if err != nil {
		return declaration.ObjectType
	}
	return t
}
