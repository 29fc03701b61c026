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

package cfg

import (
	"fmt"
	"strings"

	"go.uber.org/jqual/declaration"
)

// Instruction is a decoded bytecode instruction. Operands not used by the opcode are zero.
// Instructions are owned by their Graph and keep their identity for the lifetime of an analysis.
type Instruction struct {
	// Index is the position of the instruction in its method.
	Index int
	Op    Opcode
	// Var is the local variable operand of loads, stores, iinc and ret.
	Var int
	// Int is the immediate operand of bipush, sipush, iinc (increment), newarray (array type
	// code) and multianewarray (dimensions).
	Int int
	// Const is the ldc operand: int32, int64, float32, float64, string or declaration.Type for
	// class literals.
	Const any
	// Owner is the owner of a field or method reference, or the type operand of new, anewarray,
	// checkcast, instanceof and multianewarray.
	Owner declaration.ClassName
	// Name and Desc describe the referenced field or method. Desc alone holds the descriptor of
	// an invokedynamic call site.
	Name string
	Desc string
	// Targets holds branch targets as instruction indices. For switches the default target comes
	// first, followed by one target per key.
	Targets []int
	// Keys holds the case keys of lookupswitch and tableswitch.
	Keys []int32
	// Line is the source line number, 0 if unknown.
	Line int
}

// IsReturn returns true for the return family of opcodes.
func (insn *Instruction) IsReturn() bool {
	return insn.Op >= IRETURN && insn.Op <= RETURN
}

// IsInvoke returns true for method invocations, including invokedynamic.
func (insn *Instruction) IsInvoke() bool {
	return insn.Op >= INVOKEVIRTUAL && insn.Op <= INVOKEDYNAMIC
}

// IsFieldAccess returns true for getfield, putfield, getstatic and putstatic.
func (insn *Instruction) IsFieldAccess() bool {
	return insn.Op >= GETSTATIC && insn.Op <= PUTFIELD
}

// IsConditionalJump returns true for two-way branches.
func (insn *Instruction) IsConditionalJump() bool {
	return (insn.Op >= IFEQ && insn.Op <= IF_ACMPNE) || insn.Op == IFNULL || insn.Op == IFNONNULL
}

// IsSwitch returns true for tableswitch and lookupswitch.
func (insn *Instruction) IsSwitch() bool {
	return insn.Op == TABLESWITCH || insn.Op == LOOKUPSWITCH
}

// FallsThrough returns true if execution can continue with the next instruction.
func (insn *Instruction) FallsThrough() bool {
	switch {
	case insn.IsReturn(), insn.IsSwitch():
		return false
	case insn.Op == GOTO, insn.Op == ATHROW, insn.Op == RET, insn.Op == JSR:
		return false
	}
	return true
}

// HasReceiver returns true for invocations that pass a receiver object.
func (insn *Instruction) HasReceiver() bool {
	return insn.Op == INVOKEVIRTUAL || insn.Op == INVOKESPECIAL || insn.Op == INVOKEINTERFACE
}

// MethodID returns the referenced method of an invocation.
func (insn *Instruction) MethodID() declaration.MethodID {
	return declaration.MethodID{Owner: insn.Owner, Name: insn.Name, Desc: insn.Desc}
}

// FieldID returns the referenced field of a field access.
func (insn *Instruction) FieldID() declaration.FieldID {
	return declaration.FieldID{Owner: insn.Owner, Name: insn.Name}
}

func (insn *Instruction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s", insn.Index, insn.Op)
	switch {
	case insn.IsInvoke() || insn.IsFieldAccess():
		if insn.Owner != "" {
			fmt.Fprintf(&b, " %s.%s", insn.Owner, insn.Name)
		} else {
			fmt.Fprintf(&b, " %s", insn.Name)
		}
		if insn.IsFieldAccess() {
			b.WriteByte(' ')
		}
		b.WriteString(insn.Desc)
	case insn.Op == NEW || insn.Op == ANEWARRAY || insn.Op == CHECKCAST || insn.Op == INSTANCEOF:
		fmt.Fprintf(&b, " %s", insn.Owner)
	case insn.Op == MULTIANEWARRAY:
		fmt.Fprintf(&b, " %s %d", insn.Owner, insn.Int)
	case insn.Op == LDC:
		fmt.Fprintf(&b, " %v", insn.Const)
	case insn.Op == IINC:
		fmt.Fprintf(&b, " %d %d", insn.Var, insn.Int)
	case insn.Op == BIPUSH || insn.Op == SIPUSH || insn.Op == NEWARRAY:
		fmt.Fprintf(&b, " %d", insn.Int)
	case (insn.Op >= ILOAD && insn.Op <= ALOAD) || (insn.Op >= ISTORE && insn.Op <= ASTORE) || insn.Op == RET:
		fmt.Fprintf(&b, " %d", insn.Var)
	}
	for _, t := range insn.Targets {
		fmt.Fprintf(&b, " ->%d", t)
	}
	return b.String()
}
