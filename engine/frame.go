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
	"strings"

	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/lattice"
)

// Frame is the abstract state at one program point: a value set per local variable slot and per
// operand stack entry. Category-2 values (long, double) take one stack entry but two local slots,
// the second of which stays empty. Frames handed out by the Analyzer must be treated as read-only;
// use Copy before modifying.
type Frame struct {
	Locals []lattice.QualifiedValueSet
	Stack  []lattice.QualifiedValueSet
}

// NewFrame returns a frame with maxLocals empty locals and an empty stack.
func NewFrame(maxLocals int) *Frame {
	return &Frame{Locals: make([]lattice.QualifiedValueSet, maxLocals)}
}

// Copy returns a frame with its own slot slices. Value sets are immutable and are shared.
func (f *Frame) Copy() *Frame {
	return &Frame{
		Locals: append([]lattice.QualifiedValueSet(nil), f.Locals...),
		Stack:  append(make([]lattice.QualifiedValueSet, 0, len(f.Stack)+2), f.Stack...),
	}
}

// StackSize returns the number of stack entries.
func (f *Frame) StackSize() int {
	return len(f.Stack)
}

// StackFromTop returns the stack entry n positions below the top (0 is the top), or an empty set
// if the stack is not that deep.
func (f *Frame) StackFromTop(n int) lattice.QualifiedValueSet {
	i := len(f.Stack) - 1 - n
	if i < 0 || n < 0 {
		return lattice.QualifiedValueSet{}
	}
	return f.Stack[i]
}

// SetStackFromTop replaces the stack entry n positions below the top.
func (f *Frame) SetStackFromTop(n int, s lattice.QualifiedValueSet) {
	f.Stack[len(f.Stack)-1-n] = s
}

func (f *Frame) push(s lattice.QualifiedValueSet) {
	f.Stack = append(f.Stack, s)
}

func (f *Frame) pop() (lattice.QualifiedValueSet, error) {
	if len(f.Stack) == 0 {
		return lattice.QualifiedValueSet{}, fmt.Errorf("%w: pop from empty stack", ErrStackMismatch)
	}
	s := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return s, nil
}

func (f *Frame) popN(n int) error {
	if len(f.Stack) < n {
		return fmt.Errorf("%w: pop %d from stack of %d", ErrStackMismatch, n, len(f.Stack))
	}
	f.Stack = f.Stack[:len(f.Stack)-n]
	return nil
}

// UpdateQualifiers returns a copy of f in which every slot holding base v has its qualifiers
// replaced by fn's result. f itself is returned if no slot changes.
func (f *Frame) UpdateQualifiers(v *cfg.Value, fn func(lattice.Qualifiers) lattice.Qualifiers) *Frame {
	var out *Frame
	update := func(slots []lattice.QualifiedValueSet, get func(*Frame) []lattice.QualifiedValueSet) {
		for i, s := range slots {
			updated := s.Update(v, fn)
			if updated.Equal(s) {
				continue
			}
			if out == nil {
				out = f.Copy()
			}
			get(out)[i] = updated
		}
	}
	update(f.Locals, func(fr *Frame) []lattice.QualifiedValueSet { return fr.Locals })
	update(f.Stack, func(fr *Frame) []lattice.QualifiedValueSet { return fr.Stack })
	if out == nil {
		return f
	}
	return out
}

// Values calls fn for every qualified value in every slot of f, locals first.
func (f *Frame) Values(fn func(lattice.QualifiedValue)) {
	for _, slots := range [][]lattice.QualifiedValueSet{f.Locals, f.Stack} {
		for _, s := range slots {
			for _, qv := range s.Values() {
				fn(qv)
			}
		}
	}
}

// Lookup returns the qualifiers of base v in f, merged over every slot holding it.
func (f *Frame) Lookup(p *lattice.Product, v *cfg.Value) (lattice.Qualifiers, bool) {
	var (
		qs    lattice.Qualifiers
		found bool
	)
	f.Values(func(qv lattice.QualifiedValue) {
		if qv.Base != v {
			return
		}
		if !found {
			qs, found = qv.Qualifiers, true
			return
		}
		qs = p.Merge(qs, qv.Qualifiers)
	})
	return qs, found
}

// Equal returns true if both frames hold equal sets in every slot.
func (f *Frame) Equal(o *Frame) bool {
	if len(f.Locals) != len(o.Locals) || len(f.Stack) != len(o.Stack) {
		return false
	}
	for i := range f.Locals {
		if !f.Locals[i].Equal(o.Locals[i]) {
			return false
		}
	}
	for i := range f.Stack {
		if !f.Stack[i].Equal(o.Stack[i]) {
			return false
		}
	}
	return true
}

// merge joins the frames slot-wise and reports whether the result differs from f.
func (f *Frame) merge(p *lattice.Product, o *Frame) (*Frame, bool, error) {
	if len(f.Stack) != len(o.Stack) {
		return nil, false, fmt.Errorf("%w: stack heights %d and %d at join", ErrStackMismatch, len(f.Stack), len(o.Stack))
	}
	if len(f.Locals) != len(o.Locals) {
		return nil, false, fmt.Errorf("%w: %d and %d locals at join", ErrStackMismatch, len(f.Locals), len(o.Locals))
	}
	out := &Frame{
		Locals: make([]lattice.QualifiedValueSet, len(f.Locals)),
		Stack:  make([]lattice.QualifiedValueSet, len(f.Stack)),
	}
	changed := false
	for i := range f.Locals {
		out.Locals[i] = p.MergeSets(f.Locals[i], o.Locals[i])
		changed = changed || !out.Locals[i].Equal(f.Locals[i])
	}
	for i := range f.Stack {
		out.Stack[i] = p.MergeSets(f.Stack[i], o.Stack[i])
		changed = changed || !out.Stack[i].Equal(f.Stack[i])
	}
	return out, changed, nil
}

func (f *Frame) String() string {
	var b strings.Builder
	b.WriteString("locals:")
	for i, s := range f.Locals {
		if !s.IsEmpty() {
			fmt.Fprintf(&b, " %d=%s", i, s)
		}
	}
	b.WriteString(" stack:")
	for _, s := range f.Stack {
		fmt.Fprintf(&b, " %s", s)
	}
	return b.String()
}
