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

// Package cfg models the control-flow graph of a JVM method: instructions, the abstract values
// flowing through stack and local slots, and the typed edges between instructions.
package cfg

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/jqual/declaration"
)

// ErrMalformed is returned by Build for instruction streams that violate decoder invariants.
var ErrMalformed = errors.New("malformed control-flow graph")

// EdgeKind classifies control-flow edges.
type EdgeKind uint8

// Edge kinds.
const (
	// Normal is fall-through to the next instruction.
	Normal EdgeKind = iota
	// Jump is a taken branch, goto or switch case.
	Jump
	// Exception leads from an instruction inside a try block to its handler.
	Exception
)

func (k EdgeKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Jump:
		return "jump"
	case Exception:
		return "exception"
	default:
		return fmt.Sprintf("EdgeKind(%d)", k)
	}
}

// Edge is a directed control-flow edge between two instructions, identified by index.
type Edge struct {
	From, To int
	Kind     EdgeKind
	// CatchType is the caught class of an exception edge, "" for catch-all handlers.
	CatchType declaration.ClassName
}

// TryCatch is an exception table entry: instructions in [Start, End) are covered by the handler
// starting at Handler.
type TryCatch struct {
	Start, End int
	Handler    int
	// Type is the caught class, "" for finally blocks.
	Type declaration.ClassName
}

// Graph is the control-flow graph of one method. It is read-only after Build.
type Graph struct {
	Method       *declaration.Method
	Instructions []*Instruction
	TryCatches   []TryCatch
	// MaxLocals is the number of local variable slots.
	MaxLocals int

	succs [][]Edge
	preds [][]Edge
}

// Build validates the instruction stream of method m and links it into a graph. Instruction
// indices are assigned from the slice order. maxLocals may be 0, in which case it is derived from
// the method signature and the local variable operands.
func Build(m *declaration.Method, insns []*Instruction, tryCatches []TryCatch, maxLocals int) (*Graph, error) {
	if len(insns) == 0 {
		return nil, fmt.Errorf("%w: %s has no instructions", ErrMalformed, m)
	}
	g := &Graph{
		Method:       m,
		Instructions: insns,
		TryCatches:   tryCatches,
		MaxLocals:    max(maxLocals, m.ArgumentSlots()),
		succs:        make([][]Edge, len(insns)),
		preds:        make([][]Edge, len(insns)),
	}

	n := len(insns)
	validTarget := func(insn *Instruction, t int) error {
		if t < 0 || t >= n {
			return fmt.Errorf("%w: %s: target %d out of range in %s", ErrMalformed, insn, t, m)
		}
		return nil
	}

	for i, insn := range insns {
		insn.Index = i
		if insn.Op == JSR || insn.Op == RET {
			return nil, fmt.Errorf("%w: subroutine instruction %s in %s is not supported", ErrMalformed, insn, m)
		}
		if end := insn.Var + localSize(insn.Op); end > g.MaxLocals {
			g.MaxLocals = end
		}
	}

	for i, insn := range insns {
		if insn.FallsThrough() {
			if i+1 == n {
				return nil, fmt.Errorf("%w: %s falls off the end of %s", ErrMalformed, insn, m)
			}
			g.addEdge(Edge{From: i, To: i + 1, Kind: Normal})
		}
		switch {
		case insn.Op == GOTO || insn.IsConditionalJump():
			if len(insn.Targets) != 1 {
				return nil, fmt.Errorf("%w: %s needs exactly one target", ErrMalformed, insn)
			}
		case insn.IsSwitch():
			if len(insn.Targets) != len(insn.Keys)+1 {
				return nil, fmt.Errorf("%w: %s has %d targets for %d keys", ErrMalformed, insn, len(insn.Targets), len(insn.Keys))
			}
		case len(insn.Targets) != 0:
			return nil, fmt.Errorf("%w: %s cannot have branch targets", ErrMalformed, insn)
		}
		for _, t := range insn.Targets {
			if err := validTarget(insn, t); err != nil {
				return nil, err
			}
			g.addEdge(Edge{From: i, To: t, Kind: Jump})
		}
	}

	for _, tc := range tryCatches {
		if tc.Start < 0 || tc.End > n || tc.Start >= tc.End {
			return nil, fmt.Errorf("%w: try block [%d, %d) in %s", ErrMalformed, tc.Start, tc.End, m)
		}
		if err := validTarget(insns[tc.Start], tc.Handler); err != nil {
			return nil, err
		}
		for i := tc.Start; i < tc.End; i++ {
			g.addEdge(Edge{From: i, To: tc.Handler, Kind: Exception, CatchType: tc.Type})
		}
	}
	return g, nil
}

// addEdge records e unless an edge of the same kind already links the two instructions (e.g., a
// switch with several keys sharing a target).
func (g *Graph) addEdge(e Edge) {
	if slices.ContainsFunc(g.succs[e.From], func(o Edge) bool {
		return o.To == e.To && o.Kind == e.Kind && o.CatchType == e.CatchType
	}) {
		return
	}
	g.succs[e.From] = append(g.succs[e.From], e)
	g.preds[e.To] = append(g.preds[e.To], e)
}

// localSize returns the number of local slots written or read by a local variable instruction.
func localSize(op Opcode) int {
	switch op {
	case LLOAD, DLOAD, LSTORE, DSTORE:
		return 2
	case ILOAD, FLOAD, ALOAD, ISTORE, FSTORE, ASTORE, IINC:
		return 1
	default:
		return 0
	}
}

// Successors returns the outgoing edges of instruction i.
func (g *Graph) Successors(i int) []Edge {
	return g.succs[i]
}

// Predecessors returns the incoming edges of instruction i.
func (g *Graph) Predecessors(i int) []Edge {
	return g.preds[i]
}

// Returns returns the return instructions of the method in instruction order.
func (g *Graph) Returns() []*Instruction {
	var rets []*Instruction
	for _, insn := range g.Instructions {
		if insn.IsReturn() {
			rets = append(rets, insn)
		}
	}
	return rets
}

// Handlers returns the try/catch entries covering instruction i.
func (g *Graph) Handlers(i int) []TryCatch {
	var hs []TryCatch
	for _, tc := range g.TryCatches {
		if i >= tc.Start && i < tc.End {
			hs = append(hs, tc)
		}
	}
	return hs
}
