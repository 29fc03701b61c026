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

// Package engine implements the frame analyzer: a worklist fixpoint over the control-flow graph of
// one method that computes, for every instruction, the join of the abstract frames flowing into
// it. Analyses plug in through FrameTransformer (to refine post-frames) and Evaluator (to give
// freshly created values their initial qualifiers).
package engine

import (
	"errors"
	"fmt"

	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/config"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/lattice"
	"golang.org/x/tools/container/intsets"
)

var (
	// ErrNoFixpoint is returned when the analysis exceeds its visit budget, which only happens if a
	// transformer or lattice is not monotone.
	ErrNoFixpoint = errors.New("frame analysis did not reach a fixpoint")
	// ErrStackMismatch is returned for stack underflows, category mismatches and joins of frames
	// with different stack heights.
	ErrStackMismatch = errors.New("inconsistent operand stack")
	// ErrUninitializedLocal is returned when a load reads a local slot no path has written.
	ErrUninitializedLocal = errors.New("load from uninitialized local")
)

// FrameTransformer lets an analysis customize the post-frame of an instruction along one outgoing
// edge.
type FrameTransformer interface {
	// PostFrame returns the frame flowing along an edge of the given kind out of insn. pre is the
	// merged frame before insn and executed is the frame computed by the default stack effect
	// (for exception edges: the locals of pre and the caught exception). Returning nil keeps
	// executed. Implementations must not modify pre or executed.
	PostFrame(insn *cfg.Instruction, kind cfg.EdgeKind, pre, executed *Frame, a *Analyzer) *Frame
}

// Evaluator gives values created during the analysis their initial qualifier in one dimension.
// Each value is evaluated once; the result is memoized for the rest of the run.
type Evaluator interface {
	Dimension() lattice.AnalysisType
	Evaluate(v *cfg.Value, a *Analyzer) lattice.Qualifier
}

// Result is the outcome of a completed analysis.
type Result struct {
	Graph *cfg.Graph
	// Frames holds the merged frame before every instruction, nil for unreachable instructions.
	Frames []*Frame
	// Returns lists the reachable return instructions in instruction order.
	Returns []*cfg.Instruction
	// Visits counts instruction evaluations until the fixpoint.
	Visits int
}

// Frame returns the merged frame before insn, nil if insn is unreachable.
func (r *Result) Frame(insn *cfg.Instruction) *Frame {
	return r.Frames[insn.Index]
}

type valueKind uint8

const (
	entryValue valueKind = iota
	resultValue
	caughtValue
)

// valueKey identifies the creation site of a value: a local slot on entry, an instruction result,
// or the exception caught by a handler.
type valueKey struct {
	site int
	kind valueKind
}

// Analyzer runs the frame analysis of one method. It is not safe for concurrent use; every method
// analysis owns its Analyzer.
type Analyzer struct {
	graph       *cfg.Graph
	product     *lattice.Product
	transformer FrameTransformer
	evaluators  []Evaluator

	frames []*Frame
	values map[valueKey]lattice.QualifiedValue
	nextID int
}

// New creates an analyzer for graph g. transformer may be nil.
func New(g *cfg.Graph, p *lattice.Product, transformer FrameTransformer, evaluators ...Evaluator) *Analyzer {
	return &Analyzer{
		graph:       g,
		product:     p,
		transformer: transformer,
		evaluators:  evaluators,
		frames:      make([]*Frame, len(g.Instructions)),
		values:      make(map[valueKey]lattice.QualifiedValue),
	}
}

// Graph returns the graph under analysis.
func (a *Analyzer) Graph() *cfg.Graph {
	return a.graph
}

// Product returns the product lattice of the analysis.
func (a *Analyzer) Product() *lattice.Product {
	return a.product
}

// InstructionFrame returns the current merged frame before insn, nil if insn has not been reached
// yet. During the analysis the frame may still grow.
func (a *Analyzer) InstructionFrame(insn *cfg.Instruction) *Frame {
	return a.frames[insn.Index]
}

// Run iterates to the fixpoint and returns the merged frames.
func (a *Analyzer) Run() (*Result, error) {
	a.frames[0] = a.entryFrame()

	var worklist intsets.Sparse
	worklist.Insert(0)
	budget := config.MaxVisitsPerInstruction * len(a.graph.Instructions)
	visits := 0

	var i int
	for worklist.TakeMin(&i) {
		visits++
		if visits > budget {
			return nil, fmt.Errorf("%w: %s after %d visits", ErrNoFixpoint, a.graph.Method, visits-1)
		}
		insn := a.graph.Instructions[i]
		pre := a.frames[i]

		executed, err := a.execute(insn, pre)
		if err != nil {
			return nil, fmt.Errorf("%s in %s: %w", insn, a.graph.Method, err)
		}

		for _, e := range a.graph.Successors(i) {
			post := executed
			if e.Kind == cfg.Exception {
				post = a.handlerFrame(e, pre)
			}
			if a.transformer != nil {
				if t := a.transformer.PostFrame(insn, e.Kind, pre, post, a); t != nil {
					post = t
				}
			}
			changed, err := a.mergeInto(e.To, post)
			if err != nil {
				return nil, fmt.Errorf("edge %d->%d in %s: %w", e.From, e.To, a.graph.Method, err)
			}
			if changed {
				worklist.Insert(e.To)
			}
		}
	}

	res := &Result{Graph: a.graph, Frames: a.frames, Visits: visits}
	for _, insn := range a.graph.Returns() {
		if a.frames[insn.Index] != nil {
			res.Returns = append(res.Returns, insn)
		}
	}
	return res, nil
}

func (a *Analyzer) mergeInto(i int, post *Frame) (bool, error) {
	old := a.frames[i]
	if old == nil {
		a.frames[i] = post.Copy()
		return true, nil
	}
	merged, changed, err := old.merge(a.product, post)
	if err != nil {
		return false, err
	}
	if changed {
		a.frames[i] = merged
	}
	return changed, nil
}

// entryFrame holds the receiver and the declared parameters in their local slots.
func (a *Analyzer) entryFrame() *Frame {
	m := a.graph.Method
	f := NewFrame(a.graph.MaxLocals)
	if !m.IsStatic() {
		f.Locals[0] = lattice.Singleton(a.value(valueKey{site: 0, kind: entryValue}, func() *cfg.Value {
			return &cfg.Value{Type: declaration.ObjectTypeOf(m.Owner), Param: -1}
		}))
	}
	for i, t := range m.Params() {
		slot := m.LocalSlot(i)
		f.Locals[slot] = lattice.Singleton(a.value(valueKey{site: slot, kind: entryValue}, func() *cfg.Value {
			return &cfg.Value{Type: t, Param: i, Interesting: t.IsReference()}
		}))
	}
	return f
}

// handlerFrame is the frame entering an exception handler from an instruction with frame pre.
func (a *Analyzer) handlerFrame(e cfg.Edge, pre *Frame) *Frame {
	handler := a.graph.Instructions[e.To]
	catchType := declaration.ThrowableType
	if e.CatchType != "" {
		catchType = declaration.ObjectTypeOf(e.CatchType)
	}
	exc := a.value(valueKey{site: e.To, kind: caughtValue}, func() *cfg.Value {
		return &cfg.Value{Type: catchType, CreatedAt: handler, Param: -1, Caught: true}
	})
	return &Frame{
		Locals: pre.Locals,
		Stack:  []lattice.QualifiedValueSet{lattice.Singleton(exc)},
	}
}

// value returns the memoized value created at key, creating and evaluating it on first use.
func (a *Analyzer) value(key valueKey, create func() *cfg.Value) lattice.QualifiedValue {
	if qv, ok := a.values[key]; ok {
		return qv
	}
	v := create()
	v.ID = a.nextID
	a.nextID++

	qs := a.product.Initial()
	for _, ev := range a.evaluators {
		if !a.product.Has(ev.Dimension()) {
			continue
		}
		if q := ev.Evaluate(v, a); q != nil {
			qs = qs.With(q)
		}
	}
	qv := lattice.QualifiedValue{Base: v, Qualifiers: qs}
	a.values[key] = qv
	return qv
}

// Analyze runs the frame analysis of g to its fixpoint.
func Analyze(g *cfg.Graph, p *lattice.Product, transformer FrameTransformer, evaluators ...Evaluator) (*Result, error) {
	return New(g, p, transformer, evaluators...).Run()
}
