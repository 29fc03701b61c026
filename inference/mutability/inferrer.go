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

package mutability

import (
	"slices"

	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/engine"
	"go.uber.org/jqual/index"
	"go.uber.org/jqual/inference"
	"go.uber.org/jqual/lattice"
	"golang.org/x/tools/container/intsets"
)

// Inferrer holds what the mutability passes of one round share. It is read-only while passes run.
type Inferrer struct {
	Index   index.DeclarationIndex
	Catalog *Catalog

	known    inference.Lookup[annotation.Mutability]
	declared inference.Lookup[annotation.Mutability]
}

// NewInferrer returns an inferrer reading declarations and declared annotations from idx and
// library knowledge from catalog. inferred holds the annotations of earlier rounds, or nil.
func NewInferrer(
	idx index.DeclarationIndex,
	catalog *Catalog,
	inferred *annotation.Annotations[annotation.Mutability],
	mode inference.ModeOfInference,
) *Inferrer {
	return &Inferrer{
		Index:    idx,
		Catalog:  catalog,
		known:    inference.Known(idx, annotation.ResolveMutability, inferred, mode),
		declared: inference.Known(idx, annotation.ResolveMutability, nil, inference.NoInfer),
	}
}

// NewPass returns the pass analyzing m.
func (inf *Inferrer) NewPass(m *declaration.Method) *Pass {
	return &Pass{inf: inf, method: m}
}

// Infer analyzes g on its own and returns the inferred annotations of its method.
func (inf *Inferrer) Infer(g *cfg.Graph) (*annotation.Annotations[annotation.Mutability], error) {
	p := inf.NewPass(g.Method)
	if _, err := inference.Analyze(g, p); err != nil {
		return nil, err
	}
	return p.Annotations(), nil
}

// Pass infers the mutability annotations of one method.
type Pass struct {
	inf    *Inferrer
	method *declaration.Method

	annotations *annotation.Annotations[annotation.Mutability]
}

var _ inference.Pass = (*Pass)(nil)

// Dimension implements engine.Evaluator.
func (p *Pass) Dimension() lattice.AnalysisType { return lattice.Mutability }

// Lattice implements inference.Pass.
func (p *Pass) Lattice() lattice.Dimension { return lattice.Erase[Value](Set{}) }

// Evaluate implements engine.Evaluator: every value starts read-only.
func (p *Pass) Evaluate(*cfg.Value, *engine.Analyzer) lattice.Qualifier { return ReadOnly }

// Annotations returns the annotations inferred by Finish.
func (p *Pass) Annotations() *annotation.Annotations[annotation.Mutability] {
	if p.annotations == nil {
		return annotation.New[annotation.Mutability]()
	}
	return p.annotations
}

// PostFrame implements engine.FrameTransformer. An interface call to a mutating method marks the
// receiver mutable; a call passing an argument to a parameter known to be mutable marks the
// argument. Either mark is carried back to the receivers of the propagating calls the value was
// produced by.
func (p *Pass) PostFrame(insn *cfg.Instruction, _ cfg.EdgeKind, pre, executed *engine.Frame, a *engine.Analyzer) *engine.Frame {
	if !insn.IsInvoke() {
		return nil
	}
	post := executed
	if insn.Op == cfg.INVOKEINTERFACE && p.inf.Catalog.IsMutating(insn.Owner, insn.Name) {
		post = p.imposeMutable(post, pre.StackFromTop(inference.ReceiverFromTop(insn)), a)
	}
	inference.AssertCallArguments(insn, p.inf.Index, p.inf.known,
		func(m annotation.Mutability) bool { return m == annotation.Mutable },
		func(indexFromTop int) { post = p.imposeMutable(post, pre.StackFromTop(indexFromTop), a) },
	)
	if post == executed {
		return nil
	}
	return post
}

// imposeMutable marks the values of s mutable in f, and walks their provenance: a value produced
// by a propagating call passes the mark on to the receiver of that call, as found in the merged
// frame before the call.
func (p *Pass) imposeMutable(f *engine.Frame, s lattice.QualifiedValueSet, a *engine.Analyzer) *engine.Frame {
	var (
		visited  intsets.Sparse
		worklist []*cfg.Value
	)
	for _, qv := range s.Values() {
		worklist = append(worklist, qv.Base)
	}
	for len(worklist) > 0 {
		v := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if !visited.Insert(v.ID) {
			continue
		}
		f = f.UpdateQualifiers(v, setMutable)

		origin := v.CreatedAt
		if origin == nil || v.Caught || !origin.IsInvoke() || !p.inf.Catalog.IsPropagating(origin.Owner, origin.Name) {
			continue
		}
		r := inference.ReceiverFromTop(origin)
		originFrame := a.InstructionFrame(origin)
		if r < 0 || originFrame == nil {
			continue
		}
		for _, qv := range originFrame.StackFromTop(r).Values() {
			worklist = append(worklist, qv.Base)
		}
	}
	return f
}

// Finish implements inference.Pass: every parameter that is mutable at some return instruction is
// annotated mutable.
func (p *Pass) Finish(res *engine.Result) error {
	mutable := make(map[int]bool)
	for _, insn := range res.Returns {
		res.Frame(insn).Values(func(qv lattice.QualifiedValue) {
			if qv.Base.Interesting && qv.Base.IsParameter() && of(qv.Qualifiers) == Mutable {
				mutable[qv.Base.Param] = true
			}
		})
	}

	params := make([]int, 0, len(mutable))
	for i := range mutable {
		params = append(params, i)
	}
	slices.Sort(params)

	p.annotations = annotation.New[annotation.Mutability]()
	positions := declaration.MethodPositions{Method: p.method}
	for _, i := range params {
		pos := positions.Parameter(i)
		if _, declared := p.inf.declared(pos); declared {
			continue
		}
		p.annotations.Set(pos, annotation.Mutable)
	}
	return nil
}
