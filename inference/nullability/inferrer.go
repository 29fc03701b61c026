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
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/engine"
	"go.uber.org/jqual/hook"
	"go.uber.org/jqual/index"
	"go.uber.org/jqual/inference"
	"go.uber.org/jqual/lattice"
)

// Inferrer holds what the nullability passes of one round share. It is read-only while passes run,
// except for Record, which is safe for concurrent use.
type Inferrer struct {
	Index index.DeclarationIndex
	// Inferred holds the annotations of earlier rounds or a loaded snapshot; nil for none. It must
	// not be modified while passes run.
	Inferred *annotation.Annotations[annotation.Nullability]
	Mode     inference.ModeOfInference
	// Fields is the field-write memo the passes read, frozen for the round; nil for none.
	Fields *inference.FieldMemo[Value]
	// Record receives the field writes of every finished pass; nil to discard them.
	Record *inference.FieldMemo[Value]

	known    inference.Lookup[annotation.Nullability]
	declared inference.Lookup[annotation.Nullability]
}

// NewInferrer returns an inferrer reading declarations and declared annotations from idx.
func NewInferrer(idx index.DeclarationIndex, inferred *annotation.Annotations[annotation.Nullability], mode inference.ModeOfInference) *Inferrer {
	inf := &Inferrer{Index: idx, Inferred: inferred, Mode: mode}
	inf.known = inference.Known(idx, annotation.ResolveNullability, inferred, mode)
	inf.declared = inference.Known(idx, annotation.ResolveNullability, nil, inference.NoInfer)
	return inf
}

// NewFieldMemo returns an empty field-write memo for nullability qualifiers.
func NewFieldMemo() *inference.FieldMemo[Value] {
	return inference.NewFieldMemo(Merge)
}

// NewPass returns the pass analyzing m.
func (inf *Inferrer) NewPass(m *declaration.Method) *Pass {
	return &Pass{
		inf:       inf,
		method:    m,
		positions: declaration.MethodPositions{Method: m},
	}
}

// Infer analyzes g on its own and returns the inferred annotations of its method.
func (inf *Inferrer) Infer(g *cfg.Graph) (*annotation.Annotations[annotation.Nullability], error) {
	p := inf.NewPass(g.Method)
	if _, err := inference.Analyze(g, p); err != nil {
		return nil, err
	}
	return p.Annotations(), nil
}

// knownValue returns the qualifier of values at p according to the known annotations.
func (inf *Inferrer) knownValue(p declaration.Position) (Value, bool) {
	a, ok := inf.known(p)
	if !ok {
		return Unknown, false
	}
	return FromAnnotation(a), true
}

// Pass infers the nullability annotations of one method.
type Pass struct {
	inf       *Inferrer
	method    *declaration.Method
	positions declaration.MethodPositions

	annotations *annotation.Annotations[annotation.Nullability]
	writes      map[declaration.FieldID]Value
}

var _ inference.Pass = (*Pass)(nil)

// Dimension implements engine.Evaluator.
func (p *Pass) Dimension() lattice.AnalysisType { return lattice.Nullability }

// Lattice implements inference.Pass.
func (p *Pass) Lattice() lattice.Dimension { return lattice.Erase[Value](Set{}) }

// Annotations returns the annotations inferred by Finish.
func (p *Pass) Annotations() *annotation.Annotations[annotation.Nullability] {
	if p.annotations == nil {
		return annotation.New[annotation.Nullability]()
	}
	return p.annotations
}

// FieldWrites returns the nullability of the values the method writes to each field, as computed
// by Finish.
func (p *Pass) FieldWrites() map[declaration.FieldID]Value {
	return p.writes
}

// Evaluate implements engine.Evaluator. It seeds every value with what is known about its origin:
// constants, allocations, declared or previously inferred annotations of parameters, callees and
// fields, and the field-write memo.
func (p *Pass) Evaluate(v *cfg.Value, _ *engine.Analyzer) lattice.Qualifier {
	if !v.Type.IsReference() {
		return NotNull
	}
	switch {
	case v.IsReceiver(), v.Caught:
		return NotNull
	case v.IsParameter():
		if a, ok := p.inf.declared(p.positions.Parameter(v.Param)); ok {
			return FromAnnotation(a)
		}
		return Unknown
	}

	insn := v.CreatedAt
	switch {
	case insn.Op == cfg.ACONST_NULL:
		return Null
	case insn.Op == cfg.NEW, insn.Op == cfg.NEWARRAY, insn.Op == cfg.ANEWARRAY, insn.Op == cfg.MULTIANEWARRAY, insn.Op == cfg.LDC:
		return NotNull
	case insn.Op == cfg.INVOKEDYNAMIC:
		// Lambdas and string concatenation.
		return NotNull
	case insn.IsInvoke():
		return p.callResult(insn)
	case insn.Op == cfg.GETFIELD, insn.Op == cfg.GETSTATIC:
		return p.fieldRead(insn)
	default:
		return Unknown
	}
}

func (p *Pass) callResult(insn *cfg.Instruction) Value {
	if hook.AssumeReturnNonNull(insn) {
		return NotNull
	}
	callee, ok := p.inf.Index.MethodByOwnerAndSignature(insn.Owner, insn.Name+insn.Desc)
	if !ok {
		return Unknown
	}
	v, _ := p.inf.knownValue(declaration.ReturnPosition(callee.ID()))
	return v
}

func (p *Pass) fieldRead(insn *cfg.Instruction) Value {
	id := insn.FieldID()
	field, resolved := p.inf.Index.FieldByOwnerAndName(insn.Owner, insn.Name)
	if resolved {
		id = field.ID()
	}
	if v, ok := p.inf.knownValue(declaration.FieldPosition(id)); ok {
		return v
	}
	final := resolved && field.Access.IsFinal()
	if final && field.Value != nil {
		return NotNull
	}
	if p.inf.Fields == nil {
		return Unknown
	}
	written, ok := p.inf.Fields.Field(id)
	if !ok {
		return Unknown
	}
	switch written {
	case Null, Nullable:
		return Nullable
	case NotNull:
		// A non-final field may be read before any write.
		if final {
			return NotNull
		}
	}
	return Unknown
}
