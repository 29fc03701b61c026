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
	"slices"

	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/engine"
	"go.uber.org/jqual/lattice"
)

// valueMap maps values to their nullability at one program point.
type valueMap map[*cfg.Value]Value

// frameValues returns the nullability of every value in f, joined over the slots holding it.
func frameValues(f *engine.Frame) valueMap {
	m := make(valueMap)
	f.Values(func(qv lattice.QualifiedValue) {
		if old, ok := m[qv.Base]; ok {
			m[qv.Base] = Merge(old, of(qv.Qualifiers))
			return
		}
		m[qv.Base] = of(qv.Qualifiers)
	})
	return m
}

// mergeExits joins the value maps observed at every exit. A value absent from an exit does not
// contribute there.
func mergeExits(exits []valueMap) valueMap {
	merged := make(valueMap)
	for _, exit := range exits {
		for v, n := range exit {
			if old, ok := merged[v]; ok {
				n = Merge(old, n)
			}
			merged[v] = n
		}
	}
	return merged
}

// Finish implements inference.Pass. The frame analysis is the forward phase; Finish is the second
// phase that visits the return instructions of the fixpoint. It joins the returned values of all
// ARETURN instructions into the return annotation, joins the state at every exit into the
// annotations of the parameters, and collects the field writes.
func (p *Pass) Finish(res *engine.Result) error {
	var (
		returned    Value
		hasReturned bool
		exits       []valueMap
	)
	for _, insn := range res.Returns {
		frame := res.Frame(insn)
		if insn.Op == cfg.ARETURN {
			site := Conflict
			for _, qv := range frame.StackFromTop(0).Values() {
				site = Merge(site, of(qv.Qualifiers))
			}
			if hasReturned {
				returned = Merge(returned, site)
			} else {
				returned, hasReturned = site, true
			}
		}
		exits = append(exits, frameValues(frame))
	}
	onReturn := mergeExits(exits)

	p.annotations = annotation.New[annotation.Nullability]()
	set := func(pos declaration.Position, v Value) {
		if _, declared := p.inf.declared(pos); declared {
			return
		}
		if a, ok := v.Annotation(); ok {
			p.annotations.Set(pos, a)
		}
	}

	if hasReturned && p.method.Return().IsReference() {
		set(p.positions.Return(), returned)
	}

	params := make([]*cfg.Value, 0, len(onReturn))
	for v := range onReturn {
		if v.Interesting && v.IsParameter() {
			params = append(params, v)
		}
	}
	slices.SortFunc(params, func(a, b *cfg.Value) int { return a.Param - b.Param })
	for _, v := range params {
		set(p.positions.Parameter(v.Param), onReturn[v])
	}

	p.writes = p.fieldWrites(res, onReturn)
	if p.inf.Record != nil {
		p.inf.Record.Record(p.method.ID(), p.writes)
	}
	return nil
}

// fieldWrites joins, per field, the nullability of the values stored by the reachable PUTFIELD and
// PUTSTATIC instructions. A stored value that is still live at the exits takes its nullability
// from there: a later dereference proves the stored value non-null as well.
func (p *Pass) fieldWrites(res *engine.Result, onReturn valueMap) map[declaration.FieldID]Value {
	writes := make(map[declaration.FieldID]Value)
	for i, frame := range res.Frames {
		insn := res.Graph.Instructions[i]
		if frame == nil || (insn.Op != cfg.PUTFIELD && insn.Op != cfg.PUTSTATIC) {
			continue
		}
		t, err := declaration.ParseType(insn.Desc)
		if err != nil || !t.IsReference() {
			continue
		}
		id := insn.FieldID()
		if f, ok := p.inf.Index.FieldByOwnerAndName(insn.Owner, insn.Name); ok {
			id = f.ID()
		}
		for _, qv := range frame.StackFromTop(0).Values() {
			n, ok := onReturn[qv.Base]
			if !ok {
				n = of(qv.Qualifiers)
			}
			if old, ok := writes[id]; ok {
				n = Merge(old, n)
			}
			writes[id] = n
		}
	}
	return writes
}

// FieldAnnotations infers the annotations of fields from their constant values and from the
// writes recorded in the memo of the inferrer. Final fields take the join of all writes. Other
// fields can be read before they are written, so only a possibly-null write is reported for them,
// and only for private fields, whose writers are all in the analyzed class.
func (inf *Inferrer) FieldAnnotations(fields []*declaration.Field) *annotation.Annotations[annotation.Nullability] {
	out := annotation.New[annotation.Nullability]()
	for _, f := range fields {
		pos := declaration.FieldPosition(f.ID())
		if !f.Type.IsReference() {
			continue
		}
		if _, declared := inf.declared(pos); declared {
			continue
		}
		final := f.Access.IsFinal()
		if final && f.Value != nil {
			out.Set(pos, annotation.NotNull)
			continue
		}
		if inf.Fields == nil {
			continue
		}
		written, ok := inf.Fields.Field(f.ID())
		if !ok {
			continue
		}
		a, ok := written.Annotation()
		switch {
		case !ok:
		case final:
			out.Set(pos, a)
		case f.Access.IsPrivate() && a == annotation.Nullable:
			out.Set(pos, a)
		}
	}
	return out
}
