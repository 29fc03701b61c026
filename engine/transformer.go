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

import "go.uber.org/jqual/cfg"

// chain applies transformers in order, each one seeing the previous one's result as the executed
// frame.
type chain []FrameTransformer

// Chain combines transformers of independent analyses into one. Each transformer is expected to
// touch only the qualifiers of its own dimension.
func Chain(transformers ...FrameTransformer) FrameTransformer {
	return chain(transformers)
}

func (c chain) PostFrame(insn *cfg.Instruction, kind cfg.EdgeKind, pre, executed *Frame, a *Analyzer) *Frame {
	var out *Frame
	for _, t := range c {
		if t == nil {
			continue
		}
		if f := t.PostFrame(insn, kind, pre, executed, a); f != nil {
			executed, out = f, f
		}
	}
	return out
}

// TransformerFunc adapts a function to the FrameTransformer interface.
type TransformerFunc func(insn *cfg.Instruction, kind cfg.EdgeKind, pre, executed *Frame, a *Analyzer) *Frame

// PostFrame calls f.
func (f TransformerFunc) PostFrame(insn *cfg.Instruction, kind cfg.EdgeKind, pre, executed *Frame, a *Analyzer) *Frame {
	return f(insn, kind, pre, executed, a)
}
