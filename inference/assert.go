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

package inference

import (
	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/index"
)

// Lookup returns the annotation known at a position.
type Lookup[A comparable] func(declaration.Position) (A, bool)

// Known combines the annotations declared in idx, resolved by resolve, with previously inferred
// ones. Declared annotations win. In NoInfer mode, or when inferred is nil, only declared
// annotations are consulted. inferred must not be modified while the lookup is in use.
func Known[A comparable](
	idx index.DeclarationIndex,
	resolve func([]annotation.Data) (A, bool),
	inferred *annotation.Annotations[A],
	mode ModeOfInference,
) Lookup[A] {
	return func(p declaration.Position) (A, bool) {
		if a, ok := resolve(idx.DeclaredAnnotations(p)); ok {
			return a, true
		}
		if mode == NoInfer || inferred == nil {
			var zero A
			return zero, false
		}
		return inferred.Get(p)
	}
}

// AssertCallArguments imposes callee parameter annotations on the arguments of the call insn. It
// resolves the invoked method in idx and, for every declared parameter whose known annotation
// satisfies applies, calls assert with the position of the argument counted from the top of the
// stack before the call. Calls that cannot be resolved are skipped.
func AssertCallArguments[A comparable](
	insn *cfg.Instruction,
	idx index.DeclarationIndex,
	known Lookup[A],
	applies func(A) bool,
	assert func(indexFromTop int),
) {
	if !insn.IsInvoke() || insn.Op == cfg.INVOKEDYNAMIC {
		return
	}
	callee, ok := idx.MethodByOwnerAndSignature(insn.Owner, insn.Name+insn.Desc)
	if !ok {
		return
	}
	params := callee.Params()
	for i := range params {
		if a, ok := known(declaration.ParameterPosition(callee.ID(), i)); ok && applies(a) {
			assert(len(params) - 1 - i)
		}
	}
}

// ArgumentCount returns the number of declared arguments of the call insn, receiver excluded. Every
// argument takes one stack entry.
func ArgumentCount(insn *cfg.Instruction) int {
	params, _, err := declaration.ParseMethodDescriptor(insn.Desc)
	if err != nil {
		return 0
	}
	return len(params)
}

// ReceiverFromTop returns the position of the receiver of the call insn counted from the top of
// the stack before the call, or -1 if the call has no receiver.
func ReceiverFromTop(insn *cfg.Instruction) int {
	if !insn.HasReceiver() {
		return -1
	}
	return ArgumentCount(insn)
}
