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

// Package hook implements a hook framework for jqual where it hooks into the nullability analysis
// to provide additional context for calls to well-known JVM library methods. This is useful for
// the standard library and popular 3rd party libraries where we can encode certain knowledge about
// them (e.g., `Objects.requireNonNull(x)` implies `x != null` afterwards) without analyzing them.
package hook

import (
	"regexp"

	"go.uber.org/jqual/cfg"
)

// funcKind indicates the kind of the trusted function:
// (1) _method: it is an instance method, invoked with a receiver;
// (2) _func: it is a static method.
type funcKind uint8

const (
	_method funcKind = iota
	_func
)

// trustedFuncSig defines the signature of a method that we "trust" to have a certain effect on its
// arguments or result.
type trustedFuncSig struct {
	kind           funcKind
	enclosingRegex *regexp.Regexp
	funcNameRegex  *regexp.Regexp
}

// match checks if a given invocation matches with a trusted function's signature. Namely, it
// performs a strict matching for the kind of invocation and a regex match for the method name and
// the internal name of the owner class (e.g., `java/util/Objects`).
func (t *trustedFuncSig) match(insn *cfg.Instruction) bool {
	if !insn.IsInvoke() || insn.Op == cfg.INVOKEDYNAMIC {
		return false
	}
	// return early if the kind of `t` and the invocation don't match: static methods are invoked
	// with invokestatic, everything else passes a receiver.
	if (t.kind == _func) != (insn.Op == cfg.INVOKESTATIC) {
		return false
	}
	return t.funcNameRegex.MatchString(insn.Name) && t.enclosingRegex.MatchString(string(insn.Owner))
}
