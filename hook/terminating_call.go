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

package hook

import (
	"regexp"
	"slices"

	"go.uber.org/jqual/cfg"
)

// IsTerminatingCall returns true if the given invocation never returns normally. The analysis
// treats the normal successor of such a call as unreachable.
//
// `Intrinsics.throw*`-related: the Kotlin compiler emits them on failed null checks, they always
// throw but are declared to return void.
//
// `System.exit`-related: they halt the VM.
func IsTerminatingCall(insn *cfg.Instruction) bool {
	return slices.ContainsFunc(_terminatingCalls, func(sig trustedFuncSig) bool { return sig.match(insn) })
}

var _terminatingCalls = []trustedFuncSig{
	// `kotlin.jvm.internal.Intrinsics.throwNpe` / `throwUninitializedProperty...` / ...
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^kotlin/jvm/internal/Intrinsics$`),
		funcNameRegex:  regexp.MustCompile(`^throw\w+$`),
	},
	// `System.exit` / `Runtime.halt`
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^java/lang/System$`),
		funcNameRegex:  regexp.MustCompile(`^exit$`),
	},
	{
		kind:           _method,
		enclosingRegex: regexp.MustCompile(`^java/lang/Runtime$`),
		funcNameRegex:  regexp.MustCompile(`^(exit|halt)$`),
	},
}
