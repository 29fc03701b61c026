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

	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/declaration"
)

// NonNilArguments returns the indices of the declared parameters of the invoked method that are
// known to be non-null once the invocation returns normally. For example, after
// `Objects.requireNonNull(x)` returns, `x != null` holds. It returns nil if the invocation does not
// match any trusted function.
func NonNilArguments(insn *cfg.Instruction) []int {
	for _, a := range _assertArguments {
		if !a.sig.match(insn) {
			continue
		}
		params, _, err := declaration.ParseMethodDescriptor(insn.Desc)
		if err != nil || len(params) == 0 {
			return nil
		}
		argIndex := a.argIndex
		if argIndex == _lastArg {
			argIndex = len(params) - 1
		}
		if argIndex >= len(params) || !params[argIndex].IsReference() {
			return nil
		}
		return []int{argIndex}
	}
	return nil
}

// _lastArg selects the last declared parameter, for assertion methods taking an optional message
// before the checked value.
const _lastArg = -1

type assertArgument struct {
	sig      trustedFuncSig
	argIndex int
}

var _assertArguments = []assertArgument{
	// `java.util.Objects.requireNonNull(obj, ...)`
	{
		sig: trustedFuncSig{
			kind:           _func,
			enclosingRegex: regexp.MustCompile(`^java/util/Objects$`),
			funcNameRegex:  regexp.MustCompile(`^requireNonNull$`),
		},
		argIndex: 0,
	},
	// `com.google.common.base.Preconditions.checkNotNull(ref, ...)` and `Verify.verifyNotNull`
	{
		sig: trustedFuncSig{
			kind:           _func,
			enclosingRegex: regexp.MustCompile(`^com/google/common/base/(Preconditions|Verify)$`),
			funcNameRegex:  regexp.MustCompile(`^(checkNotNull|verifyNotNull)$`),
		},
		argIndex: 0,
	},
	// `kotlin.jvm.internal.Intrinsics.checkNotNull(value, ...)` and the checks the Kotlin compiler
	// emits for platform types and parameters.
	{
		sig: trustedFuncSig{
			kind:           _func,
			enclosingRegex: regexp.MustCompile(`^kotlin/jvm/internal/Intrinsics$`),
			funcNameRegex:  regexp.MustCompile(`^check(NotNull|NotNullParameter|NotNullExpressionValue|ParameterIsNotNull|ExpressionValueIsNotNull)$`),
		},
		argIndex: 0,
	},
	// `org.apache.commons.lang3.Validate.notNull(obj, ...)`
	{
		sig: trustedFuncSig{
			kind:           _func,
			enclosingRegex: regexp.MustCompile(`^org/apache/commons/lang3?/Validate$`),
			funcNameRegex:  regexp.MustCompile(`^notNull$`),
		},
		argIndex: 0,
	},
	// `org.springframework.util.Assert.notNull(obj, message)`
	{
		sig: trustedFuncSig{
			kind:           _func,
			enclosingRegex: regexp.MustCompile(`^org/springframework/util/Assert$`),
			funcNameRegex:  regexp.MustCompile(`^notNull$`),
		},
		argIndex: 0,
	},
	// `org.junit.Assert.assertNotNull([message,] obj)` and its JUnit 5 counterpart
	// `Assertions.assertNotNull(obj[, message])`
	{
		sig: trustedFuncSig{
			kind:           _func,
			enclosingRegex: regexp.MustCompile(`^(org/junit/Assert|junit/framework/Assert)$`),
			funcNameRegex:  regexp.MustCompile(`^assertNotNull$`),
		},
		argIndex: _lastArg,
	},
	{
		sig: trustedFuncSig{
			kind:           _func,
			enclosingRegex: regexp.MustCompile(`^org/junit/jupiter/api/Assertions$`),
			funcNameRegex:  regexp.MustCompile(`^assertNotNull$`),
		},
		argIndex: 0,
	},
}
