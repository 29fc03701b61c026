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
)

// AssumeReturnNonNull returns true if the result of the given invocation is known to be non-null.
// This is useful for modeling library methods that jqual does not analyze. For example,
// `Objects.requireNonNull` returns its (checked) argument and `String.valueOf` never returns null.
func AssumeReturnNonNull(insn *cfg.Instruction) bool {
	for _, sig := range _nonnilReturns {
		if sig.match(insn) {
			return true
		}
	}
	return false
}

var _nonnilReturns = []trustedFuncSig{
	// `java.util.Objects.requireNonNull` / `requireNonNullElse` / `requireNonNullElseGet`
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^java/util/Objects$`),
		funcNameRegex:  regexp.MustCompile(`^requireNonNull(Else(Get)?)?$`),
	},
	// `com.google.common.base.Preconditions.checkNotNull`
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^com/google/common/base/Preconditions$`),
		funcNameRegex:  regexp.MustCompile(`^checkNotNull$`),
	},
	// `String.valueOf` and friends
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^java/lang/String$`),
		funcNameRegex:  regexp.MustCompile(`^(valueOf|format|join|copyValueOf)$`),
	},
	// `Object.toString` on builders and boxed primitives, `String` transformations
	{
		kind:           _method,
		enclosingRegex: regexp.MustCompile(`^java/lang/(String|StringBuilder|StringBuffer|Integer|Long|Boolean|Double)$`),
		funcNameRegex:  regexp.MustCompile(`^(toString|trim|substring|toLowerCase|toUpperCase|concat|replace|strip|append)$`),
	},
	// `Collections.emptyList` / `unmodifiableMap` / ...
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^java/util/Collections$`),
		funcNameRegex:  regexp.MustCompile(`^(empty|unmodifiable|synchronized|singleton)\w*$`),
	},
	// `List.of` / `Set.of` / `Map.of` / `Map.entry` / `Optional.of` / `Optional.empty`
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^java/util/(List|Set|Map|Optional)$`),
		funcNameRegex:  regexp.MustCompile(`^(of|ofNullable|copyOf|empty|entry)$`),
	},
	// `Integer.valueOf` and the other boxing methods
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^java/lang/(Integer|Long|Short|Byte|Character|Boolean|Float|Double)$`),
		funcNameRegex:  regexp.MustCompile(`^valueOf$`),
	},
}
