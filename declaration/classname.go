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

// Package declaration models the declarations of JVM classes that the inference works on: class
// names, type descriptors, methods, fields and the annotation positions they expose.
package declaration

import "strings"

// ClassName is an internal JVM class name, e.g., "java/util/List" or "com/acme/Outer$Inner".
type ClassName string

// Canonical returns the Java source form of the class name ("java.util.List", "com.acme.Outer.Inner").
func (c ClassName) Canonical() string {
	return strings.NewReplacer("/", ".", "$", ".").Replace(string(c))
}

// Package returns the internal package name of the class, "" for the default package.
func (c ClassName) Package() string {
	if i := strings.LastIndexByte(string(c), '/'); i >= 0 {
		return string(c[:i])
	}
	return ""
}

// Simple returns the unqualified name of the class.
func (c ClassName) Simple() string {
	s := string(c)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '$'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// HasPrefix returns true if the class lives under the given internal or canonical name prefix.
func (c ClassName) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(c), strings.ReplaceAll(prefix, ".", "/"))
}

// ClassNameOf converts a canonical class name ("java.util.List") to its internal form. Nested
// classes cannot be distinguished from packages in canonical form and are kept as written.
func ClassNameOf(canonical string) ClassName {
	return ClassName(strings.ReplaceAll(canonical, ".", "/"))
}
