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

// Package jqualtest implements utility functions for tests.
package jqualtest

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/program"
)

// Load parses an inline YAML program and fails the test on error.
func Load(t testing.TB, src string) *program.Program {
	t.Helper()
	p, err := program.Parse(src)
	require.NoError(t, err)
	return p
}

// FindExpectedValues inspects the bytecode listings of p and gathers, per method, the values of the
// comment starting with expectedPrefix, e.g. "; want: 0:NotNull return:Nullable".
func FindExpectedValues(p *program.Program, expectedPrefix string) map[declaration.MethodID][]string {
	results := make(map[declaration.MethodID][]string)
	for _, m := range p.Methods() {
		for _, line := range strings.Split(p.Source(m), "\n") {
			line = strings.TrimSpace(line)
			comment, ok := cutComment(line)
			if !ok {
				continue
			}
			text, ok := strings.CutPrefix(strings.TrimSpace(comment), expectedPrefix)
			if !ok {
				continue
			}
			// A bare prefix expects nothing for the method.
			results[m.ID()] = append(results[m.ID()], strings.Fields(text)...)
		}
	}
	return results
}

func cutComment(line string) (string, bool) {
	for _, marker := range []string{";", "#"} {
		if rest, ok := strings.CutPrefix(line, marker); ok {
			return rest, true
		}
	}
	return "", false
}

// Expected holds the annotations a test expects.
type Expected struct {
	Nullability *annotation.Annotations[annotation.Nullability]
	Mutability  *annotation.Annotations[annotation.Mutability]
}

// ExpectedAnnotations converts the values found by FindExpectedValues into annotations. A value
// is "<slot>:<annotation>" where slot is a declared parameter index or "return".
func ExpectedAnnotations(p *program.Program, expectedPrefix string) (*Expected, error) {
	exp := &Expected{
		Nullability: annotation.New[annotation.Nullability](),
		Mutability:  annotation.New[annotation.Mutability](),
	}
	found := FindExpectedValues(p, expectedPrefix)
	for _, m := range p.Methods() {
		values, ok := found[m.ID()]
		if !ok {
			continue
		}
		positions := declaration.MethodPositions{Method: m}
		for _, v := range values {
			slot, name, ok := strings.Cut(v, ":")
			if !ok {
				return nil, fmt.Errorf("%s: malformed expectation %q", m, v)
			}
			var pos declaration.Position
			if slot == "return" {
				pos = positions.Return()
			} else {
				i, err := strconv.Atoi(slot)
				if err != nil || i < 0 || i >= len(m.Params()) {
					return nil, fmt.Errorf("%s: bad parameter in expectation %q", m, v)
				}
				pos = positions.Parameter(i)
			}
			switch name {
			case annotation.NotNull.String():
				exp.Nullability.Set(pos, annotation.NotNull)
			case annotation.Nullable.String():
				exp.Nullability.Set(pos, annotation.Nullable)
			case annotation.Mutable.String():
				exp.Mutability.Set(pos, annotation.Mutable)
			default:
				return nil, fmt.Errorf("%s: unknown annotation in expectation %q", m, v)
			}
		}
	}
	return exp, nil
}
