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

package main

import (
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/jqual"
	"go.uber.org/jqual/declaration"
	"gopkg.in/yaml.v3"
)

// entry is one reported position with the annotations of both kinds.
type entry struct {
	Class       string `yaml:"class"`
	Member      string `yaml:"member"`
	Position    string `yaml:"position"`
	Nullability string `yaml:"nullability,omitempty"`
	Mutability  string `yaml:"mutability,omitempty"`
	Propagated  bool   `yaml:"propagated,omitempty"`

	pos declaration.Position
}

// entries merges the two annotation maps of res into one list ordered by position.
func entries(res *jqual.Result) []*entry {
	byPos := make(map[declaration.Position]*entry)
	get := func(p declaration.Position) *entry {
		e, ok := byPos[p]
		if !ok {
			e = &entry{
				Class:      string(p.Owner),
				Member:     p.Member,
				Position:   slot(p),
				Propagated: res.IsPropagated(p),
				pos:        p,
			}
			byPos[p] = e
		}
		return e
	}
	for _, a := range res.Nullability.Sorted() {
		get(a.Position).Nullability = a.Value.String()
	}
	for _, a := range res.Mutability.Sorted() {
		get(a.Position).Mutability = a.Value.String()
	}

	list := make([]*entry, 0, len(byPos))
	for _, e := range byPos {
		list = append(list, e)
	}
	slices.SortFunc(list, func(a, b *entry) int {
		switch {
		case a.pos.Less(b.pos):
			return -1
		case b.pos.Less(a.pos):
			return 1
		}
		return 0
	})
	return list
}

// slot names the position inside its member, e.g. "param 1", "return <0>".
func slot(p declaration.Position) string {
	s := p.Kind.String()
	if p.Kind == declaration.ParameterKind {
		s += " " + strconv.Itoa(p.Param)
	}
	if p.Path != "" {
		s += " <" + p.Path + ">"
	}
	return s
}

func writeYAML(w io.Writer, res *jqual.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries(res)); err != nil {
		return err
	}
	return enc.Close()
}

func writeText(w io.Writer, res *jqual.Result, pretty bool) error {
	for _, e := range entries(res) {
		var anns []string
		if e.Nullability != "" {
			anns = append(anns, "@"+e.Nullability)
		}
		if e.Mutability != "" {
			anns = append(anns, "@"+e.Mutability)
		}
		line := fmt.Sprintf("`%s.%s` %s: %s", e.Class, e.Member, e.Position, strings.Join(anns, " "))
		if e.Propagated {
			line += " (propagated)"
		}
		if pretty {
			line = prettyPrintAnnotation(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

var _codeReferencePattern = regexp.MustCompile("\\`(.*?)\\`")
var _annotationPattern = regexp.MustCompile(`(@(NotNull|Nullable|Mutable))`)

// prettyPrintAnnotation colors a text output line: the member in magenta and the annotations in bold.
func prettyPrintAnnotation(line string) string {
	codeStr := fmt.Sprintf("\u001B[%dm%s\u001B[0m", 95, "`${1}`")      // magenta
	annotationStr := fmt.Sprintf("\u001B[%dm%s\u001B[0m", 1, "${1}") // bold

	line = _annotationPattern.ReplaceAllString(line, annotationStr)
	return _codeReferencePattern.ReplaceAllString(line, codeStr)
}

// prettyPrintErrorMessage colors an error line for the terminal.
func prettyPrintErrorMessage(msg string) string {
	errorStr := fmt.Sprintf("\x1b[%dm%s\x1b[0m", 31, "error: ")   // red
	codeStr := fmt.Sprintf("\u001B[%dm%s\u001B[0m", 95, "`${1}`") // magenta

	return errorStr + _codeReferencePattern.ReplaceAllString(msg, codeStr)
}
