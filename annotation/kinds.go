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

package annotation

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Nullability is a nullability annotation.
type Nullability uint8

// Nullability annotations.
const (
	NotNull Nullability = iota + 1
	Nullable
)

func (n Nullability) String() string {
	switch n {
	case NotNull:
		return "NotNull"
	case Nullable:
		return "Nullable"
	default:
		return fmt.Sprintf("Nullability(%d)", n)
	}
}

// MarshalYAML writes the annotation by name.
func (n Nullability) MarshalYAML() (any, error) {
	return n.String(), nil
}

// UnmarshalYAML reads the annotation by name.
func (n *Nullability) UnmarshalYAML(node *yaml.Node) error {
	switch node.Value {
	case "NotNull":
		*n = NotNull
	case "Nullable":
		*n = Nullable
	default:
		return fmt.Errorf("line %d: unknown nullability annotation %q", node.Line, node.Value)
	}
	return nil
}

// Mutability is a mutability annotation.
type Mutability uint8

// Mutability annotations.
const (
	ReadOnly Mutability = iota + 1
	Mutable
)

func (m Mutability) String() string {
	switch m {
	case ReadOnly:
		return "ReadOnly"
	case Mutable:
		return "Mutable"
	default:
		return fmt.Sprintf("Mutability(%d)", m)
	}
}

// MarshalYAML writes the annotation by name.
func (m Mutability) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML reads the annotation by name.
func (m *Mutability) UnmarshalYAML(node *yaml.Node) error {
	switch node.Value {
	case "ReadOnly":
		*m = ReadOnly
	case "Mutable":
		*m = Mutable
	default:
		return fmt.Errorf("line %d: unknown mutability annotation %q", node.Line, node.Value)
	}
	return nil
}

// Data is an annotation as declared in a class file: the annotation class and its attributes.
type Data struct {
	// Class is the canonical name of the annotation class, e.g., "org.jetbrains.annotations.NotNull".
	Class      string            `yaml:"class"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// PropagatedClass marks annotations that were copied along override relations by an earlier run.
// Its "value" attribute lists the kinds ("NULLABILITY", "MUTABILITY") it applies to. Propagated
// annotations are not treated as declared.
const PropagatedClass = "jqual.annotations.Propagated"

// Kind names used in the "value" attribute of PropagatedClass.
const (
	NullabilityKind = "NULLABILITY"
	MutabilityKind  = "MUTABILITY"
)

var nullabilityClasses = map[string]Nullability{
	"org.jetbrains.annotations.NotNull":                   NotNull,
	"org.jetbrains.annotations.Nullable":                  Nullable,
	"javax.annotation.Nonnull":                            NotNull,
	"javax.annotation.Nullable":                           Nullable,
	"javax.annotation.CheckForNull":                       Nullable,
	"androidx.annotation.NonNull":                         NotNull,
	"androidx.annotation.Nullable":                        Nullable,
	"android.support.annotation.NonNull":                  NotNull,
	"android.support.annotation.Nullable":                 Nullable,
	"org.checkerframework.checker.nullness.qual.NonNull":  NotNull,
	"org.checkerframework.checker.nullness.qual.Nullable": Nullable,
	"edu.umd.cs.findbugs.annotations.NonNull":             NotNull,
	"edu.umd.cs.findbugs.annotations.Nullable":            Nullable,
	"lombok.NonNull":                                      NotNull,
	"jqual.annotations.NotNull":                           NotNull,
	"jqual.annotations.Nullable":                          Nullable,
}

var mutabilityClasses = map[string]Mutability{
	"jqual.annotations.Mutable":                  Mutable,
	"jqual.annotations.ReadOnly":                 ReadOnly,
	"org.jetbrains.annotations.Unmodifiable":     ReadOnly,
	"org.jetbrains.annotations.UnmodifiableView": ReadOnly,
}

// IsPropagated returns true if the annotations include a PropagatedClass marker for kind.
func IsPropagated(anns []Data, kind string) bool {
	for _, d := range anns {
		if d.Class != PropagatedClass {
			continue
		}
		for _, k := range strings.Split(d.Attributes["value"], ",") {
			if strings.TrimSpace(k) == kind {
				return true
			}
		}
	}
	return false
}

// ResolveNullability returns the nullability expressed by declared annotations. Conflicting
// declarations resolve to Nullable. Propagated nullability is ignored.
func ResolveNullability(anns []Data) (Nullability, bool) {
	if IsPropagated(anns, NullabilityKind) {
		return 0, false
	}
	var found Nullability
	for _, d := range anns {
		n, ok := nullabilityClasses[d.Class]
		if !ok {
			continue
		}
		if found != 0 && found != n {
			return Nullable, true
		}
		found = n
	}
	return found, found != 0
}

// ResolveMutability returns the mutability expressed by declared annotations. Conflicting
// declarations resolve to Mutable. Propagated mutability is ignored.
func ResolveMutability(anns []Data) (Mutability, bool) {
	if IsPropagated(anns, MutabilityKind) {
		return 0, false
	}
	var found Mutability
	for _, d := range anns {
		m, ok := mutabilityClasses[d.Class]
		if !ok {
			continue
		}
		if found != 0 && found != m {
			return Mutable, true
		}
		found = m
	}
	return found, found != 0
}
