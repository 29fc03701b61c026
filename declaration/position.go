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

package declaration

import (
	"fmt"
	"strconv"
	"strings"
)

// PositionKind is the kind of declaration slot an annotation is attached to.
type PositionKind uint8

// Position kinds.
const (
	ParameterKind PositionKind = iota
	ReturnKind
	FieldKind
)

func (k PositionKind) String() string {
	switch k {
	case ParameterKind:
		return "param"
	case ReturnKind:
		return "return"
	case FieldKind:
		return "field"
	default:
		return fmt.Sprintf("PositionKind(%d)", k)
	}
}

// Position is an annotatable location in a declaration: a method parameter, a method return type,
// or a field type, optionally narrowed to a type-argument sub-position. Positions are comparable.
type Position struct {
	Owner ClassName
	// Member is the method name+descriptor for parameter and return positions, and the field name
	// for field positions.
	Member string
	Kind   PositionKind
	// Param is the declared parameter index (receiver excluded) for ParameterKind, 0 otherwise.
	Param int
	// Path is a dot-separated list of type-argument indices for sub-positions, "" for the top level.
	Path string
}

// ParameterPosition returns the position of declared parameter i of method m.
func ParameterPosition(m MethodID, i int) Position {
	return Position{Owner: m.Owner, Member: m.Signature(), Kind: ParameterKind, Param: i}
}

// ReturnPosition returns the position of the return type of method m.
func ReturnPosition(m MethodID) Position {
	return Position{Owner: m.Owner, Member: m.Signature(), Kind: ReturnKind}
}

// FieldPosition returns the position of the type of field f.
func FieldPosition(f FieldID) Position {
	return Position{Owner: f.Owner, Member: f.Name, Kind: FieldKind}
}

// Sub returns the position of type argument i nested in p.
func (p Position) Sub(i int) Position {
	if p.Path == "" {
		p.Path = strconv.Itoa(i)
	} else {
		p.Path += "." + strconv.Itoa(i)
	}
	return p
}

// IsTopLevel returns true if p is not a type-argument sub-position.
func (p Position) IsTopLevel() bool {
	return p.Path == ""
}

// Top returns the top-level position containing p.
func (p Position) Top() Position {
	p.Path = ""
	return p
}

// WithOwner returns the same member position in another class, which is how an overridden method's
// positions are derived from an overriding one.
func (p Position) WithOwner(owner ClassName) Position {
	p.Owner = owner
	return p
}

func (p Position) String() string {
	var b strings.Builder
	b.WriteString(string(p.Owner))
	b.WriteByte(' ')
	b.WriteString(p.Member)
	b.WriteByte(' ')
	b.WriteString(p.Kind.String())
	if p.Kind == ParameterKind {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(p.Param))
	}
	if p.Path != "" {
		b.WriteString(" <")
		b.WriteString(p.Path)
		b.WriteByte('>')
	}
	return b.String()
}

// Less orders positions by owner, member, kind, parameter index and path. It is used to produce
// deterministic output.
func (p Position) Less(o Position) bool {
	if p.Owner != o.Owner {
		return p.Owner < o.Owner
	}
	if p.Member != o.Member {
		return p.Member < o.Member
	}
	if p.Kind != o.Kind {
		return p.Kind < o.Kind
	}
	if p.Param != o.Param {
		return p.Param < o.Param
	}
	return p.Path < o.Path
}

// MethodPositions enumerates the top-level positions of a method.
type MethodPositions struct {
	Method *Method
}

// Parameter returns the position of declared parameter i.
func (mp MethodPositions) Parameter(i int) Position {
	return ParameterPosition(mp.Method.ID(), i)
}

// Return returns the return position.
func (mp MethodPositions) Return() Position {
	return ReturnPosition(mp.Method.ID())
}

// All returns the parameter positions in order followed by the return position (if non-void).
func (mp MethodPositions) All() []Position {
	ps := make([]Position, 0, len(mp.Method.Params())+1)
	for i := range mp.Method.Params() {
		ps = append(ps, mp.Parameter(i))
	}
	if mp.Method.Return().Sort != Void {
		ps = append(ps, mp.Return())
	}
	return ps
}
