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
	"strings"
)

// Sort classifies a JVM type.
type Sort uint8

// Sorts of JVM types, in descriptor character order.
const (
	Void Sort = iota
	Boolean
	Char
	Byte
	Short
	Int
	Float
	Long
	Double
	Array
	Object
)

// Type is a parsed JVM field descriptor (e.g., "I", "Ljava/lang/String;", "[[J").
type Type struct {
	Sort Sort
	// Desc is the descriptor this type was parsed from.
	Desc string
}

// Predefined primitive and common types.
var (
	VoidType      = Type{Sort: Void, Desc: "V"}
	IntType       = Type{Sort: Int, Desc: "I"}
	LongType      = Type{Sort: Long, Desc: "J"}
	FloatType     = Type{Sort: Float, Desc: "F"}
	DoubleType    = Type{Sort: Double, Desc: "D"}
	ObjectType    = Type{Sort: Object, Desc: "Ljava/lang/Object;"}
	StringType    = Type{Sort: Object, Desc: "Ljava/lang/String;"}
	ClassType     = Type{Sort: Object, Desc: "Ljava/lang/Class;"}
	ThrowableType = Type{Sort: Object, Desc: "Ljava/lang/Throwable;"}
)

// IsReference returns true for object and array types, i.e., the types that can hold null.
func (t Type) IsReference() bool {
	return t.Sort == Object || t.Sort == Array
}

// Size returns the number of local variable slots the type occupies.
func (t Type) Size() int {
	switch t.Sort {
	case Void:
		return 0
	case Long, Double:
		return 2
	default:
		return 1
	}
}

// ClassName returns the internal class name of an object type, or "" for other sorts.
func (t Type) ClassName() ClassName {
	if t.Sort != Object {
		return ""
	}
	return ClassName(t.Desc[1 : len(t.Desc)-1])
}

// Elem returns the component type of an array type. It returns ObjectType if the receiver is not
// an array or its descriptor is malformed.
func (t Type) Elem() Type {
	if t.Sort != Array {
		return ObjectType
	}
	elem, err := ParseType(t.Desc[1:])
	if err != nil {
		return ObjectType
	}
	return elem
}

func (t Type) String() string {
	return t.Desc
}

// ObjectTypeOf returns the type of instances of the given internal class name. Array "class names"
// (as found in CHECKCAST and ANEWARRAY operands) are parsed as array descriptors.
func ObjectTypeOf(name ClassName) Type {
	if strings.HasPrefix(string(name), "[") {
		if t, err := ParseType(string(name)); err == nil {
			return t
		}
	}
	return Type{Sort: Object, Desc: "L" + string(name) + ";"}
}

// ParseType parses a complete field descriptor.
func ParseType(desc string) (Type, error) {
	offset := 0
	t, err := parseType(desc, &offset)
	if err != nil {
		return Type{}, err
	}
	if offset != len(desc) {
		return Type{}, fmt.Errorf("trailing characters in descriptor %q", desc)
	}
	return t, nil
}

// parseType returns the type for the descriptor string starting at offset. offset is advanced one
// byte beyond the end of the parsed type.
func parseType(desc string, offset *int) (Type, error) {
	if *offset >= len(desc) {
		return Type{}, fmt.Errorf("unexpected end of descriptor %q", desc)
	}
	start := *offset
	r := desc[*offset]
	*offset++
	switch r {
	case 'V':
		return VoidType, nil
	case 'Z':
		return Type{Sort: Boolean, Desc: "Z"}, nil
	case 'C':
		return Type{Sort: Char, Desc: "C"}, nil
	case 'B':
		return Type{Sort: Byte, Desc: "B"}, nil
	case 'S':
		return Type{Sort: Short, Desc: "S"}, nil
	case 'I':
		return IntType, nil
	case 'F':
		return FloatType, nil
	case 'J':
		return LongType, nil
	case 'D':
		return DoubleType, nil
	case 'L':
		for *offset < len(desc) {
			c := desc[*offset]
			*offset++
			if c == ';' {
				if *offset-start == 2 {
					return Type{}, fmt.Errorf("empty class name in descriptor %q", desc)
				}
				return Type{Sort: Object, Desc: desc[start:*offset]}, nil
			}
		}
		return Type{}, fmt.Errorf("class type missing terminating ';' in descriptor %q", desc)
	case '[':
		elem, err := parseType(desc, offset)
		if err != nil {
			return Type{}, err
		}
		if elem.Sort == Void {
			return Type{}, fmt.Errorf("array of void in descriptor %q", desc)
		}
		return Type{Sort: Array, Desc: desc[start:*offset]}, nil
	default:
		return Type{}, fmt.Errorf("unknown type tag %q in descriptor %q", r, desc)
	}
}

// ParseMethodDescriptor parses a method descriptor such as "(ILjava/lang/String;)V".
func ParseMethodDescriptor(desc string) (params []Type, ret Type, err error) {
	if len(desc) == 0 || desc[0] != '(' {
		return nil, Type{}, fmt.Errorf("method descriptor %q doesn't start with '('", desc)
	}
	i := 1
	for {
		if i >= len(desc) {
			return nil, Type{}, fmt.Errorf("method descriptor %q missing ')'", desc)
		}
		if desc[i] == ')' {
			break
		}
		t, err := parseType(desc, &i)
		if err != nil {
			return nil, Type{}, err
		}
		if t.Sort == Void {
			return nil, Type{}, fmt.Errorf("void parameter in method descriptor %q", desc)
		}
		params = append(params, t)
	}
	i++
	ret, err = parseType(desc, &i)
	if err != nil {
		return nil, Type{}, err
	}
	if i != len(desc) {
		return nil, Type{}, fmt.Errorf("trailing characters in method descriptor %q", desc)
	}
	return params, ret, nil
}
