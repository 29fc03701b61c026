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
)

// MethodID identifies a method by owner, name and descriptor. It is comparable and used as a map key.
type MethodID struct {
	Owner ClassName
	Name  string
	Desc  string
}

func (id MethodID) String() string {
	return string(id.Owner) + "." + id.Name + id.Desc
}

// Signature returns the name+descriptor part of the ID, the part overriding methods share.
func (id MethodID) Signature() string {
	return id.Name + id.Desc
}

// Method is a method declaration.
type Method struct {
	Owner  ClassName
	Access Access
	Name   string
	Desc   string

	params []Type
	ret    Type
}

// NewMethod creates a method declaration, parsing its descriptor.
func NewMethod(owner ClassName, access Access, name, desc string) (*Method, error) {
	params, ret, err := ParseMethodDescriptor(desc)
	if err != nil {
		return nil, fmt.Errorf("method %s.%s: %w", owner, name, err)
	}
	return &Method{Owner: owner, Access: access, Name: name, Desc: desc, params: params, ret: ret}, nil
}

// ID returns the identity of the method.
func (m *Method) ID() MethodID {
	return MethodID{Owner: m.Owner, Name: m.Name, Desc: m.Desc}
}

// Params returns the declared parameter types, excluding the receiver.
func (m *Method) Params() []Type {
	return m.params
}

// Return returns the declared return type.
func (m *Method) Return() Type {
	return m.ret
}

// IsStatic returns true if the method has no receiver.
func (m *Method) IsStatic() bool {
	return m.Access.IsStatic()
}

// IsConstructor returns true for instance initializers.
func (m *Method) IsConstructor() bool {
	return m.Name == "<init>"
}

// LocalSlot returns the local variable slot holding declared parameter i on method entry.
func (m *Method) LocalSlot(i int) int {
	slot := 0
	if !m.IsStatic() {
		slot = 1
	}
	for _, p := range m.params[:i] {
		slot += p.Size()
	}
	return slot
}

// ArgumentSlots returns the number of local slots occupied by the receiver and all parameters.
func (m *Method) ArgumentSlots() int {
	return m.LocalSlot(len(m.params))
}

func (m *Method) String() string {
	return m.ID().String()
}

// FieldID identifies a field by owner and name.
type FieldID struct {
	Owner ClassName
	Name  string
}

func (id FieldID) String() string {
	return string(id.Owner) + "." + id.Name
}

// Field is a field declaration.
type Field struct {
	Owner  ClassName
	Access Access
	Name   string
	Desc   string
	Type   Type
	// Value is the constant value of the field if it is statically known (ConstantValue attribute),
	// nil otherwise.
	Value any
}

// NewField creates a field declaration, parsing its descriptor.
func NewField(owner ClassName, access Access, name, desc string, value any) (*Field, error) {
	t, err := ParseType(desc)
	if err != nil {
		return nil, fmt.Errorf("field %s.%s: %w", owner, name, err)
	}
	if t.Sort == Void {
		return nil, fmt.Errorf("field %s.%s: void type", owner, name)
	}
	return &Field{Owner: owner, Access: access, Name: name, Desc: desc, Type: t, Value: value}, nil
}

// ID returns the identity of the field.
func (f *Field) ID() FieldID {
	return FieldID{Owner: f.Owner, Name: f.Name}
}

func (f *Field) String() string {
	return f.ID().String()
}

// Class is a class declaration: its supertypes and members.
type Class struct {
	Name       ClassName
	Access     Access
	Super      ClassName
	Interfaces []ClassName
	Methods    []*Method
	Fields     []*Field
}

// Supertypes returns the direct supertypes of the class, superclass first.
func (c *Class) Supertypes() []ClassName {
	supers := make([]ClassName, 0, len(c.Interfaces)+1)
	if c.Super != "" {
		supers = append(supers, c.Super)
	}
	return append(supers, c.Interfaces...)
}

// IsInterface returns true if the class is an interface.
func (c *Class) IsInterface() bool {
	return c.Access.Has(AccInterface)
}
