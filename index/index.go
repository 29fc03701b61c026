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

// Package index provides lookups of declarations by owner and name, as used by inference to
// resolve call targets and field accesses.
package index

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/util/orderedmap"
)

// DeclarationIndex is a read-only view of the declarations available to an analysis. It must be
// safe for concurrent use.
type DeclarationIndex interface {
	// MethodByOwnerAndSignature resolves a method reference, where signature is name+descriptor.
	MethodByOwnerAndSignature(owner declaration.ClassName, signature string) (*declaration.Method, bool)
	// FieldByOwnerAndName resolves a field reference.
	FieldByOwnerAndName(owner declaration.ClassName, name string) (*declaration.Field, bool)
	// DeclaredAnnotations returns the annotations declared at p in the class files.
	DeclaredAnnotations(p declaration.Position) []annotation.Data
}

// Map is an in-memory DeclarationIndex. References are resolved like the JVM resolves them: a
// member not declared by the named owner is looked up in its superclasses, then its
// superinterfaces.
type Map struct {
	mu          sync.RWMutex
	classes     *orderedmap.OrderedMap[declaration.ClassName, *declaration.Class]
	methods     map[declaration.MethodID]*declaration.Method
	fields      map[declaration.FieldID]*declaration.Field
	annotations map[declaration.Position][]annotation.Data
}

var _ DeclarationIndex = (*Map)(nil)

// NewMap returns an empty index.
func NewMap() *Map {
	return &Map{
		classes:     orderedmap.New[declaration.ClassName, *declaration.Class](),
		methods:     make(map[declaration.MethodID]*declaration.Method),
		fields:      make(map[declaration.FieldID]*declaration.Field),
		annotations: make(map[declaration.Position][]annotation.Data),
	}
}

// AddClass indexes a class and its members.
func (m *Map) AddClass(c *declaration.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.classes.Load(c.Name); ok {
		return fmt.Errorf("class %s indexed twice", c.Name)
	}
	m.classes.Store(c.Name, c)
	for _, meth := range c.Methods {
		m.methods[meth.ID()] = meth
	}
	for _, f := range c.Fields {
		m.fields[f.ID()] = f
	}
	return nil
}

// Annotate records a declared annotation at p.
func (m *Map) Annotate(p declaration.Position, d annotation.Data) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations[p] = append(m.annotations[p], d)
}

// Class returns the indexed class with the given name.
func (m *Map) Class(name declaration.ClassName) (*declaration.Class, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.classes.Load(name)
}

// Classes returns the indexed classes in the order they were added.
func (m *Map) Classes() []*declaration.Class {
	m.mu.RLock()
	defer m.mu.RUnlock()
	classes := make([]*declaration.Class, 0, m.classes.Len())
	m.classes.OrderedRange(func(_ declaration.ClassName, c *declaration.Class) bool {
		classes = append(classes, c)
		return true
	})
	return classes
}

// MethodByOwnerAndSignature implements DeclarationIndex.
func (m *Map) MethodByOwnerAndSignature(owner declaration.ClassName, signature string) (*declaration.Method, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paren := strings.IndexByte(signature, '(')
	if paren < 0 {
		return nil, false
	}
	name, desc := signature[:paren], signature[paren:]
	if meth, ok := m.methods[declaration.MethodID{Owner: owner, Name: name, Desc: desc}]; ok {
		return meth, true
	}
	var found *declaration.Method
	m.walkSupertypes(owner, func(c *declaration.Class) bool {
		meth, ok := m.methods[declaration.MethodID{Owner: c.Name, Name: name, Desc: desc}]
		if ok {
			found = meth
		}
		return !ok
	})
	return found, found != nil
}

// FieldByOwnerAndName implements DeclarationIndex.
func (m *Map) FieldByOwnerAndName(owner declaration.ClassName, name string) (*declaration.Field, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if f, ok := m.fields[declaration.FieldID{Owner: owner, Name: name}]; ok {
		return f, true
	}
	var found *declaration.Field
	m.walkSupertypes(owner, func(c *declaration.Class) bool {
		f, ok := m.fields[declaration.FieldID{Owner: c.Name, Name: name}]
		if ok {
			found = f
		}
		return !ok
	})
	return found, found != nil
}

// DeclaredAnnotations implements DeclarationIndex.
func (m *Map) DeclaredAnnotations(p declaration.Position) []annotation.Data {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.annotations[p]
}

// walkSupertypes visits owner and then its indexed supertypes, superclasses before interfaces,
// until visit returns false. Callers must hold the read lock.
func (m *Map) walkSupertypes(owner declaration.ClassName, visit func(*declaration.Class) bool) {
	seen := map[declaration.ClassName]bool{owner: true}
	var interfaces []declaration.ClassName
	for name := owner; name != ""; {
		c, ok := m.classes.Load(name)
		if !ok {
			break
		}
		if !visit(c) {
			return
		}
		interfaces = append(interfaces, c.Interfaces...)
		name = c.Super
		if seen[name] {
			break
		}
		seen[name] = true
	}
	for len(interfaces) > 0 {
		name := interfaces[0]
		interfaces = interfaces[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		c, ok := m.classes.Load(name)
		if !ok {
			continue
		}
		if !visit(c) {
			return
		}
		interfaces = append(interfaces, c.Interfaces...)
	}
}
