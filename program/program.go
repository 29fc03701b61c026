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

// Package program loads the classes to analyze from YAML documents. Each class lists its
// supertypes, fields and methods; method bodies are bytecode listings in the syntax of package
// asm, and declared annotations are given per position.
//
//	classes:
//	  - name: com/acme/Box
//	    super: java/lang/Object
//	    access: [public]
//	    fields:
//	      - name: value
//	        desc: Ljava/lang/Object;
//	        access: [private]
//	    methods:
//	      - name: get
//	        desc: ()Ljava/lang/Object;
//	        access: [public]
//	        annotations:
//	          return: [org.jetbrains.annotations.Nullable]
//	        code: |
//	          aload 0
//	          getfield com/acme/Box.value Ljava/lang/Object;
//	          areturn
package program

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/jqual/annotation"
	"go.uber.org/jqual/asm"
	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/index"
	"gopkg.in/yaml.v3"
)

type fileSpec struct {
	Classes []classSpec `yaml:"classes"`
}

type classSpec struct {
	Name       string       `yaml:"name"`
	Access     []string     `yaml:"access"`
	Super      string       `yaml:"super"`
	Interfaces []string     `yaml:"interfaces"`
	Fields     []fieldSpec  `yaml:"fields"`
	Methods    []methodSpec `yaml:"methods"`
}

type fieldSpec struct {
	Name        string         `yaml:"name"`
	Desc        string         `yaml:"desc"`
	Access      []string       `yaml:"access"`
	Value       any            `yaml:"value"`
	Annotations annotationList `yaml:"annotations"`
}

type methodSpec struct {
	Name        string                `yaml:"name"`
	Desc        string                `yaml:"desc"`
	Access      []string              `yaml:"access"`
	Annotations methodAnnotationsSpec `yaml:"annotations"`
	Code        string                `yaml:"code"`
}

type methodAnnotationsSpec struct {
	Return annotationList         `yaml:"return"`
	Params map[int]annotationList `yaml:"params"`
}

// annotationList accepts annotation class names as plain strings or as mappings with attributes.
type annotationList []annotation.Data

func (l *annotationList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: annotations must be a list", node.Line)
	}
	for _, item := range node.Content {
		var d annotation.Data
		switch item.Kind {
		case yaml.ScalarNode:
			d.Class = item.Value
		case yaml.MappingNode:
			if err := item.Decode(&d); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: annotation must be a class name or a mapping", item.Line)
		}
		*l = append(*l, d)
	}
	return nil
}

// Program is a set of loaded classes with their method bodies. The embedded index holds every
// class, in load order, and the declared annotations.
type Program struct {
	*index.Map
	bodies  map[declaration.MethodID]*asm.Code
	sources map[declaration.MethodID]string
}

// New returns an empty program.
func New() *Program {
	return &Program{
		Map:     index.NewMap(),
		bodies:  make(map[declaration.MethodID]*asm.Code),
		sources: make(map[declaration.MethodID]string),
	}
}

// Load reads the program from the YAML files at paths.
func Load(paths ...string) (*Program, error) {
	p := New()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		err = p.Add(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return p, nil
}

// Parse reads a program from a single YAML document.
func Parse(src string) (*Program, error) {
	p := New()
	if err := p.Add(strings.NewReader(src)); err != nil {
		return nil, err
	}
	return p, nil
}

// Add reads the classes of a YAML document into p. Classes already in p are an error.
func (p *Program) Add(r io.Reader) error {
	var file fileSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode program: %w", err)
	}
	var errs []error
	for _, cs := range file.Classes {
		if err := p.addClass(cs); err != nil {
			errs = append(errs, fmt.Errorf("class %s: %w", cs.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Program) addClass(cs classSpec) error {
	if cs.Name == "" {
		return errors.New("missing name")
	}
	access, err := parseAccess(cs.Access)
	if err != nil {
		return err
	}
	c := &declaration.Class{
		Name:   declaration.ClassName(cs.Name),
		Access: access,
		Super:  declaration.ClassName(cs.Super),
	}
	if c.Super == "" && c.Name != "java/lang/Object" && !c.IsInterface() {
		c.Super = "java/lang/Object"
	}
	for _, i := range cs.Interfaces {
		c.Interfaces = append(c.Interfaces, declaration.ClassName(i))
	}

	type annotated struct {
		pos  declaration.Position
		anns annotationList
	}
	var declared []annotated
	bodies := make(map[declaration.MethodID]*asm.Code)
	sources := make(map[declaration.MethodID]string)

	for _, fs := range cs.Fields {
		access, err := parseAccess(fs.Access)
		if err != nil {
			return fmt.Errorf("field %s: %w", fs.Name, err)
		}
		f, err := declaration.NewField(c.Name, access, fs.Name, fs.Desc, fs.Value)
		if err != nil {
			return err
		}
		c.Fields = append(c.Fields, f)
		declared = append(declared, annotated{declaration.FieldPosition(f.ID()), fs.Annotations})
	}

	for _, ms := range cs.Methods {
		access, err := parseAccess(ms.Access)
		if err != nil {
			return fmt.Errorf("method %s: %w", ms.Name, err)
		}
		m, err := declaration.NewMethod(c.Name, access, ms.Name, ms.Desc)
		if err != nil {
			return err
		}
		c.Methods = append(c.Methods, m)
		positions := declaration.MethodPositions{Method: m}
		if len(ms.Annotations.Return) > 0 {
			declared = append(declared, annotated{positions.Return(), ms.Annotations.Return})
		}
		for i, anns := range ms.Annotations.Params {
			if i < 0 || i >= len(m.Params()) {
				return fmt.Errorf("method %s: annotated parameter %d out of range", m, i)
			}
			declared = append(declared, annotated{positions.Parameter(i), anns})
		}
		if strings.TrimSpace(ms.Code) == "" {
			continue
		}
		code, err := asm.Parse(ms.Code)
		if err != nil {
			return fmt.Errorf("method %s: %w", m, err)
		}
		bodies[m.ID()] = code
		sources[m.ID()] = ms.Code
	}

	if err := p.AddClass(c); err != nil {
		return err
	}
	for _, d := range declared {
		for _, a := range d.anns {
			p.Annotate(d.pos, a)
		}
	}
	for id, code := range bodies {
		p.bodies[id] = code
	}
	for id, src := range sources {
		p.sources[id] = src
	}
	return nil
}

func parseAccess(words []string) (declaration.Access, error) {
	a, unknown := declaration.ParseAccess(words)
	if len(unknown) > 0 {
		return 0, fmt.Errorf("unknown access modifiers %v", unknown)
	}
	return a, nil
}

// Methods returns the methods with a body, in load order.
func (p *Program) Methods() []*declaration.Method {
	var methods []*declaration.Method
	for _, c := range p.Classes() {
		for _, m := range c.Methods {
			if _, ok := p.bodies[m.ID()]; ok {
				methods = append(methods, m)
			}
		}
	}
	return methods
}

// Fields returns the fields of all classes, in load order.
func (p *Program) Fields() []*declaration.Field {
	var fields []*declaration.Field
	for _, c := range p.Classes() {
		fields = append(fields, c.Fields...)
	}
	return fields
}

// Method returns the method with the given owner and name+descriptor.
func (p *Program) Method(owner declaration.ClassName, signature string) (*declaration.Method, bool) {
	c, ok := p.Class(owner)
	if !ok {
		return nil, false
	}
	for _, m := range c.Methods {
		if m.ID().Signature() == signature {
			return m, true
		}
	}
	return nil, false
}

// Source returns the bytecode listing of m as written in the program, comments included.
func (p *Program) Source(m *declaration.Method) string {
	return p.sources[m.ID()]
}

// Graph builds the control-flow graph of m, which must have a body.
func (p *Program) Graph(m *declaration.Method) (*cfg.Graph, error) {
	code, ok := p.bodies[m.ID()]
	if !ok {
		return nil, fmt.Errorf("method %s has no body", m)
	}
	return code.Build(m)
}
