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

// Package asm parses a textual bytecode listing into instructions. It stands in for a class file
// decoder in tests and in the program loader. The syntax follows Jasmin: one instruction per line
// with lower case mnemonics, labels as "Name:", and directives for the exception table and the
// local variable limit.
//
//	.limit locals 3
//	.catch java/io/IOException from Try to EndTry using Handler
//	    aload 1
//	    ifnonnull Done
//	    invokevirtual java/util/List.size()I
//	    getfield com/acme/Box.value Ljava/lang/Object;
//	    lookupswitch 1:A 2:B default:C
//	Done:
//	    return
//
// Comments start with ';' or '#' at the beginning of a line or after whitespace.
package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/declaration"
)

// ErrSyntax is returned for listings that cannot be parsed.
var ErrSyntax = errors.New("bytecode syntax error")

// Code is a parsed method body.
type Code struct {
	Instructions []*cfg.Instruction
	TryCatches   []cfg.TryCatch
	// MaxLocals is the value of the ".limit locals" directive, 0 if absent.
	MaxLocals int
}

// Build links the code into the control-flow graph of m.
func (c *Code) Build(m *declaration.Method) (*cfg.Graph, error) {
	return cfg.Build(m, c.Instructions, c.TryCatches, c.MaxLocals)
}

// pending is an operand that refers to a label not yet known.
type pending struct {
	insn  *cfg.Instruction
	slot  int
	label string
	line  int
}

type catchDirective struct {
	typ               declaration.ClassName
	from, to, handler string
	line              int
}

type parser struct {
	code    Code
	labels  map[string]int
	fixups  []pending
	catches []catchDirective
}

// Parse parses a listing.
func Parse(src string) (*Code, error) {
	p := &parser{labels: make(map[string]int)}
	for i, raw := range strings.Split(src, "\n") {
		line := i + 1
		text := stripComment(raw)
		if text == "" {
			continue
		}
		if err := p.parseLine(text, line); err != nil {
			return nil, fmt.Errorf("%w: line %d: %q: %s", ErrSyntax, line, strings.TrimSpace(raw), err)
		}
	}
	if err := p.resolve(); err != nil {
		return nil, err
	}
	return &p.code, nil
}

// MustParse is like Parse but panics on error. It is meant for tests.
func MustParse(src string) *Code {
	c, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return c
}

func stripComment(s string) string {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuote = !inQuote
		case (c == ';' || c == '#') && !inQuote && (i == 0 || s[i-1] == ' ' || s[i-1] == '\t'):
			// Descriptors end in ';', so a comment marker must start a word.
			return strings.TrimSpace(s[:i])
		}
	}
	return strings.TrimSpace(s)
}

func (p *parser) parseLine(text string, line int) error {
	if strings.HasSuffix(text, ":") && !strings.ContainsAny(text, " \t") {
		name := strings.TrimSuffix(text, ":")
		if _, ok := p.labels[name]; ok {
			return fmt.Errorf("duplicate label %q", name)
		}
		p.labels[name] = len(p.code.Instructions)
		return nil
	}
	if strings.HasPrefix(text, ".") {
		return p.parseDirective(text, line)
	}

	mnemonic := strings.Fields(text)[0]
	rest := strings.TrimSpace(text[len(mnemonic):])
	op, ok := cfg.OpcodeByName(mnemonic)
	if !ok {
		return fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
	insn := &cfg.Instruction{Op: op, Line: line}
	if err := p.parseOperands(insn, rest, line); err != nil {
		return err
	}
	p.code.Instructions = append(p.code.Instructions, insn)
	return nil
}

func (p *parser) parseDirective(text string, line int) error {
	fields := strings.Fields(text)
	switch fields[0] {
	case ".limit":
		if len(fields) != 3 || fields[1] != "locals" {
			return errors.New(`expected ".limit locals N"`)
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil || n < 0 {
			return fmt.Errorf("bad locals limit %q", fields[2])
		}
		p.code.MaxLocals = n
	case ".catch":
		if len(fields) != 8 || fields[2] != "from" || fields[4] != "to" || fields[6] != "using" {
			return errors.New(`expected ".catch Type from Start to End using Handler"`)
		}
		typ := declaration.ClassName(fields[1])
		if typ == "all" {
			typ = ""
		}
		p.catches = append(p.catches, catchDirective{typ: typ, from: fields[3], to: fields[5], handler: fields[7], line: line})
	default:
		return fmt.Errorf("unknown directive %q", fields[0])
	}
	return nil
}

func (p *parser) parseOperands(insn *cfg.Instruction, rest string, line int) error {
	op := insn.Op
	fields := strings.Fields(rest)
	want := func(n int) error {
		if len(fields) != n {
			return fmt.Errorf("%s takes %d operand(s), got %d", op, n, len(fields))
		}
		return nil
	}
	atoi := func(s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("bad integer %q", s)
		}
		return n, nil
	}

	var err error
	switch {
	case (op >= cfg.ILOAD && op <= cfg.ALOAD) || (op >= cfg.ISTORE && op <= cfg.ASTORE):
		if err = want(1); err == nil {
			insn.Var, err = atoi(fields[0])
		}
	case op == cfg.IINC:
		if err = want(2); err == nil {
			if insn.Var, err = atoi(fields[0]); err == nil {
				insn.Int, err = atoi(fields[1])
			}
		}
	case op == cfg.BIPUSH || op == cfg.SIPUSH:
		if err = want(1); err == nil {
			insn.Int, err = atoi(fields[0])
		}
	case op == cfg.NEWARRAY:
		if err = want(1); err == nil {
			insn.Int, err = arrayTypeCode(fields[0])
		}
	case op == cfg.LDC:
		if rest == "" {
			return errors.New("ldc needs a constant")
		}
		insn.Const, err = parseConstant(rest)
	case insn.IsFieldAccess():
		if err = want(2); err == nil {
			insn.Owner, insn.Name, err = splitMember(fields[0])
			insn.Desc = fields[1]
			if err == nil {
				_, err = declaration.ParseType(insn.Desc)
			}
		}
	case op == cfg.INVOKEDYNAMIC:
		if err = want(1); err == nil {
			name, desc, ok := strings.Cut(fields[0], "(")
			if !ok {
				return fmt.Errorf("bad call site %q", fields[0])
			}
			insn.Name, insn.Desc = name, "("+desc
			_, _, err = declaration.ParseMethodDescriptor(insn.Desc)
		}
	case insn.IsInvoke():
		if err = want(1); err == nil {
			paren := strings.IndexByte(fields[0], '(')
			if paren < 0 {
				return fmt.Errorf("bad method reference %q", fields[0])
			}
			insn.Owner, insn.Name, err = splitMember(fields[0][:paren])
			insn.Desc = fields[0][paren:]
			if err == nil {
				_, _, err = declaration.ParseMethodDescriptor(insn.Desc)
			}
		}
	case op == cfg.NEW || op == cfg.ANEWARRAY || op == cfg.CHECKCAST || op == cfg.INSTANCEOF:
		if err = want(1); err == nil {
			insn.Owner = declaration.ClassName(fields[0])
		}
	case op == cfg.MULTIANEWARRAY:
		if err = want(2); err == nil {
			insn.Owner = declaration.ClassName(fields[0])
			insn.Int, err = atoi(fields[1])
		}
	case op == cfg.GOTO || insn.IsConditionalJump():
		if err = want(1); err == nil {
			insn.Targets = []int{-1}
			p.fixups = append(p.fixups, pending{insn: insn, slot: 0, label: fields[0], line: line})
		}
	case insn.IsSwitch():
		err = p.parseSwitch(insn, fields, line)
	default:
		err = want(0)
	}
	return err
}

// parseSwitch parses "key:Label ... default:Label".
func (p *parser) parseSwitch(insn *cfg.Instruction, fields []string, line int) error {
	var def string
	var labels []string
	for _, f := range fields {
		key, label, ok := strings.Cut(f, ":")
		if !ok || label == "" {
			return fmt.Errorf("bad switch case %q", f)
		}
		if key == "default" {
			def = label
			continue
		}
		k, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			return fmt.Errorf("bad switch key %q", key)
		}
		insn.Keys = append(insn.Keys, int32(k))
		labels = append(labels, label)
	}
	if def == "" {
		return errors.New("switch needs a default case")
	}
	insn.Targets = make([]int, len(labels)+1)
	for i, l := range append([]string{def}, labels...) {
		insn.Targets[i] = -1
		p.fixups = append(p.fixups, pending{insn: insn, slot: i, label: l, line: line})
	}
	return nil
}

func (p *parser) resolve() error {
	n := len(p.code.Instructions)
	lookup := func(label string, line int) (int, error) {
		i, ok := p.labels[label]
		if !ok {
			return 0, fmt.Errorf("%w: line %d: undefined label %q", ErrSyntax, line, label)
		}
		return i, nil
	}
	for _, f := range p.fixups {
		i, err := lookup(f.label, f.line)
		if err != nil {
			return err
		}
		if i >= n {
			return fmt.Errorf("%w: line %d: label %q does not precede an instruction", ErrSyntax, f.line, f.label)
		}
		f.insn.Targets[f.slot] = i
	}
	for _, c := range p.catches {
		from, err := lookup(c.from, c.line)
		if err != nil {
			return err
		}
		to, err := lookup(c.to, c.line)
		if err != nil {
			return err
		}
		handler, err := lookup(c.handler, c.line)
		if err != nil {
			return err
		}
		p.code.TryCatches = append(p.code.TryCatches, cfg.TryCatch{Start: from, End: to, Handler: handler, Type: c.typ})
	}
	return nil
}

// splitMember splits "owner.name" at the last dot.
func splitMember(s string) (declaration.ClassName, string, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("bad member reference %q", s)
	}
	return declaration.ClassName(s[:i]), s[i+1:], nil
}

var arrayTypeCodes = map[string]int{
	"boolean": 4, "char": 5, "float": 6, "double": 7, "byte": 8, "short": 9, "int": 10, "long": 11,
}

func arrayTypeCode(s string) (int, error) {
	if c, ok := arrayTypeCodes[s]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("bad array type %q", s)
}

// parseConstant parses an ldc operand: a quoted string, "class Name", or a number. Numbers with an
// L suffix are longs, an f suffix floats, a d suffix or a decimal point doubles, others ints.
func parseConstant(s string) (any, error) {
	switch {
	case strings.HasPrefix(s, `"`):
		return strconv.Unquote(s)
	case strings.HasPrefix(s, "class "):
		return declaration.ObjectTypeOf(declaration.ClassName(strings.TrimSpace(strings.TrimPrefix(s, "class ")))), nil
	case strings.HasSuffix(s, "L"):
		return strconv.ParseInt(strings.TrimSuffix(s, "L"), 10, 64)
	case strings.HasSuffix(s, "f"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "f"), 32)
		return float32(f), err
	case strings.HasSuffix(s, "d"):
		return strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
	case strings.Contains(s, "."):
		return strconv.ParseFloat(s, 64)
	default:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	}
}
