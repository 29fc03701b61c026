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

package mutability

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.uber.org/jqual/config"
	"go.uber.org/jqual/declaration"
	"go.uber.org/jqual/hierarchy"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// catalogFile is the YAML form of a catalog.
type catalogFile struct {
	Mutating    map[string][]string `yaml:"mutating"`
	Propagating map[string][]string `yaml:"propagating"`
	Supertypes  map[string][]string `yaml:"supertypes"`
}

type methodTable map[declaration.ClassName]map[string]bool

func newMethodTable(entries map[string][]string) methodTable {
	t := make(methodTable, len(entries))
	for owner, names := range entries {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			set[n] = true
		}
		t[declaration.ClassName(owner)] = set
	}
	return t
}

// Catalog lists the mutating and the mutability-propagating methods of library types. A method is
// looked up under the exact owner of the invocation first; on a miss, the supertypes of the owner
// are searched breadth-first. Owners whose hierarchy is not fully known are treated as not
// matching and reported once through the logger. A Catalog is safe for concurrent use.
type Catalog struct {
	mutating    methodTable
	propagating methodTable
	builtin     map[declaration.ClassName][]declaration.ClassName
	supers      *hierarchy.SupertypeIndex
	logger      *slog.Logger

	// reported holds the owners whose unresolved supertypes were logged.
	reported sync.Map
}

// DefaultCatalog returns the built-in catalog of java.util collections.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(builtinCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in mutability catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from r.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read mutability catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a YAML catalog with "mutating", "propagating" and "supertypes" sections.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mutability catalog: %w", err)
	}
	builtin := make(map[declaration.ClassName][]declaration.ClassName, len(file.Supertypes))
	for name, supers := range file.Supertypes {
		ss := make([]declaration.ClassName, 0, len(supers))
		for _, s := range supers {
			ss = append(ss, declaration.ClassName(s))
		}
		builtin[declaration.ClassName(name)] = ss
	}
	return newCatalog(newMethodTable(file.Mutating), newMethodTable(file.Propagating), builtin,
		hierarchy.BuildClasses(nil), config.DefaultSupertypeDepth, nil), nil
}

func newCatalog(
	mutating, propagating methodTable,
	builtin map[declaration.ClassName][]declaration.ClassName,
	g *hierarchy.Graph[*declaration.Class],
	depth int,
	logger *slog.Logger,
) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{
		mutating:    mutating,
		propagating: propagating,
		builtin:     builtin,
		supers:      hierarchy.NewSupertypeIndex(g, builtin, depth),
		logger:      logger,
	}
}

// WithHierarchy returns a catalog with the same tables whose fallback search also knows the
// supertypes of the classes in g, searching at most depth levels and logging to logger.
func (c *Catalog) WithHierarchy(g *hierarchy.Graph[*declaration.Class], depth int, logger *slog.Logger) *Catalog {
	return newCatalog(c.mutating, c.propagating, c.builtin, g, depth, logger)
}

// IsMutating returns true if calling name on a receiver of type owner mutates the receiver.
func (c *Catalog) IsMutating(owner declaration.ClassName, name string) bool {
	return c.lookup(c.mutating, owner, name)
}

// IsPropagating returns true if the result of calling name on a receiver of type owner is a view
// of the receiver.
func (c *Catalog) IsPropagating(owner declaration.ClassName, name string) bool {
	return c.lookup(c.propagating, owner, name)
}

func (c *Catalog) lookup(t methodTable, owner declaration.ClassName, name string) bool {
	if t[owner][name] {
		return true
	}
	res := c.supers.Search(owner, func(n declaration.ClassName) bool { return t[n][name] })
	switch res.Resolution {
	case hierarchy.Found:
		return true
	case hierarchy.Unresolved:
		if _, loaded := c.reported.LoadOrStore(owner, struct{}{}); !loaded {
			c.logger.Debug("incomplete supertypes in mutability catalog lookup, assuming no mutation",
				"class", string(owner), "method", name, "missing", res.Missing)
		}
	}
	return false
}
