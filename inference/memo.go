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

package inference

import (
	"bytes"
	"encoding/gob"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/klauspost/compress/s2"
	"go.uber.org/jqual/declaration"
)

// FieldMemo records, per analyzed method, the qualifier of the values the method writes to each
// field. Later analyses of readers fold the writes of every method into the field's qualifier.
// It is safe for concurrent use; a session reads from a Snapshot taken at the start of a round and
// records into the live memo.
type FieldMemo[V comparable] struct {
	mu      sync.RWMutex
	merge   func(V, V) V
	methods map[declaration.MethodID]map[declaration.FieldID]V
}

// NewFieldMemo returns an empty memo joining the writes of different methods with merge.
func NewFieldMemo[V comparable](merge func(V, V) V) *FieldMemo[V] {
	return &FieldMemo[V]{merge: merge, methods: make(map[declaration.MethodID]map[declaration.FieldID]V)}
}

// Record stores the field writes of method, replacing what an earlier analysis of the same method
// recorded, and reports whether the memo changed.
func (m *FieldMemo[V]) Record(method declaration.MethodID, writes map[declaration.FieldID]V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.methods[method]
	if len(writes) == 0 {
		delete(m.methods, method)
		return ok
	}
	if ok && maps.Equal(old, writes) {
		return false
	}
	m.methods[method] = maps.Clone(writes)
	return true
}

// Writes returns the field writes recorded for method.
func (m *FieldMemo[V]) Writes(method declaration.MethodID) (map[declaration.FieldID]V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.methods[method]
	return maps.Clone(w), ok
}

// Field returns the join of every recorded write to f, and false if no method writes f.
func (m *FieldMemo[V]) Field(f declaration.FieldID) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		joined V
		found  bool
	)
	for _, writes := range m.methods {
		v, ok := writes[f]
		if !ok {
			continue
		}
		if !found {
			joined, found = v, true
			continue
		}
		joined = m.merge(joined, v)
	}
	return joined, found
}

// Writers returns the methods recorded as writing f, ordered by name.
func (m *FieldMemo[V]) Writers(f declaration.FieldID) []declaration.MethodID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var writers []declaration.MethodID
	for method, writes := range m.methods {
		if _, ok := writes[f]; ok {
			writers = append(writers, method)
		}
	}
	slices.SortFunc(writers, compareMethods)
	return writers
}

// Fields returns every field with a recorded write, ordered by name.
func (m *FieldMemo[V]) Fields() []declaration.FieldID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[declaration.FieldID]bool)
	for _, writes := range m.methods {
		for f := range writes {
			seen[f] = true
		}
	}
	return slices.SortedFunc(maps.Keys(seen), compareFields)
}

// Len returns the number of methods with recorded writes.
func (m *FieldMemo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.methods)
}

// Snapshot returns a copy of the memo that later records do not affect.
func (m *FieldMemo[V]) Snapshot() *FieldMemo[V] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := NewFieldMemo(m.merge)
	for method, writes := range m.methods {
		s.methods[method] = maps.Clone(writes)
	}
	return s
}

// Equal returns true if both memos hold the same writes.
func (m *FieldMemo[V]) Equal(o *FieldMemo[V]) bool {
	if m == o {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o.mu.RLock()
	defer o.mu.RUnlock()

	return maps.EqualFunc(m.methods, o.methods, func(a, b map[declaration.FieldID]V) bool {
		return maps.Equal(a, b)
	})
}

// memoEntry is the wire form of one recorded write.
type memoEntry[V comparable] struct {
	Method declaration.MethodID
	Field  declaration.FieldID
	Value  V
}

// GobEncode encodes the memo as a compressed gob stream of writes ordered by method and field.
func (m *FieldMemo[V]) GobEncode() (b []byte, err error) {
	m.mu.RLock()
	methods := slices.SortedFunc(maps.Keys(m.methods), compareMethods)
	var entries []memoEntry[V]
	for _, method := range methods {
		writes := m.methods[method]
		for _, f := range slices.SortedFunc(maps.Keys(writes), compareFields) {
			entries = append(entries, memoEntry[V]{Method: method, Field: f, Value: writes[f]})
		}
	}
	m.mu.RUnlock()

	var buf bytes.Buffer
	writer := s2.NewWriter(&buf)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := gob.NewEncoder(writer).Encode(entries); err != nil {
		return nil, err
	}

	// Close the s2 writer before getting the bytes such that we have complete information.
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode replaces the recorded writes with the decoded ones. The merge function is kept.
func (m *FieldMemo[V]) GobDecode(input []byte) error {
	var entries []memoEntry[V]
	if err := gob.NewDecoder(s2.NewReader(bytes.NewBuffer(input))).Decode(&entries); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods = make(map[declaration.MethodID]map[declaration.FieldID]V)
	for _, e := range entries {
		writes, ok := m.methods[e.Method]
		if !ok {
			writes = make(map[declaration.FieldID]V)
			m.methods[e.Method] = writes
		}
		writes[e.Field] = e.Value
	}
	return nil
}

func compareMethods(a, b declaration.MethodID) int {
	return strings.Compare(a.String(), b.String())
}

func compareFields(a, b declaration.FieldID) int {
	return strings.Compare(a.String(), b.String())
}
