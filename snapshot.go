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

package jqual

import (
	"encoding/gob"
	"fmt"
	"io"

	"go.uber.org/jqual/annotation"
)

// Snapshot is the persistent form of the annotations of a run. It is encoded with gob; each
// annotation map is compressed on its own.
type Snapshot struct {
	Nullability *annotation.Annotations[annotation.Nullability]
	Mutability  *annotation.Annotations[annotation.Mutability]
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Nullability: annotation.New[annotation.Nullability](),
		Mutability:  annotation.New[annotation.Mutability](),
	}
}

// Encode writes the snapshot to w.
func (s *Snapshot) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a snapshot written by Encode.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	s := NewSnapshot()
	if err := gob.NewDecoder(r).Decode(s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
