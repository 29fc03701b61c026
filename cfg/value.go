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

package cfg

import (
	"fmt"

	"go.uber.org/jqual/declaration"
)

// Value is an abstract value occupying a stack or local slot. Values are immutable once created.
// The same Value flows unchanged through loads, stores and stack shuffles, so its identity tracks
// the value's provenance.
type Value struct {
	// ID is unique within one method analysis.
	ID   int
	Type declaration.Type
	// CreatedAt is the instruction that produced the value, nil for values present on method entry
	// (the receiver and parameters).
	CreatedAt *Instruction
	// Interesting marks values corresponding to declaration positions: reference parameters and
	// field reads.
	Interesting bool
	// Param is the declared parameter index of an entry value, -1 otherwise.
	Param int
	// Caught marks the exception value pushed on entry to a handler; CreatedAt is then the first
	// instruction of the handler.
	Caught bool
}

// IsParameter returns true if the value is a declared parameter on method entry.
func (v *Value) IsParameter() bool {
	return v.Param >= 0
}

// IsReceiver returns true if the value is the receiver of an instance method on entry.
func (v *Value) IsReceiver() bool {
	return v.CreatedAt == nil && v.Param < 0
}

func (v *Value) String() string {
	switch {
	case v.IsParameter():
		return fmt.Sprintf("v%d(param %d %s)", v.ID, v.Param, v.Type)
	case v.CreatedAt == nil:
		return fmt.Sprintf("v%d(this %s)", v.ID, v.Type)
	case v.Caught:
		return fmt.Sprintf("v%d(catch @%d %s)", v.ID, v.CreatedAt.Index, v.Type)
	default:
		return fmt.Sprintf("v%d(@%d %s)", v.ID, v.CreatedAt.Index, v.Type)
	}
}
