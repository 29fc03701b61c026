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

package lattice

import "fmt"

// CheckLaws verifies that the merge of s is a join over its elements: Initial is a unit, and merge
// is idempotent, commutative and associative. It returns the first violation found.
func CheckLaws[Q Qualifier](s QualifierSet[Q]) error {
	elems := s.Elements()
	init := s.Initial()
	for _, x := range elems {
		if !s.Contains(x) {
			return fmt.Errorf("%s: element %s not contained in its own set", s.ID(), x)
		}
		if got := s.Merge(x, init); !same(got, x) {
			return fmt.Errorf("%s: merge(%s, initial) = %s", s.ID(), x, got)
		}
		if got := s.Merge(x, x); !same(got, x) {
			return fmt.Errorf("%s: merge(%s, %s) = %s", s.ID(), x, x, got)
		}
		for _, y := range elems {
			xy, yx := s.Merge(x, y), s.Merge(y, x)
			if !same(xy, yx) {
				return fmt.Errorf("%s: merge(%s, %s) = %s but merge(%s, %s) = %s", s.ID(), x, y, xy, y, x, yx)
			}
			for _, z := range elems {
				if l, r := s.Merge(xy, z), s.Merge(x, s.Merge(y, z)); !same(l, r) {
					return fmt.Errorf("%s: merge not associative for %s, %s, %s", s.ID(), x, y, z)
				}
			}
		}
	}
	return nil
}

// same compares qualifiers as interface values.
func same(a, b Qualifier) bool {
	return a == b
}
