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

// Access is the access flag bitmask of a class, method or field as stored in class files.
type Access uint16

// Access flags used by the inference.
const (
	AccPublic    Access = 0x0001
	AccPrivate   Access = 0x0002
	AccProtected Access = 0x0004
	AccStatic    Access = 0x0008
	AccFinal     Access = 0x0010
	AccBridge    Access = 0x0040
	AccVarargs   Access = 0x0080
	AccNative    Access = 0x0100
	AccInterface Access = 0x0200
	AccAbstract  Access = 0x0400
	AccSynthetic Access = 0x1000
	AccEnum      Access = 0x4000
)

// Has returns true if every flag in f is set.
func (a Access) Has(f Access) bool {
	return a&f == f
}

// IsStatic returns true if AccStatic is set.
func (a Access) IsStatic() bool { return a.Has(AccStatic) }

// IsPrivate returns true if AccPrivate is set.
func (a Access) IsPrivate() bool { return a.Has(AccPrivate) }

// IsFinal returns true if AccFinal is set.
func (a Access) IsFinal() bool { return a.Has(AccFinal) }

var accessNames = []struct {
	name string
	flag Access
}{
	{"public", AccPublic},
	{"private", AccPrivate},
	{"protected", AccProtected},
	{"static", AccStatic},
	{"final", AccFinal},
	{"native", AccNative},
	{"interface", AccInterface},
	{"abstract", AccAbstract},
	{"synthetic", AccSynthetic},
	{"enum", AccEnum},
}

// ParseAccess converts a list of modifier keywords to an access mask. Unknown keywords are
// returned in the second result.
func ParseAccess(words []string) (Access, []string) {
	var (
		a       Access
		unknown []string
	)
outer:
	for _, w := range words {
		for _, n := range accessNames {
			if n.name == w {
				a |= n.flag
				continue outer
			}
		}
		unknown = append(unknown, w)
	}
	return a, unknown
}
