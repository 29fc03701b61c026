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

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/jqual/cfg"
	"go.uber.org/jqual/declaration"
)

// level is a three-point chain lattice used for testing.
type level uint8

const (
	low level = iota
	mid
	high
)

func (level) AnalysisType() AnalysisType { return Nullability }

func (l level) String() string { return [...]string{"low", "mid", "high"}[l] }

type levelSet struct{}

func (levelSet) ID() AnalysisType { return Nullability }

func (levelSet) Initial() level { return low }

func (levelSet) Merge(a, b level) level { return max(a, b) }

func (levelSet) Contains(q Qualifier) bool {
	_, ok := q.(level)
	return ok
}

func (levelSet) Elements() []level { return []level{low, mid, high} }

// flag is a two-point lattice in another dimension.
type flag bool

func (flag) AnalysisType() AnalysisType { return Mutability }

func (f flag) String() string {
	if f {
		return "set"
	}
	return "unset"
}

type flagSet struct{}

func (flagSet) ID() AnalysisType { return Mutability }

func (flagSet) Initial() flag { return false }

func (flagSet) Merge(a, b flag) flag { return a || b }

func (flagSet) Contains(q Qualifier) bool {
	_, ok := q.(flag)
	return ok
}

func (flagSet) Elements() []flag { return []flag{false, true} }

// brokenSet violates commutativity.
type brokenSet struct{ levelSet }

func (brokenSet) Merge(a, _ level) level { return a }

func TestCheckLaws(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckLaws[level](levelSet{}))
	require.NoError(t, CheckLaws[flag](flagSet{}))
	require.Error(t, CheckLaws[level](brokenSet{}))
}

func newProduct(t *testing.T) *Product {
	t.Helper()
	p, err := NewProduct(Erase[level](levelSet{}), Erase[flag](flagSet{}))
	require.NoError(t, err)
	return p
}

func TestProduct(t *testing.T) {
	t.Parallel()

	p := newProduct(t)
	require.True(t, p.Has(Mutability))
	init := p.Initial()
	require.Equal(t, low, Get[level](init, levelSet{}))
	require.Equal(t, flag(false), Get[flag](init, flagSet{}))

	a := init.With(mid)
	b := init.With(flag(true))
	m := p.Merge(a, b)
	require.Equal(t, mid, Get[level](m, levelSet{}))
	require.Equal(t, flag(true), Get[flag](m, flagSet{}))
	require.Equal(t, m, p.Merge(b, a))
	require.Equal(t, a, p.Merge(a, init))
	require.Equal(t, "{mid set}", m.String())

	// Untracked dimensions read as initial and merge as initial.
	var empty Qualifiers
	require.Equal(t, low, Get[level](empty, levelSet{}))
	require.Equal(t, init, p.Merge(empty, empty))

	_, err := NewProduct(Erase[level](levelSet{}), Erase[level](levelSet{}))
	require.Error(t, err)

	only, err := NewProduct(Erase[flag](flagSet{}))
	require.NoError(t, err)
	require.False(t, only.Has(Nullability))
	require.Nil(t, only.Merge(a, b).Get(Nullability))
}

func TestQualifiedValueSet(t *testing.T) {
	t.Parallel()

	p := newProduct(t)
	v1 := &cfg.Value{ID: 1, Type: declaration.ObjectType, Param: -1}
	v2 := &cfg.Value{ID: 2, Type: declaration.ObjectType, Param: -1}
	v3 := &cfg.Value{ID: 3, Type: declaration.ObjectType, Param: -1}
	init := p.Initial()

	a := p.MergeSets(Singleton(QualifiedValue{Base: v3, Qualifiers: init}), Singleton(QualifiedValue{Base: v1, Qualifiers: init}))
	require.Equal(t, 2, a.Len())
	require.Same(t, v1, a.Values()[0].Base)
	require.Same(t, v3, a.Values()[1].Base)

	b := p.MergeSets(Singleton(QualifiedValue{Base: v2, Qualifiers: init}), Singleton(QualifiedValue{Base: v3, Qualifiers: init.With(high)}))
	u := p.MergeSets(a, b)
	require.Equal(t, 3, u.Len())
	qv, ok := u.Lookup(v3)
	require.True(t, ok)
	require.Equal(t, high, Get[level](qv.Qualifiers, levelSet{}))

	// Inputs are never modified.
	qv, _ = a.Lookup(v3)
	require.Equal(t, low, Get[level](qv.Qualifiers, levelSet{}))

	// Merge is idempotent and commutative on sets.
	require.True(t, p.MergeSets(u, u).Equal(u))
	require.True(t, p.MergeSets(a, b).Equal(p.MergeSets(b, a)))
	require.True(t, p.MergeSets(u, QualifiedValueSet{}).Equal(u))
	require.True(t, p.MergeSets(QualifiedValueSet{}, u).Equal(u))
	require.False(t, a.Equal(u))

	updated := u.Update(v1, func(qs Qualifiers) Qualifiers { return qs.With(flag(true)) })
	qv, _ = updated.Lookup(v1)
	require.Equal(t, flag(true), Get[flag](qv.Qualifiers, flagSet{}))
	qv, _ = u.Lookup(v1)
	require.Equal(t, flag(false), Get[flag](qv.Qualifiers, flagSet{}))

	unchanged := u.Update(&cfg.Value{ID: 9}, func(qs Qualifiers) Qualifiers { return qs.With(high) })
	require.True(t, unchanged.Equal(u))

	_, ok = u.Lookup(&cfg.Value{ID: 1})
	require.False(t, ok, "lookup is by identity")
}
