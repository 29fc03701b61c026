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

package orderedmap_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/jqual/util/orderedmap"
)

func TestLoadStore(t *testing.T) {
	t.Parallel()

	pairs := [][2]int{{1, 2}, {2, 3}, {3, 4}}
	m := orderedmap.New[int, int]()
	for _, p := range pairs {
		k, v := p[0], p[1]
		m.Store(k, v)
		loadedV, ok := m.Load(k)
		require.True(t, ok)
		require.Equal(t, v, loadedV)
		require.Equal(t, v, m.Value(k))
	}

	v, ok := m.Load(-1)
	require.False(t, ok)
	require.Empty(t, v)
	require.Empty(t, m.Value(-1))
	require.Equal(t, len(pairs), m.Len())

	// Overwriting keeps the original position.
	m.Store(1, 42)
	require.Equal(t, []int{1, 2, 3}, m.Keys())
	require.Equal(t, 42, m.Value(1))
}

func TestDelete(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, int]()
	for i, k := range []string{"a", "b", "c", "d"} {
		m.Store(k, i)
	}
	m.Delete("b")
	m.Delete("missing")
	require.Equal(t, []string{"a", "c", "d"}, m.Keys())
	require.Equal(t, 2, m.Value("c"))

	m.Store("b", 9)
	require.Equal(t, []string{"a", "c", "d", "b"}, m.Keys())
}

func TestOrderedRange(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[int, int]()
	expectedKeys := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		m.Store(i, i+1)
		expectedKeys = append(expectedKeys, i)
	}

	for i := 0; i < 5; i++ {
		t.Run(fmt.Sprintf("Run%d", i), func(t *testing.T) {
			t.Parallel()

			keys := make([]int, 0, 100)
			m.OrderedRange(func(key int, value int) bool {
				keys = append(keys, key)
				return true
			})
			require.Equal(t, expectedKeys, keys)
		})
	}

	// Early stop.
	count := 0
	m.OrderedRange(func(int, int) bool {
		count++
		return count < 10
	})
	require.Equal(t, 10, count)
}

func TestGobEncoding(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, uint8]()
	m.Store("x", 1)
	m.Store("y", 2)

	b, err := m.GobEncode()
	require.NoError(t, err)
	require.NotEmpty(t, b)

	decoded := orderedmap.New[string, uint8]()
	require.NoError(t, decoded.GobDecode(b))
	require.Equal(t, m.Keys(), decoded.Keys())
	require.Equal(t, uint8(2), decoded.Value("y"))

	// Encoding is deterministic.
	again, err := m.GobEncode()
	require.NoError(t, err)
	require.Equal(t, b, again)
}

func TestGobEncode_Empty(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[int, int]()
	b, err := m.GobEncode()
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
