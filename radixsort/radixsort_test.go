// Copyright 2026 go-bvh Authors
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

package radixsort

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/ajroetker/go-bvh/pool"
)

func mustPool(t *testing.T, n int) *pool.Pool {
	t.Helper()
	p, err := pool.New(n)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestSortUint32IsSortedAndStable(t *testing.T) {
	p := mustPool(t, 4)
	rng := rand.New(rand.NewSource(1))

	const n = 5000
	keys := make([]uint32, n)
	values := make([]uint32, n)
	for i := range keys {
		keys[i] = uint32(rng.Intn(1000)) // many duplicate keys
		values[i] = uint32(i)            // values record original position
	}
	origKeys := append([]uint32(nil), keys...)

	dstKeys := make([]uint32, n)
	dstValues := make([]uint32, n)
	Sort(p, keys, dstKeys, values, dstValues, n, 32)

	for i := 1; i < n; i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("not sorted at %d: %d > %d", i, keys[i-1], keys[i])
		}
	}

	// Stability: for equal keys, original index order (carried in
	// values) must be preserved.
	for i := 1; i < n; i++ {
		if keys[i-1] == keys[i] && values[i-1] > values[i] {
			t.Fatalf("unstable at %d: equal keys but values %d > %d", i, values[i-1], values[i])
		}
	}

	// Every key from the original input must still be present.
	sortedCopy := append([]uint32(nil), keys...)
	sort.Slice(sortedCopy, func(i, j int) bool { return sortedCopy[i] < sortedCopy[j] })
	sort.Slice(origKeys, func(i, j int) bool { return origKeys[i] < origKeys[j] })
	for i := range origKeys {
		if sortedCopy[i] != origKeys[i] {
			t.Fatalf("key set changed: sorted[%d]=%d want %d", i, sortedCopy[i], origKeys[i])
		}
	}
}

func TestSortUint64FullBitCount(t *testing.T) {
	p := mustPool(t, 3)
	rng := rand.New(rand.NewSource(2))

	const n = 2000
	keys := make([]uint64, n)
	values := make([]uint32, n)
	for i := range keys {
		keys[i] = rng.Uint64()
		values[i] = uint32(i)
	}

	dstKeys := make([]uint64, n)
	dstValues := make([]uint32, n)
	Sort(p, keys, dstKeys, values, dstValues, n, 64)

	for i := 1; i < n; i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("not sorted at %d", i)
		}
	}
}

func TestSortUint8SmallKeyWidth(t *testing.T) {
	p := mustPool(t, 2)
	const n = 300
	keys := make([]uint8, n)
	values := make([]uint32, n)
	for i := range keys {
		keys[i] = uint8(255 - i%256)
		values[i] = uint32(i)
	}

	dstKeys := make([]uint8, n)
	dstValues := make([]uint32, n)
	Sort(p, keys, dstKeys, values, dstValues, n, 8)

	for i := 1; i < n; i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("not sorted at %d", i)
		}
	}
}

func TestSortSmallFixedInputKeepsTiedValuesInOrder(t *testing.T) {
	p := mustPool(t, 2)
	keys := []uint32{3, 1, 4, 1, 5, 9, 2, 6, 5, 3}
	values := []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	n := len(keys)

	dstKeys := make([]uint32, n)
	dstValues := make([]uint32, n)
	Sort(p, keys, dstKeys, values, dstValues, n, 32)

	wantKeys := []uint32{1, 1, 2, 3, 3, 4, 5, 5, 6, 9}
	wantValues := []uint32{1, 3, 6, 0, 9, 2, 4, 8, 7, 5}
	for i := range wantKeys {
		if keys[i] != wantKeys[i] {
			t.Fatalf("keys[%d] = %d, want %d", i, keys[i], wantKeys[i])
		}
		if values[i] != wantValues[i] {
			t.Fatalf("values[%d] = %d, want %d (stability violated)", i, values[i], wantValues[i])
		}
	}
}

func TestSortRepeatedSortIsIdempotent(t *testing.T) {
	p := mustPool(t, 3)
	const n = 500
	keys := make([]uint32, n)
	values := make([]uint32, n)
	for i := range keys {
		keys[i] = uint32((i * 7919) % 257)
		values[i] = uint32(i)
	}
	dstKeys := make([]uint32, n)
	dstValues := make([]uint32, n)

	Sort(p, keys, dstKeys, values, dstValues, n, 32)
	onceKeys := append([]uint32(nil), keys...)
	onceValues := append([]uint32(nil), values...)

	Sort(p, keys, dstKeys, values, dstValues, n, 32)
	for i := 0; i < n; i++ {
		if keys[i] != onceKeys[i] || values[i] != onceValues[i] {
			t.Fatalf("re-sorting sorted data changed entry %d", i)
		}
	}
}

func TestSortEmptyIsNoop(t *testing.T) {
	p := mustPool(t, 2)
	var keys, dst [0]uint32
	var values, dstValues [0]uint32
	Sort(p, keys[:], dst[:], values[:], dstValues[:], 0, 32)
}

func TestSortAllIdenticalKeysKeepsOriginalOrder(t *testing.T) {
	p := mustPool(t, 4)
	const n = 1000
	keys := make([]uint32, n)
	values := make([]uint32, n)
	for i := range keys {
		keys[i] = 42
		values[i] = uint32(i)
	}
	dstKeys := make([]uint32, n)
	dstValues := make([]uint32, n)
	Sort(p, keys, dstKeys, values, dstValues, n, 32)

	for i, v := range values {
		if v != uint32(i) {
			t.Fatalf("identical-key input must preserve original order, got values[%d]=%d", i, v)
		}
	}
}
