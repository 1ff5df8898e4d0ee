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

package parallel

import (
	"sync/atomic"
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

func TestFor1DCoversEveryIndexExactlyOnce(t *testing.T) {
	p := mustPool(t, 4)
	const n = 10007 // deliberately not a multiple of tile count
	seen := make([]int32, n)

	For1D(p, 0, n, func(workerID int, r Range) {
		for i := r.Begin; i < r.End; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})

	for i, v := range seen {
		if v != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, v)
		}
	}
}

func TestFor1DEmptyRangeNoop(t *testing.T) {
	p := mustPool(t, 2)
	called := false
	For1D(p, 5, 5, func(int, Range) { called = true })
	if called {
		t.Fatal("For1D on empty range should not invoke fn")
	}
}

func TestFor2DExhaustsTaskArrayAndFlushes(t *testing.T) {
	// With 1 worker the task array holds 2 tasks, but the per-dimension
	// chunking of a 2-D range produces up to 2x2 tiles, forcing the
	// driver to flush and refill its task array mid-range.
	p := mustPool(t, 1)
	const w, h = 97, 53
	var count int32
	For2D(p, Range{0, w}, Range{0, h}, func(workerID int, x, y Range) {
		atomic.AddInt32(&count, int32(x.Len()*y.Len()))
	})
	if count != w*h {
		t.Fatalf("got %d total elements processed, want %d", count, w*h)
	}
}

func TestFor2DCoversGridExactlyOnce(t *testing.T) {
	p := mustPool(t, 3)
	const w, h = 53, 41
	var seen [w][h]int32

	For2D(p, Range{0, w}, Range{0, h}, func(workerID int, x, y Range) {
		for j := y.Begin; j < y.End; j++ {
			for i := x.Begin; i < x.End; i++ {
				atomic.AddInt32(&seen[i][j], 1)
			}
		}
	})

	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			if seen[i][j] != 1 {
				t.Fatalf("cell (%d,%d) visited %d times, want 1", i, j, seen[i][j])
			}
		}
	}
}

func TestFor3DCoversVolumeExactlyOnce(t *testing.T) {
	p := mustPool(t, 2)
	const w, h, d = 11, 13, 9
	var seen [w][h][d]int32

	For3D(p, Range{0, w}, Range{0, h}, Range{0, d}, func(workerID int, x, y, z Range) {
		for k := z.Begin; k < z.End; k++ {
			for j := y.Begin; j < y.End; j++ {
				for i := x.Begin; i < x.End; i++ {
					atomic.AddInt32(&seen[i][j][k], 1)
				}
			}
		}
	})

	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			for k := 0; k < d; k++ {
				if seen[i][j][k] != 1 {
					t.Fatalf("cell (%d,%d,%d) visited %d times, want 1", i, j, k, seen[i][j][k])
				}
			}
		}
	}
}

func TestReduceSumsEveryIndex(t *testing.T) {
	p := mustPool(t, 4)
	const n = 100000

	var total int64
	Reduce(p, 0, n, &total,
		func() int64 { return 0 },
		func(acc *int64, workerID int, r Range) {
			for i := r.Begin; i < r.End; i++ {
				*acc += int64(i)
			}
		},
		func(dst *int64, src int64) { *dst += src },
	)

	var want int64
	for i := 0; i < n; i++ {
		want += int64(i)
	}
	if total != want {
		t.Fatalf("Reduce sum = %d, want %d", total, want)
	}
}

func TestReduceMinMax(t *testing.T) {
	p := mustPool(t, 3)
	data := make([]int, 5000)
	for i := range data {
		data[i] = (i*7919 + 13) % 100003
	}

	type minmax struct{ lo, hi int }
	acc := minmax{lo: 1 << 30, hi: -(1 << 30)}

	Reduce(p, 0, len(data), &acc,
		func() minmax { return minmax{lo: 1 << 30, hi: -(1 << 30)} },
		func(a *minmax, workerID int, r Range) {
			for i := r.Begin; i < r.End; i++ {
				if data[i] < a.lo {
					a.lo = data[i]
				}
				if data[i] > a.hi {
					a.hi = data[i]
				}
			}
		},
		func(dst *minmax, src minmax) {
			if src.lo < dst.lo {
				dst.lo = src.lo
			}
			if src.hi > dst.hi {
				dst.hi = src.hi
			}
		},
	)

	wantLo, wantHi := data[0], data[0]
	for _, v := range data {
		if v < wantLo {
			wantLo = v
		}
		if v > wantHi {
			wantHi = v
		}
	}
	if acc.lo != wantLo || acc.hi != wantHi {
		t.Fatalf("got {%d,%d}, want {%d,%d}", acc.lo, acc.hi, wantLo, wantHi)
	}
}
