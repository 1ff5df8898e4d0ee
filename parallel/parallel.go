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

// Package parallel implements a parallel-for/reduce driver over
// contiguous 1-D, 2-D and 3-D index ranges, built entirely on top of a
// pool.Pool. BVH construction and collapse use For/Reduce for their
// per-element passes and submit their own work-item chains to the same
// pool for the rest; none of them starts raw goroutines.
package parallel

import "github.com/ajroetker/go-bvh/pool"

// TileMultiplier is the number of tiles created per worker when
// partitioning a range: task_count = TileMultiplier * workers. Tiles
// are handed out dynamically, so any idle worker can take the next one.
const TileMultiplier = 2

// TaskMultiplier is the task-array size used by passes that need more
// in-flight granularity than a plain For/Reduce call, expressed here so
// bvh.Build's per-level count/merge passes and bvh.Collapse's
// offset/rewrite passes share the same tunable:
// task_count = TaskMultiplier * workers.
const TaskMultiplier = 4

// Range is a half-open index interval [Begin, End).
type Range struct {
	Begin, End int
}

func (r Range) Len() int { return r.End - r.Begin }

func chunkSize(n, taskCount int) int {
	if taskCount <= 0 {
		return n
	}
	return (n + taskCount - 1) / taskCount
}

func rangeEnd(i, chunk, end int) int {
	if i+chunk > end {
		return end
	}
	return i + chunk
}

// task1D is the extended work item for a 1-D parallel-for tile: a
// pool.WorkItem plus the sub-range it covers. The pool only ever sees
// the embedded WorkItem; the closure stored in Run carries the task
// back, so no pointer casting is needed.
type task1D struct {
	pool.WorkItem
	r Range
}

// For1D partitions [begin, end) into TileMultiplier*workers tiles and
// calls fn(workerID, tileRange) for each one, draining and refilling
// the task array whenever it is exhausted mid-range. It blocks until
// every tile has completed.
func For1D(p *pool.Pool, begin, end int, fn func(workerID int, r Range)) {
	if begin >= end {
		return
	}
	workers := p.NumWorkers()
	taskCount := TileMultiplier * workers
	tasks := make([]task1D, taskCount)

	chunk := chunkSize(end-begin, taskCount)
	idx := 0
	submitFirst, submitLast := -1, -1

	flush := func() {
		if submitFirst < 0 {
			return
		}
		tasks[submitLast].Next = nil
		p.Submit(&tasks[submitFirst].WorkItem, &tasks[submitLast].WorkItem)
		p.Wait(0)
		submitFirst, submitLast = -1, -1
		idx = 0
	}

	for i := begin; i < end; i += chunk {
		if idx == taskCount {
			flush()
		}
		t := &tasks[idx]
		t.r = Range{i, rangeEnd(i, chunk, end)}
		t.Run = func(workerID int) { fn(workerID, t.r) }
		if submitFirst < 0 {
			submitFirst = idx
		} else {
			tasks[idx-1].Next = &t.WorkItem
		}
		submitLast = idx
		idx++
	}
	if submitFirst >= 0 {
		tasks[submitLast].Next = nil
		p.Submit(&tasks[submitFirst].WorkItem, &tasks[submitLast].WorkItem)
		p.Wait(0)
	}
}

type task2D struct {
	pool.WorkItem
	rx, ry Range
}

// For2D partitions the rectangle rx x ry into tiles, filled in
// lexicographic order with the innermost dimension (rx) varying
// fastest.
func For2D(p *pool.Pool, rx, ry Range, fn func(workerID int, x, y Range)) {
	if rx.Len() <= 0 || ry.Len() <= 0 {
		return
	}
	workers := p.NumWorkers()
	taskCount := TileMultiplier * workers
	tasks := make([]task2D, taskCount)

	chunkX := chunkSize(rx.Len(), taskCount)
	chunkY := chunkSize(ry.Len(), taskCount)
	idx := 0
	submitFirst, submitLast := -1, -1

	flush := func() {
		if submitFirst < 0 {
			return
		}
		tasks[submitLast].Next = nil
		p.Submit(&tasks[submitFirst].WorkItem, &tasks[submitLast].WorkItem)
		p.Wait(0)
		submitFirst, submitLast = -1, -1
		idx = 0
	}

	for j := ry.Begin; j < ry.End; j += chunkY {
		nextJ := rangeEnd(j, chunkY, ry.End)
		for i := rx.Begin; i < rx.End; i += chunkX {
			if idx == taskCount {
				flush()
			}
			nextI := rangeEnd(i, chunkX, rx.End)
			t := &tasks[idx]
			t.rx = Range{i, nextI}
			t.ry = Range{j, nextJ}
			t.Run = func(workerID int) { fn(workerID, t.rx, t.ry) }
			if submitFirst < 0 {
				submitFirst = idx
			} else {
				tasks[idx-1].Next = &t.WorkItem
			}
			submitLast = idx
			idx++
		}
	}
	if submitFirst >= 0 {
		tasks[submitLast].Next = nil
		p.Submit(&tasks[submitFirst].WorkItem, &tasks[submitLast].WorkItem)
		p.Wait(0)
	}
}

type task3D struct {
	pool.WorkItem
	rx, ry, rz Range
}

// For3D partitions the box rx x ry x rz into tiles, x varying fastest
// and z slowest.
func For3D(p *pool.Pool, rx, ry, rz Range, fn func(workerID int, x, y, z Range)) {
	if rx.Len() <= 0 || ry.Len() <= 0 || rz.Len() <= 0 {
		return
	}
	workers := p.NumWorkers()
	taskCount := TileMultiplier * workers
	tasks := make([]task3D, taskCount)

	chunkX := chunkSize(rx.Len(), taskCount)
	chunkY := chunkSize(ry.Len(), taskCount)
	chunkZ := chunkSize(rz.Len(), taskCount)
	idx := 0
	submitFirst, submitLast := -1, -1

	flush := func() {
		if submitFirst < 0 {
			return
		}
		tasks[submitLast].Next = nil
		p.Submit(&tasks[submitFirst].WorkItem, &tasks[submitLast].WorkItem)
		p.Wait(0)
		submitFirst, submitLast = -1, -1
		idx = 0
	}

	for k := rz.Begin; k < rz.End; k += chunkZ {
		nextK := rangeEnd(k, chunkZ, rz.End)
		for j := ry.Begin; j < ry.End; j += chunkY {
			nextJ := rangeEnd(j, chunkY, ry.End)
			for i := rx.Begin; i < rx.End; i += chunkX {
				if idx == taskCount {
					flush()
				}
				nextI := rangeEnd(i, chunkX, rx.End)
				t := &tasks[idx]
				t.rx = Range{i, nextI}
				t.ry = Range{j, nextJ}
				t.rz = Range{k, nextK}
				t.Run = func(workerID int) { fn(workerID, t.rx, t.ry, t.rz) }
				if submitFirst < 0 {
					submitFirst = idx
				} else {
					tasks[idx-1].Next = &t.WorkItem
				}
				submitLast = idx
				idx++
			}
		}
	}
	if submitFirst >= 0 {
		tasks[submitLast].Next = nil
		p.Submit(&tasks[submitFirst].WorkItem, &tasks[submitLast].WorkItem)
		p.Wait(0)
	}
}

// Reduce partitions [begin, end) the same way as For1D, runs fn over
// each tile into a fresh accumulator seeded by zero(), then folds every
// tile's accumulator sequentially into acc via merge, left to right in
// tile order. zero must return a usable zero value for T; merge runs
// as a strict sequential left fold, so it need not be commutative or
// associative.
func Reduce[T any](p *pool.Pool, begin, end int, acc *T, zero func() T, fn func(acc *T, workerID int, r Range), merge func(dst *T, src T)) {
	if begin >= end {
		return
	}
	workers := p.NumWorkers()
	taskCount := TileMultiplier * workers

	type reduceTask struct {
		task1D
		acc T
	}
	tasks := make([]reduceTask, taskCount)
	for i := range tasks {
		tasks[i].acc = zero()
	}

	chunk := chunkSize(end-begin, taskCount)
	idx := 0
	submitFirst, submitLast := -1, -1
	var order []int

	flush := func() {
		if submitFirst < 0 {
			return
		}
		tasks[submitLast].Next = nil
		p.Submit(&tasks[submitFirst].WorkItem, &tasks[submitLast].WorkItem)
		p.Wait(0)
		for _, i := range order {
			merge(acc, tasks[i].acc)
			tasks[i].acc = zero()
		}
		order = order[:0]
		submitFirst, submitLast = -1, -1
		idx = 0
	}

	for i := begin; i < end; i += chunk {
		if idx == taskCount {
			flush()
		}
		t := &tasks[idx]
		t.r = Range{i, rangeEnd(i, chunk, end)}
		t.Run = func(workerID int) { fn(&t.acc, workerID, t.r) }
		if submitFirst < 0 {
			submitFirst = idx
		} else {
			tasks[idx-1].Next = &t.WorkItem
		}
		submitLast = idx
		order = append(order, idx)
		idx++
	}
	if submitFirst >= 0 {
		tasks[submitLast].Next = nil
		p.Submit(&tasks[submitFirst].WorkItem, &tasks[submitLast].WorkItem)
		p.Wait(0)
		for _, i := range order {
			merge(acc, tasks[i].acc)
		}
	}
}
