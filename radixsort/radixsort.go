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

// Package radixsort implements a parallel, stable LSD radix sort of
// (key, value) pairs over unsigned keys of 8, 16, 32 or 64 bits,
// carrying a uint32 value (a primitive index, in this repository's one
// caller) alongside each key.
package radixsort

import "github.com/ajroetker/go-bvh/pool"

// bitsPerPass is the digit width of one radix pass.
const bitsPerPass = 8

// binCount is the number of buckets per digit, 2^bitsPerPass.
const binCount = 1 << bitsPerPass

// Key is any unsigned integer width this sorter supports.
type Key interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Sort performs a stable LSD radix sort of keys[0:n], carrying values
// alongside, processing the low bitCount bits of each key in
// bitsPerPass-bit digits. Both srcKeys/srcValues and the scratch
// buffers dstKeys/dstValues must have length >= n. The pass loop
// ping-pongs between the two buffer pairs; when the pass count is odd
// the final output is copied back, so callers always read the sorted
// result from srcKeys/srcValues.
func Sort[K Key](p *pool.Pool, srcKeys, dstKeys []K, srcValues, dstValues []uint32, n int, bitCount int) {
	if n <= 0 {
		return
	}
	workers := p.NumWorkers()

	type binningTask struct {
		pool.WorkItem
		begin, end int
		firstBit   uint
		bins       [binCount]int
	}
	type sumTask struct {
		pool.WorkItem
		begin, end int
	}
	type copyTask struct {
		pool.WorkItem
		begin, end int
		bt         *binningTask
	}

	binningTasks := make([]binningTask, workers)
	sumTasks := make([]sumTask, workers)
	copyTasks := make([]copyTask, workers)
	sharedBins := make([]int, binCount)

	dataChunk := chunkSize(n, workers)
	binChunk := chunkSize(binCount, workers)
	for j := 0; j < workers; j++ {
		begin := chunkBegin(dataChunk, j)
		end := chunkEnd(dataChunk, j, n)
		binningTasks[j].begin = begin
		binningTasks[j].end = end
		copyTasks[j].begin = begin
		copyTasks[j].end = end
		copyTasks[j].bt = &binningTasks[j]
		sumTasks[j].begin = chunkBegin(binChunk, j)
		sumTasks[j].end = chunkEnd(binChunk, j, binCount)
	}

	sk, dk := srcKeys, dstKeys
	sv, dv := srcValues, dstValues

	for firstBit := 0; firstBit < bitCount; firstBit += bitsPerPass {
		mask := K(binCount - 1)

		for j := range binningTasks {
			bt := &binningTasks[j]
			bt.firstBit = uint(firstBit)
			for i := range bt.bins {
				bt.bins[i] = 0
			}
			bt.Run = func(int) {
				for i := bt.begin; i < bt.end; i++ {
					bt.bins[(sk[i]>>bt.firstBit)&mask]++
				}
			}
			if j+1 < len(binningTasks) {
				bt.Next = &binningTasks[j+1].WorkItem
			} else {
				bt.Next = nil
			}
		}
		p.Submit(&binningTasks[0].WorkItem, &binningTasks[len(binningTasks)-1].WorkItem)
		p.Wait(0)

		for j := range sumTasks {
			st := &sumTasks[j]
			st.Run = func(int) {
				for i := st.begin; i < st.end; i++ {
					sum := 0
					for k := range binningTasks {
						old := sum
						sum += binningTasks[k].bins[i]
						binningTasks[k].bins[i] = old
					}
					sharedBins[i] = sum
				}
			}
			if j+1 < len(sumTasks) {
				st.Next = &sumTasks[j+1].WorkItem
			} else {
				st.Next = nil
			}
		}
		p.Submit(&sumTasks[0].WorkItem, &sumTasks[len(sumTasks)-1].WorkItem)
		p.Wait(0)

		for j := range copyTasks {
			ct := &copyTasks[j]
			ct.Run = func(int) {
				bt := ct.bt
				sum := 0
				for i := 0; i < binCount; i++ {
					old := sum
					sum += sharedBins[i]
					bt.bins[i] += old
				}
				for i := ct.begin; i < ct.end; i++ {
					digit := (sk[i] >> bt.firstBit) & mask
					idx := bt.bins[digit]
					bt.bins[digit]++
					dk[idx] = sk[i]
					dv[idx] = sv[i]
				}
			}
			if j+1 < len(copyTasks) {
				ct.Next = &copyTasks[j+1].WorkItem
			} else {
				ct.Next = nil
			}
		}
		p.Submit(&copyTasks[0].WorkItem, &copyTasks[len(copyTasks)-1].WorkItem)
		p.Wait(0)

		sk, dk = dk, sk
		sv, dv = dv, sv
	}

	// sk/sv now hold the final sorted pass; copy into the caller's
	// src slices if ownership landed in the scratch buffers.
	passes := (bitCount + bitsPerPass - 1) / bitsPerPass
	if passes%2 != 0 {
		copy(srcKeys[:n], sk[:n])
		copy(srcValues[:n], sv[:n])
	}
}

func chunkSize(n, tasks int) int {
	if tasks <= 0 {
		return n
	}
	return (n + tasks - 1) / tasks
}

func chunkBegin(chunk, j int) int {
	return chunk * j
}

func chunkEnd(chunk, j, n int) int {
	end := chunk * (j + 1)
	if end > n {
		return n
	}
	return end
}
