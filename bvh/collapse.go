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

package bvh

import (
	"sync/atomic"

	"github.com/ajroetker/go-bvh/parallel"
	"github.com/ajroetker/go-bvh/pool"
)

const noParent = -1

// Collapse post-processes a freshly built BVH according to a
// traversal-cost ratio travCost (inner-node traversal cost relative to
// per-primitive intersection cost; 1.2-1.5 are typical), merging
// subtrees whose combined leaf would be cheaper to traverse than
// keeping them split. It replaces b.Nodes and b.PrimitiveIndices with
// the collapsed versions in place.
func (b *BVH) Collapse(p *pool.Pool, travCost float64) {
	n := len(b.Nodes)
	if n <= 1 {
		return
	}

	parents := make([]int32, n)
	nodeCounts := make([]int32, n)
	primCounts := make([]int32, n)
	flags := make([]atomic.Int32, n)

	// Phase A: initialize node_count/flag and record each node's parent.
	parallel.For1D(p, 0, n, func(workerID int, r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			nodeCounts[i] = 1
			node := &b.Nodes[i]
			if !node.IsLeaf() {
				left := int(node.FirstChildOrPrimitive)
				parents[left] = int32(i)
				parents[left+1] = int32(i)
			}
		}
	})
	parents[0] = noParent

	// Phase B: bottom-up SAH sweep, initiated only by leaves.
	parallel.For1D(p, 0, n, func(workerID int, r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			node := &b.Nodes[i]
			if !node.IsLeaf() {
				continue
			}
			primCounts[i] = int32(node.PrimitiveCount)

			j := i
			for {
				parent := parents[j]
				if parent == noParent {
					break
				}
				if flags[parent].Add(1) == 1 {
					// First sibling to arrive; the other will finish the walk.
					break
				}

				pnode := &b.Nodes[parent]
				left := int(pnode.FirstChildOrPrimitive)
				right := left + 1
				L, R := primCounts[left], primCounts[right]
				if L == 0 || R == 0 {
					break
				}

				collapseCost := pnode.BBox().HalfArea() * (float64(L+R) - travCost)
				keepCost := b.Nodes[left].BBox().HalfArea()*float64(L) +
					b.Nodes[right].BBox().HalfArea()*float64(R)
				if collapseCost >= keepCost {
					break
				}

				primCounts[parent] = L + R
				primCounts[left] = 0
				primCounts[right] = 0
				nodeCounts[left] = 0
				nodeCounts[right] = 0
				j = int(parent)
			}
		}
	})

	// Phase C: per-chunk prim/node count totals, folded into exclusive
	// prefixes (first_node_k, first_primitive_k) on the caller's
	// goroutine.
	workers := p.NumWorkers()
	taskCount := parallel.TaskMultiplier * workers
	if taskCount > n {
		taskCount = n
	}
	chunk := (n + taskCount - 1) / taskCount

	type chunkRange struct{ begin, end int }
	chunks := make([]chunkRange, taskCount)
	for i := range chunks {
		begin := i * chunk
		end := begin + chunk
		if end > n {
			end = n
		}
		chunks[i] = chunkRange{begin, end}
	}

	nodeSums := make([]int32, taskCount)
	primSums := make([]int32, taskCount)
	runChunked(p, taskCount, func(i int) {
		var nodeSum, primSum int32
		for k := chunks[i].begin; k < chunks[i].end; k++ {
			nodeSum += nodeCounts[k]
			primSum += primCounts[k]
		}
		nodeSums[i] = nodeSum
		primSums[i] = primSum
	})

	firstNode := make([]int32, taskCount)
	firstPrimitive := make([]int32, taskCount)
	var nodeAcc, primAcc int32
	for i := 0; i < taskCount; i++ {
		firstNode[i] = nodeAcc
		firstPrimitive[i] = primAcc
		nodeAcc += nodeSums[i]
		primAcc += primSums[i]
	}
	newNodeCount := int(nodeAcc)
	newPrimitiveCount := int(primAcc)

	dstNodes := make([]Node, newNodeCount)
	dstPrimitiveIndices := make([]uint32, newPrimitiveCount)
	oldPrimitiveIndices := b.PrimitiveIndices

	// kept[k] records whether node k survives into the rewritten tree.
	// nodeCounts[k] is reused in place as the remap table below (the
	// new index can legitimately be 0, e.g. the new root), so it can no
	// longer double as its own "was this node dropped" marker by the
	// time phase E runs.
	kept := make([]bool, n)

	// Phase D: rewrite surviving nodes, expanding collapsed subtrees
	// into flattened leaves via a parent-pointer pre-order walk.
	runChunked(p, taskCount, func(i int) {
		nextNode := firstNode[i]
		nextPrim := firstPrimitive[i]
		for k := chunks[i].begin; k < chunks[i].end; k++ {
			if nodeCounts[k] == 0 {
				continue
			}
			kept[k] = true
			newIndex := nextNode
			nextNode++

			dst := b.Nodes[k]
			if primCounts[k] != 0 {
				dst.PrimitiveCount = uint32(primCounts[k])
				dst.FirstChildOrPrimitive = uint32(nextPrim)
				walkLeaves(b.Nodes, parents, k, func(leafIndex int) {
					src := &b.Nodes[leafIndex]
					copy(dstPrimitiveIndices[nextPrim:nextPrim+int32(src.PrimitiveCount)],
						oldPrimitiveIndices[src.FirstChildOrPrimitive:int(src.FirstChildOrPrimitive)+int(src.PrimitiveCount)])
					nextPrim += int32(src.PrimitiveCount)
				})
			}
			dstNodes[newIndex] = dst
			nodeCounts[k] = newIndex // reuse as the remap table for phase E
		}
	})

	// Phase E: rewire surviving inner nodes' child pointers through the
	// remap table now that every new index is known.
	runChunked(p, taskCount, func(i int) {
		for k := chunks[i].begin; k < chunks[i].end; k++ {
			if !kept[k] {
				continue
			}
			if primCounts[k] != 0 {
				continue // now a leaf, already fully written in phase D
			}
			orig := &b.Nodes[k]
			if orig.IsLeaf() {
				continue // untouched original leaf, nothing to rewire
			}
			newIndex := nodeCounts[k]
			left := int(orig.FirstChildOrPrimitive)
			dstNodes[newIndex].FirstChildOrPrimitive = uint32(nodeCounts[left])
		}
	})

	b.Nodes = dstNodes
	b.PrimitiveIndices = dstPrimitiveIndices
	b.Depth = computeDepth(dstNodes)
}

// walkLeaves enumerates, in left-first pre-order, every original leaf
// under subtreeRoot (inclusive), using parent pointers instead of an
// explicit stack: descend to the leftmost leaf, emit it, then ascend
// until an edge taken from a left child is found (jump to its right
// sibling) or the walk climbs back above subtreeRoot.
func walkLeaves(nodes []Node, parents []int32, subtreeRoot int, emit func(leafIndex int)) {
	cur := subtreeRoot
	for {
		for !nodes[cur].IsLeaf() {
			cur = int(nodes[cur].FirstChildOrPrimitive)
		}
		emit(cur)

		for {
			if cur == subtreeRoot {
				return
			}
			parent := int(parents[cur])
			left := int(nodes[parent].FirstChildOrPrimitive)
			if cur == left {
				cur = left + 1
				break
			}
			cur = parent
		}
	}
}

// runChunked submits taskCount independent work items, one per index
// in [0, taskCount), and waits for all of them to finish.
func runChunked(p *pool.Pool, taskCount int, fn func(i int)) {
	items := make([]pool.WorkItem, taskCount)
	for i := range items {
		i := i
		items[i].Run = func(int) { fn(i) }
		if i+1 < taskCount {
			items[i].Next = &items[i+1]
		}
	}
	p.Submit(&items[0], &items[taskCount-1])
	p.Wait(0)
}
