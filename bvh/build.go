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
	"fmt"
	"math"

	"github.com/ajroetker/go-bvh/geom"
	"github.com/ajroetker/go-bvh/morton"
	"github.com/ajroetker/go-bvh/parallel"
	"github.com/ajroetker/go-bvh/pool"
	"github.com/ajroetker/go-bvh/radixsort"
)

// NeighborSearchRadius bounds the nearest-neighbor search window each
// clustering level scans around a node: [i-R, i+R]. 14 is the tuned
// constant from the Meister & Bittner paper; it guarantees a mutual
// pair exists whenever at least two nodes remain.
const NeighborSearchRadius = 14

func searchBegin(i int) int {
	if i > NeighborSearchRadius {
		return i - NeighborSearchRadius
	}
	return 0
}

func searchEnd(i, n int) int {
	if i+NeighborSearchRadius+1 < n {
		return i + NeighborSearchRadius + 1
	}
	return n
}

// Build constructs a BVH over n primitives using Parallel
// Locally-Ordered Clustering (Meister & Bittner): Morton-seed the
// primitives, sort them into Morton order, build single-primitive
// leaves, then repeatedly merge mutually-nearest neighbors level by
// level until one root remains.
//
// n must be > 0. Build panics if a centroid is not finite (naming the
// primitive), or if a level's nearest-neighbor search produces zero
// mutual pairs (naming the level's unmerged count), since the tree
// could never converge to a single root (a contract violation, not a
// recoverable error).
func Build(p *pool.Pool, n int, bboxFn BBoxFunc, centerFn CenterFunc) *BVH {
	if n <= 0 {
		panic("bvh: Build requires n > 0")
	}

	primitiveIndices := computeMortonOrder(p, n, centerFn)

	nodeCount := 2*n - 1
	srcUnmerged := make([]Node, n)
	dstUnmerged := make([]Node, n)

	parallel.For1D(p, 0, n, func(workerID int, r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			leaf := &srcUnmerged[i]
			leaf.SetBBox(bboxFn(primitiveIndices[i]))
			leaf.PrimitiveCount = 1
			leaf.FirstChildOrPrimitive = uint32(i)
		}
	})

	merged := make([]Node, nodeCount)
	neighbors := make([]int, n)

	// The merged array fills back-to-front: every level's child pairs
	// land just below the previous level's, and the last level's pair
	// ends up at indices 1 and 2, leaving slot 0 for the root.
	unmergedCount := n
	mergedIndex := nodeCount
	for unmergedCount > 1 {
		var newUnmergedCount int
		srcUnmerged, dstUnmerged, mergedIndex, newUnmergedCount = mergeLevel(
			p, srcUnmerged[:unmergedCount], dstUnmerged[:cap(dstUnmerged)], merged, neighbors, mergedIndex)
		unmergedCount = newUnmergedCount
	}
	merged[0] = srcUnmerged[0]

	return &BVH{Nodes: merged, PrimitiveIndices: primitiveIndices, Depth: computeDepth(merged)}
}

// computeMortonOrder evaluates centroids, reduces their bounding box,
// encodes Morton codes in that grid, and radix-sorts primitive indices
// into Morton order.
func computeMortonOrder(p *pool.Pool, n int, centerFn CenterFunc) []uint32 {
	centers := make([]geom.Vec3, n)

	centerBBox := geom.EmptyBBox()
	parallel.Reduce(p, 0, n, &centerBBox,
		func() geom.BBox { return geom.EmptyBBox() },
		func(acc *geom.BBox, workerID int, r parallel.Range) {
			for i := r.Begin; i < r.End; i++ {
				c := centerFn(uint32(i))
				centers[i] = c
				*acc = acc.Extend(c)
			}
		},
		func(dst *geom.BBox, src geom.BBox) { *dst = dst.Union(src) },
	)

	extent := centerBBox.Max.Sub(centerBBox.Min)
	// A non-finite centroid leaves an infinite or NaN extent (NaN
	// propagates through math.Min/Max); only then is every centroid
	// scanned, so the panic can name the offending primitive.
	if s := extent.X + extent.Y + extent.Z; math.IsInf(s, 0) || math.IsNaN(s) {
		for i, c := range centers {
			if c.X*0+c.Y*0+c.Z*0 != 0 {
				panic(fmt.Sprintf("bvh: Build found a non-finite centroid for primitive %d", i))
			}
		}
	}
	centerToGrid := geom.Vec3{
		X: safeGridScale(extent.X),
		Y: safeGridScale(extent.Y),
		Z: safeGridScale(extent.Z),
	}

	mortonCodes := make([]uint32, n)
	primitiveIndices := make([]uint32, n)
	parallel.For1D(p, 0, n, func(workerID int, r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			c := centers[i].Sub(centerBBox.Min).Mul(centerToGrid)
			x := morton.Clamp[uint32](c.X)
			y := morton.Clamp[uint32](c.Y)
			z := morton.Clamp[uint32](c.Z)
			mortonCodes[i] = morton.Encode[uint32](x, y, z)
			primitiveIndices[i] = uint32(i)
		}
	})

	dstCodes := make([]uint32, n)
	dstIndices := make([]uint32, n)
	radixsort.Sort(p, mortonCodes, dstCodes, primitiveIndices, dstIndices, n, 32)
	return primitiveIndices
}

// safeGridScale returns morton.GridDim[uint32]()/extent, or 0 when the
// centroid box is degenerate along that axis (every centroid shares
// the same coordinate, so the morton clamp always reads 0 anyway).
func safeGridScale(extent float64) float64 {
	if extent <= 0 {
		return 0
	}
	return float64(morton.GridDim[uint32]()) / extent
}

type countingTask struct {
	pool.WorkItem
	begin, end                 int
	neighbors                  []int
	mergedCount, unmergedCount int
}

type mergeTask struct {
	pool.WorkItem
	begin, end    int
	neighbors     []int
	srcUnmerged   []Node
	dstUnmerged   []Node
	merged        []Node
	unmergedIndex int
	mergedIndex   int
}

// mergeLevel runs one Parallel Locally-Ordered Clustering level:
// nearest-neighbor search, mutual-pair counting, and merge write-out.
// It returns the (possibly swapped) unmerged buffers, the updated
// back-to-front merged-node write cursor, and the new unmerged count.
func mergeLevel(p *pool.Pool, srcUnmerged, dstUnmerged, merged []Node, neighbors []int, mergedIndex int) (newSrc, newDst []Node, newMergedIndex, newUnmergedCount int) {
	u := len(srcUnmerged)

	parallel.For1D(p, 0, u, func(workerID int, r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			bestNeighbor := -1
			bestDistance := math.MaxFloat64
			iBox := srcUnmerged[i].BBox()
			for j := searchBegin(i); j < searchEnd(i, u); j++ {
				if j == i {
					continue
				}
				d := iBox.Union(srcUnmerged[j].BBox()).HalfArea()
				if d < bestDistance {
					bestDistance = d
					bestNeighbor = j
				}
			}
			neighbors[i] = bestNeighbor
		}
	})

	workers := p.NumWorkers()
	taskCount := parallel.TaskMultiplier * workers
	if taskCount > u {
		taskCount = u
	}
	chunk := (u + taskCount - 1) / taskCount

	counting := make([]countingTask, taskCount)
	for i := range counting {
		begin := i * chunk
		end := begin + chunk
		if end > u {
			end = u
		}
		counting[i].begin, counting[i].end = begin, end
		counting[i].neighbors = neighbors
	}
	for i := range counting {
		ct := &counting[i]
		ct.Run = func(int) {
			for k := ct.begin; k < ct.end; k++ {
				j := ct.neighbors[k]
				if j >= 0 && neighbors[j] == k {
					if k < j {
						ct.mergedCount++
					}
				} else {
					ct.unmergedCount++
				}
			}
		}
		if i+1 < len(counting) {
			ct.Next = &counting[i+1].WorkItem
		}
	}
	p.Submit(&counting[0].WorkItem, &counting[len(counting)-1].WorkItem)
	p.Wait(0)

	totalMerged := 0
	for i := range counting {
		totalMerged += counting[i].mergedCount
	}
	if totalMerged <= 0 {
		panic(fmt.Sprintf("bvh: Build found zero mutual nearest-neighbor pairs at the merge level with %d unmerged nodes", u))
	}

	mergedIndex -= 2 * totalMerged
	curMergedIndex := mergedIndex
	curUnmergedIndex := 0

	merges := make([]mergeTask, taskCount)
	for i := range merges {
		merges[i].begin, merges[i].end = counting[i].begin, counting[i].end
		merges[i].neighbors = neighbors
		merges[i].srcUnmerged = srcUnmerged
		merges[i].dstUnmerged = dstUnmerged
		merges[i].merged = merged
		merges[i].mergedIndex = curMergedIndex
		merges[i].unmergedIndex = curUnmergedIndex
		curMergedIndex += counting[i].mergedCount * 2
		curUnmergedIndex += counting[i].mergedCount + counting[i].unmergedCount
	}
	for i := range merges {
		mt := &merges[i]
		mt.Run = func(int) {
			for k := mt.begin; k < mt.end; k++ {
				j := mt.neighbors[k]
				if j >= 0 && mt.neighbors[j] == k {
					if k < j {
						firstChild := mt.mergedIndex
						dst := &mt.dstUnmerged[mt.unmergedIndex]
						dst.SetBBox(mt.srcUnmerged[k].BBox().Union(mt.srcUnmerged[j].BBox()))
						dst.PrimitiveCount = 0
						dst.FirstChildOrPrimitive = uint32(firstChild)
						mt.merged[firstChild+0] = mt.srcUnmerged[k]
						mt.merged[firstChild+1] = mt.srcUnmerged[j]
						mt.unmergedIndex++
						mt.mergedIndex += 2
					}
				} else {
					mt.dstUnmerged[mt.unmergedIndex] = mt.srcUnmerged[k]
					mt.unmergedIndex++
				}
			}
		}
		if i+1 < len(merges) {
			mt.Next = &merges[i+1].WorkItem
		}
	}
	p.Submit(&merges[0].WorkItem, &merges[len(merges)-1].WorkItem)
	p.Wait(0)

	return dstUnmerged, srcUnmerged, mergedIndex, curUnmergedIndex
}
