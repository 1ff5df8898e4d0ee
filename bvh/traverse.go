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
	"math"

	"github.com/ajroetker/go-bvh/geom"
)

// traversalStackSize is the stack capacity kept on the goroutine stack.
// Trees deeper than this (b.Depth) fall back to a heap-allocated stack;
// for any remotely balanced tree the inline capacity is plenty.
const traversalStackSize = 64

// Intersect walks the BVH front-to-back with branch-and-bound pruning,
// calling leafFn at every leaf whose box the ray may still cross.
// It returns true iff hit.PrimitiveIndex differs from geom.NoHit on
// return, so callers must seed hit with geom.EmptyHit() (or a previous
// query's result, when accumulating the closest hit across several
// trees with a shared ray).
//
// If any is true, Intersect returns as soon as leafFn reports a hit
// (shadow-ray / occlusion mode) without guaranteeing it is the closest
// one, and does not order child visits. Otherwise it visits the nearer
// child first and shrinks ray.TMax as closer hits are found, so a
// subtree whose entry distance already exceeds the current closest hit
// is rejected by the slab test outright.
//
// robust selects T. Ize's watertight slab test (PrecomputeRayRobust)
// over the default, faster formulation; use it when rays grazing
// shared triangle edges must never slip between adjacent boxes.
func (b *BVH) Intersect(ray *geom.Ray, hit *geom.Hit, leafFn LeafIntersectFunc, any, robust bool) bool {
	if len(b.Nodes) == 0 {
		return hit.PrimitiveIndex != geom.NoHit
	}

	var rd geom.RayData
	if robust {
		rd = geom.PrecomputeRayRobust(ray)
	} else {
		rd = geom.PrecomputeRay(ray)
	}

	// Special case when the root node is a leaf.
	root := &b.Nodes[0]
	if root.IsLeaf() {
		if ok, _ := intersectNode(root, &rd, ray); ok {
			leafFn(root, ray, hit, any)
		}
		return hit.PrimitiveIndex != geom.NoHit
	}

	var stackBuf [traversalStackSize]uint32
	stack := stackBuf[:]
	if b.Depth > traversalStackSize {
		stack = make([]uint32, b.Depth)
	}
	stackTop := 0

	leftIndex := root.FirstChildOrPrimitive
	for {
		left := &b.Nodes[leftIndex]
		right := &b.Nodes[leftIndex+1]

		// Intersect the two children together.
		hitLeft, tLeft := intersectNode(left, &rd, ray)
		hitRight, tRight := intersectNode(right, &rd, ray)

		// Leaves are resolved immediately; only inner children remain
		// candidates for descent.
		if hitLeft && left.IsLeaf() {
			if leafFn(left, ray, hit, any) && any {
				return true
			}
			hitLeft = false
		}
		if hitRight && right.IsLeaf() {
			if leafFn(right, ray, hit, any) && any {
				return true
			}
			hitRight = false
		}

		if hitLeft {
			if hitRight {
				// Both children were intersected: visit the nearer one
				// first (only worth the swap in closest mode) and push
				// the other for later.
				first, second := left, right
				if !any && tRight < tLeft {
					first, second = right, left
				}
				stack[stackTop] = second.FirstChildOrPrimitive
				stackTop++
				leftIndex = first.FirstChildOrPrimitive
			} else {
				leftIndex = left.FirstChildOrPrimitive
			}
		} else if hitRight {
			leftIndex = right.FirstChildOrPrimitive
		} else {
			if stackTop == 0 {
				break
			}
			stackTop--
			leftIndex = stack[stackTop]
		}
	}

	return hit.PrimitiveIndex != geom.NoHit
}

// intersectNode runs the slab test for node against the precomputed
// ray, reading near/far plane indices off the ray's per-axis octant so
// no branch on direction sign is needed per axis.
func intersectNode(node *Node, rd *geom.RayData, ray *geom.Ray) (hit bool, tEntry float64) {
	ox, oy, oz := rd.OctantAxis(0), rd.OctantAxis(1), rd.OctantAxis(2)

	tMinX := rd.IntersectAxisMin(0, node.Bounds[ox], ray)
	tMaxX := rd.IntersectAxisMax(0, node.Bounds[1-ox], ray)
	tMinY := rd.IntersectAxisMin(1, node.Bounds[2+oy], ray)
	tMaxY := rd.IntersectAxisMax(1, node.Bounds[2+(1-oy)], ray)
	tMinZ := rd.IntersectAxisMin(2, node.Bounds[4+oz], ray)
	tMaxZ := rd.IntersectAxisMax(2, node.Bounds[4+(1-oz)], ray)

	tMin := math.Max(ray.TMin, math.Max(tMinX, math.Max(tMinY, tMinZ)))
	tMax := math.Min(ray.TMax, math.Min(tMaxX, math.Min(tMaxY, tMaxZ)))
	return tMin <= tMax, tMin
}
