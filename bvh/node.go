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

// Package bvh implements parallel BVH construction (Meister & Bittner
// locally-ordered clustering), a SAH leaf-collapse pass, and
// branch-and-bound front-to-back traversal.
package bvh

import "github.com/ajroetker/go-bvh/geom"

// Node is the compact six-plane-AABB record every BVH slot holds:
// Bounds packs (minX, maxX, minY, maxY, minZ, maxZ) so traversal can
// index straight into it with an octant-selected offset instead of
// branching on axis.
type Node struct {
	Bounds                [6]float64
	PrimitiveCount        uint32
	FirstChildOrPrimitive uint32
}

// BBox unpacks the node's six-plane bounds into a geom.BBox.
func (n *Node) BBox() geom.BBox {
	return geom.BBox{
		Min: geom.Vec3{X: n.Bounds[0], Y: n.Bounds[2], Z: n.Bounds[4]},
		Max: geom.Vec3{X: n.Bounds[1], Y: n.Bounds[3], Z: n.Bounds[5]},
	}
}

// SetBBox packs b into the node's six-plane bounds.
func (n *Node) SetBBox(b geom.BBox) {
	n.Bounds = [6]float64{b.Min.X, b.Max.X, b.Min.Y, b.Max.Y, b.Min.Z, b.Max.Z}
}

// IsLeaf reports whether the node terminates traversal (has
// primitives attached) rather than pointing at a child pair.
func (n *Node) IsLeaf() bool { return n.PrimitiveCount > 0 }

// BVH owns the node array (root at index 0) and the primitive-index
// permutation built alongside it. len(Nodes) is exactly 2N-1 after
// Build and at most 2N-1 after Collapse (a fully collapsed tree is a
// single leaf). Depth is the
// number of inner-node levels above the deepest leaf; by convention 0
// means the root itself is a leaf. Intersect sizes its traversal stack
// from it.
type BVH struct {
	Nodes            []Node
	PrimitiveIndices []uint32
	Depth            int
}

// Close releases the BVH's backing arrays; Close itself is idempotent.
// A closed BVH behaves as an empty one: Intersect leaves ray and hit
// untouched and Collapse returns without doing anything. Indexing
// Nodes or PrimitiveIndices directly afterward panics.
func (b *BVH) Close() {
	b.Nodes = nil
	b.PrimitiveIndices = nil
	b.Depth = 0
}

// computeDepth returns the deepest leaf's level. It relies on children
// always being stored at higher indices than their parent, which both
// the builder's back-to-front merge order and the collapser's
// source-order rewrite guarantee, so one forward pass suffices.
func computeDepth(nodes []Node) int {
	if len(nodes) == 0 || nodes[0].IsLeaf() {
		return 0
	}
	depths := make([]int32, len(nodes))
	deepest := int32(0)
	for i := range nodes {
		node := &nodes[i]
		if node.IsLeaf() {
			if depths[i] > deepest {
				deepest = depths[i]
			}
			continue
		}
		left := node.FirstChildOrPrimitive
		depths[left] = depths[i] + 1
		depths[left+1] = depths[i] + 1
	}
	return int(deepest)
}

// BBoxFunc computes the world-space bounding box of primitive index.
type BBoxFunc func(index uint32) geom.BBox

// CenterFunc computes the centroid of primitive index; it must lie
// inside BBoxFunc(index) within floating-point tolerance.
type CenterFunc func(index uint32) geom.Vec3

// LeafIntersectFunc intersects a ray against the primitives addressed
// by a leaf node, updating ray.TMax and hit on a closer hit. It must
// return early (true) iff any is set and a hit was found.
type LeafIntersectFunc func(node *Node, ray *geom.Ray, hit *geom.Hit, any bool) bool
