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

package prim

import (
	"github.com/ajroetker/go-bvh/bvh"
	"github.com/ajroetker/go-bvh/geom"
	"github.com/ajroetker/go-bvh/parallel"
	"github.com/ajroetker/go-bvh/pool"
)

// primitive is the method set bvh.Build/Intersect need from a leaf
// primitive, expressed as a pointer-type-parameter constraint so Mesh
// works over both Triangle and Quad without an interface-boxed slice.
type primitive[P any] interface {
	*P
	BBox() geom.BBox
	Centroid() geom.Vec3
	Intersect(ray *geom.Ray, hit *geom.Hit) bool
}

// Mesh adapts a flat slice of primitives to bvh.Build's bbox/center
// callbacks and bvh.Intersect's leaf callback. It is the concrete
// stand-in for whatever scene representation a renderer actually
// keeps; nothing else in this module knows what a Triangle or Quad is.
type Mesh[P any, PP primitive[P]] struct {
	BVH           *bvh.BVH
	Prims         []P
	OriginalIndex []uint32 // current index -> pre-permutation index
}

// NewMesh wraps prims for use with b, the BVH that will be (or was)
// built over it via BBoxFunc/CenterFunc.
func NewMesh[P any, PP primitive[P]](b *bvh.BVH, prims []P) *Mesh[P, PP] {
	original := make([]uint32, len(prims))
	for i := range original {
		original[i] = uint32(i)
	}
	return &Mesh[P, PP]{BVH: b, Prims: prims, OriginalIndex: original}
}

// BBoxFunc adapts Prims for bvh.Build.
func (m *Mesh[P, PP]) BBoxFunc() bvh.BBoxFunc {
	return func(index uint32) geom.BBox { return PP(&m.Prims[index]).BBox() }
}

// CenterFunc adapts Prims for bvh.Build.
func (m *Mesh[P, PP]) CenterFunc() bvh.CenterFunc {
	return func(index uint32) geom.Vec3 { return PP(&m.Prims[index]).Centroid() }
}

// Permute physically reorders Prims into BVH leaf order so traversal
// addresses [first, first+primitive_count) of Prims directly instead
// of indirecting through m.BVH.PrimitiveIndices. The index array is
// then dropped (set to nil): LeafIntersect addresses Prims directly
// from this point on, and Intersect maps hits back through
// m.OriginalIndex.
func (m *Mesh[P, PP]) Permute(p *pool.Pool) {
	n := len(m.Prims)
	order := m.BVH.PrimitiveIndices
	newPrims := make([]P, n)
	newOriginal := make([]uint32, n)
	parallel.For1D(p, 0, n, func(workerID int, r parallel.Range) {
		for i := r.Begin; i < r.End; i++ {
			src := order[i]
			newPrims[i] = m.Prims[src]
			newOriginal[i] = m.OriginalIndex[src]
		}
	})
	m.Prims = newPrims
	m.OriginalIndex = newOriginal
	m.BVH.PrimitiveIndices = nil
}

// LeafIntersect adapts Prims for bvh.Intersect, addressing the
// permuted buffer directly once Permute has run and falling back to
// m.BVH.PrimitiveIndices indirection otherwise. hit.PrimitiveIndex is
// left in the BVH's current numbering; Intersect remaps it to the
// caller's original numbering after a successful query.
func (m *Mesh[P, PP]) LeafIntersect() bvh.LeafIntersectFunc {
	return func(node *bvh.Node, ray *geom.Ray, hit *geom.Hit, any bool) bool {
		first := int(node.FirstChildOrPrimitive)
		order := m.BVH.PrimitiveIndices
		hitAny := false
		for k := 0; k < int(node.PrimitiveCount); k++ {
			idx := first + k
			if order != nil {
				idx = int(order[idx])
			}
			if PP(&m.Prims[idx]).Intersect(ray, hit) {
				hit.PrimitiveIndex = uint32(idx)
				hitAny = true
				if any {
					return true
				}
			}
		}
		return hitAny
	}
}

// Intersect runs m.BVH.Intersect through LeafIntersect and remaps a
// successful hit's primitive index back to the caller's original
// pre-permutation numbering.
func (m *Mesh[P, PP]) Intersect(ray *geom.Ray, hit *geom.Hit, any, robust bool) bool {
	found := m.BVH.Intersect(ray, hit, m.LeafIntersect(), any, robust)
	if found {
		hit.PrimitiveIndex = m.OriginalIndex[hit.PrimitiveIndex]
	}
	return found
}
