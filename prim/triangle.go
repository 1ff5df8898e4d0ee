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

// Package prim supplies concrete leaf geometry (triangles and quads)
// and the mesh-level adapters that let bvh.Build/Collapse/Intersect
// operate directly over them.
package prim

import "github.com/ajroetker/go-bvh/geom"

// Triangle stores a corner plus two edge vectors and the precomputed
// face normal, so ray intersection needs no further subtraction.
type Triangle struct {
	P0, E1, E2, N geom.Vec3
}

// NewTriangle builds a Triangle from its three corners.
func NewTriangle(p0, p1, p2 geom.Vec3) Triangle {
	e1 := p0.Sub(p1)
	e2 := p2.Sub(p0)
	return Triangle{P0: p0, E1: e1, E2: e2, N: e1.Cross(e2)}
}

// BBox returns the triangle's axis-aligned bounding box.
func (tri *Triangle) BBox() geom.BBox {
	p1 := tri.P0.Sub(tri.E1)
	p2 := tri.E2.Add(tri.P0)
	return geom.BBox{Min: tri.P0.Min(p1).Min(p2), Max: tri.P0.Max(p1).Max(p2)}
}

// Centroid returns the triangle's vertex-averaged center.
func (tri *Triangle) Centroid() geom.Vec3 {
	p1 := tri.P0.Sub(tri.E1)
	p2 := tri.E2.Add(tri.P0)
	return tri.P0.Add(p1).Add(p2).Scale(1.0 / 3.0)
}

// Intersect runs a Möller-Trumbore style test against ray, updating
// ray.TMax and hit on a closer hit found within [ray.TMin, ray.TMax].
// The barycentric comparisons are written so any NaN operand (a
// degenerate triangle, or a ray direction perpendicular to N) makes
// every branch false rather than needing an explicit degeneracy check.
func (tri *Triangle) Intersect(ray *geom.Ray, hit *geom.Hit) bool {
	c := tri.P0.Sub(ray.Org)
	r := ray.Dir.Cross(c)

	invDet := 1.0 / tri.N.Dot(ray.Dir)
	u := r.Dot(tri.E2) * invDet
	v := r.Dot(tri.E1) * invDet
	w := 1 - u - v

	if u >= 0 && v >= 0 && w >= 0 {
		t := tri.N.Dot(c) * invDet
		if t >= ray.TMin && t <= ray.TMax {
			ray.TMax = t
			hit.U, hit.V = u, v
			return true
		}
	}
	return false
}
