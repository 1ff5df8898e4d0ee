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

import "github.com/ajroetker/go-bvh/geom"

// Quad is a planar four-sided primitive interpreted as two triangles
// sharing the p1-p3 diagonal: (p0, p1, p3) and (p2, p3, p1). It is
// tested as a disjoint pair of triangles in one routine rather than as
// two separate Triangle values, sharing a single ray-plane term (n,
// inv_det, c, r) across both candidates.
type Quad struct {
	P0, E1, E2, E3, E4, N geom.Vec3
}

// NewQuad builds a Quad from its four corners, given in order around
// the perimeter.
func NewQuad(p0, p1, p2, p3 geom.Vec3) Quad {
	e1 := p0.Sub(p1)
	e2 := p2.Sub(p0)
	e3 := p2.Sub(p3)
	e4 := p1.Sub(p2)
	return Quad{P0: p0, E1: e1, E2: e2, E3: e3, E4: e4, N: e1.Cross(e2)}
}

func (q *Quad) p1() geom.Vec3 { return q.P0.Sub(q.E1) }
func (q *Quad) p2() geom.Vec3 { return q.P0.Add(q.E2) }
func (q *Quad) p3() geom.Vec3 { return q.p2().Sub(q.E3) }

// BBox returns the quad's axis-aligned bounding box over its four corners.
func (q *Quad) BBox() geom.BBox {
	b := geom.PointBBox(q.P0)
	b = b.Extend(q.p1())
	b = b.Extend(q.p2())
	b = b.Extend(q.p3())
	return b
}

// Centroid returns the quad's vertex-averaged center.
func (q *Quad) Centroid() geom.Vec3 {
	return q.P0.Add(q.p1()).Add(q.p2()).Add(q.p3()).Scale(0.25)
}

// Intersect tests ray against both triangles making up the quad,
// sharing the ray-plane term across both candidates. It accepts the
// first candidate whose barycentric coordinates land inside the unit
// triangle, mapping the second (back) triangle's (u, v) onto the unit
// square as (1-u, 1-v) so both halves parameterize the same [0,1]^2
// surface.
func (q *Quad) Intersect(ray *geom.Ray, hit *geom.Hit) bool {
	c := q.P0.Sub(ray.Org)
	r := ray.Dir.Cross(c)
	invDet := 1.0 / q.N.Dot(ray.Dir)

	var u, v float64
	u1 := r.Dot(q.E2) * invDet
	v1 := r.Dot(q.E1) * invDet
	switch {
	case u1 >= 0 && v1 >= 0 && u1+v1 <= 1:
		u, v = u1, v1
	default:
		u2 := r.Dot(q.E4) * invDet
		v2 := r.Dot(q.E3) * invDet
		if !(u2 >= 0 && v2 >= 0 && u2+v2 <= 1) {
			return false
		}
		u, v = 1-u2, 1-v2
	}

	t := q.N.Dot(c) * invDet
	if t >= ray.TMin && t <= ray.TMax {
		ray.TMax = t
		hit.U, hit.V = u, v
		return true
	}
	return false
}
