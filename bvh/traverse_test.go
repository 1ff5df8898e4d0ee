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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-bvh/geom"
)

// intersectBoxRay is a minimal slab test used only to stand in for a
// primitive intersector in these tests; the prim package supplies the
// real one.
func intersectBoxRay(box geom.BBox, ray *geom.Ray) (float64, bool) {
	tMin, tMax := ray.TMin, ray.TMax
	lo := [3]float64{box.Min.X, box.Min.Y, box.Min.Z}
	hi := [3]float64{box.Max.X, box.Max.Y, box.Max.Z}
	for axis := 0; axis < 3; axis++ {
		o := ray.Org.Component(axis)
		d := ray.Dir.Component(axis)
		if d == 0 {
			if o < lo[axis] || o > hi[axis] {
				return 0, false
			}
			continue
		}
		t1 := (lo[axis] - o) / d
		t2 := (hi[axis] - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, true
}

func makeBBoxLeafFn(b *BVH, bboxFn BBoxFunc) LeafIntersectFunc {
	return func(node *Node, ray *geom.Ray, hit *geom.Hit, any bool) bool {
		hitAny := false
		for k := 0; k < int(node.PrimitiveCount); k++ {
			idx := b.PrimitiveIndices[int(node.FirstChildOrPrimitive)+k]
			t, ok := intersectBoxRay(bboxFn(idx), ray)
			if !ok {
				continue
			}
			if any {
				*hit = geom.Hit{PrimitiveIndex: idx}
				return true
			}
			if t < ray.TMax {
				ray.TMax = t
				*hit = geom.Hit{PrimitiveIndex: idx}
				hitAny = true
			}
		}
		return hitAny
	}
}

func TestIntersectFindsClosestPrimitiveAlongAxis(t *testing.T) {
	p := mustTestPool(t, 4)
	const n = 100
	_, bboxFn, centerFn := cubePrims(n)

	b := Build(p, n, bboxFn, centerFn)
	defer b.Close()

	ray := geom.Ray{Org: geom.Vec3{X: -10, Y: 0.5, Z: 0.5}, Dir: geom.Vec3{X: 1, Y: 0, Z: 0}, TMin: 0, TMax: 1e30}
	hit := geom.EmptyHit()
	leafFn := makeBBoxLeafFn(b, bboxFn)

	found := b.Intersect(&ray, &hit, leafFn, false, false)
	require.True(t, found)
	require.EqualValues(t, 0, hit.PrimitiveIndex)
}

func TestIntersectMissEverything(t *testing.T) {
	p := mustTestPool(t, 2)
	const n = 50
	_, bboxFn, centerFn := cubePrims(n)

	b := Build(p, n, bboxFn, centerFn)
	defer b.Close()

	ray := geom.Ray{Org: geom.Vec3{X: -10, Y: 100, Z: 100}, Dir: geom.Vec3{X: 1, Y: 0, Z: 0}, TMin: 0, TMax: 1e30}
	hit := geom.EmptyHit()
	leafFn := makeBBoxLeafFn(b, bboxFn)

	found := b.Intersect(&ray, &hit, leafFn, false, false)
	require.False(t, found)
	require.EqualValues(t, geom.NoHit, hit.PrimitiveIndex)
}

func TestIntersectAnyModeStopsAtFirstHit(t *testing.T) {
	p := mustTestPool(t, 2)
	const n = 50
	_, bboxFn, centerFn := cubePrims(n)

	b := Build(p, n, bboxFn, centerFn)
	defer b.Close()

	ray := geom.Ray{Org: geom.Vec3{X: -10, Y: 0.5, Z: 0.5}, Dir: geom.Vec3{X: 1, Y: 0, Z: 0}, TMin: 0, TMax: 1e30}
	hit := geom.EmptyHit()
	leafFn := makeBBoxLeafFn(b, bboxFn)

	found := b.Intersect(&ray, &hit, leafFn, true, false)
	require.True(t, found)
	require.NotEqual(t, geom.NoHit, hit.PrimitiveIndex)
}

func TestIntersectDefaultAndRobustAgreeOnAxisAlignedRay(t *testing.T) {
	p := mustTestPool(t, 4)
	const n = 80
	_, bboxFn, centerFn := cubePrims(n)

	b := Build(p, n, bboxFn, centerFn)
	defer b.Close()
	leafFn := makeBBoxLeafFn(b, bboxFn)

	mkRay := func() geom.Ray {
		return geom.Ray{Org: geom.Vec3{X: -10, Y: 0.5, Z: 0.5}, Dir: geom.Vec3{X: 1, Y: 0, Z: 0}, TMin: 0, TMax: 1e30}
	}

	defaultRay := mkRay()
	defaultHit := geom.EmptyHit()
	require.True(t, b.Intersect(&defaultRay, &defaultHit, leafFn, false, false))

	robustRay := mkRay()
	robustHit := geom.EmptyHit()
	require.True(t, b.Intersect(&robustRay, &robustHit, leafFn, false, true))

	require.Equal(t, defaultHit.PrimitiveIndex, robustHit.PrimitiveIndex)
}

func TestIntersectEmptyBVH(t *testing.T) {
	b := &BVH{}
	ray := geom.Ray{Dir: geom.Vec3{X: 1}, TMax: 1e30}
	hit := geom.EmptyHit()
	require.False(t, b.Intersect(&ray, &hit, nil, false, false))
}
