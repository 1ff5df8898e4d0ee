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

// Package geom provides the minimal vector, bounding-box, ray and hit
// types the BVH builder and traverser operate on. It is intentionally
// thin: no matrices, no quaternions, no general-purpose linear algebra
// beyond what building and traversing a BVH requires.
package geom

import "math"

// NoHit is the sentinel primitive index meaning "no intersection found".
const NoHit = math.MaxUint32

// FastMulAdd computes a*b+c as a single correctly-rounded operation.
func FastMulAdd(a, b, c float64) float64 { return math.FMA(a, b, c) }

// epsilon bounds the smallest magnitude a ray direction component may
// have before its reciprocal is clamped, avoiding a true division by
// zero while still producing a very large (but finite) inverse.
const epsilon = 1e-9

// Vec3 is a 3-component double-precision vector.
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Mul(b Vec3) Vec3 { return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }
func (a Vec3) Scale(f float64) Vec3 { return Vec3{a.X * f, a.Y * f, a.Z * f} }

func (a Vec3) Min(b Vec3) Vec3 {
	return Vec3{math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Min(a.Z, b.Z)}
}

func (a Vec3) Max(b Vec3) Vec3 {
	return Vec3{math.Max(a.X, b.X), math.Max(a.Y, b.Y), math.Max(a.Z, b.Z)}
}

func (a Vec3) Dot(b Vec3) float64 {
	return FastMulAdd(a.X, b.X, FastMulAdd(a.Y, b.Y, a.Z*b.Z))
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Component returns the i-th component (0=X, 1=Y, 2=Z).
func (a Vec3) Component(i int) float64 {
	switch i {
	case 0:
		return a.X
	case 1:
		return a.Y
	default:
		return a.Z
	}
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	Min, Max Vec3
}

// EmptyBBox returns an inverted box such that Extend/Union with any
// finite point or box yields that point or box unchanged.
func EmptyBBox() BBox {
	return BBox{
		Min: Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		Max: Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
	}
}

// PointBBox returns the degenerate box containing exactly p.
func PointBBox(p Vec3) BBox { return BBox{Min: p, Max: p} }

func (b BBox) Extend(p Vec3) BBox {
	return BBox{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

func (b BBox) Union(o BBox) BBox {
	return BBox{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// HalfArea returns half the surface area of the box (0 for an empty or
// degenerate box).
func (b BBox) HalfArea() float64 {
	e := b.Max.Sub(b.Min).Max(Vec3{})
	return FastMulAdd(e.X, e.Y, FastMulAdd(e.X, e.Z, e.Y*e.Z))
}

// Centroid returns the box's center point.
func (b BBox) Centroid() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

func (b BBox) Contains(o BBox) bool {
	return b.Max.X >= o.Max.X && b.Min.X <= o.Min.X &&
		b.Max.Y >= o.Max.Y && b.Min.Y <= o.Min.Y &&
		b.Max.Z >= o.Max.Z && b.Min.Z <= o.Min.Z
}

func (b BBox) Overlaps(o BBox) bool {
	return b.Max.X >= o.Min.X && b.Min.X <= o.Max.X &&
		b.Max.Y >= o.Min.Y && b.Min.Y <= o.Max.Y &&
		b.Max.Z >= o.Min.Z && b.Min.Z <= o.Max.Z
}

// Ray is a ray segment from Org along Dir, valid between TMin and
// TMax. Intersection routines mutate TMax to the nearest hit distance
// found so far.
type Ray struct {
	Org, Dir   Vec3
	TMin, TMax float64
}

// PointAt evaluates the ray at parameter t.
func (r Ray) PointAt(t float64) Vec3 {
	return Vec3{
		FastMulAdd(t, r.Dir.X, r.Org.X),
		FastMulAdd(t, r.Dir.Y, r.Org.Y),
		FastMulAdd(t, r.Dir.Z, r.Org.Z),
	}
}

// Hit records the primitive hit and its surface parameterization.
type Hit struct {
	PrimitiveIndex uint32
	U, V           float64
}

// EmptyHit returns the sentinel "no hit yet" value.
func EmptyHit() Hit { return Hit{PrimitiveIndex: NoHit} }

// SafeInverse returns 1/x, clamping x away from zero (preserving its
// sign) to avoid actual division by zero while degrading gracefully
// for rays nearly parallel to an axis.
func SafeInverse(x float64) float64 {
	if math.Abs(x) <= epsilon {
		x = math.Copysign(epsilon, x)
	}
	return 1 / x
}

// AddULPMagnitude nudges x by n representable floating-point steps,
// used to pad the robust traversal's inverse-direction bound outward.
// Non-finite inputs pass through unchanged.
func AddULPMagnitude(x float64, n uint64) float64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return x
	}
	bits := math.Float64bits(x)
	return math.Float64frombits(bits + n)
}

// RayData is ray state precomputed once per ray and reused across every
// node test during traversal: per-axis inverse direction, either a
// scaled origin (default mode) or a ULP-padded inverse direction
// (robust mode), and the ray's octant (which side of each axis the box
// planes must be read from).
type RayData struct {
	InvDir       Vec3
	ScaledOrg    Vec3 // default mode only
	PaddedInvDir Vec3 // robust mode only
	Octant       [3]int
	Robust       bool
}

func octantOf(dir Vec3) [3]int {
	sign := func(v float64) int {
		if math.Signbit(v) {
			return 1
		}
		return 0
	}
	return [3]int{sign(dir.X), sign(dir.Y), sign(dir.Z)}
}

// PrecomputeRay builds RayData for the default (non-robust) traversal
// variant.
func PrecomputeRay(r *Ray) RayData {
	inv := Vec3{SafeInverse(r.Dir.X), SafeInverse(r.Dir.Y), SafeInverse(r.Dir.Z)}
	scaled := Vec3{-r.Org.X * inv.X, -r.Org.Y * inv.Y, -r.Org.Z * inv.Z}
	return RayData{InvDir: inv, ScaledOrg: scaled, Octant: octantOf(r.Dir)}
}

// PrecomputeRayRobust builds RayData for T. Ize's robust traversal
// variant, padding the inverse direction outward by two ULPs to
// guarantee the slab test never misses a box a non-robust test would
// find due to rounding.
func PrecomputeRayRobust(r *Ray) RayData {
	inv := Vec3{SafeInverse(r.Dir.X), SafeInverse(r.Dir.Y), SafeInverse(r.Dir.Z)}
	padded := Vec3{
		AddULPMagnitude(inv.X, 2),
		AddULPMagnitude(inv.Y, 2),
		AddULPMagnitude(inv.Z, 2),
	}
	return RayData{InvDir: inv, PaddedInvDir: padded, Octant: octantOf(r.Dir), Robust: true}
}

// IntersectAxisMin computes the near-plane t value for axis using
// plane position p.
func (rd *RayData) IntersectAxisMin(axis int, p float64, r *Ray) float64 {
	if rd.Robust {
		return (p - r.Org.Component(axis)) * rd.InvDir.Component(axis)
	}
	switch axis {
	case 0:
		return FastMulAdd(p, rd.InvDir.X, rd.ScaledOrg.X)
	case 1:
		return FastMulAdd(p, rd.InvDir.Y, rd.ScaledOrg.Y)
	default:
		return FastMulAdd(p, rd.InvDir.Z, rd.ScaledOrg.Z)
	}
}

// IntersectAxisMax computes the far-plane t value for axis using plane
// position p.
func (rd *RayData) IntersectAxisMax(axis int, p float64, r *Ray) float64 {
	if rd.Robust {
		switch axis {
		case 0:
			return (p - r.Org.X) * rd.PaddedInvDir.X
		case 1:
			return (p - r.Org.Y) * rd.PaddedInvDir.Y
		default:
			return (p - r.Org.Z) * rd.PaddedInvDir.Z
		}
	}
	return rd.IntersectAxisMin(axis, p, r)
}

// OctantAxis returns the octant entry for axis (0 = the ray direction
// component has its sign bit clear, 1 = set, so -0 counts as negative
// just as SafeInverse(-0) does).
func (rd *RayData) OctantAxis(axis int) int { return rd.Octant[axis] }
