package pose

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// minVectorNorm is the shortest limb vector an angle is computed from.
// Shorter vectors come from coincident keypoints and give meaningless angles.
const minVectorNorm = 1e-9

// vec lifts a keypoint into 3D. Depth is only used when useZ is set so that a
// triple mixing 2D and 3D points is measured consistently in the image plane.
func vec(k Keypoint, useZ bool) r3.Vec {
	v := r3.Vec{X: k.X, Y: k.Y}
	if useZ && k.Z != nil {
		v.Z = *k.Z
	}
	return v
}

// Angle returns the angle at vertex b formed by a-b-c in degrees, in [0, 180].
// The measurement is 3D when all three points carry depth and 2D otherwise.
// It reports false when any point is unusable or a limb vector is degenerate.
func Angle(a, b, c Keypoint, minScore float64) (float64, bool) {
	if !a.usable(minScore) || !b.usable(minScore) || !c.usable(minScore) {
		return 0, false
	}
	useZ := a.Z != nil && b.Z != nil && c.Z != nil
	return VectorAngle(r3.Sub(vec(a, useZ), vec(b, useZ)), r3.Sub(vec(c, useZ), vec(b, useZ)))
}

// VectorAngle returns the angle between two vectors in degrees, in [0, 180].
func VectorAngle(u, v r3.Vec) (float64, bool) {
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu < minVectorNorm || nv < minVectorNorm {
		return 0, false
	}
	cos := r3.Dot(u, v) / (nu * nv)
	// Clamp rounding error before acos.
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, true
}

// JointAngle is Angle over landmark indices of a pose.
func (p Pose) JointAngle(a, b, c int, minScore float64) (float64, bool) {
	if !p.AllUsable(minScore, a, b, c) {
		return 0, false
	}
	return Angle(p[a], p[b], p[c], minScore)
}

// Distance returns the Euclidean distance between two keypoints in the image
// plane, or false when either is unusable.
func Distance(a, b Keypoint, minScore float64) (float64, bool) {
	if !a.usable(minScore) || !b.usable(minScore) {
		return 0, false
	}
	return math.Hypot(a.X-b.X, a.Y-b.Y), true
}

// NormalizedDistance divides the a-b distance by the refA-refB distance, which
// makes it independent of how far the subject stands from the camera.
func (p Pose) NormalizedDistance(a, b, refA, refB int, minScore float64) (float64, bool) {
	if !p.AllUsable(minScore, a, b, refA, refB) {
		return 0, false
	}
	d, _ := Distance(p[a], p[b], minScore)
	ref, _ := Distance(p[refA], p[refB], minScore)
	if ref < minVectorNorm {
		return 0, false
	}
	return d / ref, true
}

// Midpoint returns the point halfway between a and b. Its score is the lower
// of the two so an unusable input yields an unusable midpoint.
func Midpoint(a, b Keypoint) Keypoint {
	m := Keypoint{
		X:     (a.X + b.X) / 2,
		Y:     (a.Y + b.Y) / 2,
		Score: math.Min(a.Score, b.Score),
	}
	if a.Z != nil && b.Z != nil {
		z := (*a.Z + *b.Z) / 2
		m.Z = &z
	}
	return m
}

// Center returns the midpoint of two landmarks of the pose.
func (p Pose) Center(a, b int) Keypoint {
	if a < 0 || b < 0 || a >= len(p) || b >= len(p) {
		return Keypoint{}
	}
	return Midpoint(p[a], p[b])
}

// SegmentInclination returns the angle in degrees between the from->to
// segment and the vertical image axis, in [0, 90].
func SegmentInclination(from, to Keypoint, minScore float64) (float64, bool) {
	if !from.usable(minScore) || !to.usable(minScore) {
		return 0, false
	}
	dx, dy := math.Abs(to.X-from.X), math.Abs(to.Y-from.Y)
	if dx < minVectorNorm && dy < minVectorNorm {
		return 0, false
	}
	return math.Atan2(dx, dy) * 180 / math.Pi, true
}
