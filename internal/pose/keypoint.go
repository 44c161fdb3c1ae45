// Package pose holds the keypoint data contract shared by every analyzer and
// the geometry helpers that turn keypoints into joint angles and distances.
package pose

import (
	"math"
	"time"
)

// NumLandmarks is the size of the fixed body-landmark schema.
const NumLandmarks = 33

// DefaultMinScore is the detection confidence below which a keypoint is
// treated as undetected.
const DefaultMinScore = 0.5

// Landmark indices of the 33-point body schema.
const (
	Nose = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

// Keypoint is a single tracked landmark in image-normalised coordinates.
// Z is nil when the estimator provides no depth.
type Keypoint struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Z     *float64 `json:"z,omitempty"`
	Score float64  `json:"score"`
}

// Pose is an ordered array of keypoints indexed by the landmark constants.
type Pose []Keypoint

// Frame is one pose observation with its capture time relative to the start
// of the stream.
type Frame struct {
	Pose      Pose
	Timestamp time.Duration
}

// Usable reports whether the keypoint at idx exists, is finite and meets minScore.
func (p Pose) Usable(idx int, minScore float64) bool {
	if idx < 0 || idx >= len(p) {
		return false
	}
	return p[idx].usable(minScore)
}

// AllUsable reports whether every listed landmark is usable.
func (p Pose) AllUsable(minScore float64, idx ...int) bool {
	for _, i := range idx {
		if !p.Usable(i, minScore) {
			return false
		}
	}
	return true
}

// MeanScore returns the average detection score over the pose, or 0 when empty.
func (p Pose) MeanScore() float64 {
	if len(p) == 0 {
		return 0
	}
	var sum float64
	for _, kp := range p {
		sum += kp.Score
	}
	return sum / float64(len(p))
}

// Clone returns a deep copy of the pose.
func (p Pose) Clone() Pose {
	if p == nil {
		return nil
	}
	out := make(Pose, len(p))
	for i, kp := range p {
		out[i] = kp
		if kp.Z != nil {
			z := *kp.Z
			out[i].Z = &z
		}
	}
	return out
}

func (k Keypoint) usable(minScore float64) bool {
	if k.Score < minScore || math.IsNaN(k.Score) {
		return false
	}
	if !finite(k.X) || !finite(k.Y) {
		return false
	}
	return k.Z == nil || finite(*k.Z)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
