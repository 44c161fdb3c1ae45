// Package testutil provides shared test utilities and fixtures.
//
// The pose builders produce side-view stick figures whose joint angles are
// exact functions of the requested parameters, so analyzer tests can script
// a movement as a series of target angles.
package testutil

import (
	"math"
	"testing"
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

const (
	// Score is the detection confidence given to every built keypoint.
	Score = 0.9

	segment   = 0.2  // thigh and shin length
	torso     = 0.3  // hip to shoulder
	floorY    = 0.9  // image y of the ankles
	sideShift = 0.06 // x offset of right-side landmarks
)

func rad(deg float64) float64 { return deg * math.Pi / 180 }

type point struct{ x, y float64 }

func (p point) add(dx, dy float64) point { return point{p.x + dx, p.y + dy} }

// limb returns the point length away from p along a direction tilted deg from
// the vertical. down selects the downward direction.
func limb(p point, length, deg float64, down bool) point {
	dy := -length * math.Cos(rad(deg))
	if down {
		dy = -dy
	}
	return p.add(length*math.Sin(rad(deg)), dy)
}

// figure is a full set of named joint positions for one side-view pose.
type figure struct {
	shoulder, elbow, wrist point
	hip                    point
	lKnee, lAnkle          point
	rKnee, rAnkle          point
	ear                    point
}

func (f figure) pose() pose.Pose {
	p := make(pose.Pose, pose.NumLandmarks)
	set := func(idx int, pt point, right bool) {
		x := pt.x
		if right {
			x += sideShift
		}
		p[idx] = pose.Keypoint{X: x, Y: pt.y, Score: Score}
	}

	face := []int{pose.Nose, pose.LeftEyeInner, pose.LeftEye, pose.LeftEyeOuter,
		pose.RightEyeInner, pose.RightEye, pose.RightEyeOuter, pose.MouthLeft, pose.MouthRight}
	for _, idx := range face {
		set(idx, f.ear.add(0.03, 0.01), false)
	}
	for _, side := range []struct {
		right                                         bool
		ear, shoulder, elbow, wrist, hip, knee, ankle int
		pinky, index, thumb, heel, foot               int
		kneePt, anklePt                               point
	}{
		{false, pose.LeftEar, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle,
			pose.LeftPinky, pose.LeftIndex, pose.LeftThumb, pose.LeftHeel, pose.LeftFootIndex, f.lKnee, f.lAnkle},
		{true, pose.RightEar, pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightHip, pose.RightKnee, pose.RightAnkle,
			pose.RightPinky, pose.RightIndex, pose.RightThumb, pose.RightHeel, pose.RightFootIndex, f.rKnee, f.rAnkle},
	} {
		set(side.ear, f.ear, side.right)
		set(side.shoulder, f.shoulder, side.right)
		set(side.elbow, f.elbow, side.right)
		set(side.wrist, f.wrist, side.right)
		set(side.pinky, f.wrist.add(0.01, 0.01), side.right)
		set(side.index, f.wrist.add(0.015, 0.01), side.right)
		set(side.thumb, f.wrist.add(0.01, 0), side.right)
		set(side.hip, f.hip, side.right)
		set(side.knee, side.kneePt, side.right)
		set(side.ankle, side.anklePt, side.right)
		set(side.heel, side.anklePt.add(-0.03, 0.02), side.right)
		set(side.foot, side.anklePt.add(0.08, 0.02), side.right)
	}
	return p
}

// upright builds a standing-family figure from the hip down. thigh and shin
// are tilts from vertical in degrees for each leg; the knee angle of a leg is
// 180 - (thigh + shin) and the hip angle is 180 - (lean + left thigh).
func upright(lThigh, lShin, rThigh, rShin, lean float64, armsHang bool) figure {
	hipY := floorY - segment*(math.Cos(rad(lThigh))+math.Cos(rad(lShin)))
	hip := point{0.45, hipY}
	var f figure
	f.hip = hip
	f.lKnee = limb(hip, segment, lThigh, true)
	f.lAnkle = limb(f.lKnee, segment, -lShin, true)
	f.rKnee = limb(hip, segment, rThigh, true)
	f.rAnkle = limb(f.rKnee, segment, -rShin, true)
	f.shoulder = limb(hip, torso, lean, false)
	f.ear = limb(f.shoulder, 0.08, lean, false)
	if armsHang {
		f.elbow = f.shoulder.add(0, 0.12)
		f.wrist = f.shoulder.add(0, 0.24)
	} else {
		f.elbow = f.shoulder.add(0.12, 0)
		f.wrist = f.shoulder.add(0.24, 0)
	}
	return f
}

// SquatPose returns a squat pose whose knee angles both equal knee. The torso
// leans forward progressively with depth.
func SquatPose(knee float64) pose.Pose {
	tilt := (180 - knee) / 2
	return upright(tilt, tilt, tilt, tilt, 0.8*tilt, false).pose()
}

// SquatPoseWithLean is SquatPose with an explicit torso lean from vertical.
func SquatPoseWithLean(knee, lean float64) pose.Pose {
	tilt := (180 - knee) / 2
	return upright(tilt, tilt, tilt, tilt, lean, false).pose()
}

// LungePose returns a lunge pose with the left leg in front at the given knee
// angle and the back knee 15 degrees more open.
func LungePose(front float64) pose.Pose {
	back := math.Min(front+15, 178)
	backThigh := -10.0
	return upright(180-front, 0, backThigh, 180-back-backThigh, 3, true).pose()
}

// HingePose returns a deadlift pose with the given hip angle and softly bent
// knees (160 degrees). Arms hang vertically.
func HingePose(hip float64) pose.Pose {
	const tilt = 10
	return upright(tilt, tilt, tilt, tilt, 180-hip-tilt, true).pose()
}

// PushupPose returns a horizontal push-up pose with the given elbow angle and
// a straight body line.
func PushupPose(elbow float64) pose.Pose {
	const arm = 0.13
	ankle := point{0.9, 0.68}
	wrist := point{0.35, 0.70}
	d := 2 * arm * math.Sin(rad(elbow)/2)
	shoulder := point{wrist.x, wrist.y - d}
	elbowPt := point{wrist.x + arm*math.Cos(rad(elbow)/2), wrist.y - d/2}
	return horizontal(shoulder, ankle, elbowPt, wrist, 0).pose()
}

// PlankPose returns a forearm plank whose shoulder-hip-ankle angle is
// 180 - sag. Positive sag drops the hips below the body line.
func PlankPose(sag float64) pose.Pose {
	shoulder := point{0.3, 0.55}
	return horizontal(shoulder, point{0.85, 0.62}, point{0.3, 0.75}, point{0.42, 0.75}, sag).pose()
}

func horizontal(shoulder, ankle, elbow, wrist point, sag float64) figure {
	dx, dy := ankle.x-shoulder.x, ankle.y-shoulder.y
	length := math.Hypot(dx, dy)
	// Unit normal pointing down in image space.
	nx, ny := -dy/length, dx/length
	if ny < 0 {
		nx, ny = -nx, -ny
	}
	mid := point{shoulder.x + dx/2, shoulder.y + dy/2}
	offset := (length / 2) * math.Tan(rad(sag)/2)
	hip := mid.add(nx*offset, ny*offset)
	knee := point{(hip.x + ankle.x) / 2, (hip.y + ankle.y) / 2}
	return figure{
		shoulder: shoulder,
		elbow:    elbow,
		wrist:    wrist,
		hip:      hip,
		lKnee:    knee,
		lAnkle:   ankle,
		rKnee:    knee,
		rAnkle:   ankle,
		ear:      shoulder.add(-0.08*dx/length, -0.08*dy/length),
	}
}

// WithScore returns a copy of p with every keypoint score set to score.
func WithScore(p pose.Pose, score float64) pose.Pose {
	out := p.Clone()
	for i := range out {
		out[i].Score = score
	}
	return out
}

// WithDepth returns a copy of p carrying a constant depth on every keypoint.
func WithDepth(p pose.Pose, z float64) pose.Pose {
	out := p.Clone()
	for i := range out {
		v := z
		out[i].Z = &v
	}
	return out
}

// Occlude returns a copy of p with the listed landmarks scored zero.
func Occlude(p pose.Pose, idx ...int) pose.Pose {
	out := p.Clone()
	for _, i := range idx {
		out[i].Score = 0
	}
	return out
}

// Frames builds one frame per value using build, spaced step apart.
func Frames(build func(float64) pose.Pose, values []float64, step time.Duration) []pose.Frame {
	frames := make([]pose.Frame, len(values))
	for i, v := range values {
		frames[i] = pose.Frame{Pose: build(v), Timestamp: time.Duration(i) * step}
	}
	return frames
}

// Cycle returns a trajectory from top to bottom and back to top in steps
// samples per half, inclusive of both ends.
func Cycle(top, bottom float64, steps int) []float64 {
	out := make([]float64, 0, 2*steps+1)
	for i := 0; i <= steps; i++ {
		out = append(out, top+(bottom-top)*float64(i)/float64(steps))
	}
	for i := steps - 1; i >= 0; i-- {
		out = append(out, top+(bottom-top)*float64(i)/float64(steps))
	}
	return out
}

// Repeat concatenates n copies of values.
func Repeat(values []float64, n int) []float64 {
	out := make([]float64, 0, len(values)*n)
	for i := 0; i < n; i++ {
		out = append(out, values...)
	}
	return out
}
