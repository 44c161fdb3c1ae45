package exercise

import (
	"math"

	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
)

// Landmark triples for the joint angles the analyzers use.
var (
	leftKnee  = [3]int{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}
	rightKnee = [3]int{pose.RightHip, pose.RightKnee, pose.RightAnkle}
	leftHip   = [3]int{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee}
	rightHip  = [3]int{pose.RightShoulder, pose.RightHip, pose.RightKnee}
	leftElbow = [3]int{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist}
	rightElb  = [3]int{pose.RightShoulder, pose.RightElbow, pose.RightWrist}
	leftLine  = [3]int{pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle}
	rightLine = [3]int{pose.RightShoulder, pose.RightHip, pose.RightAnkle}
	leftNeck  = [3]int{pose.LeftEar, pose.LeftShoulder, pose.LeftHip}
	rightNeck = [3]int{pose.RightEar, pose.RightShoulder, pose.RightHip}
)

// pair holds a bilateral joint angle.
type pair struct {
	left, right     float64
	leftOK, rightOK bool
}

func measure(p pose.Pose, l, r [3]int, minScore float64) pair {
	var b pair
	b.left, b.leftOK = p.JointAngle(l[0], l[1], l[2], minScore)
	b.right, b.rightOK = p.JointAngle(r[0], r[1], r[2], minScore)
	return b
}

func (b pair) any() bool { return b.leftOK || b.rightOK }

func (b pair) mean() float64 {
	switch {
	case b.leftOK && b.rightOK:
		return (b.left + b.right) / 2
	case b.leftOK:
		return b.left
	default:
		return b.right
	}
}

// flexed returns the smaller angle and its side.
func (b pair) flexed() (float64, Side) {
	if b.leftOK && (!b.rightOK || b.left <= b.right) {
		return b.left, SideLeft
	}
	return b.right, SideRight
}

// record stores the per-side and combined angle under name.
func (b pair) record(raw map[string]float64, name string) {
	if b.leftOK {
		raw["left_"+name] = b.left
	}
	if b.rightOK {
		raw["right_"+name] = b.right
	}
	if b.any() {
		raw[name] = b.mean()
	}
}

// reading is the driving measurement of one frame.
type reading struct {
	value float64
	side  Side
	raw   map[string]float64
}

// read extracts the driving angle of exercise t along with every raw angle
// the checkpoints need. It reports false when the driving joints are not
// visible on either side.
func read(t Type, p pose.Pose, cfg Config) (reading, bool) {
	ms := cfg.MinKeypointScore
	rd := reading{raw: make(map[string]float64)}

	knees := measure(p, leftKnee, rightKnee, ms)
	hips := measure(p, leftHip, rightHip, ms)
	knees.record(rd.raw, "knee")
	hips.record(rd.raw, "hip")
	if lean, ok := torsoLean(p, ms); ok {
		rd.raw["torso_lean"] = lean
	}

	switch t {
	case Squat:
		if !knees.any() {
			return rd, false
		}
		rd.value = knees.mean()
	case Lunge:
		if !knees.any() {
			return rd, false
		}
		rd.value, rd.side = knees.flexed()
		rd.raw["front_knee"] = rd.value
		if knees.leftOK && knees.rightOK {
			rd.raw["back_knee"] = math.Max(knees.left, knees.right)
		}
	case Deadlift:
		if !hips.any() {
			return rd, false
		}
		rd.value = hips.mean()
	case Pushup:
		elbows := measure(p, leftElbow, rightElb, ms)
		if !elbows.any() {
			return rd, false
		}
		elbows.record(rd.raw, "elbow")
		rd.value = elbows.mean()
	case Plank:
		line := measure(p, leftLine, rightLine, ms)
		if !line.any() {
			return rd, false
		}
		rd.value = line.mean()
		tilt, ok := bodyTilt(p, ms)
		if !ok {
			return rd, false
		}
		rd.raw["body_tilt"] = tilt
	default:
		return rd, false
	}

	switch t {
	case Pushup, Plank:
		measure(p, leftLine, rightLine, ms).record(rd.raw, "body_line")
	}
	measure(p, leftNeck, rightNeck, ms).record(rd.raw, "neck")
	return rd, true
}

// DrivingAngle returns the angle that drives the phase machine of exercise t:
// mean knee angle for squat, front knee for lunge, hip angle for deadlift,
// elbow angle for push-up and shoulder-hip-ankle line for plank.
func DrivingAngle(t Type, p pose.Pose, cfg Config) (float64, bool) {
	rd, ok := read(t, p, cfg)
	return rd.value, ok
}

// torsoLean returns the inclination of the hip-to-shoulder segment from
// vertical, using the centre of both sides.
func torsoLean(p pose.Pose, minScore float64) (float64, bool) {
	if len(p) < pose.NumLandmarks {
		return 0, false
	}
	return pose.SegmentInclination(p.Center(pose.LeftHip, pose.RightHip), p.Center(pose.LeftShoulder, pose.RightShoulder), minScore)
}

// bodyTilt returns the inclination of the shoulder-to-ankle line from horizontal.
func bodyTilt(p pose.Pose, minScore float64) (float64, bool) {
	if len(p) < pose.NumLandmarks {
		return 0, false
	}
	incl, ok := pose.SegmentInclination(p.Center(pose.LeftShoulder, pose.RightShoulder), p.Center(pose.LeftAnkle, pose.RightAnkle), minScore)
	if !ok {
		return 0, false
	}
	return 90 - incl, true
}

// hipSag returns the signed distance of the hip centre from the
// shoulder-ankle line, positive when the hips drop below it.
func hipSag(p pose.Pose, minScore float64) (float64, bool) {
	if len(p) < pose.NumLandmarks {
		return 0, false
	}
	s := p.Center(pose.LeftShoulder, pose.RightShoulder)
	h := p.Center(pose.LeftHip, pose.RightHip)
	a := p.Center(pose.LeftAnkle, pose.RightAnkle)
	length, ok := pose.Distance(s, a, minScore)
	if !ok || length == 0 || h.Score < minScore {
		return 0, false
	}
	cross := (a.X-s.X)*(h.Y-s.Y) - (a.Y-s.Y)*(h.X-s.X)
	if a.X < s.X {
		cross = -cross
	}
	return cross / length, true
}
