package video

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
)

// Feature names one component of a motion signature.
type Feature string

const (
	VerticalRange   Feature = "vertical_range"   // hip centre travel in image heights
	HorizontalRange Feature = "horizontal_range" // hip centre travel in image widths
	KneeRange       Feature = "knee_range"       // degrees
	HipRange        Feature = "hip_range"        // degrees
	ElbowRange      Feature = "elbow_range"      // degrees
	KneeAsymmetry   Feature = "knee_asymmetry"   // largest left/right knee difference, degrees
	Orientation     Feature = "orientation"      // mean torso inclination from vertical, degrees
	CycleFrequency  Feature = "cycle_frequency"  // Hz, 0 when no periodicity was found
)

// MotionSignature is a coarse description of the movement in a window.
type MotionSignature map[Feature]float64

// Bounds is the accepted interval of one feature.
type Bounds struct {
	Min, Max float64
	Scale    float64 // distance unit outside the interval
}

// outside returns how far v lies outside the bounds in scale units.
func (b Bounds) outside(v float64) float64 {
	scale := b.Scale
	if scale <= 0 {
		scale = 1
	}
	switch {
	case v < b.Min:
		return (b.Min - v) / scale
	case v > b.Max:
		return (v - b.Max) / scale
	}
	return 0
}

// Profile describes the expected signature of one exercise.
type Profile struct {
	Exercise exercise.Type
	Features map[Feature]Bounds
}

// DefaultProfiles returns the built-in profile table.
func DefaultProfiles() []Profile {
	deg := func(lo, hi float64) Bounds { return Bounds{lo, hi, 20} }
	return []Profile{
		{exercise.Squat, map[Feature]Bounds{
			Orientation:   {0, 45, 10},
			KneeRange:     deg(40, 150),
			HipRange:      deg(30, 150),
			KneeAsymmetry: {0, 8, 5},
			VerticalRange: {0.05, 0.6, 0.05},
		}},
		{exercise.Lunge, map[Feature]Bounds{
			Orientation:   {0, 30, 10},
			KneeRange:     deg(30, 150),
			KneeAsymmetry: {10, 90, 5},
			VerticalRange: {0.03, 0.5, 0.05},
		}},
		{exercise.Deadlift, map[Feature]Bounds{
			Orientation: {0, 70, 10},
			KneeRange:   deg(0, 35),
			HipRange:    deg(35, 150),
		}},
		{exercise.Pushup, map[Feature]Bounds{
			Orientation: {55, 90, 10},
			ElbowRange:  deg(30, 150),
			KneeRange:   deg(0, 30),
		}},
		{exercise.Plank, map[Feature]Bounds{
			Orientation:   {55, 90, 10},
			ElbowRange:    deg(0, 20),
			HipRange:      deg(0, 25),
			VerticalRange: {0, 0.03, 0.02},
		}},
	}
}

// Candidate is one ranked profile match.
type Candidate struct {
	Exercise   exercise.Type `json:"exercise"`
	Similarity float64       `json:"similarity"`
}

// MatchSignature ranks the profiles by similarity 1/(1+d), where d is the
// Euclidean norm of the per-feature distances outside each profile's bounds.
// Features missing from the signature count as a full scale unit away.
func MatchSignature(sig MotionSignature, profiles []Profile) []Candidate {
	out := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		dist := make([]float64, 0, len(p.Features))
		for f, b := range p.Features {
			v, ok := sig[f]
			if !ok {
				dist = append(dist, 1)
				continue
			}
			dist = append(dist, b.outside(v))
		}
		d := floats.Norm(dist, 2)
		out = append(out, Candidate{Exercise: p.Exercise, Similarity: 1 / (1 + d)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

// Status is the outcome of a detection attempt.
type Status string

const (
	StatusDetected           Status = "detected"
	StatusLowConfidence      Status = "low_confidence"
	StatusInsufficientFrames Status = "insufficient_frames"
	StatusTimeout            Status = "timeout"
	StatusCanceled           Status = "canceled"
)

// DetectionResult reports the exercise found in a window. Exercise is set
// only when Status is StatusDetected.
type DetectionResult struct {
	Status       Status          `json:"status"`
	Exercise     exercise.Type   `json:"exercise,omitempty"`
	Confidence   float64         `json:"confidence"`
	Alternatives []Candidate     `json:"alternatives,omitempty"`
	Signature    MotionSignature `json:"signature,omitempty"`
	FramesUsed   int             `json:"framesUsed"`
	Elapsed      time.Duration   `json:"elapsed"`
}

// Detect identifies the exercise from the first cfg.WindowFrames usable
// frames. It gives up after cfg.Timeout.
func Detect(ctx context.Context, frames []Frame, cfg Config) DetectionResult {
	began := time.Now()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	res := detect(ctx, frames, cfg)
	res.Elapsed = time.Since(began)
	monitoring.Logf("detection: %s %s (confidence %.2f, %d frames, %v)",
		res.Status, res.Exercise, res.Confidence, res.FramesUsed, res.Elapsed)
	return res
}

func detect(ctx context.Context, frames []Frame, cfg Config) DetectionResult {
	window := make([]Frame, 0, cfg.WindowFrames)
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return DetectionResult{Status: statusOf(err), FramesUsed: len(window)}
		}
		if !f.usable(cfg.Exercise.MinKeypointScore) {
			continue
		}
		window = append(window, f)
		if len(window) == cfg.WindowFrames {
			break
		}
	}
	if len(window) < cfg.MinFrames {
		return DetectionResult{Status: StatusInsufficientFrames, FramesUsed: len(window)}
	}

	sig, err := signatureOf(ctx, window, cfg.Exercise.MinKeypointScore)
	if err != nil {
		return DetectionResult{Status: statusOf(err), FramesUsed: len(window)}
	}
	ranked := MatchSignature(sig, cfg.Profiles)
	res := DetectionResult{
		Status:       StatusLowConfidence,
		Alternatives: ranked,
		Signature:    sig,
		FramesUsed:   len(window),
	}
	if len(ranked) > 0 {
		res.Confidence = ranked[0].Similarity
		if res.Confidence >= cfg.MinConfidence {
			res.Status = StatusDetected
			res.Exercise = ranked[0].Exercise
			res.Alternatives = ranked[1:]
		}
	}
	return res
}

func statusOf(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusCanceled
}

// Signature computes the motion signature of a window of frames.
func Signature(frames []Frame, minScore float64) MotionSignature {
	sig, _ := signatureOf(context.Background(), frames, minScore)
	return sig
}

type series struct {
	ts                           []float64
	hipX, hipY                   []float64
	knee, hip, elbow, asym, tilt []float64
}

func signatureOf(ctx context.Context, frames []Frame, minScore float64) (MotionSignature, error) {
	var s series
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Pose == nil {
			continue
		}
		s.add(f.Pose, f.Timestamp, minScore)
	}

	sig := MotionSignature{}
	put := func(f Feature, vs []float64) {
		if len(vs) > 0 {
			sig[f] = floats.Max(vs) - floats.Min(vs)
		}
	}
	put(VerticalRange, s.hipY)
	put(HorizontalRange, s.hipX)
	put(KneeRange, s.knee)
	put(HipRange, s.hip)
	put(ElbowRange, s.elbow)
	if len(s.asym) > 0 {
		sig[KneeAsymmetry] = floats.Max(s.asym)
	}
	if len(s.tilt) > 0 {
		sig[Orientation] = stat.Mean(s.tilt, nil)
	}
	sig[CycleFrequency] = s.frequency()
	return sig, nil
}

func (s *series) add(p pose.Pose, ts time.Duration, ms float64) {
	s.ts = append(s.ts, ts.Seconds())
	if p.AllUsable(ms, pose.LeftHip, pose.RightHip) {
		c := p.Center(pose.LeftHip, pose.RightHip)
		s.hipX = append(s.hipX, c.X)
		s.hipY = append(s.hipY, c.Y)
	}
	mean := func(l, r [3]int) (float64, float64, bool) {
		la, lok := p.JointAngle(l[0], l[1], l[2], ms)
		ra, rok := p.JointAngle(r[0], r[1], r[2], ms)
		switch {
		case lok && rok:
			return (la + ra) / 2, math.Abs(la - ra), true
		case lok:
			return la, 0, true
		case rok:
			return ra, 0, true
		}
		return 0, 0, false
	}
	if v, d, ok := mean([3]int{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}, [3]int{pose.RightHip, pose.RightKnee, pose.RightAnkle}); ok {
		s.knee = append(s.knee, v)
		s.asym = append(s.asym, d)
	}
	if v, _, ok := mean([3]int{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee}, [3]int{pose.RightShoulder, pose.RightHip, pose.RightKnee}); ok {
		s.hip = append(s.hip, v)
	}
	if v, _, ok := mean([3]int{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist}, [3]int{pose.RightShoulder, pose.RightElbow, pose.RightWrist}); ok {
		s.elbow = append(s.elbow, v)
	}
	if p.AllUsable(ms, pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip) {
		sh := p.Center(pose.LeftShoulder, pose.RightShoulder)
		hp := p.Center(pose.LeftHip, pose.RightHip)
		if tilt, ok := pose.SegmentInclination(hp, sh, ms); ok {
			s.tilt = append(s.tilt, tilt)
		}
	}
}

// minAutocorrelation is the lag correlation needed to call a series periodic.
const minAutocorrelation = 0.3

// frequency estimates the repetition rate from the autocorrelation of the
// joint angle series with the widest range.
func (s *series) frequency() float64 {
	var x []float64
	var best float64
	for _, vs := range [][]float64{s.knee, s.hip, s.elbow} {
		if len(vs) < 4 {
			continue
		}
		if r := floats.Max(vs) - floats.Min(vs); r > best {
			best, x = r, vs
		}
	}
	if best < 5 || len(s.ts) < 2 {
		return 0
	}
	dt := (s.ts[len(s.ts)-1] - s.ts[0]) / float64(len(s.ts)-1)
	if dt <= 0 {
		return 0
	}

	// Skip lag 1 and the falling edge of the central peak.
	lag, peak := 0, minAutocorrelation
	falling := true
	prev := 1.0
	for k := 2; k <= len(x)/2+len(x)/4 && len(x)-k >= 3; k++ {
		r := stat.Correlation(x[:len(x)-k], x[k:], nil)
		if math.IsNaN(r) {
			continue
		}
		if falling {
			if r < prev {
				prev = r
				continue
			}
			falling = false
		}
		if r > peak {
			lag, peak = k, r
		}
	}
	if lag == 0 {
		return 0
	}
	return 1 / (float64(lag) * dt)
}
