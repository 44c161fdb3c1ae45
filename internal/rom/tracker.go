// Package rom tracks per-joint range of motion across a session and assesses
// it against benchmark ranges.
package rom

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kanoo-op/PostureAI-sub004/internal/config"
	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
	"github.com/kanoo-op/PostureAI-sub004/internal/timeutil"
)

// JointType is a kind of joint with its own benchmark.
type JointType string

const (
	Knee     JointType = "knee"
	Hip      JointType = "hip"
	Elbow    JointType = "elbow"
	Shoulder JointType = "shoulder"
	Ankle    JointType = "ankle"
	Trunk    JointType = "trunk"
)

// Side qualifies a JointKey.
type Side string

const (
	Left   Side = "left"
	Right  Side = "right"
	Center Side = "center"
)

// JointKey identifies one tracked joint.
type JointKey struct {
	Joint JointType `json:"joint"`
	Side  Side      `json:"side"`
}

func (k JointKey) String() string { return fmt.Sprintf("%s_%s", k.Side, k.Joint) }

// Config holds the tracker parameters.
type Config struct {
	MaxSamples  int     // Samples kept per joint for percentiles
	StableDelta float64 // Range change in degrees below which a joint is stable
	Benchmarks  map[JointType]Benchmark
}

// DefaultConfig returns the compiled-in tracker configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MaxSamples:  cfg.GetROMMaxSamples(),
		StableDelta: 5,
		Benchmarks:  DefaultBenchmarks(),
	}
}

type jointStats struct {
	min, max float64
	count    int
	recent   []float64 // ring of the last MaxSamples values
	next     int
}

func (s *jointStats) add(v float64, capacity int) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.count++
	if len(s.recent) < capacity {
		s.recent = append(s.recent, v)
		return
	}
	s.recent[s.next] = v
	s.next = (s.next + 1) % capacity
}

// Tracker records joint angles during a tracking session. It is not safe for
// concurrent use.
type Tracker struct {
	cfg       Config
	clock     timeutil.Clock
	sessionID string
	tracking  bool
	joints    map[JointKey]*jointStats
	rejected  int
}

// NewTracker returns an idle tracker. Summaries are stamped from clock, or
// from the wall clock when clock is nil.
func NewTracker(cfg Config, clock timeutil.Clock) *Tracker {
	if cfg.MaxSamples < 1 {
		cfg.MaxSamples = 1
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{cfg: cfg, clock: clock, joints: make(map[JointKey]*jointStats)}
}

// StartTracking begins a new session, discarding any previous data.
func (t *Tracker) StartTracking(sessionID string) {
	t.sessionID = sessionID
	t.tracking = true
	t.joints = make(map[JointKey]*jointStats)
	t.rejected = 0
}

// IsTracking reports whether a session is in progress.
func (t *Tracker) IsTracking() bool { return t.tracking }

// Compare reports the current session against a baseline summary using the
// configured stable delta.
func (t *Tracker) Compare(baseline Summary) []Delta {
	return t.cfg.Compare(t.Summary(), baseline)
}

// StopTracking ends the session and returns its summary.
func (t *Tracker) StopTracking() Summary {
	s := t.Summary()
	t.tracking = false
	if t.rejected > 0 {
		monitoring.Logf("rom: session %s rejected %d out-of-range samples", t.sessionID, t.rejected)
	}
	return s
}

// Record adds one angle observation. Values that are not finite or lie
// outside [0, 360] are rejected, as is anything recorded while not tracking.
func (t *Tracker) Record(key JointKey, angle float64) bool {
	if !t.tracking {
		return false
	}
	if math.IsNaN(angle) || math.IsInf(angle, 0) || angle < 0 || angle > 360 {
		t.rejected++
		return false
	}
	s, ok := t.joints[key]
	if !ok {
		s = &jointStats{}
		t.joints[key] = s
	}
	s.add(angle, t.cfg.MaxSamples)
	return true
}

var poseJoints = []struct {
	key     JointKey
	a, b, c int
}{
	{JointKey{Knee, Left}, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle},
	{JointKey{Knee, Right}, pose.RightHip, pose.RightKnee, pose.RightAnkle},
	{JointKey{Hip, Left}, pose.LeftShoulder, pose.LeftHip, pose.LeftKnee},
	{JointKey{Hip, Right}, pose.RightShoulder, pose.RightHip, pose.RightKnee},
	{JointKey{Elbow, Left}, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist},
	{JointKey{Elbow, Right}, pose.RightShoulder, pose.RightElbow, pose.RightWrist},
	{JointKey{Shoulder, Left}, pose.LeftElbow, pose.LeftShoulder, pose.LeftHip},
	{JointKey{Shoulder, Right}, pose.RightElbow, pose.RightShoulder, pose.RightHip},
	{JointKey{Ankle, Left}, pose.LeftKnee, pose.LeftAnkle, pose.LeftFootIndex},
	{JointKey{Ankle, Right}, pose.RightKnee, pose.RightAnkle, pose.RightFootIndex},
}

// RecordPose records every measurable joint of a pose and returns how many
// were recorded. The trunk is recorded as the hip-to-shoulder inclination.
func (t *Tracker) RecordPose(p pose.Pose, minScore float64) int {
	n := 0
	for _, j := range poseJoints {
		if v, ok := p.JointAngle(j.a, j.b, j.c, minScore); ok && t.Record(j.key, v) {
			n++
		}
	}
	if len(p) >= pose.NumLandmarks {
		hip, shoulder := p.Center(pose.LeftHip, pose.RightHip), p.Center(pose.LeftShoulder, pose.RightShoulder)
		if v, ok := pose.SegmentInclination(hip, shoulder, minScore); ok && t.Record(JointKey{Trunk, Center}, v) {
			n++
		}
	}
	return n
}

// JointSummary is the achieved range of one joint.
type JointSummary struct {
	Key           JointKey   `json:"key"`
	Min           float64    `json:"min"`
	Max           float64    `json:"max"`
	RangeAchieved float64    `json:"rangeAchieved"`
	P05           float64    `json:"p05"`
	P95           float64    `json:"p95"`
	Samples       int        `json:"samples"`
	Assessment    Assessment `json:"assessment"`
}

// Summary is the mobility report of one tracking session.
type Summary struct {
	SessionID     string         `json:"sessionId"`
	GeneratedAt   time.Time      `json:"generatedAt"`
	Joints        []JointSummary `json:"joints"`
	Verdict       Verdict        `json:"verdict"`
	MobilityScore float64        `json:"mobilityScore"` // 0-100
}

// Joint returns the summary of key.
func (s Summary) Joint(key JointKey) (JointSummary, bool) {
	for _, j := range s.Joints {
		if j.Key == key {
			return j, true
		}
	}
	return JointSummary{}, false
}

// Summary reports the current session without ending it.
func (t *Tracker) Summary() Summary {
	s := Summary{SessionID: t.sessionID, GeneratedAt: t.clock.Now()}
	var limited, hyper int
	var scoreSum float64
	for key, st := range t.joints {
		js := JointSummary{
			Key:           key,
			Min:           st.min,
			Max:           st.max,
			RangeAchieved: st.max - st.min,
			Samples:       st.count,
		}
		sorted := append([]float64(nil), st.recent...)
		sort.Float64s(sorted)
		js.P05 = stat.Quantile(0.05, stat.Empirical, sorted, nil)
		js.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)

		bench, ok := t.cfg.Benchmarks[key.Joint]
		js.Assessment = AssessNormal
		if ok {
			js.Assessment = bench.Assess(js.RangeAchieved)
			if w := bench.NormalRange.Width(); w > 0 {
				scoreSum += math.Min(1, js.RangeAchieved/w) * 100
			}
		}
		switch js.Assessment {
		case AssessLimited:
			limited++
		case AssessHypermobile:
			hyper++
		}
		s.Joints = append(s.Joints, js)
	}
	sort.Slice(s.Joints, func(i, j int) bool { return s.Joints[i].Key.String() < s.Joints[j].Key.String() })

	switch {
	case len(s.Joints) == 0:
		s.Verdict = VerdictInsufficient
	case limited > 0 && hyper > 0:
		s.Verdict = VerdictMixed
	case limited > 0:
		s.Verdict = VerdictLimited
	case hyper > 0:
		s.Verdict = VerdictHypermobile
	default:
		s.Verdict = VerdictNormal
	}
	if len(s.Joints) > 0 {
		s.MobilityScore = scoreSum / float64(len(s.Joints))
	}
	return s
}
