package velocity

import (
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/config"
	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
)

// Config holds the tracker parameters.
type Config struct {
	MinScore          float64       // Samples scored below this are invalid
	SmoothingAlpha    float64       // EMA weight of the newest velocity sample
	PhaseThreshold    float64       // Vertical speed (image heights/s) below which movement is isometric
	DebounceFrames    int           // Consecutive frames a new movement phase needs to commit
	MaxGap            time.Duration // Longer gaps reseed the joint instead of differentiating
	TempoMinEccentric time.Duration // Shortest eccentric phase of a controlled rep
	TempoMinRatio     float64       // Smallest eccentric/concentric ratio of a controlled rep
	TempoMaxRatio     float64       // Largest eccentric/concentric ratio of a controlled rep
	Table             Table
}

// DefaultConfig returns the compiled-in tracker configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MinScore:          cfg.GetMinKeypointScore(),
		SmoothingAlpha:    cfg.GetVelocitySmoothingAlpha(),
		PhaseThreshold:    cfg.GetVelocityPhaseThreshold(),
		DebounceFrames:    cfg.GetVelocityDebounceFrames(),
		MaxGap:            cfg.GetVelocityMaxGap(),
		TempoMinEccentric: cfg.GetTempoMinEccentric(),
		TempoMinRatio:     cfg.GetTempoMinRatio(),
		TempoMaxRatio:     cfg.GetTempoMaxRatio(),
		Table:             DefaultTable(),
	}
}

// Band splits speeds (image heights per second) into categories:
// below TooSlow is too_slow, below Slow is slow, up to Fast is optimal,
// up to TooFast is fast and anything above is too_fast.
type Band struct {
	TooSlow, Slow, Fast, TooFast float64
}

// Classify returns the category of speed.
func (b Band) Classify(speed float64) Category {
	switch {
	case speed < b.TooSlow:
		return CategoryTooSlow
	case speed < b.Slow:
		return CategorySlow
	case speed <= b.Fast:
		return CategoryOptimal
	case speed <= b.TooFast:
		return CategoryFast
	default:
		return CategoryTooFast
	}
}

// Table holds speed bands per exercise and movement phase.
type Table map[exercise.Type]map[MovementPhase]Band

// Band returns the band for an exercise and phase, falling back to the
// squat bands for exercises without an entry.
func (t Table) Band(ex exercise.Type, ph MovementPhase) (Band, bool) {
	if bands, ok := t[ex]; ok {
		b, ok := bands[ph]
		return b, ok
	}
	b, ok := t[exercise.Squat][ph]
	return b, ok
}

// DefaultTable returns the speed bands tuned against recorded sessions.
func DefaultTable() Table {
	return Table{
		exercise.Squat: {
			Eccentric:  {TooSlow: 0.05, Slow: 0.12, Fast: 0.6, TooFast: 1.0},
			Concentric: {TooSlow: 0.08, Slow: 0.2, Fast: 0.8, TooFast: 1.3},
		},
		exercise.Lunge: {
			Eccentric:  {TooSlow: 0.04, Slow: 0.1, Fast: 0.5, TooFast: 0.9},
			Concentric: {TooSlow: 0.06, Slow: 0.15, Fast: 0.7, TooFast: 1.1},
		},
		exercise.Deadlift: {
			Eccentric:  {TooSlow: 0.04, Slow: 0.1, Fast: 0.5, TooFast: 0.8},
			Concentric: {TooSlow: 0.08, Slow: 0.18, Fast: 0.7, TooFast: 1.2},
		},
		exercise.Pushup: {
			Eccentric:  {TooSlow: 0.03, Slow: 0.08, Fast: 0.4, TooFast: 0.7},
			Concentric: {TooSlow: 0.05, Slow: 0.12, Fast: 0.6, TooFast: 1.0},
		},
	}
}

// PrimaryJoint returns the joint whose vertical motion defines the movement
// phase of an exercise.
func PrimaryJoint(ex exercise.Type) Joint {
	if ex == exercise.Pushup {
		return ShoulderCenter
	}
	return HipCenter
}

// Joint names a tracked body point.
type Joint string

const (
	HipCenter      Joint = "hip_center"
	ShoulderCenter Joint = "shoulder_center"
	KneeCenter     Joint = "knee_center"
	WristCenter    Joint = "wrist_center"
)

var jointLandmarks = []struct {
	joint       Joint
	left, right int
}{
	{HipCenter, pose.LeftHip, pose.RightHip},
	{ShoulderCenter, pose.LeftShoulder, pose.RightShoulder},
	{KneeCenter, pose.LeftKnee, pose.RightKnee},
	{WristCenter, pose.LeftWrist, pose.RightWrist},
}
