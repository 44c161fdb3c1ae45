// Package velocity differentiates joint positions into smoothed velocity and
// acceleration, classifies movement phases and reduces them to per-rep tempo.
package velocity

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
	"github.com/kanoo-op/PostureAI-sub004/internal/smoothing"
)

// Category grades a speed against the exercise's bands.
type Category string

const (
	CategoryTooSlow Category = "too_slow"
	CategorySlow    Category = "slow"
	CategoryOptimal Category = "optimal"
	CategoryFast    Category = "fast"
	CategoryTooFast Category = "too_fast"
)

// MovementPhase is the direction of travel of the primary joint.
type MovementPhase string

const (
	Eccentric  MovementPhase = "eccentric"  // moving down in the image
	Concentric MovementPhase = "concentric" // moving up in the image
	Isometric  MovementPhase = "isometric"
	Transition MovementPhase = "transition" // eccentric and concentric swapping
)

// Sample is one observed joint position in image-normalised coordinates.
type Sample struct {
	Joint     Joint
	X, Y      float64
	Score     float64
	Timestamp time.Duration
}

// SamplesFromPose extracts one sample per tracked joint. Each joint is the
// centre of its left and right landmarks, or the single visible side.
// Joints with neither side visible produce a zero-score sample.
func SamplesFromPose(p pose.Pose, ts time.Duration, minScore float64) []Sample {
	out := make([]Sample, 0, len(jointLandmarks))
	for _, jl := range jointLandmarks {
		s := Sample{Joint: jl.joint, Timestamp: ts}
		l, r := p.Usable(jl.left, minScore), p.Usable(jl.right, minScore)
		switch {
		case l && r:
			m := pose.Midpoint(p[jl.left], p[jl.right])
			s.X, s.Y, s.Score = m.X, m.Y, m.Score
		case l:
			s.X, s.Y, s.Score = p[jl.left].X, p[jl.left].Y, p[jl.left].Score
		case r:
			s.X, s.Y, s.Score = p[jl.right].X, p[jl.right].Y, p[jl.right].Score
		}
		out = append(out, s)
	}
	return out
}

// Measurement is the tracker output for one sample. When Valid is false the
// sample was rejected and no other field is meaningful.
type Measurement struct {
	Joint     Joint
	Timestamp time.Duration
	Valid     bool
	Reseeded  bool // first sample, or first after a gap longer than MaxGap

	RawVX, RawVY float64 // unsmoothed velocity
	VX, VY       float64 // smoothed velocity
	Speed        float64 // magnitude of the smoothed velocity
	AY           float64 // vertical acceleration of the smoothed velocity
	Acceleration float64 // magnitude of the smoothed acceleration

	// Category is empty while the movement is isometric or in transition.
	Category Category
	// Phase is set on measurements of the primary joint only.
	Phase MovementPhase
}

type jointState struct {
	x, y   float64
	ts     time.Duration
	vx, vy smoothing.EMA
	hasVel bool
}

// Tracker follows the joints of one session. It is not safe for concurrent
// use; each session owns one.
type Tracker struct {
	cfg      Config
	exercise exercise.Type
	primary  Joint
	joints   map[Joint]*jointState

	phase         MovementPhase
	phaseSince    time.Duration
	pending       MovementPhase
	pendingFrames int
	lastPrimary   time.Duration
	seenPrimary   bool

	eccentric  time.Duration
	concentric time.Duration
}

// NewTracker returns a tracker for exercise ex.
func NewTracker(ex exercise.Type, cfg Config) *Tracker {
	t := &Tracker{cfg: cfg, exercise: ex, primary: PrimaryJoint(ex)}
	t.Reset()
	return t
}

// Reset clears all joint history, the movement phase and tempo accumulators.
func (t *Tracker) Reset() {
	t.joints = make(map[Joint]*jointState)
	t.phase = Isometric
	t.phaseSince = 0
	t.pending = ""
	t.pendingFrames = 0
	t.seenPrimary = false
	t.eccentric, t.concentric = 0, 0
}

// Phase returns the committed movement phase.
func (t *Tracker) Phase() MovementPhase { return t.phase }

// UpdatePose feeds every joint of a pose and returns the primary joint's
// measurement.
func (t *Tracker) UpdatePose(p pose.Pose, ts time.Duration) Measurement {
	var primary Measurement
	for _, s := range SamplesFromPose(p, ts, t.cfg.MinScore) {
		m := t.Update(s)
		if s.Joint == t.primary {
			primary = m
		}
	}
	return primary
}

// Update consumes one sample. Low-confidence or non-finite samples and
// samples that do not advance time are rejected without touching history.
func (t *Tracker) Update(s Sample) Measurement {
	m := Measurement{Joint: s.Joint, Timestamp: s.Timestamp}
	if s.Score < t.cfg.MinScore || !finite(s.X) || !finite(s.Y) || !finite(s.Score) {
		return m
	}

	js, ok := t.joints[s.Joint]
	if ok && s.Timestamp <= js.ts {
		monitoring.Debugf("velocity: %s sample at %v does not advance time", s.Joint, s.Timestamp)
		return m
	}
	m.Valid = true

	if !ok || s.Timestamp-js.ts > t.cfg.MaxGap {
		t.joints[s.Joint] = &jointState{
			x: s.X, y: s.Y, ts: s.Timestamp,
			vx: smoothing.NewEMA(t.cfg.SmoothingAlpha),
			vy: smoothing.NewEMA(t.cfg.SmoothingAlpha),
		}
		m.Reseeded = true
		m.Phase = t.observe(s, 0)
		m.Category = t.categorise(0)
		return m
	}

	dt := (s.Timestamp - js.ts).Seconds()
	raw := r2.Scale(1/dt, r2.Sub(r2.Vec{X: s.X, Y: s.Y}, r2.Vec{X: js.x, Y: js.y}))
	m.RawVX, m.RawVY = raw.X, raw.Y

	prev := r2.Vec{X: js.vx.Value, Y: js.vy.Value}
	js.vx = js.vx.Next(raw.X)
	js.vy = js.vy.Next(raw.Y)
	vel := r2.Vec{X: js.vx.Value, Y: js.vy.Value}
	m.VX, m.VY = vel.X, vel.Y
	m.Speed = r2.Norm(vel)
	if js.hasVel {
		acc := r2.Scale(1/dt, r2.Sub(vel, prev))
		m.AY = acc.Y
		m.Acceleration = r2.Norm(acc)
	}
	js.hasVel = true
	js.x, js.y, js.ts = s.X, s.Y, s.Timestamp

	m.Phase = t.observe(s, m.VY)
	m.Category = t.categorise(m.Speed)
	return m
}

// observe runs the movement-phase debounce for primary-joint samples and
// returns the phase to report. Other joints report no phase.
func (t *Tracker) observe(s Sample, vy float64) MovementPhase {
	if s.Joint != t.primary {
		return ""
	}
	if !t.seenPrimary {
		t.phaseSince = s.Timestamp
		t.seenPrimary = true
	}
	t.lastPrimary = s.Timestamp

	candidate := Isometric
	switch {
	case vy > t.cfg.PhaseThreshold:
		candidate = Eccentric
	case vy < -t.cfg.PhaseThreshold:
		candidate = Concentric
	}

	if candidate == t.phase {
		t.pending, t.pendingFrames = "", 0
		return t.phase
	}
	if candidate != t.pending {
		t.pending, t.pendingFrames = candidate, 0
	}
	t.pendingFrames++
	if t.pendingFrames >= t.cfg.DebounceFrames {
		t.commit(candidate, s.Timestamp)
		return t.phase
	}
	if (t.phase == Eccentric && candidate == Concentric) || (t.phase == Concentric && candidate == Eccentric) {
		return Transition
	}
	return t.phase
}

// commit switches the movement phase and banks the time spent in the old one.
func (t *Tracker) commit(next MovementPhase, ts time.Duration) {
	t.bank(ts)
	t.phase = next
	t.pending, t.pendingFrames = "", 0
}

func (t *Tracker) bank(ts time.Duration) {
	elapsed := ts - t.phaseSince
	switch t.phase {
	case Eccentric:
		t.eccentric += elapsed
	case Concentric:
		t.concentric += elapsed
	}
	t.phaseSince = ts
}

func (t *Tracker) categorise(speed float64) Category {
	if t.phase != Eccentric && t.phase != Concentric {
		return ""
	}
	band, ok := t.cfg.Table.Band(t.exercise, t.phase)
	if !ok {
		return ""
	}
	return band.Classify(speed)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
