package exercise

import (
	"maps"
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/smoothing"
)

// Side is the body side leading a unilateral movement.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// State is the analyzer state threaded through successive frames. It is a
// value: analyzers return an updated copy and never modify the one passed in.
type State struct {
	exercise   Type
	phase      Phase
	reps       int
	phaseSince time.Duration
	lastSeen   time.Duration
	frames     int

	ema     smoothing.EMA
	history smoothing.Window
	gate    gate
	rep     repAggregate
	last    snapshot

	holding   bool
	holdStart time.Duration
	bestHold  time.Duration
	leadSide  Side
}

func newState(t Type, start Phase, alpha float64) State {
	return State{exercise: t, phase: start, ema: smoothing.NewEMA(alpha)}
}

// Exercise returns the exercise the state belongs to.
func (s State) Exercise() Type { return s.exercise }

// Phase returns the current phase.
func (s State) Phase() Phase { return s.phase }

// RepCount returns the number of completed repetitions.
func (s State) RepCount() int { return s.reps }

// PhaseSince returns the timestamp of the last phase transition.
func (s State) PhaseSince() time.Duration { return s.phaseSince }

// Frames returns the number of confident frames analysed.
func (s State) Frames() int { return s.frames }

// History returns the smoothed driving-angle history, oldest first.
func (s State) History() []float64 { return s.history.Values() }

// LeadSide returns the leading leg of the current or last lunge rep.
func (s State) LeadSide() Side { return s.leadSide }

// BestHold returns the longest plank hold seen so far.
func (s State) BestHold() time.Duration { return s.bestHold }

// gate debounces phase transitions. A candidate phase commits once the
// smoothed angle stays past its threshold for Config.MinPhaseFrames frames or
// overshoots it by Config.HysteresisMargin in one frame.
type gate struct {
	candidate Phase
	frames    int
}

// advance feeds one frame into the gate. past is how far beyond the
// threshold the smoothed angle lies and crossed whether it is beyond at all.
func (g gate) advance(target Phase, past float64, crossed bool, cfg Config) (gate, bool) {
	if !crossed {
		return gate{}, false
	}
	if past >= cfg.HysteresisMargin {
		return gate{}, true
	}
	if g.candidate != target {
		g = gate{candidate: target}
	}
	g.frames++
	if g.frames >= cfg.MinPhaseFrames {
		return gate{}, true
	}
	return g, false
}

// repAggregate accumulates per-rep statistics from leaving the start phase
// until the cycle closes.
type repAggregate struct {
	active    bool
	startedAt time.Duration
	bottomAt  time.Duration
	scoreSum  float64
	worst     float64
	frames    int
	peak      float64
}

func (r repAggregate) add(score, angle, sign float64) repAggregate {
	if r.frames == 0 || score < r.worst {
		r.worst = score
	}
	if r.frames == 0 || sign*angle < sign*r.peak {
		r.peak = angle
	}
	r.scoreSum += score
	r.frames++
	return r
}

func (r repAggregate) summary(number int, end time.Duration) RepSummary {
	mean := 0.0
	if r.frames > 0 {
		mean = r.scoreSum / float64(r.frames)
	}
	return RepSummary{
		Number:     number,
		StartedAt:  r.startedAt,
		BottomAt:   r.bottomAt,
		EndedAt:    end,
		MeanScore:  mean,
		WorstScore: r.worst,
		PeakAngle:  r.peak,
		Frames:     r.frames,
	}
}

// snapshot is the last confident result, replayed on low-confidence frames.
type snapshot struct {
	score     float64
	feedbacks map[Checkpoint]FeedbackItem
	rawAngles map[string]float64
}

// lowConfidence builds the result for a frame whose required keypoints are
// missing: the previous phase and feedback, flagged as unreliable.
func lowConfidence(s State, ts time.Duration, reset bool) Result {
	res := Result{
		Exercise:      s.exercise,
		Timestamp:     ts,
		Score:         s.last.score,
		Phase:         s.phase,
		RepCount:      s.reps,
		Feedbacks:     maps.Clone(s.last.feedbacks),
		RawAngles:     maps.Clone(s.last.rawAngles),
		SmoothedAngle: s.ema.Value,
		LowConfidence: true,
		StateReset:    reset,
		BestHold:      s.bestHold,
		Messages:      []Message{{Key: MsgLowConfidence}},
	}
	if s.holding {
		res.HoldDuration = s.lastSeen - s.holdStart
	}
	if reset {
		res.Messages = append(res.Messages, Message{Key: MsgStateReset})
	}
	return res
}
