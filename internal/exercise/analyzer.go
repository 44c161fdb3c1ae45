package exercise

import (
	"fmt"

	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
)

// Analyzer is the phase state machine of one exercise.
type Analyzer interface {
	// Type returns the exercise analysed.
	Type() Type
	// Initial returns a fresh state for a new session.
	Initial() State
	// Analyze consumes one frame and the previous state and returns the
	// frame's result together with the next state. A state created for a
	// different exercise is discarded and replaced by Initial().
	Analyze(f pose.Frame, s State) (Result, State)
}

// New returns the analyzer for exercise t.
func New(t Type, cfg Config) (Analyzer, error) {
	if t == Plank {
		return plankAnalyzer{cfg: cfg}, nil
	}
	cycle, ok := CycleFor(t, cfg)
	if !ok {
		return nil, fmt.Errorf("unknown exercise %q", t)
	}
	a := cyclicAnalyzer{typ: t, cfg: cfg, cycle: cycle}
	switch t {
	case Squat:
		a.checks, a.weights = squatChecks, squatWeights
	case Lunge:
		a.checks, a.weights = lungeChecks, lungeWeights
	case Deadlift:
		a.checks, a.weights = deadliftChecks, deadliftWeights
	case Pushup:
		a.checks, a.weights = pushupChecks, pushupWeights
	}
	return a, nil
}

// mustNew is New for the built-in exercises.
func mustNew(t Type) Analyzer {
	a, err := New(t, DefaultConfig())
	if err != nil {
		panic(err)
	}
	return a
}

// NewSquatState returns the initial squat state.
func NewSquatState() State { return mustNew(Squat).Initial() }

// NewDeadliftState returns the initial deadlift state.
func NewDeadliftState() State { return mustNew(Deadlift).Initial() }

// NewPlankState returns the initial plank state.
func NewPlankState() State { return mustNew(Plank).Initial() }

// NewLungeState returns the initial lunge state.
func NewLungeState() State { return mustNew(Lunge).Initial() }

// NewPushupState returns the initial push-up state.
func NewPushupState() State { return mustNew(Pushup).Initial() }

// AnalyzeSquat analyses one squat frame with the default configuration.
func AnalyzeSquat(f pose.Frame, s State) (Result, State) { return mustNew(Squat).Analyze(f, s) }

// AnalyzeDeadlift analyses one deadlift frame with the default configuration.
func AnalyzeDeadlift(f pose.Frame, s State) (Result, State) { return mustNew(Deadlift).Analyze(f, s) }

// AnalyzePlank analyses one plank frame with the default configuration.
func AnalyzePlank(f pose.Frame, s State) (Result, State) { return mustNew(Plank).Analyze(f, s) }

// AnalyzeLunge analyses one lunge frame with the default configuration.
func AnalyzeLunge(f pose.Frame, s State) (Result, State) { return mustNew(Lunge).Analyze(f, s) }

// AnalyzePushup analyses one push-up frame with the default configuration.
func AnalyzePushup(f pose.Frame, s State) (Result, State) { return mustNew(Pushup).Analyze(f, s) }

// cyclicAnalyzer runs the four-phase repetition machine shared by squat,
// lunge, deadlift and push-up.
type cyclicAnalyzer struct {
	typ     Type
	cfg     Config
	cycle   Cycle
	checks  checkFunc
	weights map[Checkpoint]float64
}

func (a cyclicAnalyzer) Type() Type { return a.typ }

func (a cyclicAnalyzer) Initial() State {
	return newState(a.typ, a.cycle.StartPhase(), a.cfg.SmoothingAlpha)
}

func (a cyclicAnalyzer) Analyze(f pose.Frame, s State) (Result, State) {
	s, reset := ensure(a.typ, a.Initial, s)

	rd, ok := read(a.typ, f.Pose, a.cfg)
	if !ok {
		monitoring.Debugf("%s: low confidence frame at %v, holding phase %s", a.typ, f.Timestamp, s.phase)
		return lowConfidence(s, f.Timestamp, reset), s
	}

	s.ema = s.ema.Next(rd.value)
	smoothed := s.ema.Value
	s.history = s.history.Push(smoothed)
	s.frames++

	prev := s.phase
	var closed bool
	s.phase, s.gate, closed = a.cycle.next(s.phase, smoothed, rd.value, s.gate, a.cfg)
	if s.phase != prev {
		s.phaseSince = f.Timestamp
		switch s.phase {
		case a.cycle.Phases[1]:
			s.rep = repAggregate{active: true, startedAt: f.Timestamp}
			s.leadSide = rd.side
		case a.cycle.Phases[2]:
			s.rep.bottomAt = f.Timestamp
		case a.cycle.Phases[0]:
			if !closed {
				// Abandoned before reaching the extreme zone.
				s.rep = repAggregate{}
			}
		}
	}

	items := a.checks(f.Pose, rd, s.phase, smoothed, a.cfg)
	res := Result{
		Exercise:      a.typ,
		Timestamp:     f.Timestamp,
		Score:         a.cfg.Score(items, a.weights),
		Phase:         s.phase,
		Feedbacks:     items,
		RawAngles:     rd.raw,
		SmoothedAngle: smoothed,
		StateReset:    reset,
	}
	if reset {
		res.Messages = append(res.Messages, Message{Key: MsgStateReset})
	}
	if s.rep.active {
		s.rep = s.rep.add(res.Score, smoothed, a.cycle.Sign)
	}
	if closed {
		s.reps++
		sum := s.rep.summary(s.reps, f.Timestamp)
		res.RepCompleted = true
		res.Rep = &sum
		res.Messages = append(res.Messages, Message{Key: MsgRepComplete, Params: map[string]any{"count": s.reps}})
		s.rep = repAggregate{}
	}
	res.RepCount = s.reps

	s.lastSeen = f.Timestamp
	s.last = snapshot{score: res.Score, feedbacks: items, rawAngles: rd.raw}
	return res, s
}

// ensure resets a state that belongs to another exercise. The zero State is
// initialised without being reported as a reset.
func ensure(t Type, initial func() State, s State) (State, bool) {
	if s.exercise == t {
		return s, false
	}
	if s.exercise == "" {
		return initial(), false
	}
	monitoring.Logf("%s analyzer received %s state; resetting", t, s.exercise)
	return initial(), true
}
