package exercise

import (
	"math"

	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
)

// plankEntrySlack is how far below PlankBodyLineMin the body line may be
// while still counting as being in position. Form below PlankBodyLineMin is
// graded by the body-line checkpoint instead.
const plankEntrySlack = 15

// plankAnalyzer tracks a static hold: out_of_position <-> holding. It counts
// no repetitions; it times holds instead.
type plankAnalyzer struct {
	cfg Config
}

func (a plankAnalyzer) Type() Type { return Plank }

func (a plankAnalyzer) Initial() State {
	return newState(Plank, PhaseOutOfPosition, a.cfg.SmoothingAlpha)
}

func (a plankAnalyzer) Analyze(f pose.Frame, s State) (Result, State) {
	s, reset := ensure(Plank, a.Initial, s)

	rd, ok := read(Plank, f.Pose, a.cfg)
	if !ok {
		monitoring.Debugf("plank: low confidence frame at %v", f.Timestamp)
		return lowConfidence(s, f.Timestamp, reset), s
	}

	s.ema = s.ema.Next(rd.value)
	smoothed := s.ema.Value
	s.history = s.history.Push(smoothed)
	s.frames++

	// In position when the body line is straight enough and roughly horizontal.
	inPosition := math.Min(smoothed-(a.cfg.PlankBodyLineMin-plankEntrySlack), a.cfg.PlankHorizontalMax-rd.raw["body_tilt"])

	var msgs []Message
	if reset {
		msgs = append(msgs, Message{Key: MsgStateReset})
	}
	var commit bool
	switch s.phase {
	case PhaseOutOfPosition:
		if s.gate, commit = s.gate.advance(PhaseHolding, inPosition, inPosition >= 0, a.cfg); commit {
			s.phase, s.phaseSince = PhaseHolding, f.Timestamp
			s.holding, s.holdStart = true, f.Timestamp
			msgs = append(msgs, Message{Key: MsgHoldStarted})
		}
	case PhaseHolding:
		if s.gate, commit = s.gate.advance(PhaseOutOfPosition, -inPosition, inPosition < 0, a.cfg); commit {
			s.phase, s.phaseSince = PhaseOutOfPosition, f.Timestamp
			held := f.Timestamp - s.holdStart
			s.holding = false
			msgs = append(msgs, Message{Key: MsgHoldBroken, Params: map[string]any{"seconds": math.Round(held.Seconds())}})
		}
	}

	res := Result{
		Exercise:      Plank,
		Timestamp:     f.Timestamp,
		Phase:         s.phase,
		RawAngles:     rd.raw,
		SmoothedAngle: smoothed,
		StateReset:    reset,
		Messages:      msgs,
	}
	if s.holding {
		res.HoldDuration = f.Timestamp - s.holdStart
		if res.HoldDuration > s.bestHold {
			s.bestHold = res.HoldDuration
		}
	}
	res.BestHold = s.bestHold

	res.Feedbacks = plankChecks(f.Pose, rd, s.phase, smoothed, a.cfg)
	res.Score = a.cfg.Score(res.Feedbacks, plankWeights)

	s.lastSeen = f.Timestamp
	s.last = snapshot{score: res.Score, feedbacks: res.Feedbacks, rawAngles: rd.raw}
	return res, s
}
