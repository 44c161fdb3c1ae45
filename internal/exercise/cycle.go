package exercise

// Cycle is the four-phase movement cycle of a repetition exercise:
// start -> leaving -> extreme -> returning -> start. The driving angle is in
// the start zone past Start and in the extreme zone past Extreme. Sign is +1
// when the start zone holds the larger angles (squat, lunge, push-up) and -1
// when it holds the smaller ones (deadlift).
type Cycle struct {
	Phases  [4]Phase
	Start   float64
	Extreme float64
	Sign    float64
}

// CycleFor returns the phase cycle of a repetition exercise. Plank has none.
func CycleFor(t Type, cfg Config) (Cycle, bool) {
	switch t {
	case Squat:
		return Cycle{
			Phases: [4]Phase{PhaseStanding, PhaseDescending, PhaseBottom, PhaseAscending},
			Start:  cfg.SquatStanding, Extreme: cfg.SquatBottom, Sign: 1,
		}, true
	case Lunge:
		return Cycle{
			Phases: [4]Phase{PhaseStanding, PhaseDescending, PhaseBottom, PhaseAscending},
			Start:  cfg.LungeStanding, Extreme: cfg.LungeBottom, Sign: 1,
		}, true
	case Pushup:
		return Cycle{
			Phases: [4]Phase{PhaseUp, PhaseDescending, PhaseDown, PhaseAscending},
			Start:  cfg.PushupUp, Extreme: cfg.PushupDown, Sign: 1,
		}, true
	case Deadlift:
		return Cycle{
			Phases: [4]Phase{PhaseSetup, PhaseLift, PhaseLockout, PhaseDescent},
			Start:  cfg.DeadliftSetup, Extreme: cfg.DeadliftLockout, Sign: -1,
		}, true
	}
	return Cycle{}, false
}

// StartPhase returns the phase a repetition begins and ends in.
func (c Cycle) StartPhase() Phase { return c.Phases[0] }

// ExtremePhase returns the turning-point phase of a repetition.
func (c Cycle) ExtremePhase() Phase { return c.Phases[2] }

// StartDepth returns how far v lies inside the start zone; negative outside.
func (c Cycle) StartDepth(v float64) float64 { return c.Sign * (v - c.Start) }

// ExtremeDepth returns how far v lies inside the extreme zone; negative outside.
func (c Cycle) ExtremeDepth(v float64) float64 { return c.Sign * (c.Extreme - v) }

// InStart reports whether v is in the start zone.
func (c Cycle) InStart(v float64) bool { return c.StartDepth(v) >= 0 }

// InExtreme reports whether v is in the extreme zone.
func (c Cycle) InExtreme(v float64) bool { return c.ExtremeDepth(v) >= 0 }

// MoreExtreme reports whether a is further along the cycle than b.
func (c Cycle) MoreExtreme(a, b float64) bool { return c.Sign*a < c.Sign*b }

func (c Cycle) index(p Phase) int {
	for i, ph := range c.Phases {
		if ph == p {
			return i
		}
	}
	return -1
}

// next advances the cycle by one smoothed sample v. raw is the unsmoothed
// angle of the same frame. Only forward transitions are possible, plus
// abandoning a rep before the extreme zone was reached. closed reports a
// completed repetition.
func (c Cycle) next(cur Phase, v, raw float64, g gate, cfg Config) (phase Phase, ng gate, closed bool) {
	var ok bool
	switch c.index(cur) {
	case 0:
		past := -c.StartDepth(v)
		if ng, ok = g.advance(c.Phases[1], past, past > 0, cfg); ok {
			return c.Phases[1], ng, false
		}
	case 1:
		if ext := c.ExtremeDepth(v); ext >= 0 {
			if ng, ok = g.advance(c.Phases[2], ext, true, cfg); ok {
				return c.Phases[2], ng, false
			}
			return cur, ng, false
		}
		if st := c.StartDepth(v); st >= 0 {
			if ng, ok = g.advance(c.Phases[0], st, true, cfg); ok {
				return c.Phases[0], ng, false
			}
			return cur, ng, false
		}
		ng = gate{}
	case 2:
		past := -c.ExtremeDepth(v)
		if ng, ok = g.advance(c.Phases[3], past, past > 0, cfg); ok {
			return c.Phases[3], ng, false
		}
	case 3:
		// The filter trails a fast return, so a raw sample well inside the
		// start zone commits as soon as the smoothed angle is there too.
		st := c.StartDepth(v)
		if ng, ok = g.advance(c.Phases[0], max(st, c.StartDepth(raw)), st >= 0, cfg); ok {
			return c.Phases[0], ng, true
		}
	default:
		return c.Phases[0], gate{}, false
	}
	return cur, ng, false
}
