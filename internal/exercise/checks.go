package exercise

import (
	"math"

	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
)

// checkFunc grades the checkpoints of one frame. smoothed is the smoothed
// driving angle and phase the phase after this frame's transition.
type checkFunc func(p pose.Pose, rd reading, phase Phase, smoothed float64, cfg Config) map[Checkpoint]FeedbackItem

var neckRange = Range{Min: 150, Max: 180, Margin: 15, Below: CorrectNeutralNeck}

var (
	squatWeights    = map[Checkpoint]float64{CheckDepth: 2, CheckTorsoLean: 1.5, CheckKneeAlignment: 1, CheckSymmetry: 0.5}
	lungeWeights    = map[Checkpoint]float64{CheckDepth: 2, CheckTorsoLean: 1.5, CheckBackKnee: 1}
	deadliftWeights = map[Checkpoint]float64{CheckKneeBend: 1, CheckLockout: 2, CheckNeck: 1}
	pushupWeights   = map[Checkpoint]float64{CheckBodyLine: 2, CheckDepth: 2, CheckNeck: 0.5}
	plankWeights    = map[Checkpoint]float64{CheckBodyLine: 3, CheckNeck: 1}
)

func squatChecks(p pose.Pose, rd reading, phase Phase, smoothed float64, cfg Config) map[Checkpoint]FeedbackItem {
	items := make(map[Checkpoint]FeedbackItem)
	if phase == PhaseBottom {
		depth := Range{Min: cfg.SquatBottom - 45, Max: cfg.SquatBottom, Margin: 10, Below: CorrectReduceDepth, Above: CorrectGoDeeper}
		items[CheckDepth] = depth.grade(CheckDepth, smoothed)
	}
	if lean, ok := rd.raw["torso_lean"]; ok {
		r := Range{Min: 0, Max: cfg.SquatTorsoLeanMax, Margin: 10, Above: CorrectChestUp}
		items[CheckTorsoLean] = r.grade(CheckTorsoLean, lean)
	}
	if ratio, ok := p.NormalizedDistance(pose.LeftKnee, pose.RightKnee, pose.LeftAnkle, pose.RightAnkle, cfg.MinKeypointScore); ok {
		r := Range{Min: 0.85, Max: 1.6, Margin: 0.15, Below: CorrectKneesOut, Above: CorrectNarrowKnees}
		items[CheckKneeAlignment] = r.grade(CheckKneeAlignment, ratio)
	}
	l, lok := rd.raw["left_knee"]
	r, rok := rd.raw["right_knee"]
	if lok && rok {
		sym := Range{Min: 0, Max: 10, Margin: 10, Above: CorrectBalanceWeight}
		items[CheckSymmetry] = sym.grade(CheckSymmetry, math.Abs(l-r))
	}
	return items
}

func lungeChecks(_ pose.Pose, rd reading, phase Phase, smoothed float64, cfg Config) map[Checkpoint]FeedbackItem {
	items := make(map[Checkpoint]FeedbackItem)
	if phase == PhaseBottom {
		depth := Range{Min: cfg.LungeBottom - 30, Max: cfg.LungeBottom, Margin: 10, Below: CorrectReduceDepth, Above: CorrectGoDeeper}
		items[CheckDepth] = depth.grade(CheckDepth, smoothed)
		if back, ok := rd.raw["back_knee"]; ok {
			r := Range{Min: 70, Max: 130, Margin: 15, Below: CorrectReduceDepth, Above: CorrectLowerBackKnee}
			items[CheckBackKnee] = r.grade(CheckBackKnee, back)
		}
	}
	if lean, ok := rd.raw["torso_lean"]; ok {
		r := Range{Min: 0, Max: 20, Margin: 10, Above: CorrectChestUp}
		items[CheckTorsoLean] = r.grade(CheckTorsoLean, lean)
	}
	return items
}

func deadliftChecks(_ pose.Pose, rd reading, phase Phase, smoothed float64, cfg Config) map[Checkpoint]FeedbackItem {
	items := make(map[Checkpoint]FeedbackItem)
	if knee, ok := rd.raw["knee"]; ok {
		r := Range{Min: 135, Max: 175, Margin: 10, Below: CorrectHingeAtHips, Above: CorrectSoftenKnees}
		items[CheckKneeBend] = r.grade(CheckKneeBend, knee)
	}
	if phase == PhaseLockout {
		r := Range{Min: cfg.DeadliftLockout, Max: 180, Margin: 5, Below: CorrectFinishLockout}
		items[CheckLockout] = r.grade(CheckLockout, smoothed)
	}
	if neck, ok := rd.raw["neck"]; ok {
		items[CheckNeck] = neckRange.grade(CheckNeck, neck)
	}
	return items
}

func pushupChecks(p pose.Pose, rd reading, phase Phase, smoothed float64, cfg Config) map[Checkpoint]FeedbackItem {
	items := make(map[Checkpoint]FeedbackItem)
	if line, ok := rd.raw["body_line"]; ok {
		items[CheckBodyLine] = bodyLineRange(p, 160, cfg).grade(CheckBodyLine, line)
	}
	if phase == PhaseDown {
		depth := Range{Min: cfg.PushupDown - 35, Max: cfg.PushupDown, Margin: 10, Below: CorrectReduceDepth, Above: CorrectGoDeeper}
		items[CheckDepth] = depth.grade(CheckDepth, smoothed)
	}
	if neck, ok := rd.raw["neck"]; ok {
		items[CheckNeck] = neckRange.grade(CheckNeck, neck)
	}
	return items
}

func plankChecks(p pose.Pose, rd reading, _ Phase, smoothed float64, cfg Config) map[Checkpoint]FeedbackItem {
	items := map[Checkpoint]FeedbackItem{
		CheckBodyLine: bodyLineRange(p, cfg.PlankBodyLineMin, cfg).grade(CheckBodyLine, smoothed),
	}
	if neck, ok := rd.raw["neck"]; ok {
		items[CheckNeck] = neckRange.grade(CheckNeck, neck)
	}
	return items
}

// bodyLineRange grades the shoulder-hip-ankle line. A bent line is a sagging
// or a piking hip; the correction depends on which side of the line it is.
func bodyLineRange(p pose.Pose, lo float64, cfg Config) Range {
	r := Range{Min: lo, Max: 180, Margin: 10, Below: CorrectRaiseHips}
	if sag, ok := hipSag(p, cfg.MinKeypointScore); ok && sag < 0 {
		r.Below = CorrectLowerHips
	}
	return r
}
