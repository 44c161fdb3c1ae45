package exercise

import (
	"math"

	"github.com/kanoo-op/PostureAI-sub004/internal/config"
)

// Config holds the thresholds shared by all exercise analyzers.
type Config struct {
	MinKeypointScore float64 // Keypoint detection score below which a landmark is ignored
	SmoothingAlpha   float64 // EMA weight of the newest driving-angle sample
	HysteresisMargin float64 // Degrees past a threshold that commit a transition at once
	MinPhaseFrames   int     // Consecutive frames past a threshold that commit a transition

	WarningPenalty float64 // Score penalty of a warning checkpoint
	ErrorPenalty   float64 // Score penalty of an error checkpoint

	SquatStanding     float64
	SquatBottom       float64
	SquatTorsoLeanMax float64
	LungeStanding     float64
	LungeBottom       float64
	PushupUp          float64
	PushupDown        float64
	DeadliftSetup     float64
	DeadliftLockout   float64

	PlankBodyLineMin   float64 // Shoulder-hip-ankle angle of an acceptable plank
	PlankHorizontalMax float64 // Largest shoulder-ankle tilt from horizontal that counts as a plank
}

// DefaultConfig returns the compiled-in analyzer configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MinKeypointScore:   cfg.GetMinKeypointScore(),
		SmoothingAlpha:     cfg.GetAngleSmoothingAlpha(),
		HysteresisMargin:   cfg.GetHysteresisMarginDeg(),
		MinPhaseFrames:     cfg.GetMinPhaseFrames(),
		WarningPenalty:     cfg.GetWarningPenalty(),
		ErrorPenalty:       cfg.GetErrorPenalty(),
		SquatStanding:      cfg.GetSquatStandingAngle(),
		SquatBottom:        cfg.GetSquatBottomAngle(),
		SquatTorsoLeanMax:  cfg.GetSquatTorsoLeanMax(),
		LungeStanding:      cfg.GetLungeStandingAngle(),
		LungeBottom:        cfg.GetLungeBottomAngle(),
		PushupUp:           cfg.GetPushupUpAngle(),
		PushupDown:         cfg.GetPushupDownAngle(),
		DeadliftSetup:      cfg.GetDeadliftSetupAngle(),
		DeadliftLockout:    cfg.GetDeadliftLockoutAngle(),
		PlankBodyLineMin:   cfg.GetPlankBodyLineMin(),
		PlankHorizontalMax: cfg.GetPlankHorizontalMax(),
	}
}

// Range is the acceptable band of a checkpoint value. Values inside
// [Min, Max] are good, values within Margin of the band are warnings and
// anything further out is an error.
type Range struct {
	Min, Max float64
	Margin   float64
	Below    Correction // correction when the value is under Min
	Above    Correction // correction when the value is over Max
}

// Classify grades v against the range.
func (r Range) Classify(v float64) (Level, Correction) {
	if v >= r.Min && v <= r.Max {
		return LevelGood, ""
	}
	miss, corr := r.Min-v, r.Below
	if v > r.Max {
		miss, corr = v-r.Max, r.Above
	}
	if miss <= r.Margin {
		return LevelWarning, corr
	}
	return LevelError, corr
}

// grade builds the feedback item for v.
func (r Range) grade(cp Checkpoint, v float64) FeedbackItem {
	level, corr := r.Classify(v)
	value := math.Round(v*10) / 10
	item := FeedbackItem{Level: level, Value: value, Correction: corr}
	if level == LevelGood {
		item.Message = Message{Key: MsgFeedbackGood, Params: map[string]any{"checkpoint": string(cp)}}
	} else {
		item.Message = Message{Key: CorrectionKey(corr), Params: map[string]any{"checkpoint": string(cp), "value": value}}
	}
	return item
}

// Score combines checkpoint grades into a 0-100 score: the weighted mean
// penalty subtracted from 100. Checkpoints without a weight count once.
func (c Config) Score(items map[Checkpoint]FeedbackItem, weights map[Checkpoint]float64) float64 {
	if len(items) == 0 {
		return 100
	}
	var penalty, total float64
	for cp, item := range items {
		w := weights[cp]
		if w <= 0 {
			w = 1
		}
		switch item.Level {
		case LevelWarning:
			penalty += w * c.WarningPenalty
		case LevelError:
			penalty += w * c.ErrorPenalty
		}
		total += w
	}
	score := 100 - penalty/total
	return math.Max(0, math.Min(100, score))
}
