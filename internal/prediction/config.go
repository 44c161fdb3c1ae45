package prediction

import (
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/config"
	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
)

// Config holds the prediction engine parameters.
type Config struct {
	Lookahead      time.Duration // Extrapolation horizon
	HistorySize    int           // Samples kept per channel
	MinSamples     int           // Samples needed before predicting
	MinConfidence  float64       // Confidence needed before warning
	Hysteresis     time.Duration // Minimum gap between equivalent warnings
	WarningTTL     time.Duration // Lifetime of a warning
	SlopeWindow    int           // Slope estimates used for stability
	StabilityScale float64       // Slope standard deviation (deg/s) that halves stability
}

// DefaultConfig returns the compiled-in engine configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Lookahead:      cfg.GetPredictionLookahead(),
		HistorySize:    cfg.GetPredictionHistorySize(),
		MinSamples:     cfg.GetPredictionMinSamples(),
		MinConfidence:  cfg.GetPredictionMinConfidence(),
		Hysteresis:     cfg.GetPredictionHysteresis(),
		WarningTTL:     cfg.GetPredictionWarningTTL(),
		SlopeWindow:    8,
		StabilityScale: 40,
	}
}

// Direction says which side of a threshold is the fault.
type Direction string

const (
	Below Direction = "below"
	Above Direction = "above"
)

// Threshold is a fault boundary on one angle channel.
type Threshold struct {
	Channel    string              `json:"channel"`
	Value      float64             `json:"value"`
	Direction  Direction           `json:"direction"`
	Level      exercise.Level      `json:"level"`
	Correction exercise.Correction `json:"correction"`
}

// Crossed reports whether v is on the fault side of the threshold.
func (t Threshold) Crossed(v float64) bool {
	if t.Direction == Above {
		return v > t.Value
	}
	return v < t.Value
}

func (t Threshold) key() string {
	return t.Channel + "/" + string(t.Direction) + "/" + string(t.Level)
}

// DefaultThresholds returns the fault boundaries watched for an exercise.
// Channel names match the raw angle names of exercise results.
func DefaultThresholds(t exercise.Type) []Threshold {
	switch t {
	case exercise.Squat:
		return []Threshold{
			{Channel: "torso_lean", Value: 45, Direction: Above, Level: exercise.LevelWarning, Correction: exercise.CorrectChestUp},
			{Channel: "torso_lean", Value: 55, Direction: Above, Level: exercise.LevelError, Correction: exercise.CorrectChestUp},
			{Channel: "knee", Value: 50, Direction: Below, Level: exercise.LevelWarning, Correction: exercise.CorrectReduceDepth},
		}
	case exercise.Lunge:
		return []Threshold{
			{Channel: "torso_lean", Value: 20, Direction: Above, Level: exercise.LevelWarning, Correction: exercise.CorrectChestUp},
			{Channel: "front_knee", Value: 70, Direction: Below, Level: exercise.LevelWarning, Correction: exercise.CorrectReduceDepth},
		}
	case exercise.Deadlift:
		return []Threshold{
			{Channel: "knee", Value: 135, Direction: Below, Level: exercise.LevelWarning, Correction: exercise.CorrectHingeAtHips},
			{Channel: "neck", Value: 150, Direction: Below, Level: exercise.LevelWarning, Correction: exercise.CorrectNeutralNeck},
		}
	case exercise.Pushup:
		return []Threshold{
			{Channel: "body_line", Value: 160, Direction: Below, Level: exercise.LevelWarning, Correction: exercise.CorrectRaiseHips},
			{Channel: "body_line", Value: 150, Direction: Below, Level: exercise.LevelError, Correction: exercise.CorrectRaiseHips},
		}
	case exercise.Plank:
		return []Threshold{
			{Channel: "body_line", Value: 165, Direction: Below, Level: exercise.LevelWarning, Correction: exercise.CorrectRaiseHips},
			{Channel: "body_line", Value: 155, Direction: Below, Level: exercise.LevelError, Correction: exercise.CorrectRaiseHips},
		}
	}
	return nil
}

// Channels returns the distinct channels of a threshold list.
func Channels(ths []Threshold) []string {
	seen := make(map[string]bool)
	var out []string
	for _, th := range ths {
		if !seen[th.Channel] {
			seen[th.Channel] = true
			out = append(out, th.Channel)
		}
	}
	return out
}
