// Package video analyses a captured sequence of pose frames after the fact:
// it segments repetitions with whole-sequence context and detects which
// exercise is being performed.
package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/config"
	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
	"github.com/kanoo-op/PostureAI-sub004/internal/velocity"
)

var (
	// ErrCanceled is returned when the caller cancels a batch analysis.
	ErrCanceled = errors.New("video analysis canceled")
	// ErrTimeout is returned when a batch analysis exceeds its deadline.
	ErrTimeout = errors.New("video analysis timed out")
	// ErrInsufficientFrames is returned when too few usable frames exist.
	ErrInsufficientFrames = errors.New("insufficient usable frames")
	// ErrNoCycle is returned when segmenting an exercise without repetitions.
	ErrNoCycle = errors.New("exercise has no repetition cycle")
)

// ctxErr maps a finished context onto ErrCanceled or ErrTimeout.
func ctxErr(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
}

// Frame is one entry of a captured sequence. Pose is nil when the estimator
// found no person in the frame.
type Frame struct {
	Index      int           `json:"frameIndex"`
	Timestamp  time.Duration `json:"timestamp"`
	Pose       pose.Pose     `json:"pose"`
	Confidence float64       `json:"confidence"`
}

func (f Frame) usable(minScore float64) bool {
	return f.Pose != nil && f.Confidence >= minScore
}

// FramesFromPoses wraps live frames for batch analysis, using the mean
// keypoint score as frame confidence.
func FramesFromPoses(frames []pose.Frame) []Frame {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = Frame{Index: i, Timestamp: f.Timestamp, Pose: f.Pose, Confidence: f.Pose.MeanScore()}
	}
	return out
}

// Config holds the batch analysis parameters.
type Config struct {
	Exercise exercise.Config
	Tempo    velocity.Config

	MinRepDuration time.Duration // Shorter candidate reps are merged into a neighbour
	MaxRepDuration time.Duration // Longer candidate reps are split or dropped
	BatchSize      int           // Frames processed between cancellation checks
	SavGolWindow   int           // Savitzky-Golay window, odd

	WindowFrames  int           // Usable frames inspected by Detect
	MinFrames     int           // Fewest usable frames Detect will accept
	Timeout       time.Duration // Hard limit on Detect
	MinConfidence float64       // Similarity required to report a detection

	Profiles []Profile
}

// DefaultConfig returns the compiled-in batch configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Exercise:       exercise.ConfigFromTuning(cfg),
		Tempo:          velocity.ConfigFromTuning(cfg),
		MinRepDuration: cfg.GetRepMinDuration(),
		MaxRepDuration: cfg.GetRepMaxDuration(),
		BatchSize:      cfg.GetSegmentBatchSize(),
		SavGolWindow:   cfg.GetSavGolWindow(),
		WindowFrames:   cfg.GetDetectionWindowFrames(),
		MinFrames:      cfg.GetDetectionMinFrames(),
		Timeout:        cfg.GetDetectionTimeout(),
		MinConfidence:  cfg.GetDetectionMinConfidence(),
		Profiles:       DefaultProfiles(),
	}
}
