// Package session runs every analyzer over one live frame stream and keeps
// the running record of a workout.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kanoo-op/PostureAI-sub004/internal/config"
	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
	"github.com/kanoo-op/PostureAI-sub004/internal/prediction"
	"github.com/kanoo-op/PostureAI-sub004/internal/rom"
	"github.com/kanoo-op/PostureAI-sub004/internal/timeutil"
	"github.com/kanoo-op/PostureAI-sub004/internal/velocity"
)

var (
	// ErrNotStarted is returned when frames arrive outside Start/Stop.
	ErrNotStarted = errors.New("session not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session already started")
)

// Config gathers the configuration of every analyzer a session runs.
type Config struct {
	Exercise   exercise.Config
	Velocity   velocity.Config
	ROM        rom.Config
	Prediction prediction.Config
	Mirror     bool // flip front-camera frames before analysis
}

// DefaultConfig returns the compiled-in session configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Exercise:   exercise.ConfigFromTuning(cfg),
		Velocity:   velocity.ConfigFromTuning(cfg),
		ROM:        rom.ConfigFromTuning(cfg),
		Prediction: prediction.ConfigFromTuning(cfg),
	}
}

// IntegratedResult is the per-frame output of a session: the form analysis
// with velocity context, tempo on rep completion and predictive warnings.
type IntegratedResult struct {
	exercise.Result
	Velocity velocity.Measurement           `json:"velocity"`
	Tempo    *velocity.TempoAnalysis        `json:"tempo,omitempty"`
	Warnings []prediction.PredictiveWarning `json:"warnings,omitempty"` // issued on this frame
	Active   []prediction.PredictiveWarning `json:"activeWarnings,omitempty"`
}

// Session owns the analyzers of one workout. It is driven by a single frame
// loop and is not safe for concurrent use.
type Session struct {
	cfg   Config
	clock timeutil.Clock
	store Store

	analyzer   exercise.Analyzer
	state      exercise.State
	velocity   *velocity.Tracker
	rom        *rom.Tracker
	prediction *prediction.Engine
	channels   []string

	running bool
	record  *Record
	set     *setAccumulator
}

// New creates a session for exercise t. store may be nil, in which case
// records are only returned from Stop.
func New(t exercise.Type, cfg Config, clock timeutil.Clock, store Store) (*Session, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Session{cfg: cfg, clock: clock, store: store, rom: rom.NewTracker(cfg.ROM, clock)}
	if err := s.load(t); err != nil {
		return nil, err
	}
	return s, nil
}

// load builds the exercise-specific analyzers for t.
func (s *Session) load(t exercise.Type) error {
	an, err := exercise.New(t, s.cfg.Exercise)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	ths := prediction.DefaultThresholds(t)
	s.analyzer = an
	s.state = an.Initial()
	s.velocity = velocity.NewTracker(t, s.cfg.Velocity)
	s.prediction = prediction.NewEngine(s.cfg.Prediction, ths)
	s.channels = prediction.Channels(ths)
	return nil
}

// Exercise returns the exercise currently analysed.
func (s *Session) Exercise() exercise.Type { return s.analyzer.Type() }

// State returns the current analyzer state.
func (s *Session) State() exercise.State { return s.state }

// Running reports whether the session is between Start and Stop.
func (s *Session) Running() bool { return s.running }

// Start begins recording and returns the new session ID.
func (s *Session) Start() (string, error) {
	if s.running {
		return "", ErrAlreadyStarted
	}
	id := uuid.New().String()
	s.record = &Record{ID: id, Exercise: s.Exercise(), StartedAt: s.clock.Now()}
	s.set = newSet(s.Exercise())
	s.rom.StartTracking(id)
	s.running = true
	monitoring.Logf("session %s started: %s", id, s.Exercise())
	return id, nil
}

// ProcessFrame runs one frame through every analyzer.
func (s *Session) ProcessFrame(f pose.Frame) (IntegratedResult, error) {
	if !s.running {
		return IntegratedResult{}, ErrNotStarted
	}
	if s.cfg.Mirror {
		f.Pose = pose.Mirror(f.Pose)
	}

	var out IntegratedResult
	out.Result, s.state = s.analyzer.Analyze(f, s.state)
	out.Velocity = s.velocity.UpdatePose(f.Pose, f.Timestamp)

	if !out.LowConfidence {
		s.rom.RecordPose(f.Pose, s.cfg.Exercise.MinKeypointScore)
		for _, ch := range s.channels {
			v, ok := out.RawAngles[ch]
			if !ok {
				continue
			}
			p := s.prediction.Update(ch, v, f.Timestamp)
			out.Warnings = append(out.Warnings, p.Warnings...)
		}
	}
	out.Active = s.prediction.ActiveWarnings(f.Timestamp)
	for _, w := range out.Warnings {
		out.Messages = append(out.Messages, w.Message)
	}

	if out.RepCompleted {
		if ta, ok := s.velocity.CompleteRep(); ok {
			out.Tempo = &ta
			out.Feedbacks = maps.Clone(out.Feedbacks)
			if out.Feedbacks == nil {
				out.Feedbacks = make(map[exercise.Checkpoint]exercise.FeedbackItem)
			}
			item := tempoFeedback(ta)
			out.Feedbacks[exercise.CheckTempo] = item
			out.Messages = append(out.Messages, item.Message)
		}
	}

	s.set.add(out)
	return out, nil
}

// tempoFeedback grades a rep's tempo as a checkpoint.
func tempoFeedback(ta velocity.TempoAnalysis) exercise.FeedbackItem {
	item := exercise.FeedbackItem{
		Level:   exercise.LevelGood,
		Value:   math.Round(ta.Ratio*100) / 100,
		Message: exercise.Message{Key: "tempo." + string(ta.Verdict), Params: map[string]any{"ratio": ta.Ratio}},
	}
	switch ta.Verdict {
	case velocity.VerdictFastEccentric, velocity.VerdictRushed:
		item.Level, item.Correction = exercise.LevelWarning, exercise.CorrectSlowDown
	case velocity.VerdictSlowConcentric:
		item.Level, item.Correction = exercise.LevelWarning, exercise.CorrectSpeedUp
	case velocity.VerdictIncomplete:
		item.Level = exercise.LevelWarning
	}
	return item
}

// SwitchExercise closes the current set and restarts the exercise-specific
// analyzers for t. Joint ROM keeps accumulating across sets.
func (s *Session) SwitchExercise(t exercise.Type) error {
	if t == s.Exercise() {
		return nil
	}
	prev := s.Exercise()
	if err := s.load(t); err != nil {
		return err
	}
	if s.running {
		s.record.Sets = append(s.record.Sets, s.set.close())
		s.set = newSet(t)
	}
	monitoring.Logf("session: switched %s -> %s", prev, t)
	return nil
}

// Stop ends the session, stores the record when a store was given and
// returns it.
func (s *Session) Stop(ctx context.Context) (*Record, error) {
	if !s.running {
		return nil, ErrNotStarted
	}
	s.running = false
	rec := s.record
	rec.EndedAt = s.clock.Now()
	rec.Sets = append(rec.Sets, s.set.close())
	rec.ROM = s.rom.StopTracking()
	rec.finalise()
	s.record, s.set = nil, nil

	monitoring.Logf("session %s stopped: %d reps, average score %.1f over %v",
		rec.ID, rec.RepCount, rec.AverageScore, rec.EndedAt.Sub(rec.StartedAt).Round(time.Second))
	if s.store != nil {
		if err := s.store.SaveSession(ctx, rec); err != nil {
			return rec, fmt.Errorf("saving session %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}
