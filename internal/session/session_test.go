package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
	"github.com/kanoo-op/PostureAI-sub004/internal/rom"
	"github.com/kanoo-op/PostureAI-sub004/internal/testutil"
	"github.com/kanoo-op/PostureAI-sub004/internal/timeutil"
	"github.com/kanoo-op/PostureAI-sub004/internal/velocity"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]*Record
	fail    error
}

func newMemStore() *memStore { return &memStore{records: make(map[string]*Record)} }

func (m *memStore) SaveSession(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

func (m *memStore) ListSessions(context.Context, int) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Summary
	for _, r := range m.records {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const frameStep = 100 * time.Millisecond

func squatFrames(reps int) []pose.Frame {
	return testutil.Frames(testutil.SquatPose, testutil.Repeat(testutil.Cycle(170, 80, 10), reps), frameStep)
}

func run(t *testing.T, s *Session, frames []pose.Frame) []IntegratedResult {
	t.Helper()
	out := make([]IntegratedResult, 0, len(frames))
	for _, f := range frames {
		res, err := s.ProcessFrame(f)
		require.NoError(t, err)
		out = append(out, res)
	}
	return out
}

func TestSquatSession(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	store := newMemStore()
	s, err := New(exercise.Squat, DefaultConfig(), clock, store)
	require.NoError(t, err)

	id, err := s.Start()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.True(t, s.Running())

	results := run(t, s, squatFrames(2))
	var completed int
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 100.0)
		if !r.RepCompleted {
			assert.Nil(t, r.Tempo)
			continue
		}
		completed++
		require.NotNil(t, r.Tempo, "rep %d", r.RepCount)
		assert.Positive(t, r.Tempo.Eccentric)
		item, ok := r.Feedbacks[exercise.CheckTempo]
		require.True(t, ok)
		assert.Equal(t, "tempo."+string(r.Tempo.Verdict), item.Message.Key)
	}
	assert.Equal(t, 2, completed)
	assert.Equal(t, 2, s.State().RepCount())

	clock.Advance(90 * time.Second)
	rec, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Running())

	assert.Equal(t, id, rec.ID)
	assert.Equal(t, exercise.Squat, rec.Exercise)
	assert.Equal(t, 90*time.Second, rec.Duration())
	assert.Equal(t, 2, rec.RepCount)
	require.Len(t, rec.Sets, 1)
	assert.Len(t, rec.Sets[0].Reps, 2)
	assert.Len(t, rec.Sets[0].Tempos, 2)
	assert.Equal(t, 42, rec.Sets[0].Frames)
	assert.Zero(t, rec.Sets[0].LowConfidenceFrames)
	assert.InDelta(t, rec.Sets[0].AverageScore, rec.AverageScore, 1e-9)
	assert.GreaterOrEqual(t, rec.BestScore, rec.Sets[0].Reps[0].MeanScore)

	knee, ok := rec.ROM.Joint(rom.JointKey{Joint: rom.Knee, Side: rom.Left})
	require.True(t, ok)
	assert.InDelta(t, 90, knee.RangeAchieved, 0.5)
	assert.Equal(t, id, rec.ROM.SessionID)
	assert.Equal(t, rec.EndedAt, rec.ROM.GeneratedAt)

	stored, err := store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, rec, stored)
}

func TestHoldSetBestScore(t *testing.T) {
	s, err := New(exercise.Plank, DefaultConfig(), timeutil.NewMockClock(epoch), nil)
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)

	var best float64
	var results []IntegratedResult
	for i, sag := range []float64{20, 20, 0, 0, 20, 20} {
		res, err := s.ProcessFrame(pose.Frame{Pose: testutil.PlankPose(sag), Timestamp: time.Duration(i) * frameStep})
		require.NoError(t, err)
		best = max(best, res.Score)
		results = append(results, res)
	}
	require.Less(t, results[0].Score, results[2].Score)

	rec, err := s.Stop(context.Background())
	require.NoError(t, err)
	set := rec.Sets[0]
	assert.Empty(t, set.Reps)
	assert.Equal(t, best, set.BestScore)
	assert.Greater(t, set.BestScore, set.AverageScore)
}

func TestSessionLifecycleErrors(t *testing.T) {
	s, err := New(exercise.Squat, DefaultConfig(), nil, nil)
	require.NoError(t, err)

	_, err = s.ProcessFrame(pose.Frame{Pose: testutil.SquatPose(170)})
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = s.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = s.Start()
	require.NoError(t, err)
	_, err = s.Start()
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	rec, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rec.RepCount)
	assert.Equal(t, rom.VerdictInsufficient, rec.ROM.Verdict)

	_, err = New(exercise.Type("burpee"), DefaultConfig(), nil, nil)
	assert.Error(t, err)
}

func TestStopReportsStoreFailure(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("disk full")
	s, err := New(exercise.Plank, DefaultConfig(), nil, store)
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)

	rec, err := s.Stop(context.Background())
	assert.ErrorIs(t, err, store.fail)
	require.NotNil(t, rec)
	assert.False(t, s.Running())
}

func TestLowConfidenceFrames(t *testing.T) {
	s, err := New(exercise.Squat, DefaultConfig(), nil, nil)
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)

	frames := squatFrames(1)
	frames[5].Pose = testutil.WithScore(frames[5].Pose, 0.1)
	frames[6].Pose = nil
	results := run(t, s, frames)
	assert.True(t, results[5].LowConfidence)
	assert.True(t, results[6].LowConfidence)
	assert.Empty(t, results[5].Warnings)

	rec, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Sets[0].LowConfidenceFrames)
	assert.Equal(t, 21, rec.Sets[0].Frames)
}

func TestSwitchExercise(t *testing.T) {
	s, err := New(exercise.Squat, DefaultConfig(), nil, nil)
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)

	run(t, s, squatFrames(1))
	require.NoError(t, s.SwitchExercise(exercise.Squat))
	assert.Equal(t, 1, s.State().RepCount())

	require.NoError(t, s.SwitchExercise(exercise.Pushup))
	assert.Equal(t, exercise.Pushup, s.Exercise())
	assert.Zero(t, s.State().RepCount())

	pushups := testutil.Frames(testutil.PushupPose, testutil.Repeat(testutil.Cycle(170, 80, 10), 2), frameStep)
	for i := range pushups {
		pushups[i].Timestamp += 10 * time.Second
	}
	run(t, s, pushups)

	assert.Error(t, s.SwitchExercise(exercise.Type("burpee")))
	assert.Equal(t, exercise.Pushup, s.Exercise())

	rec, err := s.Stop(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Sets, 2)
	assert.Equal(t, exercise.Squat, rec.Exercise)
	assert.Equal(t, exercise.Squat, rec.Sets[0].Exercise)
	assert.Equal(t, exercise.Pushup, rec.Sets[1].Exercise)
	assert.Len(t, rec.Sets[0].Reps, 1)
	assert.Len(t, rec.Sets[1].Reps, 2)
	assert.Equal(t, 3, rec.RepCount)
}

func TestMirroredSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mirror = true
	s, err := New(exercise.Squat, cfg, nil, nil)
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)

	frames := squatFrames(2)
	for i := range frames {
		frames[i].Pose = pose.Mirror(frames[i].Pose)
	}
	run(t, s, frames)
	assert.Equal(t, 2, s.State().RepCount())
}

func TestPredictiveTorsoWarning(t *testing.T) {
	s, err := New(exercise.Squat, DefaultConfig(), nil, nil)
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)

	// Lean grows 2 degrees per 30ms frame at a fixed knee angle.
	var warned []IntegratedResult
	for i := 0; i < 15; i++ {
		lean := 10 + 2*float64(i)
		res, err := s.ProcessFrame(pose.Frame{
			Pose:      testutil.SquatPoseWithLean(130, lean),
			Timestamp: time.Duration(i) * 30 * time.Millisecond,
		})
		require.NoError(t, err)
		if len(res.Warnings) > 0 {
			warned = append(warned, res)
		}
	}
	require.NotEmpty(t, warned)
	first := warned[0]
	w := first.Warnings[0]
	assert.Equal(t, "torso_lean", w.Channel)
	assert.Equal(t, exercise.LevelWarning, w.Level)
	assert.Less(t, w.Current, 45.0)
	assert.NotEmpty(t, first.Active)

	var keys []string
	for _, m := range first.Messages {
		keys = append(keys, m.Key)
	}
	assert.Contains(t, keys, "predict.chest_up")
}

func TestTempoFeedback(t *testing.T) {
	tests := []struct {
		verdict velocity.Verdict
		level   exercise.Level
		corr    exercise.Correction
	}{
		{velocity.VerdictControlled, exercise.LevelGood, ""},
		{velocity.VerdictFastEccentric, exercise.LevelWarning, exercise.CorrectSlowDown},
		{velocity.VerdictRushed, exercise.LevelWarning, exercise.CorrectSlowDown},
		{velocity.VerdictSlowConcentric, exercise.LevelWarning, exercise.CorrectSpeedUp},
		{velocity.VerdictIncomplete, exercise.LevelWarning, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.verdict), func(t *testing.T) {
			item := tempoFeedback(velocity.TempoAnalysis{Verdict: tt.verdict, Ratio: 1.234})
			assert.Equal(t, tt.level, item.Level)
			assert.Equal(t, tt.corr, item.Correction)
			assert.Equal(t, 1.23, item.Value)
		})
	}
}
