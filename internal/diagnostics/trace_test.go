package diagnostics

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/testutil"
)

func squatTrace(t *testing.T) *TraceRecorder {
	t.Helper()
	cfg := exercise.DefaultConfig()
	an, err := exercise.New(exercise.Squat, cfg)
	require.NoError(t, err)

	rec := NewTraceRecorder(exercise.Squat, cfg)
	frames := testutil.Frames(testutil.SquatPose, testutil.Repeat(testutil.Cycle(170, 80, 10), 2), 100*time.Millisecond)
	frames[7].Pose = nil
	st := an.Initial()
	for _, f := range frames {
		var res exercise.Result
		res, st = an.Analyze(f, st)
		rec.Record(res)
	}
	return rec
}

func TestGuides(t *testing.T) {
	cfg := exercise.DefaultConfig()
	tests := []struct {
		ex   exercise.Type
		want []float64
	}{
		{exercise.Squat, []float64{cfg.SquatStanding, cfg.SquatStanding - cfg.HysteresisMargin, cfg.SquatBottom, cfg.SquatBottom - cfg.HysteresisMargin}},
		{exercise.Deadlift, []float64{cfg.DeadliftSetup, cfg.DeadliftSetup + cfg.HysteresisMargin, cfg.DeadliftLockout, cfg.DeadliftLockout + cfg.HysteresisMargin}},
		{exercise.Plank, []float64{cfg.PlankBodyLineMin}},
		{exercise.Type("burpee"), nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.ex), func(t *testing.T) {
			var got []float64
			for _, g := range Guides(tt.ex, cfg) {
				assert.NotEmpty(t, g.Label)
				got = append(got, g.Value)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordSamples(t *testing.T) {
	rec := squatTrace(t)
	samples := rec.Samples()
	require.Len(t, samples, 42)
	assert.True(t, samples[7].LowConfidence)

	var reps int
	for _, s := range samples {
		if s.RepCompleted {
			reps++
		}
	}
	assert.Equal(t, 2, reps)

	// Samples is a copy.
	samples[0].Score = -1
	assert.NotEqual(t, -1.0, rec.Samples()[0].Score)
}

func TestRecordConcurrent(t *testing.T) {
	rec := NewTraceRecorder(exercise.Plank, exercise.DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rec.Record(exercise.Result{Score: 100})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, rec.Samples(), 400)
}

func TestSavePlots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	files, err := squatTrace(t).SavePlots(dir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "squat_angle.png"),
		filepath.Join(dir, "squat_score.png"),
	}, files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG")), "%s is not a PNG", f)
	}
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, squatTrace(t).RenderHTML(&buf))
	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "smoothed angle")
	assert.Contains(t, html, "squat trace")
	assert.Contains(t, html, "standing")
}

func TestEmptyTrace(t *testing.T) {
	rec := NewTraceRecorder(exercise.Squat, exercise.DefaultConfig())
	_, err := rec.SavePlots(t.TempDir())
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.ErrorIs(t, rec.RenderHTML(&bytes.Buffer{}), ErrNoSamples)
}
