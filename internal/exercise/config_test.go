package exercise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoo-op/PostureAI-sub004/internal/config"
	"github.com/kanoo-op/PostureAI-sub004/internal/testutil"
)

func TestRangeClassify(t *testing.T) {
	r := Range{Min: 60, Max: 100, Margin: 10, Below: CorrectReduceDepth, Above: CorrectGoDeeper}
	tests := []struct {
		name      string
		value     float64
		wantLevel Level
		wantCorr  Correction
	}{
		{"inside", 80, LevelGood, ""},
		{"on max edge", 100, LevelGood, ""},
		{"slightly high", 105, LevelWarning, CorrectGoDeeper},
		{"margin edge", 110, LevelWarning, CorrectGoDeeper},
		{"far high", 130, LevelError, CorrectGoDeeper},
		{"slightly low", 55, LevelWarning, CorrectReduceDepth},
		{"far low", 20, LevelError, CorrectReduceDepth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, corr := r.Classify(tt.value)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantCorr, corr)
		})
	}
}

func TestScore(t *testing.T) {
	cfg := DefaultConfig()
	good := FeedbackItem{Level: LevelGood}
	warn := FeedbackItem{Level: LevelWarning}
	bad := FeedbackItem{Level: LevelError}

	assert.Equal(t, 100.0, cfg.Score(nil, nil))
	assert.Equal(t, 100.0, cfg.Score(map[Checkpoint]FeedbackItem{CheckDepth: good}, nil))
	assert.Equal(t, 65.0, cfg.Score(map[Checkpoint]FeedbackItem{CheckDepth: warn}, nil))
	assert.Equal(t, 20.0, cfg.Score(map[Checkpoint]FeedbackItem{CheckDepth: bad}, nil))

	// An error on a heavy checkpoint costs more than on a light one.
	weights := map[Checkpoint]float64{CheckDepth: 3, CheckNeck: 1}
	heavy := cfg.Score(map[Checkpoint]FeedbackItem{CheckDepth: bad, CheckNeck: good}, weights)
	light := cfg.Score(map[Checkpoint]FeedbackItem{CheckDepth: good, CheckNeck: bad}, weights)
	assert.InDelta(t, 40.0, heavy, 1e-9)
	assert.InDelta(t, 80.0, light, 1e-9)

	cfg.ErrorPenalty = 500
	assert.Equal(t, 0.0, cfg.Score(map[Checkpoint]FeedbackItem{CheckDepth: bad}, nil), "score is clamped")
}

func TestConfigFromTuning(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, 160.0, def.SquatStanding)
	assert.Equal(t, 2, def.MinPhaseFrames)

	loaded := ConfigFromTuning(config.MustLoadDefaultConfig())
	assert.Equal(t, def, loaded, "defaults file and compiled-in defaults agree")
}

func TestCycleFor(t *testing.T) {
	cfg := DefaultConfig()
	squat, ok := CycleFor(Squat, cfg)
	require.True(t, ok)
	assert.True(t, squat.InStart(170))
	assert.True(t, squat.InExtreme(90))
	assert.True(t, squat.MoreExtreme(80, 90))

	dl, ok := CycleFor(Deadlift, cfg)
	require.True(t, ok)
	assert.Equal(t, PhaseSetup, dl.StartPhase())
	assert.Equal(t, PhaseLockout, dl.ExtremePhase())
	assert.True(t, dl.InStart(90))
	assert.True(t, dl.InExtreme(170))
	assert.True(t, dl.MoreExtreme(175, 170))

	_, ok = CycleFor(Plank, cfg)
	assert.False(t, ok)
}

func TestDrivingAngle(t *testing.T) {
	cfg := DefaultConfig()
	v, ok := DrivingAngle(Squat, testutil.SquatPose(120), cfg)
	require.True(t, ok)
	assert.InDelta(t, 120, v, 1e-6)

	v, ok = DrivingAngle(Deadlift, testutil.HingePose(130), cfg)
	require.True(t, ok)
	assert.InDelta(t, 130, v, 1e-6)

	v, ok = DrivingAngle(Lunge, testutil.LungePose(100), cfg)
	require.True(t, ok)
	assert.InDelta(t, 100, v, 1e-6)

	v, ok = DrivingAngle(Pushup, testutil.PushupPose(110), cfg)
	require.True(t, ok)
	assert.InDelta(t, 110, v, 1e-6)

	_, ok = DrivingAngle(Squat, testutil.WithScore(testutil.SquatPose(120), 0), cfg)
	assert.False(t, ok)
}

func TestGate(t *testing.T) {
	cfg := DefaultConfig()
	var g gate
	g, ok := g.advance(PhaseBottom, 1, true, cfg)
	assert.False(t, ok)
	g, ok = g.advance(PhaseBottom, 1, true, cfg)
	assert.True(t, ok, "two consecutive frames commit")
	assert.Equal(t, gate{}, g)

	g, _ = g.advance(PhaseBottom, 1, true, cfg)
	g, ok = g.advance(PhaseBottom, 0, false, cfg)
	assert.False(t, ok)
	assert.Equal(t, gate{}, g, "leaving the zone resets the count")

	_, ok = gate{}.advance(PhaseBottom, cfg.HysteresisMargin, true, cfg)
	assert.True(t, ok, "margin commits at once")
}
