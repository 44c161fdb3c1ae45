package rom

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
	"github.com/kanoo-op/PostureAI-sub004/internal/testutil"
	"github.com/kanoo-op/PostureAI-sub004/internal/timeutil"
)

var leftKnee = JointKey{Knee, Left}

func TestRecordMinMaxRange(t *testing.T) {
	orders := [][]float64{
		{160, 90, 120},
		{90, 120, 160},
		{120, 160, 90, 130, 100, 150},
	}
	for _, values := range orders {
		tr := NewTracker(DefaultConfig(), nil)
		tr.StartTracking("s1")
		for _, v := range values {
			require.True(t, tr.Record(leftKnee, v))
		}
		js, ok := tr.Summary().Joint(leftKnee)
		require.True(t, ok)
		assert.Equal(t, 90.0, js.Min)
		assert.Equal(t, 160.0, js.Max)
		assert.Equal(t, 70.0, js.RangeAchieved)
		assert.Equal(t, len(values), js.Samples)
	}
}

func TestRecordRejectsInvalid(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	tr.StartTracking("s1")
	for _, v := range []float64{160, 90, 120} {
		tr.Record(leftKnee, v)
	}
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1, 360.5, 1000} {
		assert.False(t, tr.Record(leftKnee, bad), "value %v", bad)
	}
	js, _ := tr.Summary().Joint(leftKnee)
	assert.Equal(t, 90.0, js.Min)
	assert.Equal(t, 160.0, js.Max)
	assert.Equal(t, 3, js.Samples)

	// Boundaries are accepted.
	assert.True(t, tr.Record(JointKey{Trunk, Center}, 0))
	assert.True(t, tr.Record(JointKey{Trunk, Center}, 360))
}

func TestRecordRequiresTracking(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	assert.False(t, tr.Record(leftKnee, 120))
	tr.StartTracking("s1")
	assert.True(t, tr.IsTracking())
	tr.Record(leftKnee, 120)
	tr.StopTracking()
	assert.False(t, tr.IsTracking())
	assert.False(t, tr.Record(leftKnee, 100))
}

func TestPercentiles(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	tr.StartTracking("s1")
	for i := 0; i <= 100; i++ {
		tr.Record(leftKnee, float64(i+60))
	}
	js, _ := tr.Summary().Joint(leftKnee)
	assert.InDelta(t, 65, js.P05, 1)
	assert.InDelta(t, 155, js.P95, 1)
}

func TestBoundedSamplesKeepExtremes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSamples = 10
	tr := NewTracker(cfg, nil)
	tr.StartTracking("s1")
	tr.Record(leftKnee, 40)
	for i := 0; i < 50; i++ {
		tr.Record(leftKnee, 150)
	}
	js, _ := tr.Summary().Joint(leftKnee)
	assert.Equal(t, 40.0, js.Min, "min/max survive sample eviction")
	assert.Equal(t, 150.0, js.P05)
	assert.Equal(t, 51, js.Samples)
}

func TestAssessmentAndVerdict(t *testing.T) {
	tests := []struct {
		name   string
		ranges map[JointKey][2]float64
		want   Verdict
	}{
		{"no data", nil, VerdictInsufficient},
		{"normal", map[JointKey][2]float64{leftKnee: {80, 170}}, VerdictNormal},
		{"limited", map[JointKey][2]float64{leftKnee: {140, 170}}, VerdictLimited},
		{"hypermobile", map[JointKey][2]float64{{Elbow, Left}: {10, 175}}, VerdictHypermobile},
		{"mixed", map[JointKey][2]float64{leftKnee: {140, 170}, {Elbow, Left}: {10, 175}}, VerdictMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(DefaultConfig(), nil)
			tr.StartTracking(tt.name)
			for key, r := range tt.ranges {
				tr.Record(key, r[0])
				tr.Record(key, r[1])
			}
			s := tr.StopTracking()
			assert.Equal(t, tt.want, s.Verdict)
			assert.GreaterOrEqual(t, s.MobilityScore, 0.0)
			assert.LessOrEqual(t, s.MobilityScore, 100.0)
		})
	}
}

func TestRecordPose(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	tr.StartTracking("s1")
	for _, knee := range []float64{170, 120, 80, 120, 170} {
		assert.Greater(t, tr.RecordPose(testutil.SquatPose(knee), pose.DefaultMinScore), 0)
	}
	s := tr.StopTracking()
	js, ok := s.Joint(leftKnee)
	require.True(t, ok)
	assert.InDelta(t, 80, js.Min, 1e-6)
	assert.InDelta(t, 170, js.Max, 1e-6)
	assert.Equal(t, AssessNormal, js.Assessment)

	_, ok = s.Joint(JointKey{Trunk, Center})
	assert.True(t, ok)
}

func TestCompare(t *testing.T) {
	mk := func(id string, kneeLow, elbowLow float64) *Tracker {
		tr := NewTracker(DefaultConfig(), nil)
		tr.StartTracking(id)
		tr.Record(leftKnee, kneeLow)
		tr.Record(leftKnee, 170)
		tr.Record(JointKey{Elbow, Left}, elbowLow)
		tr.Record(JointKey{Elbow, Left}, 170)
		return tr
	}
	baseline := mk("base", 110, 80).StopTracking()
	tr := mk("cur", 90, 82)

	deltas := tr.Compare(baseline)
	require.Len(t, deltas, 2)
	byKey := map[JointKey]Delta{}
	for _, d := range deltas {
		byKey[d.Key] = d
	}
	assert.Equal(t, TrendImproved, byKey[leftKnee].Trend)
	assert.Equal(t, 20.0, byKey[leftKnee].Change)
	assert.Equal(t, TrendStable, byKey[JointKey{Elbow, Left}].Trend)

	current := tr.StopTracking()
	for _, d := range DefaultConfig().Compare(baseline, current) {
		if d.Key == leftKnee {
			assert.Equal(t, TrendDeclined, d.Trend)
		}
	}

	// A wider stable band absorbs the 20 degree gain.
	cfg := DefaultConfig()
	cfg.StableDelta = 25
	for _, d := range cfg.Compare(current, baseline) {
		assert.Equal(t, TrendStable, d.Trend, d.Key.String())
	}
}

func TestSummaryUsesTrackerClock(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(at)
	tr := NewTracker(DefaultConfig(), clock)
	tr.StartTracking("s1")
	tr.Record(leftKnee, 120)
	assert.Equal(t, at, tr.Summary().GeneratedAt)

	clock.Advance(time.Minute)
	assert.Equal(t, at.Add(time.Minute), tr.StopTracking().GeneratedAt)
}
