package video

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pconstantinou/savitzkygolay"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
	"github.com/kanoo-op/PostureAI-sub004/internal/smoothing"
	"github.com/kanoo-op/PostureAI-sub004/internal/velocity"
)

// Smoother names the filter applied to the driving-angle series.
type Smoother string

const (
	SmootherSavitzkyGolay Smoother = "savitzky_golay"
	SmootherEMA           Smoother = "ema"
)

// RepResult is one repetition found in a captured sequence.
type RepResult struct {
	Number      int                         `json:"number"`
	StartFrame  int                         `json:"startFrame"`
	BottomFrame int                         `json:"bottomFrame"`
	EndFrame    int                         `json:"endFrame"`
	StartedAt   time.Duration               `json:"startedAt"`
	BottomAt    time.Duration               `json:"bottomAt"`
	EndedAt     time.Duration               `json:"endedAt"`
	PeakAngle   float64                     `json:"peakAngle"`
	MeanScore   float64                     `json:"meanScore"`
	WorstScore  float64                     `json:"worstScore"`
	Tempo       velocity.TempoAnalysis      `json:"tempo"`
	Corrections map[exercise.Correction]int `json:"corrections,omitempty"`
	Merged      bool                        `json:"merged,omitempty"`
	Split       bool                        `json:"split,omitempty"`
}

// Duration returns the time from leaving the start zone to returning to it.
func (r RepResult) Duration() time.Duration { return r.EndedAt - r.StartedAt }

// RepAnalysis is the outcome of segmenting a captured sequence.
type RepAnalysis struct {
	Exercise     exercise.Type `json:"exercise"`
	Reps         []RepResult   `json:"reps"`
	TotalFrames  int           `json:"totalFrames"`
	UsableFrames int           `json:"usableFrames"`
	Dropped      int           `json:"dropped"` // candidates discarded as noise
	AverageScore float64       `json:"averageScore"`
	Smoother     Smoother      `json:"smoother"`
}

// point is one usable frame of the driving-angle series.
type point struct {
	frame int // index into the frame slice
	ts    time.Duration
	angle float64
	score float64
	items map[exercise.Checkpoint]exercise.FeedbackItem
}

// span is a candidate repetition as indices into the point series.
type span struct {
	start, bottom, end int
	merged, split      bool
}

// SegmentReps finds the repetitions of exercise t in frames. The context is
// checked between batches of cfg.BatchSize frames.
func SegmentReps(ctx context.Context, frames []Frame, t exercise.Type, cfg Config) (*RepAnalysis, error) {
	cycle, ok := exercise.CycleFor(t, cfg.Exercise)
	if !ok {
		return nil, fmt.Errorf("segmenting %s: %w", t, ErrNoCycle)
	}
	an, err := exercise.New(t, cfg.Exercise)
	if err != nil {
		return nil, err
	}

	batch := max(cfg.BatchSize, 1)
	pts := make([]point, 0, len(frames))
	state := an.Initial()
	for i, f := range frames {
		if i%batch == 0 {
			if err := ctxErr(ctx); err != nil {
				return nil, err
			}
		}
		if !f.usable(cfg.Exercise.MinKeypointScore) {
			continue
		}
		angle, ok := exercise.DrivingAngle(t, f.Pose, cfg.Exercise)
		if !ok {
			continue
		}
		var res exercise.Result
		res, state = an.Analyze(pose.Frame{Pose: f.Pose, Timestamp: f.Timestamp}, state)
		pts = append(pts, point{frame: i, ts: f.Timestamp, angle: angle, score: res.Score, items: res.Feedbacks})
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("segmenting %s: %d usable frames: %w", t, len(pts), ErrInsufficientFrames)
	}

	smoothed, smoother := smoothSeries(pts, cfg)
	spans := scan(cycle, smoothed)
	spans, dropped := mergeShort(cycle, smoothed, pts, spans, cfg.MinRepDuration)

	var final []span
	for _, s := range spans {
		parts := splitLong(cycle, smoothed, pts, s, cfg)
		if parts == nil {
			dropped++
			continue
		}
		final = append(final, parts...)
	}

	ra := &RepAnalysis{
		Exercise:     t,
		TotalFrames:  len(frames),
		UsableFrames: len(pts),
		Dropped:      dropped,
		Smoother:     smoother,
		Reps:         make([]RepResult, 0, len(final)),
	}
	var total float64
	for i, s := range final {
		r := summarise(cycle, smoothed, pts, frames, s, cfg)
		r.Number = i + 1
		ra.Reps = append(ra.Reps, r)
		total += r.MeanScore
	}
	if len(ra.Reps) > 0 {
		ra.AverageScore = total / float64(len(ra.Reps))
	}
	monitoring.Logf("segmented %s: %d frames, %d usable, %d reps, %d dropped (%s)",
		t, len(frames), len(pts), len(ra.Reps), dropped, smoother)
	return ra, nil
}

// smoothSeries filters the driving angle with Savitzky-Golay when the series
// is long enough for the window, and with an EMA otherwise.
func smoothSeries(pts []point, cfg Config) ([]float64, Smoother) {
	ys := make([]float64, len(pts))
	xs := make([]float64, len(pts))
	for i, p := range pts {
		ys[i] = p.angle
		xs[i] = p.ts.Seconds()
	}
	if w := cfg.SavGolWindow; w >= 5 && len(pts) >= 2*w {
		if filter, err := savitzkygolay.NewFilter(w, 0, 2); err == nil {
			if out, err := filter.Process(ys, xs); err == nil && len(out) == len(ys) && allFinite(out) {
				return out, SmootherSavitzkyGolay
			}
		}
		monitoring.Debugf("savitzky-golay smoothing unavailable for %d samples, using EMA", len(ys))
	}
	ema := smoothing.NewEMA(cfg.Exercise.SmoothingAlpha)
	out := make([]float64, len(ys))
	for i, y := range ys {
		ema = ema.Next(y)
		out[i] = ema.Value
	}
	return out, SmootherEMA
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// scan walks the smoothed series and returns every excursion that leaves the
// start zone, reaches the extreme zone and comes back. A rep starts at the
// last start-zone sample before leaving and ends at the first one after.
func scan(c exercise.Cycle, s []float64) []span {
	var out []span
	lastStart := -1
	away := false // left the start zone after having been inside
	var cur span
	var reached bool
	for i, v := range s {
		if c.InStart(v) {
			if away && reached {
				cur.end = i
				out = append(out, cur)
			}
			away, reached = false, false
			lastStart = i
			continue
		}
		if lastStart < 0 {
			continue
		}
		if !away {
			away = true
			cur = span{start: lastStart, bottom: i}
		}
		if c.MoreExtreme(v, s[cur.bottom]) {
			cur.bottom = i
		}
		if c.InExtreme(v) {
			reached = true
		}
	}
	return out
}

func (s span) duration(pts []point) time.Duration {
	return pts[s.end].ts - pts[s.start].ts
}

// join combines two adjacent spans into one repetition.
func join(c exercise.Cycle, sm []float64, a, b span) span {
	out := span{start: a.start, bottom: a.bottom, end: b.end, merged: true}
	if c.MoreExtreme(sm[b.bottom], sm[a.bottom]) {
		out.bottom = b.bottom
	}
	return out
}

// mergeShort folds reps shorter than minDur into the preceding rep, or into
// the following one when there is no predecessor. A lone short rep is dropped.
func mergeShort(c exercise.Cycle, sm []float64, pts []point, spans []span, minDur time.Duration) ([]span, int) {
	var out []span
	var carry *span
	for _, s := range spans {
		if carry != nil {
			s = join(c, sm, *carry, s)
			carry = nil
		}
		if s.duration(pts) >= minDur {
			out = append(out, s)
			continue
		}
		if n := len(out); n > 0 {
			out[n-1] = join(c, sm, out[n-1], s)
			continue
		}
		carry = &s
	}
	if carry != nil {
		monitoring.Debugf("dropping lone short rep of %v", carry.duration(pts))
		return out, 1
	}
	return out, 0
}

// splitLong divides a rep longer than the maximum at the most start-ward
// sample separating two extreme-zone visits. It returns nil when the rep
// cannot be divided into plausible reps.
func splitLong(c exercise.Cycle, sm []float64, pts []point, s span, cfg Config) []span {
	if s.duration(pts) <= cfg.MaxRepDuration {
		return []span{s}
	}
	first, last := -1, -1
	for i := s.start; i <= s.end; i++ {
		if c.InExtreme(sm[i]) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	cut := -1
	for i := first + 1; i < last; i++ {
		if c.InExtreme(sm[i]) {
			continue
		}
		if cut < 0 || c.StartDepth(sm[i]) > c.StartDepth(sm[cut]) {
			cut = i
		}
	}
	if first < 0 || cut < 0 {
		monitoring.Debugf("dropping unsplittable rep of %v", s.duration(pts))
		return nil
	}

	a := span{start: s.start, bottom: extremeIn(c, sm, s.start, cut), end: cut, split: true}
	b := span{start: cut, bottom: extremeIn(c, sm, cut, s.end), end: s.end, split: true}
	var out []span
	for _, part := range []span{a, b} {
		if part.duration(pts) < cfg.MinRepDuration {
			continue
		}
		sub := splitLong(c, sm, pts, part, cfg)
		for i := range sub {
			sub[i].split = true
		}
		out = append(out, sub...)
	}
	return out
}

func extremeIn(c exercise.Cycle, sm []float64, from, to int) int {
	best := from
	for i := from; i <= to; i++ {
		if c.MoreExtreme(sm[i], sm[best]) {
			best = i
		}
	}
	return best
}

// summarise scores a span from the analyzer replay and derives its tempo.
func summarise(c exercise.Cycle, sm []float64, pts []point, frames []Frame, s span, cfg Config) RepResult {
	r := RepResult{
		StartFrame:  frames[pts[s.start].frame].Index,
		BottomFrame: frames[pts[s.bottom].frame].Index,
		EndFrame:    frames[pts[s.end].frame].Index,
		StartedAt:   pts[s.start].ts,
		BottomAt:    pts[s.bottom].ts,
		EndedAt:     pts[s.end].ts,
		PeakAngle:   sm[s.bottom],
		WorstScore:  100,
		Merged:      s.merged,
		Split:       s.split,
	}
	var sum float64
	for i := s.start; i <= s.end; i++ {
		p := pts[i]
		sum += p.score
		r.WorstScore = math.Min(r.WorstScore, p.score)
		for _, item := range p.items {
			if item.Correction == "" {
				continue
			}
			if r.Corrections == nil {
				r.Corrections = make(map[exercise.Correction]int)
			}
			r.Corrections[item.Correction]++
		}
	}
	r.MeanScore = sum / float64(s.end-s.start+1)

	// Lowering is eccentric. A deadlift lifts first.
	down, up := r.BottomAt-r.StartedAt, r.EndedAt-r.BottomAt
	if c.Sign < 0 {
		down, up = up, down
	}
	r.Tempo = cfg.Tempo.Tempo(down, up)
	return r
}
