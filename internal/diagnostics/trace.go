// Package diagnostics records per-frame analysis traces and renders them as
// PNG plots or an HTML chart for threshold tuning.
package diagnostics

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
)

// ErrNoSamples is returned when rendering an empty trace.
var ErrNoSamples = errors.New("trace has no samples")

// Sample is one analysed frame.
type Sample struct {
	Timestamp     time.Duration  `json:"timestamp"`
	Angle         float64        `json:"angle"` // smoothed driving angle
	Phase         exercise.Phase `json:"phase"`
	Score         float64        `json:"score"`
	RepCompleted  bool           `json:"repCompleted,omitempty"`
	LowConfidence bool           `json:"lowConfidence,omitempty"`
}

// Guide is a horizontal threshold line drawn over the angle trace.
type Guide struct {
	Label string
	Value float64
}

// Guides returns the phase thresholds of exercise t, each flanked by the
// hysteresis margin that commits a transition immediately.
func Guides(t exercise.Type, cfg exercise.Config) []Guide {
	if t == exercise.Plank {
		return []Guide{{Label: "body line min", Value: cfg.PlankBodyLineMin}}
	}
	c, ok := exercise.CycleFor(t, cfg)
	if !ok {
		return nil
	}
	m := cfg.HysteresisMargin * c.Sign
	return []Guide{
		{Label: string(c.StartPhase()), Value: c.Start},
		{Label: string(c.StartPhase()) + " - margin", Value: c.Start - m},
		{Label: string(c.ExtremePhase()), Value: c.Extreme},
		{Label: string(c.ExtremePhase()) + " + margin", Value: c.Extreme - m},
	}
}

// TraceRecorder accumulates frame results. It is safe for concurrent use.
type TraceRecorder struct {
	mu       sync.Mutex
	exercise exercise.Type
	guides   []Guide
	samples  []Sample
}

// NewTraceRecorder creates a recorder for exercise t.
func NewTraceRecorder(t exercise.Type, cfg exercise.Config) *TraceRecorder {
	return &TraceRecorder{exercise: t, guides: Guides(t, cfg)}
}

// Record appends one frame result.
func (r *TraceRecorder) Record(res exercise.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, Sample{
		Timestamp:     res.Timestamp,
		Angle:         res.SmoothedAngle,
		Phase:         res.Phase,
		Score:         res.Score,
		RepCompleted:  res.RepCompleted,
		LowConfidence: res.LowConfidence,
	})
}

// Samples returns a copy of the recorded trace.
func (r *TraceRecorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

// Exercise returns the exercise being traced.
func (r *TraceRecorder) Exercise() exercise.Type { return r.exercise }

type series struct {
	angle, score, reps plotter.XYs
	first, last        float64
}

func (r *TraceRecorder) series() (series, error) {
	samples := r.Samples()
	if len(samples) == 0 {
		return series{}, ErrNoSamples
	}
	var s series
	s.first = samples[0].Timestamp.Seconds()
	s.last = samples[len(samples)-1].Timestamp.Seconds()
	for _, smp := range samples {
		x := smp.Timestamp.Seconds()
		s.score = append(s.score, plotter.XY{X: x, Y: smp.Score})
		if smp.LowConfidence {
			continue
		}
		s.angle = append(s.angle, plotter.XY{X: x, Y: smp.Angle})
		if smp.RepCompleted {
			s.reps = append(s.reps, plotter.XY{X: x, Y: smp.Angle})
		}
	}
	return s, nil
}

var (
	angleColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	scoreColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	repColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	guideColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// SavePlots writes <exercise>_angle.png and <exercise>_score.png into dir and
// returns their paths.
func (r *TraceRecorder) SavePlots(dir string) ([]string, error) {
	s, err := r.series()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	pAngle := plot.New()
	pAngle.Title.Text = fmt.Sprintf("%s - driving angle", r.exercise)
	pAngle.X.Label.Text = "Time (s)"
	pAngle.Y.Label.Text = "Angle (deg)"
	if len(s.angle) > 0 {
		line, err := plotter.NewLine(s.angle)
		if err != nil {
			return nil, err
		}
		line.Color = angleColor
		line.Width = vg.Points(1.5)
		pAngle.Add(line)
		pAngle.Legend.Add("smoothed angle", line)
	}
	for i, g := range r.guides {
		line, err := plotter.NewLine(plotter.XYs{{X: s.first, Y: g.Value}, {X: s.last, Y: g.Value}})
		if err != nil {
			return nil, err
		}
		line.Color = guideColor
		line.Width = vg.Points(1)
		if i%2 == 1 {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		} else {
			pAngle.Legend.Add(g.Label, line)
		}
		pAngle.Add(line)
	}
	if len(s.reps) > 0 {
		sc, err := plotter.NewScatter(s.reps)
		if err != nil {
			return nil, err
		}
		sc.Color = repColor
		sc.Radius = vg.Points(3)
		pAngle.Add(sc)
		pAngle.Legend.Add("rep complete", sc)
	}
	pAngle.Legend.Top = true
	pAngle.Legend.Left = false
	pAngle.Legend.XOffs = -10
	pAngle.Legend.YOffs = -10

	pScore := plot.New()
	pScore.Title.Text = fmt.Sprintf("%s - form score", r.exercise)
	pScore.X.Label.Text = "Time (s)"
	pScore.Y.Label.Text = "Score"
	pScore.Y.Min, pScore.Y.Max = 0, 100
	line, err := plotter.NewLine(s.score)
	if err != nil {
		return nil, err
	}
	line.Color = scoreColor
	line.Width = vg.Points(1)
	pScore.Add(line)

	angleFile := filepath.Join(dir, fmt.Sprintf("%s_angle.png", r.exercise))
	if err := pAngle.Save(14*vg.Inch, 6*vg.Inch, angleFile); err != nil {
		return nil, fmt.Errorf("save angle plot: %w", err)
	}
	scoreFile := filepath.Join(dir, fmt.Sprintf("%s_score.png", r.exercise))
	if err := pScore.Save(14*vg.Inch, 4*vg.Inch, scoreFile); err != nil {
		return nil, fmt.Errorf("save score plot: %w", err)
	}
	return []string{angleFile, scoreFile}, nil
}

// RenderHTML writes an interactive line chart of the trace with the guides
// as mark lines.
func (r *TraceRecorder) RenderHTML(w io.Writer) error {
	samples := r.Samples()
	if len(samples) == 0 {
		return ErrNoSamples
	}

	x := make([]string, len(samples))
	angle := make([]opts.LineData, len(samples))
	score := make([]opts.LineData, len(samples))
	for i, smp := range samples {
		x[i] = fmt.Sprintf("%.2f", smp.Timestamp.Seconds())
		score[i] = opts.LineData{Value: smp.Score}
		if smp.LowConfidence {
			angle[i] = opts.LineData{Value: "-"}
			continue
		}
		angle[i] = opts.LineData{Value: smp.Angle}
		if smp.RepCompleted {
			angle[i].Symbol = "pin"
			angle[i].SymbolSize = 18
		}
	}

	marks := make([]charts.SeriesOpts, 0, len(r.guides)+1)
	for _, g := range r.guides {
		marks = append(marks, charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: g.Label, YAxis: g.Value}))
	}
	marks = append(marks, charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)}))

	chart := charts.NewLine()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: fmt.Sprintf("%s trace", r.exercise), Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s trace", r.exercise), Subtitle: fmt.Sprintf("frames=%d", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Degrees / score", NameLocation: "middle", NameGap: 35}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	chart.SetXAxis(x).
		AddSeries("smoothed angle", angle, marks...).
		AddSeries("score", score)

	if err := chart.Render(w); err != nil {
		return fmt.Errorf("render trace chart: %w", err)
	}
	return nil
}
