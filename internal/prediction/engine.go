// Package prediction extrapolates joint angle trajectories a short time ahead
// and issues warnings before a fault threshold is crossed.
package prediction

import (
	"math"
	"sort"
	"time"

	"github.com/SeanJxie/polygo"
	"github.com/google/uuid"
	"github.com/openacid/slimarray/polyfit"
	"gonum.org/v1/gonum/stat"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
)

// Urgency buckets the numeric urgency of a warning.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func urgencyOf(u float64) Urgency {
	switch {
	case u >= 0.6:
		return UrgencyHigh
	case u >= 0.3:
		return UrgencyMedium
	}
	return UrgencyLow
}

// PredictiveWarning announces a threshold crossing expected within the lookahead.
type PredictiveWarning struct {
	ID              string           `json:"id"`
	Channel         string           `json:"channel"`
	Threshold       Threshold        `json:"threshold"`
	Level           exercise.Level   `json:"level"`
	Current         float64          `json:"current"`
	Predicted       float64          `json:"predicted"`
	TimeToThreshold time.Duration    `json:"timeToThreshold"`
	Confidence      float64          `json:"confidence"`
	Urgency         float64          `json:"urgency"`
	UrgencyLevel    Urgency          `json:"urgencyLevel"`
	IssuedAt        time.Duration    `json:"issuedAt"`
	ExpiresAt       time.Duration    `json:"expiresAt"`
	Message         exercise.Message `json:"message"`
}

// Prediction is the engine output for one update.
type Prediction struct {
	Channel      string        `json:"channel"`
	Timestamp    time.Duration `json:"timestamp"`
	Valid        bool          `json:"valid"` // false when the sample was rejected
	Samples      int           `json:"samples"`
	Current      float64       `json:"current"`
	Predicted    float64       `json:"predicted"`
	Velocity     float64       `json:"velocity"`     // deg/s, least squares slope
	Acceleration float64       `json:"acceleration"` // deg/s², from the quadratic fit
	Confidence   float64       `json:"confidence"`
	IsReliable   bool          `json:"isReliable"`

	// Warnings holds the warnings issued by this update only.
	Warnings []PredictiveWarning `json:"warnings"`
}

type sample struct {
	angle float64
	ts    time.Duration
}

type channel struct {
	samples []sample
	slopes  []float64
}

// Engine keeps per-channel history and the set of live warnings. An Engine is
// owned by one session and is not safe for concurrent use.
type Engine struct {
	cfg        Config
	thresholds map[string][]Threshold
	channels   map[string]*channel
	active     map[string]PredictiveWarning // by threshold key
	lastIssued map[string]time.Duration     // by threshold key
}

// NewEngine creates an engine watching the given thresholds.
func NewEngine(cfg Config, thresholds []Threshold) *Engine {
	e := &Engine{
		cfg:        cfg,
		thresholds: make(map[string][]Threshold),
	}
	for _, th := range thresholds {
		e.thresholds[th.Channel] = append(e.thresholds[th.Channel], th)
	}
	e.Reset()
	return e
}

// Reset drops all history and warnings.
func (e *Engine) Reset() {
	e.channels = make(map[string]*channel)
	e.active = make(map[string]PredictiveWarning)
	e.lastIssued = make(map[string]time.Duration)
}

// Thresholds returns the thresholds watched on a channel.
func (e *Engine) Thresholds(ch string) []Threshold {
	return e.thresholds[ch]
}

// Update records one angle sample and returns the prediction for the channel.
// Non-finite angles, angles outside [0,360] and non-advancing timestamps are
// rejected without touching the engine.
func (e *Engine) Update(ch string, angle float64, ts time.Duration) Prediction {
	pred := Prediction{Channel: ch, Timestamp: ts, Current: angle}
	if math.IsNaN(angle) || math.IsInf(angle, 0) || angle < 0 || angle > 360 {
		return pred
	}
	c := e.channels[ch]
	if c == nil {
		c = &channel{}
		e.channels[ch] = c
	}
	if n := len(c.samples); n > 0 && ts <= c.samples[n-1].ts {
		return pred
	}

	c.samples = append(c.samples, sample{angle: angle, ts: ts})
	if len(c.samples) > e.cfg.HistorySize {
		c.samples = c.samples[len(c.samples)-e.cfg.HistorySize:]
	}
	pred.Valid = true
	pred.Samples = len(c.samples)
	pred.Predicted = angle

	if len(c.samples) < e.cfg.MinSamples {
		e.resolve(ch, nil, ts)
		return pred
	}

	fit := e.fit(c)
	c.slopes = append(c.slopes, fit.slope)
	if len(c.slopes) > e.cfg.SlopeWindow {
		c.slopes = c.slopes[len(c.slopes)-e.cfg.SlopeWindow:]
	}

	pred.Predicted = fit.predicted
	pred.Velocity = fit.slope
	pred.Acceleration = fit.accel
	pred.Confidence = e.confidence(c)
	pred.IsReliable = pred.Confidence >= e.cfg.MinConfidence

	if !pred.IsReliable {
		e.resolve(ch, nil, ts)
		return pred
	}

	crossing := make(map[string]bool)
	for _, th := range e.thresholds[ch] {
		if th.Crossed(angle) || !th.Crossed(pred.Predicted) {
			continue
		}
		key := th.key()
		crossing[key] = true
		if _, live := e.active[key]; live {
			continue
		}
		if last, ok := e.lastIssued[key]; ok && ts-last < e.cfg.Hysteresis {
			continue
		}
		w := e.issue(th, pred, fit, ts)
		e.active[key] = w
		e.lastIssued[key] = ts
		pred.Warnings = append(pred.Warnings, w)
		monitoring.Debugf("prediction: %s %s %.1f -> %.1f in %v (confidence %.2f)",
			ch, th.Level, angle, pred.Predicted, w.TimeToThreshold, w.Confidence)
	}
	e.resolve(ch, crossing, ts)
	return pred
}

// resolve removes live warnings on a channel whose threshold is no longer
// predicted to be crossed.
func (e *Engine) resolve(ch string, crossing map[string]bool, now time.Duration) {
	for key, w := range e.active {
		if w.Channel != ch {
			continue
		}
		if !crossing[key] || now >= w.ExpiresAt {
			delete(e.active, key)
		}
	}
}

func (e *Engine) issue(th Threshold, pred Prediction, f trend, ts time.Duration) PredictiveWarning {
	ttt := f.timeTo(th.Value, pred.Current, e.cfg.Lookahead)
	urgency := (1 - float64(ttt)/float64(e.cfg.Lookahead)) * pred.Confidence
	return PredictiveWarning{
		ID:              uuid.New().String(),
		Channel:         th.Channel,
		Threshold:       th,
		Level:           th.Level,
		Current:         pred.Current,
		Predicted:       pred.Predicted,
		TimeToThreshold: ttt,
		Confidence:      pred.Confidence,
		Urgency:         urgency,
		UrgencyLevel:    urgencyOf(urgency),
		IssuedAt:        ts,
		ExpiresAt:       ts + e.cfg.WarningTTL,
		Message: exercise.Message{
			Key:    "predict." + string(th.Correction),
			Params: map[string]any{"channel": th.Channel, "ms": ttt.Milliseconds()},
		},
	}
}

// ActiveWarnings prunes expired warnings and returns the rest, most urgent first.
func (e *Engine) ActiveWarnings(now time.Duration) []PredictiveWarning {
	out := make([]PredictiveWarning, 0, len(e.active))
	for key, w := range e.active {
		if now >= w.ExpiresAt {
			delete(e.active, key)
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Urgency != out[j].Urgency {
			return out[i].Urgency > out[j].Urgency
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// confidence is history sufficiency times slope stability.
func (e *Engine) confidence(c *channel) float64 {
	sufficiency := math.Min(1, float64(len(c.samples))/float64(2*e.cfg.MinSamples))
	stability := 1.0
	if len(c.slopes) >= 2 {
		sd := stat.StdDev(c.slopes, nil)
		stability = 1 / (1 + sd/e.cfg.StabilityScale)
	}
	return sufficiency * stability
}

// trend is the fitted local model of a channel. Time is in seconds relative
// to the newest sample.
type trend struct {
	slope     float64 // deg/s
	accel     float64 // deg/s²
	predicted float64
	coeffs    []float64 // ascending powers; nil when only the line was fitted
}

func (e *Engine) fit(c *channel) trend {
	n := len(c.samples)
	last := c.samples[n-1].ts
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, s := range c.samples {
		xs[i] = (s.ts - last).Seconds()
		ys[i] = s.angle
	}
	ahead := e.cfg.Lookahead.Seconds()

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	t := trend{slope: beta, predicted: alpha + beta*ahead}

	if n >= 4 {
		coeffs := polyfit.NewFit(xs, ys, 2).Solve()
		if poly, err := polygo.NewRealPolynomial(coeffs); err == nil && len(coeffs) == 3 {
			v := poly.At(ahead)
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				t.predicted = v
				t.accel = 2 * coeffs[2]
				t.coeffs = coeffs
			}
		}
	}
	t.predicted = math.Max(0, math.Min(360, t.predicted))
	return t
}

// timeTo estimates when the angle, starting at current, reaches target.
// The result is clamped to [0, limit].
func (t trend) timeTo(target, current float64, limit time.Duration) time.Duration {
	d := target - current
	var a, b float64
	if t.coeffs != nil {
		a, b = t.coeffs[2], t.coeffs[1]
	} else {
		b = t.slope
	}
	secs := math.Inf(1)
	if math.Abs(a) < 1e-6 {
		if b != 0 && d/b >= 0 {
			secs = d / b
		}
	} else if disc := b*b + 4*a*d; disc >= 0 {
		// a t² + b t - d = 0, solved without cancellation.
		q := -0.5 * (b + math.Copysign(math.Sqrt(disc), b))
		roots := []float64{0}
		if q != 0 {
			roots = []float64{q / a, -d / q}
		}
		for _, r := range roots {
			if r >= 0 && r < secs {
				secs = r
			}
		}
	}
	if math.IsInf(secs, 1) {
		return limit
	}
	dur := time.Duration(secs * float64(time.Second))
	if dur > limit {
		return limit
	}
	return dur
}
