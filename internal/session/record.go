package session

import (
	"context"
	"math"
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/rom"
	"github.com/kanoo-op/PostureAI-sub004/internal/velocity"
)

// Store persists session records. Implementations must be safe for
// concurrent use.
type Store interface {
	SaveSession(ctx context.Context, rec *Record) error
	GetSession(ctx context.Context, id string) (*Record, error)
	ListSessions(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

// Record is the stored outcome of one workout.
type Record struct {
	ID           string        `json:"id"`
	Exercise     exercise.Type `json:"exercise"` // exercise of the first set
	StartedAt    time.Time     `json:"startedAt"`
	EndedAt      time.Time     `json:"endedAt"`
	Sets         []Set         `json:"sets"`
	RepCount     int           `json:"repCount"`
	AverageScore float64       `json:"averageScore"`
	BestScore    float64       `json:"bestScore"`
	ROM          rom.Summary   `json:"rom"`
}

// Duration returns the wall-clock length of the session.
func (r *Record) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// Summary is the listing form of a record.
type Summary struct {
	ID           string        `json:"id"`
	Exercise     exercise.Type `json:"exercise"`
	StartedAt    time.Time     `json:"startedAt"`
	EndedAt      time.Time     `json:"endedAt"`
	RepCount     int           `json:"repCount"`
	AverageScore float64       `json:"averageScore"`
}

// Summary returns the listing form of the record.
func (r *Record) Summary() Summary {
	return Summary{
		ID:           r.ID,
		Exercise:     r.Exercise,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
		RepCount:     r.RepCount,
		AverageScore: r.AverageScore,
	}
}

// Set is the part of a session spent on one exercise.
type Set struct {
	Exercise            exercise.Type            `json:"exercise"`
	Reps                []exercise.RepSummary    `json:"reps"`
	Tempos              []velocity.TempoAnalysis `json:"tempos,omitempty"`
	Frames              int                      `json:"frames"`
	LowConfidenceFrames int                      `json:"lowConfidenceFrames"`
	Warnings            int                      `json:"warnings"`
	AverageScore        float64                  `json:"averageScore"`
	BestScore           float64                  `json:"bestScore"`
	BestHold            time.Duration            `json:"bestHold,omitempty"`
}

type setAccumulator struct {
	set       Set
	scoreSum  float64
	scored    int
	bestFrame float64
}

func newSet(t exercise.Type) *setAccumulator {
	return &setAccumulator{set: Set{Exercise: t}}
}

func (a *setAccumulator) add(r IntegratedResult) {
	a.set.Frames++
	a.set.Warnings += len(r.Warnings)
	if r.LowConfidence {
		a.set.LowConfidenceFrames++
		return
	}
	a.scoreSum += r.Score
	a.scored++
	a.bestFrame = max(a.bestFrame, r.Score)
	if r.Rep != nil {
		a.set.Reps = append(a.set.Reps, *r.Rep)
	}
	if r.Tempo != nil {
		a.set.Tempos = append(a.set.Tempos, *r.Tempo)
	}
	a.set.BestHold = max(a.set.BestHold, r.BestHold)
}

// close computes the set averages. Sets with reps take their best score from
// the best rep; holds take it from the best frame.
func (a *setAccumulator) close() Set {
	s := a.set
	if a.scored > 0 {
		s.AverageScore = a.scoreSum / float64(a.scored)
	}
	s.BestScore = a.bestFrame
	for i, rep := range s.Reps {
		if i == 0 || rep.MeanScore > s.BestScore {
			s.BestScore = rep.MeanScore
		}
	}
	return s
}

// finalise derives the record totals from its sets. The average is weighted
// by confident frames.
func (r *Record) finalise() {
	var weighted float64
	var frames int
	r.RepCount, r.BestScore = 0, 0
	for i, s := range r.Sets {
		if i == 0 {
			r.Exercise = s.Exercise
		}
		n := s.Frames - s.LowConfidenceFrames
		weighted += s.AverageScore * float64(n)
		frames += n
		r.RepCount += len(s.Reps)
		r.BestScore = math.Max(r.BestScore, s.BestScore)
	}
	r.AverageScore = 0
	if frames > 0 {
		r.AverageScore = weighted / float64(frames)
	}
}
