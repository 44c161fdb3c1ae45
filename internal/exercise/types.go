// Package exercise implements the per-exercise phase state machines, live rep
// counting and checkpoint scoring.
//
// Every analyzer is a pure function of one frame and the previous State:
//
//	result, next := exercise.AnalyzeSquat(frame, state)
//
// States are values; the caller owns one per session and threads it linearly.
package exercise

import (
	"fmt"
	"time"
)

// Type identifies an exercise.
type Type string

const (
	Squat    Type = "squat"
	Deadlift Type = "deadlift"
	Plank    Type = "plank"
	Lunge    Type = "lunge"
	Pushup   Type = "pushup"
)

// Types lists every supported exercise.
var Types = []Type{Squat, Deadlift, Plank, Lunge, Pushup}

// ParseType converts a name into a Type.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown exercise %q", s)
}

// Phase is a named stage of an exercise's movement cycle.
type Phase string

const (
	PhaseStanding   Phase = "standing"
	PhaseDescending Phase = "descending"
	PhaseBottom     Phase = "bottom"
	PhaseAscending  Phase = "ascending"

	PhaseUp   Phase = "up"
	PhaseDown Phase = "down"

	PhaseSetup   Phase = "setup"
	PhaseLift    Phase = "lift"
	PhaseLockout Phase = "lockout"
	PhaseDescent Phase = "descent"

	PhaseOutOfPosition Phase = "out_of_position"
	PhaseHolding       Phase = "holding"
)

// Level grades one checkpoint.
type Level string

const (
	LevelGood    Level = "good"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Checkpoint names an aspect of form being scored.
type Checkpoint string

const (
	CheckDepth         Checkpoint = "depth"
	CheckTorsoLean     Checkpoint = "torso_lean"
	CheckKneeAlignment Checkpoint = "knee_alignment"
	CheckSymmetry      Checkpoint = "symmetry"
	CheckKneeBend      Checkpoint = "knee_bend"
	CheckLockout       Checkpoint = "lockout"
	CheckNeck          Checkpoint = "neck"
	CheckBodyLine      Checkpoint = "body_line"
	CheckBackKnee      Checkpoint = "back_knee"
	CheckTempo         Checkpoint = "tempo"
)

// Correction is a direction the user should move to fix a checkpoint.
type Correction string

const (
	CorrectGoDeeper      Correction = "go_deeper"
	CorrectReduceDepth   Correction = "reduce_depth"
	CorrectChestUp       Correction = "chest_up"
	CorrectKneesOut      Correction = "knees_out"
	CorrectNarrowKnees   Correction = "narrow_knees"
	CorrectBalanceWeight Correction = "balance_weight"
	CorrectSoftenKnees   Correction = "soften_knees"
	CorrectHingeAtHips   Correction = "hinge_at_hips"
	CorrectFinishLockout Correction = "finish_lockout"
	CorrectNeutralNeck   Correction = "neutral_neck"
	CorrectRaiseHips     Correction = "raise_hips"
	CorrectLowerHips     Correction = "lower_hips"
	CorrectLowerBackKnee Correction = "lower_back_knee"
	CorrectSlowDown      Correction = "slow_down"
	CorrectSpeedUp       Correction = "speed_up"
)

// Message keys emitted by analyzers. Localisation happens outside this package.
const (
	MsgFeedbackGood  = "feedback.good"
	MsgLowConfidence = "low_confidence"
	MsgRepComplete   = "rep_complete"
	MsgStateReset    = "state_reset"
	MsgHoldStarted   = "hold_started"
	MsgHoldBroken    = "hold_broken"
)

// Message is a locale-independent message key with template parameters.
type Message struct {
	Key    string         `json:"key"`
	Params map[string]any `json:"params,omitempty"`
}

// CorrectionKey returns the message key for a correction.
func CorrectionKey(c Correction) string {
	return "correction." + string(c)
}

// FeedbackItem is the grade of one checkpoint on one frame.
type FeedbackItem struct {
	Level      Level      `json:"level"`
	Value      float64    `json:"value"`
	Message    Message    `json:"message"`
	Correction Correction `json:"correction,omitempty"`
}

// RepSummary describes one completed repetition.
type RepSummary struct {
	Number     int           `json:"number"`
	StartedAt  time.Duration `json:"startedAt"`
	BottomAt   time.Duration `json:"bottomAt"`
	EndedAt    time.Duration `json:"endedAt"`
	MeanScore  float64       `json:"meanScore"`
	WorstScore float64       `json:"worstScore"`
	PeakAngle  float64       `json:"peakAngle"` // most extreme smoothed driving angle
	Frames     int           `json:"frames"`
}

// Duration returns the time from leaving the start phase to returning to it.
func (r RepSummary) Duration() time.Duration { return r.EndedAt - r.StartedAt }

// Result is the analysis of a single frame.
type Result struct {
	Exercise      Type                        `json:"exercise"`
	Timestamp     time.Duration               `json:"timestamp"`
	Score         float64                     `json:"score"`
	Phase         Phase                       `json:"phase"`
	RepCompleted  bool                        `json:"repCompleted"`
	RepCount      int                         `json:"repCount"`
	Rep           *RepSummary                 `json:"rep,omitempty"`
	Feedbacks     map[Checkpoint]FeedbackItem `json:"feedbacks"`
	RawAngles     map[string]float64          `json:"rawAngles"`
	SmoothedAngle float64                     `json:"smoothedAngle"`
	LowConfidence bool                        `json:"lowConfidence"`
	StateReset    bool                        `json:"stateReset"`
	HoldDuration  time.Duration               `json:"holdDuration,omitempty"`
	BestHold      time.Duration               `json:"bestHold,omitempty"`
	Messages      []Message                   `json:"messages,omitempty"`
}
