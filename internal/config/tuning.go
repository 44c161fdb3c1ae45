package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for analyzer tuning parameters.
//
// Every threshold here was tuned by eye against recorded sessions. They are
// configuration, not algorithmic constants: re-tune them against motion
// capture data rather than editing the analyzers.
type TuningConfig struct {
	// Keypoint and smoothing params
	MinKeypointScore    *float64 `json:"min_keypoint_score,omitempty"`
	AngleSmoothingAlpha *float64 `json:"angle_smoothing_alpha,omitempty"`
	HysteresisMarginDeg *float64 `json:"hysteresis_margin_deg,omitempty"`
	MinPhaseFrames      *int     `json:"min_phase_frames,omitempty"`

	// Scoring params
	WarningPenalty *float64 `json:"warning_penalty,omitempty"`
	ErrorPenalty   *float64 `json:"error_penalty,omitempty"`

	// Phase thresholds (degrees)
	SquatStandingAngle   *float64 `json:"squat_standing_angle,omitempty"`
	SquatBottomAngle     *float64 `json:"squat_bottom_angle,omitempty"`
	SquatTorsoLeanMax    *float64 `json:"squat_torso_lean_max,omitempty"`
	LungeStandingAngle   *float64 `json:"lunge_standing_angle,omitempty"`
	LungeBottomAngle     *float64 `json:"lunge_bottom_angle,omitempty"`
	PushupUpAngle        *float64 `json:"pushup_up_angle,omitempty"`
	PushupDownAngle      *float64 `json:"pushup_down_angle,omitempty"`
	DeadliftSetupAngle   *float64 `json:"deadlift_setup_angle,omitempty"`
	DeadliftLockoutAngle *float64 `json:"deadlift_lockout_angle,omitempty"`
	PlankBodyLineMin     *float64 `json:"plank_body_line_min,omitempty"`
	PlankHorizontalMax   *float64 `json:"plank_horizontal_max,omitempty"`

	// Velocity / tempo params
	VelocitySmoothingAlpha *float64 `json:"velocity_smoothing_alpha,omitempty"`
	VelocityPhaseThreshold *float64 `json:"velocity_phase_threshold,omitempty"`
	VelocityDebounceFrames *int     `json:"velocity_debounce_frames,omitempty"`
	VelocityMaxGap         *string  `json:"velocity_max_gap,omitempty"` // duration string like "500ms"
	TempoMinEccentric      *string  `json:"tempo_min_eccentric,omitempty"`
	TempoMinRatio          *float64 `json:"tempo_min_ratio,omitempty"`
	TempoMaxRatio          *float64 `json:"tempo_max_ratio,omitempty"`

	// ROM params
	ROMMaxSamples *int `json:"rom_max_samples,omitempty"`

	// Prediction params
	PredictionLookahead     *string  `json:"prediction_lookahead,omitempty"`
	PredictionHistorySize   *int     `json:"prediction_history_size,omitempty"`
	PredictionMinSamples    *int     `json:"prediction_min_samples,omitempty"`
	PredictionMinConfidence *float64 `json:"prediction_min_confidence,omitempty"`
	PredictionHysteresis    *string  `json:"prediction_hysteresis,omitempty"`
	PredictionWarningTTL    *string  `json:"prediction_warning_ttl,omitempty"`

	// Offline rep segmentation params
	RepMinDuration   *string `json:"rep_min_duration,omitempty"`
	RepMaxDuration   *string `json:"rep_max_duration,omitempty"`
	SegmentBatchSize *int    `json:"segment_batch_size,omitempty"`
	SavGolWindow     *int    `json:"savgol_window,omitempty"`

	// Exercise detection params
	DetectionWindowFrames  *int     `json:"detection_window_frames,omitempty"`
	DetectionMinFrames     *int     `json:"detection_min_frames,omitempty"`
	DetectionTimeout       *string  `json:"detection_timeout,omitempty"`
	DetectionMinConfidence *float64 `json:"detection_min_confidence,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every Get* accessor on it returns the compiled-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the compiled-in defaults. It mirrors config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		MinKeypointScore:        ptrFloat64(e.GetMinKeypointScore()),
		AngleSmoothingAlpha:     ptrFloat64(e.GetAngleSmoothingAlpha()),
		HysteresisMarginDeg:     ptrFloat64(e.GetHysteresisMarginDeg()),
		MinPhaseFrames:          ptrInt(e.GetMinPhaseFrames()),
		WarningPenalty:          ptrFloat64(e.GetWarningPenalty()),
		ErrorPenalty:            ptrFloat64(e.GetErrorPenalty()),
		SquatStandingAngle:      ptrFloat64(e.GetSquatStandingAngle()),
		SquatBottomAngle:        ptrFloat64(e.GetSquatBottomAngle()),
		SquatTorsoLeanMax:       ptrFloat64(e.GetSquatTorsoLeanMax()),
		LungeStandingAngle:      ptrFloat64(e.GetLungeStandingAngle()),
		LungeBottomAngle:        ptrFloat64(e.GetLungeBottomAngle()),
		PushupUpAngle:           ptrFloat64(e.GetPushupUpAngle()),
		PushupDownAngle:         ptrFloat64(e.GetPushupDownAngle()),
		DeadliftSetupAngle:      ptrFloat64(e.GetDeadliftSetupAngle()),
		DeadliftLockoutAngle:    ptrFloat64(e.GetDeadliftLockoutAngle()),
		PlankBodyLineMin:        ptrFloat64(e.GetPlankBodyLineMin()),
		PlankHorizontalMax:      ptrFloat64(e.GetPlankHorizontalMax()),
		VelocitySmoothingAlpha:  ptrFloat64(e.GetVelocitySmoothingAlpha()),
		VelocityPhaseThreshold:  ptrFloat64(e.GetVelocityPhaseThreshold()),
		VelocityDebounceFrames:  ptrInt(e.GetVelocityDebounceFrames()),
		VelocityMaxGap:          ptrString(e.GetVelocityMaxGap().String()),
		TempoMinEccentric:       ptrString(e.GetTempoMinEccentric().String()),
		TempoMinRatio:           ptrFloat64(e.GetTempoMinRatio()),
		TempoMaxRatio:           ptrFloat64(e.GetTempoMaxRatio()),
		ROMMaxSamples:           ptrInt(e.GetROMMaxSamples()),
		PredictionLookahead:     ptrString(e.GetPredictionLookahead().String()),
		PredictionHistorySize:   ptrInt(e.GetPredictionHistorySize()),
		PredictionMinSamples:    ptrInt(e.GetPredictionMinSamples()),
		PredictionMinConfidence: ptrFloat64(e.GetPredictionMinConfidence()),
		PredictionHysteresis:    ptrString(e.GetPredictionHysteresis().String()),
		PredictionWarningTTL:    ptrString(e.GetPredictionWarningTTL().String()),
		RepMinDuration:          ptrString(e.GetRepMinDuration().String()),
		RepMaxDuration:          ptrString(e.GetRepMaxDuration().String()),
		SegmentBatchSize:        ptrInt(e.GetSegmentBatchSize()),
		SavGolWindow:            ptrInt(e.GetSavGolWindow()),
		DetectionWindowFrames:   ptrInt(e.GetDetectionWindowFrames()),
		DetectionMinFrames:      ptrInt(e.GetDetectionMinFrames()),
		DetectionTimeout:        ptrString(e.GetDetectionTimeout().String()),
		DetectionMinConfidence:  ptrFloat64(e.GetDetectionMinConfidence()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from cmd/formcoach/ or nested packages
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	unit := map[string]*float64{
		"min_keypoint_score":        c.MinKeypointScore,
		"prediction_min_confidence": c.PredictionMinConfidence,
		"detection_min_confidence":  c.DetectionMinConfidence,
	}
	for name, v := range unit {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	alphas := map[string]*float64{
		"angle_smoothing_alpha":    c.AngleSmoothingAlpha,
		"velocity_smoothing_alpha": c.VelocitySmoothingAlpha,
	}
	for name, v := range alphas {
		if v != nil && (*v <= 0 || *v > 1) {
			return fmt.Errorf("%s must be in (0, 1], got %f", name, *v)
		}
	}

	angles := map[string]*float64{
		"squat_standing_angle":   c.SquatStandingAngle,
		"squat_bottom_angle":     c.SquatBottomAngle,
		"squat_torso_lean_max":   c.SquatTorsoLeanMax,
		"lunge_standing_angle":   c.LungeStandingAngle,
		"lunge_bottom_angle":     c.LungeBottomAngle,
		"pushup_up_angle":        c.PushupUpAngle,
		"pushup_down_angle":      c.PushupDownAngle,
		"deadlift_setup_angle":   c.DeadliftSetupAngle,
		"deadlift_lockout_angle": c.DeadliftLockoutAngle,
		"plank_body_line_min":    c.PlankBodyLineMin,
		"plank_horizontal_max":   c.PlankHorizontalMax,
	}
	for name, v := range angles {
		if v != nil && (*v < 0 || *v > 180) {
			return fmt.Errorf("%s must be between 0 and 180 degrees, got %f", name, *v)
		}
	}

	if c.GetSquatBottomAngle() >= c.GetSquatStandingAngle() {
		return fmt.Errorf("squat_bottom_angle (%.1f) must be below squat_standing_angle (%.1f)",
			c.GetSquatBottomAngle(), c.GetSquatStandingAngle())
	}
	if c.GetLungeBottomAngle() >= c.GetLungeStandingAngle() {
		return fmt.Errorf("lunge_bottom_angle (%.1f) must be below lunge_standing_angle (%.1f)",
			c.GetLungeBottomAngle(), c.GetLungeStandingAngle())
	}
	if c.GetPushupDownAngle() >= c.GetPushupUpAngle() {
		return fmt.Errorf("pushup_down_angle (%.1f) must be below pushup_up_angle (%.1f)",
			c.GetPushupDownAngle(), c.GetPushupUpAngle())
	}
	if c.GetDeadliftSetupAngle() >= c.GetDeadliftLockoutAngle() {
		return fmt.Errorf("deadlift_setup_angle (%.1f) must be below deadlift_lockout_angle (%.1f)",
			c.GetDeadliftSetupAngle(), c.GetDeadliftLockoutAngle())
	}

	if c.HysteresisMarginDeg != nil && *c.HysteresisMarginDeg < 0 {
		return fmt.Errorf("hysteresis_margin_deg must be non-negative, got %f", *c.HysteresisMarginDeg)
	}

	positiveInts := map[string]*int{
		"min_phase_frames":         c.MinPhaseFrames,
		"velocity_debounce_frames": c.VelocityDebounceFrames,
		"rom_max_samples":          c.ROMMaxSamples,
		"prediction_history_size":  c.PredictionHistorySize,
		"prediction_min_samples":   c.PredictionMinSamples,
		"segment_batch_size":       c.SegmentBatchSize,
		"detection_window_frames":  c.DetectionWindowFrames,
		"detection_min_frames":     c.DetectionMinFrames,
	}
	for name, v := range positiveInts {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, *v)
		}
	}

	if c.SavGolWindow != nil && (*c.SavGolWindow < 5 || *c.SavGolWindow%2 == 0) {
		return fmt.Errorf("savgol_window must be an odd number >= 5, got %d", *c.SavGolWindow)
	}
	if c.GetPredictionMinSamples() > c.GetPredictionHistorySize() {
		return fmt.Errorf("prediction_min_samples (%d) exceeds prediction_history_size (%d)",
			c.GetPredictionMinSamples(), c.GetPredictionHistorySize())
	}
	if c.GetDetectionMinFrames() > c.GetDetectionWindowFrames() {
		return fmt.Errorf("detection_min_frames (%d) exceeds detection_window_frames (%d)",
			c.GetDetectionMinFrames(), c.GetDetectionWindowFrames())
	}
	if c.GetTempoMinRatio() > c.GetTempoMaxRatio() {
		return fmt.Errorf("tempo_min_ratio (%f) exceeds tempo_max_ratio (%f)",
			c.GetTempoMinRatio(), c.GetTempoMaxRatio())
	}

	durations := map[string]*string{
		"velocity_max_gap":       c.VelocityMaxGap,
		"tempo_min_eccentric":    c.TempoMinEccentric,
		"prediction_lookahead":   c.PredictionLookahead,
		"prediction_hysteresis":  c.PredictionHysteresis,
		"prediction_warning_ttl": c.PredictionWarningTTL,
		"rep_min_duration":       c.RepMinDuration,
		"rep_max_duration":       c.RepMaxDuration,
		"detection_timeout":      c.DetectionTimeout,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}
	if c.GetRepMinDuration() >= c.GetRepMaxDuration() {
		return fmt.Errorf("rep_min_duration (%s) must be below rep_max_duration (%s)",
			c.GetRepMinDuration(), c.GetRepMaxDuration())
	}

	return nil
}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func getInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// getDuration parses a duration string, falling back to def when unset or
// unparseable.
func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetMinKeypointScore returns the keypoint usability threshold or the default.
func (c *TuningConfig) GetMinKeypointScore() float64 { return getFloat(c.MinKeypointScore, 0.5) }

// GetAngleSmoothingAlpha returns the EMA weight of the newest angle sample.
func (c *TuningConfig) GetAngleSmoothingAlpha() float64 {
	return getFloat(c.AngleSmoothingAlpha, 0.7)
}

// GetHysteresisMarginDeg returns the margin past a phase threshold that commits
// a transition in a single frame.
func (c *TuningConfig) GetHysteresisMarginDeg() float64 {
	return getFloat(c.HysteresisMarginDeg, 5.0)
}

// GetMinPhaseFrames returns the number of consecutive frames past a threshold
// that commits a transition.
func (c *TuningConfig) GetMinPhaseFrames() int { return getInt(c.MinPhaseFrames, 2) }

// GetWarningPenalty returns the score penalty for a warning checkpoint.
func (c *TuningConfig) GetWarningPenalty() float64 { return getFloat(c.WarningPenalty, 35) }

// GetErrorPenalty returns the score penalty for an error checkpoint.
func (c *TuningConfig) GetErrorPenalty() float64 { return getFloat(c.ErrorPenalty, 80) }

func (c *TuningConfig) GetSquatStandingAngle() float64 { return getFloat(c.SquatStandingAngle, 160) }
func (c *TuningConfig) GetSquatBottomAngle() float64   { return getFloat(c.SquatBottomAngle, 100) }
func (c *TuningConfig) GetSquatTorsoLeanMax() float64  { return getFloat(c.SquatTorsoLeanMax, 45) }
func (c *TuningConfig) GetLungeStandingAngle() float64 { return getFloat(c.LungeStandingAngle, 160) }
func (c *TuningConfig) GetLungeBottomAngle() float64   { return getFloat(c.LungeBottomAngle, 105) }
func (c *TuningConfig) GetPushupUpAngle() float64      { return getFloat(c.PushupUpAngle, 155) }
func (c *TuningConfig) GetPushupDownAngle() float64    { return getFloat(c.PushupDownAngle, 95) }
func (c *TuningConfig) GetDeadliftSetupAngle() float64 { return getFloat(c.DeadliftSetupAngle, 110) }
func (c *TuningConfig) GetDeadliftLockoutAngle() float64 {
	return getFloat(c.DeadliftLockoutAngle, 165)
}
func (c *TuningConfig) GetPlankBodyLineMin() float64   { return getFloat(c.PlankBodyLineMin, 165) }
func (c *TuningConfig) GetPlankHorizontalMax() float64 { return getFloat(c.PlankHorizontalMax, 35) }

// GetVelocitySmoothingAlpha returns the EMA weight of the newest velocity sample.
func (c *TuningConfig) GetVelocitySmoothingAlpha() float64 {
	return getFloat(c.VelocitySmoothingAlpha, 0.4)
}

// GetVelocityPhaseThreshold returns the vertical speed (normalised image
// heights per second) below which movement counts as isometric.
func (c *TuningConfig) GetVelocityPhaseThreshold() float64 {
	return getFloat(c.VelocityPhaseThreshold, 0.04)
}

func (c *TuningConfig) GetVelocityDebounceFrames() int { return getInt(c.VelocityDebounceFrames, 3) }

// GetVelocityMaxGap returns the longest sample gap that is still differentiated.
func (c *TuningConfig) GetVelocityMaxGap() time.Duration {
	return getDuration(c.VelocityMaxGap, 500*time.Millisecond)
}

func (c *TuningConfig) GetTempoMinEccentric() time.Duration {
	return getDuration(c.TempoMinEccentric, 800*time.Millisecond)
}
func (c *TuningConfig) GetTempoMinRatio() float64 { return getFloat(c.TempoMinRatio, 1.0) }
func (c *TuningConfig) GetTempoMaxRatio() float64 { return getFloat(c.TempoMaxRatio, 4.0) }

func (c *TuningConfig) GetROMMaxSamples() int { return getInt(c.ROMMaxSamples, 2000) }

func (c *TuningConfig) GetPredictionLookahead() time.Duration {
	return getDuration(c.PredictionLookahead, 300*time.Millisecond)
}
func (c *TuningConfig) GetPredictionHistorySize() int { return getInt(c.PredictionHistorySize, 30) }
func (c *TuningConfig) GetPredictionMinSamples() int  { return getInt(c.PredictionMinSamples, 5) }
func (c *TuningConfig) GetPredictionMinConfidence() float64 {
	return getFloat(c.PredictionMinConfidence, 0.6)
}
func (c *TuningConfig) GetPredictionHysteresis() time.Duration {
	return getDuration(c.PredictionHysteresis, time.Second)
}
func (c *TuningConfig) GetPredictionWarningTTL() time.Duration {
	return getDuration(c.PredictionWarningTTL, 1500*time.Millisecond)
}

func (c *TuningConfig) GetRepMinDuration() time.Duration {
	return getDuration(c.RepMinDuration, 500*time.Millisecond)
}
func (c *TuningConfig) GetRepMaxDuration() time.Duration {
	return getDuration(c.RepMaxDuration, 10*time.Second)
}
func (c *TuningConfig) GetSegmentBatchSize() int { return getInt(c.SegmentBatchSize, 64) }
func (c *TuningConfig) GetSavGolWindow() int     { return getInt(c.SavGolWindow, 7) }

func (c *TuningConfig) GetDetectionWindowFrames() int { return getInt(c.DetectionWindowFrames, 30) }
func (c *TuningConfig) GetDetectionMinFrames() int    { return getInt(c.DetectionMinFrames, 15) }
func (c *TuningConfig) GetDetectionTimeout() time.Duration {
	return getDuration(c.DetectionTimeout, 5*time.Second)
}
func (c *TuningConfig) GetDetectionMinConfidence() float64 {
	return getFloat(c.DetectionMinConfidence, 0.6)
}
