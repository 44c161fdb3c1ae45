package rom

// Assessment grades a joint's achieved range against its benchmark.
type Assessment string

const (
	AssessNormal      Assessment = "normal"
	AssessLimited     Assessment = "limited"
	AssessHypermobile Assessment = "hypermobile"
)

// Verdict is the session-wide mobility verdict.
type Verdict string

const (
	VerdictNormal       Verdict = "normal"
	VerdictLimited      Verdict = "limited"
	VerdictHypermobile  Verdict = "hypermobile"
	VerdictMixed        Verdict = "mixed" // some joints limited, others hypermobile
	VerdictInsufficient Verdict = "insufficient_data"
)

// Span is an angle interval in degrees.
type Span struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Width returns Max - Min.
func (s Span) Width() float64 { return s.Max - s.Min }

// Benchmark is the reference mobility of one joint type. A range achieved
// below LimitedThreshold is limited and above HypermobileThreshold is
// hypermobile.
type Benchmark struct {
	NormalRange          Span    `json:"normalRange"`
	LimitedThreshold     float64 `json:"limitedThreshold"`
	HypermobileThreshold float64 `json:"hypermobileThreshold"`
}

// Assess grades an achieved range.
func (b Benchmark) Assess(rangeAchieved float64) Assessment {
	switch {
	case rangeAchieved < b.LimitedThreshold:
		return AssessLimited
	case rangeAchieved > b.HypermobileThreshold:
		return AssessHypermobile
	default:
		return AssessNormal
	}
}

// DefaultBenchmarks returns the reference ranges for exercise movements,
// measured as three-point joint angles.
func DefaultBenchmarks() map[JointType]Benchmark {
	return map[JointType]Benchmark{
		Knee:     {NormalRange: Span{40, 180}, LimitedThreshold: 60, HypermobileThreshold: 145},
		Hip:      {NormalRange: Span{50, 180}, LimitedThreshold: 50, HypermobileThreshold: 135},
		Elbow:    {NormalRange: Span{35, 180}, LimitedThreshold: 60, HypermobileThreshold: 150},
		Shoulder: {NormalRange: Span{0, 180}, LimitedThreshold: 90, HypermobileThreshold: 175},
		Ankle:    {NormalRange: Span{60, 130}, LimitedThreshold: 15, HypermobileThreshold: 60},
		Trunk:    {NormalRange: Span{0, 90}, LimitedThreshold: 20, HypermobileThreshold: 95},
	}
}
