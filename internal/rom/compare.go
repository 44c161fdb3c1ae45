package rom

import "math"

// Trend is the direction of a joint's range between two sessions.
type Trend string

const (
	TrendImproved Trend = "improved"
	TrendDeclined Trend = "declined"
	TrendStable   Trend = "stable"
)

// Delta compares one joint across two sessions.
type Delta struct {
	Key      JointKey `json:"key"`
	Baseline float64  `json:"baseline"` // range achieved in the baseline session
	Current  float64  `json:"current"`
	Change   float64  `json:"change"`
	Trend    Trend    `json:"trend"`
}

// Compare reports the change in range achieved for every joint present in
// both summaries, ordered as in current. Changes smaller than StableDelta
// degrees are stable.
func (c Config) Compare(current, baseline Summary) []Delta {
	var out []Delta
	for _, cur := range current.Joints {
		base, ok := baseline.Joint(cur.Key)
		if !ok {
			continue
		}
		d := Delta{
			Key:      cur.Key,
			Baseline: base.RangeAchieved,
			Current:  cur.RangeAchieved,
			Change:   cur.RangeAchieved - base.RangeAchieved,
			Trend:    TrendStable,
		}
		if math.Abs(d.Change) >= c.StableDelta {
			d.Trend = TrendImproved
			if d.Change < 0 {
				d.Trend = TrendDeclined
			}
		}
		out = append(out, d)
	}
	return out
}
