package velocity

import "time"

// Verdict summarises the tempo of one repetition.
type Verdict string

const (
	VerdictControlled     Verdict = "controlled"
	VerdictFastEccentric  Verdict = "fast_eccentric"  // lowering phase shorter than TempoMinEccentric
	VerdictRushed         Verdict = "rushed_eccentric" // lowering faster than lifting
	VerdictSlowConcentric Verdict = "slow_concentric"  // lifting far slower than lowering
	VerdictIncomplete     Verdict = "incomplete"       // one of the phases never committed
)

// TempoAnalysis is the tempo of one completed repetition.
type TempoAnalysis struct {
	Eccentric  time.Duration `json:"eccentric"`
	Concentric time.Duration `json:"concentric"`
	Ratio      float64       `json:"ratio"` // eccentric / concentric, 0 when concentric is 0
	Controlled bool          `json:"controlled"`
	Verdict    Verdict       `json:"verdict"`
}

// CompleteRep closes the current repetition and returns its tempo. The
// accumulators are reset, so a second call without new movement reports
// false.
func (t *Tracker) CompleteRep() (TempoAnalysis, bool) {
	if t.seenPrimary {
		t.bank(t.lastPrimary)
	}
	ecc, con := t.eccentric, t.concentric
	t.eccentric, t.concentric = 0, 0
	if ecc == 0 && con == 0 {
		return TempoAnalysis{}, false
	}
	return t.cfg.Tempo(ecc, con), true
}

// Tempo grades eccentric and concentric durations of one repetition.
func (c Config) Tempo(ecc, con time.Duration) TempoAnalysis {
	ta := TempoAnalysis{Eccentric: ecc, Concentric: con}
	if con > 0 {
		ta.Ratio = ecc.Seconds() / con.Seconds()
	}
	switch {
	case ecc == 0 || con == 0:
		ta.Verdict = VerdictIncomplete
	case ecc < c.TempoMinEccentric:
		ta.Verdict = VerdictFastEccentric
	case ta.Ratio < c.TempoMinRatio:
		ta.Verdict = VerdictRushed
	case ta.Ratio > c.TempoMaxRatio:
		ta.Verdict = VerdictSlowConcentric
	default:
		ta.Verdict = VerdictControlled
		ta.Controlled = true
	}
	return ta
}
