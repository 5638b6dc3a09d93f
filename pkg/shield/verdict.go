// Package shield layers adversarial-robustness (HYDRA), novelty
// (SENTINEL) and attribution (FORENSIC DNA) analysis on top of the fused
// score, and resolves overrides into the final verdict. Every function in
// this package is deterministic: identical inputs yield identical outputs.
package shield

// Verdict is the ordinal authenticity label.
type Verdict string

const (
	VerdictAuthentic       Verdict = "authentic"
	VerdictLikelyAuthentic Verdict = "likely_authentic"
	VerdictUncertain       Verdict = "uncertain"
	VerdictLikelyFake      Verdict = "likely_fake"
	VerdictFake            Verdict = "fake"
)

// ThreatLevel is the ordinal severity derived from the verdict.
type ThreatLevel string

const (
	ThreatNone     ThreatLevel = "none"
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// threatMap mirrors the verdict→threat severity ladder.
var threatMap = map[Verdict]ThreatLevel{
	VerdictFake:            ThreatCritical,
	VerdictLikelyFake:      ThreatHigh,
	VerdictUncertain:       ThreatMedium,
	VerdictLikelyAuthentic: ThreatLow,
	VerdictAuthentic:       ThreatNone,
}

// ThreatFor returns the threat level for a verdict.
func ThreatFor(v Verdict) ThreatLevel {
	if t, ok := threatMap[v]; ok {
		return t
	}
	return ThreatMedium
}

// VerdictFor derives the base verdict from an authentic-ward trust score
// via the fixed thresholds: >0.7 authentic, 0.5–0.7 likely_authentic,
// 0.3–0.5 uncertain, 0.1–0.3 likely_fake, <0.1 fake.
func VerdictFor(trustScore float64) Verdict {
	switch {
	case trustScore > 0.7:
		return VerdictAuthentic
	case trustScore >= 0.5:
		return VerdictLikelyAuthentic
	case trustScore >= 0.3:
		return VerdictUncertain
	case trustScore >= 0.1:
		return VerdictLikelyFake
	default:
		return VerdictFake
	}
}

// fakeRank orders verdicts fake-ward for "likely_fake or stronger" logic.
var fakeRank = map[Verdict]int{
	VerdictAuthentic:       0,
	VerdictLikelyAuthentic: 1,
	VerdictUncertain:       2,
	VerdictLikelyFake:      3,
	VerdictFake:            4,
}

// atLeastAsFake returns v if it is already likely_fake or stronger,
// otherwise the floor.
func atLeastAsFake(v, floor Verdict) Verdict {
	if fakeRank[v] >= fakeRank[floor] {
		return v
	}
	return floor
}
