package shield

import (
	"math"
	"sort"

	"ultrascan/pkg/detect"
)

// ConsensusUncertain is the sentinel consensus value set when the heads
// disagree beyond the dissent threshold. Large inter-head disagreement is
// itself evidence of adversarial interference, not resolvable by
// averaging; callers must check AdversarialDetected before reading
// ConsensusScore.
const ConsensusUncertain = -1.0

// HydraConfig tunes the three-head ensemble.
type HydraConfig struct {
	// HeadTolerance is the max spread within which two heads "agree".
	HeadTolerance float64
	// DissentThreshold is the head spread beyond which the input is
	// flagged adversarial.
	DissentThreshold float64
}

// DefaultHydraConfig returns the production thresholds.
func DefaultHydraConfig() HydraConfig {
	return HydraConfig{HeadTolerance: 0.10, DissentThreshold: 0.30}
}

// HydraResult is the adversarial-ensemble output. Head and consensus
// scores are fake-ward, matching detector scores.
type HydraResult struct {
	HeadScores          [3]float64 `json:"head_scores"`
	ConsensusScore      float64    `json:"consensus_score"`
	DissentMagnitude    float64    `json:"dissent_magnitude"`
	AdversarialDetected bool       `json:"adversarial_detected"`
	RobustnessScore     float64    `json:"robustness_score"`
}

// specialist head weights: intentionally distinct from the fusion
// engine's table so the heads are genuinely independent derivations.
var specialistWeights = map[detect.Capability]float64{
	detect.CapabilityVisual: 0.60,
	detect.CapabilityAudio:  0.25,
	detect.CapabilityText:   0.15,
}

// RunHydra computes three independent decision heads over the same frozen
// FusionInput and their consensus:
//
//	head 0 (conservative): max fake score across non-failed detectors
//	head 1 (statistical):  confidence-weighted median
//	head 2 (specialist):   modality-weighted average with its own weights
//
// If all heads agree within tolerance, consensus is their mean; if two of
// three agree, the agreeing pair's mean (majority rule); otherwise the
// dissent magnitude is checked against the threshold and, when exceeded,
// consensus collapses to ConsensusUncertain with the adversarial flag set.
func RunHydra(in detect.FusionInput, cfg HydraConfig) *HydraResult {
	heads := [3]float64{
		conservativeHead(in),
		statisticalHead(in),
		specialistHead(in),
	}

	lo, hi := heads[0], heads[0]
	for _, h := range heads[1:] {
		lo = math.Min(lo, h)
		hi = math.Max(hi, h)
	}
	dissent := hi - lo

	res := &HydraResult{
		HeadScores:       heads,
		DissentMagnitude: dissent,
		RobustnessScore:  clamp01(1 - dissent),
	}

	switch {
	case dissent <= cfg.HeadTolerance:
		res.ConsensusScore = (heads[0] + heads[1] + heads[2]) / 3

	case dissent > cfg.DissentThreshold:
		res.AdversarialDetected = true
		res.ConsensusScore = ConsensusUncertain

	default:
		// Majority rule: first agreeing pair in fixed head order keeps
		// the outcome deterministic.
		pairs := [][2]int{{0, 1}, {0, 2}, {1, 2}}
		res.ConsensusScore = ConsensusUncertain
		for _, p := range pairs {
			if math.Abs(heads[p[0]]-heads[p[1]]) <= cfg.HeadTolerance {
				res.ConsensusScore = (heads[p[0]] + heads[p[1]]) / 2
				break
			}
		}
		if res.ConsensusScore == ConsensusUncertain {
			// No pair agrees but spread is under the dissent threshold:
			// fall back to the plain mean rather than flagging.
			res.ConsensusScore = (heads[0] + heads[1] + heads[2]) / 3
		}
	}

	return res
}

// conservativeHead assumes the worst case: the highest fake score any
// working detector produced.
func conservativeHead(in detect.FusionInput) float64 {
	max, seen := 0.0, false
	for _, e := range in {
		if e.Result.Failed() {
			continue
		}
		seen = true
		if e.Result.Score > max {
			max = e.Result.Score
		}
	}
	if !seen {
		return 0.5
	}
	return max
}

// statisticalHead computes the confidence-weighted median, robust to a
// single compromised detector.
func statisticalHead(in detect.FusionInput) float64 {
	type sc struct{ score, weight float64 }
	var items []sc
	var total float64
	for _, e := range in {
		if e.Result.Failed() {
			continue
		}
		w := e.Result.Confidence
		if w == 0 {
			w = 0.01 // zero-confidence entries still anchor the median
		}
		items = append(items, sc{e.Result.Score, w})
		total += w
	}
	if len(items) == 0 {
		return 0.5
	}

	sort.Slice(items, func(i, j int) bool { return items[i].score < items[j].score })

	half := total / 2
	var acc float64
	for _, it := range items {
		acc += it.weight
		if acc >= half {
			return it.score
		}
	}
	return items[len(items)-1].score
}

// specialistHead averages per-modality means under the specialist weight
// table, renormalized over present modalities.
func specialistHead(in detect.FusionInput) float64 {
	sums := make(map[detect.Capability]float64)
	counts := make(map[detect.Capability]int)
	for _, e := range in {
		if e.Result.Failed() {
			continue
		}
		sums[e.Modality] += e.Result.Score
		counts[e.Modality]++
	}
	if len(counts) == 0 {
		return 0.5
	}

	var wsum, blend float64
	for mod, n := range counts {
		w := specialistWeights[mod]
		if w == 0 {
			w = 0.1
		}
		wsum += w
		blend += w * (sums[mod] / float64(n))
	}
	return blend / wsum
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
