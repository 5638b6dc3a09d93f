// Package fusion combines per-detector (score, confidence) pairs into a
// single calibrated trust score. Detector scores are fake-ward; the fused
// trust score is authentic-ward (1.0 = authentic).
package fusion

import (
	"math"

	"ultrascan/pkg/detect"
)

// ModalityWeights are the fixed combination weights, visual highest,
// reflecting detector maturity. They are renormalized over only the
// modalities actually present so a single-modality scan is not penalized
// for the missing ones.
type ModalityWeights map[detect.Capability]float64

// DefaultWeights returns the production weight table.
func DefaultWeights() ModalityWeights {
	return ModalityWeights{
		detect.CapabilityVisual: 0.5,
		detect.CapabilityAudio:  0.3,
		detect.CapabilityText:   0.2,
	}
}

// ModalityScore is one modality's slice of the fusion breakdown.
type ModalityScore struct {
	Score      float64 `json:"score"` // fake-ward average for the modality
	Confidence float64 `json:"confidence"`
	Detectors  int     `json:"detectors"`
	Failed     int     `json:"failed"`
}

// Result is the fused verdict input: derived, immutable, recomputable
// from the same FusionInput.
type Result struct {
	TrustScore float64 `json:"trust_score"` // authentic-ward
	Confidence float64 `json:"confidence"`

	ModalityBreakdown map[detect.Capability]ModalityScore `json:"modality_breakdown"`
}

// Engine fuses FusionInput under a fixed weight table.
type Engine struct {
	weights ModalityWeights
}

// NewEngine returns a fusion engine; nil weights select the defaults.
func NewEngine(weights ModalityWeights) *Engine {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Engine{weights: weights}
}

// Fuse partitions entries by modality, computes a confidence-weighted
// average within each, combines modalities under renormalized fixed
// weights, and derives an overall confidence penalized by inter-modality
// disagreement. It is invariant to detector iteration order and never
// divides by zero: an all-neutral input yields trust 0.5, confidence 0.
func (e *Engine) Fuse(in detect.FusionInput) *Result {
	breakdown := make(map[detect.Capability]ModalityScore)

	type bucket struct {
		scores []float64
		confs  []float64
		failed int
	}
	buckets := make(map[detect.Capability]*bucket)

	for _, entry := range in {
		b := buckets[entry.Modality]
		if b == nil {
			b = &bucket{}
			buckets[entry.Modality] = b
		}
		if entry.Result.Failed() {
			b.failed++
			continue
		}
		b.scores = append(b.scores, entry.Result.Score)
		b.confs = append(b.confs, entry.Result.Confidence)
	}

	var (
		weightSum  float64
		fakeScore  float64 // weighted fake-ward blend across modalities
		confSum    float64
		modScores  []float64
		modWeights []float64
	)

	for mod, b := range buckets {
		ms := ModalityScore{Detectors: len(b.scores) + b.failed, Failed: b.failed}
		if len(b.scores) == 0 {
			// Modality contributed nothing usable; keep it visible in the
			// breakdown but exclude it from the blend.
			breakdown[mod] = ms
			continue
		}

		ms.Score, ms.Confidence = weightedModalityAverage(b.scores, b.confs)
		breakdown[mod] = ms

		w := e.weights[mod]
		if w == 0 {
			w = 0.1 // unknown modality still counts, minimally
		}
		weightSum += w
		fakeScore += w * ms.Score
		confSum += w * ms.Confidence
		modScores = append(modScores, ms.Score)
		modWeights = append(modWeights, w)
	}

	if weightSum == 0 {
		return &Result{TrustScore: 0.5, Confidence: 0, ModalityBreakdown: breakdown}
	}

	fakeScore /= weightSum
	confidence := confSum / weightSum

	// Disagreement between modalities is evidence of uncertainty, not
	// noise to average away: penalize confidence by the weighted variance
	// of modality scores.
	confidence *= 1 - variancePenalty(modScores, modWeights)

	return &Result{
		TrustScore:        clamp01(1 - fakeScore),
		Confidence:        clamp01(confidence),
		ModalityBreakdown: breakdown,
	}
}

// weightedModalityAverage computes the confidence-weighted score average
// for one modality. Zero-confidence entries are excluded unless every
// entry has zero confidence, in which case an unweighted average is used
// so the modality is neither discarded nor divided by zero.
func weightedModalityAverage(scores, confs []float64) (score, confidence float64) {
	var wsum, ssum, csum float64
	for i, s := range scores {
		if confs[i] > 0 {
			wsum += confs[i]
			ssum += s * confs[i]
		}
		csum += confs[i]
	}
	if wsum == 0 {
		for _, s := range scores {
			ssum += s
		}
		return ssum / float64(len(scores)), 0
	}
	return ssum / wsum, csum / float64(len(confs))
}

// variancePenalty maps weighted score variance into a [0, 0.5] confidence
// haircut. Maximum disagreement (variance 0.25 for scores in [0,1])
// halves the confidence.
func variancePenalty(scores, weights []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	var wsum, mean float64
	for i, s := range scores {
		wsum += weights[i]
		mean += s * weights[i]
	}
	mean /= wsum

	var variance float64
	for i, s := range scores {
		variance += weights[i] * (s - mean) * (s - mean)
	}
	variance /= wsum

	return math.Min(variance*2, 0.5)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
