package shield

import (
	"math"

	"ultrascan/pkg/detect"
	"ultrascan/pkg/media"
)

// AlertLevel is the monotonic bucketing of the anomaly score.
type AlertLevel string

const (
	AlertNone     AlertLevel = "none"
	AlertLow      AlertLevel = "low"
	AlertMedium   AlertLevel = "medium"
	AlertHigh     AlertLevel = "high"
	AlertCritical AlertLevel = "critical"
)

// SentinelResult is the novelty/anomaly output.
type SentinelResult struct {
	OODScore         float64    `json:"ood_score"`
	IsNovelType      bool       `json:"is_novel_type"`
	PhysicsScore     float64    `json:"physics_score"`
	PhysicsAnomalies []string   `json:"physics_anomalies"`
	BioConsistency   float64    `json:"bio_consistency"`
	AnomalyScore     float64    `json:"anomaly_score"`
	AlertLevel       AlertLevel `json:"alert_level"`
}

// SentinelConfig tunes the anomaly detector.
type SentinelConfig struct {
	// NovelTypeThreshold is the OOD score above which the input counts as
	// a novel generation technique.
	NovelTypeThreshold float64
}

// DefaultSentinelConfig returns the production thresholds.
func DefaultSentinelConfig() SentinelConfig {
	return SentinelConfig{NovelTypeThreshold: 0.7}
}

// anomaly score blend weights: OOD dominates, physics next, bio last.
const (
	oodWeight     = 0.5
	physicsWeight = 0.3
	bioWeight     = 0.2
)

// RunSentinel scores how far the input sits from the known distribution,
// layers in physics-consistency checks on the frames, and derives a
// cross-signal biological consistency score from biosignal-capable
// detector evidence.
func RunSentinel(in detect.FusionInput, input *media.DetectorInput, cfg SentinelConfig) *SentinelResult {
	ood := oodScore(in)
	physics, anomalies := physicsChecks(input)
	bio := bioConsistency(in)

	anomaly := oodWeight*ood + physicsWeight*(1-physics) + bioWeight*(1-bio)
	anomaly = clamp01(anomaly)

	return &SentinelResult{
		OODScore:         ood,
		IsNovelType:      ood > cfg.NovelTypeThreshold,
		PhysicsScore:     physics,
		PhysicsAnomalies: anomalies,
		BioConsistency:   bio,
		AnomalyScore:     anomaly,
		AlertLevel:       alertFor(anomaly),
	}
}

// alertFor buckets the anomaly score at fixed thresholds.
func alertFor(anomaly float64) AlertLevel {
	switch {
	case anomaly >= 0.8:
		return AlertCritical
	case anomaly >= 0.6:
		return AlertHigh
	case anomaly >= 0.4:
		return AlertMedium
	case anomaly >= 0.2:
		return AlertLow
	default:
		return AlertNone
	}
}

// oodScore prefers the explicit distance-to-reference metric reported by
// OOD-capable detectors; when none ran, it falls back to the spread of
// working detector scores, since detectors disagreeing wildly about an
// input is itself a weak novelty signal.
func oodScore(in detect.FusionInput) float64 {
	best, found := 0.0, false
	lo, hi, seen := 1.0, 0.0, false

	for _, e := range in {
		if e.Result.Failed() {
			continue
		}
		if v, ok := detailFloat(e.Result, "ood_score"); ok {
			found = true
			if v > best {
				best = v
			}
		}
		seen = true
		lo = math.Min(lo, e.Result.Score)
		hi = math.Max(hi, e.Result.Score)
	}

	if found {
		return clamp01(best)
	}
	if !seen {
		return 0
	}
	return clamp01((hi - lo) * 0.5)
}

// bioConsistency averages the biological consistency evidence reported by
// biosignal-capable detectors (PPG periodicity, blink cadence). Absent
// evidence means no inconsistency: 1.0.
func bioConsistency(in detect.FusionInput) float64 {
	var sum float64
	var n int
	for _, e := range in {
		if e.Result.Failed() {
			continue
		}
		if v, ok := detailFloat(e.Result, "bio_consistency"); ok {
			sum += clamp01(v)
			n++
		}
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}

// physicsCheck evaluates one consistency metric over the frames and
// returns a score in [0,1] plus an anomaly tag when outside tolerance.
type physicsCheck struct {
	tag       string
	tolerance float64 // scores below this raise the anomaly tag
	eval      func([]media.Frame) float64
}

var physicsChecks5 = []physicsCheck{
	{"lighting_asymmetry", 0.55, lightingSymmetry},
	{"shadow_direction_conflict", 0.50, shadowAgreement},
	{"reflection_asymmetry", 0.45, reflectionSymmetry},
	{"color_temperature_shift", 0.50, colorTemperatureConsistency},
	{"composite_edge_sharpness", 0.45, edgeSharpnessConsistency},
}

// physicsChecks runs the five consistency checks. Inputs without frames
// score a neutral 1.0 with no anomalies, matching the original engine's
// default when frames are unavailable.
func physicsChecks(input *media.DetectorInput) (float64, []string) {
	anomalies := []string{}
	if input == nil || !input.HasFrames() {
		return 1.0, anomalies
	}

	var sum float64
	for _, chk := range physicsChecks5 {
		s := clamp01(chk.eval(input.Frames))
		sum += s
		if s < chk.tolerance {
			anomalies = append(anomalies, chk.tag)
		}
	}
	return sum / float64(len(physicsChecks5)), anomalies
}

// lightingSymmetry compares mean luminance of the left and right frame
// halves. Natural scenes rarely exceed a 2:1 ratio.
func lightingSymmetry(frames []media.Frame) float64 {
	var total float64
	for i := range frames {
		f := &frames[i]
		var left, right float64
		half := f.Width / 2
		for y := 0; y < f.Height; y++ {
			for x := 0; x < half; x++ {
				left += float64(f.Luma(x, y))
				right += float64(f.Luma(f.Width-1-x, y))
			}
		}
		total += ratioScore(left, right)
	}
	return total / float64(len(frames))
}

// shadowAgreement checks that the dominant vertical gradient direction is
// consistent between frame quadrants; composited subjects lit from a
// different direction break it.
func shadowAgreement(frames []media.Frame) float64 {
	var total float64
	for i := range frames {
		f := &frames[i]
		lt := gradientSign(f, 0, f.Width/2)
		rt := gradientSign(f, f.Width/2, f.Width)
		if lt == 0 || rt == 0 || lt == rt {
			total += 1.0
		} else {
			total += 0.2
		}
	}
	return total / float64(len(frames))
}

// reflectionSymmetry compares top/bottom luminance balance; hard mirrored
// reflections that do not attenuate are a render artifact.
func reflectionSymmetry(frames []media.Frame) float64 {
	var total float64
	for i := range frames {
		f := &frames[i]
		var top, bottom float64
		half := f.Height / 2
		for y := 0; y < half; y++ {
			for x := 0; x < f.Width; x++ {
				top += float64(f.Luma(x, y))
				bottom += float64(f.Luma(x, f.Height-1-y))
			}
		}
		total += ratioScore(top, bottom)
	}
	return total / float64(len(frames))
}

// colorTemperatureConsistency approximates temperature drift as the
// variance of per-region mean luminance across a 3x3 grid.
func colorTemperatureConsistency(frames []media.Frame) float64 {
	var total float64
	for i := range frames {
		f := &frames[i]
		means := regionMeans(f, 3)
		total += 1 - clamp01(stddev(means)/64.0)
	}
	return total / float64(len(frames))
}

// edgeSharpnessConsistency compares edge energy between the frame center
// and border; spliced composites show a sharpness cliff at the boundary.
func edgeSharpnessConsistency(frames []media.Frame) float64 {
	var total float64
	for i := range frames {
		f := &frames[i]
		center := edgeEnergy(f, f.Width/4, f.Height/4, 3*f.Width/4, 3*f.Height/4)
		full := edgeEnergy(f, 0, 0, f.Width, f.Height)
		total += ratioScore(center, full)
	}
	return total / float64(len(frames))
}

// --- frame statistics helpers ---

func ratioScore(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	hi, lo := math.Max(a, b), math.Min(a, b)
	if hi == 0 {
		return 1.0
	}
	return clamp01(lo / hi * 2) // 1:1 → 1.0, 2:1 → 1.0, 4:1 → 0.5
}

func gradientSign(f *media.Frame, x0, x1 int) int {
	var sum float64
	for y := 1; y < f.Height; y++ {
		for x := x0; x < x1; x++ {
			sum += float64(f.Luma(x, y)) - float64(f.Luma(x, y-1))
		}
	}
	switch {
	case sum > 1e-3:
		return 1
	case sum < -1e-3:
		return -1
	default:
		return 0
	}
}

func regionMeans(f *media.Frame, grid int) []float64 {
	means := make([]float64, 0, grid*grid)
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			x0, x1 := gx*f.Width/grid, (gx+1)*f.Width/grid
			y0, y1 := gy*f.Height/grid, (gy+1)*f.Height/grid
			var sum float64
			var n int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += float64(f.Luma(x, y))
					n++
				}
			}
			if n > 0 {
				means = append(means, sum/float64(n))
			}
		}
	}
	return means
}

func edgeEnergy(f *media.Frame, x0, y0, x1, y1 int) float64 {
	var sum float64
	var n int
	for y := y0 + 1; y < y1; y++ {
		for x := x0 + 1; x < x1; x++ {
			dx := float64(f.Luma(x, y)) - float64(f.Luma(x-1, y))
			dy := float64(f.Luma(x, y)) - float64(f.Luma(x, y-1))
			sum += math.Abs(dx) + math.Abs(dy)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(vals)))
}

// detailFloat extracts a numeric evidence value from a detector's opaque
// details map, tolerating both float64 and int encodings.
func detailFloat(r *detect.Result, key string) (float64, bool) {
	if r.Details == nil {
		return 0, false
	}
	switch v := r.Details[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
