package detectors

import (
	"context"

	"ultrascan/pkg/detect"
	"ultrascan/pkg/media"
)

// HistogramDetector inspects the luminance histogram for quantization
// combing and clipped extremes. Re-rendered media (generator output saved
// through an editing pipeline, or a face composited into a host photo)
// tends to show periodic empty bins and unnatural endpoint mass.
type HistogramDetector struct {
	ready detect.ReadyGuard
}

// NewHistogramDetector returns the tonal forensics detector.
func NewHistogramDetector() *HistogramDetector { return &HistogramDetector{} }

func (d *HistogramDetector) Name() string { return "tonal_forensics" }

func (d *HistogramDetector) Capabilities() detect.CapabilitySet {
	return detect.NewCapabilitySet(detect.CapabilityVisual)
}

func (d *HistogramDetector) EnsureReady(ctx context.Context) error {
	return d.ready.Do(func() error { return nil })
}

func (d *HistogramDetector) Detect(ctx context.Context, in *media.DetectorInput) (*detect.Result, error) {
	if !in.HasFrames() {
		return detect.Neutral(d.Name()), nil
	}

	var combing, clipping float64
	for i := range in.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, cl := histogramStats(&in.Frames[i])
		combing += c
		clipping += cl
	}
	n := float64(len(in.Frames))
	combing /= n
	clipping /= n

	score := clamp01(0.7*combing + 0.3*clamp01(clipping/0.2))

	var artifacts []string
	if combing > 0.3 {
		artifacts = append(artifacts, "histogram_combing")
	}

	return &detect.Result{
		Score:      score,
		Confidence: 0.45,
		Method:     "tonal_histogram_analysis",
		Details: map[string]any{
			"combing_ratio":  combing,
			"clipping_ratio": clipping,
			"artifacts":      artifacts,
		},
	}, nil
}

// histogramStats returns (combing ratio: empty bins surrounded by occupied
// neighbors, over interior bins; clipping ratio: mass in the endpoint bins).
func histogramStats(f *media.Frame) (combing, clipping float64) {
	var hist [256]int
	for _, p := range f.Pix {
		hist[p]++
	}
	total := len(f.Pix)
	if total == 0 {
		return 0, 0
	}

	var combed, interior int
	for i := 1; i < 255; i++ {
		if hist[i-1] > 0 && hist[i+1] > 0 {
			interior++
			if hist[i] == 0 {
				combed++
			}
		}
	}
	if interior > 0 {
		combing = float64(combed) / float64(interior)
	}
	clipping = float64(hist[0]+hist[255]) / float64(total)
	return combing, clipping
}
