package detectors

import "ultrascan/pkg/detect"

// NewDefaultRegistry registers the built-in detector suite in its fixed
// order. Registration order is load-bearing: it drives the deterministic
// selection order every scan sees.
func NewDefaultRegistry() *detect.Registry {
	r := detect.NewRegistry()
	r.MustRegister("frequency_artifacts", func() (detect.Detector, error) { return NewFrequencyDetector(), nil })
	r.MustRegister("texture_coherence", func() (detect.Detector, error) { return NewTextureDetector(), nil })
	r.MustRegister("tonal_forensics", func() (detect.Detector, error) { return NewHistogramDetector(), nil })
	r.MustRegister("rppg_pulse", func() (detect.Detector, error) { return NewPulseDetector(), nil })
	r.MustRegister("embedding_ood", func() (detect.Detector, error) { return NewOODDetector(), nil })
	r.MustRegister("audio_spectral", func() (detect.Detector, error) { return NewAudioSpectralDetector(), nil })
	r.MustRegister("ai_text", func() (detect.Detector, error) { return NewAITextDetector(), nil })
	return r
}
