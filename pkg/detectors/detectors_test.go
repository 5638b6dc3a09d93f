package detectors

import (
	"context"
	"math"
	"testing"

	"ultrascan/pkg/detect"
	"ultrascan/pkg/media"
)

func uniformFrame(w, h int, value uint8) media.Frame {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = value
	}
	return media.Frame{Width: w, Height: h, Pix: pix}
}

func visualInput(frames ...media.Frame) *media.DetectorInput {
	return &media.DetectorInput{Type: media.MediaTypeImage, Frames: frames}
}

func mustDetect(t *testing.T, d detect.Detector, in *media.DetectorInput) *detect.Result {
	t.Helper()
	if err := d.EnsureReady(context.Background()); err != nil {
		t.Fatalf("%s EnsureReady failed: %v", d.Name(), err)
	}
	res, err := d.Detect(context.Background(), in)
	if err != nil {
		t.Fatalf("%s Detect failed: %v", d.Name(), err)
	}
	if res.Score < 0 || res.Score > 1 || res.Confidence < 0 || res.Confidence > 1 {
		t.Fatalf("%s produced out-of-range result: %+v", d.Name(), res)
	}
	return res
}

func TestFrequencyDetectorNeutralWithoutFrames(t *testing.T) {
	res := mustDetect(t, NewFrequencyDetector(), &media.DetectorInput{Type: media.MediaTypeAudio})
	if res.Score != 0.5 || res.Confidence != 0 {
		t.Fatalf("no frames must be neutral, got %+v", res)
	}
}

func TestFrequencyDetectorFlagsPeriodicPattern(t *testing.T) {
	// A hard periodic stripe pattern concentrates spectral energy in a
	// handful of bins, exactly what the detector hunts for.
	striped := uniformFrame(128, 64, 0)
	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			if (x/4)%2 == 0 {
				striped.Pix[y*128+x] = 255
			}
		}
	}
	smooth := uniformFrame(128, 64, 128)

	rs := mustDetect(t, NewFrequencyDetector(), visualInput(striped))
	rm := mustDetect(t, NewFrequencyDetector(), visualInput(smooth))

	if rs.Score <= rm.Score {
		t.Fatalf("periodic pattern must score above flat frame: %f vs %f", rs.Score, rm.Score)
	}
	if _, ok := rs.Details["spectral_peaks"].([]float64); !ok {
		t.Fatal("frequency detector must report spectral_peaks evidence")
	}
}

func TestTextureDetectorUniformResidual(t *testing.T) {
	// Perfectly uniform frame: zero residual energy, maximal uniformity.
	res := mustDetect(t, NewTextureDetector(), visualInput(uniformFrame(64, 64, 100)))
	if res.Score < 0.5 {
		t.Fatalf("zero-noise frame is the over-smoothing signature, score=%f", res.Score)
	}
	arts, _ := res.Details["artifacts"].([]string)
	found := false
	for _, a := range arts {
		if a == "over_smoothing" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected over_smoothing artifact, got %v", arts)
	}
}

func TestHistogramDetectorCombing(t *testing.T) {
	// Frame using only even luma values: every odd interior bin is empty
	// while its neighbors are occupied.
	combed := media.Frame{Width: 64, Height: 64, Pix: make([]uint8, 64*64)}
	for i := range combed.Pix {
		combed.Pix[i] = uint8((i % 128) * 2)
	}
	res := mustDetect(t, NewHistogramDetector(), visualInput(combed))
	if res.Score < 0.5 {
		t.Fatalf("combed histogram must score fake-ward, got %f", res.Score)
	}
	if v, ok := res.Details["combing_ratio"].(float64); !ok || v < 0.5 {
		t.Fatalf("combing ratio should be high, got %v", res.Details["combing_ratio"])
	}
}

func TestPulseDetectorNeedsFrameRun(t *testing.T) {
	res := mustDetect(t, NewPulseDetector(), visualInput(uniformFrame(32, 32, 128)))
	if res.Score != 0.5 || res.Confidence != 0 {
		t.Fatalf("single frame must be neutral, got %+v", res)
	}
}

func TestPulseDetectorReadsPulseSignal(t *testing.T) {
	// 64 frames with a ~1.25 Hz brightness oscillation at 30 fps: a
	// plausible heartbeat the detector should pick up as bio-consistent.
	frames := make([]media.Frame, 64)
	for i := range frames {
		v := uint8(128 + 20*math.Sin(2*math.Pi*1.25*float64(i)/30.0))
		frames[i] = uniformFrame(16, 16, v)
	}
	in := visualInput(frames...)
	in.Metadata = map[string]string{"fps": "30"}

	flat := make([]media.Frame, 64)
	for i := range flat {
		flat[i] = uniformFrame(16, 16, 128)
	}
	flatIn := visualInput(flat...)
	flatIn.Metadata = map[string]string{"fps": "30"}

	pulsed := mustDetect(t, NewPulseDetector(), in)
	dead := mustDetect(t, NewPulseDetector(), flatIn)

	pb, ok := pulsed.Details["bio_consistency"].(float64)
	if !ok {
		t.Fatal("pulse detector must report bio_consistency evidence")
	}
	db := dead.Details["bio_consistency"].(float64)
	if pb <= db {
		t.Fatalf("oscillating brightness must read more alive than a dead-flat clip: %f vs %f", pb, db)
	}
	if pulsed.Score >= dead.Score {
		t.Fatalf("a pulse is authentic-ward: %f vs %f", pulsed.Score, dead.Score)
	}
}

func TestOODDetectorReportsScore(t *testing.T) {
	d := NewOODDetector()
	res := mustDetect(t, d, visualInput(uniformFrame(64, 64, 128)))
	v, ok := res.Details["ood_score"].(float64)
	if !ok {
		t.Fatal("ood detector must report ood_score evidence")
	}
	if v < 0 || v > 1 {
		t.Fatalf("ood_score out of range: %f", v)
	}
}

func TestOODDetectorNeutralWithoutFrames(t *testing.T) {
	res := mustDetect(t, NewOODDetector(), &media.DetectorInput{Type: media.MediaTypeText, Text: "hello"})
	if res.Score != 0.5 || res.Confidence != 0 {
		t.Fatalf("no frames must be neutral, got %+v", res)
	}
}

func TestAudioDetectorNeutralWithoutAudio(t *testing.T) {
	res := mustDetect(t, NewAudioSpectralDetector(), &media.DetectorInput{Type: media.MediaTypeAudio})
	if res.Score != 0.5 || res.Confidence != 0 {
		t.Fatalf("no waveform must be neutral, got %+v", res)
	}
}

func TestAudioDetectorSeparatesToneFromNoise(t *testing.T) {
	// A tone inside the analyzed upper band concentrates its energy in a
	// single bin, so flatness is near zero; pseudo-noise spreads evenly.
	// 5000 Hz at 16 kHz is exactly 160 cycles per 512-sample window, so
	// there is no leakage to flatten the rest of the band.
	n := 4096
	tone := make([]float64, n)
	noise := make([]float64, n)
	seed := uint32(1)
	for i := 0; i < n; i++ {
		tone[i] = math.Sin(2 * math.Pi * 5000 * float64(i) / 16000)
		seed = seed*1664525 + 1013904223
		noise[i] = float64((seed>>16)%2000)/1000 - 1
	}

	rt := mustDetect(t, NewAudioSpectralDetector(), &media.DetectorInput{Type: media.MediaTypeAudio, Audio: tone, SampleRate: 16000})
	rn := mustDetect(t, NewAudioSpectralDetector(), &media.DetectorInput{Type: media.MediaTypeAudio, Audio: noise, SampleRate: 16000})

	if rn.Score <= rt.Score {
		t.Fatalf("noise-like spectrum must score above a pure tone: %f vs %f", rn.Score, rt.Score)
	}
}

func TestAITextDetectorDegradesWithoutModel(t *testing.T) {
	t.Setenv("ULTRASCAN_TEXT_MODEL_PATH", "")
	res := mustDetect(t, NewAITextDetector(), &media.DetectorInput{Type: media.MediaTypeText, Text: "some extracted text"})
	if res.Score != 0.5 || res.Confidence != 0 {
		t.Fatalf("degraded detector must answer neutral, got %+v", res)
	}
}

func TestDefaultRegistryOrder(t *testing.T) {
	r := NewDefaultRegistry()
	if r.Len() != 7 {
		t.Fatalf("expected 7 built-in detectors, got %d", r.Len())
	}
	selected := r.SelectFor(detect.NewCapabilitySet(detect.CapabilityVisual), nil)
	want := []string{"frequency_artifacts", "texture_coherence", "tonal_forensics", "rppg_pulse", "embedding_ood"}
	if len(selected) != len(want) {
		t.Fatalf("visual selection size %d, want %d", len(selected), len(want))
	}
	for i, d := range selected {
		if d.Name() != want[i] {
			t.Fatalf("selection[%d] = %s, want %s", i, d.Name(), want[i])
		}
	}
}
