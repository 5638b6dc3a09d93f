package shield

import (
	"math"
	"testing"

	"ultrascan/pkg/detect"
	"ultrascan/pkg/media"
)

func detailedEntry(mod detect.Capability, score, conf float64, details map[string]any) detect.Entry {
	return detect.Entry{
		Modality: mod,
		Result:   &detect.Result{Score: score, Confidence: conf, Method: "test", Details: details},
	}
}

func TestSentinelUsesExplicitOODScore(t *testing.T) {
	in := detect.FusionInput{
		"ood":   detailedEntry(detect.CapabilityVisual, 0.5, 0.3, map[string]any{"ood_score": 0.85}),
		"other": entry(detect.CapabilityVisual, 0.5, 0.8),
	}
	res := RunSentinel(in, nil, DefaultSentinelConfig())

	if math.Abs(res.OODScore-0.85) > 1e-9 {
		t.Fatalf("explicit ood_score must win, got %f", res.OODScore)
	}
	if !res.IsNovelType {
		t.Fatalf("ood %f above threshold must mark novel type", res.OODScore)
	}
}

func TestSentinelFallsBackToScoreSpread(t *testing.T) {
	in := detect.FusionInput{
		"a": entry(detect.CapabilityVisual, 0.1, 0.8),
		"b": entry(detect.CapabilityVisual, 0.9, 0.8),
	}
	res := RunSentinel(in, nil, DefaultSentinelConfig())
	if math.Abs(res.OODScore-0.4) > 1e-9 {
		t.Fatalf("spread fallback should be (hi-lo)*0.5 = 0.4, got %f", res.OODScore)
	}
	if res.IsNovelType {
		t.Fatal("0.4 is below the novel-type threshold")
	}
}

func TestSentinelBioDefaultsToConsistent(t *testing.T) {
	in := detect.FusionInput{
		"a": entry(detect.CapabilityVisual, 0.5, 0.5),
	}
	res := RunSentinel(in, nil, DefaultSentinelConfig())
	if res.BioConsistency != 1.0 {
		t.Fatalf("absent bio evidence must mean consistent (1.0), got %f", res.BioConsistency)
	}
}

func TestSentinelReadsBioEvidence(t *testing.T) {
	in := detect.FusionInput{
		"pulse": detailedEntry(detect.CapabilityVisual, 0.7, 0.5, map[string]any{"bio_consistency": 0.2}),
	}
	res := RunSentinel(in, nil, DefaultSentinelConfig())
	if math.Abs(res.BioConsistency-0.2) > 1e-9 {
		t.Fatalf("expected bio 0.2 from detector evidence, got %f", res.BioConsistency)
	}
}

func TestSentinelNoFramesSkipsPhysics(t *testing.T) {
	in := detect.FusionInput{"a": entry(detect.CapabilityText, 0.5, 0.5)}
	res := RunSentinel(in, &media.DetectorInput{Type: media.MediaTypeText}, DefaultSentinelConfig())
	if res.PhysicsScore != 1.0 {
		t.Fatalf("no frames means physics cannot fail, got %f", res.PhysicsScore)
	}
	if len(res.PhysicsAnomalies) != 0 {
		t.Fatalf("no frames must yield no anomalies, got %v", res.PhysicsAnomalies)
	}
}

func TestSentinelPhysicsFlagsLightingAsymmetry(t *testing.T) {
	// Left half black, right half white: a 1:255 lighting ratio no
	// natural scene produces.
	f := media.Frame{Width: 32, Height: 32, Pix: make([]uint8, 32*32)}
	for y := 0; y < 32; y++ {
		for x := 16; x < 32; x++ {
			f.Pix[y*32+x] = 255
		}
	}
	input := &media.DetectorInput{Type: media.MediaTypeImage, Frames: []media.Frame{f}}

	res := RunSentinel(detect.FusionInput{}, input, DefaultSentinelConfig())
	found := false
	for _, tag := range res.PhysicsAnomalies {
		if tag == "lighting_asymmetry" {
			found = true
		}
	}
	if !found {
		t.Fatalf("hard split frame should raise lighting_asymmetry, got %v", res.PhysicsAnomalies)
	}
	if res.PhysicsScore >= 1.0 {
		t.Fatalf("anomalous frame must lower the physics score, got %f", res.PhysicsScore)
	}
}

func TestSentinelAnomalyBlendAndAlerts(t *testing.T) {
	// ood=1, physics=1 (no frames), bio=1: anomaly = 0.5*1 + 0 + 0 = 0.5.
	in := detect.FusionInput{
		"ood": detailedEntry(detect.CapabilityVisual, 0.5, 0.5, map[string]any{"ood_score": 1.0}),
	}
	res := RunSentinel(in, nil, DefaultSentinelConfig())
	if math.Abs(res.AnomalyScore-0.5) > 1e-9 {
		t.Fatalf("expected anomaly 0.5, got %f", res.AnomalyScore)
	}
	if res.AlertLevel != AlertMedium {
		t.Fatalf("anomaly 0.5 buckets to medium, got %s", res.AlertLevel)
	}
}

func TestAlertBuckets(t *testing.T) {
	cases := []struct {
		anomaly float64
		want    AlertLevel
	}{
		{0.0, AlertNone},
		{0.19, AlertNone},
		{0.2, AlertLow},
		{0.4, AlertMedium},
		{0.6, AlertHigh},
		{0.8, AlertCritical},
		{1.0, AlertCritical},
	}
	for _, tc := range cases {
		if got := alertFor(tc.anomaly); got != tc.want {
			t.Errorf("alertFor(%f) = %s, want %s", tc.anomaly, got, tc.want)
		}
	}
}
