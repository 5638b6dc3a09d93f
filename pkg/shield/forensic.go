package shield

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ultrascan/pkg/detect"
)

// GeneratorType identifies a known generator family.
type GeneratorType string

const (
	GeneratorStyleGAN        GeneratorType = "stylegan"
	GeneratorStableDiffusion GeneratorType = "stable_diffusion"
	GeneratorMidjourney      GeneratorType = "midjourney"
	GeneratorDALLE           GeneratorType = "dalle"
	GeneratorSora            GeneratorType = "sora"
	GeneratorFaceSwap        GeneratorType = "faceswap"
)

// AttributionResult is the generator-fingerprint matching output.
type AttributionResult struct {
	GeneratorDetected   bool          `json:"generator_detected"`
	GeneratorType       GeneratorType `json:"generator_type,omitempty"`
	GeneratorConfidence float64       `json:"generator_confidence"`
	// Evidence lists matched signals, strongest first.
	Evidence []string `json:"evidence"`
}

// Evidence weighting is fixed: spectral match dominates, artifact classes
// and metadata hints split the rest.
const (
	evSpectralWeight  = 0.40
	evGANWeight       = 0.20
	evDiffusionWeight = 0.20
	evMetadataWeight  = 0.20
)

// GeneratorProfile describes one known generator family's fingerprint.
type GeneratorProfile struct {
	Type GeneratorType `yaml:"type"`

	// SpectralPeaks are the normalized radial frequencies at which the
	// family leaves periodic upsampling energy.
	SpectralPeaks []float64 `yaml:"spectral_peaks"`
	// PeakTolerance is the max distance for a spectral peak to count as
	// matched.
	PeakTolerance float64 `yaml:"peak_tolerance"`

	// GANArtifacts / DiffusionArtifacts are artifact tags the family is
	// known to produce (checkerboard, over-smoothing, grid noise).
	GANArtifacts       []string `yaml:"gan_artifacts"`
	DiffusionArtifacts []string `yaml:"diffusion_artifacts"`

	// MetadataHints are substrings in container metadata that betray the
	// generator (software tags, canonical resolutions).
	MetadataHints []string `yaml:"metadata_hints"`
}

// DefaultProfiles returns the built-in generator profile table.
func DefaultProfiles() []GeneratorProfile {
	return []GeneratorProfile{
		{
			Type:          GeneratorStyleGAN,
			SpectralPeaks: []float64{0.25, 0.5},
			PeakTolerance: 0.03,
			GANArtifacts:  []string{"checkerboard", "water_droplet", "symmetric_background"},
			MetadataHints: []string{"1024x1024"},
		},
		{
			Type:               GeneratorStableDiffusion,
			SpectralPeaks:      []float64{0.125, 0.375},
			PeakTolerance:      0.03,
			DiffusionArtifacts: []string{"over_smoothing", "latent_grid", "vae_ringing"},
			MetadataHints:      []string{"512x512", "768x768", "stable-diffusion"},
		},
		{
			Type:               GeneratorMidjourney,
			SpectralPeaks:      []float64{0.11, 0.33},
			PeakTolerance:      0.03,
			DiffusionArtifacts: []string{"over_smoothing", "hyper_detail", "painterly_texture"},
			MetadataHints:      []string{"midjourney"},
		},
		{
			Type:               GeneratorDALLE,
			SpectralPeaks:      []float64{0.14, 0.42},
			PeakTolerance:      0.03,
			DiffusionArtifacts: []string{"over_smoothing", "patch_seams"},
			MetadataHints:      []string{"dall-e", "openai", "1024x1024"},
		},
		{
			Type:               GeneratorSora,
			SpectralPeaks:      []float64{0.09, 0.27},
			PeakTolerance:      0.03,
			DiffusionArtifacts: []string{"temporal_flicker", "morphing_geometry"},
			MetadataHints:      []string{"sora"},
		},
		{
			Type:          GeneratorFaceSwap,
			SpectralPeaks: []float64{0.2},
			PeakTolerance: 0.04,
			GANArtifacts:  []string{"blend_boundary", "face_region_blur", "double_eyebrow"},
			MetadataHints: []string{},
		},
	}
}

// LoadProfiles reads a yaml profile table, letting deployments extend the
// built-in families without a rebuild.
func LoadProfiles(path string) ([]GeneratorProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var doc struct {
		Profiles []GeneratorProfile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, fmt.Errorf("profile table %s is empty", path)
	}
	return doc.Profiles, nil
}

// ForensicEvidence is the spectral/artifact evidence harvested from
// fingerprint-capable detectors' detail maps.
type ForensicEvidence struct {
	SpectralPeaks []float64
	Artifacts     []string
	Metadata      map[string]string
}

// HarvestEvidence collects forensic evidence from FusionInput detail maps
// plus container metadata: "spectral_peaks" ([]float64) and "artifacts"
// ([]string) are the conventional detail keys.
func HarvestEvidence(in detect.FusionInput, metadata map[string]string) *ForensicEvidence {
	ev := &ForensicEvidence{Metadata: metadata}
	for _, e := range in {
		if e.Result.Failed() || e.Result.Details == nil {
			continue
		}
		if peaks, ok := e.Result.Details["spectral_peaks"].([]float64); ok {
			ev.SpectralPeaks = append(ev.SpectralPeaks, peaks...)
		}
		switch arts := e.Result.Details["artifacts"].(type) {
		case []string:
			ev.Artifacts = append(ev.Artifacts, arts...)
		case []any:
			for _, a := range arts {
				if s, ok := a.(string); ok {
					ev.Artifacts = append(ev.Artifacts, s)
				}
			}
		}
	}
	sort.Float64s(ev.SpectralPeaks)
	sort.Strings(ev.Artifacts)
	return ev
}

// Attributor matches evidence against the generator profile table.
type Attributor struct {
	profiles []GeneratorProfile
	// DetectionFloor is the minimum similarity for generator_detected.
	DetectionFloor float64
}

// NewAttributor builds an attributor; nil profiles select the defaults.
func NewAttributor(profiles []GeneratorProfile) *Attributor {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Attributor{profiles: profiles, DetectionFloor: 0.5}
}

// Attribute scores every profile against the evidence and returns the
// best match above the confidence floor, else generator_detected=false.
func (a *Attributor) Attribute(ev *ForensicEvidence) *AttributionResult {
	res := &AttributionResult{Evidence: []string{}}
	if ev == nil {
		return res
	}

	var bestScore float64
	var bestEvidence []string
	for _, p := range a.profiles {
		score, matched := a.similarity(&p, ev)
		if score > bestScore {
			bestScore = score
			bestEvidence = matched
			res.GeneratorType = p.Type
		}
	}

	res.GeneratorConfidence = bestScore
	if bestScore >= a.DetectionFloor {
		res.GeneratorDetected = true
		res.Evidence = bestEvidence
	} else {
		res.GeneratorType = ""
	}
	return res
}

// similarity computes the fixed-weight evidence blend for one profile and
// returns matched signal names ordered by contribution.
func (a *Attributor) similarity(p *GeneratorProfile, ev *ForensicEvidence) (float64, []string) {
	type signal struct {
		name   string
		weight float64
	}
	var matched []signal

	spectral := peakMatchRatio(p.SpectralPeaks, ev.SpectralPeaks, p.PeakTolerance)
	if spectral > 0 {
		matched = append(matched, signal{fmt.Sprintf("spectral_match:%.2f", spectral), evSpectralWeight * spectral})
	}

	gan := artifactMatchRatio(p.GANArtifacts, ev.Artifacts)
	for _, art := range intersect(p.GANArtifacts, ev.Artifacts) {
		matched = append(matched, signal{"gan_artifact:" + art, evGANWeight * gan / float64(len(p.GANArtifacts))})
	}

	diff := artifactMatchRatio(p.DiffusionArtifacts, ev.Artifacts)
	for _, art := range intersect(p.DiffusionArtifacts, ev.Artifacts) {
		matched = append(matched, signal{"diffusion_artifact:" + art, evDiffusionWeight * diff / float64(len(p.DiffusionArtifacts))})
	}

	meta := metadataMatchRatio(p.MetadataHints, ev.Metadata)
	for _, hint := range p.MetadataHints {
		if metadataHas(ev.Metadata, hint) {
			matched = append(matched, signal{"metadata_hint:" + hint, evMetadataWeight * meta / float64(len(p.MetadataHints))})
		}
	}

	total := evSpectralWeight*spectral + evGANWeight*gan + evDiffusionWeight*diff + evMetadataWeight*meta

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].weight > matched[j].weight })
	names := make([]string, len(matched))
	for i, s := range matched {
		names[i] = s.name
	}
	return total, names
}

func peakMatchRatio(profile, observed []float64, tolerance float64) float64 {
	if len(profile) == 0 || len(observed) == 0 {
		return 0
	}
	hits := 0
	for _, want := range profile {
		for _, got := range observed {
			if math.Abs(want-got) <= tolerance {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(profile))
}

func artifactMatchRatio(profile, observed []string) float64 {
	if len(profile) == 0 {
		return 0
	}
	return float64(len(intersect(profile, observed))) / float64(len(profile))
}

func metadataMatchRatio(hints []string, metadata map[string]string) float64 {
	if len(hints) == 0 {
		return 0
	}
	hits := 0
	for _, h := range hints {
		if metadataHas(metadata, h) {
			hits++
		}
	}
	return float64(hits) / float64(len(hints))
}

func metadataHas(metadata map[string]string, hint string) bool {
	for _, v := range metadata {
		if strings.Contains(strings.ToLower(v), strings.ToLower(hint)) {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []string
	for _, s := range a {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}
