package shield

import (
	"ultrascan/pkg/fusion"
)

// OverrideReason names the signal that forced the verdict. Empty means
// the verdict came straight from the fused trust score.
type OverrideReason string

const (
	OverrideNone           OverrideReason = ""
	OverrideAdversarial    OverrideReason = "adversarial"
	OverrideNovelType      OverrideReason = "novel_type"
	OverrideAttribution    OverrideReason = "attribution"
	OverridePhysicsAnomaly OverrideReason = "physics_anomaly"
	OverridePlayback       OverrideReason = "playback"
)

// ProbeSignal is the optional liveness/playback signal from the external
// real-time probe collaborator. A nil signal means the probe did not run.
type ProbeSignal struct {
	// PlaybackDetected is true when the probe concluded the "live" feed
	// is pre-recorded content.
	PlaybackDetected bool    `json:"playback_detected"`
	LivenessScore    float64 `json:"liveness_score"`
}

// ResolverConfig tunes the override layer.
type ResolverConfig struct {
	// NovelOODThreshold gates override rule 2 alongside is_novel_type.
	NovelOODThreshold float64
	// AttributionFloor gates override rule 3.
	AttributionFloor float64
	// PhysicsFailThreshold gates override rule 4.
	PhysicsFailThreshold float64
	// PhysicsBoostFraction is the fixed fraction by which rule 4 boosts
	// the fake-ward component of the trust score before re-thresholding.
	// Tunable rather than hardwired; the boosted verdict may cross any
	// number of bands.
	PhysicsBoostFraction float64
}

// DefaultResolverConfig returns the production override thresholds.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		NovelOODThreshold:    0.7,
		AttributionFloor:     0.8,
		PhysicsFailThreshold: 0.5,
		PhysicsBoostFraction: 0.20,
	}
}

// Resolution is the override resolver's output.
type Resolution struct {
	Verdict     Verdict
	ThreatLevel ThreatLevel
	// TrustScore is the (possibly physics-boosted) trust score the
	// verdict was derived from.
	TrustScore float64
	Reason     OverrideReason
}

// Resolve derives the base verdict from the fused trust score and applies
// the override precedence chain. First match wins; the order encodes
// severity and certainty, not arrival time. Every rule computes from the
// original fusion result, never from an accumulator mutated rule by rule,
// so the chain stays auditable. Given identical inputs the resolution is
// identical.
func Resolve(cfg ResolverConfig, fr *fusion.Result, hydra *HydraResult, sentinel *SentinelResult, attribution *AttributionResult, probe *ProbeSignal) Resolution {
	base := VerdictFor(fr.TrustScore)

	// Rule 1: adversarial interference collapses the verdict to
	// uncertain; threat stays at the base verdict's level since the raw
	// evidence was not itself escalated.
	if hydra != nil && hydra.AdversarialDetected {
		return Resolution{
			Verdict:     VerdictUncertain,
			ThreatLevel: ThreatFor(base),
			TrustScore:  fr.TrustScore,
			Reason:      OverrideAdversarial,
		}
	}

	// Rule 2: novel generation technique — existing detectors may not
	// cover it, so any confident verdict would be overclaiming.
	if sentinel != nil && sentinel.IsNovelType && sentinel.OODScore > cfg.NovelOODThreshold {
		return Resolution{
			Verdict:     VerdictUncertain,
			ThreatLevel: ThreatFor(VerdictUncertain),
			TrustScore:  fr.TrustScore,
			Reason:      OverrideNovelType,
		}
	}

	// Rule 3: a confident generator attribution forces likely_fake or
	// stronger regardless of the fused score.
	if attribution != nil && attribution.GeneratorDetected && attribution.GeneratorConfidence > cfg.AttributionFloor {
		v := atLeastAsFake(base, VerdictLikelyFake)
		return Resolution{
			Verdict:     v,
			ThreatLevel: ThreatFor(v),
			TrustScore:  fr.TrustScore,
			Reason:      OverrideAttribution,
		}
	}

	// Rule 4: physics violations boost the fake-ward component before
	// re-thresholding.
	if sentinel != nil && sentinel.PhysicsScore < cfg.PhysicsFailThreshold {
		boosted := 1 - clamp01((1-fr.TrustScore)*(1+cfg.PhysicsBoostFraction))
		v := VerdictFor(boosted)
		return Resolution{
			Verdict:     v,
			ThreatLevel: ThreatFor(v),
			TrustScore:  boosted,
			Reason:      OverridePhysicsAnomaly,
		}
	}

	// Rule 5: the probe saw pre-recorded content presented as live.
	if probe != nil && probe.PlaybackDetected {
		v := atLeastAsFake(base, VerdictLikelyFake)
		return Resolution{
			Verdict:     v,
			ThreatLevel: ThreatFor(v),
			TrustScore:  fr.TrustScore,
			Reason:      OverridePlayback,
		}
	}

	return Resolution{
		Verdict:     base,
		ThreatLevel: ThreatFor(base),
		TrustScore:  fr.TrustScore,
		Reason:      OverrideNone,
	}
}
