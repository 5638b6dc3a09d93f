// Package scan runs the full pipeline for one media item: detector
// selection, parallel execution, fusion, shield analysis, verdict
// assembly. It owns nothing long-lived except the wiring; every scan is
// independent.
package scan

import (
	"context"
	"log"
	"time"

	"ultrascan/pkg/config"
	"ultrascan/pkg/detect"
	"ultrascan/pkg/fusion"
	"ultrascan/pkg/media"
	"ultrascan/pkg/shield"
	"ultrascan/pkg/telemetry"
)

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	cfg      *config.Config
	registry *detect.Registry
	engine   *detect.Engine
	weights  *config.Weights
	profiles []shield.GeneratorProfile
	tel      *telemetry.Client
}

// NewOrchestrator builds the pipeline. weights may be nil (compiled-in
// defaults apply); tel may be nil (events are dropped).
func NewOrchestrator(cfg *config.Config, registry *detect.Registry, weights *config.Weights, tel *telemetry.Client) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		registry: registry,
		engine:   detect.NewEngine(cfg.PerDetectorTimeout),
		weights:  weights,
		tel:      tel,
	}
	if weights != nil {
		if path := weights.GeneratorProfilesPath(); path != "" {
			profiles, err := shield.LoadProfiles(path)
			if err != nil {
				log.Printf("[SCAN] Generator profiles load failed, using defaults: %v", err)
			} else {
				o.profiles = profiles
			}
		}
	}
	return o
}

// Scan runs the pipeline for one preprocessed input. probe is the
// optional liveness signal; nil means the probe did not run.
func (o *Orchestrator) Scan(ctx context.Context, scanID string, in *media.DetectorInput, probe *shield.ProbeSignal) (*Verdict, error) {
	start := time.Now()

	requested := requestedCapabilities(in)
	if len(requested) == 0 {
		return nil, ErrInsufficientInput
	}

	detectors := o.registry.SelectFor(requested, enabledSet(o.cfg.EnabledDetectors))
	if len(detectors) == 0 {
		return nil, ErrInsufficientInput
	}

	scanCtx, cancel := context.WithTimeout(ctx, o.cfg.ScanDeadline)
	defer cancel()

	results := o.engine.RunAll(scanCtx, in, detectors)
	if results.Failed() {
		if scanCtx.Err() != nil {
			o.track("scan_deadline_exceeded", scanID, nil)
			return nil, ErrDeadlineExceeded
		}
		o.track("scan_insufficient_input", scanID, nil)
		return nil, ErrInsufficientInput
	}

	fr := fusion.NewEngine(o.fusionWeights()).Fuse(results)
	sr := o.shieldEngine().Analyze(results, in, fr, probe)

	verdict := assembleVerdict(scanID, in.Type, results, fr, sr, time.Since(start))

	log.Printf("[SCAN] %s: verdict=%s trust=%.3f threat=%s override=%q detectors=%d elapsed=%.0fms",
		scanID, verdict.Verdict, verdict.TrustScore, verdict.ThreatLevel,
		verdict.OverrideReason, len(results), verdict.ProcessingMs)

	o.track("scan_completed", scanID, map[string]any{
		"verdict":  string(verdict.Verdict),
		"threat":   string(verdict.ThreatLevel),
		"override": string(verdict.OverrideReason),
	})
	return verdict, nil
}

// fusionWeights maps the hot-reloadable weight table onto modalities.
func (o *Orchestrator) fusionWeights() fusion.ModalityWeights {
	if o.weights == nil {
		return nil
	}
	raw := o.weights.FusionWeights()
	if raw == nil {
		return nil
	}
	w := make(fusion.ModalityWeights, len(raw))
	for mod, v := range raw {
		w[detect.Capability(mod)] = v
	}
	return w
}

// shieldEngine assembles the shield from config plus any hot-reloaded
// overrides. Construction is a handful of struct copies; building it per
// scan keeps reloads race-free without locking the hot path.
func (o *Orchestrator) shieldEngine() *shield.Engine {
	hydra := shield.DefaultHydraConfig()
	hydra.DissentThreshold = o.cfg.DissentThreshold
	if o.weights != nil {
		if tol, dis := o.weights.HydraOverrides(); tol > 0 || dis > 0 {
			if tol > 0 {
				hydra.HeadTolerance = tol
			}
			if dis > 0 {
				hydra.DissentThreshold = dis
			}
		}
	}

	sentinel := shield.DefaultSentinelConfig()
	sentinel.NovelTypeThreshold = o.cfg.NovelOODThreshold

	resolver := shield.ResolverConfig{
		NovelOODThreshold:    o.cfg.NovelOODThreshold,
		AttributionFloor:     o.cfg.AttributionFloor,
		PhysicsFailThreshold: o.cfg.PhysicsFailThreshold,
		PhysicsBoostFraction: o.cfg.PhysicsBoostFraction,
	}

	return shield.NewEngine(hydra, sentinel, resolver, o.profiles)
}

func (o *Orchestrator) track(event, scanID string, props map[string]any) {
	o.tel.TrackWithContext(event, props, scanID)
}

// requestedCapabilities derives the modality set from the signals actually
// present in the input.
func requestedCapabilities(in *media.DetectorInput) detect.CapabilitySet {
	caps := detect.CapabilitySet{}
	if in.HasFrames() {
		caps[detect.CapabilityVisual] = true
	}
	if in.HasAudio() {
		caps[detect.CapabilityAudio] = true
	}
	if in.HasText() {
		caps[detect.CapabilityText] = true
	}
	return caps
}

func enabledSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
