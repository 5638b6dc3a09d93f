// Package detect defines the capability contract every analysis module
// implements, the registry that owns detector instances, and the parallel
// execution engine that fans one input out to all selected detectors.
package detect

import (
	"context"
	"sync"

	"ultrascan/pkg/media"
)

// Capability tags the modality a detector can consume.
type Capability string

const (
	CapabilityVisual Capability = "visual"
	CapabilityAudio  Capability = "audio"
	CapabilityText   Capability = "text"
)

// CapabilitySet is a small fixed set of modality tags.
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a set from the given tags.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Intersects reports whether the two sets share any capability.
func (s CapabilitySet) Intersects(other CapabilitySet) bool {
	for c := range other {
		if s[c] {
			return true
		}
	}
	return false
}

// Primary returns the highest-priority capability in the set, used to tag
// the detector's modality in FusionInput (visual > audio > text, matching
// detector maturity).
func (s CapabilitySet) Primary() Capability {
	for _, c := range []Capability{CapabilityVisual, CapabilityAudio, CapabilityText} {
		if s[c] {
			return c
		}
	}
	return CapabilityVisual
}

// FailureKind classifies why a detector produced no usable score.
type FailureKind string

const (
	FailureNone    FailureKind = ""
	FailureTimeout FailureKind = "timeout"
	FailureLoad    FailureKind = "load_error"
	FailureError   FailureKind = "detector_error"
)

// Result is the output of one detector for one scan.
// Score is fake-ward: 0.0 authentic, 1.0 synthetic.
type Result struct {
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Method     string         `json:"method"`
	Details    map[string]any `json:"details,omitempty"`
	Failure    FailureKind    `json:"failure,omitempty"`
	FailureMsg string         `json:"failure_msg,omitempty"`

	ProcessingMs float64 `json:"processing_time_ms"`
}

// Failed reports whether the result carries no usable signal.
func (r *Result) Failed() bool { return r.Failure != FailureNone }

// Neutral is the uninformative result a detector returns when it cannot
// produce a confident answer: score 0.5, confidence 0.
func Neutral(method string) *Result {
	return &Result{Score: 0.5, Confidence: 0, Method: method}
}

// Detector is the contract every analysis module implements.
//
// EnsureReady is idempotent and safe to call concurrently from multiple
// scans; one-time expensive initialization (model weight load) happens
// here, never in Detect. Detect must be safe to invoke concurrently with
// other detectors and with itself across scans, and must not mutate the
// input. Deadline enforcement is the execution engine's job, but Detect
// should honor ctx cancellation at its own suspension points.
type Detector interface {
	Name() string
	Capabilities() CapabilitySet
	EnsureReady(ctx context.Context) error
	Detect(ctx context.Context, in *media.DetectorInput) (*Result, error)
}

// ReadyGuard provides the one-time initialization pattern detectors embed:
// the load step runs under the guard exactly once per process; Detect is
// never serialized behind it.
type ReadyGuard struct {
	once sync.Once
	err  error
}

// Do runs load the first time it is called and caches the outcome. A
// failed load is permanent for the process lifetime; the detector folds
// into the scan as a load failure rather than retrying on the hot path.
func (g *ReadyGuard) Do(load func() error) error {
	g.once.Do(func() { g.err = load() })
	return g.err
}
