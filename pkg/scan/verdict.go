package scan

import (
	"time"

	"ultrascan/pkg/detect"
	"ultrascan/pkg/fusion"
	"ultrascan/pkg/media"
	"ultrascan/pkg/shield"
)

// Verdict is the complete scan report: the final label plus every layer's
// contribution, so a reviewer can reconstruct how the verdict was reached.
type Verdict struct {
	ScanID    string          `json:"scan_id"`
	MediaType media.MediaType `json:"media_type"`

	Verdict     shield.Verdict     `json:"verdict"`
	TrustScore  float64            `json:"trust_score"`
	Confidence  float64            `json:"confidence"`
	ThreatLevel shield.ThreatLevel `json:"threat_level"`

	// OverrideReason is empty when the verdict came straight from the
	// fused trust score.
	OverrideReason shield.OverrideReason `json:"override_reason,omitempty"`

	ModalityBreakdown map[detect.Capability]fusion.ModalityScore `json:"modality_breakdown"`
	DetectorResults   detect.FusionInput                         `json:"detector_results"`

	Hydra       *shield.HydraResult       `json:"hydra"`
	Sentinel    *shield.SentinelResult    `json:"sentinel"`
	Attribution *shield.AttributionResult `json:"attribution"`

	ProcessingMs float64   `json:"processing_time_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// assembleVerdict freezes one scan's layers into the report.
func assembleVerdict(scanID string, mediaType media.MediaType, in detect.FusionInput, fr *fusion.Result, sr *shield.Result, elapsed time.Duration) *Verdict {
	return &Verdict{
		ScanID:    scanID,
		MediaType: mediaType,

		Verdict:     sr.Resolution.Verdict,
		TrustScore:  sr.Resolution.TrustScore,
		Confidence:  fr.Confidence,
		ThreatLevel: sr.Resolution.ThreatLevel,

		OverrideReason: sr.Resolution.Reason,

		ModalityBreakdown: fr.ModalityBreakdown,
		DetectorResults:   in,

		Hydra:       sr.Hydra,
		Sentinel:    sr.Sentinel,
		Attribution: sr.Attribution,

		ProcessingMs: float64(elapsed.Microseconds()) / 1000.0,
		CreatedAt:    time.Now().UTC(),
	}
}
