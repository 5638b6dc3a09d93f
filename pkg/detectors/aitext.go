package detectors

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"

	"ultrascan/pkg/detect"
	"ultrascan/pkg/media"
)

// AITextDetector classifies extracted text with a local ONNX model
// fine-tuned for machine-generated text detection. When no model is
// installed it degrades to a neutral answer instead of failing the scan:
// text is the weakest modality and a missing model should not poison
// fusion.
type AITextDetector struct {
	ready    detect.ReadyGuard
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
}

// NewAITextDetector returns the machine-generated text detector.
func NewAITextDetector() *AITextDetector { return &AITextDetector{} }

func (d *AITextDetector) Name() string { return "ai_text" }

func (d *AITextDetector) Capabilities() detect.CapabilitySet {
	return detect.NewCapabilitySet(detect.CapabilityText)
}

// EnsureReady loads the classification pipeline once per process. Absent
// model assets leave the detector in degraded mode; a present but broken
// model surfaces as a load failure.
func (d *AITextDetector) EnsureReady(ctx context.Context) error {
	return d.ready.Do(func() error {
		modelPath := os.Getenv("ULTRASCAN_TEXT_MODEL_PATH")
		if modelPath == "" {
			log.Printf("[DETECTOR] ai_text: no model configured, running degraded")
			return nil
		}
		if _, err := os.Stat(filepath.Join(modelPath, "model.onnx")); err != nil {
			log.Printf("[DETECTOR] ai_text: model.onnx not found under %s, running degraded", modelPath)
			return nil
		}

		session, err := d.newSession()
		if err != nil {
			return fmt.Errorf("text model session: %w", err)
		}

		pipeline, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
			ModelPath: modelPath,
			Name:      "ai-text-detector",
		})
		if err != nil {
			_ = session.Destroy()
			return fmt.Errorf("text model pipeline: %w", err)
		}

		d.session = session
		d.pipeline = pipeline
		log.Printf("[DETECTOR] ai_text: model loaded from %s", modelPath)
		return nil
	})
}

// newSession prefers the ONNX Runtime backend when the shared library is
// configured, falling back to the pure Go backend.
func (d *AITextDetector) newSession() (*hugot.Session, error) {
	if libPath := os.Getenv("ULTRASCAN_ONNX_LIB"); libPath != "" {
		session, err := hugot.NewORTSession(options.WithOnnxLibraryPath(libPath))
		if err == nil {
			return session, nil
		}
		log.Printf("[DETECTOR] ai_text: ONNX Runtime unavailable, using Go backend: %v", err)
	}
	return hugot.NewGoSession()
}

func (d *AITextDetector) Detect(ctx context.Context, in *media.DetectorInput) (*detect.Result, error) {
	if !in.HasText() {
		return detect.Neutral(d.Name()), nil
	}
	if d.pipeline == nil {
		return detect.Neutral(d.Name()), nil
	}

	out, err := d.pipeline.RunPipeline([]string{in.Text})
	if err != nil {
		return nil, fmt.Errorf("text classification: %w", err)
	}
	if len(out.ClassificationOutputs) == 0 || len(out.ClassificationOutputs[0]) == 0 {
		return detect.Neutral(d.Name()), nil
	}

	top := out.ClassificationOutputs[0][0]
	modelScore := float64(top.Score)
	score := modelScore
	if !isGeneratedLabel(top.Label) {
		score = 1 - modelScore
	}

	return &detect.Result{
		Score:      clamp01(score),
		Confidence: clamp01(modelScore),
		Method:     "onnx_text_classification",
		Details: map[string]any{
			"label": top.Label,
		},
	}, nil
}

// isGeneratedLabel maps the label conventions of the common detector
// checkpoints onto the machine-generated class.
func isGeneratedLabel(label string) bool {
	switch label {
	case "ai", "AI", "fake", "generated", "machine", "LABEL_1":
		return true
	default:
		return false
	}
}

// Close releases the inference session.
func (d *AITextDetector) Close() error {
	if d.session != nil {
		return d.session.Destroy()
	}
	return nil
}
