package detectors

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"

	"ultrascan/pkg/detect"
	"ultrascan/pkg/media"
)

// OODDetector scores how far an input's statistical profile sits from a
// reference set of natural-image centroids. It is not a fake detector on
// its own: a high distance means "no detector here was trained on
// anything like this", which the anomaly layer treats as a novel
// generation technique signal.
type OODDetector struct {
	ready      detect.ReadyGuard
	db         *chromem.DB
	collection *chromem.Collection
}

// NewOODDetector returns the out-of-distribution detector.
func NewOODDetector() *OODDetector { return &OODDetector{} }

func (d *OODDetector) Name() string { return "embedding_ood" }

func (d *OODDetector) Capabilities() detect.CapabilitySet {
	return detect.NewCapabilitySet(detect.CapabilityVisual)
}

// EnsureReady builds the in-memory vector index of reference centroids.
func (d *OODDetector) EnsureReady(ctx context.Context) error {
	return d.ready.Do(func() error {
		d.db = chromem.NewDB()

		// Every document carries a precomputed embedding, so the
		// embedding function is never invoked; it exists to satisfy the
		// collection contract.
		noEmbed := func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("reference embeddings are precomputed")
		}
		collection, err := d.db.CreateCollection("natural_reference", nil, noEmbed)
		if err != nil {
			return fmt.Errorf("create reference collection: %w", err)
		}

		docs := referenceCentroids()
		if err := collection.AddDocuments(ctx, docs, 1); err != nil {
			return fmt.Errorf("seed reference collection: %w", err)
		}
		d.collection = collection
		return nil
	})
}

func (d *OODDetector) Detect(ctx context.Context, in *media.DetectorInput) (*detect.Result, error) {
	if !in.HasFrames() {
		return detect.Neutral(d.Name()), nil
	}

	// Profile the middle frame; statistics drift little within one clip.
	embedding := frameEmbedding(&in.Frames[len(in.Frames)/2])

	results, err := d.collection.QueryEmbedding(ctx, embedding, 3, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("reference query: %w", err)
	}

	var bestSim float64
	for _, r := range results {
		if s := float64(r.Similarity); s > bestSim {
			bestSim = s
		}
	}
	ood := clamp01(1 - bestSim)

	// Distance alone is weak evidence of synthesis; keep the fake-ward
	// contribution modest and let the anomaly layer read ood_score.
	return &detect.Result{
		Score:      clamp01(0.3 + 0.4*ood),
		Confidence: 0.3,
		Method:     "reference_set_distance",
		Details: map[string]any{
			"ood_score":        ood,
			"nearest_centroid": nearestID(results),
		},
	}, nil
}

func nearestID(results []chromem.Result) string {
	if len(results) == 0 {
		return ""
	}
	return results[0].ID
}

// embeddingDim is 16 histogram bins plus spread, residual energy and
// combing scalars.
const embeddingDim = 19

// frameEmbedding packs the frame's tonal and texture statistics into a
// fixed vector comparable against the reference centroids.
func frameEmbedding(f *media.Frame) []float32 {
	v := make([]float32, embeddingDim)
	if len(f.Pix) == 0 {
		return v
	}

	var hist [16]float64
	var lumas []float64
	for _, p := range f.Pix {
		hist[int(p)/16]++
		lumas = append(lumas, float64(p))
	}
	total := float64(len(f.Pix))
	for i := 0; i < 16; i++ {
		v[i] = float32(hist[i] / total)
	}
	v[16] = float32(stddev(lumas) / 128.0)

	_, energy := residualProfile(f)
	v[17] = float32(clamp01(energy / 8.0))

	combing, _ := histogramStats(f)
	v[18] = float32(combing)
	return v
}

// referenceCentroids synthesizes the natural-image statistical profiles
// the index is seeded with: smooth unimodal histograms over a grid of
// exposure levels and contrast spreads, with the residual energy a real
// sensor deposits.
func referenceCentroids() []chromem.Document {
	var docs []chromem.Document
	id := 0
	for _, center := range []float64{64, 96, 128, 160, 192} {
		for _, spread := range []float64{24, 48, 80} {
			emb := make([]float32, embeddingDim)
			var total float64
			var weights [16]float64
			for i := 0; i < 16; i++ {
				mid := float64(i)*16 + 8
				d := (mid - center) / spread
				weights[i] = 1.0 / (1.0 + d*d)
				total += weights[i]
			}
			for i := 0; i < 16; i++ {
				emb[i] = float32(weights[i] / total)
			}
			emb[16] = float32(spread / 128.0)
			emb[17] = 0.5 // mid-range sensor noise
			emb[18] = 0.0 // no quantization combing
			docs = append(docs, chromem.Document{
				ID:        fmt.Sprintf("natural_%d", id),
				Content:   fmt.Sprintf("center=%.0f spread=%.0f", center, spread),
				Embedding: emb,
			})
			id++
		}
	}
	return docs
}
