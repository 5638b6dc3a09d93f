package config

import (
	"fmt"
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// WeightsFile is the optional yaml tuning file. Everything in it has a
// compiled-in default; deployments override only what they retune.
//
//	fusion_weights:
//	  visual: 0.5
//	  audio: 0.3
//	  text: 0.2
//	hydra:
//	  head_tolerance: 0.10
//	  dissent_threshold: 0.30
//	generator_profiles_path: /etc/ultrascan/profiles.yaml
type WeightsFile struct {
	FusionWeights map[string]float64 `yaml:"fusion_weights"`
	Hydra         struct {
		HeadTolerance    float64 `yaml:"head_tolerance"`
		DissentThreshold float64 `yaml:"dissent_threshold"`
	} `yaml:"hydra"`
	GeneratorProfilesPath string `yaml:"generator_profiles_path"`
}

// Weights is the process-wide tuning state with hot-reload support. Reads
// are lock-free copies; Reload swaps the whole value.
type Weights struct {
	mu   sync.RWMutex
	file WeightsFile
	path string
}

// LoadWeights reads the weights file; an empty path yields a Weights that
// always answers with defaults.
func LoadWeights(path string) (*Weights, error) {
	w := &Weights{path: path}
	if path == "" {
		return w, nil
	}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Reload re-reads the weights file and swaps the tuning state. Invalid
// content leaves the previous state untouched.
func (w *Weights) Reload() error {
	if w.path == "" {
		return nil
	}
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read weights: %w", err)
	}
	var parsed WeightsFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse weights: %w", err)
	}
	for mod, v := range parsed.FusionWeights {
		if v < 0 {
			return fmt.Errorf("fusion weight for %q is negative", mod)
		}
	}

	w.mu.Lock()
	w.file = parsed
	w.mu.Unlock()
	log.Printf("[CONFIG] Weights loaded from %s", w.path)
	return nil
}

// FusionWeights returns the override table, or nil when defaults apply.
func (w *Weights) FusionWeights() map[string]float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.file.FusionWeights) == 0 {
		return nil
	}
	out := make(map[string]float64, len(w.file.FusionWeights))
	for k, v := range w.file.FusionWeights {
		out[k] = v
	}
	return out
}

// HydraOverrides returns the tuned (tolerance, dissent) pair; zeros mean
// "use the default".
func (w *Weights) HydraOverrides() (headTolerance, dissentThreshold float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.file.Hydra.HeadTolerance, w.file.Hydra.DissentThreshold
}

// GeneratorProfilesPath returns the external profile table path, if set.
func (w *Weights) GeneratorProfilesPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.file.GeneratorProfilesPath
}
