package shield

import (
	"sync"
	"time"

	"ultrascan/pkg/detect"
	"ultrascan/pkg/fusion"
	"ultrascan/pkg/media"
)

// Engine coordinates HYDRA, SENTINEL and FORENSIC DNA over one frozen
// FusionInput, then resolves overrides against the fusion result.
type Engine struct {
	hydra    HydraConfig
	sentinel SentinelConfig
	resolver ResolverConfig
	attrib   *Attributor
}

// Result bundles the three analysis outputs and the resolution.
type Result struct {
	Hydra       *HydraResult       `json:"hydra"`
	Sentinel    *SentinelResult    `json:"sentinel"`
	Attribution *AttributionResult `json:"attribution"`
	Resolution  Resolution         `json:"-"`

	ProcessingMs float64 `json:"processing_time_ms"`
}

// NewEngine wires the shield with the given configs; a nil attributor
// profile table selects the built-in defaults.
func NewEngine(hydra HydraConfig, sentinel SentinelConfig, resolver ResolverConfig, profiles []GeneratorProfile) *Engine {
	return &Engine{
		hydra:    hydra,
		sentinel: sentinel,
		resolver: resolver,
		attrib:   NewAttributor(profiles),
	}
}

// NewDefaultEngine wires the shield with production defaults.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultHydraConfig(), DefaultSentinelConfig(), DefaultResolverConfig(), nil)
}

// Analyze runs the three analyses concurrently — they are independent
// reads of the same frozen FusionInput — then applies the override
// precedence chain.
func (e *Engine) Analyze(in detect.FusionInput, input *media.DetectorInput, fr *fusion.Result, probe *ProbeSignal) *Result {
	start := time.Now()
	res := &Result{}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		res.Hydra = RunHydra(in, e.hydra)
	}()
	go func() {
		defer wg.Done()
		res.Sentinel = RunSentinel(in, input, e.sentinel)
	}()
	go func() {
		defer wg.Done()
		var meta map[string]string
		if input != nil {
			meta = input.Metadata
		}
		res.Attribution = e.attrib.Attribute(HarvestEvidence(in, meta))
	}()
	wg.Wait()

	res.Resolution = Resolve(e.resolver, fr, res.Hydra, res.Sentinel, res.Attribution, probe)
	res.ProcessingMs = float64(time.Since(start).Microseconds()) / 1000.0
	return res
}
