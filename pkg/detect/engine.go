package detect

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"ultrascan/pkg/media"
)

// Entry is one detector's contribution to FusionInput, tagged with the
// modality the detector belongs to.
type Entry struct {
	Modality Capability `json:"modality"`
	Result   *Result    `json:"result"`
}

// FusionInput is the complete, order-irrelevant mapping from detector name
// to result, including entries marked failed or timed out. The execution
// engine freezes it before any downstream stage observes it.
type FusionInput map[string]Entry

// Failed reports whether every entry carries a failure.
func (fi FusionInput) Failed() bool {
	for _, e := range fi {
		if !e.Result.Failed() {
			return false
		}
	}
	return true
}

// Engine runs all selected detectors concurrently against one input,
// enforcing a per-detector timeout and isolating failures: no detector's
// error, panic, or overrun ever aborts the scan.
type Engine struct {
	// PerDetectorTimeout bounds each detector's EnsureReady+Detect pair.
	PerDetectorTimeout time.Duration
}

// NewEngine returns an engine with the given per-detector timeout.
func NewEngine(perDetector time.Duration) *Engine {
	if perDetector <= 0 {
		perDetector = 30 * time.Second
	}
	return &Engine{PerDetectorTimeout: perDetector}
}

type unitResult struct {
	name     string
	modality Capability
	result   *Result
}

// RunAll fans the input out to every detector and waits until each unit
// reaches a terminal state or ctx (the overall scan deadline) expires.
// Units still pending at the deadline are folded in as timeouts, so the
// returned FusionInput always covers every requested detector.
func (e *Engine) RunAll(ctx context.Context, in *media.DetectorInput, detectors []Detector) FusionInput {
	out := make(FusionInput, len(detectors))
	if len(detectors) == 0 {
		return out
	}

	results := make(chan unitResult, len(detectors))
	for _, det := range detectors {
		go e.runUnit(ctx, det, in, results)
	}

	pending := make(map[string]Capability, len(detectors))
	for _, det := range detectors {
		pending[det.Name()] = det.Capabilities().Primary()
	}

	for len(pending) > 0 {
		select {
		case r := <-results:
			out[r.name] = Entry{Modality: r.modality, Result: r.result}
			delete(pending, r.name)
		case <-ctx.Done():
			// Overall scan deadline: everything still in flight becomes a
			// timeout entry. The abandoned goroutines observe ctx and exit.
			for name, mod := range pending {
				res := Neutral(name)
				res.Failure = FailureTimeout
				res.FailureMsg = "scan deadline exceeded"
				out[name] = Entry{Modality: mod, Result: res}
			}
			return out
		}
	}
	return out
}

// runUnit executes one detector with its own timeout, translating every
// failure mode into a folded Result. The inner goroutine lets the unit
// abandon a detector that ignores cancellation.
func (e *Engine) runUnit(ctx context.Context, det Detector, in *media.DetectorInput, results chan<- unitResult) {
	name := det.Name()
	modality := det.Capabilities().Primary()
	start := time.Now()

	unitCtx, cancel := context.WithTimeout(ctx, e.PerDetectorTimeout)
	defer cancel()

	done := make(chan *Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[ENGINE] detector %s panicked: %v\n%s", name, rec, debug.Stack())
				res := Neutral(name)
				res.Failure = FailureError
				res.FailureMsg = fmt.Sprintf("panic: %v", rec)
				done <- res
			}
		}()

		if err := det.EnsureReady(unitCtx); err != nil {
			res := Neutral(name)
			res.Failure = FailureLoad
			res.FailureMsg = err.Error()
			done <- res
			return
		}

		res, err := det.Detect(unitCtx, in)
		if err != nil {
			res = Neutral(name)
			res.Failure = FailureError
			res.FailureMsg = err.Error()
		} else if res == nil {
			res = Neutral(name)
		}
		done <- res
	}()

	var res *Result
	select {
	case res = <-done:
	case <-unitCtx.Done():
		res = Neutral(name)
		res.Failure = FailureTimeout
		res.FailureMsg = unitCtx.Err().Error()
	}

	res.ProcessingMs = float64(time.Since(start).Microseconds()) / 1000.0
	if res.Method == "" {
		res.Method = name
	}

	results <- unitResult{name: name, modality: modality, result: res}
}
