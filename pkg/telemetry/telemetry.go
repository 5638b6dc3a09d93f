// Package telemetry tracks scan pipeline events in-process. It exists so
// operators can answer "how many scans, how many overrides, how slow"
// without an external metrics stack; exporters can drain Snapshot.
package telemetry

import (
	"sync"
)

// Client counts events and remembers the last property set per event.
type Client struct {
	mu     sync.Mutex
	counts map[string]int64
	last   map[string]map[string]any
}

// GlobalClient is the process-wide tracker. Nil-safe: a nil client drops
// events, so library code can call Track unconditionally.
var GlobalClient = NewClient()

// NewClient returns an empty tracker.
func NewClient() *Client {
	return &Client{
		counts: make(map[string]int64),
		last:   make(map[string]map[string]any),
	}
}

// Track records one occurrence of event with its properties.
func (c *Client) Track(event string, props map[string]any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[event]++
	c.last[event] = props
}

// TrackWithContext records an event tagged with a scan identifier.
func (c *Client) TrackWithContext(event string, props map[string]any, scanID string) {
	if c == nil {
		return
	}
	if props == nil {
		props = make(map[string]any, 1)
	}
	props["scan_id"] = scanID
	c.Track(event, props)
}

// Count returns how many times event was tracked.
func (c *Client) Count(event string) int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[event]
}

// Snapshot returns a copy of all event counts.
func (c *Client) Snapshot() map[string]int64 {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
