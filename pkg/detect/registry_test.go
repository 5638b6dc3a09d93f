package detect

import (
	"context"
	"testing"

	"ultrascan/pkg/media"
)

func capDetector(name string, caps ...Capability) *stubDetector {
	return &stubDetector{
		name: name,
		caps: NewCapabilitySet(caps...),
		detect: func(ctx context.Context, in *media.DetectorInput) (*Result, error) {
			return Neutral(name), nil
		},
	}
}

func TestRegistryInstantiatesOnce(t *testing.T) {
	r := NewRegistry()
	calls := 0
	err := r.Register("once", func() (Detector, error) {
		calls++
		return capDetector("once", CapabilityVisual), nil
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("factory ran %d times, want 1", calls)
	}

	// Repeated Get must return the same instance, not re-run the factory.
	first := r.Get("once")
	for i := 0; i < 5; i++ {
		if r.Get("once") != first {
			t.Fatal("Get returned a different instance")
		}
	}
	if calls != 1 {
		t.Fatalf("factory re-ran on Get: %d calls", calls)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	factory := func() (Detector, error) { return capDetector("dup", CapabilityVisual), nil }
	if err := r.Register("dup", factory); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register("dup", factory); err == nil {
		t.Fatal("duplicate registration must fail")
	}
	if r.Len() != 1 {
		t.Fatalf("failed duplicate must not grow the registry: len=%d", r.Len())
	}
}

func TestSelectForFiltersByCapability(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("vis", func() (Detector, error) { return capDetector("vis", CapabilityVisual), nil })
	r.MustRegister("aud", func() (Detector, error) { return capDetector("aud", CapabilityAudio), nil })
	r.MustRegister("txt", func() (Detector, error) { return capDetector("txt", CapabilityText), nil })
	r.MustRegister("av", func() (Detector, error) { return capDetector("av", CapabilityAudio, CapabilityVisual), nil })

	got := r.SelectFor(NewCapabilitySet(CapabilityAudio), nil)
	names := make([]string, len(got))
	for i, d := range got {
		names[i] = d.Name()
	}
	if len(names) != 2 || names[0] != "aud" || names[1] != "av" {
		t.Fatalf("audio selection wrong: %v", names)
	}
}

func TestSelectForHonorsEnabledSet(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("a", func() (Detector, error) { return capDetector("a", CapabilityVisual), nil })
	r.MustRegister("b", func() (Detector, error) { return capDetector("b", CapabilityVisual), nil })

	got := r.SelectFor(NewCapabilitySet(CapabilityVisual), map[string]bool{"b": true})
	if len(got) != 1 || got[0].Name() != "b" {
		t.Fatalf("enabled filter ignored: %v", got)
	}

	// Empty enabled set means everything.
	got = r.SelectFor(NewCapabilitySet(CapabilityVisual), nil)
	if len(got) != 2 {
		t.Fatalf("empty enabled set must select all, got %d", len(got))
	}
}

func TestSelectForIsDeterministic(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"e", "a", "c", "b", "d"} {
		n := name
		r.MustRegister(n, func() (Detector, error) { return capDetector(n, CapabilityVisual), nil })
	}

	first := r.SelectFor(NewCapabilitySet(CapabilityVisual), nil)
	for i := 0; i < 20; i++ {
		again := r.SelectFor(NewCapabilitySet(CapabilityVisual), nil)
		if len(again) != len(first) {
			t.Fatalf("selection size changed on run %d", i)
		}
		for j := range again {
			if again[j].Name() != first[j].Name() {
				t.Fatalf("selection order changed on run %d: %s vs %s", i, again[j].Name(), first[j].Name())
			}
		}
	}

	// Registration order, not alphabetical order.
	want := []string{"e", "a", "c", "b", "d"}
	for i, d := range first {
		if d.Name() != want[i] {
			t.Fatalf("selection must follow registration order: got %s at %d, want %s", d.Name(), i, want[i])
		}
	}
}

func TestCapabilitySetPrimary(t *testing.T) {
	cases := []struct {
		caps []Capability
		want Capability
	}{
		{[]Capability{CapabilityText}, CapabilityText},
		{[]Capability{CapabilityAudio, CapabilityText}, CapabilityAudio},
		{[]Capability{CapabilityText, CapabilityVisual}, CapabilityVisual},
	}
	for _, tc := range cases {
		if got := NewCapabilitySet(tc.caps...).Primary(); got != tc.want {
			t.Errorf("Primary(%v) = %s, want %s", tc.caps, got, tc.want)
		}
	}
}
