package registry

import (
	"fmt"
	"sort"
	"testing"

	"pgregory.net/rapid"
)

// The capability index must always equal what the live registrations imply.
func TestCapabilityIndexMatchesRegistrations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reg := NewCapabilityRegistry(nil)
		capPool := []string{"a", "b", "c", "d"}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			name := fmt.Sprintf("comp-%d", rapid.IntRange(0, 6).Draw(t, "name"))
			if rapid.Bool().Draw(t, "register") {
				caps := rapid.SliceOfDistinct(rapid.SampledFrom(capPool), rapid.ID[string]).Draw(t, "caps")
				_, _ = reg.RegisterAgent(name, struct{}{}, caps)
			} else {
				reg.Unregister(name)
			}
		}

		expected := make(map[string][]string)
		for _, r := range reg.AllRegistrations() {
			for _, c := range r.Capabilities {
				expected[c] = append(expected[c], r.Name)
			}
		}
		for _, list := range expected {
			sort.Strings(list)
		}

		got := reg.AllCapabilities()
		if len(got) != len(expected) {
			t.Fatalf("index has %d capabilities, registrations imply %d", len(got), len(expected))
		}
		for capability, providers := range expected {
			if fmt.Sprint(got[capability]) != fmt.Sprint(providers) {
				t.Fatalf("capability %s: index %v, expected %v", capability, got[capability], providers)
			}
		}
	})
}
