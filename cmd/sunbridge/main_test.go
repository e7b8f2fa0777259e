package main

import (
	"testing"

	"github.com/nerrad567/sunbridge/internal/infrastructure/logging"
	"github.com/nerrad567/sunbridge/internal/inverter"
)

func TestResolveKeysFiltersUnknown(t *testing.T) {
	log := logging.Default()
	defaults := inverter.DefaultFrequentKeys()

	// A typo in one key must not discard the rest of the set.
	got := resolveKeys(log, "frequent",
		[]string{"pv_01_voltage", "pv_01_current", "bogus_register"},
		defaults,
	)

	want := []string{"pv_01_voltage", "pv_01_current"}
	if len(got) != len(want) {
		t.Fatalf("resolveKeys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("resolveKeys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveKeysDefaults(t *testing.T) {
	log := logging.Default()
	defaults := inverter.DefaultPeriodicKeys()

	// Empty set: defaults apply.
	got := resolveKeys(log, "periodic", nil, defaults)
	if len(got) != len(defaults) {
		t.Fatalf("empty set: got %v, want defaults %v", got, defaults)
	}

	// Nothing known in the set: defaults apply.
	got = resolveKeys(log, "periodic", []string{"no_such_key"}, defaults)
	if len(got) != len(defaults) {
		t.Fatalf("all-unknown set: got %v, want defaults %v", got, defaults)
	}
	for i := range defaults {
		if got[i] != defaults[i] {
			t.Errorf("all-unknown set: [%d] = %q, want %q", i, got[i], defaults[i])
		}
	}
}
