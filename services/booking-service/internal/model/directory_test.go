package model

import (
	"testing"
	"time"
)

func TestSettingsLocationIsCached(t *testing.T) {
	if _, err := time.LoadLocation("Europe/Berlin"); err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := Settings{Timezone: "Europe/Berlin"}
	first := s.Location()
	if first.String() != "Europe/Berlin" {
		t.Fatalf("expected Europe/Berlin, got %s", first)
	}
	if _, ok := locations.Load("Europe/Berlin"); !ok {
		t.Fatal("expected the zone to be cached after first use")
	}
	if second := s.Location(); second != first {
		t.Fatal("expected the cached *time.Location on second use")
	}
}

func TestSettingsLocationFallsBackToUTC(t *testing.T) {
	for _, tz := range []string{"", "Mars/Olympus_Mons"} {
		if loc := (Settings{Timezone: tz}).Location(); loc != time.UTC {
			t.Fatalf("%q: expected UTC, got %s", tz, loc)
		}
	}
}
