package clock

import (
	"testing"
	"time"
)

func TestManual_Advance(t *testing.T) {
	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	m := NewManual(start)
	if !m.Now().Equal(start) || m.Now().Location() != time.UTC {
		t.Fatalf("Now = %v, want %v in UTC", m.Now(), start)
	}
	m.Advance(90 * time.Minute)
	if got, want := m.Now(), start.Add(90*time.Minute).UTC(); !got.Equal(want) {
		t.Fatalf("after Advance Now = %v, want %v", got, want)
	}
}

func TestFixed_DoesNotMove(t *testing.T) {
	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	c := NewFixed(at)
	time.Sleep(time.Millisecond)
	if !c.Now().Equal(at) {
		t.Fatalf("Now = %v, want %v", c.Now(), at)
	}
}
