package clock

import (
	"testing"
	"time"
)

func TestIST_Offset(t *testing.T) {
	// Whether the zone came from tzdata or the fixed fallback,
	// the offset must be +05:30 (19800 seconds).
	now := time.Now().In(IST())
	_, offset := now.Zone()
	if offset != 19800 {
		t.Errorf("IST offset = %d seconds, want 19800 (+05:30)", offset)
	}
}

func TestNow_UsesIST(t *testing.T) {
	got := Now()
	if got.Location() != IST() {
		t.Errorf("Now() location = %v, want IST", got.Location())
	}

	// Sanity: Now() must be the same instant as time.Now(), just rezoned.
	if d := time.Since(got); d < 0 || d > time.Second {
		t.Errorf("Now() is %v away from wall clock", d)
	}
}
