package guardian

import (
	"testing"
	"time"
)

func TestCooldownLifecycle(t *testing.T) {
	cd := NewCooldownTracker()
	if !cd.Ready(1) {
		t.Fatalf("fresh tracker not ready")
	}

	cd.Set(1, 2*time.Second)
	if cd.Ready(1) {
		t.Fatalf("ability ready right after Set")
	}
	if got := cd.Remaining(1); got != 2*time.Second {
		t.Fatalf("remaining = %v, want 2s", got)
	}

	cd.Advance(1500 * time.Millisecond)
	if got := cd.Remaining(1); got != 500*time.Millisecond {
		t.Fatalf("remaining = %v, want 500ms", got)
	}

	cd.Advance(time.Second)
	if !cd.Ready(1) {
		t.Fatalf("ability not ready after countdown elapsed")
	}
	if got := cd.Remaining(1); got != 0 {
		t.Fatalf("remaining = %v, want 0 after expiry", got)
	}
}

func TestCooldownNeverGoesNegative(t *testing.T) {
	cd := NewCooldownTracker()
	cd.Set(1, 100*time.Millisecond)
	cd.Advance(time.Hour)
	if got := cd.Remaining(1); got != 0 {
		t.Fatalf("remaining = %v, want clamp at 0", got)
	}
}

func TestCooldownSetNonPositiveClears(t *testing.T) {
	cd := NewCooldownTracker()
	cd.Set(1, time.Second)
	cd.Set(1, 0)
	if !cd.Ready(1) {
		t.Fatalf("zero Set did not clear the cooldown")
	}
}

func TestCooldownAdvanceIgnoresNonPositiveElapsed(t *testing.T) {
	cd := NewCooldownTracker()
	cd.Set(1, time.Second)
	cd.Advance(0)
	cd.Advance(-time.Second)
	if got := cd.Remaining(1); got != time.Second {
		t.Fatalf("remaining = %v, want untouched 1s", got)
	}
}

func TestCooldownsAreIndependent(t *testing.T) {
	cd := NewCooldownTracker()
	cd.Set(1, time.Second)
	cd.Set(2, 3*time.Second)
	cd.Advance(2 * time.Second)
	if !cd.Ready(1) {
		t.Fatalf("ability 1 should be ready")
	}
	if cd.Ready(2) {
		t.Fatalf("ability 2 should still be cooling down")
	}
}
