package guardian

import (
	"testing"
	"time"
)

func TestNormalizedFillsZeroValues(t *testing.T) {
	got := Rules{}.Normalized()
	def := DefaultRules()

	if got.MaxSlots != def.MaxSlots {
		t.Fatalf("MaxSlots = %d, want %d", got.MaxSlots, def.MaxSlots)
	}
	if got.CaptureRange != def.CaptureRange {
		t.Fatalf("CaptureRange = %v, want %v", got.CaptureRange, def.CaptureRange)
	}
	if got.RegenPct != def.RegenPct {
		t.Fatalf("RegenPct = %d, want %d", got.RegenPct, def.RegenPct)
	}
	if got.OwnerGrace != def.OwnerGrace {
		t.Fatalf("OwnerGrace = %v, want %v", got.OwnerGrace, def.OwnerGrace)
	}
}

func TestNormalizedKeepsExplicitValues(t *testing.T) {
	in := DefaultRules()
	in.MaxSlots = 2
	in.CaptureRange = 15
	in.HealCooldownFloor = 4 * time.Second

	got := in.Normalized()
	if got.MaxSlots != 2 || got.CaptureRange != 15 || got.HealCooldownFloor != 4*time.Second {
		t.Fatalf("explicit values overwritten: %+v", got)
	}
}

func TestNormalizedClampsSlotCap(t *testing.T) {
	in := DefaultRules()
	in.MaxSlots = MaxSlotCap + 3
	if got := in.Normalized().MaxSlots; got != MaxSlotCap {
		t.Fatalf("MaxSlots = %d, want clamp to %d", got, MaxSlotCap)
	}
}

func TestNormalizedKeepsCombatLeashInsideTeleportLeash(t *testing.T) {
	in := DefaultRules()
	in.TeleportLeash = 20
	in.CombatLeash = 35

	got := in.Normalized()
	if got.CombatLeash > got.TeleportLeash {
		t.Fatalf("combat leash %v exceeds teleport leash %v", got.CombatLeash, got.TeleportLeash)
	}
}

func TestNormalizedRaisesJitterMaxToMin(t *testing.T) {
	in := DefaultRules()
	in.CastJitterMin = 2 * time.Second
	in.CastJitterMax = time.Second

	got := in.Normalized()
	if got.CastJitterMax < got.CastJitterMin {
		t.Fatalf("jitter max %v below min %v", got.CastJitterMax, got.CastJitterMin)
	}
}
