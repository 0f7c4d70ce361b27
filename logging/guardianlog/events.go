// Package guardianlog publishes guardian lifecycle events through the
// logging router.
package guardianlog

import (
	"context"

	"wildkeep/server/logging"
)

// Event types emitted by the guardian subsystem.
const (
	EventCaptured         logging.EventType = "guardian.captured"
	EventSummoned         logging.EventType = "guardian.summoned"
	EventDismissed        logging.EventType = "guardian.dismissed"
	EventReleased         logging.EventType = "guardian.released"
	EventSelfDespawned    logging.EventType = "guardian.self_despawned"
	EventDied             logging.EventType = "guardian.died"
	EventZoneStored       logging.EventType = "guardian.zone_stored"
	EventArchetypeChanged logging.EventType = "guardian.archetype_changed"
)

// SlotPayload describes the slot an event refers to.
type SlotPayload struct {
	Slot      int    `json:"slot"`
	Identity  uint32 `json:"identity"`
	Level     uint8  `json:"level"`
	Archetype string `json:"archetype"`
}

// Captured records a creature entering an owner's slot.
func Captured(ctx context.Context, pub logging.Publisher, tick uint64, owner string, p SlotPayload) {
	publish(ctx, pub, EventCaptured, logging.CategoryLifecycle, tick, owner, p)
}

// Summoned records a stored guardian returning to the world.
func Summoned(ctx context.Context, pub logging.Publisher, tick uint64, owner string, p SlotPayload) {
	publish(ctx, pub, EventSummoned, logging.CategoryLifecycle, tick, owner, p)
}

// Dismissed records a live guardian being stored back into its slot.
func Dismissed(ctx context.Context, pub logging.Publisher, tick uint64, owner string, p SlotPayload) {
	publish(ctx, pub, EventDismissed, logging.CategoryLifecycle, tick, owner, p)
}

// Released records a slot being emptied for good.
func Released(ctx context.Context, pub logging.Publisher, tick uint64, owner string, p SlotPayload) {
	publish(ctx, pub, EventReleased, logging.CategoryLifecycle, tick, owner, p)
}

// SelfDespawned records a guardian storing itself after losing its owner.
func SelfDespawned(ctx context.Context, pub logging.Publisher, tick uint64, owner string, p SlotPayload) {
	publish(ctx, pub, EventSelfDespawned, logging.CategoryLifecycle, tick, owner, p)
}

// Died records a guardian dying in the world.
func Died(ctx context.Context, pub logging.Publisher, tick uint64, owner string, p SlotPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDied,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: owner, Kind: logging.EntityKindOwner},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryCombat,
		Payload:  p,
	})
}

// ZoneStored records a guardian snapshotted because its owner crossed a
// partition boundary.
func ZoneStored(ctx context.Context, pub logging.Publisher, tick uint64, owner string, p SlotPayload) {
	publish(ctx, pub, EventZoneStored, logging.CategoryPersistence, tick, owner, p)
}

// ArchetypeChanged records an owner retraining a guardian's role.
func ArchetypeChanged(ctx context.Context, pub logging.Publisher, tick uint64, owner string, p SlotPayload) {
	publish(ctx, pub, EventArchetypeChanged, logging.CategoryLifecycle, tick, owner, p)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, category string, tick uint64, owner string, p SlotPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: owner, Kind: logging.EntityKindOwner},
		Severity: logging.SeverityInfo,
		Category: category,
		Payload:  p,
	})
}
