package guardian

import (
	"errors"
	"testing"
	"time"
)

type coordFixture struct {
	engine *fakeEngine
	store  *memStore
	notify *memNotifier
	coord  *Coordinator
	owner  *fakeEntity
}

func newCoordFixture(t *testing.T) *coordFixture {
	t.Helper()
	engine := newFakeEngine()
	engine.templates[7] = TemplateInfo{
		ID:        7,
		Name:      "Ashfang",
		Abilities: []AbilityID{0, strikeID, healID},
	}

	owner := newFakeEntity("owner-1")
	owner.level = 20
	owner.faction = 1
	engine.addOwner("alice", owner)

	st := newMemStore()
	notify := &memNotifier{}
	coord := NewCoordinator(CoordinatorConfig{
		Engine:      engine,
		Catalog:     combatCatalog(),
		Persistence: st,
		Notifier:    notify,
		Rules:       testRules(),
		RNG:         testRNG(),
	})
	return &coordFixture{engine: engine, store: st, notify: notify, coord: coord, owner: owner}
}

func (fx *coordFixture) addCreature(handle Handle, level uint8) *fakeEntity {
	creature := newFakeEntity(handle)
	creature.kind = KindCreature
	creature.template = 7
	creature.level = level
	creature.faction = 2
	creature.pos = Vec2{X: 5}
	fx.engine.add(creature)
	return creature
}

func (fx *coordFixture) capture(t *testing.T) (int, *fakeEntity) {
	t.Helper()
	creature := fx.addCreature("wolf-1", 20)
	idx, err := fx.coord.Capture("alice", creature.handle)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	slot := fx.coord.Store("alice").Slot(idx)
	live, ok := fx.engine.entities[slot.Live]
	if !ok {
		t.Fatalf("captured guardian has no live instance")
	}
	return idx, live
}

func TestCaptureInstatesGuardian(t *testing.T) {
	fx := newCoordFixture(t)
	idx, live := fx.capture(t)

	slot := fx.coord.Store("alice").Slot(idx)
	if slot.Identity != 7 {
		t.Fatalf("identity = %d, want 7", slot.Identity)
	}
	if slot.Archetype != ArchetypeDPS {
		t.Fatalf("archetype = %v, want DPS", slot.Archetype)
	}
	// Native zero entries are skipped; order is preserved.
	if slot.Abilities[0] != strikeID || slot.Abilities[1] != healID {
		t.Fatalf("abilities = %v, want seeded [strike, heal]", slot.Abilities)
	}
	if !slot.Active() {
		t.Fatalf("slot is not active after capture")
	}
	if live.kind != KindGuardian {
		t.Fatalf("live kind = %v, want guardian", live.kind)
	}
	if len(fx.engine.despawned) != 1 || fx.engine.despawned[0] != "wolf-1" {
		t.Fatalf("source creature not removed from the world: %v", fx.engine.despawned)
	}
	if fx.store.saves == 0 {
		t.Fatalf("capture did not persist the slot")
	}
	if _, ok := fx.notify.last("changed"); !ok {
		t.Fatalf("capture did not notify")
	}
}

func TestCaptureFillsFirstEmptySlot(t *testing.T) {
	fx := newCoordFixture(t)
	store := fx.coord.Store("alice")
	store.Slot(0).Identity = 99 // occupied but inactive

	creature := fx.addCreature("wolf-1", 20)
	idx, err := fx.coord.Capture("alice", creature.handle)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if idx != 1 {
		t.Fatalf("idx = %d, want first empty slot 1", idx)
	}
}

func TestCaptureRejections(t *testing.T) {
	fx := newCoordFixture(t)

	dead := fx.addCreature("wolf-dead", 20)
	dead.alive = false
	if _, err := fx.coord.Capture("alice", dead.handle); !errors.Is(err, ErrTargetDead) {
		t.Fatalf("dead target: err = %v, want ErrTargetDead", err)
	}

	high := fx.addCreature("wolf-high", 26)
	if _, err := fx.coord.Capture("alice", high.handle); !errors.Is(err, ErrLevelTooHigh) {
		t.Fatalf("high level: err = %v, want ErrLevelTooHigh", err)
	}

	far := fx.addCreature("wolf-far", 20)
	far.pos = Vec2{X: 31}
	if _, err := fx.coord.Capture("alice", far.handle); !errors.Is(err, ErrTargetOutOfRange) {
		t.Fatalf("far target: err = %v, want ErrTargetOutOfRange", err)
	}

	busy := fx.addCreature("wolf-busy", 20)
	other := newFakeEntity("player-2")
	fx.engine.add(other)
	busy.inCombat = true
	busy.victim = other
	if _, err := fx.coord.Capture("alice", busy.handle); !errors.Is(err, ErrTargetBusy) {
		t.Fatalf("busy target: err = %v, want ErrTargetBusy", err)
	}

	elite := fx.addCreature("wolf-elite", 20)
	elite.rank = RankElite
	if _, err := fx.coord.Capture("alice", elite.handle); !errors.Is(err, ErrTargetElite) {
		t.Fatalf("elite target: err = %v, want ErrTargetElite", err)
	}
}

func TestCaptureRequiresEmptySlot(t *testing.T) {
	fx := newCoordFixture(t)
	store := fx.coord.Store("alice")
	for i := 0; i < store.Len(); i++ {
		store.Slot(i).Identity = TemplateID(100 + i)
	}
	creature := fx.addCreature("wolf-1", 20)
	if _, err := fx.coord.Capture("alice", creature.handle); !errors.Is(err, ErrNoEmptySlot) {
		t.Fatalf("err = %v, want ErrNoEmptySlot", err)
	}
}

func TestCaptureDisabledByRules(t *testing.T) {
	fx := newCoordFixture(t)
	rules := fx.coord.Rules()
	rules.Enabled = false
	fx.coord.SetRules(rules)

	creature := fx.addCreature("wolf-1", 20)
	if _, err := fx.coord.Capture("alice", creature.handle); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestDismissSummonRoundTrip(t *testing.T) {
	fx := newCoordFixture(t)
	idx, live := fx.capture(t)
	live.health = 30
	live.power = 20

	if err := fx.coord.Dismiss("alice", idx); err != nil {
		t.Fatalf("dismiss failed: %v", err)
	}
	slot := fx.coord.Store("alice").Slot(idx)
	if slot.Active() {
		t.Fatalf("slot still active after dismiss")
	}
	if !slot.Dismissed {
		t.Fatalf("dismissed flag not set")
	}
	if slot.Resources.Health != 30 || slot.Resources.Power != 20 {
		t.Fatalf("snapshot = %+v, want health 30 power 20", slot.Resources)
	}
	rec, ok := fx.store.records[storeKey("alice", idx)]
	if !ok || !rec.Dismissed {
		t.Fatalf("dismiss not persisted: %+v", rec)
	}

	// A second dismiss must fail without touching state.
	if err := fx.coord.Dismiss("alice", idx); !errors.Is(err, ErrNotActive) {
		t.Fatalf("second dismiss: err = %v, want ErrNotActive", err)
	}

	if err := fx.coord.Summon("alice", idx); err != nil {
		t.Fatalf("summon failed: %v", err)
	}
	if slot.Dismissed {
		t.Fatalf("dismissed flag survives summon")
	}
	restored := fx.engine.entities[slot.Live]
	if restored.health != 30 || restored.power != 20 {
		t.Fatalf("restored = %d/%d, want 30/20", restored.health, restored.power)
	}
}

func TestSummonClampsSnapshotToMaximums(t *testing.T) {
	fx := newCoordFixture(t)
	idx, _ := fx.capture(t)
	if err := fx.coord.Dismiss("alice", idx); err != nil {
		t.Fatalf("dismiss failed: %v", err)
	}
	slot := fx.coord.Store("alice").Slot(idx)
	slot.Resources.Health = 9999
	slot.Resources.Power = 9999

	if err := fx.coord.Summon("alice", idx); err != nil {
		t.Fatalf("summon failed: %v", err)
	}
	restored := fx.engine.entities[slot.Live]
	if restored.health != restored.maxHealth {
		t.Fatalf("health = %d, want clamp to %d", restored.health, restored.maxHealth)
	}
	if restored.power != restored.maxPower {
		t.Fatalf("power = %d, want clamp to %d", restored.power, restored.maxPower)
	}
}

func TestSummonErrors(t *testing.T) {
	fx := newCoordFixture(t)
	if err := fx.coord.Summon("alice", 0); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty slot: err = %v, want ErrEmpty", err)
	}
	idx, _ := fx.capture(t)
	if err := fx.coord.Summon("alice", idx); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("active slot: err = %v, want ErrAlreadyActive", err)
	}
	if err := fx.coord.Summon("alice", 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bad index: err = %v, want ErrNotFound", err)
	}
}

func TestSpawnCarriesRuleScaling(t *testing.T) {
	fx := newCoordFixture(t)
	fx.capture(t)

	spec := fx.engine.lastSpawn
	if spec.HealthPct != fx.coord.rules.HealthPct || spec.DamagePct != fx.coord.rules.DamagePct {
		t.Fatalf("spawn scaling = %d/%d, want rules %d/%d",
			spec.HealthPct, spec.DamagePct, fx.coord.rules.HealthPct, fx.coord.rules.DamagePct)
	}
}

func TestDeathKeepsSlotWithZeroHealth(t *testing.T) {
	fx := newCoordFixture(t)
	idx, live := fx.capture(t)

	live.health = 0
	live.alive = false
	fx.coord.HandleDied(live.handle)

	slot := fx.coord.Store("alice").Slot(idx)
	if !slot.Occupied() || slot.Active() {
		t.Fatalf("slot state after death: occupied=%v active=%v", slot.Occupied(), slot.Active())
	}
	if slot.Resources.Health != 0 {
		t.Fatalf("health snapshot = %d, want 0", slot.Resources.Health)
	}
	if !slot.Dismissed {
		t.Fatalf("dead slot not marked dismissed")
	}
	if ev, ok := fx.notify.last("died"); !ok || ev.text != "Ashfang" {
		t.Fatalf("death notification = %+v", ev)
	}

	// Re-entry skips the dead slot; it stays stored until summoned.
	fx.coord.OwnerEntered("alice")
	if slot.Active() {
		t.Fatalf("re-entry raised a dead guardian")
	}

	// Summon revives at minimum health, never at the lethal zero snapshot.
	if err := fx.coord.Summon("alice", idx); err != nil {
		t.Fatalf("summon failed: %v", err)
	}
	restored := fx.engine.entities[slot.Live]
	if restored.health != 1 {
		t.Fatalf("revived health = %d, want 1", restored.health)
	}
}

func TestReleaseClearsSlotAndRecord(t *testing.T) {
	fx := newCoordFixture(t)
	idx, live := fx.capture(t)

	if err := fx.coord.Release("alice", idx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	slot := fx.coord.Store("alice").Slot(idx)
	if slot.Occupied() {
		t.Fatalf("slot still occupied after release")
	}
	if _, ok := fx.store.records[storeKey("alice", idx)]; ok {
		t.Fatalf("record survives release")
	}
	if _, ok := fx.engine.entities[live.handle]; ok {
		t.Fatalf("live instance survives release")
	}
	if _, ok := fx.notify.last("cleared"); !ok {
		t.Fatalf("release did not notify")
	}
	if err := fx.coord.Release("alice", idx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("second release: err = %v, want ErrEmpty", err)
	}
}

func TestTeachAndUnlearn(t *testing.T) {
	fx := newCoordFixture(t)
	idx, _ := fx.capture(t)
	store := fx.coord.Store("alice")

	if err := fx.coord.Teach("alice", idx, 3, buffID); err != nil {
		t.Fatalf("teach failed: %v", err)
	}
	if store.Slot(idx).Abilities[3] != buffID {
		t.Fatalf("slot ability not updated")
	}

	if err := fx.coord.Teach("alice", idx, 0, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown ability: err = %v, want ErrNotFound", err)
	}
	if err := fx.coord.Teach("alice", idx, -1, buffID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bad position: err = %v, want ErrNotFound", err)
	}

	if err := fx.coord.Unlearn("alice", idx, 3); err != nil {
		t.Fatalf("unlearn failed: %v", err)
	}
	if store.Slot(idx).Abilities[3] != 0 {
		t.Fatalf("slot ability not cleared")
	}
	if err := fx.coord.Unlearn("alice", idx, 3); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty position: err = %v, want ErrEmpty", err)
	}
}

func TestTeachRejectsForeignResource(t *testing.T) {
	fx := newCoordFixture(t)
	idx, _ := fx.capture(t)

	catalog := combatCatalog()
	catalog[50] = AbilityInfo{ID: 50, Name: "Enrage", Resource: PowerRage, Cost: 10}
	fx.coord.catalog = catalog

	// The fake engine spawns mana guardians; rage costs cannot be paid.
	if err := fx.coord.Teach("alice", idx, 0, 50); !errors.Is(err, ErrResourceMismatch) {
		t.Fatalf("err = %v, want ErrResourceMismatch", err)
	}
}

func TestTeachStaleHandleSelfHeals(t *testing.T) {
	fx := newCoordFixture(t)
	idx, live := fx.capture(t)
	delete(fx.engine.entities, live.handle)

	if err := fx.coord.Teach("alice", idx, 0, buffID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("err = %v, want ErrNotActive", err)
	}
	if fx.coord.Store("alice").Slot(idx).Live != "" {
		t.Fatalf("stale live reference not cleared")
	}
}

func TestSetArchetypePersists(t *testing.T) {
	fx := newCoordFixture(t)
	idx, _ := fx.capture(t)

	if err := fx.coord.SetArchetype("alice", idx, ArchetypeHealer); err != nil {
		t.Fatalf("set archetype failed: %v", err)
	}
	if got := fx.coord.Store("alice").Slot(idx).Archetype; got != ArchetypeHealer {
		t.Fatalf("archetype = %v, want healer", got)
	}
	rec := fx.store.records[storeKey("alice", idx)]
	if rec.Archetype != ArchetypeHealer {
		t.Fatalf("persisted archetype = %v, want healer", rec.Archetype)
	}
}

func TestOwnerMovedSamePartitionRepositions(t *testing.T) {
	fx := newCoordFixture(t)
	idx, live := fx.capture(t)

	fx.coord.OwnerMoved("alice", 0, Vec2{X: 500, Y: 500})

	slot := fx.coord.Store("alice").Slot(idx)
	if !slot.Active() {
		t.Fatalf("same-partition move deactivated the guardian")
	}
	if len(live.teleports) == 0 {
		t.Fatalf("guardian not repositioned")
	}
}

func TestOwnerMovedCrossPartitionStoresAndReentryRestores(t *testing.T) {
	fx := newCoordFixture(t)
	idx, live := fx.capture(t)
	live.health = 42

	fx.coord.OwnerMoved("alice", 9, Vec2{X: 500, Y: 500})

	slot := fx.coord.Store("alice").Slot(idx)
	if slot.Active() {
		t.Fatalf("cross-partition move left the guardian live")
	}
	if slot.Dismissed {
		t.Fatalf("zone transfer must not set the dismissed flag")
	}
	if slot.Resources.Health != 42 {
		t.Fatalf("snapshot = %d, want 42", slot.Resources.Health)
	}

	fx.coord.OwnerEntered("alice")
	if !slot.Active() {
		t.Fatalf("re-entry did not respawn the guardian")
	}
	restored := fx.engine.entities[slot.Live]
	if restored.health != 42 {
		t.Fatalf("restored health = %d, want 42", restored.health)
	}
}

func TestOwnerEnteredSkipsDismissed(t *testing.T) {
	fx := newCoordFixture(t)
	idx, _ := fx.capture(t)
	if err := fx.coord.Dismiss("alice", idx); err != nil {
		t.Fatalf("dismiss failed: %v", err)
	}

	fx.coord.OwnerEntered("alice")

	if fx.coord.Store("alice").Slot(idx).Active() {
		t.Fatalf("dismissed guardian respawned on re-entry")
	}
}

func TestOwnerDisconnectedPersistsAndDespawns(t *testing.T) {
	fx := newCoordFixture(t)
	idx, live := fx.capture(t)
	live.health = 77

	fx.coord.OwnerDisconnected("alice")

	if _, ok := fx.engine.entities[live.handle]; ok {
		t.Fatalf("live instance survives disconnect")
	}
	rec, ok := fx.store.records[storeKey("alice", idx)]
	if !ok || rec.Health != 77 {
		t.Fatalf("disconnect snapshot not persisted: %+v", rec)
	}
	if _, ok := fx.coord.owners["alice"]; ok {
		t.Fatalf("owner state retained after disconnect")
	}
}

func TestLoadOwnerRestoresRecords(t *testing.T) {
	fx := newCoordFixture(t)
	fx.store.records[storeKey("alice", 0)] = Record{
		Identity:  7,
		Level:     18,
		Archetype: ArchetypeTank,
		Abilities: [MaxAbilitySlots]AbilityID{strikeID},
		Health:    55,
		Dismissed: true,
	}
	// Unknown archetype values from older rows fall back to DPS.
	fx.store.records[storeKey("alice", 2)] = Record{Identity: 7, Level: 18, Archetype: 99}

	if err := fx.coord.LoadOwner("alice"); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	store := fx.coord.Store("alice")
	slot := store.Slot(0)
	if !slot.Occupied() || slot.Active() {
		t.Fatalf("slot 0: occupied=%v active=%v", slot.Occupied(), slot.Active())
	}
	if slot.Archetype != ArchetypeTank || slot.Resources.Health != 55 || !slot.Dismissed {
		t.Fatalf("slot 0 restored wrong: %+v", slot)
	}
	if store.Slot(2).Archetype != ArchetypeDPS {
		t.Fatalf("invalid archetype not defaulted")
	}
}

func TestSpawnFromTemplate(t *testing.T) {
	fx := newCoordFixture(t)

	if _, err := fx.coord.SpawnFromTemplate("alice", 999, 20); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown template: err = %v, want ErrNotFound", err)
	}
	idx, err := fx.coord.SpawnFromTemplate("alice", 7, 18)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	slot := fx.coord.Store("alice").Slot(idx)
	if !slot.Active() || slot.Level != 18 {
		t.Fatalf("slot = %+v, want active level 18", slot)
	}
}

func TestTickSelfDespawnStoresGuardian(t *testing.T) {
	fx := newCoordFixture(t)
	rules := fx.coord.Rules()
	rules.OwnerGrace = 250 * time.Millisecond
	fx.coord.SetRules(rules)
	idx, live := fx.capture(t)
	// Pin the pool so idle regen does not move the snapshot.
	live.maxHealth = 33
	live.health = 33

	delete(fx.engine.entities, fx.owner.handle)
	for i := 0; i < 6; i++ {
		fx.coord.Tick(100 * time.Millisecond)
	}

	slot := fx.coord.Store("alice").Slot(idx)
	if slot.Active() {
		t.Fatalf("guardian still live after owner grace expired")
	}
	if !slot.Occupied() {
		t.Fatalf("self despawn cleared the slot")
	}
	if slot.Resources.Health != 33 {
		t.Fatalf("snapshot = %d, want 33", slot.Resources.Health)
	}
}

func TestViewsReportLiveStats(t *testing.T) {
	fx := newCoordFixture(t)
	_, live := fx.capture(t)
	live.health = 66

	views := fx.coord.Views("alice")
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
	if views[0].Health != 66 || views[0].MaxHealth != live.maxHealth {
		t.Fatalf("view = %+v, want live stats", views[0])
	}
	if views[0].Name != "Ashfang" {
		t.Fatalf("view name = %q", views[0].Name)
	}
}
