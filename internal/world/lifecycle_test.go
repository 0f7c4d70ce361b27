package world

import (
	"testing"
	"time"

	"wildkeep/server/internal/guardian"
)

func newLifecycleFixture(t *testing.T) (*World, *guardian.Coordinator) {
	t.Helper()
	w := newTestWorld()
	coord := guardian.NewCoordinator(guardian.CoordinatorConfig{
		Engine: w,
		Catalog: guardian.CatalogFunc(func(guardian.AbilityID) (guardian.AbilityInfo, bool) {
			return guardian.AbilityInfo{}, false
		}),
		Rules: guardian.DefaultRules(),
	})
	w.SetHooks(Hooks{
		DamageDealt: coord.HandleDamageDealt,
		Killed:      coord.HandleKill,
		Died:        coord.HandleDied,
		Summoned:    coord.HandleSummoned,
	})
	return w, coord
}

func TestDeadGuardianRevivesOnSummon(t *testing.T) {
	w, coord := newLifecycleFixture(t)
	w.SpawnPlayer("alice", 20, guardian.Vec2{}, 0, 1)
	c, err := w.SpawnCreature(wolfTemplate, 5, guardian.Vec2{X: 5}, 0)
	if err != nil {
		t.Fatalf("SpawnCreature: %v", err)
	}

	idx, err := coord.Capture("alice", c.Handle())
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	slot := coord.Store("alice").Slot(idx)
	ent, ok := w.Resolve(slot.Live)
	if !ok {
		t.Fatalf("captured guardian not live")
	}

	// Lethal hit through the world fires the Died hook.
	ent.SetHealth(0)

	if slot.Active() {
		t.Fatalf("death left the slot bound to handle %q", slot.Live)
	}
	if !slot.Dismissed || slot.Resources.Health != 0 {
		t.Fatalf("death snapshot = dismissed %v health %d", slot.Dismissed, slot.Resources.Health)
	}

	// Zone re-entry must not raise a corpse.
	coord.OwnerEntered("alice")
	if slot.Active() {
		t.Fatalf("re-entry respawned a dead guardian")
	}

	if err := coord.Summon("alice", idx); err != nil {
		t.Fatalf("summon failed: %v", err)
	}
	revived, ok := w.Resolve(slot.Live)
	if !ok {
		t.Fatalf("summon did not bind a live instance")
	}
	if !revived.Alive() {
		t.Fatalf("slot is active but the instance is dead")
	}
	if revived.Health() != 1 {
		t.Fatalf("revived health = %d, want 1", revived.Health())
	}
}

func TestGuardianDeathInCombatStoresSlot(t *testing.T) {
	w, coord := newLifecycleFixture(t)
	w.SpawnPlayer("alice", 20, guardian.Vec2{}, 0, 1)
	prey, err := w.SpawnCreature(wolfTemplate, 5, guardian.Vec2{X: 5}, 0)
	if err != nil {
		t.Fatalf("SpawnCreature: %v", err)
	}

	idx, err := coord.Capture("alice", prey.Handle())
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	slot := coord.Store("alice").Slot(idx)

	g, ok := w.Resolve(slot.Live)
	if !ok {
		t.Fatalf("guardian not live after capture")
	}
	killer, err := w.SpawnCreature(wolfTemplate, 5, g.Position(), 0)
	if err != nil {
		t.Fatalf("SpawnCreature: %v", err)
	}
	g.SetHealth(1)
	if !killer.Attack(g) {
		t.Fatalf("creature refused to attack the guardian")
	}
	w.Step(2 * time.Second)

	if g.Alive() {
		t.Fatalf("guardian survived a lethal swing at 1 health")
	}
	if slot.Active() || !slot.Dismissed {
		t.Fatalf("combat death left slot active=%v dismissed=%v", slot.Active(), slot.Dismissed)
	}
	if !slot.Occupied() {
		t.Fatalf("combat death cleared the slot")
	}
}
