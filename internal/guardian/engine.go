package guardian

import "time"

// TemplateInfo is the bestiary view consumed at capture and summon time.
type TemplateInfo struct {
	ID      TemplateID
	Name    string
	Rank    CreatureRank
	Critter bool
	// Abilities lists the creature's native ability ids in authoring
	// order. Capture seeds the guardian's ability slots from the first
	// non-zero entries.
	Abilities []AbilityID
}

// SpawnSpec describes a guardian instance to bring into the world. The
// engine derives faction and power pool from the owner and template.
type SpawnSpec struct {
	Template     TemplateID
	Level        uint8
	Owner        OwnerID
	Position     Vec2
	VisualRef    uint32
	EquipmentRef uint32
	// HealthPct and DamagePct scale maximum health and base damage at
	// spawn; 100 means template value.
	HealthPct uint32
	DamagePct uint32
	// Duration despawns the instance after the given time; zero means the
	// instance lives until explicitly despawned.
	Duration time.Duration
}

// Entity is the world engine's view of one live unit. All lifetime is owned
// by the engine; holders keep handles, never entities, across ticks.
type Entity interface {
	Handle() Handle
	Name() string
	Template() TemplateID
	Kind() EntityKind
	Rank() CreatureRank
	Critter() bool
	Level() uint8
	Alive() bool
	Position() Vec2
	Partition() PartitionID

	Health() uint32
	MaxHealth() uint32
	SetHealth(v uint32)
	PowerKind() PowerKind
	Power() uint32
	MaxPower() uint32
	SetPower(v uint32)

	Faction() FactionID
	SetFaction(f FactionID)

	InCombat() bool
	// EngageCombat flags both sides in-combat before the first swing
	// lands; the per-tick routines rely on the engine's combat flag.
	EngageCombat(target Entity)
	Victim() (Entity, bool)
	Attackers() []Entity
	CanAttack(target Entity) bool
	Attack(target Entity) bool
	AttackStop()
	AddThreat(target Entity, amount float64)
	ThreatTargets() []Entity
	ClearThreat()

	HasAura(id AbilityID) bool
	HasAuraFrom(id AbilityID, caster Handle) bool
	Cast(target Entity, id AbilityID, info AbilityInfo) bool

	Follow(target Entity, dist, angle float64)
	Following() bool
	Chase(target Entity)
	StopMoving()
	Teleport(pos Vec2)
	FaceToward(target Entity)

	// Loot and credit attribution; no-ops on entities that carry neither.
	SetLootRecipient(owner OwnerID)
	LowerDamageRequirement(amount uint32)
}

// Engine is the produced-to world collaborator: live-entity registry plus
// spawn, despawn, and geometry helpers. The guardian core calls it only from
// the simulation goroutine.
type Engine interface {
	// Resolve looks a handle up in the live registry. A false result means
	// the entity despawned; callers treat that as absence, not an error.
	Resolve(h Handle) (Entity, bool)
	// OwnerEntity resolves the owning agent's live entity.
	OwnerEntity(owner OwnerID) (Entity, bool)
	Template(id TemplateID) (TemplateInfo, bool)
	Spawn(spec SpawnSpec) (Entity, error)
	Despawn(h Handle)
	// ClosePoint returns a standable position at the given distance and
	// angle from the entity, used for fan-out spawn and teleport targets.
	ClosePoint(around Entity, dist, angle float64) Vec2
	// ClosePointAt is ClosePoint anchored at a raw position, used when the
	// anchor entity is mid-teleport itself.
	ClosePointAt(pos Vec2, dist, angle float64) Vec2
}
