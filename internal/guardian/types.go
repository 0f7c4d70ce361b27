package guardian

// OwnerID identifies the player-equivalent agent that owns captured guardians.
type OwnerID string

// TemplateID identifies a creature template in the world's bestiary. Zero
// marks an empty slot.
type TemplateID uint32

// AbilityID identifies an ability in the catalog. Zero marks an empty ability
// slot.
type AbilityID uint32

// Handle identifies a live spawned entity. Handles are opaque and owned by
// the world engine; a handle that no longer resolves means the entity is
// gone.
type Handle string

// PartitionID identifies a world partition. Live instances cannot follow an
// owner across partitions and must be snapshotted and respawned instead.
type PartitionID uint32

// FactionID identifies a combat faction.
type FactionID uint32

// PowerKind enumerates the resource pools a guardian or ability may use.
type PowerKind uint8

const (
	PowerNone PowerKind = iota
	PowerMana
	PowerRage
	PowerEnergy
	PowerFocus
	// PowerHealth marks abilities paid with health; any guardian can use
	// them regardless of its native pool.
	PowerHealth
)

func (p PowerKind) String() string {
	switch p {
	case PowerMana:
		return "mana"
	case PowerRage:
		return "rage"
	case PowerEnergy:
		return "energy"
	case PowerFocus:
		return "focus"
	case PowerHealth:
		return "health"
	default:
		return "none"
	}
}

// EntityKind classifies live entities for capture validation and targeting.
type EntityKind uint8

const (
	KindCreature EntityKind = iota
	KindPlayer
	KindGuardian
	KindPet
	KindSummon
)

// CreatureRank mirrors the bestiary rank used by the capture gates.
type CreatureRank uint8

const (
	RankNormal CreatureRank = iota
	RankRare
	RankElite
	RankRareElite
	RankWorldBoss
)

// Vec2 is a 2D world position.
type Vec2 struct {
	X float64
	Y float64
}
