package guardian

import "time"

// AbilityInfo is the read-only catalog view the controller needs to pick and
// commit a cast. Positivity and the effect flags drive category matching;
// the three recovery durations feed the cooldown commit.
type AbilityInfo struct {
	ID           AbilityID
	Name         string
	Positive     bool
	CombatUsable bool
	// Heal marks a positive ability with a direct healing effect.
	Heal bool
	// Periodic marks damage-over-time style effects; the controller will
	// not reapply one that is already active on the target from this
	// caster.
	Periodic bool
	// Persistent marks abilities that leave a lasting aura on the target.
	// Buff and debuff selection only considers persistent abilities.
	Persistent bool
	// DirectDamage marks pure damage abilities, which are never selected
	// as debuffs even when they leave an aura.
	DirectDamage bool

	Resource PowerKind
	Cost     uint32
	Range    float64

	Cooldown         time.Duration
	CategoryCooldown time.Duration
	ChargeCooldown   time.Duration
}

// Catalog resolves ability identifiers. Implementations are read-only and
// safe to share across controllers.
type Catalog interface {
	Lookup(id AbilityID) (AbilityInfo, bool)
}

// CatalogFunc adapts a lookup function to the Catalog interface.
type CatalogFunc func(id AbilityID) (AbilityInfo, bool)

func (f CatalogFunc) Lookup(id AbilityID) (AbilityInfo, bool) {
	return f(id)
}
