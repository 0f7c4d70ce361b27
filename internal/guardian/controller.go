package guardian

import (
	"math/rand"
	"time"
)

// castKind selects the category filter for one ability-selection step.
type castKind uint8

const (
	castOffensive castKind = iota
	castHeal
	castBuff
	castDebuff
)

// TickResult reports controller-fatal outcomes to the coordinator. Self
// despawn is the only condition that destroys a guardian autonomously.
type TickResult struct {
	SelfDespawn bool
}

// ControllerConfig wires one controller to its live instance.
type ControllerConfig struct {
	Engine    Engine
	Catalog   Catalog
	Rules     Rules
	RNG       *rand.Rand
	Owner     OwnerID
	SlotIndex int
	Store     *SlotStore
	Self      Handle
	Archetype Archetype
	Abilities [MaxAbilitySlots]AbilityID
}

// Controller is the per-tick behavior state machine bound to one live
// guardian instance. Exactly one controller exists per active guardian; it
// is created at spawn and discarded with the instance at despawn, together
// with its cooldowns and subordinate tracking.
//
// All methods run on the simulation goroutine. The shared SlotStore is read
// for cooperative threat, heal, and buff scans across the owner's guardians;
// a slot that empties mid-scan is treated as absent, never as an error.
type Controller struct {
	engine  Engine
	catalog Catalog
	rules   Rules
	rng     *rand.Rand

	owner     OwnerID
	slotIndex int
	store     *SlotStore
	self      Handle

	archetype Archetype
	abilities [MaxAbilitySlots]AbilityID
	cooldowns *CooldownTracker

	// target holds the current hostile's handle, empty while idle.
	target Handle

	// ownerEnt is a weak reference, re-resolved on the recheck timer. The
	// owner's lifetime belongs to the world engine.
	ownerEnt       Entity
	sinceOwnerSeen time.Duration

	ownerTimer time.Duration
	scanTimer  time.Duration
	regenTimer time.Duration
	auditTimer time.Duration

	// subordinates tracks transient entities this guardian summoned, only
	// to keep them off the owner's back.
	subordinates map[Handle]struct{}
}

// NewController binds a controller to a freshly spawned instance.
func NewController(cfg ControllerConfig) *Controller {
	rng := cfg.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	c := &Controller{
		engine:       cfg.Engine,
		catalog:      cfg.Catalog,
		rules:        cfg.Rules,
		rng:          rng,
		owner:        cfg.Owner,
		slotIndex:    cfg.SlotIndex,
		store:        cfg.Store,
		self:         cfg.Self,
		archetype:    cfg.Archetype,
		abilities:    cfg.Abilities,
		cooldowns:    NewCooldownTracker(),
		ownerTimer:   cfg.Rules.OwnerRecheck,
		scanTimer:    cfg.Rules.ThreatScan,
		regenTimer:   cfg.Rules.RegenInterval,
		auditTimer:   cfg.Rules.SubordinateAudit,
		subordinates: make(map[Handle]struct{}),
	}
	if ent, ok := cfg.Engine.OwnerEntity(cfg.Owner); ok {
		c.ownerEnt = ent
	}
	return c
}

// Self returns the handle of the bound live instance.
func (c *Controller) Self() Handle {
	return c.self
}

// Target returns the current hostile's handle, empty while idle.
func (c *Controller) Target() Handle {
	return c.target
}

// Archetype returns the active combat archetype.
func (c *Controller) Archetype() Archetype {
	return c.archetype
}

// SetArchetype hot-swaps the combat routine without a respawn and re-issues
// follow movement at the new archetype's distance when out of combat.
func (c *Controller) SetArchetype(a Archetype) {
	if !a.Valid() || a == c.archetype {
		return
	}
	c.archetype = a
	if c.target != "" {
		return
	}
	if self, ok := c.engine.Resolve(c.self); ok {
		self.StopMoving()
		c.follow(self)
	}
}

// Abilities returns the live ability bar.
func (c *Controller) Abilities() [MaxAbilitySlots]AbilityID {
	return c.abilities
}

// SetAbility hot-updates one ability slot on the running instance.
func (c *Controller) SetAbility(index int, id AbilityID) {
	if index < 0 || index >= MaxAbilitySlots {
		return
	}
	c.abilities[index] = id
}

// Cooldowns exposes the tracker for snapshot and inspection.
func (c *Controller) Cooldowns() *CooldownTracker {
	return c.cooldowns
}

// UpdateRules swaps the configuration snapshot on a running controller
// after a rules reload.
func (c *Controller) UpdateRules(r Rules) {
	c.rules = r
}

// Tick runs one simulation step. Timers are independent countdowns; each
// fires and resets on its own schedule.
func (c *Controller) Tick(elapsed time.Duration) TickResult {
	self, ok := c.engine.Resolve(c.self)
	if !ok || !self.Alive() {
		// Death and despawn are handled by the coordinator's hooks.
		return TickResult{}
	}

	c.cooldowns.Advance(elapsed)
	c.sinceOwnerSeen += elapsed

	c.ownerTimer -= elapsed
	if c.ownerTimer <= 0 {
		c.ownerTimer = c.rules.OwnerRecheck
		if ent, found := c.engine.OwnerEntity(c.owner); found {
			c.ownerEnt = ent
			c.sinceOwnerSeen = 0
		} else {
			c.ownerEnt = nil
			if c.sinceOwnerSeen > c.rules.OwnerGrace {
				return TickResult{SelfDespawn: true}
			}
		}
		// Hard leash: teleport instead of pathing so the guardian never
		// stays stuck behind geometry or zone seams.
		if c.ownerEnt != nil && distance(self.Position(), c.ownerEnt.Position()) > c.rules.TeleportLeash {
			dist, angle := FollowPlacement(c.rules, c.archetype, c.slotIndex)
			self.Teleport(c.engine.ClosePoint(c.ownerEnt, dist, angle))
		}
	}

	if victim, engaged := c.combatVictim(self); engaged {
		c.runCombat(self, victim)
	} else {
		c.runIdle(self, elapsed)
	}

	c.auditSubordinates(self, elapsed)
	return TickResult{}
}

// combatVictim resolves the current target and applies the disengage rules:
// dead target, illegal target, or owner beyond the combat leash.
func (c *Controller) combatVictim(self Entity) (Entity, bool) {
	if c.target == "" {
		return nil, false
	}
	victim, ok := c.engine.Resolve(c.target)
	if !ok || !victim.Alive() || !self.CanAttack(victim) {
		c.disengage(self)
		return nil, false
	}
	if c.ownerEnt != nil && distance(self.Position(), c.ownerEnt.Position()) > c.rules.CombatLeash {
		c.disengage(self)
		return nil, false
	}
	return victim, true
}

func (c *Controller) disengage(self Entity) {
	c.target = ""
	self.AttackStop()
	self.StopMoving()
	c.follow(self)
}

func (c *Controller) runCombat(self, victim Entity) {
	switch c.archetype {
	case ArchetypeTank:
		c.runTank(self, victim)
	case ArchetypeHealer:
		c.runHealer(self, victim)
	default:
		c.castFirstEligible(castOffensive, self, victim)
	}
}

// runTank piles threat onto hostiles that turned on the owner or a healer
// ally, then buffs itself and works the target.
func (c *Controller) runTank(self, victim Entity) {
	for _, hostile := range self.ThreatTargets() {
		tv, ok := hostile.Victim()
		if !ok {
			continue
		}
		if c.isOwner(tv) || c.isHealerAlly(tv) {
			self.AddThreat(hostile, c.rules.ProtectThreatAdd)
		}
	}
	c.castFirstEligible(castBuff, self, self)
	c.castFirstEligible(castOffensive, self, victim)
}

// runHealer encodes support-over-damage as a hard rule: the first step that
// produces an action ends the tick.
func (c *Controller) runHealer(self, victim Entity) {
	if c.healMostWounded(self) {
		return
	}
	if c.castFirstEligible(castBuff, self, self) {
		return
	}
	if c.buffAllies(self) {
		return
	}
	if c.castFirstEligible(castDebuff, self, victim) {
		return
	}
	c.castFirstEligible(castOffensive, self, victim)
}

func (c *Controller) runIdle(self Entity, elapsed time.Duration) {
	c.regenTimer -= elapsed
	if c.regenTimer <= 0 {
		c.regenTimer = c.rules.RegenInterval
		c.regenerate(self)
	}

	c.scanTimer -= elapsed
	if c.scanTimer <= 0 {
		c.scanTimer = c.rules.ThreatScan
		if c.scanThreats(self) {
			return
		}
	}

	if !self.Following() {
		c.follow(self)
	}
}

// regenerate restores a fixed percentage of the missing pool, never less
// than one point on a non-full pool.
func (c *Controller) regenerate(self Entity) {
	if h, max := self.Health(), self.MaxHealth(); h < max {
		amount := (max - h) * c.rules.RegenPct / 100
		if amount < 1 {
			amount = 1
		}
		self.SetHealth(minUint32(h+amount, max))
	}
	if maxPower := self.MaxPower(); maxPower > 0 {
		if p := self.Power(); p < maxPower {
			amount := (maxPower - p) * c.rules.RegenPct / 100
			if amount < 1 {
				amount = 1
			}
			self.SetPower(minUint32(p+amount, maxPower))
		}
	}
}

// scanThreats walks the engagement priorities in strict order; the first
// match wins. The healer's owner-heal check runs last and does not engage.
func (c *Controller) scanThreats(self Entity) bool {
	owner := c.ownerEnt
	if owner == nil {
		return false
	}

	if c.archetype == ArchetypeTank {
		if att, ok := firstLiveAttacker(owner); ok && self.CanAttack(att) {
			// Initial bias so the tank holds aggro it just picked up.
			self.AddThreat(att, c.rules.TankThreatBias)
			c.engage(self, att)
			return true
		}
	}
	if att, ok := firstLiveAttacker(owner); ok && self.CanAttack(att) {
		c.engage(self, att)
		return true
	}
	if v, ok := owner.Victim(); ok && self.CanAttack(v) {
		c.engage(self, v)
		return true
	}
	for _, idx := range c.store.ActiveIndices() {
		if idx == c.slotIndex {
			continue
		}
		slot := c.store.Slot(idx)
		ally, ok := c.engine.Resolve(slot.Live)
		if !ok || !ally.Alive() {
			continue
		}
		if att, ok := firstLiveAttacker(ally); ok && self.CanAttack(att) {
			c.engage(self, att)
			return true
		}
	}
	if att, ok := firstLiveAttacker(self); ok && self.CanAttack(att) {
		self.AddThreat(att, c.rules.OwnAttackerBias)
		c.engage(self, att)
		return true
	}
	if c.archetype == ArchetypeHealer && owner.Alive() && healthPct(owner) < c.rules.OwnerHealPct {
		c.castFirstEligible(castHeal, self, owner)
	}
	return false
}

// engage forces mutual combat marking before the first swing lands; the
// archetype routines depend on the engine's combat flag staying set.
func (c *Controller) engage(self, target Entity) {
	if !self.CanAttack(target) {
		return
	}
	if !self.InCombat() {
		self.EngageCombat(target)
	}
	if self.Attack(target) {
		if c.archetype == ArchetypeHealer {
			// Healers hold position near the owner and only face the
			// fight.
			self.FaceToward(target)
		} else {
			self.Chase(target)
		}
	}
	c.target = target.Handle()
}

func (c *Controller) follow(self Entity) {
	if c.ownerEnt == nil {
		return
	}
	dist, angle := FollowPlacement(c.rules, c.archetype, c.slotIndex)
	self.Follow(c.ownerEnt, dist, angle)
}

// auditSubordinates prunes dead summons and strips aggression from any that
// turned on the owner, resyncing them to the owner's faction and pointing
// them at the guardian's own fight when there is one.
func (c *Controller) auditSubordinates(self Entity, elapsed time.Duration) {
	c.auditTimer -= elapsed
	if c.auditTimer > 0 {
		return
	}
	c.auditTimer = c.rules.SubordinateAudit
	if len(c.subordinates) == 0 || c.ownerEnt == nil {
		return
	}
	for h := range c.subordinates {
		sub, ok := c.engine.Resolve(h)
		if !ok || !sub.Alive() {
			delete(c.subordinates, h)
			continue
		}
		v, ok := sub.Victim()
		if !ok || !c.isOwner(v) {
			continue
		}
		sub.ClearThreat()
		sub.AttackStop()
		sub.SetFaction(c.ownerEnt.Faction())
		if c.target != "" {
			if victim, ok := c.engine.Resolve(c.target); ok {
				sub.Attack(victim)
			}
		}
	}
}

// healMostWounded applies the heal priority: the owner outranks everything
// while below the owner threshold; otherwise the most wounded of self and
// fellow guardians below their thresholds. At most one cast attempt.
func (c *Controller) healMostWounded(self Entity) bool {
	if owner := c.ownerEnt; owner != nil && owner.Alive() && healthPct(owner) < c.rules.OwnerHealPct {
		return c.castFirstEligible(castHeal, self, owner)
	}
	var best Entity
	var bestPct float64
	if pct := healthPct(self); pct < c.rules.SelfHealPct {
		best, bestPct = self, pct
	}
	for _, idx := range c.store.ActiveIndices() {
		if idx == c.slotIndex {
			continue
		}
		ally, ok := c.engine.Resolve(c.store.Slot(idx).Live)
		if !ok || !ally.Alive() {
			continue
		}
		pct := healthPct(ally)
		if pct >= c.rules.AllyHealPct {
			continue
		}
		if best == nil || pct < bestPct {
			best, bestPct = ally, pct
		}
	}
	if best == nil {
		return false
	}
	return c.castFirstEligible(castHeal, self, best)
}

// buffAllies offers one persistent beneficial effect to the first ally
// lacking it, owner first, then fellow guardians by slot order.
func (c *Controller) buffAllies(self Entity) bool {
	if owner := c.ownerEnt; owner != nil && owner.Alive() {
		if c.castFirstEligible(castBuff, self, owner) {
			return true
		}
	}
	for _, idx := range c.store.ActiveIndices() {
		if idx == c.slotIndex {
			continue
		}
		ally, ok := c.engine.Resolve(c.store.Slot(idx).Live)
		if !ok || !ally.Alive() {
			continue
		}
		if c.castFirstEligible(castBuff, self, ally) {
			return true
		}
	}
	return false
}

// castFirstEligible scans the ability bar in index order and casts the first
// entry passing the category, cooldown, range, and resource checks. Only the
// first occurrence of a duplicate id is considered. At most one ability is
// cast per step per tick.
func (c *Controller) castFirstEligible(kind castKind, self, target Entity) bool {
	if target == nil {
		return false
	}
	seen := make(map[AbilityID]struct{}, MaxAbilitySlots)
	for _, id := range c.abilities {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		info, ok := c.catalog.Lookup(id)
		if !ok {
			continue
		}
		if !eligibleForKind(kind, info, self, target) {
			continue
		}
		if !c.cooldowns.Ready(id) {
			continue
		}
		if info.Range > 0 && distance(self.Position(), target.Position()) > info.Range {
			continue
		}
		if !canAfford(self, info) {
			continue
		}
		if !self.Cast(target, id, info) {
			continue
		}
		c.commitCooldown(id, info)
		return true
	}
	return false
}

func eligibleForKind(kind castKind, info AbilityInfo, self, target Entity) bool {
	switch kind {
	case castOffensive:
		if info.Positive || !info.CombatUsable {
			return false
		}
		// Periodic effects are not reapplied while our own is running.
		if info.Periodic && target.HasAuraFrom(info.ID, self.Handle()) {
			return false
		}
		return true
	case castHeal:
		return info.Positive && info.Heal
	case castBuff:
		return info.Positive && !info.Heal && info.Persistent && !target.HasAura(info.ID)
	case castDebuff:
		if info.Positive || !info.Persistent || info.DirectDamage || !info.CombatUsable {
			return false
		}
		return !target.HasAura(info.ID)
	default:
		return false
	}
}

func canAfford(self Entity, info AbilityInfo) bool {
	if info.Cost == 0 {
		return true
	}
	if info.Resource == PowerHealth {
		return self.Health() > info.Cost
	}
	if info.Resource != self.PowerKind() {
		return false
	}
	return self.Power() >= info.Cost
}

// commitCooldown books recovery for a successful cast. Heals floor at the
// configured minimum to prevent spam; everything else takes the longest of
// the catalog's recovery values, floors at the default, and gains jitter so
// an owner's guardians do not cast in lockstep.
func (c *Controller) commitCooldown(id AbilityID, info AbilityInfo) {
	if info.Heal {
		cd := info.Cooldown
		if cd < c.rules.HealCooldownFloor {
			cd = c.rules.HealCooldownFloor
		}
		c.cooldowns.Set(id, cd)
		return
	}
	cd := info.Cooldown
	if info.CategoryCooldown > cd {
		cd = info.CategoryCooldown
	}
	if info.ChargeCooldown > cd {
		cd = info.ChargeCooldown
	}
	if cd == 0 {
		cd = c.rules.DefaultCooldown
	}
	cd += c.castJitter()
	c.cooldowns.Set(id, cd)
}

func (c *Controller) castJitter() time.Duration {
	span := c.rules.CastJitterMax - c.rules.CastJitterMin
	if span <= 0 {
		return c.rules.CastJitterMin
	}
	return c.rules.CastJitterMin + time.Duration(c.rng.Int63n(int64(span)+1))
}

// HandleDamageDealt rewrites loot and credit eligibility to the owner so a
// guardian doing the damage never locks the owner out.
func (c *Controller) HandleDamageDealt(victim Entity) {
	if victim == nil || victim.Kind() != KindCreature {
		return
	}
	victim.SetLootRecipient(c.owner)
	victim.LowerDamageRequirement(victim.Health())
}

// HandleKill attributes the killing blow to the owner.
func (c *Controller) HandleKill(victim Entity) {
	if victim == nil || victim.Kind() != KindCreature {
		return
	}
	victim.SetLootRecipient(c.owner)
	victim.LowerDamageRequirement(victim.MaxHealth())
}

// HandleSummoned adopts a transient entity this guardian brought into the
// world: owner faction, clean threat, and pointed at the current fight.
func (c *Controller) HandleSummoned(sub Entity) {
	if sub == nil {
		return
	}
	if c.ownerEnt != nil {
		sub.SetFaction(c.ownerEnt.Faction())
	}
	sub.ClearThreat()
	if c.target != "" {
		if victim, ok := c.engine.Resolve(c.target); ok {
			sub.Attack(victim)
		}
	}
	c.subordinates[sub.Handle()] = struct{}{}
}

func (c *Controller) isOwner(e Entity) bool {
	return c.ownerEnt != nil && e != nil && e.Handle() == c.ownerEnt.Handle()
}

func (c *Controller) isHealerAlly(e Entity) bool {
	if e == nil {
		return false
	}
	idx, ok := c.store.FindByLive(e.Handle())
	if !ok || idx == c.slotIndex {
		return false
	}
	return c.store.Slot(idx).Archetype == ArchetypeHealer
}

func firstLiveAttacker(e Entity) (Entity, bool) {
	for _, att := range e.Attackers() {
		if att != nil && att.Alive() {
			return att, true
		}
	}
	return nil, false
}

func healthPct(e Entity) float64 {
	max := e.MaxHealth()
	if max == 0 {
		return 100
	}
	return float64(e.Health()) / float64(max) * 100
}

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
