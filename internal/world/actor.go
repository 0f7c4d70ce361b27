package world

import (
	"math"
	"sort"
	"time"

	"wildkeep/server/internal/guardian"
)

type moveMode uint8

const (
	moveIdle moveMode = iota
	moveFollow
	moveChase
)

// Actor is one live unit in the world. It implements guardian.Entity; all
// mutation happens on the simulation goroutine through the owning World.
type Actor struct {
	world *World

	handle    guardian.Handle
	name      string
	template  guardian.TemplateID
	kind      guardian.EntityKind
	rank      guardian.CreatureRank
	critter   bool
	level     uint8
	alive     bool
	pos       guardian.Vec2
	partition guardian.PartitionID

	health    uint32
	maxHealth uint32
	powerKind guardian.PowerKind
	power     uint32
	maxPower  uint32

	faction guardian.FactionID
	owner   guardian.OwnerID

	inCombat  bool
	victim    guardian.Handle
	attackers map[guardian.Handle]struct{}
	threat    map[guardian.Handle]float64
	auras     map[guardian.AbilityID]map[guardian.Handle]struct{}

	mode         moveMode
	moveTarget   guardian.Handle
	followDist   float64
	followAngle  float64
	facing       float64
	moveSpeed    float64

	lootRecipient guardian.OwnerID
	damageReq     uint32

	baseDamage  uint32
	attackRange float64
	swingTimer  time.Duration
	ttl         time.Duration
}

func (a *Actor) Handle() guardian.Handle       { return a.handle }
func (a *Actor) Name() string                  { return a.name }
func (a *Actor) Template() guardian.TemplateID { return a.template }
func (a *Actor) Kind() guardian.EntityKind     { return a.kind }
func (a *Actor) Rank() guardian.CreatureRank   { return a.rank }
func (a *Actor) Critter() bool                 { return a.critter }
func (a *Actor) Level() uint8                  { return a.level }
func (a *Actor) Alive() bool                   { return a.alive }
func (a *Actor) Position() guardian.Vec2       { return a.pos }
func (a *Actor) Partition() guardian.PartitionID {
	return a.partition
}

func (a *Actor) Health() uint32    { return a.health }
func (a *Actor) MaxHealth() uint32 { return a.maxHealth }

func (a *Actor) SetHealth(v uint32) {
	if v > a.maxHealth {
		v = a.maxHealth
	}
	a.health = v
	if a.health == 0 && a.alive {
		a.world.kill(nil, a)
	}
}

func (a *Actor) PowerKind() guardian.PowerKind { return a.powerKind }
func (a *Actor) Power() uint32                 { return a.power }
func (a *Actor) MaxPower() uint32              { return a.maxPower }

func (a *Actor) SetPower(v uint32) {
	if v > a.maxPower {
		v = a.maxPower
	}
	a.power = v
}

func (a *Actor) Faction() guardian.FactionID     { return a.faction }
func (a *Actor) SetFaction(f guardian.FactionID) { a.faction = f }

// Owner returns the owning agent id, empty for wild creatures.
func (a *Actor) Owner() guardian.OwnerID { return a.owner }

func (a *Actor) InCombat() bool { return a.inCombat }

func (a *Actor) EngageCombat(target guardian.Entity) {
	t := a.world.actorOf(target)
	if t == nil {
		return
	}
	a.inCombat = true
	t.inCombat = true
	t.attackers[a.handle] = struct{}{}
}

func (a *Actor) Victim() (guardian.Entity, bool) {
	if a.victim == "" {
		return nil, false
	}
	v, ok := a.world.actors[a.victim]
	if !ok {
		a.victim = ""
		return nil, false
	}
	return v, true
}

// Attackers returns live units currently swinging at this actor, in handle
// order for deterministic scans.
func (a *Actor) Attackers() []guardian.Entity {
	handles := make([]guardian.Handle, 0, len(a.attackers))
	for h := range a.attackers {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	out := make([]guardian.Entity, 0, len(handles))
	for _, h := range handles {
		if att, ok := a.world.actors[h]; ok && att.alive {
			out = append(out, att)
		}
	}
	return out
}

func (a *Actor) CanAttack(target guardian.Entity) bool {
	t := a.world.actorOf(target)
	if t == nil || t == a {
		return false
	}
	return a.alive && t.alive && a.faction != t.faction
}

func (a *Actor) Attack(target guardian.Entity) bool {
	t := a.world.actorOf(target)
	if t == nil || !a.CanAttack(t) {
		return false
	}
	a.victim = t.handle
	a.inCombat = true
	t.inCombat = true
	t.attackers[a.handle] = struct{}{}
	return true
}

func (a *Actor) AttackStop() {
	if v, ok := a.world.actors[a.victim]; ok {
		delete(v.attackers, a.handle)
		v.inCombat = v.victim != "" || len(v.attackers) > 0
	}
	a.victim = ""
	a.inCombat = len(a.attackers) > 0
}

func (a *Actor) AddThreat(target guardian.Entity, amount float64) {
	t := a.world.actorOf(target)
	if t == nil {
		return
	}
	t.threat[a.handle] += amount
	if _, ok := a.threat[t.handle]; !ok {
		a.threat[t.handle] = 0
	}
}

// ThreatTargets returns live units this actor is in a threat relation with,
// current attackers included, in handle order.
func (a *Actor) ThreatTargets() []guardian.Entity {
	seen := make(map[guardian.Handle]struct{}, len(a.threat)+len(a.attackers))
	handles := make([]guardian.Handle, 0, len(a.threat)+len(a.attackers))
	for h := range a.threat {
		seen[h] = struct{}{}
		handles = append(handles, h)
	}
	for h := range a.attackers {
		if _, dup := seen[h]; !dup {
			handles = append(handles, h)
		}
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	out := make([]guardian.Entity, 0, len(handles))
	for _, h := range handles {
		if t, ok := a.world.actors[h]; ok && t.alive {
			out = append(out, t)
		}
	}
	return out
}

func (a *Actor) ClearThreat() {
	for h := range a.threat {
		if t, ok := a.world.actors[h]; ok {
			delete(t.threat, a.handle)
		}
	}
	a.threat = make(map[guardian.Handle]float64)
}

func (a *Actor) HasAura(id guardian.AbilityID) bool {
	return len(a.auras[id]) > 0
}

func (a *Actor) HasAuraFrom(id guardian.AbilityID, caster guardian.Handle) bool {
	_, ok := a.auras[id][caster]
	return ok
}

func (a *Actor) applyAura(id guardian.AbilityID, caster guardian.Handle) {
	casters, ok := a.auras[id]
	if !ok {
		casters = make(map[guardian.Handle]struct{})
		a.auras[id] = casters
	}
	casters[caster] = struct{}{}
}

// Cast resolves an ability against the target: heals restore a quarter of
// the target's pool, persistent effects become auras, everything hostile
// deals the caster's base damage.
func (a *Actor) Cast(target guardian.Entity, id guardian.AbilityID, info guardian.AbilityInfo) bool {
	t := a.world.actorOf(target)
	if t == nil || !a.alive || !t.alive {
		return false
	}
	if info.Cost > 0 {
		if !a.spend(info) {
			return false
		}
	}
	if info.Positive {
		if info.Heal {
			amount := t.maxHealth / 4
			if amount < 1 {
				amount = 1
			}
			heal := t.health + amount
			if heal > t.maxHealth {
				heal = t.maxHealth
			}
			t.health = heal
		}
		if info.Persistent {
			t.applyAura(id, a.handle)
		}
		return true
	}
	if !a.CanAttack(t) {
		return false
	}
	if info.Persistent {
		t.applyAura(id, a.handle)
	}
	if info.DirectDamage || !info.Persistent {
		dmg := a.baseDamage
		if dmg == 0 {
			dmg = 5
		}
		a.world.dealDamage(a, t, dmg)
	}
	a.inCombat = true
	if t.alive {
		t.inCombat = true
		t.attackers[a.handle] = struct{}{}
	}
	return true
}

func (a *Actor) spend(info guardian.AbilityInfo) bool {
	if info.Resource == guardian.PowerHealth {
		if a.health <= info.Cost {
			return false
		}
		a.health -= info.Cost
		return true
	}
	if info.Resource != a.powerKind || a.power < info.Cost {
		return false
	}
	a.power -= info.Cost
	return true
}

func (a *Actor) Follow(target guardian.Entity, dist, angle float64) {
	t := a.world.actorOf(target)
	if t == nil {
		return
	}
	a.mode = moveFollow
	a.moveTarget = t.handle
	a.followDist = dist
	a.followAngle = angle
}

func (a *Actor) Following() bool {
	return a.mode == moveFollow
}

func (a *Actor) Chase(target guardian.Entity) {
	t := a.world.actorOf(target)
	if t == nil {
		return
	}
	a.mode = moveChase
	a.moveTarget = t.handle
}

func (a *Actor) StopMoving() {
	a.mode = moveIdle
	a.moveTarget = ""
}

func (a *Actor) Teleport(pos guardian.Vec2) {
	a.pos = pos
}

func (a *Actor) FaceToward(target guardian.Entity) {
	t := a.world.actorOf(target)
	if t == nil {
		return
	}
	a.facing = math.Atan2(t.pos.Y-a.pos.Y, t.pos.X-a.pos.X)
}

func (a *Actor) SetLootRecipient(owner guardian.OwnerID) {
	a.lootRecipient = owner
}

func (a *Actor) LowerDamageRequirement(amount uint32) {
	if amount >= a.damageReq {
		a.damageReq = 0
		return
	}
	a.damageReq -= amount
}

// LootRecipient reports the agent credited for this actor's loot.
func (a *Actor) LootRecipient() guardian.OwnerID { return a.lootRecipient }

// DamageRequirement reports the damage still owed for loot credit.
func (a *Actor) DamageRequirement() uint32 { return a.damageReq }

// SetPosition moves the actor without pathing.
func (a *Actor) SetPosition(pos guardian.Vec2) { a.pos = pos }

// SetPartition reassigns the actor's world partition.
func (a *Actor) SetPartition(p guardian.PartitionID) { a.partition = p }
