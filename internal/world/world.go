// Package world is the in-memory live-entity registry and movement/combat
// stepper behind the guardian engine interface. Everything here runs on the
// simulation goroutine.
package world

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"wildkeep/server/internal/guardian"
)

const (
	defaultSwingInterval = 2 * time.Second
	defaultAttackRange   = 2.5
	defaultMoveSpeed     = 6.0
)

// Template is the bestiary entry backing spawned actors. Info is the
// projection handed to the guardian core; the rest feeds stat derivation.
type Template struct {
	Info        guardian.TemplateInfo
	BaseHealth  uint32
	BasePower   uint32
	PowerKind   guardian.PowerKind
	BaseDamage  uint32
	Faction     guardian.FactionID
	AttackRange float64
	MoveSpeed   float64
}

// Hooks report combat outcomes upward. Nil funcs are skipped. The callbacks
// run inline on the simulation goroutine mid-step; they must not mutate the
// actor set.
type Hooks struct {
	DamageDealt func(attacker guardian.Handle, victim guardian.Entity)
	Killed      func(attacker guardian.Handle, victim guardian.Entity)
	Died        func(victim guardian.Handle)
	Summoned    func(summoner guardian.Handle, sub guardian.Entity)
}

// World implements guardian.Engine over an in-memory actor registry.
type World struct {
	actors    map[guardian.Handle]*Actor
	order     []guardian.Handle
	owners    map[guardian.OwnerID]guardian.Handle
	templates map[guardian.TemplateID]Template
	hooks     Hooks
}

// New builds an empty world.
func New() *World {
	return &World{
		actors:    make(map[guardian.Handle]*Actor),
		owners:    make(map[guardian.OwnerID]guardian.Handle),
		templates: make(map[guardian.TemplateID]Template),
	}
}

// SetHooks installs the combat event callbacks.
func (w *World) SetHooks(h Hooks) {
	w.hooks = h
}

// RegisterTemplate adds or replaces a bestiary entry.
func (w *World) RegisterTemplate(t Template) {
	w.templates[t.Info.ID] = t
}

// Template implements guardian.Engine.
func (w *World) Template(id guardian.TemplateID) (guardian.TemplateInfo, bool) {
	t, ok := w.templates[id]
	return t.Info, ok
}

// Resolve implements guardian.Engine.
func (w *World) Resolve(h guardian.Handle) (guardian.Entity, bool) {
	a, ok := w.actors[h]
	if !ok {
		return nil, false
	}
	return a, true
}

// OwnerEntity implements guardian.Engine.
func (w *World) OwnerEntity(owner guardian.OwnerID) (guardian.Entity, bool) {
	h, ok := w.owners[owner]
	if !ok {
		return nil, false
	}
	return w.Resolve(h)
}

// Spawn implements guardian.Engine: brings a guardian instance into the
// world from its template, scaled by level and the health percentage.
func (w *World) Spawn(spec guardian.SpawnSpec) (guardian.Entity, error) {
	tmpl, ok := w.templates[spec.Template]
	if !ok {
		return nil, fmt.Errorf("world: unknown template %d", spec.Template)
	}
	a := w.newActor(tmpl, spec.Level, spec.Position)
	a.kind = guardian.KindGuardian
	a.owner = spec.Owner
	a.ttl = spec.Duration
	if ownerEnt, ok := w.OwnerEntity(spec.Owner); ok {
		a.faction = ownerEnt.Faction()
		a.partition = ownerEnt.Partition()
	}
	if spec.HealthPct > 0 && spec.HealthPct != 100 {
		a.maxHealth = a.maxHealth * spec.HealthPct / 100
		if a.maxHealth < 1 {
			a.maxHealth = 1
		}
		a.health = a.maxHealth
	}
	if spec.DamagePct > 0 && spec.DamagePct != 100 && a.baseDamage > 0 {
		a.baseDamage = a.baseDamage * spec.DamagePct / 100
		if a.baseDamage < 1 {
			a.baseDamage = 1
		}
	}
	w.insert(a)
	return a, nil
}

// SpawnCreature places a wild creature of the given template.
func (w *World) SpawnCreature(template guardian.TemplateID, level uint8, pos guardian.Vec2, partition guardian.PartitionID) (*Actor, error) {
	tmpl, ok := w.templates[template]
	if !ok {
		return nil, fmt.Errorf("world: unknown template %d", template)
	}
	a := w.newActor(tmpl, level, pos)
	a.kind = guardian.KindCreature
	a.partition = partition
	w.insert(a)
	return a, nil
}

// SpawnPlayer places the owning agent's avatar.
func (w *World) SpawnPlayer(owner guardian.OwnerID, level uint8, pos guardian.Vec2, partition guardian.PartitionID, faction guardian.FactionID) *Actor {
	a := &Actor{
		world:       w,
		handle:      guardian.Handle(uuid.NewString()),
		name:        string(owner),
		kind:        guardian.KindPlayer,
		level:       level,
		alive:       true,
		pos:         pos,
		partition:   partition,
		health:      100 + uint32(level)*10,
		maxHealth:   100 + uint32(level)*10,
		powerKind:   guardian.PowerMana,
		power:       100,
		maxPower:    100,
		faction:     faction,
		owner:       owner,
		attackers:   make(map[guardian.Handle]struct{}),
		threat:      make(map[guardian.Handle]float64),
		auras:       make(map[guardian.AbilityID]map[guardian.Handle]struct{}),
		baseDamage:  10,
		attackRange: defaultAttackRange,
		moveSpeed:   defaultMoveSpeed,
		swingTimer:  defaultSwingInterval,
	}
	w.insert(a)
	w.owners[owner] = a.handle
	return a
}

// Summon brings a transient subordinate into the world on behalf of a live
// entity and reports it through the Summoned hook.
func (w *World) Summon(summoner guardian.Handle, template guardian.TemplateID, level uint8, pos guardian.Vec2) (*Actor, error) {
	tmpl, ok := w.templates[template]
	if !ok {
		return nil, fmt.Errorf("world: unknown template %d", template)
	}
	a := w.newActor(tmpl, level, pos)
	a.kind = guardian.KindSummon
	if s, ok := w.actors[summoner]; ok {
		a.partition = s.partition
	}
	w.insert(a)
	if w.hooks.Summoned != nil {
		w.hooks.Summoned(summoner, a)
	}
	return a, nil
}

// MoveOwner repositions an owner's avatar, partition included. Reports
// false when the owner has no live avatar.
func (w *World) MoveOwner(owner guardian.OwnerID, pos guardian.Vec2, partition guardian.PartitionID) bool {
	h, ok := w.owners[owner]
	if !ok {
		return false
	}
	a, ok := w.actors[h]
	if !ok {
		return false
	}
	a.SetPosition(pos)
	a.SetPartition(partition)
	return true
}

// Despawn implements guardian.Engine. Every reference held by other actors
// is severed so handles never dangle.
func (w *World) Despawn(h guardian.Handle) {
	a, ok := w.actors[h]
	if !ok {
		return
	}
	a.AttackStop()
	a.ClearThreat()
	for _, other := range w.actors {
		delete(other.attackers, h)
		if other.victim == h {
			other.victim = ""
			other.inCombat = len(other.attackers) > 0
		}
		if other.moveTarget == h {
			other.mode = moveIdle
			other.moveTarget = ""
		}
	}
	if owned, ok := w.owners[a.owner]; ok && owned == h {
		delete(w.owners, a.owner)
	}
	delete(w.actors, h)
	for i, ordered := range w.order {
		if ordered == h {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// ClosePoint implements guardian.Engine.
func (w *World) ClosePoint(around guardian.Entity, dist, angle float64) guardian.Vec2 {
	return w.ClosePointAt(around.Position(), dist, angle)
}

// ClosePointAt implements guardian.Engine.
func (w *World) ClosePointAt(pos guardian.Vec2, dist, angle float64) guardian.Vec2 {
	return guardian.Vec2{
		X: pos.X + math.Cos(angle)*dist,
		Y: pos.Y + math.Sin(angle)*dist,
	}
}

// Step advances expiry, movement, and auto-attacks by one tick. Actors are
// walked in spawn order.
func (w *World) Step(elapsed time.Duration) {
	snapshot := make([]guardian.Handle, len(w.order))
	copy(snapshot, w.order)
	for _, h := range snapshot {
		a, ok := w.actors[h]
		if !ok || !a.alive {
			continue
		}
		if a.ttl > 0 {
			a.ttl -= elapsed
			if a.ttl <= 0 {
				w.Despawn(h)
				continue
			}
		}
		w.stepMovement(a, elapsed)
		w.stepAutoAttack(a, elapsed)
	}
}

// Len reports the live actor count.
func (w *World) Len() int {
	return len(w.actors)
}

func (w *World) newActor(tmpl Template, level uint8, pos guardian.Vec2) *Actor {
	maxHealth := tmpl.BaseHealth + uint32(level)*10
	if maxHealth < 1 {
		maxHealth = 1
	}
	attackRange := tmpl.AttackRange
	if attackRange <= 0 {
		attackRange = defaultAttackRange
	}
	moveSpeed := tmpl.MoveSpeed
	if moveSpeed <= 0 {
		moveSpeed = defaultMoveSpeed
	}
	return &Actor{
		world:       w,
		handle:      guardian.Handle(uuid.NewString()),
		name:        tmpl.Info.Name,
		template:    tmpl.Info.ID,
		kind:        guardian.KindCreature,
		rank:        tmpl.Info.Rank,
		critter:     tmpl.Info.Critter,
		level:       level,
		alive:       true,
		pos:         pos,
		health:      maxHealth,
		maxHealth:   maxHealth,
		powerKind:   tmpl.PowerKind,
		power:       tmpl.BasePower,
		maxPower:    tmpl.BasePower,
		faction:     tmpl.Faction,
		attackers:   make(map[guardian.Handle]struct{}),
		threat:      make(map[guardian.Handle]float64),
		auras:       make(map[guardian.AbilityID]map[guardian.Handle]struct{}),
		baseDamage:  tmpl.BaseDamage,
		attackRange: attackRange,
		moveSpeed:   moveSpeed,
		swingTimer:  defaultSwingInterval,
	}
}

func (w *World) insert(a *Actor) {
	w.actors[a.handle] = a
	w.order = append(w.order, a.handle)
}

func (w *World) actorOf(e guardian.Entity) *Actor {
	if e == nil {
		return nil
	}
	if a, ok := e.(*Actor); ok && w.actors[a.handle] == a {
		return a
	}
	a, ok := w.actors[e.Handle()]
	if !ok {
		return nil
	}
	return a
}

func (w *World) stepMovement(a *Actor, elapsed time.Duration) {
	var dest guardian.Vec2
	switch a.mode {
	case moveFollow:
		t, ok := w.actors[a.moveTarget]
		if !ok {
			a.StopMoving()
			return
		}
		dest = w.ClosePointAt(t.pos, a.followDist, a.followAngle)
	case moveChase:
		t, ok := w.actors[a.moveTarget]
		if !ok || !t.alive {
			a.StopMoving()
			return
		}
		if distance(a.pos, t.pos) <= a.attackRange {
			return
		}
		dest = t.pos
	default:
		return
	}
	w.moveToward(a, dest, elapsed)
}

func (w *World) moveToward(a *Actor, dest guardian.Vec2, elapsed time.Duration) {
	dx, dy := dest.X-a.pos.X, dest.Y-a.pos.Y
	dist := math.Hypot(dx, dy)
	if dist < 1e-6 {
		return
	}
	step := a.moveSpeed * elapsed.Seconds()
	if step >= dist {
		a.pos = dest
		return
	}
	a.pos.X += dx / dist * step
	a.pos.Y += dy / dist * step
	a.facing = math.Atan2(dy, dx)
}

func (w *World) stepAutoAttack(a *Actor, elapsed time.Duration) {
	if a.victim == "" {
		return
	}
	v, ok := w.actors[a.victim]
	if !ok || !v.alive {
		a.AttackStop()
		return
	}
	a.swingTimer -= elapsed
	if a.swingTimer > 0 {
		return
	}
	a.swingTimer = defaultSwingInterval
	if distance(a.pos, v.pos) > a.attackRange {
		return
	}
	dmg := a.baseDamage
	if dmg == 0 {
		dmg = 1
	}
	w.dealDamage(a, v, dmg)
}

// dealDamage applies a hit, reports it, and kills the victim when the pool
// empties.
func (w *World) dealDamage(attacker, victim *Actor, amount uint32) {
	if !victim.alive {
		return
	}
	victim.threat[attacker.handle] += float64(amount)
	if amount >= victim.health {
		victim.health = 0
	} else {
		victim.health -= amount
	}
	if w.hooks.DamageDealt != nil {
		w.hooks.DamageDealt(attacker.handle, victim)
	}
	if victim.health == 0 {
		w.kill(attacker, victim)
	}
}

func (w *World) kill(attacker, victim *Actor) {
	if !victim.alive {
		return
	}
	victim.alive = false
	victim.inCombat = false
	victim.victim = ""
	victim.mode = moveIdle
	victim.moveTarget = ""
	if attacker != nil && w.hooks.Killed != nil {
		w.hooks.Killed(attacker.handle, victim)
	}
	if w.hooks.Died != nil {
		w.hooks.Died(victim.handle)
	}
}

func distance(a, b guardian.Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
