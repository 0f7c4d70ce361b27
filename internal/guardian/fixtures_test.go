package guardian

import (
	"fmt"
	"math/rand"
	"time"
)

// Shared test fixtures: a scriptable entity, a registry-backed engine, a map
// catalog, and in-memory persistence/notification collaborators.

type castRecord struct {
	target Handle
	id     AbilityID
}

type fakeEntity struct {
	handle    Handle
	name      string
	template  TemplateID
	kind      EntityKind
	rank      CreatureRank
	critter   bool
	level     uint8
	alive     bool
	pos       Vec2
	partition PartitionID

	health    uint32
	maxHealth uint32
	powerKind PowerKind
	power     uint32
	maxPower  uint32
	faction   FactionID

	inCombat  bool
	victim    *fakeEntity
	attackers []*fakeEntity
	threat    map[Handle]float64
	auras     map[AbilityID]map[Handle]struct{}

	following   bool
	followDist  float64
	followAngle float64
	chasing     *fakeEntity
	teleports   []Vec2
	faced       *fakeEntity
	stopped     int

	casts      []castRecord
	castResult bool

	lootRecipient OwnerID
	lowered       []uint32
}

func newFakeEntity(handle Handle) *fakeEntity {
	return &fakeEntity{
		handle:     handle,
		name:       string(handle),
		alive:      true,
		health:     100,
		maxHealth:  100,
		threat:     make(map[Handle]float64),
		auras:      make(map[AbilityID]map[Handle]struct{}),
		castResult: true,
	}
}

func (f *fakeEntity) Handle() Handle          { return f.handle }
func (f *fakeEntity) Name() string            { return f.name }
func (f *fakeEntity) Template() TemplateID    { return f.template }
func (f *fakeEntity) Kind() EntityKind        { return f.kind }
func (f *fakeEntity) Rank() CreatureRank      { return f.rank }
func (f *fakeEntity) Critter() bool           { return f.critter }
func (f *fakeEntity) Level() uint8            { return f.level }
func (f *fakeEntity) Alive() bool             { return f.alive }
func (f *fakeEntity) Position() Vec2          { return f.pos }
func (f *fakeEntity) Partition() PartitionID  { return f.partition }
func (f *fakeEntity) Health() uint32          { return f.health }
func (f *fakeEntity) MaxHealth() uint32       { return f.maxHealth }
func (f *fakeEntity) PowerKind() PowerKind    { return f.powerKind }
func (f *fakeEntity) Power() uint32           { return f.power }
func (f *fakeEntity) MaxPower() uint32        { return f.maxPower }
func (f *fakeEntity) Faction() FactionID      { return f.faction }
func (f *fakeEntity) SetFaction(v FactionID)  { f.faction = v }
func (f *fakeEntity) InCombat() bool          { return f.inCombat }

func (f *fakeEntity) SetHealth(v uint32) {
	if v > f.maxHealth {
		v = f.maxHealth
	}
	f.health = v
}

func (f *fakeEntity) SetPower(v uint32) {
	if v > f.maxPower {
		v = f.maxPower
	}
	f.power = v
}

func (f *fakeEntity) EngageCombat(target Entity) {
	f.inCombat = true
	if t, ok := target.(*fakeEntity); ok {
		t.inCombat = true
	}
}

func (f *fakeEntity) Victim() (Entity, bool) {
	if f.victim == nil {
		return nil, false
	}
	return f.victim, true
}

func (f *fakeEntity) Attackers() []Entity {
	out := make([]Entity, 0, len(f.attackers))
	for _, a := range f.attackers {
		out = append(out, a)
	}
	return out
}

func (f *fakeEntity) CanAttack(target Entity) bool {
	t, ok := target.(*fakeEntity)
	if !ok || t == f {
		return false
	}
	return f.alive && t.alive && f.faction != t.faction
}

func (f *fakeEntity) Attack(target Entity) bool {
	t, ok := target.(*fakeEntity)
	if !ok || !f.CanAttack(t) {
		return false
	}
	f.victim = t
	f.inCombat = true
	t.inCombat = true
	t.attackers = append(t.attackers, f)
	return true
}

func (f *fakeEntity) AttackStop() {
	if f.victim != nil {
		kept := f.victim.attackers[:0]
		for _, a := range f.victim.attackers {
			if a != f {
				kept = append(kept, a)
			}
		}
		f.victim.attackers = kept
	}
	f.victim = nil
}

func (f *fakeEntity) AddThreat(target Entity, amount float64) {
	if t, ok := target.(*fakeEntity); ok {
		t.threat[f.handle] += amount
	}
}

func (f *fakeEntity) ThreatTargets() []Entity {
	out := make([]Entity, 0, len(f.attackers))
	for _, a := range f.attackers {
		out = append(out, a)
	}
	return out
}

func (f *fakeEntity) ClearThreat() {
	f.threat = make(map[Handle]float64)
}

func (f *fakeEntity) HasAura(id AbilityID) bool {
	return len(f.auras[id]) > 0
}

func (f *fakeEntity) HasAuraFrom(id AbilityID, caster Handle) bool {
	_, ok := f.auras[id][caster]
	return ok
}

func (f *fakeEntity) Cast(target Entity, id AbilityID, info AbilityInfo) bool {
	if !f.castResult {
		return false
	}
	t, ok := target.(*fakeEntity)
	if !ok {
		return false
	}
	f.casts = append(f.casts, castRecord{target: t.handle, id: id})
	if info.Persistent {
		casters, ok := t.auras[id]
		if !ok {
			casters = make(map[Handle]struct{})
			t.auras[id] = casters
		}
		casters[f.handle] = struct{}{}
	}
	return true
}

func (f *fakeEntity) Follow(target Entity, dist, angle float64) {
	f.following = true
	f.followDist = dist
	f.followAngle = angle
}

func (f *fakeEntity) Following() bool { return f.following }

func (f *fakeEntity) Chase(target Entity) {
	f.chasing, _ = target.(*fakeEntity)
	f.following = false
}

func (f *fakeEntity) StopMoving() {
	f.following = false
	f.chasing = nil
	f.stopped++
}

func (f *fakeEntity) Teleport(pos Vec2) {
	f.pos = pos
	f.teleports = append(f.teleports, pos)
}

func (f *fakeEntity) FaceToward(target Entity) {
	f.faced, _ = target.(*fakeEntity)
}

func (f *fakeEntity) SetLootRecipient(owner OwnerID) {
	f.lootRecipient = owner
}

func (f *fakeEntity) LowerDamageRequirement(amount uint32) {
	f.lowered = append(f.lowered, amount)
}

func (f *fakeEntity) lastCast() (castRecord, bool) {
	if len(f.casts) == 0 {
		return castRecord{}, false
	}
	return f.casts[len(f.casts)-1], true
}

type fakeEngine struct {
	entities  map[Handle]*fakeEntity
	owners    map[OwnerID]*fakeEntity
	templates map[TemplateID]TemplateInfo
	despawned []Handle
	spawnErr  error
	lastSpawn SpawnSpec
	seq       int

	// spawn stat defaults applied to guardian instances.
	spawnHealth uint32
	spawnPower  uint32
	spawnKind   PowerKind
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		entities:    make(map[Handle]*fakeEntity),
		owners:      make(map[OwnerID]*fakeEntity),
		templates:   make(map[TemplateID]TemplateInfo),
		spawnHealth: 100,
		spawnPower:  50,
		spawnKind:   PowerMana,
	}
}

func (e *fakeEngine) add(f *fakeEntity) *fakeEntity {
	e.entities[f.handle] = f
	return f
}

func (e *fakeEngine) addOwner(id OwnerID, f *fakeEntity) *fakeEntity {
	f.kind = KindPlayer
	e.add(f)
	e.owners[id] = f
	return f
}

func (e *fakeEngine) Resolve(h Handle) (Entity, bool) {
	f, ok := e.entities[h]
	if !ok {
		return nil, false
	}
	return f, true
}

func (e *fakeEngine) OwnerEntity(owner OwnerID) (Entity, bool) {
	f, ok := e.owners[owner]
	if !ok {
		return nil, false
	}
	if _, live := e.entities[f.handle]; !live {
		return nil, false
	}
	return f, true
}

func (e *fakeEngine) Template(id TemplateID) (TemplateInfo, bool) {
	t, ok := e.templates[id]
	return t, ok
}

func (e *fakeEngine) Spawn(spec SpawnSpec) (Entity, error) {
	if e.spawnErr != nil {
		return nil, e.spawnErr
	}
	if _, ok := e.templates[spec.Template]; !ok {
		return nil, fmt.Errorf("unknown template %d", spec.Template)
	}
	e.lastSpawn = spec
	e.seq++
	f := newFakeEntity(Handle(fmt.Sprintf("guardian-%d", e.seq)))
	f.template = spec.Template
	f.kind = KindGuardian
	f.level = spec.Level
	f.pos = spec.Position
	f.maxHealth = e.spawnHealth
	if spec.HealthPct > 0 && spec.HealthPct != 100 {
		f.maxHealth = f.maxHealth * spec.HealthPct / 100
	}
	f.health = f.maxHealth
	f.powerKind = e.spawnKind
	f.maxPower = e.spawnPower
	f.power = e.spawnPower
	if ownerEnt, ok := e.owners[spec.Owner]; ok {
		f.faction = ownerEnt.faction
		f.partition = ownerEnt.partition
	}
	e.add(f)
	return f, nil
}

func (e *fakeEngine) Despawn(h Handle) {
	delete(e.entities, h)
	e.despawned = append(e.despawned, h)
}

func (e *fakeEngine) ClosePoint(around Entity, dist, angle float64) Vec2 {
	return e.ClosePointAt(around.Position(), dist, angle)
}

func (e *fakeEngine) ClosePointAt(pos Vec2, dist, angle float64) Vec2 {
	return Vec2{X: pos.X + dist, Y: pos.Y + angle}
}

type fakeCatalog map[AbilityID]AbilityInfo

func (c fakeCatalog) Lookup(id AbilityID) (AbilityInfo, bool) {
	info, ok := c[id]
	return info, ok
}

type memStore struct {
	records map[string]Record
	saves   int
	deletes int
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Record)}
}

func storeKey(owner OwnerID, slot int) string {
	return fmt.Sprintf("%s/%d", owner, slot)
}

func (m *memStore) Save(owner OwnerID, slot int, rec Record) {
	m.records[storeKey(owner, slot)] = rec
	m.saves++
}

func (m *memStore) LoadAll(owner OwnerID) ([]SlotRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []SlotRecord
	for slot := 0; slot < MaxSlotCap; slot++ {
		if rec, ok := m.records[storeKey(owner, slot)]; ok {
			out = append(out, SlotRecord{Index: slot, Record: rec})
		}
	}
	return out, nil
}

func (m *memStore) Delete(owner OwnerID, slot int) {
	delete(m.records, storeKey(owner, slot))
	m.deletes++
}

type notifyEvent struct {
	kind  string
	owner OwnerID
	slot  int
	view  SlotView
	text  string
}

type memNotifier struct {
	events []notifyEvent
}

func (m *memNotifier) SlotChanged(owner OwnerID, view SlotView) {
	m.events = append(m.events, notifyEvent{kind: "changed", owner: owner, slot: view.Index, view: view})
}

func (m *memNotifier) SlotCleared(owner OwnerID, slot int) {
	m.events = append(m.events, notifyEvent{kind: "cleared", owner: owner, slot: slot})
}

func (m *memNotifier) GuardianDismissed(owner OwnerID, slot int) {
	m.events = append(m.events, notifyEvent{kind: "dismissed", owner: owner, slot: slot})
}

func (m *memNotifier) GuardianDied(owner OwnerID, slot int, name string) {
	m.events = append(m.events, notifyEvent{kind: "died", owner: owner, slot: slot, text: name})
}

func (m *memNotifier) Message(owner OwnerID, text string) {
	m.events = append(m.events, notifyEvent{kind: "message", owner: owner, text: text})
}

func (m *memNotifier) last(kind string) (notifyEvent, bool) {
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].kind == kind {
			return m.events[i], true
		}
	}
	return notifyEvent{}, false
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

// testRules keeps timers tick-friendly for scripted loops.
func testRules() Rules {
	r := DefaultRules()
	r.OwnerRecheck = 100 * time.Millisecond
	r.ThreatScan = 100 * time.Millisecond
	r.RegenInterval = 100 * time.Millisecond
	r.SubordinateAudit = 100 * time.Millisecond
	return r
}
