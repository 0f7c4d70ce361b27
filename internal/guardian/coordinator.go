package guardian

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"wildkeep/server/logging"
	glog "wildkeep/server/logging/guardianlog"
)

// CoordinatorConfig wires the coordinator to its collaborators.
type CoordinatorConfig struct {
	Engine      Engine
	Catalog     Catalog
	Persistence Store
	Notifier    Notifier
	Publisher   logging.Publisher
	Rules       Rules
	RNG         *rand.Rand
}

type slotKey struct {
	owner OwnerID
	index int
}

type ownerState struct {
	id          OwnerID
	store       *SlotStore
	controllers map[int]*Controller
}

// Coordinator orchestrates capture, dismiss, summon, release, teaching, and
// zone-boundary transfer, keeping slot stores and live instances consistent.
// Every method runs on the simulation goroutine; nothing here blocks on I/O,
// and persistence writes are fire-and-forget.
type Coordinator struct {
	engine  Engine
	catalog Catalog
	persist Store
	notify  Notifier
	pub     logging.Publisher
	rules   Rules
	rng     *rand.Rand

	owners map[OwnerID]*ownerState
	byLive map[Handle]slotKey
	tick   uint64
}

// NewCoordinator builds a coordinator with normalized rules and optional
// collaborators replaced by no-ops.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	persist := cfg.Persistence
	if persist == nil {
		persist = NopStore{}
	}
	notify := cfg.Notifier
	if notify == nil {
		notify = NopNotifier{}
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	rng := cfg.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Coordinator{
		engine:  cfg.Engine,
		catalog: cfg.Catalog,
		persist: persist,
		notify:  notify,
		pub:     pub,
		rules:   cfg.Rules.Normalized(),
		rng:     rng,
		owners:  make(map[OwnerID]*ownerState),
		byLive:  make(map[Handle]slotKey),
	}
}

// Rules returns the current configuration snapshot.
func (c *Coordinator) Rules() Rules {
	return c.rules
}

// SetRules swaps the configuration snapshot and pushes it to every live
// controller. Called on the simulation goroutine when the rules file
// reloads; slot capacities of existing owners are left untouched.
func (c *Coordinator) SetRules(r Rules) {
	c.rules = r.Normalized()
	for _, o := range c.owners {
		for _, ctrl := range o.controllers {
			ctrl.UpdateRules(c.rules)
		}
	}
}

func (c *Coordinator) ownerStateFor(owner OwnerID) *ownerState {
	if o, ok := c.owners[owner]; ok {
		return o
	}
	o := &ownerState{
		id:          owner,
		store:       NewSlotStore(owner, c.rules.MaxSlots),
		controllers: make(map[int]*Controller),
	}
	c.owners[owner] = o
	return o
}

// Store exposes the owner's slot store for read-only display queries.
func (c *Coordinator) Store(owner OwnerID) *SlotStore {
	return c.ownerStateFor(owner).store
}

// LoadOwner restores an owner's slots from durable storage. Runs on the
// login path, off the tick loop. Records at out-of-range indices (a smaller
// MaxSlots after a config change) are skipped, not deleted.
func (c *Coordinator) LoadOwner(owner OwnerID) error {
	o := c.ownerStateFor(owner)
	recs, err := c.persist.LoadAll(owner)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		slot := o.store.Slot(rec.Index)
		if slot == nil || rec.Record.Identity == 0 {
			continue
		}
		applyRecord(slot, rec.Record)
	}
	return nil
}

// Capture validates the target, removes it from the world, and instates it
// as a guardian in the first empty slot with default archetype DPS and
// abilities seeded from the creature's native list.
func (c *Coordinator) Capture(owner OwnerID, target Handle) (int, error) {
	if !c.rules.Enabled {
		return 0, ErrDisabled
	}
	o := c.ownerStateFor(owner)
	ownerEnt, ok := c.engine.OwnerEntity(owner)
	if !ok {
		return 0, ErrNotFound
	}
	targetEnt, ok := c.engine.Resolve(target)
	if !ok {
		return 0, ErrNotFound
	}
	idx, ok := o.store.FindEmpty()
	if !ok {
		return 0, ErrNoEmptySlot
	}
	if err := CanCapture(c.rules, ownerEnt, targetEnt); err != nil {
		return 0, err
	}

	identity := targetEnt.Template()
	level := targetEnt.Level()
	tmpl, _ := c.engine.Template(identity)

	// The source creature leaves the world; the slot owns its state now.
	c.engine.Despawn(target)

	slot := o.store.Slot(idx)
	slot.Reset()
	slot.Identity = identity
	slot.Level = level
	slot.Archetype = ArchetypeDPS
	slot.Abilities = seedAbilities(tmpl.Abilities)

	if err := c.spawnInto(o, idx, false); err != nil {
		slot.Reset()
		return 0, err
	}
	c.persistSlot(o, idx)
	c.notifySlot(o, idx)
	glog.Captured(context.Background(), c.pub, c.tick, string(owner), c.slotPayload(o, idx))
	return idx, nil
}

// SpawnFromTemplate instates a guardian directly from a bestiary template,
// bypassing capture validation. Used by the GM command surface.
func (c *Coordinator) SpawnFromTemplate(owner OwnerID, template TemplateID, level uint8) (int, error) {
	o := c.ownerStateFor(owner)
	tmpl, ok := c.engine.Template(template)
	if !ok {
		return 0, ErrNotFound
	}
	idx, ok := o.store.FindEmpty()
	if !ok {
		return 0, ErrNoEmptySlot
	}
	slot := o.store.Slot(idx)
	slot.Reset()
	slot.Identity = template
	slot.Level = level
	slot.Archetype = ArchetypeDPS
	slot.Abilities = seedAbilities(tmpl.Abilities)

	if err := c.spawnInto(o, idx, false); err != nil {
		slot.Reset()
		return 0, err
	}
	c.persistSlot(o, idx)
	c.notifySlot(o, idx)
	glog.Captured(context.Background(), c.pub, c.tick, string(owner), c.slotPayload(o, idx))
	return idx, nil
}

// Dismiss snapshots the live instance into the slot and despawns it. The
// dismissed flag is sticky: the slot stays inactive across zone re-entry and
// login until explicitly summoned.
func (c *Coordinator) Dismiss(owner OwnerID, index int) error {
	o := c.ownerStateFor(owner)
	slot := o.store.Slot(index)
	if slot == nil {
		return ErrNotFound
	}
	if !slot.Occupied() {
		return ErrEmpty
	}
	if !slot.Active() {
		return ErrNotActive
	}
	c.snapshotSlot(o, index)
	c.despawnSlot(o, index)
	slot.Dismissed = true
	c.persistSlot(o, index)
	c.notify.GuardianDismissed(owner, index)
	glog.Dismissed(context.Background(), c.pub, c.tick, string(owner), c.slotPayload(o, index))
	return nil
}

// Summon respawns a stored guardian with its persisted identity, archetype,
// and abilities, restoring the resource snapshot clamped to the new
// instance's maximums. A dead guardian revives at 1 health.
func (c *Coordinator) Summon(owner OwnerID, index int) error {
	o := c.ownerStateFor(owner)
	slot := o.store.Slot(index)
	if slot == nil {
		return ErrNotFound
	}
	if !slot.Occupied() {
		return ErrEmpty
	}
	if slot.Active() {
		return ErrAlreadyActive
	}
	if err := c.spawnInto(o, index, true); err != nil {
		return err
	}
	slot.Dismissed = false
	c.persistSlot(o, index)
	c.notifySlot(o, index)
	glog.Summoned(context.Background(), c.pub, c.tick, string(owner), c.slotPayload(o, index))
	return nil
}

// Release despawns any live instance, clears the slot, and deletes the
// durable record. Irreversible.
func (c *Coordinator) Release(owner OwnerID, index int) error {
	o := c.ownerStateFor(owner)
	slot := o.store.Slot(index)
	if slot == nil {
		return ErrNotFound
	}
	if !slot.Occupied() {
		return ErrEmpty
	}
	payload := c.slotPayload(o, index)
	if slot.Active() {
		c.despawnSlot(o, index)
	}
	o.store.Clear(index)
	c.persist.Delete(owner, index)
	c.notify.SlotCleared(owner, index)
	glog.Released(context.Background(), c.pub, c.tick, string(owner), payload)
	return nil
}

// Teach writes an ability into the given bar position on both the live
// controller and the slot. The ability must exist and its cost kind must be
// payable by the guardian's pool; zero-cost and health-cost abilities always
// qualify.
func (c *Coordinator) Teach(owner OwnerID, index, position int, id AbilityID) error {
	o := c.ownerStateFor(owner)
	slot := o.store.Slot(index)
	if slot == nil {
		return ErrNotFound
	}
	if !slot.Occupied() {
		return ErrEmpty
	}
	if !slot.Active() {
		return ErrNotActive
	}
	if position < 0 || position >= MaxAbilitySlots {
		return ErrNotFound
	}
	info, ok := c.catalog.Lookup(id)
	if !ok {
		return ErrNotFound
	}
	ent, ok := c.engine.Resolve(slot.Live)
	if !ok {
		// Stale handle: self-heal by clearing the reference.
		c.clearStaleLive(o, index)
		return ErrNotActive
	}
	if info.Cost > 0 && info.Resource != PowerHealth && info.Resource != ent.PowerKind() {
		return ErrResourceMismatch
	}
	if ctrl := o.controllers[index]; ctrl != nil {
		ctrl.SetAbility(position, id)
	}
	slot.Abilities[position] = id
	c.persistSlot(o, index)
	c.notifySlot(o, index)
	return nil
}

// Unlearn empties the given bar position on the controller and the slot.
func (c *Coordinator) Unlearn(owner OwnerID, index, position int) error {
	o := c.ownerStateFor(owner)
	slot := o.store.Slot(index)
	if slot == nil {
		return ErrNotFound
	}
	if !slot.Occupied() {
		return ErrEmpty
	}
	if !slot.Active() {
		return ErrNotActive
	}
	if position < 0 || position >= MaxAbilitySlots {
		return ErrNotFound
	}
	if slot.Abilities[position] == 0 {
		return ErrEmpty
	}
	if ctrl := o.controllers[index]; ctrl != nil {
		ctrl.SetAbility(position, 0)
	}
	slot.Abilities[position] = 0
	c.persistSlot(o, index)
	c.notifySlot(o, index)
	return nil
}

// SetArchetype switches the combat role of a live guardian without a
// respawn.
func (c *Coordinator) SetArchetype(owner OwnerID, index int, a Archetype) error {
	if !a.Valid() {
		return ErrNotFound
	}
	o := c.ownerStateFor(owner)
	slot := o.store.Slot(index)
	if slot == nil {
		return ErrNotFound
	}
	if !slot.Occupied() {
		return ErrEmpty
	}
	if !slot.Active() {
		return ErrNotActive
	}
	if slot.Archetype == a {
		return nil
	}
	if ctrl := o.controllers[index]; ctrl != nil {
		ctrl.SetArchetype(a)
	}
	slot.Archetype = a
	c.persistSlot(o, index)
	c.notifySlot(o, index)
	glog.ArchetypeChanged(context.Background(), c.pub, c.tick, string(owner), c.slotPayload(o, index))
	return nil
}

// View returns the display projection of one slot.
func (c *Coordinator) View(owner OwnerID, index int) (SlotView, error) {
	o := c.ownerStateFor(owner)
	slot := o.store.Slot(index)
	if slot == nil {
		return SlotView{}, ErrNotFound
	}
	if !slot.Occupied() {
		return SlotView{}, ErrEmpty
	}
	return c.viewOf(o, index), nil
}

// Views lists the display projections of every occupied slot.
func (c *Coordinator) Views(owner OwnerID) []SlotView {
	o := c.ownerStateFor(owner)
	out := make([]SlotView, 0, o.store.Len())
	for i := 0; i < o.store.Len(); i++ {
		if o.store.Slot(i).Occupied() {
			out = append(out, c.viewOf(o, i))
		}
	}
	return out
}

// OwnerMoved handles an owner-initiated position change. Same-partition
// moves reposition live guardians directly at their fan-out offsets;
// cross-partition moves snapshot and despawn, leaving slots occupied but
// inactive for re-entry.
func (c *Coordinator) OwnerMoved(owner OwnerID, partition PartitionID, dest Vec2) {
	o, ok := c.owners[owner]
	if !ok {
		return
	}
	for _, idx := range o.store.ActiveIndices() {
		slot := o.store.Slot(idx)
		ent, ok := c.engine.Resolve(slot.Live)
		if !ok {
			c.clearStaleLive(o, idx)
			continue
		}
		if ent.Partition() == partition {
			dist, angle := FollowPlacement(c.rules, slot.Archetype, idx)
			ent.Teleport(c.engine.ClosePointAt(dest, dist, angle))
			continue
		}
		c.snapshotSlot(o, idx)
		c.despawnSlot(o, idx)
		c.persistSlot(o, idx)
		c.notify.GuardianDismissed(owner, idx)
		glog.ZoneStored(context.Background(), c.pub, c.tick, string(owner), c.slotPayload(o, idx))
	}
}

// OwnerEntered respawns every occupied, inactive, not dismissed slot after a
// zone change or login. Dismissed slots stay stored until summoned.
func (c *Coordinator) OwnerEntered(owner OwnerID) {
	o, ok := c.owners[owner]
	if !ok {
		return
	}
	for idx := 0; idx < o.store.Len(); idx++ {
		slot := o.store.Slot(idx)
		if !slot.Occupied() || slot.Active() || slot.Dismissed {
			continue
		}
		if err := c.spawnInto(o, idx, true); err != nil {
			continue
		}
		c.notifySlot(o, idx)
		glog.Summoned(context.Background(), c.pub, c.tick, string(owner), c.slotPayload(o, idx))
	}
}

// OwnerDisconnected snapshots and persists every occupied slot, despawns all
// live instances, and drops the owner's in-memory state.
func (c *Coordinator) OwnerDisconnected(owner OwnerID) {
	o, ok := c.owners[owner]
	if !ok {
		return
	}
	for _, idx := range o.store.ActiveIndices() {
		c.snapshotSlot(o, idx)
		c.despawnSlot(o, idx)
	}
	for idx := 0; idx < o.store.Len(); idx++ {
		if o.store.Slot(idx).Occupied() {
			c.persistSlot(o, idx)
		}
	}
	delete(c.owners, owner)
}

// Tick advances every live controller by the elapsed tick time, then
// executes any self-despawn requests after the scan so cancellation never
// mutates the slot set mid-iteration.
func (c *Coordinator) Tick(elapsed time.Duration) {
	c.tick++
	ids := make([]OwnerID, 0, len(c.owners))
	for id := range c.owners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	type pending struct {
		o   *ownerState
		idx int
	}
	var expired []pending
	for _, id := range ids {
		o := c.owners[id]
		for idx := 0; idx < o.store.Len(); idx++ {
			ctrl := o.controllers[idx]
			if ctrl == nil {
				continue
			}
			if res := ctrl.Tick(elapsed); res.SelfDespawn {
				expired = append(expired, pending{o: o, idx: idx})
			}
		}
	}
	for _, p := range expired {
		c.snapshotSlot(p.o, p.idx)
		c.despawnSlot(p.o, p.idx)
		c.persistSlot(p.o, p.idx)
		glog.SelfDespawned(context.Background(), c.pub, c.tick, string(p.o.id), c.slotPayload(p.o, p.idx))
	}
}

// HandleDamageDealt routes a world damage event to the attacking guardian's
// controller for loot attribution.
func (c *Coordinator) HandleDamageDealt(attacker Handle, victim Entity) {
	if ctrl, ok := c.controllerByLive(attacker); ok {
		ctrl.HandleDamageDealt(victim)
	}
}

// HandleKill routes a killing blow to the guardian's controller.
func (c *Coordinator) HandleKill(attacker Handle, victim Entity) {
	if ctrl, ok := c.controllerByLive(attacker); ok {
		ctrl.HandleKill(victim)
	}
}

// HandleSummoned registers a transient entity a guardian brought into the
// world.
func (c *Coordinator) HandleSummoned(summoner Handle, sub Entity) {
	if ctrl, ok := c.controllerByLive(summoner); ok {
		ctrl.HandleSummoned(sub)
	}
}

// HandleDied reacts to a guardian's death: the slot keeps its state with a
// zero health snapshot, the instance is released, and the owner is told.
// The slot is marked dismissed so zone re-entry never raises a corpse; an
// explicit summon revives it.
func (c *Coordinator) HandleDied(victim Handle) {
	key, ok := c.byLive[victim]
	if !ok {
		return
	}
	o := c.owners[key.owner]
	if o == nil {
		return
	}
	c.snapshotSlot(o, key.index)
	slot := o.store.Slot(key.index)
	slot.Resources.Health = 0
	slot.Dismissed = true
	name := c.templateName(slot.Identity)
	c.despawnSlot(o, key.index)
	c.persistSlot(o, key.index)
	c.notify.GuardianDied(key.owner, key.index, name)
	glog.Died(context.Background(), c.pub, c.tick, string(key.owner), c.slotPayload(o, key.index))
}

func (c *Coordinator) controllerByLive(h Handle) (*Controller, bool) {
	key, ok := c.byLive[h]
	if !ok {
		return nil, false
	}
	o, ok := c.owners[key.owner]
	if !ok {
		return nil, false
	}
	ctrl, ok := o.controllers[key.index]
	return ctrl, ok
}

// spawnInto brings the slot's guardian into the world at its fan-out
// position and binds a fresh controller. With restore set, the resource
// snapshot is applied clamped to the new instance's maximums.
func (c *Coordinator) spawnInto(o *ownerState, idx int, restore bool) error {
	slot := o.store.Slot(idx)
	ownerEnt, ok := c.engine.OwnerEntity(o.id)
	if !ok {
		return ErrNotFound
	}
	dist, angle := FollowPlacement(c.rules, slot.Archetype, idx)
	ent, err := c.engine.Spawn(SpawnSpec{
		Template:     slot.Identity,
		Level:        slot.Level,
		Owner:        o.id,
		Position:     c.engine.ClosePoint(ownerEnt, dist, angle),
		VisualRef:    slot.VisualRef,
		EquipmentRef: slot.EquipmentRef,
		HealthPct:    c.rules.HealthPct,
		DamagePct:    c.rules.DamagePct,
		Duration:     c.rules.GuardianDuration,
	})
	if err != nil {
		return err
	}
	if restore {
		health := minUint32(slot.Resources.Health, ent.MaxHealth())
		if health == 0 {
			// Zero marks a death snapshot; setting it on the fresh instance
			// would kill it on the spot. Revive at minimum instead.
			health = 1
		}
		ent.SetHealth(health)
		if ent.MaxPower() > 0 && slot.Resources.PowerKind == ent.PowerKind() {
			ent.SetPower(minUint32(slot.Resources.Power, ent.MaxPower()))
		}
	}
	ent.Follow(ownerEnt, dist, angle)

	ctrl := NewController(ControllerConfig{
		Engine:    c.engine,
		Catalog:   c.catalog,
		Rules:     c.rules,
		RNG:       rand.New(rand.NewSource(c.rng.Int63())),
		Owner:     o.id,
		SlotIndex: idx,
		Store:     o.store,
		Self:      ent.Handle(),
		Archetype: slot.Archetype,
		Abilities: slot.Abilities,
	})
	o.controllers[idx] = ctrl
	slot.Live = ent.Handle()
	c.byLive[ent.Handle()] = slotKey{owner: o.id, index: idx}
	return nil
}

// snapshotSlot flushes live state into the slot record before a despawn
// boundary. Abilities and archetype are re-synced from the controller in
// case of hot updates.
func (c *Coordinator) snapshotSlot(o *ownerState, idx int) {
	slot := o.store.Slot(idx)
	if ctrl := o.controllers[idx]; ctrl != nil {
		slot.Archetype = ctrl.Archetype()
		slot.Abilities = ctrl.Abilities()
	}
	if ent, ok := c.engine.Resolve(slot.Live); ok {
		slot.Level = ent.Level()
		slot.Resources = ResourceSnapshot{
			Health:    ent.Health(),
			Power:     ent.Power(),
			PowerKind: ent.PowerKind(),
		}
	}
}

func (c *Coordinator) despawnSlot(o *ownerState, idx int) {
	slot := o.store.Slot(idx)
	if slot.Live == "" {
		return
	}
	c.engine.Despawn(slot.Live)
	delete(c.byLive, slot.Live)
	delete(o.controllers, idx)
	slot.Live = ""
}

func (c *Coordinator) clearStaleLive(o *ownerState, idx int) {
	slot := o.store.Slot(idx)
	delete(c.byLive, slot.Live)
	delete(o.controllers, idx)
	slot.Live = ""
}

func (c *Coordinator) persistSlot(o *ownerState, idx int) {
	slot := o.store.Slot(idx)
	slot.Persisted = true
	c.persist.Save(o.id, idx, recordFromSlot(slot))
}

func (c *Coordinator) notifySlot(o *ownerState, idx int) {
	c.notify.SlotChanged(o.id, c.viewOf(o, idx))
}

func (c *Coordinator) viewOf(o *ownerState, idx int) SlotView {
	slot := o.store.Slot(idx)
	view := SlotView{
		Index:     idx,
		Identity:  slot.Identity,
		Name:      c.templateName(slot.Identity),
		Level:     slot.Level,
		Archetype: slot.Archetype,
		Abilities: slot.Abilities,
		Active:    slot.Active(),
		Dismissed: slot.Dismissed,
		Health:    slot.Resources.Health,
		PowerKind: slot.Resources.PowerKind,
		Power:     slot.Resources.Power,
	}
	if ent, ok := c.engine.Resolve(slot.Live); ok {
		view.Health = ent.Health()
		view.MaxHealth = ent.MaxHealth()
		view.Power = ent.Power()
		view.MaxPower = ent.MaxPower()
		view.PowerKind = ent.PowerKind()
		view.Level = ent.Level()
	}
	return view
}

func (c *Coordinator) templateName(id TemplateID) string {
	if tmpl, ok := c.engine.Template(id); ok {
		return tmpl.Name
	}
	return "Guardian"
}

func (c *Coordinator) slotPayload(o *ownerState, idx int) glog.SlotPayload {
	slot := o.store.Slot(idx)
	return glog.SlotPayload{
		Slot:      idx,
		Identity:  uint32(slot.Identity),
		Level:     slot.Level,
		Archetype: slot.Archetype.String(),
	}
}

// seedAbilities copies the first MaxAbilitySlots non-zero native abilities
// in their original order.
func seedAbilities(native []AbilityID) [MaxAbilitySlots]AbilityID {
	var out [MaxAbilitySlots]AbilityID
	n := 0
	for _, id := range native {
		if id == 0 {
			continue
		}
		if n == MaxAbilitySlots {
			break
		}
		out[n] = id
		n++
	}
	return out
}

// FollowPlacement returns the archetype follow distance and the slot's
// fan-out angle used for spawn points, teleports, and follow movement.
// Melee archetypes sit at the owner's side, healers hang back, and the
// slot index spreads an owner's guardians apart.
func FollowPlacement(rules Rules, arch Archetype, slotIndex int) (float64, float64) {
	dist := rules.FollowDist
	base := math.Pi / 2
	if arch == ArchetypeHealer {
		dist = rules.HealerFollowDist
		base = math.Pi
	}
	return dist, base + float64(slotIndex)*(math.Pi/6)
}
