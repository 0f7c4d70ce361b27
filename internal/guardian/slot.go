package guardian

// MaxAbilitySlots fixes the size of a guardian's ability bar.
const MaxAbilitySlots = 8

// MaxSlotCap bounds the configurable per-owner slot count.
const MaxSlotCap = 5

// ResourceSnapshot captures health and power at the last despawn boundary.
// Values are clamped to the respawned instance's maximums on restore, never
// applied above them.
type ResourceSnapshot struct {
	Health    uint32
	Power     uint32
	PowerKind PowerKind
}

// Slot is one per-owner storage position for a captured guardian. A slot is
// occupied iff Identity != 0 and active iff Live is set.
type Slot struct {
	Identity  TemplateID
	Level     uint8
	Archetype Archetype
	// Abilities is display-ordered; duplicates are tolerated by the data
	// model and the controller treats only the first occurrence as
	// selectable per tick.
	Abilities    [MaxAbilitySlots]AbilityID
	Resources    ResourceSnapshot
	VisualRef    uint32
	EquipmentRef uint32
	// Live is a back-reference to the spawned instance; the world engine
	// owns the instance lifetime.
	Live Handle
	// Dismissed means explicitly stored: the slot is skipped by automatic
	// respawn on login and zone re-entry until summoned again.
	Dismissed bool
	// Persisted is a dirty marker only; durable state is periodically
	// re-flushed regardless.
	Persisted bool
}

// Occupied reports whether the slot holds a captured guardian.
func (s *Slot) Occupied() bool {
	return s.Identity != 0
}

// Active reports whether the slot has a live spawned instance.
func (s *Slot) Active() bool {
	return s.Live != ""
}

// Reset returns the slot to empty defaults. Durable storage is untouched;
// the caller decides whether to also delete the record.
func (s *Slot) Reset() {
	*s = Slot{}
}

// SlotStore is the per-owner fixed array of guardian slots. It is owned by
// the coordinator and shared read-only with the owner's live controllers for
// cooperative threat, heal, and buff scans.
type SlotStore struct {
	owner OwnerID
	slots []Slot
}

// NewSlotStore builds a store with the configured capacity, clamped to
// 1..MaxSlotCap.
func NewSlotStore(owner OwnerID, capacity int) *SlotStore {
	if capacity < 1 {
		capacity = 1
	}
	if capacity > MaxSlotCap {
		capacity = MaxSlotCap
	}
	return &SlotStore{owner: owner, slots: make([]Slot, capacity)}
}

// Owner returns the owning agent's identifier.
func (st *SlotStore) Owner() OwnerID {
	return st.owner
}

// Len returns the configured slot capacity.
func (st *SlotStore) Len() int {
	return len(st.slots)
}

// Slot returns the slot at index, or nil when out of range.
func (st *SlotStore) Slot(index int) *Slot {
	if index < 0 || index >= len(st.slots) {
		return nil
	}
	return &st.slots[index]
}

// FindEmpty returns the first unoccupied index, scanning slot 0 upward.
func (st *SlotStore) FindEmpty() (int, bool) {
	for i := range st.slots {
		if !st.slots[i].Occupied() {
			return i, true
		}
	}
	return 0, false
}

// FindByLive returns the index of the slot bound to the given live handle.
func (st *SlotStore) FindByLive(h Handle) (int, bool) {
	if h == "" {
		return 0, false
	}
	for i := range st.slots {
		if st.slots[i].Live == h {
			return i, true
		}
	}
	return 0, false
}

// FindByIdentity returns the first slot holding the given template id.
func (st *SlotStore) FindByIdentity(id TemplateID) (int, bool) {
	if id == 0 {
		return 0, false
	}
	for i := range st.slots {
		if st.slots[i].Identity == id {
			return i, true
		}
	}
	return 0, false
}

// Clear resets the slot at index to empty defaults.
func (st *SlotStore) Clear(index int) {
	if s := st.Slot(index); s != nil {
		s.Reset()
	}
}

// ActiveIndices lists the indices with live instances, slot 0 upward.
func (st *SlotStore) ActiveIndices() []int {
	out := make([]int, 0, len(st.slots))
	for i := range st.slots {
		if st.slots[i].Active() {
			out = append(out, i)
		}
	}
	return out
}
