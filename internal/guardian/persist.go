package guardian

// Record is the externally visible persisted shape of one slot. The layout
// must stay stable across versions; readers of older rows fill newly added
// fields with their zero-value defaults.
type Record struct {
	Identity     TemplateID
	Level        uint8
	Archetype    Archetype
	Abilities    [MaxAbilitySlots]AbilityID
	Health       uint32
	Power        uint32
	PowerKind    PowerKind
	VisualRef    uint32
	EquipmentRef uint32
	Dismissed    bool
	SavedAt      int64
}

// SlotRecord pairs a record with its slot index for bulk loads.
type SlotRecord struct {
	Index  int
	Record Record
}

// Store is the durable key-value persistence collaborator, keyed by
// (owner, slot). Save and Delete are fire-and-forget: they must not block
// the simulation tick and their failures are logged, never surfaced
// synchronously. LoadAll runs on the login path, off the tick loop.
type Store interface {
	Save(owner OwnerID, slot int, rec Record)
	LoadAll(owner OwnerID) ([]SlotRecord, error)
	Delete(owner OwnerID, slot int)
}

// NopStore discards writes and loads nothing.
type NopStore struct{}

func (NopStore) Save(OwnerID, int, Record) {}
func (NopStore) LoadAll(OwnerID) ([]SlotRecord, error) { return nil, nil }
func (NopStore) Delete(OwnerID, int) {}

func recordFromSlot(s *Slot) Record {
	return Record{
		Identity:     s.Identity,
		Level:        s.Level,
		Archetype:    s.Archetype,
		Abilities:    s.Abilities,
		Health:       s.Resources.Health,
		Power:        s.Resources.Power,
		PowerKind:    s.Resources.PowerKind,
		VisualRef:    s.VisualRef,
		EquipmentRef: s.EquipmentRef,
		Dismissed:    s.Dismissed,
	}
}

func applyRecord(s *Slot, rec Record) {
	s.Identity = rec.Identity
	s.Level = rec.Level
	s.Archetype = rec.Archetype
	if !s.Archetype.Valid() {
		s.Archetype = ArchetypeDPS
	}
	s.Abilities = rec.Abilities
	s.Resources = ResourceSnapshot{Health: rec.Health, Power: rec.Power, PowerKind: rec.PowerKind}
	s.VisualRef = rec.VisualRef
	s.EquipmentRef = rec.EquipmentRef
	s.Live = ""
	s.Dismissed = rec.Dismissed
	s.Persisted = true
}
