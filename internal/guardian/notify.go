package guardian

// SlotView is the read-only display projection handed to the presentation
// layer and the addon notifier.
type SlotView struct {
	Index     int
	Identity  TemplateID
	Name      string
	Level     uint8
	Archetype Archetype
	Abilities [MaxAbilitySlots]AbilityID
	Active    bool
	Dismissed bool
	Health    uint32
	MaxHealth uint32
	Power     uint32
	MaxPower  uint32
	PowerKind PowerKind
}

// Notifier receives asynchronous slot-state changes for optional external
// display. Delivery is best-effort; the core never assumes it succeeded and
// no method returns an error.
type Notifier interface {
	SlotChanged(owner OwnerID, view SlotView)
	SlotCleared(owner OwnerID, slot int)
	GuardianDismissed(owner OwnerID, slot int)
	GuardianDied(owner OwnerID, slot int, name string)
	Message(owner OwnerID, text string)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) SlotChanged(OwnerID, SlotView)     {}
func (NopNotifier) SlotCleared(OwnerID, int)          {}
func (NopNotifier) GuardianDismissed(OwnerID, int)    {}
func (NopNotifier) GuardianDied(OwnerID, int, string) {}
func (NopNotifier) Message(OwnerID, string)           {}
