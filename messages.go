package main

import (
	"fmt"
	"strconv"
	"strings"

	"wildkeep/server/internal/guardian"
)

// Addon frames ride a dedicated channel prefix so the client addon can
// filter them out of ordinary chat traffic. The payload grammar is
// "WILDKEEP\t<VERB>:<slot>[:...]".
const addonPrefix = "WILDKEEP"

type serverMessage struct {
	Type       string             `json:"type"`
	Frame      string             `json:"frame,omitempty"`
	Text       string             `json:"text,omitempty"`
	Slots      []slotPayload      `json:"slots,omitempty"`
	Error      string             `json:"error,omitempty"`
	ServerTime int64              `json:"serverTime,omitempty"`
}

type slotPayload struct {
	Index     int      `json:"index"`
	Identity  uint32   `json:"identity"`
	Name      string   `json:"name"`
	Level     uint8    `json:"level"`
	Archetype string   `json:"archetype"`
	Abilities []uint32 `json:"abilities"`
	Active    bool     `json:"active"`
	Dismissed bool     `json:"dismissed"`
	Health    uint32   `json:"health"`
	MaxHealth uint32   `json:"maxHealth"`
	Power     uint32   `json:"power"`
	MaxPower  uint32   `json:"maxPower"`
	PowerKind string   `json:"powerKind"`
}

type clientMessage struct {
	Type      string  `json:"type"`
	Cmd       string  `json:"cmd,omitempty"`
	Slot      int     `json:"slot,omitempty"`
	Position  int     `json:"position,omitempty"`
	Ability   uint32  `json:"ability,omitempty"`
	Target    string  `json:"target,omitempty"`
	Archetype string  `json:"archetype,omitempty"`
	Template  uint32  `json:"template,omitempty"`
	Level     uint8   `json:"level,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Partition uint32  `json:"partition,omitempty"`
}

func frameName(slot int, name string, level uint8) string {
	return fmt.Sprintf("%s\tNAME:%d:%d:%s", addonPrefix, slot, level, name)
}

func frameArch(slot int, arch guardian.Archetype) string {
	return fmt.Sprintf("%s\tARCH:%d:%s", addonPrefix, slot, arch)
}

func frameSpells(slot int, abilities [guardian.MaxAbilitySlots]guardian.AbilityID) string {
	parts := make([]string, len(abilities))
	for i, id := range abilities {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return fmt.Sprintf("%s\tSPELLS:%d:%s", addonPrefix, slot, strings.Join(parts, ","))
}

func frameDismiss(slot int) string {
	return fmt.Sprintf("%s\tDISMISS:%d", addonPrefix, slot)
}

func slotPayloadOf(view guardian.SlotView) slotPayload {
	abilities := make([]uint32, len(view.Abilities))
	for i, id := range view.Abilities {
		abilities[i] = uint32(id)
	}
	return slotPayload{
		Index:     view.Index,
		Identity:  uint32(view.Identity),
		Name:      view.Name,
		Level:     view.Level,
		Archetype: view.Archetype.String(),
		Abilities: abilities,
		Active:    view.Active,
		Dismissed: view.Dismissed,
		Health:    view.Health,
		MaxHealth: view.MaxHealth,
		Power:     view.Power,
		MaxPower:  view.MaxPower,
		PowerKind: view.PowerKind.String(),
	}
}

// viewFrames renders the full addon replay for one slot: name, archetype,
// and the ability bar, plus the dismiss marker when stored.
func viewFrames(view guardian.SlotView) []string {
	frames := []string{
		frameName(view.Index, view.Name, view.Level),
		frameArch(view.Index, view.Archetype),
		frameSpells(view.Index, view.Abilities),
	}
	if view.Dismissed || !view.Active {
		frames = append(frames, frameDismiss(view.Index))
	}
	return frames
}
