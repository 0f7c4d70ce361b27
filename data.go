package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wildkeep/server/internal/guardian"
	"wildkeep/server/internal/world"
)

// The data files use human-readable names for enums; unknown strings fall
// back to the zero value rather than failing the whole file.

type abilityEntry struct {
	ID           uint32        `yaml:"id"`
	Name         string        `yaml:"name"`
	Positive     bool          `yaml:"positive"`
	CombatUsable bool          `yaml:"combatUsable"`
	Heal         bool          `yaml:"heal"`
	Periodic     bool          `yaml:"periodic"`
	Persistent   bool          `yaml:"persistent"`
	DirectDamage bool          `yaml:"directDamage"`
	Resource     string        `yaml:"resource"`
	Cost         uint32        `yaml:"cost"`
	Range        float64       `yaml:"range"`
	Cooldown     time.Duration `yaml:"cooldown"`
	CategoryCD   time.Duration `yaml:"categoryCooldown"`
	ChargeCD     time.Duration `yaml:"chargeCooldown"`
}

type abilityFile struct {
	Abilities []abilityEntry `yaml:"abilities"`
}

type creatureEntry struct {
	ID         uint32   `yaml:"id"`
	Name       string   `yaml:"name"`
	Rank       string   `yaml:"rank"`
	Critter    bool     `yaml:"critter"`
	BaseHealth uint32   `yaml:"baseHealth"`
	BasePower  uint32   `yaml:"basePower"`
	PowerKind  string   `yaml:"powerKind"`
	BaseDamage uint32   `yaml:"baseDamage"`
	Faction    uint32   `yaml:"faction"`
	Abilities  []uint32 `yaml:"abilities"`
}

type bestiaryFile struct {
	Creatures []creatureEntry `yaml:"creatures"`
}

type mapCatalog map[guardian.AbilityID]guardian.AbilityInfo

func (m mapCatalog) Lookup(id guardian.AbilityID) (guardian.AbilityInfo, bool) {
	info, ok := m[id]
	return info, ok
}

// loadCatalog builds the ability catalog from the YAML file; an empty path
// yields an empty catalog (guardians fall back to auto-attacks).
func loadCatalog(path string) (guardian.Catalog, error) {
	catalog := make(mapCatalog)
	if path == "" {
		return catalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abilities file: %w", err)
	}
	var file abilityFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode abilities file: %w", err)
	}
	for _, e := range file.Abilities {
		id := guardian.AbilityID(e.ID)
		catalog[id] = guardian.AbilityInfo{
			ID:           id,
			Name:         e.Name,
			Positive:     e.Positive,
			CombatUsable: e.CombatUsable,
			Heal:         e.Heal,
			Periodic:     e.Periodic,
			Persistent:   e.Persistent,
			DirectDamage: e.DirectDamage,
			Resource:     parsePowerKind(e.Resource),
			Cost:         e.Cost,
			Range:        e.Range,

			Cooldown:         e.Cooldown,
			CategoryCooldown: e.CategoryCD,
			ChargeCooldown:   e.ChargeCD,
		}
	}
	return catalog, nil
}

// loadBestiary registers the creature templates with the world. An empty
// path is allowed for test servers that register templates directly.
func loadBestiary(path string, w *world.World) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bestiary file: %w", err)
	}
	var file bestiaryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode bestiary file: %w", err)
	}
	for _, e := range file.Creatures {
		abilities := make([]guardian.AbilityID, len(e.Abilities))
		for i, id := range e.Abilities {
			abilities[i] = guardian.AbilityID(id)
		}
		w.RegisterTemplate(world.Template{
			Info: guardian.TemplateInfo{
				ID:        guardian.TemplateID(e.ID),
				Name:      e.Name,
				Rank:      parseRank(e.Rank),
				Critter:   e.Critter,
				Abilities: abilities,
			},
			BaseHealth: e.BaseHealth,
			BasePower:  e.BasePower,
			PowerKind:  parsePowerKind(e.PowerKind),
			BaseDamage: e.BaseDamage,
			Faction:    guardian.FactionID(e.Faction),
		})
	}
	return nil
}

func parsePowerKind(s string) guardian.PowerKind {
	switch s {
	case "mana":
		return guardian.PowerMana
	case "rage":
		return guardian.PowerRage
	case "energy":
		return guardian.PowerEnergy
	case "focus":
		return guardian.PowerFocus
	case "health":
		return guardian.PowerHealth
	default:
		return guardian.PowerNone
	}
}

func parseRank(s string) guardian.CreatureRank {
	switch s {
	case "rare":
		return guardian.RankRare
	case "elite":
		return guardian.RankElite
	case "rareelite", "rare_elite":
		return guardian.RankRareElite
	case "worldboss", "world_boss":
		return guardian.RankWorldBoss
	default:
		return guardian.RankNormal
	}
}
