package guardian

// Archetype selects the combat routine a guardian runs while engaged. The
// set is closed; dispatch happens in one switch inside the controller rather
// than through a type hierarchy.
type Archetype uint8

const (
	ArchetypeDPS Archetype = iota
	ArchetypeTank
	ArchetypeHealer
)

func (a Archetype) String() string {
	switch a {
	case ArchetypeTank:
		return "Tank"
	case ArchetypeHealer:
		return "Healer"
	default:
		return "DPS"
	}
}

// Valid reports whether the value names a known archetype. Records loaded
// from older persisted rows may carry values outside the closed set.
func (a Archetype) Valid() bool {
	return a <= ArchetypeHealer
}
