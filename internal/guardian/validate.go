package guardian

import "math"

// CanCapture runs the capture gates against a live target. The first failing
// gate wins; a nil result means the creature is capturable. The checks are
// simple predicates over the engine's view and never mutate state.
func CanCapture(rules Rules, owner, target Entity) error {
	if target == nil {
		return ErrNotFound
	}
	if !target.Alive() {
		return ErrTargetDead
	}
	switch target.Kind() {
	case KindPlayer:
		return ErrTargetPlayer
	case KindPet, KindGuardian, KindSummon:
		return ErrTargetOwned
	}
	if target.Critter() {
		return ErrTargetCritter
	}
	switch target.Rank() {
	case RankElite, RankRareElite, RankWorldBoss:
		if !rules.AllowElite {
			return ErrTargetElite
		}
	case RankRare:
		if !rules.AllowRare {
			return ErrTargetRare
		}
	}
	if target.Level() < rules.MinCreatureLevel {
		return ErrLevelTooLow
	}
	if int(target.Level())-int(owner.Level()) > rules.MaxLevelDiff {
		return ErrLevelTooHigh
	}
	if target.InCombat() {
		victim, ok := target.Victim()
		if ok && victim.Handle() != owner.Handle() {
			return ErrTargetBusy
		}
	}
	if distance(owner.Position(), target.Position()) > rules.CaptureRange {
		return ErrTargetOutOfRange
	}
	return nil
}

func distance(a, b Vec2) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
