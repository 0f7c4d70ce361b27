package guardian

import "time"

// CooldownTracker holds per-ability recovery countdowns for one live
// guardian. Countdowns are monotonic: advanced by elapsed tick time, clamped
// at zero, never negative. The tracker is discarded with the instance at
// despawn.
type CooldownTracker struct {
	remaining map[AbilityID]time.Duration
}

// NewCooldownTracker returns an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{remaining: make(map[AbilityID]time.Duration)}
}

// Ready reports whether the ability is off cooldown.
func (c *CooldownTracker) Ready(id AbilityID) bool {
	return c.remaining[id] <= 0
}

// Remaining returns the time left on the ability's cooldown, zero when
// ready.
func (c *CooldownTracker) Remaining(id AbilityID) time.Duration {
	return c.remaining[id]
}

// Set commits a cooldown. Non-positive durations clear the entry.
func (c *CooldownTracker) Set(id AbilityID, d time.Duration) {
	if d <= 0 {
		delete(c.remaining, id)
		return
	}
	c.remaining[id] = d
}

// Advance decrements every countdown by the elapsed tick time, dropping
// entries that reach zero.
func (c *CooldownTracker) Advance(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	for id, left := range c.remaining {
		left -= elapsed
		if left <= 0 {
			delete(c.remaining, id)
			continue
		}
		c.remaining[id] = left
	}
}
