package guardian

import (
	"math"
	"time"
)

// Rules is the immutable configuration snapshot injected into the
// coordinator and controllers at construction and reload time. Per-tick
// logic never reads ambient global state.
type Rules struct {
	Enabled  bool `yaml:"enabled"`
	Announce bool `yaml:"announce"`

	// MaxSlots is the per-owner slot capacity, clamped to 1..MaxSlotCap.
	MaxSlots int `yaml:"maxSlots"`

	// Capture gates.
	AllowElite       bool    `yaml:"allowElite"`
	AllowRare        bool    `yaml:"allowRare"`
	MaxLevelDiff     int     `yaml:"maxLevelDiff"`
	MinCreatureLevel uint8   `yaml:"minCreatureLevel"`
	CaptureRange     float64 `yaml:"captureRange"`

	// Spawn scaling. GuardianDuration of zero means permanent.
	HealthPct        uint32        `yaml:"healthPct"`
	DamagePct        uint32        `yaml:"damagePct"`
	GuardianDuration time.Duration `yaml:"guardianDuration"`

	// Movement envelope. CombatLeash is intentionally tighter than
	// TeleportLeash so a fighting guardian is pulled back before it ever
	// needs the hard teleport.
	TeleportLeash    float64 `yaml:"teleportLeash"`
	CombatLeash      float64 `yaml:"combatLeash"`
	FollowDist       float64 `yaml:"followDist"`
	HealerFollowDist float64 `yaml:"healerFollowDist"`

	// Idle recovery and support thresholds, in percent.
	RegenPct     uint32  `yaml:"regenPct"`
	OwnerHealPct float64 `yaml:"ownerHealPct"`
	SelfHealPct  float64 `yaml:"selfHealPct"`
	AllyHealPct  float64 `yaml:"allyHealPct"`

	// Threat tuning.
	TankThreatBias   float64 `yaml:"tankThreatBias"`
	OwnAttackerBias  float64 `yaml:"ownAttackerBias"`
	ProtectThreatAdd float64 `yaml:"protectThreatAdd"`

	// Cast recovery. Heals floor at HealCooldownFloor even when the
	// catalog reports less; other casts floor at DefaultCooldown and gain
	// jitter so multiple guardians do not cast in lockstep.
	HealCooldownFloor time.Duration `yaml:"healCooldownFloor"`
	DefaultCooldown   time.Duration `yaml:"defaultCooldown"`
	CastJitterMin     time.Duration `yaml:"castJitterMin"`
	CastJitterMax     time.Duration `yaml:"castJitterMax"`

	// Internal timer intervals.
	OwnerRecheck     time.Duration `yaml:"ownerRecheck"`
	OwnerGrace       time.Duration `yaml:"ownerGrace"`
	ThreatScan       time.Duration `yaml:"threatScan"`
	RegenInterval    time.Duration `yaml:"regenInterval"`
	SubordinateAudit time.Duration `yaml:"subordinateAudit"`
}

// DefaultRules mirrors the shipped tuning values.
func DefaultRules() Rules {
	return Rules{
		Enabled:  true,
		Announce: true,
		MaxSlots: 3,

		AllowElite:       false,
		AllowRare:        true,
		MaxLevelDiff:     5,
		MinCreatureLevel: 1,
		CaptureRange:     30,

		HealthPct: 100,
		DamagePct: 100,

		TeleportLeash:    50,
		CombatLeash:      40,
		FollowDist:       3,
		HealerFollowDist: 12,

		RegenPct:     6,
		OwnerHealPct: 80,
		SelfHealPct:  60,
		AllyHealPct:  60,

		TankThreatBias:   200,
		OwnAttackerBias:  100,
		ProtectThreatAdd: 50,

		HealCooldownFloor: 10 * time.Second,
		DefaultCooldown:   2 * time.Second,
		CastJitterMin:     500 * time.Millisecond,
		CastJitterMax:     1500 * time.Millisecond,

		OwnerRecheck:     time.Second,
		OwnerGrace:       5 * time.Second,
		ThreatScan:       500 * time.Millisecond,
		RegenInterval:    2 * time.Second,
		SubordinateAudit: 500 * time.Millisecond,
	}
}

// Normalized returns a copy with zero and out-of-range values replaced by
// defaults, so a partially populated rules file still yields a usable
// snapshot.
func (r Rules) Normalized() Rules {
	def := DefaultRules()
	out := r
	if out.MaxSlots < 1 {
		out.MaxSlots = def.MaxSlots
	}
	if out.MaxSlots > MaxSlotCap {
		out.MaxSlots = MaxSlotCap
	}
	if out.CaptureRange <= 0 {
		out.CaptureRange = def.CaptureRange
	}
	if out.HealthPct == 0 {
		out.HealthPct = def.HealthPct
	}
	if out.DamagePct == 0 {
		out.DamagePct = def.DamagePct
	}
	if out.TeleportLeash <= 0 {
		out.TeleportLeash = def.TeleportLeash
	}
	if out.CombatLeash <= 0 || out.CombatLeash > out.TeleportLeash {
		out.CombatLeash = math.Min(def.CombatLeash, out.TeleportLeash)
	}
	if out.FollowDist <= 0 {
		out.FollowDist = def.FollowDist
	}
	if out.HealerFollowDist <= 0 {
		out.HealerFollowDist = def.HealerFollowDist
	}
	if out.RegenPct == 0 {
		out.RegenPct = def.RegenPct
	}
	if out.OwnerHealPct <= 0 {
		out.OwnerHealPct = def.OwnerHealPct
	}
	if out.SelfHealPct <= 0 {
		out.SelfHealPct = def.SelfHealPct
	}
	if out.AllyHealPct <= 0 {
		out.AllyHealPct = def.AllyHealPct
	}
	if out.TankThreatBias <= 0 {
		out.TankThreatBias = def.TankThreatBias
	}
	if out.OwnAttackerBias <= 0 {
		out.OwnAttackerBias = def.OwnAttackerBias
	}
	if out.ProtectThreatAdd <= 0 {
		out.ProtectThreatAdd = def.ProtectThreatAdd
	}
	if out.HealCooldownFloor <= 0 {
		out.HealCooldownFloor = def.HealCooldownFloor
	}
	if out.DefaultCooldown <= 0 {
		out.DefaultCooldown = def.DefaultCooldown
	}
	if out.CastJitterMin <= 0 {
		out.CastJitterMin = def.CastJitterMin
	}
	if out.CastJitterMax < out.CastJitterMin {
		out.CastJitterMax = out.CastJitterMin
	}
	if out.OwnerRecheck <= 0 {
		out.OwnerRecheck = def.OwnerRecheck
	}
	if out.OwnerGrace <= 0 {
		out.OwnerGrace = def.OwnerGrace
	}
	if out.ThreatScan <= 0 {
		out.ThreatScan = def.ThreatScan
	}
	if out.RegenInterval <= 0 {
		out.RegenInterval = def.RegenInterval
	}
	if out.SubordinateAudit <= 0 {
		out.SubordinateAudit = def.SubordinateAudit
	}
	return out
}
