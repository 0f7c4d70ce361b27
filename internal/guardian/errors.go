package guardian

import "errors"

// Lifecycle outcomes form a closed set returned from coordinator calls. The
// presentation layer renders them as user-facing messages; none are retried
// automatically.
var (
	// ErrDisabled means the capture feature is switched off by rules.
	ErrDisabled = errors.New("guardian capture is disabled")
	// ErrNoEmptySlot means every configured slot is occupied.
	ErrNoEmptySlot = errors.New("no empty guardian slot")
	// ErrEmpty means the addressed slot holds no captured guardian.
	ErrEmpty = errors.New("slot is empty")
	// ErrNotActive means the operation requires a live instance.
	ErrNotActive = errors.New("guardian is not active")
	// ErrAlreadyActive means the slot already has a live instance.
	ErrAlreadyActive = errors.New("guardian is already active")
	// ErrNotFound covers unresolved handles, unknown templates, unknown
	// abilities, and out-of-range indices.
	ErrNotFound = errors.New("not found")
	// ErrResourceMismatch means the ability costs a resource kind the
	// guardian's pool cannot pay.
	ErrResourceMismatch = errors.New("guardian lacks the required resource")
)

// Capture-validation failures, user-correctable and reported verbatim.
var (
	ErrTargetDead       = errors.New("target must be alive")
	ErrTargetOwned      = errors.New("cannot capture pets, guardians, or summons")
	ErrTargetPlayer     = errors.New("cannot capture players")
	ErrTargetCritter    = errors.New("cannot capture critters")
	ErrTargetElite      = errors.New("cannot capture elite creatures")
	ErrTargetRare       = errors.New("cannot capture rare creatures")
	ErrLevelTooLow      = errors.New("creature level is too low")
	ErrLevelTooHigh     = errors.New("creature level is too high to capture")
	ErrTargetBusy       = errors.New("creature is in combat with someone else")
	ErrTargetOutOfRange = errors.New("target is too far away")
)
