package radar

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCooldown matches every *CooldownError.
	ErrCooldown          = errors.New("creation cooldown active")
	ErrNoFix             = errors.New("no position fix")
	ErrLowAccuracy       = errors.New("position accuracy too low")
	ErrCreateInProgress  = errors.New("another creation is in progress")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrDescriptionLength = errors.New("description too short")
	ErrNoTarget          = errors.New("nearby placement requires a valid target position")
	ErrInvalidPlacement  = errors.New("invalid placement")
	ErrAlertNotFound     = errors.New("alert not found")
	ErrUnknownAction     = errors.New("unknown alert action")
	ErrStopped           = errors.New("radar is not running")
)

// CooldownError reports how long the caller must wait before creating again.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("creation cooldown active: retry in %s", e.Remaining.Round(time.Second))
}

// Is makes errors.Is(err, ErrCooldown) true.
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}
