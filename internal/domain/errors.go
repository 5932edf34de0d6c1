package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Three roots; specific errors wrap a root so callers can test either.

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConcurrency  = errors.New("concurrent update conflict")
)

var (
	// Profile errors
	ErrProfileNotFound = fmt.Errorf("profile %w", ErrNotFound)

	// XP errors
	ErrNonPositiveXP     = fmt.Errorf("%w: xp amount must be positive", ErrInvalidInput)
	ErrUnknownSourceType = fmt.Errorf("%w: unknown xp source type", ErrInvalidInput)
	ErrXPOverflow        = fmt.Errorf("%w: xp total would exceed the int64 range", ErrInvalidInput)

	// DDA errors
	ErrDDANotInitialized = fmt.Errorf("difficulty engine %w", ErrNotFound)

	// Reward errors
	ErrRewardNotFound     = fmt.Errorf("reward %w", ErrNotFound)
	ErrRewardNotClaimable = errors.New("reward is not claimable")

	// Mission errors
	ErrMissionNotFound  = fmt.Errorf("mission progress %w", ErrNotFound)
	ErrMissionNotActive = errors.New("mission is not active")

	// Locking
	ErrLockTimeout = fmt.Errorf("%w: lock wait exceeded", ErrConcurrency)
)
