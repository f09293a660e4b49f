package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Business-rule rejections (AlreadyClaimed, InsufficientProgress, NotEligible)
// are expected outcomes, not faults — callers render them as normal UI states.

var (
	// Lookup errors
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmptyUsername = errors.New("username must not be empty")

	// Input errors
	ErrInvalidReferralCode = errors.New("referral code does not resolve to a user")
	ErrInvalidDifficulty   = errors.New("difficulty must be easy, medium or hard")
	ErrInvalidScore        = errors.New("score must not be negative")

	// Business-rule rejections
	ErrAlreadyClaimed       = errors.New("reward already claimed")
	ErrInsufficientProgress = errors.New("not enough progress to claim")
	ErrNotEligible          = errors.New("not eligible for this reward")

	// Write-path errors
	ErrConflict = errors.New("concurrent update conflict — retry budget exhausted")
)
