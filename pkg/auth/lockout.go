package auth

import "time"

// DefaultLockoutThreshold is the number of consecutive failed logins
// that triggers a lockout.
const DefaultLockoutThreshold = 5

// DefaultLockoutWindow is how long an account stays locked.
const DefaultLockoutWindow = 30 * time.Minute

// LockoutPolicy governs brute-force lockout. An account locks when the
// consecutive-failure counter reaches Threshold and stays locked for
// Window; a successful login resets the counter and clears the lock.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

// DefaultLockoutPolicy returns the standard lockout policy
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: DefaultLockoutThreshold,
		Window:    DefaultLockoutWindow,
	}
}

// LockUntil returns the lock expiry for a lockout starting at now
func (p LockoutPolicy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Window)
}
