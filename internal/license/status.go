package license

import "time"

// Resolve computes the effective status of a license at the given
// instant. Precedence, highest first: cancelled, suspended, expired,
// valid. Expiration is always computed here on read; nothing sweeps
// expired licenses in the background.
func Resolve(lic *License, now time.Time) Status {
	switch lic.State {
	case StateCancelled:
		return StatusCancelled
	case StateSuspended:
		return StatusSuspended
	}
	if lic.ExpiresAt != nil && !lic.ExpiresAt.After(now) {
		return StatusExpired
	}
	return StatusValid
}
