package ttl

import "time"

// IsExpired reports whether a record whose expiry is expiredAt must be
// treated as absent at now. A nil expiry never expires.
func IsExpired(expiredAt *time.Time, now time.Time) bool {
	return expiredAt != nil && !expiredAt.After(now)
}
