package studentmode

import "time"

// PinCredential is the single hashed lab PIN with an optional expiry.
type PinCredential struct {
	PinHash   string
	ExpiresAt *time.Time
	UpdatedBy string
	UpdatedAt time.Time
}

// Expired reports whether the credential is past its expiry.
func (c PinCredential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Scope names the operations the throttle distinguishes per client.
const (
	ScopeSession = "session"
	ScopeUse     = "use"
)
