package model

import "time"

// CachedToken is a bearer token obtained for one tenant.
type CachedToken struct {
	Tenant    string    `json:"tenant"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Usable reports whether the token may still be sent at now.
func (t *CachedToken) Usable(now time.Time) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt)
}
