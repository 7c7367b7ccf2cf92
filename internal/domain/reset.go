package domain

import "time"

// ResetToken is the single outstanding password-reset grant.
type ResetToken struct {
	Email  string    `json:"email"`
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
	UserID string    `json:"userId"`
}

// Expired reports whether now is past the token's expiry.
func (t *ResetToken) Expired(now time.Time) bool {
	return now.After(t.Expiry)
}
