package model

import "time"

// Token is the persisted OAuth2 record. ExpiresAt is absolute epoch
// milliseconds; after that instant the access token must not be used
// without a refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	UserID       string
}

// Remaining returns how long the access token is still trustworthy.
func (t Token) Remaining(now time.Time) time.Duration {
	return time.UnixMilli(t.ExpiresAt).Sub(now)
}
