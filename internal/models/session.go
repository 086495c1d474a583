package models

import "time"

// Credential is the archive API bearer token bound to a browser session.
type Credential struct {
	Token    string
	Username string
}

// WebSession is the stored form of a browser session.
type WebSession struct {
	TokenHash string    `json:"-"`
	Username  string    `json:"username"`
	APIToken  string    `json:"api_token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s WebSession) Credential() *Credential {
	return &Credential{Token: s.APIToken, Username: s.Username}
}

func (s WebSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
