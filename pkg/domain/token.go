package domain

import (
	"time"
)

type Token struct {
	// access token value
	Value string `json:"value"`

	// When the access token expires in unix time
	Expires int64 `json:"expires"`

	// refresh token, if any
	Refresh string `json:"refresh"`

	// When the refresh token expires in unix time
	RefreshExpires int64 `json:"refreshExpires"`
}

// NewToken creates a new token of the given value with Expire times set from ttls in seconds.
func NewToken(value, refresh string, ttl, refreshTTL int) *Token {
	now := time.Now().UTC()
	return &Token{
		Value:          value,
		Refresh:        refresh,
		Expires:        now.Add(time.Duration(ttl) * time.Second).Unix(),
		RefreshExpires: now.Add(time.Duration(refreshTTL) * time.Second).Unix(),
	}
}

// HasExpired returns if the time now is past Expires
func (t *Token) HasExpired() bool {
	return time.Now().UTC().Unix() >= t.Expires
}

// CanRefresh returns if the refresh token is present and still valid.
func (t *Token) CanRefresh() bool {
	return t.Refresh != "" && time.Now().UTC().Unix() < t.RefreshExpires
}
