package session

import "time"

// TokenSet is the credential set held by the client: a short-lived access
// token with its absolute expiry, and a long-lived refresh token used solely
// to mint new access tokens.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// HasAccess reports whether an access token is present, regardless of expiry.
func (t TokenSet) HasAccess() bool { return t.AccessToken != "" }

// Empty reports whether no credential material is held at all.
func (t TokenSet) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == "" && t.ExpiresAt.IsZero()
}

// Store persists the credential set. All operations degrade rather than fail:
// a store whose backend is unavailable returns an empty set and swallows
// writes. Mutations that change the set emit a session-changed notification.
type Store interface {
	Get() TokenSet
	// SetAccess stores the access token together with its expiry. The two
	// are always written as a pair; there is no way to orphan an expiry.
	SetAccess(token string, expiresIn time.Duration)
	// SetRefresh stores a new refresh token. An empty token is a no-op so a
	// refresh response without a rotated token never erases the stored one.
	SetRefresh(token string)
	// Clear removes all credential material. Idempotent.
	Clear()
}
