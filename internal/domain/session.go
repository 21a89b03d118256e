package domain

import "time"

// Session is a bearer session bound to one credential. ID holds the keyed
// digest of the bearer token, never the token itself.
type Session struct {
	ID           string      `gorm:"size:64;primaryKey" json:"-"`
	CreatedAt    time.Time   `gorm:"not null" json:"created_at"`
	ExpiresAt    time.Time   `gorm:"index;not null" json:"expires_at"`
	CredentialID string      `gorm:"size:36;index;not null" json:"credential_id"`
	Active       bool        `gorm:"not null;default:true" json:"active"`
	Credential   *Credential `gorm:"foreignKey:CredentialID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionExpired SessionState = "expired"
	SessionRevoked SessionState = "revoked"
)

// StateAt resolves the lifecycle state of the session at now. Revocation
// wins over expiry because it is terminal for the token.
func (s *Session) StateAt(now time.Time) SessionState {
	if !s.Active {
		return SessionRevoked
	}
	if !now.Before(s.ExpiresAt) {
		return SessionExpired
	}
	return SessionActive
}
