package domain

import "strings"

type Credential struct {
	ID       string `gorm:"size:36;primaryKey" json:"id"`
	Email    string `gorm:"size:320;uniqueIndex;not null" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"`
	Active   bool   `gorm:"not null;default:true" json:"active"`
}

// CredentialState is the lifecycle tag of a credential as seen by a session.
type CredentialState string

const (
	CredentialActive      CredentialState = "active"
	CredentialDeactivated CredentialState = "deactivated"
	CredentialMissing     CredentialState = "missing"
)

func (c *Credential) State() CredentialState {
	if c == nil {
		return CredentialMissing
	}
	if !c.Active {
		return CredentialDeactivated
	}
	return CredentialActive
}

// NormalizeEmail is the canonical form used for storage and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
