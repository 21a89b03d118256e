package domain

import (
	"testing"
	"time"
)

func TestSessionStateAt(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expires := issued.Add(time.Hour)

	cases := []struct {
		name   string
		active bool
		now    time.Time
		want   SessionState
	}{
		{name: "active before expiry", active: true, now: issued.Add(59 * time.Minute), want: SessionActive},
		{name: "expired exactly at boundary", active: true, now: expires, want: SessionExpired},
		{name: "expired after boundary", active: true, now: expires.Add(time.Second), want: SessionExpired},
		{name: "revoked before expiry", active: false, now: issued, want: SessionRevoked},
		{name: "revoked and expired", active: false, now: expires.Add(time.Hour), want: SessionRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Session{CreatedAt: issued, ExpiresAt: expires, Active: tc.active}
			if got := s.StateAt(tc.now); got != tc.want {
				t.Fatalf("StateAt()=%q want %q", got, tc.want)
			}
		})
	}
}

func TestCredentialState(t *testing.T) {
	var missing *Credential
	if got := missing.State(); got != CredentialMissing {
		t.Fatalf("nil credential state=%q want %q", got, CredentialMissing)
	}
	if got := (&Credential{Active: true}).State(); got != CredentialActive {
		t.Fatalf("active credential state=%q", got)
	}
	if got := (&Credential{Active: false}).State(); got != CredentialDeactivated {
		t.Fatalf("inactive credential state=%q", got)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("NormalizeEmail()=%q", got)
	}
}
