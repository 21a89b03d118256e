package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCredentialServiceRegisterDuplicateEmailIsCaseInsensitive(t *testing.T) {
	core := newCoreForTest(t)
	ctx := context.Background()

	if _, err := core.credentials.Register(ctx, "Alice@Example.com", "secret123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, email := range []string{"alice@example.com", "ALICE@EXAMPLE.COM", "  alice@example.com "} {
		if _, err := core.credentials.Register(ctx, email, "another-secret"); !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("register %q: expected ErrDuplicateEmail, got %v", email, err)
		}
	}
}

func TestCredentialServiceRegisterStoresOnlyDerivedValue(t *testing.T) {
	core := newCoreForTest(t)
	ctx := context.Background()

	id, err := core.credentials.Register(ctx, "bob@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	c, err := core.credentials.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.Contains(c.Password, "hunter2") || !strings.HasPrefix(c.Password, "$argon2id$") {
		t.Fatalf("unexpected stored verifier %q", c.Password)
	}
	if c.Email != "bob@example.com" || !c.Active {
		t.Fatalf("unexpected credential %+v", c)
	}
}

func TestCredentialServiceRegisterValidation(t *testing.T) {
	core := newCoreForTest(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "malformed email", email: "not-an-email", password: "secret123", want: ErrInvalidEmail},
		{name: "missing domain", email: "a@", password: "secret123", want: ErrInvalidEmail},
		{name: "short password", email: "c@example.com", password: "short", want: ErrWeakPassword},
		{name: "blank password", email: "d@example.com", password: "          ", want: ErrWeakPassword},
		{name: "oversized password", email: "e@example.com", password: strings.Repeat("x", 129), want: ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := core.credentials.Register(ctx, tt.email, tt.password); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCredentialServiceVerifyFailuresAreIndistinguishable(t *testing.T) {
	core := newCoreForTest(t)
	ctx := context.Background()

	id, err := core.credentials.Register(ctx, "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := core.credentials.Verify(ctx, "ALICE@example.com", "secret123")
	if err != nil || got != id {
		t.Fatalf("verify: id=%q err=%v", got, err)
	}

	_, wrongPassword := core.credentials.Verify(ctx, "alice@example.com", "wrong-password")
	_, unknownEmail := core.credentials.Verify(ctx, "nobody@example.com", "secret123")
	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("failure messages differ: %q vs %q", wrongPassword, unknownEmail)
	}

	if err := core.credentials.Deactivate(ctx, id); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := core.credentials.Verify(ctx, "alice@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected inactive credential to fail verify, got %v", err)
	}
}

func TestCredentialServiceDeactivateIsIdempotent(t *testing.T) {
	core := newCoreForTest(t)
	ctx := context.Background()

	id, err := core.credentials.Register(ctx, "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := core.credentials.Deactivate(ctx, id); err != nil {
			t.Fatalf("deactivate #%d: %v", i+1, err)
		}
	}
	c, err := core.credentials.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Active {
		t.Fatal("expected credential to stay inactive")
	}
	if err := core.credentials.Deactivate(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialServiceRotatePasswordRevokesSessions(t *testing.T) {
	core := newCoreForTest(t)
	ctx := context.Background()

	id, err := core.credentials.Register(ctx, "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	issued, err := core.sessions.Issue(ctx, id, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := core.credentials.RotatePassword(ctx, id, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := core.credentials.RotatePassword(ctx, id, "new-secret-456"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := core.sessions.Validate(ctx, issued.Token); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected old session revoked, got %v", err)
	}
	if _, err := core.credentials.Verify(ctx, "alice@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should no longer verify, got %v", err)
	}
	if _, err := core.credentials.Verify(ctx, "alice@example.com", "new-secret-456"); err != nil {
		t.Fatalf("new password should verify: %v", err)
	}
	if err := core.credentials.RotatePassword(ctx, "missing", "new-secret-456"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialServiceDeleteFreesEmail(t *testing.T) {
	core := newCoreForTest(t)
	ctx := context.Background()

	id, err := core.credentials.Register(ctx, "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := core.credentials.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := core.credentials.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := core.credentials.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := core.credentials.Register(ctx, "alice@example.com", "secret123"); err != nil {
		t.Fatalf("re-register after delete: %v", err)
	}
}
