package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newAuthForTest(t *testing.T, maxFailures int) (*AuthService, *testCore) {
	t.Helper()
	core := newCoreForTest(t)
	auth := NewAuthService(core.credentials, core.sessions, NewInMemoryLoginAttemptStore(core.clock),
		LoginPolicy{MaxFailures: maxFailures, Window: 15 * time.Minute}, discardLogger())
	return auth, core
}

func TestAuthServiceLoginIssuesSession(t *testing.T) {
	auth, core := newAuthForTest(t, 5)
	ctx := context.Background()
	id := registerForTest(t, core, "alice@example.com")

	res, err := auth.Login(ctx, "Alice@Example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.CredentialID != id {
		t.Fatalf("expected credential %s, got %s", id, res.CredentialID)
	}
	if want := serviceTestStart.Add(time.Hour); !res.Session.ExpiresAt.Equal(want) {
		t.Fatalf("expected default ttl expiry %s, got %s", want, res.Session.ExpiresAt)
	}
	if owner, err := core.sessions.Validate(ctx, res.Session.Token); err != nil || owner != id {
		t.Fatalf("validate: owner=%q err=%v", owner, err)
	}
}

func TestAuthServiceThrottlesRepeatedFailures(t *testing.T) {
	auth, core := newAuthForTest(t, 3)
	ctx := context.Background()
	registerForTest(t, core, "alice@example.com")

	for i := 0; i < 3; i++ {
		if _, err := auth.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := auth.Login(ctx, "alice@example.com", "secret123"); !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected ErrLoginThrottled, got %v", err)
	}
	if _, err := auth.Login(ctx, "ALICE@example.com", "secret123"); !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("throttle must key on the normalized email, got %v", err)
	}

	core.clock.Advance(16 * time.Minute)
	if _, err := auth.Login(ctx, "alice@example.com", "secret123"); err != nil {
		t.Fatalf("login after window: %v", err)
	}
}

func TestAuthServiceConcurrentGuessesStopAtLimit(t *testing.T) {
	auth, core := newAuthForTest(t, 3)
	ctx := context.Background()
	registerForTest(t, core, "carol@example.com")

	const guesses = 30
	errs := make(chan error, guesses)
	var wg sync.WaitGroup
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := auth.Login(ctx, "carol@example.com", "wrong-guess")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var evaluated, throttled int
	for err := range errs {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			evaluated++
		case errors.Is(err, ErrLoginThrottled):
			throttled++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if evaluated != 3 || throttled != guesses-3 {
		t.Fatalf("expected 3 password checks and %d throttled, got %d and %d", guesses-3, evaluated, throttled)
	}
	if _, err := auth.Login(ctx, "carol@example.com", "secret123"); !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected correct password to be throttled too, got %v", err)
	}
}

func TestAuthServiceSuccessResetsFailures(t *testing.T) {
	auth, core := newAuthForTest(t, 2)
	ctx := context.Background()
	registerForTest(t, core, "alice@example.com")

	if _, err := auth.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := auth.Login(ctx, "alice@example.com", "secret123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := auth.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := auth.Login(ctx, "alice@example.com", "secret123"); err != nil {
		t.Fatalf("counter should have been reset by the earlier success: %v", err)
	}
}

func TestAuthServiceChangePassword(t *testing.T) {
	auth, core := newAuthForTest(t, 5)
	ctx := context.Background()
	id := registerForTest(t, core, "alice@example.com")

	res, err := auth.Login(ctx, "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := auth.ChangePassword(ctx, id, "wrong-password", "brand-new-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := auth.ChangePassword(ctx, id, "secret123", "brand-new-pass"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := core.sessions.Validate(ctx, res.Session.Token); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected existing session revoked, got %v", err)
	}
	if _, err := auth.Login(ctx, "alice@example.com", "brand-new-pass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := auth.ChangePassword(ctx, "missing", "secret123", "brand-new-pass"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthServiceChangePasswordSharesLoginThrottle(t *testing.T) {
	auth, core := newAuthForTest(t, 2)
	ctx := context.Background()
	id := registerForTest(t, core, "alice@example.com")

	for i := 0; i < 2; i++ {
		if err := auth.ChangePassword(ctx, id, "wrong-password", "brand-new-pass"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if err := auth.ChangePassword(ctx, id, "secret123", "brand-new-pass"); !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected ErrLoginThrottled, got %v", err)
	}
	if _, err := auth.Login(ctx, "alice@example.com", "secret123"); !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected login to share the throttle, got %v", err)
	}

	core.clock.Advance(16 * time.Minute)
	if err := auth.ChangePassword(ctx, id, "secret123", "brand-new-pass"); err != nil {
		t.Fatalf("change password after window: %v", err)
	}
}
