package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
)

type LoginResult struct {
	CredentialID string
	Session      IssuedSession
}

type LoginPolicy struct {
	MaxFailures int
	Window      time.Duration
}

// AuthService composes the credential store and the session manager into
// the login and password-change flows.
type AuthService struct {
	credentials CredentialStore
	sessions    SessionManager
	attempts    LoginAttemptStore
	policy      LoginPolicy
	logger      *slog.Logger
}

func NewAuthService(
	credentials CredentialStore,
	sessions SessionManager,
	attempts LoginAttemptStore,
	policy LoginPolicy,
	logger *slog.Logger,
) *AuthService {
	if attempts == nil {
		attempts = NewNoopLoginAttemptStore()
	}
	return &AuthService{
		credentials: credentials,
		sessions:    sessions,
		attempts:    attempts,
		policy:      policy,
		logger:      logger,
	}
}

// Login verifies the password and issues a session with the default TTL.
// Each call reserves an attempt before the password is checked, so
// concurrent guesses cannot overrun the limit. Throttle store failures are
// logged and do not block logins.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*LoginResult, error) {
	key := domain.NormalizeEmail(email)
	if err := s.reserveAttempt(ctx, key); err != nil {
		return nil, err
	}

	credentialID, err := s.credentials.Verify(ctx, email, rawPassword)
	if err != nil {
		return nil, err
	}
	s.resetAttempts(ctx, key)

	issued, err := s.sessions.Issue(ctx, credentialID, 0)
	if err != nil {
		return nil, err
	}
	return &LoginResult{CredentialID: credentialID, Session: issued}, nil
}

// ChangePassword re-checks the current password before rotating. Checks
// count against the same throttle as logins for the credential's email.
// Rotation revokes every session, the caller's included.
func (s *AuthService) ChangePassword(ctx context.Context, credentialID, currentPassword, newPassword string) error {
	c, err := s.credentials.Get(ctx, credentialID)
	if err != nil {
		return err
	}
	key := domain.NormalizeEmail(c.Email)
	if err := s.reserveAttempt(ctx, key); err != nil {
		return err
	}
	verifiedID, err := s.credentials.Verify(ctx, c.Email, currentPassword)
	if err != nil {
		return err
	}
	if verifiedID != credentialID {
		return ErrInvalidCredentials
	}
	s.resetAttempts(ctx, key)
	return s.credentials.RotatePassword(ctx, credentialID, newPassword)
}

func (s *AuthService) reserveAttempt(ctx context.Context, key string) error {
	if s.policy.MaxFailures <= 0 {
		return nil
	}
	n, err := s.attempts.RecordAttempt(ctx, key, s.policy.Window)
	if err != nil {
		s.logger.WarnContext(ctx, "login attempt store unavailable", "error", err)
		return nil
	}
	if n > s.policy.MaxFailures {
		return ErrLoginThrottled
	}
	return nil
}

func (s *AuthService) resetAttempts(ctx context.Context, key string) {
	if s.policy.MaxFailures <= 0 {
		return
	}
	if err := s.attempts.Reset(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "reset login attempts", "error", err)
	}
}
