package service

import (
	"context"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
)

type CredentialStore interface {
	Register(ctx context.Context, email, rawPassword string) (string, error)
	Verify(ctx context.Context, email, rawPassword string) (string, error)
	Deactivate(ctx context.Context, credentialID string) error
	RotatePassword(ctx context.Context, credentialID, newRawPassword string) error
	Delete(ctx context.Context, credentialID string) error
	Get(ctx context.Context, credentialID string) (*domain.Credential, error)
}

type SessionManager interface {
	Issue(ctx context.Context, credentialID string, ttl time.Duration) (IssuedSession, error)
	Validate(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, credentialID string) (int64, error)
	SweepExpired(ctx context.Context) (int64, error)
	ListActive(ctx context.Context, credentialID, currentToken string) ([]SessionView, error)
}

type AuthServiceInterface interface {
	Login(ctx context.Context, email, rawPassword string) (*LoginResult, error)
	ChangePassword(ctx context.Context, credentialID, currentPassword, newPassword string) error
}

var (
	_ CredentialStore      = (*CredentialService)(nil)
	_ SessionManager       = (*SessionService)(nil)
	_ AuthServiceInterface = (*AuthService)(nil)
)
