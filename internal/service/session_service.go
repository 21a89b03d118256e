package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/repository"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

type IssuedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsCurrent bool      `json:"is_current"`
}

type SessionSettings struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	SweepGrace time.Duration
	// Pepper keys the digest that stands in for the token in storage.
	Pepper string
}

type SessionService struct {
	repo     repository.SessionRepository
	clock    Clock
	locks    *CredentialLocks
	settings SessionSettings
	retry    RetryPolicy
	logger   *slog.Logger
}

func NewSessionService(
	repo repository.SessionRepository,
	clock Clock,
	locks *CredentialLocks,
	settings SessionSettings,
	retry RetryPolicy,
	logger *slog.Logger,
) *SessionService {
	if settings.DefaultTTL <= 0 {
		settings.DefaultTTL = 24 * time.Hour
	}
	if settings.MaxTTL < settings.DefaultTTL {
		settings.MaxTTL = settings.DefaultTTL
	}
	return &SessionService{
		repo:     repo,
		clock:    clock,
		locks:    locks,
		settings: settings,
		retry:    retry,
		logger:   logger,
	}
}

// Issue creates a session for an active credential. A non-positive ttl
// selects the default and anything above the maximum is clamped to it.
// Issue is serialized with RevokeAll for the same credential: a session
// either exists before a revocation starts and is revoked by it, or is
// created after it commits and stays valid.
func (s *SessionService) Issue(ctx context.Context, credentialID string, ttl time.Duration) (issued IssuedSession, err error) {
	ctx, span := tracer.Start(ctx, "session.issue")
	defer func() {
		observability.RecordSessionOperation(ctx, "issue", ErrorKind(err))
		endSpan(span, err)
	}()

	ttl = s.boundTTL(ttl)
	token, err := security.NewSessionToken()
	if err != nil {
		return IssuedSession{}, fmt.Errorf("generate session token: %w", err)
	}

	unlock := s.locks.Lock(credentialID)
	defer unlock()

	// Postgres keeps microseconds; truncating keeps the stored and returned
	// expiry identical across drivers.
	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	session := &domain.Session{
		ID:           security.HashSessionToken(token, s.settings.Pepper),
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		CredentialID: credentialID,
		Active:       true,
	}
	if err := s.repo.CreateForActiveCredential(ctx, session); err != nil {
		if errors.Is(err, repository.ErrCredentialUnavailable) {
			return IssuedSession{}, ErrCredentialInactive
		}
		return IssuedSession{}, storageFailure(ctx, s.logger, "issue", err)
	}
	span.SetAttributes(attribute.String("credential.id", credentialID))
	return IssuedSession{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Validate resolves a bearer token to its credential. It is a single read
// with no locking and never moves the expiry.
func (s *SessionService) Validate(ctx context.Context, token string) (credentialID string, err error) {
	ctx, span := tracer.Start(ctx, "session.validate")
	defer func() {
		observability.RecordSessionOperation(ctx, "validate", ErrorKind(err))
		endSpan(span, err)
	}()

	if token == "" {
		return "", ErrNotFound
	}
	type lookup struct {
		session *domain.Session
		owner   domain.CredentialState
	}
	id := security.HashSessionToken(token, s.settings.Pepper)
	res, err := retryRead(ctx, s.retry, func() (lookup, error) {
		session, owner, err := s.repo.FindWithCredentialState(ctx, id)
		if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
			return lookup{}, storageFailure(ctx, s.logger, "validate", err)
		}
		return lookup{session: session, owner: owner}, err
	})
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if res.owner != domain.CredentialActive {
		return "", ErrCredentialInactive
	}
	switch res.session.StateAt(s.clock.Now()) {
	case domain.SessionRevoked:
		return "", ErrRevoked
	case domain.SessionExpired:
		return "", ErrExpired
	}
	return res.session.CredentialID, nil
}

// Revoke is idempotent and reports nothing about whether the token existed.
func (s *SessionService) Revoke(ctx context.Context, token string) (err error) {
	ctx, span := tracer.Start(ctx, "session.revoke")
	defer func() {
		observability.RecordSessionOperation(ctx, "revoke", ErrorKind(err))
		endSpan(span, err)
	}()

	if token == "" {
		return nil
	}
	if _, err := s.repo.Revoke(ctx, security.HashSessionToken(token, s.settings.Pepper)); err != nil {
		return storageFailure(ctx, s.logger, "revoke", err)
	}
	return nil
}

// RevokeAll revokes every session of the credential that exists when it
// starts.
func (s *SessionService) RevokeAll(ctx context.Context, credentialID string) (revoked int64, err error) {
	ctx, span := tracer.Start(ctx, "session.revoke_all")
	defer func() {
		observability.RecordSessionOperation(ctx, "revoke_all", ErrorKind(err))
		endSpan(span, err)
	}()

	unlock := s.locks.Lock(credentialID)
	defer unlock()
	revoked, err = s.repo.RevokeByCredentialID(ctx, credentialID)
	if err != nil {
		return 0, storageFailure(ctx, s.logger, "revoke_all", err)
	}
	s.logger.InfoContext(ctx, "sessions revoked", "credential_id", credentialID, "count", revoked)
	return revoked, nil
}

// SweepExpired deletes sessions that expired more than the grace window ago.
// Validate never depends on it having run.
func (s *SessionService) SweepExpired(ctx context.Context) (purged int64, err error) {
	ctx, span := tracer.Start(ctx, "session.sweep_expired")
	defer func() {
		observability.RecordSessionOperation(ctx, "sweep_expired", ErrorKind(err))
		endSpan(span, err)
	}()

	cutoff := s.clock.Now().UTC().Add(-s.settings.SweepGrace)
	purged, err = s.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, storageFailure(ctx, s.logger, "sweep_expired", err)
	}
	observability.RecordSweepPurged(ctx, purged)
	return purged, nil
}

// ListActive returns the credential's live sessions, flagging the one that
// currentToken belongs to.
func (s *SessionService) ListActive(ctx context.Context, credentialID, currentToken string) ([]SessionView, error) {
	now := s.clock.Now().UTC()
	sessions, err := retryRead(ctx, s.retry, func() ([]domain.Session, error) {
		sessions, err := s.repo.ListActiveByCredentialID(ctx, credentialID, now)
		if err != nil {
			return nil, storageFailure(ctx, s.logger, "list_active_sessions", err)
		}
		return sessions, nil
	})
	if err != nil {
		return nil, err
	}
	current := ""
	if currentToken != "" {
		current = security.HashSessionToken(currentToken, s.settings.Pepper)
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:        session.ID,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
			IsCurrent: session.ID == current,
		})
	}
	return views, nil
}

func (s *SessionService) boundTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.settings.DefaultTTL
	}
	if ttl > s.settings.MaxTTL {
		return s.settings.MaxTTL
	}
	return ttl
}
