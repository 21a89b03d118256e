package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/repository"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

const maxEmailLength = 320

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

type CredentialService struct {
	repo   repository.CredentialRepository
	hasher security.PasswordHasher
	policy security.PasswordPolicy
	locks  *CredentialLocks
	retry  RetryPolicy
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialService(
	repo repository.CredentialRepository,
	hasher security.PasswordHasher,
	policy security.PasswordPolicy,
	locks *CredentialLocks,
	retry RetryPolicy,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		repo:   repo,
		hasher: hasher,
		policy: policy,
		locks:  locks,
		retry:  retry,
		logger: logger,
	}
}

func (s *CredentialService) Register(ctx context.Context, email, rawPassword string) (id string, err error) {
	ctx, span := tracer.Start(ctx, "credential.register")
	defer func() {
		observability.RecordCredentialOperation(ctx, "register", ErrorKind(err))
		endSpan(span, err)
	}()

	email = domain.NormalizeEmail(email)
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	hash, err := s.derive(ctx, rawPassword)
	if err != nil {
		return "", err
	}
	uid, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate credential id: %w", err)
	}
	c := &domain.Credential{ID: uid.String(), Email: email, Password: hash, Active: true}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return "", ErrDuplicateEmail
		}
		return "", storageFailure(ctx, s.logger, "register", err)
	}
	span.SetAttributes(attribute.String("credential.id", c.ID))
	s.logger.InfoContext(ctx, "credential registered", "credential_id", c.ID)
	return c.ID, nil
}

// Verify never tells an unknown or inactive email apart from a wrong
// password. The unknown case still runs a full verification so both paths
// cost the same.
func (s *CredentialService) Verify(ctx context.Context, email, rawPassword string) (id string, err error) {
	ctx, span := tracer.Start(ctx, "credential.verify")
	defer func() {
		observability.RecordCredentialOperation(ctx, "verify", ErrorKind(err))
		endSpan(span, err)
	}()

	secret := []byte(rawPassword)
	defer security.Wipe(secret)

	email = domain.NormalizeEmail(email)
	c, err := retryRead(ctx, s.retry, func() (*domain.Credential, error) {
		c, err := s.repo.FindByEmail(ctx, email)
		if err != nil && !errors.Is(err, repository.ErrCredentialNotFound) {
			return nil, storageFailure(ctx, s.logger, "verify", err)
		}
		return c, err
	})
	if err != nil && !errors.Is(err, repository.ErrCredentialNotFound) {
		return "", err
	}
	encoded := s.dummy()
	if c.State() == domain.CredentialActive {
		encoded = c.Password
	}
	ok, verr := s.hasher.Verify(ctx, secret, encoded)
	if verr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if c.State() == domain.CredentialActive {
			s.logger.ErrorContext(ctx, "stored password hash unusable", "credential_id", c.ID, "error", verr)
		}
		return "", ErrInvalidCredentials
	}
	if !ok || c.State() != domain.CredentialActive {
		return "", ErrInvalidCredentials
	}
	return c.ID, nil
}

// Deactivate is idempotent. Sessions of the credential are revoked in the
// same transaction as the flag flip.
func (s *CredentialService) Deactivate(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "credential.deactivate")
	defer func() {
		observability.RecordCredentialOperation(ctx, "deactivate", ErrorKind(err))
		endSpan(span, err)
	}()

	unlock := s.locks.Lock(id)
	defer unlock()
	revoked, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrNotFound
		}
		return storageFailure(ctx, s.logger, "deactivate", err)
	}
	s.logger.InfoContext(ctx, "credential deactivated", "credential_id", id, "sessions_revoked", revoked)
	return nil
}

// RotatePassword replaces the verifier and revokes every session of the
// credential.
func (s *CredentialService) RotatePassword(ctx context.Context, id, newRawPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "credential.rotate_password")
	defer func() {
		observability.RecordCredentialOperation(ctx, "rotate_password", ErrorKind(err))
		endSpan(span, err)
	}()

	hash, err := s.derive(ctx, newRawPassword)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	revoked, err := s.repo.UpdatePassword(ctx, id, hash)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrNotFound
		}
		return storageFailure(ctx, s.logger, "rotate_password", err)
	}
	s.logger.InfoContext(ctx, "credential password rotated", "credential_id", id, "sessions_revoked", revoked)
	return nil
}

// Delete removes the credential and all of its sessions in one transaction
// and frees the email for reuse.
func (s *CredentialService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "credential.delete")
	defer func() {
		observability.RecordCredentialOperation(ctx, "delete", ErrorKind(err))
		endSpan(span, err)
	}()

	unlock := s.locks.Lock(id)
	defer unlock()
	purged, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrNotFound
		}
		return storageFailure(ctx, s.logger, "delete", err)
	}
	s.logger.InfoContext(ctx, "credential deleted", "credential_id", id, "sessions_purged", purged)
	return nil
}

func (s *CredentialService) Get(ctx context.Context, id string) (*domain.Credential, error) {
	c, err := retryRead(ctx, s.retry, func() (*domain.Credential, error) {
		c, err := s.repo.FindByID(ctx, id)
		if err != nil && !errors.Is(err, repository.ErrCredentialNotFound) {
			return nil, storageFailure(ctx, s.logger, "get_credential", err)
		}
		return c, err
	})
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// derive checks the policy and hashes the secret, zeroing the copy as soon as
// the hasher is done with it.
func (s *CredentialService) derive(ctx context.Context, rawPassword string) (string, error) {
	secret := []byte(rawPassword)
	defer security.Wipe(secret)
	if err := s.policy.Check(secret); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}
	hash, err := s.hasher.Derive(ctx, secret)
	if err != nil {
		return "", fmt.Errorf("derive password hash: %w", err)
	}
	return hash, nil
}

func (s *CredentialService) dummy() string {
	s.dummyOnce.Do(func() {
		buf := make([]byte, 16)
		_, _ = rand.Read(buf)
		h, err := s.hasher.Derive(context.Background(), buf)
		if err != nil {
			s.logger.Error("derive dummy password hash", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
