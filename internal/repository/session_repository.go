package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrCredentialUnavailable = errors.New("credential missing or inactive")
)

type SessionRepository interface {
	// CreateForActiveCredential inserts s only if its credential exists and
	// is active at commit time.
	CreateForActiveCredential(ctx context.Context, s *domain.Session) error
	// FindWithCredentialState reads the session and the state of its owner in
	// one query.
	FindWithCredentialState(ctx context.Context, id string) (*domain.Session, domain.CredentialState, error)
	ListActiveByCredentialID(ctx context.Context, credentialID string, now time.Time) ([]domain.Session, error)
	Revoke(ctx context.Context, id string) (bool, error)
	RevokeByCredentialID(ctx context.Context, credentialID string) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) CreateForActiveCredential(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := lockCredential(tx, s.CredentialID)
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrCredentialUnavailable
		}
		if err != nil {
			return err
		}
		if owner.State() != domain.CredentialActive {
			return ErrCredentialUnavailable
		}
		return tx.Omit("Credential").Create(s).Error
	})
	if err != nil {
		if errors.Is(err, ErrCredentialUnavailable) {
			observability.RecordRepositoryOperation(ctx, "session", "create", "credential_unavailable")
		} else {
			observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return nil
}

type sessionOwnerRow struct {
	ID               string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	CredentialID     string
	Active           bool
	CredentialActive *bool
}

func (r *GormSessionRepository) FindWithCredentialState(ctx context.Context, id string) (*domain.Session, domain.CredentialState, error) {
	var row sessionOwnerRow
	res := r.db.WithContext(ctx).
		Table("sessions").
		Select("sessions.id, sessions.created_at, sessions.expires_at, sessions.credential_id, sessions.active, credentials.active AS credential_active").
		Joins("LEFT JOIN credentials ON credentials.id = sessions.credential_id").
		Where("sessions.id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "find_with_credential_state", "error")
		return nil, "", res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", "find_with_credential_state", "not_found")
		return nil, "", ErrSessionNotFound
	}
	state := domain.CredentialMissing
	if row.CredentialActive != nil {
		state = domain.CredentialDeactivated
		if *row.CredentialActive {
			state = domain.CredentialActive
		}
	}
	observability.RecordRepositoryOperation(ctx, "session", "find_with_credential_state", "success")
	return &domain.Session{
		ID:           row.ID,
		CreatedAt:    row.CreatedAt,
		ExpiresAt:    row.ExpiresAt,
		CredentialID: row.CredentialID,
		Active:       row.Active,
	}, state, nil
}

func (r *GormSessionRepository) ListActiveByCredentialID(ctx context.Context, credentialID string, now time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("credential_id = ? AND active = ? AND expires_at > ?", credentialID, true, now).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_active_by_credential_id", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list_active_by_credential_id", "success")
	return sessions, nil
}

func (r *GormSessionRepository) Revoke(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) RevokeByCredentialID(ctx context.Context, credentialID string) (int64, error) {
	var revoked int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCredential(tx, credentialID); err != nil && !errors.Is(err, ErrCredentialNotFound) {
			return err
		}
		n, err := revokeSessionsOf(tx, credentialID)
		revoked = n
		return err
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_by_credential_id", "error")
		return revoked, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke_by_credential_id", "success")
	return revoked, nil
}

func (r *GormSessionRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", cutoff).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "delete_expired_before", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete_expired_before", "success")
	return res.RowsAffected, nil
}
